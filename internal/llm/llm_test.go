package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/tripflow/internal/llm"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

type cannedGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *cannedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

type tripParams struct {
	Origin      string `json:"origin_city"`
	Destination string `json:"destination_city"`
	Events      []struct {
		Name string `json:"name"`
	} `json:"fixed_events"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain", `{"origin_city": "北京", "destination_city": "深圳", "fixed_events": [{"name": "会议"}]}`},
		{"fenced", "```json\n{\"origin_city\": \"北京\", \"destination_city\": \"深圳\", \"fixed_events\": [{\"name\": \"会议\"}]}\n```"},
		{"prose around", "好的，结果如下：\n{\"origin_city\": \"北京\", \"destination_city\": \"深圳\", \"fixed_events\": [{\"name\": \"会议\"}]}\n希望有帮助"},
		{"trailing comma", `{"origin_city": "北京", "destination_city": "深圳", "fixed_events": [{"name": "会议"},],}`},
		{"single quotes", `{'origin_city': '北京', 'destination_city': '深圳', 'fixed_events': [{'name': '会议'}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p tripParams
			require.NoError(t, llm.DecodeJSON(tt.raw, &p))
			assert.Equal(t, "北京", p.Origin)
			assert.Equal(t, "深圳", p.Destination)
			require.Len(t, p.Events, 1)
			assert.Equal(t, "会议", p.Events[0].Name)
		})
	}
}

func TestDecodeJSON_Array(t *testing.T) {
	var items []map[string]any
	require.NoError(t, llm.DecodeJSON("```\n[{\"type\": \"🚗\"}, {\"type\": \"🏨\"}]\n```", &items))
	assert.Len(t, items, 2)
}

func TestDecodeJSON_Failures(t *testing.T) {
	for _, raw := range []string{"", "抱歉，我无法完成", `{"type": 12}`} {
		var out struct {
			Type string `json:"type"`
		}
		err := llm.DecodeJSON(raw, &out)
		require.Error(t, err, raw)

		var perr *llm.ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, raw, perr.Output)
		assert.True(t, flowerrors.IsStructural(err), "parse failures are structural")
	}
}

func TestJSONExtractor_Extract(t *testing.T) {
	gen := &cannedGenerator{reply: `{"origin_city": "上海", "destination_city": "成都", "fixed_events": []}`}
	ex := llm.NewJSONExtractor(gen)

	var p tripParams
	require.NoError(t, ex.Extract(context.Background(), "下周从上海去成都", `{"origin_city": "..."}`, &p))

	assert.Equal(t, "上海", p.Origin)
	assert.Equal(t, "成都", p.Destination)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "下周从上海去成都")
	assert.Contains(t, gen.prompts[0], `{"origin_city": "..."}`)
}

func TestJSONExtractor_PropagatesErrors(t *testing.T) {
	genErr := &llm.GenerationError{Provider: "fake", Err: errors.New("boom")}
	ex := llm.NewJSONExtractor(&cannedGenerator{err: genErr})

	var p tripParams
	err := ex.Extract(context.Background(), "x", "{}", &p)
	assert.ErrorIs(t, err, genErr)

	ex = llm.NewJSONExtractor(&cannedGenerator{reply: "no json here"})
	err = ex.Extract(context.Background(), "x", "{}", &p)
	var perr *llm.ParseError
	assert.True(t, errors.As(err, &perr))
}

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func fastChatRetry() flowerrors.RetryConfig {
	return flowerrors.DefaultRetry.With(
		flowerrors.WithInitialBackoff(time.Millisecond),
		flowerrors.WithJitter(0),
	)
}

func TestChatClient_Generate(t *testing.T) {
	var got struct {
		Model       string        `json:"model"`
		Messages    []llm.Message `json:"messages"`
		Temperature float64       `json:"temperature"`
	}
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "腾讯、华为"}, "finish_reason": "stop"}], "usage": {"total_tokens": 42}}`))
	})

	c := llm.NewChatClient(llm.DeepSeek, "secret",
		llm.WithChatBaseURL(srv.URL),
		llm.WithSystemPrompt("你是助手"),
		llm.WithTemperature(0.5))

	out, err := c.Generate(context.Background(), "推荐企业")
	require.NoError(t, err)
	assert.Equal(t, "腾讯、华为", out)

	assert.Equal(t, "deepseek-chat", got.Model)
	assert.Equal(t, 0.5, got.Temperature)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: "你是助手"},
		{Role: llm.RoleUser, Content: "推荐企业"},
	}, got.Messages)
}

func TestChatClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	})

	c := llm.NewChatClient(llm.Qwen, "k", llm.WithChatBaseURL(srv.URL), llm.WithChatRetry(fastChatRetry()))
	out, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatClient_ClientTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	c := llm.NewChatClient(llm.DeepSeek, "k",
		llm.WithChatBaseURL(srv.URL),
		llm.WithChatHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}),
		llm.WithChatRetry(fastChatRetry().With(flowerrors.WithMaxAttempts(2))))

	_, err := c.Generate(context.Background(), "p")

	var timeout *flowerrors.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "deepseek chat completion", timeout.Operation)
	assert.Equal(t, "20ms", timeout.Duration)
	assert.False(t, flowerrors.IsStructural(err))
	assert.Equal(t, int32(2), calls.Load(), "timeouts are transient")
}

func TestChatClient_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
		check     func(t *testing.T, err error)
	}{
		{
			name: "unauthorized is not retried", status: http.StatusUnauthorized, body: "bad key", wantCalls: 1,
			check: func(t *testing.T, err error) {
				var httpErr *flowerrors.HTTPError
				require.True(t, errors.As(err, &httpErr))
				assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
			},
		},
		{
			name: "empty choices", status: http.StatusOK, body: `{"choices": []}`, wantCalls: 1,
			check: func(t *testing.T, err error) {
				assert.True(t, flowerrors.IsStructural(err))
			},
		},
		{
			name: "malformed body", status: http.StatusOK, body: `{"choices": [`, wantCalls: 1,
			check: func(t *testing.T, err error) {
				assert.True(t, flowerrors.IsStructural(err))
			},
		},
		{
			name: "rate limited until exhausted", status: http.StatusTooManyRequests, wantCalls: 3,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "max retries exceeded")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := chatServer(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			c := llm.NewChatClient(llm.DeepSeek, "k", llm.WithChatBaseURL(srv.URL), llm.WithChatRetry(fastChatRetry()))
			_, err := c.Generate(context.Background(), "p")
			require.Error(t, err)

			var genErr *llm.GenerationError
			require.True(t, errors.As(err, &genErr))
			assert.Equal(t, "deepseek", genErr.Provider)
			assert.Equal(t, tt.wantCalls, calls.Load())
			tt.check(t, err)
		})
	}
}

func TestChatClient_MissingKey(t *testing.T) {
	c := llm.NewChatClient(llm.DeepSeek, "")
	_, err := c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestChatClient_WithChatModel(t *testing.T) {
	var model string
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		model, _ = body["model"].(string)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "x"}}]}`))
	})

	c := llm.NewChatClient(llm.Qwen, "k", llm.WithChatBaseURL(srv.URL), llm.WithChatModel("qwen-plus"))
	_, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "qwen-plus", model)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := llm.NewGeminiClient(context.Background(), "", "")
	assert.Error(t, err)
}

// Package fakes provides deterministic in-memory collaborators for tests
// and local runs: a scripted text generator, an extractor, a geocoder, a
// driving-time source and transport searchers.
package fakes

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/randalmurphal/tripflow/internal/prompt"
)

// GenerateFunc computes a reply for a prompt.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

type rule struct {
	marker string
	reply  GenerateFunc
}

// Generator is a scripted llm.TextGenerator. Rules registered with When or
// WhenTemplate are tried newest first, so a later rule overrides an earlier
// one for the same prompt; otherwise the sequential responses are
// cycled, or the fixed response is returned.
type Generator struct {
	mu        sync.Mutex
	response  string
	responses []string
	index     int
	err       error
	fn        GenerateFunc
	rules     []rule
	Calls     []string
}

// NewGenerator creates a generator that answers response by default.
func NewGenerator(response string) *Generator {
	return &Generator{response: response}
}

// WithResponses cycles through responses for prompts no rule matches.
func (g *Generator) WithResponses(responses ...string) *Generator {
	g.responses = responses
	return g
}

// WithError makes every unmatched call fail with err.
func (g *Generator) WithError(err error) *Generator {
	g.err = err
	return g
}

// WithGenerateFunc answers unmatched prompts with fn.
func (g *Generator) WithGenerateFunc(fn GenerateFunc) *Generator {
	g.fn = fn
	return g
}

// When answers prompts containing substr with reply.
func (g *Generator) When(substr, reply string) *Generator {
	return g.WhenFunc(substr, func(context.Context, string) (string, error) { return reply, nil })
}

// WhenFunc answers prompts containing substr with fn.
func (g *Generator) WhenFunc(substr string, fn GenerateFunc) *Generator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, rule{marker: substr, reply: fn})
	return g
}

// WhenTemplate answers prompts rendered from t with reply.
func (g *Generator) WhenTemplate(t prompt.Template, reply string) *Generator {
	return g.When(Marker(t), reply)
}

// WhenTemplateFunc answers prompts rendered from t with fn.
func (g *Generator) WhenTemplateFunc(t prompt.Template, fn GenerateFunc) *Generator {
	return g.WhenFunc(Marker(t), fn)
}

// Generate implements llm.TextGenerator.
func (g *Generator) Generate(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	g.Calls = append(g.Calls, p)
	for i := len(g.rules) - 1; i >= 0; i-- {
		if r := g.rules[i]; strings.Contains(p, r.marker) {
			g.mu.Unlock()
			return r.reply(ctx, p)
		}
	}
	if g.err != nil {
		g.mu.Unlock()
		return "", g.err
	}
	if g.fn != nil {
		fn := g.fn
		g.mu.Unlock()
		return fn(ctx, p)
	}
	defer g.mu.Unlock()
	if len(g.responses) > 0 {
		r := g.responses[g.index%len(g.responses)]
		g.index++
		return r, nil
	}
	return g.response, nil
}

// CallCount returns the number of Generate calls.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// CallsMatching returns the prompts rendered from t.
func (g *Generator) CallsMatching(t prompt.Template) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	marker := Marker(t)
	for _, c := range g.Calls {
		if strings.Contains(c, marker) {
			out = append(out, c)
		}
	}
	return out
}

// LastCall returns the most recent prompt, or "".
func (g *Generator) LastCall() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Calls) == 0 {
		return ""
	}
	return g.Calls[len(g.Calls)-1]
}

// Reset clears recorded calls and rewinds the responses.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = nil
	g.index = 0
}

// Marker returns a line that identifies prompts rendered from t: its first
// non-blank line without placeholders.
func Marker(t prompt.Template) string {
	for _, line := range strings.Split(t.Text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.Contains(line, "${") {
			return line
		}
	}
	return t.Text
}

// Extractor is an llm.Extractor that decodes a fixed value into out.
type Extractor struct {
	mu    sync.Mutex
	Value any
	Err   error
	Texts []string
}

// NewExtractor creates an extractor returning v.
func NewExtractor(v any) *Extractor {
	return &Extractor{Value: v}
}

// Extract implements llm.Extractor.
func (e *Extractor) Extract(ctx context.Context, text, _ string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.Texts = append(e.Texts, text)
	v, err := e.Value, e.Err
	e.mu.Unlock()

	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

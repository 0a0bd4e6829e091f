package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("[{\"type\": "), genai.Text("\"🚗\"}]")}},
		}},
	}
	text, err := candidateText(resp)
	require.NoError(t, err)
	assert.Equal(t, `[{"type": "🚗"}]`, text)

	_, err = candidateText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = candidateText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}},
	})
	assert.Error(t, err)
}

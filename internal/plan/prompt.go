package plan

import (
	"encoding/json"
	"fmt"
)

// PromptType discriminates interrupt payloads.
type PromptType string

// Prompt kinds a session can suspend on.
const (
	PromptApproval         PromptType = "approval"
	PromptSelectTransport  PromptType = "select_transport"
	PromptResearchMode     PromptType = "research_mode_selection"
	PromptRefine           PromptType = "refine_itinerary"
	PromptCompanySelection PromptType = "company_multi_selection"
)

// Prompt is the payload handed to the caller when a session suspends.
// Its JSON form is consumed by user interfaces as is.
type Prompt struct {
	Type        PromptType `json:"type"`
	Message     string     `json:"message,omitempty"`
	Title       string     `json:"title,omitempty"`
	Options     []string   `json:"options,omitempty"`
	FinalReport string     `json:"final_report,omitempty"`
}

// DecodePrompt parses a stored interrupt payload.
func DecodePrompt(raw json.RawMessage) (Prompt, error) {
	var p Prompt
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prompt{}, fmt.Errorf("decode prompt: %w", err)
	}
	if p.Type == "" {
		return Prompt{}, fmt.Errorf("decode prompt: missing type")
	}
	return p, nil
}

// Package llm provides the text-generation collaborators used by the trip
// stages: a TextGenerator per provider and an Extractor that turns
// generated text into typed values.
package llm

import (
	"context"
	"fmt"
)

// TextGenerator produces free text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extractor fills out from unstructured text. schemaHint describes the
// expected JSON shape to the model.
type Extractor interface {
	Extract(ctx context.Context, text, schemaHint string, out any) error
}

// Role identifies a chat message sender.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage tracks token consumption reported by a provider.
type TokenUsage struct {
	InputTokens  int `json:"prompt_tokens"`
	OutputTokens int `json:"completion_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// GenerationError is returned when a provider call fails or yields no text.
type GenerationError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ParseError is returned when generated text cannot be decoded.
// Err is a *errors.JSONParseError from the flowgraph errors package, so the
// failure categorizes as structural.
type ParseError struct {
	Output string
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse generated output: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

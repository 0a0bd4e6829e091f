package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/randalmurphal/tripflow/internal/prompt"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// JSONExtractor implements Extractor over any TextGenerator.
type JSONExtractor struct {
	gen    TextGenerator
	logger *slog.Logger
}

// ExtractorOption configures a JSONExtractor.
type ExtractorOption func(*JSONExtractor)

// WithExtractorLogger sets the logger.
func WithExtractorLogger(l *slog.Logger) ExtractorOption {
	return func(e *JSONExtractor) { e.logger = l }
}

// NewJSONExtractor creates an extractor backed by gen.
func NewJSONExtractor(gen TextGenerator, opts ...ExtractorOption) *JSONExtractor {
	e := &JSONExtractor{gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract renders the extraction prompt, generates, and decodes into out.
func (e *JSONExtractor) Extract(ctx context.Context, text, schemaHint string, out any) error {
	p, err := prompt.Extraction.Render(map[string]any{
		"user_input": text,
		"schema":     schemaHint,
	})
	if err != nil {
		return err
	}

	raw, err := e.gen.Generate(ctx, p)
	if err != nil {
		return err
	}

	if err := DecodeJSON(raw, out); err != nil {
		e.logger.Warn("extraction output unusable",
			slog.Int("output_len", len(raw)),
			slog.Any("error", err))
		return err
	}
	return nil
}

// DecodeJSON decodes generated text into out. It tolerates Markdown code
// fences, prose around the JSON value and the usual model mistakes
// (trailing commas, single quotes, missing brackets), which are repaired
// before a second decode attempt. Failures are *ParseError.
func DecodeJSON(raw string, out any) error {
	body := isolateJSON(raw)
	if body == "" {
		return parseError(raw, errors.New("no JSON value in output"))
	}

	err := json.Unmarshal([]byte(body), out)
	if err == nil {
		return nil
	}

	fixed, repairErr := jsonrepair.JSONRepair(body)
	if repairErr != nil {
		return parseError(raw, err)
	}
	if err := json.Unmarshal([]byte(fixed), out); err != nil {
		return parseError(raw, err)
	}
	return nil
}

func parseError(raw string, err error) *ParseError {
	return &ParseError{
		Output: raw,
		Err:    &flowerrors.JSONParseError{Input: raw, Message: err.Error()},
	}
}

// isolateJSON strips code fences and trims to the outermost object or
// array. It returns "" when no bracket is present.
func isolateJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	end := strings.LastIndexAny(s, "}]")
	if end < start {
		// Truncated output; let the repair pass close it.
		return s[start:]
	}
	return s[start : end+1]
}

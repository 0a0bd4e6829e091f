package itinerary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/tripflow/internal/llm"
	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/internal/prompt"
)

// ErrEmptyReport is returned when generation yields only whitespace.
var ErrEmptyReport = errors.New("generated report is empty")

// Renderer turns a merged itinerary into a Markdown report.
type Renderer struct {
	gen    llm.TextGenerator
	logger *slog.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRendererLogger sets the logger.
func WithRendererLogger(l *slog.Logger) RendererOption {
	return func(r *Renderer) { r.logger = l }
}

// NewRenderer creates a Renderer over gen.
func NewRenderer(gen llm.TextGenerator, opts ...RendererOption) *Renderer {
	r := &Renderer{gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render makes exactly one Generate call. A blank instruction renders the
// itinerary from scratch; otherwise the previous report is revised under
// the instruction.
func (r *Renderer) Render(ctx context.Context, items []plan.ItineraryItem, previous, instruction string) (string, error) {
	var (
		text string
		err  error
	)
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		text, err = prompt.FinalTable.Render(map[string]any{
			"final_itinerary": items,
		})
	} else {
		text, err = prompt.FinalRefine.Render(map[string]any{
			"final_itinerary": items,
			"previous_report": previous,
			"instruction":     instruction,
		})
	}
	if err != nil {
		return "", err
	}

	r.logger.Debug("rendering report",
		slog.Int("items", len(items)),
		slog.Bool("refine", instruction != ""))

	out, err := r.gen.Generate(ctx, text)
	if err != nil {
		return "", err
	}
	report := stripFence(out)
	if report == "" {
		return "", ErrEmptyReport
	}
	return report, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// Table renders items locally in the report layout, without generation.
// Days are numbered from the date of the first item.
func Table(items []plan.ItineraryItem) string {
	var b strings.Builder
	b.WriteString("| 日期/天数 | 时间 | 类型 | 内容 | 地点 |\n")
	b.WriteString("| :--- | :--- | :--- | :--- | :--- |\n")
	if len(items) == 0 {
		return b.String()
	}

	first := items[0].Start.In(plan.Zone)
	for _, it := range items {
		start := it.Start.In(plan.Zone)
		day := dayIndex(first, start) + 1
		fmt.Fprintf(&b, "| Day %d (%s) | %s-%s | %s | %s | %s |\n",
			day,
			start.Format(plan.DateLayout),
			start.Format("15:04"),
			it.End.In(plan.Zone).Format("15:04"),
			it.Type,
			strings.ReplaceAll(it.Description, "|", "/"),
			place(it.Location))
	}
	return b.String()
}

func dayIndex(first, t time.Time) int {
	fy, fm, fd := first.Date()
	ty, tm, td := t.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, plan.Zone)
	c := time.Date(ty, tm, td, 0, 0, 0, 0, plan.Zone)
	return int(c.Sub(a).Hours() / 24)
}

func place(l plan.Location) string {
	switch {
	case l.Name != "":
		return l.Name
	case l.Address != "":
		return l.Address
	default:
		return "None"
	}
}

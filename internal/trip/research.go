package trip

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/internal/prompt"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
)

const researchModeMessage = "🚀 **是否进行会议前企业调研规划？**\n" +
	"请选择调研模式：\n" +
	"  1️⃣ 自定义调研：输入 `1: 华为, 腾讯`\n" +
	"  2️⃣ 智能自动调研：输入 `2`\n" +
	"  3️⃣ 跳过调研：输入 `3`\n"

var (
	nameSeparators = regexp.MustCompile(`[,\s]+`)
	listSeparators = regexp.MustCompile(`[,，、;；\n]+`)
	listMarker     = regexp.MustCompile(`^(\d+[.、)）]|[-*•])\s*`)
)

// researchMode asks whether to research companies before the meetings
// and routes to the chosen research stage. Unrecognized answers skip
// research.
func (p *Planner) researchMode(ctx flowgraph.Context, s plan.State) (result, error) {
	answer, err := flowgraph.RequestInput(ctx, plan.Prompt{
		Type:    plan.PromptResearchMode,
		Message: researchModeMessage,
	})
	if err != nil {
		return result{}, err
	}

	choice := strings.TrimSpace(strings.ReplaceAll(fmt.Sprint(answer), "：", ":"))
	switch {
	case strings.HasPrefix(choice, "1"):
		names := customNames(choice)
		ctx.Logger().Info("custom research selected", slog.Any("companies", names))
		if len(names) == 0 {
			return flowgraph.Goto(StageCustomResearch, plan.Patch{}), nil
		}
		return flowgraph.Goto(StageCustomResearch, plan.Patch{
			Companies: &plan.Companies{TargetNames: names},
		}), nil
	case choice == "2":
		ctx.Logger().Info("automatic research selected")
		return flowgraph.Goto(StageAutoResearch, plan.Patch{}), nil
	case choice == "3":
		ctx.Logger().Info("research skipped")
		return flowgraph.Goto(StageSkipResearch, plan.Patch{}), nil
	default:
		ctx.Logger().Warn("unrecognized research mode, skipping research", slog.String("answer", choice))
		return flowgraph.Goto(StageSkipResearch, plan.Patch{}), nil
	}
}

// customNames reads the company names of a "1: a, b" answer. "1 a b" is
// accepted too.
func customNames(choice string) []string {
	var rest string
	if _, after, ok := strings.Cut(choice, ":"); ok {
		rest = after
	} else {
		rest = choice[1:]
	}
	rest = strings.Trim(strings.ReplaceAll(strings.TrimSpace(rest), "，", ","), ",")

	var names []string
	for _, n := range nameSeparators.Split(rest, -1) {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// customResearch confirms the names given with the research mode.
func (p *Planner) customResearch(ctx flowgraph.Context, s plan.State) (result, error) {
	names := s.Companies.TargetNames
	if len(names) == 0 {
		return fail(s, ErrResearch, "未提供自定义调研企业名称")
	}
	return flowgraph.Update(plan.Patch{
		Companies: &plan.Companies{TargetNames: names},
		Control:   plan.ClearError(s),
	}), nil
}

// autoResearch proposes companies in the destination and lets the
// traveller pick any of them. Recommendations are generated only on the
// first pass; the resumed pass only reads the selection.
func (p *Planner) autoResearch(ctx flowgraph.Context, s plan.State) (result, error) {
	ask := plan.Prompt{
		Type:  plan.PromptCompanySelection,
		Title: `请从候选企业中选择，输入一个名称列表 (例如：["华为", "腾讯", "深信服"])`,
	}
	if !flowgraph.Resuming(ctx) {
		ask.Options = p.recommend(ctx, s.Locations.Hotel.City)
	}

	answer, err := flowgraph.RequestInput(ctx, ask)
	if err != nil {
		return result{}, err
	}

	names, err := selection(answer)
	if err != nil {
		return result{}, err
	}
	ctx.Logger().Info("companies selected", slog.Any("companies", names))
	return flowgraph.Update(plan.Patch{
		Companies: &plan.Companies{TargetNames: names},
		Control:   plan.ClearError(s),
	}), nil
}

// recommend generates candidate companies for city, falling back to a
// fixed list when generation fails or yields nothing.
func (p *Planner) recommend(ctx flowgraph.Context, city string) []string {
	text, err := prompt.CompanyRecommendations.Render(map[string]any{
		"city":  city,
		"count": p.recommendations,
	})
	if err != nil {
		ctx.Logger().Warn("recommendation prompt failed", slog.Any("error", err))
		return fallbackCompanies
	}
	raw, err := p.gen.Generate(ctx, text)
	if err != nil {
		ctx.Logger().Warn("recommendation generation failed, using defaults", slog.Any("error", err))
		return fallbackCompanies
	}

	names := splitList(raw)
	if len(names) == 0 {
		return fallbackCompanies
	}
	if len(names) > p.recommendations {
		names = names[:p.recommendations]
	}
	return names
}

// splitList reads a generated list of names separated by commas, 、 or
// newlines, dropping list markers and duplicates.
func splitList(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range listSeparators.Split(raw, -1) {
		name := strings.TrimSpace(listMarker.ReplaceAllString(strings.TrimSpace(part), ""))
		name = strings.Trim(name, "\"'`*")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// selection reads a company selection: a list of names or one string of
// comma separated names.
func selection(v any) ([]string, error) {
	var names []string
	switch a := v.(type) {
	case []string:
		names = a
	case []any:
		for _, item := range a {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: company names must be text, got %T", flowgraph.ErrInvalidResume, item)
			}
			names = append(names, s)
		}
	case string:
		names = strings.Split(strings.ReplaceAll(a, "，", ","), ",")
	default:
		return nil, fmt.Errorf("%w: company selection must be a list, got %T", flowgraph.ErrInvalidResume, v)
	}

	var out []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no company selected", flowgraph.ErrInvalidResume)
	}
	return out, nil
}

// skipResearch clears any research targets.
func (p *Planner) skipResearch(_ flowgraph.Context, s plan.State) (result, error) {
	return flowgraph.Update(plan.Patch{
		Companies: &plan.Companies{},
		Control:   plan.ClearError(s),
	}), nil
}

// geocodeCompanies resolves each target company to an address and
// coordinates in the destination. Companies that cannot be placed are
// kept with Valid unset.
func (p *Planner) geocodeCompanies(ctx flowgraph.Context, s plan.State) (result, error) {
	names := s.Companies.TargetNames
	if len(names) == 0 {
		return fail(s, ErrResearch, "未提供需要地理编码的企业名称")
	}
	city := s.Locations.Hotel.City

	candidates := make([]plan.Company, len(names))
	var g errgroup.Group
	g.SetLimit(p.researchWorkers)
	for i, name := range names {
		g.Go(func() error {
			candidates[i] = p.locateCompany(ctx, name, city)
			return nil
		})
	}
	_ = g.Wait()

	valid := 0
	for _, c := range candidates {
		if c.Valid {
			valid++
		}
	}
	ctx.Logger().Info("companies geocoded", slog.Int("total", len(candidates)), slog.Int("valid", valid))

	return flowgraph.Update(plan.Patch{
		Companies: &plan.Companies{TargetNames: names, Candidates: candidates},
		Control:   plan.ClearError(s),
	}), nil
}

func (p *Planner) locateCompany(ctx flowgraph.Context, name, city string) plan.Company {
	invalid := plan.Company{Name: name}

	text, err := prompt.CompanyAddress.Render(map[string]any{"company_name": name, "city": city})
	if err != nil {
		return invalid
	}
	raw, err := p.gen.Generate(ctx, text)
	if err != nil {
		ctx.Logger().Warn("company address generation failed", slog.String("company", name), slog.Any("error", err))
		return invalid
	}
	address, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	address = strings.TrimSpace(address)
	if address == "" {
		return invalid
	}

	pt, err := p.geocoder.Geocode(ctx, address, city)
	if err != nil {
		ctx.Logger().Warn("company not placed", slog.String("company", name), slog.String("address", address), slog.Any("error", err))
		invalid.DisplayAddress = address
		return invalid
	}

	c := plan.Company{Name: name, Address: address, Valid: true}
	c.Lat, c.Lon = &pt.Lat, &pt.Lon
	return c
}

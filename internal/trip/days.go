package trip

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/tripflow/internal/commute"
	"github.com/randalmurphal/tripflow/internal/geo"
	"github.com/randalmurphal/tripflow/internal/itinerary"
	"github.com/randalmurphal/tripflow/internal/llm"
	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/internal/prompt"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
)

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// planDay1 turns the chosen offer into the arrival leg and asks for the
// rest of the arrival day around the fixed events that fall on it. A
// generation failure leaves day 1 empty and is reported in Control.
func (p *Planner) planDay1(ctx flowgraph.Context, s plan.State) (result, error) {
	chosen := s.Transport.Chosen
	if chosen == nil {
		return fail(s, ErrPlanning, "未选定交通方案，无法进行 Day 1 行程规划")
	}
	params := s.User.Params

	departs, err := chosen.Departs()
	if err != nil {
		return fail(s, ErrPlanning, fmt.Sprintf("交通时间解析失败: %v", err))
	}
	arrives, err := chosen.Arrives()
	if err != nil {
		return fail(s, ErrPlanning, fmt.Sprintf("交通时间解析失败: %v", err))
	}

	hubName := hubAddress(*chosen)
	hub, err := p.locateHub(ctx, hubName, params.DestinationCity)
	if err != nil {
		ctx.Logger().Warn("arrival hub not found", slog.String("hub", hubName), slog.Any("error", err))
		return fail(s, ErrPlanning, "交通精确计算失败：无法对选定班次的枢纽进行地理编码。")
	}

	leg := plan.ItineraryItem{
		Type:        legType(chosen.Type),
		Description: fmt.Sprintf("%s %s (%s → %s)", chosen.Type, chosen.ID, chosen.DepartureHubName, chosen.ArrivalHubName),
		Start:       departs,
		End:         arrives,
		Location: plan.Location{
			City:    params.DestinationCity,
			Address: hubName,
			Name:    hubName,
		}.WithCoordinates(hub.Lat, hub.Lon),
		Details: map[string]any{
			"raw_option": chosen,
			"price":      chosen.Price,
			"duration":   chosen.Duration,
		},
	}

	events := itinerary.OnDate(params.FixedEvents, arrives)
	locs := []plan.Location{leg.Location, s.Locations.Hotel}
	for _, ev := range events {
		locs = append(locs, ev.Location)
	}
	matrix := p.commute.Build(ctx, commute.PointsOf(locs...))

	ctx.Logger().Info("planning arrival day",
		slog.String("date", arrives.Format(plan.DateLayout)),
		slog.Int("fixed_events", len(events)))

	tr := s.Transport
	tr.Selected = &leg
	it := s.Itinerary
	it.FixedEvents = params.FixedEvents

	text, err := prompt.Day1Plan.Render(map[string]any{
		"arrival_transport": leg,
		"day1_fixed_events": events,
		"user_params":       params,
		"commute_matrix":    matrix.Labeled(),
	})
	if err != nil {
		return fail(s, ErrPlanning, err.Error())
	}

	items, err := p.generateItems(ctx, text)
	if err != nil {
		ctx.Logger().Warn("day 1 generation failed", slog.Any("error", err))
		it.Day1 = nil
		return flowgraph.Update(plan.Patch{
			Transport: &tr,
			Itinerary: &it,
			Control:   withError(s, fmt.Sprintf("Day 1 行程生成失败: %v", err)),
		}), nil
	}

	it.Day1 = items
	ctx.Logger().Info("day 1 planned", slog.Int("items", len(items)))
	return flowgraph.Update(plan.Patch{Transport: &tr, Itinerary: &it, Control: plan.ClearError(s)}), nil
}

// locateHub geocodes a hub, retrying railway stations with the 站 suffix
// that geocoders often need.
func (p *Planner) locateHub(ctx flowgraph.Context, name, city string) (*geo.Point, error) {
	pt, err := p.geocoder.Geocode(ctx, name, city)
	if err == nil {
		return pt, nil
	}
	if strings.HasSuffix(name, "站") {
		return nil, err
	}
	return p.geocoder.Geocode(ctx, name+"站", city)
}

func legType(offerType string) string {
	if offerType == plan.OfferTrain {
		return plan.ItemTrain
	}
	return plan.ItemFlight
}

// generateItems asks for an itinerary and reads it as a JSON array.
func (p *Planner) generateItems(ctx flowgraph.Context, text string) ([]plan.ItineraryItem, error) {
	raw, err := p.gen.Generate(ctx, text)
	if err != nil {
		return nil, err
	}
	var items []plan.ItineraryItem
	if err := llm.DecodeJSON(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// planDay23 plans the two days after departure around their fixed events
// and the researched companies. Failures leave both days empty and are
// reported in Control.
func (p *Planner) planDay23(ctx flowgraph.Context, s plan.State) (result, error) {
	params := s.User.Params
	departure, err := params.Departure()
	if err != nil {
		return fail(s, ErrPlanning, fmt.Sprintf("出发日期无效: %v", err))
	}
	day2 := departure.AddDate(0, 0, 1)
	day3 := departure.AddDate(0, 0, 2)

	fixed := s.Itinerary.FixedEvents
	if fixed == nil {
		fixed = params.FixedEvents
	}
	day2Events := itinerary.OnDate(fixed, day2)
	day3Events := itinerary.OnDate(fixed, day3)

	var companies []plan.Company
	for _, c := range s.Companies.Candidates {
		if c.Valid {
			companies = append(companies, c)
		}
	}

	hotel := s.Locations.Hotel
	locs := []plan.Location{hotel}
	for _, ev := range day2Events {
		locs = append(locs, ev.Location)
	}
	for _, ev := range day3Events {
		locs = append(locs, ev.Location)
	}
	for _, c := range companies {
		locs = append(locs, c.Location(hotel.City))
	}
	matrix := p.commute.Build(ctx, commute.PointsOf(locs...))

	it := s.Itinerary
	it.FixedEvents = fixed
	degrade := func(msg string) (result, error) {
		ctx.Logger().Warn("day 2/3 planning failed", slog.String("reason", msg))
		it.Day2, it.Day3 = nil, nil
		return flowgraph.Update(plan.Patch{Itinerary: &it, Control: withError(s, msg)}), nil
	}

	text, err := prompt.Day23Plan.Render(map[string]any{
		"day2_date":      day2.Format(plan.DateLayout),
		"day3_date":      day3.Format(plan.DateLayout),
		"day2_events":    day2Events,
		"day3_events":    day3Events,
		"companies":      companies,
		"user_params":    params,
		"hotel":          hotel,
		"commute_matrix": matrix.Labeled(),
	})
	if err != nil {
		return degrade(err.Error())
	}

	items, err := p.generateItems(ctx, text)
	if err != nil {
		return degrade(fmt.Sprintf("Day 2/3 行程生成失败: %v", err))
	}

	days := itinerary.SplitByDate(items, day2, day3)
	it.Day2, it.Day3 = days[0], days[1]
	ctx.Logger().Info("days 2 and 3 planned",
		slog.Int("day2_items", len(it.Day2)),
		slog.Int("day3_items", len(it.Day3)),
		slog.Int("companies", len(companies)))
	return flowgraph.Update(plan.Patch{Itinerary: &it, Control: plan.ClearError(s)}), nil
}

// buildFinal merges the three days and renders the report, revising the
// previous report when a refinement instruction is pending. The
// instruction is consumed either way.
func (p *Planner) buildFinal(ctx flowgraph.Context, s plan.State) (result, error) {
	control := s.Control
	instruction := strings.TrimSpace(control.RefinementInstruction)
	control.RefinementInstruction = ""

	items, err := itinerary.Merge(s.Itinerary.Days(), s.Itinerary.FixedEvents)
	if err != nil {
		control.ErrorMessage = "前三天行程为空，无法生成最终行程"
		return flowgraph.Update(plan.Patch{Control: &control}), fmt.Errorf("%w: %w", ErrPlanning, err)
	}

	report, err := p.renderer.Render(ctx, items, s.Itinerary.Report, instruction)
	if err != nil {
		control.ErrorMessage = fmt.Sprintf("最终行程表生成失败: %v", err)
		return flowgraph.Update(plan.Patch{Control: &control}), fmt.Errorf("%w: %w", ErrPlanning, err)
	}

	it := s.Itinerary
	it.Final = items
	it.Report = report
	if instruction != "" {
		it.Refinements++
	}
	control.ErrorMessage = ""

	ctx.Logger().Info("report rendered",
		slog.Int("items", len(items)),
		slog.Bool("refined", instruction != ""),
		slog.Int("refinements", it.Refinements))
	return flowgraph.Update(plan.Patch{Itinerary: &it, Control: &control}), nil
}

// userRefine shows the report and loops back with a refinement
// instruction until the traveller sends an empty one or the refinement
// cap is reached.
func (p *Planner) userRefine(ctx flowgraph.Context, s plan.State) (result, error) {
	if s.Itinerary.Refinements >= p.maxRefinements {
		ctx.Logger().Info("refinement limit reached", slog.Int("refinements", s.Itinerary.Refinements))
		return flowgraph.Goto(flowgraph.END, plan.Patch{}), nil
	}

	answer, err := flowgraph.RequestInput(ctx, plan.Prompt{
		Type:        plan.PromptRefine,
		Message:     "是否需要修改行程？如果需要，请输入修改要求；不需要请直接确认。",
		FinalReport: s.Itinerary.Report,
	})
	if err != nil {
		return result{}, err
	}

	var instruction string
	switch a := answer.(type) {
	case nil:
	case string:
		instruction = strings.TrimSpace(a)
	case bool:
		// A confirmation button sends true; there is nothing to change.
	default:
		return result{}, fmt.Errorf("%w: refinement must be text, got %T", flowgraph.ErrInvalidResume, answer)
	}

	control := s.Control
	control.RefinementInstruction = instruction
	if instruction == "" {
		ctx.Logger().Info("itinerary confirmed")
		return flowgraph.Goto(flowgraph.END, plan.Patch{Control: &control}), nil
	}

	ctx.Logger().Info("refinement requested", slog.Int("instruction_len", len(instruction)))
	return flowgraph.Goto(StageBuildFinal, plan.Patch{Control: &control}), nil
}

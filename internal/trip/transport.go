package trip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/randalmurphal/tripflow/internal/geo"
	"github.com/randalmurphal/tripflow/internal/llm"
	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/internal/prompt"
	"github.com/randalmurphal/tripflow/internal/transport"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// trafficQuery searches flights and trains for the departure day. Flight
// searches are retried on transient failures; train search is best effort.
// Only the absence of any offer fails the stage.
func (p *Planner) trafficQuery(ctx flowgraph.Context, s plan.State) (result, error) {
	params := s.User.Params
	origin, dest, date := params.OriginCity, params.DestinationCity, params.DepartureDate
	logger := ctx.Logger().With(
		slog.String("origin", origin),
		slog.String("destination", dest),
		slog.String("date", date))

	retry := p.flightRetry.With(flowerrors.WithOnRetry(func(attempt int, err error) {
		logger.Warn("flight search failed, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
	}))
	flights := flowerrors.WithRetryContext(ctx, retry, func(ctx context.Context) ([]plan.Offer, error) {
		return p.flights.SearchFlights(ctx, origin, dest, date)
	})
	if flights.Err != nil {
		logger.Warn("flight search gave up", slog.Int("attempts", flights.Attempts), slog.Any("error", flights.Err))
	}

	trains, err := p.trains.SearchTrains(ctx, origin, dest, date)
	if err != nil {
		logger.Warn("train search failed, ignoring", slog.Any("error", err))
		trains = nil
	}

	if len(flights.Value)+len(trains) == 0 {
		return fail(s, ErrNoTransport, fmt.Sprintf("未查询到 %s 到 %s 的任何交通选项。", origin, dest))
	}

	logger.Info("transport search complete",
		slog.Int("flights", len(flights.Value)),
		slog.Int("trains", len(trains)))

	return flowgraph.Update(plan.Patch{
		Transport: &plan.Transport{FlightOptions: flights.Value, TrainOptions: trains},
		Control:   plan.ClearError(s),
	}), nil
}

// decision is the generated transport choice.
type decision struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Reasoning string `json:"reasoning"`
}

// selectTransport proposes one offer that reaches the first meeting in
// time. Any failure leaves no proposal, which sends the session to manual
// selection with the reason in Control.
func (p *Planner) selectTransport(ctx flowgraph.Context, s plan.State) (result, error) {
	tr := s.Transport
	tr.Proposed = nil

	proposed, err := p.propose(ctx, s)
	if err != nil {
		ctx.Logger().Warn("no transport proposal", slog.Any("error", err))
		return flowgraph.Update(plan.Patch{Transport: &tr, Control: withError(s, err.Error())}), nil
	}

	ctx.Logger().Info("transport proposed",
		slog.String("type", proposed.Type),
		slog.String("id", proposed.ID))
	tr.Proposed = proposed
	return flowgraph.Update(plan.Patch{Transport: &tr, Control: plan.ClearError(s)}), nil
}

// propose returns the generated choice among all offers. Its errors are
// traveller-facing messages.
func (p *Planner) propose(ctx flowgraph.Context, s plan.State) (*plan.Offer, error) {
	events := s.User.Params.FixedEvents
	if len(events) == 0 {
		return nil, fmt.Errorf("未提供任何固定事务，无法进行交通决策")
	}
	anchor := events[0]
	for _, ev := range events[1:] {
		if ev.Start.Before(anchor.Start) {
			anchor = ev
		}
	}

	options := s.Transport.Options()
	if len(options) == 0 {
		return nil, fmt.Errorf("无可用交通方案")
	}

	// The first offer stands in for every arrival hub when estimating the
	// drive to the first meeting.
	ref := options[0]
	city := anchor.Location.City
	if city == "" {
		city = s.User.Params.DestinationCity
	}
	hub, err := p.geocoder.Geocode(ctx, hubAddress(ref), city)
	if err != nil {
		return nil, fmt.Errorf("到达枢纽 %s 无法地理编码", hubAddress(ref))
	}

	var venue *geo.Point
	if anchor.Location.Geocoded() {
		venue = &geo.Point{Lat: *anchor.Location.Lat, Lon: *anchor.Location.Lon}
	}
	commuteMinutes := p.commute.Build(ctx, []*geo.Point{hub, venue})[0][1]
	latest := anchor.Start.Add(-p.buffer).Add(-minutes(commuteMinutes))

	text, err := prompt.TransportDecision.Render(map[string]any{
		"departure_date":          s.User.Params.DepartureDate,
		"meeting_start":           plan.FormatTime(anchor.Start),
		"arrival_commute_minutes": math.Round(commuteMinutes*10) / 10,
		"latest_hub_arrival":      plan.FormatTime(latest),
		"transport_options":       options,
	})
	if err != nil {
		return nil, err
	}

	raw, err := p.gen.Generate(ctx, text)
	if err != nil {
		ctx.Logger().Warn("transport decision generation failed", slog.Any("error", err))
		return nil, fmt.Errorf("LLM 未能选出有效交通方案")
	}
	var d decision
	if err := llm.DecodeJSON(raw, &d); err != nil {
		ctx.Logger().Warn("transport decision unreadable", slog.Any("error", err))
		return nil, fmt.Errorf("LLM 未能选出有效交通方案")
	}
	for _, o := range options {
		if o.ID == d.ID && o.Type == d.Type {
			ctx.Logger().Debug("transport decision", slog.String("reasoning", d.Reasoning))
			return &o, nil
		}
	}
	return nil, fmt.Errorf("LLM 未能选出有效交通方案")
}

// hubAddress is the geocodable name of an offer's arrival hub.
func hubAddress(o plan.Offer) string {
	if o.ArrivalHubName != "" {
		return o.ArrivalHubName
	}
	return o.ArrivalHub
}

// approvalGate asks the traveller to approve the proposal. Without a
// proposal it routes straight to manual selection.
func (p *Planner) approvalGate(ctx flowgraph.Context, s plan.State) (result, error) {
	proposed := s.Transport.Proposed
	if proposed == nil {
		ctx.Logger().Info("no proposal to approve, asking for manual selection")
		return flowgraph.Goto(StageUserSelectTransport, plan.Patch{}), nil
	}

	answer, err := flowgraph.RequestInput(ctx, plan.Prompt{
		Type:    plan.PromptApproval,
		Message: approvalMessage(*proposed),
	})
	if err != nil {
		return result{}, err
	}

	tr := s.Transport
	approved := isYes(answer)
	tr.Approved = &approved
	if !approved {
		ctx.Logger().Info("proposal rejected")
		return flowgraph.Goto(StageUserSelectTransport, plan.Patch{Transport: &tr}), nil
	}

	chosen := *proposed
	tr.Chosen = &chosen
	ctx.Logger().Info("proposal approved", slog.String("id", chosen.ID))
	return flowgraph.Goto(StagePlanDay1, plan.Patch{Transport: &tr, Control: plan.ClearError(s)}), nil
}

func approvalMessage(o plan.Offer) string {
	return fmt.Sprintf("推荐交通方案：%s %s\n"+
		"  - 出发: %s (从 %s)\n"+
		"  - 抵达: %s (到 %s)\n"+
		"\n"+
		"**请确认是否采纳此方案？** 请输入 **是** 或 **否**。\n",
		orNA(o.Type), orNA(o.ID),
		orNA(o.DepartureTime), orNA(o.DepartureHubName),
		orNA(o.ArrivalTime), orNA(o.ArrivalHubName))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// isYes reads an approval answer. Anything unrecognized is a rejection.
func isYes(v any) bool {
	switch a := v.(type) {
	case bool:
		return a
	case string:
		switch strings.ToLower(strings.TrimSpace(a)) {
		case "是", "y", "yes", "true":
			return true
		}
	}
	return false
}

// userSelectTransport lets the traveller pick any priced offer by its
// number in departure order.
func (p *Planner) userSelectTransport(ctx flowgraph.Context, s plan.State) (result, error) {
	options := transport.Selectable(s.Transport)
	if len(options) == 0 {
		return fail(s, ErrNoTransport, "当前没有可供用户选择的交通方案")
	}

	summaries := make([]string, len(options))
	for i, o := range options {
		summaries[i] = transport.Describe(i, o)
	}

	answer, err := flowgraph.RequestInput(ctx, plan.Prompt{
		Type:    plan.PromptSelectTransport,
		Message: "请选择一个交通方案，可输入该方案对应的数字：",
		Options: summaries,
	})
	if err != nil {
		return result{}, err
	}

	idx, err := optionIndex(answer, len(options))
	if err != nil {
		return result{}, err
	}

	chosen := options[idx]
	approved := true
	tr := s.Transport
	tr.Chosen = &chosen
	tr.Approved = &approved
	ctx.Logger().Info("transport selected", slog.Int("index", idx), slog.String("id", chosen.ID))
	return flowgraph.Update(plan.Patch{Transport: &tr, Control: plan.ClearError(s)}), nil
}

// optionIndex reads a zero-based option number from a resume value.
func optionIndex(v any, n int) (int, error) {
	var idx int
	switch a := v.(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an option number", flowgraph.ErrInvalidResume, a)
		}
		idx = i
	case int:
		idx = a
	case float64:
		if a != math.Trunc(a) {
			return 0, fmt.Errorf("%w: %v is not an option number", flowgraph.ErrInvalidResume, a)
		}
		idx = int(a)
	case json.Number:
		i, err := strconv.Atoi(a.String())
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an option number", flowgraph.ErrInvalidResume, a)
		}
		idx = i
	default:
		return 0, fmt.Errorf("%w: %T is not an option number", flowgraph.ErrInvalidResume, v)
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("%w: option %d out of range [0, %d)", flowgraph.ErrInvalidResume, idx, n)
	}
	return idx, nil
}

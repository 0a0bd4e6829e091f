package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/tripflow/internal/commute"
	"github.com/randalmurphal/tripflow/internal/config"
	"github.com/randalmurphal/tripflow/internal/geo"
	"github.com/randalmurphal/tripflow/internal/llm"
	"github.com/randalmurphal/tripflow/internal/transport"
	"github.com/randalmurphal/tripflow/internal/trip"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
	"github.com/randalmurphal/tripflow/pkg/flowgraph/checkpoint"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// app holds the wired service and everything that must be closed with it.
type app struct {
	settings config.Settings
	logger   *slog.Logger
	store    checkpoint.Store
	service  *trip.Service
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func openStore(s config.Settings) (checkpoint.Store, func() error, error) {
	switch s.Store.Driver {
	case config.StoreMemory:
		return checkpoint.NewMemoryStore(), func() error { return nil }, nil
	default:
		st, err := checkpoint.NewSQLiteStore(s.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		return st, st.Close, nil
	}
}

func newGenerator(ctx context.Context, s config.Settings, logger *slog.Logger) (llm.TextGenerator, func() error, error) {
	switch s.LLM.Provider {
	case config.ProviderGemini:
		c, err := llm.NewGeminiClient(ctx, s.LLMKey(), s.LLM.Model)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case config.ProviderQwen:
		return llm.NewChatClient(llm.Qwen, s.LLMKey(),
			llm.WithChatModel(s.LLM.Model),
			llm.WithChatLogger(logger)), func() error { return nil }, nil
	default:
		return llm.NewChatClient(llm.DeepSeek, s.LLMKey(),
			llm.WithChatModel(s.LLM.Model),
			llm.WithChatLogger(logger)), func() error { return nil }, nil
	}
}

// newApp wires the provider clients, the planner and the service.
func newApp(ctx context.Context, s config.Settings, logger *slog.Logger) (*app, error) {
	a := &app{settings: s, logger: logger}

	store, closeStore, err := openStore(s)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	gen, closeGen, err := newGenerator(ctx, s, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeGen)

	amap, err := geo.NewAmapClient(s.Keys.Amap, s.GeocodeCacheSize, geo.WithLogger(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	builder := commute.NewBuilder(amap,
		commute.WithFallbackMinutes(s.Commute.FallbackMinutes),
		commute.WithWorkers(s.Commute.Workers),
		commute.WithThrottle(s.Commute.Throttle),
		commute.WithRetry(flowerrors.ProviderRetry.With(flowerrors.WithMaxAttempts(s.Commute.MaxAttempts))),
		commute.WithLogger(logger),
		commute.WithMetrics(s.Metrics))

	planner, err := trip.NewPlanner(trip.Collaborators{
		Extractor: llm.NewJSONExtractor(gen, llm.WithExtractorLogger(logger)),
		Generator: gen,
		Geocoder:  amap,
		Commute:   builder,
		Flights:   transport.NewSerpAPIClient(s.Keys.SerpAPI, transport.WithSerpAPILogger(logger)),
		Trains:    transport.NewJuheClient(s.Keys.Juhe, transport.WithJuheLogger(logger)),
	}, trip.WithMaxRefinements(s.MaxRefinements))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.service, err = trip.NewService(planner, store,
		trip.WithServiceLogger(logger),
		trip.WithRunOptions(
			flowgraph.WithObservabilityLogger(logger),
			flowgraph.WithMetrics(s.Metrics),
			flowgraph.WithTracing(s.Tracing)))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

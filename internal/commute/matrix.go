// Package commute builds all-pairs driving time matrices.
//
// A Builder never fails: any pair it cannot measure gets the fallback
// duration, so downstream planning always sees a complete table.
package commute

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/randalmurphal/tripflow/internal/geo"
	"github.com/randalmurphal/tripflow/internal/plan"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
	"github.com/randalmurphal/tripflow/pkg/flowgraph/observability"
)

// Defaults for Builder.
const (
	DefaultFallbackMinutes = 60.0
	DefaultWorkers         = 4
	DefaultThrottle        = 340 * time.Millisecond
)

// Matrix holds driving minutes; Matrix[i][j] is the time from point i to j.
type Matrix [][]float64

// Size returns the number of points.
func (m Matrix) Size() int { return len(m) }

// Labeled renders the matrix keyed by LOC_i labels, the form prompts use.
func (m Matrix) Labeled() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(m))
	for i, row := range m {
		r := make(map[string]float64, len(row))
		for j, v := range row {
			r[Label(j)] = v
		}
		out[Label(i)] = r
	}
	return out
}

// Label names point i in a labeled matrix.
func Label(i int) string {
	return fmt.Sprintf("LOC_%d", i)
}

// PointsOf converts locations to matrix points. Locations without both
// coordinates become nil.
func PointsOf(locs ...plan.Location) []*geo.Point {
	out := make([]*geo.Point, len(locs))
	for i, l := range locs {
		if l.Geocoded() {
			out[i] = &geo.Point{Lat: *l.Lat, Lon: *l.Lon}
		}
	}
	return out
}

// Builder computes matrices through a DriveTimer.
// It is safe for concurrent use; the throttle is shared by every Build.
type Builder struct {
	timer     geo.DriveTimer
	fallback  float64
	workers   int
	limiter   *rate.Limiter
	retry     flowerrors.RetryConfig
	logger    *slog.Logger
	calls     observability.Counter
	fallbacks observability.Counter
}

// Option configures a Builder.
type Option func(*Builder)

// WithFallbackMinutes sets the value used for pairs that cannot be measured.
func WithFallbackMinutes(m float64) Option {
	return func(b *Builder) { b.fallback = m }
}

// WithWorkers bounds concurrent lookups. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = max(n, 1) }
}

// WithThrottle sets the minimum delay between lookups across all workers.
// Zero disables throttling.
func WithThrottle(d time.Duration) Option {
	return func(b *Builder) {
		if d <= 0 {
			b.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		b.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRetry sets the retry policy applied to each pair.
func WithRetry(cfg flowerrors.RetryConfig) Option {
	return func(b *Builder) { b.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithMetrics enables the tripflow.commute.calls and
// tripflow.commute.fallbacks counters.
func WithMetrics(enabled bool) Option {
	return func(b *Builder) {
		if !enabled {
			b.calls, b.fallbacks = observability.NoopCounter{}, observability.NoopCounter{}
			return
		}
		b.calls = observability.NewCounter("tripflow", "tripflow.commute.calls", "Driving time lookups by result")
		b.fallbacks = observability.NewCounter("tripflow", "tripflow.commute.fallbacks", "Matrix cells filled with the fallback duration")
	}
}

// NewBuilder creates a Builder over timer.
func NewBuilder(timer geo.DriveTimer, opts ...Option) *Builder {
	b := &Builder{
		timer:     timer,
		fallback:  DefaultFallbackMinutes,
		workers:   DefaultWorkers,
		limiter:   rate.NewLimiter(rate.Every(DefaultThrottle), 1),
		retry:     flowerrors.ProviderRetry,
		logger:    slog.Default(),
		calls:     observability.NoopCounter{},
		fallbacks: observability.NoopCounter{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fallback returns the value used for unmeasurable pairs.
func (b *Builder) Fallback() float64 { return b.fallback }

// Build returns the N×N matrix for points. Diagonal cells are 0. A nil
// point fills its row and column with the fallback without any lookup.
// Every other pair is looked up once, retrying transient failures; a pair
// that still fails gets the fallback. Cancelling ctx makes the remaining
// pairs fall back.
func (b *Builder) Build(ctx context.Context, points []*geo.Point) Matrix {
	n := len(points)
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}

	var g errgroup.Group
	g.SetLimit(b.workers)

	for i := range n {
		for j := range n {
			if i == j {
				continue
			}
			if points[i] == nil || points[j] == nil {
				m[i][j] = b.fallback
				b.fallbacks.Add(ctx, 1, attribute.String("reason", "missing_coordinates"))
				continue
			}
			from, to := *points[i], *points[j]
			g.Go(func() error {
				m[i][j] = b.lookup(ctx, from, to)
				return nil
			})
		}
	}
	_ = g.Wait()

	return m
}

func (b *Builder) lookup(ctx context.Context, from, to geo.Point) float64 {
	result := flowerrors.WithRetryContext(ctx, b.retry, func(ctx context.Context) (float64, error) {
		if err := b.limiter.Wait(ctx); err != nil {
			return 0, flowerrors.Permanent(err, "throttle")
		}
		minutes, err := b.timer.DriveTime(ctx, from, to)
		if err != nil {
			b.calls.Add(ctx, 1, attribute.String("result", "error"))
			return 0, err
		}
		b.calls.Add(ctx, 1, attribute.String("result", "ok"))
		return minutes, nil
	})

	if result.Err != nil || !usable(result.Value) {
		b.logger.Warn("drive time unavailable, using fallback",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.Int("attempts", result.Attempts),
			slog.Any("error", result.Err),
			slog.Float64("fallback_minutes", b.fallback))
		b.fallbacks.Add(ctx, 1, attribute.String("reason", "lookup_failed"))
		return b.fallback
	}
	return result.Value
}

// usable rejects NaN, infinities and negative durations.
func usable(v float64) bool {
	return v >= 0 && v <= maxMinutes
}

// maxMinutes is a week of driving; anything longer is treated as garbage.
const maxMinutes = 7 * 24 * 60

package commute_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/tripflow/internal/commute"
	"github.com/randalmurphal/tripflow/internal/geo"
	"github.com/randalmurphal/tripflow/internal/plan"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// scriptedTimer returns lat(from)*100 + lat(to) minutes, after consuming
// any scripted failures for that pair.
type scriptedTimer struct {
	mu       sync.Mutex
	calls    map[[2]float64]int
	failures map[[2]float64][]error
	result   func(from, to geo.Point) float64
}

func newScriptedTimer() *scriptedTimer {
	return &scriptedTimer{
		calls:    make(map[[2]float64]int),
		failures: make(map[[2]float64][]error),
		result: func(from, to geo.Point) float64 {
			return from.Lat*100 + to.Lat
		},
	}
}

func (s *scriptedTimer) failPair(from, to float64, errs ...error) {
	s.failures[[2]float64{from, to}] = errs
}

func (s *scriptedTimer) DriveTime(_ context.Context, from, to geo.Point) (float64, error) {
	s.mu.Lock()
	key := [2]float64{from.Lat, to.Lat}
	s.calls[key]++
	if errs := s.failures[key]; len(errs) > 0 {
		s.failures[key] = errs[1:]
		s.mu.Unlock()
		return 0, errs[0]
	}
	s.mu.Unlock()
	return s.result(from, to), nil
}

func (s *scriptedTimer) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func pts(lats ...float64) []*geo.Point {
	out := make([]*geo.Point, len(lats))
	for i, lat := range lats {
		if !math.IsNaN(lat) {
			out[i] = &geo.Point{Lat: lat, Lon: 100}
		}
	}
	return out
}

func fastRetry() flowerrors.RetryConfig {
	return flowerrors.ProviderRetry.With(
		flowerrors.WithInitialBackoff(time.Millisecond),
		flowerrors.WithMaxBackoff(2*time.Millisecond),
		flowerrors.WithJitter(0),
	)
}

func newBuilder(timer geo.DriveTimer, opts ...commute.Option) *commute.Builder {
	base := []commute.Option{
		commute.WithThrottle(0),
		commute.WithRetry(fastRetry()),
		commute.WithWorkers(3),
	}
	return commute.NewBuilder(timer, append(base, opts...)...)
}

func TestBuild_ShapeAndDiagonal(t *testing.T) {
	timer := newScriptedTimer()
	b := newBuilder(timer)

	for n := 0; n <= 5; n++ {
		lats := make([]float64, n)
		for i := range lats {
			lats[i] = float64(i + 1)
		}
		m := b.Build(context.Background(), pts(lats...))

		require.Len(t, m, n)
		for i := range n {
			require.Len(t, m[i], n)
			assert.Zero(t, m[i][i])
			for j := range n {
				assert.False(t, math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0))
				assert.GreaterOrEqual(t, m[i][j], 0.0)
			}
		}
	}
}

func TestBuild_CellsMatchTheirPair(t *testing.T) {
	timer := newScriptedTimer()
	b := newBuilder(timer, commute.WithWorkers(8))

	m := b.Build(context.Background(), pts(1, 2, 3, 4))

	for i := range 4 {
		for j := range 4 {
			if i == j {
				continue
			}
			assert.Equal(t, float64(i+1)*100+float64(j+1), m[i][j], "cell %d,%d", i, j)
		}
	}
	// Each ordered pair is looked up exactly once.
	assert.Equal(t, 12, timer.total())
}

func TestBuild_MissingCoordinatesShortCircuit(t *testing.T) {
	timer := newScriptedTimer()
	b := newBuilder(timer, commute.WithFallbackMinutes(45))

	m := b.Build(context.Background(), pts(1, math.NaN(), 3))

	assert.Equal(t, 45.0, m[0][1])
	assert.Equal(t, 45.0, m[1][0])
	assert.Equal(t, 45.0, m[1][2])
	assert.Equal(t, 45.0, m[2][1])
	assert.Zero(t, m[1][1])
	assert.Equal(t, 103.0, m[0][2])
	assert.Equal(t, 2, timer.total(), "only the pairs between located points are looked up")
}

func TestBuild_RetriesTransientFailures(t *testing.T) {
	timer := newScriptedTimer()
	timer.failPair(1, 2,
		&flowerrors.RateLimitError{Provider: "amap", Info: "CUQPS_HAS_EXCEEDED_THE_LIMIT"},
		&flowerrors.HTTPError{StatusCode: 503},
	)
	b := newBuilder(timer)

	m := b.Build(context.Background(), pts(1, 2))

	assert.Equal(t, 102.0, m[0][1])
	assert.Equal(t, 201.0, m[1][0])
	assert.Equal(t, 3, timer.calls[[2]float64{1, 2}])
}

func TestBuild_FallbackOnPermanentFailure(t *testing.T) {
	timer := newScriptedTimer()
	timer.failPair(1, 2, flowerrors.Permanent(errors.New("INVALID_PARAMS"), "amap"))
	b := newBuilder(timer)

	m := b.Build(context.Background(), pts(1, 2))

	assert.Equal(t, commute.DefaultFallbackMinutes, m[0][1])
	assert.Equal(t, 201.0, m[1][0])
	assert.Equal(t, 1, timer.calls[[2]float64{1, 2}])
}

func TestBuild_FallbackWhenRetriesExhausted(t *testing.T) {
	timer := newScriptedTimer()
	limit := &flowerrors.RateLimitError{Provider: "amap", Info: "LIMIT"}
	timer.failPair(1, 2, limit, limit, limit, limit, limit, limit)
	b := newBuilder(timer, commute.WithRetry(fastRetry().With(flowerrors.WithMaxAttempts(3))))

	m := b.Build(context.Background(), pts(1, 2))

	assert.Equal(t, commute.DefaultFallbackMinutes, m[0][1])
	assert.Equal(t, 3, timer.calls[[2]float64{1, 2}])
}

func TestBuild_RejectsUnusableDurations(t *testing.T) {
	timer := newScriptedTimer()
	timer.result = func(from, _ geo.Point) float64 {
		if from.Lat == 1 {
			return -5
		}
		return math.Inf(1)
	}
	b := newBuilder(timer, commute.WithFallbackMinutes(30))

	m := b.Build(context.Background(), pts(1, 2))
	assert.Equal(t, 30.0, m[0][1])
	assert.Equal(t, 30.0, m[1][0])
}

func TestBuild_CancelledContextStillCompletes(t *testing.T) {
	timer := newScriptedTimer()
	b := newBuilder(timer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := b.Build(ctx, pts(1, 2, 3))
	for i := range 3 {
		for j := range 3 {
			if i != j {
				assert.Equal(t, commute.DefaultFallbackMinutes, m[i][j])
			}
		}
	}
	assert.Zero(t, timer.total())
}

func TestBuild_ThrottleSpacesCalls(t *testing.T) {
	timer := newScriptedTimer()
	b := newBuilder(timer, commute.WithThrottle(15*time.Millisecond), commute.WithWorkers(4))

	start := time.Now()
	b.Build(context.Background(), pts(1, 2, 3))
	elapsed := time.Since(start)

	// Six lookups with one burst token: at least five gaps.
	assert.GreaterOrEqual(t, elapsed, 5*15*time.Millisecond)
	assert.Equal(t, 6, timer.total())
}

func TestMatrix_Labeled(t *testing.T) {
	m := commute.Matrix{{0, 12.5}, {14, 0}}
	labeled := m.Labeled()

	assert.Equal(t, map[string]map[string]float64{
		"LOC_0": {"LOC_0": 0, "LOC_1": 12.5},
		"LOC_1": {"LOC_0": 14, "LOC_1": 0},
	}, labeled)
	assert.Equal(t, 2, m.Size())
}

func TestPointsOf(t *testing.T) {
	hotel := plan.Location{Name: "Hotel"}.WithCoordinates(22.5, 114.0)
	event := plan.Location{Name: "会议"}

	points := commute.PointsOf(hotel, event)
	require.Len(t, points, 2)
	require.NotNil(t, points[0])
	assert.Equal(t, geo.Point{Lat: 22.5, Lon: 114.0}, *points[0])
	assert.Nil(t, points[1])
}

func TestBuilder_WithMetricsDoesNotPanic(t *testing.T) {
	b := newBuilder(newScriptedTimer(), commute.WithMetrics(true))
	assert.NotPanics(t, func() {
		b.Build(context.Background(), pts(1, math.NaN()))
	})
	assert.Equal(t, commute.DefaultFallbackMinutes, b.Fallback())
}

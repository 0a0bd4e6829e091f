package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig describes how often and how patiently an operation is retried.
type RetryConfig struct {
	// MaxAttempts counts the first call. Values below 1 mean one attempt.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// Jitter spreads each delay by up to ±Jitter of its length.
	Jitter float64

	// RetryableFunc replaces IsRetryable when set.
	RetryableFunc func(error) bool

	// OnRetry is called before each backoff with the 1-based attempt that
	// just failed.
	OnRetry func(attempt int, err error)
}

// Presets. Copy and adjust them with With.
var (
	// DefaultRetry makes three attempts, doubling from one second.
	DefaultRetry = RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2,
		Jitter:         0.1,
	}

	// ProviderRetry suits rate-limited map and search providers.
	ProviderRetry = RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     16 * time.Second,
		BackoffFactor:  2,
		Jitter:         0.1,
	}

	NoRetry = RetryConfig{MaxAttempts: 1}
)

// RetryResult is the outcome of WithRetryContext.
type RetryResult[T any] struct {
	Value    T
	Err      error // *CategorizedError when set
	Attempts int
	Duration time.Duration
}

// Delay returns the pause that follows failed attempt n (1-based),
// before jitter.
func (cfg RetryConfig) Delay(n int) time.Duration {
	d := cfg.InitialBackoff
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * factor)
		if cfg.MaxBackoff > 0 && d >= cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
	}
	if cfg.MaxBackoff > 0 && d > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return d
}

func (cfg RetryConfig) jittered(n int) time.Duration {
	d := cfg.Delay(n)
	if cfg.Jitter <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*cfg.Jitter*(2*rand.Float64()-1))
}

func (cfg RetryConfig) retryable(err error) bool {
	if cfg.RetryableFunc != nil {
		return cfg.RetryableFunc(err)
	}
	return IsRetryable(err)
}

// WithRetryContext calls fn until it succeeds, fails with an error that
// is not retryable, runs out of attempts, or ctx ends. Failures are
// returned as a *CategorizedError carrying the attempt count.
func WithRetryContext[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) RetryResult[T] {
	start := time.Now()
	attempts := max(cfg.MaxAttempts, 1)

	done := func(v T, n int, err *CategorizedError) RetryResult[T] {
		r := RetryResult[T]{Value: v, Attempts: n, Duration: time.Since(start)}
		if err != nil {
			r.Err = err
		}
		return r
	}
	cancelled := func(n int, during string) RetryResult[T] {
		var zero T
		return done(zero, n, &CategorizedError{Err: ctx.Err(), Category: CategoryPermanent, Retries: n, Context: during})
	}

	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return cancelled(n-1, "context cancelled")
		}

		v, err := fn(ctx)
		if err == nil {
			return done(v, n, nil)
		}
		if !cfg.retryable(err) {
			return done(v, n, &CategorizedError{Err: err, Category: Categorize(err), Retries: n})
		}
		if n == attempts {
			return done(v, n, &CategorizedError{Err: err, Category: Categorize(err), Retries: n, Context: "max retries exceeded"})
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(n, err)
		}
		timer := time.NewTimer(cfg.jittered(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return cancelled(n, "context cancelled during backoff")
		case <-timer.C:
		}
	}
}

// RetryOption adjusts a RetryConfig.
type RetryOption func(*RetryConfig)

func WithMaxAttempts(n int) RetryOption {
	return func(c *RetryConfig) { c.MaxAttempts = n }
}

func WithInitialBackoff(d time.Duration) RetryOption {
	return func(c *RetryConfig) { c.InitialBackoff = d }
}

func WithMaxBackoff(d time.Duration) RetryOption {
	return func(c *RetryConfig) { c.MaxBackoff = d }
}

func WithJitter(j float64) RetryOption {
	return func(c *RetryConfig) { c.Jitter = j }
}

func WithRetryableFunc(fn func(error) bool) RetryOption {
	return func(c *RetryConfig) { c.RetryableFunc = fn }
}

func WithOnRetry(fn func(attempt int, err error)) RetryOption {
	return func(c *RetryConfig) { c.OnRetry = fn }
}

// With returns a copy of cfg with opts applied. Presets are never modified.
func (cfg RetryConfig) With(opts ...RetryOption) RetryConfig {
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Package pipeline runs the ingestion and analysis passes over the watchlist.
package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trogers1052/alphastream-pipeline/internal/database"
	"github.com/trogers1052/alphastream-pipeline/internal/metrics"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
	"go.uber.org/zap"
)

// EventPublisher announces pipeline progress to downstream consumers
type EventPublisher interface {
	PublishPricesIngested(ctx context.Context, asset *models.Asset, inserted int64) error
	PublishSignalUpdated(ctx context.Context, ticker string, s *models.Signal) error
}

// CacheInvalidator drops cached dashboard payloads once signals change
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type runtime struct {
	log        *zap.Logger
	publisher  EventPublisher
	cache      CacheInvalidator
	metrics    *metrics.Recorder
	newBackOff func() backoff.BackOff
	retryable  func(error) bool
}

// Option configures an Ingestor or Analyzer
type Option func(*runtime)

// WithLogger sets the logger. The default discards output.
func WithLogger(log *zap.Logger) Option {
	return func(r *runtime) {
		if log != nil {
			r.log = log
		}
	}
}

// WithPublisher publishes PRICES_INGESTED and SIGNAL_UPDATED events
func WithPublisher(p EventPublisher) Option {
	return func(r *runtime) { r.publisher = p }
}

// WithCache invalidates the dashboard cache after signals are written
func WithCache(c CacheInvalidator) Option {
	return func(r *runtime) { r.cache = c }
}

// WithMetrics records run counters and durations
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *runtime) { r.metrics = m }
}

// WithRetry bounds store writes to maxRetries retries with exponential backoff starting at initial
func WithRetry(maxRetries int, initial time.Duration) Option {
	return func(r *runtime) {
		r.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxElapsedTime = 0
			return backoff.WithMaxRetries(b, uint64(maxRetries))
		}
	}
}

func newRuntime(opts []Option) runtime {
	r := runtime{log: zap.NewNop(), retryable: database.IsTransient}
	WithRetry(3, 200*time.Millisecond)(&r)
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// retry runs op under the configured backoff. It stops early when ctx ends or op fails with
// an error that cannot succeed on retry, such as a constraint violation.
func (r *runtime) retry(ctx context.Context, name string, op func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && (ctx.Err() != nil || !r.retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(r.newBackOff(), ctx), func(err error, wait time.Duration) {
		r.log.Warn("retrying store write",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
}

func (r *runtime) invalidateCache(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		r.metrics.RecordError("cache_invalidate")
		r.log.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

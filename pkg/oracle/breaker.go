package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/anamnesis/pkg/types"
)

// BreakerConfig holds circuit breaker settings for oracle calls.
type BreakerConfig struct {
	Enabled          bool
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// BreakerExtractor wraps an Extractor with a circuit breaker so a hard-down
// oracle fails fast instead of stacking up timed-out requests. An open
// circuit is reported as ErrUnavailable.
type BreakerExtractor struct {
	inner Extractor
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerExtractor wraps inner with a circuit breaker. Only transient
// failures count toward tripping; malformed-output errors do not.
func NewBreakerExtractor(inner Extractor, cfg BreakerConfig, log *slog.Logger) *BreakerExtractor {
	if log == nil {
		log = slog.Default()
	}
	ratio := cfg.ReadyToTripRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	settings := gobreaker.Settings{
		Name:        "extraction-oracle",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerExtractor{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerExtractor) Extract(ctx context.Context, text string) (*types.Extraction, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Extract(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("extraction circuit open: %w", errors.Join(ErrUnavailable, err))
		}
		return nil, err
	}
	return result.(*types.Extraction), nil
}

func (b *BreakerExtractor) Close() error { return b.inner.Close() }

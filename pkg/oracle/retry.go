package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/soundprediction/anamnesis/pkg/types"
)

// RetryConfig controls the bounded retry applied to transient oracle
// failures. The engine performs at most MaxRetries additional attempts;
// malformed-output errors are never retried.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// DefaultRetryConfig is one retry after a short backoff, matching the
// engine's policy of not hiding a struggling upstream behind long retry
// loops.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 1, InitialDelay: 500 * time.Millisecond}
}

// RetryExtractor wraps an Extractor with the bounded retry policy.
type RetryExtractor struct {
	inner Extractor
	cfg   RetryConfig
}

// NewRetryExtractor wraps inner with cfg, applying defaults to zero values.
func NewRetryExtractor(inner Extractor, cfg RetryConfig) *RetryExtractor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultRetryConfig().InitialDelay
	}
	return &RetryExtractor{inner: inner, cfg: cfg}
}

func (r *RetryExtractor) Extract(ctx context.Context, text string) (*types.Extraction, error) {
	var lastErr error
	delay := r.cfg.InitialDelay

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return nil, fmt.Errorf("retry backoff: %w", ctx.Err())
			}
		}

		extraction, err := r.inner.Extract(ctx, text)
		if err == nil {
			return extraction, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("extraction failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

func (r *RetryExtractor) Close() error { return r.inner.Close() }

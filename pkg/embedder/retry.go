package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/soundprediction/anamnesis/pkg/oracle"
)

// RetryClient applies the same bounded retry policy to embedding calls
// that the extraction oracle uses: transient failures get at most
// MaxRetries extra attempts with doubling backoff, everything else
// returns immediately.
type RetryClient struct {
	inner Client
	cfg   oracle.RetryConfig
}

// NewRetryClient wraps inner with cfg, applying defaults to zero values.
func NewRetryClient(inner Client, cfg oracle.RetryConfig) *RetryClient {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = oracle.DefaultRetryConfig().InitialDelay
	}
	return &RetryClient{inner: inner, cfg: cfg}
}

func (r *RetryClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
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

		vectors, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !oracle.IsTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

func (r *RetryClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := r.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding oracle returned no vector")
	}
	return vectors[0], nil
}

func (r *RetryClient) Dimensions() int { return r.inner.Dimensions() }

func (r *RetryClient) Close() error { return r.inner.Close() }

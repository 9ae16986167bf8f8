package oracle

import (
	"context"

	"github.com/soundprediction/anamnesis/pkg/types"
)

// Extractor is the extraction oracle consumed by the ingestion pipeline.
type Extractor interface {
	// Extract returns candidate entities and relationships found in the
	// text. Implementations must not mutate any engine state.
	Extract(ctx context.Context, text string) (*types.Extraction, error)

	// Close releases provider resources.
	Close() error
}

// Config holds provider-independent extractor settings.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

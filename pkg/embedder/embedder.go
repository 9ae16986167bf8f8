// Package embedder adapts external embedding services. Like the extraction
// oracle, the embedding generator is a black box: text in, fixed-length
// float vector out. Transient failures share the oracle error taxonomy
// (oracle.ErrUnavailable / oracle.ErrTimeout).
package embedder

import "context"

// Client is the embedding oracle consumed by ingestion and retrieval.
type Client interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle embeds one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the fixed vector length this client produces.
	Dimensions() int

	// Close releases provider resources.
	Close() error
}

// Config holds provider-independent embedder settings.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

package embedder

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soundprediction/anamnesis/pkg/oracle"
)

const (
	defaultEmbeddingModel      = string(openai.SmallEmbedding3)
	defaultEmbeddingDimensions = 1536
)

// OpenAIClient calls an OpenAI-compatible embeddings endpoint.
type OpenAIClient struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIClient creates an embedding client from config.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultEmbeddingModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultEmbeddingDimensions
	}
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		dimensions: dims,
	}
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	// Newlines degrade embedding quality on some providers.
	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = strings.ReplaceAll(t, "\n", " ")
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.model,
		Input: cleaned,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", oracle.ClassifyTransportError(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding oracle returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func (c *OpenAIClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding oracle returned no vector")
	}
	return vectors[0], nil
}

func (c *OpenAIClient) Dimensions() int { return c.dimensions }

func (c *OpenAIClient) Close() error { return nil }

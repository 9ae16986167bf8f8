package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"

	"github.com/soundprediction/anamnesis/pkg/types"
)

const defaultExtractionModel = "gpt-4o-mini"

const extractionSystemPrompt = `You extract knowledge-graph candidates from text.
Return ONLY a JSON object with this shape:
{
  "entities": [
    {"name": "...", "label": "Person|Emotion|Place|Belief|Event|Object", "summary": "...", "confidence": 0.0}
  ],
  "relationships": [
    {"source_entity": "...", "target_entity": "...", "relation": "UPPER_SNAKE_CASE", "fact": "one sentence", "confidence": 0.0}
  ]
}
Entity names must be short canonical noun phrases. Relationship source and
target must exactly match an entity name from the same response. Confidence
is your belief in [0,1] that the candidate is correct.`

// OpenAIExtractor calls an OpenAI-compatible chat completion endpoint and
// parses its JSON answer. Any OpenAI-compatible base URL works, which
// covers local inference servers as well.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

// NewOpenAIExtractor creates an extractor from config.
func NewOpenAIExtractor(cfg Config) *OpenAIExtractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultExtractionModel
	}
	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (o *OpenAIExtractor) Extract(ctx context.Context, text string) (*types.Extraction, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction completion: %w", ClassifyTransportError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction returned no choices: %w", types.ErrExtractionFailed)
	}
	return parseExtraction(resp.Choices[0].Message.Content)
}

func (o *OpenAIExtractor) Close() error { return nil }

// parseExtraction decodes the oracle's JSON answer, repairing slightly
// malformed output before giving up with types.ErrExtractionFailed.
func parseExtraction(content string) (*types.Extraction, error) {
	var x types.Extraction
	if err := json.Unmarshal([]byte(content), &x); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return nil, fmt.Errorf("unparseable oracle output: %w", types.ErrExtractionFailed)
		}
		if err := json.Unmarshal([]byte(repaired), &x); err != nil {
			return nil, fmt.Errorf("unparseable oracle output after repair: %w", types.ErrExtractionFailed)
		}
	}
	for i, e := range x.Entities {
		if e.Name == "" {
			return nil, fmt.Errorf("entity %d has no name: %w", i, types.ErrExtractionFailed)
		}
	}
	for i, r := range x.Relationships {
		if r.SourceEntity == "" || r.TargetEntity == "" || r.Relation == "" {
			return nil, fmt.Errorf("relationship %d is incomplete: %w", i, types.ErrExtractionFailed)
		}
	}
	return &x, nil
}

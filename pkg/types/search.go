package types

import "time"

// SearchConfig holds tunables for hybrid retrieval.
type SearchConfig struct {
	// Limit is the maximum number of results to return.
	Limit int
	// SemanticWeight and LexicalWeight control score fusion. Each score
	// list is normalized to [0,1] independently before the weighted sum.
	SemanticWeight float64
	LexicalWeight  float64
	// CenterDepth bounds the BFS expansion for center-node search.
	CenterDepth int
	// MinScore drops results whose fused score falls below it.
	MinScore float64
}

// WithDefaults returns a copy of the config with zero values replaced by
// defaults.
func (c *SearchConfig) WithDefaults() *SearchConfig {
	out := SearchConfig{}
	if c != nil {
		out = *c
	}
	if out.Limit <= 0 {
		out.Limit = 10
	}
	if out.SemanticWeight == 0 && out.LexicalWeight == 0 {
		out.SemanticWeight = 0.5
		out.LexicalWeight = 0.5
	}
	if out.CenterDepth <= 0 {
		out.CenterDepth = 2
	}
	return &out
}

// SearchResult is one ranked fact returned by the retrieval engine.
type SearchResult struct {
	// Score is the fused, normalized relevance score.
	Score float64 `json:"score"`
	// Fact is the source fact text (edge fact, or node summary for entity
	// results).
	Fact string `json:"fact"`

	EdgeID   string `json:"edge_id,omitempty"`
	NodeID   string `json:"node_id,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Relation string `json:"relation,omitempty"`

	ValidFrom  time.Time  `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	RecordedAt time.Time  `json:"recorded_at,omitempty"`
}

package anamnesis

import (
	"context"
	"fmt"

	"github.com/soundprediction/anamnesis/pkg/graph"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// Search ranks the tenant's currently-valid facts and entities against
// the query. Reads run against the latest committed snapshot and never
// block on the tenant lock.
func (c *Client) Search(ctx context.Context, tenantID, query string, cfg *types.SearchConfig) ([]types.SearchResult, error) {
	return c.searcher.Search(ctx, tenantID, query, c.searchConfig(cfg))
}

// CenterNodeSearch restricts scope to the subgraph within the configured
// depth of the center node before scoring. Used for "what is related to
// X" queries.
func (c *Client) CenterNodeSearch(ctx context.Context, tenantID, centerID, query string, cfg *types.SearchConfig) ([]types.SearchResult, error) {
	return c.searcher.CenterNodeSearch(ctx, tenantID, centerID, query, c.searchConfig(cfg))
}

// GetSubgraph expands breadth-first from the center node up to depth hops
// over currently-valid edges.
func (c *Client) GetSubgraph(ctx context.Context, tenantID, centerID string, depth int) (*graph.Subgraph, error) {
	return c.store.GetSubgraph(ctx, tenantID, centerID, depth, nil)
}

// GetUserEpisodes returns the user's episodes ordered by session number.
// A limit of 0 or less returns all of them.
func (c *Client) GetUserEpisodes(ctx context.Context, tenantID, userID string, limit int) ([]*types.Episode, error) {
	episodes, err := c.seq.Episodes(ctx, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get episodes for user %s: %w", userID, err)
	}
	return episodes, nil
}

// searchConfig overlays per-call settings on the engine defaults.
func (c *Client) searchConfig(cfg *types.SearchConfig) *types.SearchConfig {
	if cfg == nil {
		return c.cfg.Search
	}
	merged := *cfg
	if merged.Limit <= 0 {
		merged.Limit = c.cfg.Search.Limit
	}
	if merged.SemanticWeight == 0 && merged.LexicalWeight == 0 {
		merged.SemanticWeight = c.cfg.Search.SemanticWeight
		merged.LexicalWeight = c.cfg.Search.LexicalWeight
	}
	if merged.CenterDepth <= 0 {
		merged.CenterDepth = c.cfg.Search.CenterDepth
	}
	return &merged
}

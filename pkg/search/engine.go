package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/anamnesis/pkg/embedder"
	"github.com/soundprediction/anamnesis/pkg/graph"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// Engine ranks a tenant's facts and entities against a natural-language
// query. It reads through the graph store and embeds queries through the
// embedding oracle; a nil embedder degrades to purely lexical scoring.
type Engine struct {
	store *graph.Store
	emb   embedder.Client
	log   *slog.Logger
}

// NewEngine builds a retrieval engine over the given store and embedder.
func NewEngine(store *graph.Store, emb embedder.Client, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, emb: emb, log: log.With("component", "search")}
}

// candidate is one scorable item: a currently-valid edge or an entity node.
type candidate struct {
	text string
	edge *types.Edge
	node *types.Node
}

// Search ranks all currently-valid facts and entities in the tenant.
func (e *Engine) Search(ctx context.Context, tenantID, query string, cfg *types.SearchConfig) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query: %w", types.ErrInvalidArgument)
	}
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}
	cfg = cfg.WithDefaults()

	ok, err := e.store.HasTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("search tenant %s: %w", tenantID, err)
	}
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, types.ErrNotFound)
	}

	snap, err := e.store.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("search tenant %s: %w", tenantID, err)
	}
	return e.rank(ctx, query, cfg, collect(snap.ValidEdges(), snap.Nodes))
}

// CenterNodeSearch ranks facts and entities within cfg.CenterDepth hops
// of the center node. An unknown center is ErrNotFound.
func (e *Engine) CenterNodeSearch(ctx context.Context, tenantID, centerID, query string, cfg *types.SearchConfig) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query: %w", types.ErrInvalidArgument)
	}
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}
	if centerID == "" {
		return nil, fmt.Errorf("center node id: %w", types.ErrInvalidArgument)
	}
	cfg = cfg.WithDefaults()

	sub, err := e.store.GetSubgraph(ctx, tenantID, centerID, cfg.CenterDepth, nil)
	if err != nil {
		return nil, fmt.Errorf("center-node search tenant %s: %w", tenantID, err)
	}
	return e.rank(ctx, query, cfg, collect(sub.Edges, sub.Nodes))
}

// collect builds the candidate list: open edges scored on their fact
// text, entity nodes scored on name plus summary. Nodes with neither are
// skipped.
func collect(edges []*types.Edge, nodes []*types.Node) []candidate {
	candidates := make([]candidate, 0, len(edges)+len(nodes))
	for _, edge := range edges {
		if edge.Fact == "" {
			continue
		}
		candidates = append(candidates, candidate{text: edge.Fact, edge: edge})
	}
	for _, node := range nodes {
		text := strings.TrimSpace(node.Name + " " + node.Summary)
		if text == "" {
			continue
		}
		candidates = append(candidates, candidate{text: text, node: node})
	}
	return candidates
}

func (e *Engine) rank(ctx context.Context, query string, cfg *types.SearchConfig, candidates []candidate) ([]types.SearchResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	semantic, err := e.semanticScores(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.text
	}
	scorer := newLexicalScorer(texts)
	queryTokens := tokenize(query)
	lexical := make([]float64, len(candidates))
	for i := range candidates {
		lexical[i] = scorer.score(i, queryTokens)
	}

	semantic = normalize(semantic)
	lexical = normalize(lexical)

	results := make([]types.SearchResult, 0, len(candidates))
	for i, c := range candidates {
		score := cfg.SemanticWeight*semantic[i] + cfg.LexicalWeight*lexical[i]
		if score < cfg.MinScore {
			continue
		}
		results = append(results, toResult(c, score))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].RecordedAt.Equal(results[j].RecordedAt) {
			return results[i].RecordedAt.After(results[j].RecordedAt)
		}
		return resultID(results[i]) < resultID(results[j])
	})
	if len(results) > cfg.Limit {
		results = results[:cfg.Limit]
	}
	e.log.Debug("search ranked", "candidates", len(candidates), "returned", len(results))
	return results, nil
}

// semanticScores embeds the query once and scores every candidate by
// cosine similarity. With no embedder the list stays all zero and
// fusion falls back to the lexical component.
func (e *Engine) semanticScores(ctx context.Context, query string, candidates []candidate) ([]float64, error) {
	scores := make([]float64, len(candidates))
	if e.emb == nil {
		return scores, nil
	}
	queryVec, err := e.emb.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	for i, c := range candidates {
		switch {
		case c.edge != nil:
			scores[i] = types.CosineSimilarity(queryVec, c.edge.Embedding)
		case c.node != nil:
			scores[i] = types.CosineSimilarity(queryVec, c.node.Embedding)
		}
	}
	return scores, nil
}

func toResult(c candidate, score float64) types.SearchResult {
	if c.edge != nil {
		return types.SearchResult{
			Score:      score,
			Fact:       c.edge.Fact,
			EdgeID:     c.edge.ID,
			SourceID:   c.edge.SourceID,
			TargetID:   c.edge.TargetID,
			Relation:   c.edge.Relation,
			ValidFrom:  c.edge.ValidFrom,
			ValidUntil: c.edge.ValidUntil,
			RecordedAt: c.edge.RecordedAt,
		}
	}
	fact := c.node.Summary
	if fact == "" {
		fact = c.node.Name
	}
	return types.SearchResult{
		Score:      score,
		Fact:       fact,
		NodeID:     c.node.ID,
		RecordedAt: c.node.UpdatedAt,
	}
}

func resultID(r types.SearchResult) string {
	if r.EdgeID != "" {
		return r.EdgeID
	}
	return r.NodeID
}

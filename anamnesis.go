package anamnesis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/anamnesis/pkg/driver"
	"github.com/soundprediction/anamnesis/pkg/embedder"
	"github.com/soundprediction/anamnesis/pkg/graph"
	"github.com/soundprediction/anamnesis/pkg/oracle"
	"github.com/soundprediction/anamnesis/pkg/resolver"
	"github.com/soundprediction/anamnesis/pkg/search"
	"github.com/soundprediction/anamnesis/pkg/sequencer"
	"github.com/soundprediction/anamnesis/pkg/tenant"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// Sentinel errors, re-exported so callers do not need to import pkg/types.
var (
	ErrNotFound         = types.ErrNotFound
	ErrConflict         = types.ErrConflict
	ErrInvalidArgument  = types.ErrInvalidArgument
	ErrExtractionFailed = types.ErrExtractionFailed
)

// Engine is the interface the surrounding service layer consumes. The
// Client is the only implementation; the interface exists so transports
// and tests can fake the engine.
type Engine interface {
	// IngestEpisode extracts entities and relationships from text and
	// merges them into the user's graph as one atomic commit.
	IngestEpisode(ctx context.Context, tenantID, userID, text string, reference time.Time) (*types.Episode, error)

	// EnsureUser creates the user's node if it does not exist yet and
	// returns it.
	EnsureUser(ctx context.Context, tenantID, userID string) (*types.Node, error)

	// Search ranks the tenant's currently-valid facts and entities
	// against a natural-language query.
	Search(ctx context.Context, tenantID, query string, cfg *types.SearchConfig) ([]types.SearchResult, error)

	// CenterNodeSearch restricts search scope to the subgraph reachable
	// from the center node within the configured depth.
	CenterNodeSearch(ctx context.Context, tenantID, centerID, query string, cfg *types.SearchConfig) ([]types.SearchResult, error)

	// GetUserEpisodes returns the user's episodes in session order.
	GetUserEpisodes(ctx context.Context, tenantID, userID string, limit int) ([]*types.Episode, error)

	// GetSubgraph expands breadth-first from a center node.
	GetSubgraph(ctx context.Context, tenantID, centerID string, depth int) (*graph.Subgraph, error)

	// DeleteTenant removes all of the tenant's data and reports what was
	// deleted. A tenant with no data is ErrNotFound.
	DeleteTenant(ctx context.Context, tenantID string) (*driver.DeleteStats, error)

	// Close releases the driver and oracle connections.
	Close(ctx context.Context) error
}

// Config holds engine tunables. Zero values take defaults.
type Config struct {
	// MinConfidence drops extracted candidates below it before resolution.
	MinConfidence float64
	// SimilarityThreshold is the entity-resolution embedding cutoff.
	SimilarityThreshold float64
	// EmbedConcurrency bounds parallel embedding oracle calls per episode.
	EmbedConcurrency int
	// Search provides retrieval defaults, overridable per call.
	Search *types.SearchConfig
}

func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.MinConfidence <= 0 {
		out.MinConfidence = 0.5
	}
	if out.SimilarityThreshold <= 0 {
		out.SimilarityThreshold = resolver.DefaultSimilarityThreshold
	}
	if out.EmbedConcurrency <= 0 {
		out.EmbedConcurrency = 4
	}
	out.Search = out.Search.WithDefaults()
	return &out
}

// Client is the engine facade.
type Client struct {
	store     *graph.Store
	locks     *tenant.Manager
	seq       *sequencer.Sequencer
	res       *resolver.Resolver
	searcher  *search.Engine
	extractor oracle.Extractor
	embedder  embedder.Client
	cfg       *Config
	log       *slog.Logger
}

var _ Engine = (*Client)(nil)

// NewClient assembles the engine over the given driver and oracles. The
// embedding client may be nil, degrading retrieval to lexical-only and
// entity resolution to name matching.
func NewClient(drv driver.Driver, extractor oracle.Extractor, emb embedder.Client, cfg *Config, log *slog.Logger) (*Client, error) {
	if drv == nil {
		return nil, fmt.Errorf("driver is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extraction oracle is required")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	store := graph.NewStore(drv, log)
	return &Client{
		store:     store,
		locks:     tenant.NewManager(),
		seq:       sequencer.New(drv),
		res:       resolver.New(resolver.Config{SimilarityThreshold: cfg.SimilarityThreshold}),
		searcher:  search.NewEngine(store, emb, log),
		extractor: extractor,
		embedder:  emb,
		cfg:       cfg,
		log:       log.With("component", "engine"),
	}, nil
}

// DeleteTenant removes every node, edge, and episode belonging to the
// tenant. It takes the tenant's exclusive lock, so in-flight ingestion
// for the tenant finishes or fails before teardown begins.
func (c *Client) DeleteTenant(ctx context.Context, tenantID string) (*driver.DeleteStats, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}
	release, err := c.locks.Acquire(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("delete tenant %s: %w", tenantID, err)
	}
	defer release()

	stats, err := c.store.DeleteTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("delete tenant %s: %w", tenantID, err)
	}
	return stats, nil
}

// Close releases the driver and both oracle clients.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if err := c.extractor.Close(); err != nil {
		firstErr = err
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.store.Driver().Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

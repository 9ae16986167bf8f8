package driver

import (
	"context"

	"github.com/soundprediction/anamnesis/pkg/types"
)

// Provider identifies a persistence backend implementation.
type Provider string

const (
	ProviderMemory Provider = "memory"
	ProviderBadger Provider = "badger"
	ProviderNeo4j  Provider = "neo4j"
)

// Batch is one atomic unit of graph mutation. Upserts replace any existing
// record with the same id; closed edges are carried here as upserts of the
// prior edge with ValidUntil set.
type Batch struct {
	TenantID string

	Nodes    []*types.Node
	Edges    []*types.Edge
	Episodes []*types.Episode
}

// Empty reports whether the batch carries no writes.
func (b *Batch) Empty() bool {
	return len(b.Nodes) == 0 && len(b.Edges) == 0 && len(b.Episodes) == 0
}

// DeleteStats reports what a tenant teardown removed.
type DeleteStats struct {
	Nodes    int `json:"deleted_nodes"`
	Edges    int `json:"deleted_edges"`
	Episodes int `json:"deleted_episodes"`
}

// Driver is the persistence backend consumed by the graph store and the
// session sequencer. Implementations must be safe for concurrent use;
// serialization of mutators per tenant is the caller's responsibility
// (pkg/tenant), but Apply and DeleteTenant must each be atomic on their
// own.
//
// Read methods return types.ErrNotFound (wrapped) for unknown ids. Returned
// records are private copies the caller may retain and modify.
type Driver interface {
	Provider() Provider

	GetNode(ctx context.Context, tenantID, nodeID string) (*types.Node, error)
	// GetNodes returns every node for the tenant.
	GetNodes(ctx context.Context, tenantID string) ([]*types.Node, error)
	// GetEdges returns every edge for the tenant, open and closed.
	GetEdges(ctx context.Context, tenantID string) ([]*types.Edge, error)
	// GetEdgesByNode returns every edge touching the node as source or
	// target.
	GetEdgesByNode(ctx context.Context, tenantID, nodeID string) ([]*types.Edge, error)

	// GetEpisodes returns the user's episodes ordered by session number
	// ascending. limit <= 0 means no limit.
	GetEpisodes(ctx context.Context, tenantID, userID string, limit int) ([]*types.Episode, error)
	CountEpisodes(ctx context.Context, tenantID, userID string) (int, error)

	// HasTenant reports whether the tenant has any data at all.
	HasTenant(ctx context.Context, tenantID string) (bool, error)

	// Apply commits the batch atomically.
	Apply(ctx context.Context, batch *Batch) error
	// DeleteTenant removes all tenant data wholesale and returns what was
	// deleted, or types.ErrNotFound if the tenant had no data.
	DeleteTenant(ctx context.Context, tenantID string) (*DeleteStats, error)

	Close(ctx context.Context) error
}

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/soundprediction/anamnesis/pkg/driver"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// MaxTraversalDepth bounds subgraph expansion. Requests above it (or
// negative, i.e. unbounded) are rejected before any I/O.
const MaxTraversalDepth = 10

// Store owns node and edge storage for all tenants, layered over a
// persistence driver.
type Store struct {
	drv driver.Driver
	log *slog.Logger
}

// NewStore creates a store over the given driver.
func NewStore(drv driver.Driver, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{drv: drv, log: log.With("component", "graph")}
}

// Driver exposes the underlying persistence backend.
func (s *Store) Driver() driver.Driver { return s.drv }

// GetNode fetches a single node.
func (s *Store) GetNode(ctx context.Context, tenantID, nodeID string) (*types.Node, error) {
	return s.drv.GetNode(ctx, tenantID, nodeID)
}

// HasTenant reports whether the tenant has any data.
func (s *Store) HasTenant(ctx context.Context, tenantID string) (bool, error) {
	return s.drv.HasTenant(ctx, tenantID)
}

// DeleteTenant removes all tenant data wholesale. The caller must hold the
// tenant lock.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) (*driver.DeleteStats, error) {
	stats, err := s.drv.DeleteTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.log.Info("tenant deleted",
		"tenant_id", tenantID,
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"episodes", stats.Episodes)
	return stats, nil
}

// Subgraph is the result of a bounded traversal.
type Subgraph struct {
	Nodes []*types.Node
	Edges []*types.Edge
}

// GetSubgraph expands breadth-first from centerID over currently-valid
// edges, up to depth hops. Depth 0 returns just the center node. The
// relevance filter, when non-nil, prunes nodes other than the center:
// a rejected node is neither returned nor traversed through.
func (s *Store) GetSubgraph(ctx context.Context, tenantID, centerID string, depth int, filter func(*types.Node) bool) (*Subgraph, error) {
	if depth < 0 || depth > MaxTraversalDepth {
		return nil, fmt.Errorf("traversal depth %d out of range [0,%d]: %w", depth, MaxTraversalDepth, types.ErrInvalidArgument)
	}

	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return subgraphFromSnapshot(snap, centerID, depth, filter)
}

func subgraphFromSnapshot(snap *Snapshot, centerID string, depth int, filter func(*types.Node) bool) (*Subgraph, error) {
	center := snap.Node(centerID)
	if center == nil {
		return nil, fmt.Errorf("center node %s in tenant %s: %w", centerID, snap.TenantID, types.ErrNotFound)
	}

	// Adjacency over currently-valid edges only; closed history does not
	// contribute to proximity.
	adjacent := make(map[string][]*types.Edge)
	for _, e := range snap.ValidEdges() {
		adjacent[e.SourceID] = append(adjacent[e.SourceID], e)
		adjacent[e.TargetID] = append(adjacent[e.TargetID], e)
	}

	included := map[string]bool{centerID: true}
	frontier := []string{centerID}
	var edges []*types.Edge
	seenEdges := make(map[string]bool)

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, e := range adjacent[id] {
				other := e.TargetID
				if other == id {
					other = e.SourceID
				}
				node := snap.Node(other)
				if node == nil {
					continue
				}
				if filter != nil && other != centerID && !filter(node) {
					continue
				}
				if !seenEdges[e.ID] {
					seenEdges[e.ID] = true
					edges = append(edges, e)
				}
				if !included[other] {
					included[other] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	sub := &Subgraph{Edges: edges}
	ids := make([]string, 0, len(included))
	for id := range included {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		sub.Nodes = append(sub.Nodes, snap.Node(id))
	}
	return sub, nil
}

// CurrentlyValidEdges returns the open edges touching the node, ordered by
// recorded_at descending.
func (s *Store) CurrentlyValidEdges(ctx context.Context, tenantID, nodeID string) ([]*types.Edge, error) {
	if _, err := s.drv.GetNode(ctx, tenantID, nodeID); err != nil {
		return nil, err
	}
	all, err := s.drv.GetEdgesByNode(ctx, tenantID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("valid edges for node %s: %w", nodeID, err)
	}
	var open []*types.Edge
	for _, e := range all {
		if e.IsCurrentlyValid() {
			open = append(open, e)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].RecordedAt.Equal(open[j].RecordedAt) {
			return open[i].RecordedAt.After(open[j].RecordedAt)
		}
		return open[i].ID < open[j].ID
	})
	return open, nil
}

// UpsertNode stages and commits a single node merge. Intended for direct
// store use; episode ingestion stages many writes on one Mutation instead.
// The caller must hold the tenant lock.
func (s *Store) UpsertNode(ctx context.Context, tenantID string, candidate *types.Node) (*types.Node, error) {
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("upsert node in tenant %s: %w", tenantID, err)
	}
	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	m := s.NewMutation(snap)
	node := m.UpsertNode(candidate)
	if err := s.Commit(ctx, m); err != nil {
		return nil, err
	}
	return node, nil
}

// AddEdge stages and commits a single bi-temporal edge insertion, closing
// any contradicted prior edge. The caller must hold the tenant lock.
func (s *Store) AddEdge(ctx context.Context, tenantID string, edge *types.Edge) (*types.Edge, error) {
	if err := edge.Validate(); err != nil {
		return nil, fmt.Errorf("add edge in tenant %s: %w", tenantID, err)
	}
	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	m := s.NewMutation(snap)
	result, _ := m.AddEdge(edge, "")
	if err := s.Commit(ctx, m); err != nil {
		return nil, err
	}
	return result, nil
}

// Commit applies the mutation's staged writes in one atomic batch.
func (s *Store) Commit(ctx context.Context, m *Mutation) error {
	batch := m.Batch()
	if batch.Empty() {
		return nil
	}
	if err := s.drv.Apply(ctx, batch); err != nil {
		return fmt.Errorf("commit batch for tenant %s: %w", batch.TenantID, err)
	}
	s.log.Debug("batch committed",
		"tenant_id", batch.TenantID,
		"nodes", len(batch.Nodes),
		"edges", len(batch.Edges),
		"episodes", len(batch.Episodes))
	return nil
}

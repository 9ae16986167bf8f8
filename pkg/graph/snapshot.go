package graph

import (
	"context"
	"fmt"

	"github.com/soundprediction/anamnesis/pkg/types"
)

// Snapshot is a consistent view of one tenant's subgraph, read once and
// then navigated in memory. Entity resolution and mutation staging both
// work off a snapshot so their decisions are deterministic for a fixed
// graph state.
type Snapshot struct {
	TenantID string
	Nodes    []*types.Node
	Edges    []*types.Edge

	nodesByID    map[string]*types.Node
	openByTriple map[string]*types.Edge
}

// Snapshot reads the tenant's full subgraph.
func (s *Store) Snapshot(ctx context.Context, tenantID string) (*Snapshot, error) {
	nodes, err := s.drv.GetNodes(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("snapshot tenant %s: %w", tenantID, err)
	}
	edges, err := s.drv.GetEdges(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("snapshot tenant %s: %w", tenantID, err)
	}
	return newSnapshot(tenantID, nodes, edges), nil
}

func newSnapshot(tenantID string, nodes []*types.Node, edges []*types.Edge) *Snapshot {
	snap := &Snapshot{
		TenantID:     tenantID,
		Nodes:        nodes,
		Edges:        edges,
		nodesByID:    make(map[string]*types.Node, len(nodes)),
		openByTriple: make(map[string]*types.Edge),
	}
	for _, n := range nodes {
		snap.nodesByID[n.ID] = n
	}
	for _, e := range edges {
		if e.IsCurrentlyValid() {
			snap.openByTriple[e.TripleKey()] = e
		}
	}
	return snap
}

// Node returns the node with the given id, or nil.
func (sn *Snapshot) Node(id string) *types.Node {
	return sn.nodesByID[id]
}

// OpenEdge returns the currently-valid edge for the triple, or nil.
func (sn *Snapshot) OpenEdge(sourceID, targetID, relation string) *types.Edge {
	probe := types.Edge{SourceID: sourceID, TargetID: targetID, Relation: relation}
	return sn.openByTriple[probe.TripleKey()]
}

// ValidEdges returns every currently-valid edge in the snapshot.
func (sn *Snapshot) ValidEdges() []*types.Edge {
	out := make([]*types.Edge, 0, len(sn.openByTriple))
	for _, e := range sn.Edges {
		if e.IsCurrentlyValid() {
			out = append(out, e)
		}
	}
	return out
}

package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soundprediction/anamnesis/pkg/types"
)

// MemoryDriver is an in-process implementation of Driver backed by maps.
// It is the default backend for tests and embedded use. A single RWMutex
// guards all tenants; Apply holds the write lock for the whole batch, so
// readers observe batches atomically.
type MemoryDriver struct {
	mu      sync.RWMutex
	tenants map[string]*tenantData
}

type tenantData struct {
	nodes    map[string]*types.Node
	edges    map[string]*types.Edge
	episodes []*types.Episode
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{tenants: make(map[string]*tenantData)}
}

func (d *MemoryDriver) Provider() Provider { return ProviderMemory }

func (d *MemoryDriver) tenant(tenantID string) *tenantData {
	td, ok := d.tenants[tenantID]
	if !ok {
		td = &tenantData{
			nodes: make(map[string]*types.Node),
			edges: make(map[string]*types.Edge),
		}
		d.tenants[tenantID] = td
	}
	return td
}

func (d *MemoryDriver) GetNode(ctx context.Context, tenantID, nodeID string) (*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	td, ok := d.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, types.ErrNotFound)
	}
	n, ok := td.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s in tenant %s: %w", nodeID, tenantID, types.ErrNotFound)
	}
	return copyNode(n), nil
}

func (d *MemoryDriver) GetNodes(ctx context.Context, tenantID string) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	td, ok := d.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	nodes := make([]*types.Node, 0, len(td.nodes))
	for _, n := range td.nodes {
		nodes = append(nodes, copyNode(n))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

func (d *MemoryDriver) GetEdges(ctx context.Context, tenantID string) ([]*types.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	td, ok := d.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	edges := make([]*types.Edge, 0, len(td.edges))
	for _, e := range td.edges {
		edges = append(edges, copyEdge(e))
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges, nil
}

func (d *MemoryDriver) GetEdgesByNode(ctx context.Context, tenantID, nodeID string) ([]*types.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	td, ok := d.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	var edges []*types.Edge
	for _, e := range td.edges {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			edges = append(edges, copyEdge(e))
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges, nil
}

func (d *MemoryDriver) GetEpisodes(ctx context.Context, tenantID, userID string, limit int) ([]*types.Episode, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	td, ok := d.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	var eps []*types.Episode
	for _, ep := range td.episodes {
		if ep.UserID == userID {
			eps = append(eps, copyEpisode(ep))
		}
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].SessionNumber < eps[j].SessionNumber })
	if limit > 0 && len(eps) > limit {
		eps = eps[:limit]
	}
	return eps, nil
}

func (d *MemoryDriver) CountEpisodes(ctx context.Context, tenantID, userID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	td, ok := d.tenants[tenantID]
	if !ok {
		return 0, nil
	}
	count := 0
	for _, ep := range td.episodes {
		if ep.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (d *MemoryDriver) HasTenant(ctx context.Context, tenantID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	td, ok := d.tenants[tenantID]
	if !ok {
		return false, nil
	}
	return len(td.nodes) > 0 || len(td.edges) > 0 || len(td.episodes) > 0, nil
}

func (d *MemoryDriver) Apply(ctx context.Context, batch *Batch) error {
	if batch.TenantID == "" {
		return fmt.Errorf("apply batch: %w", types.ErrEmptyTenantID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	td := d.tenant(batch.TenantID)
	for _, n := range batch.Nodes {
		td.nodes[n.ID] = copyNode(n)
	}
	for _, e := range batch.Edges {
		td.edges[e.ID] = copyEdge(e)
	}
	for _, ep := range batch.Episodes {
		td.episodes = append(td.episodes, copyEpisode(ep))
	}
	return nil
}

func (d *MemoryDriver) DeleteTenant(ctx context.Context, tenantID string) (*DeleteStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	td, ok := d.tenants[tenantID]
	if !ok || (len(td.nodes) == 0 && len(td.edges) == 0 && len(td.episodes) == 0) {
		return nil, fmt.Errorf("delete tenant %s: %w", tenantID, types.ErrNotFound)
	}
	stats := &DeleteStats{
		Nodes:    len(td.nodes),
		Edges:    len(td.edges),
		Episodes: len(td.episodes),
	}
	delete(d.tenants, tenantID)
	return stats, nil
}

func (d *MemoryDriver) Close(ctx context.Context) error { return nil }

func copyNode(n *types.Node) *types.Node {
	c := *n
	c.Labels = append([]string(nil), n.Labels...)
	c.Embedding = append([]float32(nil), n.Embedding...)
	return &c
}

func copyEdge(e *types.Edge) *types.Edge {
	c := *e
	c.Embedding = append([]float32(nil), e.Embedding...)
	c.EpisodeIDs = append([]string(nil), e.EpisodeIDs...)
	if e.ValidUntil != nil {
		t := *e.ValidUntil
		c.ValidUntil = &t
	}
	return &c
}

func copyEpisode(ep *types.Episode) *types.Episode {
	c := *ep
	c.NodeIDs = append([]string(nil), ep.NodeIDs...)
	c.EdgeIDs = append([]string(nil), ep.EdgeIDs...)
	return &c
}

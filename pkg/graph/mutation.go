package graph

import (
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/anamnesis/pkg/driver"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// Mutation stages writes against a snapshot. Staged state shadows the
// snapshot, so a node upserted twice within one mutation merges with its
// own earlier stage, and an edge added after a contradicting one sees the
// close. Nothing is persisted until Store.Commit.
type Mutation struct {
	tenantID string
	snap     *Snapshot
	now      func() time.Time

	stagedNodes map[string]*types.Node
	stagedOpen  map[string]*types.Edge // triple key -> open edge (staged or snapshot)
	stagedEdges map[string]*types.Edge // edge id -> staged write
	nodeOrder   []string
	edgeOrder   []string
	episodes    []*types.Episode
}

// NewMutation starts staging against the snapshot.
func (s *Store) NewMutation(snap *Snapshot) *Mutation {
	return &Mutation{
		tenantID:    snap.TenantID,
		snap:        snap,
		now:         time.Now,
		stagedNodes: make(map[string]*types.Node),
		stagedOpen:  make(map[string]*types.Edge),
		stagedEdges: make(map[string]*types.Edge),
	}
}

// WithClock overrides the mutation's time source. Used by tests.
func (m *Mutation) WithClock(now func() time.Time) *Mutation {
	m.now = now
	return m
}

// Node returns the staged or snapshot node with the given id.
func (m *Mutation) Node(id string) *types.Node {
	if n, ok := m.stagedNodes[id]; ok {
		return n
	}
	return m.snap.Node(id)
}

func (m *Mutation) openEdge(key string) *types.Edge {
	if e, ok := m.stagedOpen[key]; ok {
		return e
	}
	return m.snap.openByTriple[key]
}

// UpsertNode merges the candidate into the tenant graph. When the
// candidate's id matches an existing node, scalar fields follow
// last-writer-wins (empty incoming values do not clobber), the label set is
// unioned, and updated_at advances. Otherwise a new node is created,
// assigning an id when the candidate has none.
func (m *Mutation) UpsertNode(candidate *types.Node) *types.Node {
	now := m.now().UTC()

	if candidate.ID != "" {
		if existing := m.Node(candidate.ID); existing != nil {
			merged := *existing
			if candidate.Name != "" {
				merged.Name = candidate.Name
			}
			if candidate.Summary != "" {
				merged.Summary = candidate.Summary
			}
			if len(candidate.Embedding) > 0 {
				merged.Embedding = candidate.Embedding
			}
			merged.Labels = types.UnionLabels(existing.Labels, candidate.Labels)
			merged.UpdatedAt = now
			m.stageNode(&merged)
			return &merged
		}
	}

	created := *candidate
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.TenantID = m.tenantID
	created.CreatedAt = now
	created.UpdatedAt = now
	m.stageNode(&created)
	return &created
}

func (m *Mutation) stageNode(n *types.Node) {
	if _, ok := m.stagedNodes[n.ID]; !ok {
		m.nodeOrder = append(m.nodeOrder, n.ID)
	}
	m.stagedNodes[n.ID] = n
}

// AddEdge inserts a bi-temporal edge. If a currently-valid edge for the
// same (source, target, relation) triple exists:
//
//   - identical normalized fact: no new edge; the call is idempotent and
//     only appends episode provenance to the existing edge;
//   - different fact: the prior edge is closed with valid_until equal to
//     the new edge's valid_from, then the new edge is inserted.
//
// The returned bool reports whether a new edge was created.
func (m *Mutation) AddEdge(edge *types.Edge, episodeID string) (*types.Edge, bool) {
	now := m.now().UTC()
	key := edge.TripleKey()

	if prior := m.openEdge(key); prior != nil {
		if types.NormalizeFact(prior.Fact) == types.NormalizeFact(edge.Fact) {
			updated := *prior
			if episodeID != "" && !containsString(updated.EpisodeIDs, episodeID) {
				updated.EpisodeIDs = append(append([]string(nil), updated.EpisodeIDs...), episodeID)
			}
			m.stageEdge(&updated)
			m.stagedOpen[key] = &updated
			return &updated, false
		}

		closed := *prior
		closed.Close(edge.ValidFrom)
		m.stageEdge(&closed)
	}

	created := *edge
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.TenantID = m.tenantID
	if created.ValidFrom.IsZero() {
		created.ValidFrom = now
	}
	created.RecordedAt = now
	created.ValidUntil = nil
	if episodeID != "" && !containsString(created.EpisodeIDs, episodeID) {
		created.EpisodeIDs = append(append([]string(nil), created.EpisodeIDs...), episodeID)
	}
	m.stageEdge(&created)
	m.stagedOpen[key] = &created
	return &created, true
}

func (m *Mutation) stageEdge(e *types.Edge) {
	if _, ok := m.stagedEdges[e.ID]; !ok {
		m.edgeOrder = append(m.edgeOrder, e.ID)
	}
	m.stagedEdges[e.ID] = e
}

// AddEpisode stages an episode record for the same atomic commit as the
// graph writes it produced.
func (m *Mutation) AddEpisode(ep *types.Episode) {
	m.episodes = append(m.episodes, ep)
}

// Batch materializes the staged writes in stable order.
func (m *Mutation) Batch() *driver.Batch {
	batch := &driver.Batch{TenantID: m.tenantID, Episodes: m.episodes}
	for _, id := range m.nodeOrder {
		batch.Nodes = append(batch.Nodes, m.stagedNodes[id])
	}
	for _, id := range m.edgeOrder {
		batch.Edges = append(batch.Edges, m.stagedEdges[id])
	}
	return batch
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

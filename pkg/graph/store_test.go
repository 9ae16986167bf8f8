package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/anamnesis/pkg/driver"
	"github.com/soundprediction/anamnesis/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(driver.NewMemoryDriver(), nil)
}

func seedNodes(t *testing.T, s *Store, tenantID string, names ...string) map[string]*types.Node {
	t.Helper()
	ctx := context.Background()
	out := make(map[string]*types.Node, len(names))
	for _, name := range names {
		n, err := s.UpsertNode(ctx, tenantID, &types.Node{
			TenantID: tenantID,
			Name:     name,
			Labels:   []string{"Person"},
		})
		require.NoError(t, err)
		out[name] = n
	}
	return out
}

func TestUpsertNodeMergesScalarsAndLabels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.UpsertNode(ctx, "t1", &types.Node{
		TenantID: "t1",
		Name:     "manager",
		Labels:   []string{"Person"},
		Summary:  "the user's manager",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	merged, err := s.UpsertNode(ctx, "t1", &types.Node{
		ID:       created.ID,
		TenantID: "t1",
		Name:     "Manager",
		Labels:   []string{"Colleague"},
	})
	require.NoError(t, err)

	// Later writer wins for scalars, labels are unioned, and the empty
	// incoming summary does not clobber.
	assert.Equal(t, "Manager", merged.Name)
	assert.Equal(t, "the user's manager", merged.Summary)
	assert.Equal(t, []string{"Person", "Colleague"}, merged.Labels)
	assert.True(t, merged.UpdatedAt.After(created.CreatedAt) || merged.UpdatedAt.Equal(created.CreatedAt))

	nodes, err := s.Driver().GetNodes(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestRoundTripDepthZero(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.UpsertNode(ctx, "t1", &types.Node{
		TenantID: "t1",
		Name:     "anxious",
		Labels:   []string{"Emotion"},
		Summary:  "a recurring feeling",
	})
	require.NoError(t, err)

	sub, err := s.GetSubgraph(ctx, "t1", created.ID, 0, nil)
	require.NoError(t, err)
	require.Len(t, sub.Nodes, 1)
	assert.Empty(t, sub.Edges)
	assert.Equal(t, created, sub.Nodes[0])
}

func TestAddEdgeClosesContradictedFact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	nodes := seedNodes(t, s, "t1", "manager", "anxious")

	t1 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	first, err := s.AddEdge(ctx, "t1", &types.Edge{
		TenantID:  "t1",
		SourceID:  nodes["manager"].ID,
		TargetID:  nodes["anxious"].ID,
		Relation:  "TRIGGERS",
		Fact:      "manager criticism triggers anxiety",
		ValidFrom: t1,
	})
	require.NoError(t, err)
	require.True(t, first.IsCurrentlyValid())

	second, err := s.AddEdge(ctx, "t1", &types.Edge{
		TenantID:  "t1",
		SourceID:  nodes["manager"].ID,
		TargetID:  nodes["anxious"].ID,
		Relation:  "TRIGGERS",
		Fact:      "manager is now supportive",
		ValidFrom: t2,
	})
	require.NoError(t, err)
	require.True(t, second.IsCurrentlyValid())

	all, err := s.Driver().GetEdges(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, all, 2)

	var open, closed *types.Edge
	for _, e := range all {
		if e.IsCurrentlyValid() {
			open = e
		} else {
			closed = e
		}
	}
	require.NotNil(t, open)
	require.NotNil(t, closed)
	assert.Equal(t, second.ID, open.ID)
	assert.Equal(t, first.ID, closed.ID)
	// Closing sets valid_until to the new edge's valid_from.
	assert.Equal(t, t2, *closed.ValidUntil)
}

func TestAddEdgeIdempotentOnSameFact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	nodes := seedNodes(t, s, "t1", "manager", "anxious")

	edge := &types.Edge{
		TenantID: "t1",
		SourceID: nodes["manager"].ID,
		TargetID: nodes["anxious"].ID,
		Relation: "TRIGGERS",
		Fact:     "Manager criticism triggers anxiety.",
	}
	_, err := s.AddEdge(ctx, "t1", edge)
	require.NoError(t, err)

	// Same fact modulo casing and punctuation: no new edge.
	again := &types.Edge{
		TenantID: "t1",
		SourceID: nodes["manager"].ID,
		TargetID: nodes["anxious"].ID,
		Relation: "TRIGGERS",
		Fact:     "manager criticism triggers ANXIETY",
	}
	_, err = s.AddEdge(ctx, "t1", again)
	require.NoError(t, err)

	all, err := s.Driver().GetEdges(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.True(t, all[0].IsCurrentlyValid())
}

func TestSingleOpenEdgePerTripleUnderRepeatedContradiction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	nodes := seedNodes(t, s, "t1", "a", "b")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	facts := []string{"fact one", "fact two", "fact three", "fact four"}
	for i, fact := range facts {
		_, err := s.AddEdge(ctx, "t1", &types.Edge{
			TenantID:  "t1",
			SourceID:  nodes["a"].ID,
			TargetID:  nodes["b"].ID,
			Relation:  "BELIEVES",
			Fact:      fact,
			ValidFrom: base.AddDate(0, i, 0),
		})
		require.NoError(t, err)
	}

	all, err := s.Driver().GetEdges(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, all, len(facts))

	openCount := 0
	for _, e := range all {
		if e.IsCurrentlyValid() {
			openCount++
			assert.Equal(t, "fact four", e.Fact)
		}
	}
	assert.Equal(t, 1, openCount)
}

func TestGetSubgraphBoundsAndFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	nodes := seedNodes(t, s, "t1", "user", "manager", "anxious", "office")

	link := func(src, dst, rel, fact string) {
		_, err := s.AddEdge(ctx, "t1", &types.Edge{
			TenantID: "t1",
			SourceID: nodes[src].ID,
			TargetID: nodes[dst].ID,
			Relation: rel,
			Fact:     fact,
		})
		require.NoError(t, err)
	}
	link("user", "manager", "KNOWS", "user knows manager")
	link("manager", "anxious", "TRIGGERS", "manager triggers anxiety")
	link("manager", "office", "WORKS_AT", "manager works at the office")

	sub, err := s.GetSubgraph(ctx, "t1", nodes["user"].ID, 1, nil)
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 2) // user + manager
	assert.Len(t, sub.Edges, 1)

	sub, err = s.GetSubgraph(ctx, "t1", nodes["user"].ID, 2, nil)
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 4)
	assert.Len(t, sub.Edges, 3)

	// Filter prunes traversal through rejected nodes.
	sub, err = s.GetSubgraph(ctx, "t1", nodes["user"].ID, 2, func(n *types.Node) bool {
		return n.Name != "manager"
	})
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 1)

	_, err = s.GetSubgraph(ctx, "t1", nodes["user"].ID, -1, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = s.GetSubgraph(ctx, "t1", nodes["user"].ID, MaxTraversalDepth+1, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = s.GetSubgraph(ctx, "t1", "missing", 1, nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCurrentlyValidEdgesOrderedByRecordedAtDesc(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	nodes := seedNodes(t, s, "t1", "a", "b", "c")

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	snap, err := s.Snapshot(ctx, "t1")
	require.NoError(t, err)

	tick := 0
	m := s.NewMutation(snap).WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	m.AddEdge(&types.Edge{SourceID: nodes["a"].ID, TargetID: nodes["b"].ID, Relation: "KNOWS", Fact: "a knows b"}, "")
	m.AddEdge(&types.Edge{SourceID: nodes["a"].ID, TargetID: nodes["c"].ID, Relation: "KNOWS", Fact: "a knows c"}, "")
	require.NoError(t, s.Commit(ctx, m))

	edges, err := s.CurrentlyValidEdges(ctx, "t1", nodes["a"].ID)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "a knows c", edges[0].Fact)
	assert.Equal(t, "a knows b", edges[1].Fact)

	_, err = s.CurrentlyValidEdges(ctx, "t1", "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMutationProvenanceAppendOnReassert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	nodes := seedNodes(t, s, "t1", "a", "b")

	snap, err := s.Snapshot(ctx, "t1")
	require.NoError(t, err)
	m := s.NewMutation(snap)
	m.AddEdge(&types.Edge{SourceID: nodes["a"].ID, TargetID: nodes["b"].ID, Relation: "KNOWS", Fact: "a knows b"}, "ep1")
	require.NoError(t, s.Commit(ctx, m))

	snap, err = s.Snapshot(ctx, "t1")
	require.NoError(t, err)
	m = s.NewMutation(snap)
	edge, created := m.AddEdge(&types.Edge{SourceID: nodes["a"].ID, TargetID: nodes["b"].ID, Relation: "KNOWS", Fact: "A knows B"}, "ep2")
	assert.False(t, created)
	assert.Equal(t, []string{"ep1", "ep2"}, edge.EpisodeIDs)
}

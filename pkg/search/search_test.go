package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/anamnesis/pkg/driver"
	"github.com/soundprediction/anamnesis/pkg/graph"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// vectorEmbedder maps exact texts to fixed vectors. Unknown texts embed
// to the zero vector.
type vectorEmbedder struct {
	vectors map[string][]float32
}

func (v *vectorEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if vec, ok := v.vectors[t]; ok {
			out[i] = vec
		} else {
			out[i] = make([]float32, 3)
		}
	}
	return out, nil
}

func (v *vectorEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := v.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (v *vectorEmbedder) Dimensions() int { return 3 }
func (v *vectorEmbedder) Close() error    { return nil }

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func seedTenant(t *testing.T, drv driver.Driver) {
	t.Helper()

	closedAt := baseTime.Add(-time.Hour)
	batch := &driver.Batch{
		TenantID: "t1",
		Nodes: []*types.Node{
			{ID: "user", TenantID: "t1", Name: "alice", Labels: []string{"User", "Person", "Entity"}, Summary: "User profile for alice", UpdatedAt: baseTime},
			{ID: "manager", TenantID: "t1", Name: "manager", Labels: []string{"Person", "Entity"}, Summary: "alice's manager at work", Embedding: []float32{1, 0, 0}, UpdatedAt: baseTime},
			{ID: "yoga", TenantID: "t1", Name: "yoga", Labels: []string{"Activity", "Entity"}, Summary: "a calming weekend activity", Embedding: []float32{0, 1, 0}, UpdatedAt: baseTime},
			{ID: "anxiety", TenantID: "t1", Name: "anxiety", Labels: []string{"Emotion", "Entity"}, Embedding: []float32{0, 0, 1}, UpdatedAt: baseTime},
		},
		Edges: []*types.Edge{
			{
				ID: "e-feedback", TenantID: "t1", SourceID: "manager", TargetID: "anxiety",
				Relation: "TRIGGERS", Fact: "critical feedback from the manager triggers anxiety",
				Embedding: []float32{0.9, 0, 0.1}, ValidFrom: baseTime.Add(-24 * time.Hour), RecordedAt: baseTime.Add(-24 * time.Hour),
			},
			{
				ID: "e-yoga", TenantID: "t1", SourceID: "user", TargetID: "yoga",
				Relation: "PRACTICES", Fact: "alice practices yoga on weekends",
				Embedding: []float32{0, 0.9, 0}, ValidFrom: baseTime.Add(-12 * time.Hour), RecordedAt: baseTime.Add(-12 * time.Hour),
			},
			{
				ID: "e-closed", TenantID: "t1", SourceID: "user", TargetID: "manager",
				Relation: "AVOIDS", Fact: "alice avoids talking to the manager",
				Embedding: []float32{0.8, 0, 0}, ValidFrom: baseTime.Add(-48 * time.Hour),
				ValidUntil: &closedAt, RecordedAt: baseTime.Add(-48 * time.Hour),
			},
		},
	}
	require.NoError(t, drv.Apply(context.Background(), batch))
}

func newTestEngine(t *testing.T, emb *vectorEmbedder) (*Engine, driver.Driver) {
	t.Helper()
	drv := driver.NewMemoryDriver()
	seedTenant(t, drv)
	store := graph.NewStore(drv, nil)
	if emb == nil {
		return NewEngine(store, nil, nil), drv
	}
	return NewEngine(store, emb, nil), drv
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, nil)
	_, err := e.Search(context.Background(), "t1", "   ", nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestSearchUnknownTenant(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, nil)
	_, err := e.Search(context.Background(), "nobody", "yoga", nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSearchLexicalRanking(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, nil)
	results, err := e.Search(context.Background(), "t1", "yoga weekends", nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "e-yoga", results[0].EdgeID)
}

func TestSearchSemanticRanking(t *testing.T) {
	t.Parallel()

	emb := &vectorEmbedder{vectors: map[string][]float32{
		"how does work feedback affect her": {1, 0, 0},
	}}
	e, _ := newTestEngine(t, emb)

	// No lexical overlap with any fact; the embedding must carry the query.
	results, err := e.Search(context.Background(), "t1", "how does work feedback affect her", &types.SearchConfig{SemanticWeight: 1, LexicalWeight: 0})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "e-feedback", results[0].EdgeID)
}

func TestSearchExcludesClosedEdges(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, nil)
	results, err := e.Search(context.Background(), "t1", "avoids talking", &types.SearchConfig{Limit: 50})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "e-closed", r.EdgeID)
	}
}

func TestSearchIncludesEntityNodes(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, nil)
	results, err := e.Search(context.Background(), "t1", "calming weekend activity", &types.SearchConfig{Limit: 50})
	require.NoError(t, err)

	var foundNode bool
	for _, r := range results {
		if r.NodeID == "yoga" {
			foundNode = true
		}
	}
	assert.True(t, foundNode)
}

func TestSearchHonorsLimit(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, nil)
	results, err := e.Search(context.Background(), "t1", "alice manager yoga anxiety", &types.SearchConfig{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchTieBreaksByRecordedAtDesc(t *testing.T) {
	t.Parallel()

	drv := driver.NewMemoryDriver()
	older := baseTime.Add(-2 * time.Hour)
	newer := baseTime.Add(-time.Hour)
	require.NoError(t, drv.Apply(context.Background(), &driver.Batch{
		TenantID: "t1",
		Edges: []*types.Edge{
			{ID: "e-old", TenantID: "t1", SourceID: "a", TargetID: "b", Relation: "R", Fact: "same fact text", ValidFrom: older, RecordedAt: older},
			{ID: "e-new", TenantID: "t1", SourceID: "c", TargetID: "d", Relation: "R", Fact: "same fact text", ValidFrom: newer, RecordedAt: newer},
		},
	}))

	e := NewEngine(graph.NewStore(drv, nil), nil, nil)
	results, err := e.Search(context.Background(), "t1", "same fact text", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "e-new", results[0].EdgeID)
	assert.Equal(t, "e-old", results[1].EdgeID)
}

func TestCenterNodeSearchScopesToSubgraph(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, nil)

	// Depth 1 from the manager reaches the anxiety edge but not the
	// yoga edge, which hangs off the user node two hops away.
	results, err := e.CenterNodeSearch(context.Background(), "t1", "manager", "yoga anxiety feedback", &types.SearchConfig{CenterDepth: 1, Limit: 50})
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, r := range results {
		if r.EdgeID != "" {
			ids[r.EdgeID] = true
		}
	}
	assert.True(t, ids["e-feedback"])
	assert.False(t, ids["e-yoga"])
}

func TestCenterNodeSearchUnknownCenter(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, nil)
	_, err := e.CenterNodeSearch(context.Background(), "t1", "ghost", "anything", nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCenterNodeSearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, nil)
	_, err := e.CenterNodeSearch(context.Background(), "t1", "manager", "", nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestSearchFusionPrefersAgreement(t *testing.T) {
	t.Parallel()

	emb := &vectorEmbedder{vectors: map[string][]float32{
		"manager feedback": {0.9, 0, 0.1},
	}}
	e, _ := newTestEngine(t, emb)

	results, err := e.Search(context.Background(), "t1", "manager feedback", nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The feedback edge matches both lexically and semantically, so it
	// must outrank candidates matching on only one channel.
	assert.Equal(t, "e-feedback", results[0].EdgeID)
}

package anamnesis_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/anamnesis"
	"github.com/soundprediction/anamnesis/pkg/driver"
	"github.com/soundprediction/anamnesis/pkg/types"
)

const (
	anxietyText    = "User feels anxious about manager criticism"
	supportiveText = "The manager is now supportive"
	yogaText       = "Practiced yoga over the weekend, very relaxing"
)

// fakeExtractor returns canned extractions keyed by episode text.
type fakeExtractor struct {
	byText map[string]*types.Extraction
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*types.Extraction, error) {
	if x, ok := f.byText[text]; ok {
		return x, nil
	}
	return &types.Extraction{}, nil
}

func (f *fakeExtractor) Close() error { return nil }

func cannedExtractions() map[string]*types.Extraction {
	return map[string]*types.Extraction{
		anxietyText: {
			Entities: []types.ExtractedEntity{
				{Name: "manager", Label: "Person", Summary: "the user's manager", Confidence: 0.9},
				{Name: "anxious", Label: "Emotion", Confidence: 0.9},
			},
			Relationships: []types.ExtractedRelationship{
				{
					SourceEntity: "manager", TargetEntity: "anxious", Relation: "TRIGGERS",
					Fact: "criticism from the manager triggers anxiety", Confidence: 0.85,
				},
			},
		},
		supportiveText: {
			Entities: []types.ExtractedEntity{
				{Name: "manager", Label: "Person", Confidence: 0.9},
				{Name: "anxious", Label: "Emotion", Confidence: 0.9},
			},
			Relationships: []types.ExtractedRelationship{
				{
					SourceEntity: "manager", TargetEntity: "anxious", Relation: "TRIGGERS",
					Fact: "the manager is supportive and no longer triggers anxiety", Confidence: 0.85,
				},
			},
		},
		yogaText: {
			Entities: []types.ExtractedEntity{
				{Name: "yoga", Label: "Activity", Summary: "weekend yoga practice", Confidence: 0.8},
			},
			Relationships: []types.ExtractedRelationship{
				{
					SourceEntity: "yoga", TargetEntity: "yoga", Relation: "RELAXES",
					Fact: "weekend yoga is relaxing", Confidence: 0.7,
				},
			},
		},
	}
}

func newTestClient(t *testing.T) (*anamnesis.Client, driver.Driver) {
	t.Helper()
	drv := driver.NewMemoryDriver()
	client, err := anamnesis.NewClient(drv, &fakeExtractor{byText: cannedExtractions()}, nil, nil, nil)
	require.NoError(t, err)
	return client, drv
}

func findNode(t *testing.T, drv driver.Driver, tenantID, name string) *types.Node {
	t.Helper()
	nodes, err := drv.GetNodes(context.Background(), tenantID)
	require.NoError(t, err)
	for _, n := range nodes {
		if types.NormalizeName(n.Name) == types.NormalizeName(name) {
			return n
		}
	}
	return nil
}

func edgesForTriple(t *testing.T, drv driver.Driver, tenantID, sourceID, targetID, relation string) (open, closed []*types.Edge) {
	t.Helper()
	edges, err := drv.GetEdges(context.Background(), tenantID)
	require.NoError(t, err)
	for _, e := range edges {
		if e.SourceID == sourceID && e.TargetID == targetID && e.Relation == relation {
			if e.IsCurrentlyValid() {
				open = append(open, e)
			} else {
				closed = append(closed, e)
			}
		}
	}
	return open, closed
}

func TestScenarioAFirstEpisode(t *testing.T) {
	t.Parallel()

	client, drv := newTestClient(t)
	ctx := context.Background()

	episode, err := client.IngestEpisode(ctx, "t1", "u1", anxietyText, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, episode.SessionNumber)
	assert.Equal(t, "Session 1", episode.Name)

	manager := findNode(t, drv, "t1", "manager")
	require.NotNil(t, manager)
	assert.True(t, manager.HasLabel("Person"))

	anxious := findNode(t, drv, "t1", "anxious")
	require.NotNil(t, anxious)
	assert.True(t, anxious.HasLabel("Emotion"))

	open, closed := edgesForTriple(t, drv, "t1", manager.ID, anxious.ID, "TRIGGERS")
	require.Len(t, open, 1)
	assert.Empty(t, closed)
	assert.Equal(t, "criticism from the manager triggers anxiety", open[0].Fact)

	// First contact bootstraps the user node and MENTIONS provenance.
	user := findNode(t, drv, "t1", "u1")
	require.NotNil(t, user)
	assert.True(t, user.HasLabel("User"))
	assert.Equal(t, "User profile for u1", user.Summary)

	mentions, _ := edgesForTriple(t, drv, "t1", user.ID, manager.ID, types.RelationMentions)
	require.Len(t, mentions, 1)
	assert.Contains(t, mentions[0].EpisodeIDs, episode.ID)
	assert.Equal(t, types.RelationMentionedIn, mentions[0].Inverse)
}

func TestScenarioBContradictionClosesPriorEdge(t *testing.T) {
	t.Parallel()

	client, drv := newTestClient(t)
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(7 * 24 * time.Hour)

	_, err := client.IngestEpisode(ctx, "t1", "u1", anxietyText, first)
	require.NoError(t, err)
	episode2, err := client.IngestEpisode(ctx, "t1", "u1", supportiveText, second)
	require.NoError(t, err)
	assert.Equal(t, 2, episode2.SessionNumber)

	manager := findNode(t, drv, "t1", "manager")
	anxious := findNode(t, drv, "t1", "anxious")
	require.NotNil(t, manager)
	require.NotNil(t, anxious)

	open, closed := edgesForTriple(t, drv, "t1", manager.ID, anxious.ID, "TRIGGERS")
	require.Len(t, open, 1)
	require.Len(t, closed, 1)

	// History is append-only: the old fact is closed at exactly the new
	// fact's valid_from, never deleted.
	assert.Equal(t, "the manager is supportive and no longer triggers anxiety", open[0].Fact)
	require.NotNil(t, closed[0].ValidUntil)
	assert.True(t, closed[0].ValidUntil.Equal(open[0].ValidFrom))
}

func TestIngestionIdempotence(t *testing.T) {
	t.Parallel()

	client, drv := newTestClient(t)
	ctx := context.Background()

	ep1, err := client.IngestEpisode(ctx, "t1", "u1", anxietyText, time.Now())
	require.NoError(t, err)
	ep2, err := client.IngestEpisode(ctx, "t1", "u1", anxietyText, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, ep2.SessionNumber)

	manager := findNode(t, drv, "t1", "manager")
	anxious := findNode(t, drv, "t1", "anxious")
	require.NotNil(t, manager)
	require.NotNil(t, anxious)

	// Same normalized fact: no duplicate currently-valid edge, both
	// episodes recorded as provenance on the surviving one.
	open, closed := edgesForTriple(t, drv, "t1", manager.ID, anxious.ID, "TRIGGERS")
	require.Len(t, open, 1)
	assert.Empty(t, closed)
	assert.Contains(t, open[0].EpisodeIDs, ep1.ID)
	assert.Contains(t, open[0].EpisodeIDs, ep2.ID)

	nodes, err := drv.GetNodes(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, nodes, 3) // user, manager, anxious
}

func TestScenarioCSearchRanking(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.IngestEpisode(ctx, "t1", "u1", anxietyText, time.Now())
	require.NoError(t, err)
	_, err = client.IngestEpisode(ctx, "t1", "u1", yogaText, time.Now())
	require.NoError(t, err)

	results, err := client.Search(ctx, "t1", "what triggers anxiety", &types.SearchConfig{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "criticism from the manager triggers anxiety", results[0].Fact)
}

func TestScenarioDDeleteTenant(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	ctx := context.Background()

	episode, err := client.IngestEpisode(ctx, "t1", "u1", anxietyText, time.Now())
	require.NoError(t, err)

	stats, err := client.DeleteTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Episodes)
	assert.Equal(t, 3, stats.Nodes)
	assert.NotZero(t, stats.Edges)

	_, err = client.Search(ctx, "t1", "anything", nil)
	assert.ErrorIs(t, err, anamnesis.ErrNotFound)

	_, err = client.GetSubgraph(ctx, "t1", episode.NodeIDs[0], 1)
	assert.ErrorIs(t, err, anamnesis.ErrNotFound)

	_, err = client.DeleteTenant(ctx, "t1")
	assert.ErrorIs(t, err, anamnesis.ErrNotFound)
}

func TestTenantIsolation(t *testing.T) {
	t.Parallel()

	client, drv := newTestClient(t)
	ctx := context.Background()

	_, err := client.IngestEpisode(ctx, "t1", "u1", anxietyText, time.Now())
	require.NoError(t, err)

	_, err = client.Search(ctx, "t2", "manager", nil)
	assert.ErrorIs(t, err, anamnesis.ErrNotFound)

	nodes, err := drv.GetNodes(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, nodes)

	episodes, err := client.GetUserEpisodes(ctx, "t2", "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, episodes)
}

func TestConcurrentIngestionGaplessNumbering(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	ctx := context.Background()

	const workers = 12
	var wg sync.WaitGroup
	numbers := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("%s (attempt %d)", anxietyText, i)
			episode, err := client.IngestEpisode(ctx, "t1", "u1", text, time.Now())
			if err != nil {
				t.Error(err)
				return
			}
			numbers <- episode.SessionNumber
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for n := range numbers {
		assert.False(t, seen[n], "duplicate session number %d", n)
		seen[n] = true
	}
	for n := 1; n <= workers; n++ {
		assert.True(t, seen[n], "missing session number %d", n)
	}

	episodes, err := client.GetUserEpisodes(ctx, "t1", "u1", 0)
	require.NoError(t, err)
	require.Len(t, episodes, workers)
	for i, ep := range episodes {
		assert.Equal(t, i+1, ep.SessionNumber)
	}
}

func TestCancellationBeforeCommitLeavesNoSideEffects(t *testing.T) {
	t.Parallel()

	drv := driver.NewMemoryDriver()
	ctx, cancel := context.WithCancel(context.Background())

	// The oracle call is a suspension point; cancelling during it must
	// abort ingestion before anything reaches the store.
	extractor := &cancellingExtractor{inner: &fakeExtractor{byText: cannedExtractions()}, cancel: cancel}
	client, err := anamnesis.NewClient(drv, extractor, nil, nil, nil)
	require.NoError(t, err)

	_, err = client.IngestEpisode(ctx, "t1", "u1", anxietyText, time.Now())
	require.Error(t, err)

	nodes, err := drv.GetNodes(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, nodes)
	count, err := drv.CountEpisodes(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

// cancellingExtractor cancels the ingestion context mid-extraction.
type cancellingExtractor struct {
	inner  *fakeExtractor
	cancel context.CancelFunc
}

func (c *cancellingExtractor) Extract(ctx context.Context, text string) (*types.Extraction, error) {
	c.cancel()
	return c.inner.Extract(ctx, text)
}

func (c *cancellingExtractor) Close() error { return nil }

func TestEnsureUserIsIdempotent(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	ctx := context.Background()

	first, err := client.EnsureUser(ctx, "t1", "alice")
	require.NoError(t, err)
	assert.True(t, first.HasLabel("User"))
	assert.True(t, first.HasLabel("Person"))
	assert.Equal(t, "User profile for alice", first.Summary)

	second, err := client.EnsureUser(ctx, "t1", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestIngestValidation(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.IngestEpisode(ctx, "", "u1", "text", time.Time{})
	assert.ErrorIs(t, err, types.ErrEmptyTenantID)

	_, err = client.IngestEpisode(ctx, "t1", "", "text", time.Time{})
	assert.ErrorIs(t, err, anamnesis.ErrInvalidArgument)

	_, err = client.IngestEpisode(ctx, "t1", "u1", "   ", time.Time{})
	assert.ErrorIs(t, err, types.ErrEmptyContent)
}

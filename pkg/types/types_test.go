package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFact(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"Manager criticizes the user.", "manager criticizes the user"},
		{"  Manager   CRITICIZES the user ", "manager criticizes the user"},
		{"manager criticizes the user!?", "manager criticizes the user"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeFact(c.in))
	}
}

func TestUnionLabels(t *testing.T) {
	t.Parallel()

	got := UnionLabels([]string{"Person", "User"}, []string{"person", "Entity"})
	assert.Equal(t, []string{"Person", "User", "Entity"}, got)
}

func TestLabelsOverlap(t *testing.T) {
	t.Parallel()

	assert.True(t, LabelsOverlap([]string{"Person"}, []string{"person", "User"}))
	assert.False(t, LabelsOverlap([]string{"Emotion"}, []string{"Person"}))
	// Unlabeled candidates are compatible with anything.
	assert.True(t, LabelsOverlap(nil, []string{"Person"}))
}

func TestEdgeClose(t *testing.T) {
	t.Parallel()

	e := &Edge{
		TenantID: "t1",
		SourceID: "a",
		TargetID: "b",
		Relation: "TRIGGERS",
	}
	require.True(t, e.IsCurrentlyValid())

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.Close(at)
	require.False(t, e.IsCurrentlyValid())
	assert.Equal(t, at, *e.ValidUntil)
	assert.Equal(t, "a|b|TRIGGERS", e.TripleKey())
}

func TestExtractionFilterByConfidence(t *testing.T) {
	t.Parallel()

	x := &Extraction{
		Entities: []ExtractedEntity{
			{Name: "manager", Label: "Person", Confidence: 0.9},
			{Name: "rumor", Label: "Belief", Confidence: 0.2},
			{Name: "anxious", Label: "Emotion", Confidence: 0.8},
		},
		Relationships: []ExtractedRelationship{
			{SourceEntity: "manager", TargetEntity: "anxious", Relation: "TRIGGERS", Fact: "manager triggers anxiety", Confidence: 0.85},
			{SourceEntity: "rumor", TargetEntity: "anxious", Relation: "TRIGGERS", Fact: "rumor triggers anxiety", Confidence: 0.9},
			{SourceEntity: "manager", TargetEntity: "anxious", Relation: "CALMS", Fact: "low confidence fact", Confidence: 0.1},
		},
	}

	kept := x.FilterByConfidence(0.5)
	require.Len(t, kept.Entities, 2)

	// The rumor relationship survives the confidence cut but loses its
	// source entity, so it is dropped too.
	require.Len(t, kept.Relationships, 1)
	assert.Equal(t, "manager triggers anxiety", kept.Relationships[0].Fact)
}

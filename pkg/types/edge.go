package types

import (
	"strings"
	"time"
)

// Relations assigned by the engine itself. Extracted relations are free-form
// uppercase tags produced by the extraction oracle.
const (
	// RelationMentions links a user node to every entity touched by one of
	// their episodes.
	RelationMentions = "MENTIONS"
	// RelationMentionedIn is the inverse tag of RelationMentions.
	// Bidirectional relationships are represented as a directed edge plus
	// an inverse tag, never as mutual references.
	RelationMentionedIn = "MENTIONED_IN"
)

// Edge represents a relationship fact between two nodes, bi-temporally
// versioned. ValidFrom/ValidUntil describe when the fact held in the world;
// RecordedAt describes when the system learned it.
type Edge struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`

	// Relation is the relation type, e.g. "TRIGGERS". Inverse, when set,
	// names the relation as read from target to source.
	Relation string `json:"relation"`
	Inverse  string `json:"inverse,omitempty"`

	Fact      string    `json:"fact"`
	Embedding []float32 `json:"embedding,omitempty"`

	ValidFrom  time.Time  `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`

	// EpisodeIDs is the provenance set: every episode that produced or
	// re-asserted this fact.
	EpisodeIDs []string `json:"episode_ids,omitempty"`
}

// Validate checks that the edge carries its required identity fields.
func (e *Edge) Validate() error {
	if e.TenantID == "" {
		return ErrEmptyTenantID
	}
	if e.SourceID == "" || e.TargetID == "" {
		return ErrEmptyID
	}
	return nil
}

// IsCurrentlyValid reports whether the edge has not been closed.
func (e *Edge) IsCurrentlyValid() bool {
	return e.ValidUntil == nil
}

// Close marks the edge as superseded at the given instant. Closing is the
// only mutation ever applied to a committed edge.
func (e *Edge) Close(at time.Time) {
	t := at
	e.ValidUntil = &t
}

// TripleKey identifies the (source, target, relation) triple for which at
// most one currently-valid edge may exist.
func (e *Edge) TripleKey() string {
	return e.SourceID + "|" + e.TargetID + "|" + strings.ToUpper(e.Relation)
}

// NormalizeFact lowercases, collapses whitespace, and strips trailing
// punctuation so that semantically identical fact texts compare equal and
// re-ingestion stays idempotent.
func NormalizeFact(fact string) string {
	s := strings.Join(strings.Fields(strings.ToLower(fact)), " ")
	return strings.TrimRight(s, ".!? ")
}

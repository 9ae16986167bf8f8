package types

import (
	"strings"
	"time"
)

// Well-known node labels. Labels are free-form role tags; these are the ones
// the engine itself assigns.
const (
	LabelUser    = "User"
	LabelPerson  = "Person"
	LabelEmotion = "Emotion"
	LabelEntity  = "Entity"
)

// Node represents an entity in the knowledge graph: a person, place,
// emotion, belief, or the user themself.
type Node struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	Name     string   `json:"name"`
	Labels   []string `json:"labels,omitempty"`
	Summary  string   `json:"summary,omitempty"`

	// Embedding is nil until generated by the embedding oracle.
	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the node carries its required identity fields.
func (n *Node) Validate() error {
	if n.Name == "" {
		return ErrEmptyName
	}
	if n.TenantID == "" {
		return ErrEmptyTenantID
	}
	return nil
}

// HasLabel reports whether the node carries the given label,
// case-insensitively.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// LabelsOverlap reports whether the two label sets share at least one label,
// case-insensitively. Two nodes with no labels at all are considered
// compatible.
func LabelsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, la := range a {
		for _, lb := range b {
			if strings.EqualFold(la, lb) {
				return true
			}
		}
	}
	return false
}

// UnionLabels merges two label sets, preserving the order of first
// appearance and deduplicating case-insensitively.
func UnionLabels(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, l := range append(append([]string{}, a...), b...) {
		key := strings.ToLower(l)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

// NormalizeName lowercases and collapses whitespace so that canonical-name
// comparisons are stable across extraction runs.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

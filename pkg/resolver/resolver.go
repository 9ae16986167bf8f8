// Package resolver decides whether an extracted entity refers to a node
// already in the tenant's graph or names something new. Resolution is a
// pure function of the tenant snapshot and the candidate, so resolving
// the same transcript against the same graph always yields the same
// node identities.
package resolver

import (
	"strings"

	"github.com/soundprediction/anamnesis/pkg/types"
)

// DefaultSimilarityThreshold is the minimum cosine similarity for an
// embedding-based match when no exact name match exists.
const DefaultSimilarityThreshold = 0.85

// Config tunes resolution behavior.
type Config struct {
	// SimilarityThreshold overrides DefaultSimilarityThreshold when > 0.
	SimilarityThreshold float64
}

// Resolver matches extracted entities against existing tenant nodes.
type Resolver struct {
	threshold float64
}

// New builds a Resolver from cfg, applying defaults to zero values.
func New(cfg Config) *Resolver {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Resolver{threshold: threshold}
}

// Resolve returns the existing node the candidate refers to, or nil when
// the candidate is genuinely new. Matching proceeds in two passes:
//
//  1. Exact match on the normalized name, provided labels are compatible.
//  2. Embedding similarity at or above the threshold, again requiring
//     label compatibility. The most similar node wins; ties break by
//     most recent update, then by ID.
func (r *Resolver) Resolve(existing []*types.Node, candidate types.ExtractedEntity) *types.Node {
	name := types.NormalizeName(candidate.Name)
	if name == "" {
		return nil
	}
	candidateLabels := specificLabels([]string{candidate.Label})

	var nameMatch *types.Node
	for _, node := range existing {
		if types.NormalizeName(node.Name) != name {
			continue
		}
		if !compatible(candidateLabels, node) {
			continue
		}
		if nameMatch == nil || preferNode(node, nameMatch) {
			nameMatch = node
		}
	}
	if nameMatch != nil {
		return nameMatch
	}

	if len(candidate.Embedding) == 0 {
		return nil
	}

	var (
		best      *types.Node
		bestScore float64
	)
	for _, node := range existing {
		if !compatible(candidateLabels, node) {
			continue
		}
		score := types.CosineSimilarity(candidate.Embedding, node.Embedding)
		if score < r.threshold {
			continue
		}
		switch {
		case best == nil, score > bestScore:
			best, bestScore = node, score
		case score == bestScore && preferNode(node, best):
			best = node
		}
	}
	return best
}

// preferNode reports whether a should win a tie against b: most recently
// updated first, then lowest ID for determinism.
func preferNode(a, b *types.Node) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}

// compatible reports whether the candidate's labels permit merging into
// node. The generic Entity label carries no identity information, so it
// is ignored; a node or candidate with no specific labels is compatible
// with anything.
func compatible(candidateLabels []string, node *types.Node) bool {
	return types.LabelsOverlap(candidateLabels, specificLabels(node.Labels))
}

func specificLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == "" || strings.EqualFold(l, "Entity") {
			continue
		}
		out = append(out, l)
	}
	return out
}

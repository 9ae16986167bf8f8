package types

// ExtractedEntity is a candidate entity produced by the extraction oracle,
// before entity resolution has mapped it onto the tenant graph.
type ExtractedEntity struct {
	Name       string  `json:"name"`
	Label      string  `json:"label"`
	Summary    string  `json:"summary,omitempty"`
	Confidence float64 `json:"confidence"`

	// Embedding is filled in by the embedding oracle prior to resolution.
	Embedding []float32 `json:"-"`
}

// ExtractedRelationship is a candidate fact between two extracted entities,
// referenced by their candidate names.
type ExtractedRelationship struct {
	SourceEntity string  `json:"source_entity"`
	TargetEntity string  `json:"target_entity"`
	Relation     string  `json:"relation"`
	Fact         string  `json:"fact"`
	Confidence   float64 `json:"confidence"`

	Embedding []float32 `json:"-"`
}

// Extraction is the structured output of one extraction oracle call.
type Extraction struct {
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// FilterByConfidence returns a copy of the extraction with every candidate
// below the threshold dropped. Relationships are also dropped when either
// endpoint entity was dropped.
func (x *Extraction) FilterByConfidence(threshold float64) *Extraction {
	kept := &Extraction{}
	names := make(map[string]struct{})
	for _, e := range x.Entities {
		if e.Confidence >= threshold {
			kept.Entities = append(kept.Entities, e)
			names[NormalizeName(e.Name)] = struct{}{}
		}
	}
	for _, r := range x.Relationships {
		if r.Confidence < threshold {
			continue
		}
		if _, ok := names[NormalizeName(r.SourceEntity)]; !ok {
			continue
		}
		if _, ok := names[NormalizeName(r.TargetEntity)]; !ok {
			continue
		}
		kept.Relationships = append(kept.Relationships, r)
	}
	return kept
}

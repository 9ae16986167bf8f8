package search

import (
	"math"
	"strings"
	"unicode"
)

// BM25 constants. Standard values; the corpus here is small enough that
// tuning them buys nothing.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// lexicalScorer computes BM25 scores for a fixed document corpus. Build
// one per query execution; document order is the candidate order.
type lexicalScorer struct {
	docs      [][]string
	docFreq   map[string]int
	avgLen    float64
	totalDocs int
}

func newLexicalScorer(texts []string) *lexicalScorer {
	s := &lexicalScorer{
		docs:      make([][]string, len(texts)),
		docFreq:   make(map[string]int),
		totalDocs: len(texts),
	}
	var totalLen int
	for i, text := range texts {
		tokens := tokenize(text)
		s.docs[i] = tokens
		totalLen += len(tokens)
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				s.docFreq[tok]++
			}
		}
	}
	if s.totalDocs > 0 {
		s.avgLen = float64(totalLen) / float64(s.totalDocs)
	}
	return s
}

// score returns the BM25 score of document i against the query tokens.
func (s *lexicalScorer) score(i int, queryTokens []string) float64 {
	doc := s.docs[i]
	if len(doc) == 0 || len(queryTokens) == 0 {
		return 0
	}

	freq := make(map[string]int, len(doc))
	for _, tok := range doc {
		freq[tok]++
	}

	var total float64
	docLen := float64(len(doc))
	for _, tok := range queryTokens {
		tf := float64(freq[tok])
		if tf == 0 {
			continue
		}
		df := float64(s.docFreq[tok])
		idf := math.Log(1 + (float64(s.totalDocs)-df+0.5)/(df+0.5))
		total += idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*docLen/s.avgLen))
	}
	return total
}

// normalize rescales scores to [0,1] via min-max. A flat list maps to
// all ones when nonzero and all zeros otherwise, so a uniformly matched
// list still contributes its full weight to fusion.
func normalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}

	out := make([]float64, len(scores))
	spread := maxScore - minScore
	for i, s := range scores {
		switch {
		case spread > 0:
			out[i] = (s - minScore) / spread
		case maxScore > 0:
			out[i] = 1
		}
	}
	return out
}

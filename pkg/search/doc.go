// Package search implements hybrid retrieval over a tenant's graph.
//
// A query is scored two ways against the currently-valid facts and the
// entity nodes in scope: cosine similarity between embeddings, and a
// BM25-style lexical score over the fact text. Each score list is
// min-max normalized independently, then fused as a weighted sum.
// Scope is either the whole tenant or, for center-node search, the
// subgraph within a bounded number of hops from a chosen entity.
package search

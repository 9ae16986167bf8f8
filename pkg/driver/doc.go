// Package driver defines the persistence backend interface for anamnesis
// and its three implementations: an in-memory store for tests and embedded
// use, a Badger-backed durable store, and a Neo4j-backed store.
//
// The interface is deliberately narrow. All graph semantics (bi-temporal
// edge closing, node merging, traversal bounds) live in pkg/graph; a driver
// only needs tenant-scoped reads, one atomic batch write, and wholesale
// tenant deletion. Every mutation the engine performs flows through a
// single Apply call, which is the atomicity boundary: a concurrent reader
// sees either none or all of a batch, never a partially-written state.
package driver

// Package graph implements the tenant-scoped graph store: node upsert with
// last-writer-wins scalar merge and label union, bi-temporal edge insertion
// with contradiction closing, bounded breadth-first subgraph traversal, and
// currently-valid edge listing.
//
// Mutations are staged on a Mutation built from a Snapshot of the tenant's
// subgraph and committed through the driver in a single atomic batch. The
// caller is responsible for holding the tenant lock from Snapshot through
// Commit; the store itself never blocks readers.
package graph

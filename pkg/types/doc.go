// Package types defines the core data model shared by every layer of
// anamnesis: entity nodes, bi-temporal relationship edges, episodes, and
// the extraction and search value types exchanged with the oracle adapters.
//
// Nodes and edges are always scoped to exactly one tenant. Edges carry two
// timelines: the validity interval (ValidFrom/ValidUntil) describing when
// the fact was true in the world, and RecordedAt describing when the system
// learned it. History is append-only; a superseded fact is closed, never
// deleted.
package types

// Package oracle adapts external language-model extraction services to the
// engine. The engine treats extraction as a black box: text in, structured
// entities and relationships with confidence out. Provider variants
// implement the Extractor interface and are selected at configuration
// time; the core depends only on the interface.
//
// Transient upstream failures surface as ErrUnavailable or ErrTimeout and
// are retried once with backoff by RetryExtractor; malformed output
// surfaces as types.ErrExtractionFailed and is never retried.
package oracle

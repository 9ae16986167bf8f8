// Package anamnesis maintains a per-user, temporally evolving knowledge
// graph built from free-text episodes and answers natural-language queries
// against it with hybrid retrieval.
//
// Each ingested episode is run through an extraction oracle, deduplicated
// against the tenant's existing graph, and committed as entity nodes plus
// bi-temporal relationship edges under a per-tenant mutation lock. Facts
// are never deleted: a contradicting observation closes the prior edge's
// validity interval and inserts a new currently-valid one, so the graph
// answers both "what is true" and "what was true when".
//
// The Client is the facade over the engine. Construct one with NewClient,
// handing it a persistence driver, an extraction oracle, and an embedding
// oracle:
//
//	drv := driver.NewMemoryDriver()
//	client, err := anamnesis.NewClient(drv, extractor, embedder, nil, logger)
//	if err != nil {
//		...
//	}
//	defer client.Close(ctx)
//
//	episode, err := client.IngestEpisode(ctx, tenantID, userID,
//		"Feeling anxious about my manager's criticism", time.Now())
//
// Queries are scoped to exactly one tenant and read the latest committed
// snapshot without blocking on writers:
//
//	results, err := client.Search(ctx, tenantID, "what triggers anxiety", nil)
package anamnesis

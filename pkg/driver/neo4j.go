package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/anamnesis/pkg/types"
)

// Neo4jDriver is a Driver backed by a Neo4j (or Bolt-compatible) database.
// Entities are stored as (:Entity) nodes, facts as [:RELATES] relationships,
// and episodes as (:Episode) nodes; every record carries a tenant_id
// property and all queries filter on it. Apply runs inside one managed
// write transaction.
type Neo4jDriver struct {
	driver   neo4j.DriverWithContext
	database string
}

// Neo4jConfig holds the connection settings for NewNeo4jDriver.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewNeo4jDriver connects to the database and verifies connectivity.
func NewNeo4jDriver(ctx context.Context, cfg Neo4jConfig) (*Neo4jDriver, error) {
	drv, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver for %s: %w", cfg.URI, err)
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Neo4jDriver{driver: drv, database: cfg.Database}, nil
}

func (d *Neo4jDriver) Provider() Provider { return ProviderNeo4j }

// CreateIndices creates the lookup indices the engine's queries rely on.
func (d *Neo4jDriver) CreateIndices(ctx context.Context) error {
	statements := []string{
		"CREATE INDEX entity_tenant_id IF NOT EXISTS FOR (n:Entity) ON (n.tenant_id, n.id)",
		"CREATE INDEX episode_tenant_user IF NOT EXISTS FOR (n:Episode) ON (n.tenant_id, n.user_id)",
	}
	for _, stmt := range statements {
		if _, err := d.run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (d *Neo4jDriver) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, d.driver, query, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(d.database))
}

func (d *Neo4jDriver) GetNode(ctx context.Context, tenantID, nodeID string) (*types.Node, error) {
	result, err := d.run(ctx, `
		MATCH (n:Entity {tenant_id: $tenant_id, id: $id})
		RETURN properties(n) AS props`,
		map[string]any{"tenant_id": tenantID, "id": nodeID})
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", nodeID, err)
	}
	if len(result.Records) == 0 {
		return nil, fmt.Errorf("node %s in tenant %s: %w", nodeID, tenantID, types.ErrNotFound)
	}
	return nodeFromRecord(result.Records[0])
}

func (d *Neo4jDriver) GetNodes(ctx context.Context, tenantID string) ([]*types.Node, error) {
	result, err := d.run(ctx, `
		MATCH (n:Entity {tenant_id: $tenant_id})
		RETURN properties(n) AS props
		ORDER BY n.id`,
		map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("get nodes for tenant %s: %w", tenantID, err)
	}
	nodes := make([]*types.Node, 0, len(result.Records))
	for _, rec := range result.Records {
		n, err := nodeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (d *Neo4jDriver) GetEdges(ctx context.Context, tenantID string) ([]*types.Edge, error) {
	result, err := d.run(ctx, `
		MATCH (:Entity {tenant_id: $tenant_id})-[r:RELATES]->(:Entity)
		RETURN properties(r) AS props
		ORDER BY r.id`,
		map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("get edges for tenant %s: %w", tenantID, err)
	}
	return edgesFromRecords(result.Records)
}

func (d *Neo4jDriver) GetEdgesByNode(ctx context.Context, tenantID, nodeID string) ([]*types.Edge, error) {
	result, err := d.run(ctx, `
		MATCH (n:Entity {tenant_id: $tenant_id, id: $id})-[r:RELATES]-(:Entity)
		RETURN DISTINCT properties(r) AS props
		ORDER BY r.id`,
		map[string]any{"tenant_id": tenantID, "id": nodeID})
	if err != nil {
		return nil, fmt.Errorf("get edges for node %s: %w", nodeID, err)
	}
	return edgesFromRecords(result.Records)
}

func (d *Neo4jDriver) GetEpisodes(ctx context.Context, tenantID, userID string, limit int) ([]*types.Episode, error) {
	query := `
		MATCH (e:Episode {tenant_id: $tenant_id, user_id: $user_id})
		RETURN properties(e) AS props
		ORDER BY e.session_number`
	params := map[string]any{"tenant_id": tenantID, "user_id": userID}
	if limit > 0 {
		query += "\n\t\tLIMIT $limit"
		params["limit"] = limit
	}
	result, err := d.run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("get episodes for user %s: %w", userID, err)
	}
	eps := make([]*types.Episode, 0, len(result.Records))
	for _, rec := range result.Records {
		ep, err := episodeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

func (d *Neo4jDriver) CountEpisodes(ctx context.Context, tenantID, userID string) (int, error) {
	result, err := d.run(ctx, `
		MATCH (e:Episode {tenant_id: $tenant_id, user_id: $user_id})
		RETURN count(e) AS count`,
		map[string]any{"tenant_id": tenantID, "user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("count episodes for user %s: %w", userID, err)
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	count, _, err := neo4j.GetRecordValue[int64](result.Records[0], "count")
	if err != nil {
		return 0, fmt.Errorf("read episode count: %w", err)
	}
	return int(count), nil
}

func (d *Neo4jDriver) HasTenant(ctx context.Context, tenantID string) (bool, error) {
	result, err := d.run(ctx, `
		MATCH (n {tenant_id: $tenant_id})
		RETURN count(n) > 0 AS present`,
		map[string]any{"tenant_id": tenantID})
	if err != nil {
		return false, fmt.Errorf("probe tenant %s: %w", tenantID, err)
	}
	if len(result.Records) == 0 {
		return false, nil
	}
	present, _, err := neo4j.GetRecordValue[bool](result.Records[0], "present")
	if err != nil {
		return false, fmt.Errorf("read tenant probe: %w", err)
	}
	return present, nil
}

func (d *Neo4jDriver) Apply(ctx context.Context, batch *Batch) error {
	if batch.TenantID == "" {
		return fmt.Errorf("apply batch: %w", types.ErrEmptyTenantID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: d.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, n := range batch.Nodes {
			if _, err := tx.Run(ctx, `
				MERGE (node:Entity {tenant_id: $tenant_id, id: $id})
				SET node += $props`,
				map[string]any{
					"tenant_id": batch.TenantID,
					"id":        n.ID,
					"props":     nodeProps(n),
				}); err != nil {
				return nil, fmt.Errorf("upsert node %s: %w", n.ID, err)
			}
		}
		for _, e := range batch.Edges {
			if _, err := tx.Run(ctx, `
				MATCH (s:Entity {tenant_id: $tenant_id, id: $source_id})
				MATCH (t:Entity {tenant_id: $tenant_id, id: $target_id})
				MERGE (s)-[r:RELATES {id: $id}]->(t)
				SET r += $props`,
				map[string]any{
					"tenant_id": batch.TenantID,
					"source_id": e.SourceID,
					"target_id": e.TargetID,
					"id":        e.ID,
					"props":     edgeProps(e),
				}); err != nil {
				return nil, fmt.Errorf("upsert edge %s: %w", e.ID, err)
			}
		}
		for _, ep := range batch.Episodes {
			if _, err := tx.Run(ctx, `
				MERGE (e:Episode {tenant_id: $tenant_id, id: $id})
				SET e += $props`,
				map[string]any{
					"tenant_id": batch.TenantID,
					"id":        ep.ID,
					"props":     episodeProps(ep),
				}); err != nil {
				return nil, fmt.Errorf("upsert episode %s: %w", ep.ID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("apply batch for tenant %s: %w", batch.TenantID, err)
	}
	return nil
}

func (d *Neo4jDriver) DeleteTenant(ctx context.Context, tenantID string) (*DeleteStats, error) {
	countResult, err := d.run(ctx, `
		MATCH (n {tenant_id: $tenant_id})
		OPTIONAL MATCH (n)-[r:RELATES]->()
		RETURN count(DISTINCT CASE WHEN n:Entity THEN n END) AS nodes,
		       count(DISTINCT r) AS edges,
		       count(DISTINCT CASE WHEN n:Episode THEN n END) AS episodes`,
		map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("count tenant %s for deletion: %w", tenantID, err)
	}
	if len(countResult.Records) == 0 {
		return nil, fmt.Errorf("delete tenant %s: %w", tenantID, types.ErrNotFound)
	}
	rec := countResult.Records[0]
	nodes, _, _ := neo4j.GetRecordValue[int64](rec, "nodes")
	edges, _, _ := neo4j.GetRecordValue[int64](rec, "edges")
	episodes, _, _ := neo4j.GetRecordValue[int64](rec, "episodes")
	if nodes == 0 && edges == 0 && episodes == 0 {
		return nil, fmt.Errorf("delete tenant %s: %w", tenantID, types.ErrNotFound)
	}

	if _, err := d.run(ctx, `
		MATCH (n {tenant_id: $tenant_id})
		DETACH DELETE n`,
		map[string]any{"tenant_id": tenantID}); err != nil {
		return nil, fmt.Errorf("delete tenant %s: %w", tenantID, err)
	}
	return &DeleteStats{Nodes: int(nodes), Edges: int(edges), Episodes: int(episodes)}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

func nodeProps(n *types.Node) map[string]any {
	return map[string]any{
		"name":       n.Name,
		"labels":     n.Labels,
		"summary":    n.Summary,
		"embedding":  toFloat64s(n.Embedding),
		"created_at": n.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": n.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func edgeProps(e *types.Edge) map[string]any {
	props := map[string]any{
		"tenant_id":   e.TenantID,
		"source_id":   e.SourceID,
		"target_id":   e.TargetID,
		"relation":    e.Relation,
		"inverse":     e.Inverse,
		"fact":        e.Fact,
		"embedding":   toFloat64s(e.Embedding),
		"valid_from":  e.ValidFrom.UTC().Format(time.RFC3339Nano),
		"recorded_at": e.RecordedAt.UTC().Format(time.RFC3339Nano),
		"episode_ids": e.EpisodeIDs,
	}
	if e.ValidUntil != nil {
		props["valid_until"] = e.ValidUntil.UTC().Format(time.RFC3339Nano)
	} else {
		props["valid_until"] = nil
	}
	return props
}

func episodeProps(ep *types.Episode) map[string]any {
	return map[string]any{
		"user_id":        ep.UserID,
		"session_number": ep.SessionNumber,
		"name":           ep.Name,
		"content":        ep.Content,
		"source":         ep.Source,
		"reference":      ep.Reference.UTC().Format(time.RFC3339Nano),
		"created_at":     ep.CreatedAt.UTC().Format(time.RFC3339Nano),
		"node_ids":       ep.NodeIDs,
		"edge_ids":       ep.EdgeIDs,
	}
}

func nodeFromRecord(rec *neo4j.Record) (*types.Node, error) {
	props, _, err := neo4j.GetRecordValue[map[string]any](rec, "props")
	if err != nil {
		return nil, fmt.Errorf("read node record: %w", err)
	}
	return &types.Node{
		ID:        asString(props["id"]),
		TenantID:  asString(props["tenant_id"]),
		Name:      asString(props["name"]),
		Labels:    asStrings(props["labels"]),
		Summary:   asString(props["summary"]),
		Embedding: asFloat32s(props["embedding"]),
		CreatedAt: asTime(props["created_at"]),
		UpdatedAt: asTime(props["updated_at"]),
	}, nil
}

func edgesFromRecords(records []*neo4j.Record) ([]*types.Edge, error) {
	edges := make([]*types.Edge, 0, len(records))
	for _, rec := range records {
		props, _, err := neo4j.GetRecordValue[map[string]any](rec, "props")
		if err != nil {
			return nil, fmt.Errorf("read edge record: %w", err)
		}
		edge := &types.Edge{
			ID:         asString(props["id"]),
			TenantID:   asString(props["tenant_id"]),
			SourceID:   asString(props["source_id"]),
			TargetID:   asString(props["target_id"]),
			Relation:   asString(props["relation"]),
			Inverse:    asString(props["inverse"]),
			Fact:       asString(props["fact"]),
			Embedding:  asFloat32s(props["embedding"]),
			ValidFrom:  asTime(props["valid_from"]),
			RecordedAt: asTime(props["recorded_at"]),
			EpisodeIDs: asStrings(props["episode_ids"]),
		}
		if props["valid_until"] != nil {
			t := asTime(props["valid_until"])
			edge.ValidUntil = &t
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func episodeFromRecord(rec *neo4j.Record) (*types.Episode, error) {
	props, _, err := neo4j.GetRecordValue[map[string]any](rec, "props")
	if err != nil {
		return nil, fmt.Errorf("read episode record: %w", err)
	}
	return &types.Episode{
		ID:            asString(props["id"]),
		TenantID:      asString(props["tenant_id"]),
		UserID:        asString(props["user_id"]),
		SessionNumber: int(asInt64(props["session_number"])),
		Name:          asString(props["name"]),
		Content:       asString(props["content"]),
		Source:        asString(props["source"]),
		Reference:     asTime(props["reference"]),
		CreatedAt:     asTime(props["created_at"]),
		NodeIDs:       asStrings(props["node_ids"]),
		EdgeIDs:       asStrings(props["edge_ids"]),
	}, nil
}

func toFloat64s(in []float32) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func asStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asFloat32s(v any) []float32 {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(list))
	for _, item := range list {
		if f, ok := item.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}

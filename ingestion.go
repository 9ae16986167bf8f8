package anamnesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/anamnesis/pkg/graph"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// IngestEpisode runs the full pipeline for one episode of text: extract
// candidates, drop low-confidence ones, embed outside the tenant lock,
// then resolve against the current snapshot and commit nodes, edges, and
// the episode record as one atomic batch under the lock.
//
// A cancelled context before the commit step leaves no graph side
// effects. Extraction failure aborts with ErrExtractionFailed wrapped;
// nothing is persisted.
func (c *Client) IngestEpisode(ctx context.Context, tenantID, userID, text string, reference time.Time) (*types.Episode, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}
	if userID == "" {
		return nil, fmt.Errorf("user id: %w", types.ErrInvalidArgument)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("episode text: %w", types.ErrEmptyContent)
	}
	if reference.IsZero() {
		reference = time.Now().UTC()
	}

	extraction, err := c.extractor.Extract(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ingest episode for tenant %s: %w", tenantID, err)
	}
	kept := extraction.FilterByConfidence(c.cfg.MinConfidence)
	c.log.Debug("extraction complete",
		"tenant_id", tenantID,
		"entities", len(kept.Entities),
		"relationships", len(kept.Relationships))

	// The embedding oracle is the slow path; never call it holding the
	// tenant lock. The user node's existence is checked again under the
	// lock, this read only decides whether to embed the user's name.
	needUserEmbedding := false
	if c.embedder != nil {
		snap, err := c.store.Snapshot(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("ingest episode for tenant %s: %w", tenantID, err)
		}
		needUserEmbedding = findUserNode(snap.Nodes, userID) == nil
	}
	userEmbedding, err := c.embedCandidates(ctx, kept, userID, needUserEmbedding)
	if err != nil {
		return nil, fmt.Errorf("ingest episode for tenant %s: %w", tenantID, err)
	}

	release, err := c.locks.Acquire(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ingest episode for tenant %s: %w", tenantID, err)
	}
	defer release()

	snap, err := c.store.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ingest episode for tenant %s: %w", tenantID, err)
	}
	mut := c.store.NewMutation(snap)
	episodeID := uuid.NewString()

	pool := append([]*types.Node(nil), snap.Nodes...)
	userNode, pool := c.ensureUserNode(mut, pool, userID, userEmbedding)

	touched, edgeIDs := c.mergeCandidates(mut, pool, kept, userNode, episodeID, reference)

	sessionNumber, err := c.seq.NextSessionNumber(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("ingest episode for tenant %s: %w", tenantID, err)
	}

	nodeIDs := []string{userNode.ID}
	seenNodes := map[string]bool{userNode.ID: true}
	for _, n := range touched {
		if !seenNodes[n.ID] {
			seenNodes[n.ID] = true
			nodeIDs = append(nodeIDs, n.ID)
		}
	}

	episode := &types.Episode{
		ID:            episodeID,
		TenantID:      tenantID,
		UserID:        userID,
		SessionNumber: sessionNumber,
		Name:          fmt.Sprintf("Session %d", sessionNumber),
		Content:       text,
		Source:        "session transcript",
		Reference:     reference,
		CreatedAt:     time.Now().UTC(),
		NodeIDs:       nodeIDs,
		EdgeIDs:       edgeIDs,
	}
	mut.AddEpisode(episode)

	// Commit is the terminal, non-cancellable step. A cancellation that
	// arrives before this point must leave the graph untouched.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest episode for tenant %s: %w", tenantID, err)
	}
	if err := c.store.Commit(ctx, mut); err != nil {
		return nil, fmt.Errorf("ingest episode for tenant %s: %w", tenantID, err)
	}

	c.log.Info("episode ingested",
		"tenant_id", tenantID,
		"user_id", userID,
		"session_number", sessionNumber,
		"nodes", len(nodeIDs),
		"edges", len(edgeIDs))
	return episode, nil
}

// EnsureUser creates the user's node on first contact and returns it.
func (c *Client) EnsureUser(ctx context.Context, tenantID, userID string) (*types.Node, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}
	if userID == "" {
		return nil, fmt.Errorf("user id: %w", types.ErrInvalidArgument)
	}

	var userEmbedding []float32
	if c.embedder != nil {
		vec, err := c.embedder.EmbedSingle(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("ensure user %s: %w", userID, err)
		}
		userEmbedding = vec
	}

	release, err := c.locks.Acquire(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", userID, err)
	}
	defer release()

	snap, err := c.store.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", userID, err)
	}
	if existing := findUserNode(snap.Nodes, userID); existing != nil {
		return existing, nil
	}

	mut := c.store.NewMutation(snap)
	node, _ := c.ensureUserNode(mut, snap.Nodes, userID, userEmbedding)
	if err := c.store.Commit(ctx, mut); err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", userID, err)
	}
	c.log.Info("user node created", "tenant_id", tenantID, "user_id", userID)
	return node, nil
}

// embedCandidates fills in embeddings for every kept entity and
// relationship fact, plus the user's name when their node does not exist
// yet. Calls run concurrently, bounded by EmbedConcurrency.
func (c *Client) embedCandidates(ctx context.Context, kept *types.Extraction, userID string, includeUser bool) ([]float32, error) {
	if c.embedder == nil {
		return nil, nil
	}

	var userEmbedding []float32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.EmbedConcurrency)

	for i := range kept.Entities {
		i := i
		g.Go(func() error {
			e := &kept.Entities[i]
			vec, err := c.embedder.EmbedSingle(gctx, strings.TrimSpace(e.Name+" "+e.Summary))
			if err != nil {
				return fmt.Errorf("embed entity %q: %w", e.Name, err)
			}
			e.Embedding = vec
			return nil
		})
	}
	for i := range kept.Relationships {
		i := i
		g.Go(func() error {
			r := &kept.Relationships[i]
			vec, err := c.embedder.EmbedSingle(gctx, r.Fact)
			if err != nil {
				return fmt.Errorf("embed fact %q: %w", r.Fact, err)
			}
			r.Embedding = vec
			return nil
		})
	}
	if includeUser {
		g.Go(func() error {
			vec, err := c.embedder.EmbedSingle(gctx, userID)
			if err != nil {
				return fmt.Errorf("embed user name: %w", err)
			}
			userEmbedding = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return userEmbedding, nil
}

// ensureUserNode returns the user's node, staging its creation when
// absent, and the resolution pool including it.
func (c *Client) ensureUserNode(mut *graph.Mutation, pool []*types.Node, userID string, embedding []float32) (*types.Node, []*types.Node) {
	if existing := findUserNode(pool, userID); existing != nil {
		return existing, pool
	}
	node := mut.UpsertNode(&types.Node{
		Name:      userID,
		Labels:    []string{types.LabelUser, types.LabelPerson, types.LabelEntity},
		Summary:   fmt.Sprintf("User profile for %s", userID),
		Embedding: embedding,
	})
	return node, append(pool, node)
}

// mergeCandidates resolves each extracted entity onto the pool, stages
// node upserts and relationship edges, and links the user to every
// touched entity with a MENTIONS edge carrying the episode id. Returns
// the touched entity nodes and the ids of all staged edges.
func (c *Client) mergeCandidates(mut *graph.Mutation, pool []*types.Node, kept *types.Extraction, userNode *types.Node, episodeID string, reference time.Time) ([]*types.Node, []string) {
	byName := make(map[string]*types.Node, len(kept.Entities))
	var touched []*types.Node

	for _, entity := range kept.Entities {
		labels := []string{types.LabelEntity}
		if entity.Label != "" {
			labels = []string{entity.Label, types.LabelEntity}
		}
		candidate := &types.Node{
			Name:      entity.Name,
			Labels:    labels,
			Summary:   entity.Summary,
			Embedding: entity.Embedding,
		}
		resolved := c.res.Resolve(pool, entity)
		if resolved != nil {
			candidate.ID = resolved.ID
		}
		node := mut.UpsertNode(candidate)
		if resolved == nil {
			pool = append(pool, node)
		}
		byName[types.NormalizeName(entity.Name)] = node
		touched = append(touched, node)
	}

	var edgeIDs []string
	for _, rel := range kept.Relationships {
		source := byName[types.NormalizeName(rel.SourceEntity)]
		target := byName[types.NormalizeName(rel.TargetEntity)]
		if source == nil || target == nil {
			continue
		}
		edge, _ := mut.AddEdge(&types.Edge{
			SourceID:  source.ID,
			TargetID:  target.ID,
			Relation:  strings.ToUpper(rel.Relation),
			Fact:      rel.Fact,
			Embedding: rel.Embedding,
			ValidFrom: reference,
		}, episodeID)
		edgeIDs = append(edgeIDs, edge.ID)
	}

	seen := map[string]bool{userNode.ID: true}
	for _, node := range touched {
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		edge, _ := mut.AddEdge(&types.Edge{
			SourceID:  userNode.ID,
			TargetID:  node.ID,
			Relation:  types.RelationMentions,
			Inverse:   types.RelationMentionedIn,
			Fact:      fmt.Sprintf("%s mentions %s", userNode.Name, node.Name),
			ValidFrom: reference,
		}, episodeID)
		edgeIDs = append(edgeIDs, edge.ID)
	}

	return touched, edgeIDs
}

// findUserNode locates the node carrying the User label with the given
// name, case-insensitively.
func findUserNode(nodes []*types.Node, userID string) *types.Node {
	want := types.NormalizeName(userID)
	for _, n := range nodes {
		if n.HasLabel(types.LabelUser) && types.NormalizeName(n.Name) == want {
			return n
		}
	}
	return nil
}

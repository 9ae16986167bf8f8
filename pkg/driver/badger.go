package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/anamnesis/pkg/types"
)

// Key layout. Tenant ids may not contain '/', which the config layer
// enforces; everything for one tenant lives under a small set of prefixes
// so teardown is a prefix scan.
const (
	nodePrefix    = "n/"
	edgePrefix    = "e/"
	episodePrefix = "p/"
)

// BadgerDriver is a durable embedded implementation of Driver on top of
// BadgerDB. Each Apply runs in one Badger transaction, which is the
// atomicity boundary required by the engine.
type BadgerDriver struct {
	db *badger.DB
}

// NewBadgerDriver opens (or creates) a Badger database at path. An empty
// path opens an in-memory database, useful in tests.
func NewBadgerDriver(path string) (*BadgerDriver, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerDriver{db: db}, nil
}

func (d *BadgerDriver) Provider() Provider { return ProviderBadger }

func nodeKey(tenantID, id string) []byte {
	return []byte(nodePrefix + tenantID + "/" + id)
}

func edgeKey(tenantID, id string) []byte {
	return []byte(edgePrefix + tenantID + "/" + id)
}

func episodeKey(tenantID, userID string, sessionNumber int) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%010d", episodePrefix, tenantID, userID, sessionNumber))
}

func (d *BadgerDriver) GetNode(ctx context.Context, tenantID, nodeID string) (*types.Node, error) {
	var node types.Node
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(tenantID, nodeID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("node %s in tenant %s: %w", nodeID, tenantID, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", nodeID, err)
	}
	return &node, nil
}

func (d *BadgerDriver) GetNodes(ctx context.Context, tenantID string) ([]*types.Node, error) {
	var nodes []*types.Node
	err := d.scanPrefix(nodePrefix+tenantID+"/", func(val []byte) error {
		var n types.Node
		if err := json.Unmarshal(val, &n); err != nil {
			return err
		}
		nodes = append(nodes, &n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan nodes for tenant %s: %w", tenantID, err)
	}
	return nodes, nil
}

func (d *BadgerDriver) GetEdges(ctx context.Context, tenantID string) ([]*types.Edge, error) {
	var edges []*types.Edge
	err := d.scanPrefix(edgePrefix+tenantID+"/", func(val []byte) error {
		var e types.Edge
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		edges = append(edges, &e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan edges for tenant %s: %w", tenantID, err)
	}
	return edges, nil
}

func (d *BadgerDriver) GetEdgesByNode(ctx context.Context, tenantID, nodeID string) ([]*types.Edge, error) {
	all, err := d.GetEdges(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var edges []*types.Edge
	for _, e := range all {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			edges = append(edges, e)
		}
	}
	return edges, nil
}

func (d *BadgerDriver) GetEpisodes(ctx context.Context, tenantID, userID string, limit int) ([]*types.Episode, error) {
	var eps []*types.Episode
	// Keys embed the zero-padded session number, so iteration order is
	// session order.
	err := d.scanPrefix(episodePrefix+tenantID+"/"+userID+"/", func(val []byte) error {
		if limit > 0 && len(eps) >= limit {
			return nil
		}
		var ep types.Episode
		if err := json.Unmarshal(val, &ep); err != nil {
			return err
		}
		eps = append(eps, &ep)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan episodes for user %s: %w", userID, err)
	}
	return eps, nil
}

func (d *BadgerDriver) CountEpisodes(ctx context.Context, tenantID, userID string) (int, error) {
	count := 0
	err := d.countPrefix(episodePrefix+tenantID+"/"+userID+"/", &count)
	if err != nil {
		return 0, fmt.Errorf("count episodes for user %s: %w", userID, err)
	}
	return count, nil
}

func (d *BadgerDriver) HasTenant(ctx context.Context, tenantID string) (bool, error) {
	for _, prefix := range []string{nodePrefix, edgePrefix, episodePrefix} {
		count := 0
		if err := d.countPrefix(prefix+tenantID+"/", &count); err != nil {
			return false, fmt.Errorf("probe tenant %s: %w", tenantID, err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (d *BadgerDriver) Apply(ctx context.Context, batch *Batch) error {
	if batch.TenantID == "" {
		return fmt.Errorf("apply batch: %w", types.ErrEmptyTenantID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return d.db.Update(func(txn *badger.Txn) error {
		for _, n := range batch.Nodes {
			val, err := json.Marshal(n)
			if err != nil {
				return fmt.Errorf("marshal node %s: %w", n.ID, err)
			}
			if err := txn.Set(nodeKey(batch.TenantID, n.ID), val); err != nil {
				return err
			}
		}
		for _, e := range batch.Edges {
			val, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal edge %s: %w", e.ID, err)
			}
			if err := txn.Set(edgeKey(batch.TenantID, e.ID), val); err != nil {
				return err
			}
		}
		for _, ep := range batch.Episodes {
			val, err := json.Marshal(ep)
			if err != nil {
				return fmt.Errorf("marshal episode %s: %w", ep.ID, err)
			}
			if err := txn.Set(episodeKey(batch.TenantID, ep.UserID, ep.SessionNumber), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *BadgerDriver) DeleteTenant(ctx context.Context, tenantID string) (*DeleteStats, error) {
	stats := &DeleteStats{}
	var keys [][]byte

	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, prefix := range []string{nodePrefix + tenantID + "/", edgePrefix + tenantID + "/", episodePrefix + tenantID + "/"} {
			p := []byte(prefix)
			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				key := it.Item().KeyCopy(nil)
				keys = append(keys, key)
				switch {
				case strings.HasPrefix(string(key), nodePrefix):
					stats.Nodes++
				case strings.HasPrefix(string(key), edgePrefix):
					stats.Edges++
				default:
					stats.Episodes++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan tenant %s for deletion: %w", tenantID, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("delete tenant %s: %w", tenantID, types.ErrNotFound)
	}

	err = d.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete tenant %s: %w", tenantID, err)
	}
	return stats, nil
}

func (d *BadgerDriver) Close(ctx context.Context) error {
	return d.db.Close()
}

func (d *BadgerDriver) scanPrefix(prefix string, fn func(val []byte) error) error {
	return d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *BadgerDriver) countPrefix(prefix string, count *int) error {
	return d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			*count++
		}
		return nil
	})
}

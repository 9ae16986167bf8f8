// Package tenant provides the per-tenant serialization point for graph
// mutation. Every mutating operation (ingestion, deletion) acquires the
// tenant's exclusive lock first; readers never touch it. Locks for
// different tenants are independent, and no operation ever holds two
// tenant locks at once, so lock-ordering deadlocks cannot occur.
package tenant

import (
	"context"
	"fmt"
	"sync"
)

// Manager hands out one exclusive lock per tenant id. Locks are created
// lazily and never discarded; the per-tenant cost is a single buffered
// channel.
type Manager struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]chan struct{})}
}

func (m *Manager) lock(tenantID string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[tenantID]
	if !ok {
		l = make(chan struct{}, 1)
		m.locks[tenantID] = l
	}
	return l
}

// Acquire blocks until the tenant's exclusive lock is held or the context
// is done. On success it returns a release function, which must be called
// exactly once.
func (m *Manager) Acquire(ctx context.Context, tenantID string) (func(), error) {
	l := m.lock(tenantID)
	select {
	case l <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-l })
		}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire tenant lock %s: %w", tenantID, ctx.Err())
	}
}

// TryAcquire acquires the lock only if it is immediately available.
func (m *Manager) TryAcquire(tenantID string) (func(), bool) {
	l := m.lock(tenantID)
	select {
	case l <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-l })
		}, true
	default:
		return nil, false
	}
}

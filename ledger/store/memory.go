// Package store provides the in-memory SnapshotStore used by tests and by
// callers embedding the engine without a persistence layer.
package store

import (
	"context"
	"sync"

	"github.com/warp/inventory-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps one snapshot behind a mutex. Update mutates a deep copy and
// swaps it in only when fn succeeds, matching the discard-on-failure contract
// of the durable stores.
type Memory struct {
	mu      sync.RWMutex
	current *ledger.Snapshot
	backups int

	// SaveErr, when set, makes the next Update fail after fn ran. Lets tests
	// exercise the persistence-failure path.
	SaveErr error
}

func NewMemory() *Memory {
	return &Memory{current: ledger.NewSnapshot()}
}

// Seed replaces the stored snapshot. Test setup helper.
func (m *Memory) Seed(s *ledger.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s.Clone()
}

func (m *Memory) Load(_ context.Context) (*ledger.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone(), nil
}

func (m *Memory) Update(_ context.Context, fn func(*ledger.Snapshot) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.current.Clone()
	if err := fn(work); err != nil {
		return err
	}
	if m.SaveErr != nil {
		err := m.SaveErr
		m.SaveErr = nil
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	m.backups++
	m.current = work
	return nil
}

func (m *Memory) View(_ context.Context, fn func(*ledger.Snapshot) error) error {
	m.mu.RLock()
	snap := m.current.Clone()
	m.mu.RUnlock()
	return fn(snap)
}

func (m *Memory) CreateBackup(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backups++
	return "memory", nil
}

// Backups reports how many backup points were taken. Test observability.
func (m *Memory) Backups() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backups
}

/*
store.go - Persistence boundary for the snapshot

PURPOSE:
  Defines the interface between the engine and whatever holds the data. The
  whole state travels as one Snapshot: stores load it, hand it to a mutating
  function under an exclusive lock, and persist the result atomically.

SINGLE-WRITER CONTRACT:
  Update is the unit of atomicity: acquire lock -> load full state -> mutate
  in memory -> backup -> persist full state -> release. If persistence fails
  the mutation is discarded; the stored state is the only durable truth. No
  partial writes, ever: implementations rewrite the snapshot whole.

READERS:
  View runs without the exclusive lock and may observe a snapshot that is
  already stale by the time fn returns. Any read used to decide a write must
  happen inside Update instead.

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory, for tests and embedding
  - store/filestore: JSON file + cooperative flock + timestamped backups
  - store/sqlite: versioned snapshot rows in SQLite (WAL)
  - store/postgres: versioned snapshot rows guarded by an advisory lock

SEE ALSO:
  - snapshot.go: the Snapshot itself
  - inventory/: the service orchestrating every mutation through Update
*/
package ledger

import "context"

// SnapshotStore persists the full engine state.
type SnapshotStore interface {
	// Load returns the current snapshot. A store with no data yet returns an
	// empty snapshot, not an error.
	Load(ctx context.Context) (*Snapshot, error)

	// Update runs fn on the freshly loaded snapshot while holding the
	// exclusive store lock, then persists the snapshot atomically. If fn or
	// the save fails, nothing is persisted and the mutation is discarded.
	Update(ctx context.Context, fn func(*Snapshot) error) error

	// View runs fn on a read-only copy without the exclusive lock. The copy
	// may be stale relative to a concurrent writer.
	View(ctx context.Context, fn func(*Snapshot) error) error

	// CreateBackup captures the current persisted state out-of-line and
	// returns a label for it (path, version id). Update implementations also
	// back up automatically before each save.
	CreateBackup(ctx context.Context) (string, error)
}

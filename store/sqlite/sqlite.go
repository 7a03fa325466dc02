/*
Package sqlite provides a SQLite-backed SnapshotStore.

PURPOSE:
  Keeps the engine state as versioned whole-snapshot rows: every Update
  inserts a new row inside one transaction, so prior versions double as
  backups. The newest row is the current state.

CONCURRENCY:
  The connection opens with _txlock=immediate, so each Update transaction
  takes the write lock up front; two writers serialize at the database.
  sync.Mutex serializes writers inside the process on top of that.

WAL MODE:
  Opened with WAL so readers are never blocked by the single writer.

RETENTION:
  Unlabeled rows beyond the retention cap are pruned on each save. Rows
  written by CreateBackup carry a label and are never pruned.

SEE ALSO:
  - ledger/store.go: the SnapshotStore contract
  - store/filestore: the JSON-file implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/inventory-engine/ledger"
)

const defaultRetention = 50

// Store implements ledger.SnapshotStore on SQLite.
type Store struct {
	db        *sql.DB
	retention int
	mu        sync.Mutex
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database. retention <= 0 keeps the default of 50 versions.
func New(dbPath string, retention int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "open", Err: err}
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	s := &Store{db: db, retention: retention}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &ledger.PersistenceError{Op: "migrate", Err: err}
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		version    INTEGER PRIMARY KEY AUTOINCREMENT,
		data       TEXT NOT NULL,
		label      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_label ON snapshots(label);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the newest snapshot row, or an empty snapshot when the table
// is empty.
func (s *Store) Load(ctx context.Context) (*ledger.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM snapshots ORDER BY version DESC LIMIT 1",
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.NewSnapshot(), nil
	}
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "load", Err: err}
	}
	return decode(data)
}

// Update loads the newest version, runs fn, and inserts the result as a new
// row, all in one immediate transaction.
func (s *Store) Update(ctx context.Context, fn func(*ledger.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	snap, err := loadTx(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}
	if err := insertTx(ctx, tx, snap, ""); err != nil {
		return err
	}
	if err := pruneTx(ctx, tx, s.retention); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// View runs fn on the newest snapshot outside any write transaction.
func (s *Store) View(ctx context.Context, fn func(*ledger.Snapshot) error) error {
	snap, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return fn(snap)
}

// CreateBackup copies the current row under a label that pruning skips, and
// returns the label.
func (s *Store) CreateBackup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &ledger.PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	snap, err := loadTx(ctx, tx)
	if err != nil {
		return "", err
	}
	label := "backup-" + time.Now().UTC().Format("20060102T150405.000")
	if err := insertTx(ctx, tx, snap, label); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", &ledger.PersistenceError{Op: "backup", Err: err}
	}
	return label, nil
}

// Versions reports how many rows the store holds. Test observability.
func (s *Store) Versions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&n)
	if err != nil {
		return 0, &ledger.PersistenceError{Op: "count", Err: err}
	}
	return n, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func loadTx(ctx context.Context, tx *sql.Tx) (*ledger.Snapshot, error) {
	var data string
	err := tx.QueryRowContext(ctx,
		"SELECT data FROM snapshots ORDER BY version DESC LIMIT 1",
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.NewSnapshot(), nil
	}
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "load", Err: err}
	}
	return decode(data)
}

func insertTx(ctx context.Context, tx *sql.Tx, snap *ledger.Snapshot, label string) error {
	data, err := ledger.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO snapshots (data, label, created_at) VALUES (?, ?, ?)",
		string(data), label, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// pruneTx drops unlabeled versions beyond the retention cap, oldest first.
func pruneTx(ctx context.Context, tx *sql.Tx, retention int) error {
	query := fmt.Sprintf(`
		DELETE FROM snapshots
		WHERE label = '' AND version NOT IN (
			SELECT version FROM snapshots WHERE label = ''
			ORDER BY version DESC LIMIT %d
		)`, retention)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return &ledger.PersistenceError{Op: "prune", Err: err}
	}
	return nil
}

func decode(data string) (*ledger.Snapshot, error) {
	return ledger.DecodeSnapshot([]byte(data))
}

/*
Package postgres provides a PostgreSQL-backed SnapshotStore.

PURPOSE:
  Same versioned whole-snapshot model as store/sqlite, held in JSONB rows.
  Cross-process write exclusion uses a transaction-scoped advisory lock, so
  writers on different machines serialize at the database without a lock
  table.

DECIMALS:
  Every pooled connection registers the shopspring decimal codec, so NUMERIC
  values produced by in-database aggregation scan straight into
  decimal.Decimal.

SEE ALSO:
  - ledger/store.go: the SnapshotStore contract
  - store/sqlite: the embedded equivalent
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/ledger"
)

const defaultRetention = 50

// advisoryLockKey scopes the writer lock; every engine process pointed at
// the same database must agree on it.
const advisoryLockKey = 0x494E56454E544F52

// NewPool builds a tuned pgx pool with the decimal codec registered on every
// connection, and pings it once.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store implements ledger.SnapshotStore on PostgreSQL.
type Store struct {
	pool      *pgxpool.Pool
	retention int
}

// New ensures the schema and returns a store over the pool. retention <= 0
// keeps the default of 50 versions.
func New(ctx context.Context, pool *pgxpool.Pool, retention int) (*Store, error) {
	if retention <= 0 {
		retention = defaultRetention
	}
	s := &Store{pool: pool, retention: retention}
	if err := s.migrate(ctx); err != nil {
		return nil, &ledger.PersistenceError{Op: "migrate", Err: err}
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		version    BIGSERIAL PRIMARY KEY,
		data       JSONB NOT NULL,
		label      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_label ON snapshots(label);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Load returns the newest snapshot, or an empty one for a fresh database.
func (s *Store) Load(ctx context.Context) (*ledger.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		"SELECT data FROM snapshots ORDER BY version DESC LIMIT 1",
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.NewSnapshot(), nil
	}
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "load", Err: err}
	}
	return ledger.DecodeSnapshot(data)
}

// Update serializes on a transaction-scoped advisory lock, loads the newest
// version, runs fn, and inserts the result as a new row.
func (s *Store) Update(ctx context.Context, fn func(*ledger.Snapshot) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &ledger.PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	// Held until commit/rollback; concurrent writers queue here.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(advisoryLockKey)); err != nil {
		return &ledger.PersistenceError{Op: "lock", Err: err}
	}

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
	prune := `
		DELETE FROM snapshots
		WHERE label = '' AND version NOT IN (
			SELECT version FROM snapshots WHERE label = ''
			ORDER BY version DESC LIMIT $1
		)`
	if _, err := tx.Exec(ctx, prune, s.retention); err != nil {
		return &ledger.PersistenceError{Op: "prune", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// View runs fn on the newest snapshot without the writer lock.
func (s *Store) View(ctx context.Context, fn func(*ledger.Snapshot) error) error {
	snap, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return fn(snap)
}

// CreateBackup copies the current row under a label that pruning skips.
func (s *Store) CreateBackup(ctx context.Context) (string, error) {
	label := "backup-" + time.Now().UTC().Format("20060102T150405.000")
	query := `
		INSERT INTO snapshots (data, label)
		SELECT data, $1 FROM snapshots ORDER BY version DESC LIMIT 1`
	tag, err := s.pool.Exec(ctx, query, label)
	if err != nil {
		return "", &ledger.PersistenceError{Op: "backup", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return "", nil
	}
	return label, nil
}

// TotalStock sums cached stock for one class inside the database, without
// pulling the snapshot over the wire. NUMERIC scans into decimal.Decimal via
// the codec registered at connect.
func (s *Store) TotalStock(ctx context.Context, class ledger.EntityClass) (decimal.Decimal, error) {
	key := "raw_materials"
	if class == ledger.ClassProduct {
		key = "product_stocks"
	}
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM((e->>'stock_quantity')::numeric), 0)
		FROM snapshots s, jsonb_array_elements(s.data->'%s') e
		WHERE s.version = (SELECT MAX(version) FROM snapshots)`, key)

	var total decimal.Decimal
	if err := s.pool.QueryRow(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, &ledger.PersistenceError{Op: "aggregate", Err: err}
	}
	return total, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func loadTx(ctx context.Context, tx pgx.Tx) (*ledger.Snapshot, error) {
	var data []byte
	err := tx.QueryRow(ctx,
		"SELECT data FROM snapshots ORDER BY version DESC LIMIT 1",
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.NewSnapshot(), nil
	}
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "load", Err: err}
	}
	return ledger.DecodeSnapshot(data)
}

func insertTx(ctx context.Context, tx pgx.Tx, snap *ledger.Snapshot, label string) error {
	data, err := ledger.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO snapshots (data, label) VALUES ($1, $2)", data, label,
	); err != nil {
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

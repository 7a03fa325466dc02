/*
Package filestore persists the snapshot as one human-readable JSON file.

PURPOSE:
  The default production store. Concurrency control is cooperative: writers
  take an exclusive flock on a sibling .lock file with a bounded wait, so two
  processes pointed at the same data file serialize their Updates. Saves are
  atomic: marshal to a temp file in the same directory, fsync, rename over
  the data file. Readers never need the lock; a rename is all-or-nothing.

BACKUPS:
  Every Update copies the current file into the backup directory before
  saving, timestamped, and prunes beyond the retention cap. CreateBackup
  takes the same copy on demand.

SEE ALSO:
  - ledger/store.go: the SnapshotStore contract this implements
*/
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/warp/inventory-engine/ledger"
)

const (
	defaultLockTimeout = 10 * time.Second
	defaultLockPoll    = 50 * time.Millisecond
	defaultRetention   = 50

	backupTimeFormat = "20060102T150405.000"
)

// Options tunes a Store. Zero values fall back to the defaults above.
type Options struct {
	LockTimeout     time.Duration
	LockPoll        time.Duration
	BackupDir       string // empty: "backups" next to the data file
	BackupRetention int
}

// Store is a JSON-file SnapshotStore.
type Store struct {
	path        string
	lockPath    string
	backupDir   string
	retention   int
	lockTimeout time.Duration
	lockPoll    time.Duration

	// mu serializes writers inside this process; the flock serializes across
	// processes.
	mu sync.Mutex
}

func New(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, errors.New("filestore: path required")
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.LockPoll <= 0 {
		opts.LockPoll = defaultLockPoll
	}
	if opts.BackupRetention <= 0 {
		opts.BackupRetention = defaultRetention
	}
	if opts.BackupDir == "" {
		opts.BackupDir = filepath.Join(filepath.Dir(path), "backups")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &ledger.PersistenceError{Op: "init", Err: err}
	}
	if err := os.MkdirAll(opts.BackupDir, 0o755); err != nil {
		return nil, &ledger.PersistenceError{Op: "init", Err: err}
	}
	return &Store{
		path:        path,
		lockPath:    path + ".lock",
		backupDir:   opts.BackupDir,
		retention:   opts.BackupRetention,
		lockTimeout: opts.LockTimeout,
		lockPoll:    opts.LockPoll,
	}, nil
}

// Load reads the data file. A missing file is an empty snapshot.
func (s *Store) Load(_ context.Context) (*ledger.Snapshot, error) {
	return s.read()
}

// Update acquires the cross-process lock, loads fresh state, runs fn, backs
// up the current file and saves atomically. Nothing persists when fn or the
// save fails.
func (s *Store) Update(ctx context.Context, fn func(*ledger.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl := flock.New(s.lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(lockCtx, s.lockPoll)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return &ledger.PersistenceError{Op: "lock", Err: err}
	}
	if !locked {
		return fmt.Errorf("store lock not acquired within %s: %w", s.lockTimeout, ledger.ErrLockTimeout)
	}
	defer fl.Unlock()

	snap, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}
	if _, err := s.copyCurrent(); err != nil {
		return err
	}
	return s.save(snap)
}

// View loads a private copy and runs fn on it, without the writer lock.
func (s *Store) View(_ context.Context, fn func(*ledger.Snapshot) error) error {
	snap, err := s.read()
	if err != nil {
		return err
	}
	return fn(snap)
}

// CreateBackup copies the current data file into the backup directory and
// returns the copy's path. With no data file yet it returns "".
func (s *Store) CreateBackup(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyCurrent()
}

// Path returns the data file location.
func (s *Store) Path() string { return s.path }

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Store) read() (*ledger.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return ledger.NewSnapshot(), nil
	}
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "load", Err: err}
	}
	return ledger.DecodeSnapshot(data)
}

// save writes the whole snapshot through a temp file and renames it into
// place. Readers see either the old file or the new one, never a partial.
func (s *Store) save(snap *ledger.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &ledger.PersistenceError{Op: "encode", Err: err}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".inventory-*.json")
	if err != nil {
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return &ledger.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// copyCurrent snapshots the data file into the backup directory, then prunes
// old copies. No data file yet means nothing to back up.
func (s *Store) copyCurrent() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", &ledger.PersistenceError{Op: "backup", Err: err}
	}

	base := filepath.Base(s.path)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	name := fmt.Sprintf("%s_%s%s", stem, time.Now().UTC().Format(backupTimeFormat), ext)
	dest := filepath.Join(s.backupDir, name)

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", &ledger.PersistenceError{Op: "backup", Err: err}
	}
	s.prune(stem, ext)
	return dest, nil
}

// prune keeps the newest retention backups for this data file.
func (s *Store) prune(stem, ext string) {
	matches, err := filepath.Glob(filepath.Join(s.backupDir, stem+"_*"+ext))
	if err != nil || len(matches) <= s.retention {
		return
	}
	// Timestamped names sort chronologically.
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-s.retention] {
		os.Remove(old)
	}
}

// Package store opens the SnapshotStore selected by configuration. The
// concrete implementations live in the subpackages.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/warp/inventory-engine/config"
	"github.com/warp/inventory-engine/ledger"
	memstore "github.com/warp/inventory-engine/ledger/store"
	"github.com/warp/inventory-engine/store/filestore"
	"github.com/warp/inventory-engine/store/postgres"
	"github.com/warp/inventory-engine/store/sqlite"
)

// Open builds the configured store and returns it with a close function.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ledger.SnapshotStore, func(), error) {
	switch cfg.Store.Backend {
	case "file", "":
		st, err := filestore.New(cfg.Store.Path, filestore.Options{
			LockTimeout:     cfg.Store.LockTimeout,
			LockPoll:        cfg.Store.LockPoll,
			BackupDir:       cfg.Store.BackupDir,
			BackupRetention: cfg.Store.BackupRetention,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil

	case "sqlite":
		st, err := sqlite.New(cfg.Store.Path, cfg.Store.BackupRetention)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil

	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DB.ConnectionString())
		if err != nil {
			return nil, nil, err
		}
		st, err := postgres.New(ctx, pool, cfg.Store.BackupRetention)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil

	case "memory":
		log.Warn().Msg("memory backend selected, nothing will persist")
		return memstore.NewMemory(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q (want file, sqlite, postgres, or memory)", cfg.Store.Backend)
	}
}

/*
main.go - ledgerctl entry point

PURPOSE:
  Operator tooling for the inventory engine: consistency diagnostics, ledger
  rebuild, cached-stock recalculation, backups, and demo seeding. Shares the
  server's configuration, so it operates on the same store the server runs
  against.

COMMANDS:
  ledgerctl diagnose                  report consistency findings
  ledgerctl rebuild [--run] [--legacy-unit-heuristics] [--force]
  ledgerctl recalc  [--run]
  ledgerctl backup
  ledgerctl seed    [--force]

SAFETY:
  rebuild and recalc default to dry runs. rebuild refuses --run while manual
  adjustments would be dropped unless --force acknowledges the loss.

SEE ALSO:
  - rebuild/: what rebuild and recalc actually do
  - api/: the same operations over HTTP
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/inventory-engine/config"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/ledger"
	"github.com/warp/inventory-engine/logger"
	"github.com/warp/inventory-engine/store"
)

var operator string

func main() {
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inventory ledger maintenance tooling",
	}
	rootCmd.PersistentFlags().StringVar(&operator, "operator", "ledgerctl", "operator recorded on audit entries")

	rootCmd.AddCommand(diagnoseCmd())
	rootCmd.AddCommand(rebuildCmd())
	rootCmd.AddCommand(recalcCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and opens the service; the cleanup function
// closes the store.
func bootstrap(ctx context.Context) (*inventory.Service, func(), error) {
	svc, _, cleanup, err := bootstrapWithStore(ctx)
	return svc, cleanup, err
}

// bootstrapWithStore additionally exposes the raw store for commands that
// plant documents directly (seed).
func bootstrapWithStore(ctx context.Context) (*inventory.Service, ledger.SnapshotStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	// Tool output goes to stdout; keep structured logs quiet unless asked.
	log := logger.New(cfg.Log.Level, true)

	st, closeStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	svc, err := inventory.New(st, log, inventory.Config{UnlimitedNames: cfg.Ledger.UnlimitedNames})
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}
	return svc, st, closeStore, nil
}

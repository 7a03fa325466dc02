// commands.go - diagnose, rebuild, recalc, and backup subcommands.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/rebuild"
)

func diagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Report ledger consistency findings without changing anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			findings, err := svc.Diagnose(cmd.Context())
			if err != nil {
				return err
			}
			if len(findings) == 0 {
				fmt.Println("no findings, ledger is consistent")
				return nil
			}
			for kind, n := range rebuild.CountByKind(findings) {
				fmt.Printf("%-16s %d\n", kind, n)
			}
			fmt.Println()
			for _, f := range findings {
				fmt.Printf("[%s] %s\n", f.Kind, f.Message)
			}
			fmt.Printf("\n%d findings\n", len(findings))
			return nil
		},
	}
}

func rebuildCmd() *cobra.Command {
	var run, legacy, force bool
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Replay source documents into fresh ledgers (dry run by default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			// Always dry-run first so the loss disclosure happens before
			// anything persists.
			preview, err := svc.RebuildLedger(cmd.Context(), inventory.RebuildOptions{
				Run:                  false,
				LegacyUnitHeuristics: legacy,
				Operator:             operator,
			})
			if err != nil {
				return err
			}
			printRebuildSummary(preview)

			if !run {
				fmt.Println("\ndry run, nothing persisted (use --run to apply)")
				return nil
			}
			if preview.DroppedAdjustments > 0 && !force {
				return fmt.Errorf("%d manual adjustments would be lost; pass --force to acknowledge", preview.DroppedAdjustments)
			}

			sum, err := svc.RebuildLedger(cmd.Context(), inventory.RebuildOptions{
				Run:                  true,
				LegacyUnitHeuristics: legacy,
				Operator:             operator,
			})
			if err != nil {
				return err
			}
			fmt.Printf("\nrebuild persisted: %d movements written\n", sum.MovementsWritten)
			return nil
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "persist the rebuilt ledger")
	cmd.Flags().BoolVar(&legacy, "legacy-unit-heuristics", false, "apply migration-era ton/kg magnitude corrections")
	cmd.Flags().BoolVar(&force, "force", false, "acknowledge that manual adjustments will be lost")
	return cmd
}

func printRebuildSummary(s rebuild.Summary) {
	fmt.Printf("entities reset:        %d\n", s.EntitiesReset)
	fmt.Printf("receipt items:         %d\n", s.ReceiptItems)
	fmt.Printf("issue lines:           %d\n", s.IssueLines)
	fmt.Printf("orders finished:       %d\n", s.OrdersFinished)
	fmt.Printf("shipment items:        %d\n", s.ShipmentItems)
	fmt.Printf("movements written:     %d\n", s.MovementsWritten)
	fmt.Printf("heuristic corrections: %d\n", s.HeuristicCorrections)
	fmt.Printf("dropped adjustments:   %d\n", s.DroppedAdjustments)
	for _, w := range s.Warnings {
		fmt.Println("warning:", w)
	}
}

func recalcCmd() *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Resync cached stocks to the ledger fold (dry run by default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			sum, err := svc.Recalc(cmd.Context(), inventory.RecalcOptions{Run: run, Operator: operator})
			if err != nil {
				return err
			}
			fmt.Printf("entities checked: %d, drifted: %d\n", sum.Checked, len(sum.Changes))
			for _, c := range sum.Changes {
				fmt.Printf("  %s %q: %s -> %s\n", c.Class, c.Name, c.Old.String(), c.New.String())
			}
			if sum.DryRun {
				fmt.Println("dry run, nothing persisted (use --run to apply)")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "persist the recalculated stocks")
	return cmd
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Capture an out-of-line backup of the persisted state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			label, err := svc.CreateBackup(cmd.Context())
			if err != nil {
				return err
			}
			if label == "" {
				fmt.Println("nothing to back up yet")
				return nil
			}
			fmt.Println("backup created:", label)
			return nil
		},
	}
}

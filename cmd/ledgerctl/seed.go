// seed.go - Demo dataset: a small admixture plant with a nested BOM, and a
// few flows driven through the service so the seeded ledger is consistent by
// construction.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/inventory-engine/ledger"
)

func seedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a demo dataset (admixture plant)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, st, cleanup, err := bootstrapWithStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			err = st.Update(ctx, func(snap *ledger.Snapshot) error {
				if len(snap.RawMaterials)+len(snap.Products) > 0 && !force {
					return fmt.Errorf("store already holds data; pass --force to replace it")
				}
				*snap = *demoSnapshot(time.Now())
				return nil
			})
			if err != nil {
				return err
			}

			// Drive the open documents through the service so stocks come
			// from movements, not hand-typed numbers.
			if _, err := svc.CompleteReceipt(ctx, 1, operator); err != nil {
				return fmt.Errorf("complete seeded receipt: %w", err)
			}
			if _, err := svc.FinishOrder(ctx, 2, ledger.MustParseDecimal("0"), operator); err != nil {
				return fmt.Errorf("finish seeded order: %w", err)
			}
			is, err := svc.CreateIssueFromOrder(ctx, 1, operator)
			if err != nil {
				return fmt.Errorf("draft seeded issue: %w", err)
			}
			res, err := svc.PostIssue(ctx, is.ID, operator)
			if err != nil {
				return fmt.Errorf("post seeded issue: %w", err)
			}

			fmt.Println("demo dataset loaded:")
			fmt.Println("  6 raw materials, 2 products, 2 BOMs (one nested)")
			fmt.Println("  receipt GR-0001 completed, order PO-0002 finished")
			fmt.Printf("  issue %s posted (%d lines)\n", res.Code, res.Applied)
			fmt.Println("  receipt GR-0002 and shipment SHP-0001 left as drafts")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace existing data")
	return cmd
}

func demoSnapshot(now time.Time) *ledger.Snapshot {
	d := ledger.MustParseDecimal
	snap := ledger.NewSnapshot()

	snap.RawMaterials = []ledger.StockEntity{
		{ID: 1, Name: "Cement 42.5", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, SafetyStock: d("20000"), UpdatedAt: now},
		{ID: 2, Name: "Fly Ash", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, SafetyStock: d("5000"), UpdatedAt: now},
		{ID: 3, Name: "Polycarboxylate Mother Liquor 50%", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, SafetyStock: d("2000"), UpdatedAt: now},
		{ID: 4, Name: "Sodium Gluconate", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, SafetyStock: d("500"), UpdatedAt: now},
		{ID: 5, Name: "Tap Water", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, UpdatedAt: now},
		{ID: 6, Name: "Defoamer", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, SafetyStock: d("50"), UpdatedAt: now},
	}
	snap.Products = []ledger.StockEntity{
		{ID: 1, Name: "PCE Superplasticizer Standard", Class: ledger.ClassProduct, Unit: ledger.UnitKilogram, SafetyStock: d("1000"), UpdatedAt: now},
		{ID: 2, Name: "Retarder Blend R-20", Class: ledger.ClassProduct, Unit: ledger.UnitKilogram, UpdatedAt: now},
	}

	snap.BOMs = []ledger.BOM{
		{ID: 1, Code: "BOM-PCE-STD", Name: "PCE Superplasticizer Standard", ProductID: 1, CreatedAt: now},
		{ID: 2, Code: "BOM-R20", Name: "Retarder Blend R-20", ProductID: 2, CreatedAt: now},
	}
	snap.BOMVersions = []ledger.BOMVersion{
		{
			ID: 1, BomID: 1, Version: "v1", Status: ledger.BOMApproved,
			YieldBase: d("1000"), EffectiveFrom: now.AddDate(0, -1, 0), CreatedAt: now,
			Lines: []ledger.BOMLine{
				{ItemID: 3, ItemName: "Polycarboxylate Mother Liquor 50%", ItemType: ledger.ClassRawMaterial, Quantity: d("420"), Unit: ledger.UnitKilogram, Phase: "mix"},
				{ItemID: 5, ItemName: "Tap Water", ItemType: ledger.ClassRawMaterial, Quantity: d("545"), Unit: ledger.UnitKilogram, Phase: "mix"},
				{ItemID: 4, ItemName: "Sodium Gluconate", ItemType: ledger.ClassRawMaterial, Quantity: d("25"), Unit: ledger.UnitKilogram, Phase: "mix"},
				{ItemID: 6, ItemName: "Defoamer", ItemType: ledger.ClassRawMaterial, Quantity: d("2"), Unit: ledger.UnitKilogram, Phase: "finish"},
				{ItemID: 2, ItemName: "Retarder Blend R-20", ItemType: ledger.ClassProduct, Quantity: d("8"), Unit: ledger.UnitKilogram, Phase: "finish"},
			},
		},
		{
			ID: 2, BomID: 2, Version: "v1", Status: ledger.BOMApproved,
			YieldBase: d("1000"), EffectiveFrom: now.AddDate(0, -2, 0), CreatedAt: now,
			Lines: []ledger.BOMLine{
				{ItemID: 4, ItemName: "Sodium Gluconate", ItemType: ledger.ClassRawMaterial, Quantity: d("600"), Unit: ledger.UnitKilogram, Phase: "mix"},
				{ItemID: 5, ItemName: "Tap Water", ItemType: ledger.ClassRawMaterial, Quantity: d("400"), Unit: ledger.UnitKilogram, Phase: "mix"},
			},
		},
	}

	snap.Receipts = []ledger.GoodsReceipt{
		{
			ID: 1, Code: "GR-0001", Status: ledger.ReceiptDraft, CreatedAt: now,
			Items: []ledger.ReceiptItem{
				{MaterialID: 1, MaterialName: "Cement 42.5", Quantity: d("30000"), Unit: ledger.UnitKilogram},
				{MaterialID: 2, MaterialName: "Fly Ash", Quantity: d("12000"), Unit: ledger.UnitKilogram},
				{MaterialID: 3, MaterialName: "Polycarboxylate Mother Liquor 50%", Quantity: d("8"), Unit: ledger.UnitTon, Remark: "delivered in tons"},
				{MaterialID: 4, MaterialName: "Sodium Gluconate", Quantity: d("3000"), Unit: ledger.UnitKilogram},
				{MaterialID: 6, MaterialName: "Defoamer", Quantity: d("200"), Unit: ledger.UnitKilogram},
			},
		},
		{
			ID: 2, Code: "GR-0002", Status: ledger.ReceiptDraft, CreatedAt: now,
			Items: []ledger.ReceiptItem{
				{MaterialID: 1, MaterialName: "Cement 42.5", Quantity: d("15000"), Unit: ledger.UnitKilogram},
			},
		},
	}

	snap.Orders = []ledger.ProductionOrder{
		{ID: 1, Code: "PO-0001", Status: ledger.OrderPlanned, BomID: 1, BomVersionID: 1, PlanQty: d("2000"), Unit: ledger.UnitKilogram, CreatedAt: now},
		{ID: 2, Code: "PO-0002", Status: ledger.OrderPlanned, BomID: 2, BomVersionID: 2, PlanQty: d("1000"), Unit: ledger.UnitKilogram, CreatedAt: now},
	}

	snap.Shipments = []ledger.ShippingOrder{
		{
			ID: 1, Code: "SHP-0001", Status: ledger.ShipmentDraft, CreatedAt: now,
			Items: []ledger.ShipmentItem{
				{ProductID: 2, ProductName: "Retarder Blend R-20", Quantity: d("500"), Unit: ledger.UnitKilogram},
			},
		},
	}

	return snap
}

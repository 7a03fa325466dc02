/*
rebuild.go - Full ledger regeneration from source documents

PURPOSE:
  Zeroes every cached stock, clears both movement ledgers, then replays the
  completed source documents in document-id order:

    goods receipts (completed)      -> IN          on raw materials
    material issues (posted)        -> CONSUME_OUT on raws/products
    production orders (finished)    -> PRODUCE_IN  on products
    shipping orders (shipped)       -> SHIP_OUT    on products

  Replayed movements carry the same doc-type tags as the live flows, so a
  cancel after a rebuild still finds its consumption.

LOSS DISCLOSURE:
  ADJUST_IN/ADJUST_OUT movements have no source document and cannot be
  replayed. The summary reports how many were dropped; callers must show that
  to the operator BEFORE persisting, and nothing here persists by itself.

LEGACY UNIT HEURISTICS:
  Historical documents did not reliably carry units, and the datasets this
  system inherited mixed tons and kilograms by magnitude convention. Those
  magnitude corrections are quarantined behind Options.LegacyUnitHeuristics,
  off by default: they are a one-time migration aid, not production logic.
  Units are mandatory on every movement this engine writes.
*/
package rebuild

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/issue"
	"github.com/warp/inventory-engine/ledger"
)

var thousand = decimal.NewFromInt(1000)
var hundred = decimal.NewFromInt(100)

// Options tunes a rebuild.
type Options struct {
	// LegacyUnitHeuristics applies magnitude-based ton/kg corrections to
	// documents without trustworthy units. One-time migration aid only.
	LegacyUnitHeuristics bool

	// Unlimited names skip stock mutation on replayed consumption, same as
	// live posting.
	Unlimited map[string]bool

	Operator string
	Now      time.Time
}

// Summary reports what a rebuild did (or would do, on a dry run).
type Summary struct {
	DryRun               bool     `json:"dry_run"`
	EntitiesReset        int      `json:"entities_reset"`
	DroppedAdjustments   int      `json:"dropped_adjustments"`
	ReceiptItems         int      `json:"receipt_items"`
	IssueLines           int      `json:"issue_lines"`
	OrdersFinished       int      `json:"orders_finished"`
	ShipmentItems        int      `json:"shipment_items"`
	MovementsWritten     int      `json:"movements_written"`
	HeuristicCorrections int      `json:"heuristic_corrections"`
	Warnings             []string `json:"warnings,omitempty"`
}

func (s *Summary) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Rebuild regenerates both ledgers on the snapshot in memory. Persisting the
// result is the caller's decision.
func Rebuild(snap *ledger.Snapshot, opts Options) (Summary, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	operator := opts.Operator
	if operator == "" {
		operator = "system"
	}

	var sum Summary

	// Manual calibrations are lost: no source document backs them.
	for _, class := range []ledger.EntityClass{ledger.ClassRawMaterial, ledger.ClassProduct} {
		for _, m := range snap.Movements(class) {
			if m.Kind.IsAdjustment() {
				sum.DroppedAdjustments++
			}
		}
	}
	if sum.DroppedAdjustments > 0 {
		sum.warnf("%d manual adjustment movements have no source document and will be lost", sum.DroppedAdjustments)
	}

	// Reset.
	for _, class := range []ledger.EntityClass{ledger.ClassRawMaterial, ledger.ClassProduct} {
		entities := snap.Entities(class)
		for i := range entities {
			entities[i].Stock = decimal.Zero
			entities[i].UpdatedAt = now
			sum.EntitiesReset++
		}
	}
	snap.RawMovements = nil
	snap.ProductMovements = nil

	ix := ledger.BuildNameIndex(snap)

	replayReceipts(snap, ix, opts, &sum)
	replayIssues(snap, ix, opts, now, &sum)
	replayOrders(snap, ix, opts, now, &sum)
	replayShipments(snap, ix, opts, &sum)

	sum.MovementsWritten = len(snap.RawMovements) + len(snap.ProductMovements)
	snap.Audit(ledger.AuditLedgerRebuilt, operator, "", 0,
		fmt.Sprintf("ledger rebuilt: %d movements from source documents, %d adjustments dropped",
			sum.MovementsWritten, sum.DroppedAdjustments), now)
	return sum, nil
}

func replayReceipts(snap *ledger.Snapshot, ix *ledger.NameIndex, opts Options, sum *Summary) {
	for _, gr := range snap.Receipts {
		if !receiptCompleted(gr.Status) {
			continue
		}
		at := docTime(gr.CompletedAt, gr.CreatedAt)
		for _, item := range gr.Items {
			if !item.Quantity.IsPositive() {
				continue
			}
			entity := resolveByIDThenName(snap, ix, ledger.ClassRawMaterial, item.MaterialID, item.MaterialName)
			if entity == nil {
				sum.warnf("receipt %s: raw material %d %q not found, item skipped", gr.Code, item.MaterialID, item.MaterialName)
				continue
			}

			qty := ledger.NewQuantityFromDecimal(item.Quantity, unitOr(item.Unit, ledger.UnitKilogram))
			if opts.LegacyUnitHeuristics && looksLikeTons(item.Quantity, item.Remark) {
				qty = ledger.NewQuantityFromDecimal(item.Quantity.Mul(thousand), ledger.UnitKilogram)
				sum.HeuristicCorrections++
			}

			converted, annotation := toStorage(qty, entity)
			reason := "goods receipt " + gr.Code + annotation
			m, err := ledger.NewMovement(ledger.ClassRawMaterial, entity.ID, ledger.KindIn, converted, reason, gr.Code)
			if err != nil {
				sum.warnf("receipt %s: %v", gr.Code, err)
				continue
			}
			m = m.WithDoc(ledger.DocTypeGoodsReceipt, gr.ID)
			if _, err := snap.Append(m, at); err != nil {
				sum.warnf("receipt %s: %v", gr.Code, err)
				continue
			}
			sum.ReceiptItems++
		}
	}
}

func replayIssues(snap *ledger.Snapshot, ix *ledger.NameIndex, opts Options, now time.Time, sum *Summary) {
	for i := range snap.Issues {
		is := &snap.Issues[i]
		if is.Status != ledger.IssuePosted {
			continue
		}
		at := docTime(is.PostedAt, is.CreatedAt)
		for _, line := range is.Lines {
			if !line.RequiredQty.IsPositive() {
				continue
			}
			class := ledger.ClassRawMaterial
			if line.ItemType == ledger.ClassProduct {
				class = ledger.ClassProduct
			}
			entity := resolveByIDThenName(snap, ix, class, line.ItemID, line.ItemName)
			if entity == nil && class == ledger.ClassProduct && strings.TrimSpace(line.ItemName) != "" {
				entity = snap.AddEntity(ledger.StockEntity{
					Name:  strings.TrimSpace(line.ItemName),
					Class: ledger.ClassProduct,
					Unit:  ledger.CanonicalUnit(ledger.ClassProduct),
				})
				ix.Add(ledger.ClassProduct, entity.Name, entity.ID)
			}
			if entity == nil {
				sum.warnf("issue %s: %s %d %q not found, line skipped", is.Code, class, line.ItemID, line.ItemName)
				continue
			}

			qty := ledger.NewQuantityFromDecimal(line.RequiredQty, unitOr(line.Unit, ledger.UnitKilogram))
			converted, annotation := toStorage(qty, entity)
			reason := "material issue " + is.Code + annotation

			m, err := ledger.NewMovement(class, entity.ID, ledger.KindConsumeOut, converted, reason, is.Code)
			if err != nil {
				sum.warnf("issue %s: %v", is.Code, err)
				continue
			}
			m = m.WithDoc(ledger.DocTypeIssue, is.ID)
			m.RelatedOrderID = is.ProductionOrderID
			m.BomID = is.BomID
			m.BomVersionID = is.BomVersionID

			if class == ledger.ClassRawMaterial && opts.Unlimited[issue.UnlimitedKey(entity.Name)] {
				_, err = snap.AppendAudit(m, at)
			} else {
				_, err = snap.Append(m, at)
			}
			if err != nil {
				sum.warnf("issue %s: %v", is.Code, err)
				continue
			}
			sum.IssueLines++
		}
	}
}

func replayOrders(snap *ledger.Snapshot, ix *ledger.NameIndex, opts Options, now time.Time, sum *Summary) {
	for _, ord := range snap.Orders {
		if ord.Status != ledger.OrderFinished {
			continue
		}
		qty := ord.ActualQty
		if !qty.IsPositive() {
			qty = ord.PlanQty
		}
		if !qty.IsPositive() {
			sum.warnf("order %s: no positive quantity, skipped", ord.Code)
			continue
		}
		if opts.LegacyUnitHeuristics && qty.LessThanOrEqual(hundred) {
			qty = qty.Mul(thousand)
			sum.HeuristicCorrections++
		}

		entity := productForOrder(snap, ix, &ord)
		if entity == nil {
			sum.warnf("order %s: product unresolvable via bom %d, skipped", ord.Code, ord.BomID)
			continue
		}

		at := docTime(ord.FinishedAt, ord.CreatedAt)
		q := ledger.NewQuantityFromDecimal(qty, unitOr(ord.Unit, ledger.UnitKilogram))
		converted, annotation := toStorage(q, entity)
		reason := "production output " + ord.Code + annotation

		m, err := ledger.NewMovement(ledger.ClassProduct, entity.ID, ledger.KindProduceIn, converted, reason, ord.Code)
		if err != nil {
			sum.warnf("order %s: %v", ord.Code, err)
			continue
		}
		m = m.WithDoc(ledger.DocTypeProductionOrder, ord.ID)
		m.RelatedOrderID = ord.ID
		m.BomID = ord.BomID
		m.BomVersionID = ord.BomVersionID
		m.BatchNumber = ord.Code

		if _, err := snap.Append(m, at); err != nil {
			sum.warnf("order %s: %v", ord.Code, err)
			continue
		}
		sum.OrdersFinished++
	}
}

func replayShipments(snap *ledger.Snapshot, ix *ledger.NameIndex, opts Options, sum *Summary) {
	for _, ship := range snap.Shipments {
		if ship.Status != ledger.ShipmentShipped {
			continue
		}
		at := docTime(ship.ShippedAt, ship.CreatedAt)
		for _, item := range ship.Items {
			if !item.Quantity.IsPositive() {
				continue
			}
			entity := resolveByIDThenName(snap, ix, ledger.ClassProduct, item.ProductID, item.ProductName)
			if entity == nil {
				sum.warnf("shipment %s: product %d %q not found, item skipped", ship.Code, item.ProductID, item.ProductName)
				continue
			}

			qty := item.Quantity
			if opts.LegacyUnitHeuristics && qty.LessThanOrEqual(hundred) {
				qty = qty.Mul(thousand)
				sum.HeuristicCorrections++
			}

			q := ledger.NewQuantityFromDecimal(qty, unitOr(item.Unit, ledger.UnitKilogram))
			converted, annotation := toStorage(q, entity)
			reason := "shipment " + ship.Code + annotation

			m, err := ledger.NewMovement(ledger.ClassProduct, entity.ID, ledger.KindShipOut, converted, reason, ship.Code)
			if err != nil {
				sum.warnf("shipment %s: %v", ship.Code, err)
				continue
			}
			m = m.WithDoc(ledger.DocTypeShippingOrder, ship.ID)

			if _, err := snap.Append(m, at); err != nil {
				sum.warnf("shipment %s: %v", ship.Code, err)
				continue
			}
			sum.ShipmentItems++
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func receiptCompleted(s ledger.ReceiptStatus) bool {
	// "received" is a legacy synonym still present in migrated datasets.
	return s == ledger.ReceiptCompleted || s == ledger.ReceiptStatus("received")
}

// looksLikeTons spots migration-era receipt rows recorded in tons: small
// magnitudes or an explicit ton remark.
func looksLikeTons(qty decimal.Decimal, remark string) bool {
	if qty.LessThan(hundred) {
		return true
	}
	lower := strings.ToLower(remark)
	return strings.Contains(lower, "ton") || strings.Contains(remark, "吨")
}

func docTime(primary *time.Time, fallback time.Time) time.Time {
	if primary != nil && !primary.IsZero() {
		return *primary
	}
	if !fallback.IsZero() {
		return fallback
	}
	return time.Now()
}

func unitOr(u, def ledger.Unit) ledger.Unit {
	if u == "" {
		return def
	}
	return u
}

func resolveByIDThenName(snap *ledger.Snapshot, ix *ledger.NameIndex, class ledger.EntityClass, id int64, name string) *ledger.StockEntity {
	if e := snap.EntityByID(class, id); e != nil {
		return e
	}
	if strings.TrimSpace(name) == "" {
		return nil
	}
	resolved, err := ix.Resolve(class, name)
	if err != nil {
		return nil
	}
	return snap.EntityByID(class, resolved)
}

// productForOrder resolves the product a finished order yields: the BOM's
// product foreign key when set, otherwise the legacy "CODE-Name" spelling,
// auto-created when the catalog has never seen it.
func productForOrder(snap *ledger.Snapshot, ix *ledger.NameIndex, ord *ledger.ProductionOrder) *ledger.StockEntity {
	b := snap.BOMByID(ord.BomID)
	if b == nil {
		return nil
	}
	if b.ProductID != 0 {
		if e := snap.EntityByID(ledger.ClassProduct, b.ProductID); e != nil {
			return e
		}
	}
	name := strings.TrimSpace(b.Code + "-" + b.Name)
	if id, err := ix.ResolveFirst(ledger.ClassProduct, name, b.Name); err == nil {
		return snap.EntityByID(ledger.ClassProduct, id)
	}
	e := snap.AddEntity(ledger.StockEntity{
		Name:  name,
		Class: ledger.ClassProduct,
		Unit:  ledger.CanonicalUnit(ledger.ClassProduct),
	})
	ix.Add(ledger.ClassProduct, name, e.ID)
	return e
}

// toStorage converts to the entity's storage unit, falling back to the raw
// number with an annotation when the families disagree.
func toStorage(q ledger.Quantity, e *ledger.StockEntity) (ledger.Quantity, string) {
	storage := e.Unit
	if storage == "" {
		storage = ledger.CanonicalUnit(e.Class)
	}
	converted, ok := ledger.Convert(q, storage)
	if ok {
		return converted, ""
	}
	if ledger.SameUnit(q.Unit, storage) {
		return ledger.Quantity{Value: q.Value, Unit: storage}, ""
	}
	return ledger.Quantity{Value: q.Value, Unit: storage}, " (orig: " + q.Value.String() + string(q.Unit) + ")"
}

// documents.go - Document-driven stock flows: receipt completion, production
// order finishing, shipment posting, manual calibration. Each flow is one
// store.Update: guard the document state, append the movements, flip the
// status, write the audit entry, all-or-nothing.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/ledger"
)

// =============================================================================
// GOODS RECEIPTS
// =============================================================================

// CompleteReceipt books every item of a draft receipt into raw material
// stock. Unknown materials fail the whole completion; a receipt naming a
// material the catalog has never seen is a data-entry problem, not something
// to paper over.
func (s *Service) CompleteReceipt(ctx context.Context, receiptID int64, operator string) (int, error) {
	now := s.now()
	applied := 0
	err := s.store.Update(ctx, func(snap *ledger.Snapshot) error {
		gr := snap.ReceiptByID(receiptID)
		if gr == nil {
			return &ledger.NotFoundError{Kind: "goods_receipt", ID: receiptID}
		}
		if gr.Status != ledger.ReceiptDraft {
			return &ledger.InvalidStateError{Doc: "goods_receipt", ID: receiptID, Current: string(gr.Status), Want: string(ledger.ReceiptDraft)}
		}

		ix := ledger.BuildNameIndex(snap)
		applied = 0
		for _, item := range gr.Items {
			if !item.Quantity.IsPositive() {
				continue
			}
			entity, err := resolveRaw(snap, ix, item.MaterialID, item.MaterialName)
			if err != nil {
				return err
			}
			converted, annotation, err := mustStorage(ledger.NewQuantityFromDecimal(item.Quantity, item.Unit), entity)
			if err != nil {
				return fmt.Errorf("receipt %s, material %q: %w", gr.Code, entity.Name, err)
			}
			m, err := ledger.NewMovement(ledger.ClassRawMaterial, entity.ID, ledger.KindIn, converted,
				"goods receipt "+gr.Code+annotation, operator)
			if err != nil {
				return err
			}
			m = m.WithDoc(ledger.DocTypeGoodsReceipt, gr.ID)
			if _, err := snap.Append(m, now); err != nil {
				return err
			}
			applied++
		}

		gr.Status = ledger.ReceiptCompleted
		gr.CompletedAt = &now
		snap.Audit(ledger.AuditReceiptComplete, operator, ledger.DocTypeGoodsReceipt, gr.ID,
			fmt.Sprintf("receipt %s completed, %d items booked in", gr.Code, applied), now)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("receipt_id", receiptID).Int("items", applied).Msg("receipt completed")
	return applied, nil
}

// Receipts lists all goods receipts.
func (s *Service) Receipts(ctx context.Context) ([]ledger.GoodsReceipt, error) {
	var out []ledger.GoodsReceipt
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		out = snap.Receipts
		return nil
	})
	return out, err
}

// =============================================================================
// PRODUCTION ORDERS
// =============================================================================

// FinishOrder records the production output of an order: a PRODUCE_IN
// movement on the product its BOM yields, batch-tagged with the order code.
// actualQty overrides the planned quantity when positive.
func (s *Service) FinishOrder(ctx context.Context, orderID int64, actualQty decimal.Decimal, operator string) (ledger.Movement, error) {
	now := s.now()
	var written ledger.Movement
	err := s.store.Update(ctx, func(snap *ledger.Snapshot) error {
		ord := snap.OrderByID(orderID)
		if ord == nil {
			return &ledger.NotFoundError{Kind: "production_order", ID: orderID}
		}
		if ord.Status == ledger.OrderFinished || ord.Status == ledger.OrderCancelled {
			return &ledger.InvalidStateError{Doc: "production_order", ID: orderID, Current: string(ord.Status), Want: string(ledger.OrderInProgress)}
		}

		qty := actualQty
		if !qty.IsPositive() {
			qty = ord.PlanQty
		}
		if !qty.IsPositive() {
			return fmt.Errorf("order %s has no positive quantity to finish: %w", ord.Code, ledger.ErrInvalidState)
		}

		entity, err := productForBOM(snap, ord.BomID)
		if err != nil {
			return err
		}
		converted, annotation, err := mustStorage(ledger.NewQuantityFromDecimal(qty, unitOrCanonical(ord.Unit, ledger.ClassProduct)), entity)
		if err != nil {
			return fmt.Errorf("order %s: %w", ord.Code, err)
		}

		m, err := ledger.NewMovement(ledger.ClassProduct, entity.ID, ledger.KindProduceIn, converted,
			"production output "+ord.Code+annotation, operator)
		if err != nil {
			return err
		}
		m = m.WithDoc(ledger.DocTypeProductionOrder, ord.ID)
		m.RelatedOrderID = ord.ID
		m.BomID = ord.BomID
		m.BomVersionID = ord.BomVersionID
		m.BatchNumber = ord.Code
		written, err = snap.Append(m, now)
		if err != nil {
			return err
		}

		ord.Status = ledger.OrderFinished
		ord.ActualQty = qty
		ord.FinishedAt = &now
		snap.Audit(ledger.AuditOrderFinished, operator, ledger.DocTypeProductionOrder, ord.ID,
			fmt.Sprintf("order %s finished, %s %s produced as %q", ord.Code, converted.Value.String(), converted.Unit, entity.Name), now)
		return nil
	})
	if err != nil {
		return ledger.Movement{}, err
	}
	s.log.Info().Int64("order_id", orderID).Int64("product_id", written.EntityID).
		Str("qty", written.Quantity.String()).Msg("production order finished")
	return written, nil
}

// Orders lists all production orders.
func (s *Service) Orders(ctx context.Context) ([]ledger.ProductionOrder, error) {
	var out []ledger.ProductionOrder
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		out = snap.Orders
		return nil
	})
	return out, err
}

// =============================================================================
// SHIPPING ORDERS
// =============================================================================

// ShipOrder posts a draft shipment: SHIP_OUT movements on each product. All
// lines are checked against available stock before anything moves; one short
// line rejects the whole shipment.
func (s *Service) ShipOrder(ctx context.Context, shipmentID int64, operator string) (int, error) {
	now := s.now()
	applied := 0
	err := s.store.Update(ctx, func(snap *ledger.Snapshot) error {
		ship := snap.ShipmentByID(shipmentID)
		if ship == nil {
			return &ledger.NotFoundError{Kind: "shipping_order", ID: shipmentID}
		}
		if ship.Status != ledger.ShipmentDraft {
			return &ledger.InvalidStateError{Doc: "shipping_order", ID: shipmentID, Current: string(ship.Status), Want: string(ledger.ShipmentDraft)}
		}

		ix := ledger.BuildNameIndex(snap)

		type plannedLine struct {
			entity *ledger.StockEntity
			qty    ledger.Quantity
			note   string
		}
		var plan []plannedLine
		remaining := map[int64]decimal.Decimal{}
		for _, item := range ship.Items {
			if !item.Quantity.IsPositive() {
				continue
			}
			entity := snap.EntityByID(ledger.ClassProduct, item.ProductID)
			if entity == nil && strings.TrimSpace(item.ProductName) != "" {
				if id, err := ix.Resolve(ledger.ClassProduct, item.ProductName); err == nil {
					entity = snap.EntityByID(ledger.ClassProduct, id)
				}
			}
			if entity == nil {
				return &ledger.NotFoundError{Kind: "product", ID: item.ProductID, Name: item.ProductName}
			}
			converted, annotation, err := mustStorage(ledger.NewQuantityFromDecimal(item.Quantity, unitOrCanonical(item.Unit, ledger.ClassProduct)), entity)
			if err != nil {
				return fmt.Errorf("shipment %s, product %q: %w", ship.Code, entity.Name, err)
			}

			avail, ok := remaining[entity.ID]
			if !ok {
				avail = entity.Stock
			}
			if avail.LessThan(converted.Value) {
				return &ledger.InsufficientStockError{
					Class: ledger.ClassProduct, EntityID: entity.ID, Name: entity.Name,
					Available: ledger.NewQuantityFromDecimal(avail, entity.Unit), Requested: converted,
				}
			}
			remaining[entity.ID] = avail.Sub(converted.Value)
			plan = append(plan, plannedLine{entity: entity, qty: converted, note: annotation})
		}

		applied = 0
		for _, pl := range plan {
			m, err := ledger.NewMovement(ledger.ClassProduct, pl.entity.ID, ledger.KindShipOut, pl.qty,
				"shipment "+ship.Code+pl.note, operator)
			if err != nil {
				return err
			}
			m = m.WithDoc(ledger.DocTypeShippingOrder, ship.ID)
			if _, err := snap.Append(m, now); err != nil {
				return err
			}
			applied++
		}

		ship.Status = ledger.ShipmentShipped
		ship.ShippedAt = &now
		snap.Audit(ledger.AuditShipmentShipped, operator, ledger.DocTypeShippingOrder, ship.ID,
			fmt.Sprintf("shipment %s posted, %d lines shipped out", ship.Code, applied), now)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("shipment_id", shipmentID).Int("lines", applied).Msg("shipment posted")
	return applied, nil
}

// Shipments lists all shipping orders.
func (s *Service) Shipments(ctx context.Context) ([]ledger.ShippingOrder, error) {
	var out []ledger.ShippingOrder
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		out = snap.Shipments
		return nil
	})
	return out, err
}

// =============================================================================
// CALIBRATION / LOW STOCK
// =============================================================================

// CalibrationResult reports one physical-count reconciliation.
type CalibrationResult struct {
	Class      ledger.EntityClass `json:"class"`
	EntityID   int64              `json:"entity_id"`
	Name       string             `json:"name"`
	System     decimal.Decimal    `json:"system"`
	Counted    decimal.Decimal    `json:"counted"`
	Delta      decimal.Decimal    `json:"delta"`
	Adjusted   bool               `json:"adjusted"`
	MovementID int64              `json:"movement_id,omitempty"`
}

// Calibrate reconciles one entity's stock against a physical count. Within
// MismatchEpsilon nothing happens; beyond it an ADJUST_IN/ADJUST_OUT movement
// closes the gap, reason recording both numbers. counted must carry a unit
// convertible to the entity's storage unit; calibration is fresh data and
// never falls back to raw-number passthrough.
func (s *Service) Calibrate(ctx context.Context, class ledger.EntityClass, entityID int64, counted ledger.Quantity, note, operator string) (CalibrationResult, error) {
	now := s.now()
	var res CalibrationResult
	err := s.store.Update(ctx, func(snap *ledger.Snapshot) error {
		entity := snap.EntityByID(class, entityID)
		if entity == nil {
			return &ledger.NotFoundError{Kind: string(class), ID: entityID}
		}
		storage := unitOrCanonical(entity.Unit, class)
		conv, ok := ledger.Convert(counted, storage)
		if !ok {
			return &ledger.UnitConversionError{From: counted.Unit, To: storage}
		}

		res = CalibrationResult{
			Class:    class,
			EntityID: entity.ID,
			Name:     entity.Name,
			System:   entity.Stock,
			Counted:  conv.Value,
			Delta:    conv.Value.Sub(entity.Stock),
		}
		if res.Delta.Abs().LessThanOrEqual(ledger.MismatchEpsilon) {
			return nil
		}

		kind := ledger.KindAdjustIn
		if res.Delta.IsNegative() {
			kind = ledger.KindAdjustOut
		}
		reason := fmt.Sprintf("stock calibration: system %s -> counted %s", res.System.String(), res.Counted.String())
		if note != "" {
			reason += "; " + note
		}
		m, err := ledger.NewMovement(class, entity.ID, kind, ledger.Quantity{Value: res.Delta.Abs(), Unit: storage}, reason, operator)
		if err != nil {
			return err
		}
		written, err := snap.Append(m, now)
		if err != nil {
			return err
		}
		res.Adjusted = true
		res.MovementID = written.ID
		snap.Audit(ledger.AuditStockCalibrated, operator, "", 0,
			fmt.Sprintf("%s %q calibrated: %s -> %s", class, entity.Name, res.System.String(), res.Counted.String()), now)
		return nil
	})
	if err != nil {
		return CalibrationResult{}, err
	}
	if res.Adjusted {
		s.log.Info().Str("class", string(class)).Int64("entity_id", entityID).
			Str("delta", res.Delta.String()).Msg("stock calibrated")
	}
	return res, nil
}

// LowStockItem is one entity sitting below its safety stock.
type LowStockItem struct {
	Class       ledger.EntityClass `json:"class"`
	EntityID    int64              `json:"entity_id"`
	Name        string             `json:"name"`
	Unit        ledger.Unit        `json:"unit"`
	Stock       decimal.Decimal    `json:"stock"`
	SafetyStock decimal.Decimal    `json:"safety_stock"`
	Deficit     decimal.Decimal    `json:"deficit"`
}

// LowStock lists entities whose cached stock sits below a positive safety
// threshold, worst deficit first.
func (s *Service) LowStock(ctx context.Context) ([]LowStockItem, error) {
	var out []LowStockItem
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		for _, class := range []ledger.EntityClass{ledger.ClassRawMaterial, ledger.ClassProduct} {
			for _, e := range snap.Entities(class) {
				if !e.SafetyStock.IsPositive() || !e.Stock.LessThan(e.SafetyStock) {
					continue
				}
				out = append(out, LowStockItem{
					Class:       class,
					EntityID:    e.ID,
					Name:        e.Name,
					Unit:        e.Unit,
					Stock:       e.Stock,
					SafetyStock: e.SafetyStock,
					Deficit:     e.SafetyStock.Sub(e.Stock),
				})
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].Deficit.GreaterThan(out[j].Deficit)
		})
		return nil
	})
	return out, err
}

// =============================================================================
// SHARED RESOLUTION HELPERS
// =============================================================================

func resolveRaw(snap *ledger.Snapshot, ix *ledger.NameIndex, id int64, name string) (*ledger.StockEntity, error) {
	if e := snap.EntityByID(ledger.ClassRawMaterial, id); e != nil {
		return e, nil
	}
	if strings.TrimSpace(name) == "" {
		return nil, &ledger.NotFoundError{Kind: "raw_material", ID: id}
	}
	resolved, err := ix.Resolve(ledger.ClassRawMaterial, name)
	if err != nil {
		return nil, err
	}
	return snap.EntityByID(ledger.ClassRawMaterial, resolved), nil
}

// productForBOM resolves the product a BOM yields through its product foreign
// key. A BOM without one is a catalog defect the operator must fix; live
// flows do not guess by name the way the legacy rebuild does.
func productForBOM(snap *ledger.Snapshot, bomID int64) (*ledger.StockEntity, error) {
	b := snap.BOMByID(bomID)
	if b == nil {
		return nil, &ledger.NotFoundError{Kind: "bom", ID: bomID}
	}
	if b.ProductID == 0 {
		return nil, fmt.Errorf("bom %s has no product link: %w", b.Code, ledger.ErrInvalidState)
	}
	e := snap.EntityByID(ledger.ClassProduct, b.ProductID)
	if e == nil {
		return nil, &ledger.NotFoundError{Kind: "product", ID: b.ProductID}
	}
	return e, nil
}

func unitOrCanonical(u ledger.Unit, class ledger.EntityClass) ledger.Unit {
	if u == "" {
		return ledger.CanonicalUnit(class)
	}
	return u
}

// mustStorage converts to the entity's storage unit. Unlike historical issue
// lines, live documents carry trusted units: a family mismatch is an error,
// not a passthrough.
func mustStorage(q ledger.Quantity, e *ledger.StockEntity) (ledger.Quantity, string, error) {
	storage := unitOrCanonical(e.Unit, e.Class)
	if converted, ok := ledger.Convert(q, storage); ok {
		return converted, "", nil
	}
	return ledger.Quantity{}, "", &ledger.UnitConversionError{From: q.Unit, To: storage}
}

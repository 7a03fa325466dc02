/*
Package ledger provides the core inventory ledger engine.

PURPOSE:
  This package contains the types and algorithms for tracking stock as an
  append-only movement ledger. Raw materials and finished products share the
  same machinery: every quantity change is a Movement, the cached stock field
  on an entity is always derivable by folding its movements, and corrections
  are inverse movements, never edits.

KEY CONCEPTS IN THIS FILE (types.go):
  - Quantity: A decimal value with a unit (e.g., 100 kg, 2.5 ton)
  - StockEntity: A raw material or product carrying a cached stock balance
  - Movement: An immutable ledger entry recording one stock change
  - MovementKind: The typed direction of a movement (sign lives in the kind,
    never in the number)

DESIGN PRINCIPLES:
  1. Immutability: Movements are never modified, only reversed or re-tagged
  2. Precision: Uses decimal.Decimal to avoid floating-point drift
  3. Canonical units: Quantities are normalized BEFORE they reach the ledger
  4. Validated construction: NewMovement rejects malformed records up front

USAGE:
  qty := ledger.NewQuantity(10, ledger.UnitKilogram)
  m, err := ledger.NewMovement(ledger.ClassRawMaterial, materialID,
      ledger.KindConsumeOut, qty, "issue ISS-20250101-0001", "operator")

SEE ALSO:
  - unit.go: Unit families and conversion
  - balance.go: Balance calculation from movements
  - snapshot.go: The persisted state these types live in
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITY - Decimal value with unit
// =============================================================================

type Quantity struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitKilogram Unit = "kg"
	UnitTon      Unit = "ton"
	UnitGram     Unit = "g"
	UnitLiter    Unit = "l"
)

func NewQuantity(value float64, unit Unit) Quantity {
	return Quantity{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewQuantityFromDecimal(value decimal.Decimal, unit Unit) Quantity {
	return Quantity{Value: value, Unit: unit}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (q Quantity) Zero() Quantity                 { return Quantity{Value: decimal.Zero, Unit: q.Unit} }
func (q Quantity) Add(o Quantity) Quantity        { return Quantity{Value: q.Value.Add(o.Value), Unit: q.Unit} }
func (q Quantity) Sub(o Quantity) Quantity        { return Quantity{Value: q.Value.Sub(o.Value), Unit: q.Unit} }
func (q Quantity) Mul(s decimal.Decimal) Quantity { return Quantity{Value: q.Value.Mul(s), Unit: q.Unit} }
func (q Quantity) Div(s decimal.Decimal) Quantity { return Quantity{Value: q.Value.Div(s), Unit: q.Unit} }
func (q Quantity) Neg() Quantity                  { return Quantity{Value: q.Value.Neg(), Unit: q.Unit} }
func (q Quantity) Abs() Quantity                  { return Quantity{Value: q.Value.Abs(), Unit: q.Unit} }
func (q Quantity) IsNegative() bool               { return q.Value.IsNegative() }
func (q Quantity) IsZero() bool                   { return q.Value.IsZero() }
func (q Quantity) IsPositive() bool               { return q.Value.IsPositive() }
func (q Quantity) GreaterThan(o Quantity) bool    { return q.Value.GreaterThan(o.Value) }
func (q Quantity) LessThan(o Quantity) bool       { return q.Value.LessThan(o.Value) }

func (q Quantity) String() string { return q.Value.String() + string(q.Unit) }

// =============================================================================
// ENTITY CLASS + STOCK ENTITY
// =============================================================================

// EntityClass separates the two ledgers: raw materials consumed by production
// and products produced/shipped. Identifiers are unique within a class only.
type EntityClass string

const (
	ClassRawMaterial EntityClass = "raw_material"
	ClassProduct     EntityClass = "product"
)

func (c EntityClass) Valid() bool {
	return c == ClassRawMaterial || c == ClassProduct
}

// StockEntity is a raw material or product tracked by the ledger. Stock is a
// cache of the ledger fold and must only change alongside a ledger append (or
// an explicit rebuild/recalc the operator opted into).
type StockEntity struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Class       EntityClass     `json:"class"`
	Unit        Unit            `json:"unit"`
	Stock       decimal.Decimal `json:"stock_quantity"`
	SafetyStock decimal.Decimal `json:"safety_stock,omitempty"`
	UpdatedAt   time.Time       `json:"last_stock_update"`
}

// StockQuantity returns the cached stock as a Quantity in the entity's unit.
func (e *StockEntity) StockQuantity() Quantity {
	return Quantity{Value: e.Stock, Unit: e.Unit}
}

// =============================================================================
// MOVEMENT - Atomic change to entity stock
// =============================================================================

type MovementKind string

const (
	// Increasing kinds.
	KindIn        MovementKind = "in"         // Goods receipt inbound
	KindReturnIn  MovementKind = "return_in"  // Reversal of a consumption (issue cancel)
	KindProduceIn MovementKind = "produce_in" // Production order output
	KindAdjustIn  MovementKind = "adjust_in"  // Manual calibration upward

	// Decreasing kinds.
	KindOut        MovementKind = "out"         // Generic outbound
	KindConsumeOut MovementKind = "consume_out" // Material issue consumption
	KindAdjustOut  MovementKind = "adjust_out"  // Manual calibration downward
	KindShipOut    MovementKind = "ship_out"    // Shipping order outbound
)

// IsIncreasing reports whether the kind adds to stock.
func (k MovementKind) IsIncreasing() bool {
	switch k {
	case KindIn, KindReturnIn, KindProduceIn, KindAdjustIn:
		return true
	}
	return false
}

// IsDecreasing reports whether the kind subtracts from stock.
func (k MovementKind) IsDecreasing() bool {
	switch k {
	case KindOut, KindConsumeOut, KindAdjustOut, KindShipOut:
		return true
	}
	return false
}

func (k MovementKind) Valid() bool { return k.IsIncreasing() || k.IsDecreasing() }

// Sign returns +1 for increasing kinds, -1 for decreasing kinds, 0 otherwise.
func (k MovementKind) Sign() int {
	switch {
	case k.IsIncreasing():
		return 1
	case k.IsDecreasing():
		return -1
	}
	return 0
}

// IsAdjustment reports whether the kind is a manual calibration. Adjustment
// movements have no source document and are lost by a ledger rebuild.
func (k MovementKind) IsAdjustment() bool {
	return k == KindAdjustIn || k == KindAdjustOut
}

// Related document types linking a movement back to its source document.
const (
	DocTypeIssue           = "ISSUE"
	DocTypeIssueCancel     = "ISSUE_CANCEL"
	DocTypeGoodsReceipt    = "GOODS_RECEIPT"
	DocTypeProductionOrder = "PRODUCTION_ORDER"
	DocTypeShippingOrder   = "SHIPPING_ORDER"
)

// Movement is one immutable ledger entry. Quantity is always positive and in
// the owning entity's canonical unit; the sign is implied by Kind.
type Movement struct {
	ID       int64           `json:"id"`
	Class    EntityClass     `json:"class"`
	EntityID int64           `json:"entity_id"`
	Kind     MovementKind    `json:"type"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     Unit            `json:"unit"`
	Reason   string          `json:"reason,omitempty"`
	Operator string          `json:"operator,omitempty"`

	// Source document link (empty for adjustments, which have none).
	RelatedDocType string `json:"related_doc_type,omitempty"`
	RelatedDocID   int64  `json:"related_doc_id,omitempty"`
	RelatedOrderID int64  `json:"related_order_id,omitempty"`
	BomID          int64  `json:"bom_id,omitempty"`
	BomVersionID   int64  `json:"bom_version_id,omitempty"`
	BatchNumber    string `json:"batch_number,omitempty"`

	// Balance immediately after this movement. Audit display only, never
	// authoritative: the fold over movements is the truth.
	SnapshotStock *decimal.Decimal `json:"snapshot_stock,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewMovement builds a validated movement. The ledger only ever stores
// movements that pass here: known kind, valid class, positive quantity,
// explicit unit.
func NewMovement(class EntityClass, entityID int64, kind MovementKind, qty Quantity, reason, operator string) (Movement, error) {
	if !class.Valid() {
		return Movement{}, fmt.Errorf("movement: unknown entity class %q", class)
	}
	if !kind.Valid() {
		return Movement{}, fmt.Errorf("movement: unknown kind %q", kind)
	}
	if !qty.Value.IsPositive() {
		return Movement{}, fmt.Errorf("movement: quantity must be positive, got %s", qty.Value)
	}
	if qty.Unit == "" {
		return Movement{}, fmt.Errorf("movement: unit is mandatory")
	}
	return Movement{
		Class:    class,
		EntityID: entityID,
		Kind:     kind,
		Quantity: qty.Value,
		Unit:     qty.Unit,
		Reason:   reason,
		Operator: operator,
	}, nil
}

// WithDoc links the movement to its source document.
func (m Movement) WithDoc(docType string, docID int64) Movement {
	m.RelatedDocType = docType
	m.RelatedDocID = docID
	return m
}

// SignedQuantity returns the quantity with the sign implied by the kind.
func (m Movement) SignedQuantity() decimal.Decimal {
	if m.Kind.IsDecreasing() {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

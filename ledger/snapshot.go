/*
snapshot.go - The persisted state

PURPOSE:
  Snapshot is the single unit of persistence: entity catalogs, both movement
  ledgers, BOM definitions, source documents, and the audit log. Stores load
  and save it whole; nothing is patched field-by-field on disk, so a crash
  mid-write can never leave the ledger and the cached balances disagreeing.

OWNERSHIP:
  The ledger subsystem owns quantities. Entity names and document contents are
  authored by external collaborators and carried here read-mostly.

SEE ALSO:
  - store.go: SnapshotStore boundary (Load/Update/View/CreateBackup)
  - ledger.go: append and balance operations over a snapshot
*/
package ledger

import (
	"encoding/json"
	"time"
)

// Snapshot is the full persisted state. JSON keys keep the historical
// category names of the dataset this system inherited.
type Snapshot struct {
	RawMaterials     []StockEntity     `json:"raw_materials"`
	Products         []StockEntity     `json:"product_stocks"`
	RawMovements     []Movement        `json:"inventory_records"`
	ProductMovements []Movement        `json:"product_inventory_records"`
	BOMs             []BOM             `json:"boms"`
	BOMVersions      []BOMVersion      `json:"bom_versions"`
	Issues           []MaterialIssue   `json:"material_issues"`
	Receipts         []GoodsReceipt    `json:"goods_receipts"`
	Orders           []ProductionOrder `json:"production_orders"`
	Shipments        []ShippingOrder   `json:"shipping_orders"`
	AuditLog         []AuditEntry      `json:"audit_log,omitempty"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// EncodeSnapshot marshals the snapshot for a database row.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, &PersistenceError{Op: "encode", Err: err}
	}
	return data, nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	s := NewSnapshot()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, &PersistenceError{Op: "decode", Err: err}
	}
	return s, nil
}

// Clone returns a deep copy. decimal.Decimal values are immutable and shared
// safely; slices and pointer fields are copied.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		RawMaterials:     append([]StockEntity(nil), s.RawMaterials...),
		Products:         append([]StockEntity(nil), s.Products...),
		RawMovements:     cloneMovements(s.RawMovements),
		ProductMovements: cloneMovements(s.ProductMovements),
		BOMs:             append([]BOM(nil), s.BOMs...),
		BOMVersions:      cloneBOMVersions(s.BOMVersions),
		Issues:           cloneIssues(s.Issues),
		Receipts:         cloneReceipts(s.Receipts),
		Orders:           append([]ProductionOrder(nil), s.Orders...),
		Shipments:        cloneShipments(s.Shipments),
		AuditLog:         append([]AuditEntry(nil), s.AuditLog...),
	}
	return out
}

func cloneMovements(in []Movement) []Movement {
	out := append([]Movement(nil), in...)
	for i := range out {
		if out[i].SnapshotStock != nil {
			v := *out[i].SnapshotStock
			out[i].SnapshotStock = &v
		}
	}
	return out
}

func cloneBOMVersions(in []BOMVersion) []BOMVersion {
	out := append([]BOMVersion(nil), in...)
	for i := range out {
		out[i].Lines = append([]BOMLine(nil), in[i].Lines...)
	}
	return out
}

func cloneIssues(in []MaterialIssue) []MaterialIssue {
	out := append([]MaterialIssue(nil), in...)
	for i := range out {
		out[i].Lines = append([]IssueLine(nil), in[i].Lines...)
	}
	return out
}

func cloneReceipts(in []GoodsReceipt) []GoodsReceipt {
	out := append([]GoodsReceipt(nil), in...)
	for i := range out {
		out[i].Items = append([]ReceiptItem(nil), in[i].Items...)
	}
	return out
}

func cloneShipments(in []ShippingOrder) []ShippingOrder {
	out := append([]ShippingOrder(nil), in...)
	for i := range out {
		out[i].Items = append([]ShipmentItem(nil), in[i].Items...)
	}
	return out
}

// =============================================================================
// ENTITY ACCESS
// =============================================================================

// Entities returns the catalog for a class. The returned slice is the live
// backing array; callers holding a lock may mutate entries through it.
func (s *Snapshot) Entities(class EntityClass) []StockEntity {
	if class == ClassProduct {
		return s.Products
	}
	return s.RawMaterials
}

// EntityByID returns a pointer into the catalog, or nil when absent.
func (s *Snapshot) EntityByID(class EntityClass, id int64) *StockEntity {
	list := s.Entities(class)
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

// NextEntityID returns max existing id + 1 for the class. Gap-safe: deleting
// records can never cause id reuse the way a stored counter could.
func (s *Snapshot) NextEntityID(class EntityClass) int64 {
	var max int64
	for _, e := range s.Entities(class) {
		if e.ID > max {
			max = e.ID
		}
	}
	return max + 1
}

// AddEntity assigns the next id for the entity's class, appends it, and
// returns a pointer to the stored record.
func (s *Snapshot) AddEntity(e StockEntity) *StockEntity {
	e.ID = s.NextEntityID(e.Class)
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	if e.Class == ClassProduct {
		s.Products = append(s.Products, e)
		return &s.Products[len(s.Products)-1]
	}
	s.RawMaterials = append(s.RawMaterials, e)
	return &s.RawMaterials[len(s.RawMaterials)-1]
}

// =============================================================================
// MOVEMENT ACCESS
// =============================================================================

// Movements returns the ledger for a class.
func (s *Snapshot) Movements(class EntityClass) []Movement {
	if class == ClassProduct {
		return s.ProductMovements
	}
	return s.RawMovements
}

func (s *Snapshot) setMovements(class EntityClass, ms []Movement) {
	if class == ClassProduct {
		s.ProductMovements = ms
		return
	}
	s.RawMovements = ms
}

// NextMovementID returns max existing id + 1 within a class ledger.
func (s *Snapshot) NextMovementID(class EntityClass) int64 {
	var max int64
	for _, m := range s.Movements(class) {
		if m.ID > max {
			max = m.ID
		}
	}
	return max + 1
}

// =============================================================================
// DOCUMENT LOOKUP
// =============================================================================

func (s *Snapshot) IssueByID(id int64) *MaterialIssue {
	for i := range s.Issues {
		if s.Issues[i].ID == id {
			return &s.Issues[i]
		}
	}
	return nil
}

func (s *Snapshot) ReceiptByID(id int64) *GoodsReceipt {
	for i := range s.Receipts {
		if s.Receipts[i].ID == id {
			return &s.Receipts[i]
		}
	}
	return nil
}

func (s *Snapshot) OrderByID(id int64) *ProductionOrder {
	for i := range s.Orders {
		if s.Orders[i].ID == id {
			return &s.Orders[i]
		}
	}
	return nil
}

func (s *Snapshot) ShipmentByID(id int64) *ShippingOrder {
	for i := range s.Shipments {
		if s.Shipments[i].ID == id {
			return &s.Shipments[i]
		}
	}
	return nil
}

func (s *Snapshot) NextIssueID() int64 {
	var max int64
	for _, is := range s.Issues {
		if is.ID > max {
			max = is.ID
		}
	}
	return max + 1
}

// documents.go - Source documents the ledger replays: material issues, goods
// receipts, production orders, shipping orders. The documents are authored
// elsewhere (data entry); this subsystem reads them, moves stock when they
// post/complete/finish/ship, and links every movement back to its document.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MATERIAL ISSUE
// =============================================================================

type IssueStatus string

const (
	IssueDraft  IssueStatus = "draft"
	IssuePosted IssueStatus = "posted"
)

// MaterialIssue requests consumption of materials for a production order.
// Lifecycle: DRAFT -> POSTED (movements appended, stock decremented) ->
// DRAFT again on cancel (inverse movements appended). Never hard-deleted
// once posted; the ledger keeps the trail.
type MaterialIssue struct {
	ID                int64       `json:"id"`
	Code              string      `json:"issue_code"`
	ProductionOrderID int64       `json:"production_order_id,omitempty"`
	BomID             int64       `json:"bom_id,omitempty"`
	BomVersionID      int64       `json:"bom_version_id,omitempty"`
	Status            IssueStatus `json:"status"`
	Lines             []IssueLine `json:"lines"`
	PostedAt          *time.Time  `json:"posted_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"last_modified"`
}

type IssueLine struct {
	ItemID      int64           `json:"item_id"`
	ItemName    string          `json:"item_name"`
	ItemType    EntityClass     `json:"item_type"`
	RequiredQty decimal.Decimal `json:"required_qty"`
	Unit        Unit            `json:"uom"`
	Phase       string          `json:"phase,omitempty"`
}

// =============================================================================
// GOODS RECEIPT
// =============================================================================

type ReceiptStatus string

const (
	ReceiptDraft     ReceiptStatus = "draft"
	ReceiptCompleted ReceiptStatus = "completed"
	ReceiptCancelled ReceiptStatus = "cancelled"
)

type GoodsReceipt struct {
	ID          int64         `json:"id"`
	Code        string        `json:"receipt_code"`
	Status      ReceiptStatus `json:"status"`
	Items       []ReceiptItem `json:"items"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

type ReceiptItem struct {
	MaterialID   int64           `json:"material_id"`
	MaterialName string          `json:"material_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         Unit            `json:"unit"`
	Remark       string          `json:"remark,omitempty"`
}

// =============================================================================
// PRODUCTION ORDER
// =============================================================================

type OrderStatus string

const (
	OrderPlanned    OrderStatus = "planned"
	OrderInProgress OrderStatus = "in_progress"
	OrderFinished   OrderStatus = "finished"
	OrderCancelled  OrderStatus = "cancelled"
)

type ProductionOrder struct {
	ID           int64           `json:"id"`
	Code         string          `json:"order_code"`
	Status       OrderStatus     `json:"status"`
	BomID        int64           `json:"bom_id"`
	BomVersionID int64           `json:"bom_version_id"`
	PlanQty      decimal.Decimal `json:"plan_qty"`
	ActualQty    decimal.Decimal `json:"actual_quantity,omitempty"`
	Unit         Unit            `json:"unit,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// =============================================================================
// SHIPPING ORDER
// =============================================================================

type ShipmentStatus string

const (
	ShipmentDraft     ShipmentStatus = "draft"
	ShipmentShipped   ShipmentStatus = "shipped"
	ShipmentCancelled ShipmentStatus = "cancelled"
)

type ShippingOrder struct {
	ID        int64          `json:"id"`
	Code      string         `json:"shipping_code"`
	Status    ShipmentStatus `json:"status"`
	Items     []ShipmentItem `json:"items"`
	ShippedAt *time.Time     `json:"shipped_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ShipmentItem struct {
	ProductID   int64           `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        Unit            `json:"unit"`
}

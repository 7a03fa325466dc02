// audit.go - Operation audit trail, separate from the movement ledgers.
// Records who ran which operation against which document. Append-only like
// everything else in the snapshot.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditIssuePosted     AuditAction = "issue_posted"
	AuditIssueCancelled  AuditAction = "issue_cancelled"
	AuditIssueCreated    AuditAction = "issue_created"
	AuditReceiptComplete AuditAction = "receipt_completed"
	AuditOrderFinished   AuditAction = "order_finished"
	AuditShipmentShipped AuditAction = "shipment_shipped"
	AuditStockCalibrated AuditAction = "stock_calibrated"
	AuditLedgerRebuilt   AuditAction = "ledger_rebuilt"
	AuditStockRecalced   AuditAction = "stock_recalculated"
)

// AuditEntry records who did what when.
type AuditEntry struct {
	ID       string      `json:"id"`
	At       time.Time   `json:"at"`
	Operator string      `json:"operator"`
	Action   AuditAction `json:"action"`
	DocType  string      `json:"doc_type,omitempty"`
	DocID    int64       `json:"doc_id,omitempty"`
	Details  string      `json:"details,omitempty"`
}

// Audit appends an entry to the snapshot's trail and returns it.
func (s *Snapshot) Audit(action AuditAction, operator, docType string, docID int64, details string, now time.Time) AuditEntry {
	e := AuditEntry{
		ID:       uuid.NewString(),
		At:       now,
		Operator: operator,
		Action:   action,
		DocType:  docType,
		DocID:    docID,
		Details:  details,
	}
	s.AuditLog = append(s.AuditLog, e)
	return e
}

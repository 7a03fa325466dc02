/*
dto.go - Request/response shapes for the HTTP API

PURPOSE:
  Request bodies the API accepts and the small response wrappers that do not
  map one-to-one onto a domain type. Domain types that already carry wire
  tags (movements, issues, documents) are returned directly.

SEE ALSO:
  - handlers.go: where these are decoded and filled
*/
package api

import "github.com/warp/inventory-engine/issue"

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// OperatorRequest carries just the acting operator. Used by post, cancel,
// complete, and ship endpoints.
type OperatorRequest struct {
	Operator string `json:"operator"`
}

// FinishOrderRequest finishes a production order. ActualQty empty or "0"
// falls back to the planned quantity.
type FinishOrderRequest struct {
	ActualQty string `json:"actual_qty,omitempty"`
	Operator  string `json:"operator"`
}

// CalibrateRequest reconciles one entity against a physical count.
type CalibrateRequest struct {
	Class    string `json:"class"`
	EntityID int64  `json:"entity_id"`
	Counted  string `json:"counted"`
	Unit     string `json:"unit"`
	Note     string `json:"note,omitempty"`
	Operator string `json:"operator"`
}

// RebuildRequest triggers a ledger rebuild. Run false is a dry run.
type RebuildRequest struct {
	Run                  bool   `json:"run"`
	LegacyUnitHeuristics bool   `json:"legacy_unit_heuristics"`
	Operator             string `json:"operator"`
}

// RecalcRequest triggers a cached-stock recalculation. Run false is a dry
// run.
type RecalcRequest struct {
	Run      bool   `json:"run"`
	Operator string `json:"operator"`
}

// IssueResultDTO reports what posting or cancelling an issue did.
type IssueResultDTO struct {
	IssueID  int64  `json:"issue_id"`
	Code     string `json:"issue_code"`
	Applied  int    `json:"applied"`
	Skipped  int    `json:"skipped"`
	Retagged int    `json:"retagged,omitempty"`
	Message  string `json:"message"`
}

func toIssueResultDTO(r issue.Result) IssueResultDTO {
	return IssueResultDTO{
		IssueID:  r.IssueID,
		Code:     r.Code,
		Applied:  r.Applied,
		Skipped:  r.Skipped,
		Retagged: r.Retagged,
		Message:  r.Message,
	}
}

// BalanceDTO is one entity's ledger fold.
type BalanceDTO struct {
	Class    string `json:"class"`
	EntityID int64  `json:"entity_id"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

// BackupResponse names the backup a store produced.
type BackupResponse struct {
	Backup string `json:"backup"`
}

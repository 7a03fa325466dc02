/*
handlers.go - HTTP handlers over the inventory service

PURPOSE:
  Exposes the engine via REST. Handlers parse and validate the request,
  delegate to inventory.Service, and serialize the result. No domain logic
  lives here.

ERROR HANDLING:
  Domain errors map onto HTTP status by classification:
  - 400: bad input, unit conversion failures
  - 404: unknown entity/document
  - 409: state-machine violations, ambiguous names, insufficient stock
  - 503: store lock not acquired in time
  - 500: everything else

SECURITY NOTE:
  No authentication. The engine is deployed behind the plant's internal
  gateway, which owns identity.

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/ledger"
)

// Handler holds the dependencies of every route.
type Handler struct {
	svc *inventory.Service
	log zerolog.Logger
}

func NewHandler(svc *inventory.Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// =============================================================================
// CATALOG / BALANCES
// =============================================================================

// ListMaterials returns the raw material catalog.
// GET /api/materials
func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Materials(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ListProducts returns the product catalog.
// GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Products(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ListBalances folds both ledgers and reports cache drift per entity.
// GET /api/balances
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.svc.GetAllBalances(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// GetBalance folds the ledger for one entity.
// GET /api/balances/{class}/{id}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	class, id, ok := classAndID(w, r)
	if !ok {
		return
	}
	q, err := h.svc.GetBalance(r.Context(), class, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		Class:    string(class),
		EntityID: id,
		Quantity: q.Value.String(),
		Unit:     string(q.Unit),
	})
}

// ListMovements returns the ledger for one entity, append order.
// GET /api/movements/{class}/{id}
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	class, id, ok := classAndID(w, r)
	if !ok {
		return
	}
	movements, err := h.svc.Movements(r.Context(), class, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

// LowStock lists entities below their safety stock.
// GET /api/low-stock
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.LowStock(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// =============================================================================
// MATERIAL ISSUES
// =============================================================================

// ListIssues returns all material issues.
// GET /api/issues
func (h *Handler) ListIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.svc.Issues(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// GetIssue returns one issue.
// GET /api/issues/{id}
func (h *Handler) GetIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	is, err := h.svc.Issue(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, is)
}

// PostIssue posts a draft issue: stock moves, status flips.
// POST /api/issues/{id}/post
func (h *Handler) PostIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req OperatorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.PostIssue(r.Context(), id, req.Operator)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIssueResultDTO(res))
}

// CancelIssue reverses a posted issue.
// POST /api/issues/{id}/cancel
func (h *Handler) CancelIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req OperatorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.CancelIssue(r.Context(), id, req.Operator)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIssueResultDTO(res))
}

// CreateIssueFromOrder drafts an issue from a production order's BOM.
// POST /api/orders/{id}/issues
func (h *Handler) CreateIssueFromOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req OperatorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	is, err := h.svc.CreateIssueFromOrder(r.Context(), id, req.Operator)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, is)
}

// =============================================================================
// BOM
// =============================================================================

// ExplodeBOM scales a BOM version to ?qty=, optionally ?deep=true through
// nested product lines. Unknown versions return an empty list.
// GET /api/bom-versions/{id}/explode?qty=2000&deep=true
func (h *Handler) ExplodeBOM(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	qty, err := decimal.NewFromString(r.URL.Query().Get("qty"))
	if err != nil || !qty.IsPositive() {
		writeError(w, http.StatusBadRequest, "qty must be a positive number", err)
		return
	}
	deep := r.URL.Query().Get("deep") == "true"

	lines, err := h.svc.ExplodeBOM(r.Context(), id, qty, deep)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// ListReceipts returns all goods receipts.
// GET /api/receipts
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Receipts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CompleteReceipt books a draft receipt into stock.
// POST /api/receipts/{id}/complete
func (h *Handler) CompleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req OperatorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	applied, err := h.svc.CompleteReceipt(r.Context(), id, req.Operator)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"items_booked": applied})
}

// ListOrders returns all production orders.
// GET /api/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Orders(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// FinishOrder records production output for an order.
// POST /api/orders/{id}/finish
func (h *Handler) FinishOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req FinishOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actual := decimal.Zero
	if req.ActualQty != "" {
		var err error
		actual, err = decimal.NewFromString(req.ActualQty)
		if err != nil {
			writeError(w, http.StatusBadRequest, "actual_qty must be a number", err)
			return
		}
	}
	m, err := h.svc.FinishOrder(r.Context(), id, actual, req.Operator)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListShipments returns all shipping orders.
// GET /api/shipments
func (h *Handler) ListShipments(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Shipments(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ShipOrder posts a draft shipment.
// POST /api/shipments/{id}/ship
func (h *Handler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req OperatorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	applied, err := h.svc.ShipOrder(r.Context(), id, req.Operator)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"lines_shipped": applied})
}

// =============================================================================
// CALIBRATION
// =============================================================================

// Calibrate reconciles an entity against a physical count.
// POST /api/calibrations
func (h *Handler) Calibrate(w http.ResponseWriter, r *http.Request) {
	var req CalibrateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	class := ledger.EntityClass(req.Class)
	if !class.Valid() {
		writeError(w, http.StatusBadRequest, "class must be raw_material or product", nil)
		return
	}
	counted, err := decimal.NewFromString(req.Counted)
	if err != nil || counted.IsNegative() {
		writeError(w, http.StatusBadRequest, "counted must be a non-negative number", err)
		return
	}
	if req.Unit == "" {
		writeError(w, http.StatusBadRequest, "unit is required", nil)
		return
	}

	res, err := h.svc.Calibrate(r.Context(), class, req.EntityID,
		ledger.Quantity{Value: counted, Unit: ledger.Unit(req.Unit)}, req.Note, req.Operator)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// ADMIN
// =============================================================================

// Diagnostics reports consistency findings without mutating anything.
// GET /api/admin/diagnostics
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	findings, err := h.svc.Diagnose(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, findings)
}

// Rebuild replays source documents into fresh ledgers. Defaults to a dry
// run; the summary discloses dropped adjustments either way.
// POST /api/admin/rebuild
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req RebuildRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sum, err := h.svc.RebuildLedger(r.Context(), inventory.RebuildOptions{
		Run:                  req.Run,
		LegacyUnitHeuristics: req.LegacyUnitHeuristics,
		Operator:             req.Operator,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Recalc resyncs cached stocks to the ledger fold. Defaults to a dry run.
// POST /api/admin/recalc
func (h *Handler) Recalc(w http.ResponseWriter, r *http.Request) {
	var req RecalcRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sum, err := h.svc.Recalc(r.Context(), inventory.RecalcOptions{Run: req.Run, Operator: req.Operator})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Backup captures the persisted state out-of-line.
// POST /api/admin/backup
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	label, err := h.svc.CreateBackup(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BackupResponse{Backup: label})
}

// AuditTrail returns recent audit entries, newest first. ?limit= caps the
// count.
// GET /api/audit
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		limit = n
	}
	entries, err := h.svc.AuditTrail(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Healthz is the liveness probe.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case ledger.IsInvalidState(err),
		errors.Is(err, ledger.ErrAmbiguousName),
		errors.Is(err, ledger.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "conflict", err)
	case ledger.IsConversionFailure(err):
		writeError(w, http.StatusBadRequest, "unit conversion failed", err)
	case errors.Is(err, ledger.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "store is busy", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer", err)
		return 0, false
	}
	return id, true
}

func classAndID(w http.ResponseWriter, r *http.Request) (ledger.EntityClass, int64, bool) {
	class := ledger.EntityClass(chi.URLParam(r, "class"))
	if !class.Valid() {
		writeError(w, http.StatusBadRequest, "class must be raw_material or product", nil)
		return "", 0, false
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return "", 0, false
	}
	return class, id, true
}

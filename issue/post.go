// post.go - Posting a draft issue: consume stock, link movements, flip state.
package issue

import (
	"fmt"

	"github.com/warp/inventory-engine/ledger"
)

// Post posts a draft issue. All line movements and stock updates land on the
// snapshot together; the caller persists the snapshot as one unit, so either
// the whole post commits or none of it does.
func Post(snap *ledger.Snapshot, issueID int64, p Params) (Result, error) {
	now := p.now()
	is := snap.IssueByID(issueID)
	if is == nil {
		return Result{}, &ledger.NotFoundError{Kind: "issue", ID: issueID}
	}
	if is.Status != ledger.IssueDraft {
		return Result{}, &ledger.InvalidStateError{Doc: "issue", ID: issueID, Current: string(is.Status), Want: string(ledger.IssueDraft)}
	}
	if len(is.Lines) == 0 {
		return Result{}, fmt.Errorf("issue %d has no lines to post: %w", issueID, ledger.ErrInvalidState)
	}

	ix := ledger.BuildNameIndex(snap)
	bomID, bomVersionID := issueBomRefs(snap, is)

	res := Result{IssueID: is.ID, Code: is.Code}
	for _, line := range is.Lines {
		if !line.RequiredQty.IsPositive() {
			res.Skipped++
			continue
		}
		class := lineClass(line)
		entity, err := resolveEntity(snap, ix, class, line, now, true)
		if err != nil {
			return Result{}, err
		}

		qty, annotation := convertLine(line, storageUnit(entity))
		reason := "material issue " + is.Code + annotation

		m, err := ledger.NewMovement(class, entity.ID, ledger.KindConsumeOut, qty, reason, p.operator())
		if err != nil {
			return Result{}, err
		}
		m = m.WithDoc(ledger.DocTypeIssue, is.ID)
		m.RelatedOrderID = is.ProductionOrderID
		m.BomID = bomID
		m.BomVersionID = bomVersionID

		if class == ledger.ClassRawMaterial && p.isUnlimited(entity.Name) {
			_, err = snap.AppendAudit(m, now)
		} else {
			_, err = snap.Append(m, now)
		}
		if err != nil {
			return Result{}, err
		}
		res.Applied++
	}

	is.Status = ledger.IssuePosted
	is.PostedAt = &now
	is.UpdatedAt = now

	res.Message = fmt.Sprintf("issue %s posted: %d lines consumed, %d skipped", is.Code, res.Applied, res.Skipped)
	snap.Audit(ledger.AuditIssuePosted, p.operator(), ledger.DocTypeIssue, is.ID, res.Message, now)
	return res, nil
}

// issueBomRefs pulls the BOM link for movements from the issue itself, or
// from its production order when the issue does not carry one.
func issueBomRefs(snap *ledger.Snapshot, is *ledger.MaterialIssue) (int64, int64) {
	bomID, verID := is.BomID, is.BomVersionID
	if bomID == 0 && is.ProductionOrderID != 0 {
		if ord := snap.OrderByID(is.ProductionOrderID); ord != nil {
			bomID, verID = ord.BomID, ord.BomVersionID
		}
	}
	return bomID, verID
}

// cancel.go - Reversing a posted issue: restore stock with inverse movements,
// re-tag the original consumption, return the issue to draft.
package issue

import (
	"fmt"

	"github.com/warp/inventory-engine/ledger"
)

const cancelledSuffix = " (cancelled)"

// Cancel reverses a posted issue. Every original line gets the exact inverse
// RETURN_IN movement (same conversion), the original CONSUME_OUT movements
// are re-tagged from ISSUE to ISSUE_CANCEL so later passes do not count them
// as live consumption, and the issue returns to draft.
func Cancel(snap *ledger.Snapshot, issueID int64, p Params) (Result, error) {
	now := p.now()
	is := snap.IssueByID(issueID)
	if is == nil {
		return Result{}, &ledger.NotFoundError{Kind: "issue", ID: issueID}
	}
	if is.Status != ledger.IssuePosted {
		return Result{}, &ledger.InvalidStateError{Doc: "issue", ID: issueID, Current: string(is.Status), Want: string(ledger.IssuePosted)}
	}

	ix := ledger.BuildNameIndex(snap)

	res := Result{IssueID: is.ID, Code: is.Code}
	for _, line := range is.Lines {
		if !line.RequiredQty.IsPositive() {
			res.Skipped++
			continue
		}
		class := lineClass(line)
		// No auto-create on the way back: an entity the post never touched
		// has nothing to restore.
		entity, err := resolveEntity(snap, ix, class, line, now, false)
		if err != nil {
			if ledger.IsNotFound(err) {
				res.Skipped++
				continue
			}
			return Result{}, err
		}

		qty, annotation := convertLine(line, storageUnit(entity))
		reason := "reversal of issue " + is.Code + annotation

		m, err := ledger.NewMovement(class, entity.ID, ledger.KindReturnIn, qty, reason, p.operator())
		if err != nil {
			return Result{}, err
		}
		m = m.WithDoc(ledger.DocTypeIssueCancel, is.ID)
		m.RelatedOrderID = is.ProductionOrderID

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

	res.Retagged = snap.RetagDocMovements(ledger.ClassRawMaterial, ledger.DocTypeIssue, is.ID, ledger.DocTypeIssueCancel, cancelledSuffix)
	res.Retagged += snap.RetagDocMovements(ledger.ClassProduct, ledger.DocTypeIssue, is.ID, ledger.DocTypeIssueCancel, cancelledSuffix)

	is.Status = ledger.IssueDraft
	is.PostedAt = nil
	is.UpdatedAt = now

	res.Message = fmt.Sprintf("issue %s cancelled: %d lines restored, %d movements re-tagged", is.Code, res.Applied, res.Retagged)
	snap.Audit(ledger.AuditIssueCancelled, p.operator(), ledger.DocTypeIssue, is.ID, res.Message, now)
	return res, nil
}

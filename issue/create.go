// create.go - Drafting an issue from a production order's BOM.
package issue

import (
	"fmt"

	"github.com/warp/inventory-engine/bom"
	"github.com/warp/inventory-engine/ledger"
)

// CreateFromOrder explodes the order's BOM version to the plan quantity and
// drafts a material issue from the requirements. When the pinned version has
// no lines, the latest usable version that does is used instead.
func CreateFromOrder(snap *ledger.Snapshot, orderID int64, p Params) (*ledger.MaterialIssue, error) {
	now := p.now()
	ord := snap.OrderByID(orderID)
	if ord == nil {
		return nil, &ledger.NotFoundError{Kind: "production_order", ID: orderID}
	}

	version := snap.BOMVersionByID(ord.BomVersionID)
	if version == nil || len(version.Lines) == 0 {
		version = snap.LatestUsableVersionWithLines(ord.BomID)
	}
	if version == nil {
		return nil, &ledger.NotFoundError{Kind: "bom_version", ID: ord.BomVersionID}
	}

	reqs := bom.Explode(snap, version.ID, ord.PlanQty)
	if len(reqs) == 0 {
		return nil, fmt.Errorf("bom version %d produced no requirements for order %s: %w",
			version.ID, ord.Code, ledger.ErrInvalidState)
	}

	lines := make([]ledger.IssueLine, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, ledger.IssueLine{
			ItemID:      r.ItemID,
			ItemName:    r.ItemName,
			ItemType:    r.ItemType,
			RequiredQty: r.RequiredQty,
			Unit:        r.Unit,
			Phase:       r.Phase,
		})
	}

	id := snap.NextIssueID()
	is := ledger.MaterialIssue{
		ID:                id,
		Code:              fmt.Sprintf("ISS-%s-%04d", now.Format("20060102"), id),
		ProductionOrderID: ord.ID,
		BomID:             version.BomID,
		BomVersionID:      version.ID,
		Status:            ledger.IssueDraft,
		Lines:             lines,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	snap.Issues = append(snap.Issues, is)

	snap.Audit(ledger.AuditIssueCreated, p.operator(), ledger.DocTypeIssue, is.ID,
		fmt.Sprintf("issue %s drafted from order %s (%d lines)", is.Code, ord.Code, len(lines)), now)
	return snap.IssueByID(is.ID), nil
}

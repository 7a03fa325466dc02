package issue_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/issue"
	"github.com/warp/inventory-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var postTime = time.Date(2025, time.June, 15, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testParams() issue.Params {
	return issue.Params{
		Operator:  "tester",
		Now:       postTime,
		Unlimited: issue.UnlimitedSet([]string{"tap water"}),
	}
}

// issueSnapshot: three raw materials (water is an unlimited utility), one
// product, one draft issue consuming 10 kg of cement for order 4.
func issueSnapshot() *ledger.Snapshot {
	snap := ledger.NewSnapshot()
	snap.RawMaterials = []ledger.StockEntity{
		{ID: 1, Name: "Cement 42.5", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, Stock: d("100")},
		{ID: 2, Name: "Tap Water", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram},
		{ID: 3, Name: "Sodium Gluconate", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, Stock: d("50")},
	}
	snap.Products = []ledger.StockEntity{
		{ID: 10, Name: "PCE Standard", Class: ledger.ClassProduct, Unit: ledger.UnitKilogram},
	}
	snap.Orders = []ledger.ProductionOrder{
		{ID: 4, Code: "PO-0007", Status: ledger.OrderPlanned, BomID: 9, BomVersionID: 12, PlanQty: d("2000"), Unit: ledger.UnitKilogram},
	}
	snap.Issues = []ledger.MaterialIssue{
		{
			ID: 1, Code: "ISS-20250610-0001", ProductionOrderID: 4, BomID: 9, BomVersionID: 12,
			Status: ledger.IssueDraft,
			Lines: []ledger.IssueLine{
				{ItemID: 1, ItemName: "Cement 42.5", ItemType: ledger.ClassRawMaterial, RequiredQty: d("10"), Unit: ledger.UnitKilogram},
			},
			CreatedAt: postTime.Add(-time.Hour),
		},
	}
	return snap
}

func rawStock(t *testing.T, snap *ledger.Snapshot, id int64) decimal.Decimal {
	t.Helper()
	e := snap.EntityByID(ledger.ClassRawMaterial, id)
	require.NotNil(t, e)
	return e.Stock
}

// =============================================================================
// POST
// =============================================================================

func TestPost_ConsumesStockAndLinksMovement(t *testing.T) {
	// GIVEN: A draft issue for 10 kg cement, stock 100
	// WHEN: Posting
	// THEN: Stock 90, one CONSUME_OUT movement linked to issue and order,
	//       issue POSTED with the posting time

	snap := issueSnapshot()

	res, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.IssueID)
	assert.Equal(t, "ISS-20250610-0001", res.Code)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 0, res.Skipped)

	assert.True(t, rawStock(t, snap, 1).Equal(d("90")))

	require.Len(t, snap.RawMovements, 1)
	m := snap.RawMovements[0]
	assert.Equal(t, ledger.KindConsumeOut, m.Kind)
	assert.True(t, m.Quantity.Equal(d("10")))
	assert.Equal(t, ledger.DocTypeIssue, m.RelatedDocType)
	assert.Equal(t, int64(1), m.RelatedDocID)
	assert.Equal(t, int64(4), m.RelatedOrderID)
	assert.Equal(t, int64(9), m.BomID)
	assert.Equal(t, int64(12), m.BomVersionID)
	assert.Equal(t, "material issue ISS-20250610-0001", m.Reason)
	assert.Equal(t, "tester", m.Operator)

	is := snap.IssueByID(1)
	assert.Equal(t, ledger.IssuePosted, is.Status)
	require.NotNil(t, is.PostedAt)
	assert.Equal(t, postTime, *is.PostedAt)

	require.Len(t, snap.AuditLog, 1)
	assert.Equal(t, ledger.AuditIssuePosted, snap.AuditLog[0].Action)
}

func TestPost_AlreadyPosted_Rejected(t *testing.T) {
	snap := issueSnapshot()
	_, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)

	_, err = issue.Post(snap, 1, testParams())

	assert.True(t, ledger.IsInvalidState(err))
	assert.True(t, rawStock(t, snap, 1).Equal(d("90")), "no double consumption")
	assert.Len(t, snap.RawMovements, 1)
}

func TestPost_UnknownIssue_NotFound(t *testing.T) {
	snap := issueSnapshot()

	_, err := issue.Post(snap, 999, testParams())

	assert.True(t, ledger.IsNotFound(err))
}

func TestPost_NoLines_Rejected(t *testing.T) {
	snap := issueSnapshot()
	snap.Issues[0].Lines = nil

	_, err := issue.Post(snap, 1, testParams())

	assert.True(t, ledger.IsInvalidState(err))
}

func TestPost_TonLineConvertedToStorageUnit(t *testing.T) {
	// GIVEN: A line of 0.05 ton against a kilogram entity
	// WHEN: Posting
	// THEN: The movement carries 50 kg; conversion happened before the ledger

	snap := issueSnapshot()
	snap.Issues[0].Lines = []ledger.IssueLine{
		{ItemID: 1, ItemName: "Cement 42.5", ItemType: ledger.ClassRawMaterial, RequiredQty: d("0.05"), Unit: ledger.UnitTon},
	}

	_, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)

	require.Len(t, snap.RawMovements, 1)
	assert.True(t, snap.RawMovements[0].Quantity.Equal(d("50")))
	assert.Equal(t, ledger.UnitKilogram, snap.RawMovements[0].Unit)
	assert.True(t, rawStock(t, snap, 1).Equal(d("50")))
	assert.Equal(t, "material issue ISS-20250610-0001", snap.RawMovements[0].Reason, "clean conversions are not annotated")
}

func TestPost_UnconvertibleUnitPassesThroughAnnotated(t *testing.T) {
	// GIVEN: A historical line in "桶" (barrels), unknown to the unit table
	// WHEN: Posting
	// THEN: The raw number passes through under the storage unit and the
	//       reason records the original quantity; the post is not blocked

	snap := issueSnapshot()
	snap.Issues[0].Lines = []ledger.IssueLine{
		{ItemID: 1, ItemName: "Cement 42.5", ItemType: ledger.ClassRawMaterial, RequiredQty: d("10"), Unit: ledger.Unit("桶")},
	}

	res, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	require.Len(t, snap.RawMovements, 1)
	m := snap.RawMovements[0]
	assert.True(t, m.Quantity.Equal(d("10")))
	assert.Equal(t, ledger.UnitKilogram, m.Unit)
	assert.Contains(t, m.Reason, " (orig: 10桶)")
	assert.True(t, rawStock(t, snap, 1).Equal(d("90")))
}

func TestPost_UnlimitedUtility_RecordedButStockUntouched(t *testing.T) {
	// GIVEN: A line on Tap Water, which is on the unlimited list
	// WHEN: Posting
	// THEN: The movement lands in the ledger for the trail, stock stays put

	snap := issueSnapshot()
	snap.Issues[0].Lines = append(snap.Issues[0].Lines,
		ledger.IssueLine{ItemID: 2, ItemName: "Tap Water", ItemType: ledger.ClassRawMaterial, RequiredQty: d("545"), Unit: ledger.UnitKilogram})

	res, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)

	assert.True(t, rawStock(t, snap, 2).IsZero(), "water stock is not tracked")
	assert.Len(t, snap.MovementsFor(ledger.ClassRawMaterial, 2), 1, "consumption still recorded")
}

func TestPost_UnlimitedMatchIsCaseInsensitive(t *testing.T) {
	// The catalog says "Tap Water"; the configured list says "tap water".
	snap := issueSnapshot()
	snap.Issues[0].Lines = []ledger.IssueLine{
		{ItemID: 2, ItemName: "Tap Water", ItemType: ledger.ClassRawMaterial, RequiredQty: d("100"), Unit: ledger.UnitKilogram},
	}
	p := testParams()
	p.Unlimited = issue.UnlimitedSet(issue.DefaultUnlimitedNames())

	_, err := issue.Post(snap, 1, p)
	require.NoError(t, err)

	assert.True(t, rawStock(t, snap, 2).IsZero())
}

func TestPost_ZeroQuantityLineSkipped(t *testing.T) {
	snap := issueSnapshot()
	snap.Issues[0].Lines = append(snap.Issues[0].Lines,
		ledger.IssueLine{ItemID: 3, ItemName: "Sodium Gluconate", ItemType: ledger.ClassRawMaterial, RequiredQty: decimal.Zero, Unit: ledger.UnitKilogram})

	res, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Skipped)
	assert.True(t, rawStock(t, snap, 3).Equal(d("50")))
}

func TestPost_UnknownRawMaterial_FailsWholePost(t *testing.T) {
	// Raw materials are never invented on the fly; the caller's store discards
	// the snapshot when this error comes back.

	snap := issueSnapshot()
	snap.Issues[0].Lines = []ledger.IssueLine{
		{ItemID: 0, ItemName: "Unobtainium", ItemType: ledger.ClassRawMaterial, RequiredQty: d("5"), Unit: ledger.UnitKilogram},
	}

	_, err := issue.Post(snap, 1, testParams())

	assert.True(t, ledger.IsNotFound(err))
	assert.Equal(t, ledger.IssueDraft, snap.IssueByID(1).Status, "status not flipped")
}

func TestPost_SemiFinishedProductAutoCreated(t *testing.T) {
	// GIVEN: A product-typed line the catalog has never seen
	// WHEN: Posting
	// THEN: The product is created and consumed; legacy issues reference
	//       semi-finished pastes that only exist as BOM lines

	snap := issueSnapshot()
	snap.Issues[0].Lines = []ledger.IssueLine{
		{ItemID: 0, ItemName: "Base Paste 40%", ItemType: ledger.ClassProduct, RequiredQty: d("3"), Unit: ledger.UnitKilogram},
	}

	res, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	require.Len(t, snap.Products, 2)
	created := snap.Products[1]
	assert.Equal(t, "Base Paste 40%", created.Name)
	assert.Equal(t, int64(11), created.ID, "max product id was 10")
	assert.True(t, created.Stock.Equal(d("-3")), "consumption before any production goes negative")
	assert.Len(t, snap.ProductMovements, 1)
}

func TestPost_FallsBackToOrderBomRefs(t *testing.T) {
	// An issue without its own BOM link inherits the order's for the movement
	// tags.

	snap := issueSnapshot()
	snap.Issues[0].BomID = 0
	snap.Issues[0].BomVersionID = 0

	_, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)

	require.Len(t, snap.RawMovements, 1)
	assert.Equal(t, int64(9), snap.RawMovements[0].BomID)
	assert.Equal(t, int64(12), snap.RawMovements[0].BomVersionID)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_RestoresStockAndRetagsOriginal(t *testing.T) {
	// GIVEN: A posted issue that consumed 10 kg cement
	// WHEN: Cancelling
	// THEN: Stock returns to 100, the original movement is re-tagged to
	//       ISSUE_CANCEL with a suffix, an inverse RETURN_IN lands, and the
	//       issue is a draft again

	snap := issueSnapshot()
	_, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)

	res, err := issue.Cancel(snap, 1, testParams())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Retagged)
	assert.True(t, rawStock(t, snap, 1).Equal(d("100")))

	require.Len(t, snap.RawMovements, 2)
	original, inverse := snap.RawMovements[0], snap.RawMovements[1]

	assert.Equal(t, ledger.KindConsumeOut, original.Kind)
	assert.Equal(t, ledger.DocTypeIssueCancel, original.RelatedDocType, "retagged, never deleted")
	assert.Contains(t, original.Reason, " (cancelled)")
	assert.True(t, original.Quantity.Equal(d("10")), "quantity untouched by the retag")

	assert.Equal(t, ledger.KindReturnIn, inverse.Kind)
	assert.Equal(t, ledger.DocTypeIssueCancel, inverse.RelatedDocType)
	assert.True(t, inverse.Quantity.Equal(d("10")))

	is := snap.IssueByID(1)
	assert.Equal(t, ledger.IssueDraft, is.Status)
	assert.Nil(t, is.PostedAt, "cleared so a later post stamps fresh")
}

func TestCancel_DraftIssue_Rejected(t *testing.T) {
	snap := issueSnapshot()

	_, err := issue.Cancel(snap, 1, testParams())

	assert.True(t, ledger.IsInvalidState(err))
	assert.Empty(t, snap.RawMovements)
}

func TestCancel_MultiLine_ExactInverse(t *testing.T) {
	// Awkward decimals must restore exactly, not within a tolerance: cancel
	// applies the same conversion the post did.

	snap := issueSnapshot()
	snap.Issues[0].Lines = []ledger.IssueLine{
		{ItemID: 1, ItemName: "Cement 42.5", ItemType: ledger.ClassRawMaterial, RequiredQty: d("3.333"), Unit: ledger.UnitKilogram},
		{ItemID: 3, ItemName: "Sodium Gluconate", ItemType: ledger.ClassRawMaterial, RequiredQty: d("0.0077"), Unit: ledger.UnitTon},
	}

	_, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)
	_, err = issue.Cancel(snap, 1, testParams())
	require.NoError(t, err)

	assert.True(t, rawStock(t, snap, 1).Equal(d("100")), "got %s", rawStock(t, snap, 1))
	assert.True(t, rawStock(t, snap, 3).Equal(d("50")), "got %s", rawStock(t, snap, 3))
}

func TestCancel_ThenRepost_Works(t *testing.T) {
	// DRAFT -> POSTED -> DRAFT -> POSTED is a legal walk of the state machine.

	snap := issueSnapshot()
	p := testParams()

	_, err := issue.Post(snap, 1, p)
	require.NoError(t, err)
	_, err = issue.Cancel(snap, 1, p)
	require.NoError(t, err)
	_, err = issue.Post(snap, 1, p)
	require.NoError(t, err)

	assert.True(t, rawStock(t, snap, 1).Equal(d("90")))
	assert.Len(t, snap.RawMovements, 3, "consume, return, consume")
}

func TestCancel_UnlimitedUtility_StockStaysZero(t *testing.T) {
	snap := issueSnapshot()
	snap.Issues[0].Lines = []ledger.IssueLine{
		{ItemID: 2, ItemName: "Tap Water", ItemType: ledger.ClassRawMaterial, RequiredQty: d("100"), Unit: ledger.UnitKilogram},
	}

	_, err := issue.Post(snap, 1, testParams())
	require.NoError(t, err)
	_, err = issue.Cancel(snap, 1, testParams())
	require.NoError(t, err)

	assert.True(t, rawStock(t, snap, 2).IsZero())
	assert.Len(t, snap.MovementsFor(ledger.ClassRawMaterial, 2), 2, "both directions on the trail")
}

// =============================================================================
// CREATE FROM ORDER
// =============================================================================

func orderSnapshot() *ledger.Snapshot {
	snap := issueSnapshot()
	snap.BOMs = []ledger.BOM{
		{ID: 9, Code: "BOM-PCE", Name: "PCE Standard", ProductID: 10},
	}
	snap.BOMVersions = []ledger.BOMVersion{
		{
			ID: 12, BomID: 9, Version: "v1", Status: ledger.BOMApproved,
			YieldBase: d("1000"), EffectiveFrom: postTime.AddDate(0, -1, 0),
			Lines: []ledger.BOMLine{
				{ItemID: 1, ItemName: "Cement 42.5", ItemType: ledger.ClassRawMaterial, Quantity: d("420"), Unit: ledger.UnitKilogram, Phase: "mix"},
				{ItemID: 3, ItemName: "Sodium Gluconate", ItemType: ledger.ClassRawMaterial, Quantity: d("25"), Unit: ledger.UnitKilogram, Phase: "mix"},
			},
		},
	}
	return snap
}

func TestCreateFromOrder_DraftsScaledLines(t *testing.T) {
	// GIVEN: Order PO-0007 planning 2000 against a yield-1000 BOM
	// WHEN: Drafting the issue
	// THEN: Lines are the doubled requirements, code carries date and id

	snap := orderSnapshot()

	is, err := issue.CreateFromOrder(snap, 4, testParams())
	require.NoError(t, err)

	assert.Equal(t, int64(2), is.ID, "next after the existing issue 1")
	assert.Equal(t, fmt.Sprintf("ISS-%s-0002", postTime.Format("20060102")), is.Code)
	assert.Equal(t, ledger.IssueDraft, is.Status)
	assert.Equal(t, int64(4), is.ProductionOrderID)
	assert.Equal(t, int64(9), is.BomID)
	assert.Equal(t, int64(12), is.BomVersionID)

	require.Len(t, is.Lines, 2)
	assert.True(t, is.Lines[0].RequiredQty.Equal(d("840")))
	assert.True(t, is.Lines[1].RequiredQty.Equal(d("50")))
	assert.Equal(t, "mix", is.Lines[0].Phase)

	assert.Len(t, snap.Issues, 2, "stored on the snapshot")
}

func TestCreateFromOrder_EmptyPinnedVersion_FallsBack(t *testing.T) {
	// GIVEN: The order pins a version that has no lines
	// WHEN: Drafting
	// THEN: The latest usable version with lines is used instead

	snap := orderSnapshot()
	snap.BOMVersions = append(snap.BOMVersions, ledger.BOMVersion{
		ID: 13, BomID: 9, Version: "v2", Status: ledger.BOMApproved,
		YieldBase: d("1000"), EffectiveFrom: postTime.AddDate(0, -1, 0),
	})
	snap.Orders[0].BomVersionID = 13

	is, err := issue.CreateFromOrder(snap, 4, testParams())
	require.NoError(t, err)

	assert.Equal(t, int64(12), is.BomVersionID, "fell back to the version that has lines")
	assert.Len(t, is.Lines, 2)
}

func TestCreateFromOrder_UnknownOrder_NotFound(t *testing.T) {
	snap := orderSnapshot()

	_, err := issue.CreateFromOrder(snap, 999, testParams())

	assert.True(t, ledger.IsNotFound(err))
}

func TestCreateFromOrder_NoUsableVersion_NotFound(t *testing.T) {
	snap := orderSnapshot()
	snap.BOMVersions = nil

	_, err := issue.CreateFromOrder(snap, 4, testParams())

	assert.True(t, ledger.IsNotFound(err))
}

func TestCreateFromOrder_ThenPost_ConsumesRequirements(t *testing.T) {
	// The full draft-and-post walk the API exposes as two calls.

	snap := orderSnapshot()

	is, err := issue.CreateFromOrder(snap, 4, testParams())
	require.NoError(t, err)

	res, err := issue.Post(snap, is.ID, testParams())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)

	assert.True(t, rawStock(t, snap, 1).Equal(d("-740")), "100 - 840")
	assert.True(t, rawStock(t, snap, 3).Equal(d("0")), "50 - 50")
}

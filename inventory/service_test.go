package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/ledger"
	memstore "github.com/warp/inventory-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var clockTime = time.Date(2025, time.July, 1, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return clockTime }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// serviceSnapshot: the cement/gluconate/water catalog with a two-level BOM
// (PCE pulls in 8 kg of Retarder per 1000) plus one plannable order and one
// draft issue.
func serviceSnapshot() *ledger.Snapshot {
	snap := ledger.NewSnapshot()
	snap.RawMaterials = []ledger.StockEntity{
		{ID: 1, Name: "Cement 42.5", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, Stock: d("100")},
		{ID: 2, Name: "Tap Water", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram},
		{ID: 3, Name: "Sodium Gluconate", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, Stock: d("50")},
	}
	snap.Products = []ledger.StockEntity{
		{ID: 10, Name: "PCE Standard", Class: ledger.ClassProduct, Unit: ledger.UnitKilogram},
		{ID: 20, Name: "Retarder R-20", Class: ledger.ClassProduct, Unit: ledger.UnitKilogram},
	}
	snap.BOMs = []ledger.BOM{
		{ID: 9, Code: "BOM-PCE", Name: "PCE Standard", ProductID: 10},
		{ID: 11, Code: "BOM-R20", Name: "Retarder R-20", ProductID: 20},
	}
	snap.BOMVersions = []ledger.BOMVersion{
		{
			ID: 12, BomID: 9, Version: "v1", Status: ledger.BOMApproved,
			YieldBase: d("1000"), EffectiveFrom: clockTime.AddDate(0, -1, 0),
			Lines: []ledger.BOMLine{
				{ItemID: 1, ItemName: "Cement 42.5", ItemType: ledger.ClassRawMaterial, Quantity: d("420"), Unit: ledger.UnitKilogram, Phase: "mix"},
				{ItemID: 3, ItemName: "Sodium Gluconate", ItemType: ledger.ClassRawMaterial, Quantity: d("25"), Unit: ledger.UnitKilogram, Phase: "mix"},
				{ItemID: 20, ItemName: "Retarder R-20", ItemType: ledger.ClassProduct, Quantity: d("8"), Unit: ledger.UnitKilogram, Phase: "finish"},
			},
		},
		{
			ID: 15, BomID: 11, Version: "v1", Status: ledger.BOMApproved,
			YieldBase: d("1000"), EffectiveFrom: clockTime.AddDate(0, -1, 0),
			Lines: []ledger.BOMLine{
				{ItemID: 3, ItemName: "Sodium Gluconate", ItemType: ledger.ClassRawMaterial, Quantity: d("600"), Unit: ledger.UnitKilogram},
				{ItemID: 2, ItemName: "Tap Water", ItemType: ledger.ClassRawMaterial, Quantity: d("400"), Unit: ledger.UnitKilogram},
			},
		},
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
		},
	}
	return snap
}

func newService(t *testing.T, snap *ledger.Snapshot) (*inventory.Service, *memstore.Memory) {
	t.Helper()
	st := memstore.NewMemory()
	if snap != nil {
		st.Seed(snap)
	}
	svc, err := inventory.New(st, zerolog.Nop(), inventory.Config{Clock: fixedClock})
	require.NoError(t, err)
	return svc, st
}

func loadSnap(t *testing.T, st *memstore.Memory) *ledger.Snapshot {
	t.Helper()
	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	return snap
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNew_NilStore_Rejected(t *testing.T) {
	_, err := inventory.New(nil, zerolog.Nop(), inventory.Config{})

	assert.ErrorIs(t, err, ledger.ErrStoreRequired)
}

// =============================================================================
// ISSUES THROUGH THE STORE
// =============================================================================

func TestPostIssue_PersistsThroughStore(t *testing.T) {
	// GIVEN: A seeded store with a draft issue
	// WHEN: Posting through the service
	// THEN: A reload from the store shows the consumption, not just the
	//       in-flight copy

	svc, st := newService(t, serviceSnapshot())

	res, err := svc.PostIssue(context.Background(), 1, "tester")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	snap := loadSnap(t, st)
	assert.True(t, snap.EntityByID(ledger.ClassRawMaterial, 1).Stock.Equal(d("90")))
	require.Len(t, snap.RawMovements, 1)
	assert.Equal(t, ledger.IssuePosted, snap.IssueByID(1).Status)
	require.Len(t, snap.AuditLog, 1)
	assert.Equal(t, ledger.AuditIssuePosted, snap.AuditLog[0].Action)
	assert.Equal(t, clockTime, *snap.IssueByID(1).PostedAt, "clock injected via config")
}

func TestPostIssue_FailureDiscardsEverything(t *testing.T) {
	// GIVEN: An issue whose second line names a material that does not exist
	// WHEN: Posting fails
	// THEN: The store still holds the pre-post state: no movements, no stock
	//       change from the good first line, status still draft

	snap := serviceSnapshot()
	snap.Issues[0].Lines = append(snap.Issues[0].Lines,
		ledger.IssueLine{ItemID: 0, ItemName: "Unobtainium", ItemType: ledger.ClassRawMaterial, RequiredQty: d("5"), Unit: ledger.UnitKilogram})
	svc, st := newService(t, snap)

	_, err := svc.PostIssue(context.Background(), 1, "tester")
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))

	after := loadSnap(t, st)
	assert.True(t, after.EntityByID(ledger.ClassRawMaterial, 1).Stock.Equal(d("100")))
	assert.Empty(t, after.RawMovements)
	assert.Equal(t, ledger.IssueDraft, after.IssueByID(1).Status)
	assert.Empty(t, after.AuditLog)
}

func TestCancelIssue_RoundTripsThroughStore(t *testing.T) {
	svc, st := newService(t, serviceSnapshot())

	_, err := svc.PostIssue(context.Background(), 1, "tester")
	require.NoError(t, err)
	res, err := svc.CancelIssue(context.Background(), 1, "tester")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retagged)

	snap := loadSnap(t, st)
	assert.True(t, snap.EntityByID(ledger.ClassRawMaterial, 1).Stock.Equal(d("100")))
	assert.Len(t, snap.RawMovements, 2)
	assert.Equal(t, ledger.IssueDraft, snap.IssueByID(1).Status)
}

func TestCreateIssueFromOrder_PersistsDraft(t *testing.T) {
	svc, st := newService(t, serviceSnapshot())

	created, err := svc.CreateIssueFromOrder(context.Background(), 4, "planner")
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)
	require.Len(t, created.Lines, 3, "two raws and the nested product line")

	snap := loadSnap(t, st)
	assert.Len(t, snap.Issues, 2)
	assert.Equal(t, ledger.IssueDraft, snap.Issues[1].Status)
}

func TestIssue_Unknown_NotFound(t *testing.T) {
	svc, _ := newService(t, serviceSnapshot())

	_, err := svc.Issue(context.Background(), 999)

	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// BALANCES
// =============================================================================

func TestGetBalance_FoldsLedgerNotCache(t *testing.T) {
	// GIVEN: A cached stock of 500 but movements folding to 80
	// WHEN: Asking for the balance
	// THEN: The fold wins; the cache is display-only

	snap := serviceSnapshot()
	snap.RawMaterials[0].Stock = d("500")
	snap.RawMovements = []ledger.Movement{
		{ID: 1, Class: ledger.ClassRawMaterial, EntityID: 1, Kind: ledger.KindIn, Quantity: d("100"), Unit: ledger.UnitKilogram, CreatedAt: clockTime},
		{ID: 2, Class: ledger.ClassRawMaterial, EntityID: 1, Kind: ledger.KindConsumeOut, Quantity: d("20"), Unit: ledger.UnitKilogram, CreatedAt: clockTime},
	}
	svc, _ := newService(t, snap)

	q, err := svc.GetBalance(context.Background(), ledger.ClassRawMaterial, 1)
	require.NoError(t, err)

	assert.True(t, q.Value.Equal(d("80")))
	assert.Equal(t, ledger.UnitKilogram, q.Unit)
}

func TestGetBalance_EmptyUnitFallsBackToCanonical(t *testing.T) {
	snap := serviceSnapshot()
	snap.RawMaterials = append(snap.RawMaterials,
		ledger.StockEntity{ID: 4, Name: "Unlabeled Additive", Class: ledger.ClassRawMaterial})
	svc, _ := newService(t, snap)

	q, err := svc.GetBalance(context.Background(), ledger.ClassRawMaterial, 4)
	require.NoError(t, err)

	assert.Equal(t, ledger.UnitKilogram, q.Unit)
	assert.True(t, q.Value.IsZero())
}

func TestGetBalance_UnknownEntity_NotFound(t *testing.T) {
	svc, _ := newService(t, serviceSnapshot())

	_, err := svc.GetBalance(context.Background(), ledger.ClassRawMaterial, 999)

	assert.True(t, ledger.IsNotFound(err))
}

func TestGetAllBalances_OrderedAndDriftFlagged(t *testing.T) {
	// GIVEN: Cement's cache disagrees with its (empty) ledger
	// WHEN: Folding everything
	// THEN: Entries come back ordered by class then id, cement flagged

	svc, _ := newService(t, serviceSnapshot())

	balances, err := svc.GetAllBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 5, "3 raws + 2 products")

	// "product" sorts before "raw_material".
	assert.Equal(t, ledger.ClassProduct, balances[0].Class)
	assert.Equal(t, int64(10), balances[0].ID)
	assert.Equal(t, int64(20), balances[1].ID)
	assert.Equal(t, ledger.ClassRawMaterial, balances[2].Class)
	assert.Equal(t, int64(1), balances[2].ID)

	cement := balances[2]
	assert.True(t, cement.Cached.Equal(d("100")))
	assert.True(t, cement.Computed.IsZero(), "no movements seeded")
	assert.True(t, cement.Drifted)

	water := balances[3]
	assert.False(t, water.Drifted, "zero cache, zero fold")
}

func TestMovements_UnknownEntity_NotFound(t *testing.T) {
	svc, _ := newService(t, serviceSnapshot())

	_, err := svc.Movements(context.Background(), ledger.ClassProduct, 999)

	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// BOM EXPLOSION
// =============================================================================

func TestExplodeBOM_ShallowKeepsProductLines(t *testing.T) {
	svc, _ := newService(t, serviceSnapshot())

	lines, err := svc.ExplodeBOM(context.Background(), 12, d("500"), false)
	require.NoError(t, err)

	require.Len(t, lines, 3)
	assert.True(t, lines[0].RequiredQty.Equal(d("210")), "420 * 0.5")
	assert.Equal(t, ledger.ClassProduct, lines[2].ItemType, "nested product stays a line")
	assert.True(t, lines[2].RequiredQty.Equal(d("4")))
}

func TestExplodeBOM_DeepExpandsThroughNestedBOM(t *testing.T) {
	// GIVEN: PCE needs 8 kg Retarder per 1000, Retarder is 60/40 gluconate
	//        and water
	// WHEN: Exploding 1000 deep
	// THEN: Only raw material lines remain; the retarder line became 4.8 kg
	//       gluconate and 3.2 kg water

	svc, _ := newService(t, serviceSnapshot())

	lines, err := svc.ExplodeBOM(context.Background(), 12, d("1000"), true)
	require.NoError(t, err)

	require.Len(t, lines, 4)
	for _, ln := range lines {
		assert.Equal(t, ledger.ClassRawMaterial, ln.ItemType, "line %s", ln.ItemName)
	}
	assert.True(t, lines[2].RequiredQty.Equal(d("4.8")), "nested gluconate")
	assert.True(t, lines[3].RequiredQty.Equal(d("3.2")), "nested water")
}

func TestExplodeBOM_UnknownVersion_EmptyResult(t *testing.T) {
	svc, _ := newService(t, serviceSnapshot())

	lines, err := svc.ExplodeBOM(context.Background(), 999, d("1000"), false)
	require.NoError(t, err)

	assert.Empty(t, lines)
}

// =============================================================================
// REBUILD / RECALC
// =============================================================================

// rebuildSnapshot: one completed receipt for 30 kg cement, a cache that
// disagrees, and no movements at all.
func rebuildSnapshot() *ledger.Snapshot {
	snap := serviceSnapshot()
	snap.RawMaterials[0].Stock = d("999")
	snap.Receipts = []ledger.GoodsReceipt{
		{
			ID: 1, Code: "GR-0001", Status: ledger.ReceiptCompleted,
			Items: []ledger.ReceiptItem{
				{MaterialID: 1, MaterialName: "Cement 42.5", Quantity: d("30"), Unit: ledger.UnitKilogram},
			},
			CompletedAt: ptrTime(clockTime.AddDate(0, 0, -3)),
		},
	}
	return snap
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestRebuildLedger_DryRunByDefault(t *testing.T) {
	// GIVEN: A store whose documents and ledger disagree
	// WHEN: Rebuilding without Run
	// THEN: The summary reports what would happen; the store is untouched

	svc, st := newService(t, rebuildSnapshot())

	sum, err := svc.RebuildLedger(context.Background(), inventory.RebuildOptions{Operator: "admin"})
	require.NoError(t, err)

	assert.True(t, sum.DryRun)
	assert.Equal(t, 1, sum.ReceiptItems)
	assert.Equal(t, 1, sum.MovementsWritten)

	after := loadSnap(t, st)
	assert.Empty(t, after.RawMovements, "dry run never persists")
	assert.True(t, after.EntityByID(ledger.ClassRawMaterial, 1).Stock.Equal(d("999")))
}

func TestRebuildLedger_RunPersists(t *testing.T) {
	svc, st := newService(t, rebuildSnapshot())

	sum, err := svc.RebuildLedger(context.Background(), inventory.RebuildOptions{Run: true, Operator: "admin"})
	require.NoError(t, err)
	assert.False(t, sum.DryRun)

	after := loadSnap(t, st)
	require.Len(t, after.RawMovements, 1)
	assert.Equal(t, ledger.KindIn, after.RawMovements[0].Kind)
	assert.Equal(t, ledger.DocTypeGoodsReceipt, after.RawMovements[0].RelatedDocType)
	assert.True(t, after.EntityByID(ledger.ClassRawMaterial, 1).Stock.Equal(d("30")), "cache reset to the fold")

	require.NotEmpty(t, after.AuditLog)
	assert.Equal(t, ledger.AuditLedgerRebuilt, after.AuditLog[len(after.AuditLog)-1].Action)
}

func TestRecalc_DryRunThenRun(t *testing.T) {
	// GIVEN: A cache of 999 over a ledger folding to 30
	// WHEN: Recalc dry, then for real
	// THEN: Dry reports the change without writing; run resyncs the cache

	snap := rebuildSnapshot()
	snap.RawMaterials[2].Stock = decimal.Zero // keep cement the only drifted entity
	snap.RawMovements = []ledger.Movement{
		{ID: 1, Class: ledger.ClassRawMaterial, EntityID: 1, Kind: ledger.KindIn, Quantity: d("30"), Unit: ledger.UnitKilogram, CreatedAt: clockTime},
	}
	svc, st := newService(t, snap)

	dry, err := svc.Recalc(context.Background(), inventory.RecalcOptions{Operator: "admin"})
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	require.Len(t, dry.Changes, 1)
	assert.True(t, dry.Changes[0].New.Equal(d("30")))
	assert.True(t, loadSnap(t, st).EntityByID(ledger.ClassRawMaterial, 1).Stock.Equal(d("999")))

	run, err := svc.Recalc(context.Background(), inventory.RecalcOptions{Run: true, Operator: "admin"})
	require.NoError(t, err)
	assert.False(t, run.DryRun)

	after := loadSnap(t, st)
	assert.True(t, after.EntityByID(ledger.ClassRawMaterial, 1).Stock.Equal(d("30")))
	require.NotEmpty(t, after.AuditLog)
	assert.Equal(t, ledger.AuditStockRecalced, after.AuditLog[len(after.AuditLog)-1].Action)
}

// =============================================================================
// BACKUP / AUDIT
// =============================================================================

func TestCreateBackup_DelegatesToStore(t *testing.T) {
	svc, st := newService(t, serviceSnapshot())

	label, err := svc.CreateBackup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "memory", label)
	assert.Equal(t, 1, st.Backups())
}

func TestAuditTrail_NewestFirstWithLimit(t *testing.T) {
	svc, _ := newService(t, serviceSnapshot())
	ctx := context.Background()

	_, err := svc.PostIssue(ctx, 1, "tester")
	require.NoError(t, err)
	_, err = svc.CancelIssue(ctx, 1, "tester")
	require.NoError(t, err)

	all, err := svc.AuditTrail(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ledger.AuditIssueCancelled, all[0].Action, "newest first")
	assert.Equal(t, ledger.AuditIssuePosted, all[1].Action)

	one, err := svc.AuditTrail(ctx, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, ledger.AuditIssueCancelled, one[0].Action)
}

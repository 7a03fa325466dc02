package rebuild_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/ledger"
	"github.com/warp/inventory-engine/rebuild"
)

// cleanSnapshot: one entity whose cache matches its fold, one linked BOM
// version, nothing to report.
func cleanSnapshot() *ledger.Snapshot {
	snap := ledger.NewSnapshot()
	snap.RawMaterials = []ledger.StockEntity{
		{ID: 1, Name: "Cement 42.5", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram, Stock: d("100")},
	}
	snap.RawMovements = []ledger.Movement{
		{ID: 1, Class: ledger.ClassRawMaterial, EntityID: 1, Kind: ledger.KindIn, Quantity: d("100"), Unit: ledger.UnitKilogram, CreatedAt: rebuildNow},
	}
	snap.BOMs = []ledger.BOM{
		{ID: 9, Code: "BOM-PCE", Name: "PCE Standard", ProductID: 10},
	}
	snap.BOMVersions = []ledger.BOMVersion{
		{ID: 12, BomID: 9, Version: "v1", Status: ledger.BOMApproved, YieldBase: d("1000")},
	}
	return snap
}

func TestDiagnose_CleanSnapshot_NoFindings(t *testing.T) {
	findings := rebuild.Diagnose(cleanSnapshot())

	assert.Empty(t, findings)
}

func TestDiagnose_ReportsCacheMismatch(t *testing.T) {
	// GIVEN: A cache of 150 over a ledger folding to 100
	// WHEN: Diagnosing
	// THEN: One MISMATCH carrying both numbers

	snap := cleanSnapshot()
	snap.RawMaterials[0].Stock = d("150")

	findings := rebuild.Diagnose(snap)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, rebuild.FindingMismatch, f.Kind)
	assert.Equal(t, ledger.ClassRawMaterial, f.Class)
	assert.Equal(t, int64(1), f.EntityID)
	assert.True(t, f.Expected.Equal(d("100")), "the ledger is the truth")
	assert.True(t, f.Actual.Equal(d("150")))
	assert.Contains(t, f.Message, "Cement 42.5")
}

func TestDiagnose_MismatchToleratesEpsilon(t *testing.T) {
	// Decimal noise below the reporting epsilon is not drift.

	snap := cleanSnapshot()
	snap.RawMaterials[0].Stock = d("100.00005")

	findings := rebuild.Diagnose(snap)

	assert.Empty(t, findings)
}

func TestDiagnose_ReportsOrphanMovement(t *testing.T) {
	snap := cleanSnapshot()
	snap.RawMovements = append(snap.RawMovements, ledger.Movement{
		ID: 2, Class: ledger.ClassRawMaterial, EntityID: 99, Kind: ledger.KindIn,
		Quantity: d("5"), Unit: ledger.UnitKilogram, CreatedAt: rebuildNow,
	})

	findings := rebuild.Diagnose(snap)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, rebuild.FindingOrphan, f.Kind)
	assert.Equal(t, int64(99), f.EntityID)
	assert.Equal(t, int64(2), f.RefID, "points at the dangling movement")
}

func TestDiagnose_ReportsOrphanBOMVersion(t *testing.T) {
	snap := cleanSnapshot()
	snap.BOMVersions = append(snap.BOMVersions, ledger.BOMVersion{
		ID: 44, BomID: 77, Version: "v9", Status: ledger.BOMApproved,
	})

	findings := rebuild.Diagnose(snap)

	require.Len(t, findings, 1)
	assert.Equal(t, rebuild.FindingOrphan, findings[0].Kind)
	assert.Equal(t, int64(44), findings[0].RefID)
	assert.Contains(t, findings[0].Message, "missing bom 77")
}

func TestDiagnose_ReportsNonCanonicalUnit(t *testing.T) {
	// Stocks are normalized to kilograms on write; an entity still storing
	// tons predates the normalization and deserves a flag.

	snap := cleanSnapshot()
	snap.RawMaterials = append(snap.RawMaterials,
		ledger.StockEntity{ID: 2, Name: "Legacy Resin", Class: ledger.ClassRawMaterial, Unit: ledger.UnitTon})

	findings := rebuild.Diagnose(snap)

	require.Len(t, findings, 1)
	assert.Equal(t, rebuild.FindingUnitWarning, findings[0].Kind)
	assert.Equal(t, int64(2), findings[0].EntityID)
}

func TestDiagnose_EmptyUnitNotWarned(t *testing.T) {
	snap := cleanSnapshot()
	snap.RawMaterials = append(snap.RawMaterials,
		ledger.StockEntity{ID: 2, Name: "Unlabeled", Class: ledger.ClassRawMaterial})

	findings := rebuild.Diagnose(snap)

	assert.Empty(t, findings, "blank means canonical by convention")
}

func TestDiagnose_ReportsDuplicateNames(t *testing.T) {
	snap := cleanSnapshot()
	snap.RawMaterials = append(snap.RawMaterials,
		ledger.StockEntity{ID: 2, Name: "Fly Ash", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram},
		ledger.StockEntity{ID: 3, Name: "Fly Ash", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram},
	)

	findings := rebuild.Diagnose(snap)

	require.Len(t, findings, 1)
	assert.Equal(t, rebuild.FindingDuplicateName, findings[0].Kind)
	assert.Contains(t, findings[0].Message, "Fly Ash")
}

func TestCountByKind_Tallies(t *testing.T) {
	snap := cleanSnapshot()
	snap.RawMaterials[0].Stock = d("150")
	snap.RawMaterials = append(snap.RawMaterials,
		ledger.StockEntity{ID: 2, Name: "Fly Ash", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram},
		ledger.StockEntity{ID: 3, Name: "Fly Ash", Class: ledger.ClassRawMaterial, Unit: ledger.UnitKilogram},
	)
	snap.BOMVersions = append(snap.BOMVersions, ledger.BOMVersion{ID: 44, BomID: 77, Version: "v9"})

	counts := rebuild.CountByKind(rebuild.Diagnose(snap))

	assert.Equal(t, 1, counts[rebuild.FindingMismatch])
	assert.Equal(t, 1, counts[rebuild.FindingOrphan])
	assert.Equal(t, 1, counts[rebuild.FindingDuplicateName])
	assert.Zero(t, counts[rebuild.FindingUnitWarning])
}

package rebuild_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/ledger"
	"github.com/warp/inventory-engine/rebuild"
)

func TestRecalc_ResyncsDriftedCache(t *testing.T) {
	// GIVEN: A cache of 777 over a ledger folding to 100
	// WHEN: Recalculating
	// THEN: The cache becomes the fold, the change is reported, the ledger is
	//       untouched

	snap := cleanSnapshot()
	snap.RawMaterials[0].Stock = d("777")

	sum := rebuild.Recalc(snap, "admin", rebuildNow)

	assert.Equal(t, 1, sum.Checked)
	require.Len(t, sum.Changes, 1)
	ch := sum.Changes[0]
	assert.Equal(t, "Cement 42.5", ch.Name)
	assert.True(t, ch.Old.Equal(d("777")))
	assert.True(t, ch.New.Equal(d("100")))

	assert.True(t, snap.RawMaterials[0].Stock.Equal(d("100")))
	assert.Equal(t, rebuildNow, snap.RawMaterials[0].UpdatedAt)
	assert.Len(t, snap.RawMovements, 1, "recalc rewrites caches, never movements")

	require.Len(t, snap.AuditLog, 1)
	assert.Equal(t, ledger.AuditStockRecalced, snap.AuditLog[0].Action)
	assert.Equal(t, "admin", snap.AuditLog[0].Operator)
}

func TestRecalc_CleanCaches_NoAuditNoise(t *testing.T) {
	snap := cleanSnapshot()

	sum := rebuild.Recalc(snap, "admin", rebuildNow)

	assert.Equal(t, 1, sum.Checked)
	assert.Empty(t, sum.Changes)
	assert.Empty(t, snap.AuditLog, "nothing happened, nothing logged")
}

func TestRecalc_FoldsDriftTheDiagnosticTolerates(t *testing.T) {
	// Diagnose ignores drift under 0.0001; once an operator asks for a resync
	// the tolerance tightens and the noise gets folded away too.

	snap := cleanSnapshot()
	snap.RawMaterials[0].Stock = d("100.00005")
	require.Empty(t, rebuild.Diagnose(snap), "below the reporting epsilon")

	sum := rebuild.Recalc(snap, "admin", rebuildNow)

	require.Len(t, sum.Changes, 1)
	assert.True(t, snap.RawMaterials[0].Stock.Equal(d("100")))
}

func TestRecalc_DefaultsOperatorAndClock(t *testing.T) {
	snap := cleanSnapshot()
	snap.RawMaterials[0].Stock = d("50")

	sum := rebuild.Recalc(snap, "", time.Time{})

	require.Len(t, sum.Changes, 1)
	require.Len(t, snap.AuditLog, 1)
	assert.Equal(t, "system", snap.AuditLog[0].Operator)
	assert.False(t, snap.AuditLog[0].At.IsZero())
}

package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/ledger"
)

func indexSnapshot() *ledger.Snapshot {
	snap := ledger.NewSnapshot()
	snap.RawMaterials = []ledger.StockEntity{
		{ID: 1, Name: "Cement 42.5", Class: ledger.ClassRawMaterial},
		{ID: 2, Name: "Fly Ash", Class: ledger.ClassRawMaterial},
		{ID: 3, Name: "Fly Ash", Class: ledger.ClassRawMaterial}, // duplicate name
	}
	snap.Products = []ledger.StockEntity{
		{ID: 1, Name: "PCE Standard", Class: ledger.ClassProduct},
	}
	return snap
}

func TestNameIndex_Resolve_SingleMatch(t *testing.T) {
	ix := ledger.BuildNameIndex(indexSnapshot())

	id, err := ix.Resolve(ledger.ClassRawMaterial, "Cement 42.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestNameIndex_Resolve_TrimsWhitespace(t *testing.T) {
	ix := ledger.BuildNameIndex(indexSnapshot())

	id, err := ix.Resolve(ledger.ClassRawMaterial, "  Cement 42.5  ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestNameIndex_Resolve_Missing_NotFound(t *testing.T) {
	ix := ledger.BuildNameIndex(indexSnapshot())

	_, err := ix.Resolve(ledger.ClassRawMaterial, "Unobtainium")

	assert.True(t, ledger.IsNotFound(err))
	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Unobtainium", nf.Name)
}

func TestNameIndex_Resolve_Duplicate_Ambiguous(t *testing.T) {
	// GIVEN: Two raw materials both named "Fly Ash"
	// WHEN: Resolving by that name
	// THEN: AmbiguousNameError listing both ids, never a silent first match

	ix := ledger.BuildNameIndex(indexSnapshot())

	_, err := ix.Resolve(ledger.ClassRawMaterial, "Fly Ash")

	var amb *ledger.AmbiguousNameError
	require.ErrorAs(t, err, &amb)
	assert.ElementsMatch(t, []int64{2, 3}, amb.IDs)
	assert.True(t, ledger.IsClientError(err))
}

func TestNameIndex_ClassesAreSeparate(t *testing.T) {
	ix := ledger.BuildNameIndex(indexSnapshot())

	_, err := ix.Resolve(ledger.ClassRawMaterial, "PCE Standard")
	assert.True(t, ledger.IsNotFound(err), "product name must not resolve in the raw catalog")
}

func TestNameIndex_ResolveFirst_FallsThroughMisses(t *testing.T) {
	ix := ledger.BuildNameIndex(indexSnapshot())

	id, err := ix.ResolveFirst(ledger.ClassProduct, "BOM-PCE-PCE Standard", "PCE Standard")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestNameIndex_ResolveFirst_AmbiguityStillFails(t *testing.T) {
	ix := ledger.BuildNameIndex(indexSnapshot())

	_, err := ix.ResolveFirst(ledger.ClassRawMaterial, "Fly Ash", "Cement 42.5")

	var amb *ledger.AmbiguousNameError
	assert.ErrorAs(t, err, &amb, "ambiguity must not fall through to the next candidate")
}

func TestNameIndex_Add_KeepsIndexCurrent(t *testing.T) {
	snap := indexSnapshot()
	ix := ledger.BuildNameIndex(snap)

	e := snap.AddEntity(ledger.StockEntity{Name: "Defoamer", Class: ledger.ClassRawMaterial})
	ix.Add(ledger.ClassRawMaterial, e.Name, e.ID)

	id, err := ix.Resolve(ledger.ClassRawMaterial, "Defoamer")
	require.NoError(t, err)
	assert.Equal(t, e.ID, id)
}

func TestNameIndex_Duplicates(t *testing.T) {
	ix := ledger.BuildNameIndex(indexSnapshot())

	dups := ix.Duplicates()

	require.Len(t, dups, 1)
	assert.Equal(t, "Fly Ash", dups[0].Name)
	assert.Equal(t, ledger.ClassRawMaterial, dups[0].Class)
	assert.ElementsMatch(t, []int64{2, 3}, dups[0].IDs)
}

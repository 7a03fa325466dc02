/*
Package rebuild holds the offline repair tools: read-only diagnostics, full
ledger rebuild from source documents, and cached-stock recalculation.

PURPOSE:
  The ledger is the source of truth, but historical data errors (cache edits
  without movements, deleted entities, pre-normalization units) leave drift
  behind. Diagnose surfaces that drift as structured findings without touching
  anything. Rebuild and Recalc repair it, and only when the operator
  explicitly opts in; every entry point here is dry-run by default at the
  service and CLI layers.

FINDING TAXONOMY:
  ORPHAN         movement or BOM version referencing a missing parent
  MISMATCH       cached stock vs ledger fold beyond the epsilon
  UNIT_WARNING   entity storage unit outside the canonical unit
  DUPLICATE_NAME one name shared by several entities of a class

Diagnostics never throw on data-quality problems; they accumulate findings
and return them. That is their whole point.
*/
package rebuild

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/ledger"
)

type FindingKind string

const (
	FindingOrphan        FindingKind = "ORPHAN"
	FindingMismatch      FindingKind = "MISMATCH"
	FindingUnitWarning   FindingKind = "UNIT_WARNING"
	FindingDuplicateName FindingKind = "DUPLICATE_NAME"
)

// Finding is one consistency problem. Expected/Actual are meaningful for
// MISMATCH only.
type Finding struct {
	Kind     FindingKind        `json:"kind"`
	Class    ledger.EntityClass `json:"class,omitempty"`
	EntityID int64              `json:"entity_id,omitempty"`
	RefID    int64              `json:"ref_id,omitempty"` // movement or BOM version id
	Message  string             `json:"message"`
	Expected decimal.Decimal    `json:"expected,omitempty"`
	Actual   decimal.Decimal    `json:"actual,omitempty"`
}

// Diagnose recomputes every balance, verifies movement and BOM references,
// and checks storage units and name uniqueness. Read-only.
func Diagnose(snap *ledger.Snapshot) []Finding {
	var findings []Finding

	balances := snap.BalanceAll()
	for _, class := range []ledger.EntityClass{ledger.ClassRawMaterial, ledger.ClassProduct} {
		canonical := ledger.CanonicalUnit(class)
		for _, e := range snap.Entities(class) {
			computed := balances[ledger.BalanceKey{Class: class, ID: e.ID}]
			if ledger.Drifted(e.Stock, computed) {
				findings = append(findings, Finding{
					Kind:     FindingMismatch,
					Class:    class,
					EntityID: e.ID,
					Message: fmt.Sprintf("%s %q: cached stock %s, ledger says %s",
						class, e.Name, e.Stock, computed),
					Expected: computed,
					Actual:   e.Stock,
				})
			}
			if e.Unit != "" && !ledger.SameUnit(e.Unit, canonical) {
				findings = append(findings, Finding{
					Kind:     FindingUnitWarning,
					Class:    class,
					EntityID: e.ID,
					Message:  fmt.Sprintf("%s %q stores unit %q, canonical is %q", class, e.Name, e.Unit, canonical),
				})
			}
		}

		for _, m := range snap.Movements(class) {
			if snap.EntityByID(class, m.EntityID) == nil {
				findings = append(findings, Finding{
					Kind:     FindingOrphan,
					Class:    class,
					EntityID: m.EntityID,
					RefID:    m.ID,
					Message: fmt.Sprintf("movement %d (%s %s) references missing %s %d",
						m.ID, m.Kind, m.Quantity, class, m.EntityID),
				})
			}
		}
	}

	for _, v := range snap.BOMVersions {
		if snap.BOMByID(v.BomID) == nil {
			findings = append(findings, Finding{
				Kind:    FindingOrphan,
				RefID:   v.ID,
				Message: fmt.Sprintf("bom version %d references missing bom %d", v.ID, v.BomID),
			})
		}
	}

	for _, d := range ledger.BuildNameIndex(snap).Duplicates() {
		findings = append(findings, Finding{
			Kind:    FindingDuplicateName,
			Class:   d.Class,
			Message: fmt.Sprintf("%s name %q held by entities %v", d.Class, d.Name, d.IDs),
		})
	}

	return findings
}

// CountByKind tallies findings for summaries.
func CountByKind(findings []Finding) map[FindingKind]int {
	out := make(map[FindingKind]int)
	for _, f := range findings {
		out[f.Kind]++
	}
	return out
}

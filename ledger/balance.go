/*
balance.go - Balance calculation from movements

PURPOSE:
  The fold that makes cached stock derivable: increasing kinds add, decreasing
  kinds subtract, everything already in canonical units so the fold is a plain
  sum with no unit work. Used for live queries, reconciliation, and the
  rebuild/recalc tools.

INVARIANT:
  stock_quantity(entity) == Balance(entity.Class, entity.ID) within
  MismatchEpsilon. Anything beyond that is a MISMATCH finding, surfaced by
  diagnostics and only ever corrected by an explicit operator-run rebuild or
  recalc, never silently.
*/
package ledger

import "github.com/shopspring/decimal"

// MismatchEpsilon is the tolerance between a cached stock field and its
// ledger fold before the pair counts as drifted (canonical mass unit).
var MismatchEpsilon = decimal.RequireFromString("0.0001")

// BalanceKey identifies one entity across both ledgers.
type BalanceKey struct {
	Class EntityClass
	ID    int64
}

// Balance folds all movements for one entity. Result is in the entity's
// canonical unit; movements were normalized before append.
func (s *Snapshot) Balance(class EntityClass, entityID int64) decimal.Decimal {
	total := decimal.Zero
	for _, m := range s.Movements(class) {
		if m.EntityID != entityID {
			continue
		}
		total = total.Add(m.SignedQuantity())
	}
	return total
}

// BalanceAll folds both ledgers grouped by entity in one pass. Entities with
// no movements are present with a zero balance so reconciliation sees them.
func (s *Snapshot) BalanceAll() map[BalanceKey]decimal.Decimal {
	out := make(map[BalanceKey]decimal.Decimal)
	for _, class := range []EntityClass{ClassRawMaterial, ClassProduct} {
		for _, e := range s.Entities(class) {
			out[BalanceKey{class, e.ID}] = decimal.Zero
		}
		for _, m := range s.Movements(class) {
			k := BalanceKey{class, m.EntityID}
			out[k] = out[k].Add(m.SignedQuantity())
		}
	}
	return out
}

// Drifted reports whether a cached stock disagrees with its fold by more
// than MismatchEpsilon.
func Drifted(cached, computed decimal.Decimal) bool {
	return cached.Sub(computed).Abs().GreaterThan(MismatchEpsilon)
}

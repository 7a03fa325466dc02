/*
ledger.go - Append operations over the movement ledgers

PURPOSE:
  The append path for stock movements. Append assigns the next id (max
  existing + 1, never a stored counter that gaps could corrupt), stamps the
  movement, records the audit-only post-movement balance, and updates the
  entity's cached stock in the same step. The cache never moves without a
  movement, and a movement (except audit-only ones) never lands without the
  cache moving.

INVARIANTS:
  - Movement quantity is positive; the kind carries the sign.
  - Movement unit equals the entity's storage unit. Normalization is the
    caller's job, BEFORE append; the ledger stays unit-agnostic.
  - Movements are never edited after append, only re-tagged (cancel) or
    reversed with inverse movements.

SEE ALSO:
  - balance.go: the fold that makes the cache derivable
  - issue/: posting/cancelling flows built on Append
*/
package ledger

import (
	"strings"
	"time"
)

// Append validates m against the snapshot, appends it to its class ledger,
// and applies it to the entity's cached stock. Returns the stored movement
// with id, timestamps, and snapshot_stock filled in.
func (s *Snapshot) Append(m Movement, now time.Time) (Movement, error) {
	return s.append(m, now, true)
}

// AppendAudit appends the movement without touching the cached stock. Used
// for unlimited-utility entities (water) where consumption is recorded for
// the trail but stock is not tracked.
func (s *Snapshot) AppendAudit(m Movement, now time.Time) (Movement, error) {
	return s.append(m, now, false)
}

func (s *Snapshot) append(m Movement, now time.Time, mutateStock bool) (Movement, error) {
	if !m.Kind.Valid() {
		return Movement{}, &InvalidStateError{Doc: "movement", ID: m.ID, Current: string(m.Kind), Want: "known movement kind"}
	}
	entity := s.EntityByID(m.Class, m.EntityID)
	if entity == nil {
		return Movement{}, &NotFoundError{Kind: string(m.Class), ID: m.EntityID}
	}
	if !m.Quantity.IsPositive() {
		return Movement{}, &InvalidStateError{Doc: "movement", ID: m.ID, Current: m.Quantity.String(), Want: "positive quantity"}
	}
	storageUnit := entity.Unit
	if storageUnit == "" {
		storageUnit = CanonicalUnit(m.Class)
	}
	if !SameUnit(m.Unit, storageUnit) {
		return Movement{}, &UnitConversionError{From: m.Unit, To: storageUnit}
	}

	m.ID = s.NextMovementID(m.Class)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}

	if mutateStock {
		if m.Kind.IsDecreasing() {
			entity.Stock = entity.Stock.Sub(m.Quantity)
		} else {
			entity.Stock = entity.Stock.Add(m.Quantity)
		}
		entity.UpdatedAt = now
	}
	after := entity.Stock
	m.SnapshotStock = &after

	s.setMovements(m.Class, append(s.Movements(m.Class), m))
	return m, nil
}

// MovementsFor returns the movements of one entity in ledger order.
func (s *Snapshot) MovementsFor(class EntityClass, entityID int64) []Movement {
	var out []Movement
	for _, m := range s.Movements(class) {
		if m.EntityID == entityID {
			out = append(out, m)
		}
	}
	return out
}

// MovementsForDoc returns the movements linked to one source document.
func (s *Snapshot) MovementsForDoc(class EntityClass, docType string, docID int64) []Movement {
	var out []Movement
	for _, m := range s.Movements(class) {
		if m.RelatedDocType == docType && m.RelatedDocID == docID {
			out = append(out, m)
		}
	}
	return out
}

// RetagDocMovements re-tags every movement linked to (fromDocType, docID) to
// toDocType and appends reasonSuffix to its reason, returning the count.
// This is how cancelled issues mark their original consumption as superseded
// so diagnostics never double count it; the quantities themselves are never
// edited.
func (s *Snapshot) RetagDocMovements(class EntityClass, fromDocType string, docID int64, toDocType, reasonSuffix string) int {
	ms := s.Movements(class)
	n := 0
	for i := range ms {
		if ms[i].RelatedDocType != fromDocType || ms[i].RelatedDocID != docID {
			continue
		}
		ms[i].RelatedDocType = toDocType
		if reasonSuffix != "" && !strings.HasSuffix(ms[i].Reason, reasonSuffix) {
			ms[i].Reason += reasonSuffix
		}
		n++
	}
	return n
}

/*
Package issue posts and reverses material issues against the stock ledgers.

PURPOSE:
  A material issue is the document that takes raw materials (and sometimes
  semi-finished products) out of stock for a production order. Posting walks
  the issue lines, converts each quantity to the entity's storage unit,
  appends CONSUME_OUT movements linked to the issue, and moves the cached
  stock. Cancelling appends the exact inverse RETURN_IN movements and re-tags
  the original consumption so nothing ever counts twice.

STATE MACHINE:
  DRAFT -> POSTED -> DRAFT. Nothing else. Posting a posted issue or cancelling
  a draft one fails with InvalidState, never a silent no-op.

UNIT FALLBACK:
  A line whose unit cannot convert to the entity's storage unit does not block
  the post: the raw number passes through under the storage unit and the
  movement reason records the original quantity and unit. One bad unit must
  not strand a whole production issue; diagnostics surface it later.

UNLIMITED UTILITIES:
  Entities on the unlimited-utility list (water, by convention) get their
  movements recorded for the trail but never move stock, in either direction.

SEE ALSO:
  - ledger: Append/AppendAudit and the movement model
  - bom: explosion feeding CreateFromOrder
*/
package issue

import (
	"strings"
	"time"

	"github.com/warp/inventory-engine/ledger"
)

// Params carries the cross-cutting inputs of a post/cancel: who is acting,
// when, and which entity names are treated as unlimited utilities.
type Params struct {
	Operator  string
	Now       time.Time
	Unlimited map[string]bool
}

func (p Params) now() time.Time {
	if p.Now.IsZero() {
		return time.Now()
	}
	return p.Now
}

func (p Params) operator() string {
	if p.Operator == "" {
		return "system"
	}
	return p.Operator
}

func (p Params) isUnlimited(name string) bool {
	return p.Unlimited[UnlimitedKey(name)]
}

// UnlimitedKey normalizes an entity name for the unlimited lookup. Catalog
// names vary in case ("Tap Water" vs "tap water"); the list does not.
func UnlimitedKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultUnlimitedNames lists the entity names conventionally excluded from
// stock tracking. Includes the legacy spellings carried by datasets migrated
// from the predecessor system.
func DefaultUnlimitedNames() []string {
	return []string{
		"water", "tap water", "purified water", "deionized water",
		"industrial water", "process water",
		"水", "自来水", "纯水", "去离子水", "工业用水", "生产用水",
	}
}

// UnlimitedSet builds the lookup set Params wants.
func UnlimitedSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[UnlimitedKey(n)] = true
	}
	return set
}

// Result summarizes one post or cancel.
type Result struct {
	IssueID  int64  `json:"issue_id"`
	Code     string `json:"issue_code"`
	Applied  int    `json:"applied_lines"`
	Skipped  int    `json:"skipped_lines"`
	Retagged int    `json:"retagged_movements,omitempty"`
	Message  string `json:"message"`
}

// lineClass defaults the item type the way legacy documents expect.
func lineClass(l ledger.IssueLine) ledger.EntityClass {
	if l.ItemType == ledger.ClassProduct {
		return ledger.ClassProduct
	}
	return ledger.ClassRawMaterial
}

// lineUnit defaults a missing line unit to kilograms.
func lineUnit(l ledger.IssueLine) ledger.Unit {
	if l.Unit == "" {
		return ledger.UnitKilogram
	}
	return l.Unit
}

// resolveEntity finds the target entity for a line: id first, then the name
// index. Products that exist nowhere are created on the spot with the
// canonical unit; raw materials are not invented, the caller decides.
func resolveEntity(snap *ledger.Snapshot, ix *ledger.NameIndex, class ledger.EntityClass, l ledger.IssueLine, now time.Time, createProducts bool) (*ledger.StockEntity, error) {
	if e := snap.EntityByID(class, l.ItemID); e != nil {
		return e, nil
	}
	name := strings.TrimSpace(l.ItemName)
	if name != "" {
		id, err := ix.Resolve(class, name)
		if err == nil {
			return snap.EntityByID(class, id), nil
		}
		if !ledger.IsNotFound(err) {
			return nil, err
		}
	}
	if class == ledger.ClassProduct && createProducts && name != "" {
		e := snap.AddEntity(ledger.StockEntity{
			Name:      name,
			Class:     ledger.ClassProduct,
			Unit:      ledger.CanonicalUnit(ledger.ClassProduct),
			UpdatedAt: now,
		})
		ix.Add(ledger.ClassProduct, name, e.ID)
		return e, nil
	}
	return nil, &ledger.NotFoundError{Kind: string(class), ID: l.ItemID, Name: name}
}

// convertLine converts a line quantity to the entity's storage unit. When the
// conversion fails the raw number passes through under the storage unit and
// the returned annotation records what was on the document.
func convertLine(l ledger.IssueLine, storage ledger.Unit) (ledger.Quantity, string) {
	from := lineUnit(l)
	q := ledger.NewQuantityFromDecimal(l.RequiredQty, from)
	converted, ok := ledger.Convert(q, storage)
	if ok {
		return converted, ""
	}
	if ledger.SameUnit(from, storage) {
		return ledger.Quantity{Value: l.RequiredQty, Unit: storage}, ""
	}
	annotation := " (orig: " + l.RequiredQty.String() + string(from) + ")"
	return ledger.Quantity{Value: l.RequiredQty, Unit: storage}, annotation
}

// storageUnit is the unit movements for this entity must carry.
func storageUnit(e *ledger.StockEntity) ledger.Unit {
	if e.Unit != "" {
		return e.Unit
	}
	return ledger.CanonicalUnit(e.Class)
}

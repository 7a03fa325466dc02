/*
Package bom explodes bill-of-materials versions into flat requirement lists.

PURPOSE:
  Given a BOM version and a target output quantity, scale every line by the
  yield ratio. Two modes:

  - Explode: single level. Product-typed lines stay product lines; whoever
    consumes the requirements decides whether semi-finished goods come from
    stock. This is what issue creation uses.
  - ExplodeDeep: recursive. Product lines that have their own BOM (resolved
    through the product -> BOM foreign key, never by name matching) are
    replaced by their sub-requirements. A visited set bounds the walk by graph
    structure; past the depth cap a line is emitted as a terminal marker
    instead of recursing further.

SCALING:
  ratio = targetQty / yieldBase, exact decimal arithmetic, no rounding here.
  Rounding is a presentation concern for callers.

EDGE CASES:
  - Unknown version id: empty list, not an error. Callers check emptiness.
  - Yield base <= 0: treated as the legacy default 1000.
  - Line without a unit: kilograms.
*/
package bom

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/ledger"
)

// DefaultMaxDepth caps recursive explosion. Cycles are caught by the visited
// set; the cap only guards degenerate deep chains.
const DefaultMaxDepth = 5

var defaultYieldBase = decimal.NewFromInt(1000)

// RequirementLine is one item requirement produced by an explosion.
type RequirementLine struct {
	ItemID      int64              `json:"item_id"`
	ItemName    string             `json:"item_name"`
	ItemType    ledger.EntityClass `json:"item_type"`
	RequiredQty decimal.Decimal    `json:"required_qty"`
	Unit        ledger.Unit        `json:"uom"`
	Phase       string             `json:"phase,omitempty"`
	Note        string             `json:"note,omitempty"`
}

// Options tunes ExplodeDeep.
type Options struct {
	MaxDepth int       // 0 means DefaultMaxDepth
	At       time.Time // effective date for nested version selection; zero means now
}

// Explode scales the version's lines to the target quantity. Returns an
// empty list when the version id is unknown.
func Explode(snap *ledger.Snapshot, versionID int64, targetQty decimal.Decimal) []RequirementLine {
	v := snap.BOMVersionByID(versionID)
	if v == nil {
		return nil
	}
	ratio := scaleRatio(v, targetQty)
	out := make([]RequirementLine, 0, len(v.Lines))
	for _, line := range v.Lines {
		out = append(out, scaleLine(line, ratio))
	}
	return out
}

// ExplodeDeep scales the version's lines and recursively expands product
// lines through their BOMs. Requirements for the same item aggregate.
func ExplodeDeep(snap *ledger.Snapshot, versionID int64, targetQty decimal.Decimal, opts Options) []RequirementLine {
	v := snap.BOMVersionByID(versionID)
	if v == nil {
		return nil
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.At.IsZero() {
		opts.At = time.Now()
	}
	acc := newAccumulator()
	visited := map[int64]bool{v.BomID: true}
	explodeInto(snap, v, targetQty, opts, 1, visited, acc)
	return acc.lines()
}

func explodeInto(snap *ledger.Snapshot, v *ledger.BOMVersion, targetQty decimal.Decimal, opts Options, depth int, visited map[int64]bool, acc *accumulator) {
	ratio := scaleRatio(v, targetQty)
	for _, line := range v.Lines {
		req := scaleLine(line, ratio)
		if line.ItemType != ledger.ClassProduct {
			acc.add(req)
			continue
		}

		nested := nestedVersion(snap, line.ItemID, opts.At)
		if nested == nil {
			acc.add(req)
			continue
		}
		if visited[nested.BomID] {
			req.Note = "cyclic bom reference, not exploded"
			acc.add(req)
			continue
		}
		if depth >= opts.MaxDepth {
			req.Note = "bom depth limit reached, not exploded"
			acc.add(req)
			continue
		}

		// Nested yields are in the canonical unit; convert the requirement
		// before descending. An unconvertible line stays terminal.
		nestedQty, ok := ledger.Convert(ledger.NewQuantityFromDecimal(req.RequiredQty, req.Unit), ledger.CanonicalUnit(ledger.ClassProduct))
		if !ok {
			req.Note = "unit prevents explosion"
			acc.add(req)
			continue
		}

		visited[nested.BomID] = true
		explodeInto(snap, nested, nestedQty.Value, opts, depth+1, visited, acc)
		delete(visited, nested.BomID)
	}
}

// nestedVersion resolves the BOM that yields a product, then its effective
// version. Both hops use explicit keys, no name matching.
func nestedVersion(snap *ledger.Snapshot, productID int64, at time.Time) *ledger.BOMVersion {
	if productID == 0 {
		return nil
	}
	b := snap.BOMByProductID(productID)
	if b == nil {
		return nil
	}
	return snap.EffectiveVersionFor(b.ID, at)
}

func scaleRatio(v *ledger.BOMVersion, targetQty decimal.Decimal) decimal.Decimal {
	yield := v.YieldBase
	if !yield.IsPositive() {
		yield = defaultYieldBase
	}
	return targetQty.Div(yield)
}

func scaleLine(line ledger.BOMLine, ratio decimal.Decimal) RequirementLine {
	unit := line.Unit
	if unit == "" {
		unit = ledger.UnitKilogram
	}
	name := line.ItemName
	if name == "" {
		name = "Unknown"
	}
	itemType := line.ItemType
	if itemType == "" {
		itemType = ledger.ClassRawMaterial
	}
	return RequirementLine{
		ItemID:      line.ItemID,
		ItemName:    name,
		ItemType:    itemType,
		RequiredQty: line.Quantity.Mul(ratio),
		Unit:        unit,
		Phase:       line.Phase,
	}
}

// =============================================================================
// AGGREGATION
// =============================================================================

type reqKey struct {
	itemType ledger.EntityClass
	itemID   int64
	name     string
	unit     ledger.Unit
	phase    string
	note     string
}

// accumulator merges requirements for the same item while keeping first-seen
// order stable.
type accumulator struct {
	order []reqKey
	byKey map[reqKey]RequirementLine
}

func newAccumulator() *accumulator {
	return &accumulator{byKey: make(map[reqKey]RequirementLine)}
}

func (a *accumulator) add(r RequirementLine) {
	k := reqKey{r.ItemType, r.ItemID, r.ItemName, r.Unit, r.Phase, r.Note}
	if existing, ok := a.byKey[k]; ok {
		existing.RequiredQty = existing.RequiredQty.Add(r.RequiredQty)
		a.byKey[k] = existing
		return
	}
	a.order = append(a.order, k)
	a.byKey[k] = r
}

func (a *accumulator) lines() []RequirementLine {
	out := make([]RequirementLine, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, a.byKey[k])
	}
	return out
}

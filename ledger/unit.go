/*
unit.go - Unit families and conversion

PURPOSE:
  Converts heterogeneous mass/volume unit strings to the canonical storage
  unit. Input documents arrive with whatever unit an operator typed ("KG",
  "ton", "吨", "g"); the ledger stores kilograms only. Conversion happens
  exactly once, before a movement reaches the ledger, never inside it.

RULES:
  - Two disjoint families: mass (base kg) and volume (base L), each unit a
    multiplicative factor against its base.
  - Lookup is case-insensitive and tolerant of locale aliases (吨 == ton == t).
  - Cross-family or unrecognized conversions fail with ok=false and return the
    input untouched. Callers choose the fallback policy; nothing here guesses.

SEE ALSO:
  - types.go: Quantity/Unit definitions
  - issue/: annotated raw-quantity fallback on conversion failure
*/
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

type unitFamily int

const (
	familyMass unitFamily = iota
	familyVolume
)

type unitDef struct {
	family unitFamily
	factor decimal.Decimal // multiplier to the family base unit
}

var (
	one = decimal.NewFromInt(1)

	unitTable = map[string]unitDef{
		// Mass, base kg.
		"mg":       {familyMass, decimal.RequireFromString("0.000001")},
		"毫克":       {familyMass, decimal.RequireFromString("0.000001")},
		"g":        {familyMass, decimal.RequireFromString("0.001")},
		"gram":     {familyMass, decimal.RequireFromString("0.001")},
		"克":        {familyMass, decimal.RequireFromString("0.001")},
		"kg":       {familyMass, one},
		"kgs":      {familyMass, one},
		"公斤":       {familyMass, one},
		"千克":       {familyMass, one},
		"ton":      {familyMass, decimal.NewFromInt(1000)},
		"tons":     {familyMass, decimal.NewFromInt(1000)},
		"t":        {familyMass, decimal.NewFromInt(1000)},
		"吨":        {familyMass, decimal.NewFromInt(1000)},
		"lb":       {familyMass, decimal.RequireFromString("0.453592")},
		"lbs":      {familyMass, decimal.RequireFromString("0.453592")},
		"pound":    {familyMass, decimal.RequireFromString("0.453592")},
		"磅":        {familyMass, decimal.RequireFromString("0.453592")},

		// Volume, base L.
		"ml":         {familyVolume, decimal.RequireFromString("0.001")},
		"milliliter": {familyVolume, decimal.RequireFromString("0.001")},
		"毫升":         {familyVolume, decimal.RequireFromString("0.001")},
		"l":          {familyVolume, one},
		"liter":      {familyVolume, one},
		"liters":     {familyVolume, one},
		"升":          {familyVolume, one},
		"m3":         {familyVolume, decimal.NewFromInt(1000)},
		"m³":         {familyVolume, decimal.NewFromInt(1000)},
		"立方米":        {familyVolume, decimal.NewFromInt(1000)},
	}
)

func unitKey(u Unit) string {
	return strings.ToLower(strings.TrimSpace(string(u)))
}

func lookupUnit(u Unit) (unitDef, bool) {
	def, ok := unitTable[unitKey(u)]
	return def, ok
}

// KnownUnit reports whether the unit string is in either family.
func KnownUnit(u Unit) bool {
	_, ok := lookupUnit(u)
	return ok
}

// SameUnit reports whether two unit strings name the same unit (alias and
// case insensitive: "KG", "kg" and "公斤" are all kilograms).
func SameUnit(a, b Unit) bool {
	da, oka := lookupUnit(a)
	db, okb := lookupUnit(b)
	if !oka || !okb {
		return unitKey(a) == unitKey(b)
	}
	return da.family == db.family && da.factor.Equal(db.factor)
}

// Convert converts q to the target unit. ok=false when either unit is
// unrecognized or the units belong to different families; in that case the
// input quantity is returned unchanged and the caller must apply its own
// fallback, never assume equality.
func Convert(q Quantity, to Unit) (Quantity, bool) {
	from, okFrom := lookupUnit(q.Unit)
	target, okTo := lookupUnit(to)
	if !okFrom || !okTo || from.family != target.family {
		return q, false
	}
	if from.factor.Equal(target.factor) {
		return Quantity{Value: q.Value, Unit: to}, true
	}
	converted := q.Value.Mul(from.factor).Div(target.factor)
	return Quantity{Value: converted, Unit: to}, true
}

// CanonicalUnit returns the storage unit for an entity class. Both raw
// materials and products store kilograms in this domain.
func CanonicalUnit(class EntityClass) Unit {
	return UnitKilogram
}

// NormalizeToCanonical converts q to the canonical storage unit for the
// class. Same contract as Convert.
func NormalizeToCanonical(q Quantity, class EntityClass) (Quantity, bool) {
	return Convert(q, CanonicalUnit(class))
}

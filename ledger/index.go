// index.go - Secondary name -> id index over the entity catalogs.
// Built once per loaded snapshot. Name lookups go through here instead of
// scanning, and a name held by more than one entity is an explicit error
// (plus a diagnostic finding), never a silent first-match.
package ledger

import "strings"

type NameIndex struct {
	byName map[EntityClass]map[string][]int64
}

func nameKey(name string) string { return strings.TrimSpace(name) }

// BuildNameIndex indexes both entity catalogs by trimmed name.
func BuildNameIndex(s *Snapshot) *NameIndex {
	ix := &NameIndex{byName: map[EntityClass]map[string][]int64{
		ClassRawMaterial: {},
		ClassProduct:     {},
	}}
	for _, class := range []EntityClass{ClassRawMaterial, ClassProduct} {
		for _, e := range s.Entities(class) {
			k := nameKey(e.Name)
			if k == "" {
				continue
			}
			ix.byName[class][k] = append(ix.byName[class][k], e.ID)
		}
	}
	return ix
}

// Add keeps the index current when an entity is auto-created mid-operation.
func (ix *NameIndex) Add(class EntityClass, name string, id int64) {
	k := nameKey(name)
	if k == "" {
		return
	}
	ix.byName[class][k] = append(ix.byName[class][k], id)
}

// Resolve returns the single entity id registered under the name.
// Missing names return a NotFoundError; names held by several entities
// return an AmbiguousNameError.
func (ix *NameIndex) Resolve(class EntityClass, name string) (int64, error) {
	ids := ix.byName[class][nameKey(name)]
	switch len(ids) {
	case 0:
		return 0, &NotFoundError{Kind: string(class), Name: name}
	case 1:
		return ids[0], nil
	}
	return 0, &AmbiguousNameError{Class: class, Name: name, IDs: append([]int64(nil), ids...)}
}

// ResolveFirst tries the candidate names in order and returns the first
// unambiguous hit. Used where a record may be known under alias spellings
// (e.g. "CODE-Name" vs "Name"). Ambiguity still fails.
func (ix *NameIndex) ResolveFirst(class EntityClass, candidates ...string) (int64, error) {
	var lastErr error
	for _, name := range candidates {
		id, err := ix.Resolve(class, name)
		if err == nil {
			return id, nil
		}
		if IsNotFound(err) {
			lastErr = err
			continue
		}
		return 0, err
	}
	if lastErr == nil {
		lastErr = &NotFoundError{Kind: string(class)}
	}
	return 0, lastErr
}

// Duplicate is one name shared by multiple entities of a class.
type Duplicate struct {
	Class EntityClass
	Name  string
	IDs   []int64
}

// Duplicates lists every name held by more than one entity, for diagnostics.
func (ix *NameIndex) Duplicates() []Duplicate {
	var out []Duplicate
	for _, class := range []EntityClass{ClassRawMaterial, ClassProduct} {
		for name, ids := range ix.byName[class] {
			if len(ids) > 1 {
				out = append(out, Duplicate{Class: class, Name: name, IDs: append([]int64(nil), ids...)})
			}
		}
	}
	return out
}

// bom.go - BOM, BOMVersion, and BOMLine records plus snapshot lookups.
// A BOM names the formula and carries a foreign key to the product it yields;
// versions hold the actual lines and are immutable once approved (changes
// create a new version). Explosion logic lives in the bom package.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type BOMStatus string

const (
	BOMPending  BOMStatus = "pending"
	BOMApproved BOMStatus = "approved"
	BOMFrozen   BOMStatus = "frozen"
)

// Usable reports whether a version may drive production documents.
func (s BOMStatus) Usable() bool { return s == BOMApproved || s == BOMFrozen }

// BOM is the formula identity. ProductID links it to the product entity it
// yields, which is what lets explosion resolve product-typed lines without
// matching on names at runtime.
type BOM struct {
	ID        int64     `json:"id"`
	Code      string    `json:"bom_code"`
	Name      string    `json:"bom_name"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

type BOMVersion struct {
	ID            int64           `json:"id"`
	BomID         int64           `json:"bom_id"`
	Version       string          `json:"version_number"`
	Status        BOMStatus       `json:"status"`
	YieldBase     decimal.Decimal `json:"yield_base"`
	EffectiveFrom time.Time       `json:"effective_from"`
	Lines         []BOMLine       `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
}

type BOMLine struct {
	ItemID   int64           `json:"material_id"`
	ItemName string          `json:"material_name"`
	ItemType EntityClass     `json:"item_type"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     Unit            `json:"unit"`
	Phase    string          `json:"phase,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// =============================================================================
// SNAPSHOT LOOKUPS
// =============================================================================

func (s *Snapshot) BOMByID(id int64) *BOM {
	for i := range s.BOMs {
		if s.BOMs[i].ID == id {
			return &s.BOMs[i]
		}
	}
	return nil
}

// BOMByProductID resolves the formula that yields a product. Returns nil when
// the product has no BOM.
func (s *Snapshot) BOMByProductID(productID int64) *BOM {
	for i := range s.BOMs {
		if s.BOMs[i].ProductID == productID {
			return &s.BOMs[i]
		}
	}
	return nil
}

func (s *Snapshot) BOMVersionByID(id int64) *BOMVersion {
	for i := range s.BOMVersions {
		if s.BOMVersions[i].ID == id {
			return &s.BOMVersions[i]
		}
	}
	return nil
}

// EffectiveVersionFor returns the single version of a BOM effective at the
// given time: the usable version with the latest EffectiveFrom not after at.
func (s *Snapshot) EffectiveVersionFor(bomID int64, at time.Time) *BOMVersion {
	var found *BOMVersion
	for i := range s.BOMVersions {
		v := &s.BOMVersions[i]
		if v.BomID != bomID || !v.Status.Usable() || v.EffectiveFrom.After(at) {
			continue
		}
		if found == nil || v.EffectiveFrom.After(found.EffectiveFrom) {
			found = v
		}
	}
	return found
}

// LatestUsableVersionWithLines is the fallback when a document pins a version
// that turns out to be empty: the most recently created usable version that
// actually has lines.
func (s *Snapshot) LatestUsableVersionWithLines(bomID int64) *BOMVersion {
	var found *BOMVersion
	for i := range s.BOMVersions {
		v := &s.BOMVersions[i]
		if v.BomID != bomID || !v.Status.Usable() || len(v.Lines) == 0 {
			continue
		}
		if found == nil || v.ID > found.ID {
			found = v
		}
	}
	return found
}

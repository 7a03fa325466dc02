// recalc.go - Cached-stock resynchronization. Unlike Rebuild, the ledgers are
// left untouched: each entity's cached stock is set to its ledger fold when
// the two drift. The gentler repair for cache-only corruption.
package rebuild

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/ledger"
)

// recalcEpsilon is deliberately tighter than the diagnostic epsilon: once an
// operator asks for a resync, even tiny drift gets folded away.
var recalcEpsilon = decimal.RequireFromString("0.000001")

// StockChange is one cache correction Recalc made (or would make).
type StockChange struct {
	Class ledger.EntityClass `json:"class"`
	ID    int64              `json:"entity_id"`
	Name  string             `json:"name"`
	Old   decimal.Decimal    `json:"old"`
	New   decimal.Decimal    `json:"new"`
}

// RecalcSummary reports the corrections.
type RecalcSummary struct {
	DryRun  bool          `json:"dry_run"`
	Checked int           `json:"checked"`
	Changes []StockChange `json:"changes,omitempty"`
}

// Recalc folds both ledgers and rewrites drifted caches on the snapshot.
func Recalc(snap *ledger.Snapshot, operator string, now time.Time) RecalcSummary {
	if now.IsZero() {
		now = time.Now()
	}
	if operator == "" {
		operator = "system"
	}

	var sum RecalcSummary
	balances := snap.BalanceAll()
	for _, class := range []ledger.EntityClass{ledger.ClassRawMaterial, ledger.ClassProduct} {
		entities := snap.Entities(class)
		for i := range entities {
			e := &entities[i]
			sum.Checked++
			computed := balances[ledger.BalanceKey{Class: class, ID: e.ID}]
			if e.Stock.Sub(computed).Abs().LessThanOrEqual(recalcEpsilon) {
				continue
			}
			sum.Changes = append(sum.Changes, StockChange{
				Class: class, ID: e.ID, Name: e.Name, Old: e.Stock, New: computed,
			})
			e.Stock = computed
			e.UpdatedAt = now
		}
	}

	if len(sum.Changes) > 0 {
		snap.Audit(ledger.AuditStockRecalced, operator, "", 0,
			fmt.Sprintf("recalculated %d cached stocks from the ledger", len(sum.Changes)), now)
	}
	return sum
}

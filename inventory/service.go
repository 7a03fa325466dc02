/*
Package inventory is the service facade over the ledger engine.

PURPOSE:
  One constructed object owning the snapshot store, exposing every operation
  external collaborators call: posting/cancelling issues, BOM explosion,
  balances, document flows, diagnostics, rebuild/recalc. No package-level
  state anywhere; everything the service needs is injected.

ATOMICITY:
  Every mutating operation runs inside store.Update: lock, load, mutate,
  backup, save, unlock. When the closure or the save fails nothing persists
  and the in-memory snapshot is thrown away, so callers never observe a
  half-applied post. Read operations run on View copies and may be stale by
  the time they return.

SEE ALSO:
  - issue/: post/cancel/create logic
  - rebuild/: diagnose/rebuild/recalc logic
  - api/: the HTTP facade over this service
*/
package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/bom"
	"github.com/warp/inventory-engine/issue"
	"github.com/warp/inventory-engine/ledger"
	"github.com/warp/inventory-engine/rebuild"
)

// Config carries the optional knobs of a Service.
type Config struct {
	// UnlimitedNames overrides the default unlimited-utility (water) list.
	UnlimitedNames []string

	// Clock substitutes time.Now in tests.
	Clock func() time.Time
}

type Service struct {
	store     ledger.SnapshotStore
	log       zerolog.Logger
	now       func() time.Time
	unlimited map[string]bool
}

func New(store ledger.SnapshotStore, log zerolog.Logger, cfg Config) (*Service, error) {
	if store == nil {
		return nil, ledger.ErrStoreRequired
	}
	names := cfg.UnlimitedNames
	if len(names) == 0 {
		names = issue.DefaultUnlimitedNames()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		log:       log,
		now:       now,
		unlimited: issue.UnlimitedSet(names),
	}, nil
}

func (s *Service) params(operator string) issue.Params {
	return issue.Params{Operator: operator, Now: s.now(), Unlimited: s.unlimited}
}

// =============================================================================
// ISSUES
// =============================================================================

// PostIssue posts a draft issue: consumption movements, stock decrements, and
// the status flip land atomically or not at all.
func (s *Service) PostIssue(ctx context.Context, issueID int64, operator string) (issue.Result, error) {
	var res issue.Result
	err := s.store.Update(ctx, func(snap *ledger.Snapshot) error {
		var err error
		res, err = issue.Post(snap, issueID, s.params(operator))
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("issue_id", issueID).Str("operator", operator).Msg("issue post rejected")
		return issue.Result{}, err
	}
	s.log.Info().Int64("issue_id", issueID).Str("operator", operator).
		Int("lines", res.Applied).Msg("issue posted")
	return res, nil
}

// CancelIssue reverses a posted issue with inverse movements and re-tags the
// original consumption.
func (s *Service) CancelIssue(ctx context.Context, issueID int64, operator string) (issue.Result, error) {
	var res issue.Result
	err := s.store.Update(ctx, func(snap *ledger.Snapshot) error {
		var err error
		res, err = issue.Cancel(snap, issueID, s.params(operator))
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Int64("issue_id", issueID).Str("operator", operator).Msg("issue cancel rejected")
		return issue.Result{}, err
	}
	s.log.Info().Int64("issue_id", issueID).Str("operator", operator).
		Int("lines", res.Applied).Int("retagged", res.Retagged).Msg("issue cancelled")
	return res, nil
}

// CreateIssueFromOrder drafts an issue from a production order's BOM.
func (s *Service) CreateIssueFromOrder(ctx context.Context, orderID int64, operator string) (ledger.MaterialIssue, error) {
	var created ledger.MaterialIssue
	err := s.store.Update(ctx, func(snap *ledger.Snapshot) error {
		is, err := issue.CreateFromOrder(snap, orderID, s.params(operator))
		if err != nil {
			return err
		}
		created = *is
		return nil
	})
	if err != nil {
		return ledger.MaterialIssue{}, err
	}
	s.log.Info().Int64("order_id", orderID).Str("issue_code", created.Code).Msg("issue drafted from order")
	return created, nil
}

// Issues lists all material issues.
func (s *Service) Issues(ctx context.Context) ([]ledger.MaterialIssue, error) {
	var out []ledger.MaterialIssue
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		out = snap.Issues
		return nil
	})
	return out, err
}

// Issue returns one issue by id.
func (s *Service) Issue(ctx context.Context, id int64) (ledger.MaterialIssue, error) {
	var out ledger.MaterialIssue
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		is := snap.IssueByID(id)
		if is == nil {
			return &ledger.NotFoundError{Kind: "issue", ID: id}
		}
		out = *is
		return nil
	})
	return out, err
}

// =============================================================================
// BOM
// =============================================================================

// ExplodeBOM scales a BOM version to the target quantity. deep expands
// product lines through their own BOMs. An unknown version id yields an empty
// list; callers check emptiness.
func (s *Service) ExplodeBOM(ctx context.Context, versionID int64, targetQty decimal.Decimal, deep bool) ([]bom.RequirementLine, error) {
	var out []bom.RequirementLine
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		if deep {
			out = bom.ExplodeDeep(snap, versionID, targetQty, bom.Options{At: s.now()})
		} else {
			out = bom.Explode(snap, versionID, targetQty)
		}
		return nil
	})
	return out, err
}

// =============================================================================
// BALANCES
// =============================================================================

// EntityBalance pairs the cached stock with the ledger fold for one entity.
type EntityBalance struct {
	Class    ledger.EntityClass `json:"class"`
	ID       int64              `json:"entity_id"`
	Name     string             `json:"name"`
	Unit     ledger.Unit        `json:"unit"`
	Cached   decimal.Decimal    `json:"cached"`
	Computed decimal.Decimal    `json:"computed"`
	Drifted  bool               `json:"drifted"`
}

// GetBalance folds the ledger for one entity. The fold, not the cache, is
// what a live query reports.
func (s *Service) GetBalance(ctx context.Context, class ledger.EntityClass, entityID int64) (ledger.Quantity, error) {
	var out ledger.Quantity
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		e := snap.EntityByID(class, entityID)
		if e == nil {
			return &ledger.NotFoundError{Kind: string(class), ID: entityID}
		}
		unit := e.Unit
		if unit == "" {
			unit = ledger.CanonicalUnit(class)
		}
		out = ledger.Quantity{Value: snap.Balance(class, entityID), Unit: unit}
		return nil
	})
	return out, err
}

// GetAllBalances folds both ledgers in one pass and reports cache drift per
// entity, ordered by class then id.
func (s *Service) GetAllBalances(ctx context.Context) ([]EntityBalance, error) {
	var out []EntityBalance
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		balances := snap.BalanceAll()
		for _, class := range []ledger.EntityClass{ledger.ClassRawMaterial, ledger.ClassProduct} {
			for _, e := range snap.Entities(class) {
				computed := balances[ledger.BalanceKey{Class: class, ID: e.ID}]
				out = append(out, EntityBalance{
					Class:    class,
					ID:       e.ID,
					Name:     e.Name,
					Unit:     e.Unit,
					Cached:   e.Stock,
					Computed: computed,
					Drifted:  ledger.Drifted(e.Stock, computed),
				})
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Class != out[j].Class {
				return out[i].Class < out[j].Class
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

// Materials lists the raw material catalog.
func (s *Service) Materials(ctx context.Context) ([]ledger.StockEntity, error) {
	var out []ledger.StockEntity
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		out = snap.RawMaterials
		return nil
	})
	return out, err
}

// Products lists the product catalog.
func (s *Service) Products(ctx context.Context) ([]ledger.StockEntity, error) {
	var out []ledger.StockEntity
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		out = snap.Products
		return nil
	})
	return out, err
}

// Movements lists the ledger for one entity.
func (s *Service) Movements(ctx context.Context, class ledger.EntityClass, entityID int64) ([]ledger.Movement, error) {
	var out []ledger.Movement
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		if snap.EntityByID(class, entityID) == nil {
			return &ledger.NotFoundError{Kind: string(class), ID: entityID}
		}
		out = snap.MovementsFor(class, entityID)
		return nil
	})
	return out, err
}

// =============================================================================
// DIAGNOSTICS / REPAIR
// =============================================================================

// Diagnose reports consistency findings. Read-only, never mutates.
func (s *Service) Diagnose(ctx context.Context) ([]rebuild.Finding, error) {
	var out []rebuild.Finding
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		out = rebuild.Diagnose(snap)
		return nil
	})
	if err == nil {
		s.log.Info().Int("findings", len(out)).Msg("diagnostics completed")
	}
	return out, err
}

// RebuildOptions selects rebuild behavior at the service boundary.
type RebuildOptions struct {
	// Run persists the rebuilt ledger. The default is a dry run: the rebuild
	// happens on a throwaway copy and only the summary escapes.
	Run bool

	// LegacyUnitHeuristics enables the migration-era magnitude corrections.
	LegacyUnitHeuristics bool

	Operator string
}

// RebuildLedger replays source documents into fresh ledgers. Dry-run unless
// opts.Run; the summary discloses dropped adjustments either way.
func (s *Service) RebuildLedger(ctx context.Context, opts RebuildOptions) (rebuild.Summary, error) {
	ropts := rebuild.Options{
		LegacyUnitHeuristics: opts.LegacyUnitHeuristics,
		Unlimited:            s.unlimited,
		Operator:             opts.Operator,
		Now:                  s.now(),
	}

	var sum rebuild.Summary
	var err error
	if opts.Run {
		err = s.store.Update(ctx, func(snap *ledger.Snapshot) error {
			var rerr error
			sum, rerr = rebuild.Rebuild(snap, ropts)
			return rerr
		})
	} else {
		err = s.store.View(ctx, func(snap *ledger.Snapshot) error {
			var rerr error
			sum, rerr = rebuild.Rebuild(snap, ropts)
			return rerr
		})
		sum.DryRun = true
	}
	if err != nil {
		return rebuild.Summary{}, err
	}
	s.log.Info().Bool("dry_run", sum.DryRun).Int("movements", sum.MovementsWritten).
		Int("dropped_adjustments", sum.DroppedAdjustments).Msg("ledger rebuild")
	return sum, nil
}

// RecalcOptions selects recalc behavior.
type RecalcOptions struct {
	Run      bool
	Operator string
}

// Recalc resyncs cached stocks to the ledger fold. Dry-run unless opts.Run.
func (s *Service) Recalc(ctx context.Context, opts RecalcOptions) (rebuild.RecalcSummary, error) {
	var sum rebuild.RecalcSummary
	var err error
	if opts.Run {
		err = s.store.Update(ctx, func(snap *ledger.Snapshot) error {
			sum = rebuild.Recalc(snap, opts.Operator, s.now())
			return nil
		})
	} else {
		err = s.store.View(ctx, func(snap *ledger.Snapshot) error {
			sum = rebuild.Recalc(snap, opts.Operator, s.now())
			return nil
		})
		sum.DryRun = true
	}
	if err != nil {
		return rebuild.RecalcSummary{}, err
	}
	s.log.Info().Bool("dry_run", sum.DryRun).Int("changes", len(sum.Changes)).Msg("stock recalc")
	return sum, nil
}

// CreateBackup captures the persisted state out-of-line.
func (s *Service) CreateBackup(ctx context.Context) (string, error) {
	label, err := s.store.CreateBackup(ctx)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("backup", label).Msg("backup created")
	return label, nil
}

// AuditTrail returns the most recent audit entries, newest first. limit <= 0
// means everything.
func (s *Service) AuditTrail(ctx context.Context, limit int) ([]ledger.AuditEntry, error) {
	var out []ledger.AuditEntry
	err := s.store.View(ctx, func(snap *ledger.Snapshot) error {
		entries := append([]ledger.AuditEntry(nil), snap.AuditLog...)
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		out = entries
		return nil
	})
	return out, err
}

// Package categorizer resolves transactions into their review state using
// persisted auto-rules, description history and manual decisions.
//
// Rule tables are explicit repositories (the store's rule queries) passed in
// per call, never ambient state, so tests can run against isolated databases.
package categorizer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tally/internal/config"
	"tally/internal/ledgererror"
	"tally/internal/models"
	"tally/internal/store"

	"github.com/sirupsen/logrus"
)

var log = config.Logger

// SetLogger allows setting a configured logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Engine applies auto-rules, computes suggestions and records decisions.
type Engine struct {
	store *store.Store
}

// New creates a categorization engine over the given store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// RuleOutcome reports what the auto-rule pass did to one transaction.
type RuleOutcome int

const (
	RuleNone RuleOutcome = iota
	RuleAllocated
	RuleIgnored
)

// ApplyAutoRules resolves a freshly ingested transaction against the rule
// tables. An auto-ignore rule wins over an auto-allocate rule for the same
// description. Runs within the caller's transaction so auto-resolved rows
// are never observable as unreviewed.
func (e *Engine) ApplyAutoRules(ctx context.Context, q *store.Queries, id int64, norm string) (RuleOutcome, error) {
	ignored, err := q.HasIgnoreRule(ctx, norm)
	if err != nil {
		return RuleNone, err
	}
	if ignored {
		if err := q.MarkIgnored(ctx, id); err != nil {
			return RuleNone, err
		}
		return RuleIgnored, nil
	}

	category, found, err := q.GetAllocateRule(ctx, norm)
	if err != nil {
		return RuleNone, err
	}
	if !found {
		return RuleNone, nil
	}

	// Rules may predate the category itself.
	if err := q.CreateCategory(ctx, category); err != nil {
		return RuleNone, err
	}
	if err := q.AssignCategory(ctx, id, category); err != nil {
		return RuleNone, err
	}
	return RuleAllocated, nil
}

// Suggest returns the most frequently assigned category among categorized
// transactions sharing this description, ties broken by most recent
// assignment. The query runs over a snapshot; nothing is cached.
func (e *Engine) Suggest(ctx context.Context, description string) (string, bool, error) {
	norm := models.NormalizeDescription(description)
	if norm == "" {
		return "", false, nil
	}
	return e.store.SuggestCategory(ctx, norm)
}

// Decide records a manual review decision for one transaction. The whole
// decision, including any rule upsert and bulk resolution of matching
// unreviewed transactions, commits atomically. Validation happens before the
// first write, so a failed decision mutates nothing.
func (e *Engine) Decide(ctx context.Context, id int64, decision models.Decision) error {
	if decision.Kind == models.DecideSkip {
		// Skips leave the transaction unreviewed for the next pass, but an
		// unknown id still fails like every other decision.
		if _, err := e.store.GetTransaction(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("transaction %d: %w", id, ledgererror.ErrNotFound)
			}
			return err
		}
		return nil
	}

	return e.store.WithTx(ctx, func(q *store.Queries) error {
		if _, err := q.GetTransaction(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("transaction %d: %w", id, ledgererror.ErrNotFound)
			}
			return err
		}

		switch decision.Kind {
		case models.DecideAssign:
			return e.assign(ctx, q, id, decision.Category, false)

		case models.DecideCreateCategoryAndAssign:
			return e.assign(ctx, q, id, decision.Category, true)

		case models.DecideIgnore:
			return q.MarkIgnored(ctx, id)

		case models.DecidePersistAutoAllocate:
			if err := e.assign(ctx, q, id, decision.Category, true); err != nil {
				return err
			}
			norm, err := q.NormalizedDescription(ctx, id)
			if err != nil {
				return err
			}
			if err := q.UpsertAllocateRule(ctx, norm, decision.Category); err != nil {
				return err
			}
			n, err := q.AssignByDescription(ctx, norm, decision.Category)
			if err != nil {
				return err
			}
			if n > 0 {
				log.WithFields(logrus.Fields{"description": norm, "category": decision.Category, "count": n}).
					Info("Auto-allocate rule resolved pending transactions")
			}
			return nil

		case models.DecidePersistAutoIgnore:
			norm, err := q.NormalizedDescription(ctx, id)
			if err != nil {
				return err
			}
			if err := q.UpsertIgnoreRule(ctx, norm); err != nil {
				return err
			}
			if _, err := q.IgnoreByDescription(ctx, norm); err != nil {
				return err
			}
			return q.MarkIgnored(ctx, id)

		default:
			return fmt.Errorf("unknown decision kind %d", decision.Kind)
		}
	})
}

// assign validates the category (creating it first when requested) and
// marks the transaction categorized.
func (e *Engine) assign(ctx context.Context, q *store.Queries, id int64, category string, create bool) error {
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("empty category name: %w", ledgererror.ErrInvalidCategory)
	}
	if create {
		if err := q.CreateCategory(ctx, category); err != nil {
			return err
		}
	} else {
		exists, err := q.CategoryExists(ctx, category)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("category %q: %w", category, ledgererror.ErrInvalidCategory)
		}
	}
	return q.AssignCategory(ctx, id, category)
}

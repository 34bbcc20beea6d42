// Package ingest writes source candidates into the ledger, deduplicating
// against previous syncs. One sync run is one atomic unit: either every
// non-duplicate candidate is inserted, or none are.
package ingest

import (
	"context"
	"fmt"
	"time"

	"tally/internal/categorizer"
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

// Summary reports the outcome of one sync run.
type Summary struct {
	Inserted      int
	Skipped       int
	AutoAllocated int
	AutoIgnored   int
	Errors        []*ledgererror.RowError
}

// Engine persists candidates for one source per run.
type Engine struct {
	store *store.Store
	rules *categorizer.Engine
}

// New creates an ingestion engine. The categorization engine runs its
// auto-rule pass over each inserted row before the run commits.
func New(s *store.Store, rules *categorizer.Engine) *Engine {
	return &Engine{store: s, rules: rules}
}

// Ingest normalizes, deduplicates and persists candidates for sourceName.
// since is the most recent existing transaction date for the source; the
// adapter should already have filtered on it, but the engine re-checks so an
// oversized fetch window never produces duplicates. Malformed candidates are
// recorded as row errors and excluded without aborting the run.
func (e *Engine) Ingest(ctx context.Context, sourceName string, candidates []models.Candidate, since *time.Time) (Summary, error) {
	var summary Summary

	err := e.store.WithTx(ctx, func(q *store.Queries) error {
		for i, c := range candidates {
			row := i + 1

			if c.Date.IsZero() {
				summary.Errors = append(summary.Errors, &ledgererror.RowError{
					Source: sourceName, Row: row, Field: "date", Value: "",
					Err: fmt.Errorf("missing date"),
				})
				continue
			}
			if c.Amount == 0 {
				summary.Errors = append(summary.Errors, &ledgererror.RowError{
					Source: sourceName, Row: row, Field: "amount", Value: "0",
					Err: fmt.Errorf("missing amount"),
				})
				continue
			}

			date := models.NormalizeDate(c.Date)
			norm := models.NormalizeDescription(c.Description)
			if norm == "" {
				summary.Errors = append(summary.Errors, &ledgererror.RowError{
					Source: sourceName, Row: row, Field: "description", Value: c.Description,
					Err: fmt.Errorf("missing description"),
				})
				continue
			}

			// The dedup check runs for every candidate regardless of the
			// adapter's since filter, so an oversized fetch window can only
			// ever produce skips.
			exists, err := q.TransactionExists(ctx, sourceName, date, norm, c.Amount)
			if err != nil {
				return err
			}
			if exists {
				if since != nil && !c.Date.After(*since) {
					log.WithFields(logrus.Fields{"source": sourceName, "date": date}).
						Debug("Duplicate inside already-synced window")
				}
				summary.Skipped++
				continue
			}

			id, err := q.InsertTransaction(ctx, date, c.Description, norm, c.Amount, sourceName)
			if err != nil {
				return err
			}
			summary.Inserted++

			outcome, err := e.rules.ApplyAutoRules(ctx, q, id, norm)
			if err != nil {
				return err
			}
			switch outcome {
			case categorizer.RuleAllocated:
				summary.AutoAllocated++
			case categorizer.RuleIgnored:
				summary.AutoIgnored++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	log.WithFields(logrus.Fields{
		"source":    sourceName,
		"inserted":  summary.Inserted,
		"skipped":   summary.Skipped,
		"allocated": summary.AutoAllocated,
		"ignored":   summary.AutoIgnored,
		"errors":    len(summary.Errors),
	}).Info("Sync run committed")

	return summary, nil
}

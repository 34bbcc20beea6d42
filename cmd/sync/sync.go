// Package sync handles the commands that pull transactions from sources
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tally/cmd/root"
	"tally/internal/categorizer"
	"tally/internal/config"
	"tally/internal/dateutils"
	"tally/internal/ingest"
	"tally/internal/ledgererror"
	"tally/internal/models"
	"tally/internal/sources"
	"tally/internal/store"
)

// Cmd represents the sync command
var Cmd = &cobra.Command{
	Use:   "sync [source]",
	Short: "Pull new transactions from a configured source",
	Long: `Pull transactions from a configured source into the ledger.
Already-known transactions are skipped, so syncing is always safe to repeat.
Newly ingested transactions that match a persisted rule are categorized or
ignored immediately; the rest wait in the review queue.

With --all, every configured source is fetched concurrently and each
source's result is committed separately.`,
	Args: cobra.MaximumNArgs(1),
	RunE: syncFunc,
}

var allSources bool

func init() {
	Cmd.Flags().BoolVar(&allSources, "all", false, "Sync every configured source")
}

func syncFunc(cmd *cobra.Command, args []string) error {
	if allSources == (len(args) == 1) {
		return fmt.Errorf("give exactly one source name, or --all")
	}

	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	engine := ingest.New(s, categorizer.New(s))

	if !allSources {
		sc, ok := root.Cfg.FindSource(args[0])
		if !ok {
			return fmt.Errorf("unknown source %q: not in configuration", args[0])
		}
		return syncOne(cmd.Context(), s, engine, sc)
	}

	if len(root.Cfg.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}
	return syncAll(cmd.Context(), s, engine, root.Cfg.Sources)
}

// fetchResult carries one source's fetch output to the commit phase.
type fetchResult struct {
	source  sources.Source
	since   *time.Time
	items   []models.Candidate
	rowErrs []*ledgererror.RowError
}

// syncAll fetches every source concurrently, then ingests the results one
// source at a time. Fetching is network-bound and safely parallel; commits
// stay serialized so each source remains a single ledger transaction.
func syncAll(ctx context.Context, s *store.Store, engine *ingest.Engine, configs []config.SourceConfig) error {
	results := make([]*fetchResult, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range configs {
		g.Go(func() error {
			src, err := sources.FromConfig(sc)
			if err != nil {
				return err
			}
			since, err := lastSynced(gctx, s, sc.Name)
			if err != nil {
				return err
			}
			items, rowErrs, err := src.Fetch(gctx, since)
			if err != nil {
				return err
			}
			results[i] = &fetchResult{source: src, since: since, items: items, rowErrs: rowErrs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		summary, err := engine.Ingest(ctx, res.source.Name(), res.items, res.since)
		if err != nil {
			return err
		}
		report(res.source.Name(), summary, res.rowErrs)
	}
	return nil
}

func syncOne(ctx context.Context, s *store.Store, engine *ingest.Engine, sc config.SourceConfig) error {
	src, err := sources.FromConfig(sc)
	if err != nil {
		return err
	}
	since, err := lastSynced(ctx, s, sc.Name)
	if err != nil {
		return err
	}

	items, rowErrs, err := src.Fetch(ctx, since)
	if err != nil {
		return err
	}
	summary, err := engine.Ingest(ctx, sc.Name, items, since)
	if err != nil {
		return err
	}
	report(sc.Name, summary, rowErrs)
	return nil
}

// lastSynced returns the date of the newest ledger transaction for the
// source, as the adapter's changes-since cursor. The start of that day is
// used: re-fetching the cursor day costs a few duplicate candidates, which
// ingestion drops, and guarantees no same-day transaction is missed.
func lastSynced(ctx context.Context, s *store.Store, sourceName string) (*time.Time, error) {
	date, ok, err := s.LatestTransactionDate(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(dateutils.LayoutISO, date)
	if err != nil {
		return nil, fmt.Errorf("corrupt date %q for source %s: %w", date, sourceName, err)
	}
	return &t, nil
}

func report(sourceName string, summary ingest.Summary, rowErrs []*ledgererror.RowError) {
	for _, re := range rowErrs {
		root.Log.WithField("source", sourceName).Warnf("Skipped row: %v", re)
	}
	for _, re := range summary.Errors {
		root.Log.WithField("source", sourceName).Warnf("Rejected candidate: %v", re)
	}
	root.Log.WithFields(map[string]interface{}{
		"source":         sourceName,
		"inserted":       summary.Inserted,
		"skipped":        summary.Skipped,
		"auto_allocated": summary.AutoAllocated,
		"auto_ignored":   summary.AutoIgnored,
		"rejected":       len(summary.Errors) + len(rowErrs),
	}).Info("Sync completed")
}

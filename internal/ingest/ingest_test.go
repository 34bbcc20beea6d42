package ingest_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/categorizer"
	"tally/internal/ingest"
	"tally/internal/models"
	"tally/internal/store"
)

func newEngine(t *testing.T) (*ingest.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return ingest.New(s, categorizer.New(s)), s
}

func day(d int) time.Time {
	return time.Date(2025, time.November, d, 10, 30, 0, 0, time.UTC)
}

func TestIngest_InsertsCandidates(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	summary, err := engine.Ingest(ctx, "bank", []models.Candidate{
		{Date: day(3), Description: "Tesco Store", Amount: -1234},
		{Date: day(4), Description: "Acme Corp", Amount: 250000},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.Errors)

	txns, err := s.ListTransactions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "2025-11-04", txns[0].Date)
	assert.Equal(t, models.StateUnreviewed, txns[0].State())
}

func TestIngest_Idempotent(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	candidates := []models.Candidate{
		{Date: day(3), Description: "Tesco Store", Amount: -1234},
		{Date: day(4), Description: "Acme Corp", Amount: 250000},
	}

	first, err := engine.Ingest(ctx, "bank", candidates, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := engine.Ingest(ctx, "bank", candidates, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Skipped)

	txns, err := s.ListTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestIngest_DedupNormalizesDescriptions(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, "bank", []models.Candidate{
		{Date: day(3), Description: "TESCO STORE ", Amount: -1234},
	}, nil)
	require.NoError(t, err)

	summary, err := engine.Ingest(ctx, "bank", []models.Candidate{
		{Date: day(3), Description: "Tesco Store", Amount: -1234},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)

	// The ledger keeps the raw description of the first arrival.
	txns, err := s.ListTransactions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "TESCO STORE ", txns[0].Description)
}

func TestIngest_DistinctSourcesNotDeduplicated(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	c := []models.Candidate{{Date: day(3), Description: "Tesco", Amount: -1234}}

	_, err := engine.Ingest(ctx, "bank", c, nil)
	require.NoError(t, err)
	summary, err := engine.Ingest(ctx, "other", c, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)

	txns, err := s.ListTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestIngest_MalformedCandidates(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	summary, err := engine.Ingest(ctx, "bank", []models.Candidate{
		{Description: "no date", Amount: -100},
		{Date: day(3), Description: "zero amount", Amount: 0},
		{Date: day(3), Description: "   ", Amount: -100},
		{Date: day(3), Description: "fine", Amount: -100},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Inserted)
	require.Len(t, summary.Errors, 3)
	assert.Equal(t, "date", summary.Errors[0].Field)
	assert.Equal(t, "amount", summary.Errors[1].Field)
	assert.Equal(t, "description", summary.Errors[2].Field)
	for _, re := range summary.Errors {
		assert.Equal(t, "bank", re.Source)
	}

	txns, err := s.ListTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestIngest_OversizedWindowWithSince(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, "bank", []models.Candidate{
		{Date: day(3), Description: "Tesco", Amount: -1234},
	}, nil)
	require.NoError(t, err)

	// The adapter re-fetched the cursor day; the duplicate is absorbed, but a
	// genuinely new transaction inside the window is still inserted.
	since := day(3)
	summary, err := engine.Ingest(ctx, "bank", []models.Candidate{
		{Date: day(3), Description: "Tesco", Amount: -1234},
		{Date: day(2), Description: "Late Posting Cafe", Amount: -800},
		{Date: day(5), Description: "Boots", Amount: -500},
	}, &since)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)
}

func TestIngest_AppliesAutoRules(t *testing.T) {
	engine, s := newEngine(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAllocateRule(ctx, "tesco store", "Groceries"))
	require.NoError(t, s.UpsertIgnoreRule(ctx, "pot transfer"))

	summary, err := engine.Ingest(ctx, "bank", []models.Candidate{
		{Date: day(3), Description: "Tesco Store", Amount: -1234},
		{Date: day(3), Description: "Pot Transfer", Amount: -5000},
		{Date: day(4), Description: "Mystery Shop", Amount: -900},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Inserted)
	assert.Equal(t, 1, summary.AutoAllocated)
	assert.Equal(t, 1, summary.AutoIgnored)

	txns, err := s.ListTransactions(ctx, 0)
	require.NoError(t, err)
	states := map[string]models.ReviewState{}
	for _, txn := range txns {
		states[txn.Description] = txn.State()
	}
	assert.Equal(t, models.StateCategorized, states["Tesco Store"])
	assert.Equal(t, models.StateIgnored, states["Pot Transfer"])
	assert.Equal(t, models.StateUnreviewed, states["Mystery Shop"])

	// The rule's category was created on demand.
	exists, err := s.CategoryExists(ctx, "Groceries")
	require.NoError(t, err)
	assert.True(t, exists)
}

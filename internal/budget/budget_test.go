package budget_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/budget"
	"tally/internal/dateutils"
	"tally/internal/ledgererror"
	"tally/internal/models"
	"tally/internal/money"
	"tally/internal/store"
)

const november = dateutils.Month("2025-11")

func newLedger(t *testing.T) (*budget.Ledger, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return budget.New(s), s
}

func addCategory(t *testing.T, s *store.Store, name string) {
	t.Helper()
	require.NoError(t, s.CreateCategory(context.Background(), name))
}

func spend(t *testing.T, s *store.Store, date, description, category string, amount int64) {
	t.Helper()
	ctx := context.Background()
	id, err := s.InsertTransaction(ctx, date, description,
		models.NormalizeDescription(description), money.Money(amount), "bank")
	require.NoError(t, err)
	require.NoError(t, s.AssignCategory(ctx, id, category))
}

// conservation returns TBB[m] + Σ allocations[m], the quantity transfers
// must leave unchanged.
func conservation(t *testing.T, s *store.Store, month dateutils.Month) money.Money {
	t.Helper()
	ctx := context.Background()
	tbb, _, err := s.GetTBB(ctx, month.String())
	require.NoError(t, err)
	allocations, err := s.GetAllocations(ctx, month.String())
	require.NoError(t, err)
	total := tbb
	for _, a := range allocations {
		total += a
	}
	return total
}

func TestSetTBB(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetTBB(ctx, november, 100000))
	require.NoError(t, ledger.SetTBB(ctx, november, 120000))

	tbb, ok, err := s.GetTBB(ctx, november.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, money.Money(120000), tbb)

	assert.Error(t, ledger.SetTBB(ctx, november, -1))
}

func TestAllocate(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()

	addCategory(t, s, "Groceries")
	require.NoError(t, ledger.SetTBB(ctx, november, 100000))

	remaining, err := ledger.Allocate(ctx, november, "Groceries", 40000)
	require.NoError(t, err)
	assert.Equal(t, money.Money(60000), remaining)

	// Allocation is absolute, not additive.
	remaining, err = ledger.Allocate(ctx, november, "Groceries", 30000)
	require.NoError(t, err)
	assert.Equal(t, money.Money(70000), remaining)
}

func TestAllocate_UnknownCategory(t *testing.T) {
	ledger, _ := newLedger(t)

	_, err := ledger.Allocate(context.Background(), november, "Nope", 1000)
	assert.ErrorIs(t, err, ledgererror.ErrInvalidCategory)
}

func TestAllocate_NegativeAmount(t *testing.T) {
	ledger, s := newLedger(t)
	addCategory(t, s, "Groceries")

	_, err := ledger.Allocate(context.Background(), november, "Groceries", -1)
	assert.Error(t, err)
}

func TestAllocate_OvercommitWarnsButSucceeds(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()

	addCategory(t, s, "Rent")
	require.NoError(t, ledger.SetTBB(ctx, november, 50000))

	remaining, err := ledger.Allocate(ctx, november, "Rent", 80000)
	require.NoError(t, err)
	assert.Equal(t, money.Money(-30000), remaining)
}

func TestTransfer_BetweenCategories(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()

	addCategory(t, s, "Groceries")
	addCategory(t, s, "Eating Out")
	require.NoError(t, ledger.SetTBB(ctx, november, 100000))
	_, err := ledger.Allocate(ctx, november, "Groceries", 40000)
	require.NoError(t, err)
	_, err = ledger.Allocate(ctx, november, "Eating Out", 10000)
	require.NoError(t, err)

	before := conservation(t, s, november)
	require.NoError(t, ledger.Transfer(ctx, november, "Groceries", "Eating Out", 5000))
	assert.Equal(t, before, conservation(t, s, november))

	allocations, err := s.GetAllocations(ctx, november.String())
	require.NoError(t, err)
	assert.Equal(t, money.Money(35000), allocations["Groceries"])
	assert.Equal(t, money.Money(15000), allocations["Eating Out"])
}

func TestTransfer_FromTBB(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()

	addCategory(t, s, "Groceries")
	require.NoError(t, ledger.SetTBB(ctx, november, 100000))

	before := conservation(t, s, november)
	require.NoError(t, ledger.Transfer(ctx, november, budget.TBBName, "Groceries", 40000))
	assert.Equal(t, before, conservation(t, s, november))

	tbb, _, err := s.GetTBB(ctx, november.String())
	require.NoError(t, err)
	assert.Equal(t, money.Money(60000), tbb)
}

func TestTransfer_TBBMayGoNegative(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()

	addCategory(t, s, "Groceries")
	require.NoError(t, ledger.SetTBB(ctx, november, 10000))

	require.NoError(t, ledger.Transfer(ctx, november, budget.TBBName, "Groceries", 30000))

	tbb, _, err := s.GetTBB(ctx, november.String())
	require.NoError(t, err)
	assert.Equal(t, money.Money(-20000), tbb)
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()

	addCategory(t, s, "Groceries")
	addCategory(t, s, "Eating Out")
	_, err := ledger.Allocate(ctx, november, "Groceries", 1000)
	require.NoError(t, err)

	err = ledger.Transfer(ctx, november, "Groceries", "Eating Out", 5000)
	assert.ErrorIs(t, err, ledgererror.ErrInsufficientFunds)

	// Nothing moved.
	allocations, err := s.GetAllocations(ctx, november.String())
	require.NoError(t, err)
	assert.Equal(t, money.Money(1000), allocations["Groceries"])
	assert.NotContains(t, allocations, "Eating Out")
}

func TestTransfer_Validation(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()
	addCategory(t, s, "Groceries")

	assert.Error(t, ledger.Transfer(ctx, november, "Groceries", "Groceries", 1000))
	assert.Error(t, ledger.Transfer(ctx, november, budget.TBBName, "Groceries", 0))
	assert.Error(t, ledger.Transfer(ctx, november, budget.TBBName, "Groceries", -100))

	err := ledger.Transfer(ctx, november, budget.TBBName, "Nope", 1000)
	assert.ErrorIs(t, err, ledgererror.ErrInvalidCategory)
}

func TestCopyFrom(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()
	december := dateutils.Month("2025-12")

	addCategory(t, s, "Groceries")
	_, err := ledger.Allocate(ctx, november, "Groceries", 40000)
	require.NoError(t, err)
	spend(t, s, "2025-11-10", "Tesco", "Groceries", -18000)

	rollovers, err := ledger.CopyFrom(ctx, november, december)
	require.NoError(t, err)
	require.Len(t, rollovers, 1)
	assert.Equal(t, budget.Rollover{
		Category:  "Groceries",
		Allocated: 40000,
		Spent:     18000,
		Carried:   22000,
	}, rollovers[0])

	// The carry lands in the target month's allocations.
	carried, ok, err := s.GetAllocation(ctx, december.String(), "Groceries")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, money.Money(22000), carried)

	// The source month is untouched.
	source, _, err := s.GetAllocation(ctx, november.String(), "Groceries")
	require.NoError(t, err)
	assert.Equal(t, money.Money(40000), source)
}

func TestCopyFrom_OverspentGoesNegative(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()
	december := dateutils.Month("2025-12")

	addCategory(t, s, "Groceries")
	_, err := ledger.Allocate(ctx, november, "Groceries", 10000)
	require.NoError(t, err)
	spend(t, s, "2025-11-10", "Tesco", "Groceries", -15000)

	rollovers, err := ledger.CopyFrom(ctx, november, december)
	require.NoError(t, err)
	require.Len(t, rollovers, 1)
	assert.Equal(t, money.Money(-5000), rollovers[0].Carried)
}

func TestCopyFrom_IncomeDoesNotOffsetSpending(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()
	december := dateutils.Month("2025-12")

	addCategory(t, s, "Groceries")
	_, err := ledger.Allocate(ctx, november, "Groceries", 40000)
	require.NoError(t, err)
	spend(t, s, "2025-11-10", "Tesco", "Groceries", -18000)
	// A refund makes the net smaller, shrinking the spent figure.
	spend(t, s, "2025-11-12", "Tesco Refund", "Groceries", 3000)

	rollovers, err := ledger.CopyFrom(ctx, november, december)
	require.NoError(t, err)
	assert.Equal(t, money.Money(15000), rollovers[0].Spent)
	assert.Equal(t, money.Money(25000), rollovers[0].Carried)
}

func TestCopyFrom_EmptySourceMonth(t *testing.T) {
	ledger, _ := newLedger(t)

	_, err := ledger.CopyFrom(context.Background(), november, dateutils.Month("2025-12"))
	assert.ErrorIs(t, err, ledgererror.ErrNotFound)
}

func TestStatus(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()

	addCategory(t, s, "Groceries")
	addCategory(t, s, "Rent")
	require.NoError(t, ledger.SetTBB(ctx, november, 150000))
	_, err := ledger.Allocate(ctx, november, "Groceries", 40000)
	require.NoError(t, err)
	_, err = ledger.Allocate(ctx, november, "Rent", 80000)
	require.NoError(t, err)
	spend(t, s, "2025-11-10", "Tesco", "Groceries", -18000)
	// Outside the month, must not count.
	spend(t, s, "2025-10-10", "Tesco", "Groceries", -9999)

	st, err := ledger.Status(ctx, november)
	require.NoError(t, err)
	assert.Equal(t, money.Money(150000), st.TBB)
	assert.Equal(t, money.Money(120000), st.TotalAllocated)
	assert.Equal(t, money.Money(30000), st.Remaining)
	require.Len(t, st.Categories, 2)
	assert.Equal(t, budget.CategoryStatus{
		Category: "Groceries", Allocated: 40000, Spent: 18000, Available: 22000,
	}, st.Categories[0])
	assert.Equal(t, budget.CategoryStatus{
		Category: "Rent", Allocated: 80000, Spent: 0, Available: 80000,
	}, st.Categories[1])
}

func TestSpentAndIncome(t *testing.T) {
	ledger, s := newLedger(t)
	ctx := context.Background()

	addCategory(t, s, "Salary")
	spend(t, s, "2025-11-25", "Acme Corp", "Salary", 250000)

	income, err := ledger.Income(ctx, november, "Salary")
	require.NoError(t, err)
	assert.Equal(t, money.Money(250000), income)

	spent, err := ledger.Spent(ctx, november, "Salary")
	require.NoError(t, err)
	assert.Equal(t, money.Money(0), spent)
}

// Package report turns reviewed transactions and budget allocations into
// category-level spend and income summaries. Only reviewed, non-ignored
// transactions are counted; unreviewed rows are never silently included.
package report

import (
	"context"
	"sort"

	"tally/internal/dateutils"
	"tally/internal/models"
	"tally/internal/money"
	"tally/internal/store"
)

// SortBy selects the row ordering of a report.
type SortBy string

const (
	SortByValue SortBy = "value" // descending absolute amount
	SortByAlpha SortBy = "alpha" // category name ascending
)

// Period is either one calendar month or all time.
type Period struct {
	Month   dateutils.Month
	AllTime bool
}

// MonthPeriod restricts a report to one month.
func MonthPeriod(m dateutils.Month) Period { return Period{Month: m} }

// AllTime covers the entire ledger.
func AllTime() Period { return Period{AllTime: true} }

func (p Period) bounds() (since, until string) {
	if p.AllTime {
		return "", ""
	}
	since, until, _ = p.Month.Range()
	return since, until
}

// Label returns the human-readable period name.
func (p Period) Label() string {
	if p.AllTime {
		return "All time"
	}
	return p.Month.Label()
}

// ExpenseRow is one category's spending against its allocation.
type ExpenseRow struct {
	Category   string
	Amount     money.Money // negative
	Allocated  money.Money
	HasBudget  bool
	Percentage float64 // |Amount| / Allocated × 100, valid when HasBudget
}

// IncomeRow is one category's income.
type IncomeRow struct {
	Category string
	Amount   money.Money // positive
}

// Report is the aggregated view of a period.
type Report struct {
	Period         Period
	Expenses       []ExpenseRow
	Income         []IncomeRow
	TotalExpense   money.Money // negative
	TotalIncome    money.Money
	TotalAllocated money.Money // across expense categories that have budgets
	Net            money.Money
}

// Aggregator produces read-only summaries over the ledger.
type Aggregator struct {
	store *store.Store
}

func New(s *store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Report aggregates per-category totals for the period. Expense rows carry
// the matching allocation (summed across months for the all-time period) and
// a budget-vs-actual percentage where an allocation exists.
func (a *Aggregator) Report(ctx context.Context, period Period, sortBy SortBy) (Report, error) {
	since, until := period.bounds()
	breakdown, err := a.store.CategoryBreakdown(ctx, since, until)
	if err != nil {
		return Report{}, err
	}

	var allocations map[string]money.Money
	if period.AllTime {
		allocations, err = a.store.SumAllocations(ctx)
	} else {
		allocations, err = a.store.GetAllocations(ctx, period.Month.String())
	}
	if err != nil {
		return Report{}, err
	}

	r := Report{Period: period}
	for category, net := range breakdown {
		if net < 0 {
			row := ExpenseRow{Category: category, Amount: net}
			if allocated, ok := allocations[category]; ok {
				row.Allocated = allocated
				row.HasBudget = true
				if allocated > 0 {
					row.Percentage = float64(net.Abs()) / float64(allocated) * 100
				}
				r.TotalAllocated += allocated
			}
			r.Expenses = append(r.Expenses, row)
			r.TotalExpense += net
		} else if net > 0 {
			r.Income = append(r.Income, IncomeRow{Category: category, Amount: net})
			r.TotalIncome += net
		}
		r.Net += net
	}

	sortExpenses(r.Expenses, sortBy)
	sortIncome(r.Income, sortBy)
	return r, nil
}

func sortExpenses(rows []ExpenseRow, sortBy SortBy) {
	sort.Slice(rows, func(i, j int) bool {
		if sortBy == SortByAlpha {
			return rows[i].Category < rows[j].Category
		}
		ai, aj := rows[i].Amount.Abs(), rows[j].Amount.Abs()
		if ai != aj {
			return ai > aj
		}
		return rows[i].Category < rows[j].Category
	})
}

func sortIncome(rows []IncomeRow, sortBy SortBy) {
	sort.Slice(rows, func(i, j int) bool {
		if sortBy == SortByAlpha {
			return rows[i].Category < rows[j].Category
		}
		if rows[i].Amount != rows[j].Amount {
			return rows[i].Amount > rows[j].Amount
		}
		return rows[i].Category < rows[j].Category
	})
}

// UnreviewedCategory is the pseudo-category accepted by Inspect for listing
// transactions still awaiting review.
const UnreviewedCategory = "unreviewed"

// Inspect lists a single category's transactions for the period, newest
// first. The "unreviewed" pseudo-category lists pending transactions.
func (a *Aggregator) Inspect(ctx context.Context, category string, period Period) ([]models.Transaction, error) {
	since, until := period.bounds()
	if category == UnreviewedCategory {
		return a.store.ListUnreviewedRange(ctx, since, until)
	}
	return a.store.ListByCategory(ctx, category, since, until)
}

// List returns ledger transactions newest first; limit <= 0 means all.
func (a *Aggregator) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	return a.store.ListTransactions(ctx, limit)
}

// BarLength scales an amount into a histogram bar of at most width runes.
func BarLength(amount, max money.Money, width int) int {
	if max <= 0 || width <= 0 {
		return 0
	}
	n := int(int64(amount.Abs()) * int64(width) / int64(max.Abs()))
	if n > width {
		return width
	}
	return n
}

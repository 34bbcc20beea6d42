// Package budget owns the zero-based budget ledger: month-scoped
// To-Be-Budgeted amounts and per-(month, category) allocations.
//
// TBB and allocations are stored independently; "remaining TBB" is always
// derived as tbb minus the sum of allocations. TBB plus the sum of
// allocations for a month is invariant under transfer, which is what the transfer
// and rollover operations preserve.
package budget

import (
	"context"
	"fmt"
	"sort"

	"tally/internal/config"
	"tally/internal/dateutils"
	"tally/internal/ledgererror"
	"tally/internal/money"
	"tally/internal/store"

	"github.com/sirupsen/logrus"
)

// TBBName is the pseudo-category addressing the month's unallocated funds
// in transfer operations.
const TBBName = "TBB"

var log = config.Logger

// SetLogger allows setting a configured logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Ledger exposes the budget operations over the shared store.
type Ledger struct {
	store *store.Store
}

func New(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// CategoryStatus is the budget position of one category in one month.
type CategoryStatus struct {
	Category  string
	Allocated money.Money
	Spent     money.Money // absolute expense total
	Available money.Money // Allocated − Spent
}

// Status is the full budget position for a month.
type Status struct {
	Month          dateutils.Month
	TBB            money.Money
	TotalAllocated money.Money
	Remaining      money.Money // TBB − TotalAllocated, negative when overcommitted
	Categories     []CategoryStatus
}

// SetTBB upserts the To-Be-Budgeted amount for a month. This is the only
// operation that injects external funds into the budget.
func (l *Ledger) SetTBB(ctx context.Context, month dateutils.Month, amount money.Money) error {
	if amount < 0 {
		return fmt.Errorf("tbb amount must not be negative")
	}
	return l.store.WithTx(ctx, func(q *store.Queries) error {
		return q.SetTBB(ctx, month.String(), amount)
	})
}

// Allocate sets (not adds) the allocation for one category and returns the
// derived remaining TBB so overcommitment is visible immediately. A negative
// remainder is reported, never rejected: zero-based budgeting treats it as a
// signal to move funds, not as an error.
func (l *Ledger) Allocate(ctx context.Context, month dateutils.Month, category string, amount money.Money) (money.Money, error) {
	if amount < 0 {
		return 0, fmt.Errorf("allocation amount must not be negative")
	}

	var remaining money.Money
	err := l.store.WithTx(ctx, func(q *store.Queries) error {
		exists, err := q.CategoryExists(ctx, category)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("category %q: %w", category, ledgererror.ErrInvalidCategory)
		}

		if err := q.SetAllocation(ctx, month.String(), category, amount); err != nil {
			return err
		}

		remaining, err = derivedRemaining(ctx, q, month)
		return err
	})
	if err != nil {
		return 0, err
	}

	if remaining < 0 {
		log.WithFields(logrus.Fields{"month": month, "remaining": remaining.String()}).
			Warn("Budget overcommitted: remaining TBB is negative")
	}
	return remaining, nil
}

// Transfer atomically moves amount between two allocations in a month.
// Either side may be the TBB pseudo-category, in which case the month's
// stored TBB is adjusted directly; TBB is the only side allowed to go
// negative. A transfer redistributes funds, it never creates or destroys
// them: TBB[m] + Σ allocations[m] is unchanged.
func (l *Ledger) Transfer(ctx context.Context, month dateutils.Month, from, to string, amount money.Money) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}
	if from == to {
		return fmt.Errorf("transfer source and target are the same")
	}

	return l.store.WithTx(ctx, func(q *store.Queries) error {
		fromBal, err := l.sideBalance(ctx, q, month, from)
		if err != nil {
			return err
		}
		toBal, err := l.sideBalance(ctx, q, month, to)
		if err != nil {
			return err
		}

		if from != TBBName && fromBal < amount {
			return fmt.Errorf("%s has %s allocated: %w", from, fromBal, ledgererror.ErrInsufficientFunds)
		}
		if from == TBBName && fromBal-amount < 0 {
			// Permitted: TBB may run negative, but say so.
			log.WithFields(logrus.Fields{"month": month, "tbb": (fromBal - amount).String()}).
				Warn("Transfer drives TBB negative")
		}

		if err := l.setSide(ctx, q, month, from, fromBal-amount); err != nil {
			return err
		}
		return l.setSide(ctx, q, month, to, toBal+amount)
	})
}

// sideBalance reads one side of a transfer: a category allocation, or the
// stored TBB for the pseudo-category.
func (l *Ledger) sideBalance(ctx context.Context, q *store.Queries, month dateutils.Month, name string) (money.Money, error) {
	if name == TBBName {
		tbb, _, err := q.GetTBB(ctx, month.String())
		return tbb, err
	}
	exists, err := q.CategoryExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("category %q: %w", name, ledgererror.ErrInvalidCategory)
	}
	alloc, _, err := q.GetAllocation(ctx, month.String(), name)
	return alloc, err
}

func (l *Ledger) setSide(ctx context.Context, q *store.Queries, month dateutils.Month, name string, amount money.Money) error {
	if name == TBBName {
		return q.SetTBB(ctx, month.String(), amount)
	}
	return q.SetAllocation(ctx, month.String(), name, amount)
}

// Rollover is the carry computed for one category by CopyFrom.
type Rollover struct {
	Category  string
	Allocated money.Money
	Spent     money.Money
	Carried   money.Money
}

// CopyFrom seeds targetMonth's allocations from sourceMonth: each category
// allocated in the source month starts the target month with its unspent
// balance (allocated − spent, which may be negative after overspending).
// Historical months are never rewritten.
func (l *Ledger) CopyFrom(ctx context.Context, sourceMonth, targetMonth dateutils.Month) ([]Rollover, error) {
	var rollovers []Rollover

	err := l.store.WithTx(ctx, func(q *store.Queries) error {
		allocations, err := q.GetAllocations(ctx, sourceMonth.String())
		if err != nil {
			return err
		}
		if len(allocations) == 0 {
			return fmt.Errorf("no budget for %s: %w", sourceMonth, ledgererror.ErrNotFound)
		}

		since, until, _ := sourceMonth.Range()
		breakdown, err := q.CategoryBreakdown(ctx, since, until)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(allocations))
		for name := range allocations {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			allocated := allocations[name]
			spent := expensePart(breakdown[name])
			carried := allocated - spent

			if err := q.SetAllocation(ctx, targetMonth.String(), name, carried); err != nil {
				return err
			}
			rollovers = append(rollovers, Rollover{
				Category:  name,
				Allocated: allocated,
				Spent:     spent,
				Carried:   carried,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"from": sourceMonth, "to": targetMonth, "categories": len(rollovers)}).
		Info("Copied budget with rollover")
	return rollovers, nil
}

// Status reports TBB, the allocation total, the derived remainder and the
// per-category position for a month.
func (l *Ledger) Status(ctx context.Context, month dateutils.Month) (Status, error) {
	tbb, _, err := l.store.GetTBB(ctx, month.String())
	if err != nil {
		return Status{}, err
	}
	allocations, err := l.store.GetAllocations(ctx, month.String())
	if err != nil {
		return Status{}, err
	}
	since, until, _ := month.Range()
	breakdown, err := l.store.CategoryBreakdown(ctx, since, until)
	if err != nil {
		return Status{}, err
	}

	status := Status{Month: month, TBB: tbb}
	names := make([]string, 0, len(allocations))
	for name := range allocations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		allocated := allocations[name]
		spent := expensePart(breakdown[name])
		status.TotalAllocated += allocated
		status.Categories = append(status.Categories, CategoryStatus{
			Category:  name,
			Allocated: allocated,
			Spent:     spent,
			Available: allocated - spent,
		})
	}
	status.Remaining = tbb - status.TotalAllocated
	return status, nil
}

// Spent returns the absolute expense total for a category in a month,
// over reviewed, non-ignored transactions only.
func (l *Ledger) Spent(ctx context.Context, month dateutils.Month, category string) (money.Money, error) {
	since, until, _ := month.Range()
	breakdown, err := l.store.CategoryBreakdown(ctx, since, until)
	if err != nil {
		return 0, err
	}
	return expensePart(breakdown[category]), nil
}

// Income returns the income total for a category in a month.
func (l *Ledger) Income(ctx context.Context, month dateutils.Month, category string) (money.Money, error) {
	since, until, _ := month.Range()
	breakdown, err := l.store.CategoryBreakdown(ctx, since, until)
	if err != nil {
		return 0, err
	}
	if net := breakdown[category]; net > 0 {
		return net, nil
	}
	return 0, nil
}

func derivedRemaining(ctx context.Context, q *store.Queries, month dateutils.Month) (money.Money, error) {
	tbb, _, err := q.GetTBB(ctx, month.String())
	if err != nil {
		return 0, err
	}
	allocations, err := q.GetAllocations(ctx, month.String())
	if err != nil {
		return 0, err
	}
	remaining := tbb
	for _, a := range allocations {
		remaining -= a
	}
	return remaining, nil
}

// expensePart turns a net category total into an absolute expense amount.
func expensePart(net money.Money) money.Money {
	if net < 0 {
		return -net
	}
	return 0
}

// Package models defines the core data structures shared across the ledger:
// transactions, ingestion candidates, review decisions and their invariants.
package models

import (
	"strings"
	"time"

	"tally/internal/money"
)

// ReviewState describes which of the three terminal review states a
// transaction is in. A transaction is always in exactly one of them.
type ReviewState string

const (
	StateUnreviewed  ReviewState = "unreviewed"
	StateCategorized ReviewState = "categorized"
	StateIgnored     ReviewState = "ignored"
)

// Transaction is a persisted ledger entry. Date, description and amount are
// immutable after ingestion; category, reviewed and ignored are mutated only
// through review decisions and auto-rules.
type Transaction struct {
	ID          int64
	Date        string // YYYY-MM-DD
	Description string
	Amount      money.Money // signed minor units, negative = expense
	Category    string      // empty when unreviewed or ignored
	Reviewed    bool
	Ignored     bool
	Source      string
}

// State returns the review state of the transaction.
func (t Transaction) State() ReviewState {
	switch {
	case t.Ignored:
		return StateIgnored
	case t.Reviewed:
		return StateCategorized
	default:
		return StateUnreviewed
	}
}

// Candidate is a transaction produced by a source adapter, not yet
// normalized or checked against the ledger.
type Candidate struct {
	Date        time.Time
	Description string
	Amount      money.Money
}

// DecisionKind enumerates the possible outcomes of reviewing a transaction.
type DecisionKind int

const (
	DecideAssign DecisionKind = iota
	DecideCreateCategoryAndAssign
	DecideSkip
	DecideIgnore
	DecidePersistAutoAllocate
	DecidePersistAutoIgnore
)

// Decision is a single review verdict for one transaction. Category is
// meaningful for the assign and auto-allocate kinds only.
type Decision struct {
	Kind     DecisionKind
	Category string
}

// NormalizeDescription lower-cases a description and collapses all runs of
// whitespace into single spaces. Dedup keys and rule keys use this form so
// "TESCO STORE " and "Tesco Store" refer to the same merchant.
func NormalizeDescription(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}

// NormalizeDate truncates a timestamp to its calendar day in ISO form.
// Financial statements are day-granular; time-of-day is discarded.
func NormalizeDate(t time.Time) string {
	return t.Format("2006-01-02")
}

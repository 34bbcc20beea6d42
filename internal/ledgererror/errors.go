// Package ledgererror defines the error taxonomy shared by the ingestion,
// review, budget and reporting operations. Row-level errors are recoverable
// and aggregated into run summaries; everything else aborts the current
// operation's transaction and surfaces unmodified to the caller.
package ledgererror

import (
	"errors"
	"fmt"
)

// Sentinel conditions checked with errors.Is by callers.
var (
	// ErrNotFound indicates an operation referenced a transaction or month
	// that does not exist. Nothing was mutated.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCategory indicates an operation referenced a category that
	// does not exist and was not requested to be created.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInsufficientFunds indicates a transfer would drive a non-TBB
	// allocation negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// SourceError represents a network or authentication failure reaching a
// provider. It is fatal to that sync run but never corrupts the ledger.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// RowError represents one malformed input record. The record is skipped,
// the run continues, and the error is reported in the run summary.
type RowError struct {
	Source string
	Row    int // 1-based position within the source's output
	Field  string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: bad %s %q: %v", e.Source, e.Row, e.Field, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// StoreError represents an underlying persistence failure. It is fatal:
// the operation's transaction rolls back and the process exits non-zero.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

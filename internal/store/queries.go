package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tally/internal/models"
	"tally/internal/money"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every query can run
// standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles all SQL against one DBTX.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const txnColumns = "id, date, description, amount, category, reviewed, ignored, source"

func scanTransaction(row interface{ Scan(...any) error }) (models.Transaction, error) {
	var t models.Transaction
	var category sql.NullString
	var amount int64
	err := row.Scan(&t.ID, &t.Date, &t.Description, &amount, &category, &t.Reviewed, &t.Ignored, &t.Source)
	if err != nil {
		return models.Transaction{}, err
	}
	t.Amount = money.Money(amount)
	t.Category = category.String
	return t, nil
}

// InsertTransaction creates a new unreviewed ledger row and returns its id.
func (q *Queries) InsertTransaction(ctx context.Context, date, description, norm string, amount money.Money, source string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (date, description, description_norm, amount, source)
		 VALUES (?, ?, ?, ?, ?)`,
		date, description, norm, int64(amount), source)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert transaction id: %w", err)
	}
	return id, nil
}

// TransactionExists checks the dedup key.
func (q *Queries) TransactionExists(ctx context.Context, source, date, norm string, amount money.Money) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		`SELECT 1 FROM transactions
		 WHERE source = ? AND date = ? AND description_norm = ? AND amount = ?`,
		source, date, norm, int64(amount)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return true, nil
}

// GetTransaction fetches one transaction by id.
func (q *Queries) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+txnColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, err
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// NormalizedDescription returns the stored dedup/rule key for a transaction.
func (q *Queries) NormalizedDescription(ctx context.Context, id int64) (string, error) {
	var norm string
	err := q.db.QueryRowContext(ctx,
		"SELECT description_norm FROM transactions WHERE id = ?", id).Scan(&norm)
	if err != nil {
		return "", err
	}
	return norm, nil
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransactions returns transactions newest first. limit <= 0 returns all.
func (q *Queries) ListTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	query := "SELECT " + txnColumns + " FROM transactions ORDER BY date DESC, id DESC"
	if limit > 0 {
		return q.listTransactions(ctx, query+" LIMIT ?", limit)
	}
	return q.listTransactions(ctx, query)
}

// ListUnreviewed returns all transactions awaiting review.
func (q *Queries) ListUnreviewed(ctx context.Context, oldestFirst bool) ([]models.Transaction, error) {
	order := "DESC"
	if oldestFirst {
		order = "ASC"
	}
	return q.listTransactions(ctx,
		"SELECT "+txnColumns+" FROM transactions WHERE reviewed = 0 ORDER BY date "+order+", id "+order)
}

// ListByCategory returns reviewed, non-ignored transactions for a category,
// optionally restricted to [since, until). Empty bounds mean all time.
func (q *Queries) ListByCategory(ctx context.Context, category, since, until string) ([]models.Transaction, error) {
	query := "SELECT " + txnColumns + ` FROM transactions
		WHERE category = ? AND reviewed = 1 AND ignored = 0`
	args := []any{category}
	if since != "" {
		query += " AND date >= ?"
		args = append(args, since)
	}
	if until != "" {
		query += " AND date < ?"
		args = append(args, until)
	}
	return q.listTransactions(ctx, query+" ORDER BY date DESC, id DESC", args...)
}

// ListUnreviewedRange is ListByCategory for the "unreviewed" pseudo-category.
func (q *Queries) ListUnreviewedRange(ctx context.Context, since, until string) ([]models.Transaction, error) {
	query := "SELECT " + txnColumns + " FROM transactions WHERE reviewed = 0"
	var args []any
	if since != "" {
		query += " AND date >= ?"
		args = append(args, since)
	}
	if until != "" {
		query += " AND date < ?"
		args = append(args, until)
	}
	return q.listTransactions(ctx, query+" ORDER BY date DESC, id DESC", args...)
}

// LatestTransactionDate returns the most recent transaction date for a source.
func (q *Queries) LatestTransactionDate(ctx context.Context, source string) (string, bool, error) {
	var date string
	err := q.db.QueryRowContext(ctx,
		"SELECT date FROM transactions WHERE source = ? ORDER BY date DESC LIMIT 1",
		source).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("latest transaction date: %w", err)
	}
	return date, true, nil
}

// AssignCategory marks a transaction categorized.
func (q *Queries) AssignCategory(ctx context.Context, id int64, category string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET category = ?, reviewed = 1, ignored = 0, reviewed_at = ?
		 WHERE id = ?`,
		category, nowUTC(), id)
	if err != nil {
		return fmt.Errorf("assign category: %w", err)
	}
	return nil
}

// MarkIgnored marks a transaction ignored: reviewed, no category.
func (q *Queries) MarkIgnored(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET category = NULL, reviewed = 1, ignored = 1, reviewed_at = ?
		 WHERE id = ?`,
		nowUTC(), id)
	if err != nil {
		return fmt.Errorf("mark ignored: %w", err)
	}
	return nil
}

// AssignByDescription categorizes every still-unreviewed transaction whose
// normalized description matches, returning how many were resolved.
func (q *Queries) AssignByDescription(ctx context.Context, norm, category string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET category = ?, reviewed = 1, ignored = 0, reviewed_at = ?
		 WHERE description_norm = ? AND reviewed = 0`,
		category, nowUTC(), norm)
	if err != nil {
		return 0, fmt.Errorf("assign by description: %w", err)
	}
	return res.RowsAffected()
}

// IgnoreByDescription ignores every still-unreviewed transaction whose
// normalized description matches.
func (q *Queries) IgnoreByDescription(ctx context.Context, norm string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET category = NULL, reviewed = 1, ignored = 1, reviewed_at = ?
		 WHERE description_norm = ? AND reviewed = 0`,
		nowUTC(), norm)
	if err != nil {
		return 0, fmt.Errorf("ignore by description: %w", err)
	}
	return res.RowsAffected()
}

// SuggestCategory returns the most frequent category among categorized
// transactions sharing the normalized description. Ties break on the most
// recent assignment.
func (q *Queries) SuggestCategory(ctx context.Context, norm string) (string, bool, error) {
	var category string
	err := q.db.QueryRowContext(ctx,
		`SELECT category FROM transactions
		 WHERE description_norm = ? AND reviewed = 1 AND ignored = 0 AND category IS NOT NULL
		 GROUP BY category
		 ORDER BY COUNT(*) DESC, MAX(reviewed_at) DESC, category ASC
		 LIMIT 1`,
		norm).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("suggest category: %w", err)
	}
	return category, true, nil
}

// CategoryBreakdown sums reviewed, non-ignored amounts per category over an
// optional [since, until) window. Negative totals are net expenses.
func (q *Queries) CategoryBreakdown(ctx context.Context, since, until string) (map[string]money.Money, error) {
	query := `SELECT category, SUM(amount) FROM transactions
		WHERE reviewed = 1 AND ignored = 0 AND category IS NOT NULL`
	var args []any
	if since != "" {
		query += " AND date >= ?"
		args = append(args, since)
	}
	if until != "" {
		query += " AND date < ?"
		args = append(args, until)
	}
	query += " GROUP BY category"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	out := make(map[string]money.Money)
	for rows.Next() {
		var category string
		var total int64
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		out[category] = money.Money(total)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category if it does not already exist.
func (q *Queries) CreateCategory(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty category name")
	}
	_, err := q.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO categories (name) VALUES (?)", name)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// CategoryExists reports whether a category with this exact name exists.
func (q *Queries) CategoryExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		"SELECT 1 FROM categories WHERE name = ?", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return true, nil
}

// ListCategories returns all category names sorted alphabetically.
func (q *Queries) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT name FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetAllocateRule looks up the auto-allocate rule for a normalized description.
func (q *Queries) GetAllocateRule(ctx context.Context, norm string) (string, bool, error) {
	var category string
	err := q.db.QueryRowContext(ctx,
		"SELECT category FROM auto_allocate_rules WHERE description = ?", norm).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get allocate rule: %w", err)
	}
	return category, true, nil
}

// HasIgnoreRule reports whether an auto-ignore rule covers this description.
func (q *Queries) HasIgnoreRule(ctx context.Context, norm string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		"SELECT 1 FROM auto_ignore_rules WHERE description = ?", norm).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get ignore rule: %w", err)
	}
	return true, nil
}

// UpsertAllocateRule persists a description → category rule.
func (q *Queries) UpsertAllocateRule(ctx context.Context, norm, category string) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO auto_allocate_rules (description, category) VALUES (?, ?)",
		norm, category)
	if err != nil {
		return fmt.Errorf("upsert allocate rule: %w", err)
	}
	return nil
}

// UpsertIgnoreRule persists an auto-ignore rule for a description.
func (q *Queries) UpsertIgnoreRule(ctx context.Context, norm string) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO auto_ignore_rules (description) VALUES (?)", norm)
	if err != nil {
		return fmt.Errorf("upsert ignore rule: %w", err)
	}
	return nil
}

// GetTBB returns the To-Be-Budgeted amount for a month.
func (q *Queries) GetTBB(ctx context.Context, month string) (money.Money, bool, error) {
	var amount int64
	err := q.db.QueryRowContext(ctx,
		"SELECT amount FROM monthly_tbb WHERE month = ?", month).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get tbb: %w", err)
	}
	return money.Money(amount), true, nil
}

// SetTBB upserts the To-Be-Budgeted amount for a month.
func (q *Queries) SetTBB(ctx context.Context, month string, amount money.Money) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO monthly_tbb (month, amount) VALUES (?, ?)",
		month, int64(amount))
	if err != nil {
		return fmt.Errorf("set tbb: %w", err)
	}
	return nil
}

// GetAllocations returns all category allocations for a month.
func (q *Queries) GetAllocations(ctx context.Context, month string) (map[string]money.Money, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT category, amount FROM budgets WHERE month = ?", month)
	if err != nil {
		return nil, fmt.Errorf("get allocations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]money.Money)
	for rows.Next() {
		var category string
		var amount int64
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out[category] = money.Money(amount)
	}
	return out, rows.Err()
}

// GetAllocation returns one (month, category) allocation.
func (q *Queries) GetAllocation(ctx context.Context, month, category string) (money.Money, bool, error) {
	var amount int64
	err := q.db.QueryRowContext(ctx,
		"SELECT amount FROM budgets WHERE month = ? AND category = ?",
		month, category).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get allocation: %w", err)
	}
	return money.Money(amount), true, nil
}

// SetAllocation upserts one (month, category) allocation.
func (q *Queries) SetAllocation(ctx context.Context, month, category string, amount money.Money) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO budgets (month, category, amount) VALUES (?, ?, ?)",
		month, category, int64(amount))
	if err != nil {
		return fmt.Errorf("set allocation: %w", err)
	}
	return nil
}

// SumAllocations returns the total allocated across every month, per category.
func (q *Queries) SumAllocations(ctx context.Context) (map[string]money.Money, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT category, SUM(amount) FROM budgets GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("sum allocations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]money.Money)
	for rows.Next() {
		var category string
		var total int64
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("scan allocation sum: %w", err)
		}
		out[category] = money.Money(total)
	}
	return out, rows.Err()
}

func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

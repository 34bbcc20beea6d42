// Package store is the SQLite persistence layer for the ledger. All mutating
// operations run inside immediate transactions so concurrent invocations
// racing against the same database file serialize on the store, not on any
// in-process lock.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"tally/internal/ledgererror"

	_ "modernc.org/sqlite"
)

// Store owns the database handle. Read queries are available directly;
// writes go through WithTx.
type Store struct {
	db *sql.DB
	*Queries
}

// Open opens (creating if needed) the database at dbPath and runs migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, &ledgererror.StoreError{Op: "create db directory", Err: err}
	}

	// _txlock=immediate makes every write transaction take the write lock up
	// front, so two racing invocations serialize instead of deadlocking.
	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &ledgererror.StoreError{Op: "open database", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &ledgererror.StoreError{Op: "ping database", Err: err}
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, &ledgererror.StoreError{Op: "migrate", Err: err}
	}

	return &Store{db: db, Queries: New(db)}, nil
}

// Exists reports whether a database file is already present at dbPath.
func Exists(dbPath string) bool {
	if u, err := url.Parse(dbPath); err == nil && u.Scheme == "file" {
		dbPath = u.Opaque
	}
	_, err := os.Stat(dbPath)
	return err == nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WithTx runs fn inside a single serializable transaction. If fn returns an
// error the transaction rolls back and no partial state is observable.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledgererror.StoreError{Op: "begin transaction", Err: err}
	}

	if err := fn(New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return &ledgererror.StoreError{Op: "commit transaction", Err: err}
	}
	return nil
}

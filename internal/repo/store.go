// Package repo is the Postgres implementation of the audit store.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/crucial707/asset-audit/internal/audit"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so every repo works in and out of a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ audit.Store = (*Store)(nil)
	_ audit.Tx    = (*txRepos)(nil)
)

// Store wires the repos over a connection pool and opens transactions for the audit service.
type Store struct {
	db *sql.DB
	*AssetRepo
	*AuditRepo
	*ItemRepo
	*FindingRepo
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:          db,
		AssetRepo:   NewAssetRepo(db),
		AuditRepo:   NewAuditRepo(db),
		ItemRepo:    NewItemRepo(db),
		FindingRepo: NewFindingRepo(db),
	}
}

type txRepos struct {
	*AssetRepo
	*AuditRepo
	*ItemRepo
	*FindingRepo
}

// InTx runs fn in a read-committed transaction. The transaction is rolled back when fn
// returns an error, including the sentinel errors fn uses to report an outcome.
func (s *Store) InTx(ctx context.Context, fn func(tx audit.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	repos := &txRepos{
		AssetRepo:   NewAssetRepo(tx),
		AuditRepo:   NewAuditRepo(tx),
		ItemRepo:    NewItemRepo(tx),
		FindingRepo: NewFindingRepo(tx),
	}
	if err := fn(repos); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func intArray(ids []int) pq.Int64Array {
	if len(ids) == 0 {
		return nil
	}
	out := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func intArg(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// nullIfEmpty maps "" to NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

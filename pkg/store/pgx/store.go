// Package pgx provides the PostgreSQL-backed GraphStore. It shares the
// filter and ordering semantics of the in-memory store: relationships come
// back in (asserted_at, id) order, writes are append-only and idempotent on
// the deterministic record IDs.
package pgx

import (
	"context"
	"sync"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Store implements store.GraphStore on PostgreSQL. Writes are serialized
// with a mutex so the check-then-insert sequences cannot race a duplicate
// or dangling reference past each other.
type Store struct {
	conn   pgxIConn
	dbLock sync.Mutex
}

// NewWithConnection creates a Store using an existing database connection
// or pool.
func NewWithConnection(conn pgxIConn) *Store {
	return &Store{
		conn:   conn,
		dbLock: sync.Mutex{},
	}
}

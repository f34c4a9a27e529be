// Package postgres provides a pgx-backed implementation of the storage
// contract. Versioned entities live in append-only tables keyed by version_id;
// the schema is in db/migrations. Units of work run at REPEATABLE READ and
// lock the current rows they read, so two writers racing on one lineage end
// with the loser failing with errs.ErrConcurrentModification.
package postgres

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgconn"
    "github.com/jackc/pgx/v5/pgxpool"

    "github.com/tinoosan/fundledger/internal/errs"
    "github.com/tinoosan/fundledger/internal/storage"
    "github.com/tinoosan/fundledger/internal/temporal"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
    Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
    Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
    QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries runs every statement against db. Inside a unit of work forUpdate
// makes single-entity reads take row locks.
type queries struct {
    db        dbtx
    forUpdate bool
}

func (q *queries) lock() string {
    if q.forUpdate { return " for update" }
    return ""
}

// txQueries adds the write side; it only exists inside WithTx.
type txQueries struct{ *queries }

// Store holds a pgx connection pool. Reads on Store see committed state.
// All methods are safe for concurrent use.
type Store struct {
    *queries
    pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
    cfg, err := pgxpool.ParseConfig(dsn)
    if err != nil { return nil, fmt.Errorf("postgres: parse dsn: %w", err) }
    pool, err := pgxpool.NewWithConfig(ctx, cfg)
    if err != nil { return nil, fmt.Errorf("postgres: connect: %w", err) }
    if err := pool.Ping(ctx); err != nil { pool.Close(); return nil, fmt.Errorf("postgres: ping: %w", err) }
    return &Store{queries: &queries{db: pool}, pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { if s.pool != nil { s.pool.Close() } }

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// WithTx implements storage.Store. A serialization failure on commit is
// reported as errs.ErrConcurrentModification.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
    tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
    if err != nil { return wrap("begin", err) }
    defer func() { _ = tx.Rollback(ctx) }()
    if err := fn(ctx, txQueries{&queries{db: tx, forUpdate: true}}); err != nil { return err }
    if err := tx.Commit(ctx); err != nil { return wrap("commit", err) }
    return nil
}

// wrap maps driver errors onto the error taxonomy. A unique violation on an
// "_one_open" index means a second open version for one lineage, which only
// happens when two writers race.
func wrap(op string, err error) error {
    if err == nil { return nil }
    var pgErr *pgconn.PgError
    if errors.As(err, &pgErr) {
        switch pgErr.Code {
        case "23505":
            if strings.HasSuffix(pgErr.ConstraintName, "_one_open") {
                return fmt.Errorf("postgres: %s: %w", op, errs.ErrConcurrentModification)
            }
            return fmt.Errorf("postgres: %s: %s: %w", op, pgErr.ConstraintName, errs.ErrConflict)
        case "40001", "40P01", "55P03":
            return fmt.Errorf("postgres: %s: %w", op, errs.ErrConcurrentModification)
        }
    }
    return fmt.Errorf("postgres: %s: %w", op, err)
}

type scanner interface{ Scan(dest ...any) error }

// collect scans every row with scan and closes rows.
func collect[T any](rows pgx.Rows, scan func(scanner) (T, error)) ([]T, error) {
    defer rows.Close()
    out := make([]T, 0)
    for rows.Next() {
        v, err := scan(rows)
        if err != nil { return nil, err }
        out = append(out, v)
    }
    return out, rows.Err()
}

// current starts a predicate matching current versions with the given
// column equalities.
func current(eq map[string]any) *where {
    cond, args := temporal.Where(eq, 1)
    return &where{parts: []string{cond}, args: args}
}

// where accumulates an AND-ed predicate with positional arguments.
type where struct {
    parts []string
    args  []any
}

func (w *where) add(cond string, arg any) {
    w.args = append(w.args, arg)
    w.parts = append(w.parts, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) sql() string { return strings.Join(w.parts, " and ") }

func (w *where) next() int { return len(w.args) + 1 }

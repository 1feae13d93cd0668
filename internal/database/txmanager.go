package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// txKey is a context key type for storing database transactions.
type txKey struct{}

// afterCommitKey carries the hooks of the outermost transaction.
type afterCommitKey struct{}

type afterCommitHooks struct {
	fns []func()
}

// SavepointError reports a failed SAVEPOINT, ROLLBACK TO SAVEPOINT or RELEASE SAVEPOINT
// statement. It is a storage failure of the enclosing transaction, never an error of the
// function run inside the savepoint.
type SavepointError struct {
	Op  string
	Err error
}

func (e *SavepointError) Error() string {
	return fmt.Sprintf("%s savepoint: %v", e.Op, e.Err)
}

func (e *SavepointError) Unwrap() error {
	return e.Err
}

// Querier represents a database query executor (either *sql.DB or *sql.Tx).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager manages database transactions.
type TxManager interface {
	// WithTx runs fn inside a transaction. If ctx already carries a transaction, fn joins it
	// and the outermost caller decides commit or rollback.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// WithSavepoint runs fn inside a named savepoint of the transaction carried by ctx and
	// rolls back to it when fn fails, leaving the rest of the transaction usable. Without a
	// transaction in ctx it behaves like WithTx.
	WithSavepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// sqlTxManager implements TxManager for SQL databases.
type sqlTxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager for the given database.
func NewTxManager(db *sql.DB) TxManager {
	return &sqlTxManager{db: db}
}

// WithTx executes the function within a database transaction.
func (m *sqlTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	hooks := &afterCommitHooks{}
	ctx = context.WithValue(ctx, txKey{}, tx)
	ctx = context.WithValue(ctx, afterCommitKey{}, hooks)

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, hook := range hooks.fns {
		hook()
	}
	return nil
}

// AfterCommit defers fn until the transaction carried by ctx commits. fn is dropped when the
// transaction, or the savepoint it was registered in, rolls back. Without a transaction fn
// runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	hooks, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks)
	if !ok {
		fn()
		return
	}
	hooks.fns = append(hooks.fns, fn)
}

// WithSavepoint executes the function within a savepoint of the current transaction.
func (m *sqlTxManager) WithSavepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	if !ok {
		return m.WithTx(ctx, fn)
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return &SavepointError{Op: "create", Err: err}
	}

	hooks, _ := ctx.Value(afterCommitKey{}).(*afterCommitHooks)
	registered := 0
	if hooks != nil {
		registered = len(hooks.fns)
	}

	if err := fn(ctx); err != nil {
		if hooks != nil {
			hooks.fns = hooks.fns[:registered]
		}
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, &SavepointError{Op: "rollback to", Err: rbErr})
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return &SavepointError{Op: "release", Err: err}
	}
	return nil
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

// GetTx retrieves a transaction from context, or returns the DB connection.
func GetTx(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cards-api/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// The transaction is committed if the function returns nil, or rolled back if it returns an error.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction executes the given function within a database transaction.
// If the function returns an error or panics, the transaction is rolled back.
// Otherwise, the transaction is committed.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%w: begin: %w", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if txErr := tx.Rollback(); txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic", slog.Any("panic", p))
			}
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rollbackErr, err)
		}
		log.Debug("rolled back transaction due to error", slog.String("error", err.Error()))
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, err)
	}

	log.Debug("transaction committed successfully")
	return nil
}

// Stores groups the stores that may take part in one transaction.
type Stores struct {
	Users      UserStore
	Flashcards FlashcardStore
	Sessions   GenerationSessionStore
}

// WithTx returns a copy of s whose stores all use tx.
func (s Stores) WithTx(tx *sql.Tx) Stores {
	var out Stores
	if s.Users != nil {
		out.Users = s.Users.WithTx(tx)
	}
	if s.Flashcards != nil {
		out.Flashcards = s.Flashcards.WithTx(tx)
	}
	if s.Sessions != nil {
		out.Sessions = s.Sessions.WithTx(tx)
	}
	return out
}

// Transactor runs a unit of work atomically against a set of stores.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}

// SQLTransactor implements Transactor with a database/sql transaction.
type SQLTransactor struct {
	db     *sql.DB
	stores Stores
}

var _ Transactor = (*SQLTransactor)(nil)

// NewSQLTransactor creates a Transactor that binds stores to a transaction on db.
func NewSQLTransactor(db *sql.DB, stores Stores) *SQLTransactor {
	if db == nil {
		panic("db cannot be nil")
	}
	return &SQLTransactor{db: db, stores: stores}
}

// InTx runs fn with transaction-bound copies of the stores.
func (t *SQLTransactor) InTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error {
	return RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, t.stores.WithTx(tx))
	})
}

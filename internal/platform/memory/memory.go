package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/store"
)

// DB holds all in-memory tables behind one lock.
type DB struct {
	mu sync.RWMutex
	// txMu serializes InTx calls.
	txMu sync.Mutex

	users          map[uuid.UUID]domain.User
	flashcards     map[uuid.UUID]domain.Flashcard
	flashcardOrder []uuid.UUID
	sessions       map[uuid.UUID]domain.GenerationSession

	logger *slog.Logger
}

// New creates an empty in-memory database.
func New(logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{
		users:      make(map[uuid.UUID]domain.User),
		flashcards: make(map[uuid.UUID]domain.Flashcard),
		sessions:   make(map[uuid.UUID]domain.GenerationSession),
		logger:     logger.With(slog.String("component", "memory_store")),
	}
}

// Stores returns the store implementations backed by db.
func (db *DB) Stores() store.Stores {
	return db.stores(nil)
}

func (db *DB) stores(undo *undoLog) store.Stores {
	return store.Stores{
		Users:      &UserStore{db: db, undo: undo},
		Flashcards: &FlashcardStore{db: db, undo: undo},
		Sessions:   &GenerationSessionStore{db: db, undo: undo},
	}
}

var _ store.Transactor = (*DB)(nil)

// InTx runs fn against stores that record how to revert each write. If fn
// fails, only those writes are reverted; writes made by other callers while
// fn ran are kept. Transactions are serialized with each other.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	undo := &undoLog{}
	if err := fn(ctx, db.stores(undo)); err != nil {
		db.mu.Lock()
		undo.revert()
		db.mu.Unlock()
		db.logger.Debug("rolled back in-memory transaction",
			slog.String("error", err.Error()),
			slog.Int("reverted_writes", len(undo.steps)))
		return err
	}
	return nil
}

// undoLog collects inverse operations for writes made inside InTx. Steps are
// recorded and reverted while db.mu is held.
type undoLog struct {
	steps []func()
}

// record is a no-op outside a transaction.
func (u *undoLog) record(step func()) {
	if u != nil {
		u.steps = append(u.steps, step)
	}
}

func (u *undoLog) revert() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
}

func cloneSession(s domain.GenerationSession) domain.GenerationSession {
	s.Suggestions = append([]domain.Suggestion{}, s.Suggestions...)
	return s
}

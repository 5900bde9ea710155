package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/store"
)

const flashcardsTable = "flashcards"

var flashcardColumns = []string{
	"id", "user_id", "front_content", "back_content", "source", "created_at", "updated_at",
}

// psql builds PostgreSQL statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sortColumns maps query sort fields to SQL expressions. Front content is
// compared byte-wise so that database order matches Go string order.
var sortColumns = map[domain.SortField]string{
	domain.SortByCreatedAt:    "created_at",
	domain.SortByUpdatedAt:    "updated_at",
	domain.SortByFrontContent: `front_content COLLATE "C"`,
}

// PostgresFlashcardStore implements the store.FlashcardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresFlashcardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresFlashcardStore creates a new PostgreSQL implementation of the FlashcardStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresFlashcardStore(db store.DBTX, logger *slog.Logger) *PostgresFlashcardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresFlashcardStore{
		db:     db,
		logger: logger.With(slog.String("component", "flashcard_store")),
	}
}

// Ensure PostgresFlashcardStore implements store.FlashcardStore interface
var _ store.FlashcardStore = (*PostgresFlashcardStore)(nil)

// Save implements store.FlashcardStore.Save.
// Returns store.ErrInvalidEntity if the owning user does not exist.
func (s *PostgresFlashcardStore) Save(ctx context.Context, card *domain.Flashcard) (*domain.Flashcard, error) {
	if err := s.SaveMultiple(ctx, []*domain.Flashcard{card}); err != nil {
		return nil, err
	}
	return card, nil
}

// SaveMultiple implements store.FlashcardStore.SaveMultiple with a single
// multi-row INSERT.
func (s *PostgresFlashcardStore) SaveMultiple(ctx context.Context, cards []*domain.Flashcard) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(cards) == 0 {
		return nil
	}

	insert := psql.Insert(flashcardsTable).Columns(flashcardColumns...)
	for _, card := range cards {
		if err := card.Validate(); err != nil {
			log.Warn("flashcard validation failed during save",
				slog.String("error", err.Error()),
				slog.String("flashcard_id", card.ID.String()))
			return err
		}
		insert = insert.Values(
			card.ID,
			card.UserID,
			card.FrontContent,
			card.BackContent,
			string(card.Source),
			card.CreatedAt,
			card.UpdatedAt,
		)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return store.NewStoreError("flashcard", "save", "failed to build query", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during flashcard save",
				slog.String("user_id", cards[0].UserID.String()))
			return fmt.Errorf("%w: user with ID %s not found", store.ErrInvalidEntity, cards[0].UserID)
		}
		log.Error("failed to save flashcards",
			slog.String("error", err.Error()),
			slog.Int("count", len(cards)))
		return store.NewStoreError("flashcard", "save", "insert failed", MapError(err))
	}

	log.Debug("flashcards saved", slog.Int("count", len(cards)))
	return nil
}

// GetByID implements store.FlashcardStore.GetByID.
func (s *PostgresFlashcardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Select(flashcardColumns...).
		From(flashcardsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, store.NewStoreError("flashcard", "get", "failed to build query", err)
	}

	card, err := scanFlashcard(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("flashcard not found", slog.String("flashcard_id", id.String()))
			return nil, store.ErrFlashcardNotFound
		}
		log.Error("failed to get flashcard",
			slog.String("error", err.Error()),
			slog.String("flashcard_id", id.String()))
		return nil, store.NewStoreError("flashcard", "get", "query failed", MapError(err))
	}

	return card, nil
}

// FindByUserID implements store.FlashcardStore.FindByUserID.
func (s *PostgresFlashcardStore) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Flashcard, error) {
	query, args, err := psql.Select(flashcardColumns...).
		From(flashcardsTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, store.NewStoreError("flashcard", "find_by_user", "failed to build query", err)
	}

	cards, err := s.queryFlashcards(ctx, s.db, query, args...)
	if err != nil {
		return nil, store.NewStoreError("flashcard", "find_by_user", "query failed", err)
	}
	return cards, nil
}

// FindPage implements store.FlashcardStore.FindPage. Filtering, ordering and
// paging all happen in the database: a COUNT query yields the total and a
// second query fetches only the requested page. Both run in one read-only
// REPEATABLE READ transaction so the total always matches the page content.
// Rows with equal sort keys are ordered by id in the same direction so pages
// are deterministic.
func (s *PostgresFlashcardStore) FindPage(
	ctx context.Context,
	q domain.FlashcardQuery,
) ([]domain.FlashcardSnapshot, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		snapshots []domain.FlashcardSnapshot
		total     int
	)
	err := s.inSnapshot(ctx, func(conn store.DBTX) error {
		var err error
		snapshots, total, err = s.findPage(ctx, conn, q)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	log.Debug("flashcard page loaded",
		slog.String("user_id", q.UserID.String()),
		slog.Int("page", q.Page),
		slog.Int("size", q.Size),
		slog.Int("returned", len(snapshots)),
		slog.Int("total", total))
	return snapshots, total, nil
}

// snapshotBeginner is implemented by *sql.DB. A store already bound to a
// *sql.Tx reads through that transaction instead.
type snapshotBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// inSnapshot runs fn in a read-only REPEATABLE READ transaction when the
// store owns a connection pool, and directly otherwise.
func (s *PostgresFlashcardStore) inSnapshot(ctx context.Context, fn func(conn store.DBTX) error) error {
	beginner, ok := s.db.(snapshotBeginner)
	if !ok {
		return fn(s.db)
	}

	tx, err := beginner.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return store.NewStoreError("flashcard", "find_page", "failed to begin transaction", MapError(err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return store.NewStoreError("flashcard", "find_page", "failed to commit transaction", MapError(err))
	}
	return nil
}

func (s *PostgresFlashcardStore) findPage(
	ctx context.Context,
	conn store.DBTX,
	q domain.FlashcardQuery,
) ([]domain.FlashcardSnapshot, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where := sq.And{sq.Eq{"user_id": q.UserID}}
	if q.FiltersBySource() {
		where = append(where, sq.Eq{"source": string(q.Source)})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(flashcardsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, store.NewStoreError("flashcard", "find_page", "failed to build count query", err)
	}

	var total int
	if err := conn.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		log.Error("failed to count flashcards",
			slog.String("error", err.Error()),
			slog.String("user_id", q.UserID.String()))
		return nil, 0, store.NewStoreError("flashcard", "find_page", "count failed", MapError(err))
	}

	offset := q.Offset()
	if total == 0 || offset >= total {
		return []domain.FlashcardSnapshot{}, total, nil
	}

	column, ok := sortColumns[q.SortField]
	if !ok {
		column = sortColumns[domain.SortByCreatedAt]
	}
	direction := string(q.SortDirection)

	pageQuery, pageArgs, err := psql.Select(flashcardColumns...).
		From(flashcardsTable).
		Where(where).
		OrderBy(column+" "+direction, "id "+direction).
		Limit(uint64(q.Size)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, store.NewStoreError("flashcard", "find_page", "failed to build page query", err)
	}

	cards, err := s.queryFlashcards(ctx, conn, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, store.NewStoreError("flashcard", "find_page", "query failed", err)
	}

	snapshots := make([]domain.FlashcardSnapshot, len(cards))
	for i, card := range cards {
		snapshots[i] = card.Snapshot()
	}
	return snapshots, total, nil
}

// WithTx implements store.FlashcardStore.WithTx.
func (s *PostgresFlashcardStore) WithTx(tx *sql.Tx) store.FlashcardStore {
	return &PostgresFlashcardStore{db: tx, logger: s.logger}
}

func (s *PostgresFlashcardStore) queryFlashcards(ctx context.Context, conn store.DBTX, query string, args ...any) ([]*domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query flashcards", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	cards := []*domain.Flashcard{}
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			log.Error("failed to scan flashcard row", slog.String("error", err.Error()))
			return nil, err
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	return cards, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlashcard(row rowScanner) (*domain.Flashcard, error) {
	var card domain.Flashcard
	var source string
	if err := row.Scan(
		&card.ID,
		&card.UserID,
		&card.FrontContent,
		&card.BackContent,
		&source,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	card.Source = domain.FlashcardSource(source)
	return &card, nil
}

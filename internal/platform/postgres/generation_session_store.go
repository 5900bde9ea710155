package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/store"
)

const sessionsTable = "generation_sessions"

var sessionColumns = []string{
	"id", "user_id", "input_text", "status", "suggestions",
	"accepted_count", "model", "error_message", "created_at", "updated_at",
}

// PostgresGenerationSessionStore implements the store.GenerationSessionStore
// interface using a PostgreSQL database as the storage backend. Suggestions
// are kept in a JSONB column.
type PostgresGenerationSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGenerationSessionStore creates a new PostgreSQL implementation of
// the GenerationSessionStore interface.
func NewPostgresGenerationSessionStore(db store.DBTX, logger *slog.Logger) *PostgresGenerationSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresGenerationSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "generation_session_store")),
	}
}

// Ensure PostgresGenerationSessionStore implements store.GenerationSessionStore interface
var _ store.GenerationSessionStore = (*PostgresGenerationSessionStore)(nil)

// Create implements store.GenerationSessionStore.Create.
// Returns store.ErrInvalidEntity if the user ID doesn't exist (foreign key violation).
func (s *PostgresGenerationSessionStore) Create(ctx context.Context, session *domain.GenerationSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during create",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	suggestions, err := encodeSuggestions(session.Suggestions)
	if err != nil {
		return store.NewStoreError("generation_session", "create", "failed to encode suggestions", err)
	}

	query, args, err := psql.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.InputText,
			string(session.Status),
			suggestions,
			session.AcceptedCount,
			session.Model,
			session.ErrorMessage,
			session.CreatedAt,
			session.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return store.NewStoreError("generation_session", "create", "failed to build query", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during session creation",
				slog.String("session_id", session.ID.String()),
				slog.String("user_id", session.UserID.String()))
			return fmt.Errorf("%w: user with ID %s not found", store.ErrInvalidEntity, session.UserID)
		}
		log.Error("failed to create session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return store.NewStoreError("generation_session", "create", "insert failed", MapError(err))
	}

	log.Info("generation session created",
		slog.String("session_id", session.ID.String()),
		slog.String("user_id", session.UserID.String()))
	return nil
}

// GetByID implements store.GenerationSessionStore.GetByID.
func (s *PostgresGenerationSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
	return s.getSession(ctx, id, false)
}

// GetForUpdate implements store.GenerationSessionStore.GetForUpdate with
// SELECT ... FOR UPDATE. Outside a transaction the lock is released as soon
// as the statement completes.
func (s *PostgresGenerationSessionStore) GetForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*domain.GenerationSession, error) {
	return s.getSession(ctx, id, true)
}

func (s *PostgresGenerationSessionStore) getSession(
	ctx context.Context,
	id uuid.UUID,
	forUpdate bool,
) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	builder := psql.Select(sessionColumns...).From(sessionsTable).Where(sq.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, store.NewStoreError("generation_session", "get", "failed to build query", err)
	}

	session, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("session not found", slog.String("session_id", id.String()))
			return nil, store.ErrGenerationSessionNotFound
		}
		log.Error("failed to get session",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()),
			slog.Bool("for_update", forUpdate))
		return nil, store.NewStoreError("generation_session", "get", "query failed", MapError(err))
	}

	return session, nil
}

// Update implements store.GenerationSessionStore.Update.
func (s *PostgresGenerationSessionStore) Update(ctx context.Context, session *domain.GenerationSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during update",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	suggestions, err := encodeSuggestions(session.Suggestions)
	if err != nil {
		return store.NewStoreError("generation_session", "update", "failed to encode suggestions", err)
	}

	query, args, err := psql.Update(sessionsTable).
		Set("status", string(session.Status)).
		Set("suggestions", suggestions).
		Set("accepted_count", session.AcceptedCount).
		Set("error_message", session.ErrorMessage).
		Set("updated_at", session.UpdatedAt).
		Where(sq.Eq{"id": session.ID}).
		ToSql()
	if err != nil {
		return store.NewStoreError("generation_session", "update", "failed to build query", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return store.NewStoreError("generation_session", "update", "update failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrGenerationSessionNotFound); err != nil {
		log.Debug("session not updated",
			slog.String("session_id", session.ID.String()),
			slog.String("error", err.Error()))
		return err
	}

	log.Debug("generation session updated",
		slog.String("session_id", session.ID.String()),
		slog.String("status", string(session.Status)))
	return nil
}

// ListByStatus implements store.GenerationSessionStore.ListByStatus.
func (s *PostgresGenerationSessionStore) ListByStatus(
	ctx context.Context,
	statuses ...domain.GenerationStatus,
) ([]*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(statuses) == 0 {
		return []*domain.GenerationSession{}, nil
	}
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}

	query, args, err := psql.Select(sessionColumns...).
		From(sessionsTable).
		Where(sq.Eq{"status": values}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, store.NewStoreError("generation_session", "list", "failed to build query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list sessions", slog.String("error", err.Error()))
		return nil, store.NewStoreError("generation_session", "list", "query failed", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	sessions := []*domain.GenerationSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			log.Error("failed to scan session row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("generation_session", "list", "scan failed", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("generation_session", "list", "row iteration failed", err)
	}

	return sessions, nil
}

// WithTx implements store.GenerationSessionStore.WithTx.
func (s *PostgresGenerationSessionStore) WithTx(tx *sql.Tx) store.GenerationSessionStore {
	return &PostgresGenerationSessionStore{db: tx, logger: s.logger}
}

// encodeSuggestions renders suggestions as JSON text for the JSONB column.
func encodeSuggestions(suggestions []domain.Suggestion) (string, error) {
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}
	b, err := json.Marshal(suggestions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func scanSession(row rowScanner) (*domain.GenerationSession, error) {
	var session domain.GenerationSession
	var status string
	var suggestions []byte
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.InputText,
		&status,
		&suggestions,
		&session.AcceptedCount,
		&session.Model,
		&session.ErrorMessage,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}

	session.Status = domain.GenerationStatus(status)
	if len(suggestions) > 0 {
		if err := json.Unmarshal(suggestions, &session.Suggestions); err != nil {
			return nil, fmt.Errorf("failed to decode suggestions: %w", err)
		}
	}
	if session.Suggestions == nil {
		session.Suggestions = []domain.Suggestion{}
	}
	return &session, nil
}

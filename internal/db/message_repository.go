package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// MessageRepository handles database operations for message content
type MessageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// CreateMessage inserts new message content
func (r *MessageRepository) CreateMessage(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (id, title, body, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(ctx, query, m.ID, m.Title, m.Body, m.OwnerID).
		Scan(&m.CreatedAt)
	if err != nil {
		r.logger.Error("failed to create message",
			zap.Error(err),
			zap.String("message_id", m.ID.String()),
		)
		return fmt.Errorf("insert message: %w", err)
	}

	r.logger.Info("message created",
		zap.String("message_id", m.ID.String()),
		zap.String("title", m.Title),
	)

	return nil
}

// GetMessage retrieves message content by ID
func (r *MessageRepository) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `
		SELECT id, title, body, owner_id, created_at
		FROM messages
		WHERE id = $1
	`

	var m Message
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Title,
		&m.Body,
		&m.OwnerID,
		&m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}

	return &m, nil
}

// ListMessages retrieves messages visible to the scope
func (r *MessageRepository) ListMessages(ctx context.Context, scope Scope, limit, offset int) ([]*Message, error) {
	query := `
		SELECT id, title, body, owner_id, created_at
		FROM messages
		WHERE $1 OR owner_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Pool().Query(ctx, query, scope.Admin, scope.ActorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Title, &m.Body, &m.OwnerID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return messages, nil
}

// UpdateMessage updates message content within the scope
func (r *MessageRepository) UpdateMessage(ctx context.Context, m *Message, scope Scope) error {
	query := `
		UPDATE messages
		SET title = $1, body = $2
		WHERE id = $3 AND ($4 OR owner_id = $5)
	`

	result, err := r.db.Pool().Exec(ctx, query,
		m.Title, m.Body,
		m.ID, scope.Admin, scope.ActorID,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteMessage removes message content within the scope. Any campaign bound
// to the message goes with it, so deletion cascades through campaigns down to
// their attempts.
func (r *MessageRepository) DeleteMessage(ctx context.Context, id uuid.UUID, scope Scope) error {
	result, err := r.db.Pool().Exec(ctx,
		`DELETE FROM messages WHERE id = $1 AND ($2 OR owner_id = $3)`,
		id, scope.Admin, scope.ActorID,
	)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.Info("message deleted", zap.String("message_id", id.String()))
	return nil
}

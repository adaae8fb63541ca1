package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// RecipientRepository handles database operations for recipients
type RecipientRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *DB, logger *zap.Logger) *RecipientRepository {
	return &RecipientRepository{
		db:     db,
		logger: logger,
	}
}

// CreateRecipient inserts a new recipient. Emails are unique across all
// owners; a duplicate fails with ErrDuplicateEmail.
func (r *RecipientRepository) CreateRecipient(ctx context.Context, rec *Recipient) error {
	query := `
		INSERT INTO recipients (id, name, email, comment, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		rec.ID,
		rec.Name,
		rec.Email,
		rec.Comment,
		rec.OwnerID,
	).Scan(&rec.CreatedAt)

	if err != nil {
		if isUniqueViolation(err, "recipients_email_key") {
			return ErrDuplicateEmail
		}
		r.logger.Error("failed to create recipient",
			zap.Error(err),
			zap.String("recipient_id", rec.ID.String()),
		)
		return fmt.Errorf("insert recipient: %w", err)
	}

	r.logger.Info("recipient created",
		zap.String("recipient_id", rec.ID.String()),
		zap.String("email", rec.Email),
	)

	return nil
}

// GetRecipient retrieves a recipient by ID
func (r *RecipientRepository) GetRecipient(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	query := `
		SELECT id, name, email, comment, owner_id, created_at
		FROM recipients
		WHERE id = $1
	`

	var rec Recipient
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.Name,
		&rec.Email,
		&rec.Comment,
		&rec.OwnerID,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query recipient: %w", err)
	}

	return &rec, nil
}

// ListRecipients retrieves recipients visible to the scope
func (r *RecipientRepository) ListRecipients(ctx context.Context, scope Scope, limit, offset int) ([]*Recipient, error) {
	query := `
		SELECT id, name, email, comment, owner_id, created_at
		FROM recipients
		WHERE $1 OR owner_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Pool().Query(ctx, query, scope.Admin, scope.ActorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var recipients []*Recipient
	for rows.Next() {
		var rec Recipient
		err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.Email,
			&rec.Comment,
			&rec.OwnerID,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return recipients, nil
}

// UpdateRecipient updates a recipient's mutable fields within the scope
func (r *RecipientRepository) UpdateRecipient(ctx context.Context, rec *Recipient, scope Scope) error {
	query := `
		UPDATE recipients
		SET name = $1, email = $2, comment = $3
		WHERE id = $4 AND ($5 OR owner_id = $6)
	`

	result, err := r.db.Pool().Exec(ctx, query,
		rec.Name, rec.Email, rec.Comment,
		rec.ID, scope.Admin, scope.ActorID,
	)
	if err != nil {
		if isUniqueViolation(err, "recipients_email_key") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update recipient: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteRecipient removes a recipient within the scope. Attempt history is
// untouched: attempts store the relay's response text, not recipient rows.
func (r *RecipientRepository) DeleteRecipient(ctx context.Context, id uuid.UUID, scope Scope) error {
	result, err := r.db.Pool().Exec(ctx,
		`DELETE FROM recipients WHERE id = $1 AND ($2 OR owner_id = $3)`,
		id, scope.Admin, scope.ActorID,
	)
	if err != nil {
		return fmt.Errorf("delete recipient: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.Info("recipient deleted", zap.String("recipient_id", id.String()))
	return nil
}

// EmailsForCampaign resolves a campaign's recipient set to a list of email
// addresses, in the order the recipients were created.
func (r *RecipientRepository) EmailsForCampaign(ctx context.Context, campaignID uuid.UUID) ([]string, error) {
	query := `
		SELECT rec.email
		FROM recipients rec
		JOIN campaign_recipients cr ON cr.recipient_id = rec.id
		WHERE cr.campaign_id = $1
		ORDER BY rec.created_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query campaign recipients: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return emails, nil
}

// CountRecipients returns the total recipient count for the stats view.
func (r *RecipientRepository) CountRecipients(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM recipients`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return count, nil
}

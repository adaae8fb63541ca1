package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// AttemptLog is the append-only record of delivery attempts. Attempts are
// never updated or deleted individually; they go away only when their
// campaign is deleted.
type AttemptLog struct {
	db     *DB
	logger *zap.Logger
}

// NewAttemptLog creates a new attempt log
func NewAttemptLog(db *DB, logger *zap.Logger) *AttemptLog {
	return &AttemptLog{
		db:     db,
		logger: logger,
	}
}

// foreignKeyViolation is the Postgres error code for FK violations.
const foreignKeyViolation = "23503"

// Record appends one attempt for a campaign. The timestamp is assigned by
// the database at insert time, never by the caller, so attempts within a
// campaign's history are ordered by creation.
func (l *AttemptLog) Record(ctx context.Context, campaignID uuid.UUID, outcome, response string) (*Attempt, error) {
	attempt := &Attempt{
		ID:         uuid.New(),
		CampaignID: campaignID,
		Outcome:    outcome,
		Response:   response,
	}

	query := `
		INSERT INTO attempts (id, campaign_id, outcome, response)
		VALUES ($1, $2, $3, $4)
		RETURNING occurred_at
	`

	err := l.db.Pool().QueryRow(ctx, query,
		attempt.ID,
		attempt.CampaignID,
		attempt.Outcome,
		attempt.Response,
	).Scan(&attempt.OccurredAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, ErrNotFound
		}
		l.logger.Error("failed to record attempt",
			zap.Error(err),
			zap.String("campaign_id", campaignID.String()),
		)
		return nil, fmt.Errorf("insert attempt: %w", err)
	}

	l.logger.Info("attempt recorded",
		zap.String("campaign_id", campaignID.String()),
		zap.String("outcome", outcome),
	)

	return attempt, nil
}

// ListForCampaign returns a campaign's attempts oldest first, so callers can
// number them 1..N in creation order.
func (l *AttemptLog) ListForCampaign(ctx context.Context, campaignID uuid.UUID) ([]*Attempt, error) {
	query := `
		SELECT id, campaign_id, occurred_at, outcome, response
		FROM attempts
		WHERE campaign_id = $1
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := l.db.Pool().Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		var a Attempt
		err := rows.Scan(
			&a.ID,
			&a.CampaignID,
			&a.OccurredAt,
			&a.Outcome,
			&a.Response,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return attempts, nil
}

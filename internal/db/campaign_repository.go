package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CampaignRepository handles database operations for campaigns
type CampaignRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *DB, logger *zap.Logger) *CampaignRepository {
	return &CampaignRepository{
		db:     db,
		logger: logger,
	}
}

const campaignColumns = `
	id, message_id, recurrence, status, first_fire_at, next_fire_at,
	owner_id, created_at, updated_at
`

func scanCampaign(row pgx.Row) (*Campaign, error) {
	var c Campaign
	err := row.Scan(
		&c.ID,
		&c.MessageID,
		&c.Recurrence,
		&c.Status,
		&c.FirstFireAt,
		&c.NextFireAt,
		&c.OwnerID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCampaign inserts a campaign and attaches its recipient set in one
// transaction. At most one campaign may reference a given message; a second
// one fails with ErrDuplicateCampaign and leaves no rows behind.
func (r *CampaignRepository) CreateCampaign(ctx context.Context, c *Campaign, recipientIDs []uuid.UUID) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO campaigns (
			id, message_id, recurrence, status, first_fire_at, owner_id
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING created_at, updated_at
	`

	err = tx.QueryRow(
		ctx,
		query,
		c.ID,
		c.MessageID,
		c.Recurrence,
		c.Status,
		c.FirstFireAt,
		c.OwnerID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err, "campaigns_message_id_key") {
			return ErrDuplicateCampaign
		}
		r.logger.Error("failed to create campaign",
			zap.Error(err),
			zap.String("campaign_id", c.ID.String()),
		)
		return fmt.Errorf("insert campaign: %w", err)
	}

	for _, recipientID := range recipientIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO campaign_recipients (campaign_id, recipient_id) VALUES ($1, $2)`,
			c.ID, recipientID,
		)
		if err != nil {
			return fmt.Errorf("attach recipient %s: %w", recipientID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Info("campaign created",
		zap.String("campaign_id", c.ID.String()),
		zap.String("message_id", c.MessageID.String()),
		zap.String("recurrence", c.Recurrence),
		zap.Int("recipients", len(recipientIDs)),
	)

	return nil
}

// GetCampaign retrieves a campaign by ID
func (r *CampaignRepository) GetCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	c, err := scanCampaign(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query campaign: %w", err)
	}

	return c, nil
}

// ListCampaigns retrieves campaigns visible to the scope, newest first.
// Admin scopes see every owner's campaigns.
func (r *CampaignRepository) ListCampaigns(ctx context.Context, scope Scope, limit, offset int) ([]*Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE $1 OR owner_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Pool().Query(ctx, query, scope.Admin, scope.ActorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return campaigns, nil
}

// DeleteCampaign removes a campaign within the scope. Attempts cascade.
func (r *CampaignRepository) DeleteCampaign(ctx context.Context, id uuid.UUID, scope Scope) error {
	result, err := r.db.Pool().Exec(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND ($2 OR owner_id = $3)`,
		id, scope.Admin, scope.ActorID,
	)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.Info("campaign deleted", zap.String("campaign_id", id.String()))
	return nil
}

// DueCampaigns returns every active campaign whose next fire time has passed.
// One query per tick: the selection is a single consistent read so a campaign
// cannot be picked twice within the same tick.
func (r *CampaignRepository) DueCampaigns(ctx context.Context, now time.Time) ([]*Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = 'active' AND next_fire_at <= $1
		ORDER BY next_fire_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query due campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return campaigns, nil
}

// AdvanceNextFire persists a campaign's new next fire time. Field-scoped:
// status and everything else are left untouched.
func (r *CampaignRepository) AdvanceNextFire(ctx context.Context, id uuid.UUID, next time.Time) error {
	result, err := r.db.Pool().Exec(ctx,
		`UPDATE campaigns SET next_fire_at = $1, updated_at = NOW() WHERE id = $2`,
		next, id,
	)
	if err != nil {
		r.logger.Error("failed to advance next fire time",
			zap.Error(err),
			zap.String("campaign_id", id.String()),
		)
		return fmt.Errorf("advance next fire: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ActivateCampaign transitions a campaign from created to active and seeds
// next_fire_at from first_fire_at. The update is conditional on the current
// status, so activating an already active or completed campaign fails with
// ErrInvalidTransition.
func (r *CampaignRepository) ActivateCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	query := `
		UPDATE campaigns
		SET status = 'active', next_fire_at = first_fire_at, updated_at = NOW()
		WHERE id = $1 AND status = 'created'
		RETURNING ` + campaignColumns

	c, err := scanCampaign(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.transitionError(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("activate campaign: %w", err)
	}

	r.logger.Info("campaign activated",
		zap.String("campaign_id", id.String()),
		zap.Timep("next_fire_at", c.NextFireAt),
	)

	return c, nil
}

// CompleteCampaign transitions a campaign from active to completed.
// Completed is terminal: there is no path back to active.
func (r *CampaignRepository) CompleteCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	query := `
		UPDATE campaigns
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING ` + campaignColumns

	c, err := scanCampaign(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.transitionError(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("complete campaign: %w", err)
	}

	r.logger.Info("campaign completed", zap.String("campaign_id", id.String()))

	return c, nil
}

// transitionError distinguishes a missing campaign from one in the wrong state.
func (r *CampaignRepository) transitionError(ctx context.Context, id uuid.UUID) error {
	if _, err := r.GetCampaign(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

// MessageForCampaign resolves the message content a campaign sends.
func (r *CampaignRepository) MessageForCampaign(ctx context.Context, campaignID uuid.UUID) (*Message, error) {
	query := `
		SELECT m.id, m.title, m.body, m.owner_id, m.created_at
		FROM messages m
		JOIN campaigns c ON c.message_id = m.id
		WHERE c.id = $1
	`

	var m Message
	err := r.db.Pool().QueryRow(ctx, query, campaignID).Scan(
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
		return nil, fmt.Errorf("query campaign message: %w", err)
	}

	return &m, nil
}

// CountCampaigns returns total and active campaign counts for the stats view.
func (r *CampaignRepository) CountCampaigns(ctx context.Context) (total int, active int, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'active')
		FROM campaigns
	`
	if err := r.db.Pool().QueryRow(ctx, query).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("count campaigns: %w", err)
	}
	return total, active, nil
}

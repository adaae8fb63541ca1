package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mailcast/mailcast/internal/db"
)

// PostgresStore assembles the campaign, recipient, and attempt repositories
// into the Store the dispatcher consumes.
type PostgresStore struct {
	Campaigns  *db.CampaignRepository
	Recipients *db.RecipientRepository
	Attempts   *db.AttemptLog
}

func NewPostgresStore(campaigns *db.CampaignRepository, recipients *db.RecipientRepository, attempts *db.AttemptLog) *PostgresStore {
	return &PostgresStore{
		Campaigns:  campaigns,
		Recipients: recipients,
		Attempts:   attempts,
	}
}

func (s *PostgresStore) DueCampaigns(ctx context.Context, now time.Time) ([]*db.Campaign, error) {
	return s.Campaigns.DueCampaigns(ctx, now)
}

func (s *PostgresStore) EmailsForCampaign(ctx context.Context, campaignID uuid.UUID) ([]string, error) {
	return s.Recipients.EmailsForCampaign(ctx, campaignID)
}

func (s *PostgresStore) MessageForCampaign(ctx context.Context, campaignID uuid.UUID) (*db.Message, error) {
	return s.Campaigns.MessageForCampaign(ctx, campaignID)
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, campaignID uuid.UUID, outcome, response string) (*db.Attempt, error) {
	return s.Attempts.Record(ctx, campaignID, outcome, response)
}

func (s *PostgresStore) AdvanceNextFire(ctx context.Context, id uuid.UUID, next time.Time) error {
	return s.Campaigns.AdvanceNextFire(ctx, id, next)
}

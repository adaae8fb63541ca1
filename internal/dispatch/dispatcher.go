package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailcast/mailcast/internal/db"
	"github.com/mailcast/mailcast/internal/metrics"
)

// Store is what the dispatcher needs from persistence: the due-campaign
// selection, recipient and message resolution, the append-only attempt log,
// and the field-scoped reschedule update.
type Store interface {
	DueCampaigns(ctx context.Context, now time.Time) ([]*db.Campaign, error)
	EmailsForCampaign(ctx context.Context, campaignID uuid.UUID) ([]string, error)
	MessageForCampaign(ctx context.Context, campaignID uuid.UUID) (*db.Message, error)
	RecordAttempt(ctx context.Context, campaignID uuid.UUID, outcome, response string) (*db.Attempt, error)
	AdvanceNextFire(ctx context.Context, id uuid.UUID, next time.Time) error
}

// ResponseDelivered is the fixed confirmation text recorded on a successful
// attempt. Failures record the relay's error text instead.
const ResponseDelivered = "delivered"

// Dispatcher scans for due campaigns on each tick, sends each one through the
// delivery transport, logs exactly one attempt per campaign, and advances the
// campaign's schedule by one recurrence interval.
type Dispatcher struct {
	store  Store
	sender Sender
	config Config
	logger *zap.Logger
}

type Config struct {
	TickInterval time.Duration
}

func New(store Store, sender Sender, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Minute
	}

	return &Dispatcher{
		store:  store,
		sender: sender,
		config: cfg,
		logger: logger,
	}
}

// Start runs ticks at the configured cadence until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.TickInterval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		zap.Duration("tick_interval", d.config.TickInterval),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case <-ticker.C:
			if err := d.RunTick(ctx, time.Now()); err != nil {
				d.logger.Error("tick failed", zap.Error(err))
			}
		}
	}
}

// RunTick processes every campaign that is active and due as of now.
// Campaigns are selected in a single query, then handled independently:
// a failure on one campaign never blocks the others. RunTick itself only
// fails when the selection query does, never on an individual send.
func (d *Dispatcher) RunTick(ctx context.Context, now time.Time) error {
	start := time.Now()

	due, err := d.store.DueCampaigns(ctx, now)
	if err != nil {
		return fmt.Errorf("select due campaigns: %w", err)
	}

	metrics.SetDueCampaigns(len(due))
	if len(due) == 0 {
		return nil
	}

	d.logger.Info("tick started",
		zap.Time("now", now),
		zap.Int("due_campaigns", len(due)),
	)

	for _, campaign := range due {
		d.dispatchCampaign(ctx, campaign)
	}

	metrics.ObserveTickDuration(time.Since(start))
	return nil
}

// dispatchCampaign runs one campaign's send-log-reschedule sequence.
// Ordering matters: the attempt is recorded before next_fire_at moves, so a
// crash in between leaves a logged attempt and a stale fire time, never an
// unlogged send.
func (d *Dispatcher) dispatchCampaign(ctx context.Context, campaign *db.Campaign) {
	clog := d.logger.With(zap.String("campaign_id", campaign.ID.String()))

	if campaign.NextFireAt == nil {
		clog.Error("due campaign has no next fire time, skipping")
		return
	}

	// Resolve the reschedule up front: a campaign whose recurrence cannot be
	// parsed is skipped whole rather than sent without a way to reschedule it.
	next, err := Next(*campaign.NextFireAt, campaign.Recurrence)
	if err != nil {
		clog.Error("cannot compute next fire time, skipping", zap.Error(err))
		return
	}

	emails, err := d.store.EmailsForCampaign(ctx, campaign.ID)
	if err != nil {
		// Store error, not a transport outcome: no attempt is logged and the
		// campaign stays due for the next tick.
		clog.Error("failed to resolve recipients, skipping", zap.Error(err))
		return
	}

	message, err := d.store.MessageForCampaign(ctx, campaign.ID)
	if err != nil {
		clog.Error("failed to resolve message, skipping", zap.Error(err))
		return
	}

	outcome := db.OutcomeSuccess
	response := ResponseDelivered

	if sendErr := d.sender.Send(ctx, message.Title, message.Body, emails); sendErr != nil {
		outcome = db.OutcomeFailure
		response = sendErr.Error()
		clog.Warn("send failed",
			zap.Error(sendErr),
			zap.Int("recipients", len(emails)),
		)
	} else {
		clog.Info("campaign sent", zap.Int("recipients", len(emails)))
	}

	if _, err := d.store.RecordAttempt(ctx, campaign.ID, outcome, response); err != nil {
		// The attempt must be on record before the schedule moves. Leaving
		// next_fire_at untouched re-selects the campaign next tick.
		clog.Error("failed to record attempt, not rescheduling", zap.Error(err))
		return
	}

	metrics.RecordAttempt(outcome)

	// One interval per tick, from the previous scheduled time. A campaign
	// that sat due through downtime does not fast-forward missed periods.
	if err := d.store.AdvanceNextFire(ctx, campaign.ID, next); err != nil {
		clog.Error("failed to advance next fire time", zap.Error(err))
		return
	}

	clog.Info("campaign rescheduled",
		zap.String("outcome", outcome),
		zap.Time("next_fire_at", next),
	)
}

package db

import (
	"time"

	"github.com/google/uuid"
)

// Message is the content a campaign sends: one subject line and one body.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipient is an addressable member of one or more campaign recipient sets.
type Recipient struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Comment   string    `json:"comment,omitempty"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Campaign is a recurring mailing job bound to one message and a recipient set.
// NextFireAt is nil until the campaign is activated.
type Campaign struct {
	ID          uuid.UUID  `json:"id"`
	MessageID   uuid.UUID  `json:"message_id"`
	Recurrence  string     `json:"recurrence"`
	Status      string     `json:"status"`
	FirstFireAt time.Time  `json:"first_fire_at"`
	NextFireAt  *time.Time `json:"next_fire_at,omitempty"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Attempt is one logged outcome of dispatching a campaign. Append-only:
// the dispatcher never updates or deletes attempts, and the timestamp is
// assigned by the database at insert time.
type Attempt struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Outcome    string    `json:"outcome"`
	Response   string    `json:"response"`
}

// Campaign status constants
const (
	StatusCreated   = "created"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Recurrence constants
const (
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

// Attempt outcome constants
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Scope restricts list operations to rows the acting identity may see.
// Admins see every owner's rows; everyone else sees only their own.
type Scope struct {
	ActorID uuid.UUID
	Admin   bool
}

// CanAccess reports whether the scope covers a row owned by ownerID.
func (s Scope) CanAccess(ownerID uuid.UUID) bool {
	return s.Admin || s.ActorID == ownerID
}

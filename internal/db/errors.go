package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested row does not exist or is outside
	// the caller's scope.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCampaign indicates a campaign already references the message.
	// At most one campaign may be bound to a given message.
	ErrDuplicateCampaign = errors.New("a campaign already exists for this message")

	// ErrDuplicateEmail indicates a recipient with the email already exists.
	ErrDuplicateEmail = errors.New("a recipient with this email already exists")

	// ErrInvalidTransition indicates a status change the state machine forbids,
	// e.g. completing a campaign that was never activated.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// uniqueViolation is the Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

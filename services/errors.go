package services

import (
	"errors"
	"strings"
)

// Error taxonomy for the engine. Handlers translate these to HTTP statuses;
// everything else is a 500 with a generic "try again" body.
var (
	// ErrValidation: malformed or policy-violating request. The wrapping
	// message names the violated constraint and is safe to echo to the UI.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateEvent: an idempotency-key replay. Absorbed at the API
	// boundary as success-with-no-op, never surfaced as a failure.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrAlreadyAttributed: referral re-attribution attempt (referred_by is
	// write-once).
	ErrAlreadyAttributed = errors.New("user already attributed to a referrer")

	// ErrNotFound: unknown achievement/content/campaign/user id.
	ErrNotFound = errors.New("not found")

	// ErrPermission: cross-department action where policy forbids it.
	ErrPermission = errors.New("permission denied")

	// ErrStaleCampaign: action against an expired campaign. Rejected, not retried.
	ErrStaleCampaign = errors.New("campaign expired")
)

// isUniqueViolation reports whether err is a unique-constraint failure from
// the underlying driver (postgres in production, sqlite in tests). Uniqueness
// races are expected — they are how at-most-once semantics are enforced.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "constraint failed: UNIQUE") // glebarez/sqlite
}

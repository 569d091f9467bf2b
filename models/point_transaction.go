package models

import "time"

// PointTransaction is one row in the append-only points ledger.
// Rows are immutable once written; the uniqueIndex on SourceEventID is what
// makes Award idempotent — a redelivered event can never produce a second row.
type PointTransaction struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"index;not null" json:"user_id"` // ExternalUserID

	Amount int64  `gorm:"not null" json:"amount"` // signed; negative only for corrections
	Reason string `gorm:"not null" json:"reason"` // e.g., "note_uploaded", "achievement:FIRST_UPLOAD"

	// SourceEventID is globally unique per logical event (idempotency key).
	SourceEventID string `gorm:"uniqueIndex;not null" json:"source_event_id"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

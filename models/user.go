package models

import (
	"time"

	"gorm.io/gorm"
)

// ProfileMirror is a local snapshot of account data needed for gamification.
// Owned and managed solely by the gamification service.
// Populated via sync worker from the Auth/Profile Service's user table.
type ProfileMirror struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // The profile service's UUID
	Username       string  `gorm:"index;not null" json:"username"`
	Email          string  `json:"email,omitempty"`
	AvatarURL      *string `json:"avatar_url,omitempty"`

	// Leaderboard scope attributes (free-text upstream, slugged into scope keys here)
	College    string `gorm:"index" json:"college"`
	Department string `gorm:"index" json:"department"`

	// AccountCreatedAt is the account's original creation time at the profile
	// service — the leaderboard tie-break key. Distinct from CreatedAt, which
	// is when the mirror row appeared locally.
	AccountCreatedAt time.Time `gorm:"index;not null" json:"account_created_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// RemoteProfile matches the JSON the profile service returns for a user.
// Used by the sync worker only.
type RemoteProfile struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	College    string    `json:"college"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

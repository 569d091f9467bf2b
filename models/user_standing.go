package models

import (
	"time"

	"gorm.io/gorm"
)

// UserStanding tracks gamified state for each user (denormalized for performance).
// PointsTotal is a cache of the point_transactions sum — the ledger is the
// source of truth and standing is recomputed from it, never hand-edited.
type UserStanding struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	// Core standing
	PointsTotal int64 `json:"points_total" gorm:"default:0"`
	Level       int   `json:"level" gorm:"default:1"`

	// Streak state (day boundary: server clock, UTC)
	StreakCurrent    int     `json:"streak_current" gorm:"default:0"`
	StreakLongest    int     `json:"streak_longest" gorm:"default:0"`
	LastActivityDate *string `json:"last_activity_date,omitempty"` // "2006-01-02"

	// Activity counters feeding achievement rules
	TotalUploads           int64 `json:"total_uploads" gorm:"default:0"`
	TotalDownloadsReceived int64 `json:"total_downloads_received" gorm:"default:0"`
	TotalShares            int64 `json:"total_shares" gorm:"default:0"`
	TotalReferrals         int64 `json:"total_referrals" gorm:"default:0"`

	// Referral identity (engine-owned; ReferredBy is write-once)
	ReferralCode string  `gorm:"uniqueIndex" json:"referral_code"`
	ReferredBy   *string `gorm:"index" json:"referred_by,omitempty"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

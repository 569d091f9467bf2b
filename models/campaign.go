package models

import "time"

// CampaignType indicates the flavor of a time-boxed bonus window.
type CampaignType string

const (
	CampaignFlashBonus CampaignType = "flash_bonus"
	CampaignExamPanic  CampaignType = "exam_panic"
	CampaignMysteryBox CampaignType = "mystery_box"
)

// Campaign is a versioned time-boxed bonus window. "Active" is never stored —
// it is the pure predicate starts_at <= now < expires_at evaluated per read,
// so multiple service instances agree without shared in-process state.
type Campaign struct {
	ID   string       `gorm:"primaryKey;type:uuid" json:"id"`
	Type CampaignType `gorm:"index;not null" json:"type"`
	Name string       `gorm:"not null" json:"name"`

	StartsAt  time.Time `gorm:"index;not null" json:"starts_at"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`

	// Multiplier applies to points awarded to participants while active.
	Multiplier       float64 `gorm:"default:1" json:"multiplier"`
	ParticipantCount int64   `gorm:"default:0" json:"participant_count"`

	Timestamps
}

// IsActive reports whether the campaign window covers now.
func (c *Campaign) IsActive(now time.Time) bool {
	return !now.Before(c.StartsAt) && now.Before(c.ExpiresAt)
}

// CampaignParticipation is the idempotent membership set — the composite
// unique index caps each user at one row per campaign.
type CampaignParticipation struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	CampaignID     string    `gorm:"not null;uniqueIndex:idx_campaign_user,priority:1" json:"campaign_id"`
	ExternalUserID string    `gorm:"not null;uniqueIndex:idx_campaign_user,priority:2" json:"external_user_id"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// MysteryBoxOpen is one opened box. Cooldown derives from the latest row.
type MysteryBoxOpen struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"index;not null" json:"external_user_id"`
	PointsWon      int64     `gorm:"not null" json:"points_won"`
	OpenedAt       time.Time `gorm:"autoCreateTime;index" json:"opened_at"`
}

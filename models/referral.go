package models

import "time"

// Referral links a referred user to the referrer who brought them in.
// The uniqueIndex on ReferredID enforces the write-once attribution invariant
// at the database level — a second attribution attempt cannot create a row.
type Referral struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID string `gorm:"index;not null" json:"referrer_id"`       // ExternalUserID
	ReferredID string `gorm:"uniqueIndex;not null" json:"referred_id"` // ExternalUserID

	ReferralCodeUsed string `gorm:"not null" json:"referral_code_used"`

	Timestamps
}

// ReferralMilestone describes one rung of the referral reward ladder.
type ReferralMilestone struct {
	Count        int64  `json:"count"`
	Label        string `json:"label"`
	PointsReward int64  `json:"points_reward"`
	CashAmount   int64  `json:"cash_amount,omitempty"` // INR; fulfilled manually, never auto-disbursed
}

// ReferralMilestones is the fixed ladder, ascending by Count.
var ReferralMilestones = []ReferralMilestone{
	{Count: 3, Label: "Recruiter", PointsReward: 200},
	{Count: 10, Label: "Campus Connector", PointsReward: 1000},
	{Count: 50, Label: "Growth Legend", PointsReward: 2500, CashAmount: 500},
}

// ReferralMilestoneGrant records one granted milestone per referrer.
// The composite unique index makes CheckMilestones safe to call repeatedly.
type ReferralMilestoneGrant struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID     string `gorm:"not null;uniqueIndex:idx_referrer_milestone,priority:1" json:"referrer_id"`
	MilestoneCount int64  `gorm:"not null;uniqueIndex:idx_referrer_milestone,priority:2" json:"milestone_count"`

	// Fulfillment is "points" for ledger-settled milestones and "manual" for
	// cash payouts, which are handled by operations outside this service.
	Fulfillment string    `gorm:"not null;default:'points'" json:"fulfillment"`
	GrantedAt   time.Time `gorm:"autoCreateTime" json:"granted_at"`
}

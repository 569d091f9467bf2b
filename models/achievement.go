package models

import "time"

// StatKey names a counter an unlock rule can inspect on a stats snapshot.
type StatKey string

const (
	StatUploads           StatKey = "total_uploads"
	StatDownloadsReceived StatKey = "total_downloads_received"
	StatShares            StatKey = "total_shares"
	StatReferrals         StatKey = "total_referrals"
	StatStreakCurrent     StatKey = "streak_current"
	StatStreakLongest     StatKey = "streak_longest"
	StatPointsTotal       StatKey = "points_total"
	StatLevel             StatKey = "level"
)

// RuleKind tags the variant of an UnlockRule.
type RuleKind string

const (
	RuleThreshold RuleKind = "threshold" // Counter >= Min
	RuleAll       RuleKind = "all"       // every sub-rule satisfied
	RuleAny       RuleKind = "any"       // at least one sub-rule satisfied
)

// UnlockRule is a declarative predicate over a stats snapshot.
// Threshold rules use Counter/Min; compound rules use Sub.
type UnlockRule struct {
	Kind    RuleKind
	Counter StatKey
	Min     int64
	Sub     []UnlockRule
}

// Achievement: static catalog entry. The catalog lives in code (AchievementCatalog),
// only unlock state is persisted.
type Achievement struct {
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Category     string     `json:"category"` // uploads, social, streak, referral, level
	Rarity       string     `json:"rarity"`   // common, rare, epic, legendary
	PointsReward int64      `json:"points_reward"`
	Hidden       bool       `json:"-"` // not listed until unlocked
	Rule         UnlockRule `json:"-"`
}

// UserAchievement: awarded instance. The composite unique index is the
// at-most-once guard — concurrent evaluators racing on the same unlock
// resolve to exactly one row.
type UserAchievement struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID  string    `gorm:"not null;uniqueIndex:idx_user_achievement,priority:1" json:"external_user_id"`
	AchievementCode string    `gorm:"not null;uniqueIndex:idx_user_achievement,priority:2" json:"achievement_code"`
	UnlockedAt      time.Time `gorm:"autoCreateTime" json:"unlocked_at"`
	Shown           bool      `gorm:"default:false;index" json:"shown"`
}

// AchievementCatalog is the full static catalog, hidden entries included.
var AchievementCatalog = []Achievement{
	{
		Code: "FIRST_UPLOAD", Name: "First Note", Category: "uploads", Rarity: "common",
		Description:  "Uploaded your first note",
		PointsReward: 50,
		Rule:         UnlockRule{Kind: RuleThreshold, Counter: StatUploads, Min: 1},
	},
	{
		Code: "TEN_UPLOADS", Name: "Note Machine", Category: "uploads", Rarity: "rare",
		Description:  "Uploaded 10 notes",
		PointsReward: 200,
		Rule:         UnlockRule{Kind: RuleThreshold, Counter: StatUploads, Min: 10},
	},
	{
		Code: "CROWD_FAVOURITE", Name: "Crowd Favourite", Category: "uploads", Rarity: "epic",
		Description:  "Your notes were downloaded 50 times",
		PointsReward: 300,
		Rule:         UnlockRule{Kind: RuleThreshold, Counter: StatDownloadsReceived, Min: 50},
	},
	{
		Code: "STREAK_7", Name: "One Week Strong", Category: "streak", Rarity: "rare",
		Description:  "Kept a 7-day activity streak",
		PointsReward: 100,
		Rule:         UnlockRule{Kind: RuleThreshold, Counter: StatStreakLongest, Min: 7},
	},
	{
		Code: "STREAK_30", Name: "Iron Discipline", Category: "streak", Rarity: "epic",
		Description:  "Kept a 30-day activity streak",
		PointsReward: 500,
		Rule:         UnlockRule{Kind: RuleThreshold, Counter: StatStreakLongest, Min: 30},
	},
	{
		Code: "RECRUITER", Name: "Recruiter", Category: "referral", Rarity: "rare",
		Description:  "Brought 3 friends to the platform",
		PointsReward: 150,
		Rule:         UnlockRule{Kind: RuleThreshold, Counter: StatReferrals, Min: 3},
	},
	{
		Code: "SOCIAL_BUTTERFLY", Name: "Social Butterfly", Category: "social", Rarity: "common",
		Description:  "Shared notes 10 times",
		PointsReward: 100,
		Rule:         UnlockRule{Kind: RuleThreshold, Counter: StatShares, Min: 10},
	},
	{
		Code: "LEVEL_5", Name: "Senior Standing", Category: "level", Rarity: "epic",
		Description:  "Reached level 5",
		PointsReward: 250,
		Rule:         UnlockRule{Kind: RuleThreshold, Counter: StatLevel, Min: 5},
	},
	{
		Code: "CAMPUS_INFLUENCER", Name: "Campus Influencer", Category: "social", Rarity: "epic",
		Description:  "Either a heavy sharer or a heavy recruiter",
		PointsReward: 400,
		Rule: UnlockRule{Kind: RuleAny, Sub: []UnlockRule{
			{Kind: RuleThreshold, Counter: StatShares, Min: 25},
			{Kind: RuleThreshold, Counter: StatReferrals, Min: 5},
		}},
	},
	{
		Code: "POWER_USER", Name: "Power User", Category: "uploads", Rarity: "legendary",
		Description:  "10 uploads and a week-long streak",
		PointsReward: 750,
		Rule: UnlockRule{Kind: RuleAll, Sub: []UnlockRule{
			{Kind: RuleThreshold, Counter: StatUploads, Min: 10},
			{Kind: RuleThreshold, Counter: StatStreakLongest, Min: 7},
		}},
	},
	{
		Code: "EARLY_BIRD", Name: "Early Bird", Category: "social", Rarity: "legendary",
		Description:  "Uploaded a note and recruited a friend",
		PointsReward: 500,
		Hidden:       true, // surprise unlock, not listed in the public catalog
		Rule: UnlockRule{Kind: RuleAll, Sub: []UnlockRule{
			{Kind: RuleThreshold, Counter: StatUploads, Min: 1},
			{Kind: RuleThreshold, Counter: StatReferrals, Min: 1},
		}},
	},
	{
		Code: "POINT_COLLECTOR", Name: "Point Collector", Category: "level", Rarity: "rare",
		Description:  "Accumulated 1000 points",
		PointsReward: 100,
		Rule:         UnlockRule{Kind: RuleThreshold, Counter: StatPointsTotal, Min: 1000},
	},
}

// AchievementByCode returns the catalog entry for code, or nil.
func AchievementByCode(code string) *Achievement {
	for i := range AchievementCatalog {
		if AchievementCatalog[i].Code == code {
			return &AchievementCatalog[i]
		}
	}
	return nil
}

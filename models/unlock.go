package models

import "time"

// UnlockMethodKind tags how a gated content can be unlocked.
type UnlockMethodKind string

const (
	MethodSharePlatforms UnlockMethodKind = "share_platforms" // share to Min distinct platforms
	MethodReachLevel     UnlockMethodKind = "reach_level"
	MethodReferrals      UnlockMethodKind = "referrals"
	MethodStudyGroup     UnlockMethodKind = "join_study_group"
)

// UnlockMethod is one way to open a gated content. Methods combine with OR
// semantics — satisfying any single one unlocks the content.
type UnlockMethod struct {
	Kind  UnlockMethodKind `json:"kind"`
	Label string           `json:"label"`
	Min   int64            `json:"min,omitempty"` // platforms / level / referral count
}

// UnlockableContent: static catalog entry for a gated item.
type UnlockableContent struct {
	ContentID string         `json:"content_id"`
	Title     string         `json:"title"`
	Methods   []UnlockMethod `json:"methods"`
}

// UnlockableCatalog is the static gated-content catalog.
var UnlockableCatalog = []UnlockableContent{
	{
		ContentID: "premium-formula-pack",
		Title:     "Premium Formula Pack",
		Methods: []UnlockMethod{
			{Kind: MethodSharePlatforms, Label: "Share to 3 platforms", Min: 3},
			{Kind: MethodReachLevel, Label: "Reach level 3", Min: 3},
		},
	},
	{
		ContentID: "exam-survival-kit",
		Title:     "Exam Survival Kit",
		Methods: []UnlockMethod{
			{Kind: MethodSharePlatforms, Label: "Share to 3 platforms", Min: 3},
			{Kind: MethodReferrals, Label: "Refer 2 friends", Min: 2},
			{Kind: MethodStudyGroup, Label: "Join a study group"},
		},
	},
	{
		ContentID: "topper-notes-archive",
		Title:     "Topper Notes Archive",
		Methods: []UnlockMethod{
			{Kind: MethodReachLevel, Label: "Reach level 5", Min: 5},
			{Kind: MethodReferrals, Label: "Refer 5 friends", Min: 5},
		},
	},
}

// UnlockableByID returns the catalog entry for id, or nil.
func UnlockableByID(id string) *UnlockableContent {
	for i := range UnlockableCatalog {
		if UnlockableCatalog[i].ContentID == id {
			return &UnlockableCatalog[i]
		}
	}
	return nil
}

// ContentUnlockState tracks per-user gate state. Once UnlockedAt is set the
// content stays unlocked even if the triggering condition later turns false.
type ContentUnlockState struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"not null;uniqueIndex:idx_user_content,priority:1" json:"external_user_id"`
	ContentID      string `gorm:"not null;uniqueIndex:idx_user_content,priority:2" json:"content_id"`

	SatisfiedMethod *UnlockMethodKind `json:"satisfied_method,omitempty"`
	UnlockedAt      *time.Time        `json:"unlocked_at,omitempty"`
	JoinedGroup     bool              `gorm:"default:false" json:"joined_group"`

	Timestamps
}

// ContentShare records one (user, content, platform) share. The composite
// unique index is what makes the platform set grow-only — resharing to the
// same platform never double counts.
type ContentShare struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"not null;uniqueIndex:idx_share,priority:1" json:"external_user_id"`
	ContentID      string    `gorm:"not null;uniqueIndex:idx_share,priority:2" json:"content_id"`
	Platform       string    `gorm:"not null;uniqueIndex:idx_share,priority:3" json:"platform"` // whatsapp, instagram, …
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

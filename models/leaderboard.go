package models

import "time"

// LeaderboardScope is an independent ranking partition.
type LeaderboardScope string

const (
	ScopeGlobal     LeaderboardScope = "global"
	ScopeCollege    LeaderboardScope = "college"
	ScopeDepartment LeaderboardScope = "department"
)

// LeaderboardSnapshot is a derived, disposable ranking row. Never
// authoritative — the ledger is. Staleness is bounded by the refresh worker.
type LeaderboardSnapshot struct {
	ID       uint             `gorm:"primaryKey" json:"-"`
	Scope    LeaderboardScope `gorm:"index:idx_scope_rank,priority:1;not null" json:"scope"`
	ScopeKey string           `gorm:"index:idx_scope_rank,priority:2;not null" json:"scope_key"` // "" for global, slug otherwise
	UserID   string           `gorm:"index;not null" json:"user_id"`
	Rank     int              `gorm:"index:idx_scope_rank,priority:3;not null" json:"rank"`
	Score    int64            `gorm:"not null" json:"score"`

	ComputedAt time.Time `gorm:"index;not null" json:"computed_at"`
}

// LeaderboardEntry is the API shape of one ranking row.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	College    string `json:"college,omitempty"`
	Department string `json:"department,omitempty"`
	Score      int64  `json:"score"`
	Level      int    `json:"level"`
}

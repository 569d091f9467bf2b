package services

import (
	"fmt"
	"time"

	"notes-gamification-system/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// SnapshotStalenessBound is the documented maximum age of a served snapshot.
// The refresh worker runs at half this interval; anything older falls back to
// a live computation.
const SnapshotStalenessBound = 60 * time.Second

// LeaderboardService produces ranked views over the ledger-derived standings.
type LeaderboardService struct {
	DB *gorm.DB
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db}
}

// ScopeKey normalizes a free-text college/department name into a stable
// partition key ("IIT Delhi" → "iit-delhi"). Global uses the empty key.
func ScopeKey(name string) string {
	return slug.Make(name)
}

// rankedRow is one live-computed ranking row.
type rankedRow struct {
	UserID     string
	Username   string
	College    string
	Department string
	Score      int64
	Level      int
}

// rankLive computes the full deterministic ordering for one scope partition:
// score descending, account created_at ascending on ties (earlier account
// wins), user id as the final stabilizer.
func (s *LeaderboardService) rankLive(scope models.LeaderboardScope, scopeKey string) ([]rankedRow, error) {
	q := s.DB.Model(&models.UserStanding{}).
		Select(`user_standings.external_user_id AS user_id,
			COALESCE(profile_mirrors.username, '') AS username,
			COALESCE(profile_mirrors.college, '') AS college,
			COALESCE(profile_mirrors.department, '') AS department,
			user_standings.points_total AS score,
			user_standings.level AS level`).
		Joins("LEFT JOIN profile_mirrors ON profile_mirrors.external_user_id = user_standings.external_user_id").
		Order("user_standings.points_total DESC, profile_mirrors.account_created_at ASC, user_standings.external_user_id ASC")

	var rows []rankedRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	if scope == models.ScopeGlobal {
		return rows, nil
	}

	filtered := rows[:0]
	for _, r := range rows {
		var key string
		switch scope {
		case models.ScopeCollege:
			key = ScopeKey(r.College)
		case models.ScopeDepartment:
			key = ScopeKey(r.Department)
		}
		if key != "" && key == scopeKey {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// RankView is the API response for one scope.
type RankView struct {
	Scope      models.LeaderboardScope   `json:"scope"`
	ScopeKey   string                    `json:"scope_key,omitempty"`
	Rankings   []models.LeaderboardEntry `json:"rankings"`
	UserRank   int                       `json:"user_rank"` // 0 when the user has no score in scope
	TotalUsers int64                     `json:"total_users"`
	ComputedAt time.Time                 `json:"computed_at"`
}

// Rank serves the ranked view for a scope. Snapshots are used while within
// the staleness bound; otherwise the ranking is computed live. user_rank is
// always resolved for userID, even outside the returned top-N window.
func (s *LeaderboardService) Rank(scope models.LeaderboardScope, userID string, topN int) (*RankView, error) {
	if topN <= 0 || topN > 100 {
		topN = 20
	}
	scopeKey, err := s.scopeKeyForUser(scope, userID)
	if err != nil {
		return nil, err
	}

	view := &RankView{Scope: scope, ScopeKey: scopeKey}

	var snaps []models.LeaderboardSnapshot
	if err := s.DB.Where("scope = ? AND scope_key = ?", scope, scopeKey).
		Order("rank ASC").
		Find(&snaps).Error; err != nil {
		return nil, err
	}

	fresh := len(snaps) > 0 && time.Since(snaps[0].ComputedAt) <= SnapshotStalenessBound
	if fresh {
		view.ComputedAt = snaps[0].ComputedAt
		view.TotalUsers = int64(len(snaps))
		for _, snap := range snaps {
			if snap.UserID == userID {
				view.UserRank = snap.Rank
			}
			if snap.Rank <= topN {
				view.Rankings = append(view.Rankings, s.entryFor(snap))
			}
		}
		return view, nil
	}

	rows, err := s.rankLive(scope, scopeKey)
	if err != nil {
		return nil, err
	}
	view.ComputedAt = time.Now()
	view.TotalUsers = int64(len(rows))
	for i, r := range rows {
		if r.UserID == userID {
			view.UserRank = i + 1
		}
		if i < topN {
			view.Rankings = append(view.Rankings, models.LeaderboardEntry{
				Rank: i + 1, UserID: r.UserID, Username: r.Username,
				College: r.College, Department: r.Department,
				Score: r.Score, Level: r.Level,
			})
		}
	}
	return view, nil
}

// scopeKeyForUser resolves which partition the caller belongs to.
func (s *LeaderboardService) scopeKeyForUser(scope models.LeaderboardScope, userID string) (string, error) {
	if scope == models.ScopeGlobal {
		return "", nil
	}
	var mirror models.ProfileMirror
	err := s.DB.Where("external_user_id = ?", userID).First(&mirror).Error
	if err == gorm.ErrRecordNotFound {
		return "", fmt.Errorf("%w: no profile for user %s — cannot resolve %s scope", ErrNotFound, userID, scope)
	}
	if err != nil {
		return "", err
	}
	switch scope {
	case models.ScopeCollege:
		return ScopeKey(mirror.College), nil
	case models.ScopeDepartment:
		return ScopeKey(mirror.Department), nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrValidation, scope)
}

// entryFor hydrates a snapshot row into the API entry shape.
func (s *LeaderboardService) entryFor(snap models.LeaderboardSnapshot) models.LeaderboardEntry {
	entry := models.LeaderboardEntry{Rank: snap.Rank, UserID: snap.UserID, Score: snap.Score}
	var mirror models.ProfileMirror
	if err := s.DB.Where("external_user_id = ?", snap.UserID).First(&mirror).Error; err == nil {
		entry.Username = mirror.Username
		entry.College = mirror.College
		entry.Department = mirror.Department
	}
	var standing models.UserStanding
	if err := s.DB.Where("external_user_id = ?", snap.UserID).First(&standing).Error; err == nil {
		entry.Level = standing.Level
	}
	return entry
}

// RefreshSnapshots recomputes every scope partition. Partitions for different
// users are independent; only eventual convergence within the staleness bound
// matters, so the whole rewrite happens in one transaction per scope.
func (s *LeaderboardService) RefreshSnapshots() error {
	now := time.Now()

	if err := s.refreshPartition(models.ScopeGlobal, "", now); err != nil {
		return err
	}

	for scope, column := range map[models.LeaderboardScope]string{
		models.ScopeCollege:    "college",
		models.ScopeDepartment: "department",
	} {
		var names []string
		if err := s.DB.Model(&models.ProfileMirror{}).
			Distinct(column).
			Where(column+" <> ''").
			Pluck(column, &names).Error; err != nil {
			return err
		}
		seen := map[string]bool{}
		for _, name := range names {
			key := ScopeKey(name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if err := s.refreshPartition(scope, key, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *LeaderboardService) refreshPartition(scope models.LeaderboardScope, scopeKey string, now time.Time) error {
	rows, err := s.rankLive(scope, scopeKey)
	if err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scope = ? AND scope_key = ?", scope, scopeKey).
			Delete(&models.LeaderboardSnapshot{}).Error; err != nil {
			return err
		}
		for i, r := range rows {
			snap := models.LeaderboardSnapshot{
				Scope: scope, ScopeKey: scopeKey,
				UserID: r.UserID, Rank: i + 1, Score: r.Score,
				ComputedAt: now,
			}
			if err := tx.Create(&snap).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GlobalSnapshotJSONKey is the object key the global snapshot is published
// under when R2 publishing is configured.
const GlobalSnapshotJSONKey = "leaderboards/global.json"

// GlobalTop returns the current global top-N (snapshot-backed) for export.
func (s *LeaderboardService) GlobalTop(n int) ([]models.LeaderboardEntry, error) {
	view, err := s.Rank(models.ScopeGlobal, "", n)
	if err != nil {
		return nil, err
	}
	return view.Rankings, nil
}

func init() {
	// ranking partitions depend on stable keys; pin the default explicitly
	slug.Lowercase = true
}

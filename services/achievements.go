package services

import (
	"fmt"
	"log"

	"notes-gamification-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AchievementService evaluates the declarative rule catalog against a user's
// stats snapshot and grants unlocks at-most-once.
type AchievementService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewAchievementService(db *gorm.DB, ledger *LedgerService) *AchievementService {
	return &AchievementService{DB: db, Ledger: ledger}
}

// StatsSnapshot is the read-only counter view rules evaluate against.
type StatsSnapshot struct {
	TotalUploads           int64
	TotalDownloadsReceived int64
	TotalShares            int64
	TotalReferrals         int64
	StreakCurrent          int64
	StreakLongest          int64
	PointsTotal            int64
	Level                  int64
}

func (snap *StatsSnapshot) counter(key models.StatKey) int64 {
	switch key {
	case models.StatUploads:
		return snap.TotalUploads
	case models.StatDownloadsReceived:
		return snap.TotalDownloadsReceived
	case models.StatShares:
		return snap.TotalShares
	case models.StatReferrals:
		return snap.TotalReferrals
	case models.StatStreakCurrent:
		return snap.StreakCurrent
	case models.StatStreakLongest:
		return snap.StreakLongest
	case models.StatPointsTotal:
		return snap.PointsTotal
	case models.StatLevel:
		return snap.Level
	}
	return 0
}

// ruleSatisfied evaluates a declarative rule against the snapshot.
func ruleSatisfied(rule models.UnlockRule, snap *StatsSnapshot) bool {
	switch rule.Kind {
	case models.RuleThreshold:
		return snap.counter(rule.Counter) >= rule.Min
	case models.RuleAll:
		for _, sub := range rule.Sub {
			if !ruleSatisfied(sub, snap) {
				return false
			}
		}
		return len(rule.Sub) > 0
	case models.RuleAny:
		for _, sub := range rule.Sub {
			if ruleSatisfied(sub, snap) {
				return true
			}
		}
		return false
	}
	return false
}

// Snapshot builds the current stats view for a user.
func (s *AchievementService) Snapshot(userID string) (*StatsSnapshot, error) {
	standing, err := s.Ledger.GetStanding(userID)
	if err != nil {
		return nil, err
	}
	return &StatsSnapshot{
		TotalUploads:           standing.TotalUploads,
		TotalDownloadsReceived: standing.TotalDownloadsReceived,
		TotalShares:            standing.TotalShares,
		TotalReferrals:         standing.TotalReferrals,
		StreakCurrent:          int64(standing.StreakCurrent),
		StreakLongest:          int64(standing.StreakLongest),
		PointsTotal:            standing.PointsTotal,
		Level:                  int64(standing.Level),
	}, nil
}

// Evaluate checks every catalog rule and unlocks anything newly satisfied.
// Unlock rewards land in the ledger, which can itself satisfy further rules
// (points/level thresholds), so evaluation loops until a fixpoint.
func (s *AchievementService) Evaluate(userID string) ([]models.Achievement, error) {
	var unlocked []models.Achievement
	for pass := 0; pass < 5; pass++ {
		snap, err := s.Snapshot(userID)
		if err != nil {
			return unlocked, err
		}
		newly, err := s.evaluateOnce(userID, snap)
		if err != nil {
			return unlocked, err
		}
		unlocked = append(unlocked, newly...)
		if len(newly) == 0 {
			break
		}
	}
	return unlocked, nil
}

func (s *AchievementService) evaluateOnce(userID string, snap *StatsSnapshot) ([]models.Achievement, error) {
	var newly []models.Achievement
	for _, a := range models.AchievementCatalog {
		if !ruleSatisfied(a.Rule, snap) {
			continue
		}
		ua := models.UserAchievement{
			ID:              uuid.NewString(),
			ExternalUserID:  userID,
			AchievementCode: a.Code,
		}
		if err := s.DB.Create(&ua).Error; err != nil {
			if isUniqueViolation(err) {
				continue // already unlocked (possibly by a concurrent trigger)
			}
			return newly, err
		}

		achievementsUnlockedTotal.Inc()
		log.Printf("[ACHIEVE] 🏆 %s unlocked %q (+%d pts)", userID, a.Name, a.PointsReward)

		if a.PointsReward > 0 {
			// Synthetic event key derived from (user, code) — the reward is
			// idempotent on its own even if the unlock path is retried.
			if _, err := s.Ledger.Award(userID, a.PointsReward,
				"achievement:"+a.Code,
				fmt.Sprintf("achievement:%s:%s", userID, a.Code)); err != nil {
				return newly, err
			}
		}
		newly = append(newly, a)
	}
	return newly, nil
}

// Unlocked lists a user's unlocked achievements, newest first.
func (s *AchievementService) Unlocked(userID string) ([]models.UserAchievement, error) {
	var rows []models.UserAchievement
	err := s.DB.Where("external_user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&rows).Error
	return rows, err
}

// RecentUnshown returns the newest unlock not yet shown to the user, or nil.
func (s *AchievementService) RecentUnshown(userID string) (*models.UserAchievement, error) {
	var ua models.UserAchievement
	err := s.DB.Where("external_user_id = ? AND shown = ?", userID, false).
		Order("unlocked_at DESC").
		First(&ua).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ua, nil
}

// MarkShown flags an unlock as delivered to the UI.
func (s *AchievementService) MarkShown(userID, code string) error {
	res := s.DB.Model(&models.UserAchievement{}).
		Where("external_user_id = ? AND achievement_code = ?", userID, code).
		Update("shown", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: achievement %s not unlocked for user", ErrNotFound, code)
	}
	return nil
}

// AchievementStats is the aggregate progress view.
type AchievementStats struct {
	TotalAchievements    int            `json:"total_achievements"`
	UnlockedCount        int            `json:"unlocked"`
	CompletionPercentage float64        `json:"completion_percentage"`
	RarityBreakdown      map[string]int `json:"rarity_breakdown"`
}

// Stats aggregates unlock progress. Hidden achievements count toward totals
// only once unlocked, so the completion bar can actually reach 100%.
func (s *AchievementService) Stats(userID string) (*AchievementStats, error) {
	rows, err := s.Unlocked(userID)
	if err != nil {
		return nil, err
	}
	unlockedSet := make(map[string]bool, len(rows))
	for _, r := range rows {
		unlockedSet[r.AchievementCode] = true
	}

	stats := &AchievementStats{RarityBreakdown: map[string]int{}}
	for _, a := range models.AchievementCatalog {
		if a.Hidden && !unlockedSet[a.Code] {
			continue
		}
		stats.TotalAchievements++
		if unlockedSet[a.Code] {
			stats.UnlockedCount++
			stats.RarityBreakdown[a.Rarity]++
		}
	}
	if stats.TotalAchievements > 0 {
		stats.CompletionPercentage = float64(stats.UnlockedCount) / float64(stats.TotalAchievements) * 100
	}
	return stats, nil
}

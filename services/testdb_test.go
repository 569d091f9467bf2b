package services

import (
	"path/filepath"
	"testing"
	"time"

	"notes-gamification-system/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway sqlite database with the full schema. A single
// connection keeps sqlite's locking out of the way while still exercising the
// same unique constraints the postgres schema relies on.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gamification.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.ProfileMirror{},
		&models.UserStanding{},
		&models.PointTransaction{},
		&models.UserAchievement{},
		&models.Referral{},
		&models.ReferralMilestoneGrant{},
		&models.LeaderboardSnapshot{},
		&models.ContentUnlockState{},
		&models.ContentShare{},
		&models.Campaign{},
		&models.CampaignParticipation{},
		&models.MysteryBoxOpen{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// newEngine wires the full service graph over one test database.
type engine struct {
	DB           *gorm.DB
	Ledger       *LedgerService
	Streaks      *StreakService
	Achievements *AchievementService
	Referrals    *ReferralService
	Leaderboards *LeaderboardService
	Unlocks      *UnlockService
	Campaigns    *CampaignService
	Ingest       *IngestService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	streaks := NewStreakService(db, ledger)
	achievements := NewAchievementService(db, ledger)
	referrals := NewReferralService(db, ledger, achievements)
	unlocks := NewUnlockService(db, ledger)
	campaigns := NewCampaignService(db, ledger)
	return &engine{
		DB: db, Ledger: ledger, Streaks: streaks, Achievements: achievements,
		Referrals: referrals, Leaderboards: NewLeaderboardService(db),
		Unlocks: unlocks, Campaigns: campaigns,
		Ingest: NewIngestService(db, ledger, streaks, achievements, referrals, unlocks, campaigns),
	}
}

// seedMirror inserts a profile mirror row for leaderboard scope tests.
func seedMirror(t *testing.T, db *gorm.DB, userID, username, college, department string, createdAt int64) {
	t.Helper()
	m := models.ProfileMirror{
		ID:               "mirror-" + userID,
		ExternalUserID:   userID,
		Username:         username,
		College:          college,
		Department:       department,
		AccountCreatedAt: time.Unix(createdAt, 0),
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed mirror %s: %v", userID, err)
	}
}

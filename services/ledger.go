package services

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"
	"time"

	"notes-gamification-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns the append-only points ledger and the cached standing
// derived from it. All point mutations in the engine go through Award.
type LedgerService struct {
	DB *gorm.DB

	// Striped per-user locks serialize read-modify-write on a user's standing
	// within this process. The uniqueIndex on source_event_id is the
	// cross-instance backstop.
	locks [64]sync.Mutex
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

func (s *LedgerService) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

// AwardResult reports the outcome of one Award call.
type AwardResult struct {
	Standing  *models.UserStanding
	LeveledUp bool
	// Duplicate is true when SourceEventID was already applied. Callers treat
	// this as success — the ledger row exists exactly once.
	Duplicate bool
}

// Award appends one ledger row and updates the cached standing atomically.
// Re-submitting the same sourceEventID is a success-no-op that returns the
// current state without a second row.
func (s *LedgerService) Award(userID string, amount int64, reason, sourceEventID string) (*AwardResult, error) {
	return s.AwardWithCounter(userID, amount, reason, sourceEventID, "")
}

// AwardWithCounter is Award plus an activity-counter bump (a StatKey column on
// the standing) applied in the same transaction as the ledger insert. The
// counter therefore moves exactly when the ledger row is created — a replayed
// event bumps nothing.
func (s *LedgerService) AwardWithCounter(userID string, amount int64, reason, sourceEventID string, counter models.StatKey) (*AwardResult, error) {
	if userID == "" || sourceEventID == "" {
		return nil, fmt.Errorf("%w: user_id and source_event_id are required", ErrValidation)
	}
	if amount < 0 && !strings.HasPrefix(reason, "correction:") {
		return nil, fmt.Errorf("%w: negative amounts are reserved for corrections", ErrValidation)
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	result := &AwardResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		txn := models.PointTransaction{
			ID:            uuid.NewString(),
			UserID:        userID,
			Amount:        amount,
			Reason:        reason,
			SourceEventID: sourceEventID,
		}
		if err := tx.Create(&txn).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateEvent, sourceEventID)
			}
			return err
		}

		standing, err := s.ensureStandingTx(tx, userID)
		if err != nil {
			return err
		}

		// Cache updates are atomic column increments, never read-modify-write:
		// another instance committing between our read and our write must not
		// be overwritten — points_total has to stay equal to the ledger sum.
		updates := map[string]interface{}{
			"points_total": gorm.Expr("points_total + ?", amount),
		}
		switch counter {
		case models.StatUploads:
			updates["total_uploads"] = gorm.Expr("total_uploads + 1")
		case models.StatDownloadsReceived:
			updates["total_downloads_received"] = gorm.Expr("total_downloads_received + 1")
		case models.StatShares:
			updates["total_shares"] = gorm.Expr("total_shares + 1")
		}
		if err := tx.Model(&models.UserStanding{}).
			Where("external_user_id = ?", userID).
			Updates(updates).Error; err != nil {
			return err
		}

		// Level derives from the post-increment total, so re-read it.
		if err := tx.Where("external_user_id = ?", userID).First(standing).Error; err != nil {
			return err
		}
		newLevel := LevelForPoints(standing.PointsTotal)
		if newLevel != standing.Level {
			levelUpdates := map[string]interface{}{"level": newLevel}
			if newLevel > standing.Level {
				now := time.Now()
				levelUpdates["last_level_up_at"] = now
				standing.LastLevelUpAt = &now
				result.LeveledUp = true
			}
			if err := tx.Model(&models.UserStanding{}).
				Where("external_user_id = ?", userID).
				Updates(levelUpdates).Error; err != nil {
				return err
			}
			standing.Level = newLevel
		}
		result.Standing = standing
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			// Replay: report current state, no second row.
			standing, loadErr := s.GetStanding(userID)
			if loadErr != nil {
				return nil, loadErr
			}
			log.Printf("[LEDGER] ♻️ Duplicate event absorbed: user=%s event=%s", userID, sourceEventID)
			return &AwardResult{Standing: standing, Duplicate: true}, nil
		}
		return nil, err
	}

	pointsAwardedTotal.Add(float64(amount))
	log.Printf("[LEDGER] ✅ +%d pts → %s (reason: %s, total=%d, lvl=%d)",
		amount, userID, reason, result.Standing.PointsTotal, result.Standing.Level)
	return result, nil
}

// GetStanding loads (creating if needed) the standing for a user.
func (s *LedgerService) GetStanding(userID string) (*models.UserStanding, error) {
	var standing *models.UserStanding
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		standing, txErr = s.ensureStandingTx(tx, userID)
		return txErr
	})
	return standing, err
}

// ensureStandingTx fetches a user's standing inside tx, creating a fresh row
// (with a generated referral code) on first contact.
func (s *LedgerService) ensureStandingTx(tx *gorm.DB, userID string) (*models.UserStanding, error) {
	var standing models.UserStanding
	err := tx.Where("external_user_id = ?", userID).First(&standing).Error
	if err == nil {
		return &standing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	fresh := models.UserStanding{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Level:          1,
		ReferralCode:   GenerateReferralCode(),
	}
	// DO NOTHING instead of failing on a creation race: a plain insert error
	// would abort the surrounding postgres transaction and poison every
	// statement after it, so the race must never produce an error at all.
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, err
	}
	// Re-read either way — on conflict the persisted row is the other writer's.
	if err := tx.Where("external_user_id = ?", userID).First(&standing).Error; err != nil {
		return nil, err
	}
	return &standing, nil
}

// RecomputeTotal re-derives points_total from the ledger and repairs the
// cache if it drifted. Returns the authoritative sum.
func (s *LedgerService) RecomputeTotal(userID string) (int64, error) {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	var sum int64
	if err := s.DB.Model(&models.PointTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; err != nil {
		return 0, err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		standing, err := s.ensureStandingTx(tx, userID)
		if err != nil {
			return err
		}
		if standing.PointsTotal != sum {
			log.Printf("[LEDGER] ⚠️ Standing drift for %s: cached=%d ledger=%d — repairing",
				userID, standing.PointsTotal, sum)
			return tx.Model(&models.UserStanding{}).
				Where("external_user_id = ?", userID).
				Updates(map[string]interface{}{
					"points_total": sum,
					"level":        LevelForPoints(sum),
				}).Error
		}
		return nil
	})
	return sum, err
}

// GenerateReferralCode mints a short shareable code, e.g. "STUDY-3FA9C1".
func GenerateReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "STUDY-" + strings.ToUpper(raw[:6])
}

package services

import (
	"fmt"
	"log"
	"time"

	"notes-gamification-system/models"

	"gorm.io/gorm"
)

// DailyStreakPoints is the bonus for the first qualifying activity of a day.
const DailyStreakPoints = 5

// StreakDateLayout: day boundaries use a single server clock in UTC. Events
// are date-truncated with this layout before any comparison.
const StreakDateLayout = "2006-01-02"

// StreakService runs the per-user daily-activity state machine.
type StreakService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewStreakService(db *gorm.DB, ledger *LedgerService) *StreakService {
	return &StreakService{DB: db, Ledger: ledger}
}

// TouchResult reports a streak transition.
type TouchResult struct {
	StreakCurrent int    `json:"current_streak"`
	StreakLongest int    `json:"longest_streak"`
	Date          string `json:"last_activity_date"`
	// Extended is true when this touch started or grew the streak (i.e., it
	// was the first qualifying activity of the day).
	Extended bool `json:"-"`
}

// Touch registers qualifying activity at time t and applies the transition:
// same day → no-op; next day → increment; gap → reset to 1. Longest only ever
// merges via max, so out-of-order or replayed deliveries cannot shrink it.
// The first touch of a day also grants the daily streak bonus through the
// ledger (self-idempotent event key).
func (s *StreakService) Touch(userID string, t time.Time) (*TouchResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	day := t.UTC().Format(StreakDateLayout)

	mu := s.Ledger.lockFor(userID)
	mu.Lock()

	res := &TouchResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		standing, err := s.Ledger.ensureStandingTx(tx, userID)
		if err != nil {
			return err
		}

		switch {
		case standing.LastActivityDate == nil || *standing.LastActivityDate == "":
			standing.StreakCurrent = 1
			standing.LastActivityDate = &day
			res.Extended = true
		case *standing.LastActivityDate == day:
			// idempotent same-day check-in
		case day < *standing.LastActivityDate:
			// stale out-of-order delivery; state already ahead
		case nextDay(*standing.LastActivityDate) == day:
			standing.StreakCurrent++
			standing.LastActivityDate = &day
			res.Extended = true
		default:
			standing.StreakCurrent = 1
			standing.LastActivityDate = &day
			res.Extended = true
		}

		if standing.StreakCurrent > standing.StreakLongest {
			standing.StreakLongest = standing.StreakCurrent
		}
		res.StreakCurrent = standing.StreakCurrent
		res.StreakLongest = standing.StreakLongest
		res.Date = *standing.LastActivityDate
		// Only the streak columns: a full-row save would write back the
		// points_total we read, clobbering awards committed meanwhile.
		return tx.Model(&models.UserStanding{}).
			Where("external_user_id = ?", userID).
			Updates(map[string]interface{}{
				"streak_current":     standing.StreakCurrent,
				"streak_longest":     standing.StreakLongest,
				"last_activity_date": standing.LastActivityDate,
			}).Error
	})
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	if res.Extended {
		// Award after releasing the user lock — Award takes it again. The
		// per-day event key makes a racing double-touch harmless.
		if _, err := s.Ledger.Award(userID, DailyStreakPoints, "daily_streak",
			fmt.Sprintf("streak:%s:%s", userID, day)); err != nil {
			return nil, err
		}
		log.Printf("[STREAK] 🔥 %s → day %d (longest %d)", userID, res.StreakCurrent, res.StreakLongest)
	}
	return res, nil
}

// NextMilestone returns the next streak milestone above current (0 when past
// the ladder).
func NextMilestone(current int) int {
	for _, m := range []int{7, 30, 100} {
		if current < m {
			return m
		}
	}
	return 0
}

// nextDay advances a StreakDateLayout date string by one calendar day.
func nextDay(day string) string {
	t, err := time.Parse(StreakDateLayout, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, 1).Format(StreakDateLayout)
}

// Standing returns the streak view for the API.
func (s *StreakService) Standing(userID string) (*models.UserStanding, error) {
	return s.Ledger.GetStanding(userID)
}

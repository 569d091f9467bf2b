package services

import (
	"fmt"
	"log"
	"math"
	"time"

	"notes-gamification-system/models"

	"gorm.io/gorm"
)

// PointWeights define base point values per event type (tunable via env later)
type PointWeights struct {
	UploadPoints           int64
	DownloadReceivedPoints int64
	SharePoints            int64
}

var DefaultPointWeights = PointWeights{
	UploadPoints:           100,
	DownloadReceivedPoints: 5,
	SharePoints:            10,
}

// Event types accepted by the ingest pipeline.
const (
	EventNoteUploaded   = "note_uploaded"
	EventNoteDownloaded = "note_downloaded"
	EventNoteShared     = "note_shared"
	EventDailyCheckin   = "daily_checkin"
	EventReferralSignup = "referral_signup"
)

// Event is one domain event from a collaborator (notes service, share
// buttons, signup flow). UserID is the user whose standing the event credits;
// ActorID, when different, is the user who performed the action (e.g., the
// downloader of UserID's note).
type Event struct {
	Type          string            `json:"type"`
	UserID        string            `json:"user_id"`
	ActorID       string            `json:"actor_id,omitempty"`
	SourceEventID string            `json:"source_event_id"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// IngestService is the single entry point translating collaborator events
// into ledger mutations and downstream evaluation.
type IngestService struct {
	DB           *gorm.DB
	Ledger       *LedgerService
	Streaks      *StreakService
	Achievements *AchievementService
	Referrals    *ReferralService
	Unlocks      *UnlockService
	Campaigns    *CampaignService
	Weights      PointWeights
}

func NewIngestService(db *gorm.DB, ledger *LedgerService, streaks *StreakService,
	achievements *AchievementService, referrals *ReferralService,
	unlocks *UnlockService, campaigns *CampaignService) *IngestService {
	return &IngestService{
		DB: db, Ledger: ledger, Streaks: streaks, Achievements: achievements,
		Referrals: referrals, Unlocks: unlocks, Campaigns: campaigns,
		Weights: DefaultPointWeights,
	}
}

// ProcessEvent applies one event end to end: counter bump, multiplied ledger
// award, streak touch, then achievement evaluation. Redelivered events are
// absorbed by the ledger's idempotency key and report success. Leaderboard
// refresh is deliberately not here — the snapshot worker converges on its own
// schedule, so ingest never blocks on cross-user work.
func (s *IngestService) ProcessEvent(ev Event) error {
	if ev.Type == "" || ev.UserID == "" || ev.SourceEventID == "" {
		return fmt.Errorf("%w: type, user_id and source_event_id are required", ErrValidation)
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	switch ev.Type {
	case EventNoteUploaded:
		if err := s.award(ev.UserID, s.Weights.UploadPoints, ev, models.StatUploads); err != nil {
			return err
		}
		if _, err := s.Streaks.Touch(ev.UserID, ev.OccurredAt); err != nil {
			return err
		}

	case EventNoteDownloaded:
		// Credits the note's uploader; the downloader (actor) gets streak
		// credit for being active.
		if err := s.award(ev.UserID, s.Weights.DownloadReceivedPoints, ev, models.StatDownloadsReceived); err != nil {
			return err
		}
		if ev.ActorID != "" && ev.ActorID != ev.UserID {
			if _, err := s.Streaks.Touch(ev.ActorID, ev.OccurredAt); err != nil {
				return err
			}
		}

	case EventNoteShared:
		if err := s.award(ev.UserID, s.Weights.SharePoints, ev, models.StatShares); err != nil {
			return err
		}
		if _, err := s.Streaks.Touch(ev.UserID, ev.OccurredAt); err != nil {
			return err
		}
		// Shares aimed at a gated content also advance its platform set.
		if contentID := ev.Meta["content_id"]; contentID != "" {
			if _, err := s.Unlocks.RecordShare(ev.UserID, contentID, ev.Meta["platform"]); err != nil {
				return err
			}
		}

	case EventDailyCheckin:
		if _, err := s.Streaks.Touch(ev.UserID, ev.OccurredAt); err != nil {
			return err
		}

	case EventReferralSignup:
		code := ev.Meta["referral_code"]
		if code == "" {
			return fmt.Errorf("%w: referral_signup requires meta.referral_code", ErrValidation)
		}
		if _, err := s.Referrals.Attribute(code, ev.UserID); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, ev.Type)
	}

	eventsIngestedTotal.WithLabelValues(ev.Type).Inc()

	if _, err := s.Achievements.Evaluate(ev.UserID); err != nil {
		return err
	}
	if ev.ActorID != "" && ev.ActorID != ev.UserID {
		if _, err := s.Achievements.Evaluate(ev.ActorID); err != nil {
			return err
		}
	}
	return nil
}

// award settles base points scaled by the user's campaign multiplier. The
// counter bump rides in the same ledger transaction, so a replayed event
// (dedup no-op) moves neither points nor counters.
func (s *IngestService) award(userID string, base int64, ev Event, counter models.StatKey) error {
	mult, err := s.Campaigns.MultiplierFor(userID, ev.OccurredAt)
	if err != nil {
		return err
	}
	amount := base
	if mult > 1 {
		amount = int64(math.Round(float64(base) * mult))
		log.Printf("[INGEST] ⚡ Campaign multiplier %.1fx for %s: %d → %d pts", mult, userID, base, amount)
	}
	_, err = s.Ledger.AwardWithCounter(userID, amount, ev.Type, ev.SourceEventID, counter)
	return err
}

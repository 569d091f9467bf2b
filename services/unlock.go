package services

import (
	"fmt"
	"log"
	"time"

	"notes-gamification-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnlockService resolves OR-combinations of unlock conditions for gated
// content. Content is locked by default and never re-locks.
type UnlockService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewUnlockService(db *gorm.DB, ledger *LedgerService) *UnlockService {
	return &UnlockService{DB: db, Ledger: ledger}
}

// IsUnlocked reports the gate state for (user, content).
func (s *UnlockService) IsUnlocked(userID, contentID string) (bool, error) {
	state, err := s.state(userID, contentID)
	if err != nil {
		return false, err
	}
	return state != nil && state.UnlockedAt != nil, nil
}

func (s *UnlockService) state(userID, contentID string) (*models.ContentUnlockState, error) {
	var state models.ContentUnlockState
	err := s.DB.Where("external_user_id = ? AND content_id = ?", userID, contentID).
		First(&state).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// RecordShare registers a share to one platform for share-gated content. The
// platform set only grows — resharing to the same platform is a no-op.
// Returns the distinct-platform count after the share.
func (s *UnlockService) RecordShare(userID, contentID, platform string) (int64, error) {
	if platform == "" {
		return 0, fmt.Errorf("%w: platform is required", ErrValidation)
	}
	if models.UnlockableByID(contentID) == nil {
		return 0, fmt.Errorf("%w: content %s", ErrNotFound, contentID)
	}

	share := models.ContentShare{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		ContentID:      contentID,
		Platform:       platform,
	}
	if err := s.DB.Create(&share).Error; err != nil && !isUniqueViolation(err) {
		return 0, err
	}

	var count int64
	if err := s.DB.Model(&models.ContentShare{}).
		Where("external_user_id = ? AND content_id = ?", userID, contentID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	if err := s.evaluateGate(userID, contentID); err != nil {
		return count, err
	}
	return count, nil
}

// RecordProgress advances one unlock method. detail carries the method
// argument (platform name for shares; ignored otherwise).
func (s *UnlockService) RecordProgress(userID, contentID string, method models.UnlockMethodKind, detail string) error {
	content := models.UnlockableByID(contentID)
	if content == nil {
		return fmt.Errorf("%w: content %s", ErrNotFound, contentID)
	}
	configured := false
	for _, m := range content.Methods {
		if m.Kind == method {
			configured = true
			break
		}
	}
	if !configured {
		return fmt.Errorf("%w: method %s is not configured for %s", ErrValidation, method, contentID)
	}

	switch method {
	case models.MethodSharePlatforms:
		_, err := s.RecordShare(userID, contentID, detail)
		return err
	case models.MethodStudyGroup:
		if err := s.ensureState(userID, contentID); err != nil {
			return err
		}
		if err := s.DB.Model(&models.ContentUnlockState{}).
			Where("external_user_id = ? AND content_id = ?", userID, contentID).
			Update("joined_group", true).Error; err != nil {
			return err
		}
	case models.MethodReachLevel, models.MethodReferrals:
		// Progress for these lives on the standing; nothing to record here.
	}
	return s.evaluateGate(userID, contentID)
}

func (s *UnlockService) ensureState(userID, contentID string) error {
	state := models.ContentUnlockState{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		ContentID:      contentID,
	}
	if err := s.DB.Create(&state).Error; err != nil && !isUniqueViolation(err) {
		return err
	}
	return nil
}

// evaluateGate checks every configured method and unlocks on the first
// satisfied one (OR semantics). Once unlocked the state never regresses.
func (s *UnlockService) evaluateGate(userID, contentID string) error {
	content := models.UnlockableByID(contentID)
	if content == nil {
		return fmt.Errorf("%w: content %s", ErrNotFound, contentID)
	}
	state, err := s.state(userID, contentID)
	if err != nil {
		return err
	}
	if state != nil && state.UnlockedAt != nil {
		return nil // monotonic: stays unlocked
	}

	satisfied, err := s.firstSatisfied(userID, contentID, content.Methods, state)
	if err != nil || satisfied == nil {
		return err
	}

	if err := s.ensureState(userID, contentID); err != nil {
		return err
	}
	now := time.Now()
	res := s.DB.Model(&models.ContentUnlockState{}).
		Where("external_user_id = ? AND content_id = ? AND unlocked_at IS NULL", userID, contentID).
		Updates(map[string]interface{}{"unlocked_at": now, "satisfied_method": *satisfied})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[UNLOCK] 🔓 %s unlocked %q via %s", userID, content.Title, *satisfied)
	}
	return nil
}

func (s *UnlockService) firstSatisfied(userID, contentID string, methods []models.UnlockMethod, state *models.ContentUnlockState) (*models.UnlockMethodKind, error) {
	standing, err := s.Ledger.GetStanding(userID)
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		ok := false
		switch m.Kind {
		case models.MethodSharePlatforms:
			var count int64
			if err := s.DB.Model(&models.ContentShare{}).
				Where("external_user_id = ? AND content_id = ?", userID, contentID).
				Count(&count).Error; err != nil {
				return nil, err
			}
			ok = count >= m.Min
		case models.MethodReachLevel:
			ok = int64(standing.Level) >= m.Min
		case models.MethodReferrals:
			ok = standing.TotalReferrals >= m.Min
		case models.MethodStudyGroup:
			ok = state != nil && state.JoinedGroup
		}
		if ok {
			kind := m.Kind
			return &kind, nil
		}
	}
	return nil, nil
}

// UnlockOption is one method with the caller's progress against it.
type UnlockOption struct {
	models.UnlockMethod
	Progress  int64 `json:"progress"`
	Satisfied bool  `json:"satisfied"`
}

// GateView is the API shape for a gated content.
type GateView struct {
	ContentID       string         `json:"content_id"`
	Title           string         `json:"title"`
	Locked          bool           `json:"locked"`
	UnlockedAt      *time.Time     `json:"unlocked_at,omitempty"`
	UnlockOptions   []UnlockOption `json:"unlock_options"`
	UniquePlatforms int64          `json:"unique_platforms"`
}

// Gate builds the full per-user view of one gated content.
func (s *UnlockService) Gate(userID, contentID string) (*GateView, error) {
	content := models.UnlockableByID(contentID)
	if content == nil {
		return nil, fmt.Errorf("%w: content %s", ErrNotFound, contentID)
	}
	// Re-evaluate on read: level/referral conditions may have been satisfied
	// by activity that never touched this gate directly.
	if err := s.evaluateGate(userID, contentID); err != nil {
		return nil, err
	}
	state, err := s.state(userID, contentID)
	if err != nil {
		return nil, err
	}
	standing, err := s.Ledger.GetStanding(userID)
	if err != nil {
		return nil, err
	}

	var platforms int64
	if err := s.DB.Model(&models.ContentShare{}).
		Where("external_user_id = ? AND content_id = ?", userID, contentID).
		Count(&platforms).Error; err != nil {
		return nil, err
	}

	view := &GateView{
		ContentID:       content.ContentID,
		Title:           content.Title,
		Locked:          state == nil || state.UnlockedAt == nil,
		UniquePlatforms: platforms,
	}
	if state != nil {
		view.UnlockedAt = state.UnlockedAt
	}
	for _, m := range content.Methods {
		opt := UnlockOption{UnlockMethod: m}
		switch m.Kind {
		case models.MethodSharePlatforms:
			opt.Progress = platforms
		case models.MethodReachLevel:
			opt.Progress = int64(standing.Level)
		case models.MethodReferrals:
			opt.Progress = standing.TotalReferrals
		case models.MethodStudyGroup:
			if state != nil && state.JoinedGroup {
				opt.Progress = 1
			}
		}
		opt.Satisfied = (m.Min > 0 && opt.Progress >= m.Min) || (m.Kind == models.MethodStudyGroup && opt.Progress > 0)
		view.UnlockOptions = append(view.UnlockOptions, opt)
	}
	return view, nil
}

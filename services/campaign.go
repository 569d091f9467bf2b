package services

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"notes-gamification-system/models"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// MysteryBoxCooldown is the minimum wait between two box opens per user.
const MysteryBoxCooldown = 6 * time.Hour

// CampaignService manages time-boxed bonus windows. "Active" is always the
// pure predicate starts_at <= now < expires_at read fresh per request — no
// background timer, no in-process singleton, safe across instances.
type CampaignService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewCampaignService(db *gorm.DB, ledger *LedgerService) *CampaignService {
	return &CampaignService{DB: db, Ledger: ledger}
}

// ActiveCampaign returns the active campaign of a type at now, or nil.
func (s *CampaignService) ActiveCampaign(ctype models.CampaignType, now time.Time) (*models.Campaign, error) {
	var c models.Campaign
	err := s.DB.Where("type = ? AND starts_at <= ? AND expires_at > ?", ctype, now, now).
		Order("starts_at DESC").
		First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCampaign schedules a window. At most one campaign per type may be
// active at any instant, so overlapping windows of the same type are rejected.
func (s *CampaignService) CreateCampaign(c *models.Campaign) error {
	if c.Type == "" || !c.ExpiresAt.After(c.StartsAt) {
		return fmt.Errorf("%w: campaign needs a type and a forward window", ErrValidation)
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 1
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var overlapping int64
		if err := tx.Model(&models.Campaign{}).
			Where("type = ? AND starts_at < ? AND expires_at > ?", c.Type, c.ExpiresAt, c.StartsAt).
			Count(&overlapping).Error; err != nil {
			return err
		}
		if overlapping > 0 {
			return fmt.Errorf("%w: an overlapping %s campaign already exists", ErrValidation, c.Type)
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		return tx.Create(c).Error
	})
}

// Participate joins a user to a campaign at most once. Expired or future
// campaigns are rejected with ErrStaleCampaign.
func (s *CampaignService) Participate(campaignID, userID string) (*models.Campaign, error) {
	var c models.Campaign
	if err := s.DB.Where("id = ?", campaignID).First(&c).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: campaign %s", ErrNotFound, campaignID)
		}
		return nil, err
	}
	if !c.IsActive(time.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrStaleCampaign, c.Name)
	}

	p := models.CampaignParticipation{
		ID:             uuid.NewString(),
		CampaignID:     campaignID,
		ExternalUserID: userID,
	}
	if err := s.DB.Create(&p).Error; err != nil {
		if isUniqueViolation(err) {
			return &c, nil // already in — idempotent membership
		}
		return nil, err
	}
	if err := s.DB.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Update("participant_count", gorm.Expr("participant_count + 1")).Error; err != nil {
		return nil, err
	}
	c.ParticipantCount++
	log.Printf("[CAMPAIGN] 🎪 %s joined %q (%d in)", userID, c.Name, c.ParticipantCount)
	return &c, nil
}

// MultiplierFor returns the point multiplier in effect for a user at now:
// the largest multiplier among active campaigns the user participates in.
func (s *CampaignService) MultiplierFor(userID string, now time.Time) (float64, error) {
	var campaigns []models.Campaign
	if err := s.DB.Where("starts_at <= ? AND expires_at > ? AND multiplier > 1", now, now).
		Find(&campaigns).Error; err != nil {
		return 1, err
	}

	mult := 1.0
	for _, c := range campaigns {
		var joined int64
		if err := s.DB.Model(&models.CampaignParticipation{}).
			Where("campaign_id = ? AND external_user_id = ?", c.ID, userID).
			Count(&joined).Error; err != nil {
			return 1, err
		}
		if joined > 0 && c.Multiplier > mult {
			mult = c.Multiplier
		}
	}
	return mult, nil
}

// MysteryBoxState is the API view of the cooldown-gated box.
type MysteryBoxState struct {
	CanOpen         bool       `json:"can_open"`
	NextAvailableAt *time.Time `json:"next_available_at,omitempty"`
	LastPointsWon   int64      `json:"last_points_won,omitempty"`
}

// MysteryBox reports whether a user may open a box at now.
func (s *CampaignService) MysteryBox(userID string, now time.Time) (*MysteryBoxState, error) {
	var last models.MysteryBoxOpen
	err := s.DB.Where("external_user_id = ?", userID).
		Order("opened_at DESC").
		First(&last).Error
	if err == gorm.ErrRecordNotFound {
		return &MysteryBoxState{CanOpen: true}, nil
	}
	if err != nil {
		return nil, err
	}
	next := last.OpenedAt.Add(MysteryBoxCooldown)
	if now.Before(next) {
		return &MysteryBoxState{CanOpen: false, NextAvailableAt: &next, LastPointsWon: last.PointsWon}, nil
	}
	return &MysteryBoxState{CanOpen: true, LastPointsWon: last.PointsWon}, nil
}

// mysteryBoxPrizes: weighted prize table, common small wins, rare jackpots.
var mysteryBoxPrizes = []struct {
	Points int64
	Weight int
}{
	{10, 50},
	{25, 30},
	{50, 15},
	{100, 4},
	{500, 1},
}

// OpenMysteryBox rolls a prize and settles it through the ledger. The box id
// is part of the event key, so a retried open never double-pays.
func (s *CampaignService) OpenMysteryBox(userID string, now time.Time) (int64, *MysteryBoxState, error) {
	// The cooldown check and the open-row insert must be serialized per user,
	// or two racing opens both pass the gate. Released before Award, which
	// takes the same lock.
	mu := s.Ledger.lockFor(userID)
	mu.Lock()

	state, err := s.MysteryBox(userID, now)
	if err != nil {
		mu.Unlock()
		return 0, nil, err
	}
	if !state.CanOpen {
		mu.Unlock()
		return 0, state, fmt.Errorf("%w: mystery box is cooling down", ErrValidation)
	}

	total := 0
	for _, p := range mysteryBoxPrizes {
		total += p.Weight
	}
	roll := rand.Intn(total)
	var points int64
	for _, p := range mysteryBoxPrizes {
		if roll < p.Weight {
			points = p.Points
			break
		}
		roll -= p.Weight
	}

	// An active mystery-box campaign scales every prize in the window.
	boxCampaign, err := s.ActiveCampaign(models.CampaignMysteryBox, now)
	if err != nil {
		mu.Unlock()
		return 0, nil, err
	}
	if boxCampaign != nil && boxCampaign.Multiplier > 1 {
		points = int64(math.Round(float64(points) * boxCampaign.Multiplier))
		log.Printf("[CAMPAIGN] 🎁 %q scales the box prize %.1fx", boxCampaign.Name, boxCampaign.Multiplier)
	}

	open := models.MysteryBoxOpen{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		PointsWon:      points,
	}
	if err := s.DB.Create(&open).Error; err != nil {
		mu.Unlock()
		return 0, nil, err
	}
	mu.Unlock()

	if _, err := s.Ledger.Award(userID, points, "mystery_box",
		fmt.Sprintf("mysterybox:%s:%s", userID, open.ID)); err != nil {
		return 0, nil, err
	}

	next := now.Add(MysteryBoxCooldown)
	log.Printf("[CAMPAIGN] 🎁 %s opened a mystery box: +%d pts", userID, points)
	return points, &MysteryBoxState{CanOpen: false, NextAvailableAt: &next, LastPointsWon: points}, nil
}

// FomoTrigger is one urgency card for the feed.
type FomoTrigger struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// humanPrinter formats counts with locale separators ("12,847 students").
var humanPrinter = message.NewPrinter(language.English)

// Triggers derives the urgency feed from active campaigns and recent
// activity. Countdown math belongs to the client — only expires_at is exposed.
func (s *CampaignService) Triggers(now time.Time) ([]FomoTrigger, error) {
	var triggers []FomoTrigger

	for _, ctype := range []models.CampaignType{models.CampaignFlashBonus, models.CampaignExamPanic} {
		c, err := s.ActiveCampaign(ctype, now)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		triggers = append(triggers, FomoTrigger{
			Kind: string(c.Type),
			Message: humanPrinter.Sprintf("%s is live — %dx points, %d students already in!",
				c.Name, int64(c.Multiplier), c.ParticipantCount),
			ExpiresAt: c.ExpiresAt,
		})
	}

	active, err := s.ActiveUsersNow(now)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		triggers = append(triggers, FomoTrigger{
			Kind:    "live_activity",
			Message: humanPrinter.Sprintf("%d students earned points in the last 15 minutes", active),
		})
	}
	return triggers, nil
}

// ActiveUsersNow counts distinct users with ledger activity in the last 15m.
func (s *CampaignService) ActiveUsersNow(now time.Time) (int64, error) {
	var count int64
	err := s.DB.Model(&models.PointTransaction{}).
		Where("created_at >= ?", now.Add(-15*time.Minute)).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}

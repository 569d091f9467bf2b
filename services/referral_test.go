package services

import (
	"errors"
	"fmt"
	"testing"

	"notes-gamification-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// attributeN signs up n fresh users through the referrer's code.
func attributeN(t *testing.T, eng *engine, referrerID string, n int, offset int) {
	t.Helper()
	standing, err := eng.Ledger.GetStanding(referrerID)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		newUser := fmt.Sprintf("friend-%d", offset+i)
		if _, err := eng.Referrals.Attribute(standing.ReferralCode, newUser); err != nil {
			t.Fatalf("attribute %s: %v", newUser, err)
		}
	}
}

func TestAttribute_AwardsBothSides(t *testing.T) {
	eng := newEngine(t)
	referrer, err := eng.Ledger.GetStanding("alice")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Referrals.Attribute(referrer.ReferralCode, "bob"); err != nil {
		t.Fatal(err)
	}

	a, _ := eng.Ledger.GetStanding("alice")
	b, _ := eng.Ledger.GetStanding("bob")
	if a.PointsTotal != ReferrerSignupPoints {
		t.Errorf("referrer points = %d, want %d", a.PointsTotal, ReferrerSignupPoints)
	}
	if b.PointsTotal != RefereeSignupPoints {
		t.Errorf("referee points = %d, want %d", b.PointsTotal, RefereeSignupPoints)
	}
	if b.ReferredBy == nil || *b.ReferredBy != "alice" {
		t.Errorf("referred_by = %v, want alice", b.ReferredBy)
	}
	if a.TotalReferrals != 1 {
		t.Errorf("total_referrals = %d, want 1", a.TotalReferrals)
	}
}

func TestAttribute_WriteOnce(t *testing.T) {
	eng := newEngine(t)
	alice, _ := eng.Ledger.GetStanding("alice")
	carol, _ := eng.Ledger.GetStanding("carol")

	if _, err := eng.Referrals.Attribute(alice.ReferralCode, "bob"); err != nil {
		t.Fatal(err)
	}
	// Second attribution for the same referee, different code.
	if _, err := eng.Referrals.Attribute(carol.ReferralCode, "bob"); !errors.Is(err, ErrAlreadyAttributed) {
		t.Fatalf("second attribution err = %v, want ErrAlreadyAttributed", err)
	}
	// Replaying the original pair is idempotent: it succeeds without
	// double-counting anything.
	if _, err := eng.Referrals.Attribute(alice.ReferralCode, "bob"); err != nil {
		t.Fatalf("replayed attribution err = %v, want nil", err)
	}

	a, _ := eng.Ledger.GetStanding("alice")
	if a.TotalReferrals != 1 {
		t.Errorf("total_referrals after replays = %d, want 1", a.TotalReferrals)
	}
	if a.PointsTotal != ReferrerSignupPoints {
		t.Errorf("referrer points after replays = %d, want %d", a.PointsTotal, ReferrerSignupPoints)
	}
	var rows int64
	eng.DB.Model(&models.Referral{}).Where("referred_id = ?", "bob").Count(&rows)
	if rows != 1 {
		t.Errorf("referral rows = %d, want 1", rows)
	}
}

func TestAttribute_Validation(t *testing.T) {
	eng := newEngine(t)
	alice, _ := eng.Ledger.GetStanding("alice")

	if _, err := eng.Referrals.Attribute(alice.ReferralCode, "alice"); !errors.Is(err, ErrValidation) {
		t.Errorf("self-referral err = %v, want ErrValidation", err)
	}
	if _, err := eng.Referrals.Attribute("STUDY-NOPE00", "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown code err = %v, want ErrNotFound", err)
	}
	if _, err := eng.Referrals.Attribute("", "bob"); !errors.Is(err, ErrValidation) {
		t.Errorf("empty code err = %v, want ErrValidation", err)
	}
}

func TestMilestones_GrantedExactlyOnce(t *testing.T) {
	eng := newEngine(t)
	attributeN(t, eng, "alice", 3, 0)

	// Attribute already ran CheckMilestones; run it again a few times.
	for i := 0; i < 3; i++ {
		if err := eng.Referrals.CheckMilestones("alice"); err != nil {
			t.Fatal(err)
		}
	}

	var grants []models.ReferralMilestoneGrant
	eng.DB.Where("referrer_id = ?", "alice").Find(&grants)
	if len(grants) != 1 {
		t.Fatalf("grants = %d, want 1", len(grants))
	}
	if grants[0].MilestoneCount != 3 || grants[0].Fulfillment != "points" {
		t.Errorf("grant = %+v, want milestone 3 / points", grants[0])
	}

	var sum int64
	eng.DB.Model(&models.PointTransaction{}).
		Where("user_id = ? AND reason = ?", "alice", "referral_milestone_3").
		Select("COALESCE(SUM(amount), 0)").Scan(&sum)
	if sum != models.ReferralMilestones[0].PointsReward {
		t.Errorf("milestone points = %d, want %d", sum, models.ReferralMilestones[0].PointsReward)
	}
}

func TestMilestones_BackfillOnCatchUp(t *testing.T) {
	eng := newEngine(t)
	attributeN(t, eng, "alice", 10, 0)

	var grants []models.ReferralMilestoneGrant
	eng.DB.Where("referrer_id = ?", "alice").Order("milestone_count ASC").Find(&grants)
	if len(grants) != 2 {
		t.Fatalf("grants = %d, want 2 (3 and 10)", len(grants))
	}
	if grants[0].MilestoneCount != 3 || grants[1].MilestoneCount != 10 {
		t.Errorf("milestones = %d,%d", grants[0].MilestoneCount, grants[1].MilestoneCount)
	}
}

func TestReferralStats(t *testing.T) {
	eng := newEngine(t)
	attributeN(t, eng, "alice", 4, 0)

	stats, err := eng.Referrals.Stats("alice")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalReferrals != 4 {
		t.Errorf("total = %d, want 4", stats.TotalReferrals)
	}
	// 4 signups + milestone 3 (achievement rewards use a different reason prefix).
	want := int64(4*ReferrerSignupPoints) + models.ReferralMilestones[0].PointsReward
	if stats.RewardsEarned != want {
		t.Errorf("rewards_earned = %d, want %d", stats.RewardsEarned, want)
	}
	if stats.NextMilestone == nil || stats.NextMilestone.Count != 10 {
		t.Errorf("next milestone = %+v, want count 10", stats.NextMilestone)
	}
}

func TestNeighbors_WindowAroundSelf(t *testing.T) {
	eng := newEngine(t)
	// alice: 3 referrals, dana: 2, erin: 1.
	attributeN(t, eng, "alice", 3, 0)
	attributeN(t, eng, "dana", 2, 100)
	attributeN(t, eng, "erin", 1, 200)

	got, err := eng.Referrals.Neighbors("dana", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("window size = %d, want 3", len(got))
	}
	if got[0].UserID != "alice" || got[1].UserID != "dana" || got[2].UserID != "erin" {
		t.Errorf("window order = %s,%s,%s", got[0].UserID, got[1].UserID, got[2].UserID)
	}
	if !got[1].IsSelf || got[1].Position != 2 {
		t.Errorf("self row = %+v, want position 2", got[1])
	}

	if got, _ := eng.Referrals.Neighbors("nobody", 1); got != nil {
		t.Errorf("unranked user window = %v, want nil", got)
	}
}

// Simulates a process that died after the attribution transaction committed
// but before the signup rewards settled: referred_by is set, the referral row
// exists, total_referrals is bumped, and no points moved. The retried call
// must re-issue the rewards instead of bailing out on the existing attribution.
func TestAttribute_RetrySettlesRewardsAfterCrash(t *testing.T) {
	eng := newEngine(t)
	alice, _ := eng.Ledger.GetStanding("alice")
	if _, err := eng.Ledger.GetStanding("bob"); err != nil {
		t.Fatal(err)
	}

	if err := eng.DB.Model(&models.UserStanding{}).
		Where("external_user_id = ?", "bob").
		Update("referred_by", "alice").Error; err != nil {
		t.Fatal(err)
	}
	if err := eng.DB.Create(&models.Referral{
		ID:               uuid.NewString(),
		ReferrerID:       "alice",
		ReferredID:       "bob",
		ReferralCodeUsed: alice.ReferralCode,
	}).Error; err != nil {
		t.Fatal(err)
	}
	if err := eng.DB.Model(&models.UserStanding{}).
		Where("external_user_id = ?", "alice").
		Update("total_referrals", gorm.Expr("total_referrals + 1")).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Referrals.Attribute(alice.ReferralCode, "bob"); err != nil {
		t.Fatalf("retry after crash err = %v, want nil", err)
	}

	a, _ := eng.Ledger.GetStanding("alice")
	b, _ := eng.Ledger.GetStanding("bob")
	if a.PointsTotal != ReferrerSignupPoints {
		t.Errorf("referrer points = %d, want %d", a.PointsTotal, ReferrerSignupPoints)
	}
	if b.PointsTotal != RefereeSignupPoints {
		t.Errorf("referee points = %d, want %d", b.PointsTotal, RefereeSignupPoints)
	}
	if a.TotalReferrals != 1 {
		t.Errorf("total_referrals = %d, want 1 (retry must not re-count)", a.TotalReferrals)
	}

	// A second retry is a no-op on every total.
	if _, err := eng.Referrals.Attribute(alice.ReferralCode, "bob"); err != nil {
		t.Fatalf("second retry err = %v, want nil", err)
	}
	a2, _ := eng.Ledger.GetStanding("alice")
	if a2.PointsTotal != a.PointsTotal || a2.TotalReferrals != a.TotalReferrals {
		t.Errorf("second retry changed totals: points %d→%d referrals %d→%d",
			a.PointsTotal, a2.PointsTotal, a.TotalReferrals, a2.TotalReferrals)
	}
}

package services

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"notes-gamification-system/models"
)

func makeCampaign(t *testing.T, eng *engine, ctype models.CampaignType, name string, mult float64, start, end time.Time) *models.Campaign {
	t.Helper()
	c := &models.Campaign{
		Type: ctype, Name: name, Multiplier: mult,
		StartsAt: start, ExpiresAt: end,
	}
	if err := eng.Campaigns.CreateCampaign(c); err != nil {
		t.Fatalf("create campaign %s: %v", name, err)
	}
	return c
}

func TestCreateCampaign_RejectsOverlapPerType(t *testing.T) {
	eng := newEngine(t)
	now := time.Now()
	makeCampaign(t, eng, models.CampaignFlashBonus, "Weekend Rush", 2, now, now.Add(2*time.Hour))

	// Same type, overlapping window.
	err := eng.Campaigns.CreateCampaign(&models.Campaign{
		Type: models.CampaignFlashBonus, Name: "Clash", Multiplier: 3,
		StartsAt: now.Add(time.Hour), ExpiresAt: now.Add(3 * time.Hour),
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("overlapping same-type err = %v, want ErrValidation", err)
	}

	// Different type may overlap.
	makeCampaign(t, eng, models.CampaignExamPanic, "Finals Week", 2, now, now.Add(2*time.Hour))

	// Same type, disjoint window is fine.
	makeCampaign(t, eng, models.CampaignFlashBonus, "Later", 2, now.Add(3*time.Hour), now.Add(4*time.Hour))
}

func TestActiveCampaign_PurePredicate(t *testing.T) {
	eng := newEngine(t)
	now := time.Now()
	c := makeCampaign(t, eng, models.CampaignFlashBonus, "Rush", 2, now.Add(-time.Hour), now.Add(time.Hour))

	got, err := eng.Campaigns.ActiveCampaign(models.CampaignFlashBonus, now)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != c.ID {
		t.Fatalf("active = %v, want %s", got, c.ID)
	}

	// Same row, evaluated after expiry: inactive with no state change.
	got, err = eng.Campaigns.ActiveCampaign(models.CampaignFlashBonus, now.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("campaign still active after expires_at")
	}
}

func TestParticipate_IdempotentAndCounted(t *testing.T) {
	eng := newEngine(t)
	now := time.Now()
	c := makeCampaign(t, eng, models.CampaignFlashBonus, "Rush", 2, now.Add(-time.Hour), now.Add(time.Hour))

	if _, err := eng.Campaigns.Participate(c.ID, "u1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := eng.Campaigns.Participate(c.ID, "u1"); err != nil {
			t.Fatalf("repeat join: %v", err)
		}
	}
	if _, err := eng.Campaigns.Participate(c.ID, "u2"); err != nil {
		t.Fatal(err)
	}

	var reloaded models.Campaign
	eng.DB.First(&reloaded, "id = ?", c.ID)
	if reloaded.ParticipantCount != 2 {
		t.Errorf("participant_count = %d, want 2", reloaded.ParticipantCount)
	}
}

func TestParticipate_ExpiredRejected(t *testing.T) {
	eng := newEngine(t)
	now := time.Now()
	c := makeCampaign(t, eng, models.CampaignFlashBonus, "Over", 2, now.Add(-2*time.Hour), now.Add(-time.Hour))

	if _, err := eng.Campaigns.Participate(c.ID, "u1"); !errors.Is(err, ErrStaleCampaign) {
		t.Errorf("expired join err = %v, want ErrStaleCampaign", err)
	}
	if _, err := eng.Campaigns.Participate("missing-id", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown campaign err = %v, want ErrNotFound", err)
	}
}

func TestMultiplierFor_LargestJoinedActive(t *testing.T) {
	eng := newEngine(t)
	now := time.Now()
	flash := makeCampaign(t, eng, models.CampaignFlashBonus, "Rush", 2, now.Add(-time.Hour), now.Add(time.Hour))
	exam := makeCampaign(t, eng, models.CampaignExamPanic, "Finals", 3, now.Add(-time.Hour), now.Add(time.Hour))

	// Not joined anything yet.
	mult, err := eng.Campaigns.MultiplierFor("u1", now)
	if err != nil {
		t.Fatal(err)
	}
	if mult != 1 {
		t.Errorf("unjoined multiplier = %v, want 1", mult)
	}

	if _, err := eng.Campaigns.Participate(flash.ID, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Campaigns.Participate(exam.ID, "u1"); err != nil {
		t.Fatal(err)
	}
	mult, _ = eng.Campaigns.MultiplierFor("u1", now)
	if mult != 3 {
		t.Errorf("multiplier = %v, want 3 (largest joined)", mult)
	}

	// After expiry the boost evaporates without any cleanup write.
	mult, _ = eng.Campaigns.MultiplierFor("u1", now.Add(2*time.Hour))
	if mult != 1 {
		t.Errorf("post-expiry multiplier = %v, want 1", mult)
	}
}

func TestMysteryBox_CooldownGate(t *testing.T) {
	eng := newEngine(t)
	now := time.Now()

	state, err := eng.Campaigns.MysteryBox("u1", now)
	if err != nil {
		t.Fatal(err)
	}
	if !state.CanOpen {
		t.Fatal("fresh user cannot open the box")
	}

	points, state, err := eng.Campaigns.OpenMysteryBox("u1", now)
	if err != nil {
		t.Fatal(err)
	}
	if points <= 0 {
		t.Errorf("won %d points, want > 0", points)
	}
	if state.CanOpen {
		t.Error("box still open right after an open")
	}

	// Second open inside the cooldown is rejected and pays nothing.
	if _, _, err := eng.Campaigns.OpenMysteryBox("u1", now.Add(time.Hour)); !errors.Is(err, ErrValidation) {
		t.Errorf("cooldown open err = %v, want ErrValidation", err)
	}

	standing, _ := eng.Ledger.GetStanding("u1")
	if standing.PointsTotal != points {
		t.Errorf("points_total = %d, want the single prize %d", standing.PointsTotal, points)
	}

	// After the cooldown the gate reopens.
	state, err = eng.Campaigns.MysteryBox("u1", now.Add(MysteryBoxCooldown+time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !state.CanOpen {
		t.Error("box not reopened after the cooldown")
	}
}

func TestTriggers_ActiveCampaignsAndLiveActivity(t *testing.T) {
	eng := newEngine(t)
	now := time.Now()
	makeCampaign(t, eng, models.CampaignFlashBonus, "Weekend Rush", 2, now.Add(-time.Hour), now.Add(time.Hour))
	award(t, eng, "u1", 10, "k1")

	triggers, err := eng.Campaigns.Triggers(now)
	if err != nil {
		t.Fatal(err)
	}
	kinds := map[string]bool{}
	for _, tr := range triggers {
		kinds[tr.Kind] = true
		if tr.Kind == string(models.CampaignFlashBonus) && tr.ExpiresAt.IsZero() {
			t.Error("campaign trigger missing expires_at")
		}
	}
	if !kinds[string(models.CampaignFlashBonus)] {
		t.Error("no trigger for the active flash bonus")
	}
	if !kinds["live_activity"] {
		t.Error("no live-activity trigger despite recent ledger rows")
	}
}

// Two opens racing past the cooldown gate must not both pay out.
func TestOpenMysteryBox_ConcurrentOpensPayOnce(t *testing.T) {
	eng := newEngine(t)
	now := time.Now()

	var wg sync.WaitGroup
	var wins atomic.Int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := eng.Campaigns.OpenMysteryBox("u1", now); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("successful opens = %d, want 1", wins.Load())
	}
	var rows int64
	eng.DB.Model(&models.MysteryBoxOpen{}).Where("external_user_id = ?", "u1").Count(&rows)
	if rows != 1 {
		t.Errorf("open rows = %d, want 1", rows)
	}
}

// An active mystery_box campaign scales the rolled prize for everyone who
// opens inside the window, no sign-up required.
func TestOpenMysteryBox_CampaignScalesPrize(t *testing.T) {
	eng := newEngine(t)
	now := time.Now()
	makeCampaign(t, eng, models.CampaignMysteryBox, "Triple Boxes", 3,
		now.Add(-time.Hour), now.Add(time.Hour))

	points, _, err := eng.Campaigns.OpenMysteryBox("u1", now)
	if err != nil {
		t.Fatal(err)
	}

	// The tripled prize table is disjoint from the base one, so membership
	// proves the multiplier was applied.
	tripled := map[int64]bool{30: true, 75: true, 150: true, 300: true, 1500: true}
	if !tripled[points] {
		t.Errorf("prize = %d, want a tripled table value", points)
	}

	var tx models.PointTransaction
	if err := eng.DB.Where("user_id = ? AND reason = ?", "u1", "mystery_box").First(&tx).Error; err != nil {
		t.Fatal(err)
	}
	if tx.Amount != points {
		t.Errorf("ledger amount = %d, want the returned prize %d", tx.Amount, points)
	}
}

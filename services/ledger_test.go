package services

import (
	"fmt"
	"sync"
	"testing"

	"notes-gamification-system/models"
)

func TestAward_SumsIndependentOfOrder(t *testing.T) {
	eng := newEngine(t)

	amounts := []int64{100, 5, 5, 5, 5, 15}
	for i, amt := range amounts {
		res, err := eng.Ledger.Award("u1", amt, "test", fmt.Sprintf("ev-%d", i))
		if err != nil {
			t.Fatalf("award %d: %v", i, err)
		}
		if res.Duplicate {
			t.Fatalf("award %d unexpectedly reported duplicate", i)
		}
	}

	standing, err := eng.Ledger.GetStanding("u1")
	if err != nil {
		t.Fatal(err)
	}
	if standing.PointsTotal != 135 {
		t.Errorf("points_total = %d, want 135", standing.PointsTotal)
	}

	sum, err := eng.Ledger.RecomputeTotal("u1")
	if err != nil {
		t.Fatal(err)
	}
	if sum != 135 {
		t.Errorf("ledger sum = %d, want 135", sum)
	}
}

func TestAward_IdempotentOnSourceEventID(t *testing.T) {
	eng := newEngine(t)

	first, err := eng.Ledger.Award("u1", 100, "note_uploaded", "upload-1")
	if err != nil {
		t.Fatal(err)
	}
	if first.Duplicate {
		t.Fatal("first delivery flagged as duplicate")
	}

	second, err := eng.Ledger.Award("u1", 100, "note_uploaded", "upload-1")
	if err != nil {
		t.Fatalf("redelivery must be success-no-op, got %v", err)
	}
	if !second.Duplicate {
		t.Error("redelivery not flagged as duplicate")
	}
	if second.Standing.PointsTotal != 100 {
		t.Errorf("points_total after redelivery = %d, want 100", second.Standing.PointsTotal)
	}

	var rows int64
	eng.DB.Model(&models.PointTransaction{}).Where("source_event_id = ?", "upload-1").Count(&rows)
	if rows != 1 {
		t.Errorf("ledger rows for event = %d, want exactly 1", rows)
	}
}

func TestAward_ConcurrentSameUser(t *testing.T) {
	eng := newEngine(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := eng.Ledger.Award("u1", 10, "test", fmt.Sprintf("race-%d", i)); err != nil {
				t.Errorf("concurrent award %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	standing, err := eng.Ledger.GetStanding("u1")
	if err != nil {
		t.Fatal(err)
	}
	if standing.PointsTotal != n*10 {
		t.Errorf("points_total = %d, want %d (lost update?)", standing.PointsTotal, n*10)
	}
}

func TestAward_NegativeOnlyForCorrections(t *testing.T) {
	eng := newEngine(t)

	if _, err := eng.Ledger.Award("u1", -50, "oops", "bad-1"); err == nil {
		t.Error("negative award without correction reason must be rejected")
	}
	if _, err := eng.Ledger.Award("u1", -50, "correction:overcount", "fix-1"); err != nil {
		t.Errorf("correction award rejected: %v", err)
	}
}

func TestLevelTable(t *testing.T) {
	tests := []struct {
		points    int64
		level     int
		levelName string
	}{
		{0, 1, "Fresher"},
		{99, 1, "Fresher"},
		{100, 2, "Note Taker"},
		{135, 2, "Note Taker"},
		{250, 3, "Contributor"},
		{999, 4, "Junior Scholar"},
		{5000, 7, "Knowledge Guru"},
		{99999, 7, "Knowledge Guru"},
	}
	for _, tt := range tests {
		if got := LevelForPoints(tt.points); got != tt.level {
			t.Errorf("LevelForPoints(%d) = %d, want %d", tt.points, got, tt.level)
		}
		if got := LevelName(LevelForPoints(tt.points)); got != tt.levelName {
			t.Errorf("LevelName at %d pts = %q, want %q", tt.points, got, tt.levelName)
		}
	}
}

func TestLevelProgress(t *testing.T) {
	toNext, pct := LevelProgress(135)
	if toNext != 115 {
		t.Errorf("points_to_next_level at 135 = %d, want 115", toNext)
	}
	wantPct := float64(135-100) / float64(250-100) * 100
	if pct != wantPct {
		t.Errorf("progress at 135 = %.2f, want %.2f", pct, wantPct)
	}

	toNext, pct = LevelProgress(5000)
	if toNext != 0 || pct != 100 {
		t.Errorf("top level progress = (%d, %.0f), want (0, 100)", toNext, pct)
	}
}

func TestAward_LevelUpFlag(t *testing.T) {
	eng := newEngine(t)

	res, err := eng.Ledger.Award("u1", 99, "test", "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.LeveledUp {
		t.Error("99 points should not level up")
	}

	res, err = eng.Ledger.Award("u1", 1, "test", "ev-2")
	if err != nil {
		t.Fatal(err)
	}
	if !res.LeveledUp || res.Standing.Level != 2 {
		t.Errorf("crossing 100 points: leveled_up=%v level=%d, want true/2", res.LeveledUp, res.Standing.Level)
	}
}

func TestGetStanding_ConcurrentFirstContact(t *testing.T) {
	eng := newEngine(t)

	// A read and the user's first event racing on first contact must both
	// succeed and converge on one standing row.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				if _, err := eng.Ledger.GetStanding("newcomer"); err != nil {
					t.Errorf("concurrent GetStanding: %v", err)
				}
			} else {
				if _, err := eng.Ledger.Award("newcomer", 10, "test", fmt.Sprintf("first-%d", i)); err != nil {
					t.Errorf("concurrent Award: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	var rows int64
	eng.DB.Model(&models.UserStanding{}).Where("external_user_id = ?", "newcomer").Count(&rows)
	if rows != 1 {
		t.Errorf("standing rows = %d, want 1", rows)
	}
	standing, err := eng.Ledger.GetStanding("newcomer")
	if err != nil {
		t.Fatal(err)
	}
	if standing.ReferralCode == "" {
		t.Error("surviving standing row has no referral code")
	}
	if standing.PointsTotal != 50 {
		t.Errorf("points_total = %d, want 50", standing.PointsTotal)
	}
}

func TestAward_IncrementsAgainstCommittedTotal(t *testing.T) {
	eng := newEngine(t)

	if _, err := eng.Ledger.Award("u1", 100, "test", "ev-1"); err != nil {
		t.Fatal(err)
	}
	// Another instance's commit landing outside this process — the next award
	// must increment on top of it, not overwrite it with a stale read.
	if err := eng.DB.Model(&models.UserStanding{}).
		Where("external_user_id = ?", "u1").
		Update("points_total", 900).Error; err != nil {
		t.Fatal(err)
	}

	res, err := eng.Ledger.Award("u1", 150, "test", "ev-2")
	if err != nil {
		t.Fatal(err)
	}
	if res.Standing.PointsTotal != 1050 {
		t.Errorf("points_total = %d, want 1050 (atomic increment)", res.Standing.PointsTotal)
	}
	if res.Standing.Level != 5 || !res.LeveledUp {
		t.Errorf("level = %d leveled_up=%v, want 5/true from the fresh total", res.Standing.Level, res.LeveledUp)
	}
}

func TestAward_CorrectionLowersLevel(t *testing.T) {
	eng := newEngine(t)

	if _, err := eng.Ledger.Award("u1", 300, "test", "ev-1"); err != nil {
		t.Fatal(err)
	}
	res, err := eng.Ledger.Award("u1", -250, "correction:miscount", "fix-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Standing.PointsTotal != 50 || res.Standing.Level != 1 {
		t.Errorf("after correction: total=%d level=%d, want 50/1", res.Standing.PointsTotal, res.Standing.Level)
	}
	if res.LeveledUp {
		t.Error("a correction that lowers the level must not flag leveled_up")
	}
}

func TestTouch_DoesNotClobberPointsTotal(t *testing.T) {
	eng := newEngine(t)

	if _, err := eng.Ledger.Award("u1", 100, "test", "ev-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Streaks.Touch("u1", day("2026-03-01")); err != nil {
		t.Fatal(err)
	}

	standing, err := eng.Ledger.GetStanding("u1")
	if err != nil {
		t.Fatal(err)
	}
	if standing.PointsTotal != 100+DailyStreakPoints {
		t.Errorf("points_total after touch = %d, want %d", standing.PointsTotal, 100+DailyStreakPoints)
	}
}

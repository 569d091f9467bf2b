// services/scheduler.go
package services

import (
	"encoding/json"
	"log"
	"time"

	"notes-gamification-system/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartSnapshotScheduler refreshes leaderboard snapshots on half the
// staleness bound, keeping served rankings within the documented ≤60s window.
// The global top list is additionally published to R2 when configured, so the
// landing page can read it straight off the CDN.
func (s *LeaderboardService) StartSnapshotScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(SnapshotStalenessBound/2),
		gocron.NewTask(func() {
			started := time.Now()
			if err := s.RefreshSnapshots(); err != nil {
				log.Printf("[Scheduler] ❌ Leaderboard refresh failed: %v", err)
				return
			}
			log.Printf("[Scheduler] ✅ Leaderboard snapshots refreshed in %s", time.Since(started).Round(time.Millisecond))

			if !utils.R2Enabled() {
				return
			}
			top, err := s.GlobalTop(100)
			if err != nil {
				log.Printf("[Scheduler] ❌ Failed to build global top for publish: %v", err)
				return
			}
			payload, err := json.Marshal(map[string]interface{}{
				"rankings":    top,
				"computed_at": time.Now().UTC(),
			})
			if err != nil {
				log.Printf("[Scheduler] ❌ Failed to marshal global snapshot: %v", err)
				return
			}
			if url, err := utils.PublishJSONToR2(GlobalSnapshotJSONKey, payload); err != nil {
				log.Printf("[Scheduler] ⚠️ Failed to publish global snapshot: %v", err)
			} else {
				log.Printf("[Scheduler] ☁️ Global leaderboard published: %s", url)
			}
		}),
	)
}

// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"notes-gamification-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetProfileChangesResponse is the top-level structure of the profile service response.
type GetProfileChangesResponse struct {
	Users []models.RemoteProfile `json:"users"`
}

// ProfileSyncWorker mirrors account profiles (username, college, department,
// account creation time) into profile_mirrors. Leaderboard scope keys and the
// created_at tie-break both come from this mirror.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, baseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile Sync Worker (profile-service → profile_mirrors)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Profile Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt from the local mirror table.
func (w *ProfileSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM profile_mirrors WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches profile changes since `since` and upserts the mirror rows.
func (w *ProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpointURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to profile service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode profile service response: %w", err)
	}
	if len(response.Users) == 0 {
		return nil
	}

	var upsertCount, errorCount int
	for _, remote := range response.Users {
		mirror := models.ProfileMirror{
			ID:               uuid.NewString(),
			ExternalUserID:   remote.ExternalID,
			Username:         remote.Username,
			Email:            remote.Email,
			AvatarURL:        remote.AvatarURL,
			College:          remote.College,
			Department:       remote.Department,
			AccountCreatedAt: remote.CreatedAt,
			UpdatedAt:        remote.UpdatedAt,
		}
		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "email", "avatar_url", "college", "department",
				"account_created_at", "updated_at",
			}),
		}).Create(&mirror).Error; err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to upsert profile_mirror (external_id=%q): %v", remote.ExternalID, err)
		} else {
			upsertCount++
		}
	}

	log.Printf("[SYNC] ✅ Synced %d profile(s) (%d upserted, %d errors) since %s",
		len(response.Users), upsertCount, errorCount, sinceStr)
	return nil
}

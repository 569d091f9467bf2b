// workers/note_events_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"notes-gamification-system/services"
)

// NoteEventsClient polls the notes service for upload/download/share events
// and feeds them to the ingest pipeline. Delivery is at-least-once on purpose:
// the poll cursor is coarse and overlapping batches are expected — the
// ledger's source_event_id dedup absorbs every replay.
type NoteEventsClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Ingest     *services.IngestService
}

func NewNoteEventsClient(ingest *services.IngestService) *NoteEventsClient {
	baseURL := os.Getenv("NOTES_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("NOTES_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("GAMIFICATION_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("GAMIFICATION_SERVICE_TOKEN environment variable is required for note event polling")
	}

	return &NoteEventsClient{
		BaseURL: baseURL,
		Token:   token,
		Ingest:  ingest,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetEvents fetches note events that occurred after `since`.
func (c *NoteEventsClient) GetEvents(ctx context.Context, since time.Time) ([]services.Event, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/internal/events", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse notes service URL: %w", err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notes service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("notes service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Events []services.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode notes service response: %w", err)
	}
	return payload.Events, nil
}

// PollNoteEvents polls on `interval` and pushes each event through ingest.
// The cursor overlaps one interval to survive clock skew between services.
func PollNoteEvents(ctx context.Context, client *NoteEventsClient, interval time.Duration) {
	log.Printf("🔁 Note event polling started (every %s)", interval)
	since := time.Now().Add(-interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			since = client.pollOnce(ctx, since, interval)
		case <-ctx.Done():
			log.Println("⏹️ Note event polling stopped")
			return
		}
	}
}

// pollOnce fetches events after cursor and applies them, returning the cursor
// for the next tick. Do NOT advance the cursor on failure — the same window is
// re-polled next tick, so a notes-service outage delays events instead of
// skipping them. Re-polled batches overlap; the ledger dedup absorbs replays.
func (c *NoteEventsClient) pollOnce(ctx context.Context, cursor time.Time, interval time.Duration) time.Time {
	next := time.Now().Add(-interval)

	events, err := c.GetEvents(ctx, cursor)
	if err != nil {
		log.Printf("❌ Note event poll failed: %v — keeping cursor at %s",
			err, cursor.UTC().Format(time.RFC3339))
		return cursor
	}

	var applied, failed int
	for _, ev := range events {
		if err := c.Ingest.ProcessEvent(ev); err != nil {
			failed++
			log.Printf("[EVENTS] ⚠️ Failed to apply %s (%s): %v", ev.Type, ev.SourceEventID, err)
		} else {
			applied++
		}
	}
	if len(events) > 0 {
		log.Printf("[EVENTS] 📥 %d note event(s) polled (%d applied, %d failed)", len(events), applied, failed)
	}
	if failed > 0 {
		return cursor
	}
	return next
}

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/result"
)

// WebhookNotifier posts a flushed batch as a JSON document to a
// configured URL. The transport itself is out of scope per spec.md —
// this is one concrete Notifier, not the only legal one.
type WebhookNotifier struct {
	url          string
	client       *http.Client
	includeStats bool
}

// NewWebhookNotifier builds a notifier posting to url.
func NewWebhookNotifier(url string, includeStats bool) *WebhookNotifier {
	return &WebhookNotifier{
		url:          url,
		client:       &http.Client{Timeout: 10 * time.Second},
		includeStats: includeStats,
	}
}

type webhookPayload struct {
	Batch     []*result.ScanResult `json:"batch"`
	FlushedAt time.Time            `json:"flushed_at"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, batch []*result.ScanResult) error {
	body, err := json.Marshal(webhookPayload{Batch: batch, FlushedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("pipeline: marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("pipeline: building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("pipeline: posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("pipeline: webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

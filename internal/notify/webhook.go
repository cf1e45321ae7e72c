package notify

import (
	"context"
	"log"
	"net/http"
	"time"
)

// webhookPayload is the envelope POSTed to a generic outbound webhook.
// Severity is carried as both a string and a numeric rank so a consumer
// that only understands thresholds (e.g. "page on rank >= 2") doesn't
// need a string switch.
type webhookPayload struct {
	Source    string `json:"source"`
	Severity  string `json:"severity"`
	Rank      int    `json:"severity_rank"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func severityRank(l Level) int {
	switch l {
	case Critical:
		return 2
	case Warning:
		return 1
	default:
		return 0
	}
}

// WebhookNotifier delivers alerts as a single POST to an arbitrary
// HTTP endpoint. It has no inbound surface of its own: a receiver that
// wants acknowledgement or retries implements that on its own side.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier posting to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: httpClient(10 * time.Second)}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	payload := webhookPayload{
		Source:    "trading-engine",
		Severity:  string(alert.Level),
		Rank:      severityRank(alert.Level),
		Title:     alert.Title,
		Message:   alert.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := postJSON(ctx, w.client, w.url, payload, nil); err != nil {
		return err
	}
	log.Printf("[notify] webhook delivered: %s", alert.Title)
	return nil
}

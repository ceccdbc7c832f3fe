package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier posts alerts to an HTTP endpoint. The body carries
// the structured alert plus a preformatted "text" field, which Slack
// and Mattermost incoming webhooks display as is.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

type webhookPayload struct {
	Alert
	Text   string `json:"text"`
	Source string `json:"source"`
	TS     string `json:"ts"`
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: defaultHTTPClient, now: time.Now}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	payload := webhookPayload{
		Alert:  alert,
		Text:   fmt.Sprintf("[%s] %s: %s", alert.Level, alert.Title, alert.Message),
		Source: "tradebot",
		TS:     w.now().UTC().Format(time.RFC3339Nano),
	}
	if err := postJSON(ctx, w.client, w.url, payload); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	log.Printf("[webhook] sent alert: %s", alert.Title)
	return nil
}

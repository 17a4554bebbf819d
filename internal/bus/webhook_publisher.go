package bus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ledgerops/txnengine/internal/logging"
)

// WebhookPublisher delivers messages by POSTing them to a fixed URL,
// grounded on the same client/timeout shape used elsewhere in the pack
// for outbound calls to an external system. The topic argument is sent
// as a header rather than routed to a different URL, since a webhook
// endpoint has no notion of topics of its own.
type WebhookPublisher struct {
	url        string
	httpClient *http.Client
}

// NewWebhookPublisher returns a Publisher that posts to url.
func NewWebhookPublisher(url string) *WebhookPublisher {
	return &WebhookPublisher{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Publish sends msg.Value as the request body. A non-2xx response is
// treated as a failed delivery so the relay retries or escalates it.
func (p *WebhookPublisher) Publish(ctx context.Context, topic string, msg Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(msg.Value))
	if err != nil {
		return fmt.Errorf("WebhookPublisher.Publish: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ledgerops-Topic", topic)
	req.Header.Set("X-Ledgerops-Key", msg.Key)

	log := logging.FromContext(ctx)
	start := time.Now()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("WebhookPublisher.Publish: send: %w", err)
	}
	defer resp.Body.Close()

	log.DebugContext(ctx, "webhook publish", "topic", topic, "key", msg.Key, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("WebhookPublisher.Publish: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

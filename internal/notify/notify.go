// Package notify is the local-notification boundary. Delivery is
// fire-and-forget from the pipeline's perspective: a failed delivery is
// logged by the caller and never rolls back a store write.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Gateway interface {
	Deliver(ctx context.Context, title, body string, metadata map[string]string) error
}

// Webhook posts notifications as JSON to a configured endpoint (the device
// companion that raises the OS-level notification).
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type webhookPayload struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (w *Webhook) Deliver(ctx context.Context, title, body string, metadata map[string]string) error {
	buf, err := json.Marshal(webhookPayload{Title: title, Body: body, Metadata: metadata})
	if err != nil {
		return fmt.Errorf("error encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("error delivering notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}
	return nil
}

// Log writes notifications to the default logger. Used when no webhook is
// configured (headless runs, tests).
type Log struct{}

func (Log) Deliver(_ context.Context, title, body string, metadata map[string]string) error {
	slog.Info("notification", "title", title, "body", body, "metadata", metadata)
	return nil
}

// Package notify delivers outbound alerts and renders remediation guidance.
// Both sinks are best-effort: a failed delivery is logged, never raised, so
// notification problems cannot break monitoring.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Webhook posts notifications as JSON to a configured URL.
type Webhook struct {
	url     string
	runID   string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
	host    string
}

type webhookPayload struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Level     string `json:"level"`
	Host      string `json:"host"`
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
}

// NewWebhook creates a webhook sink. The rate limiter caps issue storms:
// a short burst is allowed, then deliveries are spaced out and overflow is
// dropped with a log line.
func NewWebhook(url, runID string, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	host, _ := os.Hostname()
	return &Webhook{
		url:     url,
		runID:   runID,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		log:     log,
		host:    host,
	}
}

// Send implements monitor.Notifier.
func (w *Webhook) Send(ctx context.Context, title, message string, isError bool) {
	if w.url == "" {
		return
	}
	if !w.limiter.Allow() {
		w.log.Warn("notification dropped by rate limiter", "title", title)
		return
	}

	level := "info"
	if isError {
		level = "error"
	}
	body, err := json.Marshal(webhookPayload{
		Title:     title,
		Message:   message,
		Level:     level,
		Host:      w.host,
		RunID:     w.runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		w.log.Error("webhook payload encoding failed", "err", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Error("webhook request failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Error("webhook delivery failed", "title", title, "err", err)
		return
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode >= 300 {
		w.log.Error("webhook rejected", "status", resp.StatusCode, "body", string(respBody))
	}
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chatzone/internal/config"

	"github.com/cenkalti/backoff/v5"
)

// HTTPPushGateway posts push notifications to an FCM-style HTTP endpoint.
// It makes one attempt per call; the worker pool owns retries.
type HTTPPushGateway struct {
	endpoint   string
	serverKey  string
	httpClient *http.Client
}

// NewPushGateway returns an HTTP gateway, or a no-op one when push is not
// configured.
func NewPushGateway(cfg config.PushConfig) PushGateway {
	if !cfg.IsEnabled() {
		slog.Warn("push gateway not configured, push notifications disabled")
		return NoopPushGateway{}
	}
	return &HTTPPushGateway{
		endpoint:  cfg.Endpoint,
		serverKey: cfg.ServerKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushMessage struct {
	To           string            `json:"to"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Priority     string            `json:"priority"`
}

func (g *HTTPPushGateway) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	payload, err := json.Marshal(pushMessage{
		To:           token,
		Notification: pushNotification{Title: title, Body: body},
		Data:         data,
		Priority:     "high",
	})
	if err != nil {
		return backoff.Permanent(fmt.Errorf("encode push: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create push request: %w", err))
	}
	req.Header.Set("Authorization", "key="+g.serverKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	slog.Debug("push sent", "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, respBody)
	case resp.StatusCode >= 400:
		// Bad token or payload: retrying will not help.
		return backoff.Permanent(fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, respBody))
	}
	return nil
}

// NoopPushGateway drops every push.
type NoopPushGateway struct{}

func (NoopPushGateway) Send(context.Context, string, string, string, map[string]string) error {
	return backoff.Permanent(ErrPushDisabled)
}

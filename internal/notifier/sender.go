package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hanoutlabs/storefront/pkg/httpclient"
)

// Notification is the delivery-agnostic payload handed to a Sender.
type Notification struct {
	Type    string         `json:"type"`
	Subject string         `json:"subject"`
	Data    map[string]any `json:"data,omitempty"`
}

// Sender delivers a notification. Implementations own retry and templating;
// the notifier only decides whether a notification should go out at all.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log. It is the fallback when no
// email endpoint is configured, and keeps local development dependency-free.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the notification.
func (s *LogSender) Send(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notification",
		slog.String("type", n.Type),
		slog.String("subject", n.Subject),
		slog.Any("data", n.Data),
	)
	return nil
}

// EmailSender posts notifications to an external email gateway behind a
// circuit breaker, so a flapping gateway cannot pile up in-flight requests.
type EmailSender struct {
	client   *httpclient.CircuitBreakerClient
	endpoint string
}

// NewEmailSender creates a sender posting to the given gateway endpoint.
func NewEmailSender(endpoint string, logger *slog.Logger) *EmailSender {
	client := httpclient.New(httpclient.DefaultConfig())
	cb := httpclient.NewCircuitBreakerClient(client, httpclient.DefaultCircuitBreakerConfig("email-gateway"), logger)
	return &EmailSender{
		client:   cb,
		endpoint: endpoint,
	}
}

// Send posts the notification as JSON.
func (s *EmailSender) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	resp, err := s.client.Post(ctx, s.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("email gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// Package dispatch delivers status events to the configured outbound
// channel through a bounded queue and rate-limited workers. Delivery is
// fire-and-forget: a failed send is logged and counted, never retried into
// the hot path.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/internal/presence"
)

// Sender delivers one composed notification. Implementations must honor
// ctx and must not retry internally.
type Sender interface {
	Name() string
	Send(ctx context.Context, ev presence.StatusEvent, text string) error
}

// Build constructs the sender selected by cfg.Mode. The config is assumed
// to have passed validation.
func Build(cfg config.WebhookConfig) (Sender, error) {
	timeout := config.MustDuration(cfg.Timeout, config.DefaultWebhookTimeout)

	switch cfg.Mode {
	case "", "openclaw_wake":
		return newOpenClawSender(cfg, timeout), nil
	case "generic_json":
		return newGenericSender(cfg, timeout), nil
	case "telegram":
		return newTelegramSender(cfg.Telegram)
	default:
		return nil, fmt.Errorf("unknown webhook mode %q", cfg.Mode)
	}
}

// httpSender posts JSON payloads with optional bearer auth and extra
// headers. Shared by the webhook-shaped senders.
type httpSender struct {
	url     string
	token   string
	headers map[string]string
	client  *http.Client
}

func newHTTPSender(cfg config.WebhookConfig, timeout time.Duration) httpSender {
	return httpSender{
		url:     cfg.URL,
		token:   cfg.Token,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

func (h httpSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

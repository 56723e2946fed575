package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/internal/presence"
)

// openClawSender wakes an OpenClaw agent with the composed text. Only the
// text and the wake mode cross the wire; the structured event stays local.
type openClawSender struct {
	httpSender
	wakeMode string
}

func newOpenClawSender(cfg config.WebhookConfig, timeout time.Duration) *openClawSender {
	mode := cfg.OpenClaw.WakeMode
	if mode == "" {
		mode = "now"
	}
	return &openClawSender{
		httpSender: newHTTPSender(cfg, timeout),
		wakeMode:   mode,
	}
}

func (s *openClawSender) Name() string { return "openclaw_wake" }

func (s *openClawSender) Send(ctx context.Context, _ presence.StatusEvent, text string) error {
	body, err := json.Marshal(struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}{Text: text, Mode: s.wakeMode})
	if err != nil {
		return err
	}
	return s.post(ctx, body)
}

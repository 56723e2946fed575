package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/internal/presence"
)

// Timestamps cross the wire with microsecond precision in UTC.
const wireTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// genericSender posts the full structured event for consumers that want
// more than a text line.
type genericSender struct {
	httpSender
}

func newGenericSender(cfg config.WebhookConfig, timeout time.Duration) *genericSender {
	return &genericSender{httpSender: newHTTPSender(cfg, timeout)}
}

func (s *genericSender) Name() string { return "generic_json" }

type genericPayload struct {
	Source           string                 `json:"source"`
	UserID           uint64                 `json:"user_id"`
	GuildID          uint64                 `json:"guild_id,omitempty"`
	PreviousStatus   string                 `json:"previous_status"`
	CurrentStatus    string                 `json:"current_status"`
	Activity         *presence.ActivityInfo `json:"activity,omitempty"`
	ObservedAt       string                 `json:"observed_at"`
	Text             string                 `json:"text"`
	IsReminder       bool                   `json:"is_reminder"`
	ReminderSequence int                    `json:"reminder_sequence,omitempty"`
	ElapsedSeconds   int64                  `json:"elapsed_seconds,omitempty"`
}

func (s *genericSender) Send(ctx context.Context, ev presence.StatusEvent, text string) error {
	body, err := json.Marshal(genericPayload{
		Source:           presence.Source,
		UserID:           ev.UserID,
		GuildID:          ev.GuildID,
		PreviousStatus:   string(ev.Previous),
		CurrentStatus:    string(ev.Current),
		Activity:         ev.Activity,
		ObservedAt:       ev.ObservedAt.UTC().Format(wireTimeLayout),
		Text:             text,
		IsReminder:       ev.IsReminder,
		ReminderSequence: ev.ReminderSequence,
		ElapsedSeconds:   int64(ev.Elapsed.Seconds()),
	})
	if err != nil {
		return err
	}
	return s.post(ctx, body)
}

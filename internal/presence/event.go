package presence

import (
	"fmt"
	"time"
)

// Source identifies the feed in outbound payloads.
const Source = "discord.status"

// StatusEvent is the unit handed to the dispatch pipeline: either a real
// transition observed on the feed or a synthetic reminder.
//
// Invariant: Previous != Current, or IsReminder, or the activity changed
// while activity tracking is enabled. A no-op observation never becomes an
// event.
type StatusEvent struct {
	ID      string
	UserID  uint64
	GuildID uint64 // 0 = not scoped to a guild

	Previous Status
	Current  Status
	Activity *ActivityInfo

	ObservedAt time.Time

	IsReminder       bool
	ReminderSequence int
	Elapsed          time.Duration
}

// Text renders the human-readable base text for text-mode senders.
// Prefix/suffix and enrichment are applied by the dispatcher.
func (e StatusEvent) Text() string {
	if e.IsReminder {
		subject := string(e.Current)
		if e.Activity != nil && e.Activity.Name != "" {
			subject = fmt.Sprintf("%s (%s)", e.Current, e.Activity.Name)
		}
		return fmt.Sprintf("Discord status reminder #%d: user %d still %s after %s",
			e.ReminderSequence, e.UserID, subject, e.Elapsed.Round(time.Second))
	}

	prev := string(e.Previous)
	if prev == "" {
		prev = string(StatusUnknown)
	}
	when := e.ObservedAt.Format(time.RFC3339)
	if e.GuildID != 0 {
		return fmt.Sprintf("Discord status changed: user %d in guild %d from %s to %s at %s",
			e.UserID, e.GuildID, prev, e.Current, when)
	}
	return fmt.Sprintf("Discord status changed: user %d from %s to %s at %s",
		e.UserID, prev, e.Current, when)
}

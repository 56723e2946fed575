package presence

import (
	"strings"
	"testing"
	"time"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusOnline, StatusIdle, StatusDnd, StatusOffline, StatusInvisible, StatusUnknown} {
		if !s.Valid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	if Status("busy").Valid() {
		t.Fatalf("unrecognized status accepted")
	}
}

func TestStatusActive(t *testing.T) {
	active := map[Status]bool{
		StatusOnline:    true,
		StatusIdle:      true,
		StatusDnd:       true,
		StatusOffline:   false,
		StatusInvisible: false,
		StatusUnknown:   false,
	}
	for s, want := range active {
		if got := s.Active(); got != want {
			t.Fatalf("%q.Active() = %v, want %v", s, got, want)
		}
	}
}

func TestActivityInfoEqual(t *testing.T) {
	a := &ActivityInfo{Name: "Game", ExternalAppID: 440}
	b := &ActivityInfo{Name: "Game", ExternalAppID: 440}
	c := &ActivityInfo{Name: "Other", ExternalAppID: 440}

	if !a.Equal(b) {
		t.Fatalf("identical activities not equal")
	}
	if a.Equal(c) {
		t.Fatalf("different activities reported equal")
	}
	var nilA *ActivityInfo
	if !nilA.Equal(nil) {
		t.Fatalf("nil == nil must hold")
	}
	if nilA.Equal(a) || a.Equal(nil) {
		t.Fatalf("nil vs non-nil must differ")
	}
}

func TestEventTextTransition(t *testing.T) {
	ev := StatusEvent{
		UserID:     42,
		Previous:   StatusOnline,
		Current:    StatusOffline,
		ObservedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	got := ev.Text()
	for _, want := range []string{"user 42", "from online", "to offline", "2026-03-01T12:00:00Z"} {
		if !strings.Contains(got, want) {
			t.Fatalf("text %q missing %q", got, want)
		}
	}

	ev.GuildID = 7
	if !strings.Contains(ev.Text(), "in guild 7") {
		t.Fatalf("guild-scoped text missing guild id: %q", ev.Text())
	}
}

func TestEventTextReminder(t *testing.T) {
	ev := StatusEvent{
		UserID:           42,
		Previous:         StatusDnd,
		Current:          StatusDnd,
		Activity:         &ActivityInfo{Name: "Team Fortress 2"},
		IsReminder:       true,
		ReminderSequence: 3,
		Elapsed:          90 * time.Minute,
	}
	got := ev.Text()
	for _, want := range []string{"#3", "still dnd (Team Fortress 2)", "1h30m0s"} {
		if !strings.Contains(got, want) {
			t.Fatalf("reminder text %q missing %q", got, want)
		}
	}
}

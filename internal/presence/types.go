// Package presence defines the domain model for the monitored subject:
// coarse online status, optional rich-presence activity, and the events
// emitted when either changes.
package presence

import "time"

// Status is the subject's coarse online state.
type Status string

const (
	StatusOnline    Status = "online"
	StatusIdle      Status = "idle"
	StatusDnd       Status = "dnd"
	StatusOffline   Status = "offline"
	StatusInvisible Status = "invisible"
	StatusUnknown   Status = "unknown"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDnd, StatusOffline, StatusInvisible, StatusUnknown:
		return true
	}
	return false
}

// Active reports whether the subject counts as present (not offline,
// invisible, or unknown).
func (s Status) Active() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDnd:
		return true
	}
	return false
}

// ActivityInfo is the structured rich-presence detail attached to a
// snapshot. ExternalAppID is the key for enrichment lookups (0 = none).
type ActivityInfo struct {
	Name          string `json:"name"`
	Details       string `json:"details,omitempty"`
	State         string `json:"state,omitempty"`
	ExternalAppID uint32 `json:"external_app_id,omitempty"`
}

// Equal compares all fields; either side may be nil.
func (a *ActivityInfo) Equal(b *ActivityInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && a.Details == b.Details &&
		a.State == b.State && a.ExternalAppID == b.ExternalAppID
}

// Snapshot is one observation from the inbound presence feed.
// Immutable once constructed.
type Snapshot struct {
	Status     Status        `json:"status"`
	Activity   *ActivityInfo `json:"activity,omitempty"`
	ObservedAt time.Time     `json:"observed_at"`
}

// PersistedState is the last accepted observation, persisted across
// restarts. ConditionStartedAt anchors reminder elapsed-time computation
// and resets whenever the qualifying condition (status or, when tracked,
// activity) changes.
type PersistedState struct {
	Status             Status        `json:"status"`
	Activity           *ActivityInfo `json:"activity,omitempty"`
	ObservedAt         time.Time     `json:"observed_at"`
	ConditionStartedAt time.Time     `json:"condition_started_at"`
}

// Package session holds the per-participant study session model and the
// in-memory store that owns it for the process lifetime. Durable history
// lives in the repository; this state is volatile by design and is
// reconstructed from historical totals on the next start command.
package session

import "time"

// Session is one participant's tracking state. Values are copied whole in and
// out of the store so readers never observe a partially updated session.
type Session struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`

	AccruedSeconds         int       `json:"accrued_seconds"`
	LastObservedAt         time.Time `json:"last_observed_at"`
	IsActive               bool      `json:"is_active"`
	ReminderElapsedSeconds int       `json:"reminder_elapsed_seconds"`
	Category               string    `json:"category,omitempty"`

	// Game mode overlay; the derived fields are recomputed from
	// ExperienceSeconds on every accrual.
	GameMode          bool    `json:"game_mode"`
	ExperienceSeconds int     `json:"experience_seconds,omitempty"`
	Level             int     `json:"level,omitempty"`
	Wisdom            int     `json:"wisdom,omitempty"`
	Progress          float64 `json:"progress,omitempty"`
	SecondsToNext     int     `json:"seconds_to_next,omitempty"`
}

// Package tracker turns the polled chat feed into per-participant study
// sessions: it classifies events, runs the session state machine, accrues
// elapsed time, fires reminders, and hands acknowledgement messages to the
// dispatch queue. One Tracker owns all mutable state; collaborators (feed,
// transport, repository) are injected interfaces.
package tracker

import (
	"context"
	"time"
)

// ChatEvent is one timestamped author/text pair delivered by the feed.
// Delivery is at-least-once and may be duplicated or out of order.
type ChatEvent struct {
	ParticipantID string
	DisplayName   string
	Text          string
	PublishedAt   time.Time
	AvatarURL     string
}

// Batch is the result of one feed poll. NextCursor is passed back on the
// following fetch, including after a failed one: a source echoes the input
// cursor to retry the same page, or returns it empty to restart pagination
// (for example when the broadcast the cursor belonged to has ended).
type Batch struct {
	Events     []ChatEvent
	NextCursor string
}

// EventSource is the external chat feed client.
type EventSource interface {
	FetchEvents(ctx context.Context, cursor string) (Batch, error)
}

// Totals are a participant's historical aggregates used for welcome and
// summary messages.
type Totals struct {
	TotalDays      int
	TotalSeconds   int
	Last7DaysDays  int
	Last7Seconds   int
	Last28DaysDays int
	Last28Seconds  int
}

// Stats is the persisted game mode state used to seed a returning
// participant's session.
type Stats struct {
	ExperienceSeconds int
	Wisdom            int
}

// Repository is the durable storage collaborator. All calls may fail
// transiently; the tracker logs and moves on, never blocking a transition.
type Repository interface {
	HistoricalTotals(ctx context.Context, participantID string) (Totals, error)
	HistoricalStats(ctx context.Context, participantID string) (Stats, bool, error)
	PersistClosedSession(ctx context.Context, participantID string, accruedSeconds int, closedAt time.Time) error
	PersistStats(ctx context.Context, participantID string, experienceSeconds, wisdom int) error
}

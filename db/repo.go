package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aew2sbee/study-time-tracker/tracker"
)

// Repo implements tracker.Repository on Postgres. One row per closed session
// in study_sessions; one row per participant in game_stats.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo { return &Repo{DB: db} }

// HistoricalTotals aggregates a participant's closed sessions: all-time,
// last-7-day and last-28-day study seconds plus distinct study-day counts.
func (r *Repo) HistoricalTotals(ctx context.Context, participantID string) (tracker.Totals, error) {
	var t tracker.Totals
	row := r.DB.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(accrued_seconds), 0),
			COUNT(DISTINCT (closed_at AT TIME ZONE 'UTC')::date),
			COALESCE(SUM(accrued_seconds) FILTER (WHERE closed_at >= NOW() - INTERVAL '7 days'), 0),
			COUNT(DISTINCT (closed_at AT TIME ZONE 'UTC')::date) FILTER (WHERE closed_at >= NOW() - INTERVAL '7 days'),
			COALESCE(SUM(accrued_seconds) FILTER (WHERE closed_at >= NOW() - INTERVAL '28 days'), 0),
			COUNT(DISTINCT (closed_at AT TIME ZONE 'UTC')::date) FILTER (WHERE closed_at >= NOW() - INTERVAL '28 days')
		FROM study_sessions WHERE participant_id = $1`, participantID)
	if err := row.Scan(&t.TotalSeconds, &t.TotalDays, &t.Last7Seconds, &t.Last7DaysDays, &t.Last28Seconds, &t.Last28DaysDays); err != nil {
		return tracker.Totals{}, fmt.Errorf("historical totals for %s: %w", participantID, err)
	}
	return t, nil
}

// HistoricalStats returns persisted game mode state, absent when the
// participant has never played.
func (r *Repo) HistoricalStats(ctx context.Context, participantID string) (tracker.Stats, bool, error) {
	var s tracker.Stats
	row := r.DB.QueryRowContext(ctx,
		`SELECT experience_seconds, wisdom FROM game_stats WHERE participant_id = $1`, participantID)
	err := row.Scan(&s.ExperienceSeconds, &s.Wisdom)
	if err == sql.ErrNoRows {
		return tracker.Stats{}, false, nil
	}
	if err != nil {
		return tracker.Stats{}, false, fmt.Errorf("historical stats for %s: %w", participantID, err)
	}
	return s, true, nil
}

// PersistClosedSession appends one closed session row.
func (r *Repo) PersistClosedSession(ctx context.Context, participantID string, accruedSeconds int, closedAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO study_sessions (participant_id, accrued_seconds, closed_at) VALUES ($1, $2, $3)`,
		participantID, accruedSeconds, closedAt)
	if err != nil {
		return fmt.Errorf("persist closed session for %s: %w", participantID, err)
	}
	return nil
}

// PersistStats upserts a participant's game mode state.
func (r *Repo) PersistStats(ctx context.Context, participantID string, experienceSeconds, wisdom int) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO game_stats (participant_id, experience_seconds, wisdom, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (participant_id) DO UPDATE SET
			experience_seconds = EXCLUDED.experience_seconds,
			wisdom = EXCLUDED.wisdom,
			updated_at = NOW()`,
		participantID, experienceSeconds, wisdom)
	if err != nil {
		return fmt.Errorf("persist stats for %s: %w", participantID, err)
	}
	return nil
}

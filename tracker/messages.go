package tracker

import (
	"fmt"

	"github.com/aew2sbee/study-time-tracker/session"
)

// Message wording lives here so the state machine and effect runner stay free
// of string formatting. All messages address the participant by display name.

func welcomeMessage(s session.Session, totals Totals, haveTotals bool) string {
	if !haveTotals || totals.TotalDays == 0 {
		return fmt.Sprintf("@%s welcome! Your study timer is running.", s.DisplayName)
	}
	return fmt.Sprintf("@%s welcome back! Day %d of studying with us. Timer is running.",
		s.DisplayName, totals.TotalDays+1)
}

func resumeMessage(s session.Session) string {
	return fmt.Sprintf("@%s back at it! Timer resumed at %s for today.",
		s.DisplayName, formatDuration(s.AccruedSeconds))
}

func summaryMessage(s session.Session, totals Totals, haveTotals bool) string {
	base := fmt.Sprintf("@%s nice work! You studied %s today", s.DisplayName, formatDuration(s.AccruedSeconds))
	if !haveTotals {
		return base + "."
	}
	return fmt.Sprintf("%s. All time: %s over %d days / last 7 days: %s over %d days / last 28 days: %s over %d days.",
		base,
		formatDuration(totals.TotalSeconds+s.AccruedSeconds), totals.TotalDays+1,
		formatDuration(totals.Last7Seconds+s.AccruedSeconds), totals.Last7DaysDays+1,
		formatDuration(totals.Last28Seconds+s.AccruedSeconds), totals.Last28DaysDays+1)
}

func reminderMessage(s session.Session) string {
	return fmt.Sprintf("@%s you've been at it for %s. Time for a quick break?",
		s.DisplayName, formatDuration(s.AccruedSeconds))
}

func levelUpMessage(s session.Session) string {
	return fmt.Sprintf("@%s leveled up! Now level %d with %d wisdom (%s to the next level).",
		s.DisplayName, s.Level, s.Wisdom, formatDuration(s.SecondsToNext))
}

// formatDuration renders whole seconds as "1h30m5s" style chat text.
func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

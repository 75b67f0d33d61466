package tracker

import (
	"math/rand"
	"time"

	"github.com/aew2sbee/study-time-tracker/command"
	"github.com/aew2sbee/study-time-tracker/leveling"
	"github.com/aew2sbee/study-time-tracker/session"
)

// EffectKind tags a side effect produced by a state transition. Effects are
// plain values; the tracker's effect runner executes them after the store
// mutation has been committed, so the transition logic itself does no I/O.
type EffectKind int

const (
	// EffectWelcome greets a first-seen participant; the runner looks up
	// the historical participation-day count to phrase it.
	EffectWelcome EffectKind = iota
	// EffectResume acknowledges an idle participant starting again.
	EffectResume
	// EffectSummary reports today's total plus historical aggregates after
	// an end command.
	EffectSummary
	// EffectReminder nudges a session that has been active past the
	// configured threshold.
	EffectReminder
	// EffectLevelUp announces a game mode level-up and its wisdom reward.
	EffectLevelUp
	// EffectPersistSession writes a closed session to the repository.
	EffectPersistSession
	// EffectPersistStats writes game mode experience/wisdom to the repository.
	EffectPersistStats
)

// Effect carries the session snapshot taken right after the transition, plus
// the fields each kind needs.
type Effect struct {
	Kind     EffectKind
	Session  session.Session
	ClosedAt time.Time
}

// machine applies classified events and accrual ticks to sessions. It holds
// only immutable configuration plus the injected random source for wisdom
// rolls, so transitions are reproducible given the same inputs and seed.
type machine struct {
	curve         leveling.Curve
	initialWisdom int
	maxWisdom     int
	rng           *rand.Rand
}

// apply runs one classified event against the participant's current state.
// known is false when the store has no row for this participant; seed carries
// repository game stats (nil when absent) and is only consulted when a level
// toggle creates a session. The returned bool reports whether the session
// changed and must be upserted.
func (m *machine) apply(cur session.Session, known bool, cmd command.Command, ev ChatEvent, seed *Stats) (session.Session, []Effect, bool) {
	eventTime := ev.PublishedAt

	if !known {
		switch cmd.Kind {
		case command.Start:
			next := session.Session{
				ID:             ev.ParticipantID,
				DisplayName:    ev.DisplayName,
				AvatarURL:      ev.AvatarURL,
				LastObservedAt: eventTime,
				IsActive:       true,
			}
			return next, []Effect{{Kind: EffectWelcome, Session: next}}, true
		case command.LevelToggle:
			next := session.Session{
				ID:             ev.ParticipantID,
				DisplayName:    ev.DisplayName,
				AvatarURL:      ev.AvatarURL,
				LastObservedAt: eventTime,
				IsActive:       true,
				GameMode:       true,
				Wisdom:         m.initialWisdom,
			}
			if seed != nil {
				next.ExperienceSeconds = seed.ExperienceSeconds
				next.Wisdom = seed.Wisdom
			}
			next = m.refreshDerived(next)
			return next, nil, true
		default:
			// Nothing to create; chatter from unseen participants is ignored.
			return session.Session{}, nil, false
		}
	}

	next := cur
	// Display labels follow the feed, last seen wins.
	if ev.DisplayName != "" {
		next.DisplayName = ev.DisplayName
	}
	if ev.AvatarURL != "" {
		next.AvatarURL = ev.AvatarURL
	}

	var effects []Effect
	switch cmd.Kind {
	case command.Start:
		if cur.IsActive {
			break // duplicate start, safe no-op
		}
		next.IsActive = true
		next.LastObservedAt = eventTime
		next.ReminderElapsedSeconds = 0
		effects = append(effects, Effect{Kind: EffectResume, Session: next})
	case command.End:
		if !cur.IsActive {
			break // duplicate end, safe no-op
		}
		delta := leveling.AccrueDelta(cur.LastObservedAt, eventTime)
		next.AccruedSeconds += delta
		next.LastObservedAt = eventTime
		next.IsActive = false
		if cur.GameMode {
			next.ExperienceSeconds += delta
			next = m.refreshDerived(next)
			next.GameMode = false
			effects = append(effects,
				Effect{Kind: EffectPersistStats, Session: next, ClosedAt: eventTime})
		} else {
			// Summary before persist: the runner reads historical totals
			// while they still exclude the session being closed, and the
			// message adds today's time on top.
			effects = append(effects,
				Effect{Kind: EffectSummary, Session: next, ClosedAt: eventTime},
				Effect{Kind: EffectPersistSession, Session: next, ClosedAt: eventTime})
		}
	case command.CategoryUpdate:
		if !cur.IsActive {
			break
		}
		next.Category = cmd.Category
	case command.LevelToggle:
		// Already known: toggling an existing game mode session is a no-op.
	}

	changed := next != cur
	return next, effects, changed
}

// accrue advances an active session's clocks to now. Game mode sessions also
// earn experience; crossing a level boundary rolls the wisdom reward and
// emits a level-up effect per level gained.
func (m *machine) accrue(cur session.Session, now time.Time) (session.Session, []Effect) {
	if !cur.IsActive {
		return cur, nil
	}
	delta := leveling.AccrueDelta(cur.LastObservedAt, now)
	if delta == 0 {
		return cur, nil
	}
	next := cur
	next.AccruedSeconds += delta
	next.ReminderElapsedSeconds += delta
	next.LastObservedAt = now

	var effects []Effect
	if cur.GameMode {
		prevLevel := m.curve.Level(cur.ExperienceSeconds)
		next.ExperienceSeconds += delta
		newLevel := m.curve.Level(next.ExperienceSeconds)
		for lvl := prevLevel; lvl < newLevel; lvl++ {
			gain := m.curve.WisdomGain(m.rng, lvl, next.Wisdom, m.maxWisdom)
			next.Wisdom += gain
		}
		next = m.refreshDerived(next)
		if newLevel > prevLevel {
			effects = append(effects, Effect{Kind: EffectLevelUp, Session: next})
		}
	}
	return next, effects
}

// checkReminder fires at most one reminder once the active-time counter
// crosses the threshold, then resets the counter.
func (m *machine) checkReminder(cur session.Session, threshold int) (session.Session, []Effect) {
	if !cur.IsActive || cur.ReminderElapsedSeconds < threshold {
		return cur, nil
	}
	next := cur
	next.ReminderElapsedSeconds = 0
	return next, []Effect{{Kind: EffectReminder, Session: next}}
}

// refreshDerived recomputes the cached leveling fields from experience.
func (m *machine) refreshDerived(s session.Session) session.Session {
	stats := m.curve.StatsFor(s.ExperienceSeconds)
	s.Level = stats.Level
	s.Progress = stats.Progress
	s.SecondsToNext = stats.SecondsToNext
	return s
}

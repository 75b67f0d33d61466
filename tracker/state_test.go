package tracker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/aew2sbee/study-time-tracker/command"
	"github.com/aew2sbee/study-time-tracker/leveling"
	"github.com/aew2sbee/study-time-tracker/session"
)

func newTestMachine() *machine {
	return &machine{
		curve:         leveling.NewCurve(100, 3600000, 2.04),
		initialWisdom: 100,
		maxWisdom:     10000,
		rng:           rand.New(rand.NewSource(1)),
	}
}

func TestApplyIgnoresChatterFromUnknownParticipants(t *testing.T) {
	m := newTestMachine()
	ev := ChatEvent{ParticipantID: "p1", DisplayName: "Alice", PublishedAt: time.Now()}
	for _, cmd := range []command.Command{
		{Kind: command.None},
		{Kind: command.End},
		{Kind: command.CategoryUpdate, Category: "math"},
	} {
		_, effects, changed := m.apply(session.Session{}, false, cmd, ev, nil)
		if changed || len(effects) != 0 {
			t.Errorf("cmd %v on unknown participant: changed=%v effects=%d", cmd.Kind, changed, len(effects))
		}
	}
}

func TestApplyOutOfOrderEndNeverGoesNegative(t *testing.T) {
	m := newTestMachine()
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	cur := session.Session{ID: "p1", IsActive: true, LastObservedAt: t0, AccruedSeconds: 120}

	// End event timestamped before the accrual basis (out-of-order redelivery).
	ev := ChatEvent{ParticipantID: "p1", PublishedAt: t0.Add(-time.Minute)}
	next, _, changed := m.apply(cur, true, command.Command{Kind: command.End}, ev, nil)
	if !changed {
		t.Fatal("end should still close the session")
	}
	if next.AccruedSeconds != 120 {
		t.Errorf("accrued = %d, want unchanged 120", next.AccruedSeconds)
	}
	if next.IsActive {
		t.Error("session should be idle")
	}
}

func TestApplyDisplayNameLastSeenWins(t *testing.T) {
	m := newTestMachine()
	t0 := time.Now()
	cur := session.Session{ID: "p1", DisplayName: "Old", IsActive: true, LastObservedAt: t0}
	ev := ChatEvent{ParticipantID: "p1", DisplayName: "New", PublishedAt: t0}
	next, _, changed := m.apply(cur, true, command.Command{Kind: command.CategoryUpdate, Category: "math"}, ev, nil)
	if !changed || next.DisplayName != "New" {
		t.Errorf("display name = %q, want New", next.DisplayName)
	}
}

func TestApplyLevelToggleOnExistingSessionIsNoOp(t *testing.T) {
	m := newTestMachine()
	t0 := time.Now()
	cur := session.Session{ID: "p1", DisplayName: "Alice", IsActive: true, GameMode: true, LastObservedAt: t0, Level: 1, Wisdom: 100}
	ev := ChatEvent{ParticipantID: "p1", DisplayName: "Alice", PublishedAt: t0.Add(time.Minute)}
	next, effects, changed := m.apply(cur, true, command.Command{Kind: command.LevelToggle}, ev, nil)
	if changed || len(effects) != 0 {
		t.Errorf("toggle on game session: changed=%v effects=%d next=%+v", changed, len(effects), next)
	}
}

func TestAccrueRollsWisdomAcrossLevelUps(t *testing.T) {
	m := newTestMachine()
	t0 := time.Now()
	// Sit just below the level 3 boundary and cross it in one tick.
	exp := m.curve.RequiredTime(3) - 10
	cur := session.Session{
		ID: "p1", IsActive: true, GameMode: true,
		LastObservedAt: t0, ExperienceSeconds: exp,
		Level: m.curve.Level(exp), Wisdom: 100,
	}
	next, effects := m.accrue(cur, t0.Add(20*time.Second))
	if next.Level <= cur.Level {
		t.Fatalf("level = %d, want above %d", next.Level, cur.Level)
	}
	if next.Wisdom <= cur.Wisdom {
		t.Errorf("wisdom = %d, want a reward above %d", next.Wisdom, cur.Wisdom)
	}
	found := false
	for _, e := range effects {
		if e.Kind == EffectLevelUp {
			found = true
		}
	}
	if !found {
		t.Error("no level-up effect emitted")
	}
}

func TestAccrueInactiveIsNoOp(t *testing.T) {
	m := newTestMachine()
	cur := session.Session{ID: "p1", IsActive: false, AccruedSeconds: 50, LastObservedAt: time.Now().Add(-time.Hour)}
	next, effects := m.accrue(cur, time.Now())
	if next != cur || len(effects) != 0 {
		t.Errorf("idle session accrued: %+v", next)
	}
}

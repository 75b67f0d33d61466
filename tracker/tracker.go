package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aew2sbee/study-time-tracker/command"
	"github.com/aew2sbee/study-time-tracker/config"
	"github.com/aew2sbee/study-time-tracker/dispatch"
	"github.com/aew2sbee/study-time-tracker/leveling"
	"github.com/aew2sbee/study-time-tracker/session"
	"github.com/aew2sbee/study-time-tracker/telemetry"
)

// Snapshot is the published point-in-time view of every session.
type Snapshot struct {
	At       time.Time         `json:"at"`
	Sessions []session.Session `json:"sessions"`
}

// Status summarizes the loop for the HTTP status endpoint.
type Status struct {
	CycleCount     uint64    `json:"cycle_count"`
	LastCycleAt    time.Time `json:"last_cycle_at"`
	KnownSessions  int       `json:"known_sessions"`
	ActiveSessions int       `json:"active_sessions"`
	QueueDepth     int       `json:"queue_depth"`
}

// Tracker owns the session store, the dispatch queue, and the poll cycle.
// The cycle phases run strictly in order and never overlap; the next cycle
// is scheduled relative to completion so slow external calls cannot pile up.
type Tracker struct {
	cfg        *config.Config
	store      *session.Store
	queue      *dispatch.Queue
	repo       Repository
	source     EventSource
	classifier *command.Classifier
	machine    *machine

	now    func() time.Time
	cursor string

	cycleMu sync.Mutex // serializes cycles

	statusMu    sync.Mutex
	cycleCount  uint64
	lastCycleAt time.Time

	subMu    sync.Mutex
	subs     map[int]chan Snapshot
	nextSub  int
	lastSnap *Snapshot
}

func New(cfg *config.Config, store *session.Store, queue *dispatch.Queue, repo Repository, source EventSource) *Tracker {
	telemetry.Init()
	return &Tracker{
		cfg:    cfg,
		store:  store,
		queue:  queue,
		repo:   repo,
		source: source,
		classifier: command.NewClassifier(
			cfg.StartKeywords, cfg.EndKeywords, cfg.LevelKeywords, cfg.Categories),
		machine: &machine{
			curve:         leveling.NewCurve(cfg.MaxLevel, cfg.MaxTimeSeconds, cfg.LevelExponent),
			initialWisdom: cfg.InitialWisdom,
			maxWisdom:     cfg.MaxWisdom,
			rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		},
		now:  time.Now,
		subs: make(map[int]chan Snapshot),
	}
}

// Run executes poll cycles until ctx is canceled. Each wait starts after the
// previous cycle fully completed, including the dispatch drain.
func (t *Tracker) Run(ctx context.Context) {
	slog.Info("tracker starting",
		slog.Duration("poll_interval", t.cfg.PollInterval),
		slog.Duration("reminder_threshold", t.cfg.ReminderThreshold))
	for {
		t.Cycle(ctx)
		select {
		case <-ctx.Done():
			slog.Info("tracker stopped")
			return
		case <-time.After(t.cfg.PollInterval):
		}
	}
}

// Cycle runs the six phases once: fetch+apply events, accrue active time,
// reminder checks, queue drain, snapshot publish. Each phase is isolated;
// a failure or panic in one is logged and the rest still run.
func (t *Tracker) Cycle(ctx context.Context) {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	ctx = telemetry.WithCorrelation(ctx, uuid.New().String())

	telemetry.TimeFunc(telemetry.CycleDuration, func() {
		t.phase(ctx, "events", t.fetchAndApply)
		t.phase(ctx, "accrue", t.accrueAll)
		t.phase(ctx, "reminders", t.checkReminders)
		t.phase(ctx, "drain", func(ctx context.Context) error {
			t.queue.Drain(ctx)
			return nil
		})
		t.phase(ctx, "publish", t.publishSnapshot)
	})
	if telemetry.PollCycles != nil {
		telemetry.PollCycles.Inc()
	}
	t.statusMu.Lock()
	t.cycleCount++
	t.lastCycleAt = t.now()
	t.statusMu.Unlock()
}

// phase isolates one cycle phase: errors are logged, panics are contained,
// and neither stops the phases that follow or the next scheduled cycle.
func (t *Tracker) phase(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.LoggerWithCorr(ctx).Error("cycle phase panicked",
				slog.String("phase", name), slog.Any("panic", r), slog.String("component", "tracker"))
		}
	}()
	if err := fn(ctx); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("cycle phase failed",
			slog.String("phase", name), slog.Any("err", err), slog.String("component", "tracker"))
	}
}

// fetchAndApply pulls new events from the feed and runs each through the
// classifier and state machine in arrival order.
func (t *Tracker) fetchAndApply(ctx context.Context) error {
	batch, err := t.source.FetchEvents(ctx, t.cursor)
	// Adopt the returned cursor even on failure: a source that cannot resume
	// its pagination (ended broadcast) signals the restart through an empty
	// NextCursor, while transient failures echo the input cursor back.
	t.cursor = batch.NextCursor
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	for _, ev := range batch.Events {
		if ev.ParticipantID == "" {
			if telemetry.EventsDropped != nil {
				telemetry.EventsDropped.Inc()
			}
			continue
		}
		if ev.PublishedAt.IsZero() {
			ev.PublishedAt = t.now()
		}
		cmd := t.classifier.Parse(ev.Text)
		cur, known := t.store.Get(ev.ParticipantID)
		if !known && cmd.Kind != command.Start && cmd.Kind != command.LevelToggle {
			continue
		}

		var seed *Stats
		if !known && cmd.Kind == command.LevelToggle {
			if st, ok, err := t.repo.HistoricalStats(ctx, ev.ParticipantID); err != nil {
				telemetry.LoggerWithCorr(ctx).Warn("historical stats lookup failed",
					slog.String("participant", ev.ParticipantID), slog.Any("err", err))
			} else if ok {
				seed = &st
			}
		}

		next, effects, changed := t.machine.apply(cur, known, cmd, ev, seed)
		if changed {
			t.store.Upsert(next)
		}
		t.runEffects(ctx, effects)
		telemetry.CountEvent()
	}
	return nil
}

// accrueAll advances every active session's clock to now.
func (t *Tracker) accrueAll(ctx context.Context) error {
	now := t.now()
	for _, s := range t.store.Active() {
		next, effects := t.machine.accrue(s, now)
		if next != s {
			t.store.Upsert(next)
		}
		t.runEffects(ctx, effects)
	}
	return nil
}

// checkReminders enqueues a nudge for sessions past the active-time threshold.
func (t *Tracker) checkReminders(ctx context.Context) error {
	threshold := int(t.cfg.ReminderThreshold / time.Second)
	for _, s := range t.store.Active() {
		next, effects := t.machine.checkReminder(s, threshold)
		if len(effects) > 0 {
			t.store.Upsert(next)
		}
		t.runEffects(ctx, effects)
	}
	return nil
}

// runEffects executes transition side effects after the store mutation has
// been committed. Repository failures are logged and never retried inline;
// messages degrade to in-memory data when historical lookups fail.
func (t *Tracker) runEffects(ctx context.Context, effects []Effect) {
	for _, e := range effects {
		s := e.Session
		switch e.Kind {
		case EffectWelcome:
			totals, err := t.repo.HistoricalTotals(ctx, s.ID)
			if err != nil {
				telemetry.LoggerWithCorr(ctx).Warn("historical totals lookup failed",
					slog.String("participant", s.ID), slog.Any("err", err))
			}
			t.queue.Enqueue(s.DisplayName, welcomeMessage(s, totals, err == nil))
			if telemetry.SessionsStarted != nil {
				telemetry.SessionsStarted.Inc()
			}
		case EffectResume:
			t.queue.Enqueue(s.DisplayName, resumeMessage(s))
			if telemetry.SessionsStarted != nil {
				telemetry.SessionsStarted.Inc()
			}
		case EffectSummary:
			totals, err := t.repo.HistoricalTotals(ctx, s.ID)
			if err != nil {
				telemetry.LoggerWithCorr(ctx).Warn("historical totals lookup failed",
					slog.String("participant", s.ID), slog.Any("err", err))
			}
			t.queue.Enqueue(s.DisplayName, summaryMessage(s, totals, err == nil))
			if telemetry.SessionsClosed != nil {
				telemetry.SessionsClosed.Inc()
			}
		case EffectReminder:
			t.queue.Enqueue(s.DisplayName, reminderMessage(s))
			if telemetry.RemindersSent != nil {
				telemetry.RemindersSent.Inc()
			}
		case EffectLevelUp:
			t.queue.Enqueue(s.DisplayName, levelUpMessage(s))
			if telemetry.LevelUps != nil {
				telemetry.LevelUps.Inc()
			}
		case EffectPersistSession:
			if err := t.repo.PersistClosedSession(ctx, s.ID, s.AccruedSeconds, e.ClosedAt); err != nil {
				telemetry.LoggerWithCorr(ctx).Warn("persist closed session failed",
					slog.String("participant", s.ID), slog.Any("err", err))
				if telemetry.PersistFailures != nil {
					telemetry.PersistFailures.Inc()
				}
			}
		case EffectPersistStats:
			if err := t.repo.PersistStats(ctx, s.ID, s.ExperienceSeconds, s.Wisdom); err != nil {
				telemetry.LoggerWithCorr(ctx).Warn("persist stats failed",
					slog.String("participant", s.ID), slog.Any("err", err))
				if telemetry.PersistFailures != nil {
					telemetry.PersistFailures.Inc()
				}
			}
		}
	}
}

// publishSnapshot fans the current session view out to subscribers. Sends are
// non-blocking; a subscriber that has not consumed the previous snapshot
// misses this one rather than stalling the cycle.
func (t *Tracker) publishSnapshot(context.Context) error {
	snap := Snapshot{At: t.now(), Sessions: t.store.All()}
	active := 0
	for _, s := range snap.Sessions {
		if s.IsActive {
			active++
		}
	}
	telemetry.SetActiveSessions(active)

	t.subMu.Lock()
	t.lastSnap = &snap
	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	t.subMu.Unlock()
	return nil
}

// Subscribe registers a snapshot listener. The returned channel receives the
// latest snapshot after each cycle (primed with the most recent one, when
// available); the cancel func drops the subscription and closes the channel.
func (t *Tracker) Subscribe() (<-chan Snapshot, func()) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	id := t.nextSub
	t.nextSub++
	ch := make(chan Snapshot, 1)
	if t.lastSnap != nil {
		ch <- *t.lastSnap
	}
	t.subs[id] = ch
	return ch, func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
}

// Sessions returns a copy of every known session.
func (t *Tracker) Sessions() []session.Session { return t.store.All() }

// ActiveSessions returns a copy of the currently studying sessions.
func (t *Tracker) ActiveSessions() []session.Session { return t.store.Active() }

// Status reports loop counters for the HTTP surface.
func (t *Tracker) Status() Status {
	t.statusMu.Lock()
	count, last := t.cycleCount, t.lastCycleAt
	t.statusMu.Unlock()
	return Status{
		CycleCount:     count,
		LastCycleAt:    last,
		KnownSessions:  t.store.Len(),
		ActiveSessions: len(t.store.Active()),
		QueueDepth:     t.queue.Len(),
	}
}

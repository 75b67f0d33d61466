// Package twitchchat adapts a Twitch IRC connection to the tracker's polled
// feed interface. Messages arrive push-style over IRC; the source buffers
// them and hands the buffer over on each poll.
package twitchchat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/aew2sbee/study-time-tracker/config"
	"github.com/aew2sbee/study-time-tracker/tracker"
)

// maxBuffered caps the backlog between polls; beyond it the oldest messages
// are dropped so a stalled poll loop cannot grow memory without bound.
const maxBuffered = 4096

// Source buffers Twitch IRC messages and drains them on FetchEvents.
type Source struct {
	cfg    *config.Config
	client *twitch.Client

	mu      sync.Mutex
	pending []tracker.ChatEvent
	dropped int
}

// NewSource builds the IRC client and registers the message handler. Call
// Run to connect.
func NewSource(cfg *config.Config) *Source {
	src := &Source{cfg: cfg}
	client := twitch.NewClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken)
	client.OnPrivateMessage(src.onMessage)
	client.Join(cfg.TwitchChannel)
	src.client = client
	return src
}

func (s *Source) onMessage(msg twitch.PrivateMessage) {
	ev := tracker.ChatEvent{
		ParticipantID: msg.User.ID,
		DisplayName:   msg.User.DisplayName,
		Text:          msg.Message,
		PublishedAt:   msg.Time,
	}
	if ev.PublishedAt.IsZero() {
		ev.PublishedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= maxBuffered {
		s.pending = s.pending[1:]
		s.dropped++
	}
	s.pending = append(s.pending, ev)
}

// Run connects to Twitch IRC and blocks until ctx is cancelled. Connect
// reconnects internally on transient errors.
func (s *Source) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := s.client.Disconnect(); err != nil {
			slog.Debug("twitch disconnect", "err", err)
		}
		close(done)
	}()
	slog.Info("connecting to twitch chat", "channel", s.cfg.TwitchChannel)
	err := s.client.Connect()
	<-done
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("twitch chat connect: %w", err)
	}
	return nil
}

// FetchEvents drains the buffered messages. The cursor is unused; IRC has no
// replay, so each message is delivered exactly once per connection.
func (s *Source) FetchEvents(ctx context.Context, cursor string) (tracker.Batch, error) {
	s.mu.Lock()
	events := s.pending
	dropped := s.dropped
	s.pending = nil
	s.dropped = 0
	s.mu.Unlock()
	if dropped > 0 {
		slog.Warn("twitch chat buffer overflow", "dropped", dropped)
	}
	return tracker.Batch{Events: events, NextCursor: cursor}, nil
}

// Send posts one message to the joined channel, satisfying the dispatch
// transport interface so the same connection carries replies.
func (s *Source) Send(ctx context.Context, text string) error {
	s.client.Say(s.cfg.TwitchChannel, text)
	return nil
}

package twitchchat

import (
	"context"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/aew2sbee/study-time-tracker/config"
)

func testSource() *Source {
	return NewSource(&config.Config{
		TwitchChannel:     "studychannel",
		TwitchBotUsername: "studybot",
		TwitchOAuthToken:  "oauth:test",
	})
}

func TestFetchEventsDrainsBuffer(t *testing.T) {
	src := testSource()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src.onMessage(twitch.PrivateMessage{
		User:    twitch.User{ID: "1001", DisplayName: "alice"},
		Message: "!start",
		Time:    ts,
	})
	src.onMessage(twitch.PrivateMessage{
		User:    twitch.User{ID: "1002", DisplayName: "bob"},
		Message: "hello",
		Time:    ts.Add(time.Second),
	})

	batch, err := src.FetchEvents(context.Background(), "cur")
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if batch.NextCursor != "cur" {
		t.Errorf("cursor = %q, want passthrough", batch.NextCursor)
	}
	if len(batch.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(batch.Events))
	}
	ev := batch.Events[0]
	if ev.ParticipantID != "1001" || ev.DisplayName != "alice" || ev.Text != "!start" || !ev.PublishedAt.Equal(ts) {
		t.Errorf("unexpected event: %+v", ev)
	}

	// drained; second fetch is empty
	batch, err = src.FetchEvents(context.Background(), "cur")
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if len(batch.Events) != 0 {
		t.Errorf("events = %d after drain, want 0", len(batch.Events))
	}
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	src := testSource()
	for i := 0; i < maxBuffered+5; i++ {
		src.onMessage(twitch.PrivateMessage{
			User:    twitch.User{ID: "1001", DisplayName: "alice"},
			Message: "spam",
			Time:    time.Now(),
		})
	}
	batch, err := src.FetchEvents(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if len(batch.Events) != maxBuffered {
		t.Errorf("events = %d, want capped at %d", len(batch.Events), maxBuffered)
	}
}

func TestZeroTimeDefaultsToNow(t *testing.T) {
	src := testSource()
	before := time.Now().UTC()
	src.onMessage(twitch.PrivateMessage{
		User:    twitch.User{ID: "1001", DisplayName: "alice"},
		Message: "!start",
	})
	batch, _ := src.FetchEvents(context.Background(), "")
	if len(batch.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(batch.Events))
	}
	if batch.Events[0].PublishedAt.Before(before) {
		t.Errorf("published = %v, want >= %v", batch.Events[0].PublishedAt, before)
	}
}

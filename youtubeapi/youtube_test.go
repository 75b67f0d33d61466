package youtubeapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/aew2sbee/study-time-tracker/config"
	"github.com/aew2sbee/study-time-tracker/testutil"
)

// mockTokenStore implements TokenStore for testing
type mockTokenStore struct {
	tokens map[string]tokenData
}

type tokenData struct {
	access  string
	refresh string
	expiry  time.Time
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{tokens: make(map[string]tokenData)}
}

func (m *mockTokenStore) UpsertOAuthToken(ctx context.Context, provider, accessToken, refreshToken string, expiry time.Time) error {
	m.tokens[provider] = tokenData{access: accessToken, refresh: refreshToken, expiry: expiry}
	return nil
}

func (m *mockTokenStore) GetOAuthToken(ctx context.Context, provider string) (string, string, time.Time, error) {
	if data, ok := m.tokens[provider]; ok {
		return data.access, data.refresh, data.expiry, nil
	}
	return "", "", time.Time{}, nil
}

func seededStore() *mockTokenStore {
	store := newMockTokenStore()
	store.tokens[provider] = tokenData{
		access:  "valid-access-token",
		refresh: "refresh-token",
		expiry:  time.Now().Add(time.Hour),
	}
	return store
}

func testConfig() *config.Config {
	return &config.Config{
		ChatSource:     "youtube",
		YTChannelID:    "UCchannel",
		YTClientID:     "test-client-id",
		YTClientSecret: "test-secret",
		YTRedirectURI:  "http://localhost/callback",
	}
}

func TestNewScopeParsing(t *testing.T) {
	tests := []struct {
		name    string
		scopes  string
		wantLen int
	}{
		{name: "default scope", scopes: "", wantLen: 1},
		{name: "space separated", scopes: "scope-a scope-b", wantLen: 2},
		{name: "comma separated", scopes: "scope-a,scope-b,scope-c", wantLen: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.YTScopes = tt.scopes
			svc := New(cfg, newMockTokenStore())
			if got := len(svc.oauth.Scopes); got != tt.wantLen {
				t.Errorf("scopes = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestRefreshIfNeededNoToken(t *testing.T) {
	svc := New(testConfig(), newMockTokenStore())
	if _, err := svc.RefreshIfNeeded(context.Background()); err == nil {
		t.Fatal("expected error with no stored token")
	}
}

func TestRefreshIfNeededFreshTokenSkipsRefresh(t *testing.T) {
	svc := New(testConfig(), seededStore())
	tok, err := svc.RefreshIfNeeded(context.Background())
	if err != nil {
		t.Fatalf("RefreshIfNeeded: %v", err)
	}
	if tok.AccessToken != "valid-access-token" {
		t.Errorf("access token = %q, want stored token", tok.AccessToken)
	}
}

func TestFetchEventsMapsMessages(t *testing.T) {
	mock := testutil.NewMockYouTubeServer(t)
	mock.MockLiveBroadcast("vid-1", "chat-1")
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.MockChatMessages([]testutil.ChatMessage{
		{AuthorID: "UCalice", DisplayName: "alice", AvatarURL: "http://img/a", Text: "!start", PublishedAt: published.Format(time.RFC3339)},
		{AuthorID: "UCbob", DisplayName: "bob", Text: "hello"},
	}, "page-2")

	svc := New(testConfig(), seededStore(), option.WithEndpoint(mock.URL))
	src := NewSource(svc)

	batch, err := src.FetchEvents(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchEvents: %v", err)
	}
	if batch.NextCursor != "page-2" {
		t.Errorf("cursor = %q, want page-2", batch.NextCursor)
	}
	if len(batch.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(batch.Events))
	}
	ev := batch.Events[0]
	if ev.ParticipantID != "UCalice" || ev.DisplayName != "alice" || ev.Text != "!start" || ev.AvatarURL != "http://img/a" {
		t.Errorf("unexpected event mapping: %+v", ev)
	}
	if !ev.PublishedAt.Equal(published) {
		t.Errorf("published = %v, want %v", ev.PublishedAt, published)
	}
}

func TestFetchEventsKeepsCursorOnListError(t *testing.T) {
	mock := testutil.NewMockYouTubeServer(t)
	mock.MockLiveBroadcast("vid-1", "chat-1")
	mock.MockChatError(503, "backendError")

	svc := New(testConfig(), seededStore(), option.WithEndpoint(mock.URL))
	src := NewSource(svc)

	batch, err := src.FetchEvents(context.Background(), "page-7")
	if err == nil {
		t.Fatal("expected error")
	}
	if batch.NextCursor != "page-7" {
		t.Errorf("cursor = %q, want page-7 preserved on transient failure", batch.NextCursor)
	}
}

func TestFetchEventsChatEndedInvalidatesCache(t *testing.T) {
	mock := testutil.NewMockYouTubeServer(t)
	mock.MockLiveBroadcast("vid-1", "chat-1")
	mock.MockChatError(403, "liveChatEnded")

	svc := New(testConfig(), seededStore(), option.WithEndpoint(mock.URL))
	src := NewSource(svc)

	batch, err := src.FetchEvents(context.Background(), "page-3")
	if err == nil || !strings.Contains(err.Error(), "live chat ended") {
		t.Fatalf("err = %v, want live chat ended", err)
	}
	if batch.NextCursor != "" {
		t.Errorf("cursor = %q, want reset after chat ended", batch.NextCursor)
	}
	svc.mu.Lock()
	cached := svc.liveChatID
	svc.mu.Unlock()
	if cached != "" {
		t.Errorf("live chat id still cached: %q", cached)
	}
}

func TestSenderPostsMessage(t *testing.T) {
	mock := testutil.NewMockYouTubeServer(t)
	mock.MockLiveBroadcast("vid-1", "chat-1")
	var posted []string
	mock.MockChatInsert(&posted)

	svc := New(testConfig(), seededStore(), option.WithEndpoint(mock.URL))
	snd := NewSender(svc)

	if err := snd.Send(context.Background(), "@alice nice work!"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(posted) != 1 || posted[0] != "@alice nice work!" {
		t.Errorf("posted = %v", posted)
	}
}

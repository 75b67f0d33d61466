// Package youtubeapi wraps Google OAuth2 client config and the YouTube Data
// API for reading live chat messages and posting replies. Tokens are persisted
// via the provided TokenStore interface so they survive restarts and can be
// refreshed in the background.
package youtubeapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/aew2sbee/study-time-tracker/config"
	"github.com/aew2sbee/study-time-tracker/tracker"
)

const provider = "youtube"

// TokenStore persists OAuth tokens between runs.
type TokenStore interface {
	UpsertOAuthToken(ctx context.Context, provider string, accessToken string, refreshToken string, expiry time.Time) error
	GetOAuthToken(ctx context.Context, provider string) (accessToken string, refreshToken string, expiry time.Time, err error)
}

// Service holds the OAuth2 client config and token store. It resolves the
// channel's active live chat lazily and caches the chat id until the
// broadcast ends.
type Service struct {
	cfg   *config.Config
	db    TokenStore
	oauth *oauth2.Config
	opts  []option.ClientOption

	mu         sync.Mutex
	liveChatID string
}

// New builds a Service from config. Extra client options are passed through
// to the YouTube API client (tests use option.WithEndpoint).
func New(cfg *config.Config, ts TokenStore, opts ...option.ClientOption) *Service {
	scopes := []string{"https://www.googleapis.com/auth/youtube"}
	if cfg.YTScopes != "" {
		// allow comma or space separated
		s := strings.ReplaceAll(cfg.YTScopes, ",", " ")
		if fields := strings.Fields(s); len(fields) > 0 {
			scopes = fields
		}
	}
	oauth := &oauth2.Config{
		ClientID:     cfg.YTClientID,
		ClientSecret: cfg.YTClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.YTRedirectURI,
		Scopes:       scopes,
	}
	return &Service{cfg: cfg, db: ts, oauth: oauth, opts: opts}
}

// AuthCodeURL returns the consent URL for the initial one-time authorization.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and persists them.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpsertOAuthToken(ctx, provider, tok.AccessToken, tok.RefreshToken, tok.Expiry); err != nil {
		slog.Warn("persist youtube token failed", "err", err)
	}
	return tok, nil
}

// RefreshIfNeeded returns a valid token, refreshing through the stored
// refresh token when the access token is within two minutes of expiry.
func (s *Service) RefreshIfNeeded(ctx context.Context) (*oauth2.Token, error) {
	access, refresh, expiry, err := s.db.GetOAuthToken(ctx, provider)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, errors.New("no youtube token stored")
	}
	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, Expiry: expiry}
	if time.Until(tok.Expiry) > 2*time.Minute {
		return tok, nil
	}
	newTok, err := s.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return tok, err
	}
	if err := s.db.UpsertOAuthToken(ctx, provider, newTok.AccessToken, newTok.RefreshToken, newTok.Expiry); err != nil {
		slog.Warn("persist refreshed youtube token failed", "err", err)
	}
	return newTok, nil
}

// Client returns an authenticated YouTube API client.
func (s *Service) Client(ctx context.Context) (*yt.Service, error) {
	tok, err := s.RefreshIfNeeded(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(s.oauth.Client(ctx, tok))}, s.opts...)
	return yt.NewService(ctx, opts...)
}

// resolveLiveChatID finds the channel's active broadcast and returns its live
// chat id. The result is cached; invalidate drops the cache when the API
// reports the chat has ended.
func (s *Service) resolveLiveChatID(ctx context.Context, svc *yt.Service) (string, error) {
	s.mu.Lock()
	if s.liveChatID != "" {
		id := s.liveChatID
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	search, err := svc.Search.List([]string{"id"}).
		ChannelId(s.cfg.YTChannelID).
		EventType("live").
		Type("video").
		MaxResults(1).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search live broadcast: %w", err)
	}
	if len(search.Items) == 0 || search.Items[0].Id == nil || search.Items[0].Id.VideoId == "" {
		return "", fmt.Errorf("no active broadcast on channel %s", s.cfg.YTChannelID)
	}
	videoID := search.Items[0].Id.VideoId

	videos, err := svc.Videos.List([]string{"liveStreamingDetails"}).
		Id(videoID).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("lookup broadcast %s: %w", videoID, err)
	}
	if len(videos.Items) == 0 || videos.Items[0].LiveStreamingDetails == nil ||
		videos.Items[0].LiveStreamingDetails.ActiveLiveChatId == "" {
		return "", fmt.Errorf("broadcast %s has no active live chat", videoID)
	}
	id := videos.Items[0].LiveStreamingDetails.ActiveLiveChatId

	s.mu.Lock()
	s.liveChatID = id
	s.mu.Unlock()
	slog.Info("resolved live chat", "video_id", videoID, "live_chat_id", id)
	return id, nil
}

func (s *Service) invalidateLiveChatID() {
	s.mu.Lock()
	s.liveChatID = ""
	s.mu.Unlock()
}

// Source adapts the live chat list endpoint to the tracker's feed interface.
type Source struct {
	svc *Service
}

// NewSource returns the polled live chat feed.
func NewSource(svc *Service) *Source {
	return &Source{svc: svc}
}

// FetchEvents lists live chat messages since the cursor (a page token from
// the previous call). An empty cursor starts from the API's default window,
// which may replay recent messages; the tracker tolerates duplicates.
func (src *Source) FetchEvents(ctx context.Context, cursor string) (tracker.Batch, error) {
	client, err := src.svc.Client(ctx)
	if err != nil {
		return tracker.Batch{NextCursor: cursor}, fmt.Errorf("youtube client: %w", err)
	}
	chatID, err := src.svc.resolveLiveChatID(ctx, client)
	if err != nil {
		return tracker.Batch{NextCursor: cursor}, err
	}

	call := client.LiveChatMessages.List(chatID, []string{"snippet", "authorDetails"}).Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}
	resp, err := call.Do()
	if err != nil {
		if chatEnded(err) {
			src.svc.invalidateLiveChatID()
			// restart pagination against the next broadcast
			return tracker.Batch{}, fmt.Errorf("live chat ended: %w", err)
		}
		return tracker.Batch{NextCursor: cursor}, fmt.Errorf("list live chat messages: %w", err)
	}

	batch := tracker.Batch{NextCursor: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.Snippet == nil || item.AuthorDetails == nil {
			continue
		}
		ev := tracker.ChatEvent{
			ParticipantID: item.AuthorDetails.ChannelId,
			DisplayName:   item.AuthorDetails.DisplayName,
			Text:          item.Snippet.DisplayMessage,
			AvatarURL:     item.AuthorDetails.ProfileImageUrl,
		}
		if ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			ev.PublishedAt = ts
		}
		batch.Events = append(batch.Events, ev)
	}
	return batch, nil
}

func chatEnded(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "liveChatEnded") || strings.Contains(msg, "liveChatNotFound")
}

// Sender posts bot replies into the live chat.
type Sender struct {
	svc *Service
}

// NewSender returns the outbound chat transport.
func NewSender(svc *Service) *Sender {
	return &Sender{svc: svc}
}

// Send inserts one text message into the active live chat.
func (snd *Sender) Send(ctx context.Context, text string) error {
	client, err := snd.svc.Client(ctx)
	if err != nil {
		return fmt.Errorf("youtube client: %w", err)
	}
	chatID, err := snd.svc.resolveLiveChatID(ctx, client)
	if err != nil {
		return err
	}
	msg := &yt.LiveChatMessage{
		Snippet: &yt.LiveChatMessageSnippet{
			LiveChatId: chatID,
			Type:       "textMessageEvent",
			TextMessageDetails: &yt.LiveChatTextMessageDetails{
				MessageText: text,
			},
		},
	}
	if _, err := client.LiveChatMessages.Insert([]string{"snippet"}, msg).Context(ctx).Do(); err != nil {
		if chatEnded(err) {
			snd.svc.invalidateLiveChatID()
		}
		return fmt.Errorf("insert live chat message: %w", err)
	}
	return nil
}

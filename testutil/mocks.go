// Package testutil provides HTTP mocks for the external APIs the tracker
// talks to in tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockYouTubeServer creates a test server that mocks YouTube Data API responses
type MockYouTubeServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockYouTubeServer creates a new mock YouTube API server
func NewMockYouTubeServer(t *testing.T) *MockYouTubeServer {
	t.Helper()
	m := &MockYouTubeServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockLiveBroadcast wires the search and videos endpoints so chat id
// resolution finds one active broadcast.
func (m *MockYouTubeServer) MockLiveBroadcast(videoID, liveChatID string) {
	m.Handlers["GET /youtube/v3/search"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{"id": map[string]string{"kind": "youtube#video", "videoId": videoID}},
			},
		})
	}
	m.Handlers["GET /youtube/v3/videos"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{
					"id": videoID,
					"liveStreamingDetails": map[string]string{
						"activeLiveChatId": liveChatID,
					},
				},
			},
		})
	}
}

// ChatMessage is one mocked live chat item.
type ChatMessage struct {
	AuthorID    string
	DisplayName string
	AvatarURL   string
	Text        string
	PublishedAt string // RFC3339
}

// MockChatMessages adds a handler for the live chat list endpoint.
func (m *MockYouTubeServer) MockChatMessages(messages []ChatMessage, nextPageToken string) {
	m.Handlers["GET /youtube/v3/liveChat/messages"] = func(w http.ResponseWriter, r *http.Request) {
		items := make([]map[string]any, 0, len(messages))
		for _, msg := range messages {
			items = append(items, map[string]any{
				"snippet": map[string]any{
					"displayMessage": msg.Text,
					"publishedAt":    msg.PublishedAt,
				},
				"authorDetails": map[string]any{
					"channelId":       msg.AuthorID,
					"displayName":     msg.DisplayName,
					"profileImageUrl": msg.AvatarURL,
				},
			})
		}
		writeJSON(w, map[string]any{
			"items":         items,
			"nextPageToken": nextPageToken,
		})
	}
}

// MockChatError makes the list endpoint fail with a YouTube-style error body.
func (m *MockYouTubeServer) MockChatError(status int, reason string) {
	m.Handlers["GET /youtube/v3/liveChat/messages"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"error": map[string]any{
				"code":    status,
				"message": reason,
				"errors":  []map[string]string{{"reason": reason}},
			},
		})
	}
}

// MockChatInsert records posted messages on the insert endpoint.
func (m *MockYouTubeServer) MockChatInsert(posted *[]string) {
	m.Handlers["POST /youtube/v3/liveChat/messages"] = func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Snippet struct {
				LiveChatID         string `json:"liveChatId"`
				TextMessageDetails struct {
					MessageText string `json:"messageText"`
				} `json:"textMessageDetails"`
			} `json:"snippet"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		*posted = append(*posted, body.Snippet.TextMessageDetails.MessageText)
		writeJSON(w, map[string]any{"id": "msg-1"})
	}
}

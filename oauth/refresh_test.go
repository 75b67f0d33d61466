package oauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memStore struct {
	access  string
	refresh string
	expiry  time.Time
	getErr  error
	upserts int
}

func (m *memStore) UpsertOAuthToken(ctx context.Context, provider, access, refresh string, expiry time.Time) error {
	m.access, m.refresh, m.expiry = access, refresh, expiry
	m.upserts++
	return nil
}

func (m *memStore) GetOAuthToken(ctx context.Context, provider string) (string, string, time.Time, error) {
	return m.access, m.refresh, m.expiry, m.getErr
}

func TestRefreshOnceSkipsFreshToken(t *testing.T) {
	store := &memStore{access: "a", refresh: "r", expiry: time.Now().Add(time.Hour)}
	called := false
	err := RefreshOnce(context.Background(), store, "youtube", 15*time.Minute, func(ctx context.Context, rt string) (string, string, time.Time, error) {
		called = true
		return "", "", time.Time{}, nil
	})
	if err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
	if called {
		t.Error("refresh func called for token outside window")
	}
}

func TestRefreshOnceSkipsMissingToken(t *testing.T) {
	store := &memStore{}
	err := RefreshOnce(context.Background(), store, "youtube", 15*time.Minute, func(ctx context.Context, rt string) (string, string, time.Time, error) {
		t.Fatal("refresh func called with no refresh token")
		return "", "", time.Time{}, nil
	})
	if err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
}

func TestRefreshOnceRefreshesExpiringToken(t *testing.T) {
	store := &memStore{access: "old", refresh: "r1", expiry: time.Now().Add(time.Minute)}
	newExp := time.Now().Add(time.Hour)
	err := RefreshOnce(context.Background(), store, "youtube", 15*time.Minute, func(ctx context.Context, rt string) (string, string, time.Time, error) {
		if rt != "r1" {
			t.Errorf("refresh token = %q, want r1", rt)
		}
		return "new-access", "", newExp, nil
	})
	if err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
	if store.access != "new-access" {
		t.Errorf("access = %q, want new-access", store.access)
	}
	if store.refresh != "r1" {
		t.Errorf("refresh = %q, want old refresh token kept", store.refresh)
	}
	if !store.expiry.Equal(newExp) {
		t.Errorf("expiry = %v, want %v", store.expiry, newExp)
	}
}

func TestRefreshOncePropagatesErrors(t *testing.T) {
	wantErr := errors.New("provider down")
	store := &memStore{access: "old", refresh: "r1", expiry: time.Now().Add(time.Minute)}
	err := RefreshOnce(context.Background(), store, "youtube", 15*time.Minute, func(ctx context.Context, rt string) (string, string, time.Time, error) {
		return "", "", time.Time{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if store.upserts != 0 {
		t.Error("token persisted despite refresh failure")
	}
}

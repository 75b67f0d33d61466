// Package oauth provides token refresh scheduling for providers whose tokens
// are persisted in the oauth_tokens table. It performs jittered checks and
// refreshes when expiry falls within a configured window, so a long-lived
// broadcast never loses its feed mid-session.
package oauth

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// TokenStore is the persistence surface the refresher reads and writes.
type TokenStore interface {
	UpsertOAuthToken(ctx context.Context, provider string, accessToken string, refreshToken string, expiry time.Time) error
	GetOAuthToken(ctx context.Context, provider string) (accessToken string, refreshToken string, expiry time.Time, err error)
}

// RefreshFunc performs provider-specific refresh and returns (access, refresh, expiry)
type RefreshFunc func(ctx context.Context, refreshToken string) (string, string, time.Time, error)

// StartRefresher launches a goroutine that periodically checks an oauth token
// row and refreshes it.
// provider: key in oauth_tokens table.
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window.
func StartRefresher(ctx context.Context, store TokenStore, provider string, interval, window time.Duration, fn RefreshFunc) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			// Add per-iteration jitter (±20% of interval) for scheduling diversity.
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
			if err := RefreshOnce(ctx, store, provider, window, fn); err != nil {
				slog.Warn("token refresh failed", slog.String("provider", provider), slog.Any("err", err))
			}
		}
	}()
}

// RefreshOnce checks the stored token and refreshes it if its remaining
// lifetime is inside the window. A missing or still-fresh token is not an
// error.
func RefreshOnce(ctx context.Context, store TokenStore, provider string, window time.Duration, fn RefreshFunc) error {
	_, rt, exp, err := store.GetOAuthToken(ctx, provider)
	if err != nil {
		return err
	}
	if rt == "" {
		return nil
	}
	if time.Until(exp) > window {
		return nil
	}
	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	newAT, newRT, newExp, err := fn(ctx2, rt)
	if err != nil {
		return err
	}
	if newRT == "" {
		newRT = rt
	}
	if err := store.UpsertOAuthToken(ctx, provider, newAT, newRT, newExp); err != nil {
		return err
	}
	slog.Info("token refreshed", slog.String("provider", provider))
	return nil
}

package ayla

import (
	"context"
	"fmt"
	"time"
)

// refreshThreshold is how close to expiry a session may get before
// EnsureFresh proactively refreshes it.
const refreshThreshold = 5 * time.Minute

// Session carries the bearer tokens from one cloud login. It is a plain
// value: the engine owns the current session and replaces it wholesale on
// every successful login or refresh.
type Session struct {
	AccessToken  string
	RefreshToken string

	// ExpiresAt is the absolute expiry of the access token, computed from
	// the cloud's expires_in at login time.
	ExpiresAt time.Time
}

// Valid reports whether the session holds tokens at all. It says nothing
// about expiry; see ExpiresWithin.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// ExpiresWithin reports whether the access token expires within d of now.
func (s Session) ExpiresWithin(d time.Duration, now time.Time) bool {
	return s.ExpiresAt.Sub(now) <= d
}

// SignIn performs a password login against the identity service.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - email, password: Account credentials
//
// Returns:
//   - Session: Fresh tokens with an absolute expiry
//   - error: *Error classified per the failure (never a raw transport error)
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	body := map[string]any{
		"user": map[string]any{
			"email":    email,
			"password": password,
			"application": map[string]any{
				"app_id":     c.appID,
				"app_secret": c.appSecret,
			},
		},
	}
	// The identity service requires a literal "none" on unauthenticated
	// requests rather than an absent header.
	return c.tokenRequest(ctx, "sign_in", c.userURL+"/users/sign_in.json", "none", body)
}

// Refresh exchanges the session's refresh token for a new token pair.
// A KindUnauthorized failure means the refresh token itself is no longer
// accepted and only a password login can recover.
func (c *Client) Refresh(ctx context.Context, s Session) (Session, error) {
	if s.RefreshToken == "" {
		return Session{}, &Error{
			Op:      "refresh_token",
			Kind:    KindUnauthorized,
			Message: "no refresh token held",
		}
	}

	body := map[string]any{
		"user": map[string]any{
			"refresh_token": s.RefreshToken,
		},
	}
	return c.tokenRequest(ctx, "refresh_token", c.userURL+"/users/refresh_token.json", "auth_token "+s.AccessToken, body)
}

// EnsureFresh refreshes the session if it is within refreshThreshold of
// expiry, and is otherwise a no-op that makes no network call.
//
// Returns:
//   - Session: The unchanged session, or the refreshed one
//   - bool: Whether a refresh was performed
//   - error: Refresh failure; the original session is returned unchanged
func (c *Client) EnsureFresh(ctx context.Context, s Session) (Session, bool, error) {
	if !s.ExpiresWithin(refreshThreshold, time.Now()) {
		return s, false, nil
	}

	fresh, err := c.Refresh(ctx, s)
	if err != nil {
		return s, false, fmt.Errorf("refreshing session: %w", err)
	}
	return fresh, true, nil
}

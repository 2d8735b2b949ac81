package session

import (
	"time"

	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
)

// ErrInvalidSession is returned when a session breaks the token/authenticated invariant
var ErrInvalidSession = portalerrors.ErrInvalidSession

// Session is the token state of the signed-in user. Values are immutable
// once handed to a Store; replace the whole value to change it.
type Session struct {
	AccessToken      string    `json:"access_token,omitempty"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	IDToken          string    `json:"id_token,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
	Authenticated    bool      `json:"authenticated"`
}

// ExpiresAtEpochMs returns the access token expiry in epoch milliseconds, or 0 when unset.
func (s Session) ExpiresAtEpochMs() int64 {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	return s.ExpiresAt.UnixMilli()
}

// Remaining returns the access token lifetime left at now.
func (s Session) Remaining(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// Validate enforces that the access token is non-empty iff the session is authenticated.
func (s Session) Validate() error {
	if s.Authenticated && s.AccessToken == "" {
		return portalerrors.Wrapf(ErrInvalidSession, "authenticated session without access token")
	}
	if !s.Authenticated && s.AccessToken != "" {
		return portalerrors.Wrapf(ErrInvalidSession, "unauthenticated session with access token")
	}
	return nil
}

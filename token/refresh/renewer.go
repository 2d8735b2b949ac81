package refresh

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
	"github.com/jrsteele09/go-elearning-portal/session"
	"github.com/jrsteele09/go-elearning-portal/token"
)

// ErrRefreshRejected is returned when the provider refuses the refresh token
var ErrRefreshRejected = portalerrors.ErrRefreshRejected

// Renewer exchanges the current session's refresh token for a new session.
type Renewer interface {
	Renew(ctx context.Context, current session.Session) (session.Session, error)
}

// OAuth2Renewer renews sessions with the refresh_token grant.
type OAuth2Renewer struct {
	Config     *oauth2.Config
	HTTPClient *http.Client
}

var _ Renewer = (*OAuth2Renewer)(nil)

func NewOAuth2Renewer(cfg *oauth2.Config, httpClient *http.Client) *OAuth2Renewer {
	return &OAuth2Renewer{Config: cfg, HTTPClient: httpClient}
}

func (r *OAuth2Renewer) Renew(ctx context.Context, current session.Session) (session.Session, error) {
	if current.RefreshToken == "" {
		return session.Session{}, portalerrors.Wrapf(ErrRefreshRejected, "session has no refresh token")
	}

	if r.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.HTTPClient)
	}

	// A token with no access token is never valid, so the source always refreshes.
	tok, err := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if portalerrors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return session.Session{}, portalerrors.Wrapf(ErrRefreshRejected, "%s", retrieveErr.ErrorDescription)
		}
		return session.Session{}, portalerrors.Wrapf(err, "refresh grant failed")
	}

	return token.SessionFromToken(tok, current, NowTimeFunc())
}

package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-elearning-portal/authz"
	"github.com/jrsteele09/go-elearning-portal/identity"
	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
	"github.com/jrsteele09/go-elearning-portal/session"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the *identity.UserData of the signed-in user
	ContextKeyUser ContextKey = "user"
	// ContextKeyRequestID stores the request ID
	ContextKeyRequestID ContextKey = "request_id"
)

func userFrom(ctx context.Context) *identity.UserData {
	user, _ := ctx.Value(ContextKeyUser).(*identity.UserData)
	return user
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

func capabilitiesOf(user *identity.UserData) authz.Capabilities {
	if user == nil {
		return authz.Capabilities{}
	}
	return authz.DeriveCapabilities(user.Roles)
}

// RequireSession runs the login handshake before the page renders. Without a
// session the browser is sent to the identity provider and nothing else is
// fetched. With one, the token is kept fresh, the refresh scheduler is
// running and the user's profile and roles are in the request context.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			outcome, err := s.c.Initializer.Initialize(ctx)
			if err != nil {
				s.renderError(w, r, http.StatusBadGateway, "Sign-in is unavailable", err)
				return
			}
			if !outcome.Authenticated {
				http.Redirect(w, r, outcome.LoginURL, http.StatusFound)
				return
			}

			if _, err := s.c.Scheduler.EnsureFreshToken(ctx, s.config.GetRefreshMinValidity()); err != nil {
				if ctx.Err() != nil {
					return
				}
				// signed out or in again meanwhile; nothing left to discard
				if !portalerrors.Is(err, session.ErrSessionChanged) {
					s.SessionExpired(err)
				}
				http.Redirect(w, r, RouteLogin, http.StatusFound)
				return
			}

			if err := s.c.Scheduler.Start(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("failed to start token refresh")
			}

			user, err := s.userData(ctx)
			if err != nil {
				s.renderError(w, r, http.StatusBadGateway, "Could not load your account", err)
				return
			}

			next(w, r.WithContext(context.WithValue(ctx, ContextKeyUser, user)))
		}
	}
}

// RequireCapability redirects to the safe default route when the signed-in
// user lacks the capability. It runs before the route fetches any data.
func (s *Server) RequireCapability(required authz.Capability) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			decision := authz.CheckRoute(capabilitiesOf(userFrom(r.Context())), required)
			if !decision.Allowed {
				log.Info().Str("path", r.URL.Path).Stringer("capability", required).Msg("route denied")
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
				return
			}
			next(w, r)
		}
	}
}

// userData returns the cached profile and roles, loading them once per session.
func (s *Server) userData(ctx context.Context) (*identity.UserData, error) {
	s.userLock.Lock()
	defer s.userLock.Unlock()

	if s.user != nil {
		return s.user, nil
	}
	data, err := s.c.Resolver.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.user = &data
	return s.user, nil
}

func (s *Server) clearUser() {
	s.userLock.Lock()
	defer s.userLock.Unlock()
	s.user = nil
}

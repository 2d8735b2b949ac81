package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-elearning-portal/auth"
	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
)

// CallbackHandler completes the authorization code flow, starts the refresh
// scheduler and loads the user's profile and roles before going home.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errCode := q.Get("error"); errCode != "" {
			s.renderError(w, r, http.StatusBadRequest, "Sign-in was not completed",
				fmt.Errorf("%s: %s", errCode, q.Get("error_description")))
			return
		}

		sess, err := s.c.Initializer.CompleteLogin(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			status := http.StatusBadGateway
			var initErr *auth.AuthInitError
			if portalerrors.As(err, &initErr) && initErr.Op == auth.OpCallback {
				status = http.StatusBadRequest
			}
			s.renderError(w, r, status, "Sign-in failed", err)
			return
		}

		// a new identity; nothing cached for the previous one survives
		s.clearUser()
		s.c.Catalog.Clear()

		if err := s.c.Scheduler.Start(context.WithoutCancel(r.Context())); err != nil {
			log.Warn().Err(err).Msg("failed to start token refresh")
		}

		if _, err := s.userData(r.Context()); err != nil {
			s.renderError(w, r, http.StatusBadGateway, "Could not load your account", err)
			return
		}

		log.Info().Time("expires_at", sess.ExpiresAt).Msg("signed in")
		http.Redirect(w, r, RouteHome, http.StatusSeeOther)
	}
}

package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// LoginHandler starts a fresh login. An already signed-in user goes home.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.c.Store.Authenticated() {
			http.Redirect(w, r, RouteHome, http.StatusFound)
			return
		}

		// forget an earlier failure or abandoned login so the user can retry
		s.c.Initializer.Reset()
		outcome, err := s.c.Initializer.Initialize(r.Context())
		if err != nil {
			s.renderError(w, r, http.StatusBadGateway, "Sign-in is unavailable", err)
			return
		}
		if outcome.Authenticated {
			http.Redirect(w, r, RouteHome, http.StatusFound)
			return
		}
		http.Redirect(w, r, outcome.LoginURL, http.StatusFound)
	}
}

// LogoutHandler stops the refresh ticker, ends the session at the provider
// and discards everything cached for the user.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.c.Scheduler.Stop()

		redirect, err := s.c.Initializer.Logout(r.Context())
		if err != nil {
			log.Err(err).Msg("Logout did not complete cleanly")
		}
		s.c.Catalog.Clear()
		s.clearUser()

		if redirect == "" {
			redirect = RouteHome
		}
		http.Redirect(w, r, redirect, http.StatusFound)
	}
}

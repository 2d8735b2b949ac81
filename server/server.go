package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/go-elearning-portal/identity"
	"github.com/jrsteele09/go-elearning-portal/internal/config"
)

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config
	c      *Components
	pages  map[string]*template.Template

	loginLimiter *rate.Limiter
	csrfToken    string

	userLock sync.Mutex
	user     *identity.UserData
}

func New(config config.Config, components *Components) (*Server, error) {
	perMinute := config.GetLoginRatePerMinute()
	if perMinute <= 0 {
		perMinute = 5
	}

	s := &Server{
		env:          config.GetEnv(),
		mux:          http.NewServeMux(),
		config:       config,
		c:            components,
		pages:        make(map[string]*template.Template),
		loginLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		csrfToken:    uuid.NewString(),
	}

	for _, name := range []string{layoutTemplate, homeTemplate, coursesTemplate, adminTemplate, errorTemplate} {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to parse template %s: %w", name, err)
		}
		s.pages[name] = tmpl
	}

	components.OnSessionExpired = s.SessionExpired

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Shutdown stops the refresh scheduler. The HTTP listener is owned by the caller.
func (s *Server) Shutdown() {
	s.c.Scheduler.Stop()
}

// SessionExpired discards everything derived from the session after the
// scheduler failed to renew it. The next page load starts a new login.
func (s *Server) SessionExpired(err error) {
	log.Warn().Err(err).Msg("session expired, sign in required")
	s.c.Initializer.Reset()
	s.c.Catalog.Clear()
	s.clearUser()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path string, err error) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+err.Error()+ResetColor)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrsteele09/go-elearning-portal/authz"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHome+"{$}", ChainMiddleware(s.HomeHandler(), s.HTMLMiddleWare(s.RequireSession())...))

	// SESSION
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// COURSES
	s.RegisterRouteHandler("GET "+RouteCourses, ChainMiddleware(s.CoursesHandler(), s.HTMLMiddleWare(s.RequireSession(), s.RequireCapability(authz.ViewCourses))...))
	s.RegisterRouteHandler("GET "+RouteAdmin, ChainMiddleware(s.AdminHandler(), s.HTMLMiddleWare(s.RequireSession(), s.RequireCapability(authz.ManageCourses))...))
	s.RegisterRouteHandler("POST "+RouteAdminCourses, ChainMiddleware(s.AdminCreateCourseHandler(), s.HTMLMiddleWare(s.RequireSession(), s.RequireCapability(authz.ManageCourses))...))

	// OPERATIONS
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.c.Registry, promhttp.HandlerOpts{}))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}

// HealthHandler reports liveness and whether a user is signed in.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"authenticated": s.c.Store.Authenticated(),
			"refreshing":    s.c.Scheduler.Running(),
		})
	}
}

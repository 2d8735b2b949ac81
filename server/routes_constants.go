package server

// Route path constants
const (
	RouteHome = "/"

	// Session
	RouteLogin    = "/login"
	RouteCallback = "/callback"
	RouteLogout   = "/logout"

	// Courses
	RouteCourses      = "/courses"
	RouteAdmin        = "/admin"
	RouteAdminCourses = "/admin/courses"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)

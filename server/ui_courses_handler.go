package server

import (
	"net/http"

	"github.com/jrsteele09/go-elearning-portal/courses"
	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
)

type coursesView struct {
	Courses      []courses.Course
	AccessDenied bool
	Error        string
}

// CoursesHandler lists every course. A refused list renders as access denied,
// never as an empty catalogue.
func (s *Server) CoursesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.c.Catalog.Refresh(r.Context())
		view := coursesView{Courses: list}
		status := courseErrorInto(err, &view.AccessDenied, &view.Error)
		s.renderPage(w, r, status, coursesTemplate, "Courses", view)
	}
}

// courseErrorInto maps a catalog error onto the inline error fields of a view
// and returns the HTTP status for the page.
func courseErrorInto(err error, accessDenied *bool, message *string) int {
	if err == nil {
		return http.StatusOK
	}
	var authErr *courses.AuthorizationError
	if portalerrors.As(err, &authErr) {
		*accessDenied = true
		return http.StatusForbidden
	}
	*message = err.Error()
	return http.StatusBadGateway
}

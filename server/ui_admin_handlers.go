package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-elearning-portal/courses"
	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
)

type adminView struct {
	Courses           []courses.Course
	AccessDenied      bool
	Error             string
	Form              courses.Input
	FieldErrors       map[string]string
	Created           *courses.Course
	RequireInstructor bool
	CSRFToken         string
}

func (s *Server) newAdminView() adminView {
	return adminView{
		RequireInstructor: s.c.Catalog.Client().RequireInstructor(),
		CSRFToken:         s.csrfToken,
	}
}

// AdminHandler lists the courses alongside the create form.
func (s *Server) AdminHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.c.Catalog.Refresh(r.Context())
		view := s.newAdminView()
		view.Courses = list
		status := courseErrorInto(err, &view.AccessDenied, &view.Error)
		s.renderPage(w, r, status, adminTemplate, "Manage courses", view)
	}
}

// AdminCreateCourseHandler validates and posts a new course. The created
// course is appended to the list already shown; the list is not fetched again.
func (s *Server) AdminCreateCourseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.renderError(w, r, http.StatusBadRequest, "Malformed form", err)
			return
		}
		if r.PostFormValue("csrf_token") != s.csrfToken {
			s.renderError(w, r, http.StatusForbidden, "Form expired", fmt.Errorf("reload the page and try again"))
			return
		}

		view := s.newAdminView()
		view.Form = courses.Input{
			Title:       strings.TrimSpace(r.PostFormValue("title")),
			Description: strings.TrimSpace(r.PostFormValue("description")),
			Instructor:  strings.TrimSpace(r.PostFormValue("instructor")),
		}

		status := http.StatusOK
		created, err := s.c.Catalog.Create(r.Context(), view.Form)

		var validationErr *courses.ValidationError
		switch {
		case err == nil:
			view.Created = &created
			view.Form = courses.Input{}
		case portalerrors.As(err, &validationErr):
			view.FieldErrors = make(map[string]string, len(validationErr.Fields))
			for _, f := range validationErr.Fields {
				view.FieldErrors[f.Field] = f.Message
			}
			status = http.StatusUnprocessableEntity
		default:
			status = courseErrorInto(err, &view.AccessDenied, &view.Error)
		}

		view.Courses, _ = s.c.Catalog.Cached()
		s.renderPage(w, r, status, adminTemplate, "Manage courses", view)
	}
}

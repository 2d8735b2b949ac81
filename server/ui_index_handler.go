package server

import (
	"net/http"

	"github.com/jrsteele09/go-elearning-portal/authz"
	"github.com/jrsteele09/go-elearning-portal/identity"
)

type homeView struct {
	Profile  identity.UserProfile
	Roles    []string
	Caps     authz.Capabilities
	NoAccess bool
}

// HomeHandler greets the signed-in user and links the sections their roles allow.
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		caps := capabilitiesOf(user)

		s.renderPage(w, r, http.StatusOK, homeTemplate, "Home", homeView{
			Profile:  user.Profile,
			Roles:    user.Roles.Roles(),
			Caps:     caps,
			NoAccess: caps.None(),
		})
	}
}

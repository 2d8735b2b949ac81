package authz_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-elearning-portal/authz"
	"github.com/jrsteele09/go-elearning-portal/identity"
)

func TestDeriveCapabilities(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  authz.Capabilities
	}{
		{"no roles", nil, authz.Capabilities{}},
		{"unrelated roles", []string{"offline_access", "uma_authorization"}, authz.Capabilities{}},
		{"student", []string{authz.RoleStudent}, authz.Capabilities{CanViewCourses: true}},
		{"admin", []string{authz.RoleAdmin}, authz.Capabilities{CanViewCourses: true, CanManageCourses: true}},
		{"admin and student", []string{authz.RoleAdmin, authz.RoleStudent}, authz.Capabilities{CanViewCourses: true, CanManageCourses: true}},
		{"role names are exact", []string{"ADMIN", "role_student"}, authz.Capabilities{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := authz.DeriveCapabilities(identity.NewRoleClaims(tt.roles...))
			require.Equal(t, tt.want, caps)
			if caps.CanManageCourses {
				require.True(t, caps.CanViewCourses)
			}
			require.Equal(t, tt.want == authz.Capabilities{}, caps.None())
		})
	}

	t.Run("nil role set", func(t *testing.T) {
		require.True(t, authz.DeriveCapabilities(nil).None())
	})
}

func TestCheckRoute(t *testing.T) {
	student := authz.Capabilities{CanViewCourses: true}
	admin := authz.Capabilities{CanViewCourses: true, CanManageCourses: true}

	require.Equal(t, authz.Decision{Allowed: true}, authz.CheckRoute(student, authz.ViewCourses))
	require.Equal(t, authz.Decision{RedirectTo: "/"}, authz.CheckRoute(student, authz.ManageCourses))
	require.Equal(t, authz.Decision{Allowed: true}, authz.CheckRoute(admin, authz.ManageCourses))
	require.Equal(t, authz.Decision{RedirectTo: "/"}, authz.CheckRoute(authz.Capabilities{}, authz.ViewCourses))
	require.False(t, admin.Has(authz.Capability(99)))
}

// Package authz derives what the signed-in user may do from their roles.
package authz

const (
	RoleAdmin   = "ROLE_ADMIN"
	RoleStudent = "ROLE_STUDENT"
)

// Capability is a single permission a route can require.
type Capability int

const (
	ViewCourses Capability = iota + 1
	ManageCourses
)

func (c Capability) String() string {
	switch c {
	case ViewCourses:
		return "view courses"
	case ManageCourses:
		return "manage courses"
	default:
		return "unknown"
	}
}

// RoleSet is the read side of a set of role claims.
type RoleSet interface {
	Has(role string) bool
}

// Capabilities are the UI permissions of the signed-in user.
// CanManageCourses always implies CanViewCourses.
type Capabilities struct {
	CanViewCourses   bool
	CanManageCourses bool
}

// DeriveCapabilities maps roles to capabilities. Admins can do everything,
// students can view courses, anyone else gets nothing. A nil set has no roles.
func DeriveCapabilities(roles RoleSet) Capabilities {
	if roles == nil {
		return Capabilities{}
	}
	isAdmin := roles.Has(RoleAdmin)
	return Capabilities{
		CanViewCourses:   isAdmin || roles.Has(RoleStudent),
		CanManageCourses: isAdmin,
	}
}

// None reports that the user holds no capability at all; the view shows "no access".
func (c Capabilities) None() bool {
	return !c.CanViewCourses && !c.CanManageCourses
}

func (c Capabilities) Has(required Capability) bool {
	switch required {
	case ViewCourses:
		return c.CanViewCourses
	case ManageCourses:
		return c.CanManageCourses
	default:
		return false
	}
}

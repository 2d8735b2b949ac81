// Package identity fetches who the signed-in user is and which roles they hold.
package identity

import (
	"sort"
	"strings"
)

// UserProfile is the userinfo snapshot of the signed-in user.
type UserProfile struct {
	Subject           string
	GivenName         string
	FamilyName        string
	Email             string
	EmailVerified     bool
	PreferredUsername string
}

// DisplayName is the name shown in the page header.
func (p UserProfile) DisplayName() string {
	name := strings.TrimSpace(p.GivenName + " " + p.FamilyName)
	if name != "" {
		return name
	}
	if p.PreferredUsername != "" {
		return p.PreferredUsername
	}
	return p.Email
}

// RoleClaims is an immutable set of role identifiers.
type RoleClaims struct {
	roles map[string]struct{}
}

func NewRoleClaims(roles ...string) RoleClaims {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r != "" {
			set[r] = struct{}{}
		}
	}
	return RoleClaims{roles: set}
}

func (r RoleClaims) Has(role string) bool {
	_, ok := r.roles[role]
	return ok
}

func (r RoleClaims) Len() int { return len(r.roles) }

// Roles returns the roles in sorted order.
func (r RoleClaims) Roles() []string {
	out := make([]string, 0, len(r.roles))
	for role := range r.roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// UserData is everything the portal loads about the user after sign in.
type UserData struct {
	Profile UserProfile
	Roles   RoleClaims
}

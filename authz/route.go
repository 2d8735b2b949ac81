package authz

// SafeDefaultRoute is where users are sent when they lack a route's capability.
const SafeDefaultRoute = "/"

// Decision is the outcome of checking a route's required capability.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

// CheckRoute decides whether a route may render. It runs before any data for
// the route is fetched.
func CheckRoute(caps Capabilities, required Capability) Decision {
	if caps.Has(required) {
		return Decision{Allowed: true}
	}
	return Decision{RedirectTo: SafeDefaultRoute}
}

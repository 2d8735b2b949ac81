package identity

import (
	"fmt"
	"net/http"

	"go.uber.org/multierr"
)

// ProfileFetchError is returned when the userinfo endpoint cannot be read.
// StatusCode is 0 for transport failures.
type ProfileFetchError struct {
	StatusCode int
	Err        error
}

func (e *ProfileFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch user profile: HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch user profile: %v", e.Err)
}

func (e *ProfileFetchError) Unwrap() error { return e.Err }

func (e *ProfileFetchError) Unauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

func (e *ProfileFetchError) Forbidden() bool { return e.StatusCode == http.StatusForbidden }

// ClaimsFetchError is returned when the role claims endpoint cannot be read.
type ClaimsFetchError struct {
	StatusCode int
	Err        error
}

func (e *ClaimsFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch role claims: HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch role claims: %v", e.Err)
}

func (e *ClaimsFetchError) Unwrap() error { return e.Err }

func (e *ClaimsFetchError) Unauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

func (e *ClaimsFetchError) Forbidden() bool { return e.StatusCode == http.StatusForbidden }

// UserDataError aggregates every failure of Load. errors.As reaches each cause.
type UserDataError struct {
	err error
}

func (e *UserDataError) Error() string {
	return "failed to load user data: " + e.err.Error()
}

func (e *UserDataError) Unwrap() []error { return multierr.Errors(e.err) }

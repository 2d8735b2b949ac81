package auth

import (
	"fmt"

	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
)

var (
	ErrInvalidState   = portalerrors.ErrInvalidState
	ErrInvalidNonce   = portalerrors.ErrInvalidNonce
	ErrMissingIDToken = portalerrors.ErrMissingIDToken
)

// Handshake stages reported in AuthInitError.Op
const (
	OpDiscovery = "discovery"
	OpLogin     = "login"
	OpCallback  = "callback"
	OpExchange  = "token exchange"
	OpVerify    = "id token verification"
	OpStore     = "store session"
)

// AuthInitError is returned when the login handshake cannot complete: the
// provider is unreachable or misconfigured, or the callback does not check out.
type AuthInitError struct {
	Op  string
	Err error
}

func (e *AuthInitError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %v", e.Op, e.Err)
}

func (e *AuthInitError) Unwrap() error { return e.Err }

func initError(op string, err error) *AuthInitError {
	return &AuthInitError{Op: op, Err: err}
}

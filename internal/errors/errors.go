package errors

import (
	"errors"
	"fmt"
)

// Common error values shared across the portal packages
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = fmt.Errorf("session expired: %w", ErrNotAuthenticated)
	ErrInvalidSession   = errors.New("invalid session")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionChanged   = errors.New("session changed during renewal")

	// Identity provider errors
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrInvalidState        = errors.New("invalid state parameter")
	ErrInvalidNonce        = errors.New("invalid nonce")
	ErrMissingIDToken      = errors.New("no id_token in token response")
	ErrRefreshRejected     = errors.New("refresh token rejected")

	// Resource server errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")

	// General errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnsupported   = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}

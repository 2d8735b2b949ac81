// Package flowrepo holds the per-login PKCE and nonce state between the
// authorization redirect and the callback.
package flowrepo

import (
	"time"

	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
)

// ErrStateNotFound is returned for an unknown or expired state parameter
var ErrStateNotFound = portalerrors.ErrInvalidState

// FlowState is what the callback needs to finish a login started with a given state.
type FlowState struct {
	CodeVerifier string
	Nonce        string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, flow *FlowState) error
	Get(state string) (*FlowState, error)
	Delete(state string) error
	// Prune removes flows created before cutoff and returns how many were removed
	Prune(cutoff time.Time) int
}

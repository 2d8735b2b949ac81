package session

import (
	"context"
	"sync/atomic"

	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
)

// ErrSessionChanged is returned when a session was replaced or cleared while
// a renewal computed from it was in flight.
var ErrSessionChanged = portalerrors.ErrSessionChanged

// expired marks a session dropped because its refresh was rejected. It is
// distinct from the empty snapshot published by Clear and NewStore.
var expired = &Session{}

// Store owns the process-wide Session. Readers always get a complete
// snapshot; writers publish a new snapshot with a single pointer swap.
type Store struct {
	current atomic.Pointer[Session]
}

// Version identifies one published snapshot. Two versions are equal only when
// nothing was published in between.
type Version struct {
	snapshot *Session
}

// NewStore returns a store holding an unauthenticated session
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Session{})
	return s
}

// Current returns a copy of the current session
func (s *Store) Current() Session {
	return *s.current.Load()
}

// Versioned returns a copy of the current session and the version it was
// published under.
func (s *Store) Versioned() (Session, Version) {
	cur := s.current.Load()
	return *cur, Version{snapshot: cur}
}

// IsCurrent reports whether v is still the published snapshot.
func (s *Store) IsCurrent(v Version) bool {
	return s.current.Load() == v.snapshot
}

// Authenticated reports whether the current session carries a token
func (s *Store) Authenticated() bool {
	return s.current.Load().Authenticated
}

// Replace publishes next as the current session.
func (s *Store) Replace(next Session) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.current.Store(&next)
	return nil
}

// CompareAndReplace publishes next only if prev is still current. Otherwise
// it returns ErrSessionChanged and leaves the store untouched.
func (s *Store) CompareAndReplace(prev Version, next Session) (Version, error) {
	if err := next.Validate(); err != nil {
		return Version{}, err
	}
	p := &next
	if !s.current.CompareAndSwap(prev.snapshot, p) {
		return Version{}, ErrSessionChanged
	}
	return Version{snapshot: p}, nil
}

// Clear drops the current session (logout).
func (s *Store) Clear() {
	s.current.Store(&Session{})
}

// Expire drops the session published as prev after its refresh was rejected
// and reports whether it did. Until the next Replace, AccessToken reports
// ErrSessionExpired.
func (s *Store) Expire(prev Version) bool {
	return s.current.CompareAndSwap(prev.snapshot, expired)
}

// AccessToken returns the current bearer token. It is read on every call
// so long-lived callers never hold on to a token that has been renewed.
func (s *Store) AccessToken(_ context.Context) (string, error) {
	cur := s.current.Load()
	if cur == expired {
		return "", portalerrors.ErrSessionExpired
	}
	if !cur.Authenticated {
		return "", portalerrors.ErrNotAuthenticated
	}
	return cur.AccessToken, nil
}

// Package refresh keeps the access token valid while the user is signed in.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
	"github.com/jrsteele09/go-elearning-portal/internal/metrics"
	"github.com/jrsteele09/go-elearning-portal/session"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	DefaultInterval    = 60 * time.Second
	DefaultMinValidity = 30 * time.Second
)

// ErrNotAuthenticated is returned by Start when there is no session to keep fresh
var ErrNotAuthenticated = portalerrors.ErrNotAuthenticated

// Options configures a Scheduler. Zero values take the defaults.
type Options struct {
	Interval    time.Duration
	MinValidity time.Duration
	Persister   session.Persister
	Metrics     *metrics.Metrics

	// OnExpired is called from the scheduler goroutine after a failed renewal
	// has cleared the session. The ticker has already stopped.
	OnExpired func(err error)
}

// Scheduler periodically renews the access token held in a session.Store.
type Scheduler struct {
	store   *session.Store
	renewer Renewer
	opts    Options

	renewMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(store *session.Store, renewer Renewer, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MinValidity <= 0 {
		opts.MinValidity = DefaultMinValidity
	}
	if opts.Persister == nil {
		opts.Persister = session.NopPersister{}
	}
	return &Scheduler{store: store, renewer: renewer, opts: opts}
}

// Start launches the ticker. It is a no-op while the ticker is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.store.Authenticated() {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running() {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		err := s.loop(loopCtx)
		close(done)
		if err != nil && s.opts.OnExpired != nil {
			s.opts.OnExpired(err)
		}
	}()

	log.Info().Dur("interval", s.opts.Interval).Dur("min_validity", s.opts.MinValidity).Msg("token refresh scheduler started")
	return nil
}

// Running reports whether the ticker goroutine is alive.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running()
}

func (s *Scheduler) running() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Stop cancels the ticker and waits for it to exit. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info().Msg("token refresh scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.store.Authenticated() {
				return nil
			}
			if _, err := s.EnsureFreshToken(ctx, s.opts.MinValidity); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if portalerrors.Is(err, session.ErrSessionChanged) {
					continue
				}
				return err
			}
		}
	}
}

// EnsureFreshToken renews the session when less than minValidity of the access
// token's lifetime remains. It reports whether a renewal happened. Any renewal
// failure clears the session and its persisted copy; the user must sign in again.
// A renewal that finishes after the session was cleared or replaced is dropped
// and reported as session.ErrSessionChanged.
func (s *Scheduler) EnsureFreshToken(ctx context.Context, minValidity time.Duration) (bool, error) {
	s.renewMu.Lock()
	defer s.renewMu.Unlock()

	current, version := s.store.Versioned()
	if !current.Authenticated {
		return false, ErrNotAuthenticated
	}
	if current.Remaining(NowTimeFunc()) >= minValidity {
		s.opts.Metrics.ObserveRefresh("skipped")
		return false, nil
	}

	next, err := s.renewer.Renew(ctx, current)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, s.expire(ctx, version, err)
	}

	published, err := s.store.CompareAndReplace(version, next)
	if portalerrors.Is(err, session.ErrSessionChanged) {
		return false, s.dropped(err)
	}
	if err != nil {
		return false, s.expire(ctx, version, err)
	}

	s.opts.Metrics.ObserveRefresh("renewed")
	if err := s.opts.Persister.Save(ctx, next); err != nil {
		log.Warn().Err(err).Msg("failed to persist renewed session")
	}
	// a logout or login between the swap and the save owns the persisted slot
	if !s.store.IsCurrent(published) {
		s.restorePersisted(ctx)
		return false, s.dropped(session.ErrSessionChanged)
	}
	log.Debug().Time("expires_at", next.ExpiresAt).Msg("access token renewed")
	return true, nil
}

func (s *Scheduler) restorePersisted(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if cur := s.store.Current(); cur.Authenticated {
		err = s.opts.Persister.Save(ctx, cur)
	} else {
		err = s.opts.Persister.Delete(ctx)
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore persisted session")
	}
}

func (s *Scheduler) dropped(cause error) error {
	log.Debug().Err(cause).Msg("session changed while renewing, result dropped")
	s.opts.Metrics.ObserveRefresh("dropped")
	return portalerrors.Wrapf(session.ErrSessionChanged, "renewal discarded")
}

// expire drops the session the failed renewal started from. A session
// published in the meantime is left alone.
func (s *Scheduler) expire(ctx context.Context, version session.Version, cause error) error {
	if !s.store.Expire(version) {
		return s.dropped(cause)
	}
	log.Err(cause).Msg("token refresh failed, session cleared")
	s.opts.Metrics.ObserveRefresh("failed")
	s.opts.Metrics.SetAuthenticated(false)
	if err := s.opts.Persister.Delete(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("failed to delete persisted session")
	}
	return fmt.Errorf("%w: %w", portalerrors.ErrSessionExpired, cause)
}

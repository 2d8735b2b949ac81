package session

import (
	"context"
	"time"

	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
)

// ErrNotFound is returned by a Repo when no sealed session is stored under a key
var ErrNotFound = portalerrors.ErrSessionNotFound

// Repo stores sealed session blobs. Implementations never see plaintext tokens.
type Repo interface {
	Upsert(ctx context.Context, key string, sealed []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Persister saves the session across restarts.
type Persister interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context) (Session, error)
	Delete(ctx context.Context) error
}

// NopPersister keeps nothing; every start needs a fresh login.
type NopPersister struct{}

var _ Persister = NopPersister{}

func (NopPersister) Save(context.Context, Session) error { return nil }

func (NopPersister) Load(context.Context) (Session, error) { return Session{}, ErrNotFound }

func (NopPersister) Delete(context.Context) error { return nil }

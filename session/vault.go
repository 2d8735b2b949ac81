package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Vault persists sessions sealed under a single key in a Repo.
type Vault struct {
	repo   Repo
	sealer *Sealer
	key    string
}

var _ Persister = (*Vault)(nil)

// NewVault creates a Vault. key identifies the slot, normally the OAuth client ID.
func NewVault(repo Repo, sealer *Sealer, key string) *Vault {
	return &Vault{
		repo:   repo,
		sealer: sealer,
		key:    "portal:session:" + key,
	}
}

// Save seals and stores s. Unauthenticated sessions delete the slot instead.
func (v *Vault) Save(ctx context.Context, s Session) error {
	if !s.Authenticated {
		return v.Delete(ctx)
	}

	plaintext, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := v.sealer.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}

	var ttl time.Duration
	if !s.RefreshExpiresAt.IsZero() {
		ttl = s.RefreshExpiresAt.Sub(NowTimeFunc())
		if ttl <= 0 {
			return v.Delete(ctx)
		}
	}

	if err := v.repo.Upsert(ctx, v.key, sealed, ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Load returns the stored session, or ErrNotFound.
func (v *Vault) Load(ctx context.Context) (Session, error) {
	sealed, err := v.repo.Get(ctx, v.key)
	if err != nil {
		return Session{}, err
	}

	plaintext, err := v.sealer.Open(sealed)
	if err != nil {
		return Session{}, fmt.Errorf("failed to open session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (v *Vault) Delete(ctx context.Context) error {
	return v.repo.Delete(ctx, v.key)
}

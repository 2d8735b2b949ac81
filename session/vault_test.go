package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-elearning-portal/session"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) (*session.Vault, *session.InMemoryRepo) {
	t.Helper()

	sealer, err := session.NewSealer("test-session-key")
	require.NoError(t, err)

	repo := session.NewInMemoryRepo()
	return session.NewVault(repo, sealer, "react-client"), repo
}

func TestSealer(t *testing.T) {
	_, err := session.NewSealer("")
	require.Error(t, err)

	sealer, err := session.NewSealer("secret")
	require.NoError(t, err)

	sealed1, err := sealer.Seal([]byte("refresh-token"))
	require.NoError(t, err)
	sealed2, err := sealer.Seal([]byte("refresh-token"))
	require.NoError(t, err)
	require.NotEqual(t, sealed1, sealed2, "nonces must differ")
	require.NotContains(t, string(sealed1), "refresh-token")

	opened, err := sealer.Open(sealed1)
	require.NoError(t, err)
	require.Equal(t, []byte("refresh-token"), opened)

	other, err := session.NewSealer("other-secret")
	require.NoError(t, err)
	_, err = other.Open(sealed1)
	require.Error(t, err)

	_, err = sealer.Open([]byte("short"))
	require.Error(t, err)
}

func TestVault_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	vault, _ := newTestVault(t)

	_, err := vault.Load(ctx)
	require.ErrorIs(t, err, session.ErrNotFound)

	want := session.Session{
		AccessToken:   "access",
		RefreshToken:  "refresh",
		IDToken:       "id",
		ExpiresAt:     time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second),
		Authenticated: true,
	}
	require.NoError(t, vault.Save(ctx, want))

	got, err := vault.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want.AccessToken, got.AccessToken)
	require.Equal(t, want.RefreshToken, got.RefreshToken)
	require.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, vault.Delete(ctx))
	_, err = vault.Load(ctx)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestVault_UnauthenticatedSaveDeletes(t *testing.T) {
	ctx := context.Background()
	vault, _ := newTestVault(t)

	require.NoError(t, vault.Save(ctx, session.Session{AccessToken: "a", Authenticated: true}))
	require.NoError(t, vault.Save(ctx, session.Session{}))

	_, err := vault.Load(ctx)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestVault_RefreshExpiryBoundsStorage(t *testing.T) {
	ctx := context.Background()
	vault, _ := newTestVault(t)

	now := time.Now()
	session.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { session.NowTimeFunc = time.Now })

	require.NoError(t, vault.Save(ctx, session.Session{
		AccessToken:      "a",
		RefreshToken:     "r",
		RefreshExpiresAt: now.Add(time.Minute),
		Authenticated:    true,
	}))
	_, err := vault.Load(ctx)
	require.NoError(t, err)

	session.NowTimeFunc = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = vault.Load(ctx)
	require.ErrorIs(t, err, session.ErrNotFound)
}

package sqliterepo_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-elearning-portal/session"
	"github.com/jrsteele09/go-elearning-portal/session/sqliterepo"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *sqliterepo.Repo {
	t.Helper()

	repo, err := sqliterepo.New("file:" + filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Get(ctx, "slot")
	require.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, repo.Upsert(ctx, "slot", []byte("first"), 0))
	require.NoError(t, repo.Upsert(ctx, "slot", []byte("second"), 0))

	got, err := repo.Get(ctx, "slot")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)

	require.NoError(t, repo.Delete(ctx, "slot"))
	_, err = repo.Get(ctx, "slot")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRepo_MigrationsAreIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.ApplyMigrations())
}

func TestRepo_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	now := time.Now()
	session.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { session.NowTimeFunc = time.Now })

	require.NoError(t, repo.Upsert(ctx, "slot", []byte("sealed"), time.Minute))
	_, err := repo.Get(ctx, "slot")
	require.NoError(t, err)

	session.NowTimeFunc = func() time.Time { return now.Add(time.Hour) }
	_, err = repo.Get(ctx, "slot")
	require.ErrorIs(t, err, session.ErrNotFound)
}

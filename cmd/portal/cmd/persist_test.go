package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-elearning-portal/internal/config"
	"github.com/jrsteele09/go-elearning-portal/session"
)

func testConfig(t *testing.T, settings map[string]any) config.Config {
	t.Helper()
	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}
	c, err := config.FromViper(v)
	require.NoError(t, err)
	return c
}

func TestOpenPersister(t *testing.T) {
	sess := session.Session{
		Authenticated: true,
		AccessToken:   "access",
		RefreshToken:  "refresh",
		ExpiresAt:     time.Now().Add(time.Hour),
	}

	t.Run("disabled", func(t *testing.T) {
		p, closeFn, err := openPersister(testConfig(t, nil))
		require.NoError(t, err)
		defer closeFn()
		require.IsType(t, session.NopPersister{}, p)
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn := "file:" + filepath.Join(t.TempDir(), "session.db")
		p, closeFn, err := openPersister(testConfig(t, map[string]any{
			"persist_session": true,
			"session_key":     "correct horse battery staple",
			"session_dsn":     dsn,
		}))
		require.NoError(t, err)
		defer closeFn()

		require.NoError(t, p.Save(context.Background(), sess))
		got, err := p.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, sess.AccessToken, got.AccessToken)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		p, closeFn, err := openPersister(testConfig(t, map[string]any{
			"persist_session": true,
			"session_key":     "correct horse battery staple",
			"session_store":   "redis",
			"redis_addr":      mr.Addr(),
		}))
		require.NoError(t, err)
		defer closeFn()

		require.NoError(t, p.Save(context.Background(), sess))
		got, err := p.Load(context.Background())
		require.NoError(t, err)
		require.Equal(t, sess.RefreshToken, got.RefreshToken)
	})
}

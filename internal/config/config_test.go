package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-elearning-portal/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	c, err := config.FromViper(viper.New())
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:3000", c.GetAddr())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "react-client", c.GetClientID())
	require.Equal(t, []string{"openid", "profile", "email"}, c.GetScopes())
	require.Equal(t, 60*time.Second, c.GetRefreshInterval())
	require.Equal(t, 30*time.Second, c.GetRefreshMinValidity())
	require.False(t, c.GetPersistSession())
	require.False(t, c.GetRequireInstructor())
	require.Equal(t, "http://localhost:8081", c.GetAPIBaseURL())
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("port", ":4000")
	v.Set("issuer_url", "https://idp.example.com/realms/school/")
	v.Set("scopes", "openid,profile offline_access")
	v.Set("refresh_min_validity", "70s")
	v.Set("require_instructor", true)

	c, err := config.FromViper(v)
	require.NoError(t, err)

	require.Equal(t, "4000", c.GetPort())
	require.Equal(t, "https://idp.example.com/realms/school", c.GetIssuerURL())
	require.Equal(t, []string{"openid", "profile", "offline_access"}, c.GetScopes())
	require.Equal(t, 70*time.Second, c.GetRefreshMinValidity())
	require.True(t, c.GetRequireInstructor())
}

func TestFromViper_Invalid(t *testing.T) {
	t.Run("persisted session without key", func(t *testing.T) {
		v := viper.New()
		v.Set("persist_session", true)
		_, err := config.FromViper(v)
		require.Error(t, err)
		require.Contains(t, err.Error(), "SessionKey")
	})

	t.Run("unknown session store", func(t *testing.T) {
		v := viper.New()
		v.Set("session_store", "etcd")
		_, err := config.FromViper(v)
		require.Error(t, err)
		require.Contains(t, err.Error(), "SessionStore")
	})

	t.Run("issuer is not a url", func(t *testing.T) {
		v := viper.New()
		v.Set("issuer_url", "not a url")
		_, err := config.FromViper(v)
		require.Error(t, err)
		require.Contains(t, err.Error(), "IssuerURL")
	})
}

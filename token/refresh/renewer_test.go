package refresh_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-elearning-portal/internal/idptest"
	"github.com/jrsteele09/go-elearning-portal/session"
	"github.com/jrsteele09/go-elearning-portal/token/refresh"
)

func oauth2Config(p *idptest.Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID: p.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.Issuer() + "/protocol/openid-connect/auth",
			TokenURL:  p.Issuer() + "/protocol/openid-connect/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func TestOAuth2Renewer(t *testing.T) {
	p := idptest.NewProvider(t, "react-client")
	renewer := refresh.NewOAuth2Renewer(oauth2Config(p), nil)

	t.Run("refresh grant issues a new session", func(t *testing.T) {
		minted := p.Mint(t)
		current := session.Session{
			AccessToken:   minted.AccessToken,
			RefreshToken:  minted.RefreshToken,
			IDToken:       minted.IDToken,
			ExpiresAt:     time.Now().Add(10 * time.Second),
			Authenticated: true,
		}

		before := p.RefreshRequests()
		next, err := renewer.Renew(context.Background(), current)
		require.NoError(t, err)
		require.Equal(t, before+1, p.RefreshRequests())
		require.True(t, next.Authenticated)
		require.NotEqual(t, minted.AccessToken, next.AccessToken)
		require.NotEqual(t, minted.RefreshToken, next.RefreshToken)
		require.True(t, p.ValidAccessToken(next.AccessToken))
		require.True(t, next.ExpiresAt.After(time.Now().Add(time.Minute)))
		require.False(t, next.RefreshExpiresAt.IsZero())
	})

	t.Run("expiry from jwt when expires_in is missing", func(t *testing.T) {
		p.OmitExpiresIn(true)
		defer p.OmitExpiresIn(false)

		minted := p.Mint(t)
		next, err := renewer.Renew(context.Background(), session.Session{
			AccessToken:   minted.AccessToken,
			RefreshToken:  minted.RefreshToken,
			Authenticated: true,
		})
		require.NoError(t, err)
		require.WithinDuration(t, time.Now().Add(5*time.Minute), next.ExpiresAt, 5*time.Second)
	})

	t.Run("invalid_grant is rejected", func(t *testing.T) {
		p.RejectRefresh(true)
		defer p.RejectRefresh(false)

		minted := p.Mint(t)
		_, err := renewer.Renew(context.Background(), session.Session{
			AccessToken:   minted.AccessToken,
			RefreshToken:  minted.RefreshToken,
			Authenticated: true,
		})
		require.ErrorIs(t, err, refresh.ErrRefreshRejected)
	})

	t.Run("no refresh token", func(t *testing.T) {
		_, err := renewer.Renew(context.Background(), session.Session{AccessToken: "a", Authenticated: true})
		require.ErrorIs(t, err, refresh.ErrRefreshRejected)
	})

	t.Run("provider down is not a rejection", func(t *testing.T) {
		down := refresh.NewOAuth2Renewer(&oauth2.Config{
			ClientID: "react-client",
			Endpoint: oauth2.Endpoint{TokenURL: "http://127.0.0.1:1/token", AuthStyle: oauth2.AuthStyleInParams},
		}, nil)
		_, err := down.Renew(context.Background(), session.Session{AccessToken: "a", RefreshToken: "r", Authenticated: true})
		require.Error(t, err)
		require.NotErrorIs(t, err, refresh.ErrRefreshRejected)
	})
}

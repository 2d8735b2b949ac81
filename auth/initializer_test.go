package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-elearning-portal/auth"
	"github.com/jrsteele09/go-elearning-portal/auth/flowrepo"
	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
	"github.com/jrsteele09/go-elearning-portal/internal/idptest"
	"github.com/jrsteele09/go-elearning-portal/session"
)

type fixture struct {
	provider *idptest.Provider
	store    *session.Store
	flows    *flowrepo.InMemoryRepo
	init     *auth.Initializer
}

func newFixture(t *testing.T, persister session.Persister) *fixture {
	t.Helper()

	p := idptest.NewProvider(t, "react-client")
	store := session.NewStore()
	flows := flowrepo.NewInMemoryRepo()
	init := auth.NewInitializer(store, flows, auth.Options{
		IssuerURL:             p.Issuer(),
		ClientID:              "react-client",
		RedirectURL:           "http://localhost:3000/callback",
		PostLogoutRedirectURL: "http://localhost:3000/",
		Persister:             persister,
	})
	return &fixture{provider: p, store: store, flows: flows, init: init}
}

func (f *fixture) login(t *testing.T) session.Session {
	t.Helper()
	out, err := f.init.Initialize(context.Background())
	require.NoError(t, err)
	require.False(t, out.Authenticated)

	state, code := f.provider.Approve(t, out.LoginURL)
	sess, err := f.init.CompleteLogin(context.Background(), state, code)
	require.NoError(t, err)
	return sess
}

func TestInitialize_Unauthenticated(t *testing.T) {
	f := newFixture(t, nil)

	out, err := f.init.Initialize(context.Background())
	require.NoError(t, err)
	require.False(t, out.Authenticated)
	require.NotEmpty(t, out.LoginURL)
	require.False(t, f.store.Authenticated())

	u, err := url.Parse(out.LoginURL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "react-client", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.NotEmpty(t, q.Get("nonce"))
	require.NotEmpty(t, q.Get("state"))
	require.Equal(t, "http://localhost:3000/callback", q.Get("redirect_uri"))

	t.Run("repeated calls reuse the pending login", func(t *testing.T) {
		again, err := f.init.Initialize(context.Background())
		require.NoError(t, err)
		require.Equal(t, out.LoginURL, again.LoginURL)
		require.Equal(t, 1, f.flows.Len())
	})

	t.Run("no token or identity traffic", func(t *testing.T) {
		require.Equal(t, 0, f.provider.TokenRequests())
		require.Equal(t, 0, f.provider.UserInfoRequests())
	})
}

func TestCompleteLogin(t *testing.T) {
	f := newFixture(t, nil)

	sess := f.login(t)
	require.True(t, sess.Authenticated)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)
	require.NotEmpty(t, sess.IDToken)
	require.True(t, sess.ExpiresAt.After(time.Now()))
	require.Equal(t, sess, f.store.Current())
	require.Equal(t, 0, f.flows.Len())

	out, err := f.init.Initialize(context.Background())
	require.NoError(t, err)
	require.True(t, out.Authenticated)
	require.Equal(t, sess.AccessToken, out.Session.AccessToken)
	require.Equal(t, 1, f.provider.TokenRequests())
}

func TestCompleteLogin_Failures(t *testing.T) {
	t.Run("unknown state", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.init.Initialize(context.Background())
		require.NoError(t, err)

		_, err = f.init.CompleteLogin(context.Background(), "forged", "code")
		var initErr *auth.AuthInitError
		require.ErrorAs(t, err, &initErr)
		require.Equal(t, auth.OpCallback, initErr.Op)
		require.ErrorIs(t, err, auth.ErrInvalidState)
		require.False(t, f.store.Authenticated())
	})

	t.Run("state is single use", func(t *testing.T) {
		f := newFixture(t, nil)
		out, err := f.init.Initialize(context.Background())
		require.NoError(t, err)
		state, code := f.provider.Approve(t, out.LoginURL)

		_, err = f.init.CompleteLogin(context.Background(), state, code)
		require.NoError(t, err)
		_, err = f.init.CompleteLogin(context.Background(), state, code)
		require.ErrorIs(t, err, auth.ErrInvalidState)
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		f := newFixture(t, nil)
		out, err := f.init.Initialize(context.Background())
		require.NoError(t, err)
		state, code := f.provider.Approve(t, out.LoginURL)

		flow, err := f.flows.Get(state)
		require.NoError(t, err)
		flow.Nonce = "replayed"
		require.NoError(t, f.flows.Upsert(state, flow))

		_, err = f.init.CompleteLogin(context.Background(), state, code)
		require.ErrorIs(t, err, auth.ErrInvalidNonce)
		require.False(t, f.store.Authenticated())
	})

	t.Run("wrong verifier", func(t *testing.T) {
		f := newFixture(t, nil)
		out, err := f.init.Initialize(context.Background())
		require.NoError(t, err)
		state, code := f.provider.Approve(t, out.LoginURL)

		flow, err := f.flows.Get(state)
		require.NoError(t, err)
		flow.CodeVerifier = "not-the-verifier-used-for-the-challenge-0123456789"
		require.NoError(t, f.flows.Upsert(state, flow))

		_, err = f.init.CompleteLogin(context.Background(), state, code)
		var initErr *auth.AuthInitError
		require.ErrorAs(t, err, &initErr)
		require.Equal(t, auth.OpExchange, initErr.Op)
	})
}

func TestInitialize_DiscoveryFailure(t *testing.T) {
	var hits atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	init := auth.NewInitializer(session.NewStore(), flowrepo.NewInMemoryRepo(), auth.Options{
		IssuerURL: broken.URL,
		ClientID:  "react-client",
	})

	_, err := init.Initialize(context.Background())
	var initErr *auth.AuthInitError
	require.ErrorAs(t, err, &initErr)
	require.Equal(t, auth.OpDiscovery, initErr.Op)
	require.ErrorIs(t, err, portalerrors.ErrProviderUnavailable)

	// no automatic retry
	_, err = init.Initialize(context.Background())
	require.ErrorAs(t, err, &initErr)
	require.Equal(t, int32(1), hits.Load())

	init.Reset()
	_, err = init.Initialize(context.Background())
	require.Error(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestLogout(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.login(t)

	redirect, err := f.init.Logout(context.Background())
	require.NoError(t, err)
	require.False(t, f.store.Authenticated())
	require.Contains(t, f.provider.Revoked(), sess.RefreshToken)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	require.Equal(t, f.provider.EndSessionURL(), u.Scheme+"://"+u.Host+u.Path)
	require.Equal(t, "http://localhost:3000/", u.Query().Get("post_logout_redirect_uri"))
	require.Equal(t, sess.IDToken, u.Query().Get("id_token_hint"))

	out, err := f.init.Initialize(context.Background())
	require.NoError(t, err)
	require.False(t, out.Authenticated)
	require.NotEmpty(t, out.LoginURL)
}

func TestInitialize_RestoresPersistedSession(t *testing.T) {
	sealer, err := session.NewSealer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	t.Run("valid session is reused", func(t *testing.T) {
		vault := session.NewVault(session.NewInMemoryRepo(), sealer, "default")
		f := newFixture(t, vault)

		minted := f.provider.Mint(t)
		require.NoError(t, vault.Save(context.Background(), session.Session{
			AccessToken:      minted.AccessToken,
			RefreshToken:     minted.RefreshToken,
			IDToken:          minted.IDToken,
			ExpiresAt:        time.Now().Add(5 * time.Minute),
			RefreshExpiresAt: time.Now().Add(30 * time.Minute),
			Authenticated:    true,
		}))

		out, err := f.init.Initialize(context.Background())
		require.NoError(t, err)
		require.True(t, out.Authenticated)
		require.Equal(t, minted.AccessToken, f.store.Current().AccessToken)
		require.Equal(t, 0, f.provider.RefreshRequests())
	})

	t.Run("expiring session is renewed", func(t *testing.T) {
		vault := session.NewVault(session.NewInMemoryRepo(), sealer, "default")
		f := newFixture(t, vault)

		minted := f.provider.Mint(t)
		require.NoError(t, vault.Save(context.Background(), session.Session{
			AccessToken:      minted.AccessToken,
			RefreshToken:     minted.RefreshToken,
			ExpiresAt:        time.Now().Add(5 * time.Second),
			RefreshExpiresAt: time.Now().Add(30 * time.Minute),
			Authenticated:    true,
		}))

		out, err := f.init.Initialize(context.Background())
		require.NoError(t, err)
		require.True(t, out.Authenticated)
		require.Equal(t, 1, f.provider.RefreshRequests())
		require.NotEqual(t, minted.AccessToken, f.store.Current().AccessToken)
	})

	t.Run("rejected refresh falls back to login", func(t *testing.T) {
		vault := session.NewVault(session.NewInMemoryRepo(), sealer, "default")
		f := newFixture(t, vault)
		f.provider.RejectRefresh(true)

		require.NoError(t, vault.Save(context.Background(), session.Session{
			AccessToken:      "stale",
			RefreshToken:     "stale-refresh",
			ExpiresAt:        time.Now().Add(-time.Minute),
			RefreshExpiresAt: time.Now().Add(30 * time.Minute),
			Authenticated:    true,
		}))

		out, err := f.init.Initialize(context.Background())
		require.NoError(t, err)
		require.False(t, out.Authenticated)
		require.NotEmpty(t, out.LoginURL)

		_, err = vault.Load(context.Background())
		require.ErrorIs(t, err, session.ErrNotFound)
	})
}

func TestInitializer_Renew(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.login(t)

	next, err := f.init.Renew(context.Background(), sess)
	require.NoError(t, err)
	require.NotEqual(t, sess.AccessToken, next.AccessToken)
	require.NotEmpty(t, next.IDToken)

	endpoint, err := f.init.UserInfoEndpoint(context.Background())
	require.NoError(t, err)
	require.Equal(t, f.provider.UserInfoURL(), endpoint)
}

// Package auth runs the OpenID Connect authorization code flow with PKCE for
// the portal's single user session.
package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-elearning-portal/auth/flowrepo"
	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
	"github.com/jrsteele09/go-elearning-portal/internal/metrics"
	"github.com/jrsteele09/go-elearning-portal/session"
	"github.com/jrsteele09/go-elearning-portal/token"
	"github.com/jrsteele09/go-elearning-portal/token/refresh"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const defaultFlowTTL = 10 * time.Minute

// Options configures an Initializer.
type Options struct {
	IssuerURL             string
	ClientID              string
	ClientSecret          string
	RedirectURL           string
	PostLogoutRedirectURL string
	Scopes                []string

	HTTPClient *http.Client

	// FlowTTL bounds how long a started login may take before its state is forgotten
	FlowTTL time.Duration

	// Persister restores a saved session on the first Initialize. Nil disables persistence.
	Persister session.Persister

	// MinValidity is how much access token lifetime a restored session needs before it is renewed
	MinValidity time.Duration

	Metrics *metrics.Metrics
}

// Outcome is the result of the handshake. Exactly one of Session (when
// Authenticated) or LoginURL is meaningful.
type Outcome struct {
	Authenticated bool
	Session       session.Session
	LoginURL      string
}

type providerEndpoints struct {
	Revocation string `json:"revocation_endpoint"`
	EndSession string `json:"end_session_endpoint"`
}

// Initializer establishes the session exactly once per process.
type Initializer struct {
	opts  Options
	store *session.Store
	flows flowrepo.Repo

	mu           sync.Mutex
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	endpoints    providerEndpoints
	restored     bool
	outcome      *Outcome
	failure      error
	pendingState string
	pendingURL   string
}

var _ refresh.Renewer = (*Initializer)(nil)

func NewInitializer(store *session.Store, flows flowrepo.Repo, opts Options) *Initializer {
	if opts.FlowTTL <= 0 {
		opts.FlowTTL = defaultFlowTTL
	}
	if opts.MinValidity <= 0 {
		opts.MinValidity = refresh.DefaultMinValidity
	}
	if opts.Persister == nil {
		opts.Persister = session.NopPersister{}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	return &Initializer{opts: opts, store: store, flows: flows}
}

// Initialize runs the handshake. The first call discovers the provider and
// either restores a persisted session or starts a login; later calls return
// the recorded outcome. While a login is pending the same LoginURL is returned.
func (i *Initializer) Initialize(ctx context.Context) (Outcome, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.failure != nil {
		return Outcome{}, i.failure
	}

	if i.outcome != nil && i.outcome.Authenticated {
		if i.store.Authenticated() {
			return Outcome{Authenticated: true, Session: i.store.Current()}, nil
		}
		// the session was cleared underneath us (refresh rejected); start over
		i.outcome = nil
	}

	if i.pendingURL != "" {
		if _, err := i.flows.Get(i.pendingState); err == nil {
			return Outcome{LoginURL: i.pendingURL}, nil
		}
		i.pendingState, i.pendingURL = "", ""
	}

	if err := i.discoverLocked(ctx); err != nil {
		i.failure = err
		i.opts.Metrics.ObserveLogin("error")
		return Outcome{}, err
	}

	if !i.restored {
		i.restored = true
		if i.restoreLocked(ctx) {
			i.outcome = &Outcome{Authenticated: true}
			i.opts.Metrics.ObserveLogin("restored")
			i.opts.Metrics.SetAuthenticated(true)
			return Outcome{Authenticated: true, Session: i.store.Current()}, nil
		}
	}

	loginURL, err := i.beginLoginLocked()
	if err != nil {
		i.failure = initError(OpLogin, err)
		i.opts.Metrics.ObserveLogin("error")
		return Outcome{}, i.failure
	}

	i.opts.Metrics.ObserveLogin("redirect")
	return Outcome{LoginURL: loginURL}, nil
}

// Reset forgets the recorded outcome so the next Initialize runs the handshake again.
func (i *Initializer) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.outcome = nil
	i.failure = nil
	i.pendingState, i.pendingURL = "", ""
}

func (i *Initializer) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, i.opts.HTTPClient)
}

func (i *Initializer) discoverLocked(ctx context.Context) error {
	if i.provider != nil {
		return nil
	}

	provider, err := oidc.NewProvider(i.clientContext(ctx), i.opts.IssuerURL)
	if err != nil {
		return initError(OpDiscovery, portalerrors.Wrapf(portalerrors.ErrProviderUnavailable, "%v", err))
	}

	var endpoints providerEndpoints
	if err := provider.Claims(&endpoints); err != nil {
		log.Warn().Err(err).Msg("failed to read optional provider endpoints")
	}

	i.provider = provider
	i.endpoints = endpoints
	i.oauth2Config = &oauth2.Config{
		ClientID:     i.opts.ClientID,
		ClientSecret: i.opts.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  i.opts.RedirectURL,
		Scopes:       i.opts.Scopes,
	}
	i.verifier = provider.Verifier(&oidc.Config{ClientID: i.opts.ClientID})

	log.Info().Str("issuer", i.opts.IssuerURL).Msg("identity provider discovered")
	return nil
}

func (i *Initializer) beginLoginLocked() (string, error) {
	i.flows.Prune(NowTimeFunc().Add(-i.opts.FlowTTL))

	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	if err := i.flows.Upsert(state, &flowrepo.FlowState{
		CodeVerifier: verifier,
		Nonce:        nonce,
		CreatedAt:    NowTimeFunc(),
	}); err != nil {
		return "", err
	}

	loginURL := i.oauth2Config.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	)
	i.pendingState, i.pendingURL = state, loginURL
	return loginURL, nil
}

// restoreLocked loads a persisted session, renewing it when its access token is
// about to expire. A session that cannot be used is deleted.
func (i *Initializer) restoreLocked(ctx context.Context) bool {
	saved, err := i.opts.Persister.Load(ctx)
	if err != nil {
		if !portalerrors.Is(err, session.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to load persisted session")
		}
		return false
	}
	if !saved.Authenticated {
		return false
	}

	if saved.Remaining(NowTimeFunc()) < i.opts.MinValidity {
		renewed, err := i.renewLocked(ctx, saved)
		if err != nil {
			log.Info().Err(err).Msg("persisted session could not be renewed")
			if err := i.opts.Persister.Delete(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to delete persisted session")
			}
			return false
		}
		saved = renewed
		if err := i.opts.Persister.Save(ctx, saved); err != nil {
			log.Warn().Err(err).Msg("failed to persist renewed session")
		}
	}

	if err := i.store.Replace(saved); err != nil {
		log.Warn().Err(err).Msg("persisted session rejected")
		return false
	}
	log.Info().Time("expires_at", saved.ExpiresAt).Msg("session restored")
	return true
}

// CompleteLogin finishes the flow started by Initialize: it validates state,
// exchanges the code with the PKCE verifier and verifies the ID token and nonce.
func (i *Initializer) CompleteLogin(ctx context.Context, state, code string) (session.Session, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	sess, err := i.completeLoginLocked(ctx, state, code)
	if err != nil {
		i.opts.Metrics.ObserveLogin("error")
		return session.Session{}, err
	}

	i.outcome = &Outcome{Authenticated: true}
	i.failure = nil
	i.pendingState, i.pendingURL = "", ""
	i.opts.Metrics.ObserveLogin("success")
	i.opts.Metrics.SetAuthenticated(true)
	return sess, nil
}

func (i *Initializer) completeLoginLocked(ctx context.Context, state, code string) (session.Session, error) {
	if code == "" {
		return session.Session{}, initError(OpCallback, portalerrors.New("missing code parameter"))
	}

	flow, err := i.flows.Get(state)
	if err != nil {
		return session.Session{}, initError(OpCallback, ErrInvalidState)
	}
	if err := i.flows.Delete(state); err != nil {
		return session.Session{}, initError(OpCallback, err)
	}
	if NowTimeFunc().Sub(flow.CreatedAt) > i.opts.FlowTTL {
		return session.Session{}, initError(OpCallback, portalerrors.Wrapf(ErrInvalidState, "login flow expired"))
	}

	if err := i.discoverLocked(ctx); err != nil {
		return session.Session{}, err
	}

	cctx := i.clientContext(ctx)
	oauth2Token, err := i.oauth2Config.Exchange(cctx, code, oauth2.VerifierOption(flow.CodeVerifier))
	if err != nil {
		return session.Session{}, initError(OpExchange, err)
	}

	rawIDToken := token.IDToken(oauth2Token)
	if rawIDToken == "" {
		return session.Session{}, initError(OpVerify, ErrMissingIDToken)
	}

	idToken, err := i.verifier.Verify(cctx, rawIDToken)
	if err != nil {
		return session.Session{}, initError(OpVerify, err)
	}
	if idToken.Nonce != flow.Nonce {
		return session.Session{}, initError(OpVerify, ErrInvalidNonce)
	}

	sess, err := token.SessionFromToken(oauth2Token, session.Session{}, NowTimeFunc())
	if err != nil {
		return session.Session{}, initError(OpStore, err)
	}
	if err := i.store.Replace(sess); err != nil {
		return session.Session{}, initError(OpStore, err)
	}
	if err := i.opts.Persister.Save(ctx, sess); err != nil {
		log.Warn().Err(err).Msg("failed to persist session")
	}

	log.Info().Str("subject", idToken.Subject).Time("expires_at", sess.ExpiresAt).Msg("login completed")
	return sess, nil
}

// Renew exchanges the refresh token of current for a new session using the
// discovered token endpoint.
func (i *Initializer) Renew(ctx context.Context, current session.Session) (session.Session, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.renewLocked(ctx, current)
}

func (i *Initializer) renewLocked(ctx context.Context, current session.Session) (session.Session, error) {
	if err := i.discoverLocked(ctx); err != nil {
		return session.Session{}, err
	}
	return refresh.NewOAuth2Renewer(i.oauth2Config, i.opts.HTTPClient).Renew(ctx, current)
}

// UserInfoEndpoint returns the discovered userinfo endpoint.
func (i *Initializer) UserInfoEndpoint(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.discoverLocked(ctx); err != nil {
		return "", err
	}
	if i.provider.UserInfoEndpoint() == "" {
		return "", portalerrors.Wrapf(portalerrors.ErrUnsupported, "provider does not advertise a userinfo endpoint")
	}
	return i.provider.UserInfoEndpoint(), nil
}

// Logout revokes the refresh token, clears the session and its persisted copy,
// and returns where the browser should go next: the provider's end session
// endpoint when advertised, otherwise the post logout redirect.
func (i *Initializer) Logout(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	current := i.store.Current()

	if current.RefreshToken != "" && i.endpoints.Revocation != "" {
		i.revoke(ctx, current.RefreshToken, "refresh_token")
	}

	i.store.Clear()
	i.outcome = nil
	i.pendingState, i.pendingURL = "", ""
	i.opts.Metrics.SetAuthenticated(false)

	var deleteErr error
	if err := i.opts.Persister.Delete(ctx); err != nil {
		deleteErr = portalerrors.Wrapf(err, "failed to delete persisted session")
	}

	if i.endpoints.EndSession == "" {
		return i.opts.PostLogoutRedirectURL, deleteErr
	}

	endSession, err := url.Parse(i.endpoints.EndSession)
	if err != nil {
		return i.opts.PostLogoutRedirectURL, portalerrors.Wrapf(err, "invalid end_session_endpoint")
	}
	q := endSession.Query()
	q.Set("client_id", i.opts.ClientID)
	if i.opts.PostLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", i.opts.PostLogoutRedirectURL)
	}
	if current.IDToken != "" {
		q.Set("id_token_hint", current.IDToken)
	}
	endSession.RawQuery = q.Encode()

	log.Info().Msg("logged out")
	return endSession.String(), deleteErr
}

// revoke is best effort; failures are logged and the logout carries on.
func (i *Initializer) revoke(ctx context.Context, tok, tokenTypeHint string) {
	form := url.Values{}
	form.Set("token", tok)
	form.Set("token_type_hint", tokenTypeHint)
	form.Set("client_id", i.opts.ClientID)
	if i.opts.ClientSecret != "" {
		form.Set("client_secret", i.opts.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoints.Revocation, strings.NewReader(form.Encode()))
	if err != nil {
		log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to revoke token")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.opts.HTTPClient.Do(req)
	if err != nil {
		log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to revoke token")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("token_type", tokenTypeHint).Msg("Token revocation refused")
	}
}

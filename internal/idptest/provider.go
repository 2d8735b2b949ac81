// Package idptest runs an in-process OpenID Connect provider and course
// backend for tests.
package idptest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type authCode struct {
	challenge   string
	nonce       string
	redirectURI string
}

// Provider is a minimal OIDC provider: discovery, JWKS, authorize,
// token (authorization_code and refresh_token grants), userinfo,
// revocation and end session.
type Provider struct {
	Server   *httptest.Server
	ClientID string

	key *signingKey

	mu               sync.Mutex
	codes            map[string]authCode
	refreshTokens    map[string]bool
	accessTokens     map[string]bool
	revoked          []string
	accessTTL        time.Duration
	omitExpiresIn    bool
	rejectRefresh    bool
	userInfoStatus   int
	profile          map[string]any
	tokenRequests    int
	refreshRequests  int
	userInfoRequests int
}

// NewProvider starts a provider that is closed when the test ends.
func NewProvider(t testing.TB, clientID string) *Provider {
	t.Helper()

	key, err := newSigningKey("test-key-1")
	if err != nil {
		t.Fatalf("generate signing key: %v", err)
	}

	p := &Provider{
		ClientID:      clientID,
		key:           key,
		codes:         make(map[string]authCode),
		refreshTokens: make(map[string]bool),
		accessTokens:  make(map[string]bool),
		accessTTL:     5 * time.Minute,
		profile: map[string]any{
			"sub":                "user-1",
			"given_name":         "Ada",
			"family_name":        "Lovelace",
			"email":              "ada@example.com",
			"email_verified":     true,
			"preferred_username": "ada",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.discoveryHandler)
	mux.HandleFunc("/protocol/openid-connect/certs", p.jwksHandler)
	mux.HandleFunc("/protocol/openid-connect/auth", p.authorizeHandler)
	mux.HandleFunc("/protocol/openid-connect/token", p.tokenHandler)
	mux.HandleFunc("/protocol/openid-connect/userinfo", p.userInfoHandler)
	mux.HandleFunc("/protocol/openid-connect/revoke", p.revokeHandler)
	mux.HandleFunc("/protocol/openid-connect/logout", p.logoutHandler)

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

func (p *Provider) Issuer() string { return p.Server.URL }

func (p *Provider) UserInfoURL() string {
	return p.Server.URL + "/protocol/openid-connect/userinfo"
}

func (p *Provider) EndSessionURL() string {
	return p.Server.URL + "/protocol/openid-connect/logout"
}

// SetAccessTTL changes the expires_in of newly issued access tokens.
func (p *Provider) SetAccessTTL(ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessTTL = ttl
}

// OmitExpiresIn drops expires_in from token responses.
func (p *Provider) OmitExpiresIn(omit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitExpiresIn = omit
}

// RejectRefresh makes every refresh grant fail with invalid_grant.
func (p *Provider) RejectRefresh(reject bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectRefresh = reject
}

// SetUserInfoStatus forces the userinfo endpoint to answer with status. 0 restores normal behaviour.
func (p *Provider) SetUserInfoStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoStatus = status
}

func (p *Provider) SetProfileClaim(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile[name] = value
}

func (p *Provider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

func (p *Provider) RefreshRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshRequests
}

func (p *Provider) UserInfoRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userInfoRequests
}

func (p *Provider) Revoked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.revoked...)
}

// ValidAccessToken reports whether token was issued by this provider and not revoked.
func (p *Provider) ValidAccessToken(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessTokens[token]
}

// Tokens is a token endpoint response.
type Tokens struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	ExpiresIn        int64  `json:"expires_in,omitempty"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
}

// Mint issues a token set without going through the browser flow.
func (p *Provider) Mint(t testing.TB) Tokens {
	t.Helper()
	tokens, err := p.issue("")
	if err != nil {
		t.Fatalf("mint tokens: %v", err)
	}
	return tokens
}

// Approve follows a login URL the way a browser would after the user signs in
// and returns the state and code delivered to the redirect URI.
func (p *Provider) Approve(t testing.TB, loginURL string) (state, code string) {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Get(loginURL)
	if err != nil {
		t.Fatalf("follow login url: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize returned %d", resp.StatusCode)
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	return loc.Query().Get("state"), loc.Query().Get("code")
}

func (p *Provider) discoveryHandler(w http.ResponseWriter, r *http.Request) {
	base := p.Server.URL + "/protocol/openid-connect"
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.Server.URL,
		"authorization_endpoint":                base + "/auth",
		"token_endpoint":                        base + "/token",
		"userinfo_endpoint":                     base + "/userinfo",
		"jwks_uri":                              base + "/certs",
		"revocation_endpoint":                   base + "/revoke",
		"end_session_endpoint":                  base + "/logout",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"code_challenge_methods_supported":      []string{"S256"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"token_endpoint_auth_methods_supported": []string{"none", "client_secret_basic", "client_secret_post"},
	})
}

func (p *Provider) jwksHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JWKS{Keys: []JWK{p.key.jwk()}})
}

func (p *Provider) authorizeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("client_id") != p.ClientID {
		writeOAuthError(w, "unauthorized_client", "unknown client", http.StatusBadRequest)
		return
	}
	if q.Get("response_type") != "code" {
		writeOAuthError(w, "unsupported_response_type", "only code is supported", http.StatusBadRequest)
		return
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		writeOAuthError(w, "invalid_request", "PKCE S256 required", http.StatusBadRequest)
		return
	}

	redirectURI, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirectURI.String() == "" {
		writeOAuthError(w, "invalid_request", "redirect_uri required", http.StatusBadRequest)
		return
	}

	code := uuid.NewString()
	p.mu.Lock()
	p.codes[code] = authCode{
		challenge:   q.Get("code_challenge"),
		nonce:       q.Get("nonce"),
		redirectURI: redirectURI.String(),
	}
	p.mu.Unlock()

	params := redirectURI.Query()
	params.Set("code", code)
	params.Set("state", q.Get("state"))
	redirectURI.RawQuery = params.Encode()
	http.Redirect(w, r, redirectURI.String(), http.StatusFound)
}

func (p *Provider) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		return
	}

	clientID := r.FormValue("client_id")
	if id, _, ok := r.BasicAuth(); ok {
		clientID = id
	}
	if clientID != p.ClientID {
		writeOAuthError(w, "invalid_client", "unknown client", http.StatusUnauthorized)
		return
	}

	p.mu.Lock()
	p.tokenRequests++
	p.mu.Unlock()

	switch r.FormValue("grant_type") {
	case "authorization_code":
		p.exchangeCode(w, r)
	case "refresh_token":
		p.refresh(w, r)
	default:
		writeOAuthError(w, "unsupported_grant_type", "grant type not supported", http.StatusBadRequest)
	}
}

func (p *Provider) exchangeCode(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")

	p.mu.Lock()
	grant, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()

	if !ok {
		writeOAuthError(w, "invalid_grant", "Code not valid", http.StatusBadRequest)
		return
	}
	if r.FormValue("redirect_uri") != "" && r.FormValue("redirect_uri") != grant.redirectURI {
		writeOAuthError(w, "invalid_grant", "Incorrect redirect_uri", http.StatusBadRequest)
		return
	}
	sum := sha256.Sum256([]byte(r.FormValue("code_verifier")))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != grant.challenge {
		writeOAuthError(w, "invalid_grant", "PKCE verification failed", http.StatusBadRequest)
		return
	}

	tokens, err := p.issue(grant.nonce)
	if err != nil {
		writeOAuthError(w, "server_error", err.Error(), http.StatusInternalServerError)
		return
	}
	p.writeTokens(w, tokens)
}

func (p *Provider) refresh(w http.ResponseWriter, r *http.Request) {
	rt := r.FormValue("refresh_token")

	p.mu.Lock()
	p.refreshRequests++
	valid := p.refreshTokens[rt] && !p.rejectRefresh
	delete(p.refreshTokens, rt)
	p.mu.Unlock()

	if !valid {
		writeOAuthError(w, "invalid_grant", "Token is not active", http.StatusBadRequest)
		return
	}

	tokens, err := p.issue("")
	if err != nil {
		writeOAuthError(w, "server_error", err.Error(), http.StatusInternalServerError)
		return
	}
	p.writeTokens(w, tokens)
}

func (p *Provider) writeTokens(w http.ResponseWriter, tokens Tokens) {
	p.mu.Lock()
	if p.omitExpiresIn {
		tokens.ExpiresIn = 0
	}
	p.mu.Unlock()

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, tokens)
}

func (p *Provider) issue(nonce string) (Tokens, error) {
	p.mu.Lock()
	ttl := p.accessTTL
	sub, _ := p.profile["sub"].(string)
	p.mu.Unlock()

	now := time.Now()
	access, err := p.key.sign(jwt.MapClaims{
		"iss": p.Server.URL,
		"sub": sub,
		"aud": "account",
		"azp": p.ClientID,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	if err != nil {
		return Tokens{}, err
	}

	idClaims := jwt.MapClaims{
		"iss": p.Server.URL,
		"sub": sub,
		"aud": p.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if nonce != "" {
		idClaims["nonce"] = nonce
	}
	idToken, err := p.key.sign(idClaims)
	if err != nil {
		return Tokens{}, err
	}

	refreshToken := uuid.NewString()

	p.mu.Lock()
	p.accessTokens[access] = true
	p.refreshTokens[refreshToken] = true
	p.mu.Unlock()

	return Tokens{
		AccessToken:      access,
		TokenType:        "Bearer",
		RefreshToken:     refreshToken,
		IDToken:          idToken,
		ExpiresIn:        int64(ttl.Seconds()),
		RefreshExpiresIn: 1800,
	}, nil
}

func (p *Provider) userInfoHandler(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.userInfoRequests++
	status := p.userInfoStatus
	profile := make(map[string]any, len(p.profile))
	for k, v := range p.profile {
		profile[k] = v
	}
	p.mu.Unlock()

	if status != 0 {
		writeOAuthError(w, "forced_failure", http.StatusText(status), status)
		return
	}

	token, ok := BearerToken(r)
	if !ok || !p.ValidAccessToken(token) {
		writeOAuthError(w, "invalid_token", "Token verification failed", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (p *Provider) revokeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
		return
	}
	token := r.FormValue("token")
	if token == "" {
		writeOAuthError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	p.revoked = append(p.revoked, token)
	delete(p.refreshTokens, token)
	delete(p.accessTokens, token)
	p.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (p *Provider) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if redirect := r.URL.Query().Get("post_logout_redirect_uri"); redirect != "" {
		http.Redirect(w, r, redirect, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOAuthError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

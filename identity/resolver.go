package identity

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/jrsteele09/go-elearning-portal/internal/apiclient"
	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
	"github.com/jrsteele09/go-elearning-portal/internal/utils"
)

const (
	rolePrefix = "ROLE_"
	mePath     = "/api/me"
)

// Options configures a Resolver.
type Options struct {
	// UserInfoURL overrides the discovered userinfo endpoint
	UserInfoURL string
	// UserInfoEndpoint looks the endpoint up through provider discovery
	UserInfoEndpoint func(ctx context.Context) (string, error)

	APIBaseURL string
	HTTPClient *http.Client

	// IncludeResourceRoles adds resource_access.*.roles to the realm roles
	IncludeResourceRoles bool
	// NormalizeRolePrefix prefixes roles with ROLE_ unless already present
	NormalizeRolePrefix bool

	// Observer receives per request metrics for both endpoints
	Observer apiclient.Observer
}

// Resolver fetches the profile and role claims of the signed-in user. Each
// call reads the bearer token from the token source at the time of the call.
type Resolver struct {
	opts    Options
	profile *apiclient.Client
	api     *apiclient.Client
}

func NewResolver(tokens apiclient.TokenSource, opts Options) *Resolver {
	profile := apiclient.New("", opts.HTTPClient, tokens)
	profile.Observer = opts.Observer
	api := apiclient.New(opts.APIBaseURL, opts.HTTPClient, tokens)
	api.Observer = opts.Observer
	return &Resolver{opts: opts, profile: profile, api: api}
}

type userInfoResponse struct {
	Subject           string `json:"sub"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	Email             string `json:"email"`
	EmailVerified     *bool  `json:"email_verified"`
	PreferredUsername string `json:"preferred_username"`
}

// FetchProfile reads the userinfo endpoint.
func (r *Resolver) FetchProfile(ctx context.Context) (UserProfile, error) {
	endpoint := r.opts.UserInfoURL
	if endpoint == "" {
		if r.opts.UserInfoEndpoint == nil {
			return UserProfile{}, &ProfileFetchError{Err: portalerrors.Wrapf(portalerrors.ErrInvalidConfig, "no userinfo endpoint configured")}
		}
		var err error
		if endpoint, err = r.opts.UserInfoEndpoint(ctx); err != nil {
			return UserProfile{}, &ProfileFetchError{Err: err}
		}
	}

	var info userInfoResponse
	if err := r.profile.Do(ctx, http.MethodGet, endpoint, nil, &info); err != nil {
		return UserProfile{}, &ProfileFetchError{StatusCode: statusOf(err), Err: err}
	}

	return UserProfile{
		Subject:           info.Subject,
		GivenName:         info.GivenName,
		FamilyName:        info.FamilyName,
		Email:             info.Email,
		EmailVerified:     utils.Value(info.EmailVerified),
		PreferredUsername: info.PreferredUsername,
	}, nil
}

// FetchRoleClaims reads realm_access.roles from the backend's /api/me. A
// missing claim is an empty set, not an error.
func (r *Resolver) FetchRoleClaims(ctx context.Context) (RoleClaims, error) {
	var claims map[string]any
	if err := r.api.Do(ctx, http.MethodGet, mePath, nil, &claims); err != nil {
		return RoleClaims{}, &ClaimsFetchError{StatusCode: statusOf(err), Err: err}
	}

	roles := utils.ToStringSlice(rolesOf(claims["realm_access"]))
	if r.opts.IncludeResourceRoles {
		for _, access := range utils.StringMap(claims["resource_access"]) {
			roles = append(roles, utils.ToStringSlice(rolesOf(access))...)
		}
	}
	if r.opts.NormalizeRolePrefix {
		for i, role := range roles {
			if !strings.HasPrefix(role, rolePrefix) {
				roles[i] = rolePrefix + role
			}
		}
	}
	return NewRoleClaims(roles...), nil
}

func rolesOf(access any) []any {
	roles, _ := utils.StringMap(access)["roles"].([]any)
	return roles
}

// Load fetches profile and role claims concurrently. Any failure yields a
// single *UserDataError wrapping every cause; there are no retries.
func (r *Resolver) Load(ctx context.Context) (UserData, error) {
	var (
		wg         sync.WaitGroup
		data       UserData
		profileErr error
		claimsErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		data.Profile, profileErr = r.FetchProfile(ctx)
	}()
	go func() {
		defer wg.Done()
		data.Roles, claimsErr = r.FetchRoleClaims(ctx)
	}()
	wg.Wait()

	if err := multierr.Append(profileErr, claimsErr); err != nil {
		log.Err(err).Msg("failed to load user data")
		return UserData{}, &UserDataError{err: err}
	}

	log.Debug().Str("user", data.Profile.PreferredUsername).Strs("roles", data.Roles.Roles()).Msg("user data loaded")
	return data, nil
}

func statusOf(err error) int {
	var statusErr *apiclient.StatusError
	if apiclient.IsStatus(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

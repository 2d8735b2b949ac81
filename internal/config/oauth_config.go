package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type OAuthConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetPostLogoutRedirectURL() string
	GetScopes() []string
	GetUserInfoURL() string
	GetRefreshInterval() time.Duration
	GetRefreshMinValidity() time.Duration
	GetUseResourceRoles() bool
	GetNormalizeRolePrefix() bool
}

type OAuth struct {
	v *viper.Viper
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetIssuerURL() string {
	return strings.TrimSuffix(o.v.GetString("issuer_url"), "/")
}

func (o OAuth) GetClientID() string {
	return o.v.GetString("client_id")
}

// GetClientSecret is empty for public (PKCE only) clients
func (o OAuth) GetClientSecret() string {
	return o.v.GetString("client_secret")
}

func (o OAuth) GetRedirectURL() string {
	return o.v.GetString("redirect_url")
}

func (o OAuth) GetPostLogoutRedirectURL() string {
	return o.v.GetString("post_logout_redirect_url")
}

func (o OAuth) GetScopes() []string {
	return strings.Fields(strings.ReplaceAll(o.v.GetString("scopes"), ",", " "))
}

// GetUserInfoURL overrides the discovered userinfo endpoint when set
func (o OAuth) GetUserInfoURL() string {
	return o.v.GetString("userinfo_url")
}

func (o OAuth) GetRefreshInterval() time.Duration {
	return o.v.GetDuration("refresh_interval")
}

// GetRefreshMinValidity is the remaining lifetime below which the access token is renewed
func (o OAuth) GetRefreshMinValidity() time.Duration {
	return o.v.GetDuration("refresh_min_validity")
}

func (o OAuth) GetUseResourceRoles() bool {
	return o.v.GetBool("resource_roles")
}

func (o OAuth) GetNormalizeRolePrefix() bool {
	return o.v.GetBool("normalize_role_prefix")
}

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jrsteele09/go-elearning-portal/auth"
	"github.com/jrsteele09/go-elearning-portal/auth/flowrepo"
	"github.com/jrsteele09/go-elearning-portal/courses"
	"github.com/jrsteele09/go-elearning-portal/identity"
	"github.com/jrsteele09/go-elearning-portal/internal/config"
	"github.com/jrsteele09/go-elearning-portal/internal/metrics"
	"github.com/jrsteele09/go-elearning-portal/session"
	"github.com/jrsteele09/go-elearning-portal/token/refresh"
)

// Components is the portal's object graph: one session store per process and
// the services that read and write it.
type Components struct {
	Store       *session.Store
	Flows       flowrepo.Repo
	Initializer *auth.Initializer
	Scheduler   *refresh.Scheduler
	Resolver    *identity.Resolver
	Catalog     *courses.Catalog
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry

	// OnSessionExpired is called when the scheduler gives up on the session.
	// Set it before the scheduler is started.
	OnSessionExpired func(err error)
}

// BootstrapOptions carries what the caller owns rather than the config.
type BootstrapOptions struct {
	// Persister keeps the session across restarts. Nil disables persistence.
	Persister session.Persister
	// Registry receives the portal metrics. A new registry is created when nil.
	Registry *prometheus.Registry
	// HTTPClient is shared by every outbound call. Defaults to the configured timeout.
	HTTPClient *http.Client
}

// Bootstrap wires the components from configuration.
func Bootstrap(cfg config.Config, opts BootstrapOptions) *Components {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: cfg.GetHTTPTimeout()}
	}
	if opts.Persister == nil {
		opts.Persister = session.NopPersister{}
	}

	c := &Components{
		Store:    session.NewStore(),
		Flows:    flowrepo.NewInMemoryRepo(),
		Metrics:  metrics.New(opts.Registry),
		Registry: opts.Registry,
	}

	c.Initializer = auth.NewInitializer(c.Store, c.Flows, auth.Options{
		IssuerURL:             cfg.GetIssuerURL(),
		ClientID:              cfg.GetClientID(),
		ClientSecret:          cfg.GetClientSecret(),
		RedirectURL:           cfg.GetRedirectURL(),
		PostLogoutRedirectURL: cfg.GetPostLogoutRedirectURL(),
		Scopes:                cfg.GetScopes(),
		HTTPClient:            opts.HTTPClient,
		FlowTTL:               cfg.GetLoginFlowTTL(),
		Persister:             opts.Persister,
		MinValidity:           cfg.GetRefreshMinValidity(),
		Metrics:               c.Metrics,
	})

	c.Scheduler = refresh.NewScheduler(c.Store, c.Initializer, refresh.Options{
		Interval:    cfg.GetRefreshInterval(),
		MinValidity: cfg.GetRefreshMinValidity(),
		Persister:   opts.Persister,
		Metrics:     c.Metrics,
		OnExpired: func(err error) {
			if c.OnSessionExpired != nil {
				c.OnSessionExpired(err)
			}
		},
	})

	c.Resolver = identity.NewResolver(c.Store, identity.Options{
		UserInfoURL:          cfg.GetUserInfoURL(),
		UserInfoEndpoint:     c.Initializer.UserInfoEndpoint,
		APIBaseURL:           cfg.GetAPIBaseURL(),
		HTTPClient:           opts.HTTPClient,
		IncludeResourceRoles: cfg.GetUseResourceRoles(),
		NormalizeRolePrefix:  cfg.GetNormalizeRolePrefix(),
		Observer:             c.Metrics.APIObserver("identity"),
	})

	c.Catalog = courses.NewCatalog(courses.NewClient(c.Store, courses.Options{
		BaseURL:           cfg.GetAPIBaseURL(),
		HTTPClient:        opts.HTTPClient,
		RequireInstructor: cfg.GetRequireInstructor(),
		Observer:          c.Metrics.APIObserver("courses"),
	}))

	return c
}

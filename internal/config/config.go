package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PORTAL"

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	APIConfig
}

type EnvConfig interface {
	GetPort() string
	GetBindAddr() string
	GetAddr() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
	API
}

// New loads configuration from the environment, an optional .env file
// (config/.env.<env>) and an optional YAML file, then validates it.
func New(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv(envPrefix + "_ENV"))
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("config.godotenv(%s): %w", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config.os.Stat(%s): %w", dotEnvPath, err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper wraps an already populated viper instance. Missing keys fall
// back to the portal defaults.
func FromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)
	c := mainConfig{
		EnvVars:  EnvVars{v: v},
		OAuth:    OAuth{v: v},
		Security: Security{v: v},
		API:      API{v: v},
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("port", "3000")
	v.SetDefault("bind_addr", "127.0.0.1")
	v.SetDefault("app_name", "E-Learning Portal")
	v.SetDefault("env", "DEV")
	v.SetDefault("log_level", "info")

	v.SetDefault("issuer_url", "http://localhost:8080/realms/e-learning-realm")
	v.SetDefault("client_id", "react-client")
	v.SetDefault("client_secret", "")
	v.SetDefault("redirect_url", "http://localhost:3000/callback")
	v.SetDefault("post_logout_redirect_url", "http://localhost:3000/")
	v.SetDefault("scopes", "openid profile email")
	v.SetDefault("userinfo_url", "")
	v.SetDefault("refresh_interval", 60*time.Second)
	v.SetDefault("refresh_min_validity", 30*time.Second)
	v.SetDefault("resource_roles", false)
	v.SetDefault("normalize_role_prefix", false)

	v.SetDefault("persist_session", false)
	v.SetDefault("session_store", "sqlite")
	v.SetDefault("session_dsn", "file:portal-session.db")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("session_key", "")
	v.SetDefault("login_rate", 5)
	v.SetDefault("login_flow_ttl", 10*time.Minute)

	v.SetDefault("api_base_url", "http://localhost:8081")
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("require_instructor", false)
}

// settings is the validated view of a Config.
type settings struct {
	Port               string        `validate:"required,numeric"`
	IssuerURL          string        `validate:"required,url"`
	ClientID           string        `validate:"required"`
	RedirectURL        string        `validate:"required,url"`
	APIBaseURL         string        `validate:"required,url"`
	HTTPTimeout        time.Duration `validate:"gt=0"`
	RefreshInterval    time.Duration `validate:"gt=0"`
	RefreshMinValidity time.Duration `validate:"gte=0"`
	PersistSession     bool
	SessionStore       string `validate:"oneof=sqlite redis"`
	SessionKey         string `validate:"required_if=PersistSession true"`
	LoginRate          int    `validate:"gt=0"`
}

// Validate checks the configuration values a running portal depends on.
func Validate(c Config) error {
	s := settings{
		Port:               c.GetPort(),
		IssuerURL:          c.GetIssuerURL(),
		ClientID:           c.GetClientID(),
		RedirectURL:        c.GetRedirectURL(),
		APIBaseURL:         c.GetAPIBaseURL(),
		HTTPTimeout:        c.GetHTTPTimeout(),
		RefreshInterval:    c.GetRefreshInterval(),
		RefreshMinValidity: c.GetRefreshMinValidity(),
		PersistSession:     c.GetPersistSession(),
		SessionStore:       c.GetSessionStore(),
		SessionKey:         c.GetSessionKey(),
		LoginRate:          c.GetLoginRatePerMinute(),
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(s); err != nil {
		var msgs []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
			}
		} else {
			msgs = append(msgs, err.Error())
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

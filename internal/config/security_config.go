package config

import (
	"time"

	"github.com/spf13/viper"
)

type SecurityConfig interface {
	GetPersistSession() bool
	GetSessionStore() string
	GetSessionDSN() string
	GetRedisAddr() string
	GetSessionKey() string
	GetLoginRatePerMinute() int
	GetLoginFlowTTL() time.Duration
}

type Security struct {
	v *viper.Viper
}

var _ SecurityConfig = Security{}

// GetPersistSession reports whether the session survives a restart.
// Off by default: every start runs the login handshake again.
func (s Security) GetPersistSession() bool {
	return s.v.GetBool("persist_session")
}

// GetSessionStore is "sqlite" or "redis"
func (s Security) GetSessionStore() string {
	return s.v.GetString("session_store")
}

func (s Security) GetSessionDSN() string {
	return s.v.GetString("session_dsn")
}

func (s Security) GetRedisAddr() string {
	return s.v.GetString("redis_addr")
}

// GetSessionKey is the secret the persisted session is sealed with
func (s Security) GetSessionKey() string {
	return s.v.GetString("session_key")
}

func (s Security) GetLoginRatePerMinute() int {
	return s.v.GetInt("login_rate")
}

func (s Security) GetLoginFlowTTL() time.Duration {
	return s.v.GetDuration("login_flow_ttl")
}

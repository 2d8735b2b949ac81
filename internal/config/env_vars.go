package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	return strings.TrimPrefix(e.v.GetString("port"), ":")
}

func (e EnvVars) GetBindAddr() string {
	return e.v.GetString("bind_addr")
}

// GetAddr returns the listen address, e.g. "127.0.0.1:3000"
func (e EnvVars) GetAddr() string {
	return fmt.Sprintf("%s:%s", e.GetBindAddr(), e.GetPort())
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString("app_name")
}

func (e EnvVars) GetEnv() string {
	env := strings.ToUpper(e.v.GetString("env"))
	if env == "" {
		return "DEV"
	}
	return env
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString("log_level")
}

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
	GetRequireInstructor() bool
}

type API struct {
	v *viper.Viper
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return strings.TrimSuffix(a.v.GetString("api_base_url"), "/")
}

func (a API) GetHTTPTimeout() time.Duration {
	return a.v.GetDuration("http_timeout")
}

// GetRequireInstructor makes the instructor field mandatory when creating courses
func (a API) GetRequireInstructor() bool {
	return a.v.GetBool("require_instructor")
}

package config

import (
	"strings"
	"time"
)

// API holds the remote auth API settings. BaseURL is the origin every
// endpoint path is appended to, e.g. "https://api.example.com".
type API struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:3000"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"30s"`
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return a.BaseURL
}

func (a API) GetAPITimeout() time.Duration {
	return a.Timeout
}

func (a *API) sanitize() {
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if a.Timeout <= 0 {
		a.Timeout = 30 * time.Second
	}
}

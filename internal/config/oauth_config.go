package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetOAuthProviders() []string
	GetMinPasswordLength() int
	GetRefreshLeeway() time.Duration
}

type OAuth struct {
	Providers         []string      `env:"OAUTH_PROVIDERS"     envDefault:"google,kakao" envSeparator:","`
	MinPasswordLength int           `env:"MIN_PASSWORD_LENGTH" envDefault:"6"`
	RefreshLeeway     time.Duration `env:"REFRESH_LEEWAY"      envDefault:"30s"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetOAuthProviders() []string {
	return o.Providers
}

func (o OAuth) GetMinPasswordLength() int {
	return o.MinPasswordLength
}

func (o OAuth) GetRefreshLeeway() time.Duration {
	return o.RefreshLeeway
}

func (o *OAuth) sanitize() {
	providers := make([]string, 0, len(o.Providers))
	for _, p := range o.Providers {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			providers = append(providers, p)
		}
	}
	o.Providers = providers
	if o.MinPasswordLength < 1 {
		o.MinPasswordLength = 6
	}
	if o.RefreshLeeway < 0 {
		o.RefreshLeeway = 0
	}
}

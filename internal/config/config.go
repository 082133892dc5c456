package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetListenAddr() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	IsDev() bool
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	API     `envPrefix:"API_"`
	Storage `envPrefix:"STORAGE_"`
	OAuth   `envPrefix:"AUTH_"`
}

var _ Config = (*mainConfig)(nil)

// New loads an optional .env file from the working directory and then parses
// the process environment. Values already present in the environment win over
// the .env file.
func New() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("[config.New] load .env: %w", err)
	}
	return parse(env.Options{})
}

// FromMap builds a Config from an explicit environment, ignoring the process
// environment. Used by tests and by callers embedding the session manager.
func FromMap(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("[config] parse environment: %w", err)
	}
	if err := c.sanitize(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *mainConfig) sanitize() error {
	c.EnvVars.sanitize()
	c.API.sanitize()
	if err := c.Storage.sanitize(); err != nil {
		return err
	}
	c.OAuth.sanitize()
	return nil
}

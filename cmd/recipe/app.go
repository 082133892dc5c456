package main

import (
	"fmt"
	"io"

	"github.com/jrsteele09/prompting-recipe/apiclient"
	"github.com/jrsteele09/prompting-recipe/auth"
	"github.com/jrsteele09/prompting-recipe/internal/config"
	"github.com/jrsteele09/prompting-recipe/tokenstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// app is everything a command needs, wired from the configuration.
type app struct {
	cfg    config.Config
	out    io.Writer
	client *apiclient.Client
	ctrl   *auth.Controller
	closer func() error
}

func newApp(cfg config.Config, out io.Writer) (*app, error) {
	backend, closer, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	client, err := apiclient.New(cfg.GetAPIBaseURL(),
		apiclient.WithTimeout(cfg.GetAPITimeout()),
		apiclient.WithRefreshLeeway(cfg.GetRefreshLeeway()),
	)
	if err != nil {
		_ = closer()
		return nil, err
	}

	ctrl, err := auth.NewController(
		auth.Deps{API: client, Store: tokenstore.New(backend)},
		auth.WithMinPasswordLength(cfg.GetMinPasswordLength()),
		auth.WithProviders(cfg.GetOAuthProviders()...),
	)
	if err != nil {
		_ = closer()
		return nil, err
	}

	return &app{cfg: cfg, out: out, client: client, ctrl: ctrl, closer: closer}, nil
}

func (a *app) Close() {
	if err := a.closer(); err != nil {
		log.Warn().Err(err).Msg("Failed to close session storage")
	}
}

// newBackend opens the configured session storage. The returned closer
// releases any connection it holds.
func newBackend(cfg config.StorageConfig) (tokenstore.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.GetStorageBackend() {
	case config.StorageMemory:
		return tokenstore.NewMemoryBackend(), noop, nil

	case config.StorageFile:
		var opts []tokenstore.FileOption
		if key := cfg.GetStorageEncryptionKey(); key != "" {
			opts = append(opts, tokenstore.WithPassphrase(key))
		}
		backend, err := tokenstore.NewFileBackend(cfg.GetStoragePath(), opts...)
		if err != nil {
			return nil, nil, err
		}
		log.Debug().Str("path", backend.Path()).Bool("sealed", len(opts) > 0).Msg("Using file session storage")
		return backend, noop, nil

	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		backend, err := tokenstore.NewRedisBackend(rdb, cfg.GetRedisPrefix(), cfg.GetStorageTTL())
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		log.Debug().Str("addr", cfg.GetRedisAddr()).Str("key", cfg.GetRedisPrefix()).Msg("Using redis session storage")
		return backend, rdb.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.GetStorageBackend())
	}
}

// Package tokenstore persists the session credentials between runs. It is the
// only process-wide mutable state in the application: written by the session
// controller, read by the controller at startup and through it by the HTTP
// client.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/prompting-recipe/internal/errors"
	"github.com/jrsteele09/prompting-recipe/users"
	"github.com/rs/zerolog/log"
)

// Storage keys. One canonical, snake_case scheme.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// ErrNoSession is returned by Load when nothing usable is stored.
var ErrNoSession = apperrors.ErrNoSession

// Backend is a string key/value store in the spirit of browser storage.
// SetItems must apply all items or none.
type Backend interface {
	GetItems(ctx context.Context, keys ...string) (map[string]string, error)
	SetItems(ctx context.Context, items map[string]string) error
	RemoveItems(ctx context.Context, keys ...string) error
}

// Record is a persisted session.
type Record struct {
	AccessToken  string
	RefreshToken string
	User         *users.Profile
}

func (r Record) Validate() error {
	if r.AccessToken == "" {
		return apperrors.ErrMissingAccessToken
	}
	if r.RefreshToken == "" {
		return apperrors.ErrMissingRefreshToken
	}
	if err := r.User.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}
	return nil
}

// Store reads and writes session records through a Backend.
type Store struct {
	backend Backend
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Save writes the access token, refresh token and user in one backend call.
func (s *Store) Save(ctx context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("[tokenstore.Save] %w", err)
	}
	user, err := json.Marshal(r.User)
	if err != nil {
		return fmt.Errorf("[tokenstore.Save] marshal user: %w", err)
	}
	if err := s.backend.SetItems(ctx, map[string]string{
		KeyAccessToken:  r.AccessToken,
		KeyRefreshToken: r.RefreshToken,
		KeyUser:         string(user),
	}); err != nil {
		return fmt.Errorf("[tokenstore.Save] %w", err)
	}
	return nil
}

// Load returns the stored record, or ErrNoSession when nothing complete and
// readable is stored. Unreadable leftovers are discarded.
func (s *Store) Load(ctx context.Context) (Record, error) {
	items, err := s.backend.GetItems(ctx, allKeys...)
	if errors.Is(err, apperrors.ErrCorruptStorage) {
		log.Warn().Err(err).Msg("Discarding unreadable session storage")
		s.discard(ctx)
		return Record{}, ErrNoSession
	}
	if err != nil {
		return Record{}, fmt.Errorf("[tokenstore.Load] %w", err)
	}

	access, refresh, rawUser := items[KeyAccessToken], items[KeyRefreshToken], items[KeyUser]
	if access == "" || refresh == "" || rawUser == "" {
		if access != "" || refresh != "" || rawUser != "" {
			log.Warn().
				Bool("access_token", access != "").
				Bool("refresh_token", refresh != "").
				Bool("user", rawUser != "").
				Msg("Discarding incomplete stored session")
			s.discard(ctx)
		}
		return Record{}, ErrNoSession
	}

	user, err := users.Parse([]byte(rawUser))
	if err != nil {
		log.Warn().Err(err).Msg("Discarding stored session with unreadable user")
		s.discard(ctx)
		return Record{}, ErrNoSession
	}

	return Record{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// Clear removes all session keys.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.RemoveItems(ctx, allKeys...); err != nil {
		return fmt.Errorf("[tokenstore.Clear] %w", err)
	}
	return nil
}

func (s *Store) discard(ctx context.Context) {
	if err := s.backend.RemoveItems(ctx, allKeys...); err != nil {
		log.Err(err).Msg("Failed to discard stored session")
	}
}

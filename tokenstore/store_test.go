package tokenstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/prompting-recipe/tokenstore"
	"github.com/jrsteele09/prompting-recipe/users"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T) tokenstore.Backend

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"memory": func(t *testing.T) tokenstore.Backend {
			return tokenstore.NewMemoryBackend()
		},
		"file": func(t *testing.T) tokenstore.Backend {
			b, err := tokenstore.NewFileBackend(filepath.Join(t.TempDir(), "session.json"))
			require.NoError(t, err)
			return b
		},
		"sealed file": func(t *testing.T) tokenstore.Backend {
			b, err := tokenstore.NewFileBackend(filepath.Join(t.TempDir(), "session.json"), tokenstore.WithPassphrase("open sesame"))
			require.NoError(t, err)
			return b
		},
		"redis": func(t *testing.T) tokenstore.Backend {
			return newRedisBackend(t, time.Hour)
		},
	}
}

func newRedisBackend(t *testing.T, ttl time.Duration) *tokenstore.RedisBackend {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck
	b, err := tokenstore.NewRedisBackend(client, "test:session", ttl)
	require.NoError(t, err)
	return b
}

func testRecord() tokenstore.Record {
	return tokenstore.Record{
		AccessToken:  "A1",
		RefreshToken: "R1",
		User:         &users.Profile{ID: "1", Name: "Chef", Email: "chef@example.com"},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, newBackend := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := tokenstore.New(newBackend(t))

			_, err := store.Load(ctx)
			require.ErrorIs(t, err, tokenstore.ErrNoSession)

			want := testRecord()
			require.NoError(t, store.Save(ctx, want))

			got, err := store.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, want.AccessToken, got.AccessToken)
			require.Equal(t, want.RefreshToken, got.RefreshToken)
			require.Equal(t, *want.User, *got.User)

			// Replacing tokens keeps a single consistent record.
			want.AccessToken, want.RefreshToken = "A2", "R2"
			require.NoError(t, store.Save(ctx, want))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, "A2", got.AccessToken)
			require.Equal(t, "R2", got.RefreshToken)

			require.NoError(t, store.Clear(ctx))
			_, err = store.Load(ctx)
			require.ErrorIs(t, err, tokenstore.ErrNoSession)
		})
	}
}

func TestStore_MalformedUserIsNoSession(t *testing.T) {
	malformed := []string{
		`{"id":`,
		`not json`,
		`{"name":"no id"}`,
		`[]`,
	}
	for _, raw := range malformed {
		t.Run(raw, func(t *testing.T) {
			ctx := context.Background()
			backend := tokenstore.NewMemoryBackend()
			require.NoError(t, backend.SetItems(ctx, map[string]string{
				tokenstore.KeyAccessToken:  "A1",
				tokenstore.KeyRefreshToken: "R1",
				tokenstore.KeyUser:         raw,
			}))

			_, err := tokenstore.New(backend).Load(ctx)
			require.ErrorIs(t, err, tokenstore.ErrNoSession)
			require.Zero(t, backend.Len(), "unreadable session should be discarded")
		})
	}
}

func TestStore_PartialSessionIsNoSession(t *testing.T) {
	ctx := context.Background()
	backend := tokenstore.NewMemoryBackend()
	require.NoError(t, backend.SetItems(ctx, map[string]string{
		tokenstore.KeyAccessToken: "A1",
		tokenstore.KeyUser:        `{"id":1}`,
	}))

	_, err := tokenstore.New(backend).Load(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNoSession)
	require.Zero(t, backend.Len())
}

func TestStore_SaveValidates(t *testing.T) {
	ctx := context.Background()
	backend := tokenstore.NewMemoryBackend()
	store := tokenstore.New(backend)

	t.Run("missing access token", func(t *testing.T) {
		r := testRecord()
		r.AccessToken = ""
		require.Error(t, store.Save(ctx, r))
	})

	t.Run("missing refresh token", func(t *testing.T) {
		r := testRecord()
		r.RefreshToken = ""
		require.Error(t, store.Save(ctx, r))
	})

	t.Run("missing user", func(t *testing.T) {
		r := testRecord()
		r.User = nil
		require.Error(t, store.Save(ctx, r))
	})

	require.Zero(t, backend.Len(), "rejected saves must not write anything")
}

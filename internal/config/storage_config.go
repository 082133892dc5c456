package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StorageBackend selects where the token store persists the session.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
)

const defaultStoragePath = "~/.prompting-recipe/session.json"

type StorageConfig interface {
	GetStorageBackend() StorageBackend
	GetStoragePath() string
	GetStorageEncryptionKey() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
	GetStorageTTL() time.Duration
}

type Storage struct {
	Backend       StorageBackend `env:"BACKEND"        envDefault:"file"`
	Path          string         `env:"PATH"           envDefault:"~/.prompting-recipe/session.json"`
	EncryptionKey string         `env:"ENCRYPTION_KEY"`
	RedisAddr     string         `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string         `env:"REDIS_PASSWORD"`
	RedisDB       int            `env:"REDIS_DB"       envDefault:"0"`
	RedisPrefix   string         `env:"REDIS_PREFIX"   envDefault:"prompting-recipe:session"`
	TTL           time.Duration  `env:"TTL"            envDefault:"168h"` // 7 days, the refresh token lifetime
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageBackend() StorageBackend {
	return s.Backend
}

func (s Storage) GetStoragePath() string {
	return s.Path
}

func (s Storage) GetStorageEncryptionKey() string {
	return s.EncryptionKey
}

func (s Storage) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Storage) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Storage) GetRedisDB() int {
	return s.RedisDB
}

func (s Storage) GetRedisPrefix() string {
	return s.RedisPrefix
}

func (s Storage) GetStorageTTL() time.Duration {
	return s.TTL
}

func (s *Storage) sanitize() error {
	s.Backend = StorageBackend(strings.ToLower(strings.TrimSpace(string(s.Backend))))
	switch s.Backend {
	case StorageMemory, StorageFile, StorageRedis:
	default:
		return fmt.Errorf("[config] invalid STORAGE_BACKEND %q (valid options: memory, file, redis)", s.Backend)
	}

	if s.Path == "" {
		s.Path = defaultStoragePath
	}
	path, err := expandHome(s.Path)
	if err != nil {
		return err
	}
	s.Path = path

	if s.TTL < 0 {
		s.TTL = 0
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("[config] resolve home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

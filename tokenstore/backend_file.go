package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/jrsteele09/prompting-recipe/internal/errors"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// FileBackend stores all items as one JSON document on disk. Writes go to a
// temporary file in the same directory which is then renamed over the
// document, so readers see either the old or the new set of items.
type FileBackend struct {
	mu     sync.Mutex
	path   string
	sealer *sealer
}

var _ Backend = (*FileBackend)(nil)

type FileOption func(*FileBackend)

// WithPassphrase encrypts the document at rest.
func WithPassphrase(passphrase string) FileOption {
	return func(f *FileBackend) {
		if passphrase != "" {
			f.sealer = newSealer(passphrase)
		}
	}
}

func NewFileBackend(path string, opts ...FileOption) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("[NewFileBackend] path is required")
	}
	f := &FileBackend{path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns the document location.
func (f *FileBackend) Path() string {
	return f.path
}

func (f *FileBackend) GetItems(_ context.Context, keys ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *FileBackend) SetItems(_ context.Context, items map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if errors.Is(err, apperrors.ErrCorruptStorage) {
		all = make(map[string]string)
	} else if err != nil {
		return err
	}
	for k, v := range items {
		all[k] = v
	}
	return f.write(all)
}

func (f *FileBackend) RemoveItems(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if errors.Is(err, apperrors.ErrCorruptStorage) {
		return f.remove()
	} else if err != nil {
		return err
	}
	for _, k := range keys {
		delete(all, k)
	}
	return f.write(all)
}

func (f *FileBackend) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	if f.sealer != nil {
		if data, err = f.sealer.open(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrCorruptStorage, f.path, err)
		}
	}

	all := make(map[string]string)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrCorruptStorage, f.path, err)
	}
	return all, nil
}

func (f *FileBackend) write(all map[string]string) error {
	if len(all) == 0 {
		return f.remove()
	}

	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	if f.sealer != nil {
		if data, err = f.sealer.seal(data); err != nil {
			return fmt.Errorf("seal items: %w", err)
		}
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op once renamed

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

func (f *FileBackend) remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	v1 "turnero/pkg/api/v1"

	"github.com/spf13/afero"
)

// FileStore keeps the session as one JSON document. Saves go through a temp file and
// a rename so a reader never sees half of a session.
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

func NewFileStore(fs afero.Fs, path string) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{fs: fs, path: path}
}

func (f *FileStore) Load(_ context.Context) (*v1.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(b)
}

func (f *FileStore) Save(_ context.Context, s *v1.Session) error {
	b, err := encodeSession(s)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, b, 0o600); err != nil {
		return err
	}
	return f.fs.Rename(tmp, f.path)
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fs.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

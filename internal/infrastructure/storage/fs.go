package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/spf13/afero"
)

// FSStore lee objetos de <fs>/<bucket>/<path>.
type FSStore struct {
	fs     afero.Fs
	bucket string
}

// NewFSStore crea el store sobre cualquier afero.Fs.
func NewFSStore(fsys afero.Fs, bucket string) *FSStore {
	return &FSStore{fs: fsys, bucket: bucket}
}

// Download lee el objeto completo.
func (s *FSStore) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	full := path.Join(s.bucket, clean)

	info, err := s.fs.Stat(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, clean)
	case err != nil:
		return nil, fmt.Errorf("storage: stat %s: %w", clean, err)
	case info.IsDir():
		return nil, fmt.Errorf("%w: %s es un directorio", ErrObjectNotFound, clean)
	case info.Size() > MaxObjectBytes:
		return nil, fmt.Errorf("%w: %s excede %d bytes", ErrObjectTooLarge, clean, MaxObjectBytes)
	}

	data, err := afero.ReadFile(s.fs, full)
	if err != nil {
		return nil, fmt.Errorf("storage: leer %s: %w", clean, err)
	}
	return data, nil
}

// Upload escribe un objeto; lo usan el CLI de diagnóstico y los tests.
func (s *FSStore) Upload(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanPath(p)
	if err != nil {
		return err
	}
	full := path.Join(s.bucket, clean)
	if err := s.fs.MkdirAll(path.Dir(full), 0o750); err != nil {
		return fmt.Errorf("storage: crear directorio: %w", err)
	}
	if err := afero.WriteFile(s.fs, full, data, 0o600); err != nil {
		return fmt.Errorf("storage: escribir %s: %w", clean, err)
	}
	return nil
}

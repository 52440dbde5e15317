// Package storage implementa el blob store de certificados: Supabase Storage (REST) o un sistema
// de archivos afero (disco local en desarrollo, memoria en tests).
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/jhoicas/esocial-sst-api/internal/domain"
)

// ErrObjectNotFound el objeto no existe en el bucket. Envuelve domain.ErrNotFound.
var ErrObjectNotFound = fmt.Errorf("storage: objeto no encontrado: %w", domain.ErrNotFound)

// ErrObjectTooLarge el objeto supera MaxObjectBytes; nunca se devuelve truncado.
var ErrObjectTooLarge = errors.New("storage: objeto demasiado grande")

// MaxObjectBytes tope de descarga; un A1 ocupa unos pocos KB.
const MaxObjectBytes = 10 << 20

// Driver valores de STORAGE_DRIVER.
const (
	DriverSupabase = "supabase"
	DriverFS       = "fs"
)

// Options parámetros para New.
type Options struct {
	Driver             string
	Bucket             string
	SupabaseURL        string
	SupabaseServiceKey string
	FSRoot             string
}

// BlobStore descarga objetos por ruta dentro de un bucket fijo.
type BlobStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// New construye el store según el driver.
func New(opts Options) (BlobStore, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverSupabase:
		if opts.SupabaseURL == "" {
			return nil, errors.New("storage: SUPABASE_URL requerido para el driver supabase")
		}
		return NewSupabaseStore(opts.SupabaseURL, opts.SupabaseServiceKey, opts.Bucket, nil), nil
	case DriverFS:
		root := opts.FSRoot
		if root == "" {
			root = "./data/storage"
		}
		return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), root), opts.Bucket), nil
	}
	return nil, fmt.Errorf("storage: driver desconocido %q", opts.Driver)
}

// cleanPath quita barras iniciales y rechaza rutas que salgan del bucket.
func cleanPath(p string) (string, error) {
	p = strings.TrimLeft(strings.TrimSpace(p), "/")
	if p == "" {
		return "", errors.New("storage: ruta vacía")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("storage: ruta fuera del bucket: %q", p)
		}
	}
	return p, nil
}

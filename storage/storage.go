// Package storage provides the resource store the server and tooling pull
// shared assets from: the PDF font file and the IPC corpus document.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"lexdraft-backend/config"
)

// Store is a named-resource store.
type Store interface {
	// Fetch retrieves a resource by name.
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)

	// Store writes a resource under the given name, replacing any
	// previous content.
	Store(ctx context.Context, name string, data io.Reader) error
}

// ErrNotFound is returned by Fetch when the named resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Type identifiers for the supported backends.
const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// New creates a resource store from configuration.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case TypeLocal:
		return NewLocalStore(cfg.LocalPath)
	case TypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("s3 storage requires a bucket name")
		}
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

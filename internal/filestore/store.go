// Package filestore archives raw uploaded corpus bundles so an index can be
// rebuilt from the exact bytes that produced it.
package filestore

import (
	"context"
	"fmt"
	"io"

	"github.com/hongianguyen/IndochinaPro/internal/config"
)

type Store interface {
	Save(ctx context.Context, key string, r ReadSeekCloser, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type ReadSeekCloser interface {
	Read(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

// New selects the archive backend. An empty type disables archiving and
// returns a nil Store.
func New(cfg config.ArchiveStoreConfig) (Store, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "local":
		return newLocalStore(cfg.Dir)
	case "s3":
		return newS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported archive store type: %s", cfg.Type)
	}
}

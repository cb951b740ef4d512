// Package vectorstore persists embedding vectors with their chunk content and
// metadata and serves nearest-neighbor search over them.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hongianguyen/IndochinaPro/internal/config"
	"github.com/hongianguyen/IndochinaPro/internal/model"
)

// Store is the capability surface shared by all backends. Reads are safe to
// run concurrently with ingestion; a reader racing an overwrite re-ingestion
// of the same source may observe a transient partial state for that source.
type Store interface {
	Upsert(ctx context.Context, rows []model.VectorRow) error
	// Search returns up to k rows ordered most-similar first.
	Search(ctx context.Context, embedding []float32, k int) ([]model.VectorRow, error)
	Count(ctx context.Context) (int64, error)
	DeleteBySource(ctx context.Context, source string) error
	// ListSources returns every distinct source name present in the index.
	ListSources(ctx context.Context) ([]string, error)
	Meta(ctx context.Context) (*model.IngestMeta, error)
	SaveMeta(ctx context.Context, meta *model.IngestMeta) error
}

// New selects a backend from config. The pgvector backend needs an open
// database handle; the local backend ignores it.
func New(cfg config.VectorStoreConfig, conn *sql.DB) (Store, error) {
	switch cfg.Type {
	case "pgvector":
		if conn == nil {
			return nil, fmt.Errorf("pgvector store requires a database connection")
		}
		return NewPGStore(conn), nil
	case "local":
		return OpenLocalStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
}

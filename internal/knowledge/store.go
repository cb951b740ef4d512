// Package knowledge serves the four authoritative documents that outrank
// generic retrieved context: brand guidelines, core principles, logistics
// rules and the hotel master list.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hongianguyen/IndochinaPro/internal/config"
)

// StructuredStore is the keyed document store behind the hub. Upsert
// semantics are keyed by filename.
type StructuredStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Upsert(ctx context.Context, name, content string) error
	List(ctx context.Context) ([]string, error)
}

func NewStore(cfg config.KnowledgeStoreConfig, conn *sql.DB) (StructuredStore, error) {
	switch cfg.Type {
	case "pg":
		if conn == nil {
			return nil, fmt.Errorf("pg knowledge store requires a database connection")
		}
		return NewPGStore(conn), nil
	case "local":
		return NewLocalStore(cfg.Dir), nil
	default:
		return nil, fmt.Errorf("unsupported knowledge store type: %s", cfg.Type)
	}
}

package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/hongianguyen/IndochinaPro/internal/model"
)

const listSourcesPageSize = 1000

// PGStore keeps vectors in a Postgres table with a pgvector column. Cosine
// distance drives the similarity ordering.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(conn *sql.DB) *PGStore {
	return &PGStore{db: conn}
}

func (s *PGStore) Upsert(ctx context.Context, rows []model.VectorRow) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().Unix()
	data := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		meta, err := json.Marshal(row.Metadata)
		if err != nil {
			return err
		}
		data = append(data, map[string]interface{}{
			"content":   row.Content,
			"metadata":  meta,
			"embedding": pgvector.NewVector(row.Embedding),
			"ctime":     now,
		})
	}
	query, args, err := builder.BuildInsert("documents", data)
	if err != nil {
		return err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *PGStore) Search(ctx context.Context, embedding []float32, k int) ([]model.VectorRow, error) {
	const query = `
		SELECT content, metadata, embedding
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.VectorRow
	for rows.Next() {
		var item model.VectorRow
		var meta []byte
		var emb pgvector.Vector
		if err := rows.Scan(&item.Content, &meta, &emb); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &item.Metadata); err != nil {
			return nil, err
		}
		item.Embedding = emb.Slice()
		result = append(result, item)
	}
	return result, rows.Err()
}

func (s *PGStore) Count(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PGStore) DeleteBySource(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE metadata->>'source' = $1`, source)
	return err
}

func (s *PGStore) ListSources(ctx context.Context) ([]string, error) {
	// Paginated so stores with response-size limits behave; one page at a
	// time keeps memory bounded on large corpora too.
	var sources []string
	offset := 0
	for {
		const query = `
			SELECT DISTINCT metadata->>'source'
			FROM documents
			WHERE metadata->>'source' IS NOT NULL
			ORDER BY 1
			LIMIT $1 OFFSET $2
		`
		rows, err := s.db.QueryContext(ctx, query, listSourcesPageSize, offset)
		if err != nil {
			return nil, err
		}
		got := 0
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return nil, err
			}
			sources = append(sources, name)
			got++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		if got < listSourcesPageSize {
			return sources, nil
		}
		offset += got
	}
}

func (s *PGStore) Meta(ctx context.Context) (*model.IngestMeta, error) {
	const query = `SELECT document_count, file_count, last_ingested_at FROM ingest_meta WHERE id = 1`
	row := s.db.QueryRowContext(ctx, query)
	var meta model.IngestMeta
	if err := row.Scan(&meta.DocumentCount, &meta.FileCount, &meta.LastIngested); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &meta, nil
}

func (s *PGStore) SaveMeta(ctx context.Context, meta *model.IngestMeta) error {
	const query = `
		INSERT INTO ingest_meta (id, document_count, file_count, last_ingested_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			document_count = EXCLUDED.document_count,
			file_count = EXCLUDED.file_count,
			last_ingested_at = EXCLUDED.last_ingested_at
	`
	_, err := s.db.ExecContext(ctx, query, meta.DocumentCount, meta.FileCount, meta.LastIngested)
	return err
}

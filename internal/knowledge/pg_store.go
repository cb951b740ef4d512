package knowledge

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
)

type PGStore struct {
	db *sql.DB
}

func NewPGStore(conn *sql.DB) *PGStore {
	return &PGStore{db: conn}
}

func (s *PGStore) Get(ctx context.Context, name string) (string, bool, error) {
	query, args, err := builder.BuildSelect("structured_files",
		map[string]interface{}{"filename": name},
		[]string{"content"})
	if err != nil {
		return "", false, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	row := s.db.QueryRowContext(ctx, query, args...)
	var content string
	if err := row.Scan(&content); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return content, true, nil
}

func (s *PGStore) Upsert(ctx context.Context, name, content string) error {
	const query = `
		INSERT INTO structured_files (filename, content, mtime)
		VALUES ($1, $2, $3)
		ON CONFLICT (filename) DO UPDATE SET
			content = EXCLUDED.content,
			mtime = EXCLUDED.mtime
	`
	_, err := s.db.ExecContext(ctx, query, name, content, time.Now().Unix())
	return err
}

func (s *PGStore) List(ctx context.Context) ([]string, error) {
	query, args, err := builder.BuildSelect("structured_files", nil, []string{"filename"})
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

package vectorstore

import (
	"context"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hongianguyen/IndochinaPro/internal/model"
)

const localIndexFile = "index.gob"

// LocalStore is an on-disk index for deployments without Postgres: every row
// lives in memory, similarity search is brute-force cosine, and each mutation
// rewrites a gob snapshot.
type LocalStore struct {
	mu   sync.RWMutex
	dir  string
	data localIndex
}

type localIndex struct {
	Rows []model.VectorRow
	Meta *model.IngestMeta
}

func OpenLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &LocalStore{dir: dir}
	file, err := os.Open(filepath.Join(dir, localIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	defer file.Close()
	if err := gob.NewDecoder(file).Decode(&s.data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) persist() error {
	path := filepath.Join(s.dir, localIndexFile)
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(file).Encode(&s.data); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *LocalStore) Upsert(ctx context.Context, rows []model.VectorRow) error {
	_ = ctx
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Rows = append(s.data.Rows, rows...)
	return s.persist()
}

func (s *LocalStore) Search(ctx context.Context, embedding []float32, k int) ([]model.VectorRow, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.data.Rows) == 0 {
		return nil, nil
	}
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, 0, len(s.data.Rows))
	for i, row := range s.data.Rows {
		scores = append(scores, scored{idx: i, score: cosineSimilarity(embedding, row.Embedding)})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})
	if k > len(scores) {
		k = len(scores)
	}
	result := make([]model.VectorRow, 0, k)
	for i := 0; i < k; i++ {
		result = append(result, s.data.Rows[scores[i].idx])
	}
	return result, nil
}

func (s *LocalStore) Count(ctx context.Context) (int64, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data.Rows)), nil
}

func (s *LocalStore) DeleteBySource(ctx context.Context, source string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.data.Rows[:0]
	for _, row := range s.data.Rows {
		if row.Metadata.Source != source {
			kept = append(kept, row)
		}
	}
	s.data.Rows = kept
	return s.persist()
}

func (s *LocalStore) ListSources(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var sources []string
	for _, row := range s.data.Rows {
		if row.Metadata.Source == "" {
			continue
		}
		if _, ok := seen[row.Metadata.Source]; ok {
			continue
		}
		seen[row.Metadata.Source] = struct{}{}
		sources = append(sources, row.Metadata.Source)
	}
	sort.Strings(sources)
	return sources, nil
}

func (s *LocalStore) Meta(ctx context.Context) (*model.IngestMeta, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Meta == nil {
		return nil, nil
	}
	meta := *s.data.Meta
	return &meta, nil
}

func (s *LocalStore) SaveMeta(ctx context.Context, meta *model.IngestMeta) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *meta
	s.data.Meta = &copied
	return s.persist()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

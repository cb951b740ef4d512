package retrieve

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hongianguyen/IndochinaPro/internal/model"
)

type stubEmbedder struct {
	fail  bool
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	s.calls++
	if s.fail {
		return nil, fmt.Errorf("embedder down")
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1, 0, 0}
	}
	return result, nil
}

func (s *stubEmbedder) ModelName() string { return "stub" }

type stubStore struct {
	rows []model.VectorRow
	fail bool
}

func (s *stubStore) Upsert(ctx context.Context, rows []model.VectorRow) error { return nil }

func (s *stubStore) Search(ctx context.Context, embedding []float32, k int) ([]model.VectorRow, error) {
	if s.fail {
		return nil, fmt.Errorf("store down")
	}
	if k > len(s.rows) {
		k = len(s.rows)
	}
	return s.rows[:k], nil
}

func (s *stubStore) Count(ctx context.Context) (int64, error) { return int64(len(s.rows)), nil }

func (s *stubStore) DeleteBySource(ctx context.Context, source string) error { return nil }

func (s *stubStore) ListSources(ctx context.Context) ([]string, error) { return nil, nil }

func (s *stubStore) Meta(ctx context.Context) (*model.IngestMeta, error) { return nil, nil }
func (s *stubStore) SaveMeta(ctx context.Context, meta *model.IngestMeta) error {
	return nil
}

func TestRetrieveReturnsPassages(t *testing.T) {
	store := &stubStore{rows: []model.VectorRow{
		{Content: "first"},
		{Content: "second"},
	}}
	r := New(store, &stubEmbedder{})
	passages := r.RetrieveRelevantTours(context.Background(), "hanoi food tour", 8)
	require.Equal(t, []string{"first", "second"}, passages)
}

func TestRetrieveDegradesOnEmbedderFailure(t *testing.T) {
	store := &stubStore{rows: []model.VectorRow{{Content: "first"}}}
	r := New(store, &stubEmbedder{fail: true})
	passages := r.RetrieveRelevantTours(context.Background(), "hanoi", 8)
	require.Empty(t, passages)
}

func TestRetrieveDegradesOnStoreFailure(t *testing.T) {
	store := &stubStore{fail: true}
	r := New(store, &stubEmbedder{})
	passages := r.RetrieveRelevantTours(context.Background(), "hanoi", 8)
	require.Empty(t, passages)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	embedder := &stubEmbedder{}
	r := New(&stubStore{}, embedder)
	require.Empty(t, r.RetrieveRelevantTours(context.Background(), "", 8))
	require.Zero(t, embedder.calls)
}

func TestRetrieveCachesRepeatQueries(t *testing.T) {
	embedder := &stubEmbedder{}
	store := &stubStore{rows: []model.VectorRow{{Content: "first"}}}
	r := New(store, embedder)
	r.RetrieveRelevantTours(context.Background(), "hue heritage", 8)
	r.RetrieveRelevantTours(context.Background(), "hue heritage", 8)
	require.Equal(t, 1, embedder.calls)
}

func TestRetrieveCacheIsKeyedByK(t *testing.T) {
	rows := make([]model.VectorRow, 5)
	for i := range rows {
		rows[i] = model.VectorRow{Content: fmt.Sprintf("p%d", i)}
	}
	r := New(&stubStore{rows: rows}, &stubEmbedder{})
	first := r.RetrieveRelevantTours(context.Background(), "mekong delta", 2)
	require.Len(t, first, 2)
	// A wider request must not be served the narrower cached result.
	second := r.RetrieveRelevantTours(context.Background(), "mekong delta", 5)
	require.Len(t, second, 5)
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	rows := make([]model.VectorRow, 20)
	for i := range rows {
		rows[i] = model.VectorRow{Content: fmt.Sprintf("p%d", i)}
	}
	r := New(&stubStore{rows: rows}, &stubEmbedder{})
	passages := r.RetrieveRelevantTours(context.Background(), "saigon", 0)
	require.Len(t, passages, DefaultTopK)
}

package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hongianguyen/IndochinaPro/internal/model"
)

type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, fmt.Errorf("embed backend down")
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return result, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

type fakeStore struct {
	mu   sync.Mutex
	rows []model.VectorRow
	meta *model.IngestMeta
}

func (f *fakeStore) Upsert(ctx context.Context, rows []model.VectorRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeStore) Search(ctx context.Context, embedding []float32, k int) ([]model.VectorRow, error) {
	return nil, nil
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeStore) DeleteBySource(ctx context.Context, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, row := range f.rows {
		if row.Metadata.Source != source {
			kept = append(kept, row)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeStore) ListSources(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]struct{}{}
	var names []string
	for _, row := range f.rows {
		if _, ok := seen[row.Metadata.Source]; ok {
			continue
		}
		seen[row.Metadata.Source] = struct{}{}
		names = append(names, row.Metadata.Source)
	}
	return names, nil
}

func (f *fakeStore) Meta(ctx context.Context) (*model.IngestMeta, error) {
	return f.meta, nil
}

func (f *fakeStore) SaveMeta(ctx context.Context, meta *model.IngestMeta) error {
	f.meta = meta
	return nil
}

func doc(name string, chars int) model.NamedDocument {
	return model.NamedDocument{Name: name, Data: []byte(strings.Repeat("a", chars))}
}

func newTestPipeline(store *fakeStore, embedder *fakeEmbedder) *Pipeline {
	return NewPipeline(store, embedder, Config{
		ChunkSize:   200,
		ChunkStride: 150,
		MinDocChars: 100,
		BatchSize:   10,
		MaxAttempts: 2,
		RetryBase:   0,
	})
}

func TestIngestBasicRun(t *testing.T) {
	store := &fakeStore{}
	pipeline := newTestPipeline(store, &fakeEmbedder{})
	result, err := pipeline.Ingest(context.Background(), []model.NamedDocument{
		doc("tour_a.txt", 500),
		doc("tour_b.txt", 300),
	}, ModeAppend, nil)
	require.NoError(t, err)
	require.Zero(t, result.Errors)
	require.Equal(t, 2, result.FilesProcessed)
	require.Equal(t, len(store.rows), result.VectorsCreated)
	require.NotNil(t, store.meta)
	require.Equal(t, int64(2), store.meta.FileCount)
	require.Equal(t, int64(len(store.rows)), store.meta.DocumentCount)
}

func TestIngestSkipDuplicatesIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	pipeline := newTestPipeline(store, &fakeEmbedder{})
	docs := []model.NamedDocument{doc("tour_a.txt", 500)}

	first, err := pipeline.Ingest(context.Background(), docs, ModeSkipDuplicates, nil)
	require.NoError(t, err)
	countAfterFirst := len(store.rows)
	require.Positive(t, countAfterFirst)
	require.Zero(t, first.FilesSkipped)

	second, err := pipeline.Ingest(context.Background(), docs, ModeSkipDuplicates, nil)
	require.NoError(t, err)
	require.Equal(t, 1, second.FilesSkipped)
	require.Zero(t, second.VectorsCreated)
	require.Equal(t, countAfterFirst, len(store.rows))
}

func TestIngestSkipDuplicatesIsCaseInsensitive(t *testing.T) {
	store := &fakeStore{}
	pipeline := newTestPipeline(store, &fakeEmbedder{})
	_, err := pipeline.Ingest(context.Background(), []model.NamedDocument{doc("Tour_A.txt", 500)}, ModeAppend, nil)
	require.NoError(t, err)

	result, err := pipeline.Ingest(context.Background(), []model.NamedDocument{doc("tour_a.TXT", 500)}, ModeSkipDuplicates, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesSkipped)
}

func TestIngestOverwriteReplacesSource(t *testing.T) {
	store := &fakeStore{}
	pipeline := newTestPipeline(store, &fakeEmbedder{})
	_, err := pipeline.Ingest(context.Background(), []model.NamedDocument{doc("tour_a.txt", 1000)}, ModeAppend, nil)
	require.NoError(t, err)
	before := len(store.rows)
	require.Positive(t, before)

	_, err = pipeline.Ingest(context.Background(), []model.NamedDocument{doc("tour_a.txt", 150)}, ModeOverwrite, nil)
	require.NoError(t, err)
	// The long version is gone; only chunks of the short one remain.
	require.Less(t, len(store.rows), before)
	for _, row := range store.rows {
		require.Equal(t, "tour_a.txt", row.Metadata.Source)
		require.Len(t, row.Content, 150)
	}
}

func TestIngestPriorityFilesFirst(t *testing.T) {
	store := &fakeStore{}
	pipeline := newTestPipeline(store, &fakeEmbedder{})
	_, err := pipeline.Ingest(context.Background(), []model.NamedDocument{
		doc("regular.txt", 150),
		doc("PRIORITY_rules.txt", 150),
		doc("another.txt", 150),
	}, ModeAppend, nil)
	require.NoError(t, err)
	require.NotEmpty(t, store.rows)
	require.Equal(t, "PRIORITY_rules.txt", store.rows[0].Metadata.Source)
	require.True(t, store.rows[0].Metadata.IsPriority)
}

func TestIngestSkipsShortDocuments(t *testing.T) {
	store := &fakeStore{}
	pipeline := newTestPipeline(store, &fakeEmbedder{})
	result, err := pipeline.Ingest(context.Background(), []model.NamedDocument{
		doc("tiny.txt", 10),
		doc("ok.txt", 150),
	}, ModeAppend, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesSkipped)
	for _, row := range store.rows {
		require.Equal(t, "ok.txt", row.Metadata.Source)
	}
}

func TestIngestRetriesTransientEmbedFailure(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{failures: 1}
	pipeline := newTestPipeline(store, embedder)
	result, err := pipeline.Ingest(context.Background(), []model.NamedDocument{doc("tour_a.txt", 150)}, ModeAppend, nil)
	require.NoError(t, err)
	require.Zero(t, result.Errors)
	require.Positive(t, result.VectorsCreated)
	require.Equal(t, 2, embedder.calls)
}

func TestIngestCountsExhaustedBatchAsErrors(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{failures: 10}
	pipeline := newTestPipeline(store, embedder)
	result, err := pipeline.Ingest(context.Background(), []model.NamedDocument{doc("tour_a.txt", 150)}, ModeAppend, nil)
	require.NoError(t, err)
	require.Zero(t, result.VectorsCreated)
	require.Positive(t, result.Errors)
	require.Empty(t, store.rows)
}

func TestIngestReportsProgress(t *testing.T) {
	store := &fakeStore{}
	pipeline := newTestPipeline(store, &fakeEmbedder{})
	var progress []model.IngestProgress
	_, err := pipeline.Ingest(context.Background(), []model.NamedDocument{
		doc("a.txt", 150),
		doc("b.txt", 150),
	}, ModeAppend, func(p model.IngestProgress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	require.Len(t, progress, 2)
	require.Equal(t, 2, progress[1].TotalFiles)
	require.Equal(t, "b.txt", progress[1].CurrentFile)
}

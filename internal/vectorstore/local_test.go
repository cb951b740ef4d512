package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hongianguyen/IndochinaPro/internal/model"
)

func row(source, content string, embedding ...float32) model.VectorRow {
	return model.VectorRow{
		Content:   content,
		Metadata:  model.ChunkMetadata{Source: source},
		Embedding: embedding,
	}
}

func TestLocalStoreSearchOrder(t *testing.T) {
	ctx := context.Background()
	store, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, []model.VectorRow{
		row("a.txt", "orthogonal", 0, 1, 0),
		row("a.txt", "exact", 1, 0, 0),
		row("a.txt", "close", 0.9, 0.1, 0),
	}))

	results, err := store.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "exact", results[0].Content)
	require.Equal(t, "close", results[1].Content)
}

func TestLocalStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := OpenLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, []model.VectorRow{row("a.txt", "chunk", 1, 0)}))
	require.NoError(t, store.SaveMeta(ctx, &model.IngestMeta{DocumentCount: 1, FileCount: 1, LastIngested: 42}))

	reopened, err := OpenLocalStore(dir)
	require.NoError(t, err)
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	meta, err := reopened.Meta(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(42), meta.LastIngested)
}

func TestLocalStoreDeleteBySource(t *testing.T) {
	ctx := context.Background()
	store, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, []model.VectorRow{
		row("keep.txt", "k", 1, 0),
		row("drop.txt", "d1", 0, 1),
		row("drop.txt", "d2", 0, 1),
	}))
	require.NoError(t, store.DeleteBySource(ctx, "drop.txt"))

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"keep.txt"}, sources)
	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestLocalStoreEmptySearch(t *testing.T) {
	ctx := context.Background()
	store, err := OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	results, err := store.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, results)
}

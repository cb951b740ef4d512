package service

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hongianguyen/IndochinaPro/internal/ingest"
	"github.com/hongianguyen/IndochinaPro/internal/knowledge"
	"github.com/hongianguyen/IndochinaPro/internal/model"
	"github.com/hongianguyen/IndochinaPro/internal/vectorstore"
)

func zipBundle(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newIngestFixture(t *testing.T) (*IngestService, *knowledge.Hub, vectorstore.Store) {
	t.Helper()
	store, err := vectorstore.OpenLocalStore(t.TempDir())
	require.NoError(t, err)
	hub := knowledge.NewHub(knowledge.NewLocalStore(t.TempDir()), nil, knowledge.NewCache())
	pipeline := ingest.NewPipeline(store, noopEmbedder{}, ingest.Config{
		ChunkSize:   200,
		ChunkStride: 150,
		MinDocChars: 50,
		BatchSize:   10,
		MaxAttempts: 1,
	})
	return NewIngestService(pipeline, hub, store, nil), hub, store
}

func TestIngestUploadRoutesStructuredFiles(t *testing.T) {
	ctx := context.Background()
	svc, hub, store := newIngestFixture(t)
	bundle := zipBundle(t, map[string]string{
		"1_brand_guidelines.md": "premium always",
		"hanoi_tour.txt":        strings.Repeat("hanoi tour content ", 20),
	})

	result, err := svc.IngestUpload(ctx, "corpus.zip", bundle, ingest.ModeAppend, nil)
	require.NoError(t, err)
	require.Zero(t, result.Errors)
	require.Equal(t, 2, result.FilesProcessed)

	// The brand file went to the hub, not the vector index.
	know, err := hub.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "premium always", know.BrandGuidelines)
	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"hanoi_tour.txt"}, sources)
}

func TestIngestUploadSingleFile(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newIngestFixture(t)
	content := strings.Repeat("mekong delta cruise ", 20)
	result, err := svc.IngestUpload(ctx, "mekong.txt", []byte(content), ingest.ModeAppend, nil)
	require.NoError(t, err)
	require.Positive(t, result.VectorsCreated)
	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(result.VectorsCreated), count)
}

func TestIngestUploadStructuredOnlyBundle(t *testing.T) {
	ctx := context.Background()
	svc, hub, store := newIngestFixture(t)
	bundle := zipBundle(t, map[string]string{
		"4_hotel_master.json": `[{"name": "H", "city": "Hanoi", "stars": 4}]`,
	})
	result, err := svc.IngestUpload(ctx, "knowledge.zip", bundle, ingest.ModeAppend, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesProcessed)
	require.Zero(t, result.VectorsCreated)

	know, err := hub.Load(ctx)
	require.NoError(t, err)
	require.Len(t, know.HotelMaster, 1)
	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestIngestUploadRejectsEmpty(t *testing.T) {
	svc, _, _ := newIngestFixture(t)
	_, err := svc.IngestUpload(context.Background(), "empty.txt", nil, ingest.ModeAppend, nil)
	require.Error(t, err)
}

func TestIngestUploadRejectsBadZip(t *testing.T) {
	svc, _, _ := newIngestFixture(t)
	_, err := svc.IngestUpload(context.Background(), "broken.zip", []byte("not a zip"), ingest.ModeAppend, nil)
	require.Error(t, err)
}

func TestIngestStatus(t *testing.T) {
	ctx := context.Background()
	svc, hub, _ := newIngestFixture(t)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.False(t, status.IndexReady)
	require.Empty(t, status.StructuredFiles)

	require.NoError(t, hub.Save(ctx, "2_core_principles.md", "principles"))
	content := strings.Repeat("halong bay overnight ", 20)
	_, err = svc.IngestUpload(ctx, "halong.txt", []byte(content), ingest.ModeAppend, nil)
	require.NoError(t, err)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.IndexReady)
	require.Positive(t, status.DocumentCount)
	require.Equal(t, []string{model.FileCorePrinciples}, status.StructuredFiles)
}

func TestExpandUploadSkipsHiddenEntries(t *testing.T) {
	bundle := zipBundle(t, map[string]string{
		".DS_Store":       "junk",
		"folder/tour.txt": "real content",
	})
	docs, err := expandUpload("bundle.zip", bundle)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	// Nested paths are flattened to their base name.
	require.Equal(t, "tour.txt", docs[0].Name)
}

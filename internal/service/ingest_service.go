package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongianguyen/IndochinaPro/internal/filestore"
	"github.com/hongianguyen/IndochinaPro/internal/ingest"
	"github.com/hongianguyen/IndochinaPro/internal/knowledge"
	"github.com/hongianguyen/IndochinaPro/internal/model"
	"github.com/hongianguyen/IndochinaPro/internal/pkg/errs"
	"github.com/hongianguyen/IndochinaPro/internal/vectorstore"
	"github.com/xxxsen/common/logutil"
)

const maxZipEntryBytes = 32 << 20

type IngestService struct {
	pipeline *ingest.Pipeline
	hub      *knowledge.Hub
	store    vectorstore.Store
	archive  filestore.Store
}

func NewIngestService(pipeline *ingest.Pipeline, hub *knowledge.Hub, store vectorstore.Store, archive filestore.Store) *IngestService {
	return &IngestService{pipeline: pipeline, hub: hub, store: store, archive: archive}
}

// IngestUpload processes one uploaded bundle. Zip archives are expanded;
// structured knowledge files are routed to the hub instead of the vector
// index; the remaining documents run through the ingestion pipeline. The raw
// bundle is archived first so a run can be replayed.
func (s *IngestService) IngestUpload(ctx context.Context, filename string, data []byte, mode ingest.Mode, onProgress func(model.IngestProgress)) (*model.IngestResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", errs.ErrInvalid)
	}
	s.archiveBundle(ctx, filename, data)

	docs, err := expandUpload(filename, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalid, err)
	}
	corpus, structured := splitStructured(docs)
	for _, doc := range structured {
		if err := s.hub.Save(ctx, doc.Name, string(doc.Data)); err != nil {
			logutil.GetLogger(ctx).Error("structured file save failed",
				zap.String("file", doc.Name), zap.Error(err))
			return nil, err
		}
	}
	if len(structured) > 0 {
		logutil.GetLogger(ctx).Info("structured knowledge updated", zap.Int("files", len(structured)))
	}
	if len(corpus) == 0 {
		return &model.IngestResult{FilesProcessed: len(structured)}, nil
	}
	result, err := s.pipeline.Ingest(ctx, corpus, mode, onProgress)
	if err != nil {
		return nil, err
	}
	result.FilesProcessed += len(structured)
	return result, nil
}

// archiveBundle is best effort; a dead archive never blocks ingestion.
func (s *IngestService) archiveBundle(ctx context.Context, filename string, data []byte) {
	if s.archive == nil {
		return
	}
	key := fmt.Sprintf("%d_%s", time.Now().Unix(), path.Base(filename))
	reader := newBytesReadSeekCloser(data)
	if err := s.archive.Save(ctx, key, reader, int64(len(data))); err != nil {
		logutil.GetLogger(ctx).Warn("archive upload failed", zap.String("key", key), zap.Error(err))
	}
}

// expandUpload turns the upload into named documents, unpacking zip bundles.
func expandUpload(filename string, data []byte) ([]model.NamedDocument, error) {
	if !strings.EqualFold(path.Ext(filename), ".zip") {
		return []model.NamedDocument{{Name: path.Base(filename), Data: data}}, nil
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	var docs []model.NamedDocument
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		base := path.Base(file.Name)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "__MACOSX") {
			continue
		}
		if file.UncompressedSize64 > maxZipEntryBytes {
			return nil, fmt.Errorf("zip entry %s exceeds size limit", base)
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", base, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxZipEntryBytes+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip entry %s: %w", base, err)
		}
		if len(content) > maxZipEntryBytes {
			return nil, fmt.Errorf("zip entry %s exceeds size limit", base)
		}
		docs = append(docs, model.NamedDocument{Name: base, Data: content})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("zip contains no usable files")
	}
	return docs, nil
}

// splitStructured separates structured knowledge files from corpus documents.
func splitStructured(docs []model.NamedDocument) (corpus, structured []model.NamedDocument) {
	for _, doc := range docs {
		if knowledge.Classify(doc.Name) != "" {
			structured = append(structured, doc)
			continue
		}
		corpus = append(corpus, doc)
	}
	return corpus, structured
}

// Status reports whether the index is usable and which structured files are
// loaded.
func (s *IngestService) Status(ctx context.Context) (*model.SystemStatus, error) {
	status := &model.SystemStatus{}
	meta, err := s.store.Meta(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Warn("read ingest meta failed", zap.Error(err))
	} else if meta != nil {
		status.DocumentCount = meta.DocumentCount
		status.LastIngested = meta.LastIngested
	}
	if status.DocumentCount == 0 {
		if count, err := s.store.Count(ctx); err == nil {
			status.DocumentCount = count
		}
	}
	status.IndexReady = status.DocumentCount > 0
	files, err := s.hub.Status(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Warn("list structured files failed", zap.Error(err))
	}
	if files == nil {
		files = []string{}
	}
	status.StructuredFiles = files
	return status, nil
}

type bytesReadSeekCloser struct {
	*bytes.Reader
}

func newBytesReadSeekCloser(data []byte) *bytesReadSeekCloser {
	return &bytesReadSeekCloser{Reader: bytes.NewReader(data)}
}

func (b *bytesReadSeekCloser) Close() error { return nil }

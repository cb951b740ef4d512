package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/hongianguyen/IndochinaPro/internal/ai"
	"github.com/hongianguyen/IndochinaPro/internal/extract"
	"github.com/hongianguyen/IndochinaPro/internal/model"
	"github.com/hongianguyen/IndochinaPro/internal/vectorstore"
)

// Mode selects the duplicate policy of an ingestion run. A document is
// identified by its base filename, compared case-insensitively.
type Mode string

const (
	// ModeAppend performs no duplicate check; re-ingesting a source name
	// duplicates its vectors. Intentional escape hatch, lowest guarantee.
	ModeAppend Mode = "append"
	// ModeSkipDuplicates excludes any source whose name already exists in
	// the index.
	ModeSkipDuplicates Mode = "skip_duplicates"
	// ModeOverwrite deletes existing vectors for matching source names and
	// re-ingests them. A retrieval racing the delete-then-insert window may
	// observe a partially replaced source; there is no per-source lock.
	ModeOverwrite Mode = "overwrite"
)

// PriorityPrefix marks documents processed ahead of the rest so a budget
// cutoff preferentially preserves them.
const PriorityPrefix = "PRIORITY_"

type Config struct {
	ChunkSize   int
	ChunkStride int
	MinDocChars int
	BatchSize   int
	// MaxAttempts and RetryBase shape the per-batch retry: attempt n sleeps
	// n*RetryBase before retrying.
	MaxAttempts int
	RetryBase   time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1500
	}
	if c.ChunkStride <= 0 {
		c.ChunkStride = 1300
	}
	if c.MinDocChars <= 0 {
		c.MinDocChars = 100
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

type Pipeline struct {
	store    vectorstore.Store
	embedder ai.IEmbedder
	cfg      Config
}

func NewPipeline(store vectorstore.Store, embedder ai.IEmbedder, cfg Config) *Pipeline {
	return &Pipeline{store: store, embedder: embedder, cfg: cfg.withDefaults()}
}

type sourceChunks struct {
	meta   model.ChunkMetadata
	chunks []string
}

// Ingest runs the whole pipeline over the given documents: priority ordering,
// extraction, chunking, dedup by mode, batched embed+upsert with retry, and
// the meta record. A single document failing extraction is counted and
// skipped; only a store-level failure to enumerate sources aborts the run.
func (p *Pipeline) Ingest(ctx context.Context, docs []model.NamedDocument, mode Mode, onProgress func(model.IngestProgress)) (*model.IngestResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("mode", string(mode)), zap.Int("files", len(docs)))
	result := &model.IngestResult{}

	sorted := make([]model.NamedDocument, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return isPriority(sorted[i].Name) && !isPriority(sorted[j].Name)
	})

	switch mode {
	case ModeSkipDuplicates:
		existing, err := p.existingSources(ctx)
		if err != nil {
			return nil, err
		}
		kept := sorted[:0]
		for _, doc := range sorted {
			if _, ok := existing[strings.ToLower(doc.Name)]; ok {
				result.FilesSkipped++
				continue
			}
			kept = append(kept, doc)
		}
		sorted = kept
		logger.Info("duplicate check done", zap.Int("skipped", result.FilesSkipped))
	case ModeOverwrite:
		existing, err := p.existingSources(ctx)
		if err != nil {
			return nil, err
		}
		for _, doc := range sorted {
			if name, ok := existing[strings.ToLower(doc.Name)]; ok {
				if err := p.store.DeleteBySource(ctx, name); err != nil {
					logger.Error("delete existing source failed", zap.String("source", name), zap.Error(err))
					result.Errors++
				}
			}
		}
	}

	var pending []model.VectorRow
	flush := func() {
		if len(pending) == 0 {
			return
		}
		written := p.writeBatches(ctx, pending)
		result.VectorsCreated += written
		result.Errors += len(pending) - written
		pending = nil
	}

	for i, doc := range sorted {
		if onProgress != nil {
			onProgress(model.IngestProgress{
				ProcessedFiles: i + 1,
				TotalFiles:     len(sorted),
				CurrentFile:    doc.Name,
				VectorsCreated: result.VectorsCreated + len(pending),
			})
		}
		result.FilesProcessed++

		text, err := extract.Text(doc.Name, doc.Data)
		if err != nil {
			logger.Warn("extraction failed, skipping document", zap.String("source", doc.Name), zap.Error(err))
			result.Errors++
			continue
		}
		text = strings.TrimSpace(text)
		if len([]rune(text)) < p.cfg.MinDocChars {
			result.FilesSkipped++
			continue
		}
		meta := model.ChunkMetadata{Source: doc.Name, IsPriority: isPriority(doc.Name)}
		for _, chunk := range SplitText(text, p.cfg.ChunkSize, p.cfg.ChunkStride) {
			pending = append(pending, model.VectorRow{Content: chunk, Metadata: meta})
		}
		// Flushing between files keeps priority content persisted before
		// non-priority files start.
		if len(pending) >= p.cfg.BatchSize {
			flush()
		}
	}
	flush()

	meta := &model.IngestMeta{
		FileCount:    int64(len(sorted)),
		LastIngested: time.Now().Unix(),
	}
	if count, err := p.store.Count(ctx); err == nil {
		meta.DocumentCount = count
	} else {
		meta.DocumentCount = int64(result.VectorsCreated)
	}
	if err := p.store.SaveMeta(ctx, meta); err != nil {
		logger.Warn("save ingest meta failed", zap.Error(err))
	}

	logger.Info("ingestion finished",
		zap.Int("vectors_created", result.VectorsCreated),
		zap.Int("files_processed", result.FilesProcessed),
		zap.Int("files_skipped", result.FilesSkipped),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

func (p *Pipeline) existingSources(ctx context.Context) (map[string]string, error) {
	names, err := p.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]string, len(names))
	for _, name := range names {
		existing[strings.ToLower(name)] = name
	}
	return existing, nil
}

// writeBatches embeds and upserts rows in fixed-size batches, retrying each
// batch with linear backoff. Returns the number of rows actually written;
// the remainder is the caller's error count.
func (p *Pipeline) writeBatches(ctx context.Context, rows []model.VectorRow) int {
	logger := logutil.GetLogger(ctx)
	written := 0
	for start := 0; start < len(rows); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		if err := p.writeBatch(ctx, batch); err != nil {
			logger.Error("batch failed after retries", zap.Int("size", len(batch)), zap.Error(err))
			continue
		}
		written += len(batch)
	}
	return written
}

func (p *Pipeline) writeBatch(ctx context.Context, batch []model.VectorRow) error {
	texts := make([]string, 0, len(batch))
	for _, row := range batch {
		texts = append(texts, row.Content)
	}
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		embeddings, err := p.embedder.Embed(ctx, texts, ai.TaskRetrievalDocument)
		if err == nil && len(embeddings) != len(batch) {
			err = fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
		}
		if err == nil {
			for i := range batch {
				batch[i].Embedding = embeddings[i]
			}
			err = p.store.Upsert(ctx, batch)
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < p.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * p.cfg.RetryBase):
			}
		}
	}
	return lastErr
}

func isPriority(name string) bool {
	return strings.HasPrefix(name, PriorityPrefix)
}

// Package embedcache layers persistent caching over an embedder so repeat
// ingestions of unchanged content skip the provider call.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongianguyen/IndochinaPro/internal/ai"
	"github.com/xxxsen/common/logutil"
)

func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *CacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *CacheRepo
}

// Embed serves each text from the cache when possible and batches only the
// misses to the wrapped embedder, preserving input order in the result.
func (d *dbEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	modelName := cacheModelName(d.next.ModelName())
	result := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	hits := 0
	for i, text := range texts {
		contentHash := hashContent(text)
		values, ok, err := d.repo.Get(ctx, modelName, taskType, contentHash)
		if err != nil {
			return nil, err
		}
		if ok {
			result[i] = values
			hits++
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit",
			zap.Int("hits", hits), zap.Int("total", len(texts)), zap.String("task_type", taskType))
	}
	if len(missTexts) == 0 {
		return result, nil
	}
	fresh, err := d.next.Embed(ctx, missTexts, taskType)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, ai.ErrUnavailable
	}
	now := time.Now().Unix()
	for j, values := range fresh {
		result[missIdx[j]] = values
		if err := d.repo.Save(ctx, &CacheRow{
			ModelName:   modelName,
			TaskType:    taskType,
			ContentHash: hashContent(missTexts[j]),
			Embedding:   values,
			Ctime:       now,
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
	}
	return result, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

func cacheModelName(modelName string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	return modelName
}

func hashContent(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

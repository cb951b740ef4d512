package job

import (
	"context"
	"time"

	"github.com/hongianguyen/IndochinaPro/internal/embedcache"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// EmbeddingCacheCleanupJob prunes cached embeddings older than maxAgeDays.
// Stale entries only cost storage; correctness never depends on them being
// present.
type EmbeddingCacheCleanupJob struct {
	repo       *embedcache.CacheRepo
	maxAgeDays int
}

func NewEmbeddingCacheCleanupJob(repo *embedcache.CacheRepo, maxAgeDays int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{repo: repo, maxAgeDays: maxAgeDays}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour).Unix()
	deleted, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("pruned embedding cache", zap.Int64("deleted", deleted))
	}
	return nil
}

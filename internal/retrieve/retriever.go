// Package retrieve answers similarity queries against the vector index.
package retrieve

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/hongianguyen/IndochinaPro/internal/ai"
	"github.com/hongianguyen/IndochinaPro/internal/vectorstore"
	"github.com/xxxsen/common/logutil"
)

const (
	DefaultTopK = 8

	queryCacheSize = 256
	queryCacheTTL  = 5 * time.Minute
)

type Retriever struct {
	store    vectorstore.Store
	embedder ai.IEmbedder
	cache    *lru.LRU[string, []string]
}

func New(store vectorstore.Store, embedder ai.IEmbedder) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
		cache:    lru.NewLRU[string, []string](queryCacheSize, nil, queryCacheTTL),
	}
}

// RetrieveRelevantTours embeds the query and returns up to k passage texts,
// best match first. Retrieval is advisory context for generation, so every
// failure degrades to an empty result instead of an error.
func (r *Retriever) RetrieveRelevantTours(ctx context.Context, query string, k int) []string {
	if query == "" {
		return nil
	}
	if k <= 0 {
		k = DefaultTopK
	}
	// Keyed on (query, k): a smaller earlier result must not be served to a
	// caller asking for more passages.
	cacheKey := fmt.Sprintf("%d|%s", k, query)
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached
	}
	vectors, err := r.embedder.Embed(ctx, []string{query}, ai.TaskRetrievalQuery)
	if err != nil || len(vectors) == 0 {
		logutil.GetLogger(ctx).Warn("query embedding failed, skipping retrieval", zap.Error(err))
		return nil
	}
	rows, err := r.store.Search(ctx, vectors[0], k)
	if err != nil {
		logutil.GetLogger(ctx).Warn("vector search failed, skipping retrieval", zap.Error(err))
		return nil
	}
	passages := make([]string, 0, len(rows))
	for _, row := range rows {
		passages = append(passages, row.Content)
	}
	r.cache.Add(cacheKey, passages)
	return passages
}

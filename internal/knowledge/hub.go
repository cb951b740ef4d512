package knowledge

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/hongianguyen/IndochinaPro/internal/model"
	"github.com/xxxsen/common/logutil"
)

// Hub aggregates the structured documents from the remote store, falling
// back to a local mirror when the remote yields nothing usable. The fallback
// is all-or-nothing so the aggregate never mixes two generations.
type Hub struct {
	remote StructuredStore
	local  StructuredStore
	cache  *Cache
}

func NewHub(remote, local StructuredStore, cache *Cache) *Hub {
	if cache == nil {
		cache = NewCache()
	}
	return &Hub{remote: remote, local: local, cache: cache}
}

// Load returns the cached aggregate, fetching from the stores on a miss.
// Missing individual files are tolerated; only a completely empty remote
// triggers the local fallback.
func (h *Hub) Load(ctx context.Context) (*model.StructuredKnowledge, error) {
	if cached, ok := h.cache.get(); ok {
		return cached, nil
	}
	knowledge, err := h.loadFrom(ctx, h.remote)
	if err != nil {
		return nil, err
	}
	if knowledge.Empty() && h.local != nil {
		logutil.GetLogger(ctx).Warn("remote knowledge store empty, using local fallback")
		knowledge, err = h.loadFrom(ctx, h.local)
		if err != nil {
			return nil, err
		}
	}
	h.cache.set(knowledge)
	return knowledge, nil
}

func (h *Hub) loadFrom(ctx context.Context, store StructuredStore) (*model.StructuredKnowledge, error) {
	result := &model.StructuredKnowledge{}
	if store == nil {
		return result, nil
	}
	if content, ok, err := store.Get(ctx, model.FileBrandGuidelines); err != nil {
		return nil, err
	} else if ok {
		result.BrandGuidelines = content
	}
	if content, ok, err := store.Get(ctx, model.FileCorePrinciples); err != nil {
		return nil, err
	} else if ok {
		result.CorePrinciples = content
	}
	if content, ok, err := store.Get(ctx, model.FileLogisticsRules); err != nil {
		return nil, err
	} else if ok {
		result.LogisticsRaw = content
		var rules interface{}
		if err := json.Unmarshal([]byte(content), &rules); err != nil {
			logutil.GetLogger(ctx).Warn("logistics rules are not valid json, kept as raw text", zap.Error(err))
		} else {
			result.LogisticsRules = rules
		}
	}
	if content, ok, err := store.Get(ctx, model.FileHotelMaster); err != nil {
		return nil, err
	} else if ok {
		result.HotelMaster = ParseHotelMaster([]byte(content))
	}
	return result, nil
}

// Invalidate drops the cached aggregate so the next Load re-reads stores.
func (h *Hub) Invalidate() {
	h.cache.Invalidate()
}

// Classify maps an uploaded filename to its canonical structured slot, or
// "" when the file is ordinary corpus material.
func Classify(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "brand"):
		return model.FileBrandGuidelines
	case strings.Contains(lower, "principle"):
		return model.FileCorePrinciples
	case strings.Contains(lower, "logistic"):
		return model.FileLogisticsRules
	case strings.Contains(lower, "hotel"):
		return model.FileHotelMaster
	default:
		return ""
	}
}

// Save writes one structured document under its canonical name. A remote
// write failure falls back to the local mirror rather than losing the
// upload. Every save invalidates the cache.
func (h *Hub) Save(ctx context.Context, filename, content string) error {
	canonical := Classify(filename)
	if canonical == "" {
		canonical = filename
	}
	defer h.cache.Invalidate()
	if err := h.remote.Upsert(ctx, canonical, content); err != nil {
		if h.local == nil {
			return err
		}
		logutil.GetLogger(ctx).Error("remote knowledge write failed, writing local mirror",
			zap.String("file", canonical), zap.Error(err))
		return h.local.Upsert(ctx, canonical, content)
	}
	if h.local != nil {
		if err := h.local.Upsert(ctx, canonical, content); err != nil {
			logutil.GetLogger(ctx).Warn("local knowledge mirror write failed",
				zap.String("file", canonical), zap.Error(err))
		}
	}
	return nil
}

// Status lists which canonical files are currently present.
func (h *Hub) Status(ctx context.Context) ([]string, error) {
	names, err := h.remote.List(ctx)
	if err != nil || len(names) == 0 {
		if h.local != nil {
			if localNames, localErr := h.local.List(ctx); localErr == nil && len(localNames) > 0 {
				names, err = localNames, nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		present[name] = struct{}{}
	}
	var result []string
	for _, canonical := range []string{
		model.FileBrandGuidelines,
		model.FileCorePrinciples,
		model.FileLogisticsRules,
		model.FileHotelMaster,
	} {
		if _, ok := present[canonical]; ok {
			result = append(result, canonical)
		}
	}
	return result, nil
}

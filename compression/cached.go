package compression

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/novelmemory/internal/cache"
	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 💾 缓存装饰器
// =============================================================================

// Cache 是 CachedEngine 需要的 JSON 缓存能力，internal/cache.Manager 满足该接口
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CacheObserver 接收缓存命中统计，metrics.Collector 满足该接口
type CacheObserver interface {
	RecordCacheHit(op string)
	RecordCacheMiss(op string)
}

// CachedEngine 缓存文本级操作的结果；条目级操作直接透传
type CachedEngine struct {
	inner    Engine
	cache    Cache
	ttl      time.Duration
	group    singleflight.Group
	observer CacheObserver
	logger   *zap.Logger
}

var _ Engine = (*CachedEngine)(nil)

// CachedOption 配置 CachedEngine
type CachedOption func(*CachedEngine)

// WithCacheObserver 设置缓存命中观察者
func WithCacheObserver(o CacheObserver) CachedOption {
	return func(c *CachedEngine) { c.observer = o }
}

// NewCachedEngine 创建缓存装饰器，ttl 为 0 时使用缓存自身的默认过期时间
func NewCachedEngine(inner Engine, c Cache, ttl time.Duration, logger *zap.Logger, opts ...CachedOption) *CachedEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	ce := &CachedEngine{
		inner:  inner,
		cache:  c,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "cached_engine")),
	}
	for _, opt := range opts {
		opt(ce)
	}
	return ce
}

// cacheKey 由操作名与参数的 sha256 组成
func cacheKey(op string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return op + ":" + hex.EncodeToString(h.Sum(nil))
}

// cached 先查缓存，未命中时经 singleflight 调用 compute 并回写
func cached[T any](ctx context.Context, c *CachedEngine, op, key string, compute func(context.Context) (T, error)) (T, error) {
	if c.cache == nil {
		return compute(ctx)
	}

	var hit T
	err := c.cache.GetJSON(ctx, key, &hit)
	if err == nil {
		if c.observer != nil {
			c.observer.RecordCacheHit(op)
		}
		return hit, nil
	}
	if !cache.IsCacheMiss(err) {
		c.logger.Debug("cache lookup failed, computing", zap.String("op", op), zap.Error(err))
	}
	if c.observer != nil {
		c.observer.RecordCacheMiss(op)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := compute(ctx)
		if err != nil {
			return res, err
		}
		if err := c.cache.SetJSON(ctx, key, res, c.ttl); err != nil {
			c.logger.Warn("cache write failed", zap.String("op", op), zap.Error(err))
		}
		return res, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	res, ok := v.(T)
	if !ok {
		var zero T
		return zero, types.NewError(types.ErrInternalError, "unexpected cached value type for "+op)
	}
	return res, nil
}

// EvaluateImportance 缓存重要性评估
func (c *CachedEngine) EvaluateImportance(ctx context.Context, content, hint string) (int, error) {
	return cached(ctx, c, OpEvaluateImportance, cacheKey(OpEvaluateImportance, content, hint),
		func(ctx context.Context) (int, error) { return c.inner.EvaluateImportance(ctx, content, hint) })
}

// ExtractKeywords 缓存关键词
func (c *CachedEngine) ExtractKeywords(ctx context.Context, content string, maxKeywords int) ([]string, error) {
	return cached(ctx, c, OpExtractKeywords, cacheKey(OpExtractKeywords, content, strconv.Itoa(maxKeywords)),
		func(ctx context.Context) ([]string, error) { return c.inner.ExtractKeywords(ctx, content, maxKeywords) })
}

// CalculateSimilarity 缓存相似度，参数顺序无关
func (c *CachedEngine) CalculateSimilarity(ctx context.Context, a, b string) (float64, error) {
	x, y := a, b
	if y < x {
		x, y = y, x
	}
	return cached(ctx, c, OpCalculateSimilarity, cacheKey(OpCalculateSimilarity, x, y),
		func(ctx context.Context) (float64, error) { return c.inner.CalculateSimilarity(ctx, a, b) })
}

// GenerateSummary 缓存摘要
func (c *CachedEngine) GenerateSummary(ctx context.Context, content string, maxLength int) (string, error) {
	return cached(ctx, c, OpGenerateSummary, cacheKey(OpGenerateSummary, content, strconv.Itoa(maxLength)),
		func(ctx context.Context) (string, error) { return c.inner.GenerateSummary(ctx, content, maxLength) })
}

// CompressLowImportance 透传
func (c *CachedEngine) CompressLowImportance(ctx context.Context, items []*types.MemoryItem, threshold int) ([]*types.MemoryItem, error) {
	return c.inner.CompressLowImportance(ctx, items, threshold)
}

// MergeSimilarMemories 透传
func (c *CachedEngine) MergeSimilarMemories(ctx context.Context, items []*types.MemoryItem, threshold float64) ([]*types.MemoryItem, error) {
	return c.inner.MergeSimilarMemories(ctx, items, threshold)
}

// OptimizeRetrieval 透传
func (c *CachedEngine) OptimizeRetrieval(ctx context.Context, query string, items []*types.MemoryItem, maxResults int) ([]*types.MemoryItem, error) {
	return c.inner.OptimizeRetrieval(ctx, query, items, maxResults)
}

package compression

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/internal/cache"
	"github.com/BaSui01/novelmemory/testutil/mocks"
	"github.com/BaSui01/novelmemory/types"
)

type countingObserver struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{hits: map[string]int{}, misses: map[string]int{}}
}

func (o *countingObserver) RecordCacheHit(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits[op]++
}

func (o *countingObserver) RecordCacheMiss(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses[op]++
}

func setupCachedEngine(t *testing.T, inner Engine) (*CachedEngine, *miniredis.Miniredis, *countingObserver) {
	t.Helper()

	mr := miniredis.RunT(t)
	manager, err := cache.NewManager(cache.Config{Addr: mr.Addr(), KeyPrefix: "engine:", DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	obs := newCountingObserver()
	return NewCachedEngine(inner, manager, time.Minute, zap.NewNop(), WithCacheObserver(obs)), mr, obs
}

func TestCachedEngine_HitPath(t *testing.T) {
	inner := mocks.NewMockCompressionEngine().
		WithKeywords("角色X拥有木属性灵根", "角色X", "灵根").
		WithSimilarity("a", "b", 0.4).
		WithImportance(7)
	engine, mr, obs := setupCachedEngine(t, inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		kw, err := engine.ExtractKeywords(ctx, "角色X拥有木属性灵根", 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"角色X", "灵根"}, kw)
	}
	assert.Equal(t, 1, inner.Calls(mocks.MethodExtractKeywords))
	assert.Equal(t, 2, obs.hits[OpExtractKeywords])
	assert.Equal(t, 1, obs.misses[OpExtractKeywords])

	// 相似度缓存与参数顺序无关
	s1, err := engine.CalculateSimilarity(ctx, "a", "b")
	require.NoError(t, err)
	s2, err := engine.CalculateSimilarity(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, 0.4, s1)
	assert.Equal(t, s1, s2)
	assert.Equal(t, 1, inner.Calls(mocks.MethodCalculateSimilarity))

	score, err := engine.EvaluateImportance(ctx, "内容", "世界观")
	require.NoError(t, err)
	_, err = engine.EvaluateImportance(ctx, "内容", "世界观")
	require.NoError(t, err)
	assert.Equal(t, 7, score)
	assert.Equal(t, 1, inner.Calls(mocks.MethodEvaluateImportance))

	summary, err := engine.GenerateSummary(ctx, "很长的内容", 2)
	require.NoError(t, err)
	assert.Equal(t, "很长", summary)

	assert.NotEmpty(t, mr.Keys())
	for _, k := range mr.Keys() {
		assert.Contains(t, k, "engine:")
	}
}

func TestCachedEngine_ErrorsNotCached(t *testing.T) {
	boom := errors.New("boom")
	inner := mocks.NewMockCompressionEngine().WithError(mocks.MethodGenerateSummary, boom)
	engine, _, _ := setupCachedEngine(t, inner)
	ctx := context.Background()

	_, err := engine.GenerateSummary(ctx, "内容", 10)
	assert.ErrorIs(t, err, boom)

	inner.WithError(mocks.MethodGenerateSummary, nil)
	s, err := engine.GenerateSummary(ctx, "内容", 10)
	require.NoError(t, err)
	assert.Equal(t, "内容", s)
	assert.Equal(t, 2, inner.Calls(mocks.MethodGenerateSummary))
}

type brokenCache struct{}

func (brokenCache) GetJSON(ctx context.Context, key string, dest any) error {
	return errors.New("connection refused")
}

func (brokenCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	return errors.New("connection refused")
}

func TestCachedEngine_CacheDownFallsThrough(t *testing.T) {
	inner := mocks.NewMockCompressionEngine().WithImportance(4)
	engine := NewCachedEngine(inner, brokenCache{}, time.Minute, zap.NewNop())

	score, err := engine.EvaluateImportance(context.Background(), "内容", "")
	require.NoError(t, err)
	assert.Equal(t, 4, score)
}

func TestCachedEngine_NilCache(t *testing.T) {
	inner := mocks.NewMockCompressionEngine().WithImportance(6)
	engine := NewCachedEngine(inner, nil, 0, nil)

	score, err := engine.EvaluateImportance(context.Background(), "内容", "")
	require.NoError(t, err)
	assert.Equal(t, 6, score)
}

func TestCachedEngine_SingleflightDedup(t *testing.T) {
	inner := mocks.NewMockCompressionEngine().
		WithKeywords("灵根", "灵根").
		WithDelay(50 * time.Millisecond)
	engine, _, _ := setupCachedEngine(t, inner)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kw, err := engine.ExtractKeywords(context.Background(), "灵根", 5)
			assert.NoError(t, err)
			assert.Equal(t, []string{"灵根"}, kw)
		}()
	}
	wg.Wait()

	assert.Less(t, inner.Calls(mocks.MethodExtractKeywords), 10)
}

func TestCachedEngine_ItemOperationsPassThrough(t *testing.T) {
	inner := mocks.NewMockCompressionEngine()
	engine, _, _ := setupCachedEngine(t, inner)
	ctx := context.Background()

	items := []*types.MemoryItem{item("a", "内容", 3, types.MemoryTypeScene)}
	for i := 0; i < 2; i++ {
		_, err := engine.CompressLowImportance(ctx, items, 5)
		require.NoError(t, err)
		_, err = engine.MergeSimilarMemories(ctx, items, 0.8)
		require.NoError(t, err)
		_, err = engine.OptimizeRetrieval(ctx, "内容", items, 5)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, inner.Calls(mocks.MethodCompressLowImportance))
	assert.Equal(t, 2, inner.Calls(mocks.MethodMergeSimilarMemories))
	assert.Equal(t, 2, inner.Calls(mocks.MethodOptimizeRetrieval))
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, cacheKey("op", "a", "b"), cacheKey("op", "a", "b"))
	assert.NotEqual(t, cacheKey("op", "ab", ""), cacheKey("op", "a", "b"))
	assert.NotEqual(t, cacheKey("x", "a"), cacheKey("y", "a"))
}

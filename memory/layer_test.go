package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/novelmemory/compression"
	"github.com/BaSui01/novelmemory/config"
	"github.com/BaSui01/novelmemory/testutil"
	"github.com/BaSui01/novelmemory/testutil/mocks"
	"github.com/BaSui01/novelmemory/types"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func chapterPolicy(capacity int) ScopePolicy {
	p := ChapterPolicy(config.DefaultMemoryConfig())
	p.Capacity = capacity
	return p
}

func newChapterLayer(t *testing.T, capacity int, engine CompressionEngine, clock *testutil.FakeClock) *Layer {
	t.Helper()
	opts := []LayerOption{}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	return NewLayer(chapterPolicy(capacity), engine, zap.NewNop(), opts...)
}

func chapterItem(content string, importance int) *types.MemoryItem {
	return testutil.NewItemWith(types.ScopeChapter, "p1", content, func(it *types.MemoryItem) {
		it.ImportanceScore = importance
		it.ChapterID = "c1"
	})
}

func contentBytes(items []*types.MemoryItem) int {
	n := 0
	for _, it := range items {
		n += len(it.Content)
	}
	return n
}

func TestLayer_DuplicateAddIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), nil)

	it := chapterItem("林远推开客栈的门", 5)
	require.True(t, l.Add(ctx, it))
	assert.False(t, l.Add(ctx, it))
	assert.Equal(t, 1, l.Count())

	got := l.Get(ctx, it.ID)
	require.NotNil(t, got)
	assert.Equal(t, it.Content, got.Content)
}

func TestLayer_AddRejectsInvalidItems(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), nil)

	tests := []struct {
		name string
		item *types.MemoryItem
	}{
		{"nil", nil},
		{"empty id", testutil.NewItemWith(types.ScopeChapter, "p1", "x", func(it *types.MemoryItem) { it.ID = "" })},
		{"empty project", testutil.NewItem(types.ScopeChapter, "", "x")},
		{"wrong scope", testutil.NewItem(types.ScopeVolume, "p1", "x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, l.Add(ctx, tt.item))
		})
	}
	assert.Zero(t, l.Count())
}

func TestLayer_AddStoresCopy(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), nil)

	it := chapterItem("原始内容", 5)
	require.True(t, l.Add(ctx, it))
	it.Content = "被外部修改"

	got := l.Get(ctx, it.ID)
	require.NotNil(t, got)
	assert.Equal(t, "原始内容", got.Content)

	got.Tags = append(got.Tags, "外部")
	assert.Empty(t, l.Get(ctx, it.ID).Tags)
}

func TestLayer_AccessAccounting(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	clock := testutil.NewFakeClock(epoch)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), clock)

	it := chapterItem("苏晴在雨夜离开", 5)
	it.CreatedAt = time.Time{}
	it.LastAccessedAt = time.Time{}
	require.True(t, l.Add(ctx, it))

	var got *types.MemoryItem
	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		got = l.Get(ctx, it.ID)
	}
	require.NotNil(t, got)
	assert.Equal(t, 3, got.AccessCount)
	assert.Equal(t, epoch.Add(3*time.Minute), got.LastAccessedAt)
	assert.Equal(t, epoch, got.CreatedAt)

	assert.Nil(t, l.Get(ctx, "missing"))
}

func TestLayer_GetByImportanceRanking(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), nil)

	for _, imp := range []int{9, 3, 8, 10, 7} {
		require.True(t, l.Add(ctx, chapterItem(fmt.Sprintf("重要性 %d", imp), imp)))
	}

	got := l.GetByImportance(8, 0)
	require.Len(t, got, 3)
	assert.Equal(t, []int{10, 9, 8}, []int{got[0].ImportanceScore, got[1].ImportanceScore, got[2].ImportanceScore})

	assert.Len(t, l.GetByImportance(1, 7), 2)
	assert.Empty(t, l.GetByImportance(11, 0))
}

func TestLayer_GetByTypeAndTag(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), nil)

	for i := 0; i < 3; i++ {
		it := chapterItem(fmt.Sprintf("对话 %d", i), 4+i)
		it.Type = types.MemoryTypeDialogue
		it.Tags = []string{TagDialogue}
		require.True(t, l.Add(ctx, it))
	}
	require.True(t, l.Add(ctx, chapterItem("旁白", 9)))

	dialogues := l.GetByType(types.MemoryTypeDialogue, 2)
	require.Len(t, dialogues, 2)
	assert.Equal(t, 6, dialogues[0].ImportanceScore)

	assert.Len(t, l.GetByTag(TagDialogue), 3)
	assert.Len(t, l.GetAllMemories(), 4)
}

func TestLayer_HardCapacity(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	engine := mocks.NewMockCompressionEngine()
	l := newChapterLayer(t, 3, engine, nil)

	for i := 0; i < 3; i++ {
		require.True(t, l.Add(ctx, chapterItem(fmt.Sprintf("条目 %d", i), 5)))
	}
	assert.False(t, l.Add(ctx, chapterItem("溢出", 5)))
	assert.Equal(t, 3, l.Count())
	assert.Equal(t, 1, engine.Calls(mocks.MethodCompressLowImportance))
}

func TestLayer_AllowOverflow(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	p := chapterPolicy(2)
	p.AllowOverflow = true
	l := NewLayer(p, mocks.NewMockCompressionEngine(), zap.NewNop())

	for i := 0; i < 4; i++ {
		require.True(t, l.Add(ctx, chapterItem(fmt.Sprintf("条目 %d", i), 5)))
	}
	assert.Equal(t, 4, l.Count())
}

func TestLayer_CompressionMakesRoom(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	engine := compression.NewLocalEngine(compression.DefaultLocalConfig(), zap.NewNop())
	l := newChapterLayer(t, 4, engine, nil)

	for i := 0; i < 4; i++ {
		require.True(t, l.Add(ctx, chapterItem(fmt.Sprintf("路边的第%d棵树在风里摇晃。", i), 2)))
	}
	require.True(t, l.Add(ctx, chapterItem("林远拔剑", 9)))
	assert.LessOrEqual(t, l.Count(), 4)

	stats := l.GetStatistics()
	assert.Positive(t, stats.CompressedCount)
}

func TestLayer_CompressFailureLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	engine := mocks.NewMockCompressionEngine().
		WithError(mocks.MethodMergeSimilarMemories, errors.New("model offline"))
	l := newChapterLayer(t, 10, engine, nil)

	for i := 0; i < 3; i++ {
		require.True(t, l.Add(ctx, chapterItem(fmt.Sprintf("条目 %d", i), 2)))
	}
	before := l.GetAllMemories()

	res := l.Compress(ctx)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "model offline")
	assert.Equal(t, 3, res.OriginalCount)
	assert.Equal(t, 3, res.CompressedCount)
	assert.Zero(t, res.FreedBytes)
	assert.ElementsMatch(t, before, l.GetAllMemories())
}

func TestLayer_CompressRejectsInvalidEngineData(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)

	tests := []struct {
		name string
		fn   func(items []*types.MemoryItem, threshold int) []*types.MemoryItem
	}{
		{"more items", func(items []*types.MemoryItem, _ int) []*types.MemoryItem {
			return append(items, chapterItem("凭空出现", 5))
		}},
		{"larger content", func(items []*types.MemoryItem, _ int) []*types.MemoryItem {
			items[0].Content += "还有更多更多更多的内容"
			return items
		}},
		{"duplicate id", func(items []*types.MemoryItem, _ int) []*types.MemoryItem {
			items[1].ID = items[0].ID
			return items
		}},
		{"scope changed", func(items []*types.MemoryItem, _ int) []*types.MemoryItem {
			items[0].Scope = types.ScopeGlobal
			return items
		}},
		{"project dropped", func(items []*types.MemoryItem, _ int) []*types.MemoryItem {
			items[1].ProjectID = ""
			return items
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine().WithCompressFunc(tt.fn), nil)
			require.True(t, l.Add(ctx, chapterItem("第一条", 2)))
			require.True(t, l.Add(ctx, chapterItem("第二条", 2)))
			before := l.GetAllMemories()

			res := l.Compress(ctx)
			assert.False(t, res.Success)
			assert.ElementsMatch(t, before, l.GetAllMemories())
		})
	}
}

func TestLayer_CompressReconcilesConcurrentWrites(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)

	a, b, c := chapterItem("甲", 2), chapterItem("乙", 2), chapterItem("丙", 2)
	late := chapterItem("压缩期间写入", 6)

	var l *Layer
	engine := mocks.NewMockCompressionEngine().WithCompressFunc(func(items []*types.MemoryItem, _ int) []*types.MemoryItem {
		l.Add(context.Background(), late)
		l.Remove(context.Background(), b.ID)
		return items
	})
	l = newChapterLayer(t, 10, engine, nil)
	for _, it := range []*types.MemoryItem{a, b, c} {
		require.True(t, l.Add(ctx, it))
	}

	res := l.Compress(ctx)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.CompressedCount)

	assert.NotNil(t, l.Get(ctx, a.ID))
	assert.Nil(t, l.Get(ctx, b.ID))
	assert.NotNil(t, l.Get(ctx, c.ID))
	assert.NotNil(t, l.Get(ctx, late.ID))
	assert.Equal(t, 3, l.Count())
}

func TestLayer_CompressKeepsConcurrentUpdates(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)

	a, b, c := chapterItem("甲", 2), chapterItem("original content here", 2), chapterItem("丙", 2)

	var l *Layer
	engine := mocks.NewMockCompressionEngine().WithCompressFunc(func(items []*types.MemoryItem, _ int) []*types.MemoryItem {
		edit := b.Clone()
		edit.Content = "UPDATED"
		edit.ImportanceScore = 3
		require.True(t, l.Update(context.Background(), edit))
		require.NotNil(t, l.Get(context.Background(), a.ID))
		for _, it := range items {
			it.Content = "摘"
		}
		return items
	})
	l = newChapterLayer(t, 10, engine, nil)
	for _, it := range []*types.MemoryItem{a, b, c} {
		require.True(t, l.Add(ctx, it))
	}

	res := l.Compress(ctx)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.CompressedCount)
	assert.Equal(t, 3, l.Count())

	got := l.Get(ctx, b.ID)
	require.NotNil(t, got)
	assert.Equal(t, "UPDATED", got.Content)
	assert.Equal(t, 3, got.ImportanceScore)

	// 引擎运行期间的读取计数不会被结果覆盖
	gotA := l.Get(ctx, a.ID)
	require.NotNil(t, gotA)
	assert.Equal(t, "摘", gotA.Content)
	assert.Equal(t, 2, gotA.AccessCount)
}

func TestLayer_CompressAbortsFoldOverUpdatedItem(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)

	a, b, c := chapterItem("甲", 2), chapterItem("乙", 2), chapterItem("丙", 2)

	var l *Layer
	calls := 0
	engine := mocks.NewMockCompressionEngine().WithCompressFunc(func(items []*types.MemoryItem, threshold int) []*types.MemoryItem {
		calls++
		if calls == 1 {
			edit := b.Clone()
			edit.Content = "乙改"
			edit.ImportanceScore = 2
			require.True(t, l.Update(context.Background(), edit))
		}
		return keepFirst(items, threshold)
	})
	l = newChapterLayer(t, 10, engine, nil)
	for _, it := range []*types.MemoryItem{a, b, c} {
		require.True(t, l.Add(ctx, it))
	}

	res := l.Compress(ctx)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, string(types.ErrConcurrentUpdate))
	assert.Equal(t, 3, l.Count())
	got := l.Get(ctx, b.ID)
	require.NotNil(t, got)
	assert.Equal(t, "乙改", got.Content)

	res = l.Compress(ctx)
	require.True(t, res.Success)
	assert.Equal(t, 1, l.Count())
}

func TestLayer_CompressKeepsSiblingsOfRemovedDigestHead(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)

	a, b, c := chapterItem("甲", 2), chapterItem("乙", 2), chapterItem("丙", 2)

	var l *Layer
	engine := mocks.NewMockCompressionEngine().WithCompressFunc(func(items []*types.MemoryItem, threshold int) []*types.MemoryItem {
		require.True(t, l.Remove(context.Background(), a.ID))
		return keepFirst(items, threshold)
	})
	l = newChapterLayer(t, 10, engine, nil)
	for _, it := range []*types.MemoryItem{a, b, c} {
		require.True(t, l.Add(ctx, it))
	}

	res := l.Compress(ctx)
	assert.False(t, res.Success)
	assert.Nil(t, l.Get(ctx, a.ID))
	assert.NotNil(t, l.Get(ctx, b.ID))
	assert.NotNil(t, l.Get(ctx, c.ID))
	assert.Equal(t, 2, l.Count())
}

// 压缩从不增加条目数与总字节数，FreedBytes 非负
func TestLayer_CompressionMonotonic(t *testing.T) {
	engine := compression.NewLocalEngine(compression.LocalConfig{SummaryMaxLength: 16, DigestBatchSize: 3}, zap.NewNop())
	words := []string{"林远", "苏晴", "长剑", "灵根", "客栈", "雨夜", "修炼", "。", "，", "sword", " "}

	rapid.Check(t, func(t *rapid.T) {
		l := NewLayer(chapterPolicy(0), engine, zap.NewNop())
		n := rapid.IntRange(0, 25).Draw(t, "n")
		for i := 0; i < n; i++ {
			parts := rapid.SliceOfN(rapid.SampledFrom(words), 1, 10).Draw(t, fmt.Sprintf("parts%d", i))
			content := ""
			for _, p := range parts {
				content += p
			}
			imp := rapid.IntRange(1, 10).Draw(t, fmt.Sprintf("imp%d", i))
			l.Add(context.Background(), chapterItem(content, imp))
		}

		before := l.GetAllMemories()
		res := l.Compress(context.Background())
		after := l.GetAllMemories()

		if len(after) > len(before) {
			t.Fatalf("count grew: %d -> %d", len(before), len(after))
		}
		if contentBytes(after) > contentBytes(before) {
			t.Fatalf("bytes grew: %d -> %d", contentBytes(before), contentBytes(after))
		}
		if res.FreedBytes < 0 {
			t.Fatalf("negative freed bytes %d", res.FreedBytes)
		}
		if res.Success && res.CompressedCount != len(after) {
			t.Fatalf("compressed count %d, layer holds %d", res.CompressedCount, len(after))
		}
	})
}

// 高于阈值的条目无论多旧都不会被清理
func TestLayer_CleanupNeverRemovesHighImportance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("cleanup keeps items at or above the high-importance threshold", prop.ForAll(
		func(importances []int, ageDays []int, retention int) bool {
			clock := testutil.NewFakeClock(epoch)
			l := NewLayer(chapterPolicy(0), mocks.NewMockCompressionEngine(), zap.NewNop(), WithClock(clock.Now))
			threshold := l.Policy().HighImportanceThreshold

			for i, imp := range importances {
				age := 0
				if i < len(ageDays) {
					age = ageDays[i]
				}
				ts := epoch.Add(-time.Duration(age) * 24 * time.Hour)
				it := chapterItem(fmt.Sprintf("条目%d", i), imp)
				it.CreatedAt, it.LastAccessedAt = ts, ts
				l.Add(context.Background(), it)
			}

			high := len(l.GetByImportance(threshold, 0))
			removed := l.CleanupExpired(context.Background(), retention)

			if len(l.GetByImportance(threshold, 0)) != high {
				t.Logf("high-importance items removed (threshold %d)", threshold)
				return false
			}
			for _, it := range l.GetAllMemories() {
				cutoff := epoch.Add(-time.Duration(retention) * 24 * time.Hour)
				if it.ImportanceScore < threshold && it.CreatedAt.Before(cutoff) && it.LastAccessedAt.Before(cutoff) {
					t.Logf("expired item %s survived", it.ID)
					return false
				}
			}
			return removed == len(importances)-l.Count()
		},
		gen.SliceOf(gen.IntRange(1, 10)),
		gen.SliceOf(gen.IntRange(0, 90)),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}

func TestLayer_CleanupExpired(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	clock := testutil.NewFakeClock(epoch)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), clock)

	old := epoch.Add(-40 * 24 * time.Hour)
	stale := chapterItem("久未访问", 2)
	stale.CreatedAt, stale.LastAccessedAt = old, old
	touched := chapterItem("最近访问过", 2)
	touched.CreatedAt, touched.LastAccessedAt = old, epoch
	vital := chapterItem("关键伏笔", 9)
	vital.CreatedAt, vital.LastAccessedAt = old, old
	for _, it := range []*types.MemoryItem{stale, touched, vital} {
		require.True(t, l.Add(ctx, it))
	}

	assert.Zero(t, l.CleanupExpired(ctx, -1))
	assert.Equal(t, 1, l.CleanupExpired(ctx, 30))
	assert.Nil(t, l.Get(ctx, stale.ID))
	assert.Equal(t, 2, l.Count())
}

func TestLayer_UpdateRederivesOnContentChange(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	engine := mocks.NewMockCompressionEngine().
		WithKeywords("林远在山门前拔剑", "林远", "山门", "拔剑").
		WithImportance(8)
	l := newChapterLayer(t, 10, engine, nil)

	it := chapterItem("林远离开客栈", 4)
	it.Tags = []string{TagScene, "客栈"}
	it.IsCompressed = true
	require.True(t, l.Add(ctx, it))
	l.Get(ctx, it.ID)

	u := it.Clone()
	u.Content = "林远在山门前拔剑"
	u.ImportanceScore = 0
	u.Tags = nil
	require.True(t, l.Update(ctx, u))

	got := l.Get(ctx, it.ID)
	require.NotNil(t, got)
	assert.Equal(t, 8, got.ImportanceScore)
	assert.ElementsMatch(t, []string{TagScene, "林远", "山门", "拔剑"}, got.Tags)
	assert.False(t, got.IsCompressed)
	assert.Equal(t, len("林远在山门前拔剑"), got.OriginalLength)
	assert.Equal(t, 2, got.AccessCount)
}

func TestLayer_UpdateEngineFaultKeepsOldImportance(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	engine := mocks.NewMockCompressionEngine().
		WithError(mocks.MethodEvaluateImportance, errors.New("timeout")).
		WithError(mocks.MethodExtractKeywords, errors.New("timeout"))
	l := newChapterLayer(t, 10, engine, nil)

	it := chapterItem("旧内容", 6)
	require.True(t, l.Add(ctx, it))

	u := it.Clone()
	u.Content = "新内容"
	u.ImportanceScore = 0
	require.True(t, l.Update(ctx, u))
	assert.Equal(t, 6, l.Get(ctx, it.ID).ImportanceScore)
}

func TestLayer_UpdateAndRemoveMissing(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), nil)

	assert.False(t, l.Update(ctx, chapterItem("不存在", 5)))
	assert.False(t, l.Update(ctx, nil))
	assert.False(t, l.Remove(ctx, "missing"))
}

func TestLayer_RemoveKeepsIndexConsistent(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), nil)

	items := make([]*types.MemoryItem, 5)
	for i := range items {
		items[i] = chapterItem(fmt.Sprintf("条目 %d", i), 5)
		require.True(t, l.Add(ctx, items[i]))
	}

	require.True(t, l.Remove(ctx, items[1].ID))
	require.True(t, l.Remove(ctx, items[4].ID))
	for _, i := range []int{0, 2, 3} {
		got := l.Get(ctx, items[i].ID)
		require.NotNil(t, got, "item %d", i)
		assert.Equal(t, items[i].Content, got.Content)
	}
	assert.Equal(t, 3, l.Count())
	assert.Equal(t, 3, l.Clear(ctx))
	assert.Zero(t, l.Count())
}

func TestLayer_Search(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), nil)

	require.True(t, l.Add(ctx, chapterItem("林远拔剑", 6)))
	require.True(t, l.Add(ctx, chapterItem("林远喝茶", 8)))
	require.True(t, l.Add(ctx, chapterItem("苏晴离开", 9)))

	hits := l.Search(ctx, "林远", 5)
	require.Len(t, hits, 2)
	assert.Equal(t, "林远喝茶", hits[0].Content)
	assert.Equal(t, 1, hits[0].AccessCount)

	assert.Empty(t, l.Search(ctx, "林远", 0))
}

func TestLayer_SearchDegradesOnEngineFault(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	engine := mocks.NewMockCompressionEngine().WithError(mocks.MethodOptimizeRetrieval, errors.New("boom"))
	l := newChapterLayer(t, 10, engine, nil)
	require.True(t, l.Add(ctx, chapterItem("林远拔剑", 6)))

	hits := l.Search(ctx, "林远", 5)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestLayer_Statistics(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	l := newChapterLayer(t, 10, mocks.NewMockCompressionEngine(), nil)

	a := chapterItem("甲乙", 4)
	b := chapterItem("丙", 8)
	b.Type = types.MemoryTypeScene
	b.IsCompressed = true
	b.OriginalLength = 30
	require.True(t, l.Add(ctx, a))
	require.True(t, l.Add(ctx, b))

	stats := l.GetStatistics()
	assert.Equal(t, types.ScopeChapter, stats.Scope)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 10, stats.Capacity)
	assert.InDelta(t, 0.2, stats.Utilization, 1e-9)
	assert.InDelta(t, 6.0, stats.AverageImportance, 1e-9)
	assert.Equal(t, 1, stats.CompressedCount)
	assert.InDelta(t, 0.5, stats.CompressionRate, 1e-9)
	assert.Equal(t, int64(len("甲乙")+len("丙")), stats.TotalBytes)
	assert.Equal(t, int64(len("甲乙")+30), stats.OriginalBytes)
	assert.Equal(t, 1, stats.TypeDistribution[types.MemoryTypeScene])
}

func TestLayer_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	engine := compression.NewLocalEngine(compression.DefaultLocalConfig(), zap.NewNop())
	l := newChapterLayer(t, 50, engine, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				it := chapterItem(fmt.Sprintf("写手%d的第%d段描写，雨夜里的客栈。", w, i), 1+(i%10))
				l.Add(ctx, it)
				l.Get(ctx, it.ID)
				l.Search(ctx, "客栈", 3)
				if i%5 == 0 {
					l.Compress(ctx)
				}
				_ = l.GetStatistics()
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, l.Count(), 50)
	for _, it := range l.GetAllMemories() {
		assert.NotNil(t, l.Get(ctx, it.ID))
	}
}

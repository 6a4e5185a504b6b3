package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/config"
	"github.com/BaSui01/novelmemory/testutil"
	"github.com/BaSui01/novelmemory/testutil/mocks"
	"github.com/BaSui01/novelmemory/types"
)

// keepFirst 把低重要性条目折叠为第一条
func keepFirst(items []*types.MemoryItem, threshold int) []*types.MemoryItem {
	var out []*types.MemoryItem
	kept := false
	for _, it := range items {
		if it.ImportanceScore < threshold {
			if kept {
				continue
			}
			kept = true
		}
		out = append(out, it)
	}
	return out
}

func TestMaintainer_RunOnce(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	clock := testutil.NewFakeClock(epoch)

	mc := config.DefaultMemoryConfig()
	mc.Chapter.Capacity = 10
	mc.CompressUtilization = 0.5
	mc.RetentionDays = 30
	engine := mocks.NewMockCompressionEngine().WithCompressFunc(keepFirst)
	m := NewManager(mc, engine, zap.NewNop(), WithManagerClock(clock.Now))

	loc := Location{ProjectID: "p1", ChapterID: "c1"}
	for i := 0; i < 6; i++ {
		_, ok := m.Chapter("p1").AddScene(ctx, loc, fmt.Sprintf("场景 %d", i), 2)
		require.True(t, ok)
	}
	_, ok := m.Global("p2").AddWorldSetting(ctx, "p2", "灵气复苏", 9)
	require.True(t, ok)

	clock.Advance(40 * 24 * time.Hour)
	_, ok = m.Volume("p2").AddPlotLine(ctx, "p2", "v1", "新近的情节线", 6)
	require.True(t, ok)

	mt := NewMaintainer(m, zap.NewNop())
	defer mt.Stop()

	report := mt.RunOnce(ctx)
	assert.Equal(t, 2, report.Projects)
	assert.Equal(t, 8, report.Layers)
	assert.Zero(t, report.Failures)
	// 章节层 6 条全部过期；世界观重要性 9 不清理
	assert.Equal(t, 6, report.Cleaned)
	assert.Zero(t, m.Chapter("p1").Count())
	assert.Equal(t, 1, m.Global("p2").Count())
	assert.Equal(t, 1, m.Volume("p2").Count())
}

func TestMaintainer_CompressesOverUtilizedLayers(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)

	mc := config.DefaultMemoryConfig()
	mc.Chapter.Capacity = 10
	mc.CompressUtilization = 0.5
	mc.RetentionDays = 0
	engine := mocks.NewMockCompressionEngine().WithCompressFunc(keepFirst)
	m := NewManager(mc, engine, zap.NewNop())

	loc := Location{ProjectID: "p1", ChapterID: "c1"}
	for i := 0; i < 6; i++ {
		_, ok := m.Chapter("p1").AddScene(ctx, loc, fmt.Sprintf("场景 %d", i), 2)
		require.True(t, ok)
	}
	_, ok := m.Volume("p1").AddPlotLine(ctx, "p1", "v1", "主线", 6)
	require.True(t, ok)

	mt := NewMaintainer(m, zap.NewNop())
	defer mt.Stop()

	report := mt.RunOnce(ctx)
	assert.Equal(t, 1, report.Compressed)
	assert.Positive(t, report.FreedBytes)
	assert.Equal(t, 1, m.Chapter("p1").Count())
	assert.Equal(t, 1, m.Volume("p1").Count())
	assert.Equal(t, 1, engine.Calls(mocks.MethodCompressLowImportance))
}

func TestMaintainer_StartStop(t *testing.T) {
	t.Parallel()

	mc := config.DefaultMemoryConfig()
	mc.MaintenanceInterval = 10 * time.Millisecond
	m := NewManager(mc, mocks.NewMockCompressionEngine(), zap.NewNop())
	_, ok := m.UpdateMemory(context.Background(), MemoryUpdate{Content: "内容", Importance: 5, Scope: types.ScopeChapter, ProjectID: "p1"})
	require.True(t, ok)

	mt := NewMaintainer(m, zap.NewNop())
	mt.Start(context.Background())
	mt.Start(context.Background())

	testutil.AssertEventuallyTrue(t, func() bool {
		return mt.PoolStats().Completed >= 4
	}, 2*time.Second)

	mt.Stop()
	mt.Stop()

	report := mt.RunOnce(context.Background())
	assert.Equal(t, report.Layers, report.Failures)
}

func TestMaintainer_DisabledInterval(t *testing.T) {
	t.Parallel()

	m := NewManager(config.DefaultMemoryConfig(), mocks.NewMockCompressionEngine(), zap.NewNop())
	mt := NewMaintainer(m, zap.NewNop())
	mt.Start(context.Background())
	mt.Stop()
	assert.Zero(t, mt.PoolStats().Submitted)
}

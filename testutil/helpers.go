// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供记忆层测试通用的上下文、时钟与条目构造辅助
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	clock := testutil.NewFakeClock(time.Now())
//	item := testutil.NewItem(types.ScopeChapter, "p1", "林远拔剑")
//
// =============================================================================
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// ⏰ 可控时钟
// =============================================================================

// FakeClock 手动推进的时钟，Now 方法可直接作为 memory.WithClock 的参数
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock 创建从 start 开始的时钟
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now 返回当前时间
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 推进时钟
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set 设置时钟
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// =============================================================================
// 📦 条目构造
// =============================================================================

// NewItem 构造一个重要性为 5、类型为 Other 的条目
func NewItem(scope types.MemoryScope, projectID, content string) *types.MemoryItem {
	now := time.Now()
	return &types.MemoryItem{
		ID:              uuid.NewString(),
		Content:         content,
		ImportanceScore: 5,
		Type:            types.MemoryTypeOther,
		Scope:           scope,
		ProjectID:       projectID,
		CreatedAt:       now,
		LastAccessedAt:  now,
		OriginalLength:  len(content),
	}
}

// NewItemWith 构造条目并应用修改函数
func NewItemWith(scope types.MemoryScope, projectID, content string, mutate func(*types.MemoryItem)) *types.MemoryItem {
	it := NewItem(scope, projectID, content)
	if mutate != nil {
		mutate(it)
	}
	return it
}

// =============================================================================
// ⏳ 异步辅助
// =============================================================================

// WaitFor 轮询直到条件满足或超时
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return condition()
}

// AssertEventuallyTrue 断言条件在超时前变为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Errorf("condition not met within %v", timeout)
	}
}

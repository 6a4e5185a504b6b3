// =============================================================================
// 🧠 MockCompressionEngine - 压缩引擎模拟实现
// =============================================================================
// 用于测试记忆层的可编排压缩引擎，支持脚本化返回值、错误注入与调用计数
//
// 使用方法:
//
//	engine := mocks.NewMockCompressionEngine().
//		WithImportance(6).
//		WithSimilarity("a", "b", 0.4).
//		WithError(mocks.MethodCompressLowImportance, errors.New("boom"))
//	layer := memory.NewLayer(policy, engine, logger)
//
// =============================================================================
package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/novelmemory/types"
)

// 方法名，用于错误注入与调用计数
const (
	MethodEvaluateImportance    = "EvaluateImportance"
	MethodExtractKeywords       = "ExtractKeywords"
	MethodCalculateSimilarity   = "CalculateSimilarity"
	MethodGenerateSummary       = "GenerateSummary"
	MethodCompressLowImportance = "CompressLowImportance"
	MethodMergeSimilarMemories  = "MergeSimilarMemories"
	MethodOptimizeRetrieval     = "OptimizeRetrieval"
)

// =============================================================================
// 🎯 MockCompressionEngine 结构
// =============================================================================

// MockCompressionEngine 是压缩引擎的模拟实现
type MockCompressionEngine struct {
	mu sync.RWMutex

	// 脚本化返回值
	importance        int
	keywords          map[string][]string
	similarity        map[[2]string]float64
	defaultSimilarity float64

	// 可替换行为
	compressFunc  func(items []*types.MemoryItem, threshold int) []*types.MemoryItem
	mergeFunc     func(items []*types.MemoryItem, threshold float64) []*types.MemoryItem
	retrievalFunc func(query string, items []*types.MemoryItem, max int) []*types.MemoryItem

	// 错误注入
	errs map[string]error

	// 模拟延迟
	delay time.Duration

	// 调用记录
	calls map[string]int
}

// =============================================================================
// 🔧 构造函数和 Builder 方法
// =============================================================================

// NewMockCompressionEngine 创建新的 MockCompressionEngine。
// 默认：重要性 5，无关键词，相同文本相似度 1 否则 0，压缩与合并原样返回，
// 检索按子串匹配并以重要性降序排列。
func NewMockCompressionEngine() *MockCompressionEngine {
	return &MockCompressionEngine{
		importance: 5,
		keywords:   make(map[string][]string),
		similarity: make(map[[2]string]float64),
		errs:       make(map[string]error),
		calls:      make(map[string]int),
	}
}

// WithImportance 设置 EvaluateImportance 的返回值
func (m *MockCompressionEngine) WithImportance(score int) *MockCompressionEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.importance = score
	return m
}

// WithKeywords 为指定内容设置关键词
func (m *MockCompressionEngine) WithKeywords(content string, keywords ...string) *MockCompressionEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keywords[content] = append([]string{}, keywords...)
	return m
}

// WithSimilarity 为一对文本设置相似度（顺序无关）
func (m *MockCompressionEngine) WithSimilarity(a, b string, score float64) *MockCompressionEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.similarity[pairKey(a, b)] = score
	return m
}

// WithDefaultSimilarity 设置未脚本化文本对的相似度
func (m *MockCompressionEngine) WithDefaultSimilarity(score float64) *MockCompressionEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultSimilarity = score
	return m
}

// WithCompressFunc 替换 CompressLowImportance 的行为
func (m *MockCompressionEngine) WithCompressFunc(fn func(items []*types.MemoryItem, threshold int) []*types.MemoryItem) *MockCompressionEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compressFunc = fn
	return m
}

// WithMergeFunc 替换 MergeSimilarMemories 的行为
func (m *MockCompressionEngine) WithMergeFunc(fn func(items []*types.MemoryItem, threshold float64) []*types.MemoryItem) *MockCompressionEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeFunc = fn
	return m
}

// WithRetrievalFunc 替换 OptimizeRetrieval 的行为
func (m *MockCompressionEngine) WithRetrievalFunc(fn func(query string, items []*types.MemoryItem, max int) []*types.MemoryItem) *MockCompressionEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrievalFunc = fn
	return m
}

// WithError 为指定方法注入错误，err 为 nil 时清除
func (m *MockCompressionEngine) WithError(method string, err error) *MockCompressionEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
	} else {
		m.errs[method] = err
	}
	return m
}

// WithDelay 为每次调用增加延迟
func (m *MockCompressionEngine) WithDelay(d time.Duration) *MockCompressionEngine {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// =============================================================================
// 📊 调用记录
// =============================================================================

// Calls 返回方法被调用的次数
func (m *MockCompressionEngine) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// TotalCalls 返回所有方法的调用总数
func (m *MockCompressionEngine) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Reset 清除调用记录
func (m *MockCompressionEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[string]int)
}

// begin 记录调用、等待延迟并返回注入的错误
func (m *MockCompressionEngine) begin(ctx context.Context, method string) error {
	m.mu.Lock()
	m.calls[method]++
	err := m.errs[method]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// =============================================================================
// 🎯 引擎接口实现
// =============================================================================

// EvaluateImportance 返回脚本化的重要性
func (m *MockCompressionEngine) EvaluateImportance(ctx context.Context, content, hint string) (int, error) {
	if err := m.begin(ctx, MethodEvaluateImportance); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.importance, nil
}

// ExtractKeywords 返回为该内容脚本化的关键词
func (m *MockCompressionEngine) ExtractKeywords(ctx context.Context, content string, maxKeywords int) ([]string, error) {
	if err := m.begin(ctx, MethodExtractKeywords); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	kw := append([]string{}, m.keywords[content]...)
	if maxKeywords > 0 && len(kw) > maxKeywords {
		kw = kw[:maxKeywords]
	}
	return kw, nil
}

// CalculateSimilarity 返回脚本化的相似度
func (m *MockCompressionEngine) CalculateSimilarity(ctx context.Context, a, b string) (float64, error) {
	if err := m.begin(ctx, MethodCalculateSimilarity); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.similarity[pairKey(a, b)]; ok {
		return s, nil
	}
	if a == b {
		return 1, nil
	}
	return m.defaultSimilarity, nil
}

// GenerateSummary 按字符截断
func (m *MockCompressionEngine) GenerateSummary(ctx context.Context, content string, maxLength int) (string, error) {
	if err := m.begin(ctx, MethodGenerateSummary); err != nil {
		return "", err
	}
	r := []rune(content)
	if maxLength > 0 && len(r) > maxLength {
		return string(r[:maxLength]), nil
	}
	return content, nil
}

// CompressLowImportance 默认原样返回
func (m *MockCompressionEngine) CompressLowImportance(ctx context.Context, items []*types.MemoryItem, threshold int) ([]*types.MemoryItem, error) {
	if err := m.begin(ctx, MethodCompressLowImportance); err != nil {
		return nil, err
	}
	m.mu.RLock()
	fn := m.compressFunc
	m.mu.RUnlock()
	if fn != nil {
		return fn(types.CloneItems(items), threshold), nil
	}
	return types.CloneItems(items), nil
}

// MergeSimilarMemories 默认原样返回
func (m *MockCompressionEngine) MergeSimilarMemories(ctx context.Context, items []*types.MemoryItem, threshold float64) ([]*types.MemoryItem, error) {
	if err := m.begin(ctx, MethodMergeSimilarMemories); err != nil {
		return nil, err
	}
	m.mu.RLock()
	fn := m.mergeFunc
	m.mu.RUnlock()
	if fn != nil {
		return fn(types.CloneItems(items), threshold), nil
	}
	return types.CloneItems(items), nil
}

// OptimizeRetrieval 默认按子串匹配，重要性降序
func (m *MockCompressionEngine) OptimizeRetrieval(ctx context.Context, query string, items []*types.MemoryItem, maxResults int) ([]*types.MemoryItem, error) {
	if err := m.begin(ctx, MethodOptimizeRetrieval); err != nil {
		return nil, err
	}
	m.mu.RLock()
	fn := m.retrievalFunc
	m.mu.RUnlock()
	if fn != nil {
		return fn(query, types.CloneItems(items), maxResults), nil
	}

	var out []*types.MemoryItem
	for _, it := range items {
		if query == "" || strings.Contains(it.Content, query) {
			out = append(out, it.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ImportanceScore > out[j].ImportanceScore
	})
	if maxResults >= 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

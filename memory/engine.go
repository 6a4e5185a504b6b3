package memory

import (
	"context"

	"github.com/BaSui01/novelmemory/types"
)

// CompressionEngine 语义操作的外部契约。
// 记忆层在锁外调用这些方法，每次调用都视为可能较慢的远程调用。
type CompressionEngine interface {
	// EvaluateImportance 评估内容的重要性（1..10），hint 为类别等上下文
	EvaluateImportance(ctx context.Context, content, hint string) (int, error)
	// ExtractKeywords 提取最多 maxKeywords 个关键词
	ExtractKeywords(ctx context.Context, content string, maxKeywords int) ([]string, error)
	// CalculateSimilarity 返回 [0,1] 的相似度
	CalculateSimilarity(ctx context.Context, a, b string) (float64, error)
	// GenerateSummary 生成不超过 maxLength 的摘要
	GenerateSummary(ctx context.Context, content string, maxLength int) (string, error)
	// CompressLowImportance 摘要重要性低于 threshold 的条目，不增加条目数
	CompressLowImportance(ctx context.Context, items []*types.MemoryItem, threshold int) ([]*types.MemoryItem, error)
	// MergeSimilarMemories 合并相似度不低于 threshold 的条目，不增加条目数
	MergeSimilarMemories(ctx context.Context, items []*types.MemoryItem, threshold float64) ([]*types.MemoryItem, error)
	// OptimizeRetrieval 返回按相关性排序的最多 maxResults 个条目
	OptimizeRetrieval(ctx context.Context, query string, items []*types.MemoryItem, maxResults int) ([]*types.MemoryItem, error)
}

package compression

import (
	"context"

	"github.com/BaSui01/novelmemory/types"
)

// Engine 是记忆层消费的语义操作集合。
// 实现必须保证 CalculateSimilarity 的结果落在 [0,1]，
// CompressLowImportance 与 MergeSimilarMemories 不增加条目数。
type Engine interface {
	EvaluateImportance(ctx context.Context, content, hint string) (int, error)
	ExtractKeywords(ctx context.Context, content string, maxKeywords int) ([]string, error)
	CalculateSimilarity(ctx context.Context, a, b string) (float64, error)
	GenerateSummary(ctx context.Context, content string, maxLength int) (string, error)
	CompressLowImportance(ctx context.Context, items []*types.MemoryItem, threshold int) ([]*types.MemoryItem, error)
	MergeSimilarMemories(ctx context.Context, items []*types.MemoryItem, threshold float64) ([]*types.MemoryItem, error)
	OptimizeRetrieval(ctx context.Context, query string, items []*types.MemoryItem, maxResults int) ([]*types.MemoryItem, error)
}

// 操作名，用于缓存键、span 名与指标标签
const (
	OpEvaluateImportance    = "evaluate_importance"
	OpExtractKeywords       = "extract_keywords"
	OpCalculateSimilarity   = "calculate_similarity"
	OpGenerateSummary       = "generate_summary"
	OpCompressLowImportance = "compress_low_importance"
	OpMergeSimilar          = "merge_similar"
	OpOptimizeRetrieval     = "optimize_retrieval"
)

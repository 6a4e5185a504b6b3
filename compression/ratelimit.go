package compression

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/novelmemory/types"
)

// RateLimitedEngine 在每次调用前等待令牌，保护远程引擎的配额
type RateLimitedEngine struct {
	inner   Engine
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Engine = (*RateLimitedEngine)(nil)

// NewRateLimitedEngine 创建限流装饰器。rps <= 0 时不限流。
func NewRateLimitedEngine(inner Engine, rps float64, burst int, logger *zap.Logger) *RateLimitedEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEngine{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(zap.String("component", "rate_limited_engine")),
	}
}

func (r *RateLimitedEngine) wait(ctx context.Context, op string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.Warn("rate limit wait aborted", zap.String("op", op), zap.Error(err))
		return types.NewError(types.ErrRateLimited, "rate limit wait aborted for "+op).
			WithCause(err).
			WithRetryable(true)
	}
	return nil
}

// EvaluateImportance 限流后调用
func (r *RateLimitedEngine) EvaluateImportance(ctx context.Context, content, hint string) (int, error) {
	if err := r.wait(ctx, OpEvaluateImportance); err != nil {
		return 0, err
	}
	return r.inner.EvaluateImportance(ctx, content, hint)
}

// ExtractKeywords 限流后调用
func (r *RateLimitedEngine) ExtractKeywords(ctx context.Context, content string, maxKeywords int) ([]string, error) {
	if err := r.wait(ctx, OpExtractKeywords); err != nil {
		return nil, err
	}
	return r.inner.ExtractKeywords(ctx, content, maxKeywords)
}

// CalculateSimilarity 限流后调用
func (r *RateLimitedEngine) CalculateSimilarity(ctx context.Context, a, b string) (float64, error) {
	if err := r.wait(ctx, OpCalculateSimilarity); err != nil {
		return 0, err
	}
	return r.inner.CalculateSimilarity(ctx, a, b)
}

// GenerateSummary 限流后调用
func (r *RateLimitedEngine) GenerateSummary(ctx context.Context, content string, maxLength int) (string, error) {
	if err := r.wait(ctx, OpGenerateSummary); err != nil {
		return "", err
	}
	return r.inner.GenerateSummary(ctx, content, maxLength)
}

// CompressLowImportance 限流后调用
func (r *RateLimitedEngine) CompressLowImportance(ctx context.Context, items []*types.MemoryItem, threshold int) ([]*types.MemoryItem, error) {
	if err := r.wait(ctx, OpCompressLowImportance); err != nil {
		return nil, err
	}
	return r.inner.CompressLowImportance(ctx, items, threshold)
}

// MergeSimilarMemories 限流后调用
func (r *RateLimitedEngine) MergeSimilarMemories(ctx context.Context, items []*types.MemoryItem, threshold float64) ([]*types.MemoryItem, error) {
	if err := r.wait(ctx, OpMergeSimilar); err != nil {
		return nil, err
	}
	return r.inner.MergeSimilarMemories(ctx, items, threshold)
}

// OptimizeRetrieval 限流后调用
func (r *RateLimitedEngine) OptimizeRetrieval(ctx context.Context, query string, items []*types.MemoryItem, maxResults int) ([]*types.MemoryItem, error) {
	if err := r.wait(ctx, OpOptimizeRetrieval); err != nil {
		return nil, err
	}
	return r.inner.OptimizeRetrieval(ctx, query, items, maxResults)
}

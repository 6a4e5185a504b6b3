package compression

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/novelmemory/types"
)

// InstrumentedEngine 为每次引擎调用记录 span 与指标
type InstrumentedEngine struct {
	inner  Engine
	tracer trace.Tracer

	calls    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

var _ Engine = (*InstrumentedEngine)(nil)

// NewInstrumentedEngine 创建埋点装饰器
func NewInstrumentedEngine(inner Engine, tracer trace.Tracer, meter metric.Meter) (*InstrumentedEngine, error) {
	e := &InstrumentedEngine{inner: inner, tracer: tracer}

	var err error

	// 调用计数
	e.calls, err = meter.Int64Counter("memory.engine.calls",
		metric.WithDescription("Total number of compression engine calls"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}

	// 错误计数
	e.errors, err = meter.Int64Counter("memory.engine.errors",
		metric.WithDescription("Total number of failed compression engine calls"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	// 调用耗时
	e.duration, err = meter.Float64Histogram("memory.engine.duration",
		metric.WithDescription("Compression engine call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30))
	if err != nil {
		return nil, err
	}

	return e, nil
}

// observe 开始一个 span，返回的函数结束 span 并记录指标
func (e *InstrumentedEngine) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs, attribute.String("engine.op", op))
	if sid, ok := types.SessionID(ctx); ok {
		attrs = append(attrs, attribute.String("novelmemory.session_id", sid))
	}
	if pid, ok := types.ProjectID(ctx); ok {
		attrs = append(attrs, attribute.String("novelmemory.project_id", pid))
	}
	ctx, span := e.tracer.Start(ctx, "compression."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		opAttr := metric.WithAttributes(attribute.String("op", op))
		e.calls.Add(ctx, 1, opAttr)
		e.duration.Record(ctx, time.Since(start).Seconds(), opAttr)
		if err != nil {
			e.errors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("op", op),
				attribute.String("code", string(types.GetErrorCode(err))),
			))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// EvaluateImportance 埋点后调用
func (e *InstrumentedEngine) EvaluateImportance(ctx context.Context, content, hint string) (int, error) {
	ctx, done := e.observe(ctx, OpEvaluateImportance, attribute.Int("content.bytes", len(content)))
	score, err := e.inner.EvaluateImportance(ctx, content, hint)
	done(err)
	return score, err
}

// ExtractKeywords 埋点后调用
func (e *InstrumentedEngine) ExtractKeywords(ctx context.Context, content string, maxKeywords int) ([]string, error) {
	ctx, done := e.observe(ctx, OpExtractKeywords, attribute.Int("content.bytes", len(content)))
	kw, err := e.inner.ExtractKeywords(ctx, content, maxKeywords)
	done(err)
	return kw, err
}

// CalculateSimilarity 埋点后调用
func (e *InstrumentedEngine) CalculateSimilarity(ctx context.Context, a, b string) (float64, error) {
	ctx, done := e.observe(ctx, OpCalculateSimilarity)
	sim, err := e.inner.CalculateSimilarity(ctx, a, b)
	done(err)
	return sim, err
}

// GenerateSummary 埋点后调用
func (e *InstrumentedEngine) GenerateSummary(ctx context.Context, content string, maxLength int) (string, error) {
	ctx, done := e.observe(ctx, OpGenerateSummary, attribute.Int("content.bytes", len(content)))
	s, err := e.inner.GenerateSummary(ctx, content, maxLength)
	done(err)
	return s, err
}

// CompressLowImportance 埋点后调用
func (e *InstrumentedEngine) CompressLowImportance(ctx context.Context, items []*types.MemoryItem, threshold int) ([]*types.MemoryItem, error) {
	ctx, done := e.observe(ctx, OpCompressLowImportance,
		attribute.Int("items.in", len(items)),
		attribute.Int("threshold", threshold))
	out, err := e.inner.CompressLowImportance(ctx, items, threshold)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("items.out", len(out)))
	done(err)
	return out, err
}

// MergeSimilarMemories 埋点后调用
func (e *InstrumentedEngine) MergeSimilarMemories(ctx context.Context, items []*types.MemoryItem, threshold float64) ([]*types.MemoryItem, error) {
	ctx, done := e.observe(ctx, OpMergeSimilar,
		attribute.Int("items.in", len(items)),
		attribute.Float64("threshold", threshold))
	out, err := e.inner.MergeSimilarMemories(ctx, items, threshold)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("items.out", len(out)))
	done(err)
	return out, err
}

// OptimizeRetrieval 埋点后调用
func (e *InstrumentedEngine) OptimizeRetrieval(ctx context.Context, query string, items []*types.MemoryItem, maxResults int) ([]*types.MemoryItem, error) {
	ctx, done := e.observe(ctx, OpOptimizeRetrieval,
		attribute.Int("items.in", len(items)),
		attribute.Int("max_results", maxResults))
	out, err := e.inner.OptimizeRetrieval(ctx, query, items, maxResults)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("items.out", len(out)))
	done(err)
	return out, err
}

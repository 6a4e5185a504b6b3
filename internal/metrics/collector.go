// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。nil *Collector 的所有记录方法均为空操作，
// 记忆层可以在未启用指标时直接传 nil。
type Collector struct {
	// 记忆层操作指标
	operationsTotal *prometheus.CounterVec
	items           *prometheus.GaugeVec
	capacity        *prometheus.GaugeVec

	// 压缩与清理指标
	compressionsTotal   *prometheus.CounterVec
	compressionFreed    *prometheus.CounterVec
	compressionDuration *prometheus.HistogramVec
	cleanupRemoved      *prometheus.CounterVec
	reclaimed           *prometheus.CounterVec

	// 引擎缓存指标
	engineCache *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg。
// reg 为 nil 时指标不注册到任何 Registry（用于测试）。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.operationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_operations_total",
			Help:      "Total number of memory layer operations",
		},
		[]string{"scope", "op", "status"},
	)

	c.items = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_items",
			Help:      "Number of items currently held by a memory layer",
		},
		[]string{"scope", "project"},
	)

	c.capacity = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_capacity",
			Help:      "Configured capacity of a memory layer",
		},
		[]string{"scope"},
	)

	c.compressionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_compressions_total",
			Help:      "Total number of layer compressions",
		},
		[]string{"scope", "status"},
	)

	c.compressionFreed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_compression_freed_bytes_total",
			Help:      "Bytes reclaimed by compression",
		},
		[]string{"scope"},
	)

	c.compressionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_compression_duration_seconds",
			Help:      "Compression duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"scope"},
	)

	c.cleanupRemoved = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_cleanup_removed_total",
			Help:      "Items removed by expiry cleanup",
		},
		[]string{"scope"},
	)

	c.reclaimed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_reclaimed_total",
			Help:      "Items purged by the cheap pre-compression reclaim path",
		},
		[]string{"scope"},
	)

	c.engineCache = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_engine_cache_total",
			Help:      "Compression engine cache lookups",
		},
		[]string{"op", "result"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🧠 记忆层指标记录
// =============================================================================

// RecordOperation 记录一次记忆层操作
func (c *Collector) RecordOperation(scope, op string, ok bool) {
	if c == nil {
		return
	}
	c.operationsTotal.WithLabelValues(scope, op, status(ok)).Inc()
}

// RecordItems 记录层当前条目数
func (c *Collector) RecordItems(scope, project string, count int) {
	if c == nil {
		return
	}
	c.items.WithLabelValues(scope, project).Set(float64(count))
}

// RecordCapacity 记录层容量
func (c *Collector) RecordCapacity(scope string, capacity int) {
	if c == nil {
		return
	}
	c.capacity.WithLabelValues(scope).Set(float64(capacity))
}

// RecordCompression 记录一次压缩
func (c *Collector) RecordCompression(scope string, ok bool, freedBytes int64, duration time.Duration) {
	if c == nil {
		return
	}
	c.compressionsTotal.WithLabelValues(scope, status(ok)).Inc()
	c.compressionDuration.WithLabelValues(scope).Observe(duration.Seconds())
	if freedBytes > 0 {
		c.compressionFreed.WithLabelValues(scope).Add(float64(freedBytes))
	}
}

// RecordCleanup 记录过期清理移除的条目数
func (c *Collector) RecordCleanup(scope string, removed int) {
	if c == nil || removed <= 0 {
		return
	}
	c.cleanupRemoved.WithLabelValues(scope).Add(float64(removed))
}

// RecordReclaim 记录廉价回收路径清除的条目数
func (c *Collector) RecordReclaim(scope string, removed int) {
	if c == nil || removed <= 0 {
		return
	}
	c.reclaimed.WithLabelValues(scope).Add(float64(removed))
}

// =============================================================================
// 💾 引擎缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(op string) {
	if c == nil {
		return
	}
	c.engineCache.WithLabelValues(op, "hit").Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(op string) {
	if c == nil {
		return
	}
	c.engineCache.WithLabelValues(op, "miss").Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

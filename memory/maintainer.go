package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/internal/pool"
)

// =============================================================================
// 🧹 后台维护
// =============================================================================

// MaintenanceReport 一轮维护的汇总
type MaintenanceReport struct {
	Projects   int           `json:"projects"`
	Layers     int           `json:"layers"`
	Cleaned    int           `json:"cleaned"`
	Compressed int           `json:"compressed"`
	FreedBytes int64         `json:"freed_bytes"`
	Failures   int           `json:"failures"`
	Duration   time.Duration `json:"duration"`
}

// Maintainer 定期对所有项目的各层执行过期清理，
// 并压缩利用率达到阈值的层。每层一个任务，在工作池上执行。
type Maintainer struct {
	manager *Manager
	pool    *pool.WorkerPool
	logger  *zap.Logger

	interval      time.Duration
	retentionDays int
	utilization   float64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewMaintainer 按管理器配置创建维护器
func NewMaintainer(m *Manager, logger *zap.Logger) *Maintainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := m.Config()

	pc := pool.DefaultConfig()
	if cfg.MaintenanceWorkers > 0 {
		pc.Workers = cfg.MaintenanceWorkers
	}

	return &Maintainer{
		manager:       m,
		pool:          pool.New(pc, logger),
		logger:        logger.With(zap.String("component", "memory_maintainer")),
		interval:      cfg.MaintenanceInterval,
		retentionDays: cfg.RetentionDays,
		utilization:   cfg.CompressUtilization,
	}
}

// RunOnce 执行一轮维护并等待全部任务结束
func (mt *Maintainer) RunOnce(ctx context.Context) MaintenanceReport {
	start := time.Now()
	projects := mt.manager.Projects()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report = MaintenanceReport{Projects: len(projects)}
	)

	for _, projectID := range projects {
		pm, ok := mt.manager.lookup(projectID)
		if !ok {
			continue
		}
		for _, l := range pm.Layers() {
			report.Layers++
			name := fmt.Sprintf("maintain:%s:%s", projectID, l.Scope())

			wg.Add(1)
			go func(l *Layer) {
				defer wg.Done()
				err := mt.pool.SubmitWait(ctx, name, func(ctx context.Context) error {
					cleaned, res, compressed := mt.maintainLayer(ctx, l)
					mu.Lock()
					report.Cleaned += cleaned
					if compressed {
						if res.Success {
							report.Compressed++
							report.FreedBytes += res.FreedBytes
						} else {
							report.Failures++
						}
					}
					mu.Unlock()
					return nil
				})
				if err != nil {
					mu.Lock()
					report.Failures++
					mu.Unlock()
				}
			}(l)
		}
	}
	wg.Wait()

	report.Duration = time.Since(start)
	mt.logger.Info("maintenance finished",
		zap.Int("projects", report.Projects),
		zap.Int("cleaned", report.Cleaned),
		zap.Int("compressed", report.Compressed),
		zap.Int64("freed_bytes", report.FreedBytes),
		zap.Int("failures", report.Failures),
		zap.Duration("duration", report.Duration),
	)
	return report
}

// maintainLayer 先清理过期条目，再按利用率决定是否压缩
func (mt *Maintainer) maintainLayer(ctx context.Context, l *Layer) (int, CompressionResult, bool) {
	cleaned := 0
	if mt.retentionDays > 0 {
		cleaned = l.CleanupExpired(ctx, mt.retentionDays)
	}

	stats := l.GetStatistics()
	if stats.Count == 0 || mt.utilization <= 0 || stats.Utilization < mt.utilization {
		return cleaned, CompressionResult{}, false
	}
	return cleaned, l.Compress(ctx), true
}

// Start 按配置间隔启动后台维护；间隔 <= 0 时不启动
func (mt *Maintainer) Start(ctx context.Context) {
	if mt.interval <= 0 {
		mt.logger.Debug("maintenance disabled")
		return
	}

	mt.mu.Lock()
	if mt.cancel != nil || mt.stopped {
		mt.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	mt.cancel = cancel
	mt.done = make(chan struct{})
	done := mt.done
	mt.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(mt.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mt.RunOnce(ctx)
			}
		}
	}()

	mt.logger.Info("maintenance started", zap.Duration("interval", mt.interval))
}

// Stop 停止后台维护并关闭工作池，可重复调用
func (mt *Maintainer) Stop() {
	mt.mu.Lock()
	if mt.stopped {
		mt.mu.Unlock()
		return
	}
	mt.stopped = true
	cancel, done := mt.cancel, mt.done
	mt.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	mt.pool.Close()
	mt.logger.Info("maintenance stopped")
}

// PoolStats 返回工作池统计
func (mt *Maintainer) PoolStats() pool.Stats {
	return mt.pool.Stats()
}

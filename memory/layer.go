package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/internal/metrics"
	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 🧠 记忆层
// =============================================================================

// CompressionResult 一次压缩的结果
type CompressionResult struct {
	Success         bool          `json:"success"`
	OriginalCount   int           `json:"original_count"`
	CompressedCount int           `json:"compressed_count"`
	FreedBytes      int64         `json:"freed_bytes"`
	Duration        time.Duration `json:"duration"`
	Error           string        `json:"error,omitempty"`
}

// LayerStatistics 层统计信息
type LayerStatistics struct {
	Scope             types.MemoryScope        `json:"scope"`
	Count             int                      `json:"count"`
	Capacity          int                      `json:"capacity"`
	Utilization       float64                  `json:"utilization"`
	AverageImportance float64                  `json:"average_importance"`
	CompressedCount   int                      `json:"compressed_count"`
	CompressionRate   float64                  `json:"compression_rate"`
	TotalBytes        int64                    `json:"total_bytes"`
	OriginalBytes     int64                    `json:"original_bytes"`
	TypeDistribution  map[types.MemoryType]int `json:"type_distribution"`
}

// Layer 有界的单作用域记忆存储。
// 条目保存在 arena 切片中，index 维护 ID 到槽位的映射，删除时与末尾交换。
// revs 记录每个条目最近一次写入的序号，压缩据此识别快照之后被改动的条目。
// mu 只保护 arena/index 的簿记，从不跨越引擎调用。
type Layer struct {
	policy  ScopePolicy
	engine  CompressionEngine
	logger  *zap.Logger
	metrics *metrics.Collector
	project string
	now     func() time.Time

	mu    sync.RWMutex
	items []*types.MemoryItem
	index map[string]int
	revs  map[string]uint64
	seq   uint64
}

// LayerOption 配置 Layer
type LayerOption func(*Layer)

// WithClock 替换时钟
func WithClock(now func() time.Time) LayerOption {
	return func(l *Layer) {
		if now != nil {
			l.now = now
		}
	}
}

// WithMetrics 设置 Prometheus 指标收集器
func WithMetrics(c *metrics.Collector) LayerOption {
	return func(l *Layer) { l.metrics = c }
}

// WithProjectLabel 设置指标与日志中的项目标签
func WithProjectLabel(projectID string) LayerOption {
	return func(l *Layer) { l.project = projectID }
}

// NewLayer 创建记忆层
func NewLayer(policy ScopePolicy, engine CompressionEngine, logger *zap.Logger, opts ...LayerOption) *Layer {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Layer{
		policy: policy,
		engine: engine,
		now:    time.Now,
		index:  make(map[string]int),
		revs:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logger.With(
		zap.String("component", "memory_layer"),
		zap.String("scope", policy.Scope.String()),
	)
	if l.project != "" {
		l.logger = l.logger.With(zap.String("project_id", l.project))
	}
	l.metrics.RecordCapacity(policy.Scope.String(), policy.Capacity)
	return l
}

// Scope 返回层的作用域
func (l *Layer) Scope() types.MemoryScope { return l.policy.Scope }

// Policy 返回层的策略
func (l *Layer) Policy() ScopePolicy { return l.policy }

// Count 返回当前条目数
func (l *Layer) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// =============================================================================
// ✏️ 写入
// =============================================================================

// Add 插入条目。nil、缺少 ID 或项目、作用域不符、ID 重复时返回 false。
// 层已满时先执行策略的回收钩子，仍满则压缩；压缩后仍满且不允许溢出时拒绝。
func (l *Layer) Add(ctx context.Context, item *types.MemoryItem) bool {
	if err := l.validate(item); err != nil {
		l.logFault("add", err)
		return false
	}

	c := item.Clone()
	l.prepare(c)

	l.mu.Lock()
	if _, dup := l.index[c.ID]; dup {
		l.mu.Unlock()
		l.logFault("add", types.NewError(types.ErrDuplicateMemory, "duplicate memory id "+c.ID).WithScope(l.policy.Scope))
		return false
	}
	if !l.fullLocked() {
		l.insertLocked(c)
		n := len(l.items)
		l.mu.Unlock()
		l.afterWrite("add", n)
		return true
	}
	l.mu.Unlock()

	l.makeRoom(ctx)

	l.mu.Lock()
	if _, dup := l.index[c.ID]; dup {
		l.mu.Unlock()
		l.logFault("add", types.NewError(types.ErrDuplicateMemory, "duplicate memory id "+c.ID).WithScope(l.policy.Scope))
		return false
	}
	if l.fullLocked() && !l.policy.AllowOverflow {
		n := len(l.items)
		l.mu.Unlock()
		l.logFault("add", types.NewError(types.ErrCapacityExceeded, "layer still full after compression").WithScope(l.policy.Scope))
		l.metrics.RecordItems(l.policy.Scope.String(), l.project, n)
		return false
	}
	l.insertLocked(c)
	n := len(l.items)
	l.mu.Unlock()

	l.afterWrite("add", n)
	return true
}

// makeRoom 先走廉价的回收路径，仍满时压缩
func (l *Layer) makeRoom(ctx context.Context) {
	if l.policy.Reclaim != nil {
		removed := l.reclaim()
		if removed > 0 {
			l.mu.RLock()
			full := l.fullLocked()
			l.mu.RUnlock()
			if !full {
				return
			}
		}
	}

	res := l.Compress(ctx)
	if !res.Success {
		l.logger.Warn("compression before insert failed", zap.String("error", res.Error))
	}
}

func (l *Layer) reclaim() int {
	l.mu.Lock()
	ids := l.policy.Reclaim(l.now(), l.items)
	removed := 0
	for _, id := range ids {
		if l.removeLocked(id) {
			removed++
		}
	}
	n := len(l.items)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Debug("reclaimed items before compression", zap.Int("removed", removed))
		l.metrics.RecordReclaim(l.policy.Scope.String(), removed)
		l.metrics.RecordItems(l.policy.Scope.String(), l.project, n)
	}
	return removed
}

// Update 按 ID 替换条目，ID 不存在时返回 false。
// 内容变化时经引擎重新提取标签，重要性 <= 0 时经引擎重新评估，
// 并重新应用类别的下限与上限。引擎失败时退回调用方提供的值。
func (l *Layer) Update(ctx context.Context, item *types.MemoryItem) bool {
	if item == nil || item.ID == "" {
		l.logFault("update", types.NewError(types.ErrInvalidMemory, "update requires an item with id"))
		return false
	}
	if item.Scope != l.policy.Scope {
		l.logFault("update", types.NewError(types.ErrScopeMismatch, "item scope "+item.Scope.String()).WithScope(l.policy.Scope))
		return false
	}

	l.mu.RLock()
	idx, ok := l.index[item.ID]
	var old *types.MemoryItem
	if ok {
		old = l.items[idx].Clone()
	}
	l.mu.RUnlock()
	if !ok {
		l.logFault("update", types.NewError(types.ErrMemoryNotFound, "memory "+item.ID+" not found").WithScope(l.policy.Scope))
		return false
	}

	u := item.Clone()
	if u.ProjectID == "" {
		u.ProjectID = old.ProjectID
	}

	if u.Content != old.Content {
		l.rederive(ctx, u, old)
	} else {
		u.Tags = types.MergeSet(l.categoryTags(u, old), u.Tags...)
		if u.ImportanceScore <= 0 {
			u.ImportanceScore = old.ImportanceScore
		}
		if u.OriginalLength <= 0 {
			u.OriginalLength = old.OriginalLength
		}
	}
	l.policy.Normalize(u)

	l.mu.Lock()
	idx, ok = l.index[u.ID]
	if !ok {
		l.mu.Unlock()
		l.logFault("update", types.NewError(types.ErrMemoryNotFound, "memory "+u.ID+" removed during update").WithScope(l.policy.Scope))
		return false
	}
	live := l.items[idx]
	u.CreatedAt = live.CreatedAt
	u.AccessCount = live.AccessCount
	u.LastAccessedAt = live.LastAccessedAt
	l.items[idx] = u
	l.bumpLocked(u.ID)
	n := len(l.items)
	l.mu.Unlock()

	l.afterWrite("update", n)
	return true
}

// rederive 内容变化后重新推导标签、重要性与压缩状态
func (l *Layer) rederive(ctx context.Context, u, old *types.MemoryItem) {
	categoryTags := l.categoryTags(u, old)

	if kws, err := l.engine.ExtractKeywords(ctx, u.Content, defaultKeywordCount); err != nil {
		l.logFault("update", types.WrapError(err, types.ErrEngineFailure, "extract keywords"))
		u.Tags = types.MergeSet(categoryTags, u.Tags...)
	} else {
		u.Tags = types.MergeSet(categoryTags, kws...)
	}

	if u.ImportanceScore <= 0 {
		score, err := l.engine.EvaluateImportance(ctx, u.Content, u.Type.String())
		if err != nil {
			l.logFault("update", types.WrapError(err, types.ErrEngineFailure, "evaluate importance"))
			score = old.ImportanceScore
		}
		u.ImportanceScore = score
	}

	u.IsCompressed = false
	u.OriginalLength = len(u.Content)
}

// categoryTags 取更新请求中的类别标签；请求未带类别时沿用旧条目的类别，
// 使写入时的重要性下限与上限在更新后仍然生效
func (l *Layer) categoryTags(u, old *types.MemoryItem) []string {
	var tags []string
	for _, t := range u.Tags {
		if l.policy.IsCategoryTag(t) {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		for _, t := range old.Tags {
			if l.policy.IsCategoryTag(t) {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// Remove 删除条目，不存在时返回 false
func (l *Layer) Remove(ctx context.Context, id string) bool {
	l.mu.Lock()
	ok := l.removeLocked(id)
	n := len(l.items)
	l.mu.Unlock()

	if !ok {
		l.logFault("remove", types.NewError(types.ErrMemoryNotFound, "memory "+id+" not found").WithScope(l.policy.Scope))
		return false
	}
	l.afterWrite("remove", n)
	return true
}

// Clear 删除全部条目，返回删除数量
func (l *Layer) Clear(ctx context.Context) int {
	l.mu.Lock()
	n := len(l.items)
	l.items = nil
	l.index = make(map[string]int)
	l.revs = make(map[string]uint64)
	l.mu.Unlock()

	l.afterWrite("clear", 0)
	return n
}

// =============================================================================
// 🔍 读取
// =============================================================================

// Get 命中时增加访问计数并刷新访问时间，返回副本；未命中返回 nil
func (l *Layer) Get(ctx context.Context, id string) *types.MemoryItem {
	l.mu.Lock()
	idx, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		l.metrics.RecordOperation(l.policy.Scope.String(), "get", false)
		return nil
	}
	it := l.items[idx]
	it.AccessCount++
	it.LastAccessedAt = l.now()
	c := it.Clone()
	l.mu.Unlock()

	l.metrics.RecordOperation(l.policy.Scope.String(), "get", true)
	return c
}

// Search 经引擎对快照排序，并为返回的条目更新访问统计。引擎失败时返回空结果。
func (l *Layer) Search(ctx context.Context, query string, maxResults int) []*types.MemoryItem {
	return l.search(ctx, query, maxResults, nil)
}

// SearchIn 只在位置内的条目中检索
func (l *Layer) SearchIn(ctx context.Context, loc Location, query string, maxResults int) []*types.MemoryItem {
	return l.search(ctx, query, maxResults, loc.Matches)
}

func (l *Layer) search(ctx context.Context, query string, maxResults int, keep func(*types.MemoryItem) bool) []*types.MemoryItem {
	if maxResults <= 0 {
		return []*types.MemoryItem{}
	}

	var snapshot []*types.MemoryItem
	if keep == nil {
		snapshot = l.snapshot()
	} else {
		snapshot = l.filter(keep)
	}
	if len(snapshot) == 0 {
		return []*types.MemoryItem{}
	}

	ranked, err := l.engine.OptimizeRetrieval(ctx, query, snapshot, maxResults)
	if err != nil {
		l.logFault("search", types.WrapError(err, types.ErrEngineFailure, "optimize retrieval"))
		return []*types.MemoryItem{}
	}

	now := l.now()
	out := make([]*types.MemoryItem, 0, min(len(ranked), maxResults))
	seen := make(map[string]struct{}, len(ranked))

	l.mu.Lock()
	for _, r := range ranked {
		if r == nil || len(out) >= maxResults {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		idx, ok := l.index[r.ID]
		if !ok {
			continue
		}
		seen[r.ID] = struct{}{}
		it := l.items[idx]
		it.AccessCount++
		it.LastAccessedAt = now
		out = append(out, it.Clone())
	}
	l.mu.Unlock()

	l.metrics.RecordOperation(l.policy.Scope.String(), "search", true)
	return out
}

// GetAllMemories 返回全部条目的副本
func (l *Layer) GetAllMemories() []*types.MemoryItem {
	return l.snapshot()
}

// GetByImportance 返回重要性在 [minImportance, maxImportance] 内的条目，按重要性降序。
// maxImportance <= 0 表示不设上限。
func (l *Layer) GetByImportance(minImportance, maxImportance int) []*types.MemoryItem {
	if maxImportance <= 0 {
		maxImportance = types.MaxImportance
	}
	out := l.filter(func(it *types.MemoryItem) bool {
		return it.ImportanceScore >= minImportance && it.ImportanceScore <= maxImportance
	})
	sortByImportance(out)
	return out
}

// GetByType 返回指定类型的条目，按重要性降序，最多 maxResults 个（<= 0 表示不限）
func (l *Layer) GetByType(t types.MemoryType, maxResults int) []*types.MemoryItem {
	out := l.filter(func(it *types.MemoryItem) bool { return it.Type == t })
	sortByImportance(out)
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// GetByTag 返回携带指定标签的条目，按重要性降序
func (l *Layer) GetByTag(tag string) []*types.MemoryItem {
	out := l.filter(func(it *types.MemoryItem) bool { return it.HasTag(tag) })
	sortByImportance(out)
	return out
}

func (l *Layer) snapshot() []*types.MemoryItem {
	items, _ := l.versionedSnapshot()
	return items
}

// versionedSnapshot 返回条目副本以及拍摄时各条目的写入序号
func (l *Layer) versionedSnapshot() ([]*types.MemoryItem, map[string]uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	revs := make(map[string]uint64, len(l.items))
	for _, it := range l.items {
		revs[it.ID] = l.revs[it.ID]
	}
	return types.CloneItems(l.items), revs
}

func (l *Layer) filter(keep func(*types.MemoryItem) bool) []*types.MemoryItem {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*types.MemoryItem, 0)
	for _, it := range l.items {
		if keep(it) {
			out = append(out, it.Clone())
		}
	}
	return out
}

func sortByImportance(items []*types.MemoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ImportanceScore != items[j].ImportanceScore {
			return items[i].ImportanceScore > items[j].ImportanceScore
		}
		return items[i].LastAccessedAt.After(items[j].LastAccessedAt)
	})
}

// =============================================================================
// 🗜️ 压缩与清理
// =============================================================================

// Compress 先让引擎摘要低于压缩阈值的条目，再合并相似条目，
// 校验通过后在锁内替换快照中的条目。失败或结果无效时层内容不变。
func (l *Layer) Compress(ctx context.Context) CompressionResult {
	start := l.now()
	scope := l.policy.Scope.String()

	snapshot, revs := l.versionedSnapshot()
	result := CompressionResult{OriginalCount: len(snapshot)}
	if len(snapshot) == 0 {
		result.Success = true
		result.Duration = l.now().Sub(start)
		return result
	}

	fail := func(err error) CompressionResult {
		l.logFault("compress", err)
		result.Error = err.Error()
		result.CompressedCount = len(snapshot)
		result.Duration = l.now().Sub(start)
		l.metrics.RecordCompression(scope, false, 0, result.Duration)
		return result
	}

	compressed, err := l.engine.CompressLowImportance(ctx, snapshot, l.policy.CompressionThreshold)
	if err != nil {
		return fail(types.WrapError(err, types.ErrCompressionFailed, "compress low importance"))
	}
	merged, err := l.engine.MergeSimilarMemories(ctx, compressed, l.policy.SimilarityThreshold)
	if err != nil {
		return fail(types.WrapError(err, types.ErrCompressionFailed, "merge similar memories"))
	}
	if err := l.validateResult(snapshot, merged); err != nil {
		return fail(err)
	}

	accepted, replaced, err := l.reconcile(snapshot, revs, merged)
	if err != nil {
		return fail(err)
	}

	var before, after int64
	for _, it := range snapshot {
		if _, ok := replaced[it.ID]; ok {
			before += int64(len(it.Content))
		}
	}
	for _, it := range accepted {
		after += int64(len(it.Content))
	}

	result.Success = true
	result.CompressedCount = len(accepted)
	result.FreedBytes = max(before-after, 0)
	result.Duration = l.now().Sub(start)

	l.logger.Info("layer compressed",
		zap.Int("original_count", result.OriginalCount),
		zap.Int("compressed_count", result.CompressedCount),
		zap.Int64("freed_bytes", result.FreedBytes),
		zap.Duration("duration", result.Duration),
	)
	l.metrics.RecordCompression(scope, true, result.FreedBytes, result.Duration)
	l.metrics.RecordItems(scope, l.project, l.Count())
	return result
}

// validateResult 拒绝增加条目数或总字节数、ID 重复或作用域不符的结果
func (l *Layer) validateResult(before, after []*types.MemoryItem) error {
	invalid := func(msg string) error {
		return types.NewError(types.ErrInvalidEngineData, msg).WithScope(l.policy.Scope)
	}

	if len(after) > len(before) {
		return invalid("engine increased item count")
	}

	var sizeBefore, sizeAfter int
	for _, it := range before {
		sizeBefore += len(it.Content)
	}
	seen := make(map[string]struct{}, len(after))
	for _, it := range after {
		if it == nil || it.ID == "" {
			return invalid("engine returned an item without id")
		}
		if _, dup := seen[it.ID]; dup {
			return invalid("engine returned duplicate id " + it.ID)
		}
		seen[it.ID] = struct{}{}
		if it.Scope != l.policy.Scope {
			return invalid("engine changed item scope")
		}
		if it.ProjectID == "" {
			return invalid("engine returned an item without project id")
		}
		sizeAfter += len(it.Content)
	}
	if sizeAfter > sizeBefore {
		return invalid("engine increased total content size")
	}
	return nil
}

// reconcile 在锁内把引擎结果合并回层。快照之后被更新或删除的条目以层内现状为准：
// 结果与快照一一对应时只丢弃这些条目对应的结果；结果发生了折叠时无法判断
// 改动过的条目并入了哪一条摘要，整个结果作废，层内容不变。
// 返回被接受的结果条目与被替换的快照 ID。
func (l *Layer) reconcile(snapshot []*types.MemoryItem, revs map[string]uint64, result []*types.MemoryItem) ([]*types.MemoryItem, map[string]struct{}, error) {
	returned := make(map[string]struct{}, len(result))
	for _, it := range result {
		returned[it.ID] = struct{}{}
	}
	folded := false
	for _, it := range snapshot {
		if _, ok := returned[it.ID]; !ok {
			folded = true
			break
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	changed := make(map[string]struct{})
	for id, rev := range revs {
		if cur, live := l.revs[id]; !live || cur != rev {
			changed[id] = struct{}{}
		}
	}
	if folded && len(changed) > 0 {
		return nil, nil, types.NewError(types.ErrConcurrentUpdate,
			fmt.Sprintf("%d items changed while the engine folded the layer", len(changed))).
			WithRetryable(true).
			WithScope(l.policy.Scope)
	}

	replaced := make(map[string]struct{}, len(revs))
	for id := range revs {
		if _, ok := changed[id]; !ok {
			replaced[id] = struct{}{}
		}
	}

	accepted := make([]*types.MemoryItem, 0, len(result))
	for _, it := range result {
		if _, fromSnapshot := revs[it.ID]; fromSnapshot {
			if _, conflict := changed[it.ID]; conflict {
				continue
			}
		} else if _, live := l.index[it.ID]; live {
			continue
		}
		c := it.Clone()
		if c.OriginalLength <= 0 {
			c.OriginalLength = len(c.Content)
		}
		// 引擎运行期间的读取只改访问统计，不算冲突
		if idx, live := l.index[c.ID]; live {
			cur := l.items[idx]
			if cur.AccessCount > c.AccessCount {
				c.AccessCount = cur.AccessCount
			}
			if cur.LastAccessedAt.After(c.LastAccessedAt) {
				c.LastAccessedAt = cur.LastAccessedAt
			}
		}
		l.policy.Normalize(c)
		accepted = append(accepted, c)
	}

	next := make([]*types.MemoryItem, 0, len(accepted)+len(l.items))
	next = append(next, accepted...)
	for _, it := range l.items {
		if _, ok := replaced[it.ID]; !ok {
			next = append(next, it)
		}
	}

	l.items = next
	l.index = make(map[string]int, len(next))
	for i, it := range next {
		l.index[it.ID] = i
	}
	for id := range replaced {
		delete(l.revs, id)
	}
	for _, it := range accepted {
		l.bumpLocked(it.ID)
	}
	return accepted, replaced, nil
}

// CleanupExpired 删除重要性低于高重要性阈值、且创建与最后访问都早于保留期的条目
func (l *Layer) CleanupExpired(ctx context.Context, retentionDays int) int {
	if retentionDays < 0 {
		l.logFault("cleanup", types.NewError(types.ErrInvalidMemory, "negative retention days"))
		return 0
	}
	cutoff := l.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	l.mu.Lock()
	var expired []string
	for _, it := range l.items {
		if it.ImportanceScore < l.policy.HighImportanceThreshold &&
			it.LastAccessedAt.Before(cutoff) &&
			it.CreatedAt.Before(cutoff) {
			expired = append(expired, it.ID)
		}
	}
	for _, id := range expired {
		l.removeLocked(id)
	}
	n := len(l.items)
	l.mu.Unlock()

	if len(expired) > 0 {
		l.logger.Info("expired items removed",
			zap.Int("removed", len(expired)),
			zap.Int("retention_days", retentionDays),
		)
	}
	l.metrics.RecordCleanup(l.policy.Scope.String(), len(expired))
	l.metrics.RecordItems(l.policy.Scope.String(), l.project, n)
	return len(expired)
}

// GetStatistics 返回层统计信息
func (l *Layer) GetStatistics() LayerStatistics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := LayerStatistics{
		Scope:            l.policy.Scope,
		Count:            len(l.items),
		Capacity:         l.policy.Capacity,
		TypeDistribution: make(map[types.MemoryType]int),
	}

	var importance int
	for _, it := range l.items {
		importance += it.ImportanceScore
		if it.IsCompressed {
			stats.CompressedCount++
		}
		stats.TotalBytes += int64(len(it.Content))
		stats.OriginalBytes += int64(originalLength(it))
		stats.TypeDistribution[it.Type]++
	}
	if stats.Capacity > 0 {
		stats.Utilization = float64(stats.Count) / float64(stats.Capacity)
	}
	if stats.Count > 0 {
		stats.AverageImportance = float64(importance) / float64(stats.Count)
		stats.CompressionRate = float64(stats.CompressedCount) / float64(stats.Count)
	}
	return stats
}

// =============================================================================
// 🔧 内部簿记
// =============================================================================

const defaultKeywordCount = 10

func (l *Layer) validate(item *types.MemoryItem) error {
	switch {
	case item == nil:
		return types.NewError(types.ErrInvalidMemory, "nil memory item")
	case item.ID == "":
		return types.NewError(types.ErrInvalidMemory, "memory item without id")
	case item.ProjectID == "":
		return types.NewError(types.ErrInvalidMemory, "memory item without project id")
	case item.Scope != l.policy.Scope:
		return types.NewError(types.ErrScopeMismatch, "item scope "+item.Scope.String()).WithScope(l.policy.Scope)
	}
	return nil
}

// prepare 补齐时间戳与原始长度，应用类别规则
func (l *Layer) prepare(c *types.MemoryItem) {
	now := l.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.LastAccessedAt.IsZero() {
		c.LastAccessedAt = c.CreatedAt
	}
	if c.OriginalLength <= 0 {
		c.OriginalLength = len(c.Content)
	}
	l.policy.Normalize(c)
}

func (l *Layer) fullLocked() bool {
	return l.policy.Capacity > 0 && len(l.items) >= l.policy.Capacity
}

func (l *Layer) insertLocked(c *types.MemoryItem) {
	l.index[c.ID] = len(l.items)
	l.items = append(l.items, c)
	l.bumpLocked(c.ID)
}

func (l *Layer) bumpLocked(id string) {
	l.seq++
	l.revs[id] = l.seq
}

// removeLocked 与末尾交换后删除
func (l *Layer) removeLocked(id string) bool {
	idx, ok := l.index[id]
	if !ok {
		return false
	}
	last := len(l.items) - 1
	if idx != last {
		l.items[idx] = l.items[last]
		l.index[l.items[idx].ID] = idx
	}
	l.items[last] = nil
	l.items = l.items[:last]
	delete(l.index, id)
	delete(l.revs, id)
	return true
}

func (l *Layer) afterWrite(op string, count int) {
	scope := l.policy.Scope.String()
	l.metrics.RecordOperation(scope, op, true)
	l.metrics.RecordItems(scope, l.project, count)
}

// logFault 记录被降级处理的故障
func (l *Layer) logFault(op string, err error) {
	l.metrics.RecordOperation(l.policy.Scope.String(), op, false)
	l.logger.Warn("memory operation degraded",
		zap.String("op", op),
		zap.String("code", string(types.GetErrorCode(err))),
		zap.Error(err),
	)
}

func originalLength(it *types.MemoryItem) int {
	if it.OriginalLength > 0 {
		return it.OriginalLength
	}
	return len(it.Content)
}

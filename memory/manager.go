package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/novelmemory/config"
	"github.com/BaSui01/novelmemory/internal/metrics"
	"github.com/BaSui01/novelmemory/tokenizer"
	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 🗂️ 记忆管理器
// =============================================================================

// defaultImportance 引擎无法评估时使用的重要性
const defaultImportance = 5

// ProjectMemory 单个项目的四层记忆
type ProjectMemory struct {
	Global    *GlobalMemory
	Volume    *VolumeMemory
	Chapter   *ChapterMemory
	Paragraph *ParagraphMemory
}

// Layer 返回作用域对应的层，未知作用域返回 nil
func (p *ProjectMemory) Layer(scope types.MemoryScope) *Layer {
	switch scope {
	case types.ScopeGlobal:
		return p.Global.Layer
	case types.ScopeVolume:
		return p.Volume.Layer
	case types.ScopeChapter:
		return p.Chapter.Layer
	case types.ScopeParagraph:
		return p.Paragraph.Layer
	default:
		return nil
	}
}

// Layers 按从宽到窄的顺序返回四层
func (p *ProjectMemory) Layers() []*Layer {
	return []*Layer{p.Global.Layer, p.Volume.Layer, p.Chapter.Layer, p.Paragraph.Layer}
}

// MemoryUpdate 写入请求
type MemoryUpdate struct {
	Content     string            `json:"content" yaml:"content"`
	Importance  int               `json:"importance,omitempty" yaml:"importance,omitempty"`
	Scope       types.MemoryScope `json:"scope" yaml:"scope"`
	ProjectID   string            `json:"project_id" yaml:"project_id"`
	VolumeID    string            `json:"volume_id,omitempty" yaml:"volume_id,omitempty"`
	ChapterID   string            `json:"chapter_id,omitempty" yaml:"chapter_id,omitempty"`
	ContentType string            `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Manager 按项目持有四层记忆，并严格按请求的作用域路由，不做跨层级联
type Manager struct {
	cfg       config.MemoryConfig
	engine    CompressionEngine
	logger    *zap.Logger
	metrics   *metrics.Collector
	tokenizer tokenizer.Tokenizer
	now       func() time.Time

	mu       sync.RWMutex
	projects map[string]*ProjectMemory
}

// ManagerOption 配置 Manager
type ManagerOption func(*Manager)

// WithManagerClock 替换管理器及其各层的时钟
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithManagerMetrics 为所有层设置指标收集器
func WithManagerMetrics(c *metrics.Collector) ManagerOption {
	return func(m *Manager) { m.metrics = c }
}

// WithTokenizer 设置上下文预算使用的分词器
func WithTokenizer(t tokenizer.Tokenizer) ManagerOption {
	return func(m *Manager) {
		if t != nil {
			m.tokenizer = t
		}
	}
}

// NewManager 创建记忆管理器
func NewManager(cfg config.MemoryConfig, engine CompressionEngine, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:       cfg,
		engine:    engine,
		logger:    logger,
		tokenizer: tokenizer.ForModel(""),
		now:       time.Now,
		projects:  make(map[string]*ProjectMemory),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logger.With(zap.String("component", "memory_manager"))
	return m
}

// Config 返回管理器配置
func (m *Manager) Config() config.MemoryConfig { return m.cfg }

// project 返回项目记忆，不存在时创建
func (m *Manager) project(projectID string) *ProjectMemory {
	m.mu.RLock()
	pm, ok := m.projects[projectID]
	m.mu.RUnlock()
	if ok {
		return pm
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if pm, ok := m.projects[projectID]; ok {
		return pm
	}

	opts := []LayerOption{
		WithClock(m.now),
		WithMetrics(m.metrics),
		WithProjectLabel(projectID),
	}
	pm = &ProjectMemory{
		Global:    NewGlobalMemory(GlobalPolicy(m.cfg), m.cfg.Consistency, m.engine, m.logger, opts...),
		Volume:    NewVolumeMemory(VolumePolicy(m.cfg), m.engine, m.logger, opts...),
		Chapter:   NewChapterMemory(ChapterPolicy(m.cfg), m.engine, m.logger, opts...),
		Paragraph: NewParagraphMemory(ParagraphPolicy(m.cfg), m.engine, m.logger, opts...),
	}
	m.projects[projectID] = pm

	m.logger.Info("project memory created", zap.String("project_id", projectID))
	return pm
}

// lookup 返回已存在的项目记忆
func (m *Manager) lookup(projectID string) (*ProjectMemory, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pm, ok := m.projects[projectID]
	return pm, ok
}

// Project 返回项目的四层记忆，不存在时创建；projectID 为空时返回 nil
func (m *Manager) Project(projectID string) *ProjectMemory {
	if strings.TrimSpace(projectID) == "" {
		return nil
	}
	return m.project(projectID)
}

// Global 返回项目的全局层
func (m *Manager) Global(projectID string) *GlobalMemory {
	if pm := m.Project(projectID); pm != nil {
		return pm.Global
	}
	return nil
}

// Volume 返回项目的卷层
func (m *Manager) Volume(projectID string) *VolumeMemory {
	if pm := m.Project(projectID); pm != nil {
		return pm.Volume
	}
	return nil
}

// Chapter 返回项目的章节层
func (m *Manager) Chapter(projectID string) *ChapterMemory {
	if pm := m.Project(projectID); pm != nil {
		return pm.Chapter
	}
	return nil
}

// Paragraph 返回项目的段落层
func (m *Manager) Paragraph(projectID string) *ParagraphMemory {
	if pm := m.Project(projectID); pm != nil {
		return pm.Paragraph
	}
	return nil
}

// Projects 返回已创建的项目 ID，按字典序
func (m *Manager) Projects() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.projects))
	for id := range m.projects {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// RemoveProject 丢弃项目的全部记忆
func (m *Manager) RemoveProject(projectID string) bool {
	m.mu.Lock()
	pm, ok := m.projects[projectID]
	delete(m.projects, projectID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	// 刷新指标中的条目数
	ctx := context.Background()
	for _, l := range pm.Layers() {
		l.Clear(ctx)
	}
	m.logger.Info("project memory removed", zap.String("project_id", projectID))
	return true
}

// Statistics 返回项目各层的统计信息，项目不存在时返回 nil
func (m *Manager) Statistics(projectID string) map[types.MemoryScope]LayerStatistics {
	pm, ok := m.lookup(projectID)
	if !ok {
		return nil
	}
	out := make(map[types.MemoryScope]LayerStatistics, len(types.AllScopes))
	for _, l := range pm.Layers() {
		out[l.Scope()] = l.GetStatistics()
	}
	return out
}

// =============================================================================
// ✏️ 写入与检索
// =============================================================================

// UpdateMemory 构造条目并写入请求作用域的层。
// 类型由 ContentType 解析，重要性 <= 0 时经引擎评估，提取的关键词追加为标签。
func (m *Manager) UpdateMemory(ctx context.Context, u MemoryUpdate) (string, bool) {
	content := strings.TrimSpace(u.Content)
	switch {
	case content == "":
		m.fault("update_memory", types.NewError(types.ErrInvalidMemory, "empty content"))
		return "", false
	case strings.TrimSpace(u.ProjectID) == "":
		m.fault("update_memory", types.NewError(types.ErrInvalidMemory, "empty project id"))
		return "", false
	case !u.Scope.Valid():
		m.fault("update_memory", types.NewError(types.ErrInvalidMemory, "unknown scope "+u.Scope.String()))
		return "", false
	}
	ctx = types.WithProjectID(ctx, u.ProjectID)

	importance := u.Importance
	if importance <= 0 {
		score, err := m.engine.EvaluateImportance(ctx, content, u.ContentType)
		if err != nil {
			m.fault("update_memory", types.WrapError(err, types.ErrEngineFailure, "evaluate importance"))
			score = defaultImportance
		}
		importance = score
	}

	tags := types.MergeSet(nil, u.Tags...)
	if ct := strings.TrimSpace(u.ContentType); ct != "" {
		tags = types.MergeSet(tags, ct)
	}
	if kws, err := m.engine.ExtractKeywords(ctx, content, defaultKeywordCount); err != nil {
		m.fault("update_memory", types.WrapError(err, types.ErrEngineFailure, "extract keywords"))
	} else {
		tags = types.MergeSet(tags, kws...)
	}

	now := m.now()
	item := &types.MemoryItem{
		ID:              uuid.NewString(),
		Content:         content,
		ImportanceScore: types.ClampImportance(importance),
		Type:            types.ParseMemoryType(u.ContentType),
		Scope:           u.Scope,
		ProjectID:       u.ProjectID,
		VolumeID:        u.VolumeID,
		ChapterID:       u.ChapterID,
		Tags:            tags,
		CreatedAt:       now,
		LastAccessedAt:  now,
		OriginalLength:  len(content),
	}

	if !m.project(u.ProjectID).Layer(u.Scope).Add(ctx, item) {
		return "", false
	}
	return item.ID, true
}

// SearchMemory 只在请求作用域的层中检索；项目不存在或引擎失败时返回空结果
func (m *Manager) SearchMemory(ctx context.Context, query string, scope types.MemoryScope, projectID string, maxResults int) []*types.MemoryItem {
	pm, ok := m.lookup(projectID)
	if !ok {
		return []*types.MemoryItem{}
	}
	l := pm.Layer(scope)
	if l == nil {
		m.fault("search_memory", types.NewError(types.ErrInvalidMemory, "unknown scope "+scope.String()))
		return []*types.MemoryItem{}
	}
	return l.Search(types.WithProjectID(ctx, projectID), query, maxResults)
}

// =============================================================================
// 📦 上下文组装
// =============================================================================

// GetContext 从请求作用域的层并发收集重要条目、任务偏好类型的条目与检索命中，
// 去重后按重要性排序，截断到 MaxItems，再按 token 预算贪心裁剪。
// 任何一路失败都只会让上下文包变小。
func (m *Manager) GetContext(ctx context.Context, req ContextRequest) *ContextBundle {
	bundle := &ContextBundle{
		TaskType:    ParseTaskType(string(req.TaskType)),
		Scope:       req.Scope,
		ProjectID:   req.ProjectID,
		VolumeID:    req.VolumeID,
		ChapterID:   req.ChapterID,
		Items:       []*types.MemoryItem{},
		GeneratedAt: m.now(),
	}

	ctx = types.WithProjectID(ctx, req.ProjectID)
	pm, ok := m.lookup(req.ProjectID)
	if !ok {
		return bundle
	}
	l := pm.Layer(req.Scope)
	if l == nil {
		m.fault("get_context", types.NewError(types.ErrInvalidMemory, "unknown scope "+req.Scope.String()))
		return bundle
	}

	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = m.cfg.ContextMaxItems
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.cfg.ContextMaxTokens
	}
	loc := req.Location()

	var important, preferred, hits []*types.MemoryItem
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		important = l.filterSorted(func(it *types.MemoryItem) bool {
			return it.ImportanceScore >= l.policy.HighImportanceThreshold && loc.Matches(it)
		})
		return nil
	})
	g.Go(func() error {
		wanted := bundle.TaskType.PreferredTypes()
		preferred = l.filterSorted(func(it *types.MemoryItem) bool {
			return loc.Matches(it) && (wanted == nil || slices.Contains(wanted, it.Type))
		})
		return nil
	})
	if q := strings.TrimSpace(req.Query); q != "" {
		g.Go(func() error {
			hits = l.SearchIn(gctx, loc, q, maxItems)
			return nil
		})
	}
	_ = g.Wait()

	merged := dedupe(hits, important, preferred)
	sortByImportance(merged)
	if maxItems > 0 && len(merged) > maxItems {
		merged = merged[:maxItems]
		bundle.Truncated = true
	}

	for _, it := range merged {
		n := tokenizer.MustCount(m.tokenizer, renderLine(it))
		if maxTokens > 0 && bundle.TokenCount+n > maxTokens {
			bundle.Truncated = true
			continue
		}
		bundle.TokenCount += n
		bundle.Items = append(bundle.Items, it)
	}

	m.logger.Debug("context assembled",
		zap.String("project_id", req.ProjectID),
		sessionField(ctx),
		zap.String("scope", req.Scope.String()),
		zap.String("task_type", string(bundle.TaskType)),
		zap.Int("items", len(bundle.Items)),
		zap.Int("tokens", bundle.TokenCount),
		zap.Bool("truncated", bundle.Truncated),
	)
	return bundle
}

// sessionField 把上下文里的写作会话 ID 带进日志
func sessionField(ctx context.Context) zap.Field {
	if sid, ok := types.SessionID(ctx); ok {
		return zap.String("session_id", sid)
	}
	return zap.Skip()
}

func (m *Manager) fault(op string, err error) {
	m.logger.Warn("memory manager operation degraded",
		zap.String("op", op),
		zap.String("code", string(types.GetErrorCode(err))),
		zap.Error(err),
	)
}

// dedupe 按 ID 合并多路结果，保留首次出现的条目
func dedupe(groups ...[]*types.MemoryItem) []*types.MemoryItem {
	seen := make(map[string]struct{})
	var out []*types.MemoryItem
	for _, g := range groups {
		for _, it := range g {
			if it == nil {
				continue
			}
			if _, ok := seen[it.ID]; ok {
				continue
			}
			seen[it.ID] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}

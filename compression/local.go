package compression

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 🧮 本地启发式引擎
// =============================================================================

// LocalConfig 本地引擎配置
type LocalConfig struct {
	// 单条摘要的最大字符数
	SummaryMaxLength int `json:"summary_max_length" yaml:"summary_max_length"`
	// 低重要性条目按批折叠成一条摘要，每批最多的条目数
	DigestBatchSize int `json:"digest_batch_size" yaml:"digest_batch_size"`
	// 关键词默认个数
	DefaultKeywords int `json:"default_keywords" yaml:"default_keywords"`
}

// DefaultLocalConfig 返回默认本地引擎配置
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		SummaryMaxLength: 200,
		DigestBatchSize:  5,
		DefaultKeywords:  10,
	}
}

// LocalEngine 无需模型的确定性引擎
type LocalEngine struct {
	config LocalConfig
	logger *zap.Logger
}

var _ Engine = (*LocalEngine)(nil)

// NewLocalEngine 创建本地引擎
func NewLocalEngine(cfg LocalConfig, logger *zap.Logger) *LocalEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultLocalConfig()
	if cfg.SummaryMaxLength <= 0 {
		cfg.SummaryMaxLength = def.SummaryMaxLength
	}
	if cfg.DigestBatchSize <= 1 {
		cfg.DigestBatchSize = def.DigestBatchSize
	}
	if cfg.DefaultKeywords <= 0 {
		cfg.DefaultKeywords = def.DefaultKeywords
	}
	return &LocalEngine{
		config: cfg,
		logger: logger.With(zap.String("component", "local_engine")),
	}
}

// 重要性线索词
var (
	importanceBoosts = []string{
		"必须", "规则", "法则", "设定", "核心", "关键", "重要", "秘密", "真相",
		"死亡", "身世", "伏笔", "禁忌", "主角", "境界",
	}
	importancePenalties = []string{
		"临时", "暂时", "可能", "也许", "草稿", "备注", "随便",
	}
	contextBoosts = []string{"世界观", "大纲", "主线", "设定", "outline", "world"}
)

// EvaluateImportance 基于长度与线索词估计 1..10 的重要性，hint 为调用方提供的上下文（如内容类别）
func (e *LocalEngine) EvaluateImportance(ctx context.Context, content, hint string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return types.MinImportance, nil
	}

	score := 5
	n := utf8.RuneCountInString(content)
	if n > 100 {
		score++
	}
	if n > 300 {
		score++
	}
	if n < 10 {
		score--
	}

	boost := 0
	for _, w := range importanceBoosts {
		if strings.Contains(content, w) {
			boost++
		}
	}
	score += min(boost, 3)

	for _, w := range importancePenalties {
		if strings.Contains(content, w) {
			score--
		}
	}

	lowerCtx := strings.ToLower(hint)
	for _, w := range contextBoosts {
		if strings.Contains(lowerCtx, w) {
			score++
			break
		}
	}

	return types.ClampImportance(score), nil
}

// ExtractKeywords 提取按词频排序的关键词
func (e *LocalEngine) ExtractKeywords(ctx context.Context, content string, maxKeywords int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxKeywords <= 0 {
		maxKeywords = e.config.DefaultKeywords
	}
	return keywords(content, maxKeywords), nil
}

// CalculateSimilarity 词频余弦相似度
func (e *LocalEngine) CalculateSimilarity(ctx context.Context, a, b string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return textSimilarity(a, b), nil
}

// GenerateSummary 句界摘要
func (e *LocalEngine) GenerateSummary(ctx context.Context, content string, maxLength int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if maxLength <= 0 {
		maxLength = e.config.SummaryMaxLength
	}
	return summarize(content, maxLength), nil
}

// =============================================================================
// 🗜️ 条目级操作
// =============================================================================

type digestKey struct {
	typ       types.MemoryType
	tag       string
	projectID string
	volumeID  string
	chapterID string
}

// CompressLowImportance 处理重要性低于 threshold 的条目：
// 同类型、同主标签、同层级的条目按批折叠为一条摘要，落单的条目单独摘要。
// 其余条目原样返回（克隆），顺序保持首次出现的位置。
func (e *LocalEngine) CompressLowImportance(ctx context.Context, items []*types.MemoryItem, threshold int) ([]*types.MemoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := make(map[digestKey][]*types.MemoryItem)
	for _, it := range items {
		if it == nil || it.ImportanceScore >= threshold {
			continue
		}
		k := digestKey{it.Type, primaryTag(it), it.ProjectID, it.VolumeID, it.ChapterID}
		groups[k] = append(groups[k], it)
	}

	// 每个被折叠条目映射到其批次的代表（批内第一条）
	replacement := make(map[string]*types.MemoryItem)
	absorbed := make(map[string]struct{})
	for _, members := range groups {
		for start := 0; start < len(members); start += e.config.DigestBatchSize {
			end := min(start+e.config.DigestBatchSize, len(members))
			batch := members[start:end]
			if len(batch) == 1 {
				replacement[batch[0].ID] = e.summarizeItem(batch[0])
				continue
			}
			replacement[batch[0].ID] = e.digest(batch)
			for _, m := range batch[1:] {
				absorbed[m.ID] = struct{}{}
			}
		}
	}

	out := make([]*types.MemoryItem, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if _, gone := absorbed[it.ID]; gone {
			continue
		}
		if r, ok := replacement[it.ID]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, it.Clone())
	}

	e.logger.Debug("compressed low importance items",
		zap.Int("before", len(items)),
		zap.Int("after", len(out)),
		zap.Int("threshold", threshold),
	)
	return out, nil
}

func (e *LocalEngine) summarizeItem(it *types.MemoryItem) *types.MemoryItem {
	c := it.Clone()
	if c.OriginalLength <= 0 {
		c.OriginalLength = len(c.Content)
	}
	if s := summarize(c.Content, e.config.SummaryMaxLength); s != c.Content {
		c.Content = s
		c.IsCompressed = true
	}
	return c
}

// digest 把一批条目折叠为一条，保留第一条的 ID
func (e *LocalEngine) digest(batch []*types.MemoryItem) *types.MemoryItem {
	head := batch[0].Clone()

	contents := make([]string, 0, len(batch))
	total := 0
	for _, m := range batch {
		contents = append(contents, strings.TrimSpace(m.Content))
		total += len(m.Content)
	}

	content := summarize(strings.Join(contents, "；"), e.config.SummaryMaxLength)
	if len(content) > total {
		content = summarize(strings.Join(contents, ""), e.config.SummaryMaxLength)
	}
	head.Content = content
	head.IsCompressed = true
	head.OriginalLength = originalLength(batch[0])

	for _, m := range batch[1:] {
		absorb(head, m)
	}
	return head
}

// MergeSimilarMemories 贪心合并：同类型、同主标签、同层级且相似度不低于 threshold 的条目
// 并入先出现者，保留较长的内容。
func (e *LocalEngine) MergeSimilarMemories(ctx context.Context, items []*types.MemoryItem, threshold float64) ([]*types.MemoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	work := types.CloneItems(items)
	vectors := make([]map[string]float64, len(work))
	for i, it := range work {
		vectors[i] = termFrequency(tokenize(it.Content))
	}

	merged := make([]bool, len(work))
	out := make([]*types.MemoryItem, 0, len(work))
	for i, base := range work {
		if merged[i] {
			continue
		}
		for j := i + 1; j < len(work); j++ {
			other := work[j]
			if merged[j] || !sameBucket(base, other) {
				continue
			}
			sim := cosine(vectors[i], vectors[j])
			if base.Content == other.Content {
				sim = 1
			}
			if sim < threshold {
				continue
			}
			merged[j] = true
			if base.OriginalLength <= 0 {
				base.OriginalLength = len(base.Content)
			}
			if len(other.Content) > len(base.Content) {
				base.Content = other.Content
				vectors[i] = vectors[j]
			}
			absorb(base, other)
			base.IsCompressed = true
		}
		out = append(out, base)
	}

	e.logger.Debug("merged similar items",
		zap.Int("before", len(items)),
		zap.Int("after", len(out)),
		zap.Float64("threshold", threshold),
	)
	return out, nil
}

// OptimizeRetrieval 按 0.6·相似度 + 0.3·重要性 + 0.1·标签命中 排序。
// 查询为空时按重要性排序；否则只返回有相关性的条目。
func (e *LocalEngine) OptimizeRetrieval(ctx context.Context, query string, items []*types.MemoryItem, maxResults int) ([]*types.MemoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		return nil, nil
	}

	query = strings.TrimSpace(query)
	qv := termFrequency(tokenize(query))

	type scored struct {
		item  *types.MemoryItem
		score float64
	}
	ranked := make([]scored, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		imp := float64(it.ImportanceScore) / float64(types.MaxImportance)
		if query == "" {
			ranked = append(ranked, scored{it, imp})
			continue
		}
		sim := cosine(qv, termFrequency(tokenize(it.Content)))
		tag := tagMatch(query, it.Tags)
		if sim == 0 && tag == 0 && !strings.Contains(it.Content, query) {
			continue
		}
		ranked = append(ranked, scored{it, 0.6*sim + 0.3*imp + 0.1*tag})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	out := make([]*types.MemoryItem, len(ranked))
	for i, r := range ranked {
		out[i] = r.item.Clone()
	}
	return out, nil
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// primaryTag 返回条目的第一个标签。分层写入的条目以类别标签打头，
// 不同类别的条目因此不会被折叠或合并到一起。
func primaryTag(it *types.MemoryItem) string {
	if len(it.Tags) == 0 {
		return ""
	}
	return it.Tags[0]
}

func sameBucket(a, b *types.MemoryItem) bool {
	return a.Type == b.Type &&
		primaryTag(a) == primaryTag(b) &&
		a.Scope == b.Scope &&
		a.ProjectID == b.ProjectID &&
		a.VolumeID == b.VolumeID &&
		a.ChapterID == b.ChapterID
}

func originalLength(it *types.MemoryItem) int {
	if it.OriginalLength > 0 {
		return it.OriginalLength
	}
	return len(it.Content)
}

// absorb 把 src 的元数据并入 dst
func absorb(dst, src *types.MemoryItem) {
	dst.AddTags(src.Tags...)
	dst.AddRelatedEntities(src.RelatedEntityIDs...)
	dst.AccessCount += src.AccessCount
	dst.OriginalLength += originalLength(src)
	if src.ImportanceScore > dst.ImportanceScore {
		dst.ImportanceScore = src.ImportanceScore
	}
	if !src.CreatedAt.IsZero() && (dst.CreatedAt.IsZero() || src.CreatedAt.Before(dst.CreatedAt)) {
		dst.CreatedAt = src.CreatedAt
	}
	if src.LastAccessedAt.After(dst.LastAccessedAt) {
		dst.LastAccessedAt = src.LastAccessedAt
	}
}

func tagMatch(query string, tags []string) float64 {
	q := strings.ToLower(query)
	for _, t := range tags {
		lt := strings.ToLower(t)
		if lt != "" && (strings.Contains(q, lt) || strings.Contains(lt, q)) {
			return 1
		}
	}
	return 0
}

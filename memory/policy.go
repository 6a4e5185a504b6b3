package memory

import (
	"time"

	"github.com/BaSui01/novelmemory/config"
	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 📐 作用域策略
// =============================================================================

// 类别标签
const (
	// 全局
	TagWorldSetting = "世界观"
	TagCharacter    = "角色"
	TagPlotOutline  = "大纲"
	TagRelationship = "关系"
	// 卷
	TagVolumeOutline        = "卷大纲"
	TagPlotLine             = "情节线"
	TagCharacterDevelopment = "角色发展"
	TagKeyEvent             = "关键事件"
	TagVolumeConnection     = "卷衔接"
	// 章节
	TagChapterContent    = "章节内容"
	TagScene             = "场景"
	TagDialogue          = "对话"
	TagCharacterState    = "角色状态"
	TagChapterConnection = "章节衔接"
	// 段落
	TagParagraphContent = "段落内容"
	TagTemporaryState   = "临时状态"
	TagWritingPrompt    = "写作提示"
	TagDialogueFragment = "对话片段"
	TagSceneDetail      = "场景细节"
)

// Category 声明一个内容类别及其写入时的重要性下限与上限（0 表示不限制）
type Category struct {
	Tag  string
	Type types.MemoryType
	Min  int
	Max  int
}

// Bound 把 score 限制在类别范围内
func (c Category) Bound(score int) int {
	if c.Min > 0 && score < c.Min {
		score = c.Min
	}
	if c.Max > 0 && score > c.Max {
		score = c.Max
	}
	return score
}

// DefaultImportance 调用方未给出重要性时使用的分值
func (c Category) DefaultImportance() int {
	if c.Min > 0 {
		return c.Min
	}
	if c.Max > 0 && c.Max < 5 {
		return c.Max
	}
	return 5
}

// ReclaimFunc 在压缩前挑选可以直接丢弃的条目，返回其 ID。
// items 为层内条目的只读视图，实现不得保留或修改。
type ReclaimFunc func(now time.Time, items []*types.MemoryItem) []string

// ScopePolicy 参数化一个记忆层的容量、阈值与类别规则
type ScopePolicy struct {
	Scope                   types.MemoryScope
	Capacity                int
	CompressionThreshold    int
	HighImportanceThreshold int
	SimilarityThreshold     float64
	AllowOverflow           bool
	Categories              []Category
	Reclaim                 ReclaimFunc
}

// Category 按标签查找类别
func (p ScopePolicy) Category(tag string) (Category, bool) {
	for _, c := range p.Categories {
		if c.Tag == tag {
			return c, true
		}
	}
	return Category{}, false
}

// IsCategoryTag 报告 tag 是否为本策略声明的类别标签
func (p ScopePolicy) IsCategoryTag(tag string) bool {
	_, ok := p.Category(tag)
	return ok
}

// Normalize 对条目携带的每个类别标签应用下限与上限，再限制到 1..10。
// 上限优先于下限。
func (p ScopePolicy) Normalize(item *types.MemoryItem) {
	score := item.ImportanceScore
	floor, ceil := 0, 0
	for _, c := range p.Categories {
		if !item.HasTag(c.Tag) {
			continue
		}
		if c.Min > floor {
			floor = c.Min
		}
		if c.Max > 0 && (ceil == 0 || c.Max < ceil) {
			ceil = c.Max
		}
	}
	if floor > 0 && score < floor {
		score = floor
	}
	if ceil > 0 && score > ceil {
		score = ceil
	}
	item.ImportanceScore = types.ClampImportance(score)
}

// =============================================================================
// 🏗️ 各作用域默认策略
// =============================================================================

func basePolicy(scope types.MemoryScope, sc config.ScopeConfig, mc config.MemoryConfig) ScopePolicy {
	return ScopePolicy{
		Scope:                   scope,
		Capacity:                sc.Capacity,
		CompressionThreshold:    sc.CompressionThreshold,
		HighImportanceThreshold: sc.HighImportanceThreshold,
		SimilarityThreshold:     mc.SimilarityThreshold,
		AllowOverflow:           mc.AllowOverflow,
	}
}

// GlobalPolicy 全局层：条目少而持久
func GlobalPolicy(mc config.MemoryConfig) ScopePolicy {
	p := basePolicy(types.ScopeGlobal, mc.Global, mc)
	p.Categories = []Category{
		{Tag: TagWorldSetting, Type: types.MemoryTypeWorldSetting, Min: 7},
		{Tag: TagCharacter, Type: types.MemoryTypeCharacter, Min: 6},
		{Tag: TagPlotOutline, Type: types.MemoryTypePlot, Min: 8},
		{Tag: TagRelationship, Type: types.MemoryTypeRelationship, Min: 6},
	}
	return p
}

// VolumePolicy 卷层
func VolumePolicy(mc config.MemoryConfig) ScopePolicy {
	p := basePolicy(types.ScopeVolume, mc.Volume, mc)
	p.Categories = []Category{
		{Tag: TagVolumeOutline, Type: types.MemoryTypePlot, Min: 7},
		{Tag: TagPlotLine, Type: types.MemoryTypePlot, Min: 6},
		{Tag: TagCharacterDevelopment, Type: types.MemoryTypeCharacter, Min: 5},
		{Tag: TagKeyEvent, Type: types.MemoryTypeEvent, Min: 6},
		{Tag: TagVolumeConnection, Type: types.MemoryTypeRelationship, Min: 7},
	}
	return p
}

// ChapterPolicy 章节层
func ChapterPolicy(mc config.MemoryConfig) ScopePolicy {
	p := basePolicy(types.ScopeChapter, mc.Chapter, mc)
	p.Categories = []Category{
		{Tag: TagChapterContent, Type: types.MemoryTypeOther},
		{Tag: TagScene, Type: types.MemoryTypeScene},
		{Tag: TagDialogue, Type: types.MemoryTypeDialogue},
		{Tag: TagCharacterState, Type: types.MemoryTypeCharacter},
		{Tag: TagChapterConnection, Type: types.MemoryTypeRelationship, Min: 6},
	}
	return p
}

// ParagraphPolicy 段落层：条目多而短命，压缩前先回收过期的临时状态
func ParagraphPolicy(mc config.MemoryConfig) ScopePolicy {
	p := basePolicy(types.ScopeParagraph, mc.Paragraph, mc)
	p.Categories = []Category{
		{Tag: TagParagraphContent, Type: types.MemoryTypeOther},
		{Tag: TagTemporaryState, Type: types.MemoryTypeSystem, Max: 4},
		{Tag: TagWritingPrompt, Type: types.MemoryTypeSystem, Max: 5},
		{Tag: TagDialogueFragment, Type: types.MemoryTypeDialogue},
		{Tag: TagSceneDetail, Type: types.MemoryTypeScene},
	}
	p.Reclaim = TemporaryStateReclaimer(mc.TemporaryStateMaxAge, TemporaryStateReclaimImportance)
	return p
}

// TemporaryStateReclaimImportance 临时状态可被直接回收的最高重要性
const TemporaryStateReclaimImportance = 3

// TemporaryStateReclaimer 回收创建时间早于 maxAge 且重要性不高于 maxImportance 的临时状态
func TemporaryStateReclaimer(maxAge time.Duration, maxImportance int) ReclaimFunc {
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return func(now time.Time, items []*types.MemoryItem) []string {
		cutoff := now.Add(-maxAge)
		var ids []string
		for _, it := range items {
			if it.HasTag(TagTemporaryState) &&
				it.ImportanceScore <= maxImportance &&
				it.CreatedAt.Before(cutoff) {
				ids = append(ids, it.ID)
			}
		}
		return ids
	}
}

// PolicyFor 按作用域返回策略
func PolicyFor(scope types.MemoryScope, mc config.MemoryConfig) ScopePolicy {
	switch scope {
	case types.ScopeVolume:
		return VolumePolicy(mc)
	case types.ScopeChapter:
		return ChapterPolicy(mc)
	case types.ScopeParagraph:
		return ParagraphPolicy(mc)
	default:
		return GlobalPolicy(mc)
	}
}

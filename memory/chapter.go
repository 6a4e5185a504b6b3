package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 📖 章节记忆
// =============================================================================

// 章节完整性检查项
const (
	CheckMainContent       = "has_main_content"
	CheckEnoughContent     = "has_enough_content"
	CheckScenes            = "has_scenes"
	CheckDialogues         = "has_dialogues"
	CheckCharacterState    = "has_character_state"
	CheckChapterConnection = "has_chapter_connection"
)

// 章节完整性阈值
const (
	minChapterItems    = 5
	minChapterScenes   = 2
	minChapterDialogue = 3
)

// ChapterMemory 章节级的正文、场景、对话、角色状态与章节衔接
type ChapterMemory struct {
	*Layer
}

// NewChapterMemory 创建章节记忆层
func NewChapterMemory(policy ScopePolicy, engine CompressionEngine, logger *zap.Logger, opts ...LayerOption) *ChapterMemory {
	return &ChapterMemory{Layer: NewLayer(policy, engine, logger, opts...)}
}

// AddChapterContent 写入章节正文要点
func (c *ChapterMemory) AddChapterContent(ctx context.Context, loc Location, content string, importance int) (string, bool) {
	return c.addCategorized(ctx, TagChapterContent, loc, content, importance, nil)
}

// AddScene 写入场景
func (c *ChapterMemory) AddScene(ctx context.Context, loc Location, content string, importance int, tags ...string) (string, bool) {
	return c.addCategorized(ctx, TagScene, loc, content, importance, nil, tags...)
}

// AddDialogue 写入对话，关联说话角色
func (c *ChapterMemory) AddDialogue(ctx context.Context, loc Location, speakerID, content string, importance int) (string, bool) {
	return c.addCategorized(ctx, TagDialogue, loc, content, importance, nonEmpty(speakerID))
}

// AddCharacterState 写入角色在本章的状态
func (c *ChapterMemory) AddCharacterState(ctx context.Context, loc Location, characterID, content string, importance int) (string, bool) {
	return c.addCategorized(ctx, TagCharacterState, loc, content, importance, nonEmpty(characterID))
}

// AddChapterConnection 写入与前后章的衔接（重要性不低于 6）
func (c *ChapterMemory) AddChapterConnection(ctx context.Context, loc Location, content string, importance int) (string, bool) {
	return c.addCategorized(ctx, TagChapterConnection, loc, content, importance, nil)
}

// GetChapterItems 章节内全部条目，按重要性降序
func (c *ChapterMemory) GetChapterItems(loc Location) []*types.MemoryItem {
	out := c.InLocation(loc)
	sortByImportance(out)
	return out
}

// GetScenes 章节场景
func (c *ChapterMemory) GetScenes(loc Location) []*types.MemoryItem {
	return c.byTag(TagScene, loc)
}

// GetDialogues 章节对话
func (c *ChapterMemory) GetDialogues(loc Location) []*types.MemoryItem {
	return c.byTag(TagDialogue, loc)
}

// GetCharacterStates 章节角色状态；characterID 为空时返回全部
func (c *ChapterMemory) GetCharacterStates(loc Location, characterID string) []*types.MemoryItem {
	return c.filterSorted(func(it *types.MemoryItem) bool {
		return it.HasTag(TagCharacterState) && loc.Matches(it) &&
			(characterID == "" || hasEntity(it, characterID))
	})
}

// AnalyzeCompleteness 按加权清单评估章节的结构完整性
func (c *ChapterMemory) AnalyzeCompleteness(ctx context.Context, projectID, chapterID string) CompletenessReport {
	items := c.InLocation(Location{ProjectID: projectID, ChapterID: chapterID})

	counts := make(map[string]int)
	for _, it := range items {
		for _, tag := range []string{TagChapterContent, TagScene, TagDialogue, TagCharacterState, TagChapterConnection} {
			if it.HasTag(tag) {
				counts[tag]++
			}
		}
	}

	report := scoreChecklist([]checklistEntry{
		{CheckMainContent, 25, counts[TagChapterContent] > 0, "补充本章主要内容，概括本章发生了什么"},
		{CheckEnoughContent, 20, len(items) >= minChapterItems, fmt.Sprintf("本章只记录了 %d 条内容，建议丰富细节（不少于 %d 条）", len(items), minChapterItems)},
		{CheckScenes, 15, counts[TagScene] >= minChapterScenes, fmt.Sprintf("本章只有 %d 个场景，建议至少安排 %d 个场景", counts[TagScene], minChapterScenes)},
		{CheckDialogues, 15, counts[TagDialogue] >= minChapterDialogue, fmt.Sprintf("本章只有 %d 段对话，建议增加对话以推动情节（不少于 %d 段）", counts[TagDialogue], minChapterDialogue)},
		{CheckCharacterState, 15, counts[TagCharacterState] >= 1, "记录主要角色在本章结束时的状态"},
		{CheckChapterConnection, 10, counts[TagChapterConnection] > 0, "补充与上一章或下一章的衔接，避免情节断裂"},
	})

	c.logger.Debug("chapter completeness analyzed",
		zap.String("project_id", projectID),
		zap.String("chapter_id", chapterID),
		zap.Int("score", report.Score),
	)
	return report
}

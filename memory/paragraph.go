package memory

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// ✍️ 段落记忆
// =============================================================================

// ParagraphMemory 段落级的工作集：正文片段、临时状态、写作提示、对话片段与场景细节。
// 层满时先回收过期的低重要性临时状态，仍满才进入压缩。
type ParagraphMemory struct {
	*Layer
}

// NewParagraphMemory 创建段落记忆层
func NewParagraphMemory(policy ScopePolicy, engine CompressionEngine, logger *zap.Logger, opts ...LayerOption) *ParagraphMemory {
	return &ParagraphMemory{Layer: NewLayer(policy, engine, logger, opts...)}
}

// AddParagraphContent 写入段落内容
func (p *ParagraphMemory) AddParagraphContent(ctx context.Context, loc Location, content string, importance int) (string, bool) {
	return p.addCategorized(ctx, TagParagraphContent, loc, content, importance, nil)
}

// AddTemporaryState 写入临时状态（重要性不高于 4）
func (p *ParagraphMemory) AddTemporaryState(ctx context.Context, loc Location, content string, importance int) (string, bool) {
	return p.addCategorized(ctx, TagTemporaryState, loc, content, importance, nil)
}

// AddWritingPrompt 写入写作提示（重要性不高于 5）
func (p *ParagraphMemory) AddWritingPrompt(ctx context.Context, loc Location, content string, importance int) (string, bool) {
	return p.addCategorized(ctx, TagWritingPrompt, loc, content, importance, nil)
}

// AddDialogueFragment 写入对话片段
func (p *ParagraphMemory) AddDialogueFragment(ctx context.Context, loc Location, speakerID, content string, importance int) (string, bool) {
	return p.addCategorized(ctx, TagDialogueFragment, loc, content, importance, nonEmpty(speakerID))
}

// AddSceneDetail 写入场景细节
func (p *ParagraphMemory) AddSceneDetail(ctx context.Context, loc Location, content string, importance int) (string, bool) {
	return p.addCategorized(ctx, TagSceneDetail, loc, content, importance, nil)
}

// GetTemporaryStates 位置内的临时状态
func (p *ParagraphMemory) GetTemporaryStates(loc Location) []*types.MemoryItem {
	return p.byTag(TagTemporaryState, loc)
}

// GetWritingPrompts 位置内的写作提示
func (p *ParagraphMemory) GetWritingPrompts(loc Location) []*types.MemoryItem {
	return p.byTag(TagWritingPrompt, loc)
}

// ClearTemporaryStates 删除位置内的全部临时状态，返回删除数量
func (p *ParagraphMemory) ClearTemporaryStates(ctx context.Context, loc Location) int {
	p.mu.Lock()
	var ids []string
	for _, it := range p.items {
		if it.HasTag(TagTemporaryState) && loc.Matches(it) {
			ids = append(ids, it.ID)
		}
	}
	for _, id := range ids {
		p.removeLocked(id)
	}
	n := len(p.items)
	p.mu.Unlock()

	if len(ids) > 0 {
		p.logger.Debug("temporary states cleared", zap.Int("removed", len(ids)))
	}
	p.afterWrite("clear_temporary", n)
	return len(ids)
}

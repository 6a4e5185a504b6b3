package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/config"
	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 🌍 全局记忆
// =============================================================================

// ConsistencyResult 一致性检查结果
type ConsistencyResult struct {
	IsConsistent     bool                `json:"is_consistent"`
	ConflictingItems []*types.MemoryItem `json:"conflicting_items,omitempty"`
	Suggestions      []string            `json:"suggestions,omitempty"`
	Error            string              `json:"error,omitempty"`
}

// GlobalMemory 项目级的世界观、角色、大纲与关系
type GlobalMemory struct {
	*Layer
	consistency config.ConsistencyConfig
}

// NewGlobalMemory 创建全局记忆层
func NewGlobalMemory(policy ScopePolicy, consistency config.ConsistencyConfig, engine CompressionEngine, logger *zap.Logger, opts ...LayerOption) *GlobalMemory {
	return &GlobalMemory{
		Layer:       NewLayer(policy, engine, logger, opts...),
		consistency: consistency,
	}
}

// AddWorldSetting 写入世界观设定（重要性不低于 7）
func (g *GlobalMemory) AddWorldSetting(ctx context.Context, projectID, content string, importance int, tags ...string) (string, bool) {
	return g.addCategorized(ctx, TagWorldSetting, Location{ProjectID: projectID}, content, importance, nil, tags...)
}

// AddCharacterProfile 写入角色档案（重要性不低于 6），关联角色 ID
func (g *GlobalMemory) AddCharacterProfile(ctx context.Context, projectID, characterID, content string, importance int, tags ...string) (string, bool) {
	return g.addCategorized(ctx, TagCharacter, Location{ProjectID: projectID}, content, importance, nonEmpty(characterID), tags...)
}

// AddPlotOutline 写入全书大纲（重要性不低于 8）
func (g *GlobalMemory) AddPlotOutline(ctx context.Context, projectID, content string, importance int, tags ...string) (string, bool) {
	return g.addCategorized(ctx, TagPlotOutline, Location{ProjectID: projectID}, content, importance, nil, tags...)
}

// AddRelationship 写入两个角色之间的关系（重要性不低于 6）
func (g *GlobalMemory) AddRelationship(ctx context.Context, projectID, characterA, characterB, content string, importance int) (string, bool) {
	return g.addCategorized(ctx, TagRelationship, Location{ProjectID: projectID}, content, importance, nonEmpty(characterA, characterB))
}

// GetWorldSettings 项目的世界观设定
func (g *GlobalMemory) GetWorldSettings(projectID string) []*types.MemoryItem {
	return g.byTag(TagWorldSetting, Location{ProjectID: projectID})
}

// GetCharacters 项目的角色档案
func (g *GlobalMemory) GetCharacters(projectID string) []*types.MemoryItem {
	return g.byTag(TagCharacter, Location{ProjectID: projectID})
}

// GetCharacterProfile 关联到指定角色的档案
func (g *GlobalMemory) GetCharacterProfile(projectID, characterID string) []*types.MemoryItem {
	return g.filterSorted(func(it *types.MemoryItem) bool {
		return it.ProjectID == projectID && it.HasTag(TagCharacter) && hasEntity(it, characterID)
	})
}

// GetPlotOutlines 项目的大纲
func (g *GlobalMemory) GetPlotOutlines(projectID string) []*types.MemoryItem {
	return g.byTag(TagPlotOutline, Location{ProjectID: projectID})
}

// GetRelationships 与指定角色相关的关系；characterID 为空时返回全部
func (g *GlobalMemory) GetRelationships(projectID, characterID string) []*types.MemoryItem {
	return g.filterSorted(func(it *types.MemoryItem) bool {
		return it.ProjectID == projectID && it.HasTag(TagRelationship) &&
			(characterID == "" || hasEntity(it, characterID))
	})
}

// CheckConsistency 检查新内容是否与已有世界观或角色设定冲突。
// 与候选条目相似度高于 CandidateSimilarity 时比较关键词：
// 共享关键词不少于 MinSharedKeywords 且相似度低于 ConflictSimilarity 视为冲突。
// 引擎失败时返回 IsConsistent=false 并填写 Error。
func (g *GlobalMemory) CheckConsistency(ctx context.Context, projectID, newContent string) ConsistencyResult {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return ConsistencyResult{IsConsistent: true}
	}

	candidates := g.filter(func(it *types.MemoryItem) bool {
		if it.ProjectID != projectID {
			return false
		}
		return it.Type == types.MemoryTypeWorldSetting || it.Type == types.MemoryTypeCharacter ||
			it.HasTag(TagWorldSetting) || it.HasTag(TagCharacter)
	})
	if len(candidates) == 0 {
		return ConsistencyResult{IsConsistent: true}
	}

	engineFault := func(err error) ConsistencyResult {
		g.logFault("check_consistency", types.WrapError(err, types.ErrEngineFailure, "consistency check"))
		return ConsistencyResult{IsConsistent: false, Error: err.Error()}
	}

	cc := g.consistency
	newKeywords, err := g.engine.ExtractKeywords(ctx, newContent, cc.KeywordCount)
	if err != nil {
		return engineFault(err)
	}

	result := ConsistencyResult{IsConsistent: true}
	for _, cand := range candidates {
		sim, err := g.engine.CalculateSimilarity(ctx, cand.Content, newContent)
		if err != nil {
			return engineFault(err)
		}
		if sim <= cc.CandidateSimilarity {
			continue
		}

		keywords, err := g.engine.ExtractKeywords(ctx, cand.Content, cc.KeywordCount)
		if err != nil {
			return engineFault(err)
		}
		shared := intersect(newKeywords, keywords)
		if len(shared) >= cc.MinSharedKeywords && sim < cc.ConflictSimilarity {
			result.IsConsistent = false
			result.ConflictingItems = append(result.ConflictingItems, cand)
			result.Suggestions = append(result.Suggestions, fmt.Sprintf(
				"新内容与已有设定「%s」共享关键词（%s）但描述差异较大（相似度 %.2f），请确认是否为设定变更或前后矛盾",
				preview(cand.Content, 30), strings.Join(shared, "、"), sim))
		}
	}

	if !result.IsConsistent {
		g.logger.Info("consistency conflicts detected",
			zap.String("project_id", projectID),
			zap.Int("conflicts", len(result.ConflictingItems)),
		)
	}
	return result
}

func (l *Layer) filterSorted(keep func(*types.MemoryItem) bool) []*types.MemoryItem {
	out := l.filter(keep)
	sortByImportance(out)
	return out
}

func hasEntity(it *types.MemoryItem, id string) bool {
	for _, e := range it.RelatedEntityIDs {
		if e == id {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, v := range a {
		if _, ok := set[v]; !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/BaSui01/novelmemory/types"
)

// Location 条目在项目层级中的位置
type Location struct {
	ProjectID string `json:"project_id" yaml:"project_id"`
	VolumeID  string `json:"volume_id,omitempty" yaml:"volume_id,omitempty"`
	ChapterID string `json:"chapter_id,omitempty" yaml:"chapter_id,omitempty"`
}

// Matches 报告条目是否属于该位置；位置中为空的字段不参与比较
func (loc Location) Matches(it *types.MemoryItem) bool {
	if it.ProjectID != loc.ProjectID {
		return false
	}
	if loc.VolumeID != "" && it.VolumeID != loc.VolumeID {
		return false
	}
	if loc.ChapterID != "" && it.ChapterID != loc.ChapterID {
		return false
	}
	return true
}

// addCategorized 按类别构造条目并写入：打上类别标签、设置类型，
// importance <= 0 时使用类别默认值，下限与上限由 Add 应用。
func (l *Layer) addCategorized(ctx context.Context, tag string, loc Location, content string, importance int, related []string, extraTags ...string) (string, bool) {
	cat, ok := l.policy.Category(tag)
	if !ok {
		l.logFault("add", types.NewError(types.ErrInvalidMemory, "unknown category "+tag).WithScope(l.policy.Scope))
		return "", false
	}
	content = strings.TrimSpace(content)
	if content == "" {
		l.logFault("add", types.NewError(types.ErrInvalidMemory, "empty content for "+tag).WithScope(l.policy.Scope))
		return "", false
	}
	if importance <= 0 {
		importance = cat.DefaultImportance()
	}

	now := l.now()
	item := &types.MemoryItem{
		ID:              uuid.NewString(),
		Content:         content,
		ImportanceScore: importance,
		Type:            cat.Type,
		Scope:           l.policy.Scope,
		ProjectID:       loc.ProjectID,
		VolumeID:        loc.VolumeID,
		ChapterID:       loc.ChapterID,
		CreatedAt:       now,
		LastAccessedAt:  now,
		OriginalLength:  len(content),
	}
	item.AddTags(tag)
	item.AddTags(extraTags...)
	item.AddRelatedEntities(related...)

	if !l.Add(ctx, item) {
		return "", false
	}
	return item.ID, true
}

// byTag 返回位置内携带标签的条目，按重要性降序
func (l *Layer) byTag(tag string, loc Location) []*types.MemoryItem {
	out := l.filter(func(it *types.MemoryItem) bool {
		return it.HasTag(tag) && loc.Matches(it)
	})
	sortByImportance(out)
	return out
}

// InLocation 返回位置内的全部条目
func (l *Layer) InLocation(loc Location) []*types.MemoryItem {
	return l.filter(loc.Matches)
}

func nonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

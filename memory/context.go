package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 📦 上下文包
// =============================================================================

// TaskType 写作任务类型，决定上下文优先收录的记忆类型
type TaskType string

const (
	TaskOutline  TaskType = "outline"
	TaskDraft    TaskType = "draft"
	TaskDialogue TaskType = "dialogue"
	TaskPolish   TaskType = "polish"
	TaskReview   TaskType = "review"
	TaskGeneral  TaskType = "general"
)

// AllTaskTypes 全部任务类型
var AllTaskTypes = []TaskType{TaskOutline, TaskDraft, TaskDialogue, TaskPolish, TaskReview, TaskGeneral}

// ParseTaskType 解析任务类型，未知值回落到 TaskGeneral
func ParseTaskType(s string) TaskType {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTaskTypes {
		if t == known {
			return t
		}
	}
	return TaskGeneral
}

// PreferredTypes 任务优先收录的记忆类型；TaskGeneral 返回 nil，表示不限类型
func (t TaskType) PreferredTypes() []types.MemoryType {
	switch t {
	case TaskOutline:
		return []types.MemoryType{types.MemoryTypePlot, types.MemoryTypeWorldSetting, types.MemoryTypeCharacter, types.MemoryTypeEvent}
	case TaskDraft:
		return []types.MemoryType{types.MemoryTypeScene, types.MemoryTypeCharacter, types.MemoryTypePlot, types.MemoryTypeEvent, types.MemoryTypeDialogue}
	case TaskDialogue:
		return []types.MemoryType{types.MemoryTypeDialogue, types.MemoryTypeCharacter, types.MemoryTypeRelationship}
	case TaskPolish:
		return []types.MemoryType{types.MemoryTypeScene, types.MemoryTypeDialogue, types.MemoryTypeWorldSetting}
	case TaskReview:
		return []types.MemoryType{types.MemoryTypePlot, types.MemoryTypeEvent, types.MemoryTypeCharacter, types.MemoryTypeWorldSetting}
	default:
		return nil
	}
}

// ContextRequest 上下文组装请求。MaxItems 与 MaxTokens 为 0 时使用管理器默认值。
type ContextRequest struct {
	TaskType  TaskType          `json:"task_type" yaml:"task_type"`
	Scope     types.MemoryScope `json:"scope" yaml:"scope"`
	ProjectID string            `json:"project_id" yaml:"project_id"`
	VolumeID  string            `json:"volume_id,omitempty" yaml:"volume_id,omitempty"`
	ChapterID string            `json:"chapter_id,omitempty" yaml:"chapter_id,omitempty"`
	Query     string            `json:"query,omitempty" yaml:"query,omitempty"`
	MaxItems  int               `json:"max_items,omitempty" yaml:"max_items,omitempty"`
	MaxTokens int               `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Location 请求对应的位置
func (r ContextRequest) Location() Location {
	return Location{ProjectID: r.ProjectID, VolumeID: r.VolumeID, ChapterID: r.ChapterID}
}

// ContextBundle 提供给写作任务的记忆上下文
type ContextBundle struct {
	TaskType    TaskType            `json:"task_type"`
	Scope       types.MemoryScope   `json:"scope"`
	ProjectID   string              `json:"project_id"`
	VolumeID    string              `json:"volume_id,omitempty"`
	ChapterID   string              `json:"chapter_id,omitempty"`
	Items       []*types.MemoryItem `json:"items"`
	TokenCount  int                 `json:"token_count"`
	Truncated   bool                `json:"truncated"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Render 以纯文本列出上下文条目，每行一条
func (b *ContextBundle) Render() string {
	if b == nil || len(b.Items) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, it := range b.Items {
		fmt.Fprintf(&sb, "[%s|%d] %s\n", it.Type, it.ImportanceScore, it.Content)
	}
	return sb.String()
}

// renderLine 与 Render 的单行格式一致，用于 token 计数
func renderLine(it *types.MemoryItem) string {
	return fmt.Sprintf("[%s|%d] %s\n", it.Type, it.ImportanceScore, it.Content)
}

package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 📚 卷记忆
// =============================================================================

// 卷完整性检查项
const (
	CheckVolumeOutline        = "has_volume_outline"
	CheckPlotLine             = "has_plot_line"
	CheckMultiplePlotLines    = "has_multiple_plot_lines"
	CheckCharacterDevelopment = "has_character_development"
	CheckKeyEvents            = "has_key_events"
	CheckVolumeConnection     = "has_volume_connection"
)

// VolumeMemory 卷级的情节线、角色发展、关键事件与卷间衔接
type VolumeMemory struct {
	*Layer
}

// NewVolumeMemory 创建卷记忆层
func NewVolumeMemory(policy ScopePolicy, engine CompressionEngine, logger *zap.Logger, opts ...LayerOption) *VolumeMemory {
	return &VolumeMemory{Layer: NewLayer(policy, engine, logger, opts...)}
}

func volumeLoc(projectID, volumeID string) Location {
	return Location{ProjectID: projectID, VolumeID: volumeID}
}

// AddVolumeOutline 写入卷大纲（重要性不低于 7）
func (v *VolumeMemory) AddVolumeOutline(ctx context.Context, projectID, volumeID, content string, importance int) (string, bool) {
	return v.addCategorized(ctx, TagVolumeOutline, volumeLoc(projectID, volumeID), content, importance, nil)
}

// AddPlotLine 写入情节线（重要性不低于 6）
func (v *VolumeMemory) AddPlotLine(ctx context.Context, projectID, volumeID, content string, importance int, tags ...string) (string, bool) {
	return v.addCategorized(ctx, TagPlotLine, volumeLoc(projectID, volumeID), content, importance, nil, tags...)
}

// AddCharacterDevelopment 写入角色在本卷中的发展（重要性不低于 5）
func (v *VolumeMemory) AddCharacterDevelopment(ctx context.Context, projectID, volumeID, characterID, content string, importance int) (string, bool) {
	return v.addCategorized(ctx, TagCharacterDevelopment, volumeLoc(projectID, volumeID), content, importance, nonEmpty(characterID))
}

// AddKeyEvent 写入关键事件（重要性不低于 6）
func (v *VolumeMemory) AddKeyEvent(ctx context.Context, projectID, volumeID, content string, importance int, relatedIDs ...string) (string, bool) {
	return v.addCategorized(ctx, TagKeyEvent, volumeLoc(projectID, volumeID), content, importance, nonEmpty(relatedIDs...))
}

// AddVolumeConnection 写入与前后卷的衔接（重要性不低于 7）
func (v *VolumeMemory) AddVolumeConnection(ctx context.Context, projectID, volumeID, content string, importance int) (string, bool) {
	return v.addCategorized(ctx, TagVolumeConnection, volumeLoc(projectID, volumeID), content, importance, nil)
}

// GetVolumeOutline 卷大纲
func (v *VolumeMemory) GetVolumeOutline(projectID, volumeID string) []*types.MemoryItem {
	return v.byTag(TagVolumeOutline, volumeLoc(projectID, volumeID))
}

// GetPlotLines 卷内情节线
func (v *VolumeMemory) GetPlotLines(projectID, volumeID string) []*types.MemoryItem {
	return v.byTag(TagPlotLine, volumeLoc(projectID, volumeID))
}

// GetCharacterDevelopments 卷内角色发展
func (v *VolumeMemory) GetCharacterDevelopments(projectID, volumeID string) []*types.MemoryItem {
	return v.byTag(TagCharacterDevelopment, volumeLoc(projectID, volumeID))
}

// GetKeyEvents 卷内关键事件
func (v *VolumeMemory) GetKeyEvents(projectID, volumeID string) []*types.MemoryItem {
	return v.byTag(TagKeyEvent, volumeLoc(projectID, volumeID))
}

// GetVolumeConnections 卷衔接
func (v *VolumeMemory) GetVolumeConnections(projectID, volumeID string) []*types.MemoryItem {
	return v.byTag(TagVolumeConnection, volumeLoc(projectID, volumeID))
}

// AnalyzeCompleteness 按加权清单评估卷的结构完整性
func (v *VolumeMemory) AnalyzeCompleteness(ctx context.Context, projectID, volumeID string) CompletenessReport {
	items := v.InLocation(volumeLoc(projectID, volumeID))

	counts := make(map[string]int)
	for _, it := range items {
		for _, tag := range []string{TagVolumeOutline, TagPlotLine, TagCharacterDevelopment, TagKeyEvent, TagVolumeConnection} {
			if it.HasTag(tag) {
				counts[tag]++
			}
		}
	}

	report := scoreChecklist([]checklistEntry{
		{CheckVolumeOutline, 20, counts[TagVolumeOutline] > 0, "补充本卷大纲，明确本卷的核心冲突与结局走向"},
		{CheckPlotLine, 20, counts[TagPlotLine] >= 1, "至少规划一条贯穿本卷的情节线"},
		{CheckMultiplePlotLines, 10, counts[TagPlotLine] >= 3, fmt.Sprintf("当前只有 %d 条情节线，可增加支线丰富层次（建议不少于 3 条）", counts[TagPlotLine])},
		{CheckCharacterDevelopment, 20, counts[TagCharacterDevelopment] >= 1, "记录主要角色在本卷中的成长或转变"},
		{CheckKeyEvents, 20, counts[TagKeyEvent] >= 2, fmt.Sprintf("当前只有 %d 个关键事件，建议至少设置 2 个推动情节的关键事件", counts[TagKeyEvent])},
		{CheckVolumeConnection, 10, counts[TagVolumeConnection] > 0, "补充与前后卷的衔接说明，保证故事连贯"},
	})

	v.logger.Debug("volume completeness analyzed",
		zap.String("project_id", projectID),
		zap.String("volume_id", volumeID),
		zap.Int("score", report.Score),
	)
	return report
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/novelmemory"
	"github.com/BaSui01/novelmemory/memory"
	"github.com/BaSui01/novelmemory/types"
)

// =============================================================================
// 🎬 剧本回放
// =============================================================================

// 剧本步骤类型
const (
	OpUpdate       = "update"
	OpSearch       = "search"
	OpContext      = "context"
	OpConsistency  = "consistency"
	OpCompleteness = "completeness"
	OpCompress     = "compress"
	OpMaintain     = "maintain"
	OpStats        = "stats"
)

// Scenario 一个回放剧本
type Scenario struct {
	Project string `yaml:"project"`
	Session string `yaml:"session"`
	Steps   []Step `yaml:"steps"`
}

// Step 剧本中的一步；未设置的位置字段沿用剧本的项目
type Step struct {
	Op          string            `yaml:"op"`
	Scope       types.MemoryScope `yaml:"scope"`
	ProjectID   string            `yaml:"project_id"`
	VolumeID    string            `yaml:"volume_id"`
	ChapterID   string            `yaml:"chapter_id"`
	Content     string            `yaml:"content"`
	ContentType string            `yaml:"content_type"`
	Importance  int               `yaml:"importance"`
	Tags        []string          `yaml:"tags"`
	Query       string            `yaml:"query"`
	Task        string            `yaml:"task"`
	MaxResults  int               `yaml:"max_results"`
	MaxTokens   int               `yaml:"max_tokens"`
}

// StepResult 每一步输出一行 JSON
type StepResult struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
}

// LoadScenario 读取 YAML 剧本
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario 解析 YAML 剧本
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Project == "" {
		return nil, fmt.Errorf("scenario project is required")
	}
	for i, st := range s.Steps {
		switch st.Op {
		case OpUpdate, OpSearch, OpContext, OpConsistency, OpCompleteness, OpCompress, OpMaintain, OpStats:
		default:
			return nil, fmt.Errorf("step %d: unknown op %q", i+1, st.Op)
		}
	}
	return &s, nil
}

// Replay 依次执行剧本步骤，把结果写入 w
func Replay(ctx context.Context, svc *novelmemory.Service, s *Scenario, w io.Writer) error {
	enc := json.NewEncoder(w)
	m := svc.Manager

	session := s.Session
	if session == "" {
		session = uuid.NewString()
	}
	ctx = types.WithSessionID(ctx, session)

	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		project := st.ProjectID
		if project == "" {
			project = s.Project
		}
		res := StepResult{Step: i + 1, Op: st.Op}

		switch st.Op {
		case OpUpdate:
			id, ok := m.UpdateMemory(ctx, memory.MemoryUpdate{
				Content:     st.Content,
				Importance:  st.Importance,
				Scope:       st.Scope,
				ProjectID:   project,
				VolumeID:    st.VolumeID,
				ChapterID:   st.ChapterID,
				ContentType: st.ContentType,
				Tags:        st.Tags,
			})
			res.OK, res.Result = ok, id

		case OpSearch:
			hits := m.SearchMemory(ctx, st.Query, st.Scope, project, st.MaxResults)
			res.OK, res.Result = true, hits

		case OpContext:
			bundle := m.GetContext(ctx, memory.ContextRequest{
				TaskType:  memory.ParseTaskType(st.Task),
				Scope:     st.Scope,
				ProjectID: project,
				VolumeID:  st.VolumeID,
				ChapterID: st.ChapterID,
				Query:     st.Query,
				MaxItems:  st.MaxResults,
				MaxTokens: st.MaxTokens,
			})
			res.OK, res.Result = true, bundle

		case OpConsistency:
			cr := m.Global(project).CheckConsistency(ctx, project, st.Content)
			res.OK, res.Result = cr.Error == "", cr

		case OpCompleteness:
			switch st.Scope {
			case types.ScopeVolume:
				res.OK, res.Result = true, m.Volume(project).AnalyzeCompleteness(ctx, project, st.VolumeID)
			case types.ScopeChapter:
				res.OK, res.Result = true, m.Chapter(project).AnalyzeCompleteness(ctx, project, st.ChapterID)
			default:
				res.Result = fmt.Sprintf("completeness is not defined for scope %s", st.Scope)
			}

		case OpCompress:
			cr := m.Project(project).Layer(st.Scope).Compress(ctx)
			res.OK, res.Result = cr.Success, cr

		case OpMaintain:
			res.OK, res.Result = true, svc.Maintainer.RunOnce(ctx)

		case OpStats:
			stats := m.Statistics(project)
			res.OK, res.Result = stats != nil, stats
		}

		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("write step %d: %w", i+1, err)
		}
	}
	return nil
}

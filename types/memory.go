// Package types provides unified type definitions for the novelmemory store.
package types

import (
	"fmt"
	"strings"
	"time"
)

// MemoryType classifies what kind of creative knowledge a memory item holds.
type MemoryType int

const (
	// MemoryTypeOther is the fallback variant for unrecognized content.
	MemoryTypeOther MemoryType = iota
	MemoryTypeWorldSetting
	MemoryTypeCharacter
	MemoryTypePlot
	MemoryTypeEvent
	MemoryTypeScene
	MemoryTypeDialogue
	MemoryTypeRelationship
	MemoryTypeSystem
)

// AllMemoryTypes lists every declared variant in declaration order.
var AllMemoryTypes = []MemoryType{
	MemoryTypeOther,
	MemoryTypeWorldSetting,
	MemoryTypeCharacter,
	MemoryTypePlot,
	MemoryTypeEvent,
	MemoryTypeScene,
	MemoryTypeDialogue,
	MemoryTypeRelationship,
	MemoryTypeSystem,
}

func (t MemoryType) String() string {
	switch t {
	case MemoryTypeWorldSetting:
		return "world_setting"
	case MemoryTypeCharacter:
		return "character"
	case MemoryTypePlot:
		return "plot"
	case MemoryTypeEvent:
		return "event"
	case MemoryTypeScene:
		return "scene"
	case MemoryTypeDialogue:
		return "dialogue"
	case MemoryTypeRelationship:
		return "relationship"
	case MemoryTypeSystem:
		return "system"
	case MemoryTypeOther:
		return "other"
	default:
		return fmt.Sprintf("memory_type(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t MemoryType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown labels decode to
// MemoryTypeOther rather than failing.
func (t *MemoryType) UnmarshalText(text []byte) error {
	*t = ParseMemoryType(string(text))
	return nil
}

// memoryTypeAliases maps English names and the Chinese content-type labels used
// by writing agents onto the enum.
var memoryTypeAliases = map[string]MemoryType{
	"world_setting": MemoryTypeWorldSetting,
	"worldsetting":  MemoryTypeWorldSetting,
	"setting":       MemoryTypeWorldSetting,
	"世界观":           MemoryTypeWorldSetting,
	"设定":            MemoryTypeWorldSetting,
	"世界设定":          MemoryTypeWorldSetting,
	"character":     MemoryTypeCharacter,
	"角色":            MemoryTypeCharacter,
	"人物":            MemoryTypeCharacter,
	"角色状态":          MemoryTypeCharacter,
	"plot":          MemoryTypePlot,
	"情节":            MemoryTypePlot,
	"剧情":            MemoryTypePlot,
	"大纲":            MemoryTypePlot,
	"event":         MemoryTypeEvent,
	"事件":            MemoryTypeEvent,
	"scene":         MemoryTypeScene,
	"场景":            MemoryTypeScene,
	"dialogue":      MemoryTypeDialogue,
	"dialog":        MemoryTypeDialogue,
	"对话":            MemoryTypeDialogue,
	"relationship":  MemoryTypeRelationship,
	"关系":            MemoryTypeRelationship,
	"衔接":            MemoryTypeRelationship,
	"system":        MemoryTypeSystem,
	"系统":            MemoryTypeSystem,
	"提示":            MemoryTypeSystem,
	"other":         MemoryTypeOther,
	"其他":            MemoryTypeOther,
}

// ParseMemoryType resolves a content-type label to a MemoryType, falling back
// to MemoryTypeOther.
func ParseMemoryType(label string) MemoryType {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return MemoryTypeOther
	}
	if t, ok := memoryTypeAliases[key]; ok {
		return t
	}
	// 标签中包含已知关键词（如 "主要对话"、"战斗场景"）
	for _, t := range AllMemoryTypes {
		if t == MemoryTypeOther {
			continue
		}
		for alias, mapped := range memoryTypeAliases {
			if mapped == t && !isASCII(alias) && strings.Contains(key, alias) {
				return t
			}
		}
	}
	return MemoryTypeOther
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// MemoryScope identifies which bounded store an item lives in.
type MemoryScope int

const (
	ScopeGlobal MemoryScope = iota
	ScopeVolume
	ScopeChapter
	ScopeParagraph
)

// AllScopes lists the scopes from broadest to narrowest.
var AllScopes = []MemoryScope{ScopeGlobal, ScopeVolume, ScopeChapter, ScopeParagraph}

func (s MemoryScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeVolume:
		return "volume"
	case ScopeChapter:
		return "chapter"
	case ScopeParagraph:
		return "paragraph"
	default:
		return fmt.Sprintf("memory_scope(%d)", int(s))
	}
}

// Valid reports whether s is one of the declared scopes.
func (s MemoryScope) Valid() bool {
	return s >= ScopeGlobal && s <= ScopeParagraph
}

// MarshalText implements encoding.TextMarshaler.
func (s MemoryScope) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid memory scope %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MemoryScope) UnmarshalText(text []byte) error {
	parsed, err := ParseMemoryScope(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseMemoryScope parses a scope name (English or Chinese).
func ParseMemoryScope(name string) (MemoryScope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "global", "全局":
		return ScopeGlobal, nil
	case "volume", "卷":
		return ScopeVolume, nil
	case "chapter", "章节", "章":
		return ScopeChapter, nil
	case "paragraph", "段落", "段":
		return ScopeParagraph, nil
	default:
		return ScopeGlobal, fmt.Errorf("unknown memory scope %q", name)
	}
}

// Importance bounds shared by every scope.
const (
	MinImportance = 1
	MaxImportance = 10
)

// ClampImportance bounds a score to [MinImportance, MaxImportance].
func ClampImportance(score int) int {
	if score < MinImportance {
		return MinImportance
	}
	if score > MaxImportance {
		return MaxImportance
	}
	return score
}

// MemoryItem is the unit of retained knowledge.
type MemoryItem struct {
	ID               string      `json:"id" yaml:"id"`
	Content          string      `json:"content" yaml:"content"`
	ImportanceScore  int         `json:"importance_score" yaml:"importance_score"`
	Type             MemoryType  `json:"type" yaml:"type"`
	Scope            MemoryScope `json:"scope" yaml:"scope"`
	ProjectID        string      `json:"project_id" yaml:"project_id"`
	VolumeID         string      `json:"volume_id,omitempty" yaml:"volume_id,omitempty"`
	ChapterID        string      `json:"chapter_id,omitempty" yaml:"chapter_id,omitempty"`
	Tags             []string    `json:"tags,omitempty" yaml:"tags,omitempty"`
	RelatedEntityIDs []string    `json:"related_entity_ids,omitempty" yaml:"related_entity_ids,omitempty"`
	CreatedAt        time.Time   `json:"created_at" yaml:"created_at"`
	LastAccessedAt   time.Time   `json:"last_accessed_at" yaml:"last_accessed_at"`
	AccessCount      int         `json:"access_count" yaml:"access_count"`
	IsCompressed     bool        `json:"is_compressed" yaml:"is_compressed"`
	OriginalLength   int         `json:"original_length" yaml:"original_length"`
}

// Clone returns a deep copy. A nil receiver yields nil.
func (m *MemoryItem) Clone() *MemoryItem {
	if m == nil {
		return nil
	}
	c := *m
	if m.Tags != nil {
		c.Tags = append([]string(nil), m.Tags...)
	}
	if m.RelatedEntityIDs != nil {
		c.RelatedEntityIDs = append([]string(nil), m.RelatedEntityIDs...)
	}
	return &c
}

// HasTag reports whether the item carries tag.
func (m *MemoryItem) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTags appends tags that are not already present.
func (m *MemoryItem) AddTags(tags ...string) {
	m.Tags = MergeSet(m.Tags, tags...)
}

// AddRelatedEntities appends entity ids that are not already linked.
func (m *MemoryItem) AddRelatedEntities(ids ...string) {
	m.RelatedEntityIDs = MergeSet(m.RelatedEntityIDs, ids...)
}

// ContentLength is the current content size in bytes.
func (m *MemoryItem) ContentLength() int {
	return len(m.Content)
}

// MergeSet appends values to set, skipping blanks and values already present,
// preserving first-seen order.
func MergeSet(set []string, values ...string) []string {
	if len(values) == 0 {
		return set
	}
	seen := make(map[string]struct{}, len(set)+len(values))
	for _, v := range set {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		set = append(set, v)
	}
	return set
}

// CloneItems deep-copies a slice of items.
func CloneItems(items []*MemoryItem) []*MemoryItem {
	out := make([]*MemoryItem, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it.Clone())
		}
	}
	return out
}

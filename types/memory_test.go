package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemoryType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  MemoryType
	}{
		{"对话", MemoryTypeDialogue},
		{"场景", MemoryTypeScene},
		{"事件", MemoryTypeEvent},
		{"世界观", MemoryTypeWorldSetting},
		{"Character", MemoryTypeCharacter},
		{"  plot ", MemoryTypePlot},
		{"主要对话", MemoryTypeDialogue},
		{"战斗场景", MemoryTypeScene},
		{"", MemoryTypeOther},
		{"未知类型", MemoryTypeOther},
		{"gibberish", MemoryTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMemoryType(tt.label))
		})
	}
}

func TestMemoryType_StringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, mt := range AllMemoryTypes {
		assert.Equal(t, mt, ParseMemoryType(mt.String()), mt.String())
	}
}

func TestParseMemoryScope(t *testing.T) {
	t.Parallel()

	s, err := ParseMemoryScope("章节")
	require.NoError(t, err)
	assert.Equal(t, ScopeChapter, s)

	s, err = ParseMemoryScope("Paragraph")
	require.NoError(t, err)
	assert.Equal(t, ScopeParagraph, s)

	_, err = ParseMemoryScope("book")
	assert.Error(t, err)
	assert.False(t, MemoryScope(9).Valid())
}

func TestMemoryItem_JSONUsesLabels(t *testing.T) {
	t.Parallel()

	item := &MemoryItem{ID: "m1", Type: MemoryTypeDialogue, Scope: ScopeVolume, ProjectID: "p"}
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"dialogue"`)
	assert.Contains(t, string(data), `"scope":"volume"`)

	var decoded MemoryItem
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, MemoryTypeDialogue, decoded.Type)
	assert.Equal(t, ScopeVolume, decoded.Scope)
}

func TestMemoryItem_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := &MemoryItem{ID: "m1", Tags: []string{"a"}, RelatedEntityIDs: []string{"c1"}}
	c := orig.Clone()
	c.Tags[0] = "changed"
	c.RelatedEntityIDs = append(c.RelatedEntityIDs, "c2")

	assert.Equal(t, "a", orig.Tags[0])
	assert.Len(t, orig.RelatedEntityIDs, 1)
	assert.Nil(t, (*MemoryItem)(nil).Clone())
}

func TestMergeSet(t *testing.T) {
	t.Parallel()

	got := MergeSet([]string{"a", "b"}, "b", " ", "c", "a", "d")
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)

	item := &MemoryItem{}
	item.AddTags("x", "x", "y")
	assert.True(t, item.HasTag("y"))
	assert.Len(t, item.Tags, 2)
}

func TestClampImportance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, ClampImportance(-3))
	assert.Equal(t, 10, ClampImportance(42))
	assert.Equal(t, 6, ClampImportance(6))
}

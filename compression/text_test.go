package compression

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"角色", "x", "拥有", "有木"}, tokenize("角色X拥有木"))
	assert.Equal(t, []string{"hello", "world", "剑"}, tokenize("Hello, world! 剑"))
	assert.Empty(t, tokenize("，。！"))
}

func TestTextSimilarity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, textSimilarity("林远拔剑", "林远拔剑"))
	assert.Equal(t, 0.0, textSimilarity("", ""))
	assert.Equal(t, 0.0, textSimilarity("林远", "sword"))

	sim := textSimilarity("角色X拥有木属性灵根", "角色X现在是火属性修炼者")
	assert.Greater(t, sim, 0.3)
	assert.Less(t, sim, 0.5)
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	kw := keywords("灵根灵根，灵根的修炼", 3)
	assert.Equal(t, "灵根", kw[0])
	assert.LessOrEqual(t, len(kw), 3)
	for _, k := range kw {
		assert.NotContains(t, k, "的")
	}

	a := keywords("角色X拥有木属性灵根", 20)
	b := keywords("角色X现在是火属性修炼者", 20)
	shared := 0
	for _, k := range a {
		for _, o := range b {
			if k == o {
				shared++
			}
		}
	}
	assert.Equal(t, 3, shared)
	assert.Nil(t, keywords("anything", 0))
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "短句。", summarize("短句。", 10))
	assert.Equal(t, "第一句。", summarize("第一句。第二句很长很长很长。", 6))
	got := summarize("没有标点的一整段很长的文字内容", 5)
	assert.Equal(t, "没有标点"+ellipsis, got)
}

func TestSummarize_NeverGrows(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		max := rapid.IntRange(1, 50).Draw(t, "max")

		s := summarize(text, max)
		if len(s) > len(strings.TrimSpace(text)) {
			t.Fatalf("summary grew: %q -> %q", text, s)
		}
		if utf8.RuneCountInString(strings.TrimSpace(text)) > max && utf8.RuneCountInString(s) > max {
			t.Fatalf("summary too long: %d runes > %d", utf8.RuneCountInString(s), max)
		}
	})
}

func TestCosineBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.String().Draw(t, "a")
		b := rapid.String().Draw(t, "b")
		s := textSimilarity(a, b)
		if s < 0 || s > 1 {
			t.Fatalf("similarity out of range: %f", s)
		}
	})
}

package compression

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// =============================================================================
// 📝 文本切分与向量
// =============================================================================

// isCJK 判断是否为中日韩表意文字或假名
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// tokenize 把文本切成词项：中日韩连续片段取二元组（单字片段保留单字），
// 字母数字片段转小写作为一个词。
func tokenize(text string) []string {
	var (
		tokens []string
		cjkRun []rune
		word   strings.Builder
	)

	flushCJK := func() {
		switch len(cjkRun) {
		case 0:
		case 1:
			tokens = append(tokens, string(cjkRun))
		default:
			for i := 0; i+1 < len(cjkRun); i++ {
				tokens = append(tokens, string(cjkRun[i:i+2]))
			}
		}
		cjkRun = cjkRun[:0]
	}
	flushWord := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			cjkRun = append(cjkRun, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			word.WriteRune(unicode.ToLower(r))
		default:
			flushCJK()
			flushWord()
		}
	}
	flushCJK()
	flushWord()

	return tokens
}

func termFrequency(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// cosine 计算两个词频向量的余弦相似度，结果在 [0,1]
func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot, na, nb float64
	for k, v := range a {
		na += v * v
		if w, ok := b[k]; ok {
			dot += v * w
		}
	}
	for _, w := range b {
		nb += w * w
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, s))
}

// textSimilarity 两段文本的词频余弦相似度
func textSimilarity(a, b string) float64 {
	if a == b {
		if strings.TrimSpace(a) == "" {
			return 0
		}
		return 1
	}
	return cosine(termFrequency(tokenize(a)), termFrequency(tokenize(b)))
}

// =============================================================================
// 🔑 关键词
// =============================================================================

var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "at": {}, "for": {}, "with": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "been": {}, "it": {}, "its": {}, "this": {}, "that": {},
	"as": {}, "by": {}, "from": {}, "he": {}, "she": {}, "they": {}, "his": {}, "her": {},
	"i": {}, "you": {}, "we": {}, "not": {}, "no": {}, "so": {}, "if": {}, "then": {},
}

// 含有这些虚字的二元组不作为关键词
const cjkStopRunes = "的了是在和也就都而及与着或把被让给之其这那个么吗呢吧啊"

func isStopword(token string) bool {
	if _, ok := englishStopwords[token]; ok {
		return true
	}
	for _, r := range token {
		if strings.ContainsRune(cjkStopRunes, r) {
			return true
		}
	}
	return false
}

// keywords 按词频降序、首次出现位置升序提取关键词
func keywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	tokens := tokenize(text)
	type entry struct {
		token string
		count int
		first int
	}
	index := make(map[string]*entry)
	var ordered []*entry
	for i, t := range tokens {
		if isStopword(t) {
			continue
		}
		if e, ok := index[t]; ok {
			e.count++
			continue
		}
		e := &entry{token: t, count: 1, first: i}
		index[t] = e
		ordered = append(ordered, e)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].first < ordered[j].first
	})

	if len(ordered) > max {
		ordered = ordered[:max]
	}
	out := make([]string, len(ordered))
	for i, e := range ordered {
		out[i] = e.token
	}
	return out
}

// =============================================================================
// ✂️ 摘要
// =============================================================================

const ellipsis = "…"

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '!', '?', ';', '\n':
		return true
	}
	return false
}

// splitSentences 按句末标点切分，标点保留在句尾
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	for i, r := range text {
		if isSentenceEnd(r) {
			end := i + utf8.RuneLen(r)
			if s := strings.TrimSpace(text[start:end]); s != "" {
				out = append(out, s)
			}
			start = end
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// summarize 取不超过 maxLength 个字符的完整句子前缀；首句过长时截断。
// 结果的字节长度从不超过原文。
func summarize(text string, maxLength int) string {
	text = strings.TrimSpace(text)
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	var (
		b     strings.Builder
		runes int
	)
	for _, s := range splitSentences(text) {
		n := utf8.RuneCountInString(s)
		if runes+n > maxLength {
			break
		}
		b.WriteString(s)
		runes += n
	}
	if b.Len() > 0 {
		return b.String()
	}

	cut := truncateRunes(text, maxLength-1)
	if len(cut)+len(ellipsis) < len(text) {
		return cut + ellipsis
	}
	return cut
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

package tokenizer

import (
	"strings"
)

// Tokenizer 是统一的 Token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// ForModel 返回给定模型的分词器。
// 空模型名或 "estimator" 直接使用估算器；其余模型使用 tiktoken，
// 编码不可用时（如离线环境）自动回落到估算器。
func ForModel(model string) Tokenizer {
	m := strings.TrimSpace(model)
	if m == "" || m == "estimator" {
		return NewEstimatorTokenizer(model, 0)
	}
	tk, err := NewTiktokenTokenizer(m)
	if err != nil {
		return NewEstimatorTokenizer(model, 0)
	}
	return NewFallbackTokenizer(tk, NewEstimatorTokenizer(model, tk.MaxTokens()))
}

// FallbackTokenizer 在主分词器出错时使用备用分词器。
type FallbackTokenizer struct {
	primary  Tokenizer
	fallback Tokenizer
}

// NewFallbackTokenizer 创建带回落能力的分词器.
func NewFallbackTokenizer(primary, fallback Tokenizer) *FallbackTokenizer {
	return &FallbackTokenizer{primary: primary, fallback: fallback}
}

func (f *FallbackTokenizer) CountTokens(text string) (int, error) {
	n, err := f.primary.CountTokens(text)
	if err == nil {
		return n, nil
	}
	return f.fallback.CountTokens(text)
}

func (f *FallbackTokenizer) MaxTokens() int {
	return f.primary.MaxTokens()
}

func (f *FallbackTokenizer) Name() string {
	return f.primary.Name() + "|" + f.fallback.Name()
}

// MustCount 返回 token 数，出错时返回 0.
func MustCount(t Tokenizer, text string) int {
	n, err := t.CountTokens(text)
	if err != nil {
		return 0
	}
	return n
}

package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrEngineFailure, "summary failed").
		WithCause(root).
		WithRetryable(true).
		WithScope(ScopeChapter)

	assert.Equal(t, ErrEngineFailure, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.Equal(t, "chapter", err.Scope)
	assert.Contains(t, err.Error(), "ENGINE_FAILURE")
}

func TestError_WrappedChain(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrDuplicateMemory, "duplicate id m1")
	wrapped := fmt.Errorf("add: %w", inner)

	assert.True(t, IsErrorCode(wrapped, ErrDuplicateMemory))
	assert.False(t, IsErrorCode(wrapped, ErrMemoryNotFound))
	assert.False(t, IsRetryable(wrapped))

	e, ok := AsError(wrapped)
	assert.True(t, ok)
	assert.Same(t, inner, e)
}

func TestWrapError_Nil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WrapError(nil, ErrInternalError, "noop"))
	err := WrapError(errors.New("boom"), ErrInternalError, "wrapped")
	assert.Equal(t, ErrInternalError, GetErrorCode(err))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

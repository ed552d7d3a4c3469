package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorString(t *testing.T) {
	withSource := NewError(ErrKindSourceTimeout, "pubmed", "context deadline exceeded")
	assert.Equal(t, "source_timeout[pubmed]: context deadline exceeded", withSource.Error())

	noSource := NewError(ErrKindInvalidInput, "", "empty query")
	assert.Equal(t, "invalid_input: empty query", noSource.Error())
}

func TestWrapError_UnwrapsToOriginal(t *testing.T) {
	original := errors.New("connection reset")
	wrapped := WrapError(ErrKindSourceUpstream, "openalex", original)
	assert.Same(t, original, errors.Unwrap(wrapped))

	outer := fmt.Errorf("fetch failed: %w", wrapped)
	var de *Error
	assert.True(t, errors.As(outer, &de))
	assert.Equal(t, ErrKindSourceUpstream, de.Kind)
}

func TestError_Retryable(t *testing.T) {
	retryable := []ErrKind{ErrKindSourceRateLimited, ErrKindSourceUpstream, ErrKindSourceTimeout}
	for _, k := range retryable {
		assert.True(t, NewError(k, "x", "").Retryable(), "%s should be retryable", k)
	}

	notRetryable := []ErrKind{ErrKindSourceBlocked, ErrKindSourceAuthRequired, ErrKindInvalidInput, ErrKindCancelled}
	for _, k := range notRetryable {
		assert.False(t, NewError(k, "x", "").Retryable(), "%s should not be retryable", k)
	}
}

func TestIsHardFailure(t *testing.T) {
	hard := []ErrKind{ErrKindInvalidInput, ErrKindCancelled, ErrKindDeadlineExceeded}
	for _, k := range hard {
		assert.True(t, IsHardFailure(NewError(k, "", "")), "%s should be a hard failure", k)
	}

	soft := []ErrKind{ErrKindSourceUpstream, ErrKindSourceBlocked, ErrKindDedupConflict}
	for _, k := range soft {
		assert.False(t, IsHardFailure(NewError(k, "", "")), "%s should not be a hard failure", k)
	}

	assert.False(t, IsHardFailure(errors.New("plain error")))
	assert.False(t, IsHardFailure(nil))
}

func TestIsHardFailure_UnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewError(ErrKindCancelled, "", "context done"))
	assert.True(t, IsHardFailure(wrapped))
}

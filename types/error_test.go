package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(ErrRateLimited, "too many requests").WithBackend("gemini-2.5-pro")
	assert.Equal(t, "[RATE_LIMITED] too many requests", err.Error())

	wrapped := NewError(ErrUpstreamError, "call failed").WithCause(errors.New("boom"))
	assert.Equal(t, "[UPSTREAM_ERROR] call failed: boom", wrapped.Error())
	assert.Equal(t, "boom", errors.Unwrap(wrapped).Error())
}

func TestAsErrorThroughChain(t *testing.T) {
	inner := NewError(ErrRateLimited, "429").WithRetryable(true)
	outer := fmt.Errorf("attempt 1: %w", inner)

	e := AsError(outer)
	assert.NotNil(t, e)
	assert.Equal(t, ErrRateLimited, e.Code)
	assert.True(t, e.Retryable)

	assert.Nil(t, AsError(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(NewError(ErrRateLimited, "429")))
	assert.True(t, IsRateLimited(NewError(ErrQuotaExceeded, "quota")))
	assert.False(t, IsRateLimited(NewError(ErrUpstreamError, "502")))
	assert.False(t, IsRateLimited(nil))
}

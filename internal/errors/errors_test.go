package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	err := New(ErrCodeFileNotFound, "missing source file", nil)
	assert.Equal(t, CategoryIO, err.Category)
	assert.Equal(t, SeverityError, err.Severity)
	assert.False(t, err.Retryable)
}

func TestNewRetryableUpstream(t *testing.T) {
	err := New(ErrCodeUpstreamFailure, "vectorizer unreachable", nil)
	assert.Equal(t, CategoryNetwork, err.Category)
	assert.Equal(t, SeverityWarning, err.Severity)
	assert.True(t, err.Retryable)
}

func TestFatalCodes(t *testing.T) {
	for _, code := range []string{ErrCodeCorruptIndex, ErrCodeDiskFull, ErrCodeInvariantBreach} {
		err := New(code, "boom", nil)
		assert.Equal(t, SeverityFatal, err.Severity, code)
		assert.True(t, IsFatal(err), code)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk exploded")
	wrapped := Wrap(ErrCodeAdapterWrite, cause)
	require.NotNil(t, wrapped)
	assert.Equal(t, cause, wrapped.Unwrap())
	assert.True(t, errors.Is(wrapped, cause))
}

func TestWithDetailAndSuggestionChain(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad mime", nil).
		WithDetail("mime", "application/x-unknown").
		WithSuggestion("use a supported content type")

	assert.Equal(t, "application/x-unknown", err.Details["mime"])
	assert.Equal(t, "use a supported content type", err.Suggestion)
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	a := New(ErrCodeInvalidQuery, "first", nil)
	b := New(ErrCodeInvalidQuery, "second", nil)
	c := New(ErrCodeInternal, "third", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeFileNotFound, "source.pdf not found", nil)
	assert.Equal(t, fmt.Sprintf("[%s] source.pdf not found", ErrCodeFileNotFound), err.Error())
}

func TestConstructorsMapToExpectedCodes(t *testing.T) {
	cases := []struct {
		err  *DocIndexError
		code string
	}{
		{ValidationError("x", nil), ErrCodeInvalidInput},
		{UpstreamError("x", nil), ErrCodeUpstreamFailure},
		{ExtractionError("x", nil), ErrCodeExtractionFailed},
		{ConsistencyError("x", nil), ErrCodeConsistencyViolation},
		{CancelledError("x"), ErrCodeCancelled},
		{InvariantBreach("x", nil), ErrCodeInvariantBreach},
		{InternalError("x", nil), ErrCodeInternal},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
	}
}

func TestGetCodeAndCategoryOnNonDocIndexError(t *testing.T) {
	plain := errors.New("plain")
	assert.Equal(t, "", GetCode(plain))
	assert.Equal(t, Category(""), GetCategory(plain))
	assert.False(t, IsRetryable(plain))
	assert.False(t, IsFatal(plain))
}

func TestIsRetryableNilError(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsFatal(nil))
}

package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("flux")

	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.Contains(t, err.Error(), "upstream failed")
}

func TestAsError_ThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := NewConfigurationError("unsupported chat model %q", "gpt-9")
	wrapped := fmt.Errorf("run: %w", inner)

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrConfiguration, e.Code)
	assert.True(t, IsConfigurationError(wrapped))
	assert.False(t, IsVendorError(wrapped))
}

func TestIsVendorError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrUpstreamError, true},
		{ErrUpstreamTimeout, true},
		{ErrEmptyResult, true},
		{ErrMalformedResponse, true},
		{ErrConfiguration, false},
		{ErrArchiveIO, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, IsVendorError(NewError(tt.code, "x")))
		})
	}
	assert.False(t, IsVendorError(errors.New("plain")))
}

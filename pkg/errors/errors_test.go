package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrInternal, ErrConflict,
		ErrTransientFetch, ErrTerminalFetch, ErrSearchUnavailable,
		ErrConfiguration,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("connection reset")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "connection reset")

	bare := &AppError{Code: "NOT_FOUND", Message: "product not found"}
	assert.Equal(t, "NOT_FOUND: product not found", bare.Error())
}

func TestNotFound(t *testing.T) {
	err := NotFound("product", "42")
	require.NotNil(t, err)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Contains(t, err.Message, "product")
	assert.Contains(t, err.Message, "42")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConflict(t *testing.T) {
	err := Conflict("product", "sku", "RCH-45")
	require.NotNil(t, err)
	assert.Equal(t, "CONFLICT", err.Code)
	assert.Contains(t, err.Message, "RCH-45")
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestTransientFetch_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("i/o timeout")
	err := TransientFetch(cause)
	assert.True(t, errors.Is(err, ErrTransientFetch))
	assert.Contains(t, err.Error(), "i/o timeout")
	assert.Equal(t, http.StatusBadGateway, err.Status)
}

func TestTerminalFetch(t *testing.T) {
	err := TerminalFetch("source returned 404")
	assert.True(t, errors.Is(err, ErrTerminalFetch))
	assert.Equal(t, http.StatusBadGateway, err.Status)
}

func TestSearchUnavailable(t *testing.T) {
	err := SearchUnavailable(fmt.Errorf("dial tcp: connection refused"))
	assert.True(t, errors.Is(err, ErrSearchUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
}

func TestConfiguration(t *testing.T) {
	err := Configuration("ELASTICSEARCH_URL is required")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Message, "ELASTICSEARCH_URL")
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "get product")
	assert.Contains(t, wrapped.Error(), "get product")
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrSearchUnavailable, http.StatusServiceUnavailable},
		{ErrTransientFetch, http.StatusBadGateway},
		{ErrTerminalFetch, http.StatusBadGateway},
		{fmt.Errorf("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrSearchUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(wrapped))
}

func TestHTTPStatus_AppError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("category", "audio")))
}

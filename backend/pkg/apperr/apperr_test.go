package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageFormat(t *testing.T) {
	err := NotFound("User", "u-1")
	assert.Equal(t, "[not_found] User not found (User u-1)", err.Error())

	err = InvalidTransition("Service", "service is already closed")
	assert.Equal(t, "[invalid_transition] service is already closed (Service)", err.Error())

	err = Unauthorized("admin role required")
	assert.Equal(t, "[unauthorized] admin role required", err.Error())

	cause := fmt.Errorf("dial tcp: connection refused")
	err = ConnectionUnavailable("bolt://localhost:7687", cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := Timeout("GetUserByID", cause)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, KindTimeout, appErr.Kind)
	assert.False(t, appErr.Timestamp.IsZero())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindDuplicateConflict, KindOf(DuplicateConflict("User", "u-1", "email taken")))
	assert.Equal(t, KindForeignKeyMissing, KindOf(ForeignKeyMissing("Business", "b-1")))
	assert.Equal(t, KindMalformedRecord, KindOf(MalformedRecord("Job", "id")))

	// Wrapped once more, still found
	wrapped := fmt.Errorf("handling request: %w", NotFound("Job", "j-1"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIsKind(t *testing.T) {
	err := Unauthorized("nope")
	assert.True(t, IsKind(err, KindUnauthorized))
	assert.False(t, IsKind(err, KindNotFound))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ConnectionUnavailable("bolt://x", nil)))
	assert.True(t, IsRetryable(Timeout("op", nil)))
	assert.False(t, IsRetryable(NotFound("User", "u-1")))
	assert.False(t, IsRetryable(Unauthorized("no")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("User", "u-1"), http.StatusNotFound},
		{ForeignKeyMissing("Business", "b-1"), http.StatusUnprocessableEntity},
		{DuplicateConflict("User", "u-1", "taken"), http.StatusConflict},
		{InvalidTransition("Service", "closed"), http.StatusUnprocessableEntity},
		{Unauthorized("no"), http.StatusForbidden},
		{MalformedRecord("Job", "id"), http.StatusInternalServerError},
		{Timeout("op", nil), http.StatusGatewayTimeout},
		{ConnectionUnavailable("bolt://x", nil), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err)
	}
}

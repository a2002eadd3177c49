package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBadRequestError(t *testing.T) {
	tests := []struct {
		name   string
		err    *BadRequestError
		expect string
	}{
		{
			name:   "reason only",
			err:    NewBadRequestError("Auth token not found in headers"),
			expect: "Auth token not found in headers",
		},
		{
			name:   "with cause",
			err:    NewBadRequestErrorWithCause("Invalid auth token", errors.New("boom")),
			expect: "Invalid auth token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.err.Error())
			assert.True(t, errors.Is(tt.err, ErrInvalidInput))
			assert.True(t, errors.Is(tt.err, &BadRequestError{}))
			assert.False(t, errors.Is(tt.err, ErrUpstreamUnavail))
		})
	}
}

func TestBadRequestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewBadRequestErrorWithCause("bad input", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestRouteNotFoundError(t *testing.T) {
	err := NewRouteNotFoundError("/spring/unknown")
	assert.Equal(t, "Endpoint route not found: /spring/unknown", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, errors.Is(err, &RouteNotFoundError{}))
}

func TestUpstreamError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUpstreamError("User-Service", cause)

	assert.Contains(t, err.Error(), "User-Service")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, ErrUpstreamUnavail))
	assert.Equal(t, cause, errors.Unwrap(err))

	noCause := NewUpstreamError("Auth-Service", nil)
	assert.Equal(t, "upstream Auth-Service unreachable", noCause.Error())
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("cache.redis.url", "must not be empty")
	assert.Contains(t, err.Error(), "cache.redis.url")
	assert.True(t, errors.Is(err, ErrConfigInvalid))

	bare := &ConfigError{Message: "broken"}
	assert.Equal(t, "config error: broken", bare.Error())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		client bool
		server bool
	}{
		{"nil", nil, false, false},
		{"bad request", NewBadRequestError("nope"), true, false},
		{"route not found", NewRouteNotFoundError("/x"), true, false},
		{"upstream", NewUpstreamError("svc", errors.New("dial")), false, true},
		{"plain", errors.New("other"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.client, IsClientError(tt.err))
			assert.Equal(t, tt.server, IsServerError(tt.err))
		})
	}
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "context"))

	base := errors.New("base")
	wrapped := WrapError(base, "context")
	assert.EqualError(t, wrapped, "context: base")
	assert.True(t, errors.Is(wrapped, base))
}

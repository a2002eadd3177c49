package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "standard bearer token",
			header:   "Bearer abc123",
			expected: "abc123",
		},
		{
			name:     "lowercase scheme",
			header:   "bearer abc123",
			expected: "abc123",
		},
		{
			name:     "mixed case scheme",
			header:   "BeArEr abc123",
			expected: "abc123",
		},
		{
			name:     "surrounding whitespace trimmed",
			header:   "Bearer   abc123  ",
			expected: "abc123",
		},
		{
			name:     "missing header",
			header:   "",
			expected: "",
		},
		{
			name:     "basic credentials",
			header:   "Basic dXNlcjpwYXNz",
			expected: "",
		},
		{
			name:     "scheme without token",
			header:   "Bearer ",
			expected: "",
		},
		{
			name:     "bare scheme",
			header:   "Bearer",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.expected, ExtractBearerToken(header))
		})
	}
}

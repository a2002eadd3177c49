// Package auth implements bearer token extraction and validation.
package auth

import (
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// ExtractBearerToken returns the bearer token from the Authorization
// header, or the empty string when the header is missing or does not
// carry a bearer credential. The scheme comparison is case-insensitive
// and surrounding whitespace is trimmed from the token.
func ExtractBearerToken(header http.Header) string {
	value := header.Get(authorizationHeader)
	if value == "" {
		return ""
	}

	if len(value) < len(bearerPrefix) {
		return ""
	}

	if !strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}

	return strings.TrimSpace(value[len(bearerPrefix):])
}

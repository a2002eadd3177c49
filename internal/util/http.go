package util

import (
	"net/http"
	"net/url"
	"strings"
)

// CloneHeader returns a deep copy of the given header collection. The core
// never mutates a caller's headers in place; every forwarded request carries
// its own copy.
func CloneHeader(h http.Header) http.Header {
	cloned := make(http.Header, len(h))
	for key, values := range h {
		copied := make([]string, len(values))
		copy(copied, values)
		cloned[key] = copied
	}
	return cloned
}

// AppendQuery appends the given query parameters to a URL string. Each
// name/value pair is URL-encoded independently. A nil or empty map returns
// the URL unchanged.
func AppendQuery(rawURL string, params map[string]string) string {
	if len(params) == 0 {
		return rawURL
	}

	values := make(url.Values, len(params))
	for name, value := range params {
		values.Set(name, value)
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + values.Encode()
}

// SingleValueQuery flattens a multi-valued query collection into the
// string→string mapping the gateway pipeline works with. Only the first
// value of each parameter is kept.
func SingleValueQuery(values url.Values) map[string]string {
	if len(values) == 0 {
		return nil
	}
	params := make(map[string]string, len(values))
	for name, vals := range values {
		if len(vals) > 0 {
			params[name] = vals[0]
		}
	}
	return params
}

// StatusCapturingResponseWriter wraps http.ResponseWriter to track status
// code and written size. It is used by logging and metrics middleware that
// need to inspect the response after the handler has completed.
type StatusCapturingResponseWriter struct {
	http.ResponseWriter
	StatusCode    int
	Size          int
	HeaderWritten bool
}

// NewStatusCapturingResponseWriter creates a new StatusCapturingResponseWriter
// wrapping the provided http.ResponseWriter with a default status of 200 OK.
func NewStatusCapturingResponseWriter(w http.ResponseWriter) *StatusCapturingResponseWriter {
	return &StatusCapturingResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code and writes it to the underlying ResponseWriter.
func (w *StatusCapturingResponseWriter) WriteHeader(code int) {
	if w.HeaderWritten {
		return
	}
	w.StatusCode = code
	w.HeaderWritten = true
	w.ResponseWriter.WriteHeader(code)
}

// Write writes data to the underlying ResponseWriter and marks header as written.
func (w *StatusCapturingResponseWriter) Write(b []byte) (int, error) {
	if !w.HeaderWritten {
		w.HeaderWritten = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.Size += n
	return n, err
}

// Flush implements http.Flusher interface for streaming support.
func (w *StatusCapturingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compile-time interface assertion.
var _ http.Flusher = (*StatusCapturingResponseWriter)(nil)

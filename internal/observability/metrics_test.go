package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/springmesh/apigw/internal/util"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		namespace string
	}{
		{
			name:      "with custom namespace",
			namespace: "custom",
		},
		{
			name:      "with empty namespace uses default",
			namespace: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			metrics := NewMetrics(tt.namespace)

			assert.NotNil(t, metrics)
			assert.NotNil(t, metrics.requestsTotal)
			assert.NotNil(t, metrics.requestDuration)
			assert.NotNil(t, metrics.authCacheHits)
			assert.NotNil(t, metrics.authCacheMisses)
			assert.NotNil(t, metrics.validationCalls)
			assert.NotNil(t, metrics.upstreamErrors)
			assert.NotNil(t, metrics.registry)
		})
	}
}

func TestMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test")

	// Should not panic
	metrics.RecordRequest("GET", "User-Service", 200, 100*time.Millisecond)
	metrics.RecordRequest("POST", "Auth-Service", 401, 5*time.Millisecond)
}

func TestMetrics_RecordAuthCache(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test")

	metrics.RecordAuthCacheHit()
	metrics.RecordAuthCacheMiss()
	metrics.RecordValidationCall("valid")
	metrics.RecordValidationCall("invalid")
	metrics.RecordValidationCall("error")
}

func TestMetrics_RecordUpstreamError(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test")

	metrics.RecordUpstreamError("Product-Service")
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test")
	metrics.SetBuildInfo("1.0.0", "abc123", "2026-01-01")
	metrics.RecordRequest("GET", "User-Service", 200, 10*time.Millisecond)
	metrics.RecordAuthCacheHit()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	metrics.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	output := string(body)
	assert.Contains(t, output, "test_requests_total")
	assert.Contains(t, output, "test_auth_cache_hits_total")
	assert.Contains(t, output, "test_build_info")
}

func TestMetrics_Registry(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test")

	assert.NotNil(t, metrics.Registry())
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("records resolved service", func(t *testing.T) {
		t.Parallel()

		metrics := NewMetrics("test")

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			util.RecordService(r.Context(), "User-Service")
			w.WriteHeader(http.StatusNoContent)
		})

		req := httptest.NewRequest(http.MethodGet, "/spring/users/42", nil)
		rec := httptest.NewRecorder()

		MetricsMiddleware(metrics)(handler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, scrape(t, metrics), `service="User-Service"`)
	})

	t.Run("falls back to unmatched label", func(t *testing.T) {
		t.Parallel()

		metrics := NewMetrics("test")

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
		rec := httptest.NewRecorder()

		MetricsMiddleware(metrics)(handler).ServeHTTP(rec, req)

		assert.Contains(t, scrape(t, metrics), `service="unmatched"`)
	})
}

// scrape renders the metrics endpoint output as a string.
func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	var sb strings.Builder
	_, err := io.Copy(&sb, rec.Body)
	require.NoError(t, err)

	return sb.String()
}

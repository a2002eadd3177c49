package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/springmesh/apigw/internal/auth"
	"github.com/springmesh/apigw/internal/backend"
	"github.com/springmesh/apigw/internal/cache"
	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
	"github.com/springmesh/apigw/internal/registry"
	"github.com/springmesh/apigw/internal/router"
)

// fixture wires a full pipeline against httptest auth and user
// services.
type fixture struct {
	handler *Handler
	cache   cache.Cache

	validateCalls *atomic.Int32
	loginCalls    *atomic.Int32
	userCalls     *atomic.Int32
	lastUserReq   *atomic.Value
}

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

func newFixture(t *testing.T, validateStatus int) *fixture {
	t.Helper()

	var validateCalls, loginCalls, userCalls atomic.Int32
	var lastUserReq atomic.Value

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/spring/auth/login":
			loginCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"token":"issued-token","user":"bob"}`)
		case "/spring/auth/validateToken":
			validateCalls.Add(1)
			w.WriteHeader(validateStatus)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(authSrv.Close)

	userSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		lastUserReq.Store(capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"users":[]}`)
	}))
	t.Cleanup(userSrv.Close)

	tokenCache, err := cache.New(&config.CacheConfig{Type: config.CacheTypeMemory}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tokenCache.Close() })

	reg, err := registry.New(&config.RegistryConfig{
		Type: config.RegistryTypeStatic,
		Services: map[string][]string{
			"Auth-Service": {authSrv.URL},
			"User-Service": {userSrv.URL},
		},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	connector := backend.NewConnector(nil)
	t.Cleanup(connector.Close)

	cfg := config.DefaultConfig()

	guard := auth.NewGuard(&cfg.Gateway, tokenCache, reg, connector)
	resolver := router.FromConfig(cfg.Gateway.Routes)

	gw, err := New(&cfg.Gateway, resolver, reg, guard, connector, tokenCache,
		WithLogger(observability.NopLogger()))
	require.NoError(t, err)

	return &fixture{
		handler:       NewHandler(gw, observability.NopLogger()),
		cache:         tokenCache,
		validateCalls: &validateCalls,
		loginCalls:    &loginCalls,
		userCalls:     &userCalls,
		lastUserReq:   &lastUserReq,
	}
}

func (f *fixture) do(method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func authorized(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload["error"]
}

func TestGateway_Login_IssuesAndCachesToken(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	rec := f.do(http.MethodPost, "/spring/auth/login",
		jsonBody(`{"username":"bob","password":"secret"}`), nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "issued-token", payload["token"])
	assert.Equal(t, "bob", payload["user"])

	// The issued token is in the cache, so the first authenticated
	// request skips remote validation entirely.
	rec = f.do(http.MethodGet, "/spring/users", nil, authorized("issued-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(0), f.validateCalls.Load())
}

func TestGateway_Login_UpstreamRejectionPassesThrough(t *testing.T) {
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "bad credentials")
	}))
	defer authSrv.Close()

	f := newFixtureWithAuthServer(t, authSrv.URL)

	rec := f.do(http.MethodPost, "/spring/auth/login", jsonBody(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "bad credentials", rec.Body.String())
}

func TestGateway_Login_NonJSONResponsePassesThrough(t *testing.T) {
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "plain text token page")
	}))
	defer authSrv.Close()

	f := newFixtureWithAuthServer(t, authSrv.URL)

	rec := f.do(http.MethodPost, "/spring/auth/login", jsonBody(`{}`), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plain text token page", rec.Body.String())
}

func TestGateway_Login_ForwardShape(t *testing.T) {
	var lastLogin atomic.Value

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lastLogin.Store(capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token":"issued-token"}`)
	}))
	defer authSrv.Close()

	f := newFixtureWithAuthServer(t, authSrv.URL)

	t.Run("query params are not forwarded", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/spring/auth/login?debug=1",
			jsonBody(`{"username":"bob"}`),
			map[string]string{"X-Client": "cli"})
		require.Equal(t, http.StatusOK, rec.Code)

		captured := lastLogin.Load().(capturedRequest)
		assert.Equal(t, http.MethodPost, captured.Method)
		assert.Equal(t, "/spring/auth/login", captured.Path)
		assert.Empty(t, captured.Query)
		assert.Equal(t, "cli", captured.Header.Get("X-Client"))
		assert.Equal(t, `{"username":"bob"}`, captured.Body)
	})

	t.Run("non-POST login forwards as POST with body", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/spring/auth/login",
			jsonBody(`{"username":"bob"}`), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		captured := lastLogin.Load().(capturedRequest)
		assert.Equal(t, http.MethodPost, captured.Method)
		assert.Equal(t, `{"username":"bob"}`, captured.Body)
	})
}

func TestGateway_MissingToken(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	rec := f.do(http.MethodGet, "/spring/users", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Auth token not found in headers", errorBody(t, rec))
	assert.Equal(t, int32(0), f.userCalls.Load())
}

func TestGateway_InvalidToken(t *testing.T) {
	f := newFixture(t, http.StatusUnauthorized)

	rec := f.do(http.MethodGet, "/spring/users", nil, authorized("bad-token"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid auth token", errorBody(t, rec))
	assert.Equal(t, int32(0), f.userCalls.Load())
}

func TestGateway_ValidToken_ForwardsAndCaches(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	rec := f.do(http.MethodGet, "/spring/users", nil, authorized("tok1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":[]}`, rec.Body.String())
	assert.Equal(t, int32(1), f.validateCalls.Load())

	// Second request rides the cache
	rec = f.do(http.MethodGet, "/spring/users", nil, authorized("tok1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), f.validateCalls.Load())
	assert.Equal(t, int32(2), f.userCalls.Load())
}

func TestGateway_ForwardPreservesRequestShape(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	rec := f.do(http.MethodPost, "/spring/users/42?page=2&size=10",
		jsonBody(`{"name":"alice"}`),
		map[string]string{
			"Authorization": "Bearer tok1",
			"X-Tenant":      "acme",
		})
	require.Equal(t, http.StatusOK, rec.Code)

	captured := f.lastUserReq.Load().(capturedRequest)
	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "/spring/users/42", captured.Path)
	assert.Contains(t, captured.Query, "page=2")
	assert.Contains(t, captured.Query, "size=10")
	assert.Equal(t, "acme", captured.Header.Get("X-Tenant"))
	assert.Equal(t, "Bearer tok1", captured.Header.Get("Authorization"))
	assert.Equal(t, `{"name":"alice"}`, captured.Body)
}

func TestGateway_GetBodyIsDropped(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	rec := f.do(http.MethodGet, "/spring/users", jsonBody(`{"ignored":true}`),
		authorized("tok1"))
	require.Equal(t, http.StatusOK, rec.Code)

	captured := f.lastUserReq.Load().(capturedRequest)
	assert.Empty(t, captured.Body)
}

func TestGateway_BodyAtLimitForwardsIntact(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	exact := strings.Repeat("b", maxRequestBody)
	rec := f.do(http.MethodPost, "/spring/users", strings.NewReader(exact),
		authorized("tok1"))
	require.Equal(t, http.StatusOK, rec.Code)

	captured := f.lastUserReq.Load().(capturedRequest)
	assert.Len(t, captured.Body, maxRequestBody)
}

func TestGateway_OversizedBodyRejected(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	big := strings.Repeat("a", maxRequestBody+1)
	rec := f.do(http.MethodPost, "/spring/users", strings.NewReader(big),
		authorized("tok1"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "request body too large", errorBody(t, rec))
	assert.Equal(t, int32(0), f.userCalls.Load())
}

func TestGateway_RouteNotFound(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	rec := f.do(http.MethodGet, "/api/unknown", nil, authorized("tok1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Endpoint route not found: /api/unknown", errorBody(t, rec))
}

func TestGateway_ServiceNotInRegistry(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	// Product-Service is routed but never registered
	rec := f.do(http.MethodGet, "/spring/products", nil, authorized("tok1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Product-Service: not found in registry", errorBody(t, rec))
}

func TestGateway_UpstreamUnreachable(t *testing.T) {
	tokenCache, err := cache.New(&config.CacheConfig{}, nil)
	require.NoError(t, err)
	defer tokenCache.Close()

	// Pre-cache the token so validation never needs the auth service
	require.NoError(t, tokenCache.Set(context.Background(), "tok1", []byte("1"), time.Hour))

	reg, err := registry.New(&config.RegistryConfig{
		Services: map[string][]string{
			"User-Service": {"http://127.0.0.1:1"},
		},
	}, nil)
	require.NoError(t, err)
	defer reg.Close()

	connector := backend.NewConnector(nil)
	defer connector.Close()

	cfg := config.DefaultConfig()
	guard := auth.NewGuard(&cfg.Gateway, tokenCache, reg, connector)

	gw, err := New(&cfg.Gateway, router.FromConfig(cfg.Gateway.Routes), reg, guard,
		connector, tokenCache)
	require.NoError(t, err)

	handler := NewHandler(gw, observability.NopLogger())

	req := httptest.NewRequest(http.MethodGet, "/spring/users", nil)
	req.Header.Set("Authorization", "Bearer tok1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGateway_UpstreamErrorStatusPassesThrough(t *testing.T) {
	userSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Error-Code", "U500")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "user service exploded")
	}))
	defer userSrv.Close()

	f := newFixtureWithUserServer(t, userSrv.URL)

	rec := f.do(http.MethodGet, "/spring/users", nil, authorized("tok1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "user service exploded", rec.Body.String())
	assert.Equal(t, "U500", rec.Header().Get("X-Error-Code"))
}

// newFixtureWithAuthServer wires a pipeline whose Auth-Service is the
// given URL; no other services are registered.
func newFixtureWithAuthServer(t *testing.T, authURL string) *fixture {
	t.Helper()
	return newCustomFixture(t, map[string][]string{"Auth-Service": {authURL}})
}

// newFixtureWithUserServer wires a pipeline with a pre-validated token
// and the given User-Service URL.
func newFixtureWithUserServer(t *testing.T, userURL string) *fixture {
	t.Helper()

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(authSrv.Close)

	return newCustomFixture(t, map[string][]string{
		"Auth-Service": {authSrv.URL},
		"User-Service": {userURL},
	})
}

func newCustomFixture(t *testing.T, services map[string][]string) *fixture {
	t.Helper()

	tokenCache, err := cache.New(&config.CacheConfig{Type: config.CacheTypeMemory}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tokenCache.Close() })

	reg, err := registry.New(&config.RegistryConfig{
		Type:     config.RegistryTypeStatic,
		Services: services,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	connector := backend.NewConnector(nil)
	t.Cleanup(connector.Close)

	cfg := config.DefaultConfig()
	guard := auth.NewGuard(&cfg.Gateway, tokenCache, reg, connector)

	gw, err := New(&cfg.Gateway, router.FromConfig(cfg.Gateway.Routes), reg, guard,
		connector, tokenCache)
	require.NoError(t, err)

	var unused atomic.Int32
	var unusedReq atomic.Value

	return &fixture{
		handler:       NewHandler(gw, observability.NopLogger()),
		cache:         tokenCache,
		validateCalls: &unused,
		loginCalls:    &unused,
		userCalls:     &unused,
		lastUserReq:   &unusedReq,
	}
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

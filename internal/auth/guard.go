package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/springmesh/apigw/internal/backend"
	"github.com/springmesh/apigw/internal/cache"
	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
	"github.com/springmesh/apigw/internal/registry"
)

// cachedTokenValue marks a token as valid in the cache. Only presence
// of the key matters.
const cachedTokenValue = "1"

// Guard validates bearer tokens against the cache, falling back to the
// remote auth service on a miss.
type Guard struct {
	cache     cache.Cache
	registry  registry.Registry
	connector *backend.Connector
	logger    observability.Logger
	metrics   *observability.Metrics

	authService  string
	validatePath string
	tokenTTL     time.Duration
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardLogger sets the logger for the guard.
func WithGuardLogger(logger observability.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithGuardMetrics sets the metrics recorder for the guard.
func WithGuardMetrics(m *observability.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// NewGuard creates a token validation guard.
func NewGuard(
	cfg *config.GatewayConfig,
	tokenCache cache.Cache,
	reg registry.Registry,
	connector *backend.Connector,
	opts ...GuardOption,
) *Guard {
	g := &Guard{
		cache:        tokenCache,
		registry:     reg,
		connector:    connector,
		logger:       observability.NopLogger(),
		authService:  cfg.AuthService,
		validatePath: cfg.ValidatePath,
		tokenTTL:     cfg.TokenTTL.Duration(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Validate reports whether a bearer token is valid.
//
// A cached token is accepted without contacting the auth service. On a
// cache miss the auth service is asked to validate the token; a 200
// response caches the token for the configured TTL and accepts it, any
// other status rejects it without caching. Discovery and transport
// failures return an error so the caller can distinguish "invalid
// token" from "could not validate".
func (g *Guard) Validate(ctx context.Context, token string, header http.Header) (bool, error) {
	_, err := g.cache.Get(ctx, token)
	if err == nil {
		g.logger.Debug("token accepted from cache")
		if g.metrics != nil {
			g.metrics.RecordAuthCacheHit()
		}
		return true, nil
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		// A broken cache should not lock out callers; fall through to
		// remote validation.
		g.logger.Warn("token cache lookup failed",
			observability.Error(err))
	}
	if g.metrics != nil {
		g.metrics.RecordAuthCacheMiss()
	}

	valid, err := g.validateRemote(ctx, header)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordValidationCall("error")
		}
		return false, err
	}

	if !valid {
		if g.metrics != nil {
			g.metrics.RecordValidationCall("invalid")
		}
		g.logger.Debug("token rejected by auth service")
		return false, nil
	}

	if g.metrics != nil {
		g.metrics.RecordValidationCall("valid")
	}

	if err := g.cache.Set(ctx, token, []byte(cachedTokenValue), g.tokenTTL); err != nil {
		// Validation already succeeded; a failed cache write only costs
		// a future remote call.
		g.logger.Warn("token cache write failed",
			observability.Error(err))
	}

	return true, nil
}

// validateRemote asks the auth service to validate the caller's token.
// The caller's headers travel with the request so the auth service sees
// the original Authorization header.
func (g *Guard) validateRemote(ctx context.Context, header http.Header) (bool, error) {
	instances, err := g.registry.Instances(ctx, g.authService)
	if err != nil {
		return false, err
	}

	url := instances[0].BaseURL + g.validatePath

	resp, err := g.connector.Do(ctx, g.authService, http.MethodPost, url, header, nil)
	if err != nil {
		return false, err
	}

	return resp.StatusCode == http.StatusOK, nil
}

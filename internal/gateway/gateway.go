// Package gateway implements the request pipeline of the API Gateway.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/springmesh/apigw/internal/auth"
	"github.com/springmesh/apigw/internal/backend"
	"github.com/springmesh/apigw/internal/cache"
	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
	"github.com/springmesh/apigw/internal/registry"
	"github.com/springmesh/apigw/internal/router"
	"github.com/springmesh/apigw/internal/util"
)

const (
	errTokenMissing = "Auth token not found in headers"
	errTokenInvalid = "Invalid auth token"
)

// Request is a decoded inbound request, independent of the HTTP server.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Query  map[string]string
	Body   []byte
}

// Gateway orchestrates the login/authenticate/route/discover/forward
// pipeline for every inbound request.
type Gateway struct {
	resolver  *router.Resolver
	registry  registry.Registry
	guard     *auth.Guard
	connector *backend.Connector
	cache     cache.Cache
	logger    observability.Logger
	metrics   *observability.Metrics

	loginPath   string
	authService string
	tokenTTL    config.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics recorder for the gateway.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New creates a gateway pipeline.
func New(
	cfg *config.GatewayConfig,
	resolver *router.Resolver,
	reg registry.Registry,
	guard *auth.Guard,
	connector *backend.Connector,
	tokenCache cache.Cache,
	opts ...Option,
) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	g := &Gateway{
		resolver:    resolver,
		registry:    reg,
		guard:       guard,
		connector:   connector,
		cache:       tokenCache,
		logger:      observability.NopLogger(),
		loginPath:   cfg.LoginPath,
		authService: cfg.AuthService,
		tokenTTL:    cfg.TokenTTL,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Handle runs a request through the pipeline and returns the upstream
// response. Errors are classified by the HTTP boundary: caller-input
// errors become 400, upstream transport failures 502.
func (g *Gateway) Handle(ctx context.Context, req *Request) (*backend.Response, error) {
	// The login path is the only route that bypasses authentication.
	if req.Path == g.loginPath {
		return g.login(ctx, req)
	}

	token := auth.ExtractBearerToken(req.Header)
	if token == "" {
		return nil, util.NewBadRequestError(errTokenMissing)
	}

	valid, err := g.guard.Validate(ctx, token, req.Header)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, util.NewBadRequestError(errTokenInvalid)
	}

	g.logger.Debug("valid auth token",
		observability.String("path", req.Path))

	service, err := g.resolver.Resolve(req.Path)
	if err != nil {
		return nil, err
	}

	util.RecordService(ctx, service)

	instance, err := g.discover(ctx, service)
	if err != nil {
		return nil, err
	}

	return g.forward(ctx, service, instance, req)
}

// login forwards a login request to the auth service and caches the
// issued token from the response. The forwarded call is always a POST
// to the bare login path: caller query parameters are dropped and the
// body travels regardless of the inbound method.
func (g *Gateway) login(ctx context.Context, req *Request) (*backend.Response, error) {
	util.RecordService(ctx, g.authService)

	instance, err := g.discover(ctx, g.authService)
	if err != nil {
		return nil, err
	}

	resp, err := g.connector.Do(ctx, g.authService, http.MethodPost,
		instance.BaseURL+req.Path, req.Header, req.Body)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordUpstreamError(g.authService)
		}
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	var payload map[string]string
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		g.logger.Warn("login response is not a flat JSON object, passing through",
			observability.Error(err))
		return resp, nil
	}

	token := payload["token"]
	if token == "" {
		g.logger.Warn("login response carries no token, passing through")
		return resp, nil
	}

	if err := g.cache.Set(ctx, token, []byte("1"), g.tokenTTL.Duration()); err != nil {
		g.logger.Warn("issued token could not be cached",
			observability.Error(err))
	}

	g.logger.Info("login token issued and cached")

	body, err := json.Marshal(payload)
	if err != nil {
		return resp, nil
	}

	header := util.CloneHeader(resp.Header)
	header.Set("Content-Type", "application/json")

	return &backend.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       body,
	}, nil
}

// discover resolves a service name to its first registered instance.
// Registry transport failures surface to the caller the same way as an
// unregistered service.
func (g *Gateway) discover(ctx context.Context, service string) (registry.Instance, error) {
	instances, err := g.registry.Instances(ctx, service)
	if err != nil {
		var notFound *registry.ServiceNotFoundError
		if !errors.As(err, &notFound) {
			g.logger.Error("registry lookup failed",
				observability.String("service", service),
				observability.Error(err))
			err = registry.NewServiceNotFoundError(service)
		}
		return registry.Instance{}, err
	}

	return instances[0], nil
}

// forward sends the request to the resolved instance. The request body
// travels only for methods that carry one.
func (g *Gateway) forward(
	ctx context.Context, service string, instance registry.Instance, req *Request,
) (*backend.Response, error) {
	url := util.AppendQuery(instance.BaseURL+req.Path, req.Query)

	var body []byte
	if methodCarriesBody(req.Method) {
		body = req.Body
	}

	resp, err := g.connector.Do(ctx, service, req.Method, url, req.Header, body)
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordUpstreamError(service)
		}
		return nil, err
	}

	return resp, nil
}

// methodCarriesBody reports whether a request body is forwarded for the
// method.
func methodCarriesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

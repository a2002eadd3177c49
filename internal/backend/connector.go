// Package backend provides the outbound HTTP client for upstream services.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
	"github.com/springmesh/apigw/internal/util"
)

const defaultTimeout = 30 * time.Second

// Response is a fully buffered upstream response.
type Response struct {
	// StatusCode is the upstream HTTP status, passed through verbatim.
	StatusCode int

	// Header holds the upstream response headers.
	Header http.Header

	// Body is the buffered response body.
	Body []byte
}

// Connector performs outbound HTTP calls to upstream instances.
type Connector struct {
	client *http.Client
	logger observability.Logger
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithConnectorLogger sets the logger for the connector.
func WithConnectorLogger(logger observability.Logger) ConnectorOption {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithTransport sets the transport for the connector.
func WithTransport(transport http.RoundTripper) ConnectorOption {
	return func(c *Connector) {
		c.client.Transport = transport
	}
}

// NewConnector creates a connector from the backend configuration.
func NewConnector(cfg *config.BackendConfig, opts ...ConnectorOption) *Connector {
	timeout := defaultTimeout
	transport := http.DefaultTransport

	if cfg != nil {
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout.Duration()
		}
		if cfg.MaxIdleConns > 0 || cfg.MaxIdleConnsPerHost > 0 {
			t := http.DefaultTransport.(*http.Transport).Clone()
			if cfg.MaxIdleConns > 0 {
				t.MaxIdleConns = cfg.MaxIdleConns
			}
			if cfg.MaxIdleConnsPerHost > 0 {
				t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
			}
			transport = t
		}
	}

	c := &Connector{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do sends a request to an upstream instance and buffers the response.
// Any HTTP status from the upstream, including 4xx and 5xx, produces a
// normal Response. Only transport failures return an error, wrapped as
// a util.UpstreamError.
func (c *Connector) Do(
	ctx context.Context, service, method, url string, header http.Header, body []byte,
) (*Response, error) {
	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, util.NewBadRequestErrorWithCause("invalid upstream request: "+err.Error(), err)
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("upstream call failed",
			observability.String("service", service),
			observability.String("method", method),
			observability.String("url", url),
			observability.Error(err))
		return nil, util.NewUpstreamError(service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, util.NewUpstreamError(service, err)
	}

	c.logger.Debug("upstream call completed",
		observability.String("service", service),
		observability.String("method", method),
		observability.String("url", url),
		observability.Int("status", resp.StatusCode),
		observability.Duration("duration", time.Since(start)))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     util.CloneHeader(resp.Header),
		Body:       respBody,
	}, nil
}

// Close releases idle connections held by the transport.
func (c *Connector) Close() {
	c.client.CloseIdleConnections()
}

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
)

const (
	defaultEurekaTimeout = 10 * time.Second

	// eurekaCacheTTL bounds how long a discovery result is reused before
	// the Eureka server is queried again.
	eurekaCacheTTL = 30 * time.Second
)

var _ Registry = (*eurekaRegistry)(nil)

// eurekaRegistry resolves services against a Eureka server over its REST API.
type eurekaRegistry struct {
	logger    observability.Logger
	client    *http.Client
	serverURL string

	mu    sync.RWMutex
	cache map[string]eurekaCacheEntry
}

type eurekaCacheEntry struct {
	instances []Instance
	fetchedAt time.Time
}

// eurekaApplication mirrors the Eureka /apps/{name} JSON response.
type eurekaApplication struct {
	Application struct {
		Name     string `json:"name"`
		Instance []struct {
			HostName string `json:"hostName"`
			Status   string `json:"status"`
			Port     struct {
				Value int `json:"$"`
			} `json:"port"`
		} `json:"instance"`
	} `json:"application"`
}

// newEurekaRegistry creates a registry backed by a Eureka server.
func newEurekaRegistry(cfg *config.RegistryConfig, logger observability.Logger) (*eurekaRegistry, error) {
	if cfg.Eureka == nil || cfg.Eureka.ServerURL == "" {
		return nil, errors.New("eureka server URL is required")
	}

	timeout := cfg.Eureka.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultEurekaTimeout
	}

	r := &eurekaRegistry{
		logger:    logger,
		serverURL: strings.TrimRight(cfg.Eureka.ServerURL, "/"),
		client:    &http.Client{Timeout: timeout},
		cache:     make(map[string]eurekaCacheEntry),
	}

	logger.Info("eureka registry initialized",
		observability.String("serverURL", r.serverURL),
		observability.Duration("timeout", timeout))

	return r, nil
}

// Instances returns the UP instances registered for a service.
func (r *eurekaRegistry) Instances(ctx context.Context, service string) ([]Instance, error) {
	if cached, ok := r.cached(service); ok {
		return cached, nil
	}

	instances, err := r.fetch(ctx, service)
	if err != nil {
		return nil, err
	}

	if len(instances) == 0 {
		return nil, NewServiceNotFoundError(service)
	}

	r.mu.Lock()
	r.cache[service] = eurekaCacheEntry{instances: instances, fetchedAt: time.Now()}
	r.mu.Unlock()

	return instances, nil
}

// cached returns a fresh cached result if one exists.
func (r *eurekaRegistry) cached(service string) ([]Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[service]
	if !ok || time.Since(entry.fetchedAt) > eurekaCacheTTL {
		return nil, false
	}

	out := make([]Instance, len(entry.instances))
	copy(out, entry.instances)
	return out, true
}

// fetch queries the Eureka server for a single application.
func (r *eurekaRegistry) fetch(ctx context.Context, service string) ([]Instance, error) {
	url := r.serverURL + "/apps/" + strings.ToUpper(service)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("eureka query failed",
			observability.String("service", service),
			observability.Error(err))
		return nil, fmt.Errorf("eureka query for %s: %w", service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, NewServiceNotFoundError(service)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eureka query for %s: unexpected status %d", service, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("eureka query for %s: %w", service, err)
	}

	var app eurekaApplication
	if err := json.Unmarshal(body, &app); err != nil {
		return nil, fmt.Errorf("eureka response for %s: %w", service, err)
	}

	instances := make([]Instance, 0, len(app.Application.Instance))
	for _, inst := range app.Application.Instance {
		if !strings.EqualFold(inst.Status, "UP") {
			continue
		}
		instances = append(instances, Instance{
			Service: service,
			BaseURL: fmt.Sprintf("http://%s:%d", inst.HostName, inst.Port.Value),
		})
	}

	r.logger.Debug("eureka instances resolved",
		observability.String("service", service),
		observability.Int("count", len(instances)))

	return instances, nil
}

// Close implements Registry.
func (r *eurekaRegistry) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

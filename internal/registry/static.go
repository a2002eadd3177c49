package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
)

var _ Registry = (*staticRegistry)(nil)

// staticRegistry serves instances from the configuration file.
type staticRegistry struct {
	logger observability.Logger

	mu       sync.RWMutex
	services map[string][]Instance
}

// newStaticRegistry creates a registry backed by the static service map.
func newStaticRegistry(cfg *config.RegistryConfig, logger observability.Logger) *staticRegistry {
	r := &staticRegistry{
		logger:   logger,
		services: buildServiceMap(cfg.Services),
	}

	logger.Info("static registry initialized",
		observability.Int("services", len(r.services)))

	return r
}

// buildServiceMap converts the config service map into instances.
func buildServiceMap(services map[string][]string) map[string][]Instance {
	out := make(map[string][]Instance, len(services))
	for name, urls := range services {
		instances := make([]Instance, 0, len(urls))
		for _, u := range urls {
			instances = append(instances, Instance{
				Service: name,
				BaseURL: strings.TrimRight(u, "/"),
			})
		}
		out[name] = instances
	}
	return out
}

// Instances returns the configured instances for a service.
func (r *staticRegistry) Instances(_ context.Context, service string) ([]Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances, ok := r.services[service]
	if !ok || len(instances) == 0 {
		return nil, NewServiceNotFoundError(service)
	}

	out := make([]Instance, len(instances))
	copy(out, instances)
	return out, nil
}

// Reload replaces the service map. Used by the config watcher.
func (r *staticRegistry) Reload(services map[string][]string) {
	updated := buildServiceMap(services)

	r.mu.Lock()
	r.services = updated
	r.mu.Unlock()

	r.logger.Info("static registry reloaded",
		observability.Int("services", len(updated)))
}

// Close implements Registry.
func (r *staticRegistry) Close() error {
	return nil
}

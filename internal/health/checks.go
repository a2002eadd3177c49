package health

import (
	"context"
	"time"

	"github.com/springmesh/apigw/internal/cache"
	"github.com/springmesh/apigw/internal/registry"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 2 * time.Second

// CacheCheck probes the token cache with an existence lookup.
func CacheCheck(c cache.Cache) CheckFunc {
	return func() Check {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if _, err := c.Exists(ctx, "health-probe"); err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}

		return Check{Status: StatusHealthy}
	}
}

// RegistryCheck probes the service registry by resolving a known
// service. An empty registry is degraded rather than unhealthy since
// the gateway can still serve cached auth decisions.
func RegistryCheck(r registry.Registry, probeService string) CheckFunc {
	return func() Check {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if _, err := r.Instances(ctx, probeService); err != nil {
			return Check{Status: StatusDegraded, Message: err.Error()}
		}

		return Check{Status: StatusHealthy}
	}
}

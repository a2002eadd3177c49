// Package registry provides service discovery for the API Gateway.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
)

// Common registry errors.
var (
	// ErrInvalidConfig indicates that the registry configuration is invalid.
	ErrInvalidConfig = errors.New("invalid registry configuration")
)

// ServiceNotFoundError indicates that a service has no registered instances.
type ServiceNotFoundError struct {
	Service string
}

// Error implements the error interface.
func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("%s: not found in registry", e.Service)
}

// NewServiceNotFoundError creates a new ServiceNotFoundError.
func NewServiceNotFoundError(service string) *ServiceNotFoundError {
	return &ServiceNotFoundError{Service: service}
}

// Instance is a single registered instance of a service.
type Instance struct {
	// Service is the logical service name the instance belongs to.
	Service string

	// BaseURL is the scheme://host:port root of the instance.
	BaseURL string
}

// Registry resolves logical service names to live instances.
type Registry interface {
	// Instances returns the registered instances for a service.
	// Returns a ServiceNotFoundError if the service has no instances.
	Instances(ctx context.Context, service string) ([]Instance, error)

	// Close releases any resources held by the registry.
	Close() error
}

// Reloader is implemented by registries that can swap their service
// table at runtime, used for config hot-reload.
type Reloader interface {
	Reload(services map[string][]string)
}

// New creates a registry based on the configuration.
func New(cfg *config.RegistryConfig, logger observability.Logger) (Registry, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.RegistryTypeStatic, "":
		return newStaticRegistry(cfg, logger), nil
	case config.RegistryTypeEureka:
		return newEurekaRegistry(cfg, logger)
	default:
		return nil, errors.New("unknown registry type: " + cfg.Type)
	}
}

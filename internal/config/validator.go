package config

import (
	"strings"

	"github.com/springmesh/apigw/internal/util"
)

// ValidateConfig validates a loaded configuration. Defaults are expected to
// have been applied already.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return util.NewConfigError("", "configuration is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return util.NewConfigError("server.port", "must be between 1 and 65535")
	}

	if !strings.HasPrefix(cfg.Gateway.LoginPath, "/") {
		return util.NewConfigError("gateway.loginPath", "must start with /")
	}
	if !strings.HasPrefix(cfg.Gateway.ValidatePath, "/") {
		return util.NewConfigError("gateway.validatePath", "must start with /")
	}
	if cfg.Gateway.TokenTTL <= 0 {
		return util.NewConfigError("gateway.tokenTTL", "must be positive")
	}

	for i, route := range cfg.Gateway.Routes {
		if !strings.HasPrefix(route.Prefix, "/") {
			return util.NewConfigError("gateway.routes", "prefix must start with /")
		}
		if route.Service == "" {
			return util.NewConfigError("gateway.routes", "service is required")
		}
		for _, other := range cfg.Gateway.Routes[:i] {
			if other.Prefix == route.Prefix {
				return util.NewConfigError("gateway.routes", "duplicate prefix "+route.Prefix)
			}
		}
	}

	if cfg.Backend.Timeout <= 0 {
		return util.NewConfigError("backend.timeout", "must be positive")
	}

	if err := validateRegistry(&cfg.Registry); err != nil {
		return err
	}

	return validateCache(&cfg.Cache)
}

// validateRegistry validates the registry section.
func validateRegistry(cfg *RegistryConfig) error {
	switch cfg.Type {
	case RegistryTypeStatic:
		return nil
	case RegistryTypeEureka:
		if cfg.Eureka == nil || cfg.Eureka.ServerURL == "" {
			return util.NewConfigError("registry.eureka.serverURL", "required for eureka registry")
		}
		return nil
	default:
		return util.NewConfigError("registry.type", "unknown registry type "+cfg.Type)
	}
}

// validateCache validates the cache section.
func validateCache(cfg *CacheConfig) error {
	switch cfg.Type {
	case CacheTypeMemory:
		return nil
	case CacheTypeRedis:
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return util.NewConfigError("cache.redis.url", "required for redis cache")
		}
		return nil
	default:
		return util.NewConfigError("cache.type", "unknown cache type "+cfg.Type)
	}
}

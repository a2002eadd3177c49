// Package config provides configuration types and loading for the API Gateway.
package config

import "time"

// Registry types.
const (
	RegistryTypeStatic = "static"
	RegistryTypeEureka = "eureka"
)

// Cache types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Default values applied by ApplyDefaults.
const (
	defaultListenPort      = 8080
	defaultMetricsPort     = 9090
	defaultBackendTimeout  = 30 * time.Second
	defaultTokenTTL        = 24 * time.Hour
	defaultLoginPath       = "/spring/auth/login"
	defaultValidatePath    = "/spring/auth/validateToken"
	defaultAuthServiceName = "Auth-Service"
)

// Config is the root configuration for the gateway.
type Config struct {
	Server        ServerConfig         `yaml:"server"`
	Gateway       GatewayConfig        `yaml:"gateway"`
	Backend       BackendConfig        `yaml:"backend"`
	Registry      RegistryConfig       `yaml:"registry"`
	Cache         CacheConfig          `yaml:"cache"`
	Observability *ObservabilityConfig `yaml:"observability"`
	RateLimit     *RateLimitConfig     `yaml:"rateLimit"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Bind            string   `yaml:"bind"`
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// GatewayConfig configures the request pipeline.
type GatewayConfig struct {
	// LoginPath is the exact path that bypasses authentication and is
	// forwarded to the auth service as a login call.
	LoginPath string `yaml:"loginPath"`

	// ValidatePath is the auth service path used for remote token validation.
	ValidatePath string `yaml:"validatePath"`

	// AuthService is the logical service identifier of the auth service.
	AuthService string `yaml:"authService"`

	// TokenTTL is how long a validated token stays in the cache.
	TokenTTL Duration `yaml:"tokenTTL"`

	// Routes optionally overrides the compiled-in prefix route table.
	// Matching prefers the longest prefix; declaration order only
	// breaks length ties.
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig maps a path prefix to a logical service identifier.
type RouteConfig struct {
	Prefix  string `yaml:"prefix"`
	Service string `yaml:"service"`
}

// BackendConfig configures the outbound HTTP client.
type BackendConfig struct {
	// Timeout bounds every outbound call, connection establishment included.
	Timeout Duration `yaml:"timeout"`

	// MaxIdleConns configures the transport's idle connection pool.
	MaxIdleConns int `yaml:"maxIdleConns"`

	// MaxIdleConnsPerHost configures per-host idle connections.
	MaxIdleConnsPerHost int `yaml:"maxIdleConnsPerHost"`
}

// RegistryConfig configures the service registry client.
type RegistryConfig struct {
	// Type selects the registry backend: "static" or "eureka".
	Type string `yaml:"type"`

	// Services maps logical service identifiers to instance base URLs
	// (static registry only).
	Services map[string][]string `yaml:"services"`

	// Eureka configures the Eureka REST client.
	Eureka *EurekaConfig `yaml:"eureka"`
}

// EurekaConfig configures the Eureka registry client.
type EurekaConfig struct {
	// ServerURL is the Eureka API base, e.g. "http://eureka:8761/eureka".
	ServerURL string `yaml:"serverURL"`

	// Timeout bounds each registry query.
	Timeout Duration `yaml:"timeout"`
}

// CacheConfig configures the token cache.
type CacheConfig struct {
	// Type selects the cache backend: "memory" or "redis".
	Type string `yaml:"type"`

	// MaxEntries bounds the memory cache size.
	MaxEntries int `yaml:"maxEntries"`

	// Redis configures the Redis cache backend.
	Redis *RedisCacheConfig `yaml:"redis"`
}

// RedisCacheConfig configures the Redis token cache.
type RedisCacheConfig struct {
	// URL is a redis:// connection URL.
	URL string `yaml:"url"`

	// KeyPrefix namespaces gateway keys in a shared Redis.
	KeyPrefix string `yaml:"keyPrefix"`

	// PoolSize overrides the client connection pool size.
	PoolSize int `yaml:"poolSize"`

	ConnectTimeout Duration `yaml:"connectTimeout"`
	ReadTimeout    Duration `yaml:"readTimeout"`
	WriteTimeout   Duration `yaml:"writeTimeout"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	Logging *LoggingConfig `yaml:"logging"`
	Metrics *MetricsConfig `yaml:"metrics"`
	Tracing *TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	ServiceName  string  `yaml:"serviceName"`
}

// RateLimitConfig configures the inbound rate limiter.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond"`
	Burst             int  `yaml:"burst"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultListenPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(120 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(30 * time.Second)
	}

	if c.Gateway.LoginPath == "" {
		c.Gateway.LoginPath = defaultLoginPath
	}
	if c.Gateway.ValidatePath == "" {
		c.Gateway.ValidatePath = defaultValidatePath
	}
	if c.Gateway.AuthService == "" {
		c.Gateway.AuthService = defaultAuthServiceName
	}
	if c.Gateway.TokenTTL == 0 {
		c.Gateway.TokenTTL = Duration(defaultTokenTTL)
	}

	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = Duration(defaultBackendTimeout)
	}

	if c.Registry.Type == "" {
		c.Registry.Type = RegistryTypeStatic
	}

	if c.Cache.Type == "" {
		c.Cache.Type = CacheTypeMemory
	}

	if c.Observability != nil && c.Observability.Metrics != nil {
		if c.Observability.Metrics.Port == 0 {
			c.Observability.Metrics.Port = defaultMetricsPort
		}
		if c.Observability.Metrics.Path == "" {
			c.Observability.Metrics.Path = "/metrics"
		}
	}
}

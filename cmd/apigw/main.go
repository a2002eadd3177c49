// Package main is the entry point for the API Gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/springmesh/apigw/internal/auth"
	"github.com/springmesh/apigw/internal/backend"
	"github.com/springmesh/apigw/internal/cache"
	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/gateway"
	"github.com/springmesh/apigw/internal/health"
	"github.com/springmesh/apigw/internal/middleware"
	"github.com/springmesh/apigw/internal/observability"
	"github.com/springmesh/apigw/internal/registry"
	"github.com/springmesh/apigw/internal/router"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("APIGW_CONFIG_PATH", ""),
		"Path to configuration file (optional, defaults are compiled in)")
	logLevel := flag.String("log-level", getEnvOrDefault("APIGW_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("APIGW_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("apigw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads the configuration, falling back to the
// compiled-in defaults when no config file is given.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting apigw",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg := config.DefaultConfig()

	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Fatal("failed to load configuration", observability.Error(err))
		}
		cfg = loaded
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("registry", cfg.Registry.Type),
		observability.String("cache", cfg.Cache.Type),
		observability.Int("routes", len(cfg.Gateway.Routes)),
	)

	return cfg
}

// application holds all application components.
type application struct {
	server        *gateway.Server
	registry      registry.Registry
	resolver      *router.Resolver
	tokenCache    cache.Cache
	connector     *backend.Connector
	healthChecker *health.Checker
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	config        *config.Config
}

// initApplication wires all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	metrics := observability.NewMetrics("apigw")
	metrics.SetBuildInfo(version, gitCommit, buildTime)
	tracer := initTracer(cfg, logger)
	healthChecker := health.NewChecker(version)

	tokenCache, err := cache.New(&cfg.Cache, logger)
	if err != nil {
		logger.Fatal("failed to initialize token cache", observability.Error(err))
	}

	reg, err := registry.New(&cfg.Registry, logger)
	if err != nil {
		logger.Fatal("failed to initialize service registry", observability.Error(err))
	}

	connector := backend.NewConnector(&cfg.Backend,
		backend.WithConnectorLogger(logger))

	resolver := router.FromConfig(cfg.Gateway.Routes)

	guard := auth.NewGuard(&cfg.Gateway, tokenCache, reg, connector,
		auth.WithGuardLogger(logger),
		auth.WithGuardMetrics(metrics))

	gw, err := gateway.New(&cfg.Gateway, resolver, reg, guard, connector, tokenCache,
		gateway.WithLogger(logger),
		gateway.WithMetrics(metrics))
	if err != nil {
		logger.Fatal("failed to create gateway", observability.Error(err))
	}

	handler := buildMiddlewareChain(gateway.NewHandler(gw, logger), cfg, logger, metrics, tracer)

	server, err := gateway.NewServer(cfg.Server, handler,
		gateway.WithServerLogger(logger))
	if err != nil {
		logger.Fatal("failed to create server", observability.Error(err))
	}

	healthChecker.RegisterCheck("cache", health.CacheCheck(tokenCache))
	healthChecker.RegisterCheck("registry", health.RegistryCheck(reg, cfg.Gateway.AuthService))

	return &application{
		server:        server,
		registry:      reg,
		resolver:      resolver,
		tokenCache:    tokenCache,
		connector:     connector,
		healthChecker: healthChecker,
		metrics:       metrics,
		tracer:        tracer,
		config:        cfg,
	}
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracerCfg := observability.TracerConfig{
		ServiceName:  "apigw",
		Enabled:      false,
		SamplingRate: 1.0,
	}

	if cfg.Observability != nil && cfg.Observability.Tracing != nil {
		tc := cfg.Observability.Tracing
		tracerCfg.Enabled = tc.Enabled
		tracerCfg.OTLPEndpoint = tc.OTLPEndpoint
		if tc.SamplingRate > 0 {
			tracerCfg.SamplingRate = tc.SamplingRate
		}
		if tc.ServiceName != "" {
			tracerCfg.ServiceName = tc.ServiceName
		}
	}

	tracer, err := observability.NewTracer(tracerCfg)
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// buildMiddlewareChain assembles the inbound middleware stack.
func buildMiddlewareChain(
	handler http.Handler,
	cfg *config.Config,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) http.Handler {
	h := handler

	h = middleware.RateLimit(cfg.RateLimit, logger)(h)
	h = observability.MetricsMiddleware(metrics)(h)
	h = observability.TracingMiddleware(tracer)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(logger)(h)

	return h
}

// run starts everything and blocks until shutdown.
func run(app *application, configPath string, logger observability.Logger) {
	ctx := context.Background()

	if err := app.server.Start(ctx); err != nil {
		logger.Fatal("failed to start gateway server", observability.Error(err))
	}

	startMetricsServerIfEnabled(app, logger)
	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// startMetricsServerIfEnabled starts the metrics server if enabled.
func startMetricsServerIfEnabled(app *application, logger observability.Logger) {
	obs := app.config.Observability
	if obs == nil || obs.Metrics == nil || !obs.Metrics.Enabled {
		return
	}

	metricsPath := obs.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	metricsPort := obs.Metrics.Port
	if metricsPort == 0 {
		metricsPort = 9090
	}

	go startMetricsServer(metricsPort, metricsPath, app.metrics, app.healthChecker, logger)
}

// startMetricsServer serves metrics and health probes.
func startMetricsServer(
	port int,
	path string,
	metrics *observability.Metrics,
	healthChecker *health.Checker,
	logger observability.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	mux.HandleFunc("/health", healthChecker.HealthHandler())
	mux.HandleFunc("/ready", healthChecker.ReadinessHandler())
	mux.HandleFunc("/live", healthChecker.LivenessHandler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("starting metrics server",
		observability.String("address", addr),
		observability.String("metrics_path", path),
	)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", observability.Error(err))
	}
}

// startConfigWatcher hot-reloads the route table and the static service
// registry when the config file changes.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, config.WithLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	watcher.OnReload(func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading routes")

		routes := make([]router.Route, 0, len(newCfg.Gateway.Routes))
		for _, rc := range newCfg.Gateway.Routes {
			routes = append(routes, router.Route{Prefix: rc.Prefix, Service: rc.Service})
		}
		app.resolver.Reload(routes)
	})

	watcher.OnReload(func(newCfg *config.Config) {
		if rel, ok := app.registry.(registry.Reloader); ok {
			logger.Info("configuration changed, reloading registry")
			rel.Reload(newCfg.Registry.Services)
		}
	})

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown blocks on SIGINT/SIGTERM and shuts everything down.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	app.connector.Close()

	if err := app.registry.Close(); err != nil {
		logger.Error("failed to close registry", observability.Error(err))
	}

	if err := app.tokenCache.Close(); err != nil {
		logger.Error("failed to close token cache", observability.Error(err))
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("gateway stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

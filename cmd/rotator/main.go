// Package main is the entry point for the proxy rotation service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avproxypool/internal/config"
	"github.com/vyrodovalexey/avproxypool/internal/health"
	"github.com/vyrodovalexey/avproxypool/internal/observability"
	"github.com/vyrodovalexey/avproxypool/internal/rotation"
	"github.com/vyrodovalexey/avproxypool/internal/server"
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
	watchConfig bool
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

	run(cfg, flags, logger)
}

// parseFlags parses command line flags, with environment fallbacks.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("ROTATOR_CONFIG_PATH", "configs/rotator.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("ROTATOR_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("ROTATOR_LOG_FORMAT", "json"),
		"Log format (json, console)")
	watchConfig := flag.Bool("watch-config", false,
		"Reload the proxy pool when the configuration file changes")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		watchConfig: *watchConfig,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("avproxypool version %s\n", version)
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

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting avproxypool",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.Int("proxies", len(cfg.Pool.Proxies)),
		observability.Duration("cooldown", cfg.Pool.Cooldown.Duration()),
	)

	return cfg
}

// run builds the application and blocks until shutdown.
func run(cfg *config.Config, flags cliFlags, logger observability.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("proxypool")

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SampleRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	manager, err := rotation.NewManagerFromConfig(cfg.Pool,
		rotation.WithLogger(logger),
		rotation.WithMetrics(metrics),
	)
	if err != nil {
		logger.Fatal("failed to build proxy pool", observability.Error(err))
	}

	checker := health.NewChecker(version)

	opts := []server.Option{
		server.WithChecker(checker),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(metrics))
	}
	if cfg.Tracing.Enabled {
		opts = append(opts, server.WithTracer(tracer))
	}
	if cfg.RateLimit.Enabled {
		limiter := server.NewRateLimiter(
			cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.PerClient)
		opts = append(opts, server.WithRateLimiter(limiter))
	}

	srv := server.NewServer(&server.Config{
		Address:      cfg.Server.Address,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  cfg.Server.IdleTimeout.Duration(),
		MetricsPath:  cfg.Metrics.Path,
	}, manager, logger, opts...)

	// The pool check resolves the manager through the server so that
	// a config reload swapping in a new pool is reflected here too.
	checker.RegisterCheck("pool", func() health.Check {
		return health.PoolCheck(srv.Manager())()
	})

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("failed to start server", observability.Error(err))
	}

	watcher := startWatcher(ctx, flags, srv, metrics, logger)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Error("failed to stop config watcher", observability.Error(err))
		}
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server", observability.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down tracer", observability.Error(err))
	}

	logger.Info("shutdown complete")
}

// startWatcher starts the configuration watcher when enabled. On a
// successful reload the server swaps in a freshly built pool.
func startWatcher(
	ctx context.Context,
	flags cliFlags,
	srv *server.Server,
	metrics *observability.Metrics,
	logger observability.Logger,
) *config.Watcher {
	if !flags.watchConfig {
		return nil
	}

	watcher, err := config.NewWatcher(flags.configPath, func(newCfg *config.Config) {
		manager, err := rotation.NewManagerFromConfig(newCfg.Pool,
			rotation.WithLogger(logger),
			rotation.WithMetrics(metrics),
		)
		if err != nil {
			logger.Error("reload rejected: failed to build proxy pool", observability.Error(err))
			return
		}
		srv.SetManager(manager)
		logger.Info("proxy pool replaced from reloaded configuration",
			observability.Int("proxies", manager.Size()),
		)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Fatal("failed to create config watcher", observability.Error(err))
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Fatal("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// getEnvOrDefault returns the environment variable value or a
// default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Package config provides configuration management for the proxy
// rotation service. Configuration is loaded from YAML files with
// environment variable substitution and validated eagerly at the
// construction boundary.
package config

import (
	"time"
)

// Default configuration values.
const (
	// DefaultPort is the default admin API port.
	DefaultPort = 8080

	// DefaultMetricsPath is the default metrics endpoint path.
	DefaultMetricsPath = "/metrics"

	// DefaultCooldown is the default minimum inter-use interval per
	// proxy.
	DefaultCooldown = Duration(1 * time.Second)

	// DefaultShutdownTimeout is the default graceful shutdown window.
	DefaultShutdownTimeout = Duration(15 * time.Second)
)

// Config holds the full service configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing"`
	RateLimit RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`
	Pool      PoolConfig      `json:"pool" yaml:"pool"`
}

// ServerConfig holds admin API server settings.
type ServerConfig struct {
	Address         string   `json:"address" yaml:"address"`
	Port            int      `json:"port" yaml:"port"`
	ReadTimeout     Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	OTLPEndpoint string  `json:"otlpEndpoint" yaml:"otlpEndpoint"`
	SampleRate   float64 `json:"sampleRate" yaml:"sampleRate"`
	ServiceName  string  `json:"serviceName" yaml:"serviceName"`
}

// RateLimitConfig holds admin API rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `json:"enabled" yaml:"enabled"`
	RequestsPerSecond int  `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int  `json:"burst" yaml:"burst"`
	PerClient         bool `json:"perClient" yaml:"perClient"`
}

// PoolConfig holds the proxy pool definition.
type PoolConfig struct {
	// Cooldown is the minimum interval between two uses of the same
	// proxy.
	Cooldown Duration `json:"cooldown" yaml:"cooldown"`

	// Proxies is the ordered pool. An empty list is legal; selection
	// then always reports that no proxy is available.
	Proxies []ProxyConfig `json:"proxies" yaml:"proxies"`
}

// ProxyConfig describes one upstream proxy endpoint.
type ProxyConfig struct {
	Endpoint    string   `json:"endpoint" yaml:"endpoint"`
	Username    string   `json:"username" yaml:"username"`
	Password    string   `json:"password" yaml:"password"`
	MaxFailures int      `json:"maxFailures" yaml:"maxFailures"`
	Timeout     Duration `json:"timeout" yaml:"timeout"`
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
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
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "avproxypool"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}

	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 100
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 200
	}

	if c.Pool.Cooldown == 0 {
		c.Pool.Cooldown = DefaultCooldown
	}
}

package config

import (
	"fmt"
)

// validLogLevels are the accepted logging levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig validates a configuration after defaults have been
// applied. Malformed proxy entries are rejected here so that a
// degenerate URI never reaches selection.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be in [1, 65535], got %d", cfg.Server.Port)
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid log level %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("invalid log format %q", cfg.Logging.Format)
	}

	if cfg.Tracing.Enabled && cfg.Tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing is enabled but otlpEndpoint is empty")
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be in [0, 1], got %g", cfg.Tracing.SampleRate)
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond < 1 {
			return fmt.Errorf("rate limit requestsPerSecond must be at least 1")
		}
		if cfg.RateLimit.Burst < cfg.RateLimit.RequestsPerSecond {
			return fmt.Errorf("rate limit burst must be at least requestsPerSecond")
		}
	}

	if cfg.Pool.Cooldown < 0 {
		return fmt.Errorf("pool cooldown must not be negative")
	}

	// An empty proxy list is legal: selection then reports that no
	// proxy is available. Each configured entry is still checked.
	for i, p := range cfg.Pool.Proxies {
		if p.Endpoint == "" {
			return fmt.Errorf("proxy %d: endpoint is required", i)
		}
		if p.MaxFailures < 0 {
			return fmt.Errorf("proxy %d: maxFailures must not be negative", i)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("proxy %d: timeout must not be negative", i)
		}
		if (p.Username == "") != (p.Password == "") {
			return fmt.Errorf("proxy %d: username and password must be set together", i)
		}
	}

	return nil
}

package rotation

import (
	"fmt"
	"time"
)

// Descriptor default configuration constants.
const (
	// DefaultFailureThreshold is the failure count at which a proxy
	// is considered unhealthy when none is configured.
	DefaultFailureThreshold = 3

	// DefaultTimeout is the advisory connection timeout applied when
	// none is configured.
	DefaultTimeout = 30 * time.Second

	// DefaultCooldown is the minimum interval between two uses of the
	// same proxy.
	DefaultCooldown = 1 * time.Second
)

// Descriptor is the immutable configuration for a single upstream
// proxy. Identity within a pool is positional: two descriptors with
// identical fields are distinct entries.
type Descriptor struct {
	// Endpoint is the proxy address, either host:port or
	// scheme://host:port. Required.
	Endpoint string

	// Username and Password are optional credentials embedded into
	// the formatted URI when both are set.
	Username string
	Password string

	// FailureThreshold is the failure count at which the proxy is
	// excluded from normal selection. Defaults to
	// DefaultFailureThreshold.
	FailureThreshold int

	// Timeout is the advisory connection timeout for requests issued
	// through this proxy. It is carried on every Selection and
	// consumed by the caller's HTTP client, never enforced by the
	// Manager. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// withDefaults returns a copy of the descriptor with zero-valued
// optional fields replaced by their defaults.
func (d Descriptor) withDefaults() Descriptor {
	if d.FailureThreshold == 0 {
		d.FailureThreshold = DefaultFailureThreshold
	}
	if d.Timeout == 0 {
		d.Timeout = DefaultTimeout
	}
	return d
}

// Validate checks the descriptor for construction-time errors.
// Validation is eager so that a degenerate endpoint never propagates
// into a Selection.
func (d Descriptor) Validate() error {
	if d.Endpoint == "" {
		return fmt.Errorf("proxy endpoint is required")
	}
	if d.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", d.FailureThreshold)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", d.Timeout)
	}
	return nil
}

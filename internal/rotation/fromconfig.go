package rotation

import (
	"github.com/vyrodovalexey/avproxypool/internal/config"
)

// NewManagerFromConfig creates a Manager from a pool configuration.
// The configured cooldown, when set, takes precedence over the
// default; explicit options still override it.
func NewManagerFromConfig(pool config.PoolConfig, opts ...ManagerOption) (*Manager, error) {
	descriptors := make([]Descriptor, 0, len(pool.Proxies))
	for _, p := range pool.Proxies {
		descriptors = append(descriptors, Descriptor{
			Endpoint:         p.Endpoint,
			Username:         p.Username,
			Password:         p.Password,
			FailureThreshold: p.MaxFailures,
			Timeout:          p.Timeout.Duration(),
		})
	}

	if pool.Cooldown > 0 {
		opts = append([]ManagerOption{WithCooldown(pool.Cooldown.Duration())}, opts...)
	}

	return NewManager(descriptors, opts...)
}

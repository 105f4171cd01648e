package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avproxypool/internal/config"
)

func TestNewManagerFromConfig(t *testing.T) {
	t.Parallel()

	pool := config.PoolConfig{
		Cooldown: config.Duration(500 * time.Millisecond),
		Proxies: []config.ProxyConfig{
			{Endpoint: "10.0.0.1:8080", Username: "a", Password: "b", MaxFailures: 2},
			{Endpoint: "10.0.0.2:8080", Timeout: config.Duration(10 * time.Second)},
		},
	}

	mgr, err := NewManagerFromConfig(pool)
	require.NoError(t, err)
	assert.Equal(t, 2, mgr.Size())

	sel, err := mgr.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://a:b@10.0.0.1:8080", sel.URI)
	assert.Equal(t, DefaultTimeout, sel.Timeout)

	sel, err = mgr.Select()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8080", sel.URI)
	assert.Equal(t, 10*time.Second, sel.Timeout)
}

func TestNewManagerFromConfig_InvalidProxy(t *testing.T) {
	t.Parallel()

	pool := config.PoolConfig{
		Proxies: []config.ProxyConfig{
			{Endpoint: ""},
		},
	}

	_, err := NewManagerFromConfig(pool)
	assert.Error(t, err)
}

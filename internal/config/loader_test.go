package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
logging:
  level: debug
pool:
  cooldown: 2s
  proxies:
    - endpoint: 10.0.0.1:8080
      username: user
      password: pass
      maxFailures: 5
      timeout: 10s
    - endpoint: socks5://10.0.0.2:1080
`

func TestLoadConfigFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.Pool.Cooldown.Duration())

	require.Len(t, cfg.Pool.Proxies, 2)
	assert.Equal(t, "10.0.0.1:8080", cfg.Pool.Proxies[0].Endpoint)
	assert.Equal(t, "user", cfg.Pool.Proxies[0].Username)
	assert.Equal(t, 5, cfg.Pool.Proxies[0].MaxFailures)
	assert.Equal(t, 10*time.Second, cfg.Pool.Proxies[0].Timeout.Duration())
	assert.Equal(t, "socks5://10.0.0.2:1080", cfg.Pool.Proxies[1].Endpoint)
}

func TestLoadConfigFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader("pool:\n  proxies: []\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	assert.Equal(t, time.Second, cfg.Pool.Cooldown.Duration())
	assert.Empty(t, cfg.Pool.Proxies)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("server: [not a map"))
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_PROXY_HOST", "10.1.2.3")

	content := substituteEnvVars("endpoint: ${TEST_PROXY_HOST}:8080")
	assert.Equal(t, "endpoint: 10.1.2.3:8080", content)
}

func TestSubstituteEnvVars_Default(t *testing.T) {
	t.Parallel()

	content := substituteEnvVars("endpoint: ${UNSET_PROXY_HOST:-localhost}:8080")
	assert.Equal(t, "endpoint: localhost:8080", content)
}

func TestSubstituteEnvVars_EmptyDefault(t *testing.T) {
	t.Parallel()

	content := substituteEnvVars("username: ${UNSET_PROXY_USER:-}")
	assert.Equal(t, "username: ", content)
}

func TestSubstituteEnvVars_UnsetWithoutDefault(t *testing.T) {
	t.Parallel()

	content := substituteEnvVars("endpoint: ${UNSET_PROXY_HOST}")
	assert.Equal(t, "endpoint: ", content)
}

func TestSubstituteEnvVars_EscapedDollar(t *testing.T) {
	t.Parallel()

	content := substituteEnvVars("password: pa$${literal}ss")
	assert.Equal(t, "password: pa${literal}ss", content)
}

package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfigFile(t, `
http:
  host: 127.0.0.1
  port: 9090
ws:
  send_buffer: 16
  pong_wait: 30s
  shutdown_grace: 2s
auth:
  secret: test-secret
  issuer: test-issuer
entitlements:
  t1:
    - s1
    - s2
  t2:
    - "*"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
	assert.Equal(t, uint16(9090), cfg.HTTP.Port)
	assert.Equal(t, 16, cfg.WS.SendBuffer)
	assert.Equal(t, 30*time.Second, cfg.WS.PongWait)
	assert.Equal(t, 2*time.Second, cfg.WS.ShutdownGrace)
	assert.Equal(t, "test-secret", cfg.Auth.Secret)
	assert.Equal(t, "test-issuer", cfg.Auth.Issuer)
	assert.Equal(t, []string{"s1", "s2"}, cfg.Entitlements["t1"])
	assert.Equal(t, []string{"*"}, cfg.Entitlements["t2"])
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  secret: test-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, uint16(8080), cfg.HTTP.Port)
	assert.Equal(t, 64, cfg.WS.SendBuffer)
	assert.Equal(t, int64(4096), cfg.WS.MaxMessageSize)
	assert.Equal(t, 60*time.Second, cfg.WS.PongWait)
	assert.Equal(t, 5*time.Second, cfg.WS.ShutdownGrace)
	assert.Equal(t, "farmsight-relay", cfg.Auth.Issuer)
	assert.Equal(t, 20, cfg.RateLimiter.RequestsPerTimeFrame)
	assert.Equal(t, 30*time.Second, cfg.Metrics.ReportInterval)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", "env-secret")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("WS_PONG_WAIT", "45s")
	t.Setenv("TRACING_ENDPOINT", "http://collector:4318")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.Secret)
	assert.Equal(t, uint16(9999), cfg.HTTP.Port)
	assert.Equal(t, 45*time.Second, cfg.WS.PongWait)
	assert.Equal(t, "http://collector:4318", cfg.Tracing.Endpoint)
	assert.True(t, cfg.Tracing.Enabled, "setting an endpoint enables tracing")
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	t.Setenv("AUTH_SECRET", "env-secret")

	path := writeConfigFile(t, `
auth:
  secret: file-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Auth.Secret)
}

func TestLoad_MissingSecretFails(t *testing.T) {
	_, err := Load("")
	assert.ErrorContains(t, err, "auth.secret")
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

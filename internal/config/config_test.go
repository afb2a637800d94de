package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(64*1024), cfg.WebSocket.ReadLimit)
	assert.Equal(t, 256, cfg.WebSocket.SendBufferSize)
	assert.Equal(t, 50, cfg.WebSocket.HistoryDepth)
	assert.True(t, cfg.WebSocket.PingInterval < cfg.WebSocket.PongWait)
	assert.Empty(t, cfg.Redis.Host)
	assert.True(t, cfg.Telemetry.MetricsEnabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9090"
  read_timeout: 5s
websocket:
  history_depth: 10
redis:
  host: localhost
  port: "6380"
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10, cfg.WebSocket.HistoryDepth)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr())
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep defaults
	assert.Equal(t, 256, cfg.WebSocket.SendBufferSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOARDSYNC_SERVER_PORT", "7070")
	t.Setenv("BOARDSYNC_WS_HISTORY_DEPTH", "5")
	t.Setenv("BOARDSYNC_WS_PONG_WAIT", "90s")
	t.Setenv("BOARDSYNC_REDIS_HOST", "redis.internal")
	t.Setenv("BOARDSYNC_LOG_IS_DEV", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 5, cfg.WebSocket.HistoryDepth)
	assert.Equal(t, 90*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr())
	assert.True(t, cfg.Logging.IsDev)
}

func TestValidateRejectsBadKeepalive(t *testing.T) {
	cfg := Default()
	cfg.WebSocket.PingInterval = cfg.WebSocket.PongWait

	assert.Error(t, cfg.Validate())
}

func TestRedisAddrEmptyWithoutHost(t *testing.T) {
	assert.Empty(t, RedisConfig{Port: "6379"}.Addr())
	assert.Equal(t, "h:6379", RedisConfig{Host: "h"}.Addr())
}

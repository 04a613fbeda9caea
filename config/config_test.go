package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadConfigDefaults(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	config, err := LoadConfig("", logger)
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "https://gateway.nexus.internal", config.Gateway.BaseUrl)
	assert.Equal(t, "90s", config.Inference.Timeout)
	assert.True(t, config.LocalRuntime.Allowed)
	assert.Equal(t, "openai/gpt-4o-mini", config.Models.Default)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", config.Models.Advanced)
	assert.Empty(t, config.ValkeyEndpoint)
}

func TestLoadConfigFromFile(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: 9000
valkey_endpoint: localhost:6379
gateway:
  base_url: https://gw.example.com
  timeout: 30s
local_runtime:
  allowed: false
models:
  default: fast-model
system_prompt: You are a routing assistant.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path, logger)
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Port)
	assert.Equal(t, "localhost:6379", config.ValkeyEndpoint)
	assert.Equal(t, "https://gw.example.com", config.Gateway.BaseUrl)
	assert.Equal(t, "30s", config.Gateway.Timeout)
	assert.False(t, config.LocalRuntime.Allowed)
	assert.Equal(t, "fast-model", config.Models.Default)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", config.Models.Advanced, "unset fields keep defaults")
	assert.Equal(t, "You are a routing assistant.", config.SystemPrompt)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	t.Setenv("PORT", "7070")
	t.Setenv("NEXUS_API_KEY", "env-key")
	t.Setenv("GATEWAY_BASE_URL", "https://env.example.com")
	t.Setenv("LOCAL_RUNTIME_ALLOWED", "false")

	config, err := LoadConfig("", logger)
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Port)
	assert.Equal(t, "env-key", config.ApiKey)
	assert.Equal(t, "https://env.example.com", config.Gateway.BaseUrl)
	assert.False(t, config.LocalRuntime.Allowed)
}

func TestLoadConfigMissingFile(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	_, err := LoadConfig("/nonexistent/config.yaml", logger)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestParseTimeout(t *testing.T) {
	assert.Equal(t, 60*time.Second, ParseTimeout("", 60*time.Second))
	assert.Equal(t, 90*time.Second, ParseTimeout("90s", time.Second))
	assert.Equal(t, time.Second, ParseTimeout("not-a-duration", time.Second))
}

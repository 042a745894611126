// ABOUTME: Tests for configuration loading, validation, and env expansion
// ABOUTME: Uses temp files to exercise the YAML parsing path end to end

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
completion:
  base_url: "https://api.openai.com/v1"
  api_key: "sk-test"
  timeout: "45s"
channel:
  provider: "streamchat"
  stream:
    api_key: "stream-key"
    api_secret: "stream-secret"
relay:
  context_window: 5
logging:
  level: "debug"
  format: "json"
`

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/parley.db", cfg.Database.Path)
	assert.Equal(t, "sk-test", cfg.Completion.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, "streamchat", cfg.Channel.Provider)
	assert.Equal(t, 5, cfg.Relay.ContextWindow)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Completion.Model)
	assert.Equal(t, DefaultFallbackReply, cfg.Completion.FallbackReply)
	assert.Equal(t, DefaultBotID, cfg.Channel.BotID)
	assert.Equal(t, 10*time.Second, cfg.Channel.Timeout)
}

func TestLoad_ContextWindowDefault(t *testing.T) {
	cfg := `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
completion:
  api_key: "sk-test"
channel:
  provider: "streamchat"
  stream:
    api_key: "k"
    api_secret: "s"
`
	loaded, err := Load(writeConfig(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, DefaultContextWindow, loaded.Relay.ContextWindow)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("PARLEY_TEST_API_KEY", "sk-from-env")

	cfg := `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
completion:
  api_key: "${PARLEY_TEST_API_KEY}"
channel:
  provider: "streamchat"
  stream:
    api_key: "k"
    api_secret: "s"
`
	loaded, err := Load(writeConfig(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", loaded.Completion.APIKey)
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	cfg := `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
completion:
  api_key: "${PARLEY_TEST_DEFINITELY_UNSET}"
channel:
  provider: "streamchat"
  stream:
    api_key: "k"
    api_secret: "s"
`
	_, err := Load(writeConfig(t, cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion.api_key is required")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	cfg := `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
completion:
  api_key: "sk-test"
  timeout: "soon"
channel:
  provider: "streamchat"
  stream:
    api_key: "k"
    api_secret: "s"
`
	_, err := Load(writeConfig(t, cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion.timeout")
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
completion:
  api_key: "sk-test"
channel:
  provider: "carrier-pigeon"
`
	_, err := Load(writeConfig(t, cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel.provider")
}

func TestValidate_MatrixProviderRequiresFields(t *testing.T) {
	cfg := `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
completion:
  api_key: "sk-test"
channel:
  provider: "matrix"
  matrix:
    homeserver: "https://matrix.example.com"
    user_id: "@parley:example.com"
    access_token: "syt_token"
`
	_, err := Load(writeConfig(t, cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel.matrix.domain")
}

func TestValidate_MatrixProviderComplete(t *testing.T) {
	cfg := `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
completion:
  api_key: "sk-test"
channel:
  provider: "matrix"
  matrix:
    homeserver: "https://matrix.example.com"
    user_id: "@parley:example.com"
    access_token: "syt_token"
    domain: "example.com"
`
	loaded, err := Load(writeConfig(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, "parley_", loaded.Channel.Matrix.LocalpartPrefix)
}

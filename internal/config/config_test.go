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

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["https://app.example.com"]

propeller:
  base_url: "https://crm.example.com/"
  api_token: "file-token"
  timeout_seconds: 45
  max_retries: 2

database:
  url: "postgres://gateway@localhost:5432/gateway?sslmode=disable"

redis:
  addr: "localhost:6379"
  lock_ttl_seconds: 5

logging:
  level: debug
  redact_pii: false

validation:
  timezone: "Australia/Sydney"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, "https://crm.example.com", cfg.Propeller.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "file-token", cfg.Propeller.APIToken)
	assert.Equal(t, 45*time.Second, cfg.Propeller.Timeout())
	assert.Equal(t, 2, cfg.Propeller.MaxRetries)

	assert.True(t, cfg.Database.Enabled())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Redis.LockTTL())

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Redact())
	assert.Equal(t, "Australia/Sydney", cfg.Validation.Timezone)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
propeller:
  api_token: "t"
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, DefaultPropellerBaseURL, cfg.Propeller.BaseURL)
	assert.Equal(t, 30, cfg.Propeller.TimeoutSeconds)
	assert.Equal(t, 0, cfg.Propeller.MaxRetries, "no retry loop unless configured")
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redact())

	loc, err := cfg.Validation.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
propeller:
  api_token: "file-token"
  base_url: "https://file-url.com"
`)

	t.Setenv("PROPELLER_API_TOKEN", "env-token")
	t.Setenv("PROPELLER_BASE_URL", "https://env-url.com/")
	t.Setenv("PROPELLER_MAX_RETRIES", "1")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Propeller.APIToken)
	assert.Equal(t, "https://env-url.com", cfg.Propeller.BaseURL)
	assert.Equal(t, 1, cfg.Propeller.MaxRetries)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 8081\n"))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_token")

	cfg.Propeller.APIToken = "t"
	assert.NoError(t, cfg.Validate())

	cfg.Validation.Timezone = "Mars/Olympus_Mons"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation.timezone")
}

func TestServerAddr(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("SERVER_HOST", "")

	cfg := ServerConfig{Host: "127.0.0.1", Port: 9000}
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
}

package merchantd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "merchantd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
admin_url: https://shop.example/admin
commerce:
  base_url: https://api.example
auth:
  jwt_secret: super-secret
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":7090", cfg.ListenAddress)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "merchantd.db", cfg.Database.Path)
	require.Equal(t, 5*time.Second, cfg.Poll.ConnectInterval.Duration)
	require.Equal(t, 3*time.Second, cfg.Poll.LoginInterval.Duration)
	require.Equal(t, 60, cfg.Poll.MaxAttempts)
	require.Equal(t, 15*time.Second, cfg.Commerce.Timeout.Duration)
}

func TestLoadConfigParsesDurations(t *testing.T) {
	path := writeConfig(t, `
admin_url: https://shop.example/admin
commerce:
  base_url: https://api.example
  timeout: 30s
auth:
  jwt_secret: super-secret
poll:
  connect_interval: 10s
  max_attempts: 10
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.Commerce.Timeout.Duration)
	require.Equal(t, 10*time.Second, cfg.Poll.ConnectInterval.Duration)
	require.Equal(t, 10, cfg.Poll.MaxAttempts)
}

func TestLoadConfigResolvesSecretFromEnv(t *testing.T) {
	t.Setenv("MERCHANTD_TEST_JWT", "env-secret")
	path := writeConfig(t, `
admin_url: https://shop.example/admin
commerce:
  base_url: https://api.example
auth:
  jwt_secret_env: MERCHANTD_TEST_JWT
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestLoadConfigRejectsMissingSecret(t *testing.T) {
	path := writeConfig(t, `
admin_url: https://shop.example/admin
commerce:
  base_url: https://api.example
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigRejectsPostgresWithoutDSN(t *testing.T) {
	path := writeConfig(t, `
admin_url: https://shop.example/admin
commerce:
  base_url: https://api.example
auth:
  jwt_secret: super-secret
database:
  driver: postgres
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

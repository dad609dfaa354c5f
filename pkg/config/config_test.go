package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("APP_CONFIG_NAME", "does-not-exist")
	t.Chdir(t.TempDir())

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvDev, cfg.Env)
	require.Equal(t, "USD", cfg.Billing.Currency)
	require.Equal(t, 200, cfg.Rollforward.BatchSize)
	require.Equal(t, 30*time.Minute, cfg.Rollforward.LockTTL)
	require.Equal(t, "products", cfg.Entitlement.ProductTable)
	require.True(t, cfg.IsDev())
}

func TestNew_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "svc.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
env: prod
auth:
  jwt_secret: s3cret
billing:
  currency: EUR
rollforward:
  batch_size: 50
  interval: 1h
`), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_SERVER_PORT", "9999")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Env)
	require.Equal(t, "EUR", cfg.Billing.Currency)
	require.Equal(t, 50, cfg.Rollforward.BatchSize)
	require.Equal(t, time.Hour, cfg.Rollforward.Interval)
	require.Equal(t, 9999, cfg.Server.Port)
}

func TestNew_ProdRequiresJWTSecret(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "svc.yaml")
	require.NoError(t, os.WriteFile(file, []byte("env: prod\n"), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_AUTH_JWT_SECRET", "")

	_, err := New()
	require.ErrorContains(t, err, "jwt_secret")
}

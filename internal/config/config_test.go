package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.yml")
	content := `
env: local
http_server:
  address: ":9090"
url_shortener:
  alias_length: 6
  base_url: "https://sho.rt"
database:
  host: db
  dbname: links
jwt:
  secret: file-secret
  access_token_ttl: 1h
redis:
  addr: "redis:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, ":9090", cfg.HTTPServer.Address)
	assert.Equal(t, "https://sho.rt", cfg.URLShortener.BaseURL)
	assert.Equal(t, 6, cfg.URLShortener.AliasLength)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "links", cfg.Database.DBName)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Analytics.Workers)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("BASE_URL", "http://localhost:3000")
	t.Setenv("ALIAS_LENGTH", "8")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, "http://localhost:3000", cfg.URLShortener.BaseURL)
	assert.Equal(t, 8, cfg.URLShortener.AliasLength)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 12, cfg.Password.BcryptCost)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.HTTPServer.AllowedOrigins)
}

func TestLoad_AllowedOriginsFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://app.sho.rt,https://admin.sho.rt")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.sho.rt", "https://admin.sho.rt"}, cfg.HTTPServer.AllowedOrigins)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

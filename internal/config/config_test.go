package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no stray .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "work")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	t.Setenv("BEARER_TOKEN", "token")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("TWITTER_TIMEOUT", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("TWITTER_GRANULARITY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.BearerToken)
	assert.Equal(t, "https://api.twitter.com", cfg.TwitterAPIBase)
	assert.Equal(t, 15*time.Second, cfg.TwitterTimeout)
	assert.Equal(t, "day", cfg.TwitterGranularity)
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, BackendFile, cfg.StorageBackend)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("BEARER_TOKEN", "token")
	t.Setenv("TWITTER_API_BASE", "http://localhost:9999/")
	t.Setenv("TWITTER_TIMEOUT", "3")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CHART_CACHE_TTL", "90s")
	t.Setenv("TWITTER_GRANULARITY", "Hour")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.TwitterAPIBase)
	assert.Equal(t, 3*time.Second, cfg.TwitterTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, BackendPostgres, cfg.StorageBackend)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 90*time.Second, cfg.ChartCacheTTL)
	assert.Equal(t, "hour", cfg.TwitterGranularity)
}

func TestLoadRequiresBearerToken(t *testing.T) {
	chdir(t)
	t.Setenv("BEARER_TOKEN", "")

	_, err := Load()
	assert.ErrorContains(t, err, "BEARER_TOKEN")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	chdir(t)
	t.Setenv("BEARER_TOKEN", "token")
	t.Setenv("STORAGE_BACKEND", "mongo")

	_, err := Load()
	assert.ErrorContains(t, err, "unknown STORAGE_BACKEND")
}

func TestLoadRejectsUnknownGranularity(t *testing.T) {
	chdir(t)
	t.Setenv("BEARER_TOKEN", "token")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("TWITTER_GRANULARITY", "week")

	_, err := Load()
	assert.ErrorContains(t, err, "unknown TWITTER_GRANULARITY")
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := chdir(t)
	t.Setenv("BEARER_TOKEN", "")
	// godotenv never overrides a variable that exists, even when empty.
	require.NoError(t, os.Unsetenv("BEARER_TOKEN"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BEARER_TOKEN=from-dotenv\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.BearerToken)
}

func TestDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", c.DSN())
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "murmur", cfg.MongoDB)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.Equal(t, int64(25<<20), cfg.UploadMaxBytes)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("MIGRATE_AUTO", "false")
	t.Setenv("RATELIMIT_BURST", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 3, cfg.RateLimitBurst)
	assert.Contains(t, cfg.PostgresDSN(), "@db.internal:5432/")
	assert.Contains(t, cfg.MigrateURL(), "pgx5://")
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_TTL", "0s")

	_, err := Load()
	assert.Error(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

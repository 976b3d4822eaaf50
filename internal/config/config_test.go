//go:build unit

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.DB.Driver)
	assert.Equal(t, 30*time.Second, cfg.Moodle.Timeout)
	assert.False(t, cfg.Moodle.InsecureSkipVerify, "TLS verification must be on by default")
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CATALOG_DB_DRIVER", "mysql")
	t.Setenv("CATALOG_MOODLE_BASE_URL", "https://moodle.example.com")
	t.Setenv("CATALOG_MOODLE_RATE_LIMIT", "2.5")
	t.Setenv("CATALOG_ADMIN_SUBJECTS", "alice,bob")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, "https://moodle.example.com", cfg.Moodle.BaseURL)
	assert.Equal(t, 2.5, cfg.Moodle.RateLimit)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Admin.Subjects)
}

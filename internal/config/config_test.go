package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads so the host environment cannot leak
// into a test. t.Setenv restores the old values afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "STORE_DRIVER", "DB_PATH", "DATABASE_URL", "DB_MAX_CONNS",
		"SYNC_LIMIT", "SYNC_CONCURRENCY", "SYNC_TIMEOUT", "SYNC_SCHEDULE", "SYNC_TIMEZONE", "SYNC_JOB_TIMEOUT",
		"YOUTUBE_BASE_URL", "YOUTUBE_TIMEOUT",
		"INSTAGRAM_GRAPH_URL", "INSTAGRAM_API_VERSION", "INSTAGRAM_ACCESS_TOKEN", "INSTAGRAM_BUSINESS_ID", "INSTAGRAM_TIMEOUT",
		"ANTHROPIC_API_KEY", "REMIX_MODEL", "REMIX_MAX_TOKENS", "REMIX_SYSTEM_PROMPT",
		"AUTH_PASSWORD", "JWT_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, slog.LevelInfo, cfg.Server.LogLevel)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "data/outliers.db", cfg.Storage.DBPath)
	assert.Equal(t, 30, cfg.Sync.Limit)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Timeout)
	assert.Empty(t, cfg.Sync.Schedule)
	assert.Equal(t, "UTC", cfg.Sync.Timezone)
	assert.Equal(t, 1024, cfg.Remix.MaxTokens)
	assert.False(t, cfg.Auth.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/outliers")
	t.Setenv("SYNC_CONCURRENCY", "8")
	t.Setenv("SYNC_TIMEOUT", "45s")
	t.Setenv("SYNC_SCHEDULE", "0 */6 * * *")
	t.Setenv("AUTH_PASSWORD", "hunter2")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, slog.LevelDebug, cfg.Server.LogLevel)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, "0 */6 * * *", cfg.Sync.Schedule)
	assert.True(t, cfg.Auth.Enabled())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad port", map[string]string{"PORT": "eighty"}, "PORT"},
		{"bad duration", map[string]string{"SYNC_TIMEOUT": "soon"}, "SYNC_TIMEOUT"},
		{"bad level", map[string]string{"LOG_LEVEL": "chatty"}, "LOG_LEVEL"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}, "STORE_DRIVER"},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"short jwt secret", map[string]string{"AUTH_PASSWORD": "pw", "JWT_SECRET": "short"}, "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

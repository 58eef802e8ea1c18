package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notesync")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, 10*time.Minute, cfg.Database.MaxConnLifetime)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, 150, cfg.Sync.DefaultLimit)
	assert.Equal(t, 1000, cfg.Sync.MaxLimit)
	assert.Equal(t, time.Second, cfg.Sync.BoundaryLag)
	assert.Equal(t, BackupDriverNone, cfg.Backup.Driver)
	assert.Equal(t, uint64(3), cfg.Backup.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Backup.RetryBase)
	assert.False(t, cfg.Backup.OnCreate)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_EXPIRY", "90m")
	t.Setenv("SYNC_DEFAULT_LIMIT", "50")
	t.Setenv("SYNC_BOUNDARY_LAG", "250ms")
	t.Setenv("BACKUP_DRIVER", "minio")
	t.Setenv("BACKUP_ON_CREATE", "true")
	t.Setenv("DATABASE_AUTO_MIGRATE", "false")

	cfg, err := LoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 90*time.Minute, cfg.JWT.Expiry)
	assert.Equal(t, 50, cfg.Sync.DefaultLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.BoundaryLag)
	assert.Equal(t, BackupDriverMinio, cfg.Backup.Driver)
	assert.True(t, cfg.Backup.OnCreate)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	content := "DATABASE_URL=postgres://dotenv/db\nREDIS_URL=redis://dotenv:6379\nJWT_SECRET=from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	// godotenv never overrides variables that are already set, so clear
	// them for the duration of the test.
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Cleanup(func() {
		for _, key := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET"} {
			_ = os.Unsetenv(key)
		}
	})

	cfg, err := LoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/db", cfg.Database.URL)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database url",
			env:     map[string]string{"DATABASE_URL": ""},
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "missing redis url",
			env:     map[string]string{"REDIS_URL": ""},
			wantErr: "REDIS_URL is required",
		},
		{
			name:    "missing jwt secret",
			env:     map[string]string{"JWT_SECRET": ""},
			wantErr: "JWT_SECRET is required",
		},
		{
			name:    "default above max",
			env:     map[string]string{"SYNC_DEFAULT_LIMIT": "500", "SYNC_MAX_LIMIT": "100"},
			wantErr: "exceeds SYNC_MAX_LIMIT",
		},
		{
			name:    "negative boundary lag",
			env:     map[string]string{"SYNC_BOUNDARY_LAG": "-1s"},
			wantErr: "SYNC_BOUNDARY_LAG must not be negative",
		},
		{
			name:    "unknown backup driver",
			env:     map[string]string{"BACKUP_DRIVER": "ftp"},
			wantErr: "unknown BACKUP_DRIVER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(t.TempDir())

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/937bb/937cms-sub001/internal/vod"
	"github.com/937bb/937cms-sub001/pkg/database"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VODSYNC_CONFIG", "CMS_DATA_DIR",
		"VODSYNC_DB_DRIVER", "VODSYNC_DB_DSN", "VODSYNC_DB_HOST", "VODSYNC_DB_PORT",
		"VODSYNC_DB_USER", "VODSYNC_DB_PASSWORD", "VODSYNC_DB_NAME", "VODSYNC_PAGE_SIZE",
		"LOG_LEVEL", "SENTRY_DSN", "VODSYNC_JWT_SECRET",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
database:
  driver: mysql
  host: db.internal
  user: cms
  password: secret
  name: cms
sync:
  page_size: 250
  pagination: keyset
  continue_on_record_error: true
log:
  level: debug
auth:
  token_ttl: 30m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, database.MySQL, cfg.Database.Dialect())
	assert.Equal(t, 250, cfg.Sync.PageSize)
	assert.Equal(t, vod.ModeKeyset, cfg.Sync.Mode())
	assert.True(t, cfg.Sync.ContinueOnRecordError)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "vodsync", cfg.Auth.JWTIssuer)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("VODSYNC_DB_DRIVER", "sqlite")
	t.Setenv("VODSYNC_DB_NAME", "/tmp/cms.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, database.SQLite, cfg.Database.Dialect())
	assert.Equal(t, DefaultPageSize, cfg.Sync.PageSize)
	assert.Equal(t, vod.ModeOffset, cfg.Sync.Mode())
	assert.Equal(t, "/tmp/cms.db", cfg.Database.DataSourceName())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
database:
  driver: postgres
  host: a
  name: cms
sync:
  page_size: 10
`)
	t.Setenv("VODSYNC_DB_HOST", "b")
	t.Setenv("VODSYNC_PAGE_SIZE", "42")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.Database.Host)
	assert.Equal(t, 42, cfg.Sync.PageSize)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want error
	}{
		{name: "no driver", body: "sync:\n  page_size: 10\n", want: ErrMissing},
		{name: "no name", body: "database:\n  driver: sqlite3\n", want: ErrMissing},
		{name: "no host", body: "database:\n  driver: mysql\n  name: cms\n", want: ErrMissing},
		{name: "unknown driver", body: "database:\n  driver: oracle\n  dsn: x\n", want: ErrInvalid},
		{name: "negative page size", body: "database:\n  driver: sqlite3\n  name: a.db\nsync:\n  page_size: -5\n", want: ErrInvalid},
		{name: "bad pagination", body: "database:\n  driver: sqlite3\n  name: a.db\nsync:\n  pagination: cursor\n", want: ErrInvalid},
		{name: "bad yaml", body: "database: [", want: ErrInvalid},
		{
			name: "bad port env",
			body: "database:\n  driver: sqlite3\n  name: a.db\n",
			env:  map[string]string{"VODSYNC_DB_PORT": "abc"},
			want: ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDataSourceName(t *testing.T) {
	tests := []struct {
		name string
		db   DatabaseConfig
		want string
	}{
		{
			name: "mysql",
			db:   DatabaseConfig{Driver: "mysql", Host: "db", User: "u", Password: "p", Name: "cms"},
			want: "u:p@tcp(db:3306)/cms?charset=utf8mb4&parseTime=true",
		},
		{
			name: "mysql params",
			db:   DatabaseConfig{Driver: "mysql", Host: "db", Port: 3307, User: "u", Password: "p", Name: "cms", Params: "?tls=true"},
			want: "u:p@tcp(db:3307)/cms?charset=utf8mb4&parseTime=true&tls=true",
		},
		{
			name: "postgres",
			db:   DatabaseConfig{Driver: "postgres", Host: "db", User: "u", Password: "p", Name: "cms"},
			want: "postgres://u:p@db:5432/cms?sslmode=disable",
		},
		{
			name: "sqlite",
			db:   DatabaseConfig{Driver: "sqlite3", Name: "/data/cms.db"},
			want: "/data/cms.db",
		},
		{
			name: "explicit dsn",
			db:   DatabaseConfig{Driver: "mysql", DSN: "x:y@/z", Host: "ignored"},
			want: "x:y@/z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.db.DataSourceName())
		})
	}
}

func TestDefaultPath(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, filepath.Join("data", DefaultFileName), DefaultPath())

	t.Setenv("CMS_DATA_DIR", "/srv/cms")
	assert.Equal(t, "/srv/cms/vodsync.yaml", DefaultPath())

	t.Setenv("VODSYNC_CONFIG", "/etc/vodsync.yaml")
	assert.Equal(t, "/etc/vodsync.yaml", DefaultPath())
}

package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/books/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "books.db", cfg.Database.DSN())
	assert.Equal(t, 10*time.Second, cfg.Ledger.TxTimeout)
	assert.Equal(t, time.Hour, cfg.Ledger.ConsistencyInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Len(t, cfg.CORS.AllowedOrigins, 2)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	// GIVEN: BOOKS_* variables for a postgres deployment
	t.Setenv("BOOKS_DATABASE_DRIVER", "postgres")
	t.Setenv("BOOKS_DATABASE_HOST", "db.internal")
	t.Setenv("BOOKS_DATABASE_NAME", "ledger")
	t.Setenv("BOOKS_LEDGER_TX_TIMEOUT", "3s")
	t.Setenv("BOOKS_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.Load("")
	require.NoError(t, err)

	// THEN: they win over the defaults
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Ledger.TxTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "host=db.internal port=5432 user=books password= dbname=ledger sslmode=disable", cfg.Database.DSN())
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
log:
  level: debug
  format: json
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)

	var buf bytes.Buffer
	cfg.Log.NewLogger(&buf).Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown driver", "BOOKS_DATABASE_DRIVER", "mysql"},
		{"bad level", "BOOKS_LOG_LEVEL", "loud"},
		{"bad format", "BOOKS_LOG_FORMAT", "xml"},
		{"bad port", "BOOKS_SERVER_PORT", "70000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load("")
			assert.Error(t, err)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverBolt, cfg.Store.Driver)
	assert.Equal(t, 72*time.Hour, cfg.Cache.Expiry)
	assert.Equal(t, 500, cfg.Cache.MaxEntries["news"])
	assert.Equal(t, 5, cfg.Queue.RetryCeiling)
	assert.Equal(t, time.Second, cfg.Queue.InitialBackoff)
	assert.Equal(t, 2*time.Second, cfg.Connectivity.Debounce)
	assert.True(t, cfg.Hooks.IsEnabled())
	assert.False(t, cfg.RabbitMQ.Enabled)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("OFFLINE_DB_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(`
store:
  driver: postgres
  database:
    host: db
    user: app
    password: ${OFFLINE_DB_PASSWORD}
    dbname: offline
hooks:
  enabled: false
queue:
  retry_ceiling: 3
  initial_backoff: 500ms
  max_backoff: 10s
`))
	require.NoError(t, err)

	assert.Equal(t, "host=db port=5432 user=app password=s3cret dbname=offline sslmode=disable", cfg.Store.Database.DSN())
	assert.False(t, cfg.Hooks.IsEnabled())
	assert.Equal(t, 3, cfg.Queue.RetryCeiling)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.InitialBackoff)
}

func TestParse_RejectsUnknownDriver(t *testing.T) {
	_, err := Parse([]byte("store:\n  driver: indexeddb\n"))
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestParse_RejectsInvertedBackoff(t *testing.T) {
	_, err := Parse([]byte("queue:\n  initial_backoff: 1m\n  max_backoff: 1s\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_offline/internal/domain"
)

func writeConfig(t *testing.T, storePath, remoteURL string) string {
	t.Helper()
	body := fmt.Sprintf(`
log_level: error
store:
  driver: bolt
  path: %s
remote:
  base_url: %s
connectivity:
  probe_interval: 20ms
  probe_timeout: 1s
status:
  addr: 127.0.0.1:0
`, storePath, remoteURL)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func healthServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// unusableStorePath points below a regular file so the store cannot open.
func unusableStorePath(t *testing.T) string {
	t.Helper()
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	return filepath.Join(blocker, "offline.db")
}

func TestRun_RemoteOnlyKeepsServing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, writeConfig(t, unusableStorePath(t), healthServer(t).URL))
	require.NoError(t, err)
	defer a.close()
	require.True(t, a.remoteOnly)

	done := make(chan error, 1)
	go func() {
		done <- a.run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("agent stopped on its own: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	assert.True(t, a.monitor.Online())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop after cancel")
	}
}

func TestDrain_RemoteOnlyRefuses(t *testing.T) {
	ctx := context.Background()

	a, err := newApp(ctx, writeConfig(t, unusableStorePath(t), healthServer(t).URL))
	require.NoError(t, err)
	defer a.close()

	_, err = a.drain(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestNewApp_LocalStore(t *testing.T) {
	ctx := context.Background()

	a, err := newApp(ctx, writeConfig(t, filepath.Join(t.TempDir(), "offline.db"), healthServer(t).URL))
	require.NoError(t, err)
	defer a.close()
	require.False(t, a.remoteOnly)

	stats, err := a.drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
}

package boltstore

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"news_offline/internal/domain"
	"news_offline/internal/store"
	"news_offline/internal/store/storetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBoltStoreSuite(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		Open: func(t *testing.T) store.Store {
			return New(filepath.Join(t.TempDir(), "cache.bolt"), testLogger())
		},
	})
}

func TestInitialize_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s := New(filepath.Join(blocker, "cache.bolt"), testLogger())
	err := s.Initialize(context.Background())

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestInitialize_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.bolt")

	s := New(path, testLogger())
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Put(ctx, store.News, store.Record{
		Key:     "1",
		Indexes: map[string]string{store.IndexSlug: "kept"},
		Data:    []byte(`{"id":1}`),
	}))
	require.NoError(t, s.Close())

	reopened := New(path, testLogger())
	require.NoError(t, reopened.Initialize(ctx))
	defer reopened.Close()

	rec, err := reopened.GetByIndex(ctx, store.News, store.IndexSlug, "kept")
	require.NoError(t, err)
	assert.Equal(t, "1", rec.Key)
}

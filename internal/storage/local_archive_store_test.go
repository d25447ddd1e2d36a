package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deploy-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalArchiveStore(t *testing.T) {
	store, err := storage.NewLocalArchiveStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("PutObject", func(t *testing.T) {
		err := store.PutObject(ctx, "deployments/abc/request.json", strings.NewReader(`{"task":"demo"}`))
		require.NoError(t, err)
	})

	t.Run("UploadDir", func(t *testing.T) {
		src := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(src, "index.html"), []byte("<html></html>"), 0644))
		require.NoError(t, os.MkdirAll(filepath.Join(src, "assets"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(src, "assets", "main.js"), []byte("console.log(1)"), 0644))

		require.NoError(t, store.UploadDir(ctx, "deployments/xyz/project", src))
	})

	t.Run("DeleteObjects", func(t *testing.T) {
		require.NoError(t, store.PutObject(ctx, "deployments/gone/request.json", strings.NewReader("{}")))
		require.NoError(t, store.DeleteObjects(ctx, "deployments/gone"))
	})
}

func TestLocalArchiveStoreRoundTrip(t *testing.T) {
	base := t.TempDir()
	store, err := storage.NewLocalArchiveStore(base)
	require.NoError(t, err)

	require.NoError(t, store.PutObject(context.Background(), "logs/req.json", strings.NewReader(`{"secret":"[REDACTED]"}`)))

	data, err := os.ReadFile(filepath.Join(base, "logs", "req.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"secret":"[REDACTED]"}`, string(data))
}

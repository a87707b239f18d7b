package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStorage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewDirStorage(root)
	require.NoError(t, err)

	require.NoError(t, fs.PutObject(ctx, "trajectories/ep-1.jsonl", "application/x-ndjson", []byte("{}\n")))
	data, err := os.ReadFile(filepath.Join(root, "trajectories", "ep-1.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	u, err := fs.GeneratePresignedDownloadURL(ctx, "trajectories/ep-1.jsonl", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"), u)

	require.NoError(t, fs.DeleteObject(ctx, "trajectories/ep-1.jsonl"))
	assert.ErrorIs(t, fs.DeleteObject(ctx, "trajectories/ep-1.jsonl"), ErrObjectNotFound)
	_, err = fs.GeneratePresignedDownloadURL(ctx, "trajectories/ep-1.jsonl", 0)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.Error(t, fs.PutObject(ctx, "../escape.jsonl", "text/plain", nil))
}

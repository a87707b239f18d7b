package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"alcyxob/climb-sim/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestExportEpisode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	episode, state, err := f.service.StartEpisode(ctx, f.coachID, StartOptions{Seed: seedPtr(11), MaxSteps: 5})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := f.service.RecordPlannedWorkout(ctx, episode.ID, state.Step, planFor(t, state, episode.Seed))
		require.NoError(t, err)
		res, err := f.service.AdvanceEpisode(ctx, episode.ID)
		require.NoError(t, err)
		state = res.State
	}

	root := t.TempDir()
	files, err := storage.NewDirStorage(root)
	require.NoError(t, err)
	exporter := NewExportService(f.service, files, "trajectories", time.Hour, zap.NewNop())

	result, err := exporter.ExportEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, "trajectories/"+episode.ID.Hex()+".jsonl", result.Key)
	assert.Equal(t, 3, result.Steps)
	assert.True(t, strings.HasPrefix(result.URL, "file://"))

	body, err := os.ReadFile(filepath.Join(root, "trajectories", episode.ID.Hex()+".jsonl"))
	require.NoError(t, err)
	assert.Equal(t, result.Bytes, len(body))

	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, sc.Err())
	require.Len(t, lines, 4)

	assert.Equal(t, "episode", lines[0]["type"])
	for i, line := range lines[1:] {
		assert.Equal(t, "step", line["type"])
		assert.EqualValues(t, i+1, line["step"])
		assert.Contains(t, line, "state")
	}
	assert.Contains(t, lines[1], "planned")
	assert.Contains(t, lines[2], "executed")
	// The current step has not been planned yet.
	assert.NotContains(t, lines[3], "planned")
	assert.NotContains(t, lines[3], "executed")
}

func TestExportEpisode_UnknownEpisode(t *testing.T) {
	f := newFixture(t)
	files, err := storage.NewDirStorage(t.TempDir())
	require.NoError(t, err)
	exporter := NewExportService(f.service, files, "", time.Minute, nil)

	_, err = exporter.ExportEpisode(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrEpisodeNotFound)
}

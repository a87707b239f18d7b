package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/repository"
	"alcyxob/climb-sim/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TrajectoryContentType is the media type of exported trajectories (JSON Lines).
const TrajectoryContentType = "application/x-ndjson"

// TrajectoryHeader is the first line of an export.
type TrajectoryHeader struct {
	Type    string          `json:"type"`
	Episode *domain.Episode `json:"episode"`
}

// TrajectoryStep is one line per reached step. Planned and Executed are absent
// for the current step when it has not been planned or advanced yet.
type TrajectoryStep struct {
	Type     string                        `json:"type"`
	Step     int                           `json:"step"`
	State    domain.ScenarioState          `json:"state"`
	Planned  *domain.PlannedWorkoutRecord  `json:"planned,omitempty"`
	Executed *domain.ExecutedWorkoutRecord `json:"executed,omitempty"`
}

// ExportResult describes a stored trajectory.
type ExportResult struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Steps int    `json:"steps"`
	Bytes int    `json:"bytes"`
}

// --- Service Interface ---
type ExportService interface {
	ExportEpisode(ctx context.Context, episodeID primitive.ObjectID) (*ExportResult, error)
}

type exportService struct {
	episodes EpisodeService
	files    storage.FileStorage
	prefix   string
	expiry   time.Duration
	log      *zap.Logger
}

// NewExportService creates the trajectory exporter.
func NewExportService(episodes EpisodeService, files storage.FileStorage, prefix string, expiry time.Duration, log *zap.Logger) ExportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &exportService{episodes: episodes, files: files, prefix: prefix, expiry: expiry, log: log}
}

// ExportEpisode writes the episode's trajectory as JSON Lines and returns a download URL.
func (s *exportService) ExportEpisode(ctx context.Context, episodeID primitive.ObjectID) (*ExportResult, error) {
	episode, err := s.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	body, steps, err := s.encode(ctx, episode)
	if err != nil {
		return nil, err
	}

	key := path.Join(s.prefix, episode.ID.Hex()+".jsonl")
	if err := s.files.PutObject(ctx, key, TrajectoryContentType, body); err != nil {
		return nil, fmt.Errorf("store trajectory: %w", err)
	}
	url, err := s.files.GeneratePresignedDownloadURL(ctx, key, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("presign trajectory: %w", err)
	}

	s.log.Info("trajectory exported",
		zap.String("episode_id", episode.ID.Hex()),
		zap.String("key", key),
		zap.Int("steps", steps))
	return &ExportResult{Key: key, URL: url, Steps: steps, Bytes: len(body)}, nil
}

func (s *exportService) encode(ctx context.Context, episode *domain.Episode) ([]byte, int, error) {
	states, err := s.episodes.ListStates(ctx, episode.ID)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(TrajectoryHeader{Type: "episode", Episode: episode}); err != nil {
		return nil, 0, err
	}
	for _, st := range states {
		line := TrajectoryStep{Type: "step", Step: st.Step, State: st}

		planned, err := s.episodes.GetPlannedWorkout(ctx, episode.ID, st.Step)
		switch {
		case err == nil:
			line.Planned = planned
		case !errors.Is(err, ErrMissingRecommendation):
			return nil, 0, err
		}

		executed, err := s.episodes.GetExecutedWorkout(ctx, episode.ID, st.Step)
		switch {
		case err == nil:
			line.Executed = executed
		case !errors.Is(err, repository.ErrNotFound):
			return nil, 0, err
		}

		if err := enc.Encode(line); err != nil {
			return nil, 0, err
		}
	}
	return buf.Bytes(), len(states), nil
}

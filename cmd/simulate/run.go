package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"alcyxob/climb-sim/internal/config"
	"alcyxob/climb-sim/internal/params"
	"alcyxob/climb-sim/internal/planner"
	"alcyxob/climb-sim/internal/repository"
	"alcyxob/climb-sim/internal/repository/memory"
	"alcyxob/climb-sim/internal/service"
	"alcyxob/climb-sim/internal/storage"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type runOptions struct {
	Episodes    int
	Steps       int
	Seed        int64
	ParamsFile  string
	ParamSet    string
	Out         string
	Concurrency int
}

// episodeSummary is one line of the run report.
type episodeSummary struct {
	EpisodeID      string
	Seed           int64
	Steps          int
	Events         int
	MeanCompletion float64
	Key            string
}

func newRunCmd(setup func() (config.Config, *zap.Logger, error)) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate episodes with the scripted coach and export trajectories",
		Example: "  simulate run --episodes 100 --steps 24 --seed 1 --out ./out\n" +
			"  simulate run --episodes 10 --params params.yaml --out s3://bucket/runs/2026-10",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if !cmd.Flags().Changed("steps") {
				opts.Steps = cfg.Simulation.MaxSteps
			}
			if opts.ParamSet == "" {
				opts.ParamSet = cfg.Simulation.ParameterSet
			}
			return run(cmd.Context(), opts, cfg, log, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.Episodes, "episodes", 1, "number of episodes")
	cmd.Flags().IntVar(&opts.Steps, "steps", 24, "steps per episode (defaults to simulation.max_steps)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "seed of the first episode; episode i uses seed+i")
	cmd.Flags().StringVar(&opts.ParamsFile, "params", "", "YAML file of parameter sets (defaults apply when empty)")
	cmd.Flags().StringVar(&opts.ParamSet, "param-set", "", "parameter set ref to run with")
	cmd.Flags().StringVar(&opts.Out, "out", "./trajectories", "output directory or s3://bucket/prefix")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "episodes simulated in parallel")
	return cmd
}

func run(ctx context.Context, opts runOptions, cfg config.Config, log *zap.Logger, out io.Writer) error {
	if opts.Episodes < 1 || opts.Steps < 1 || opts.Concurrency < 1 {
		return fmt.Errorf("episodes, steps and concurrency must be positive")
	}

	// --- Parameters ---
	store := memory.NewStore()
	sets := []params.Set{{Ref: opts.ParamSet, Version: "defaults"}}
	if opts.ParamsFile != "" {
		loaded, err := params.LoadFile(opts.ParamsFile)
		if err != nil {
			return err
		}
		sets = loaded
	}
	if err := params.Seed(ctx, store, sets); err != nil {
		return err
	}

	// --- Output ---
	files, prefix, err := openOutput(ctx, opts.Out, cfg, log)
	if err != nil {
		return err
	}

	episodes := service.NewEpisodeService(repository.NewSimulationStore(store), params.NewLoader(store), service.EpisodeConfig{
		MaxSteps:        opts.Steps,
		ParameterSetRef: opts.ParamSet,
		HiThreshold:     cfg.Simulation.HiThreshold,
		PhaseLength:     cfg.Simulation.PhaseLength,
	}, log.Named("episode"))
	exporter := service.NewExportService(episodes, files, prefix, cfg.S3.PresignExpiry, log.Named("export"))

	// --- Simulate ---
	coachID := primitive.NewObjectID()
	summaries := make([]episodeSummary, opts.Episodes)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range opts.Episodes {
		seed := opts.Seed + int64(i)
		g.Go(func() error {
			summary, err := simulateEpisode(gctx, episodes, exporter, coachID, seed, opts.Steps)
			if err != nil {
				return fmt.Errorf("episode with seed %d: %w", seed, err)
			}
			summaries[i] = *summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("batch finished",
		zap.Int("episodes", opts.Episodes),
		zap.Int("steps", opts.Steps),
		zap.Duration("elapsed", time.Since(start)))

	for _, s := range summaries {
		_, _ = fmt.Fprintf(out, "%s\tseed=%d\tsteps=%d\tevents=%d\tcompletion=%.3f\t%s\n",
			s.EpisodeID, s.Seed, s.Steps, s.Events, s.MeanCompletion, s.Key)
	}
	return nil
}

// openOutput resolves --out to a storage backend and key prefix.
func openOutput(ctx context.Context, out string, cfg config.Config, log *zap.Logger) (storage.FileStorage, string, error) {
	rest, isS3 := strings.CutPrefix(out, "s3://")
	if !isS3 {
		files, err := storage.NewDirStorage(out)
		return files, "", err
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, "", fmt.Errorf("invalid S3 destination %q", out)
	}
	s3cfg := cfg.S3
	s3cfg.BucketName = bucket
	files, err := storage.NewS3Storage(ctx, s3cfg, log.Named("s3"))
	if err != nil {
		return nil, "", err
	}
	return files, strings.Trim(prefix, "/"), nil
}

// simulateEpisode drives one episode to completion with the scripted coach.
func simulateEpisode(ctx context.Context, episodes service.EpisodeService, exporter service.ExportService, coachID primitive.ObjectID, seed int64, steps int) (*episodeSummary, error) {
	episode, state, err := episodes.StartEpisode(ctx, coachID, service.StartOptions{Seed: &seed, MaxSteps: steps})
	if err != nil {
		return nil, err
	}

	var events int
	var completion float64
	for !episode.IsCompleted() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(planner.ForStep(state, episode.Seed))
		if err != nil {
			return nil, fmt.Errorf("encode plan: %w", err)
		}
		if _, err := episodes.RecordPlannedWorkout(ctx, episode.ID, state.Step, raw); err != nil {
			return nil, err
		}
		res, err := episodes.AdvanceEpisode(ctx, episode.ID)
		if err != nil {
			return nil, err
		}
		if res.Started != nil {
			events++
		}
		completion += res.Executed.Document.Completion
		episode, state = res.Episode, res.State
	}

	exported, err := exporter.ExportEpisode(ctx, episode.ID)
	if err != nil {
		return nil, err
	}
	return &episodeSummary{
		EpisodeID:      episode.ID.Hex(),
		Seed:           seed,
		Steps:          episode.CurrentStep,
		Events:         events,
		MeanCompletion: meanOf(completion, episode.CurrentStep-1),
		Key:            exported.Key,
	}, nil
}

func meanOf(sum float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return sum / float64(n)
}

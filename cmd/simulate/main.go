// Command simulate runs batches of synthetic episodes without a database and
// exports their trajectories to a directory or an S3 bucket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"alcyxob/climb-sim/internal/config"
	"alcyxob/climb-sim/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir, logLevel string

	root := &cobra.Command{
		Use:           "simulate",
		Short:         "Climbing coach episode simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", ".", "directory holding config.yaml")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	root.AddCommand(newRunCmd(func() (config.Config, *zap.Logger, error) {
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return cfg, nil, fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		log, err := logger.New(cfg.Log)
		if err != nil {
			return cfg, nil, err
		}
		return cfg, log, nil
	}))
	return root
}

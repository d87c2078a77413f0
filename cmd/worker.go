/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/safeher/apiserver/config"
	"github.com/safeher/apiserver/internal/db"
	"github.com/safeher/apiserver/internal/logging"
	"github.com/safeher/apiserver/internal/mq"
	"github.com/safeher/apiserver/internal/services"
	"github.com/safeher/apiserver/internal/storage"
	"github.com/safeher/apiserver/internal/store"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// workerCmd consumes queued export jobs.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued report exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		blobs, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", blobs.Bucket(), err)
		}

		statsRepo := store.NewStatsRepository(conn)
		log := logging.Logger.WithField("channel", cfg.MQ.ExportChannel)
		var backoff time.Duration
		for {
			connected, err := consumeExports(ctx, cfg, statsRepo, blobs)
			if ctx.Err() != nil {
				log.Info("export worker stopped")
				return nil
			}
			backoff = nextReconnectDelay(backoff, connected)
			log.WithError(err).WithField("retry_in", backoff.String()).Warn("export consumer stopped, reconnecting")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// nextReconnectDelay doubles the wait after each failed connection attempt
// and starts over once a connection has been made.
func nextReconnectDelay(prev time.Duration, connected bool) time.Duration {
	if connected || prev <= 0 {
		return minReconnectDelay
	}
	return min(prev*2, maxReconnectDelay)
}

// consumeExports connects to the broker and handles export jobs until the
// subscription ends. connected reports whether the broker was reached.
func consumeExports(ctx context.Context, cfg config.Config, repo services.StatsRepository, blobs services.BlobStore) (connected bool, err error) {
	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return false, fmt.Errorf("open message queue: %w", err)
	}
	defer queue.Close()

	exports := services.NewExportService(repo, blobs, queue, cfg.MQ.ExportChannel)
	logging.Logger.WithField("channel", cfg.MQ.ExportChannel).Info("export worker started")
	err = queue.Subscribe(ctx, cfg.MQ.ExportChannel, exports.HandleJob)
	if errors.Is(err, context.Canceled) {
		return true, nil
	}
	return true, err
}

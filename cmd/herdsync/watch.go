package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/devonagro/herdsync/internal/worker"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run in the background, probing connectivity and syncing on reconnect",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Sync.Auto {
		stop := a.engine.Start()
		defer stop()
		slog.Info("auto sync armed")
	}

	var wg sync.WaitGroup
	probe := worker.NewProbeCoordinator(a.monitor, time.Duration(a.cfg.Connectivity.ProbeInterval))
	startWorker(ctx, &wg, "probe", probe.Run)

	<-ctx.Done()
	slog.Info("shutdown initiated")

	wg.Wait()
	slog.Info("shutdown complete")
	return nil
}

// startWorker launches a background worker goroutine that respects context
// cancellation. Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}

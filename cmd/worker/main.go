package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doctag/internal/activities"
	"doctag/internal/app"
	"doctag/internal/config"
	"doctag/internal/logging"
	"doctag/internal/retrain"
	"doctag/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogJSON, logging.ParseLevel(cfg.LogLevel))
	l := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(l)})
	if err != nil {
		l.Error("dial temporal", "address", cfg.TemporalAddress, "err", err)
		os.Exit(1)
	}
	defer c.Close()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Error("build app", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	acts := activities.New(cfg, a.Retrain, a.Pipeline, l)
	if a.Runs != nil {
		acts.RecordRunsTo(a.Runs)
	}
	activities.Register(w, acts)

	if cfg.Retrain.AutoRun {
		sched, err := retrain.NewScheduler(cfg.Retrain.Schedule, startRetrain(c, cfg.TemporalTaskQueue, l), l)
		if err != nil {
			l.Error("retrain schedule", "err", err)
			os.Exit(1)
		}
		sched.Start(ctx)
		defer sched.Stop()
		l.Info("retrain check scheduled", "schedule", cfg.Retrain.Schedule)
	}

	l.Info("doctag worker listening", "address", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "embed_providers", cfg.EmbedProviders)
	if err := w.Run(worker.InterruptCh()); err != nil {
		l.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}

// startRetrain starts a retrain workflow on each tick. The workflow's own
// gates decide whether anything is trained; a run still open is left alone.
func startRetrain(c client.Client, queue string, l *slog.Logger) retrain.Job {
	return func(ctx context.Context) error {
		we, err := c.ExecuteWorkflow(ctx, workflows.RetrainStartOptions(queue), workflows.RetrainWorkflow, workflows.RetrainInput{
			RunID:       retrain.UniqueRunID(time.Now()),
			RequestedBy: "scheduler",
		})
		if err != nil {
			var started *serviceerror.WorkflowExecutionAlreadyStarted
			if errors.As(err, &started) {
				l.Info("retrain already running, tick skipped")
				return nil
			}
			return err
		}
		l.Info("scheduled retrain started", "workflow_run_id", we.GetRunID())
		return nil
	}
}

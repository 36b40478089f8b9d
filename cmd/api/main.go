package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doctag/internal/api"
	"doctag/internal/app"
	"doctag/internal/config"
	"doctag/internal/logging"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
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

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Error("build app", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	deps := api.Deps{
		Pipeline: a.Pipeline,
		Ledger:   a.Ledger,
		Sink:     a.Sink,
		Store:    a.Store,
		Retrain:  a.Retrain,
		Logger:   l,
	}
	if a.DB != nil {
		deps.Database = a.DB
		deps.Runs = a.Runs
		deps.Mirror = a.Ledgers
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(l)})
	if err != nil {
		l.Warn("temporal unavailable, retraining runs in-process", "address", cfg.TemporalAddress, "err", err)
	} else {
		defer tc.Close()
		deps.Temporal = tc
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(cfg, deps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	l.Info("doctag api listening", "addr", cfg.APIAddr, "model", a.Service.Info().ModelName, "embed_providers", cfg.EmbedProviders, "postgres", a.DB != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("serve", "err", err)
		os.Exit(1)
	}
}

// Package app wires the collaborators every binary shares: taxonomy,
// ledgers, artifact store, classifier service and retrain orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"doctag/internal/artifact"
	"doctag/internal/classifier"
	"doctag/internal/config"
	"doctag/internal/ledger"
	"doctag/internal/pipeline"
	"doctag/internal/providers"
	"doctag/internal/retrain"
	"doctag/internal/storage"
	"doctag/internal/taxonomy"
	"doctag/internal/textnorm"
)

const embeddingDim = 384

type App struct {
	Config     config.Config
	Log        *slog.Logger
	Taxonomy   *taxonomy.Taxonomy
	Normalizer *textnorm.Normalizer
	Ledger     *ledger.Ledger
	Sink       ledger.Sink
	Store      *artifact.Store
	Service    *classifier.Service
	Pipeline   *pipeline.Pipeline
	Retrain    *retrain.Orchestrator

	// DB and the repos are nil when no Postgres URL is configured.
	DB       *storage.DB
	Ledgers  *storage.LedgerRepo
	Runs     *storage.RetrainRunRepo
	Embedder *providers.Manager
}

// New builds the shared object graph. A corrupt or missing active artifact
// is logged and the service starts on its fallback strategies.
func New(ctx context.Context, cfg config.Config, l *slog.Logger) (*App, error) {
	if l == nil {
		l = slog.Default()
	}
	tax, err := taxonomy.Load(cfg.TaxonomyPath)
	if err != nil {
		return nil, err
	}
	cal, err := classifier.NewCalibrator(cfg.Calibration, tax.Thresholds())
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	norm := textnorm.New(tax, tax.Language())

	a := &App{
		Config:     cfg,
		Log:        l,
		Taxonomy:   tax,
		Normalizer: norm,
		Ledger:     ledger.Open(cfg.PredictionsLog, cfg.FeedbackLog, l),
		Store:      artifact.NewStore(cfg.ArtifactsDir),
	}
	a.Sink = a.Ledger

	opts := []classifier.Option{classifier.WithLogger(l), classifier.WithCalibrator(cal)}
	embedder, err := providers.NewManager(cfg.EmbedProviders, embeddingDim, time.Duration(cfg.ProviderCooldownSecs)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("embedding providers: %w", err)
	}
	if embedder.Count() > 0 {
		a.Embedder = embedder
		opts = append(opts, classifier.WithEmbedder(embedder))
	}
	a.Service = classifier.NewService(tax, norm, opts...)
	if _, err := a.Service.ReloadFrom(a.Store); err != nil {
		if errors.Is(err, artifact.ErrNoActive) {
			l.Info("no active model artifact, serving fallback strategies")
		} else {
			l.Warn("active model artifact not loaded, serving fallback strategies", "err", err)
		}
	}

	if cfg.PostgresURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		db, err := storage.NewDB(dbCtx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(dbCtx); err != nil {
			db.Close()
			return nil, err
		}
		a.DB = db
		a.Ledgers = storage.NewLedgerRepo(db)
		a.Runs = storage.NewRetrainRunRepo(db)
		a.Sink = ledger.NewMulti(a.Ledger, a.Ledgers)
	}

	a.Pipeline = pipeline.New(a.Service, a.Sink, pipeline.WithLogger(l))
	a.Retrain = retrain.New(a.Ledger, a.Store, tax, norm, cfg.CorpusPath,
		retrain.WithLogger(l),
		retrain.WithParams(retrain.ParamsFromConfig(cfg.Retrain)))
	return a, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.DB.Close()
}

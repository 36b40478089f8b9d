package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"doctag/internal/config"
	"doctag/internal/ledger"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.UploadDir = filepath.Join(cfg.DataDir, "uploads")
	cfg.PredictionsLog = filepath.Join(cfg.DataDir, "logs", "predictions.jsonl")
	cfg.FeedbackLog = filepath.Join(cfg.DataDir, "logs", "user_feedback.jsonl")
	cfg.ArtifactsDir = filepath.Join(cfg.DataDir, "models")
	cfg.CorpusPath = filepath.Join(cfg.DataDir, "datasets", "train.jsonl")
	return cfg
}

func TestNewWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	require.Nil(t, a.DB)
	require.Nil(t, a.Embedder)
	require.Same(t, a.Ledger, a.Sink.(*ledger.Ledger))
	require.Equal(t, "keyword", a.Service.Info().Strategy)
	require.Equal(t, 50, a.Retrain.Params().MinFeedback)

	res := a.Pipeline.AnalyzeText(context.Background(), "", "CONTRATO de arrendamiento. Cláusula primera: las partes contratantes acuerdan la duración del contrato.", "")
	require.Equal(t, "contrato", res.Result.CategoryID)
	require.FileExists(t, cfg.PredictionsLog)
}

func TestNewWithMockEmbedder(t *testing.T) {
	cfg := testConfig(t)
	cfg.EmbedProviders = "mock"
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, a.Embedder)
	require.True(t, a.Service.Info().EmbeddingEnabled)
}

func TestNewCorruptActiveArtifactFallsBack(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.ArtifactsDir, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ArtifactsDir, "ACTIVE"), []byte("broken\n"), 0o644))

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Nil(t, a.Service.Active())
}

func TestNewRejectsBadTaxonomy(t *testing.T) {
	cfg := testConfig(t)
	cfg.TaxonomyPath = filepath.Join(cfg.DataDir, "missing.json")
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}

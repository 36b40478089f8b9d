package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCTAG_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 30, cfg.Retrain.WindowDays)
	require.Equal(t, 50, cfg.Retrain.MinFeedback)
	require.InDelta(t, 0.05, cfg.Retrain.MinAccuracyDrop, 1e-9)
	require.Equal(t, filepath.Join("data", "logs", "predictions.jsonl"), filepath.Clean(cfg.PredictionsLog))
	require.Len(t, cfg.Calibration.Margin, 4)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doctag.yaml")
	yml := `
data_dir: /srv/doctag
retrain:
  window_days: 14
  min_feedback: 20
  min_accuracy_drop: 0.1
  train_ratio: 0.8
  val_ratio: 0.1
  test_ratio: 0.1
calibration:
  keyword:
    - {x: 0, y: 0.4}
    - {x: 5, y: 0.9}
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("DOCTAG_CONFIG", path)
	t.Setenv("DOCTAG_RETRAIN_MIN_FEEDBACK", "75")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 14, cfg.Retrain.WindowDays)
	require.Equal(t, 75, cfg.Retrain.MinFeedback)
	require.Equal(t, "/srv/doctag/models", cfg.ArtifactsDir)
	require.Equal(t, []CurvePoint{{0, 0.4}, {5, 0.9}}, cfg.Calibration.Keyword)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("DOCTAG_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DOCTAG_RETRAIN_WINDOW_DAYS", "thirty")
	_, err := Load()
	require.Error(t, err)
}

func TestValidateCurves(t *testing.T) {
	cfg := Defaults()
	cfg.Calibration.Margin = []CurvePoint{{0, 0.9}, {1, 0.5}}
	require.ErrorContains(t, cfg.Validate(), "monotonic")

	cfg = Defaults()
	cfg.Retrain.TestRatio = 0.5
	require.Error(t, cfg.Validate())
}

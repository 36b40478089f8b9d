package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIAddr           string `yaml:"api_addr"`
	TemporalAddress   string `yaml:"temporal_address"`
	TemporalTaskQueue string `yaml:"temporal_task_queue"`
	PostgresURL       string `yaml:"postgres_url"`

	DataDir        string `yaml:"data_dir"`
	UploadDir      string `yaml:"upload_dir"`
	PredictionsLog string `yaml:"predictions_log"`
	FeedbackLog    string `yaml:"feedback_log"`
	ArtifactsDir   string `yaml:"artifacts_dir"`
	TaxonomyPath   string `yaml:"taxonomy_path"`
	CorpusPath     string `yaml:"corpus_path"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	EmbedProviders       string `yaml:"embed_providers"`
	ProviderCooldownSecs int    `yaml:"provider_cooldown_seconds"`

	Retrain     RetrainConfig     `yaml:"retrain"`
	Calibration CalibrationConfig `yaml:"calibration"`
}

type RetrainConfig struct {
	WindowDays              int     `yaml:"window_days"`
	MinFeedback             int     `yaml:"min_feedback"`
	MinAccuracyDrop         float64 `yaml:"min_accuracy_drop"`
	DefaultExpectedAccuracy float64 `yaml:"default_expected_accuracy"`
	TrainRatio              float64 `yaml:"train_ratio"`
	ValRatio                float64 `yaml:"val_ratio"`
	TestRatio               float64 `yaml:"test_ratio"`
	Seed                    uint64  `yaml:"seed"`
	Schedule                string  `yaml:"schedule"`
	AutoRun                 bool    `yaml:"auto_run"`
}

// CurvePoint is one breakpoint of a piecewise-linear calibration curve.
type CurvePoint struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type CalibrationConfig struct {
	Keyword []CurvePoint `yaml:"keyword"`
	Margin  []CurvePoint `yaml:"margin"`
}

func Defaults() Config {
	return Config{
		APIAddr:              ":8080",
		TemporalAddress:      "localhost:7233",
		TemporalTaskQueue:    "doctag",
		DataDir:              "./data",
		LogLevel:             "info",
		EmbedProviders:       "",
		ProviderCooldownSecs: 300,
		Retrain: RetrainConfig{
			WindowDays:              30,
			MinFeedback:             50,
			MinAccuracyDrop:         0.05,
			DefaultExpectedAccuracy: 0.90,
			TrainRatio:              0.70,
			ValRatio:                0.15,
			TestRatio:               0.15,
			Seed:                    42,
			Schedule:                "0 3 * * *",
		},
		Calibration: CalibrationConfig{
			Keyword: []CurvePoint{{0, 0.50}, {2, 0.65}, {10, 0.85}, {20, 0.92}},
			Margin:  []CurvePoint{{0, 0.50}, {0.5, 0.65}, {2, 0.85}, {5, 0.98}},
		},
	}
}

// Load starts from Defaults, overlays the YAML file named by DOCTAG_CONFIG
// (default doctag.yaml, optional) and then DOCTAG_* environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	path := getenv("DOCTAG_CONFIG", "doctag.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	envOverride(&cfg.APIAddr, "DOCTAG_API_ADDR")
	envOverride(&cfg.TemporalAddress, "DOCTAG_TEMPORAL_ADDRESS")
	envOverride(&cfg.TemporalTaskQueue, "DOCTAG_TEMPORAL_TASK_QUEUE")
	envOverride(&cfg.PostgresURL, "DOCTAG_POSTGRES_URL")
	envOverride(&cfg.DataDir, "DOCTAG_DATA_DIR")
	envOverride(&cfg.UploadDir, "DOCTAG_UPLOAD_DIR")
	envOverride(&cfg.PredictionsLog, "DOCTAG_PREDICTIONS_LOG")
	envOverride(&cfg.FeedbackLog, "DOCTAG_FEEDBACK_LOG")
	envOverride(&cfg.ArtifactsDir, "DOCTAG_ARTIFACTS_DIR")
	envOverride(&cfg.TaxonomyPath, "DOCTAG_TAXONOMY_PATH")
	envOverride(&cfg.CorpusPath, "DOCTAG_CORPUS_PATH")
	envOverride(&cfg.LogLevel, "DOCTAG_LOG_LEVEL")
	envOverride(&cfg.EmbedProviders, "DOCTAG_EMBED_PROVIDERS")
	if err := firstErr(
		envOverrideBool(&cfg.LogJSON, "DOCTAG_LOG_JSON"),
		envOverrideInt(&cfg.ProviderCooldownSecs, "DOCTAG_PROVIDER_COOLDOWN_SECONDS"),
		envOverrideInt(&cfg.Retrain.WindowDays, "DOCTAG_RETRAIN_WINDOW_DAYS"),
		envOverrideInt(&cfg.Retrain.MinFeedback, "DOCTAG_RETRAIN_MIN_FEEDBACK"),
		envOverrideFloat(&cfg.Retrain.MinAccuracyDrop, "DOCTAG_RETRAIN_MIN_ACCURACY_DROP"),
		envOverrideFloat(&cfg.Retrain.DefaultExpectedAccuracy, "DOCTAG_RETRAIN_DEFAULT_EXPECTED_ACCURACY"),
		envOverrideBool(&cfg.Retrain.AutoRun, "DOCTAG_RETRAIN_AUTO_RUN"),
	); err != nil {
		return Config{}, err
	}
	envOverride(&cfg.Retrain.Schedule, "DOCTAG_RETRAIN_SCHEDULE")

	cfg.fillPaths()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) fillPaths() {
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.PredictionsLog == "" {
		c.PredictionsLog = filepath.Join(c.DataDir, "logs", "predictions.jsonl")
	}
	if c.FeedbackLog == "" {
		c.FeedbackLog = filepath.Join(c.DataDir, "logs", "user_feedback.jsonl")
	}
	if c.ArtifactsDir == "" {
		c.ArtifactsDir = filepath.Join(c.DataDir, "models")
	}
	if c.CorpusPath == "" {
		c.CorpusPath = filepath.Join(c.DataDir, "datasets", "train.jsonl")
	}
}

func (c Config) Validate() error {
	r := c.Retrain
	if r.WindowDays <= 0 {
		return fmt.Errorf("retrain.window_days must be positive, got %d", r.WindowDays)
	}
	if r.MinFeedback < 0 {
		return fmt.Errorf("retrain.min_feedback must not be negative, got %d", r.MinFeedback)
	}
	sum := r.TrainRatio + r.ValRatio + r.TestRatio
	if r.TrainRatio <= 0 || r.ValRatio < 0 || r.TestRatio < 0 || sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("retrain split ratios must be non-negative and sum to 1, got %.2f/%.2f/%.2f", r.TrainRatio, r.ValRatio, r.TestRatio)
	}
	if err := validateCurve("keyword", c.Calibration.Keyword); err != nil {
		return err
	}
	return validateCurve("margin", c.Calibration.Margin)
}

func validateCurve(name string, pts []CurvePoint) error {
	if len(pts) < 2 {
		return fmt.Errorf("calibration.%s needs at least two points", name)
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].X <= pts[i-1].X {
			return fmt.Errorf("calibration.%s x values must increase", name)
		}
		if pts[i].Y < pts[i-1].Y {
			return fmt.Errorf("calibration.%s must be monotonic non-decreasing", name)
		}
	}
	return nil
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func envOverride(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

func envOverrideInt(field *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = n
	return nil
}

func envOverrideFloat(field *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = f
	return nil
}

func envOverrideBool(field *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = b
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

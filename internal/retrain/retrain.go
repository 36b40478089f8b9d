// Package retrain decides when user feedback justifies a new model and
// produces one: it measures accuracy drift over a feedback window, folds
// the corrected documents into the training corpus, re-splits, retrains and
// publishes a new artifact. Publishing never promotes.
package retrain

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"doctag/internal/artifact"
	"doctag/internal/config"
	"doctag/internal/ledger"
	"doctag/internal/ml"
	"doctag/internal/taxonomy"
	"doctag/internal/textnorm"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle       State = "idle"
	StateEvaluating State = "evaluating"
	StateDeciding   State = "deciding"
	StatePreparing  State = "preparing"
	StateTraining   State = "training"
	StateVersioned  State = "versioned"
	StateFailed     State = "failed"
)

// Terminal reports whether a run in s has finished.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateVersioned || s == StateFailed
}

const (
	DefaultNamePrefix = "tfidf_svm_retrained"
	DefaultStaleLock  = 6 * time.Hour

	combinedFile = "combined.jsonl"
	reportFile   = "report.json"
	lockFile     = ".retrain.lock"
	weakF1       = 0.80
	dropEpsilon  = 1e-9
)

type Params struct {
	WindowDays              int
	MinFeedback             int
	MinAccuracyDrop         float64
	DefaultExpectedAccuracy float64
	Split                   ml.SplitRatios
	Seed                    uint64
	Train                   ml.TrainParams
	NamePrefix              string
	StaleLock               time.Duration
}

func DefaultParams() Params {
	return ParamsFromConfig(config.Defaults().Retrain)
}

func ParamsFromConfig(c config.RetrainConfig) Params {
	train := ml.DefaultTrainParams()
	train.SVM.Seed = c.Seed
	return Params{
		WindowDays:              c.WindowDays,
		MinFeedback:             c.MinFeedback,
		MinAccuracyDrop:         c.MinAccuracyDrop,
		DefaultExpectedAccuracy: c.DefaultExpectedAccuracy,
		Split:                   ml.SplitRatios{Train: c.TrainRatio, Val: c.ValRatio, Test: c.TestRatio},
		Seed:                    c.Seed,
		Train:                   train,
		NamePrefix:              DefaultNamePrefix,
		StaleLock:               DefaultStaleLock,
	}
}

// Source is the read side of the prediction and feedback ledgers.
type Source interface {
	Feedback(ctx context.Context, since time.Time) iter.Seq2[ledger.FeedbackEntry, error]
	Predictions(ctx context.Context, since time.Time) iter.Seq2[ledger.PredictionEntry, error]
}

type Orchestrator struct {
	src        Source
	store      *artifact.Store
	tax        *taxonomy.Taxonomy
	norm       *textnorm.Normalizer
	corpusPath string
	params     Params
	log        *slog.Logger
	now        func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.log = l } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func WithParams(p Params) Option { return func(o *Orchestrator) { o.params = p } }

// New builds an orchestrator over the ledger src, the artifact store and
// the base training corpus at corpusPath.
func New(src Source, store *artifact.Store, tax *taxonomy.Taxonomy, norm *textnorm.Normalizer, corpusPath string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		src:        src,
		store:      store,
		tax:        tax,
		norm:       norm,
		corpusPath: corpusPath,
		params:     DefaultParams(),
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.params.NamePrefix == "" {
		o.params.NamePrefix = DefaultNamePrefix
	}
	return o
}

func (o *Orchestrator) Params() Params { return o.params }

// WorkDir holds per-run datasets, reports and the run lock.
func (o *Orchestrator) WorkDir() string {
	return filepath.Join(filepath.Dir(o.corpusPath), "retraining")
}

func (o *Orchestrator) RunDir(runID string) string {
	return filepath.Join(o.WorkDir(), runID)
}

// NewRunID names a run after its start time with a random suffix, so runs
// started within the same second get separate directories.
func (o *Orchestrator) NewRunID() string { return UniqueRunID(o.now()) }

func RunIDAt(t time.Time) string {
	return "run_" + t.UTC().Format("20060102_150405")
}

// UniqueRunID is RunIDAt followed by eight random hex digits.
func UniqueRunID(t time.Time) string {
	return RunIDAt(t) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Window returns the start of the feedback window ending now.
func (o *Orchestrator) Window() time.Time {
	return ledger.WindowStart(o.now(), o.params.WindowDays)
}

type Decision struct {
	FeedbackCount    int       `json:"feedback_count"`
	Correct          int       `json:"correct"`
	CurrentAccuracy  float64   `json:"current_accuracy"`
	ExpectedAccuracy float64   `json:"expected_accuracy"`
	Drop             float64   `json:"accuracy_drop"`
	MinFeedback      int       `json:"min_feedback"`
	MinAccuracyDrop  float64   `json:"min_accuracy_drop"`
	ShouldRetrain    bool      `json:"should_retrain"`
	Reason           string    `json:"reason"`
	WindowStart      time.Time `json:"window_start"`
	ActiveArtifact   string    `json:"active_artifact,omitempty"`
}

// EnoughFeedback is the volume gate.
func (d Decision) EnoughFeedback() bool {
	return d.FeedbackCount >= d.MinFeedback && d.FeedbackCount > 0
}

// Drifted is the accuracy gate.
func (d Decision) Drifted() bool { return d.Drop >= d.MinAccuracyDrop-dropEpsilon }

// Check is read-only: it measures feedback accuracy over the window and
// compares it with the active artifact's recorded test accuracy.
func (o *Orchestrator) Check(ctx context.Context) (Decision, error) {
	since := o.Window()
	d := Decision{
		MinFeedback:      o.params.MinFeedback,
		MinAccuracyDrop:  o.params.MinAccuracyDrop,
		WindowStart:      since,
		ExpectedAccuracy: o.params.DefaultExpectedAccuracy,
	}

	md, err := o.store.ActiveMetadata()
	switch {
	case err == nil:
		d.ActiveArtifact = md.Name
		d.ExpectedAccuracy = md.ExpectedAccuracy(o.params.DefaultExpectedAccuracy)
	case errors.Is(err, artifact.ErrNoActive), errors.Is(err, artifact.ErrNotFound):
		o.log.Debug("no active artifact, using default expected accuracy", "expected", d.ExpectedAccuracy)
	default:
		return Decision{}, fmt.Errorf("read active artifact: %w", err)
	}

	for fb, err := range o.src.Feedback(ctx, since) {
		if err != nil {
			return Decision{}, fmt.Errorf("scan feedback: %w", err)
		}
		d.FeedbackCount++
		if fb.WasCorrect {
			d.Correct++
		}
	}
	if d.FeedbackCount > 0 {
		d.CurrentAccuracy = round4(float64(d.Correct) / float64(d.FeedbackCount))
		d.Drop = round4(d.ExpectedAccuracy - float64(d.Correct)/float64(d.FeedbackCount))
	}

	switch {
	case !d.EnoughFeedback():
		d.Reason = fmt.Sprintf("insufficient feedback: %d of %d required", d.FeedbackCount, d.MinFeedback)
	case !d.Drifted():
		d.Reason = fmt.Sprintf("model healthy: accuracy %.4f vs expected %.4f (drop %.4f < %.4f)",
			d.CurrentAccuracy, d.ExpectedAccuracy, d.Drop, d.MinAccuracyDrop)
	default:
		d.ShouldRetrain = true
		d.Reason = fmt.Sprintf("accuracy dropped %.4f (%.4f vs expected %.4f) over %d feedback entries",
			d.Drop, d.CurrentAccuracy, d.ExpectedAccuracy, d.FeedbackCount)
	}
	return d, nil
}

// AutoRetrainIfNeeded runs a full retrain only when Check says so. It
// reports whether a new artifact was published.
func (o *Orchestrator) AutoRetrainIfNeeded(ctx context.Context) (bool, Report) {
	rep := o.Run(ctx, false)
	return rep.State == StateVersioned, rep
}

func round4(x float64) float64 { return math.Round(x*1e4) / 1e4 }

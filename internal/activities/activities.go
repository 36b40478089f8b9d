package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"doctag/internal/config"
	"doctag/internal/extract"
	"doctag/internal/ml"
	"doctag/internal/pipeline"
	"doctag/internal/retrain"
	"doctag/internal/util"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Application error types the workflows branch on. Errors of these types
// are not retried.
const (
	ErrTypeRetrainInProgress = "RetrainInProgress"
	ErrTypeNoRecoveredText   = "NoRecoveredText"
	ErrTypeEmptyCorpus       = "EmptyCorpus"
	ErrTypeStratify          = "StratifyImpossible"
)

// RunRecorder keeps a copy of each retrain report outside the data dir.
type RunRecorder interface {
	Upsert(ctx context.Context, rep retrain.Report) error
}

type Activities struct {
	cfg      config.Config
	retrain  *retrain.Orchestrator
	pipeline *pipeline.Pipeline
	runs     RunRecorder
	log      *slog.Logger
}

func New(cfg config.Config, orch *retrain.Orchestrator, pipe *pipeline.Pipeline, l *slog.Logger) *Activities {
	if l == nil {
		l = slog.Default()
	}
	return &Activities{cfg: cfg, retrain: orch, pipeline: pipe, log: l}
}

// RecordRunsTo mirrors every written retrain report to r.
func (a *Activities) RecordRunsTo(r RunRecorder) *Activities {
	a.runs = r
	return a
}

func (a *Activities) EvaluateFeedbackActivity(ctx context.Context, in EvaluateFeedbackInput) (EvaluateFeedbackOutput, error) {
	d, err := a.retrain.Check(ctx)
	if err != nil {
		return EvaluateFeedbackOutput{}, fmt.Errorf("evaluate feedback: %w", err)
	}
	a.log.Info("feedback evaluated", "run_id", in.RunID, "should_retrain", d.ShouldRetrain, "reason", d.Reason)
	return EvaluateFeedbackOutput{Decision: d}, nil
}

func (a *Activities) PrepareCorpusActivity(ctx context.Context, in PrepareCorpusInput) (PrepareCorpusOutput, error) {
	prep, err := a.retrain.Prepare(ctx, in.RunID, in.WindowStart, in.AllowNoFeedback)
	if err != nil {
		return PrepareCorpusOutput{Prepared: prep}, classify(err)
	}
	return PrepareCorpusOutput{Prepared: prep}, nil
}

func (a *Activities) TrainModelActivity(ctx context.Context, in TrainModelInput) (TrainModelOutput, error) {
	activity.RecordHeartbeat(ctx, "training "+in.RunID)
	pub, err := a.retrain.TrainAndPublish(ctx, in.RunID, in.Prepared)
	if err != nil {
		return TrainModelOutput{}, classify(err)
	}
	return TrainModelOutput{Published: pub}, nil
}

func (a *Activities) WriteRetrainReportActivity(ctx context.Context, in WriteRetrainReportInput) (WriteRetrainReportOutput, error) {
	path, err := a.retrain.WriteReport(in.Report)
	if err != nil {
		return WriteRetrainReportOutput{}, err
	}
	if a.runs != nil {
		if err := a.runs.Upsert(ctx, in.Report); err != nil {
			a.log.Warn("retrain run not mirrored", "run_id", in.Report.RunID, "err", err)
		}
	}
	return WriteRetrainReportOutput{Path: path}, nil
}

// ListDocumentsActivity lists the files in a folder that extraction knows
// about, images included so they are logged as failures.
func (a *Activities) ListDocumentsActivity(ctx context.Context, in ListDocumentsInput) (ListDocumentsOutput, error) {
	_ = ctx
	entries, err := os.ReadDir(in.InputDir)
	if err != nil {
		return ListDocumentsOutput{}, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() || extract.FormatOf(e.Name()) == "" {
			continue
		}
		paths = append(paths, filepath.Join(in.InputDir, e.Name()))
	}
	sort.Strings(paths)
	return ListDocumentsOutput{Paths: paths}, nil
}

func (a *Activities) ClassifyDocumentActivity(ctx context.Context, in ClassifyDocumentInput) (ClassifyDocumentOutput, error) {
	res, err := a.pipeline.Analyze(ctx, in.Path, in.Username)
	if err == nil {
		return ClassifyDocumentOutput{Analysis: res}, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassifyDocumentOutput{}, err
	}
	return ClassifyDocumentOutput{Analysis: res, Failed: true, Error: err.Error(), ErrorType: extract.ErrorType(err)}, nil
}

func (a *Activities) WriteBatchSummaryActivity(ctx context.Context, in WriteBatchSummaryInput) error {
	_ = ctx
	outPath := filepath.Join(a.cfg.DataDir, "batches", in.BatchID, "summary.json")
	return util.WriteJSONAtomic(outPath, in.Summary)
}

// classify marks domain failures as non-retryable. I/O errors stay
// retryable.
func classify(err error) error {
	var errType string
	switch {
	case errors.Is(err, retrain.ErrRetrainInProgress):
		errType = ErrTypeRetrainInProgress
	case errors.Is(err, retrain.ErrNoRecoveredText):
		errType = ErrTypeNoRecoveredText
	case errors.Is(err, retrain.ErrEmptyCorpus):
		errType = ErrTypeEmptyCorpus
	case errors.Is(err, ml.ErrStratify):
		errType = ErrTypeStratify
	default:
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}

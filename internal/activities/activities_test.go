package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"doctag/internal/artifact"
	"doctag/internal/classifier"
	"doctag/internal/config"
	"doctag/internal/ledger"
	"doctag/internal/ml"
	"doctag/internal/pipeline"
	"doctag/internal/retrain"
	"doctag/internal/taxonomy"
	"doctag/internal/textnorm"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newActivities(t *testing.T) (*Activities, *ledger.Ledger, config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.DataDir = dir
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	tax := taxonomy.Default()
	norm := textnorm.New(tax, tax.Language())
	led := ledger.Open(filepath.Join(dir, "logs", "predictions.jsonl"), filepath.Join(dir, "logs", "feedback.jsonl"), quiet)
	orch := retrain.New(led, artifact.NewStore(filepath.Join(dir, "models")), tax, norm,
		filepath.Join(dir, "datasets", "train.jsonl"),
		retrain.WithLogger(quiet), retrain.WithClock(func() time.Time { return fixedNow }))
	svc := classifier.NewService(tax, norm, classifier.WithLogger(quiet))
	n := 0
	pipe := pipeline.New(svc, led, pipeline.WithLogger(quiet), pipeline.WithIDs(func() string {
		n++
		return fmt.Sprintf("pred-%d", n)
	}))
	return New(cfg, orch, pipe, quiet), led, cfg
}

func TestClassifyMarksDomainErrorsNonRetryable(t *testing.T) {
	cases := []struct {
		err      error
		wantType string
	}{
		{fmt.Errorf("prepare: %w", retrain.ErrRetrainInProgress), ErrTypeRetrainInProgress},
		{retrain.ErrNoRecoveredText, ErrTypeNoRecoveredText},
		{retrain.ErrEmptyCorpus, ErrTypeEmptyCorpus},
		{fmt.Errorf("split: %w", ml.ErrStratify), ErrTypeStratify},
	}
	for _, tc := range cases {
		got := classify(tc.err)
		var appErr *temporal.ApplicationError
		require.True(t, errors.As(got, &appErr), tc.wantType)
		require.Equal(t, tc.wantType, appErr.Type())
		require.True(t, appErr.NonRetryable())
	}

	plain := errors.New("disk unavailable")
	require.Same(t, plain, classify(plain))
}

func TestListDocumentsActivity(t *testing.T) {
	a, _, _ := newActivities(t)
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.txt", "c.DOCX", "scan.jpg", "notes.md", "data.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a.ListDocumentsActivity)

	val, err := env.ExecuteActivity(a.ListDocumentsActivity, ListDocumentsInput{InputDir: dir})
	require.NoError(t, err)
	var out ListDocumentsOutput
	require.NoError(t, val.Get(&out))
	require.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "c.DOCX"),
		filepath.Join(dir, "scan.jpg"),
	}, out.Paths)

	_, err = env.ExecuteActivity(a.ListDocumentsActivity, ListDocumentsInput{InputDir: filepath.Join(dir, "missing")})
	require.Error(t, err)
}

func TestClassifyDocumentActivity(t *testing.T) {
	a, led, _ := newActivities(t)
	dir := t.TempDir()
	doc := filepath.Join(dir, "nomina.txt")
	require.NoError(t, os.WriteFile(doc, []byte("NÓMINA marzo. Salario base 1.800,00. Retención IRPF. Seguridad social. Líquido a percibir."), 0o644))
	scan := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(scan, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a.ClassifyDocumentActivity)

	val, err := env.ExecuteActivity(a.ClassifyDocumentActivity, ClassifyDocumentInput{Path: doc, Username: "ana"})
	require.NoError(t, err)
	var out ClassifyDocumentOutput
	require.NoError(t, val.Get(&out))
	require.False(t, out.Failed)
	require.Equal(t, "nomina", out.Analysis.Result.CategoryID)

	val, err = env.ExecuteActivity(a.ClassifyDocumentActivity, ClassifyDocumentInput{Path: scan})
	require.NoError(t, err)
	out = ClassifyDocumentOutput{}
	require.NoError(t, val.Get(&out))
	require.True(t, out.Failed)
	require.Equal(t, "ocr_unavailable", out.ErrorType)

	entries, err := ledger.Collect(led.Predictions(context.Background(), time.Time{}))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.True(t, entries[1].IsError())
}

func TestEvaluateFeedbackActivityWithoutFeedback(t *testing.T) {
	a, _, _ := newActivities(t)
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a.EvaluateFeedbackActivity)

	val, err := env.ExecuteActivity(a.EvaluateFeedbackActivity, EvaluateFeedbackInput{RunID: "run_1"})
	require.NoError(t, err)
	var out EvaluateFeedbackOutput
	require.NoError(t, val.Get(&out))
	require.False(t, out.Decision.ShouldRetrain)
	require.Zero(t, out.Decision.FeedbackCount)
	require.InDelta(t, 0.90, out.Decision.ExpectedAccuracy, 1e-9)
}

func TestWriteBatchSummaryActivity(t *testing.T) {
	a, _, cfg := newActivities(t)
	require.NoError(t, a.WriteBatchSummaryActivity(context.Background(), WriteBatchSummaryInput{
		BatchID: "batch-7",
		Summary: map[string]any{"total": 3, "failed": 1},
	}))
	raw, err := os.ReadFile(filepath.Join(cfg.DataDir, "batches", "batch-7", "summary.json"))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.EqualValues(t, 3, got["total"])
}

type memoryRuns struct {
	reports []retrain.Report
}

func (m *memoryRuns) Upsert(_ context.Context, rep retrain.Report) error {
	m.reports = append(m.reports, rep)
	return nil
}

func TestWriteRetrainReportActivityMirrorsRun(t *testing.T) {
	a, _, cfg := newActivities(t)
	runs := &memoryRuns{}
	a.RecordRunsTo(runs)

	out, err := a.WriteRetrainReportActivity(context.Background(), WriteRetrainReportInput{Report: retrain.Report{
		RunID:  "run_20250615_120000",
		State:  retrain.StateFailed,
		Reason: "stratified split impossible",
	}})
	require.NoError(t, err)
	require.FileExists(t, out.Path)
	require.Contains(t, out.Path, cfg.DataDir)
	require.Len(t, runs.reports, 1)
	require.Equal(t, retrain.StateFailed, runs.reports[0].State)
}

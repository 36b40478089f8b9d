package retrain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"doctag/internal/artifact"
	"doctag/internal/corpus"
	"doctag/internal/ledger"
	"doctag/internal/ml"
	"doctag/internal/synth"
	"doctag/internal/taxonomy"
	"doctag/internal/textnorm"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	dir    string
	ledger *ledger.Ledger
	store  *artifact.Store
	orch   *Orchestrator
	gen    *synth.Generator
	base   []corpus.Example
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	tax := taxonomy.Default()
	norm := textnorm.New(tax, tax.Language())

	base, err := synth.BuildDataset(context.Background(), synth.DatasetOptions{DocsPerCategory: 6, Seed: 7, Now: testNow})
	require.NoError(t, err)
	corpusPath := filepath.Join(dir, "datasets", "train.jsonl")
	require.NoError(t, corpus.Save(corpusPath, base))

	f := &fixture{
		dir:    dir,
		ledger: ledger.Open(filepath.Join(dir, "logs", "predictions.jsonl"), filepath.Join(dir, "logs", "feedback.jsonl"), quiet),
		store:  artifact.NewStore(filepath.Join(dir, "models")),
		gen:    synth.NewGenerator(99, testNow),
		base:   base,
	}
	all := append([]Option{WithLogger(quiet), WithClock(func() time.Time { return testNow })}, opts...)
	f.orch = New(f.ledger, f.store, tax, norm, corpusPath, all...)
	return f
}

// activate publishes and promotes a baseline artifact that claims the given
// test accuracy.
func (f *fixture) activate(t *testing.T, testAccuracy float64) {
	t.Helper()
	params := ml.DefaultTrainParams()
	d := corpus.Dataset(f.base, strings.ToLower)
	res, err := ml.Train(context.Background(), d, ml.Dataset{}, ml.Dataset{}, params)
	require.NoError(t, err)
	a := artifact.FromTraining("tfidf_svm_v1", res, params, testNow.Add(-72*time.Hour))
	a.Metadata.TestSize = 100
	a.Metadata.Metrics.Test.Accuracy = testAccuracy
	require.NoError(t, f.store.Save(a))
	_, err = f.store.Promote("tfidf_svm_v1")
	require.NoError(t, err)
}

// record logs n predictions with matching feedback, the first correct of
// which are confirmed and the rest corrected.
func (f *fixture) record(t *testing.T, n, correct int) {
	t.Helper()
	ctx := context.Background()
	cats := synth.Categories()
	for i := 0; i < n; i++ {
		actual := cats[i%len(cats)]
		predicted := actual
		if i >= correct {
			predicted = cats[(i+1)%len(cats)]
		}
		text, err := f.gen.Generate(actual)
		require.NoError(t, err)

		at := testNow.Add(-time.Duration(i) * time.Hour)
		p := ledger.NewPrediction(fmt.Sprintf("pred-%03d", i), fmt.Sprintf("/uploads/doc_%03d.pdf", i), at)
		p.Predicted = predicted
		p.Confidence = 0.7
		p.SetPreview(text)
		require.NoError(t, f.ledger.RecordPrediction(ctx, p))

		fb, err := ledger.FeedbackEntry{
			Timestamp:     at.Add(time.Minute),
			PredictionID:  p.PredictionID,
			FilePath:      "/uploads/" + p.File,
			PredictedType: predicted,
			ActualType:    actual,
			Confidence:    0.7,
		}.Prepare(testNow)
		require.NoError(t, err)
		require.NoError(t, f.ledger.RecordFeedback(ctx, fb))
	}
}

func TestCheckTriggersOnAccuracyDrop(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	f.record(t, 60, 50)

	d, err := f.orch.Check(context.Background())
	require.NoError(t, err)
	require.True(t, d.ShouldRetrain, d.Reason)
	require.Equal(t, 60, d.FeedbackCount)
	require.Equal(t, 50, d.Correct)
	require.InDelta(t, 0.8333, d.CurrentAccuracy, 1e-4)
	require.InDelta(t, 0.95, d.ExpectedAccuracy, 1e-9)
	require.InDelta(t, 0.1167, d.Drop, 1e-4)
	require.Equal(t, "tfidf_svm_v1", d.ActiveArtifact)
}

func TestCheckNeedsMinimumFeedback(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	f.record(t, 40, 20)

	d, err := f.orch.Check(context.Background())
	require.NoError(t, err)
	require.False(t, d.ShouldRetrain)
	require.Contains(t, d.Reason, "insufficient feedback")

	ok, rep := f.orch.AutoRetrainIfNeeded(context.Background())
	require.False(t, ok)
	require.Equal(t, StateIdle, rep.State)
	require.NoError(t, rep.Err())

	list, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCheckHealthyModel(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	f.record(t, 60, 58)

	d, err := f.orch.Check(context.Background())
	require.NoError(t, err)
	require.False(t, d.ShouldRetrain)
	require.Contains(t, d.Reason, "model healthy")

	rep := f.orch.Run(context.Background(), false)
	require.Equal(t, StateIdle, rep.State)
	states := []State{}
	for _, tr := range rep.Transitions {
		states = append(states, tr.State)
	}
	require.Equal(t, []State{StateIdle, StateEvaluating, StateDeciding, StateIdle}, states)
}

func TestCheckUsesDefaultExpectedAccuracy(t *testing.T) {
	f := newFixture(t)
	f.record(t, 60, 54)

	d, err := f.orch.Check(context.Background())
	require.NoError(t, err)
	require.Empty(t, d.ActiveArtifact)
	require.InDelta(t, 0.90, d.ExpectedAccuracy, 1e-9)
	require.InDelta(t, 0.0, d.Drop, 1e-4)
	require.False(t, d.ShouldRetrain)
}

func TestCheckIgnoresFeedbackOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	f.record(t, 60, 50)
	f.orch.params.WindowDays = 1

	d, err := f.orch.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, 25, d.FeedbackCount)
	require.False(t, d.ShouldRetrain)
}

func TestRunPublishesWithoutPromoting(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	f.record(t, 60, 50)

	ok, rep := f.orch.AutoRetrainIfNeeded(context.Background())
	require.True(t, ok, rep.Reason)
	require.Equal(t, StateVersioned, rep.State)
	require.NoError(t, rep.Err())
	require.Equal(t, "tfidf_svm_retrained_20250615_120000", rep.ArtifactName)

	require.Equal(t, len(f.base), rep.OriginalCorpusSize)
	require.Equal(t, 60, rep.FeedbackExamples)
	require.Equal(t, 60, rep.Join.ByPredictionID)
	require.Equal(t, rep.OriginalCorpusSize+rep.FeedbackExamples, rep.CorpusSize)
	require.GreaterOrEqual(t, rep.CorpusSize, rep.OriginalCorpusSize)
	require.Equal(t, rep.CorpusSize, rep.TrainSize+rep.ValSize+rep.TestSize)
	require.NotNil(t, rep.Metrics)

	active, err := f.store.Active()
	require.NoError(t, err)
	require.Equal(t, "tfidf_svm_v1", active)

	a, err := f.store.Load(rep.ArtifactName)
	require.NoError(t, err)
	require.Equal(t, "tfidf_svm_v1", a.Metadata.Parent)
	require.Equal(t, rep.CorpusSize, a.Metadata.CorpusSize)
	require.Equal(t, 60, a.Metadata.FeedbackExamples)

	runDir := f.orch.RunDir(rep.RunID)
	for _, name := range []string{"combined.jsonl", "train.jsonl", "val.jsonl", "test.jsonl", "report.json"} {
		require.FileExists(t, filepath.Join(runDir, name))
	}
	base, err := corpus.Load(context.Background(), filepath.Join(f.dir, "datasets", "train.jsonl"))
	require.NoError(t, err)
	require.Len(t, base, len(f.base))

	saved, err := f.orch.ReadReport(rep.RunID)
	require.NoError(t, err)
	require.Equal(t, StateVersioned, saved.State)
	require.Equal(t, rep.ArtifactName, saved.ArtifactName)
	_, err = f.orch.ReadReport("run_19990101_000000")
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = f.orch.ReadReport("../escape")
	require.Error(t, err)

	states := []State{}
	for _, tr := range rep.Transitions {
		states = append(states, tr.State)
	}
	require.Equal(t, []State{StateIdle, StateEvaluating, StateDeciding, StatePreparing, StateTraining, StateVersioned}, states)
}

func TestRunTwiceKeepsEveryArtifact(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	f.record(t, 60, 50)

	first := f.orch.Run(context.Background(), false)
	require.Equal(t, StateVersioned, first.State, first.Reason)
	second := f.orch.Run(context.Background(), false)
	require.Equal(t, StateVersioned, second.State, second.Reason)
	require.NotEqual(t, first.ArtifactName, second.ArtifactName)

	list, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
}

func TestForcedRunSkipsGates(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	f.record(t, 10, 10)

	rep := f.orch.Run(context.Background(), true)
	require.Equal(t, StateVersioned, rep.State, rep.Reason)
	require.True(t, rep.Forced)
	require.True(t, strings.HasPrefix(rep.Reason, "forced: "))
	require.Equal(t, 10, rep.FeedbackExamples)
}

func TestRunRefusesConcurrentRun(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	f.record(t, 60, 50)

	held, err := acquireLock(filepath.Join(f.orch.WorkDir(), lockFile), "other-run", time.Hour, testNow)
	require.NoError(t, err)

	rep := f.orch.Run(context.Background(), false)
	require.Equal(t, StateFailed, rep.State)
	require.ErrorIs(t, rep.Err(), ErrRetrainInProgress)
	require.Contains(t, rep.Reason, "other-run")

	_, err = f.orch.Prepare(context.Background(), "x", time.Time{}, true)
	require.ErrorIs(t, err, ErrRetrainInProgress)

	require.NoError(t, held.Release())
	rep = f.orch.Run(context.Background(), false)
	require.Equal(t, StateVersioned, rep.State, rep.Reason)
}

func TestStaleLockIsBroken(t *testing.T) {
	path := filepath.Join(t.TempDir(), lockFile)
	_, err := acquireLock(path, "crashed", time.Hour, testNow.Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = acquireLock(path, "fresh", time.Hour, testNow.Add(-90*time.Minute))
	require.ErrorIs(t, err, ErrRetrainInProgress)

	l, err := acquireLock(path, "fresh", time.Hour, testNow)
	require.NoError(t, err)
	info, err := readLock(path)
	require.NoError(t, err)
	require.Equal(t, "fresh", info.RunID)
	require.NoError(t, l.Release())
	require.NoFileExists(t, path)
}

func TestRunFailsWithoutRecoverableText(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		fb, err := ledger.FeedbackEntry{
			Timestamp:     testNow.Add(-time.Hour),
			FilePath:      fmt.Sprintf("/nowhere/%d.pdf", i),
			PredictedType: "factura",
			ActualType:    "recibo",
		}.Prepare(testNow)
		require.NoError(t, err)
		require.NoError(t, f.ledger.RecordFeedback(ctx, fb))
	}

	rep := f.orch.Run(ctx, false)
	require.Equal(t, StateFailed, rep.State)
	require.ErrorIs(t, rep.Err(), ErrNoRecoveredText)
	require.Equal(t, 60, rep.Join.Unrecovered)

	active, err := f.store.Active()
	require.NoError(t, err)
	require.Equal(t, "tfidf_svm_v1", active)
	require.FileExists(t, filepath.Join(f.orch.RunDir(rep.RunID), "report.json"))
}

func TestRunFailsWhenStratificationImpossible(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.dir, "datasets", "train.jsonl")))
	f.orch.params.MinFeedback = 2
	f.record(t, 2, 0)

	rep := f.orch.Run(context.Background(), false)
	require.Equal(t, StateFailed, rep.State)
	require.ErrorIs(t, rep.Err(), ml.ErrStratify)

	list, err := f.store.List()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRunHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	f.activate(t, 0.95)
	f.record(t, 60, 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := f.orch.Run(ctx, true)
	require.Equal(t, StateFailed, rep.State)
	require.ErrorIs(t, rep.Err(), context.Canceled)

	list, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoFileExists(t, filepath.Join(f.orch.WorkDir(), lockFile))
}

func TestParamsFromConfigDefaults(t *testing.T) {
	p := DefaultParams()
	require.Equal(t, 30, p.WindowDays)
	require.Equal(t, 50, p.MinFeedback)
	require.InDelta(t, 0.05, p.MinAccuracyDrop, 1e-9)
	require.InDelta(t, 0.90, p.DefaultExpectedAccuracy, 1e-9)
	require.Equal(t, ml.SplitRatios{Train: 0.70, Val: 0.15, Test: 0.15}, p.Split)
	require.Equal(t, uint64(42), p.Seed)
	require.Equal(t, uint64(42), p.Train.SVM.Seed)
	require.Equal(t, DefaultNamePrefix, p.NamePrefix)
}

func TestStateTerminal(t *testing.T) {
	for s, want := range map[State]bool{
		StateIdle: true, StateVersioned: true, StateFailed: true,
		StateEvaluating: false, StateDeciding: false, StatePreparing: false, StateTraining: false,
	} {
		require.Equal(t, want, s.Terminal(), s)
	}
}

func TestNewRunIDIsUniqueWithinASecond(t *testing.T) {
	f := newFixture(t)
	a, b := f.orch.NewRunID(), f.orch.NewRunID()
	require.Regexp(t, `^run_20250615_120000_[0-9a-f]{8}$`, a)
	require.Regexp(t, `^run_20250615_120000_[0-9a-f]{8}$`, b)
	require.NotEqual(t, a, b)
	require.NotEqual(t, f.orch.RunDir(a), f.orch.RunDir(b))
}

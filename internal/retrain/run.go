package retrain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"doctag/internal/artifact"
	"doctag/internal/corpus"
	"doctag/internal/ledger"
	"doctag/internal/ml"
	"doctag/internal/util"
)

var (
	ErrNoRecoveredText = errors.New("no feedback text could be recovered")
	ErrEmptyCorpus     = errors.New("combined corpus is empty")
)

type Transition struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
}

// Report is the outcome of one run. It always ends in a terminal state.
type Report struct {
	RunID              string            `json:"run_id"`
	State              State             `json:"state"`
	Reason             string            `json:"reason"`
	Forced             bool              `json:"forced,omitempty"`
	Decision           *Decision         `json:"decision,omitempty"`
	Join               corpus.JoinStats  `json:"join"`
	OriginalCorpusSize int               `json:"original_corpus_size"`
	CorpusSize         int               `json:"corpus_size"`
	FeedbackExamples   int               `json:"feedback_examples"`
	TrainSize          int               `json:"train_size"`
	ValSize            int               `json:"val_size"`
	TestSize           int               `json:"test_size"`
	ArtifactName       string            `json:"artifact_name,omitempty"`
	Metrics            *artifact.Metrics `json:"metrics,omitempty"`
	WeakCategories     []string          `json:"weak_categories,omitempty"`
	StartedAt          time.Time         `json:"started_at"`
	FinishedAt         time.Time         `json:"finished_at"`
	Transitions        []Transition      `json:"transitions"`

	err error
}

// Err is the failure behind a failed report, for errors.Is checks.
func (r Report) Err() error { return r.err }

// Prepared describes the combined corpus written for a run.
type Prepared struct {
	CombinedPath       string           `json:"combined_path"`
	Join               corpus.JoinStats `json:"join"`
	OriginalCorpusSize int              `json:"original_corpus_size"`
	CorpusSize         int              `json:"corpus_size"`
	FeedbackExamples   int              `json:"feedback_examples"`
}

// Published describes the artifact a run produced.
type Published struct {
	ArtifactName   string           `json:"artifact_name"`
	Metrics        artifact.Metrics `json:"metrics"`
	WeakCategories []string         `json:"weak_categories,omitempty"`
	TrainSize      int              `json:"train_size"`
	ValSize        int              `json:"val_size"`
	TestSize       int              `json:"test_size"`
}

// Prepare joins windowed feedback with the prediction log, appends the
// recovered examples to the base corpus and writes the result under the
// run directory. The base corpus file is never modified.
func (o *Orchestrator) Prepare(ctx context.Context, runID string, since time.Time, allowNoFeedback bool) (Prepared, error) {
	lock, err := o.lock(runID)
	if err != nil {
		return Prepared{}, err
	}
	defer o.release(lock)
	return o.prepare(ctx, runID, since, allowNoFeedback)
}

func (o *Orchestrator) prepare(ctx context.Context, runID string, since time.Time, allowNoFeedback bool) (Prepared, error) {
	base, err := corpus.Load(ctx, o.corpusPath)
	if err != nil {
		return Prepared{}, fmt.Errorf("load corpus: %w", err)
	}
	feedback, err := ledger.Collect(o.src.Feedback(ctx, since))
	if err != nil {
		return Prepared{}, fmt.Errorf("read feedback: %w", err)
	}
	// Predictions are not windowed: recent feedback may correct old uploads.
	recovered, stats, err := corpus.JoinFeedback(ctx, feedback, o.src.Predictions(ctx, time.Time{}), o.tax)
	if err != nil {
		return Prepared{}, fmt.Errorf("join feedback: %w", err)
	}
	o.log.Info("feedback joined",
		"run_id", runID,
		"feedback", stats.Feedback,
		"by_prediction_id", stats.ByPredictionID,
		"by_file_name", stats.ByFileName,
		"unrecovered", stats.Unrecovered,
		"invalid_label", stats.InvalidLabel)

	p := Prepared{Join: stats, OriginalCorpusSize: len(base), FeedbackExamples: len(recovered)}
	if len(recovered) == 0 && !allowNoFeedback {
		return p, fmt.Errorf("%w: %d feedback entries, none matched a logged prediction", ErrNoRecoveredText, stats.Feedback)
	}
	combined := corpus.Merge(base, recovered)
	if len(combined) == 0 {
		return p, ErrEmptyCorpus
	}
	p.CorpusSize = len(combined)
	p.CombinedPath = filepath.Join(o.RunDir(runID), combinedFile)
	if err := corpus.Save(p.CombinedPath, combined); err != nil {
		return p, fmt.Errorf("write combined corpus: %w", err)
	}
	return p, nil
}

// TrainAndPublish splits the combined corpus, trains a model and saves it
// as a new uniquely named artifact. The active artifact is left alone.
func (o *Orchestrator) TrainAndPublish(ctx context.Context, runID string, prep Prepared) (Published, error) {
	lock, err := o.lock(runID)
	if err != nil {
		return Published{}, err
	}
	defer o.release(lock)
	return o.trainAndPublish(ctx, runID, prep)
}

func (o *Orchestrator) trainAndPublish(ctx context.Context, runID string, prep Prepared) (Published, error) {
	examples, err := corpus.Load(ctx, prep.CombinedPath)
	if err != nil {
		return Published{}, fmt.Errorf("load combined corpus: %w", err)
	}
	if len(examples) == 0 {
		return Published{}, ErrEmptyCorpus
	}
	split, err := ml.StratifiedSplit(corpus.Labels(examples), o.params.Split, o.params.Seed)
	if err != nil {
		return Published{}, err
	}
	runDir := o.RunDir(runID)
	parts := []struct {
		name string
		idx  []int
	}{{"train", split.Train}, {"val", split.Val}, {"test", split.Test}}
	sets := make([]ml.Dataset, len(parts))
	for i := range parts {
		rows := corpus.Select(examples, parts[i].idx)
		if err := corpus.Save(filepath.Join(runDir, parts[i].name+".jsonl"), rows); err != nil {
			return Published{}, fmt.Errorf("write %s split: %w", parts[i].name, err)
		}
		sets[i] = corpus.Dataset(rows, o.norm.Normalize)
	}

	res, err := ml.Train(ctx, sets[0], sets[1], sets[2], o.params.Train)
	if err != nil {
		return Published{}, fmt.Errorf("train: %w", err)
	}

	trainedAt := o.now()
	name := o.store.UniqueName(artifact.VersionName(o.params.NamePrefix, trainedAt))
	a := artifact.FromTraining(name, res, o.params.Train, trainedAt)
	a.Metadata.CorpusSize = len(examples)
	a.Metadata.FeedbackExamples = prep.FeedbackExamples
	if active, err := o.store.Active(); err == nil {
		a.Metadata.Parent = active
	}
	if err := o.store.Save(a); err != nil {
		return Published{}, fmt.Errorf("publish artifact: %w", err)
	}

	eval := res.Test
	if eval.Samples == 0 {
		eval = res.Val
	}
	pub := Published{
		ArtifactName:   name,
		Metrics:        a.Metadata.Metrics,
		WeakCategories: eval.WeakCategories(weakF1),
		TrainSize:      len(split.Train),
		ValSize:        len(split.Val),
		TestSize:       len(split.Test),
	}
	o.log.Info("artifact published",
		"run_id", runID,
		"artifact", name,
		"test_accuracy", pub.Metrics.Test.Accuracy,
		"test_f1_macro", pub.Metrics.Test.F1Macro,
		"weak_categories", pub.WeakCategories)
	return pub, nil
}

// WriteReport stores the report next to the run's datasets.
func (o *Orchestrator) WriteReport(rep Report) (string, error) {
	if rep.RunID == "" {
		return "", errors.New("write report: empty run id")
	}
	path := filepath.Join(o.RunDir(rep.RunID), reportFile)
	if err := util.WriteJSONAtomic(path, rep); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// ReadReport loads the report written for runID. A run that never wrote
// one yields an error wrapping fs.ErrNotExist.
func (o *Orchestrator) ReadReport(runID string) (Report, error) {
	if runID == "" || filepath.Base(runID) != runID {
		return Report{}, fmt.Errorf("read report: invalid run id %q", runID)
	}
	b, err := os.ReadFile(filepath.Join(o.RunDir(runID), reportFile))
	if err != nil {
		return Report{}, fmt.Errorf("read report: %w", err)
	}
	var rep Report
	if err := json.Unmarshal(b, &rep); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	return rep, nil
}

// Run executes the whole state machine in-process under the run lock.
// force skips the volume and drift gates. Failures are reported in the
// returned Report, never returned as errors.
func (o *Orchestrator) Run(ctx context.Context, force bool) Report {
	runID := o.NewRunID()
	rep := Report{RunID: runID, Forced: force, StartedAt: o.now().UTC()}
	rep.enter(StateIdle, o.now())

	lock, err := o.lock(runID)
	if err != nil {
		return o.finish(rep, StateFailed, err.Error(), err)
	}
	defer o.release(lock)

	rep.enter(StateEvaluating, o.now())
	d, err := o.Check(ctx)
	if err != nil {
		return o.finish(rep, StateFailed, err.Error(), err)
	}
	rep.Decision = &d
	if !force && !d.EnoughFeedback() {
		return o.finish(rep, StateIdle, d.Reason, nil)
	}

	rep.enter(StateDeciding, o.now())
	if !force && !d.Drifted() {
		return o.finish(rep, StateIdle, d.Reason, nil)
	}

	rep.enter(StatePreparing, o.now())
	prep, err := o.prepare(ctx, runID, d.WindowStart, force)
	rep.Join = prep.Join
	rep.OriginalCorpusSize = prep.OriginalCorpusSize
	rep.CorpusSize = prep.CorpusSize
	rep.FeedbackExamples = prep.FeedbackExamples
	if err != nil {
		return o.finish(rep, StateFailed, err.Error(), err)
	}

	rep.enter(StateTraining, o.now())
	pub, err := o.trainAndPublish(ctx, runID, prep)
	if err != nil {
		return o.finish(rep, StateFailed, err.Error(), err)
	}
	rep.applyPublished(pub)
	reason := d.Reason
	if force {
		reason = "forced: " + d.Reason
	}
	return o.finish(rep, StateVersioned, reason, nil)
}

func (r *Report) enter(s State, at time.Time) {
	r.State = s
	r.Transitions = append(r.Transitions, Transition{State: s, At: at.UTC()})
}

func (r *Report) applyPublished(p Published) {
	r.ArtifactName = p.ArtifactName
	m := p.Metrics
	r.Metrics = &m
	r.WeakCategories = p.WeakCategories
	r.TrainSize = p.TrainSize
	r.ValSize = p.ValSize
	r.TestSize = p.TestSize
}

func (o *Orchestrator) finish(rep Report, s State, reason string, err error) Report {
	rep.enter(s, o.now())
	rep.Reason = reason
	rep.err = err
	rep.FinishedAt = o.now().UTC()
	if errors.Is(err, ErrRetrainInProgress) {
		o.log.Warn("retrain skipped", "run_id", rep.RunID, "reason", reason)
		return rep
	}
	if s == StateFailed {
		o.log.Error("retrain failed", "run_id", rep.RunID, "reason", reason)
	} else {
		o.log.Info("retrain finished", "run_id", rep.RunID, "state", s, "reason", reason, "artifact", rep.ArtifactName)
	}
	if rep.State != StateIdle {
		if _, werr := o.WriteReport(rep); werr != nil {
			o.log.Warn("retrain report not written", "run_id", rep.RunID, "err", werr)
		}
	}
	return rep
}

func (o *Orchestrator) lock(runID string) (*fileLock, error) {
	return acquireLock(filepath.Join(o.WorkDir(), lockFile), runID, o.params.StaleLock, o.now())
}

func (o *Orchestrator) release(l *fileLock) {
	if err := l.Release(); err != nil {
		o.log.Warn("retrain lock not released", "err", err)
	}
}

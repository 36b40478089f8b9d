// Package artifact persists trained models as named, immutable directories
// and tracks which one is active.
package artifact

import (
	"errors"
	"fmt"
	"time"

	"doctag/internal/ml"
)

var (
	ErrNotFound = errors.New("artifact not found")
	ErrExists   = errors.New("artifact already exists")
	ErrNoActive = errors.New("no active artifact")
	ErrCorrupt  = errors.New("artifact corrupt")

	ErrInvalidName = errors.New("invalid artifact name")
)

const (
	ModelType = "tfidf_linear_svm"

	vectorizerFile = "vectorizer.json"
	classifierFile = "classifier.json"
	metadataFile   = "metadata.json"
	activeFile     = "ACTIVE"
)

type Metrics struct {
	Train ml.SplitMetrics `json:"train"`
	Val   ml.SplitMetrics `json:"val"`
	Test  ml.SplitMetrics `json:"test"`
}

type Metadata struct {
	Name             string         `json:"name"`
	ModelType        string         `json:"model_type"`
	TrainedAt        time.Time      `json:"trained_at"`
	VocabularySize   int            `json:"vocabulary_size"`
	Classes          []string       `json:"classes"`
	Params           ml.TrainParams `json:"params"`
	Metrics          Metrics        `json:"metrics"`
	TestReport       *ml.Evaluation `json:"test_report,omitempty"`
	CorpusSize       int            `json:"corpus_size"`
	TrainSize        int            `json:"train_size"`
	ValSize          int            `json:"val_size"`
	TestSize         int            `json:"test_size"`
	FeedbackExamples int            `json:"feedback_examples"`
	Parent           string         `json:"parent,omitempty"`
}

// Artifact is an immutable trained bundle. Nothing mutates it after
// construction; replacing the active model means loading a new one.
type Artifact struct {
	Metadata Metadata
	Model    *ml.Model
}

// FromTraining assembles an artifact from a training run.
func FromTraining(name string, res ml.TrainResult, params ml.TrainParams, trainedAt time.Time) *Artifact {
	md := Metadata{
		Name:           name,
		ModelType:      ModelType,
		TrainedAt:      trainedAt.UTC(),
		VocabularySize: res.Model.Vectorizer.VocabularySize(),
		Classes:        append([]string(nil), res.Model.Classifier.Classes...),
		Params:         params,
		Metrics: Metrics{
			Train: res.Train.Summary(),
			Val:   res.Val.Summary(),
			Test:  res.Test.Summary(),
		},
		TrainSize: res.Train.Samples,
		ValSize:   res.Val.Samples,
		TestSize:  res.Test.Samples,
	}
	if res.Test.Samples > 0 {
		report := res.Test
		md.TestReport = &report
	}
	md.CorpusSize = md.TrainSize + md.ValSize + md.TestSize
	return &Artifact{Metadata: md, Model: res.Model}
}

// ExpectedAccuracy is the recorded test accuracy, or fallback when the
// artifact carries none.
func (a *Artifact) ExpectedAccuracy(fallback float64) float64 {
	if a == nil {
		return fallback
	}
	return a.Metadata.ExpectedAccuracy(fallback)
}

func (m Metadata) ExpectedAccuracy(fallback float64) float64 {
	if m.TestSize == 0 || m.Metrics.Test.Accuracy <= 0 {
		return fallback
	}
	return m.Metrics.Test.Accuracy
}

// VersionName builds prefix_YYYYMMDD_HHMMSS.
func VersionName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s", prefix, t.Format("20060102_150405"))
}

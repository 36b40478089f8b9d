package activities

import (
	"time"

	"doctag/internal/pipeline"
	"doctag/internal/retrain"
)

type EvaluateFeedbackInput struct {
	RunID string `json:"run_id"`
}

type EvaluateFeedbackOutput struct {
	Decision retrain.Decision `json:"decision"`
}

type PrepareCorpusInput struct {
	RunID           string    `json:"run_id"`
	WindowStart     time.Time `json:"window_start"`
	AllowNoFeedback bool      `json:"allow_no_feedback"`
}

type PrepareCorpusOutput struct {
	Prepared retrain.Prepared `json:"prepared"`
}

type TrainModelInput struct {
	RunID    string           `json:"run_id"`
	Prepared retrain.Prepared `json:"prepared"`
}

type TrainModelOutput struct {
	Published retrain.Published `json:"published"`
}

type WriteRetrainReportInput struct {
	Report retrain.Report `json:"report"`
}

type WriteRetrainReportOutput struct {
	Path string `json:"path"`
}

type ListDocumentsInput struct {
	InputDir string `json:"input_dir"`
}

type ListDocumentsOutput struct {
	Paths []string `json:"paths"`
}

type ClassifyDocumentInput struct {
	Path     string `json:"path"`
	Username string `json:"username,omitempty"`
}

// ClassifyDocumentOutput carries extraction failures as data so the
// workflow can count them instead of retrying.
type ClassifyDocumentOutput struct {
	Analysis  pipeline.Analysis `json:"analysis"`
	Failed    bool              `json:"failed"`
	ErrorType string            `json:"error_type,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type WriteBatchSummaryInput struct {
	BatchID string         `json:"batch_id"`
	Summary map[string]any `json:"summary"`
}

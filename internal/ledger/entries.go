// Package ledger records predictions and user feedback as append-only
// JSONL logs and computes statistics over time windows of them.
package ledger

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"doctag/internal/util"
)

const (
	TypePrediction = "prediction"
	TypeError      = "error"

	PreviewLength = 200
)

// PredictionEntry is one line of the prediction log. Failed attempts are
// written with Type set to TypeError and the error fields filled in.
type PredictionEntry struct {
	PredictionID      string    `json:"prediction_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	Type              string    `json:"type"`
	File              string    `json:"file"`
	FileExtension     string    `json:"file_extension,omitempty"`
	Predicted         string    `json:"predicted,omitempty"`
	Confidence        float64   `json:"confidence"`
	Username          string    `json:"username,omitempty"`
	SuggestedFolder   string    `json:"suggested_folder,omitempty"`
	TextPreview       string    `json:"text_preview,omitempty"`
	ProcessingTimeSec float64   `json:"processing_time_sec,omitempty"`
	Classifier        string    `json:"classifier,omitempty"`
	ModelName         string    `json:"model_name,omitempty"`
	ErrorType         string    `json:"error_type,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

func (e PredictionEntry) At() time.Time { return e.Timestamp }

func (e PredictionEntry) IsError() bool { return e.Type == TypeError }

// NewPrediction starts a prediction entry for filePath. Only the base name
// of the path is kept.
func NewPrediction(id, filePath string, at time.Time) PredictionEntry {
	return PredictionEntry{
		PredictionID:  id,
		Timestamp:     at.UTC(),
		Type:          TypePrediction,
		File:          filepath.Base(filePath),
		FileExtension: util.Ext(filePath),
	}
}

func NewError(filePath, username, errorType string, err error, at time.Time) PredictionEntry {
	e := PredictionEntry{
		Timestamp:     at.UTC(),
		Type:          TypeError,
		File:          filepath.Base(filePath),
		FileExtension: util.Ext(filePath),
		Username:      username,
		ErrorType:     errorType,
	}
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}

// SetPreview stores at most PreviewLength runes of text.
func (e *PredictionEntry) SetPreview(text string) {
	e.TextPreview = util.Preview(text, PreviewLength)
}

// FeedbackEntry is one line of the feedback ledger.
type FeedbackEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	PredictionID  string    `json:"prediction_id,omitempty"`
	FilePath      string    `json:"file_path"`
	PredictedType string    `json:"predicted_type"`
	ActualType    string    `json:"actual_type"`
	Confidence    float64   `json:"confidence"`
	Username      string    `json:"username,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	WasCorrect    bool      `json:"was_correct"`
}

func (e FeedbackEntry) At() time.Time { return e.Timestamp }

var ErrInvalidFeedback = errors.New("invalid feedback")

// Prepare validates e, stamps it and derives WasCorrect. The caller's
// WasCorrect is ignored.
func (e FeedbackEntry) Prepare(now time.Time) (FeedbackEntry, error) {
	e.PredictionID = strings.TrimSpace(e.PredictionID)
	e.FilePath = strings.TrimSpace(e.FilePath)
	e.PredictedType = strings.TrimSpace(e.PredictedType)
	e.ActualType = strings.TrimSpace(e.ActualType)
	switch {
	case e.FilePath == "" && e.PredictionID == "":
		return e, errors.Join(ErrInvalidFeedback, errors.New("file_path or prediction_id is required"))
	case e.PredictedType == "":
		return e, errors.Join(ErrInvalidFeedback, errors.New("predicted_type is required"))
	case e.ActualType == "":
		return e, errors.Join(ErrInvalidFeedback, errors.New("actual_type is required"))
	case e.Confidence < 0 || e.Confidence > 1:
		return e, errors.Join(ErrInvalidFeedback, errors.New("confidence must be within [0,1]"))
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()
	e.WasCorrect = e.PredictedType == e.ActualType
	return e, nil
}

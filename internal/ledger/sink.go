package ledger

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"
)

// Sink receives prediction and feedback records.
type Sink interface {
	RecordPrediction(ctx context.Context, e PredictionEntry) error
	RecordFeedback(ctx context.Context, e FeedbackEntry) error
}

// Ledger is the file-backed store of record: the prediction log and the
// feedback ledger.
type Ledger struct {
	predictions *Log[PredictionEntry]
	feedback    *Log[FeedbackEntry]
}

func Open(predictionsPath, feedbackPath string, l *slog.Logger) *Ledger {
	return &Ledger{
		predictions: NewLog[PredictionEntry](predictionsPath, l),
		feedback:    NewLog[FeedbackEntry](feedbackPath, l),
	}
}

func (l *Ledger) RecordPrediction(ctx context.Context, e PredictionEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.predictions.Append(e)
}

func (l *Ledger) RecordFeedback(ctx context.Context, e FeedbackEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.feedback.Append(e)
}

func (l *Ledger) Predictions(ctx context.Context, since time.Time) iter.Seq2[PredictionEntry, error] {
	return Since(l.predictions.Scan(ctx), since)
}

func (l *Ledger) Feedback(ctx context.Context, since time.Time) iter.Seq2[FeedbackEntry, error] {
	return Since(l.feedback.Scan(ctx), since)
}

func (l *Ledger) PredictionsPath() string { return l.predictions.Path() }

func (l *Ledger) FeedbackPath() string { return l.feedback.Path() }

func (l *Ledger) PredictionStats(ctx context.Context, since time.Time) (PredictionStats, error) {
	return ComputePredictionStats(l.Predictions(ctx, since))
}

func (l *Ledger) FeedbackStats(ctx context.Context, since time.Time) (FeedbackStats, error) {
	return ComputeFeedbackStats(l.Feedback(ctx, since))
}

// Multi fans records out to every wrapped sink. A failing sink does not
// prevent delivery to the others; errors are joined.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Multi{sinks: out}
}

func (m *Multi) RecordPrediction(ctx context.Context, e PredictionEntry) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordPrediction(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) RecordFeedback(ctx context.Context, e FeedbackEntry) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordFeedback(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

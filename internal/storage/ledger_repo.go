package storage

import (
	"context"
	"fmt"
	"iter"
	"time"

	"doctag/internal/ledger"
)

// LedgerRepo mirrors the prediction log and the feedback ledger into
// Postgres. It satisfies ledger.Sink so it can sit next to the JSONL files
// behind a ledger.Multi.
type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) RecordPrediction(ctx context.Context, e ledger.PredictionEntry) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO predictions (prediction_id, created_at, entry_type, file_name, file_extension, predicted, confidence,
  username, suggested_folder, text_preview, processing_time_sec, classifier, model_name, error_type, error_message)
VALUES (NULLIF($1,''), $2, $3, $4, NULLIF($5,''), NULLIF($6,''), $7, NULLIF($8,''), NULLIF($9,''), NULLIF($10,''),
  $11, NULLIF($12,''), NULLIF($13,''), NULLIF($14,''), NULLIF($15,''))
ON CONFLICT (prediction_id) DO NOTHING`,
		e.PredictionID, e.Timestamp, e.Type, e.File, e.FileExtension, e.Predicted, e.Confidence,
		e.Username, e.SuggestedFolder, e.TextPreview, e.ProcessingTimeSec, e.Classifier, e.ModelName, e.ErrorType, e.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (r *LedgerRepo) RecordFeedback(ctx context.Context, e ledger.FeedbackEntry) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO feedback (created_at, prediction_id, file_path, predicted_type, actual_type, confidence, username, comment, was_correct)
VALUES ($1, NULLIF($2,''), $3, $4, $5, $6, NULLIF($7,''), NULLIF($8,''), $9)`,
		e.Timestamp, e.PredictionID, e.FilePath, e.PredictedType, e.ActualType, e.Confidence, e.Username, e.Comment, e.WasCorrect,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// Feedback streams feedback rows recorded at or after since, oldest first.
func (r *LedgerRepo) Feedback(ctx context.Context, since time.Time) iter.Seq2[ledger.FeedbackEntry, error] {
	return func(yield func(ledger.FeedbackEntry, error) bool) {
		rows, err := r.db.Pool.Query(ctx, `
SELECT created_at, COALESCE(prediction_id,''), file_path, predicted_type, actual_type, confidence,
       COALESCE(username,''), COALESCE(comment,''), was_correct
FROM feedback
WHERE created_at >= $1
ORDER BY created_at, id`, since)
		if err != nil {
			yield(ledger.FeedbackEntry{}, fmt.Errorf("list feedback: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var e ledger.FeedbackEntry
			if err := rows.Scan(&e.Timestamp, &e.PredictionID, &e.FilePath, &e.PredictedType, &e.ActualType, &e.Confidence, &e.Username, &e.Comment, &e.WasCorrect); err != nil {
				yield(ledger.FeedbackEntry{}, fmt.Errorf("scan feedback: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ledger.FeedbackEntry{}, fmt.Errorf("iterate feedback: %w", err))
		}
	}
}

// CategoryCounts counts successful predictions per category since the
// given time.
func (r *LedgerRepo) CategoryCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT COALESCE(predicted,'unknown'), COUNT(*)
FROM predictions
WHERE entry_type = 'prediction' AND created_at >= $1
GROUP BY 1`, since)
	if err != nil {
		return nil, fmt.Errorf("count predictions: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan prediction count: %w", err)
		}
		out[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction counts: %w", err)
	}
	return out, nil
}

// FeedbackStats aggregates the mirrored feedback with the same rules as the
// file ledger.
func (r *LedgerRepo) FeedbackStats(ctx context.Context, since time.Time) (ledger.FeedbackStats, error) {
	return ledger.ComputeFeedbackStats(r.Feedback(ctx, since))
}

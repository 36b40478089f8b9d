package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"doctag/internal/retrain"
)

// RetrainRun is the summary row kept for one retraining run.
type RetrainRun struct {
	RunID        string    `json:"run_id"`
	State        string    `json:"state"`
	Reason       string    `json:"reason"`
	Forced       bool      `json:"forced"`
	ArtifactName string    `json:"artifact_name,omitempty"`
	CorpusSize   int       `json:"corpus_size"`
	FinishedAt   time.Time `json:"finished_at"`
}

type RetrainRunRepo struct {
	db *DB
}

func NewRetrainRunRepo(db *DB) *RetrainRunRepo {
	return &RetrainRunRepo{db: db}
}

// Upsert stores the report of a run, replacing an earlier row for the same
// run id.
func (r *RetrainRunRepo) Upsert(ctx context.Context, rep retrain.Report) error {
	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal retrain report: %w", err)
	}
	var feedbackCount int
	var current, expected *float64
	if d := rep.Decision; d != nil {
		feedbackCount = d.FeedbackCount
		current, expected = &d.CurrentAccuracy, &d.ExpectedAccuracy
	}
	var testAcc *float64
	if rep.Metrics != nil {
		testAcc = &rep.Metrics.Test.Accuracy
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO retrain_runs (run_id, state, reason, forced, feedback_count, current_accuracy, expected_accuracy,
  corpus_size, artifact_name, test_accuracy, started_at, finished_at, report)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, NULLIF($9,''), $10, $11, $12, $13)
ON CONFLICT (run_id)
DO UPDATE SET
  state = EXCLUDED.state,
  reason = EXCLUDED.reason,
  feedback_count = EXCLUDED.feedback_count,
  current_accuracy = EXCLUDED.current_accuracy,
  expected_accuracy = EXCLUDED.expected_accuracy,
  corpus_size = EXCLUDED.corpus_size,
  artifact_name = COALESCE(EXCLUDED.artifact_name, retrain_runs.artifact_name),
  test_accuracy = COALESCE(EXCLUDED.test_accuracy, retrain_runs.test_accuracy),
  finished_at = EXCLUDED.finished_at,
  report = EXCLUDED.report,
  updated_at = NOW()`,
		rep.RunID, string(rep.State), rep.Reason, rep.Forced, feedbackCount, current, expected,
		rep.CorpusSize, rep.ArtifactName, testAcc, nullTime(rep.StartedAt), nullTime(rep.FinishedAt), raw,
	)
	if err != nil {
		return fmt.Errorf("upsert retrain run: %w", err)
	}
	return nil
}

func (r *RetrainRunRepo) ListRecent(ctx context.Context, limit int) ([]RetrainRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT run_id, state, COALESCE(reason,''), forced, COALESCE(artifact_name,''), corpus_size, COALESCE(finished_at, updated_at)
FROM retrain_runs
ORDER BY updated_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list retrain runs: %w", err)
	}
	defer rows.Close()

	out := make([]RetrainRun, 0)
	for rows.Next() {
		var run RetrainRun
		if err := rows.Scan(&run.RunID, &run.State, &run.Reason, &run.Forced, &run.ArtifactName, &run.CorpusSize, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan retrain run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retrain runs: %w", err)
	}
	return out, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

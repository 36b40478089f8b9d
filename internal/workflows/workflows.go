package workflows

import (
	"path/filepath"
	"strings"
	"time"

	"doctag/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetProgress      = "GetProgress"
	QueryGetRetrainStatus = "GetRetrainStatus"
)

// ClassifyFolderWorkflow classifies every document in a folder, a bounded
// number at a time, and writes a batch summary.
func ClassifyFolderWorkflow(ctx workflow.Context, input ClassifyFolderInput) (string, error) {
	progress := ClassifyFolderProgress{
		BatchID:     input.BatchID,
		PerDocument: map[string]string{},
		ByCategory:  map[string]int{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (ClassifyFolderProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var listOut activities.ListDocumentsOutput
	if err := workflow.ExecuteActivity(ctx, "ListDocumentsActivity", activities.ListDocumentsInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	paths := listOut.Paths
	progress.Total = len(paths)
	maxConcurrent := defaultCount(input.MaxConcurrent, 4)

	for i := 0; i < len(paths); i += maxConcurrent {
		end := min(i+maxConcurrent, len(paths))
		futures := make([]workflow.Future, 0, end-i)
		for _, path := range paths[i:end] {
			progress.PerDocument[filepath.Base(path)] = "processing"
			futures = append(futures, workflow.ExecuteActivity(ctx, "ClassifyDocumentActivity", activities.ClassifyDocumentInput{
				Path:     path,
				Username: input.Username,
			}))
		}

		for idx, f := range futures {
			name := filepath.Base(paths[i+idx])
			var out activities.ClassifyDocumentOutput
			err := f.Get(ctx, &out)
			progress.Done++
			if err != nil {
				progress.Failed++
				progress.PerDocument[name] = "failed"
				workflow.GetLogger(ctx).Warn("document not classified", "batch_id", input.BatchID, "file", name, "error", err)
				continue
			}
			if out.Failed {
				progress.Failed++
				progress.PerDocument[name] = "failed: " + out.ErrorType
				continue
			}
			cat := out.Analysis.Result.CategoryID
			progress.PerDocument[name] = cat
			progress.ByCategory[cat]++
		}
	}

	err := workflow.ExecuteActivity(ctx, "WriteBatchSummaryActivity", activities.WriteBatchSummaryInput{
		BatchID: input.BatchID,
		Summary: map[string]any{
			"batch_id":            input.BatchID,
			"input_dir":           input.InputDir,
			"username":            input.Username,
			"total":               progress.Total,
			"done":                progress.Done,
			"failed":              progress.Failed,
			"by_category":         progress.ByCategory,
			"per_document_status": progress.PerDocument,
			"generated_at":        workflow.Now(ctx),
		},
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("batch summary not written", "batch_id", input.BatchID, "error", err)
	}
	return "completed", nil
}

// ClassifyFolderWorkflowID keys folder batches by batch id.
func ClassifyFolderWorkflowID(batchID string) string {
	return "classify-" + sanitizeID(batchID)
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

func defaultCount(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

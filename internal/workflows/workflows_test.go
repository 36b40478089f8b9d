package workflows

import (
	"context"
	"errors"
	"testing"

	"doctag/internal/activities"
	"doctag/internal/classifier"
	"doctag/internal/pipeline"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func registerFolderActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ListDocumentsActivity", func(context.Context, activities.ListDocumentsInput) (activities.ListDocumentsOutput, error) {
		return activities.ListDocumentsOutput{}, nil
	})
	registerActivityName(env, "ClassifyDocumentActivity", func(context.Context, activities.ClassifyDocumentInput) (activities.ClassifyDocumentOutput, error) {
		return activities.ClassifyDocumentOutput{}, nil
	})
	registerActivityName(env, "WriteBatchSummaryActivity", func(context.Context, activities.WriteBatchSummaryInput) error {
		return nil
	})
}

func classified(cat string) activities.ClassifyDocumentOutput {
	return activities.ClassifyDocumentOutput{Analysis: pipeline.Analysis{Result: classifier.Result{CategoryID: cat}}}
}

func TestClassifyFolderWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ClassifyFolderWorkflow)
	registerFolderActivities(env)

	paths := []string{"/in/a.pdf", "/in/b.txt", "/in/c.docx", "/in/d.png", "/in/e.txt"}
	env.OnActivity("ListDocumentsActivity", mock.Anything, activities.ListDocumentsInput{InputDir: "/in"}).
		Return(activities.ListDocumentsOutput{Paths: paths}, nil)
	env.OnActivity("ClassifyDocumentActivity", mock.Anything, activities.ClassifyDocumentInput{Path: "/in/a.pdf", Username: "ana"}).Return(classified("factura"), nil)
	env.OnActivity("ClassifyDocumentActivity", mock.Anything, activities.ClassifyDocumentInput{Path: "/in/b.txt", Username: "ana"}).Return(classified("nomina"), nil)
	env.OnActivity("ClassifyDocumentActivity", mock.Anything, activities.ClassifyDocumentInput{Path: "/in/c.docx", Username: "ana"}).Return(classified("factura"), nil)
	env.OnActivity("ClassifyDocumentActivity", mock.Anything, activities.ClassifyDocumentInput{Path: "/in/d.png", Username: "ana"}).
		Return(activities.ClassifyDocumentOutput{Failed: true, ErrorType: "ocr_unavailable"}, nil)
	env.OnActivity("ClassifyDocumentActivity", mock.Anything, activities.ClassifyDocumentInput{Path: "/in/e.txt", Username: "ana"}).
		Return(activities.ClassifyDocumentOutput{}, errors.New("worker lost"))

	var summary map[string]any
	env.OnActivity("WriteBatchSummaryActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.WriteBatchSummaryInput) error {
		summary = in.Summary
		return nil
	})

	env.ExecuteWorkflow(ClassifyFolderWorkflow, ClassifyFolderInput{BatchID: "batch-1", InputDir: "/in", Username: "ana", MaxConcurrent: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result string
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, "completed", result)

	res, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress ClassifyFolderProgress
	require.NoError(t, res.Get(&progress))
	require.Equal(t, 5, progress.Total)
	require.Equal(t, 5, progress.Done)
	require.Equal(t, 2, progress.Failed)
	require.LessOrEqual(t, progress.Failed, progress.Done)
	require.Equal(t, map[string]int{"factura": 2, "nomina": 1}, progress.ByCategory)
	require.Equal(t, "failed: ocr_unavailable", progress.PerDocument["d.png"])
	require.Equal(t, "failed", progress.PerDocument["e.txt"])
	require.Equal(t, "nomina", progress.PerDocument["b.txt"])

	require.NotNil(t, summary)
	require.Equal(t, "batch-1", summary["batch_id"])
}

func TestClassifyFolderWorkflowListFailure(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ClassifyFolderWorkflow)
	registerFolderActivities(env)

	env.OnActivity("ListDocumentsActivity", mock.Anything, mock.Anything).
		Return(activities.ListDocumentsOutput{}, errors.New("read input dir: no such directory"))

	env.ExecuteWorkflow(ClassifyFolderWorkflow, ClassifyFolderInput{BatchID: "b", InputDir: "/missing"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestClassifyFolderWorkflowID(t *testing.T) {
	require.Equal(t, "classify-batch-2025-03-a", ClassifyFolderWorkflowID("Batch_2025.03/a"))
	require.Equal(t, 4, defaultCount(0, 4))
	require.Equal(t, 7, defaultCount(7, 4))
}

func TestClassifyFolderWorkflowSummaryFailureStillCompletes(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ClassifyFolderWorkflow)
	registerFolderActivities(env)

	env.OnActivity("ListDocumentsActivity", mock.Anything, mock.Anything).
		Return(activities.ListDocumentsOutput{Paths: []string{"/in/a.pdf"}}, nil)
	env.OnActivity("ClassifyDocumentActivity", mock.Anything, mock.Anything).Return(classified("recibo"), nil)
	env.OnActivity("WriteBatchSummaryActivity", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	env.ExecuteWorkflow(ClassifyFolderWorkflow, ClassifyFolderInput{BatchID: "b2", InputDir: "/in"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	res, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress ClassifyFolderProgress
	require.NoError(t, res.Get(&progress))
	require.Equal(t, 1, progress.Done)
	require.Zero(t, progress.Failed)
	require.Equal(t, map[string]int{"recibo": 1}, progress.ByCategory)
}

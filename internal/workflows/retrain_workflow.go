package workflows

import (
	"errors"
	"strings"
	"time"

	"doctag/internal/activities"
	"doctag/internal/retrain"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RetrainWorkflowID is fixed so that Temporal refuses a second retrain
// while one is running.
const RetrainWorkflowID = "doctag-retrain"

// RetrainStartOptions starts a retrain run, failing if one is already
// open. Closed runs may be followed by new ones.
func RetrainStartOptions(taskQueue string) client.StartWorkflowOptions {
	return client.StartWorkflowOptions{
		ID:                       RetrainWorkflowID,
		TaskQueue:                taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_FAIL,
		WorkflowExecutionTimeout: 2 * time.Hour,

		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
}

// RetrainWorkflow walks the retraining state machine with one activity per
// stage. Outcomes, failures included, are reported in the returned status;
// the workflow itself only errors when it cannot run at all.
func RetrainWorkflow(ctx workflow.Context, input RetrainInput) (RetrainStatus, error) {
	now := workflow.Now(ctx)
	runID := input.RunID
	if runID == "" {
		runID = retrain.RunIDAt(now) + "_" + shortRunSuffix(workflow.GetInfo(ctx).WorkflowExecution.RunID)
	}
	status := RetrainStatus{
		RunID:       runID,
		Forced:      input.Force,
		RequestedBy: input.RequestedBy,
		CurrentStep: "init",
		Steps:       map[string]string{},
		StartedAt:   now.UTC(),
	}
	status.enter(retrain.StateIdle, now)
	if err := workflow.SetQueryHandler(ctx, QueryGetRetrainStatus, func() (RetrainStatus, error) {
		return status, nil
	}); err != nil {
		return status, err
	}

	shortCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	})
	longCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 45 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    2,
		},
	})

	begin := func(step string, state retrain.State) {
		status.CurrentStep = step
		status.Steps[step] = "processing"
		status.enter(state, workflow.Now(ctx))
	}

	begin("evaluate_feedback", retrain.StateEvaluating)
	var evalOut activities.EvaluateFeedbackOutput
	if err := workflow.ExecuteActivity(shortCtx, "EvaluateFeedbackActivity", activities.EvaluateFeedbackInput{RunID: runID}).Get(ctx, &evalOut); err != nil {
		status.Steps[status.CurrentStep] = "failed"
		return finishRetrain(shortCtx, &status, retrain.StateFailed, failureReason(err))
	}
	status.Steps[status.CurrentStep] = "done"
	d := evalOut.Decision
	status.Decision = &d
	if !input.Force && !d.EnoughFeedback() {
		return finishRetrain(shortCtx, &status, retrain.StateIdle, d.Reason)
	}

	status.enter(retrain.StateDeciding, workflow.Now(ctx))
	if !input.Force && !d.Drifted() {
		return finishRetrain(shortCtx, &status, retrain.StateIdle, d.Reason)
	}

	begin("prepare_corpus", retrain.StatePreparing)
	var prepOut activities.PrepareCorpusOutput
	if err := workflow.ExecuteActivity(shortCtx, "PrepareCorpusActivity", activities.PrepareCorpusInput{
		RunID:           runID,
		WindowStart:     d.WindowStart,
		AllowNoFeedback: input.Force,
	}).Get(ctx, &prepOut); err != nil {
		status.Steps[status.CurrentStep] = "failed"
		return finishRetrain(shortCtx, &status, retrain.StateFailed, failureReason(err))
	}
	status.Steps[status.CurrentStep] = "done"
	prep := prepOut.Prepared
	status.Prepared = &prep

	begin("train_model", retrain.StateTraining)
	var trainOut activities.TrainModelOutput
	if err := workflow.ExecuteActivity(longCtx, "TrainModelActivity", activities.TrainModelInput{RunID: runID, Prepared: prep}).Get(ctx, &trainOut); err != nil {
		status.Steps[status.CurrentStep] = "failed"
		return finishRetrain(shortCtx, &status, retrain.StateFailed, failureReason(err))
	}
	status.Steps[status.CurrentStep] = "done"
	pub := trainOut.Published
	status.Published = &pub

	reason := d.Reason
	if input.Force {
		reason = "forced: " + d.Reason
	}
	return finishRetrain(shortCtx, &status, retrain.StateVersioned, reason)
}

// finishRetrain records the terminal state and, for runs that got past the
// gates, writes the report. A report that cannot be written does not change
// the outcome.
func finishRetrain(ctx workflow.Context, status *RetrainStatus, state retrain.State, reason string) (RetrainStatus, error) {
	now := workflow.Now(ctx)
	status.enter(state, now)
	status.Reason = reason
	status.FinishedAt = now.UTC()
	if state == retrain.StateIdle {
		return *status, nil
	}
	var out activities.WriteRetrainReportOutput
	if err := workflow.ExecuteActivity(ctx, "WriteRetrainReportActivity", activities.WriteRetrainReportInput{Report: status.Report()}).Get(ctx, &out); err != nil {
		workflow.GetLogger(ctx).Warn("retrain report not written", "run_id", status.RunID, "error", err)
		return *status, nil
	}
	status.ReportPath = out.Path
	return *status, nil
}

// shortRunSuffix takes eight characters of the execution run id, which is
// unique per execution and stable across replays.
func shortRunSuffix(executionRunID string) string {
	s := strings.ReplaceAll(executionRunID, "-", "")
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

// failureReason unwraps the activity error down to the application message.
func failureReason(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Message() != "" {
		return appErr.Message()
	}
	return err.Error()
}

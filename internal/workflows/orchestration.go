package workflows

import (
	"fmt"
	"time"

	"ontextract/internal/activities"
	"ontextract/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetRunStatus  = "GetRunStatus"
	SignalSubmitReview = "SubmitReview"
)

// OrchestrationWorkflow drives one run through analyzing, awaiting_approval,
// executing, synthesizing and completed. Any stage failure marks the run
// error and ends the workflow; the run is never resumed.
func OrchestrationWorkflow(ctx workflow.Context, input OrchestrationRunInput) (string, error) {
	progress := RunProgress{
		RunID: input.RunID,
		Stage: models.StageAnalyzing,
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetRunStatus, func() (RunProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	llmAttempts := int32(input.LLMMaxAttempts)
	if llmAttempts <= 0 {
		llmAttempts = ao.RetryPolicy.MaximumAttempts
	}
	llmAO := ao
	llmAO.RetryPolicy = &temporal.RetryPolicy{
		InitialInterval:    ao.RetryPolicy.InitialInterval,
		BackoffCoefficient: ao.RetryPolicy.BackoffCoefficient,
		MaximumInterval:    ao.RetryPolicy.MaximumInterval,
		MaximumAttempts:    llmAttempts,
	}
	llmCtx := workflow.WithActivityOptions(ctx, llmAO)
	ctx = workflow.WithActivityOptions(ctx, ao)

	var analyzeOut activities.AnalyzeExperimentOutput
	if err := workflow.ExecuteActivity(ctx, "AnalyzeExperimentActivity", activities.AnalyzeExperimentInput{
		RunID:        input.RunID,
		ExperimentID: input.ExperimentID,
	}).Get(ctx, &analyzeOut); err != nil {
		return failRun(ctx, &progress, input.RunID, "analyze experiment: "+err.Error())
	}

	var recommendOut activities.RecommendPlanOutput
	if err := workflow.ExecuteActivity(llmCtx, "RecommendPlanActivity", activities.RecommendPlanInput{
		RunID:    input.RunID,
		Analysis: analyzeOut.Analysis,
	}).Get(ctx, &recommendOut); err != nil {
		return failRun(ctx, &progress, input.RunID, "recommend plan: "+err.Error())
	}
	progress.Plan = recommendOut.Plan

	if err := advanceStage(ctx, &progress, input.RunID, models.StageAwaitingApproval); err != nil {
		return failRun(ctx, &progress, input.RunID, err.Error())
	}

	approvedPlan := recommendOut.Plan
	if input.ReviewChoices {
		var decision ReviewDecision
		workflow.GetSignalChannel(ctx, SignalSubmitReview).Receive(ctx, &decision)
		if !decision.Approved {
			return failRun(ctx, &progress, input.RunID, "plan rejected by reviewer")
		}
		if len(decision.Plan) > 0 {
			approvedPlan = decision.Plan
		}
	}
	if err := workflow.ExecuteActivity(ctx, "SaveApprovedPlanActivity", activities.SaveApprovedPlanInput{
		RunID: input.RunID,
		Plan:  approvedPlan,
	}).Get(ctx, nil); err != nil {
		return failRun(ctx, &progress, input.RunID, "save approved plan: "+err.Error())
	}

	if err := advanceStage(ctx, &progress, input.RunID, models.StageExecuting); err != nil {
		return failRun(ctx, &progress, input.RunID, err.Error())
	}

	progress.TotalOperations = len(approvedPlan)
	for i, entry := range approvedPlan {
		progress.Message = fmt.Sprintf("Processing document %s with %s (%d/%d operations)",
			entry.DocumentID, entry.ToolName, i+1, len(approvedPlan))
		_ = workflow.ExecuteActivity(ctx, "UpdateRunProgressActivity", activities.UpdateRunProgressInput{
			RunID:   input.RunID,
			Message: progress.Message,
		}).Get(ctx, nil)

		var execOut activities.ExecutePlanEntryOutput
		if err := workflow.ExecuteActivity(ctx, "ExecutePlanEntryActivity", activities.ExecutePlanEntryInput{
			RunID:     input.RunID,
			Entry:     entry,
			CreatedBy: models.CreatedByOrchestration,
		}).Get(ctx, &execOut); err != nil {
			return failRun(ctx, &progress, input.RunID, "execute plan entry: "+err.Error())
		}
		progress.DoneOperations++
		if execOut.Invocation.Status == models.InvocationError {
			progress.FailedOperations++
		}
	}

	if err := advanceStage(ctx, &progress, input.RunID, models.StageSynthesizing); err != nil {
		return failRun(ctx, &progress, input.RunID, err.Error())
	}

	var synthOut activities.SynthesizeOutput
	if err := workflow.ExecuteActivity(llmCtx, "SynthesizeActivity", activities.SynthesizeInput{
		RunID:        input.RunID,
		ExperimentID: input.ExperimentID,
	}).Get(ctx, &synthOut); err != nil {
		return failRun(ctx, &progress, input.RunID, "synthesize results: "+err.Error())
	}

	if err := advanceStage(ctx, &progress, input.RunID, models.StageCompleted); err != nil {
		return failRun(ctx, &progress, input.RunID, err.Error())
	}
	progress.Message = ""
	return string(models.StageCompleted), nil
}

func advanceStage(ctx workflow.Context, progress *RunProgress, runID string, next models.Stage) error {
	if err := workflow.ExecuteActivity(ctx, "UpdateRunStageActivity", activities.UpdateRunStageInput{
		RunID: runID,
		Stage: next,
	}).Get(ctx, nil); err != nil {
		return fmt.Errorf("advance to %s: %w", next, err)
	}
	progress.Stage = next
	return nil
}

// failRun marks the run error and completes the workflow; the stored detail
// is the operator-facing reason.
func failRun(ctx workflow.Context, progress *RunProgress, runID, detail string) (string, error) {
	progress.Stage = models.StageError
	progress.ErrorDetail = detail
	_ = workflow.ExecuteActivity(ctx, "MarkRunErrorActivity", activities.MarkRunErrorInput{
		RunID:  runID,
		Detail: detail,
	}).Get(ctx, nil)
	return string(models.StageError), nil
}

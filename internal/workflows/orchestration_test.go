package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"ontextract/internal/activities"
	"ontextract/internal/models"
	"ontextract/internal/util"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func testAnalysis() models.ExperimentAnalysis {
	return models.ExperimentAnalysis{
		ExperimentID:  "exp-1",
		DocumentCount: 1,
		FocusTerms:    []string{"liberty"},
		Documents: []models.DocumentSummary{
			{ID: 393, Title: "On Liberty", WordCount: 48000},
		},
	}
}

func testPlan() []models.RecommendationEntry {
	return []models.RecommendationEntry{
		{DocumentID: "393", ToolName: "segment_paragraph", Confidence: 0.9, Rationale: "long document"},
		{DocumentID: "393", ToolName: "extract_entities", Confidence: 0.8, Rationale: "names expected"},
	}
}

func newOrchestrationEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(OrchestrationWorkflow)
	registerActivityName(env, "AnalyzeExperimentActivity", func(context.Context, activities.AnalyzeExperimentInput) (activities.AnalyzeExperimentOutput, error) {
		return activities.AnalyzeExperimentOutput{}, nil
	})
	registerActivityName(env, "RecommendPlanActivity", func(context.Context, activities.RecommendPlanInput) (activities.RecommendPlanOutput, error) {
		return activities.RecommendPlanOutput{}, nil
	})
	registerActivityName(env, "UpdateRunStageActivity", func(context.Context, activities.UpdateRunStageInput) error { return nil })
	registerActivityName(env, "SaveApprovedPlanActivity", func(context.Context, activities.SaveApprovedPlanInput) error { return nil })
	registerActivityName(env, "UpdateRunProgressActivity", func(context.Context, activities.UpdateRunProgressInput) error { return nil })
	registerActivityName(env, "ExecutePlanEntryActivity", func(context.Context, activities.ExecutePlanEntryInput) (activities.ExecutePlanEntryOutput, error) {
		return activities.ExecutePlanEntryOutput{}, nil
	})
	registerActivityName(env, "SynthesizeActivity", func(context.Context, activities.SynthesizeInput) (activities.SynthesizeOutput, error) {
		return activities.SynthesizeOutput{}, nil
	})
	registerActivityName(env, "MarkRunErrorActivity", func(context.Context, activities.MarkRunErrorInput) error { return nil })
	return env
}

func TestOrchestrationWorkflowAutoApprove(t *testing.T) {
	env := newOrchestrationEnv(t)

	env.OnActivity("AnalyzeExperimentActivity", mock.Anything, mock.Anything).Return(activities.AnalyzeExperimentOutput{Analysis: testAnalysis()}, nil)
	env.OnActivity("RecommendPlanActivity", mock.Anything, mock.Anything).Return(activities.RecommendPlanOutput{Plan: testPlan()}, nil)
	env.OnActivity("UpdateRunStageActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("SaveApprovedPlanActivity", mock.Anything, activities.SaveApprovedPlanInput{
		RunID: "run-1",
		Plan:  testPlan(),
	}).Return(nil)
	env.OnActivity("UpdateRunProgressActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExecutePlanEntryActivity", mock.Anything, mock.Anything).Return(activities.ExecutePlanEntryOutput{
		Invocation: models.ToolInvocation{Status: models.InvocationExecuted},
	}, nil)
	env.OnActivity("SynthesizeActivity", mock.Anything, mock.Anything).Return(activities.SynthesizeOutput{Synthesis: `{"summary":"s"}`}, nil)

	env.ExecuteWorkflow(OrchestrationWorkflow, OrchestrationRunInput{
		RunID:        "run-1",
		ExperimentID: "exp-1",
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, string(models.StageCompleted), out)
}

func TestOrchestrationWorkflowReviewApprovesEditedPlan(t *testing.T) {
	env := newOrchestrationEnv(t)

	edited := []models.RecommendationEntry{
		{DocumentID: "393", ToolName: "extract_entities", Confidence: 0.8, Rationale: "names expected"},
	}

	env.OnActivity("AnalyzeExperimentActivity", mock.Anything, mock.Anything).Return(activities.AnalyzeExperimentOutput{Analysis: testAnalysis()}, nil)
	env.OnActivity("RecommendPlanActivity", mock.Anything, mock.Anything).Return(activities.RecommendPlanOutput{Plan: testPlan()}, nil)
	env.OnActivity("UpdateRunStageActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("SaveApprovedPlanActivity", mock.Anything, activities.SaveApprovedPlanInput{
		RunID: "run-1",
		Plan:  edited,
	}).Return(nil)
	env.OnActivity("UpdateRunProgressActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExecutePlanEntryActivity", mock.Anything, mock.Anything).Return(activities.ExecutePlanEntryOutput{
		Invocation: models.ToolInvocation{Status: models.InvocationExecuted},
	}, nil).Once()
	env.OnActivity("SynthesizeActivity", mock.Anything, mock.Anything).Return(activities.SynthesizeOutput{Synthesis: `{"summary":"s"}`}, nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalSubmitReview, ReviewDecision{Approved: true, Plan: edited})
	}, time.Minute)

	env.ExecuteWorkflow(OrchestrationWorkflow, OrchestrationRunInput{
		RunID:         "run-1",
		ExperimentID:  "exp-1",
		ReviewChoices: true,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, string(models.StageCompleted), out)
}

func TestOrchestrationWorkflowRejectionMarksError(t *testing.T) {
	env := newOrchestrationEnv(t)

	env.OnActivity("AnalyzeExperimentActivity", mock.Anything, mock.Anything).Return(activities.AnalyzeExperimentOutput{Analysis: testAnalysis()}, nil)
	env.OnActivity("RecommendPlanActivity", mock.Anything, mock.Anything).Return(activities.RecommendPlanOutput{Plan: testPlan()}, nil)
	env.OnActivity("UpdateRunStageActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("MarkRunErrorActivity", mock.Anything, mock.MatchedBy(func(in activities.MarkRunErrorInput) bool {
		return in.RunID == "run-1" && in.Detail == "plan rejected by reviewer"
	})).Return(nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalSubmitReview, ReviewDecision{Approved: false})
	}, time.Minute)

	env.ExecuteWorkflow(OrchestrationWorkflow, OrchestrationRunInput{
		RunID:         "run-1",
		ExperimentID:  "exp-1",
		ReviewChoices: true,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, string(models.StageError), out)
}

func TestOrchestrationWorkflowParseFailureMarksError(t *testing.T) {
	env := newOrchestrationEnv(t)

	env.OnActivity("AnalyzeExperimentActivity", mock.Anything, mock.Anything).Return(activities.AnalyzeExperimentOutput{Analysis: testAnalysis()}, nil)
	env.OnActivity("RecommendPlanActivity", mock.Anything, mock.Anything).Return(activities.RecommendPlanOutput{},
		temporal.NewNonRetryableApplicationError("llm recommendation response unusable", util.ErrTypeLLMParse, nil))
	env.OnActivity("MarkRunErrorActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(OrchestrationWorkflow, OrchestrationRunInput{
		RunID:        "run-1",
		ExperimentID: "exp-1",
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, string(models.StageError), out)
}

func TestOrchestrationWorkflowLLMRetryCapFromInput(t *testing.T) {
	env := newOrchestrationEnv(t)

	attempts := 0
	env.OnActivity("AnalyzeExperimentActivity", mock.Anything, mock.Anything).Return(activities.AnalyzeExperimentOutput{Analysis: testAnalysis()}, nil)
	env.OnActivity("RecommendPlanActivity", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		attempts++
	}).Return(activities.RecommendPlanOutput{}, errors.New("llm recommend via mock failed: rate limited"))
	env.OnActivity("MarkRunErrorActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(OrchestrationWorkflow, OrchestrationRunInput{
		RunID:          "run-1",
		ExperimentID:   "exp-1",
		LLMMaxAttempts: 2,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, string(models.StageError), out)
	require.Equal(t, 2, attempts)
}

func TestOrchestrationWorkflowToleratesFailedEntries(t *testing.T) {
	env := newOrchestrationEnv(t)

	plan := testPlan()
	env.OnActivity("AnalyzeExperimentActivity", mock.Anything, mock.Anything).Return(activities.AnalyzeExperimentOutput{Analysis: testAnalysis()}, nil)
	env.OnActivity("RecommendPlanActivity", mock.Anything, mock.Anything).Return(activities.RecommendPlanOutput{Plan: plan}, nil)
	env.OnActivity("UpdateRunStageActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("SaveApprovedPlanActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateRunProgressActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExecutePlanEntryActivity", mock.Anything, mock.MatchedBy(func(in activities.ExecutePlanEntryInput) bool {
		return in.Entry.ToolName == "segment_paragraph"
	})).Return(activities.ExecutePlanEntryOutput{
		Invocation: models.ToolInvocation{Status: models.InvocationError, ErrorType: util.ErrTypeUnknownTool},
	}, nil)
	env.OnActivity("ExecutePlanEntryActivity", mock.Anything, mock.MatchedBy(func(in activities.ExecutePlanEntryInput) bool {
		return in.Entry.ToolName == "extract_entities"
	})).Return(activities.ExecutePlanEntryOutput{
		Invocation: models.ToolInvocation{Status: models.InvocationExecuted},
	}, nil)
	env.OnActivity("SynthesizeActivity", mock.Anything, mock.Anything).Return(activities.SynthesizeOutput{Synthesis: `{"summary":"s"}`}, nil)

	env.ExecuteWorkflow(OrchestrationWorkflow, OrchestrationRunInput{
		RunID:        "run-1",
		ExperimentID: "exp-1",
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, string(models.StageCompleted), out)
}

func TestOrchestrationWorkflowProgressQuery(t *testing.T) {
	env := newOrchestrationEnv(t)

	env.OnActivity("AnalyzeExperimentActivity", mock.Anything, mock.Anything).Return(activities.AnalyzeExperimentOutput{Analysis: testAnalysis()}, nil)
	env.OnActivity("RecommendPlanActivity", mock.Anything, mock.Anything).Return(activities.RecommendPlanOutput{Plan: testPlan()}, nil)
	env.OnActivity("UpdateRunStageActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("SaveApprovedPlanActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpdateRunProgressActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExecutePlanEntryActivity", mock.Anything, mock.Anything).Return(activities.ExecutePlanEntryOutput{
		Invocation: models.ToolInvocation{Status: models.InvocationExecuted},
	}, nil)
	env.OnActivity("SynthesizeActivity", mock.Anything, mock.Anything).Return(activities.SynthesizeOutput{Synthesis: `{"summary":"s"}`}, nil)

	env.ExecuteWorkflow(OrchestrationWorkflow, OrchestrationRunInput{
		RunID:        "run-1",
		ExperimentID: "exp-1",
	})
	require.True(t, env.IsWorkflowCompleted())

	val, err := env.QueryWorkflow(QueryGetRunStatus)
	require.NoError(t, err)
	var progress RunProgress
	require.NoError(t, val.Get(&progress))
	require.Equal(t, models.StageCompleted, progress.Stage)
	require.Equal(t, 2, progress.TotalOperations)
	require.Equal(t, 2, progress.DoneOperations)
	require.Equal(t, 0, progress.FailedOperations)
}

package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ontextract/internal/config"
	"ontextract/internal/executor"
	"ontextract/internal/models"
	"ontextract/internal/prompts"
	"ontextract/internal/providers"
	"ontextract/internal/storage"
	"ontextract/internal/tools"
	"ontextract/internal/util"

	"go.temporal.io/sdk/temporal"
)

type Activities struct {
	cfg            config.Config
	experimentRepo *storage.ExperimentRepo
	documentRepo   *storage.DocumentRepo
	runRepo        *storage.RunRepo
	invocationRepo *storage.InvocationRepo
	llmAuditRepo   *storage.LLMAuditRepo
	providers      *providers.Manager
	registry       *tools.Registry
	executor       *executor.Executor
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	embedProvider, embedRef := pm.FirstEmbedProvider()
	registry := tools.NewRegistry(tools.EmbedDependency{
		Provider:  embedProvider,
		Ref:       embedRef,
		Dimension: cfg.EmbedDim,
		Strict:    cfg.StrictEmbedDependency,
	})
	documentRepo := storage.NewDocumentRepo(db)
	invocationRepo := storage.NewInvocationRepo(db)
	return &Activities{
		cfg:            cfg,
		experimentRepo: storage.NewExperimentRepo(db),
		documentRepo:   documentRepo,
		runRepo:        storage.NewRunRepo(db),
		invocationRepo: invocationRepo,
		llmAuditRepo:   storage.NewLLMAuditRepo(db),
		providers:      pm,
		registry:       registry,
		executor:       executor.New(registry, documentRepo, storage.NewArtifactRepo(db), invocationRepo, nil),
	}, nil
}

// Registry exposes the tool catalog for the API layer sharing this wiring.
func (a *Activities) Registry() *tools.Registry {
	return a.registry
}

func (a *Activities) Executor() *executor.Executor {
	return a.executor
}

func (a *Activities) AnalyzeExperimentActivity(ctx context.Context, in AnalyzeExperimentInput) (AnalyzeExperimentOutput, error) {
	exp, err := a.experimentRepo.Get(ctx, in.ExperimentID)
	if err != nil {
		return AnalyzeExperimentOutput{}, err
	}
	docs, err := a.documentRepo.ListByExperiment(ctx, in.ExperimentID)
	if err != nil {
		return AnalyzeExperimentOutput{}, err
	}
	if len(docs) == 0 {
		return AnalyzeExperimentOutput{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("experiment %s has no documents", in.ExperimentID), "EmptyExperimentError", nil)
	}

	analysis := models.ExperimentAnalysis{
		ExperimentID:  exp.ExperimentID,
		DocumentCount: len(docs),
		PeriodStart:   exp.PeriodStart,
		PeriodEnd:     exp.PeriodEnd,
		FocusTerms:    exp.FocusTerms,
		Documents:     make([]models.DocumentSummary, 0, len(docs)),
	}
	for _, d := range docs {
		analysis.Documents = append(analysis.Documents, models.DocumentSummary{
			ID:        d.ID,
			Title:     d.Title,
			Language:  d.Language,
			Source:    d.Source,
			WordCount: d.WordCount,
		})
	}
	if err := a.runRepo.SaveAnalysis(ctx, in.RunID, analysis); err != nil {
		return AnalyzeExperimentOutput{}, err
	}
	return AnalyzeExperimentOutput{Analysis: analysis}, nil
}

func (a *Activities) RecommendPlanActivity(ctx context.Context, in RecommendPlanInput) (RecommendPlanOutput, error) {
	catalog := make([]prompts.ToolOption, 0)
	for _, d := range a.registry.ListTools("") {
		catalog = append(catalog, prompts.ToolOption{Name: d.Name, Category: d.Category, Description: d.Description})
	}
	prompt, contextLines := prompts.BuildRecommendationPrompt(in.Analysis, catalog)

	provider, ref := a.providers.FirstLLMProvider()
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation:   "recommend_tools",
		Prompt:      prompt,
		Context:     contextLines,
		Temperature: a.cfg.LLMTemperature,
	})
	if err != nil {
		errType := providers.ClassifyError(err)
		a.auditLLMCall(ctx, "recommend_tools", in.RunID, ref.Raw, "", "failed", string(errType))
		if !errType.Retryable() {
			return RecommendPlanOutput{}, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("llm recommend via %s failed", ref.Raw), util.ErrTypeLLMTransient, err)
		}
		return RecommendPlanOutput{}, fmt.Errorf("llm recommend via %s failed: %w", ref.Raw, err)
	}

	plan, err := prompts.ParseRecommendations(resp.Text)
	if err != nil {
		a.auditLLMCall(ctx, "recommend_tools", in.RunID, info.Name, info.Model, "failed", util.ErrTypeLLMParse)
		return RecommendPlanOutput{}, temporal.NewNonRetryableApplicationError(
			"llm recommendation response unusable", util.ErrTypeLLMParse, err)
	}
	a.auditLLMCall(ctx, "recommend_tools", in.RunID, info.Name, info.Model, "ok", "")

	if err := a.runRepo.SavePlan(ctx, in.RunID, plan); err != nil {
		return RecommendPlanOutput{}, err
	}
	return RecommendPlanOutput{Plan: plan, ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) UpdateRunStageActivity(ctx context.Context, in UpdateRunStageInput) error {
	return a.runRepo.UpdateStage(ctx, in.RunID, in.Stage)
}

func (a *Activities) SaveApprovedPlanActivity(ctx context.Context, in SaveApprovedPlanInput) error {
	return a.runRepo.SaveApprovedPlan(ctx, in.RunID, in.Plan)
}

func (a *Activities) UpdateRunProgressActivity(ctx context.Context, in UpdateRunProgressInput) error {
	return a.runRepo.UpdateProgress(ctx, in.RunID, in.Message)
}

// ExecutePlanEntryActivity runs one approved plan entry. A failed tool is
// reported in the returned invocation, not as an activity error; only a
// failure to record results errors the activity.
func (a *Activities) ExecutePlanEntryActivity(ctx context.Context, in ExecutePlanEntryInput) (ExecutePlanEntryOutput, error) {
	toolCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.ToolTimeoutSecs)*time.Second)
	defer cancel()

	inv, err := a.executor.Execute(toolCtx, executor.Request{
		RunID:      in.RunID,
		DocumentID: in.Entry.DocumentID,
		ToolName:   in.Entry.ToolName,
		Parameters: in.Entry.Parameters,
		CreatedBy:  in.CreatedBy,
	})
	if err != nil {
		return ExecutePlanEntryOutput{}, err
	}
	return ExecutePlanEntryOutput{Invocation: inv}, nil
}

func (a *Activities) SynthesizeActivity(ctx context.Context, in SynthesizeInput) (SynthesizeOutput, error) {
	exp, err := a.experimentRepo.Get(ctx, in.ExperimentID)
	if err != nil {
		return SynthesizeOutput{}, err
	}
	invocations, err := a.invocationRepo.ListByRun(ctx, in.RunID)
	if err != nil {
		return SynthesizeOutput{}, err
	}

	resultLines := make([]string, 0, len(invocations))
	for _, inv := range invocations {
		if inv.Status != models.InvocationExecuted {
			continue
		}
		dataJSON, _ := json.Marshal(inv.Data)
		resultLines = append(resultLines, fmt.Sprintf("document_id=%d tool=%s data=%s",
			inv.DocumentID, inv.ToolName, util.Truncate(string(dataJSON), 2000)))
	}
	prompt, contextLines := prompts.BuildSynthesisPrompt(exp.FocusTerms, resultLines)

	provider, ref := a.providers.FirstLLMProvider()
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation:   "synthesize_results",
		Prompt:      prompt,
		Context:     contextLines,
		Temperature: a.cfg.LLMTemperature,
	})
	if err != nil {
		errType := providers.ClassifyError(err)
		a.auditLLMCall(ctx, "synthesize_results", in.RunID, ref.Raw, "", "failed", string(errType))
		if !errType.Retryable() {
			return SynthesizeOutput{}, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("llm synthesize via %s failed", ref.Raw), util.ErrTypeLLMTransient, err)
		}
		return SynthesizeOutput{}, fmt.Errorf("llm synthesize via %s failed: %w", ref.Raw, err)
	}

	result, err := prompts.ParseSynthesis(resp.Text)
	if err != nil {
		a.auditLLMCall(ctx, "synthesize_results", in.RunID, info.Name, info.Model, "failed", util.ErrTypeLLMParse)
		return SynthesizeOutput{}, temporal.NewNonRetryableApplicationError(
			"llm synthesis response unusable", util.ErrTypeLLMParse, err)
	}
	a.auditLLMCall(ctx, "synthesize_results", in.RunID, info.Name, info.Model, "ok", "")

	canonical, err := json.Marshal(result)
	if err != nil {
		return SynthesizeOutput{}, fmt.Errorf("encode synthesis: %w", err)
	}
	if err := a.runRepo.SaveSynthesis(ctx, in.RunID, string(canonical)); err != nil {
		return SynthesizeOutput{}, err
	}
	return SynthesizeOutput{Synthesis: string(canonical), ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) MarkRunErrorActivity(ctx context.Context, in MarkRunErrorInput) error {
	return a.runRepo.MarkError(ctx, in.RunID, in.Detail)
}

// auditLLMCall is best effort; a failed audit write never fails the stage.
func (a *Activities) auditLLMCall(ctx context.Context, operation, runID, providerName, model, status, errType string) {
	_ = a.llmAuditRepo.Insert(ctx, storage.LLMCallRecord{
		Operation:    operation,
		RunID:        runID,
		ProviderName: providerName,
		Model:        model,
		Status:       status,
		ErrorType:    errType,
	})
}

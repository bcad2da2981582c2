package activities

import "ontextract/internal/models"

type AnalyzeExperimentInput struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
}

type AnalyzeExperimentOutput struct {
	Analysis models.ExperimentAnalysis `json:"analysis"`
}

type RecommendPlanInput struct {
	RunID    string                    `json:"run_id"`
	Analysis models.ExperimentAnalysis `json:"analysis"`
}

type RecommendPlanOutput struct {
	Plan         []models.RecommendationEntry `json:"plan"`
	ProviderName string                       `json:"provider_name"`
	Model        string                       `json:"model"`
}

type UpdateRunStageInput struct {
	RunID string       `json:"run_id"`
	Stage models.Stage `json:"stage"`
}

type SaveApprovedPlanInput struct {
	RunID string                       `json:"run_id"`
	Plan  []models.RecommendationEntry `json:"plan"`
}

type UpdateRunProgressInput struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

type ExecutePlanEntryInput struct {
	RunID     string                     `json:"run_id"`
	Entry     models.RecommendationEntry `json:"entry"`
	CreatedBy string                     `json:"created_by"`
}

type ExecutePlanEntryOutput struct {
	Invocation models.ToolInvocation `json:"invocation"`
}

type SynthesizeInput struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
}

type SynthesizeOutput struct {
	Synthesis    string `json:"synthesis"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type MarkRunErrorInput struct {
	RunID  string `json:"run_id"`
	Detail string `json:"detail"`
}

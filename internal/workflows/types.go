package workflows

import "ontextract/internal/models"

type OrchestrationRunInput struct {
	RunID         string `json:"run_id"`
	ExperimentID  string `json:"experiment_id"`
	ReviewChoices bool   `json:"review_choices"`
	CreatedBy     string `json:"created_by"`
	// LLMMaxAttempts caps retries of the LLM-backed activities. Zero or
	// negative falls back to the default of 3.
	LLMMaxAttempts int `json:"llm_max_attempts,omitempty"`
}

// RunProgress is the query-visible snapshot of a run. It mirrors what the
// run row holds so pollers get live state without a DB read.
type RunProgress struct {
	RunID            string                       `json:"run_id"`
	Stage            models.Stage                 `json:"stage"`
	Message          string                       `json:"message,omitempty"`
	Plan             []models.RecommendationEntry `json:"plan,omitempty"`
	TotalOperations  int                          `json:"total_operations"`
	DoneOperations   int                          `json:"done_operations"`
	FailedOperations int                          `json:"failed_operations"`
	ErrorDetail      string                       `json:"error_detail,omitempty"`
}

// ReviewDecision is the human verdict on a recommended plan. An approved
// decision may carry an edited plan; an empty plan means run the
// recommendation as proposed.
type ReviewDecision struct {
	Approved bool                         `json:"approved"`
	Plan     []models.RecommendationEntry `json:"plan,omitempty"`
}

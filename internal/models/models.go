package models

import "time"

// Stage is the lifecycle position of an orchestration run. Transitions are
// strictly forward in the order below; StageError is terminal and reachable
// from any stage.
type Stage string

const (
	StageAnalyzing        Stage = "analyzing"
	StageAwaitingApproval Stage = "awaiting_approval"
	StageExecuting        Stage = "executing"
	StageSynthesizing     Stage = "synthesizing"
	StageCompleted        Stage = "completed"
	StageError            Stage = "error"
)

func (s Stage) Ordinal() int {
	switch s {
	case StageAnalyzing:
		return 0
	case StageAwaitingApproval:
		return 1
	case StageExecuting:
		return 2
	case StageSynthesizing:
		return 3
	case StageCompleted:
		return 4
	case StageError:
		return 5
	}
	return -1
}

func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// CanAdvanceTo reports whether moving from s to next respects the
// forward-only stage order. Error is always reachable.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if next == StageError {
		return s != StageError
	}
	if s.Terminal() {
		return false
	}
	return next.Ordinal() > s.Ordinal()
}

// Tags recorded on provenance artifacts to distinguish who triggered the
// processing.
const (
	CreatedByOrchestration = "llm_orchestration"
	CreatedByManual        = "manual"
)

// Invocation statuses in the standardized result envelope. Raw tool
// "success" statuses are normalized to InvocationExecuted before storage.
const (
	InvocationExecuted = "executed"
	InvocationError    = "error"
	InvocationPartial  = "partial"
)

type Experiment struct {
	ExperimentID string    `json:"experiment_id"`
	Name         string    `json:"name"`
	FocusTerms   []string  `json:"focus_terms"`
	PeriodStart  *int      `json:"period_start,omitempty"`
	PeriodEnd    *int      `json:"period_end,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Document struct {
	ID           int       `json:"id"`
	ExperimentID string    `json:"experiment_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	Language     string    `json:"language,omitempty"`
	Source       string    `json:"source,omitempty"`
	WordCount    int       `json:"word_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecommendationEntry is one line of the LLM-proposed plan. Confidence is
// stored as the model reported it; it is never recomputed downstream.
type RecommendationEntry struct {
	DocumentID string         `json:"document_id"`
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Confidence float64        `json:"confidence"`
	Rationale  string         `json:"rationale"`
}

type OrchestrationRun struct {
	RunID           string                `json:"run_id"`
	ExperimentID    string                `json:"experiment_id"`
	CreatedBy       string                `json:"created_by"`
	Stage           Stage                 `json:"stage"`
	ReviewChoices   bool                  `json:"review_choices"`
	ProgressMessage string                `json:"progress_message,omitempty"`
	Analysis        *ExperimentAnalysis   `json:"analysis,omitempty"`
	Plan            []RecommendationEntry `json:"plan,omitempty"`
	ApprovedPlan    []RecommendationEntry `json:"approved_plan,omitempty"`
	Synthesis       string                `json:"synthesis,omitempty"`
	ErrorDetail     string                `json:"error_detail,omitempty"`
	StageStartedAt  time.Time             `json:"stage_started_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// ExperimentAnalysis is the Analyze stage output consumed by Recommend.
type ExperimentAnalysis struct {
	ExperimentID  string            `json:"experiment_id"`
	DocumentCount int               `json:"document_count"`
	PeriodStart   *int              `json:"period_start,omitempty"`
	PeriodEnd     *int              `json:"period_end,omitempty"`
	FocusTerms    []string          `json:"focus_terms"`
	Documents     []DocumentSummary `json:"documents"`
}

type DocumentSummary struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Language  string `json:"language,omitempty"`
	Source    string `json:"source,omitempty"`
	WordCount int    `json:"word_count"`
}

// ToolInvocation is the immutable record of one tool run against one
// document, stored once the tool returns.
type ToolInvocation struct {
	InvocationID    string         `json:"invocation_id"`
	RunID           string         `json:"run_id,omitempty"`
	DocumentID      int            `json:"document_id"`
	ToolName        string         `json:"tool_name"`
	Status          string         `json:"status"`
	ErrorType       string         `json:"error_type,omitempty"`
	ErrorDetail     string         `json:"error_detail,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ArtifactGroupID string         `json:"artifact_group_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ArtifactGroup is the PROV-O provenance unit linking one class of
// processing output to the document, tool, and run that produced it.
// Append-only; removed only by cascade when the document is deleted.
type ArtifactGroup struct {
	GroupID      string         `json:"group_id"`
	DocumentID   int            `json:"document_id"`
	ArtifactType string         `json:"artifact_type"`
	MethodKey    string         `json:"method_key"`
	ToolName     string         `json:"tool_name"`
	CreatedBy    string         `json:"created_by"`
	RunID        string         `json:"run_id,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

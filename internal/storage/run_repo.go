package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"ontextract/internal/models"
)

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// CreateRun inserts the run row. A replayed run_id is a no-op here; the
// duplicate is rejected when the workflow start is attempted.
func (r *RunRepo) CreateRun(ctx context.Context, run models.OrchestrationRun) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO orchestration_runs (run_id, experiment_id, created_by, stage, review_choices)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (run_id) DO NOTHING`,
		run.RunID, run.ExperimentID, run.CreatedBy, string(run.Stage), run.ReviewChoices)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateStage moves a run to the next stage. The transition is checked
// inside a transaction so a stale caller can never move a run backwards
// or out of a terminal stage.
func (r *RunRepo) UpdateStage(ctx context.Context, runID string, next models.Stage) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin stage update: %w", err)
	}
	defer tx.Rollback(ctx)

	var current models.Stage
	if err := tx.QueryRow(ctx, `SELECT stage FROM orchestration_runs WHERE run_id=$1 FOR UPDATE`, runID).Scan(&current); err != nil {
		return fmt.Errorf("lock run stage: %w", err)
	}
	if !current.CanAdvanceTo(next) {
		return fmt.Errorf("invalid stage transition %s -> %s for run %s", current, next, runID)
	}
	if _, err := tx.Exec(ctx, `
UPDATE orchestration_runs SET stage=$2, stage_started_at=NOW(), updated_at=NOW() WHERE run_id=$1`,
		runID, string(next)); err != nil {
		return fmt.Errorf("update run stage: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stage update: %w", err)
	}
	return nil
}

func (r *RunRepo) SaveAnalysis(ctx context.Context, runID string, analysis models.ExperimentAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if _, err := r.db.Pool.Exec(ctx, `
UPDATE orchestration_runs SET analysis=$2::jsonb, updated_at=NOW() WHERE run_id=$1`,
		runID, string(data)); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func (r *RunRepo) SavePlan(ctx context.Context, runID string, plan []models.RecommendationEntry) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if _, err := r.db.Pool.Exec(ctx, `
UPDATE orchestration_runs SET plan=$2::jsonb, updated_at=NOW() WHERE run_id=$1`,
		runID, string(data)); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

func (r *RunRepo) SaveApprovedPlan(ctx context.Context, runID string, plan []models.RecommendationEntry) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode approved plan: %w", err)
	}
	if _, err := r.db.Pool.Exec(ctx, `
UPDATE orchestration_runs SET approved_plan=$2::jsonb, updated_at=NOW() WHERE run_id=$1`,
		runID, string(data)); err != nil {
		return fmt.Errorf("save approved plan: %w", err)
	}
	return nil
}

func (r *RunRepo) UpdateProgress(ctx context.Context, runID, message string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE orchestration_runs SET progress_message=$2, updated_at=NOW() WHERE run_id=$1`, runID, message)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

func (r *RunRepo) SaveSynthesis(ctx context.Context, runID, synthesis string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE orchestration_runs SET synthesis=$2, updated_at=NOW() WHERE run_id=$1`, runID, synthesis)
	if err != nil {
		return fmt.Errorf("save synthesis: %w", err)
	}
	return nil
}

// MarkError moves a run to the terminal error stage with a reason. Unlike
// UpdateStage it only refuses when the run is already in error.
func (r *RunRepo) MarkError(ctx context.Context, runID, detail string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE orchestration_runs
SET stage='error', error_detail=$2, stage_started_at=NOW(), updated_at=NOW()
WHERE run_id=$1 AND stage <> 'error'`, runID, detail)
	if err != nil {
		return fmt.Errorf("mark run error: %w", err)
	}
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, runID string) (models.OrchestrationRun, error) {
	var run models.OrchestrationRun
	var analysisJSON, planJSON, approvedJSON []byte
	err := r.db.Pool.QueryRow(ctx, `
SELECT run_id::text, experiment_id::text, created_by, stage, review_choices,
       COALESCE(progress_message,''), analysis, plan, approved_plan,
       COALESCE(synthesis,''), COALESCE(error_detail,''),
       stage_started_at, created_at, updated_at
FROM orchestration_runs
WHERE run_id=$1`, runID).
		Scan(&run.RunID, &run.ExperimentID, &run.CreatedBy, &run.Stage, &run.ReviewChoices,
			&run.ProgressMessage, &analysisJSON, &planJSON, &approvedJSON,
			&run.Synthesis, &run.ErrorDetail,
			&run.StageStartedAt, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return models.OrchestrationRun{}, fmt.Errorf("get run: %w", err)
	}
	if len(analysisJSON) > 0 {
		run.Analysis = &models.ExperimentAnalysis{}
		if err := json.Unmarshal(analysisJSON, run.Analysis); err != nil {
			return models.OrchestrationRun{}, fmt.Errorf("decode analysis: %w", err)
		}
	}
	if len(planJSON) > 0 {
		if err := json.Unmarshal(planJSON, &run.Plan); err != nil {
			return models.OrchestrationRun{}, fmt.Errorf("decode plan: %w", err)
		}
	}
	if len(approvedJSON) > 0 {
		if err := json.Unmarshal(approvedJSON, &run.ApprovedPlan); err != nil {
			return models.OrchestrationRun{}, fmt.Errorf("decode approved plan: %w", err)
		}
	}
	return run, nil
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"ontextract/internal/models"
)

type ExperimentRepo struct {
	db *DB
}

func NewExperimentRepo(db *DB) *ExperimentRepo {
	return &ExperimentRepo{db: db}
}

func (r *ExperimentRepo) Create(ctx context.Context, e models.Experiment) error {
	termsJSON, _ := json.Marshal(e.FocusTerms)
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO experiments (experiment_id, name, focus_terms, period_start, period_end)
VALUES ($1, $2, $3::jsonb, $4, $5)`,
		e.ExperimentID, e.Name, string(termsJSON), e.PeriodStart, e.PeriodEnd)
	if err != nil {
		return fmt.Errorf("create experiment: %w", err)
	}
	return nil
}

func (r *ExperimentRepo) Get(ctx context.Context, experimentID string) (models.Experiment, error) {
	var e models.Experiment
	var termsJSON []byte
	err := r.db.Pool.QueryRow(ctx, `
SELECT experiment_id::text, name, focus_terms, period_start, period_end, created_at
FROM experiments
WHERE experiment_id=$1`, experimentID).
		Scan(&e.ExperimentID, &e.Name, &termsJSON, &e.PeriodStart, &e.PeriodEnd, &e.CreatedAt)
	if err != nil {
		return models.Experiment{}, fmt.Errorf("get experiment: %w", err)
	}
	if len(termsJSON) > 0 {
		if err := json.Unmarshal(termsJSON, &e.FocusTerms); err != nil {
			return models.Experiment{}, fmt.Errorf("decode focus terms: %w", err)
		}
	}
	return e, nil
}

func (r *ExperimentRepo) List(ctx context.Context) ([]models.Experiment, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT experiment_id::text, name, focus_terms, period_start, period_end, created_at
FROM experiments
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	out := make([]models.Experiment, 0)
	for rows.Next() {
		var e models.Experiment
		var termsJSON []byte
		if err := rows.Scan(&e.ExperimentID, &e.Name, &termsJSON, &e.PeriodStart, &e.PeriodEnd, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		if len(termsJSON) > 0 {
			if err := json.Unmarshal(termsJSON, &e.FocusTerms); err != nil {
				return nil, fmt.Errorf("decode focus terms: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return out, nil
}

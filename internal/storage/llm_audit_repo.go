package storage

import (
	"context"
	"fmt"
)

// LLMCallRecord is one audit row per provider call made during a run.
type LLMCallRecord struct {
	CallID       string
	Operation    string
	RunID        string
	ProviderName string
	Model        string
	Status       string
	ErrorType    string
}

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls (call_id, operation, run_id, provider_name, model, status, error_type)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,'')::uuid, $4, $5, $6, NULLIF($7,''))`,
		rec.CallID, rec.Operation, rec.RunID, rec.ProviderName, rec.Model, rec.Status, rec.ErrorType)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"ontextract/internal/models"
)

type InvocationRepo struct {
	db *DB
}

func NewInvocationRepo(db *DB) *InvocationRepo {
	return &InvocationRepo{db: db}
}

func (r *InvocationRepo) Insert(ctx context.Context, inv models.ToolInvocation) error {
	paramsJSON, _ := json.Marshal(inv.Parameters)
	dataJSON, _ := json.Marshal(inv.Data)
	metaJSON, _ := json.Marshal(inv.Metadata)
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO tool_invocations
  (invocation_id, run_id, document_id, tool_name, status, error_type, error_detail,
   parameters, data, metadata, artifact_group_id)
VALUES ($1, NULLIF($2,'')::uuid, NULLIF($3,0), $4, $5, NULLIF($6,''), NULLIF($7,''),
        $8::jsonb, $9::jsonb, $10::jsonb, NULLIF($11,'')::uuid)`,
		inv.InvocationID, inv.RunID, inv.DocumentID, inv.ToolName, inv.Status,
		inv.ErrorType, inv.ErrorDetail,
		string(paramsJSON), string(dataJSON), string(metaJSON), inv.ArtifactGroupID)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

func (r *InvocationRepo) ListByRun(ctx context.Context, runID string) ([]models.ToolInvocation, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT invocation_id::text, COALESCE(run_id::text,''), COALESCE(document_id,0), tool_name, status,
       COALESCE(error_type,''), COALESCE(error_detail,''),
       parameters, data, metadata, COALESCE(artifact_group_id::text,''), created_at
FROM tool_invocations
WHERE run_id=$1
ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	out := make([]models.ToolInvocation, 0)
	for rows.Next() {
		var inv models.ToolInvocation
		var paramsJSON, dataJSON, metaJSON []byte
		if err := rows.Scan(&inv.InvocationID, &inv.RunID, &inv.DocumentID, &inv.ToolName, &inv.Status,
			&inv.ErrorType, &inv.ErrorDetail,
			&paramsJSON, &dataJSON, &metaJSON, &inv.ArtifactGroupID, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		if len(paramsJSON) > 0 {
			if err := json.Unmarshal(paramsJSON, &inv.Parameters); err != nil {
				return nil, fmt.Errorf("decode invocation parameters: %w", err)
			}
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &inv.Data); err != nil {
				return nil, fmt.Errorf("decode invocation data: %w", err)
			}
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &inv.Metadata); err != nil {
				return nil, fmt.Errorf("decode invocation metadata: %w", err)
			}
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return out, nil
}

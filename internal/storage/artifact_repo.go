package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"ontextract/internal/models"
)

type ArtifactRepo struct {
	db *DB
}

func NewArtifactRepo(db *DB) *ArtifactRepo {
	return &ArtifactRepo{db: db}
}

// GetOrCreate inserts the group or, on a (document_id, artifact_type,
// method_key) collision, returns the existing row unchanged. The DO UPDATE
// touches nothing real; it exists so RETURNING yields the surviving row in
// both cases. The bool reports whether this call created the group.
func (r *ArtifactRepo) GetOrCreate(ctx context.Context, g models.ArtifactGroup) (models.ArtifactGroup, bool, error) {
	paramsJSON, _ := json.Marshal(g.Parameters)
	var out models.ArtifactGroup
	var created bool
	var outParams []byte
	err := r.db.Pool.QueryRow(ctx, `
INSERT INTO processing_artifact_groups
  (group_id, document_id, artifact_type, method_key, tool_name, created_by, run_id, parameters)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,'')::uuid, $8::jsonb)
ON CONFLICT (document_id, artifact_type, method_key)
DO UPDATE SET artifact_type = EXCLUDED.artifact_type
RETURNING group_id::text, document_id, artifact_type, method_key, tool_name, created_by,
          COALESCE(run_id::text,''), parameters, created_at, (xmax = 0)`,
		g.GroupID, g.DocumentID, g.ArtifactType, g.MethodKey, g.ToolName, g.CreatedBy, g.RunID, string(paramsJSON)).
		Scan(&out.GroupID, &out.DocumentID, &out.ArtifactType, &out.MethodKey, &out.ToolName, &out.CreatedBy,
			&out.RunID, &outParams, &out.CreatedAt, &created)
	if err != nil {
		return models.ArtifactGroup{}, false, fmt.Errorf("get or create artifact group: %w", err)
	}
	if len(outParams) > 0 {
		if err := json.Unmarshal(outParams, &out.Parameters); err != nil {
			return models.ArtifactGroup{}, false, fmt.Errorf("decode artifact parameters: %w", err)
		}
	}
	return out, created, nil
}

func (r *ArtifactRepo) ListByDocument(ctx context.Context, documentID int) ([]models.ArtifactGroup, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT group_id::text, document_id, artifact_type, method_key, tool_name, created_by,
       COALESCE(run_id::text,''), parameters, created_at
FROM processing_artifact_groups
WHERE document_id=$1
ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list artifact groups: %w", err)
	}
	defer rows.Close()

	out := make([]models.ArtifactGroup, 0)
	for rows.Next() {
		var g models.ArtifactGroup
		var paramsJSON []byte
		if err := rows.Scan(&g.GroupID, &g.DocumentID, &g.ArtifactType, &g.MethodKey, &g.ToolName, &g.CreatedBy,
			&g.RunID, &paramsJSON, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact group: %w", err)
		}
		if len(paramsJSON) > 0 {
			if err := json.Unmarshal(paramsJSON, &g.Parameters); err != nil {
				return nil, fmt.Errorf("decode artifact parameters: %w", err)
			}
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifact groups: %w", err)
	}
	return out, nil
}

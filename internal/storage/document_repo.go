package storage

import (
	"context"
	"fmt"

	"ontextract/internal/models"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Insert stores a document and returns its generated integer id. Content is
// expected to be sanitized before it reaches here.
func (r *DocumentRepo) Insert(ctx context.Context, d models.Document) (int, error) {
	var id int
	err := r.db.Pool.QueryRow(ctx, `
INSERT INTO documents (experiment_id, title, content, language, source, word_count)
VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6)
RETURNING id`,
		d.ExperimentID, d.Title, d.Content, d.Language, d.Source, d.WordCount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, id int) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT id, experiment_id::text, title, content, COALESCE(language,''), COALESCE(source,''), word_count, created_at
FROM documents
WHERE id=$1`, id).
		Scan(&d.ID, &d.ExperimentID, &d.Title, &d.Content, &d.Language, &d.Source, &d.WordCount, &d.CreatedAt)
	if err != nil {
		return models.Document{}, fmt.Errorf("get document %d: %w", id, err)
	}
	return d, nil
}

// ListByExperiment returns documents without content; the Analyze stage
// needs only titles and counts.
func (r *DocumentRepo) ListByExperiment(ctx context.Context, experimentID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, experiment_id::text, title, COALESCE(language,''), COALESCE(source,''), word_count, created_at
FROM documents
WHERE experiment_id=$1
ORDER BY id`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.ExperimentID, &d.Title, &d.Language, &d.Source, &d.WordCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

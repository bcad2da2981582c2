package tools

import (
	"context"
	"fmt"
	"strings"

	"ontextract/internal/models"
	"ontextract/internal/providers"
	"ontextract/internal/util"
)

type embeddingTool struct {
	dep EmbedDependency
}

func (t *embeddingTool) Descriptor() Descriptor {
	return Descriptor{
		Name:                 "generate_embeddings",
		Category:             "embedding",
		Description:          "embed paragraph segments with the configured embedding provider",
		RequiredDependencies: []string{"embedding provider"},
		Status:               StatusImplemented,
		ArtifactType:         "embedding",
		MethodKey:            "provider",
	}
}

func (t *embeddingTool) CheckDependencies(ctx context.Context) error {
	_ = ctx
	if t.dep.Provider == nil {
		return fmt.Errorf("%w: no embedding provider configured", util.ErrUnmetDependency)
	}
	if t.dep.Strict && strings.EqualFold(t.dep.Ref.Name, "mock") {
		return fmt.Errorf("%w: only the mock embedding provider is configured", util.ErrUnmetDependency)
	}
	return nil
}

func (t *embeddingTool) Run(ctx context.Context, doc models.Document, params map[string]any) (RawResult, error) {
	_ = params
	paragraphs := SplitParagraphs(doc.Content)
	if len(paragraphs) == 0 {
		paragraphs = []string{doc.Content}
	}
	vectors, info, err := t.dep.Provider.Embed(ctx, providers.EmbedRequest{
		Operation: "document_embedding",
		Inputs:    paragraphs,
		Dimension: t.dep.Dimension,
	})
	if err != nil {
		return RawResult{}, fmt.Errorf("embed document %d: %w", doc.ID, err)
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	// Vector payloads stay out of the result envelope; the counts and
	// provider identity are what downstream consumers need.
	return RawResult{
		Status: "success",
		Data:   map[string]any{"vector_count": len(vectors), "dimension": dim},
		Metadata: map[string]any{
			"method":   "provider",
			"provider": info.Name,
			"model":    info.Model,
		},
	}, nil
}

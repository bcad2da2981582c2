package tools

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"ontextract/internal/models"
)

type entityExtractor struct{}

func (t *entityExtractor) Descriptor() Descriptor {
	return Descriptor{
		Name:         "extract_entities",
		Category:     "entity_extraction",
		Description:  "extract capitalized name spans with occurrence counts",
		Status:       StatusImplemented,
		ArtifactType: "entities",
		MethodKey:    "rule_based",
	}
}

func (t *entityExtractor) CheckDependencies(ctx context.Context) error {
	_ = ctx
	return nil
}

// Runs of capitalized words, allowing connectives inside a span
// ("House of Commons").
var entitySpan = regexp.MustCompile(`\b[A-Z][a-z]+(?:(?:\s+(?:of|the|de|van|von))?\s+[A-Z][a-z]+)*\b`)

func (t *entityExtractor) Run(ctx context.Context, doc models.Document, params map[string]any) (RawResult, error) {
	_ = ctx
	maxEntities := intParam(params, "max_entities", 50)

	counts := map[string]int{}
	for _, sentence := range SplitParagraphs(doc.Content) {
		for _, span := range entitySpan.FindAllString(sentence, -1) {
			// Single capitalized words at sentence starts are mostly noise.
			if !strings.Contains(span, " ") && strings.HasPrefix(sentence, span) {
				continue
			}
			counts[span]++
		}
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > maxEntities {
		names = names[:maxEntities]
	}
	entities := make([]map[string]any, 0, len(names))
	for _, n := range names {
		entities = append(entities, map[string]any{"text": n, "count": counts[n]})
	}
	return RawResult{
		Status:   "success",
		Data:     map[string]any{"entities": entities, "entity_count": len(entities)},
		Metadata: map[string]any{"method": "rule_based", "max_entities": maxEntities},
	}, nil
}

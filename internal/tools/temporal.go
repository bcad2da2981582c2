package tools

import (
	"context"
	"regexp"

	"ontextract/internal/models"
)

type timeExpressionExtractor struct{}

func (t *timeExpressionExtractor) Descriptor() Descriptor {
	return Descriptor{
		Name:         "extract_time_expressions",
		Category:     "temporal_analysis",
		Description:  "extract years, decades and century references from document text",
		Status:       StatusImplemented,
		ArtifactType: "temporal",
		MethodKey:    "date_patterns",
	}
}

func (t *timeExpressionExtractor) CheckDependencies(ctx context.Context) error {
	_ = ctx
	return nil
}

var timePatterns = map[string]*regexp.Regexp{
	"year":    regexp.MustCompile(`\b1[0-9]{3}\b|\b20[0-9]{2}\b`),
	"decade":  regexp.MustCompile(`\b1[0-9]{2}0s\b|\b20[0-9]0s\b`),
	"century": regexp.MustCompile(`\b(?:[a-z]+teenth|twentieth|twenty-first)[ -]century\b`),
}

func (t *timeExpressionExtractor) Run(ctx context.Context, doc models.Document, params map[string]any) (RawResult, error) {
	_ = ctx
	_ = params
	found := make([]map[string]any, 0, 16)
	total := 0
	for kind, re := range timePatterns {
		counts := map[string]int{}
		for _, m := range re.FindAllString(doc.Content, -1) {
			counts[m]++
		}
		for expr, n := range counts {
			found = append(found, map[string]any{"expression": expr, "kind": kind, "count": n})
			total += n
		}
	}
	return RawResult{
		Status:   "success",
		Data:     map[string]any{"expressions": found, "total_mentions": total},
		Metadata: map[string]any{"method": "date_patterns"},
	}, nil
}

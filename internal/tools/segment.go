package tools

import (
	"context"
	"regexp"
	"strings"

	"ontextract/internal/models"
	"ontextract/internal/util"
)

type paragraphSegmenter struct{}

func (t *paragraphSegmenter) Descriptor() Descriptor {
	return Descriptor{
		Name:         "segment_paragraph",
		Category:     "segmentation",
		Description:  "split document text into paragraph segments on blank lines",
		Status:       StatusImplemented,
		ArtifactType: "segmentation",
		MethodKey:    "paragraph",
	}
}

func (t *paragraphSegmenter) CheckDependencies(ctx context.Context) error {
	_ = ctx
	return nil
}

func (t *paragraphSegmenter) Run(ctx context.Context, doc models.Document, params map[string]any) (RawResult, error) {
	_ = ctx
	minChars := intParam(params, "min_chars", 1)
	segments := SplitParagraphs(doc.Content)
	kept := make([]map[string]any, 0, len(segments))
	for i, s := range segments {
		if len(s) < minChars {
			continue
		}
		kept = append(kept, map[string]any{
			"index":      i,
			"text":       s,
			"word_count": util.WordCount(s),
		})
	}
	return RawResult{
		Status: "success",
		Data:   map[string]any{"segments": kept, "segment_count": len(kept)},
		Metadata: map[string]any{
			"method":    "paragraph",
			"min_chars": minChars,
		},
	}, nil
}

type sentenceSegmenter struct{}

func (t *sentenceSegmenter) Descriptor() Descriptor {
	return Descriptor{
		Name:         "segment_sentence",
		Category:     "segmentation",
		Description:  "split document text into sentence segments",
		Status:       StatusImplemented,
		ArtifactType: "segmentation",
		MethodKey:    "sentence",
	}
}

func (t *sentenceSegmenter) CheckDependencies(ctx context.Context) error {
	_ = ctx
	return nil
}

var sentenceBoundary = regexp.MustCompile(`[.!?]+[\s"')\]]+`)

func (t *sentenceSegmenter) Run(ctx context.Context, doc models.Document, params map[string]any) (RawResult, error) {
	_ = ctx
	_ = params
	sentences := make([]string, 0, 64)
	for _, p := range SplitParagraphs(doc.Content) {
		last := 0
		for _, loc := range sentenceBoundary.FindAllStringIndex(p, -1) {
			s := strings.TrimSpace(p[last:loc[1]])
			if s != "" {
				sentences = append(sentences, s)
			}
			last = loc[1]
		}
		if tail := strings.TrimSpace(p[last:]); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	items := make([]map[string]any, 0, len(sentences))
	for i, s := range sentences {
		items = append(items, map[string]any{"index": i, "text": s})
	}
	return RawResult{
		Status:   "success",
		Data:     map[string]any{"segments": items, "segment_count": len(items)},
		Metadata: map[string]any{"method": "sentence"},
	}, nil
}

// SplitParagraphs splits text on blank lines, trimming each paragraph.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intParam(params map[string]any, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return fallback
}

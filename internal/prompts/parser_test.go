package prompts

import (
	"errors"
	"testing"

	"ontextract/internal/models"
	"ontextract/internal/util"

	"github.com/stretchr/testify/require"
)

func TestParseRecommendationsValid(t *testing.T) {
	raw := "```json\n" + `{"recommendations":[
		{"document_id":"393","tool_name":"segment_paragraph","parameters":{"min_length":2},"confidence":0.85,"rationale":"long document"},
		{"document_id":"394","tool_name":"extract_entities","confidence":0.6,"rationale":"names expected"}
	]}` + "\n```"
	entries, err := ParseRecommendations(raw)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "393", entries[0].DocumentID)
	require.Equal(t, "segment_paragraph", entries[0].ToolName)
	// Confidence is the model's stated certainty, stored as-is.
	require.Equal(t, 0.85, entries[0].Confidence)
}

func TestParseRecommendationsRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":            "tool plan: run everything",
		"empty plan":          `{"recommendations":[]}`,
		"missing document":    `{"recommendations":[{"tool_name":"x","confidence":0.5,"rationale":"r"}]}`,
		"missing tool":        `{"recommendations":[{"document_id":"1","confidence":0.5,"rationale":"r"}]}`,
		"confidence too high": `{"recommendations":[{"document_id":"1","tool_name":"x","confidence":1.5,"rationale":"r"}]}`,
		"missing rationale":   `{"recommendations":[{"document_id":"1","tool_name":"x","confidence":0.5}]}`,
		"empty":               "",
	}
	for name, raw := range cases {
		_, err := ParseRecommendations(raw)
		require.Error(t, err, name)
		require.True(t, errors.Is(err, util.ErrLLMParse), name)
	}
}

func TestParseSynthesis(t *testing.T) {
	raw := `{"summary":"Term appears in 3 of 5 documents.","term_patterns":[{"term":"liberty","observations":"12 occurrences"}],"thematic_groups":[{"label":"political","document_ids":["1","2"]}]}`
	out, err := ParseSynthesis(raw)
	require.NoError(t, err)
	require.Equal(t, "Term appears in 3 of 5 documents.", out.Summary)
	require.Len(t, out.TermPatterns, 1)

	_, err = ParseSynthesis(`{"term_patterns":[]}`)
	require.True(t, errors.Is(err, util.ErrLLMParse))
}

func TestBuildRecommendationPromptContext(t *testing.T) {
	start, end := 1850, 1900
	prompt, ctx := BuildRecommendationPrompt(models.ExperimentAnalysis{
		DocumentCount: 1,
		PeriodStart:   &start,
		PeriodEnd:     &end,
		FocusTerms:    []string{"liberty"},
		Documents:     []models.DocumentSummary{{ID: 393, Title: "On Liberty", WordCount: 1200, Language: "en"}},
	}, []ToolOption{{Name: "segment_paragraph", Category: "segmentation", Description: "split into paragraphs"}})
	require.Contains(t, prompt, "segment_paragraph")
	require.Contains(t, prompt, "1850-1900")
	require.Len(t, ctx, 1)
	require.Contains(t, ctx[0], "document_id=393")
}

func TestSynthesisPromptForbidsInterpretation(t *testing.T) {
	prompt, _ := BuildSynthesisPrompt([]string{"liberty"}, nil)
	require.Contains(t, prompt, "Do NOT interpret")
	require.Contains(t, prompt, "belongs to the researcher")
}

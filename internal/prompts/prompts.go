package prompts

import (
	"fmt"
	"strings"

	"ontextract/internal/models"
)

// ToolOption is the slice of the registry catalog shown to the model when
// asking for a plan.
type ToolOption struct {
	Name        string
	Category    string
	Description string
}

const recommendationPromptTemplate = `You are a document-processing planner for a historical-language research tool.
Given an experiment's documents and focus terms, choose which processing tools to run on which documents.

Output STRICT JSON with this schema:
{
  "recommendations": [
    {
      "document_id": "string (id from the document list)",
      "tool_name": "string (name from the tool list)",
      "parameters": {},
      "confidence": 0.0,
      "rationale": "one sentence explaining the choice"
    }
  ]
}

Rules:
- Recommend at least one tool per document.
- confidence must be in [0,1] and reflect your own certainty; it is shown to a human reviewer unchanged.
- Only use tool names from the tool list.
- Keep rationale short and specific to the document.
- Return {"recommendations":[...]} and nothing else.`

// BuildRecommendationPrompt renders the Recommend stage contract. The
// document lines double as the machine-readable context handed to the
// provider.
func BuildRecommendationPrompt(analysis models.ExperimentAnalysis, toolCatalog []ToolOption) (string, []string) {
	b := strings.Builder{}
	b.WriteString(recommendationPromptTemplate)
	b.WriteString("\n\nExperiment:\n")
	fmt.Fprintf(&b, "- documents: %d\n", analysis.DocumentCount)
	if analysis.PeriodStart != nil && analysis.PeriodEnd != nil {
		fmt.Fprintf(&b, "- period: %d-%d\n", *analysis.PeriodStart, *analysis.PeriodEnd)
	}
	if len(analysis.FocusTerms) > 0 {
		fmt.Fprintf(&b, "- focus terms: %s\n", strings.Join(analysis.FocusTerms, ", "))
	}
	b.WriteString("\nAvailable tools:\n")
	for _, t := range toolCatalog {
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.Name, t.Category, t.Description)
	}
	b.WriteString("\nDocuments:\n")

	contextLines := make([]string, 0, len(analysis.Documents))
	for _, d := range analysis.Documents {
		line := fmt.Sprintf("document_id=%d title=%q words=%d", d.ID, d.Title, d.WordCount)
		if d.Language != "" {
			line += " language=" + d.Language
		}
		contextLines = append(contextLines, line)
	}
	return b.String(), contextLines
}

const synthesisPromptTemplate = `You are organizing the outputs of document-processing tools for a researcher.
Summarize cross-document patterns: term frequency patterns and thematic groupings.

Output STRICT JSON with this schema:
{
  "summary": "string",
  "term_patterns": [{"term": "string", "observations": "string"}],
  "thematic_groups": [{"label": "string", "document_ids": ["string"]}]
}

Rules:
- Organize and surface facts only. Do NOT interpret findings, assign meaning,
  or evaluate significance; that judgment belongs to the researcher.
- Do not use evaluative language (important, striking, suggests, implies, means).
- Every observation must trace to the provided tool results.
- Return the JSON object and nothing else.`

// BuildSynthesisPrompt renders the Synthesize stage contract over the
// Execute stage's result envelopes.
func BuildSynthesisPrompt(focusTerms []string, resultLines []string) (string, []string) {
	b := strings.Builder{}
	b.WriteString(synthesisPromptTemplate)
	if len(focusTerms) > 0 {
		b.WriteString("\n\nFocus terms: " + strings.Join(focusTerms, ", "))
	}
	b.WriteString("\n\nTool results follow as context lines.")
	return b.String(), resultLines
}

package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"ontextract/internal/models"
	"ontextract/internal/util"
)

// SynthesisResult is the validated Synthesize stage output. The summary is
// organizational, never interpretive; see the prompt contract.
type SynthesisResult struct {
	Summary        string          `json:"summary"`
	TermPatterns   []TermPattern   `json:"term_patterns"`
	ThematicGroups []ThematicGroup `json:"thematic_groups"`
}

type TermPattern struct {
	Term         string `json:"term"`
	Observations string `json:"observations"`
}

type ThematicGroup struct {
	Label       string   `json:"label"`
	DocumentIDs []string `json:"document_ids"`
}

// ParseRecommendations validates the Recommend response against the plan
// schema. Any violation is an ErrLLMParse: a malformed response must fail
// the run, never degrade into an empty plan.
func ParseRecommendations(raw string) ([]models.RecommendationEntry, error) {
	raw = stripCodeFence(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", util.ErrLLMParse)
	}
	var payload struct {
		Recommendations []models.RecommendationEntry `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrLLMParse, err)
	}
	if len(payload.Recommendations) == 0 {
		return nil, fmt.Errorf("%w: response contained no recommendations", util.ErrLLMParse)
	}
	for i, r := range payload.Recommendations {
		if strings.TrimSpace(r.DocumentID) == "" {
			return nil, fmt.Errorf("%w: entry %d missing document_id", util.ErrLLMParse, i)
		}
		if strings.TrimSpace(r.ToolName) == "" {
			return nil, fmt.Errorf("%w: entry %d missing tool_name", util.ErrLLMParse, i)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return nil, fmt.Errorf("%w: entry %d confidence %v outside [0,1]", util.ErrLLMParse, i, r.Confidence)
		}
		if strings.TrimSpace(r.Rationale) == "" {
			return nil, fmt.Errorf("%w: entry %d missing rationale", util.ErrLLMParse, i)
		}
	}
	return payload.Recommendations, nil
}

// ParseSynthesis validates the Synthesize response.
func ParseSynthesis(raw string) (SynthesisResult, error) {
	raw = stripCodeFence(raw)
	if raw == "" {
		return SynthesisResult{}, fmt.Errorf("%w: empty response", util.ErrLLMParse)
	}
	var out SynthesisResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return SynthesisResult{}, fmt.Errorf("%w: %v", util.ErrLLMParse, err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return SynthesisResult{}, fmt.Errorf("%w: synthesis missing summary", util.ErrLLMParse)
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

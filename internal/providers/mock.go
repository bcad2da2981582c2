package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
)

// MockProvider returns deterministic output so pipelines run end to end
// without external services. Its Generate responses conform to the strict
// JSON schemas the orchestration prompts expect.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 768
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	op := strings.ToLower(req.Operation)
	switch {
	case strings.Contains(op, "recommend"):
		return GenerateResponse{Text: mockRecommendation(req.Context)}, info, nil
	case strings.Contains(op, "synthesize"):
		return GenerateResponse{Text: mockSynthesis(req.Context)}, info, nil
	}
	return GenerateResponse{Text: "Mock response."}, info, nil
}

// mockRecommendation proposes segmentation plus entity extraction for each
// document id it finds in the context lines.
func mockRecommendation(contextLines []string) string {
	type entry struct {
		DocumentID string         `json:"document_id"`
		ToolName   string         `json:"tool_name"`
		Parameters map[string]any `json:"parameters"`
		Confidence float64        `json:"confidence"`
		Rationale  string         `json:"rationale"`
	}
	entries := make([]entry, 0, len(contextLines)*2)
	for _, line := range contextLines {
		id, ok := documentIDFromContext(line)
		if !ok {
			continue
		}
		entries = append(entries,
			entry{
				DocumentID: id,
				ToolName:   "segment_paragraph",
				Parameters: map[string]any{},
				Confidence: 0.9,
				Rationale:  "Paragraph segmentation establishes processing units for downstream analysis.",
			},
			entry{
				DocumentID: id,
				ToolName:   "extract_entities",
				Parameters: map[string]any{},
				Confidence: 0.8,
				Rationale:  "Named spans anchor the focus terms within each period.",
			},
		)
	}
	out, _ := json.Marshal(map[string]any{"recommendations": entries})
	return string(out)
}

func mockSynthesis(contextLines []string) string {
	out, _ := json.Marshal(map[string]any{
		"summary": fmt.Sprintf("Processing produced results across %d tool invocations. Outputs are grouped below without interpretation.", len(contextLines)),
		"term_patterns": []map[string]any{
			{"term": "mock", "observations": "Deterministic mock output; counts reflect tool results only."},
		},
		"thematic_groups": []map[string]any{
			{"label": "all_documents", "document_ids": []string{}},
		},
	})
	return string(out)
}

func documentIDFromContext(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "document_id=") {
		return "", false
	}
	rest := strings.TrimPrefix(line, "document_id=")
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return vec
}

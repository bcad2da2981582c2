package tools

import (
	"context"
	"fmt"

	"ontextract/internal/models"
	"ontextract/internal/providers"
	"ontextract/internal/util"
)

type ImplementationStatus string

const (
	StatusImplemented  ImplementationStatus = "implemented"
	StatusExperimental ImplementationStatus = "experimental"
)

// Descriptor is the capability metadata for one registered tool, including
// the fixed mapping from tool name to provenance key.
type Descriptor struct {
	Name                 string               `json:"name"`
	Category             string               `json:"category"`
	Description          string               `json:"description"`
	RequiredDependencies []string             `json:"required_dependencies,omitempty"`
	Status               ImplementationStatus `json:"implementation_status"`
	ArtifactType         string               `json:"artifact_type"`
	MethodKey            string               `json:"method_key"`
}

// RawResult is the untyped tool output before the executor normalizes it
// into the standard envelope. Observed status values are "success",
// "executed", and "error".
type RawResult struct {
	Status   string         `json:"status"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

type Tool interface {
	Descriptor() Descriptor
	// CheckDependencies fails with util.ErrUnmetDependency when a declared
	// dependency (model, provider) is unavailable.
	CheckDependencies(ctx context.Context) error
	Run(ctx context.Context, doc models.Document, params map[string]any) (RawResult, error)
}

// Registry is the read-only catalog of available tools. The set is closed
// at construction; a name miss is util.ErrUnknownTool.
type Registry struct {
	order []string
	tools map[string]Tool
}

// EmbedDependency carries what the embedding tool needs from the provider
// manager.
type EmbedDependency struct {
	Provider  providers.EmbeddingProvider
	Ref       providers.ProviderRef
	Dimension int
	// Strict treats the deterministic mock as an unmet dependency.
	Strict bool
}

func NewRegistry(embed EmbedDependency) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range []Tool{
		&paragraphSegmenter{},
		&sentenceSegmenter{},
		&entityExtractor{},
		&timeExpressionExtractor{},
		&termFrequencyTool{},
		&embeddingTool{dep: embed},
	} {
		name := t.Descriptor().Name
		r.order = append(r.order, name)
		r.tools[name] = t
	}
	return r
}

// Lookup resolves a tool by name; a recommendation naming an unregistered
// tool must surface, never be silently skipped.
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", util.ErrUnknownTool, name)
	}
	return t, nil
}

// ListTools returns descriptors in registration order, optionally filtered
// by category.
func (r *Registry) ListTools(category string) []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name].Descriptor()
		if category != "" && d.Category != category {
			continue
		}
		out = append(out, d)
	}
	return out
}

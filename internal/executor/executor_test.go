package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ontextract/internal/models"
	"ontextract/internal/providers"
	"ontextract/internal/tools"
	"ontextract/internal/util"

	"github.com/stretchr/testify/require"
)

type fakeDocStore struct {
	docs map[int]models.Document
}

func (f *fakeDocStore) GetDocument(_ context.Context, id int) (models.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return models.Document{}, fmt.Errorf("no rows")
	}
	return d, nil
}

type fakeArtifactStore struct {
	groups map[string]models.ArtifactGroup
}

func artifactKey(g models.ArtifactGroup) string {
	return fmt.Sprintf("%d/%s/%s", g.DocumentID, g.ArtifactType, g.MethodKey)
}

func (f *fakeArtifactStore) GetOrCreate(_ context.Context, g models.ArtifactGroup) (models.ArtifactGroup, bool, error) {
	if f.groups == nil {
		f.groups = map[string]models.ArtifactGroup{}
	}
	key := artifactKey(g)
	if existing, ok := f.groups[key]; ok {
		return existing, false, nil
	}
	f.groups[key] = g
	return g, true, nil
}

type fakeInvocationStore struct {
	inserted []models.ToolInvocation
	failWith error
	// knownDocuments, when set, rejects inserts referencing other document
	// ids the way the tool_invocations foreign key does. A zero id stores
	// as null and always passes.
	knownDocuments map[int]bool
}

func (f *fakeInvocationStore) Insert(_ context.Context, inv models.ToolInvocation) error {
	if f.failWith != nil {
		return f.failWith
	}
	if f.knownDocuments != nil && inv.DocumentID != 0 && !f.knownDocuments[inv.DocumentID] {
		return fmt.Errorf("insert tool_invocations: violates foreign key constraint on document_id %d", inv.DocumentID)
	}
	f.inserted = append(f.inserted, inv)
	return nil
}

func newTestExecutor(t *testing.T) (*Executor, *fakeArtifactStore, *fakeInvocationStore) {
	t.Helper()
	registry := tools.NewRegistry(tools.EmbedDependency{
		Provider:  providers.NewMockProvider(16),
		Ref:       providers.ProviderRef{Raw: "mock", Name: "mock"},
		Dimension: 16,
	})
	docs := &fakeDocStore{docs: map[int]models.Document{
		393: {
			ID:      393,
			Title:   "On Liberty",
			Content: "Liberty of thought is essential.\n\nLiberty of the press follows from it.",
		},
	}}
	artifacts := &fakeArtifactStore{}
	invocations := &fakeInvocationStore{}
	return New(registry, docs, artifacts, invocations, nil), artifacts, invocations
}

func TestExecuteNormalizesStatusAndRecordsProvenance(t *testing.T) {
	exec, artifacts, invocations := newTestExecutor(t)

	inv, err := exec.Execute(context.Background(), Request{
		RunID:      "run-1",
		DocumentID: "393",
		ToolName:   "segment_paragraph",
		CreatedBy:  models.CreatedByOrchestration,
	})
	require.NoError(t, err)
	require.Equal(t, models.InvocationExecuted, inv.Status)
	require.Equal(t, 393, inv.DocumentID)
	require.NotEmpty(t, inv.ArtifactGroupID)

	require.Len(t, artifacts.groups, 1)
	for _, g := range artifacts.groups {
		require.Equal(t, models.CreatedByOrchestration, g.CreatedBy)
		require.Equal(t, "run-1", g.RunID)
	}
	require.Len(t, invocations.inserted, 1)
}

func TestExecuteReusesArtifactGroupOnRerun(t *testing.T) {
	exec, artifacts, _ := newTestExecutor(t)

	first, err := exec.Execute(context.Background(), Request{
		RunID: "run-1", DocumentID: "393", ToolName: "segment_paragraph",
		CreatedBy: models.CreatedByOrchestration,
	})
	require.NoError(t, err)

	second, err := exec.Execute(context.Background(), Request{
		RunID: "run-2", DocumentID: "393", ToolName: "segment_paragraph",
		CreatedBy: models.CreatedByOrchestration,
	})
	require.NoError(t, err)

	require.Equal(t, first.ArtifactGroupID, second.ArtifactGroupID)
	require.Len(t, artifacts.groups, 1)
}

func TestExecuteCoercesStringDocumentID(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	inv, err := exec.Execute(context.Background(), Request{
		DocumentID: " 393 ",
		ToolName:   "extract_entities",
		CreatedBy:  models.CreatedByManual,
	})
	require.NoError(t, err)
	require.Equal(t, 393, inv.DocumentID)
	require.Equal(t, models.InvocationExecuted, inv.Status)
}

func TestExecuteNonNumericDocumentIDIsTypeMismatch(t *testing.T) {
	exec, _, invocations := newTestExecutor(t)

	inv, err := exec.Execute(context.Background(), Request{
		DocumentID: "doc-393",
		ToolName:   "extract_entities",
		CreatedBy:  models.CreatedByManual,
	})
	require.NoError(t, err)
	require.Equal(t, models.InvocationError, inv.Status)
	require.Equal(t, util.ErrTypeTypeMismatch, inv.ErrorType)
	require.Len(t, invocations.inserted, 1)
}

func TestExecuteMissingDocumentIsTypeMismatch(t *testing.T) {
	exec, _, invocations := newTestExecutor(t)
	invocations.knownDocuments = map[int]bool{393: true}

	inv, err := exec.Execute(context.Background(), Request{
		DocumentID: "9999",
		ToolName:   "extract_entities",
		CreatedBy:  models.CreatedByManual,
	})
	require.NoError(t, err)
	require.Equal(t, models.InvocationError, inv.Status)
	require.Equal(t, util.ErrTypeTypeMismatch, inv.ErrorType)
	require.Zero(t, inv.DocumentID)
	require.Contains(t, inv.ErrorDetail, "9999")
	require.Len(t, invocations.inserted, 1)
}

func TestExecuteUnknownToolIsIsolated(t *testing.T) {
	exec, artifacts, invocations := newTestExecutor(t)

	inv, err := exec.Execute(context.Background(), Request{
		RunID:      "run-1",
		DocumentID: "393",
		ToolName:   "summarize_document",
		CreatedBy:  models.CreatedByOrchestration,
	})
	require.NoError(t, err)
	require.Equal(t, models.InvocationError, inv.Status)
	require.Equal(t, util.ErrTypeUnknownTool, inv.ErrorType)
	require.Empty(t, inv.ArtifactGroupID)
	require.Empty(t, artifacts.groups)
	require.Len(t, invocations.inserted, 1)
}

func TestExecuteUnmetDependencyIsIsolated(t *testing.T) {
	registry := tools.NewRegistry(tools.EmbedDependency{
		Provider:  providers.NewMockProvider(16),
		Ref:       providers.ProviderRef{Raw: "mock", Name: "mock"},
		Dimension: 16,
		Strict:    true,
	})
	docs := &fakeDocStore{docs: map[int]models.Document{
		393: {ID: 393, Title: "On Liberty", Content: "Liberty of thought."},
	}}
	invocations := &fakeInvocationStore{}
	exec := New(registry, docs, &fakeArtifactStore{}, invocations, nil)

	inv, err := exec.Execute(context.Background(), Request{
		DocumentID: "393",
		ToolName:   "generate_embeddings",
		CreatedBy:  models.CreatedByManual,
	})
	require.NoError(t, err)
	require.Equal(t, models.InvocationError, inv.Status)
	require.Equal(t, util.ErrTypeUnmetDependency, inv.ErrorType)
}

func TestExecuteManualTagPropagates(t *testing.T) {
	exec, artifacts, _ := newTestExecutor(t)

	_, err := exec.Execute(context.Background(), Request{
		DocumentID: "393",
		ToolName:   "extract_time_expressions",
		CreatedBy:  models.CreatedByManual,
	})
	require.NoError(t, err)
	require.Len(t, artifacts.groups, 1)
	for _, g := range artifacts.groups {
		require.Equal(t, models.CreatedByManual, g.CreatedBy)
	}
}

func TestExecuteStoreFailureIsFatal(t *testing.T) {
	exec, _, invocations := newTestExecutor(t)
	invocations.failWith = errors.New("connection reset")

	_, err := exec.Execute(context.Background(), Request{
		DocumentID: "393",
		ToolName:   "segment_paragraph",
		CreatedBy:  models.CreatedByOrchestration,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "record invocation")
}

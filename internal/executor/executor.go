// Package executor runs registered tools against documents and writes the
// provenance trail. It is the only place ProcessingArtifactGroup records
// are created during orchestration.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ontextract/internal/models"
	"ontextract/internal/tools"
	"ontextract/internal/util"

	"github.com/google/uuid"
)

// Stores are narrow interfaces so the executor is testable without a
// database; the pgx repositories satisfy them.
type DocumentStore interface {
	GetDocument(ctx context.Context, id int) (models.Document, error)
}

type ArtifactStore interface {
	// GetOrCreate converges concurrent writers of the same
	// (document_id, artifact_type, method_key) onto one record. The bool
	// reports whether a new record was created.
	GetOrCreate(ctx context.Context, g models.ArtifactGroup) (models.ArtifactGroup, bool, error)
}

type InvocationStore interface {
	Insert(ctx context.Context, inv models.ToolInvocation) error
}

type Executor struct {
	registry    *tools.Registry
	documents   DocumentStore
	artifacts   ArtifactStore
	invocations InvocationStore
	logger      *slog.Logger
}

func New(registry *tools.Registry, documents DocumentStore, artifacts ArtifactStore, invocations InvocationStore, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry:    registry,
		documents:   documents,
		artifacts:   artifacts,
		invocations: invocations,
		logger:      logger,
	}
}

// Request is one plan entry resolved for execution. DocumentID arrives as
// the plan's string form and is coerced to the documents table's integer
// key before anything is persisted.
type Request struct {
	RunID      string
	DocumentID string
	ToolName   string
	Parameters map[string]any
	CreatedBy  string
}

// Execute runs one tool against one document and records the invocation.
// Tool-level failures are isolated: they come back as an error-status
// invocation with a nil error so the caller proceeds to the next plan
// entry. A non-nil error means the invocation could not be recorded and
// the stage itself must fail.
func (e *Executor) Execute(ctx context.Context, req Request) (models.ToolInvocation, error) {
	inv := models.ToolInvocation{
		InvocationID: uuid.NewString(),
		RunID:        req.RunID,
		ToolName:     req.ToolName,
		Parameters:   req.Parameters,
		CreatedAt:    time.Now().UTC(),
	}

	docID, err := strconv.Atoi(strings.TrimSpace(req.DocumentID))
	if err != nil {
		return e.recordFailure(ctx, inv, fmt.Errorf("%w: document id %q", util.ErrTypeMismatch, req.DocumentID))
	}
	inv.DocumentID = docID

	doc, err := e.documents.GetDocument(ctx, docID)
	if err != nil {
		// The id never resolved to a row, so the stored invocation must not
		// reference it or the foreign key rejects the failure record.
		inv.DocumentID = 0
		return e.recordFailure(ctx, inv, fmt.Errorf("%w: no document with id %d", util.ErrTypeMismatch, docID))
	}

	tool, err := e.registry.Lookup(req.ToolName)
	if err != nil {
		return e.recordFailure(ctx, inv, err)
	}
	if err := tool.CheckDependencies(ctx); err != nil {
		return e.recordFailure(ctx, inv, err)
	}

	raw, err := tool.Run(ctx, doc, req.Parameters)
	if err != nil {
		return e.recordFailure(ctx, inv, err)
	}

	inv.Status = normalizeStatus(raw.Status)
	inv.Data = raw.Data
	inv.Metadata = raw.Metadata

	if inv.Status == models.InvocationExecuted {
		d := tool.Descriptor()
		group, created, err := e.artifacts.GetOrCreate(ctx, models.ArtifactGroup{
			GroupID:      uuid.NewString(),
			DocumentID:   docID,
			ArtifactType: d.ArtifactType,
			MethodKey:    d.MethodKey,
			ToolName:     d.Name,
			CreatedBy:    req.CreatedBy,
			RunID:        req.RunID,
			Parameters:   req.Parameters,
			CreatedAt:    inv.CreatedAt,
		})
		if err != nil {
			return inv, fmt.Errorf("record provenance for document %d: %w", docID, err)
		}
		inv.ArtifactGroupID = group.GroupID
		e.logger.Debug("provenance recorded",
			"document_id", docID,
			"artifact_type", d.ArtifactType,
			"method_key", d.MethodKey,
			"created", created,
		)
	}

	if err := e.invocations.Insert(ctx, inv); err != nil {
		return inv, fmt.Errorf("record invocation: %w", err)
	}
	return inv, nil
}

func (e *Executor) recordFailure(ctx context.Context, inv models.ToolInvocation, cause error) (models.ToolInvocation, error) {
	inv.Status = models.InvocationError
	inv.ErrorType = util.InvocationErrorType(cause)
	inv.ErrorDetail = cause.Error()
	e.logger.Warn("tool invocation failed",
		"run_id", inv.RunID,
		"tool", inv.ToolName,
		"document_id", inv.DocumentID,
		"error_type", inv.ErrorType,
		"detail", inv.ErrorDetail,
	)
	if err := e.invocations.Insert(ctx, inv); err != nil {
		return inv, fmt.Errorf("record failed invocation: %w", err)
	}
	return inv, nil
}

// normalizeStatus rewrites tool-level success synonyms to "executed";
// downstream consumers key off "executed" only.
func normalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "succeeded", "ok", "completed", models.InvocationExecuted:
		return models.InvocationExecuted
	case models.InvocationError:
		return models.InvocationError
	default:
		return models.InvocationPartial
	}
}

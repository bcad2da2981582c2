// Package api is the HTTP surface: experiment and document management,
// the tool catalog, and run control (start, review, inspect).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ontextract/internal/config"
	"ontextract/internal/executor"
	"ontextract/internal/models"
	"ontextract/internal/providers"
	"ontextract/internal/storage"
	"ontextract/internal/tools"
	"ontextract/internal/util"
	"ontextract/internal/workflows"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg            config.Config
	db             *storage.DB
	experimentRepo *storage.ExperimentRepo
	documentRepo   *storage.DocumentRepo
	runRepo        *storage.RunRepo
	invocationRepo *storage.InvocationRepo
	registry       *tools.Registry
	executor       *executor.Executor
	temporal       tclient.Client
	logger         *slog.Logger
}

func NewServer(cfg config.Config, logger *slog.Logger) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	embedProvider, embedRef := pm.FirstEmbedProvider()
	registry := tools.NewRegistry(tools.EmbedDependency{
		Provider:  embedProvider,
		Ref:       embedRef,
		Dimension: cfg.EmbedDim,
		Strict:    cfg.StrictEmbedDependency,
	})
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return nil, err
	}
	documentRepo := storage.NewDocumentRepo(db)
	invocationRepo := storage.NewInvocationRepo(db)
	return &Server{
		cfg:            cfg,
		db:             db,
		experimentRepo: storage.NewExperimentRepo(db),
		documentRepo:   documentRepo,
		runRepo:        storage.NewRunRepo(db),
		invocationRepo: invocationRepo,
		registry:       registry,
		executor:       executor.New(registry, documentRepo, storage.NewArtifactRepo(db), invocationRepo, logger),
		temporal:       tc,
		logger:         logger,
	}, nil
}

func (s *Server) Close() {
	if s.temporal != nil {
		s.temporal.Close()
	}
	s.db.Close()
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/tools", s.handleTools)
	mux.HandleFunc("/experiments", s.handleExperiments)
	mux.HandleFunc("/experiments/", s.handleExperimentScoped)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunScoped)
	mux.HandleFunc("/documents/", s.handleDocumentScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.registry.ListTools(category)})
}

func (s *Server) handleExperiments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		experiments, err := s.experimentRepo.List(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"experiments": experiments})
	case http.MethodPost:
		var req struct {
			Name        string   `json:"name"`
			FocusTerms  []string `json:"focus_terms"`
			PeriodStart *int     `json:"period_start"`
			PeriodEnd   *int     `json:"period_end"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}
		experimentID := uuid.NewString()
		if err := s.experimentRepo.Create(r.Context(), models.Experiment{
			ExperimentID: experimentID,
			Name:         req.Name,
			FocusTerms:   req.FocusTerms,
			PeriodStart:  req.PeriodStart,
			PeriodEnd:    req.PeriodEnd,
		}); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"experiment_id": experimentID, "name": req.Name})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleExperimentScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/experiments/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	experimentID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		exp, err := s.experimentRepo.Get(r.Context(), experimentID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, exp)
		return
	}

	if len(parts) == 2 && parts[1] == "documents" {
		switch r.Method {
		case http.MethodGet:
			docs, err := s.documentRepo.ListByExperiment(r.Context(), experimentID)
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
		case http.MethodPost:
			s.handleDocumentUpload(w, r, experimentID)
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

// handleDocumentUpload accepts either a JSON body with inline text or a
// multipart PDF. PDF text is extracted server-side so documents are always
// stored as sanitized plain text.
func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request, experimentID string) {
	contentType := r.Header.Get("Content-Type")

	var doc models.Document
	doc.ExperimentID = experimentID

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
			return
		}
		fhs := r.MultipartForm.File["file"]
		if len(fhs) == 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
			return
		}
		fh := fhs[0]
		text, err := extractPDFText(fh)
		if err != nil {
			if errors.Is(err, util.ErrNoExtractableText) {
				writeErr(w, http.StatusBadRequest, err)
				return
			}
			writeErr(w, http.StatusBadRequest, fmt.Errorf("extract pdf: %w", err))
			return
		}
		doc.Title = strings.TrimSpace(r.FormValue("title"))
		if doc.Title == "" {
			doc.Title = fh.Filename
		}
		doc.Language = strings.TrimSpace(r.FormValue("language"))
		doc.Source = strings.TrimSpace(r.FormValue("source"))
		doc.Content = text
	} else {
		var req struct {
			Title    string `json:"title"`
			Content  string `json:"content"`
			Language string `json:"language"`
			Source   string `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" || strings.TrimSpace(req.Content) == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("title and content are required"))
			return
		}
		doc.Title = req.Title
		doc.Content = util.SanitizeText(req.Content)
		doc.Language = req.Language
		doc.Source = req.Source
	}

	doc.WordCount = util.WordCount(doc.Content)
	id, err := s.documentRepo.Insert(r.Context(), doc)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document_id": id, "word_count": doc.WordCount})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		RunID         string `json:"run_id"`
		ExperimentID  string `json:"experiment_id"`
		ReviewChoices bool   `json:"review_choices"`
		CreatedBy     string `json:"created_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.ExperimentID) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("experiment_id is required"))
		return
	}
	if _, err := s.experimentRepo.Get(r.Context(), req.ExperimentID); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	if err := s.runRepo.CreateRun(r.Context(), models.OrchestrationRun{
		RunID:         runID,
		ExperimentID:  req.ExperimentID,
		CreatedBy:     req.CreatedBy,
		Stage:         models.StageAnalyzing,
		ReviewChoices: req.ReviewChoices,
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "run-" + runID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.OrchestrationWorkflow, workflows.OrchestrationRunInput{
		RunID:          runID,
		ExperimentID:   req.ExperimentID,
		ReviewChoices:  req.ReviewChoices,
		CreatedBy:      req.CreatedBy,
		LLMMaxAttempts: s.cfg.LLMMaxAttempts,
	})
	if err != nil {
		if workflowAlreadyStarted(err) {
			writeErr(w, http.StatusConflict, fmt.Errorf("%w: %s", util.ErrDuplicateRun, runID))
			return
		}
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("start workflow for run %s: %w", runID, err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":      runID,
		"workflow_id": we.GetID(),
	})
}

// workflowAlreadyStarted reports whether a workflow start failed because an
// execution with the same id is still running. Only that case is a
// duplicate run; anything else is a server-side start failure.
func workflowAlreadyStarted(err error) bool {
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	return errors.As(err, &already)
}

func (s *Server) handleRunScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	runID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleRunStatus(w, r, runID)
		return
	}

	switch parts[1] {
	case "review":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var decision workflows.ReviewDecision
		if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		run, err := s.runRepo.GetRun(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		if run.Stage != models.StageAwaitingApproval {
			writeErr(w, http.StatusConflict, fmt.Errorf("run %s is not awaiting approval", runID))
			return
		}
		if err := s.temporal.SignalWorkflow(r.Context(), "run-"+runID, "", workflows.SignalSubmitReview, decision); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "approved": decision.Approved})
	case "invocations":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		invocations, err := s.invocationRepo.ListByRun(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invocations": invocations})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request, runID string) {
	var progress workflows.RunProgress
	resp, err := s.temporal.QueryWorkflow(r.Context(), "run-"+runID, "", workflows.QueryGetRunStatus)
	if err == nil {
		if err := resp.Get(&progress); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, progress)
		return
	}

	// Terminal runs have no queryable workflow; fall back to the run row.
	run, dbErr := s.runRepo.GetRun(r.Context(), runID)
	if dbErr != nil {
		writeErr(w, http.StatusNotFound, dbErr)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDocumentScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) != 2 || parts[1] != "process" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if _, err := strconv.Atoi(parts[0]); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("document id must be an integer"))
		return
	}

	var req struct {
		ToolName   string         `json:"tool_name"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.ToolName) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("tool_name is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.ToolTimeoutSecs)*time.Second)
	defer cancel()
	inv, err := s.executor.Execute(ctx, executor.Request{
		DocumentID: parts[0],
		ToolName:   req.ToolName,
		Parameters: req.Parameters,
		CreatedBy:  models.CreatedByManual,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	status := http.StatusOK
	if inv.Status == models.InvocationError {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, inv)
}

func extractPDFText(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(strings.TrimSpace(buf.String()))
	if text == "" {
		return "", util.ErrNoExtractableText
	}
	return text, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "OE-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "OE-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "OE-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "OE-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "OE-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "OE-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "OE-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
		if err != nil && errors.Is(err, util.ErrDuplicateRun) {
			code = "OE-RUN-4009"
			msg = "A run with this id is already in progress."
		}
	case status == http.StatusMethodNotAllowed:
		code = "OE-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusUnprocessableEntity:
		code = "OE-API-4022"
		msg = "Tool invocation failed; see the invocation record for details."
	}

	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "name is required"):
			msg = "Experiment name is required."
		case strings.Contains(low, "title and content are required"):
			msg = "Both document title and content are required."
		case strings.Contains(low, "experiment_id is required"):
			msg = "Experiment id is required."
		case strings.Contains(low, "tool_name is required"):
			msg = "Tool name is required."
		case strings.Contains(low, "no extractable text"):
			msg = "No extractable text found in PDF."
		case strings.Contains(low, "no files provided"):
			msg = "No PDF files were provided."
		case strings.Contains(low, "not awaiting approval"):
			msg = "Run is not awaiting approval."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

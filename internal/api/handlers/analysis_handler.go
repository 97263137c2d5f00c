package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/analysis"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/models"
)

type AnalysisHandler struct {
	db           core.DbClient
	orchestrator *analysis.Orchestrator
	logger       *zap.SugaredLogger
}

func NewAnalysisHandler(db core.DbClient, o *analysis.Orchestrator, logger *zap.SugaredLogger) *AnalysisHandler {
	return &AnalysisHandler{db: db, orchestrator: o, logger: logger}
}

type analyzeRequest struct {
	DocumentID       string `json:"document_id"`
	Prompt           string `json:"prompt"`
	PromptTemplateID string `json:"prompt_template_id,omitempty"`
}

type analyzeResponse struct {
	AnalysisID      string `json:"analysis_id"`
	Response        string `json:"response"`
	ExecutionTimeMS int    `json:"execution_time_ms"`
	TokensUsed      int    `json:"tokens_used"`
}

// Analyze runs a prompt against a ready document. The audit row is
// created before the model call and resolved exactly once afterwards,
// with either the response or the error message.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	docID, ok := parseID(req.DocumentID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document ID format")
		return
	}

	doc, err := h.db.GetDocumentByID(r.Context(), docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if doc.Status != models.StatusReady {
		writeError(w, http.StatusBadRequest,
			"document is not ready for analysis. Current status: "+doc.Status)
		return
	}
	if doc.ExtractedText == "" {
		writeError(w, http.StatusBadRequest, "document has no extracted text")
		return
	}

	var templateID string
	if req.PromptTemplateID != "" {
		templateID, ok = parseID(req.PromptTemplateID)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid template ID format")
			return
		}
		tpl, err := h.db.GetTemplateByID(r.Context(), templateID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tpl == nil {
			writeError(w, http.StatusNotFound, "prompt template not found")
			return
		}
		if err := h.db.IncrementTemplateUsage(r.Context(), templateID); err != nil {
			h.logger.Warnw("usage count update failed", "template_id", templateID, "error", err)
		}
	}

	record := &models.AIAnalysis{
		ID:               uuid.NewString(),
		DocumentID:       docID,
		PromptTemplateID: templateID,
		FinalPrompt:      req.Prompt,
		CreatedAt:        time.Now(),
	}
	if err := h.db.CreateAnalysis(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := h.orchestrator.Analyze(r.Context(), req.Prompt, doc.ExtractedText)
	if err != nil {
		msg := err.Error()
		if uerr := h.db.UpdateAnalysis(r.Context(), record.ID, models.AnalysisUpdate{ErrorMessage: &msg}); uerr != nil {
			h.logger.Errorw("analysis error update failed", "analysis_id", record.ID, "error", uerr)
		}
		h.logger.Errorw("analysis failed", "document_id", docID, "error", err)
		writeError(w, analysisStatusCode(err), analysisDetail(err))
		return
	}

	upd := models.AnalysisUpdate{
		Response: &result.Response,
		Metadata: &models.AnalysisMetadata{
			Model:           result.Model,
			TokensUsed:      result.TokensUsed,
			ChunksProcessed: result.ChunksProcessed,
		},
		ExecutionTimeMS: &result.ExecutionTimeMS,
	}
	if err := h.db.UpdateAnalysis(r.Context(), record.ID, upd); err != nil {
		h.logger.Errorw("analysis result update failed", "analysis_id", record.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		AnalysisID:      record.ID,
		Response:        result.Response,
		ExecutionTimeMS: result.ExecutionTimeMS,
		TokensUsed:      result.TokensUsed,
	})
}

func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	var docID string
	if v := r.URL.Query().Get("document_id"); v != "" {
		var ok bool
		if docID, ok = parseID(v); !ok {
			writeError(w, http.StatusBadRequest, "invalid document ID format")
			return
		}
	}
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	analyses, err := h.db.ListAnalyses(r.Context(), docID, skip, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if analyses == nil {
		analyses = []models.AIAnalysis{}
	}
	writeJSON(w, http.StatusOK, analyses)
}

func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid analysis ID format")
		return
	}

	a, err := h.db.GetAnalysisByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// analysisStatusCode maps the error taxonomy to HTTP status codes.
func analysisStatusCode(err error) int {
	if errors.Is(err, core.ErrNotConfigured) {
		return http.StatusServiceUnavailable
	}
	var aiErr *core.AIError
	if errors.As(err, &aiErr) {
		switch aiErr.Kind {
		case core.AIRateLimited:
			return http.StatusTooManyRequests
		case core.AIUnauthorized:
			return http.StatusUnauthorized
		}
	}
	return http.StatusInternalServerError
}

func analysisDetail(err error) string {
	if errors.Is(err, core.ErrNotConfigured) {
		return "Gemini API not configured. Please set GEMINI_API_KEY environment variable."
	}
	var aiErr *core.AIError
	if errors.As(err, &aiErr) {
		switch aiErr.Kind {
		case core.AIRateLimited:
			return "API rate limit exceeded. Please try again later."
		case core.AIUnauthorized:
			return "Invalid API key"
		}
	}
	return "AI service error: " + err.Error()
}

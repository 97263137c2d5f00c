package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/analysis"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/models"
)

type TemplateHandler struct {
	db     core.DbClient
	logger *zap.SugaredLogger
}

func NewTemplateHandler(db core.DbClient, logger *zap.SugaredLogger) *TemplateHandler {
	return &TemplateHandler{db: db, logger: logger}
}

type templateCreateRequest struct {
	Name          string                    `json:"name"`
	Description   string                    `json:"description"`
	PromptText    string                    `json:"prompt_text"`
	Category      string                    `json:"category"`
	Variables     []models.TemplateVariable `json:"variables"`
	ExampleOutput string                    `json:"example_output"`
	IsPublic      *bool                     `json:"is_public"`
}

type templateUpdateRequest struct {
	Name          *string                   `json:"name"`
	Description   *string                   `json:"description"`
	PromptText    *string                   `json:"prompt_text"`
	Category      *string                   `json:"category"`
	Variables     []models.TemplateVariable `json:"variables"`
	ExampleOutput *string                   `json:"example_output"`
	IsPublic      *bool                     `json:"is_public"`
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	templates, err := h.db.ListTemplates(r.Context(), category, skip, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if templates == nil {
		templates = []models.PromptTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req templateCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.PromptText == "" {
		writeError(w, http.StatusBadRequest, "name and prompt_text are required")
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	tpl := &models.PromptTemplate{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Description:   req.Description,
		PromptText:    req.PromptText,
		Category:      req.Category,
		Variables:     req.Variables,
		ExampleOutput: req.ExampleOutput,
		IsPublic:      isPublic,
		CreatedAt:     time.Now(),
	}
	if err := h.db.CreateTemplate(r.Context(), tpl); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid template ID format")
		return
	}

	tpl, err := h.db.GetTemplateByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tpl == nil {
		writeError(w, http.StatusNotFound, "prompt template not found")
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid template ID format")
		return
	}

	var req templateUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tpl, err := h.db.GetTemplateByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tpl == nil {
		writeError(w, http.StatusNotFound, "prompt template not found")
		return
	}

	upd := models.TemplateUpdate{
		Name:          req.Name,
		Description:   req.Description,
		PromptText:    req.PromptText,
		Category:      req.Category,
		Variables:     req.Variables,
		ExampleOutput: req.ExampleOutput,
		IsPublic:      req.IsPublic,
	}
	if err := h.db.UpdateTemplate(r.Context(), id, upd); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tpl, err = h.db.GetTemplateByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid template ID format")
		return
	}

	tpl, err := h.db.GetTemplateByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tpl == nil {
		writeError(w, http.StatusNotFound, "prompt template not found")
		return
	}

	if err := h.db.DeleteTemplate(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Prompt template deleted successfully"})
}

// InitDefaults seeds the built-in templates once; reruns are no-ops.
func (h *TemplateHandler) InitDefaults(w http.ResponseWriter, r *http.Request) {
	existing, err := h.db.ListTemplates(r.Context(), "", 0, 1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(existing) > 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Default templates already exist"})
		return
	}

	defaults := analysis.DefaultTemplates()
	for i := range defaults {
		defaults[i].ID = uuid.NewString()
		defaults[i].CreatedAt = time.Now()
		if err := h.db.CreateTemplate(r.Context(), &defaults[i]); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Created %d default templates", len(defaults)),
	})
}

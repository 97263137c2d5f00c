package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/config"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/pipeline"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/progress"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/models"
)

// multipartOverhead is the transport-level allowance for multipart
// boundaries and part headers on top of the file size cap.
const multipartOverhead = 10 << 10

// allowedExtensions is the upload allow-list; anything else is
// rejected before the pipeline engages.
var allowedExtensions = map[string]string{
	".pdf": "application/pdf",
	".txt": "text/plain",
}

type DocumentHandler struct {
	db       core.DbClient
	obj      core.ObjectClient
	pipeline *pipeline.Pipeline
	hub      *progress.Hub
	cfg      *config.Config
	logger   *zap.SugaredLogger
}

func NewDocumentHandler(db core.DbClient, obj core.ObjectClient, p *pipeline.Pipeline, hub *progress.Hub, cfg *config.Config, logger *zap.SugaredLogger) *DocumentHandler {
	return &DocumentHandler{db: db, obj: obj, pipeline: p, hub: hub, cfg: cfg, logger: logger}
}

type uploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
	Status   string `json:"status"`
}

// Upload validates the file, creates the document row, stores the raw
// bytes and schedules the processing pipeline. It returns immediately;
// clients follow progress via the stream endpoint or by polling.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Enforce the size cap at the transport so an oversized body is
	// cut off mid-read instead of being spooled to disk first. The
	// slack covers multipart framing around the file part.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(h.cfg.MaxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("file too large. Maximum size: %dMB", h.cfg.MaxFileSize/(1024*1024)))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		writeError(w, http.StatusBadRequest, "file type not allowed. Allowed types: .pdf, .txt")
		return
	}
	if header.Size > h.cfg.MaxFileSize {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("file too large. Maximum size: %dMB", h.cfg.MaxFileSize/(1024*1024)))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	docID := uuid.NewString()
	key := fmt.Sprintf("%s/%s", docID, filepath.Base(header.Filename))

	url, err := h.obj.UploadFile(r.Context(), h.cfg.BucketName, key, data, contentType)
	if err != nil {
		h.logger.Errorw("upload to object storage failed", "document_id", docID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	doc := &models.Document{
		ID:           docID,
		Filename:     header.Filename,
		FileSize:     header.Size,
		StorageURL:   url,
		UploadTime:   time.Now(),
		Status:       models.StatusUploaded,
		CurrentStage: "File uploaded",
		Progress:     0,
	}
	if err := h.db.CreateDocument(r.Context(), doc); err != nil {
		h.logger.Errorw("document insert failed", "document_id", docID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store document metadata")
		return
	}

	if _, err := h.pipeline.Enqueue(docID); err != nil {
		h.logger.Errorw("enqueue failed", "document_id", docID, "error", err)
		// Roll back so the document does not sit in uploaded forever.
		if derr := h.db.DeleteDocument(r.Context(), docID); derr != nil {
			h.logger.Errorw("rollback document delete failed", "document_id", docID, "error", derr)
		}
		if oerr := h.obj.DeleteFile(r.Context(), h.cfg.BucketName, key); oerr != nil {
			h.logger.Warnw("rollback object delete failed", "document_id", docID, "error", oerr)
		}
		writeError(w, http.StatusServiceUnavailable, "server is busy processing documents. Please try again later")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		FileID:   docID,
		Filename: header.Filename,
		FileSize: header.Size,
		Status:   doc.Status,
	})
}

// StreamProgress is the Server-Sent Events endpoint. It relays hub
// events for one document as `data: <JSON>\n\n` lines and stops after
// a terminal event or client disconnect; the subscription is released
// on every exit path.
func (h *DocumentHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	docID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document ID format")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.hub.Subscribe(docID)
	defer h.hub.Unsubscribe(docID, ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
			if models.TerminalStatus(ev.Status) {
				return
			}
		}
	}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	docs, err := h.db.ListDocuments(r.Context(), skip, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	docID, ok := parseID(chi.URLParam(r, "id"))
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
	writeJSON(w, http.StatusOK, doc)
}

// Delete removes the document row and its stored object. The object
// delete is best effort; a dangling object never blocks row deletion.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID, ok := parseID(chi.URLParam(r, "id"))
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

	if bucket, key := pipeline.ParseObjectURL(doc.StorageURL); key != "" {
		if err := h.obj.DeleteFile(r.Context(), bucket, key); err != nil {
			h.logger.Warnw("stored object delete failed", "document_id", docID, "error", err)
		}
	}

	if err := h.db.DeleteDocument(r.Context(), docID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

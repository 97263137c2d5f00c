package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/config"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/analysis"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/cache"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/extractor"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/pipeline"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/progress"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/models"
)

// fakeDB is an in-memory core.DbClient matching the Postgres client's
// semantics: lookups of missing rows return (nil, nil), updates of
// missing rows return an error.
type fakeDB struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	templates map[string]*models.PromptTemplate
	analyses  map[string]*models.AIAnalysis
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		docs:      make(map[string]*models.Document),
		templates: make(map[string]*models.PromptTemplate),
		analyses:  make(map[string]*models.AIAnalysis),
	}
}

func (f *fakeDB) CreateDocument(_ context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDB) UpdateDocument(_ context.Context, id string, upd models.DocumentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("document with ID %s not found", id)
	}
	if upd.Status != nil {
		doc.Status = *upd.Status
	}
	if upd.CurrentStage != nil {
		doc.CurrentStage = *upd.CurrentStage
	}
	if upd.Progress != nil {
		doc.Progress = *upd.Progress
	}
	if upd.ExtractedText != nil {
		doc.ExtractedText = *upd.ExtractedText
	}
	if upd.TextLength != nil {
		doc.TextLength = *upd.TextLength
	}
	if upd.Language != nil {
		doc.Language = *upd.Language
	}
	return nil
}

func (f *fakeDB) ListDocuments(_ context.Context, offset, limit int) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Document
	for _, d := range f.docs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadTime.After(out[j].UploadTime) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDB) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("document with ID %s not found", id)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDB) CreateTemplate(_ context.Context, tpl *models.PromptTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *tpl
	f.templates[tpl.ID] = &cp
	return nil
}

func (f *fakeDB) GetTemplateByID(_ context.Context, id string) (*models.PromptTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[id]
	if !ok {
		return nil, nil
	}
	cp := *tpl
	return &cp, nil
}

func (f *fakeDB) ListTemplates(_ context.Context, category string, offset, limit int) ([]models.PromptTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PromptTemplate
	for _, tpl := range f.templates {
		if !tpl.IsPublic {
			continue
		}
		if category != "" && tpl.Category != category {
			continue
		}
		out = append(out, *tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDB) UpdateTemplate(_ context.Context, id string, upd models.TemplateUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[id]
	if !ok {
		return fmt.Errorf("prompt template with ID %s not found", id)
	}
	if upd.Name != nil {
		tpl.Name = *upd.Name
	}
	if upd.Description != nil {
		tpl.Description = *upd.Description
	}
	if upd.PromptText != nil {
		tpl.PromptText = *upd.PromptText
	}
	if upd.Category != nil {
		tpl.Category = *upd.Category
	}
	if upd.Variables != nil {
		tpl.Variables = upd.Variables
	}
	if upd.ExampleOutput != nil {
		tpl.ExampleOutput = *upd.ExampleOutput
	}
	if upd.IsPublic != nil {
		tpl.IsPublic = *upd.IsPublic
	}
	return nil
}

func (f *fakeDB) DeleteTemplate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[id]; !ok {
		return fmt.Errorf("prompt template with ID %s not found", id)
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeDB) IncrementTemplateUsage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[id]
	if !ok {
		return fmt.Errorf("prompt template with ID %s not found", id)
	}
	tpl.UsageCount++
	return nil
}

func (f *fakeDB) CreateAnalysis(_ context.Context, a *models.AIAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.analyses[a.ID] = &cp
	return nil
}

func (f *fakeDB) UpdateAnalysis(_ context.Context, id string, upd models.AnalysisUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.analyses[id]
	if !ok {
		return fmt.Errorf("analysis with ID %s not found", id)
	}
	if upd.Response != nil {
		a.Response = *upd.Response
	}
	if upd.Metadata != nil {
		a.Metadata = upd.Metadata
	}
	if upd.ExecutionTimeMS != nil {
		a.ExecutionTimeMS = *upd.ExecutionTimeMS
	}
	if upd.ErrorMessage != nil {
		a.ErrorMessage = *upd.ErrorMessage
	}
	return nil
}

func (f *fakeDB) GetAnalysisByID(_ context.Context, id string) (*models.AIAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.analyses[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeDB) ListAnalyses(_ context.Context, documentID string, offset, limit int) ([]models.AIAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AIAnalysis
	for _, a := range f.analyses {
		if documentID != "" && a.DocumentID != documentID {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDB) Close() error { return nil }

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (c *fakeObjects) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[bucket+"/"+key] = data
	return fmt.Sprintf("https://%s.s3.us-east-2.amazonaws.com/%s", bucket, key), nil
}

func (c *fakeObjects) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (c *fakeObjects) DeleteFile(_ context.Context, bucket, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, bucket+"/"+key)
	return nil
}

type stubLLM struct {
	generate func(prompt string) (string, string, error)
}

func (s *stubLLM) Generate(_ context.Context, prompt string) (string, string, error) {
	return s.generate(prompt)
}

type apiFixture struct {
	db     *fakeDB
	obj    *fakeObjects
	hub    *progress.Hub
	router chi.Router
}

func newAPIFixture(t *testing.T, llm core.LLMProvider) *apiFixture {
	t.Helper()
	logger := zap.NewNop().Sugar()

	f := &apiFixture{
		db:  newFakeDB(),
		obj: newFakeObjects(),
		hub: progress.NewHub(logger),
	}

	cfg := &config.Config{
		BucketName:  "test-bucket",
		MaxFileSize: 5 * 1024 * 1024,
	}

	pipe := pipeline.New(f.db, f.obj, extractor.New(logger), f.hub, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pipe.Start(ctx, 1)

	orchestrator := analysis.NewOrchestrator(llm, cache.NewMemoryCache(), logger)

	docHandler := NewDocumentHandler(f.db, f.obj, pipe, f.hub, cfg, logger)
	analysisHandler := NewAnalysisHandler(f.db, orchestrator, logger)
	templateHandler := NewTemplateHandler(f.db, logger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/upload", docHandler.Upload)
		api.Get("/progress/{id}", docHandler.StreamProgress)
		api.Get("/documents", docHandler.List)
		api.Get("/documents/{id}", docHandler.Get)
		api.Delete("/documents/{id}", docHandler.Delete)

		api.Get("/prompt-templates", templateHandler.List)
		api.Post("/prompt-templates", templateHandler.Create)
		api.Get("/prompt-templates/{id}", templateHandler.Get)
		api.Put("/prompt-templates/{id}", templateHandler.Update)
		api.Delete("/prompt-templates/{id}", templateHandler.Delete)
		api.Post("/init-default-templates", templateHandler.InitDefaults)

		api.Post("/analyze", analysisHandler.Analyze)
		api.Get("/analyses", analysisHandler.List)
		api.Get("/analyses/{id}", analysisHandler.Get)
	})
	f.router = r
	return f
}

func okLLM(response string) *stubLLM {
	return &stubLLM{generate: func(string) (string, string, error) {
		return response, "gemini-1.5-flash", nil
	}}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) uploadFile(t *testing.T, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// awaitTerminal polls the store until the document leaves processing.
func (f *apiFixture) awaitTerminal(t *testing.T, docID string) *models.Document {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := f.db.GetDocumentByID(context.Background(), docID)
		require.NoError(t, err)
		require.NotNil(t, doc)
		if models.TerminalStatus(doc.Status) {
			return doc
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("document never reached a terminal state")
	return nil
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestUploadProcessesTextFile(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	rec := f.uploadFile(t, "hello.txt", []byte("hello world"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[uploadResponse](t, rec)
	assert.Equal(t, "hello.txt", resp.Filename)
	assert.Equal(t, int64(11), resp.FileSize)
	assert.Equal(t, models.StatusUploaded, resp.Status)

	doc := f.awaitTerminal(t, resp.FileID)
	assert.Equal(t, models.StatusReady, doc.Status)
	assert.Equal(t, "hello world", doc.ExtractedText)
	assert.Equal(t, 11, doc.TextLength)
	assert.Equal(t, "unknown", doc.Language)

	// The raw bytes landed in object storage under the document's key.
	data, err := f.obj.GetFile(context.Background(), "test-bucket", resp.FileID+"/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	rec := f.uploadFile(t, "malware.exe", []byte("nope"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["detail"], "file type not allowed")
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	// One byte past the cap plus framing; MaxBytesReader cuts the
	// request off during parsing.
	rec := f.uploadFile(t, "big.txt", bytes.Repeat([]byte("a"), 5*1024*1024+multipartOverhead))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["detail"], "file too large")

	// Nothing was stored.
	docs, err := f.db.ListDocuments(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestGetDocumentNotFound(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	rec := f.do(t, http.MethodGet, "/api/v1/documents/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDocumentRejectsMalformedID(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	rec := f.do(t, http.MethodGet, "/api/v1/documents/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDocumentRemovesStoredObject(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	rec := f.uploadFile(t, "hello.txt", []byte("hello world"))
	resp := decodeBody[uploadResponse](t, rec)
	f.awaitTerminal(t, resp.FileID)

	rec = f.do(t, http.MethodDelete, "/api/v1/documents/"+resp.FileID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := f.obj.GetFile(context.Background(), "test-bucket", resp.FileID+"/hello.txt")
	assert.Error(t, err)

	rec = f.do(t, http.MethodGet, "/api/v1/documents/"+resp.FileID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func seedReadyDocument(t *testing.T, f *apiFixture, text string) string {
	t.Helper()
	id := uuid.NewString()
	err := f.db.CreateDocument(context.Background(), &models.Document{
		ID:            id,
		Filename:      "seeded.txt",
		Status:        models.StatusReady,
		CurrentStage:  "Ready for AI analysis",
		Progress:      100,
		ExtractedText: text,
		TextLength:    len(text),
		Language:      "unknown",
		UploadTime:    time.Now(),
	})
	require.NoError(t, err)
	return id
}

func TestAnalyzeReturnsModelResponse(t *testing.T) {
	f := newAPIFixture(t, okLLM("the document says hello"))
	docID := seedReadyDocument(t, f, "hello world")

	rec := f.do(t, http.MethodPost, "/api/v1/analyze", analyzeRequest{
		DocumentID: docID,
		Prompt:     "Summarize this document",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[analyzeResponse](t, rec)
	assert.Equal(t, "the document says hello", resp.Response)
	assert.NotEmpty(t, resp.AnalysisID)

	// The audit row carries the response and metadata.
	a, err := f.db.GetAnalysisByID(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, docID, a.DocumentID)
	assert.Equal(t, "the document says hello", a.Response)
	require.NotNil(t, a.Metadata)
	assert.Equal(t, "gemini-1.5-flash", a.Metadata.Model)
	assert.Equal(t, 1, a.Metadata.ChunksProcessed)
}

func TestAnalyzeRequiresReadyDocument(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	id := uuid.NewString()
	require.NoError(t, f.db.CreateDocument(context.Background(), &models.Document{
		ID:     id,
		Status: models.StatusProcessing,
	}))

	rec := f.do(t, http.MethodPost, "/api/v1/analyze", analyzeRequest{DocumentID: id, Prompt: "Summarize"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["detail"], "not ready for analysis")
}

func TestAnalyzeUnknownDocument(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	rec := f.do(t, http.MethodPost, "/api/v1/analyze", analyzeRequest{DocumentID: uuid.NewString(), Prompt: "Summarize"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeWithoutCredentialReturns503(t *testing.T) {
	f := newAPIFixture(t, &stubLLM{generate: func(string) (string, string, error) {
		return "", "", core.ErrNotConfigured
	}})
	docID := seedReadyDocument(t, f, "hello world")

	rec := f.do(t, http.MethodPost, "/api/v1/analyze", analyzeRequest{DocumentID: docID, Prompt: "Summarize"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["detail"], "GEMINI_API_KEY")

	// The audit row records the failure.
	analyses, err := f.db.ListAnalyses(context.Background(), docID, 0, 10)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.NotEmpty(t, analyses[0].ErrorMessage)
	assert.Empty(t, analyses[0].Response)
}

func TestAnalyzeInvalidKeyReturns401(t *testing.T) {
	f := newAPIFixture(t, &stubLLM{generate: func(string) (string, string, error) {
		return "", "", errors.New("400: API key not valid")
	}})
	docID := seedReadyDocument(t, f, "hello world")

	rec := f.do(t, http.MethodPost, "/api/v1/analyze", analyzeRequest{DocumentID: docID, Prompt: "Summarize"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyzeWithTemplateIncrementsUsage(t *testing.T) {
	f := newAPIFixture(t, okLLM("templated analysis"))
	docID := seedReadyDocument(t, f, "hello world")

	tplID := uuid.NewString()
	require.NoError(t, f.db.CreateTemplate(context.Background(), &models.PromptTemplate{
		ID:         tplID,
		Name:       "Executive Summary",
		PromptText: "Summarize: {document_content}",
		IsPublic:   true,
		CreatedAt:  time.Now(),
	}))

	rec := f.do(t, http.MethodPost, "/api/v1/analyze", analyzeRequest{
		DocumentID:       docID,
		Prompt:           "Summarize: hello world",
		PromptTemplateID: tplID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tpl, err := f.db.GetTemplateByID(context.Background(), tplID)
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.UsageCount)
}

func TestTemplateLifecycle(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	rec := f.do(t, http.MethodPost, "/api/v1/prompt-templates", templateCreateRequest{
		Name:       "Key Points",
		PromptText: "List the key points of {document_content}",
		Category:   "summary",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeBody[models.PromptTemplate](t, rec)
	assert.True(t, created.IsPublic, "templates default to public")

	rec = f.do(t, http.MethodGet, "/api/v1/prompt-templates/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	newName := "Key Takeaways"
	rec = f.do(t, http.MethodPut, "/api/v1/prompt-templates/"+created.ID, templateUpdateRequest{Name: &newName})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[models.PromptTemplate](t, rec)
	assert.Equal(t, "Key Takeaways", updated.Name)
	assert.Equal(t, created.PromptText, updated.PromptText, "untouched fields survive a partial update")

	rec = f.do(t, http.MethodDelete, "/api/v1/prompt-templates/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/prompt-templates/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplateCreateRequiresNameAndPrompt(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	rec := f.do(t, http.MethodPost, "/api/v1/prompt-templates", templateCreateRequest{Name: "No prompt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitDefaultTemplatesIsIdempotent(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))

	rec := f.do(t, http.MethodPost, "/api/v1/init-default-templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["message"], "Created")

	listRec := f.do(t, http.MethodGet, "/api/v1/prompt-templates", nil)
	templates := decodeBody[[]models.PromptTemplate](t, listRec)
	assert.Len(t, templates, len(analysis.DefaultTemplates()))

	rec = f.do(t, http.MethodPost, "/api/v1/init-default-templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Default templates already exist", body["message"])

	listRec = f.do(t, http.MethodGet, "/api/v1/prompt-templates", nil)
	templates = decodeBody[[]models.PromptTemplate](t, listRec)
	assert.Len(t, templates, len(analysis.DefaultTemplates()), "rerun must not duplicate")
}

func TestListAnalysesFiltersByDocument(t *testing.T) {
	f := newAPIFixture(t, okLLM("analysis text"))
	docA := seedReadyDocument(t, f, "hello world")
	docB := seedReadyDocument(t, f, "goodbye world")

	for _, id := range []string{docA, docA, docB} {
		rec := f.do(t, http.MethodPost, "/api/v1/analyze", analyzeRequest{DocumentID: id, Prompt: "Summarize"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/analyses?document_id="+docA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	analyses := decodeBody[[]models.AIAnalysis](t, rec)
	assert.Len(t, analyses, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/analyses", nil)
	analyses = decodeBody[[]models.AIAnalysis](t, rec)
	assert.Len(t, analyses, 3)
}

func TestStreamProgressRelaysEventsUntilTerminal(t *testing.T) {
	f := newAPIFixture(t, okLLM("unused"))
	docID := uuid.NewString()

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/progress/"+docID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The subscription is registered asynchronously; keep publishing
	// the first event until the stream confirms delivery, then send
	// the terminal event.
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				f.hub.Publish(models.ProgressEvent{FileID: docID, Stage: "Ready for AI analysis", Progress: 100, Status: models.StatusReady})
				return
			default:
				f.hub.Publish(models.ProgressEvent{FileID: docID, Stage: "Extracting text from document", Progress: 20, Status: models.StatusProcessing})
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	var lines []string
	stopped := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if !stopped {
			close(stop)
			stopped = true
		}
	}

	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "data: "), line)
	}
	var final models.ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[len(lines)-1], "data: ")), &final))
	assert.Equal(t, models.ProgressEvent{FileID: docID, Stage: "Ready for AI analysis", Progress: 100, Status: models.StatusReady}, final)
}

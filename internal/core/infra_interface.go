package core

import (
	"context"
	"time"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/models"
)

// DocumentStore holds document rows and their processing state.
// The pipeline is the only writer after the upload handler creates a row.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	// UpdateDocument applies all non-nil fields of upd atomically.
	UpdateDocument(ctx context.Context, id string, upd models.DocumentUpdate) error
	ListDocuments(ctx context.Context, offset, limit int) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// TemplateStore holds reusable prompt templates.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, tpl *models.PromptTemplate) error
	GetTemplateByID(ctx context.Context, id string) (*models.PromptTemplate, error)
	// ListTemplates returns public templates, newest first. An empty
	// category matches all categories.
	ListTemplates(ctx context.Context, category string, offset, limit int) ([]models.PromptTemplate, error)
	UpdateTemplate(ctx context.Context, id string, upd models.TemplateUpdate) error
	DeleteTemplate(ctx context.Context, id string) error
	IncrementTemplateUsage(ctx context.Context, id string) error
}

// AnalysisStore holds the audit records for analysis requests.
type AnalysisStore interface {
	CreateAnalysis(ctx context.Context, a *models.AIAnalysis) error
	UpdateAnalysis(ctx context.Context, id string, upd models.AnalysisUpdate) error
	GetAnalysisByID(ctx context.Context, id string) (*models.AIAnalysis, error)
	// ListAnalyses returns analyses newest first, optionally filtered
	// by document id.
	ListAnalyses(ctx context.Context, documentID string, offset, limit int) ([]models.AIAnalysis, error)
}

// DbClient is the full persistence surface, abstracting Postgres so
// higher layers never depend on a specific database.
type DbClient interface {
	DocumentStore
	TemplateStore
	AnalysisStore
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}

// ResponseCache is a best-effort key/value store with TTL. Lookups are
// bounded in time and degrade to a miss when the backend is
// unavailable; writes that fail are dropped silently apart from a log
// line. Errors never reach the caller.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// LLMProvider sends a prompt to a generative-text backend.
// Generate returns the response text and the model identifier, or a
// classifiable error. A missing credential yields ErrNotConfigured
// without any network attempt.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string) (text string, model string, err error)
}

// TextExtractor converts raw file bytes into plain text given a format
// hint, and guesses the language of extracted text.
type TextExtractor interface {
	Extract(data []byte, format string) (string, error)
	DetectLanguage(text string) string
}

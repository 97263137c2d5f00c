package models

import (
	"time"
)

// Document lifecycle states. Ready and error are terminal: once a
// document reaches one of them it is never reprocessed.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// TerminalStatus reports whether a status ends the processing lifecycle.
func TerminalStatus(status string) bool {
	return status == StatusReady || status == StatusError
}

// Template categories.
const (
	CategorySummary    = "summary"
	CategoryAnalysis   = "analysis"
	CategoryExtraction = "extraction"
	CategoryCustom     = "custom"
)

// Document represents an uploaded file and the state of its processing
// pipeline. Mutable fields are written only by the pipeline after the
// upload handler creates the row.
type Document struct {
	ID            string    `db:"id" json:"id"`
	Filename      string    `db:"filename" json:"filename"`
	FileSize      int64     `db:"file_size" json:"file_size"`
	StorageURL    string    `db:"storage_url" json:"-"`
	UploadTime    time.Time `db:"upload_time" json:"upload_time"`
	Status        string    `db:"status" json:"status"`
	CurrentStage  string    `db:"current_stage" json:"current_stage"`
	Progress      int       `db:"progress" json:"progress"`
	ExtractedText string    `db:"extracted_text" json:"extracted_text,omitempty"`
	TextLength    int       `db:"text_length" json:"text_length,omitempty"`
	Language      string    `db:"language" json:"language,omitempty"`
}

// DocumentUpdate is a partial update of a document row. Nil fields are
// left untouched; the store applies all non-nil fields in one statement.
type DocumentUpdate struct {
	Status        *string
	CurrentStage  *string
	Progress      *int
	ExtractedText *string
	TextLength    *int
	Language      *string
}

// TemplateVariable is a named placeholder a prompt template expects.
type TemplateVariable struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// PromptTemplate is a reusable analysis prompt with a placeholder for
// document content.
type PromptTemplate struct {
	ID            string             `db:"id" json:"id"`
	Name          string             `db:"name" json:"name"`
	Description   string             `db:"description" json:"description,omitempty"`
	PromptText    string             `db:"prompt_text" json:"prompt_text"`
	Category      string             `db:"category" json:"category"`
	Variables     []TemplateVariable `db:"variables" json:"variables"`
	ExampleOutput string             `db:"example_output" json:"example_output,omitempty"`
	UsageCount    int                `db:"usage_count" json:"usage_count"`
	IsPublic      bool               `db:"is_public" json:"is_public"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}

// TemplateUpdate is a partial update of a prompt template.
type TemplateUpdate struct {
	Name          *string
	Description   *string
	PromptText    *string
	Category      *string
	Variables     []TemplateVariable
	ExampleOutput *string
	IsPublic      *bool
}

// AnalysisMetadata is the structured metadata recorded with a
// completed analysis.
type AnalysisMetadata struct {
	Model           string `json:"model"`
	TokensUsed      int    `json:"tokens_used"`
	ChunksProcessed int    `json:"chunks_processed"`
}

// AIAnalysis is the audit record for one analysis request. The row is
// created before the model call so a crash mid-call still leaves a
// trace, and updated exactly once after the call resolves with either
// a response or an error message.
type AIAnalysis struct {
	ID               string            `db:"id" json:"id"`
	DocumentID       string            `db:"document_id" json:"document_id"`
	PromptTemplateID string            `db:"prompt_template_id" json:"prompt_template_id,omitempty"`
	FinalPrompt      string            `db:"final_prompt" json:"final_prompt"`
	Response         string            `db:"response" json:"response,omitempty"`
	Metadata         *AnalysisMetadata `db:"response_metadata" json:"response_metadata,omitempty"`
	ExecutionTimeMS  int               `db:"execution_time_ms" json:"execution_time_ms,omitempty"`
	ErrorMessage     string            `db:"error_message" json:"error_message,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}

// AnalysisUpdate resolves an AIAnalysis row after the model call.
type AnalysisUpdate struct {
	Response        *string
	Metadata        *AnalysisMetadata
	ExecutionTimeMS *int
	ErrorMessage    *string
}

// ProgressEvent is an ephemeral notification of a pipeline step. It is
// never persisted; the document row always reflects the latest event.
type ProgressEvent struct {
	FileID   string `json:"file_id"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
}

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/config"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/models"
)

var _ core.DbClient = (*DatabaseClient)(nil)

// DatabaseClient implements the persistence interfaces on Postgres via
// the pgx stdlib driver.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, filename, file_size, storage_url, upload_time, status, current_stage, progress)
		VALUES
			($1, $2, $3, $4, COALESCE($5, now()), $6, $7, $8)
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.Filename, doc.FileSize, doc.StorageURL, doc.UploadTime, doc.Status, doc.CurrentStage, doc.Progress)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, filename, file_size, storage_url, upload_time, status, current_stage, progress,
		       COALESCE(extracted_text, ''), COALESCE(text_length, 0), COALESCE(language, '')
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.Filename, &d.FileSize, &d.StorageURL, &d.UploadTime, &d.Status, &d.CurrentStage, &d.Progress,
		&d.ExtractedText, &d.TextLength, &d.Language,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDocument applies all non-nil fields of upd in one statement so
// status flips and their payload land atomically.
func (c *DatabaseClient) UpdateDocument(ctx context.Context, id string, upd models.DocumentUpdate) error {
	set := make([]string, 0, 6)
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.CurrentStage != nil {
		add("current_stage", *upd.CurrentStage)
	}
	if upd.Progress != nil {
		add("progress", *upd.Progress)
	}
	if upd.ExtractedText != nil {
		add("extracted_text", *upd.ExtractedText)
	}
	if upd.TextLength != nil {
		add("text_length", *upd.TextLength)
	}
	if upd.Language != nil {
		add("language", *upd.Language)
	}
	if len(set) == 0 {
		return nil
	}

	q := fmt.Sprintf("UPDATE documents SET %s WHERE id = $1", strings.Join(set, ", "))
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context, offset, limit int) ([]models.Document, error) {
	const q = `
		SELECT id, filename, file_size, storage_url, upload_time, status, current_stage, progress,
		       COALESCE(extracted_text, ''), COALESCE(text_length, 0), COALESCE(language, '')
		FROM documents
		ORDER BY upload_time DESC
		OFFSET $1 LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.Filename, &d.FileSize, &d.StorageURL, &d.UploadTime, &d.Status, &d.CurrentStage, &d.Progress,
			&d.ExtractedText, &d.TextLength, &d.Language,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// Prompt templates

func (c *DatabaseClient) CreateTemplate(ctx context.Context, tpl *models.PromptTemplate) error {
	if tpl == nil {
		return errors.New("nil template")
	}
	vars, err := json.Marshal(tpl.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	const q = `
		INSERT INTO prompt_templates
			(id, name, description, prompt_text, category, variables, example_output, usage_count, is_public, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		tpl.ID, tpl.Name, tpl.Description, tpl.PromptText, tpl.Category, vars, tpl.ExampleOutput,
		tpl.UsageCount, tpl.IsPublic, tpl.CreatedAt)
	return err
}

func (c *DatabaseClient) GetTemplateByID(ctx context.Context, id string) (*models.PromptTemplate, error) {
	const q = `
		SELECT id, name, COALESCE(description, ''), prompt_text, COALESCE(category, ''),
		       COALESCE(variables, '[]'), COALESCE(example_output, ''), usage_count, is_public, created_at
		FROM prompt_templates
		WHERE id = $1
	`
	var (
		t    models.PromptTemplate
		vars []byte
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.Name, &t.Description, &t.PromptText, &t.Category,
		&vars, &t.ExampleOutput, &t.UsageCount, &t.IsPublic, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(vars, &t.Variables); err != nil {
		return nil, fmt.Errorf("unmarshal variables: %w", err)
	}
	return &t, nil
}

func (c *DatabaseClient) ListTemplates(ctx context.Context, category string, offset, limit int) ([]models.PromptTemplate, error) {
	q := `
		SELECT id, name, COALESCE(description, ''), prompt_text, COALESCE(category, ''),
		       COALESCE(variables, '[]'), COALESCE(example_output, ''), usage_count, is_public, created_at
		FROM prompt_templates
		WHERE is_public = TRUE
	`
	args := []any{}
	if category != "" {
		args = append(args, category)
		q += fmt.Sprintf(" AND category = $%d", len(args))
	}
	args = append(args, offset)
	q += fmt.Sprintf(" ORDER BY created_at DESC OFFSET $%d", len(args))
	args = append(args, limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PromptTemplate
	for rows.Next() {
		var (
			t    models.PromptTemplate
			vars []byte
		)
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.PromptText, &t.Category,
			&vars, &t.ExampleOutput, &t.UsageCount, &t.IsPublic, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(vars, &t.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateTemplate(ctx context.Context, id string, upd models.TemplateUpdate) error {
	set := make([]string, 0, 7)
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.PromptText != nil {
		add("prompt_text", *upd.PromptText)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Variables != nil {
		vars, err := json.Marshal(upd.Variables)
		if err != nil {
			return fmt.Errorf("marshal variables: %w", err)
		}
		add("variables", vars)
	}
	if upd.ExampleOutput != nil {
		add("example_output", *upd.ExampleOutput)
	}
	if upd.IsPublic != nil {
		add("is_public", *upd.IsPublic)
	}
	if len(set) == 0 {
		return nil
	}

	q := fmt.Sprintf("UPDATE prompt_templates SET %s WHERE id = $1", strings.Join(set, ", "))
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("prompt template not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteTemplate(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("prompt template not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) IncrementTemplateUsage(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `UPDATE prompt_templates SET usage_count = usage_count + 1 WHERE id = $1`, id)
	return err
}

// AI analyses

func (c *DatabaseClient) CreateAnalysis(ctx context.Context, a *models.AIAnalysis) error {
	if a == nil {
		return errors.New("nil analysis")
	}
	var templateID any
	if a.PromptTemplateID != "" {
		templateID = a.PromptTemplateID
	}
	const q = `
		INSERT INTO ai_analyses (id, document_id, prompt_template_id, final_prompt, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`
	_, err := c.db.ExecContext(ctx, q, a.ID, a.DocumentID, templateID, a.FinalPrompt, a.CreatedAt)
	return err
}

func (c *DatabaseClient) UpdateAnalysis(ctx context.Context, id string, upd models.AnalysisUpdate) error {
	set := make([]string, 0, 4)
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Response != nil {
		add("response", *upd.Response)
	}
	if upd.Metadata != nil {
		meta, err := json.Marshal(upd.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		add("response_metadata", meta)
	}
	if upd.ExecutionTimeMS != nil {
		add("execution_time_ms", *upd.ExecutionTimeMS)
	}
	if upd.ErrorMessage != nil {
		add("error_message", *upd.ErrorMessage)
	}
	if len(set) == 0 {
		return nil
	}

	q := fmt.Sprintf("UPDATE ai_analyses SET %s WHERE id = $1", strings.Join(set, ", "))
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("analysis not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) GetAnalysisByID(ctx context.Context, id string) (*models.AIAnalysis, error) {
	const q = `
		SELECT id, document_id, COALESCE(prompt_template_id::text, ''), final_prompt,
		       COALESCE(response, ''), response_metadata, COALESCE(execution_time_ms, 0),
		       COALESCE(error_message, ''), created_at
		FROM ai_analyses
		WHERE id = $1
	`
	var (
		a    models.AIAnalysis
		meta []byte
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID, &a.DocumentID, &a.PromptTemplateID, &a.FinalPrompt,
		&a.Response, &meta, &a.ExecutionTimeMS, &a.ErrorMessage, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		a.Metadata = &models.AnalysisMetadata{}
		if err := json.Unmarshal(meta, a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &a, nil
}

func (c *DatabaseClient) ListAnalyses(ctx context.Context, documentID string, offset, limit int) ([]models.AIAnalysis, error) {
	q := `
		SELECT id, document_id, COALESCE(prompt_template_id::text, ''), final_prompt,
		       COALESCE(response, ''), response_metadata, COALESCE(execution_time_ms, 0),
		       COALESCE(error_message, ''), created_at
		FROM ai_analyses
	`
	args := []any{}
	if documentID != "" {
		args = append(args, documentID)
		q += fmt.Sprintf(" WHERE document_id = $%d", len(args))
	}
	args = append(args, offset)
	q += fmt.Sprintf(" ORDER BY created_at DESC OFFSET $%d", len(args))
	args = append(args, limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AIAnalysis
	for rows.Next() {
		var (
			a    models.AIAnalysis
			meta []byte
		)
		if err := rows.Scan(
			&a.ID, &a.DocumentID, &a.PromptTemplateID, &a.FinalPrompt,
			&a.Response, &meta, &a.ExecutionTimeMS, &a.ErrorMessage, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			a.Metadata = &models.AnalysisMetadata{}
			if err := json.Unmarshal(meta, a.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

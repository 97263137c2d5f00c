package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core/progress"
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/models"
)

// Human-readable stage descriptions, aligned with the progress values
// clients observe: 20, 60, 100.
const (
	stageExtracting = "Extracting text from document"
	stagePreparing  = "Preparing for analysis"
	stageReady      = "Ready for AI analysis"
)

// errorStageCap bounds the error message persisted as the stage text.
const errorStageCap = 400

type job struct {
	docID string
	done  chan struct{}
}

// Pipeline drives a document from uploaded through processing to a
// terminal state. Each step durably updates the store and then
// publishes the matching progress event, so a client that re-reads the
// store is never behind the last delivered event. A document is
// enqueued exactly once by the upload handler; no other writer touches
// its row while the pipeline runs.
type Pipeline struct {
	db        core.DocumentStore
	obj       core.ObjectClient
	extractor core.TextExtractor
	hub       *progress.Hub
	logger    *zap.SugaredLogger
	jobs      chan job
}

// New constructs the pipeline with a bounded job queue (64).
func New(db core.DocumentStore, obj core.ObjectClient, ex core.TextExtractor, hub *progress.Hub, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		db:        db,
		obj:       obj,
		extractor: ex,
		hub:       hub,
		logger:    logger,
		jobs:      make(chan job, 64),
	}
}

// Start runs numWorkers goroutines reading from the job queue. Each
// document is processed by one worker at a time.
func (p *Pipeline) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					p.logger.Infow("pipeline worker shutting down", "worker", w)
					return
				case j := <-p.jobs:
					p.logger.Infow("processing document", "document_id", j.docID, "worker", w)
					p.processOne(j.docID)
					close(j.done)
				}
			}
		}(w)
	}
}

// ErrQueueFull is returned by Enqueue when the job queue has no free
// slot. The caller decides whether to shed the upload.
var ErrQueueFull = errors.New("processing queue is full")

// Enqueue schedules a document for processing and returns a channel
// that is closed when the run reaches a terminal state. The upload
// handler ignores the signal; tests await it instead of racing real
// time. Enqueue never blocks: a full queue returns ErrQueueFull.
func (p *Pipeline) Enqueue(docID string) (<-chan struct{}, error) {
	j := job{docID: docID, done: make(chan struct{})}
	select {
	case p.jobs <- j:
		return j.done, nil
	default:
		return nil, ErrQueueFull
	}
}

// processOne runs the state machine for a single document. Every
// failure path lands in the error state; nothing escapes unrecorded.
func (p *Pipeline) processOne(docID string) {
	// Processing outlives the upload request; use a fresh context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, docID, fmt.Sprintf("panic: %v", r))
		}
	}()

	doc, err := p.db.GetDocumentByID(ctx, docID)
	if err != nil || doc == nil {
		p.logger.Errorw("document not found for processing", "document_id", docID, "error", err)
		return
	}

	if err := p.step(ctx, docID, models.StatusProcessing, stageExtracting, 20); err != nil {
		p.fail(ctx, docID, err.Error())
		return
	}

	data, err := p.fetchBytes(ctx, doc)
	if err != nil {
		p.fail(ctx, docID, err.Error())
		return
	}

	text, err := p.extractor.Extract(data, formatHint(doc.Filename))
	if err != nil {
		p.fail(ctx, docID, err.Error())
		return
	}
	if text == "" {
		p.fail(ctx, docID, core.NewEmptyExtraction().Error())
		return
	}

	if err := p.step(ctx, docID, models.StatusProcessing, stagePreparing, 60); err != nil {
		p.fail(ctx, docID, err.Error())
		return
	}

	language := p.extractor.DetectLanguage(text)
	textLength := len(text)

	// Terminal update: extracted text lands together with the status
	// flip in one atomic write.
	status := models.StatusReady
	stage := stageReady
	prog := 100
	upd := models.DocumentUpdate{
		Status:        &status,
		CurrentStage:  &stage,
		Progress:      &prog,
		ExtractedText: &text,
		TextLength:    &textLength,
		Language:      &language,
	}
	if err := p.db.UpdateDocument(ctx, docID, upd); err != nil {
		p.fail(ctx, docID, err.Error())
		return
	}
	p.hub.Publish(models.ProgressEvent{FileID: docID, Stage: stage, Progress: prog, Status: status})

	p.logger.Infow("document processed", "document_id", docID, "text_length", textLength, "language", language)
}

// step persists an intermediate state and then publishes it. The
// publish is skipped when the write fails: subscribers must never see
// an event the store does not already reflect.
func (p *Pipeline) step(ctx context.Context, docID, status, stage string, prog int) error {
	upd := models.DocumentUpdate{Status: &status, CurrentStage: &stage, Progress: &prog}
	if err := p.db.UpdateDocument(ctx, docID, upd); err != nil {
		return fmt.Errorf("persist progress: %w", err)
	}
	p.hub.Publish(models.ProgressEvent{FileID: docID, Stage: stage, Progress: prog, Status: status})
	return nil
}

// fail drives the error transition: progress resets to 0 and the stage
// carries the capped error message. Best effort; when even the error
// state cannot be written there is nothing left to publish.
func (p *Pipeline) fail(ctx context.Context, docID, msg string) {
	stage := "Error: " + core.TruncateError(msg, errorStageCap)
	p.logger.Errorw("document processing failed", "document_id", docID, "error", msg)
	if err := p.step(ctx, docID, models.StatusError, stage, 0); err != nil {
		p.logger.Errorw("error state update failed", "document_id", docID, "error", err)
	}
}

func (p *Pipeline) fetchBytes(ctx context.Context, doc *models.Document) ([]byte, error) {
	bucket, key := ParseObjectURL(doc.StorageURL)
	data, err := p.obj.GetFile(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetch stored file: %w", err)
	}
	return data, nil
}

// formatHint maps the filename extension to an extractor format hint.
// Unrecognized extensions are rejected at upload time, so anything
// else here surfaces as an unsupported-format extraction error.
func formatHint(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// ParseObjectURL extracts the bucket and key from a
// virtual-hosted-style S3 URL such as
// https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf.
func ParseObjectURL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	if parts := strings.Split(host, "."); len(parts) > 0 {
		bucket = parts[0]
	}
	return bucket, key
}

package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned by the LLM provider when no API key is
// set. It short-circuits before any network attempt and is never
// retried; callers surface it as service-unavailable.
var ErrNotConfigured = errors.New("AI backend not configured: set GEMINI_API_KEY")

// Extraction failure kinds.
const (
	ExtractionUnsupported = "unsupported_format"
	ExtractionEncoding    = "encoding"
	ExtractionFailed      = "extraction_failed"
	ExtractionEmpty       = "empty"
)

// ExtractionError describes why text could not be extracted from an
// uploaded file. The pipeline converts it into a persisted error state
// rather than letting it escape.
type ExtractionError struct {
	Kind   string
	Detail string
}

func (e *ExtractionError) Error() string {
	return e.Detail
}

func NewUnsupportedFormat(format string) *ExtractionError {
	return &ExtractionError{
		Kind:   ExtractionUnsupported,
		Detail: fmt.Sprintf("unsupported file type: %q", format),
	}
}

func NewEncodingError() *ExtractionError {
	return &ExtractionError{
		Kind:   ExtractionEncoding,
		Detail: "file is not valid UTF-8 text",
	}
}

// NewExtractionFailed records the failure of both PDF parsers.
func NewExtractionFailed(primary, fallback error) *ExtractionError {
	return &ExtractionError{
		Kind:   ExtractionFailed,
		Detail: fmt.Sprintf("failed with both docconv and pdf fallback: %v, %v", primary, fallback),
	}
}

func NewEmptyExtraction() *ExtractionError {
	return &ExtractionError{
		Kind:   ExtractionEmpty,
		Detail: "could not extract text from document",
	}
}

// AI error kinds, assigned by classifying the backend's failure text.
const (
	AIRateLimited  = "rate_limited"
	AIUnauthorized = "unauthorized"
	AIUnknown      = "unknown"
)

// AIError wraps a failed model call with its classification.
type AIError struct {
	Kind string
	Err  error
}

func (e *AIError) Error() string {
	return fmt.Sprintf("AI service error (%s): %v", e.Kind, e.Err)
}

func (e *AIError) Unwrap() error { return e.Err }

// Retryable reports whether the retry policy may re-attempt the call.
// Auth failures are permanent; everything else is worth another try.
func (e *AIError) Retryable() bool {
	return e.Kind != AIUnauthorized
}

// ClassifyAIError buckets a model-call failure by substring matching
// on the backend's error text: quota or rate-limit wording maps to
// AIRateLimited, api-key wording to AIUnauthorized, the rest to
// AIUnknown.
func ClassifyAIError(err error) *AIError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return &AIError{Kind: AIRateLimited, Err: err}
	case strings.Contains(msg, "api key"):
		return &AIError{Kind: AIUnauthorized, Err: err}
	default:
		return &AIError{Kind: AIUnknown, Err: err}
	}
}

// TruncateError caps a human-readable error message, appending an
// ellipsis when cut. Used for the document's error stage description.
func TruncateError(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	return msg[:max] + "..."
}

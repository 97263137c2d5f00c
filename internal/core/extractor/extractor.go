package extractor

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
)

// Supported format hints, derived from the filename extension by the
// upload handler.
const (
	FormatPDF = "pdf"
	FormatTXT = "txt"
)

// englishWords is the fixed function-word set used by the language
// heuristic.
var englishWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

var _ core.TextExtractor = (*Extractor)(nil)

// Extractor converts raw file bytes to plain text. PDFs go through
// docconv first with a pure-Go fallback parser; plain text is decoded
// verbatim.
type Extractor struct {
	logger *zap.SugaredLogger
}

func New(logger *zap.SugaredLogger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the plain text of data. Zero extracted characters is
// not an error here; the pipeline decides whether empty text is fatal.
func (e *Extractor) Extract(data []byte, format string) (string, error) {
	switch format {
	case FormatTXT:
		if !utf8.Valid(data) {
			return "", core.NewEncodingError()
		}
		return string(data), nil
	case FormatPDF:
		return e.extractPDF(data)
	default:
		return "", core.NewUnsupportedFormat(format)
	}
}

func (e *Extractor) extractPDF(data []byte) (string, error) {
	res, primaryErr := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if primaryErr == nil {
		return res.Body, nil
	}
	e.logger.Warnw("docconv failed, trying fallback parser", "error", primaryErr)

	text, fallbackErr := fallbackPDF(data)
	if fallbackErr == nil {
		return text, nil
	}
	return "", core.NewExtractionFailed(primaryErr, fallbackErr)
}

// fallbackPDF extracts page text with the ledongthuc/pdf reader.
func fallbackPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// DetectLanguage inspects the first 100 whitespace-delimited tokens,
// lower-cased, and returns "en" when more than 10% of them are common
// English function words, "unknown" otherwise.
func (e *Extractor) DetectLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return "unknown"
	}
	if len(words) > 100 {
		words = words[:100]
	}

	hits := 0
	for _, w := range words {
		if _, ok := englishWords[w]; ok {
			hits++
		}
	}
	if float64(hits)/float64(len(words)) > 0.1 {
		return "en"
	}
	return "unknown"
}

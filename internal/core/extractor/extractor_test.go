package extractor

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
)

func newTestExtractor() *Extractor {
	return New(zap.NewNop().Sugar())
}

func TestExtractTxtVerbatim(t *testing.T) {
	e := newTestExtractor()

	text, err := e.Extract([]byte("hello world"), FormatTXT)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestExtractZeroByteTxtYieldsEmptyText(t *testing.T) {
	e := newTestExtractor()

	text, err := e.Extract([]byte{}, FormatTXT)
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestExtractInvalidUTF8(t *testing.T) {
	e := newTestExtractor()

	_, err := e.Extract([]byte{0xff, 0xfe, 0xfd}, FormatTXT)
	var exErr *core.ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, core.ExtractionEncoding, exErr.Kind)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := newTestExtractor()

	_, err := e.Extract([]byte("x"), "docx")
	var exErr *core.ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, core.ExtractionUnsupported, exErr.Kind)
}

func TestExtractCorruptPDFFailsWithBothParsers(t *testing.T) {
	e := newTestExtractor()

	_, err := e.Extract([]byte("definitely not a pdf"), FormatPDF)
	var exErr *core.ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, core.ExtractionFailed, exErr.Kind)
}

func TestDetectLanguage(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty input", "", "unknown"},
		{"short non-english sample", "hello world", "unknown"},
		{
			"english prose",
			"The quick brown fox jumps over the lazy dog and runs to the barn for shelter in the storm.",
			"en",
		},
		{"non-english prose", "lorem ipsum dolor sit amet consectetur adipiscing elit sed eiusmod", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.DetectLanguage(tt.text))
		})
	}
}

func TestDetectLanguageOnlyInspectsFirstHundredWords(t *testing.T) {
	e := newTestExtractor()

	// 100 filler words followed by heavy English function-word usage
	// that must be ignored.
	text := strings.Repeat("zzz ", 100) + strings.Repeat("the and of to ", 50)
	assert.Equal(t, "unknown", e.DetectLanguage(text))
}

package analysis

import (
	"strings"
)

// maxPromptTokens is the per-call token budget. Documents estimated
// above it are chunked; each chunk stays within it.
const maxPromptTokens = 4000

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// estimateTokens approximates the token cost of a document at 1.33
// tokens per word.
func estimateTokens(text string) float64 {
	return float64(wordCount(text)) * 1.33
}

// chunkWords splits text into word-bounded chunks whose running token
// estimate (len(word)/0.75 per word) stays within budget. Boundaries
// fall only between words, and the final partial chunk is always
// emitted; joining the chunks with single spaces reproduces the
// original word sequence.
func chunkWords(text string, budget float64) []string {
	words := strings.Fields(text)

	var chunks []string
	var current []string
	var currentTokens float64

	for _, w := range words {
		wordTokens := float64(len(w)) / 0.75
		if currentTokens+wordTokens > budget && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{w}
			currentTokens = wordTokens
		} else {
			current = append(current, w)
			currentTokens += wordTokens
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

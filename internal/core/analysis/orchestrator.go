package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
)

const (
	cacheTTL         = time.Hour
	chunkConcurrency = 4
)

// Result is the outcome of one analysis request.
type Result struct {
	Response        string `json:"response"`
	ExecutionTimeMS int    `json:"execution_time_ms"`
	Model           string `json:"model"`
	TokensUsed      int    `json:"tokens_used"`
	ChunksProcessed int    `json:"chunks_processed"`
}

// Orchestrator answers analysis requests against extracted document
// text. Small documents get a single cached model call; oversized ones
// are chunked, analyzed per chunk (uncached) and synthesized. It holds
// no state beyond the cache, so one instance serves all requests.
type Orchestrator struct {
	llm    core.LLMProvider
	cache  core.ResponseCache
	logger *zap.SugaredLogger

	// Retry policy for the model call. Overridable in tests.
	maxAttempts uint64
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func NewOrchestrator(llm core.LLMProvider, cache core.ResponseCache, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		llm:         llm,
		cache:       cache,
		logger:      logger,
		maxAttempts: 3,
		baseDelay:   4 * time.Second,
		maxDelay:    10 * time.Second,
	}
}

// Analyze runs prompt against documentText. Documents within the token
// budget take the direct cached path; larger ones are chunked.
func (o *Orchestrator) Analyze(ctx context.Context, prompt, documentText string) (*Result, error) {
	if estimateTokens(documentText) <= maxPromptTokens {
		return o.analyzeWhole(ctx, prompt, documentText)
	}
	return o.analyzeChunked(ctx, prompt, documentText)
}

// analyzeWhole performs a single model call with cache in front: a hit
// short-circuits the network entirely and returns the stored result.
func (o *Orchestrator) analyzeWhole(ctx context.Context, prompt, documentText string) (*Result, error) {
	key := cacheKey(prompt, documentText)
	if b, ok := o.cache.Get(ctx, key); ok {
		var res Result
		if err := json.Unmarshal(b, &res); err == nil {
			o.logger.Infow("returning cached analysis", "cache_key", key)
			return &res, nil
		}
		o.logger.Warnw("discarding malformed cache entry", "cache_key", key)
	}

	fullPrompt := fmt.Sprintf("%s\n\nDocument:\n%s", prompt, documentText)
	res, err := o.callModel(ctx, fullPrompt)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(res); err == nil {
		o.cache.Set(ctx, key, b, cacheTTL)
	}
	return res, nil
}

// analyzeChunked analyzes each chunk independently (caching disabled),
// then synthesizes the per-chunk responses with one final call.
// Chunk calls may run concurrently but the synthesis prompt preserves
// chunk-index order.
func (o *Orchestrator) analyzeChunked(ctx context.Context, prompt, documentText string) (*Result, error) {
	chunks := chunkWords(documentText, maxPromptTokens)
	responses := make([]string, len(chunks))
	elapsed := make([]int, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			sub := fmt.Sprintf("%s\n\nThis is part %d of %d of the document. Please analyze this section:\n\n%s",
				prompt, i+1, len(chunks), chunk)
			res, err := o.callModel(gctx, sub)
			if err != nil {
				return err
			}
			responses[i] = res.Response
			elapsed[i] = res.ExecutionTimeMS
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Please synthesize the following %d analysis results into a cohesive summary:\n\n", len(chunks))
	for i, r := range responses {
		fmt.Fprintf(&sb, "Part %d: %s\n\n", i+1, r)
	}

	final, err := o.callModel(ctx, sb.String())
	if err != nil {
		return nil, err
	}
	for _, ms := range elapsed {
		final.ExecutionTimeMS += ms
	}
	final.ChunksProcessed = len(chunks)
	return final, nil
}

// callModel issues one prompt to the backend with the retry policy:
// up to maxAttempts attempts, exponential backoff from baseDelay
// capped at maxDelay. Auth failures and a missing credential are not
// retried.
func (o *Orchestrator) callModel(ctx context.Context, prompt string) (*Result, error) {
	start := time.Now()

	var text, model string
	backoff := retry.WithCappedDuration(o.maxDelay, retry.NewExponential(o.baseDelay))
	backoff = retry.WithMaxRetries(o.maxAttempts-1, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		t, m, err := o.llm.Generate(ctx, prompt)
		if err != nil {
			if errors.Is(err, core.ErrNotConfigured) {
				return err
			}
			aiErr := core.ClassifyAIError(err)
			o.logger.Warnw("model call failed", "kind", aiErr.Kind, "error", err)
			if aiErr.Retryable() {
				return retry.RetryableError(aiErr)
			}
			return aiErr
		}
		if t == "" {
			return retry.RetryableError(core.ClassifyAIError(errors.New("empty response from model")))
		}
		text, model = t, m
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Response:        text,
		ExecutionTimeMS: int(time.Since(start).Milliseconds()),
		Model:           model,
		TokensUsed:      wordCount(prompt) + wordCount(text),
		ChunksProcessed: 1,
	}, nil
}

// cacheKey fingerprints a (prompt, document text) pair. SHA-256 over
// the pair with a NUL separator keeps distinct pairs from colliding
// even when one string is a prefix of the other.
func cacheKey(prompt, documentText string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(documentText))
	return "gemini_cache:" + hex.EncodeToString(h.Sum(nil))
}

// Package llmgateway implements the typed boundary to the chat/embedding
// LLM service: ParseText, EmbedBatch, and RerankBatch against a single
// OpenAI-compatible upstream, each call wrapped by a per-model circuit
// breaker, a shared rate limiter, and exponential-backoff retries.
package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kreeda/resumatch/internal/config"
	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/llmgateway/tokencount"
	"github.com/kreeda/resumatch/internal/observability"
	"github.com/kreeda/resumatch/internal/service/ratelimiter"
)

// Gateway implements domain.LLMGateway against an OpenAI-compatible chat
// completions + embeddings API.
type Gateway struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	chatModel    string
	embedModel   string
	embedBatch   int
	embedRetries int
	backoffCfg   func() *backoff.ExponentialBackOff

	breakers *CircuitBreakerManager
	cache    *EmbedCache
	counter  *tokencount.Counter
	limiter  ratelimiter.Limiter
}

// NewGateway builds a Gateway from process configuration, opening the
// filesystem embed cache at cfg.EmbedCacheDir/embed_cache.<hash-of-model>
// when cfg.CacheEnabled.
func NewGateway(cfg config.Config) (*Gateway, error) {
	var cache *EmbedCache
	if cfg.CacheEnabled {
		c, err := NewEmbedCache(cfg.EmbedCacheDir, cfg.EmbeddingsModel)
		if err != nil {
			return nil, fmt.Errorf("op=llmgateway.NewGateway: open embed cache: %w", err)
		}
		cache = c
	}

	maxElapsed, initial, maxInterval, multiplier := cfg.GetAIBackoffConfig()

	return &Gateway{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		apiKey:       cfg.OpenAIAPIKey,
		chatModel:    cfg.ChatModel,
		embedModel:   cfg.EmbeddingsModel,
		embedBatch:   cfg.EmbedBatchSize,
		embedRetries: cfg.EmbedMaxRetries,
		breakers:     NewCircuitBreakerManager(cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerRecoveryTimeout),
		cache:        cache,
		counter:      tokencount.NewCounter(),
		backoffCfg: func() *backoff.ExponentialBackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = initial
			bo.MaxInterval = maxInterval
			bo.Multiplier = multiplier
			bo.MaxElapsedTime = maxElapsed
			return bo
		},
	}, nil
}

// NewGatewayWithLimiter builds a Gateway whose outbound calls are throttled
// by lim, keyed by model name. lim may be nil to disable throttling.
func NewGatewayWithLimiter(cfg config.Config, lim ratelimiter.Limiter) (*Gateway, error) {
	g, err := NewGateway(cfg)
	if err != nil {
		return nil, err
	}
	g.limiter = lim
	return g, nil
}

// allowCall consults the shared rate limiter for one call against model's
// bucket. A denied call returns a retryable error so the surrounding
// backoff loop waits it out; limiter errors fail open.
func (g *Gateway) allowCall(ctx context.Context, model string) error {
	if g.limiter == nil {
		return nil
	}
	allowed, retryAfter, err := g.limiter.Allow(ctx, model, 1)
	if err != nil {
		slog.Warn("rate limiter error, failing open", slog.String("model", model), slog.Any("error", err))
		return nil
	}
	if !allowed {
		slog.Warn("rate limiter denied call", slog.String("model", model), slog.Duration("retry_after", retryAfter))
		return fmt.Errorf("model %s: retry after %s: %w", model, retryAfter, domain.ErrRateLimited)
	}
	return nil
}

// Close releases the embed cache's file handle.
func (g *Gateway) Close() error {
	if g.cache != nil {
		return g.cache.Close()
	}
	return nil
}

// chatMessage is one OpenAI-style chat message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model        string           `json:"model"`
	Messages     []chatMessage    `json:"messages"`
	Functions    []functionSchema `json:"functions"`
	FunctionCall map[string]string `json:"function_call"`
	Temperature  float64          `json:"temperature"`
	MaxTokens    int              `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content      string `json:"content"`
			FunctionCall *struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function_call"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

// ParseText invokes one strict function-call completion for kind at
// temperature 0.0. On a missing function invocation or malformed JSON it
// attempts one repair (trim to the last balanced quote) before failing with
// a *domain.ParseError.
func (g *Gateway) ParseText(ctx context.Context, kind domain.ParseKind, text string, llmCtx map[string]any) (map[string]any, error) {
	schema, err := schemaForKind(kind)
	if err != nil {
		return nil, err
	}

	systemPrompt := fmt.Sprintf("Parse the supplied text into structured JSON. Return EXACTLY ONE function call to `%s`.", schema.Name)
	userPrompt := buildUserPrompt(text, llmCtx)

	raw, err := g.callFunction(ctx, g.chatModel, systemPrompt, userPrompt, schema, 0.0)
	if err != nil {
		return nil, err
	}

	args, parseErr := decodeFunctionArguments(raw)
	if parseErr != nil {
		repaired, ok := repairTruncatedJSON(raw)
		if !ok {
			return nil, &domain.ParseError{Kind: kind, Reason: parseErr.Error()}
		}
		args, parseErr = decodeFunctionArguments(repaired)
		if parseErr != nil {
			return nil, &domain.ParseError{Kind: kind, Reason: "repair attempt failed: " + parseErr.Error()}
		}
	}
	return args, nil
}

func buildUserPrompt(text string, llmCtx map[string]any) string {
	if len(llmCtx) == 0 {
		return text
	}
	ctxJSON, err := json.Marshal(llmCtx)
	if err != nil {
		return text
	}
	return fmt.Sprintf("Context:\n%s\n\nText:\n%s", string(ctxJSON), text)
}

// callFunction issues one chat completion forcing the named function,
// guarded by the per-model circuit breaker and a bounded retry (max 3
// attempts).
func (g *Gateway) callFunction(ctx context.Context, model, systemPrompt, userPrompt string, schema functionSchema, temperature float64) (string, error) {
	breaker := g.breakers.GetBreaker(model)
	if !breaker.ShouldAttempt() {
		return "", &domain.CircuitOpenError{Model: model}
	}

	req := chatCompletionRequest{
		Model:        model,
		Messages:     []chatMessage{{Role: "system", Content: systemPrompt}, {Role: "user", Content: userPrompt}},
		Functions:    []functionSchema{schema},
		FunctionCall: map[string]string{"name": schema.Name},
		Temperature:  temperature,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("op=llmgateway.callFunction: encode request: %w", err)
	}

	promptTokens, _ := g.counter.CountChatTokens(systemPrompt, userPrompt, model)

	callStart := time.Now()
	var argsJSON string
	attempt := 0
	callErr := backoff.Retry(func() error {
		attempt++
		if err := g.allowCall(ctx, model); err != nil {
			return err
		}
		var resp chatCompletionResponse
		status, err := g.postJSON(ctx, "/chat/completions", body, &resp)
		if err != nil {
			return err
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			return fmt.Errorf("chat completion status %d", status)
		}
		if status >= 400 {
			return backoff.Permanent(fmt.Errorf("chat completion status %d", status))
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.FunctionCall == nil {
			return backoff.Permanent(&domain.ParseError{Reason: "model did not call the requested function"})
		}
		argsJSON = resp.Choices[0].Message.FunctionCall.Arguments
		if resp.Usage.TotalTokens > 0 {
			observability.RecordLLMTokenUsage(model, "prompt", resp.Usage.PromptTokens)
			observability.RecordLLMTokenUsage(model, "completion", resp.Usage.CompletionTokens)
			slog.Debug("llmgateway chat tokens",
				slog.String("model", model),
				slog.Int("prompt_tokens", resp.Usage.PromptTokens),
				slog.Int("completion_tokens", resp.Usage.CompletionTokens))
		} else {
			observability.RecordLLMTokenUsage(model, "prompt_estimated", promptTokens)
			slog.Debug("llmgateway chat tokens (estimated)", slog.String("model", model), slog.Int("prompt_tokens_est", promptTokens))
		}
		return nil
	}, withMaxAttempts(3))

	if callErr != nil {
		breaker.RecordFailure()
		observability.RecordLLMRequest(model, "chat", "error", time.Since(callStart))
		return "", fmt.Errorf("op=llmgateway.callFunction: %w", callErr)
	}
	breaker.RecordSuccess()
	observability.RecordLLMRequest(model, "chat", "success", time.Since(callStart))
	return argsJSON, nil
}

func withMaxAttempts(n uint64) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.Multiplier = 1.0
	bo.MaxInterval = 10 * time.Second
	return backoff.WithMaxRetries(bo, n-1)
}

// decodeFunctionArguments parses a function call's arguments JSON into a
// generic map.
func decodeFunctionArguments(raw string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// repairTruncatedJSON attempts one repair of a truncated response: trim
// back to the last quote and close that unterminated string, then close
// any still-open braces. An unterminated string is the common truncation
// failure.
func repairTruncatedJSON(raw string) (string, bool) {
	trimmed := raw
	if strings.Count(trimmed, `"`)%2 != 0 {
		idx := strings.LastIndex(trimmed, `"`)
		if idx < 0 {
			return "", false
		}
		trimmed = trimmed[:idx+1] + `"`
	}

	opens, closes := 0, 0
	for _, r := range trimmed {
		switch r {
		case '{':
			opens++
		case '}':
			closes++
		}
	}
	for i := 0; i < opens-closes; i++ {
		trimmed += "}"
	}

	var probe map[string]any
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return "", false
	}
	return trimmed, true
}

// embeddingRequest/-Response are the OpenAI-compatible embeddings wire
// shapes.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// EmbedBatch returns one L2-normalised vector per input text. Inputs are
// deduplicated against the on-disk content-hash cache first; only cache
// misses are sent to the embeddings endpoint, in batches of at most
// EmbedBatchSize, retried with exponential backoff (base 1.4, up to
// EmbedMaxRetries attempts).
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if g.cache != nil {
			if v, ok := g.cache.Get(t); ok {
				observability.RecordEmbedCacheLookup(true)
				out[i] = v
				continue
			}
			observability.RecordEmbedCacheLookup(false)
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	batchSize := g.embedBatch
	if batchSize <= 0 {
		batchSize = 128
	}

	for start := 0; start < len(missTexts); start += batchSize {
		end := start + batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vecs, err := g.embedOneBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range vecs {
			norm := l2Normalize(v)
			idx := missIdx[start+j]
			out[idx] = norm
			if g.cache != nil {
				if err := g.cache.Put(missTexts[start+j], norm); err != nil {
					slog.Warn("embed cache write failed", slog.Any("error", err))
				}
			}
		}
	}

	return out, nil
}

func (g *Gateway) embedOneBatch(ctx context.Context, texts []string) ([][]float32, error) {
	breaker := g.breakers.GetBreaker(g.embedModel)
	if !breaker.ShouldAttempt() {
		return nil, &domain.CircuitOpenError{Model: g.embedModel}
	}

	body, err := json.Marshal(embeddingRequest{Model: g.embedModel, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("op=llmgateway.embedOneBatch: encode request: %w", err)
	}

	maxRetries := g.embedRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	bo := g.backoffCfg()
	retrier := backoff.WithMaxRetries(bo, uint64(maxRetries-1))

	callStart := time.Now()
	var resp embeddingResponse
	callErr := backoff.Retry(func() error {
		if err := g.allowCall(ctx, g.embedModel); err != nil {
			return err
		}
		var e embeddingResponse
		status, err := g.postJSON(ctx, "/embeddings", body, &e)
		if err != nil {
			return err
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			return fmt.Errorf("embeddings status %d", status)
		}
		if status >= 400 {
			return backoff.Permanent(fmt.Errorf("embeddings status %d", status))
		}
		resp = e
		return nil
	}, retrier)

	if callErr != nil {
		breaker.RecordFailure()
		observability.RecordLLMRequest(g.embedModel, "embed", "error", time.Since(callStart))
		return nil, fmt.Errorf("op=llmgateway.embedOneBatch: %w", callErr)
	}
	breaker.RecordSuccess()
	observability.RecordLLMRequest(g.embedModel, "embed", "success", time.Since(callStart))

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("op=llmgateway.embedOneBatch: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			v[j] = float32(f)
		}
		out[d.Index] = v
	}
	return out, nil
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

type rerankFunctionResponse struct {
	RankedCandidates []struct {
		CandidateID         string   `json:"candidate_id"`
		ReRankScore         float64  `json:"re_rank_score"`
		MeetsRequirements   bool     `json:"meets_requirements"`
		RequirementsMet     []string `json:"requirements_met"`
		RequirementsMissing []string `json:"requirements_missing"`
	} `json:"ranked_candidates"`
}

// RerankBatch submits up to 30 candidate summaries for LLM-refined
// re-ranking against hiring criteria. Post-call, requirements_met and
// requirements_missing are filtered against allowedFields as a defence
// against hallucinated field names.
func (g *Gateway) RerankBatch(ctx context.Context, candidates []domain.CandidateSummary, criteria domain.RerankCriteria) ([]domain.RankedCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) > 30 {
		return nil, fmt.Errorf("op=llmgateway.RerankBatch: batch size %d exceeds 30", len(candidates))
	}

	allowed := make(map[string]bool, len(criteria.AllowedFields))
	for _, f := range criteria.AllowedFields {
		allowed[f] = true
	}

	schema := rerankFunction(criteria.AllowedFields)
	systemPrompt := "You are a candidate re-ranker and compliance validator. Validate each candidate's programmatic compliance results and re-rank by validated compliance plus all scores. Only return requirement types from the allowed list."
	userPrompt := buildRerankUserPrompt(candidates, criteria)

	raw, err := g.callFunction(ctx, g.chatModel, systemPrompt, userPrompt, schema, 0.0)
	if err != nil {
		return nil, err
	}

	var parsed rerankFunctionResponse
	if jsonErr := json.Unmarshal([]byte(raw), &parsed); jsonErr != nil {
		repaired, ok := repairTruncatedJSON(raw)
		if !ok {
			return nil, &domain.ParseError{Kind: domain.ParseKind("rerank"), Reason: jsonErr.Error()}
		}
		if jsonErr := json.Unmarshal([]byte(repaired), &parsed); jsonErr != nil {
			return nil, &domain.ParseError{Kind: domain.ParseKind("rerank"), Reason: "repair attempt failed: " + jsonErr.Error()}
		}
	}

	byID := make(map[string]domain.CandidateSummary, len(candidates))
	for _, c := range candidates {
		byID[c.ResumeID] = c
	}

	out := make([]domain.RankedCandidate, 0, len(parsed.RankedCandidates))
	seen := make(map[string]bool, len(parsed.RankedCandidates))
	for _, rc := range parsed.RankedCandidates {
		if _, ok := byID[rc.CandidateID]; !ok {
			continue // hallucinated id not in the input batch
		}
		seen[rc.CandidateID] = true
		out = append(out, domain.RankedCandidate{
			ResumeID:            rc.CandidateID,
			ReRankScore:         clamp01(rc.ReRankScore),
			MeetsRequirements:   rc.MeetsRequirements,
			RequirementsMet:     filterAllowed(rc.RequirementsMet, allowed),
			RequirementsMissing: filterAllowed(rc.RequirementsMissing, allowed),
		})
	}

	// Any candidate the model silently dropped falls back to its
	// programmatic compliance summary rather than vanishing from the batch.
	for _, c := range candidates {
		if seen[c.ResumeID] {
			continue
		}
		out = append(out, domain.RankedCandidate{
			ResumeID:            c.ResumeID,
			ReRankScore:         c.FinalScore,
			MeetsRequirements:   c.Compliance.MeetsAll,
			RequirementsMet:     filterAllowed(c.Compliance.Met, allowed),
			RequirementsMissing: filterAllowed(c.Compliance.Missing, allowed),
		})
	}

	return out, nil
}

// candidateWire is the abbreviated per-candidate record serialised into the
// rerank user prompt: single-letter score keys (p/k/s/f) keep the batch
// compact enough for 30 candidates in one completion.
type candidateWire struct {
	ID         string               `json:"candidate_id"`
	Name       string               `json:"name"`
	P          float64              `json:"p"`
	K          float64              `json:"k"`
	S          float64              `json:"s"`
	F          float64              `json:"f"`
	Experience float64              `json:"experience_years"`
	Location   string               `json:"location,omitempty"`
	Role       string               `json:"role,omitempty"`
	Skills     []string           `json:"skills,omitempty"`
	Projects   []projectTupleWire `json:"projects,omitempty"`
	Compliance complianceWire     `json:"compliance"`
}

type projectTupleWire struct {
	Name     string   `json:"name"`
	Approach string   `json:"approach,omitempty"`
	Tech     []string `json:"tech,omitempty"`
}

type complianceWire struct {
	MeetsAll bool     `json:"meets_all"`
	Met      []string `json:"met"`
	Missing  []string `json:"missing"`
}

func projectTuples(in []domain.ProjectTuple) []projectTupleWire {
	out := make([]projectTupleWire, len(in))
	for i, p := range in {
		out[i] = projectTupleWire{Name: p.Name, Approach: p.Approach, Tech: p.Tech}
	}
	return out
}

func buildRerankUserPrompt(candidates []domain.CandidateSummary, criteria domain.RerankCriteria) string {
	wires := make([]candidateWire, len(candidates))
	for i, c := range candidates {
		wires[i] = candidateWire{
			ID:         c.ResumeID,
			Name:       c.Name,
			P:          c.ProjectScore,
			K:          c.KeywordScore,
			S:          c.SemanticScore,
			F:          c.FinalScore,
			Experience: c.YearsExperience,
			Location:   c.Location,
			Role:       c.Role,
			Skills:     c.TopSkills,
			Projects:   projectTuples(c.Projects),
			Compliance: complianceWire{
				MeetsAll: c.Compliance.MeetsAll,
				Met:      c.Compliance.Met,
				Missing:  c.Compliance.Missing,
			},
		}
	}
	payload := map[string]any{
		"allowed_fields":      criteria.AllowedFields,
		"filter_requirements": criteria.RawPrompt,
		"candidates":          wires,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return criteria.RawPrompt
	}
	return string(b)
}

func filterAllowed(fields []string, allowed map[string]bool) []string {
	if len(allowed) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if allowed[f] {
			out = append(out, f)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// postJSON issues one POST to the chat/embeddings API and decodes the JSON
// body into out, returning the HTTP status code regardless of success so
// callers can classify retryable vs. permanent failures.
func (g *Gateway) postJSON(ctx context.Context, path string, body []byte, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decErr := json.NewDecoder(resp.Body).Decode(out); decErr != nil {
			return resp.StatusCode, decErr
		}
	}
	return resp.StatusCode, nil
}

var _ domain.LLMGateway = (*Gateway)(nil)

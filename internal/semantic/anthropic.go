package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/config"
	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/resilience"
	"github.com/borealmotors/reconcile-cli/pkg/anthropic"
)

// AnthropicResolver implements Resolver against the Anthropic messages
// API. The three operations share one rate limiter and one circuit
// breaker because they hit the same upstream.
type AnthropicResolver struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	limiter   *rate.Limiter
}

// NewAnthropicResolver wires a resolver from configuration.
func NewAnthropicResolver(client anthropic.Client, aiCfg config.AnthropicConfig, cfg config.ResolverConfig) *AnthropicResolver {
	cbCfg := resilience.FromCircuitConfig(cfg.BreakerThreshold, cfg.BreakerCooldownSecs)
	cbCfg.ShouldTrip = retryable
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("resolver circuit state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	retry := resilience.FromRetryConfig(cfg.MaxAttempts, cfg.RetryBackoffMs, cfg.RetryMaxBackoffMs)
	retry.ShouldRetry = retryable

	limit := rate.Limit(cfg.RateLimit)
	if limit <= 0 {
		limit = rate.Inf
	}

	r := &AnthropicResolver{
		client:    client,
		model:     aiCfg.Model,
		maxTokens: int64(aiCfg.MaxTokens),
		timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		retry:     retry,
		breaker:   resilience.NewCircuitBreaker(cbCfg),
		limiter:   rate.NewLimiter(limit, max(cfg.Burst, 1)),
	}
	if r.maxTokens <= 0 {
		r.maxTokens = 1024
	}
	if r.timeout <= 0 {
		r.timeout = 20 * time.Second
	}
	return r
}

// BreakerState exposes the circuit state for health endpoints.
func (r *AnthropicResolver) BreakerState() resilience.CircuitState {
	return r.breaker.State()
}

// WarmCache primes the prompt cache with the three system prompts so a
// batch run pays each cache write once instead of on its first row.
func (r *AnthropicResolver) WarmCache(ctx context.Context) error {
	for _, text := range []string{matchSystemPrompt, modifierSystemPrompt, consistencySystemPrompt} {
		req := anthropic.MessageRequest{
			Model:     r.model,
			MaxTokens: 1,
			System:    anthropic.BuildCachedSystemBlocks(text),
			Messages:  []anthropic.Message{{Role: "user", Content: "ok"}},
		}
		if _, err := anthropic.PrimerRequest(ctx, r.client, req); err != nil {
			return eris.Wrap(err, "semantic: warm cache")
		}
	}
	return nil
}

// MatchBaseModel asks which catalog family a price list entry belongs
// to. The returned family is always one of the given candidates.
func (r *AnthropicResolver) MatchBaseModel(ctx context.Context, q MatchQuery) (*BaseModelMatch, error) {
	if len(q.Candidates) == 0 {
		return nil, ErrNoMatch
	}

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(matchSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: matchUserPrompt(q)}},
		Temperature: &temp,
	}

	text, err := r.call(ctx, "base_model_match", req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Family     string  `json:"family"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &parsed); err != nil {
		return nil, eris.Wrap(err, "semantic: parse match response")
	}

	if strings.TrimSpace(parsed.Family) == "" || strings.EqualFold(strings.TrimSpace(parsed.Family), "none") {
		return nil, ErrNoMatch
	}

	family, ok := canonicalCandidate(parsed.Family, q.Candidates)
	if !ok {
		zap.L().Warn("resolver proposed a family outside the candidate list",
			zap.String("brand", q.Brand),
			zap.String("model_name", q.ModelName),
			zap.String("proposed", parsed.Family),
		)
		return nil, ErrNoMatch
	}

	return &BaseModelMatch{
		Family:     family,
		Confidence: clamp01(parsed.Confidence),
		Reasoning:  parsed.Reasoning,
	}, nil
}

// ResolveModifier asks what an unknown option token changes on the sled.
func (r *AnthropicResolver) ResolveModifier(ctx context.Context, q ModifierQuery) (*ModifierResolution, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(modifierSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: modifierUserPrompt(q)}},
		Temperature: &temp,
	}

	text, err := r.call(ctx, "modifier_resolution", req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
		Deltas     []struct {
			Path  string `json:"path"`
			Op    string `json:"op"`
			Value any    `json:"value"`
		} `json:"deltas"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &parsed); err != nil {
		return nil, eris.Wrap(err, "semantic: parse modifier response")
	}

	category, err := parseCategory(parsed.Category)
	if err != nil {
		return nil, err
	}

	deltas := make([]model.FieldDelta, 0, len(parsed.Deltas))
	for _, d := range parsed.Deltas {
		if strings.TrimSpace(d.Path) == "" {
			return nil, eris.Errorf("semantic: modifier %q: delta missing path", q.Token)
		}
		op := model.DeltaOp(d.Op)
		switch op {
		case model.OpReplace, model.OpMerge:
		case "":
			op = model.OpReplace
		default:
			return nil, eris.Errorf("semantic: modifier %q: unknown delta op %q", q.Token, d.Op)
		}
		deltas = append(deltas, model.FieldDelta{Path: d.Path, Op: op, Value: d.Value})
	}

	return &ModifierResolution{
		Category:   category,
		Deltas:     deltas,
		Confidence: clamp01(parsed.Confidence),
	}, nil
}

// CheckConsistency scores the assembled spec against the original price
// list line.
func (r *AnthropicResolver) CheckConsistency(ctx context.Context, spec model.SpecTree, rowText string) (float64, error) {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return 0, eris.Wrap(err, "semantic: marshal spec")
	}

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(consistencySystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: consistencyUserPrompt(rowText, string(specJSON))}},
		Temperature: &temp,
	}

	text, err := r.call(ctx, "consistency_check", req)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Score  float64  `json:"score"`
		Issues []string `json:"issues"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &parsed); err != nil {
		return 0, eris.Wrap(err, "semantic: parse consistency response")
	}

	if len(parsed.Issues) > 0 {
		zap.L().Debug("consistency check reported issues",
			zap.String("row", rowText),
			zap.Strings("issues", parsed.Issues),
		)
	}

	return clamp01(parsed.Score), nil
}

// call runs one resolver request through the rate limiter, circuit
// breaker and per-attempt timeout, retrying transient failures.
func (r *AnthropicResolver) call(ctx context.Context, operation string, req anthropic.MessageRequest) (string, error) {
	cfg := r.retry
	cfg.OnRetry = resilience.RetryLogger("anthropic", operation)

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "semantic: rate limit wait")
		}
		return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			callCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			return r.client.CreateMessage(callCtx, req)
		})
	})
	if err != nil {
		return "", err
	}

	resp.Usage.LogCost(r.model, operation)

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", eris.Errorf("semantic: %s returned an empty response", operation)
	}
	return text, nil
}

// retryable reports whether a resolver call failure is worth another
// attempt. Timeouts and upstream throttling are; malformed requests and
// auth failures are not.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	if resilience.IsTransient(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate_limit_error", "overloaded_error", "api_error", "too many requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// canonicalCandidate maps the resolver's echoed family name back onto
// the candidate it came from, so downstream key building uses catalog
// spelling rather than model output.
func canonicalCandidate(proposed string, candidates []string) (string, bool) {
	want := catalog.Normalize(proposed)
	for _, c := range candidates {
		if catalog.Normalize(c) == want {
			return c, true
		}
	}
	return "", false
}

func parseCategory(s string) (model.ModifierCategory, error) {
	c := model.ModifierCategory(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case model.CategoryColor, model.CategoryTrack, model.CategorySuspension,
		model.CategoryGauge, model.CategoryStarter, model.CategoryFeature,
		model.CategoryAccessory:
		return c, nil
	default:
		return "", eris.Errorf("semantic: unknown modifier category %q", s)
	}
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

// extractText concatenates the text content blocks of a response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// cleanJSON extracts a JSON object from text that may carry markdown
// code fences or prose around it.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

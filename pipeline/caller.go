package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/llm"
	"github.com/BaSui01/meshflow/llm/cache"
	"github.com/BaSui01/meshflow/llm/retry"
	"github.com/BaSui01/meshflow/llm/tokenizer"
	"github.com/BaSui01/meshflow/types"
)

// caller wraps a provider with the response cache and retry policy shared
// by all stages.
type caller struct {
	provider llm.Provider
	cache    *cache.ResponseCache
	policy   retry.Policy
	logger   *zap.Logger
}

func newCaller(provider llm.Provider, responseCache *cache.ResponseCache, policy retry.Policy, logger *zap.Logger) *caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Logger = logger
	return &caller{
		provider: provider,
		cache:    responseCache,
		policy:   policy,
		logger:   logger,
	}
}

// complete runs a completion through the cache and retry layers. Responses
// missing usage numbers get token estimates filled in.
func (c *caller) complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	key := cache.Key(req.Model, req.Messages)
	if c.cache != nil {
		if resp, ok := c.cache.Get(ctx, key); ok {
			c.logger.Debug("llm cache hit", zap.String("model", req.Model), zap.String("key", key))
			return resp, nil
		}
	}

	resp, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*llm.ChatResponse, error) {
		return c.provider.Completion(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if resp.Usage.TotalTokens == 0 {
		fillUsageEstimate(req, resp)
	}

	if c.cache != nil {
		c.cache.Set(ctx, key, resp)
	}
	return resp, nil
}

// fillUsageEstimate backfills token counts for providers that omit usage.
func fillUsageEstimate(req *llm.ChatRequest, resp *llm.ChatResponse) {
	tok := tokenizer.GetOrEstimator(req.Model)

	msgs := make([]tokenizer.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, tokenizer.Message{Role: string(m.Role), Content: m.Content})
	}
	if prompt, err := tok.CountMessages(msgs); err == nil {
		resp.Usage.PromptTokens = prompt
	}
	if completion, err := tok.CountTokens(resp.Content()); err == nil {
		resp.Usage.CompletionTokens = completion
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
}

// usageFor builds the per-stage usage record from a completed call.
func usageFor(stage, model string, resp *llm.ChatResponse, start time.Time) types.StageUsage {
	u := types.StageUsage{
		Stage:    stage,
		Model:    model,
		Duration: time.Since(start),
	}
	if resp != nil {
		u.PromptTokens = resp.Usage.PromptTokens
		u.CompletionTokens = resp.Usage.CompletionTokens
	}
	return u
}

// snippet trims a model reply for debug logs.
func snippet(s string) string {
	const max = 500
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

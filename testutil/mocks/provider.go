// Package mocks holds test doubles for the LLM provider contract.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/meshflow/llm"
	"github.com/BaSui01/meshflow/pipeline"
	"github.com/BaSui01/meshflow/testutil/fixtures"
)

// ScriptedProvider answers each pipeline stage with a canned reply,
// routed by matching the system prompt. Defaults come from the
// fixtures package; replies and failures are configurable per stage.
type ScriptedProvider struct {
	mu       sync.Mutex
	replies  map[string]string
	errs     map[string]error
	usage    llm.ChatUsage
	calls    []string
	requests []*llm.ChatRequest
}

// NewScriptedProvider creates a provider scripted for a full successful
// stool generation.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{
		replies: map[string]string{
			pipeline.StageClassify:    fixtures.ClassifierPass,
			pipeline.StageDecompose:   fixtures.Decomposition,
			pipeline.StagePlan:        fixtures.Plan,
			pipeline.StageConnections: fixtures.Connections,
			pipeline.StageMaterials:   fixtures.Materials,
		},
		errs:  map[string]error{},
		usage: llm.ChatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// WithReply overrides the reply for one stage.
func (p *ScriptedProvider) WithReply(stage, content string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[stage] = content
	return p
}

// WithStageError makes one stage fail.
func (p *ScriptedProvider) WithStageError(stage string, err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[stage] = err
	return p
}

// WithUsage overrides the token usage attached to every reply.
func (p *ScriptedProvider) WithUsage(prompt, completion int) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usage = llm.ChatUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
	return p
}

// Calls returns the stages called so far, in order.
func (p *ScriptedProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Requests returns every recorded request.
func (p *ScriptedProvider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.ChatRequest(nil), p.requests...)
}

// routeStage identifies the pipeline stage from its system prompt.
func routeStage(req *llm.ChatRequest) string {
	if len(req.Messages) == 0 {
		return "unknown"
	}
	sys := req.Messages[0].Content
	switch {
	case strings.Contains(sys, "classifying indoor objects"):
		return pipeline.StageClassify
	case strings.Contains(sys, "geometric decomposition"):
		return pipeline.StageDecompose
	case strings.Contains(sys, "CRITICAL ORDERING RULES"):
		return pipeline.StagePlan
	case strings.Contains(sys, "connection map"):
		return pipeline.StageConnections
	case strings.Contains(sys, "materials expert"):
		return pipeline.StageMaterials
	default:
		return "unknown"
	}
}

// Completion implements llm.Provider.
func (p *ScriptedProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stage := routeStage(req)
	p.calls = append(p.calls, stage)
	p.requests = append(p.requests, req)

	if err, ok := p.errs[stage]; ok {
		return nil, err
	}
	content, ok := p.replies[stage]
	if !ok {
		return nil, fmt.Errorf("unscripted stage %q", stage)
	}
	return &llm.ChatResponse{
		Provider: p.Name(),
		Model:    req.Model,
		Choices: []llm.ChatChoice{
			{Message: llm.Message{Role: llm.RoleAssistant, Content: content}, FinishReason: "stop"},
		},
		Usage:     p.usage,
		CreatedAt: time.Now(),
	}, nil
}

// Stream implements llm.Provider by sending the routed reply as a
// single chunk.
func (p *ScriptedProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.Completion(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.StreamChunk{
		Model: resp.Model,
		Delta: llm.Message{Role: llm.RoleAssistant, Content: resp.Content()},
	}
	ch <- llm.StreamChunk{Model: resp.Model, FinishReason: "stop", Usage: &resp.Usage}
	close(ch)
	return ch, nil
}

// HealthCheck implements llm.Provider.
func (p *ScriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Name implements llm.Provider.
func (p *ScriptedProvider) Name() string { return "scripted" }

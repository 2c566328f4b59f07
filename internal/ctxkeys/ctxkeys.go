// Package ctxkeys defines the context keys shared between the HTTP layer
// and the generation pipeline.
package ctxkeys

import "context"

type contextKey string

const (
	traceIDKey      contextKey = "trace_id"
	requestIDKey    contextKey = "request_id"
	clientKey       contextKey = "client"
	generationIDKey contextKey = "generation_id"
	llmModelKey     contextKey = "llm_model"
)

// WithTraceID stores the request trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID reads the request trace ID.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRequestID stores the HTTP request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID reads the HTTP request ID.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithClient stores the authenticated client principal, either a JWT
// subject or an API key fingerprint.
func WithClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// Client reads the authenticated client principal.
func Client(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(clientKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithGenerationID stores the generation run ID.
func WithGenerationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, generationIDKey, id)
}

// GenerationID reads the generation run ID.
func GenerationID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(generationIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithLLMModel stores a per-request model override.
func WithLLMModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, llmModelKey, model)
}

// LLMModel reads the per-request model override.
func LLMModel(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(llmModelKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

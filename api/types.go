package api

import (
	"strings"

	"github.com/BaSui01/meshflow/store"
	"github.com/BaSui01/meshflow/types"
)

// maxPromptLength bounds request prompts. Longer prompts are almost
// certainly pasted documents, not furniture descriptions.
const maxPromptLength = 4096

// GenerateRequest is the body of POST /api/v1/generate and the first
// client frame on the generate WebSocket.
type GenerateRequest struct {
	// Prompt is the natural language furniture description.
	Prompt string `json:"prompt"`
	// RawPath overrides where the raw plan JSON is written.
	RawPath string `json:"raw_path,omitempty"`
	// ValidatedPath overrides where the validated plan JSON is written.
	ValidatedPath string `json:"validated_path,omitempty"`
	// BuildBlend overrides the configured Blender toggle when set.
	BuildBlend *bool `json:"build_blend,omitempty"`
}

// Validate checks the request for obvious mistakes.
func (r *GenerateRequest) Validate() *types.Error {
	if strings.TrimSpace(r.Prompt) == "" {
		return types.NewError(types.ErrInvalidRequest, "prompt is required")
	}
	if len(r.Prompt) > maxPromptLength {
		return types.NewError(types.ErrInvalidRequest, "prompt is too long")
	}
	return nil
}

// ListGenerationsResponse is the body of GET /api/v1/generations.
type ListGenerationsResponse struct {
	Generations []store.GenerationRecord `json:"generations"`
	Total       int64                    `json:"total"`
	Limit       int                      `json:"limit"`
	Offset      int                      `json:"offset"`
}

// WebSocket frame types. Stage frames reuse the pipeline event types
// stage_started, stage_completed and stage_failed.
const (
	WSFrameResult = "result"
	WSFrameError  = "error"
)

// WSResult is the final frame on the generate WebSocket: the stored
// record on success, the failure otherwise.
type WSResult struct {
	Type   string                  `json:"type"`
	Record *store.GenerationRecord `json:"record,omitempty"`
	Error  *types.Error            `json:"error,omitempty"`
}

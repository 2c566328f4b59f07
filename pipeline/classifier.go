package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/llm"
	"github.com/BaSui01/meshflow/llm/structured"
	"github.com/BaSui01/meshflow/types"
)

const classifierSystemPrompt = `You are an expert at classifying indoor objects and furniture. Your task is to determine if a described object is appropriate for indoor furniture generation.
DO NOT use keywords to make your decision. Instead, analyze the object's:
1. Primary use context (indoor vs outdoor)
2. Physical characteristics (tangible form, size, stability)
3. Relationship to indoor living spaces

Examples:
Input: "A comfortable rocking chair with curved runners"
Output: {
    "classification": "pass",
    "explanation": "Primary indoor seating furniture with physical form suitable for indoor spaces"
}

Input: "A garden gnome"
Output: {
    "classification": "does not pass",
    "explanation": "Primarily outdoor decorative item not serving indoor furnishing purposes"
}

Input: "The concept of time"
Output: {
    "classification": "does not pass",
    "explanation": "Abstract concept without physical form or indoor utility"
}

Input: "A wall-mounted coat rack"
Output: {
    "classification": "pass",
    "explanation": "Indoor utility fixture for organizing clothing and accessories"
}

Respond with a JSON object containing 'classification' (either 'pass' or 'does not pass') and 'explanation'.`

// Classifier decides whether a description is buildable indoor furniture.
type Classifier struct {
	caller *caller
	cfg    config.StageConfig
	logger *zap.Logger
}

// NewClassifier creates the classification stage.
func NewClassifier(c *caller, cfg config.StageConfig, logger *zap.Logger) *Classifier {
	return &Classifier{caller: c, cfg: cfg, logger: logger.With(zap.String("stage", StageClassify))}
}

// Classify runs the stage. A verdict other than "pass" is returned without
// error; transport and decode failures are errors.
func (c *Classifier) Classify(ctx context.Context, description string) (types.Classification, types.StageUsage, error) {
	start := time.Now()

	req := &llm.ChatRequest{
		Model: c.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: classifierSystemPrompt},
			{Role: llm.RoleUser, Content: description},
		},
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: llm.JSONObject(),
	}

	resp, err := c.caller.complete(ctx, req)
	if err != nil {
		return types.Classification{}, usageFor(StageClassify, c.cfg.Model, nil, start), err
	}

	verdict, err := structured.Decode[types.Classification](resp.Content())
	usage := usageFor(StageClassify, c.cfg.Model, resp, start)
	if err != nil {
		return types.Classification{}, usage,
			types.NewError(types.ErrGenerationFailed, "classifier returned malformed JSON").
				WithStage(StageClassify).WithCause(err)
	}

	c.logger.Info("classification complete",
		zap.String("verdict", verdict.Verdict),
		zap.String("explanation", verdict.Explanation))
	return verdict, usage, nil
}

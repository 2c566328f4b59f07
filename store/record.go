package store

import (
	"errors"
	"time"

	"github.com/BaSui01/meshflow/types"
)

// Status tracks a generation through its lifecycle.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrNotFound means no record matched the requested ID.
var ErrNotFound = errors.New("generation not found")

// GenerationRecord is one pipeline run: prompt, outcome, artifact paths and
// aggregate usage.
type GenerationRecord struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	Prompt         string `gorm:"not null" json:"prompt"`
	Status         Status `gorm:"size:16;index" json:"status"`
	Classification string `gorm:"size:32" json:"classification,omitempty"`
	Explanation    string `json:"explanation,omitempty"`
	AssetType      string `gorm:"size:32" json:"asset_type,omitempty"`
	Style          string `gorm:"size:32" json:"style,omitempty"`
	ComponentCount int    `json:"component_count"`
	OperationCount int    `json:"operation_count"`
	RawPath        string `json:"raw_path,omitempty"`
	ValidatedPath  string `json:"validated_path,omitempty"`
	BlendPath      string `json:"blend_path,omitempty"`

	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	DurationMS       int64 `json:"duration_ms"`

	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Stages []StageRecord `gorm:"foreignKey:GenerationID" json:"stages,omitempty"`
}

// StageRecord is the per-stage usage breakdown of one generation.
type StageRecord struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	GenerationID     string `gorm:"size:36;index" json:"generation_id"`
	Stage            string `gorm:"size:32" json:"stage"`
	Model            string `gorm:"size:64" json:"model,omitempty"`
	DurationMS       int64  `json:"duration_ms"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Status           string `gorm:"size:16" json:"status"`
	Error            string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes stored generations.
type Stats struct {
	Total         int64            `json:"total"`
	ByStatus      map[Status]int64 `json:"by_status"`
	AvgDurationMS float64          `json:"avg_duration_ms"`
}

// RecordFromResult maps a pipeline result onto a record. The status follows
// the error: nil means completed, a prompt rejection marks the record
// rejected, anything else failed.
func RecordFromResult(res *types.Result, runErr error) *GenerationRecord {
	rec := &GenerationRecord{Status: StatusCompleted}
	if runErr != nil {
		rec.Error = runErr.Error()
		if types.GetErrorCode(runErr) == types.ErrPromptRejected {
			rec.Status = StatusRejected
		} else {
			rec.Status = StatusFailed
		}
	}
	if res == nil {
		return rec
	}

	rec.Prompt = res.Prompt
	rec.Classification = res.Classification.Verdict
	rec.Explanation = res.Classification.Explanation
	rec.ComponentCount = len(res.Components)
	for _, comp := range res.Components {
		rec.OperationCount += len(comp.Operations)
	}
	rec.RawPath = res.RawPath
	rec.ValidatedPath = res.ValidatedPath
	rec.BlendPath = res.BlendPath
	rec.DurationMS = res.Duration.Milliseconds()
	for _, stage := range res.Stages {
		rec.PromptTokens += stage.PromptTokens
		rec.CompletionTokens += stage.CompletionTokens
	}
	return rec
}

// StageRecordsFor converts per-stage usage into rows for one generation.
func StageRecordsFor(generationID string, stages []types.StageUsage) []StageRecord {
	records := make([]StageRecord, 0, len(stages))
	for _, stage := range stages {
		records = append(records, StageRecord{
			GenerationID:     generationID,
			Stage:            stage.Stage,
			Model:            stage.Model,
			DurationMS:       stage.Duration.Milliseconds(),
			PromptTokens:     stage.PromptTokens,
			CompletionTokens: stage.CompletionTokens,
			Status:           "completed",
		})
	}
	return records
}

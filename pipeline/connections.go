package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/llm"
	"github.com/BaSui01/meshflow/llm/structured"
	"github.com/BaSui01/meshflow/types"
)

const connectionsSystemPrompt = `Given these components, output ONLY a connection map showing which components should connect.

Example Input: Table with 4 legs and a top
Example Output:
{
    "Table_Top": ["Table_Leg_1", "Table_Leg_2", "Table_Leg_3", "Table_Leg_4"],
    "Table_Leg_1": ["Table_Top"],
    "Table_Leg_2": ["Table_Top"],
    "Table_Leg_3": ["Table_Top"],
    "Table_Leg_4": ["Table_Top"]
}

DO NOT output component definitions. ONLY output the connection map.`

// ConnectionMapper asks the model which components should touch. The
// geometry validator uses the map to decide what gets snapped to what.
type ConnectionMapper struct {
	caller *caller
	cfg    config.StageConfig
	logger *zap.Logger
}

// NewConnectionMapper creates the connection mapping stage.
func NewConnectionMapper(c *caller, cfg config.StageConfig, logger *zap.Logger) *ConnectionMapper {
	return &ConnectionMapper{caller: c, cfg: cfg, logger: logger.With(zap.String("stage", StageConnections))}
}

// Map returns the adjacency map keyed by component name. Only the names are
// sent upstream. A failed call or unparseable reply falls back to the name
// heuristic rather than failing the pipeline; context cancellation still
// propagates.
func (m *ConnectionMapper) Map(ctx context.Context, components []types.Component) (map[string][]string, types.StageUsage, error) {
	start := time.Now()

	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Name
	}
	payload, err := json.Marshal(names)
	if err != nil {
		return nil, types.StageUsage{}, err
	}

	// This stage runs in plain text mode. The reply is JSON by instruction
	// only, so decoding stays tolerant of fences and prose.
	req := &llm.ChatRequest{
		Model: m.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: connectionsSystemPrompt},
			{Role: llm.RoleUser, Content: string(payload)},
		},
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	}

	resp, err := m.caller.complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, usageFor(StageConnections, m.cfg.Model, nil, start), ctx.Err()
		}
		m.logger.Warn("connection map call failed, using name heuristic", zap.Error(err))
		return DefaultConnections(components), usageFor(StageConnections, m.cfg.Model, nil, start), nil
	}

	usage := usageFor(StageConnections, m.cfg.Model, resp, start)

	connMap, err := structured.Decode[map[string][]string](resp.Content())
	if err != nil {
		m.logger.Warn("connection map reply unparseable, using name heuristic", zap.Error(err))
		return DefaultConnections(components), usage, nil
	}

	m.logger.Info("connection map complete", zap.Int("entries", len(connMap)))
	return connMap, usage, nil
}

// DefaultConnections derives a connection map from component names: the
// first component containing "Top" connects to every component containing
// "Leg", and each leg back to the top.
func DefaultConnections(components []types.Component) map[string][]string {
	connMap := make(map[string][]string)

	var topName string
	for _, c := range components {
		if strings.Contains(c.Name, "Top") {
			topName = c.Name
			break
		}
	}

	var legNames []string
	for _, c := range components {
		if strings.Contains(c.Name, "Leg") {
			legNames = append(legNames, c.Name)
		}
	}

	if topName != "" && len(legNames) > 0 {
		connMap[topName] = legNames
		for _, leg := range legNames {
			connMap[leg] = []string{topName}
		}
	}

	return connMap
}

package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/types"
)

// SaveRaw writes the flattened primitive list: one entry per operation with
// the module prefix stripped from its name. This is the pre-validation
// snapshot of what the planner produced.
func SaveRaw(path string, components []types.Component) (int, error) {
	return writeJSON(path, types.Flatten(components))
}

// SaveValidated writes the full component list, including any materials,
// after geometry validation. This is the file the bridge script consumes.
func SaveValidated(path string, components []types.Component) (int, error) {
	return writeJSON(path, components)
}

func writeJSON(path string, v any) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return len(data), nil
}

// JSONPath normalizes a user-supplied output path to a .json file. A path
// ending in .blend keeps its stem.
func JSONPath(path string) string {
	return swapExt(path, ".json")
}

// BlendPath is the .blend sibling of a scene JSON file.
func BlendPath(jsonPath string) string {
	return swapExt(jsonPath, ".blend")
}

func swapExt(path, ext string) string {
	if old := filepath.Ext(path); old != "" {
		return strings.TrimSuffix(path, old) + ext
	}
	return path + ext
}

// ResolvePaths returns the raw and validated output paths for a run. An
// explicit output overrides the configured directory and both files take
// its stem; otherwise the configured directory and file names are used.
func ResolvePaths(cfg config.PipelineConfig, output string) (raw, validated string) {
	if output != "" {
		validated = config.ExpandHome(JSONPath(output))
		base := strings.TrimSuffix(filepath.Base(validated), ".json")
		raw = filepath.Join(filepath.Dir(validated), base+"_raw.json")
		return raw, validated
	}
	dir := config.ExpandHome(cfg.OutputDir)
	return filepath.Join(dir, cfg.RawFileName), filepath.Join(dir, cfg.ValidatedFileName)
}

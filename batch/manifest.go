// Package batch runs the generation pipeline over a manifest of prompts
// with bounded concurrency.
package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Item is one prompt to generate, with an optional output path for the
// validated plan JSON.
type Item struct {
	Prompt     string `json:"prompt"`
	OutputPath string `json:"output_path,omitempty"`
}

// UnmarshalJSON accepts either a bare prompt string or a {prompt,
// output_path} object, so both manifest shapes load into the same type.
func (it *Item) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*it = Item{Prompt: s}
		return nil
	}
	type plain Item
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*it = Item(p)
	return nil
}

// ParseManifest loads a prompt manifest. JSON manifests are an array of
// strings or objects; text manifests carry one prompt per line with an
// optional "prompt -> output_path" form. Blank lines and # comments are
// skipped.
func ParseManifest(path string) ([]Item, error) {
	var (
		items []Item
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		items, err = parseJSONManifest(path)
	case ".txt":
		items, err = parseTextManifest(path)
	default:
		return nil, fmt.Errorf("unsupported manifest type %q (want .json or .txt)", ext)
	}
	if err != nil {
		return nil, err
	}
	for i, it := range items {
		if strings.TrimSpace(it.Prompt) == "" {
			return nil, fmt.Errorf("manifest item %d has no prompt", i+1)
		}
	}
	return items, nil
}

func parseJSONManifest(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return items, nil
}

func parseTextManifest(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	defer f.Close()

	var items []Item
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if prompt, output, found := strings.Cut(line, " -> "); found {
			items = append(items, Item{
				Prompt:     strings.TrimSpace(prompt),
				OutputPath: strings.TrimSpace(output),
			})
			continue
		}
		items = append(items, Item{Prompt: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return items, nil
}

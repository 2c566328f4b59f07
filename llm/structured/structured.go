// Package structured decodes typed values out of model completions.
//
// Models asked for JSON frequently wrap it in markdown fences or pad it
// with prose, even in JSON mode. ExtractJSON peels those layers off before
// unmarshalling.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/meshflow/llm"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractJSON returns the JSON payload embedded in a completion. It tries,
// in order: a markdown code fence, the outermost object braces, the
// outermost array brackets. Returns the trimmed input when none match.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	if m := fenceRe.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			return content[start : end+1]
		}
	}

	if start := strings.Index(content, "["); start >= 0 {
		if end := strings.LastIndex(content, "]"); end > start {
			return content[start : end+1]
		}
	}

	return content
}

// Decode extracts and unmarshals a completion into T.
func Decode[T any](content string) (T, error) {
	var out T
	payload := ExtractJSON(content)
	if payload == "" {
		return out, fmt.Errorf("no JSON payload in completion")
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, fmt.Errorf("failed to decode completion: %w", err)
	}
	return out, nil
}

// Call performs a completion and decodes the first choice into T. The raw
// response is returned alongside so callers can record token usage.
func Call[T any](ctx context.Context, provider llm.Provider, req *llm.ChatRequest) (T, *llm.ChatResponse, error) {
	var out T
	resp, err := provider.Completion(ctx, req)
	if err != nil {
		return out, nil, err
	}
	out, err = Decode[T](resp.Content())
	if err != nil {
		return out, resp, err
	}
	return out, resp, nil
}

package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseManifestJSONStrings(t *testing.T) {
	path := writeManifest(t, "prompts.json", `["a modern chair", "a wooden table"]`)

	items, err := ParseManifest(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, Item{Prompt: "a modern chair"}, items[0])
	assert.Equal(t, Item{Prompt: "a wooden table"}, items[1])
}

func TestParseManifestJSONObjects(t *testing.T) {
	path := writeManifest(t, "prompts.json", `[
		{"prompt": "a modern chair", "output_path": "/tmp/chair.json"},
		{"prompt": "a glass table"}
	]`)

	items, err := ParseManifest(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "/tmp/chair.json", items[0].OutputPath)
	assert.Equal(t, "a glass table", items[1].Prompt)
	assert.Empty(t, items[1].OutputPath)
}

func TestParseManifestJSONMixed(t *testing.T) {
	path := writeManifest(t, "prompts.json", `["a stool", {"prompt": "a bench", "output_path": "out/bench.json"}]`)

	items, err := ParseManifest(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a stool", items[0].Prompt)
	assert.Equal(t, "out/bench.json", items[1].OutputPath)
}

func TestParseManifestText(t *testing.T) {
	path := writeManifest(t, "prompts.txt", `# furniture backlog

a modern chair
a wooden desk -> out/desk.json
  a rustic bench
`)

	items, err := ParseManifest(path)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, Item{Prompt: "a modern chair"}, items[0])
	assert.Equal(t, Item{Prompt: "a wooden desk", OutputPath: "out/desk.json"}, items[1])
	assert.Equal(t, Item{Prompt: "a rustic bench"}, items[2])
}

func TestParseManifestRejectsUnknownExtension(t *testing.T) {
	path := writeManifest(t, "prompts.yaml", "a chair\n")

	_, err := ParseManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported manifest type")
}

func TestParseManifestRejectsMalformedJSON(t *testing.T) {
	path := writeManifest(t, "prompts.json", `{"prompt": "not an array"}`)

	_, err := ParseManifest(path)
	require.Error(t, err)
}

func TestParseManifestRejectsEmptyPrompt(t *testing.T) {
	for _, tc := range []struct {
		name    string
		file    string
		content string
	}{
		{"json object", "p.json", `[{"output_path": "out.json"}]`},
		{"json blank string", "p.json", `["  "]`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifest(t, tc.file, tc.content)
			_, err := ParseManifest(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no prompt")
		})
	}
}

func TestParseManifestMissingFile(t *testing.T) {
	_, err := ParseManifest(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

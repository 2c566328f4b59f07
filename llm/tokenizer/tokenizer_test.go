package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorCountTokens(t *testing.T) {
	e := NewEstimator("any-model", 0)

	count, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// ~4 ASCII chars per token.
	count, err = e.CountTokens("a simple wooden dining chair")
	require.NoError(t, err)
	assert.InDelta(t, 7, count, 2)

	// CJK text costs more tokens per character.
	asciiCount, _ := e.CountTokens("chair chair")
	cjkCount, _ := e.CountTokens("木制餐椅木制餐椅木制")
	assert.Greater(t, cjkCount, asciiCount)
}

func TestEstimatorCountMessages(t *testing.T) {
	e := NewEstimator("any-model", 0)

	messages := []Message{
		{Role: "system", Content: "You are a furniture classifier."},
		{Role: "user", Content: "a velvet sofa"},
	}
	total, err := e.CountMessages(messages)
	require.NoError(t, err)

	// Content tokens plus per-message and conversation overhead.
	c1, _ := e.CountTokens(messages[0].Content)
	c2, _ := e.CountTokens(messages[1].Content)
	assert.Equal(t, c1+c2+4+4+3, total)
}

func TestEstimatorDefaults(t *testing.T) {
	e := NewEstimator("m", 0)
	assert.Equal(t, 4096, e.MaxTokens())
	assert.Equal(t, "estimator", e.Name())

	e = NewEstimator("m", 128000)
	assert.Equal(t, 128000, e.MaxTokens())
}

func TestNewTiktokenKnownModels(t *testing.T) {
	tok, err := NewTiktoken("gpt-4o-2024-08-06")
	require.NoError(t, err)
	assert.Equal(t, 128000, tok.MaxTokens())
	assert.Equal(t, "tiktoken[o200k_base]", tok.Name())

	tok, err = NewTiktoken("gpt-4-0125-preview")
	require.NoError(t, err)
	assert.Equal(t, 128000, tok.MaxTokens())
	assert.Equal(t, "tiktoken[cl100k_base]", tok.Name())

	tok, err = NewTiktoken("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 8192, tok.MaxTokens())
}

func TestNewTiktokenUnknownModelFallsBack(t *testing.T) {
	tok, err := NewTiktoken("some-future-model")
	require.NoError(t, err)
	assert.Equal(t, "tiktoken[cl100k_base]", tok.Name())
	assert.Equal(t, 8192, tok.MaxTokens())
}

func TestRegistryPrefixMatch(t *testing.T) {
	e := NewEstimator("test-family", 2048)
	Register("test-family", e)

	got, err := Get("test-family")
	require.NoError(t, err)
	assert.Same(t, Tokenizer(e), got)

	got, err = Get("test-family-2026-01-01")
	require.NoError(t, err)
	assert.Same(t, Tokenizer(e), got)

	_, err = Get("unrelated-model")
	assert.Error(t, err)
}

func TestGetOrEstimator(t *testing.T) {
	tok := GetOrEstimator("completely-unknown-model")
	require.NotNil(t, tok)
	assert.Equal(t, "estimator", tok.Name())

	count, err := tok.CountTokens("hello world")
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

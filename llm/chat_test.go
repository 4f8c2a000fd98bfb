package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// JSON extraction from model output
// ---------------------------------------------------------------------------

func TestParseJSONObjectPlain(t *testing.T) {
	obj, err := ParseJSONObject(`{"intent": "search.find", "confidence": 0.9}`)
	require.NoError(t, err)
	assert.Equal(t, "search.find", obj["intent"])
	assert.Equal(t, 0.9, obj["confidence"])
}

func TestParseJSONObjectFenced(t *testing.T) {
	out := "```json\n{\"a\": 1}\n```"
	obj, err := ParseJSONObject(out)
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])
}

func TestParseJSONObjectBareFence(t *testing.T) {
	out := "```\n{\"a\": true}\n```"
	obj, err := ParseJSONObject(out)
	require.NoError(t, err)
	assert.Equal(t, true, obj["a"])
}

func TestParseJSONObjectLeadingProse(t *testing.T) {
	out := `Sure, here is the result: {"b": "x"} hope that helps`
	obj, err := ParseJSONObject(out)
	require.NoError(t, err)
	assert.Equal(t, "x", obj["b"])
}

func TestParseJSONObjectNoObject(t *testing.T) {
	_, err := ParseJSONObject("no json at all")
	assert.Error(t, err)

	_, err = ParseJSONObject("")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// ChatClient availability
// ---------------------------------------------------------------------------

func TestChatClientNilSafe(t *testing.T) {
	var c *ChatClient
	assert.False(t, c.Available())

	_, err := c.Complete(context.Background(), nil, ChatOptions{})
	assert.Error(t, err)
}

func TestChatClientNoProvider(t *testing.T) {
	c := NewChatClient(nil, "m")
	assert.False(t, c.Available())
}

type fixedChatProvider struct {
	content string
	lastReq ChatRequest
}

func (p *fixedChatProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p.lastReq = req
	return &ChatResponse{Content: p.content}, nil
}

func (p *fixedChatProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func TestChatClientComplete(t *testing.T) {
	p := &fixedChatProvider{content: "hello"}
	c := NewChatClient(p, "default-model")

	out, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}},
		ChatOptions{JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "default-model", p.lastReq.Model)
	assert.Equal(t, "json_object", p.lastReq.ResponseFormat)
}

func TestChatClientModelOverride(t *testing.T) {
	p := &fixedChatProvider{content: "x"}
	c := NewChatClient(p, "default-model")

	_, err := c.Complete(context.Background(), nil, ChatOptions{Model: "other"})
	require.NoError(t, err)
	assert.Equal(t, "other", p.lastReq.Model)
}

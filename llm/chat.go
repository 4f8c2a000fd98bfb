package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ChatClient wraps a Provider for completion-style calls with a fixed
// default model. A nil ChatClient (or one without a provider) reports
// itself unavailable; callers fall back to deterministic behavior.
type ChatClient struct {
	provider Provider
	model    string
}

// NewChatClient builds a chat client. provider may be nil when no chat
// backend is configured.
func NewChatClient(provider Provider, model string) *ChatClient {
	return &ChatClient{provider: provider, model: model}
}

// Available reports whether a chat backend is configured.
func (c *ChatClient) Available() bool {
	return c != nil && c.provider != nil
}

// ChatOptions tune a single completion.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Complete runs a chat completion and returns the assistant content.
func (c *ChatClient) Complete(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("chat provider not configured")
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}
	req := ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = "json_object"
	}

	resp, err := c.provider.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ParseJSONObject decodes a JSON object from model output, tolerating
// markdown code fences and leading prose. Returns an error when no
// object can be recovered; callers treat that as "no result".
func ParseJSONObject(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)

	if m := fencedJSON.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj, nil
	}

	// Last resort: widest brace span.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err == nil {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("no JSON object in model output")
}

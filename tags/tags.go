// Package tags derives short topical labels for documents via the chat
// model. Tagging is best-effort: every failure degrades to no tags.
package tags

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/osoylu/mailvault/llm"
)

const maxTags = 5

// Extractor asks the chat model for up to five topical tags.
type Extractor struct {
	chat    *llm.ChatClient
	model   string
	budget  int
	enabled bool
}

// NewExtractor builds a tag extractor. budget caps the characters of
// subject+body sent to the model.
func NewExtractor(chat *llm.ChatClient, model string, budget int, enabled bool) *Extractor {
	if budget <= 0 {
		budget = 4000
	}
	return &Extractor{chat: chat, model: model, budget: budget, enabled: enabled}
}

const tagPrompt = `You label emails with short topical tags for a personal knowledge base.
Return a JSON array of at most 5 tags. Tags are lowercase, one or two words,
concrete (e.g. "invoice", "travel", "job application"). No explanations,
JSON only.`

// Extract returns the normalized tag list for a document. Disabled
// extractors, unavailable chat backends, model errors and unparseable
// output all yield an empty list.
func (e *Extractor) Extract(ctx context.Context, subject, body string) []string {
	if !e.enabled || !e.chat.Available() {
		return nil
	}

	text := strings.TrimSpace(subject + "\n\n" + body)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) > e.budget {
		text = string(runes[:e.budget])
	}

	out, err := e.chat.Complete(ctx, []llm.Message{
		{Role: "system", Content: tagPrompt},
		{Role: "user", Content: text},
	}, llm.ChatOptions{Model: e.model, Temperature: 0, MaxTokens: 100})
	if err != nil {
		slog.Warn("tag extraction failed", "error", err)
		return nil
	}

	return Normalize(parseTagPayload(out))
}

// parseTagPayload recovers a string list from model output: a bare JSON
// array, an object with a "tags" key, or the first bracketed array
// embedded in prose.
func parseTagPayload(s string) []string {
	s = strings.TrimSpace(s)

	var arr []string
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return arr
	}

	var obj struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj.Tags != nil {
		return obj.Tags
	}

	if start := strings.Index(s, "["); start >= 0 {
		if end := strings.Index(s[start:], "]"); end > 0 {
			if err := json.Unmarshal([]byte(s[start:start+end+1]), &arr); err == nil {
				return arr
			}
		}
	}
	return nil
}

// Normalize trims, lowercases, deduplicates (order preserved) and caps
// the tag list at five. It is idempotent: Normalize(Normalize(x))
// equals Normalize(x).
func Normalize(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

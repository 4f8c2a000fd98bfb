package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/osoylu/mailvault/llm"
)

// Intent is the routing decision for one query.
type Intent struct {
	Name       string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Params     map[string]any `json:"params"`
	Lang       string         `json:"lang"`
}

// Router picks the agent for a free-text query: an LLM classification
// with strict validation, backed by a regex heuristic when the model is
// unavailable or its output unusable.
type Router struct {
	registry *Registry
	chat     *llm.ChatClient
	model    string
}

// NewRouter builds a router over the given registry.
func NewRouter(registry *Registry, chat *llm.ChatClient, model string) *Router {
	return &Router{registry: registry, chat: chat, model: model}
}

// Route classifies the query. A nil intent name means no agent applies.
func (r *Router) Route(ctx context.Context, query string) (*Intent, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("agent: query is empty")
	}

	if r.chat.Available() {
		if intent := r.routeLLM(ctx, query); intent != nil {
			return intent, nil
		}
	}
	return r.fallbackIntent(query), nil
}

func (r *Router) routeLLM(ctx context.Context, query string) *Intent {
	out, err := r.chat.Complete(ctx, []llm.Message{
		{Role: "system", Content: r.intentPrompt()},
		{Role: "user", Content: query},
	}, llm.ChatOptions{Model: r.model, Temperature: 0, MaxTokens: 300, JSONMode: true})
	if err != nil {
		slog.Warn("intent classification failed, using heuristic routing", "error", err)
		return nil
	}

	obj, err := llm.ParseJSONObject(out)
	if err != nil {
		slog.Warn("unparseable intent output, using heuristic routing", "error", err)
		return nil
	}
	return r.validate(obj, query)
}

func (r *Router) intentPrompt() string {
	var b strings.Builder
	b.WriteString(`You route user queries about a personal email archive to one agent.
Available agents:
`)
	for _, a := range r.registry.List() {
		fmt.Fprintf(&b, "- %s: %s\n  params: %s\n", a.Name, a.Description, a.ParamDoc)
	}
	b.WriteString(`
Rules:
- A sender plus a topic means search.find (keywords carry the topic).
- A sender with no topic, or a "latest/en son" phrasing, means search.latest_from.
- Explicit document IDs to summarize mean search.summarize.
- If no agent applies, use intent null.
- date_window_days expresses relative ranges ("son 7 gün" = 7).

Respond with JSON only:
{"intent": "<agent name or null>", "confidence": 0.0-1.0, "params": {...}, "lang": "tr" or "en"}

Examples:
Q: HMRC'den gelen en son email neydi?
{"intent": "search.latest_from", "confidence": 0.9, "params": {"sender": "hmrc", "limit": 1}, "lang": "tr"}
Q: amazon'dan gelen fatura emailleri
{"intent": "search.find", "confidence": 0.85, "params": {"sender": "amazon", "keywords": ["fatura"]}, "lang": "tr"}
Q: summarize documents 12 and 31
{"intent": "search.summarize", "confidence": 0.9, "params": {"doc_ids": ["12", "31"]}, "lang": "en"}
`)
	return b.String()
}

// validate enforces the routing contract on model output: only
// registered intents survive, confidence is clamped, and every
// recognized parameter is normalized.
func (r *Router) validate(obj map[string]any, query string) *Intent {
	intent := &Intent{Params: map[string]any{}}

	if name, ok := obj["intent"].(string); ok {
		if _, registered := r.registry.Get(name); registered {
			intent.Name = name
		}
	}

	if c, ok := obj["confidence"].(float64); ok {
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		intent.Confidence = c
	}

	if lang, ok := obj["lang"].(string); ok && (lang == "tr" || lang == "en") {
		intent.Lang = lang
	} else {
		intent.Lang = detectLang(query)
	}

	params, _ := obj["params"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	if sender := strings.TrimSpace(paramString(params, "sender")); sender != "" {
		intent.Params["sender"] = strings.ToLower(sender)
	}
	if domain := strings.TrimSpace(paramString(params, "domain")); domain != "" {
		intent.Params["domain"] = strings.ToLower(strings.TrimPrefix(domain, "@"))
	}
	for _, key := range []string{"keywords", "tags", "boost_tags"} {
		if terms := paramTerms(params, key); len(terms) > 0 {
			intent.Params[key] = terms
		}
	}
	if ids := paramStrings(params, "doc_ids"); len(ids) > 0 {
		intent.Params["doc_ids"] = ids
	}
	for _, key := range []string{"summary_type", "style"} {
		if v := paramString(params, key); v != "" {
			intent.Params[key] = v
		}
	}
	if _, ok := params["limit"]; ok {
		// latest_from is a point lookup; find pages like search.
		hi := 50
		if intent.Name == "search.find" {
			hi = 200
		}
		intent.Params["limit"] = clampInt(paramInt(params, "limit", 5), 1, hi)
	}
	if _, ok := params["offset"]; ok {
		intent.Params["offset"] = max(paramInt(params, "offset", 0), 0)
	}
	if _, ok := params["max_docs"]; ok {
		intent.Params["max_docs"] = clampInt(paramInt(params, "max_docs", 10), 1, 20)
	}
	if _, ok := params["decay_days"]; ok {
		intent.Params["decay_days"] = clampInt(paramInt(params, "decay_days", 7), 1, 30)
	}
	if _, ok := params["date_window_days"]; ok {
		intent.Params["date_window_days"] = clampInt(paramInt(params, "date_window_days", 7), 1, 365)
	}
	for _, key := range []string{"date_from", "date_to"} {
		if v := paramString(params, key); v != "" {
			intent.Params[key] = v
		}
	}
	if intent.Lang != "" {
		intent.Params["lang"] = intent.Lang
	}

	return intent
}

// --- heuristic fallback ---

const fallbackConfidence = 0.7

var (
	emailCueRe = regexp.MustCompile(`(?i)\b(email|e-?posta|mail|posta|mesaj|message)`)

	senderPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\w+)'dan\s+gelen`),
		regexp.MustCompile(`(?i)(\w+)'den\s+gelen`),
		regexp.MustCompile(`(?i)from\s+(\w+)`),
		regexp.MustCompile(`(?i)(\w+)\s+email`),
		regexp.MustCompile(`(?i)(\w+)\s+(?:emailleri|mailler)`),
	}

	limitPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)son\s+(\d+)`),
		regexp.MustCompile(`(?i)last\s+(\d+)`),
		regexp.MustCompile(`(\d+)\s+tane`),
	}

	latestCueRe = regexp.MustCompile(`(?i)\ben son\b|\blatest\b|\bmost recent\b`)
)

// fallbackIntent is the no-model router: sender and limit extraction by
// pattern, the latest cue deciding between lookup and search.
func (r *Router) fallbackIntent(query string) *Intent {
	intent := &Intent{Params: map[string]any{}, Lang: detectLang(query)}
	intent.Params["lang"] = intent.Lang

	if !emailCueRe.MatchString(query) && !latestCueRe.MatchString(query) {
		return intent // no email-shaped query, no agent
	}

	var sender string
	for _, re := range senderPatterns {
		if m := re.FindStringSubmatch(query); m != nil {
			sender = strings.ToLower(m[1])
			break
		}
	}

	limit := 0
	for _, re := range limitPatterns {
		if m := re.FindStringSubmatch(query); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				limit = n
				break
			}
		}
	}

	latest := latestCueRe.MatchString(query)
	keywords := topicWords(query, sender)

	switch {
	case sender != "" && len(keywords) > 0 && !latest:
		intent.Name = "search.find"
		intent.Params["sender"] = sender
		intent.Params["keywords"] = keywords
	case sender != "":
		intent.Name = "search.latest_from"
		intent.Params["sender"] = sender
		if latest && limit == 0 {
			limit = 1
		}
	case len(keywords) > 0:
		intent.Name = "search.find"
		intent.Params["keywords"] = keywords
	default:
		return intent
	}

	if limit > 0 {
		hi := 50
		if intent.Name == "search.find" {
			hi = 200
		}
		intent.Params["limit"] = clampInt(limit, 1, hi)
	}
	intent.Confidence = fallbackConfidence
	return intent
}

// stopwords covers the glue of both query languages plus the email
// cues themselves.
var fallbackStopwords = map[string]bool{
	"email": true, "emails": true, "emailleri": true, "mailler": true, "mail": true,
	"eposta": true, "e-posta": true, "posta": true, "mesaj": true,
	"message": true, "messages": true, "gelen": true, "neydi": true,
	"nedir": true, "the": true, "from": true, "what": true, "was": true,
	"latest": true, "most": true, "recent": true, "son": true, "en": true,
	"last": true, "tane": true, "ne": true, "bul": true, "find": true,
	"show": true, "me": true, "my": true,
}

func topicWords(query, sender string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?'\"")
		if len([]rune(w)) < 3 || fallbackStopwords[w] || w == sender {
			continue
		}
		if _, err := strconv.Atoi(w); err == nil {
			continue
		}
		if strings.HasPrefix(w, sender+"'") {
			continue
		}
		out = append(out, w)
	}
	return out
}

const turkishChars = "ıİğĞşŞöÖçÇüÜ"

func detectLang(query string) string {
	if strings.ContainsAny(query, turkishChars) {
		return "tr"
	}
	return "en"
}

// Package ask answers natural-language questions over the archive. It
// lifts structured constraints out of the question (inline filters,
// relative time windows, a "latest" cue), retrieves matching documents
// and grounds a chat completion on them.
package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/osoylu/mailvault/llm"
	"github.com/osoylu/mailvault/retrieval"
	"github.com/osoylu/mailvault/store"
)

const (
	defaultTopK         = 5
	maxTopK             = 20
	defaultMaxSentences = 6
	contextCharBudget   = 2000
	passagesPerAnswer   = 8
)

// Request is one question against the archive.
type Request struct {
	Question string `json:"question"`
	// Mode is "summary" (default) or "email".
	Mode string `json:"mode,omitempty"`
	// Lang is "tr", "en" or "auto".
	Lang string `json:"lang,omitempty"`
	// TopK bounds the documents grounding the answer (1..20).
	TopK int `json:"top_k,omitempty"`
	// MaxSentences caps the summary answer length.
	MaxSentences int `json:"max_sentences,omitempty"`

	// Retrieval tuning passthrough.
	DecayDays int      `json:"decay_days,omitempty"`
	BoostTags []string `json:"boost_tags,omitempty"`

	// Email mode.
	Tone        string `json:"tone,omitempty"` // formal | neutral | friendly
	Recipient   string `json:"recipient,omitempty"`
	SenderName  string `json:"sender_name,omitempty"`
	SubjectHint string `json:"subject_hint,omitempty"`
}

// Response carries the grounded answer.
type Response struct {
	Answer  string   `json:"answer"`
	Subject string   `json:"subject,omitempty"`
	Body    string   `json:"body,omitempty"`
	UsedIDs []string `json:"used_ids"`
	Lang    string   `json:"lang"`
	Mode    string   `json:"mode"`
}

// Engine wires retrieval and chat into the ask flow.
type Engine struct {
	retriever *retrieval.Retriever
	store     *store.Store
	chat      *llm.ChatClient
	model     string
}

// New builds an ask engine. chat may be unavailable; answers then fall
// back to deterministic summaries.
func New(r *retrieval.Retriever, s *store.Store, chat *llm.ChatClient, model string) *Engine {
	return &Engine{retriever: r, store: s, chat: chat, model: model}
}

// Ask answers one question. When retrieval finds nothing the localized
// empty-result sentence comes back without any model call.
func (e *Engine) Ask(ctx context.Context, req Request) (*Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("ask: question is empty")
	}

	mode := req.Mode
	if mode != "email" {
		mode = "summary"
	}
	lang := retrieval.ResolveLang(req.Lang, question)

	stripped, filters := extractFilters(question)
	stripped, window := parseTimeWindow(stripped, time.Now().UTC())
	latest := wantsLatest(stripped)

	searchQuery := stripped
	if searchQuery == "" {
		searchQuery = question
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	params := retrieval.Params{
		Query:       searchQuery,
		Tags:        filters.Tags,
		BoostTags:   req.BoostTags,
		IsLabels:    filters.IsLabels,
		Senders:     filters.Senders,
		Froms:       filters.Froms,
		Lang:        lang,
		Limit:       topK,
		DecayDays:   req.DecayDays,
		OrderByTime: latest,
	}
	if window != nil {
		params.DateFrom = window.From.Format(store.TimeFormat)
		params.DateTo = window.To.Format(store.TimeFormat)
	}

	res, err := e.retriever.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ask retrieval: %w", err)
	}
	if len(res.Hits) == 0 {
		return &Response{
			Answer:  emptyResultMessage(lang),
			UsedIDs: []string{},
			Lang:    lang,
			Mode:    mode,
		}, nil
	}

	usedIDs := make([]string, len(res.Hits))
	ids := make([]int64, 0, len(res.Hits))
	for i, h := range res.Hits {
		usedIDs[i] = h.ID
		if id, err := strconv.ParseInt(h.ID, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}

	docContext, err := e.buildContext(ctx, searchQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("ask context: %w", err)
	}

	resp := &Response{UsedIDs: usedIDs, Lang: lang, Mode: mode}
	if mode == "email" {
		e.draftEmail(ctx, req, question, lang, docContext, resp)
	} else {
		e.summarize(ctx, req, question, lang, docContext, resp)
	}
	return resp, nil
}

// docContext is the grounding material passed to the model.
type docContext struct {
	header string // numbered document list with passages
	titles []string
}

// buildContext assembles the prompt context: per document a header line
// and its most relevant passages (best-matching chunks, falling back to
// the preview, then trimmed body).
func (e *Engine) buildContext(ctx context.Context, query string, ids []int64) (docContext, error) {
	docs, err := e.store.GetDocuments(ctx, ids)
	if err != nil {
		return docContext{}, err
	}

	passagesByDoc := map[int64][]string{}
	if match := retrieval.SanitizeFTSQuery(query); match != "" {
		hits, err := e.store.TopChunksFTS(ctx, match, ids, passagesPerAnswer)
		if err != nil {
			slog.Warn("passage selection failed", "error", err)
		} else {
			for _, h := range hits {
				passagesByDoc[h.DocID] = append(passagesByDoc[h.DocID], h.Text)
			}
		}
	}

	var b strings.Builder
	var titles []string
	for i, d := range docs {
		title := d.Title
		if title == "" {
			title = "(no title)"
		}
		titles = append(titles, title)

		fmt.Fprintf(&b, "[Doc %d] %s", i+1, title)
		if d.TS != "" {
			fmt.Fprintf(&b, " (%s)", d.TS)
		}
		b.WriteString("\n")

		body := strings.Join(passagesByDoc[d.ID], "\n")
		if body == "" {
			body = d.Preview
		}
		if body == "" {
			body = d.PlainText
		}
		b.WriteString(truncateRunes(body, contextCharBudget))
		b.WriteString("\n\n")
	}

	return docContext{header: strings.TrimSpace(b.String()), titles: titles}, nil
}

func (e *Engine) summarize(ctx context.Context, req Request, question, lang string, dc docContext, resp *Response) {
	maxSentences := req.MaxSentences
	if maxSentences <= 0 {
		maxSentences = defaultMaxSentences
	}

	if e.chat.Available() {
		out, err := e.chat.Complete(ctx, []llm.Message{
			{Role: "system", Content: summaryPrompt(lang)},
			{Role: "user", Content: "Question: " + question + "\n\nDocuments:\n" + dc.header},
		}, llm.ChatOptions{Model: e.model, Temperature: 0.2, MaxTokens: 600})
		if err == nil && strings.TrimSpace(out) != "" {
			resp.Answer = limitSentences(strings.TrimSpace(out), maxSentences)
			return
		}
		if err != nil {
			slog.Warn("ask summary completion failed, using fallback", "error", err)
		}
	}

	resp.Answer = fallbackSummary(dc.titles, lang)
}

func (e *Engine) draftEmail(ctx context.Context, req Request, question, lang string, dc docContext, resp *Response) {
	if e.chat.Available() {
		var user strings.Builder
		user.WriteString("Request: " + question + "\n")
		if req.Recipient != "" {
			user.WriteString("Recipient: " + req.Recipient + "\n")
		}
		if req.SenderName != "" {
			user.WriteString("Sender: " + req.SenderName + "\n")
		}
		if req.SubjectHint != "" {
			user.WriteString("Subject hint: " + req.SubjectHint + "\n")
		}
		user.WriteString(toneInstruction(req.Tone, lang) + "\n")
		user.WriteString("\nDocuments:\n" + dc.header)

		out, err := e.chat.Complete(ctx, []llm.Message{
			{Role: "system", Content: emailPrompt(lang)},
			{Role: "user", Content: user.String()},
		}, llm.ChatOptions{Model: e.model, Temperature: 0.4, MaxTokens: 800})
		if err != nil {
			slog.Warn("ask email completion failed, using fallback", "error", err)
		} else {
			resp.Subject, resp.Body = parseEmailOutput(out)
		}
	}

	if resp.Subject == "" {
		if req.SubjectHint != "" {
			resp.Subject = req.SubjectHint
		} else {
			resp.Subject = question
		}
	}
	if resp.Body == "" {
		resp.Body = fallbackEmailBody(question, req.Recipient, req.SenderName, lang)
	}
	resp.Answer = resp.Body
}

// fallbackSummary lists the matched documents when no chat backend is
// reachable.
func fallbackSummary(titles []string, lang string) string {
	var b strings.Builder
	if lang == "tr" {
		fmt.Fprintf(&b, "Toplam %d belge bulundu:\n", len(titles))
	} else {
		fmt.Fprintf(&b, "Found %d matching documents:\n", len(titles))
	}
	for _, t := range titles {
		b.WriteString("- " + t + "\n")
	}
	return strings.TrimSpace(b.String())
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

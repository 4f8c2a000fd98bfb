package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/osoylu/mailvault/llm"
	"github.com/osoylu/mailvault/store"
)

const summarizeContentBudget = 2000

var docRefRe = regexp.MustCompile(`\[Doc (\d+)\]`)

// SummarizeAgent wraps multi-document summarization as the
// "search.summarize" capability. The model cites sources as [Doc i];
// citations are resolved back to document references in the result.
func SummarizeAgent(s *store.Store, chat *llm.ChatClient, model string) Agent {
	return Agent{
		Name:        "search.summarize",
		Description: "Summarize a set of documents by ID in a requested style.",
		ParamDoc: `{"doc_ids": ["..."], "max_docs": 1-20, "summary_type": "brief|detailed|bullet_points",
  "language": "tr|en"}`,
		Handler: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			rawIDs := paramStrings(params, "doc_ids")
			if len(rawIDs) == 0 {
				return nil, fmt.Errorf("search.summarize: doc_ids required")
			}

			maxDocs := clampInt(paramInt(params, "max_docs", 10), 1, 20)
			if len(rawIDs) > maxDocs {
				rawIDs = rawIDs[:maxDocs]
			}

			ids := make([]int64, 0, len(rawIDs))
			for _, raw := range rawIDs {
				id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("search.summarize: bad doc id %q", raw)
				}
				ids = append(ids, id)
			}

			docs, err := s.GetDocuments(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("search.summarize: %w", err)
			}
			if len(docs) == 0 {
				return nil, fmt.Errorf("search.summarize: no documents found")
			}

			// "language"/"summary_type" are the contract names; "lang" and
			// "style" arrive from the router and stay accepted.
			lang := paramString(params, "language")
			if lang == "" {
				lang = paramString(params, "lang")
			}
			if lang != "en" {
				lang = "tr"
			}
			style := paramString(params, "summary_type")
			if style == "" {
				style = paramString(params, "style")
			}
			if style != "detailed" && style != "bullet_points" {
				style = "brief"
			}

			summary, refs := runSummary(ctx, chat, model, docs, lang, style)
			return map[string]any{
				"summary":      summary,
				"doc_count":    len(docs),
				"source_refs":  refs,
				"summary_type": style,
				"language":     lang,
			}, nil
		},
	}
}

func runSummary(ctx context.Context, chat *llm.ChatClient, model string, docs []store.Document, lang, style string) (string, []map[string]any) {
	if chat.Available() {
		var b strings.Builder
		for i, d := range docs {
			fmt.Fprintf(&b, "[Doc %d] %s", i+1, docTitle(d))
			if d.TS != "" {
				fmt.Fprintf(&b, " (%s)", d.TS)
			}
			b.WriteString("\n")
			b.WriteString(truncateRunes(d.PlainText, summarizeContentBudget))
			b.WriteString("\n\n")
		}

		out, err := chat.Complete(ctx, []llm.Message{
			{Role: "system", Content: summarizeSystemPrompt(lang, style)},
			{Role: "user", Content: b.String()},
		}, llm.ChatOptions{Model: model, Temperature: 0.3, MaxTokens: 800})
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out), citedRefs(out, docs)
		}
	}

	// Deterministic fallback: a titled list, no model involved.
	var b strings.Builder
	if lang == "tr" {
		fmt.Fprintf(&b, "Toplam %d belge özetlendi:\n", len(docs))
	} else {
		fmt.Fprintf(&b, "Summary of %d documents:\n", len(docs))
	}
	refs := make([]map[string]any, len(docs))
	for i, d := range docs {
		b.WriteString("- " + docTitle(d) + "\n")
		refs[i] = docRef(d, i+1)
	}
	return strings.TrimSpace(b.String()), refs
}

func summarizeSystemPrompt(lang, style string) string {
	if lang == "tr" {
		base := "Verilen belgeleri Türkçe özetle. Kaynak gösterirken [Doc i] biçimini kullan. "
		switch style {
		case "detailed":
			return base + "Detaylı ve kapsamlı bir özet yaz."
		case "bullet_points":
			return base + "Özeti madde madde yaz."
		default:
			return base + "Kısa ve öz bir özet yaz."
		}
	}
	base := "Summarize the provided documents in English. Cite sources as [Doc i]. "
	switch style {
	case "detailed":
		return base + "Write a detailed, comprehensive summary."
	case "bullet_points":
		return base + "Write the summary as bullet points."
	default:
		return base + "Write a brief, concise summary."
	}
}

// citedRefs resolves [Doc i] citations in the summary to document
// references. Uncited documents are omitted.
func citedRefs(summary string, docs []store.Document) []map[string]any {
	seen := map[int]bool{}
	var refs []map[string]any
	for _, m := range docRefRe.FindAllStringSubmatch(summary, -1) {
		i, err := strconv.Atoi(m[1])
		if err != nil || i < 1 || i > len(docs) || seen[i] {
			continue
		}
		seen[i] = true
		refs = append(refs, docRef(docs[i-1], i))
	}
	if refs == nil {
		// A summary with no inline citations still names its inputs.
		for i, d := range docs {
			refs = append(refs, docRef(d, i+1))
		}
	}
	return refs
}

func docRef(d store.Document, i int) map[string]any {
	return map[string]any{
		"id":        strconv.FormatInt(d.ID, 10),
		"title":     docTitle(d),
		"url":       d.SourceURL,
		"reference": fmt.Sprintf("[Doc %d]", i),
	}
}

func docTitle(d store.Document) string {
	if d.Title == "" {
		return "(no title)"
	}
	return d.Title
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

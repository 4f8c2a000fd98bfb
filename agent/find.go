package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/osoylu/mailvault/retrieval"
)

// FindAgent wraps hybrid search as the "search.find" capability:
// topical lookups, optionally narrowed by sender, domain or date.
func FindAgent(r *retrieval.Retriever) Agent {
	return Agent{
		Name:        "search.find",
		Description: "Find documents matching keywords, optionally filtered by sender, domain or date.",
		ParamDoc: `{"keywords": ["..."], "sender": "name fragment", "domain": "mail domain",
  "limit": 1-200, "date_from": "ISO date", "date_to": "ISO date", "lang": "tr|en"}`,
		Handler: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			query := strings.TrimSpace(strings.Join(paramStrings(params, "keywords"), " "))
			if query == "" {
				query = strings.TrimSpace(paramString(params, "query"))
			}
			sender := strings.TrimSpace(paramString(params, "sender"))
			if query == "" {
				query = sender
			}
			if query == "" {
				return nil, fmt.Errorf("search.find: keywords or sender required")
			}

			p := retrieval.Params{
				Query:     query,
				Lang:      paramString(params, "lang"),
				DateFrom:  paramString(params, "date_from"),
				DateTo:    paramString(params, "date_to"),
				Limit:     clampInt(paramInt(params, "limit", 10), 1, 200),
				DecayDays: paramInt(params, "decay_days", 0),
				BoostTags: paramStrings(params, "tags"),
			}
			if sender != "" {
				p.Senders = []string{sender}
			}
			if domain := strings.TrimSpace(paramString(params, "domain")); domain != "" {
				p.Froms = []string{domain}
			}

			res, err := r.Search(ctx, p)
			if err != nil {
				return nil, fmt.Errorf("search.find: %w", err)
			}

			items := make([]map[string]any, len(res.Hits))
			for i, h := range res.Hits {
				title := h.Title
				if title == "" {
					title = "(no title)"
				}
				items[i] = map[string]any{
					"id":      h.ID,
					"title":   title,
					"preview": h.Preview,
					"ts":      h.TS,
					"url":     h.SourceURL,
					"score":   h.Score,
				}
			}

			return map[string]any{
				"items":       items,
				"total":       res.Total,
				"has_more":    res.HasMore,
				"next_offset": res.NextOffset,
			}, nil
		},
	}
}

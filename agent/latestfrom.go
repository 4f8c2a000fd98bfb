package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/osoylu/mailvault/store"
)

// LatestFromAgent wraps the structured recency query as the
// "search.latest_from" capability: "the most recent email from X",
// ranked purely by time.
func LatestFromAgent(s *store.Store) Agent {
	return Agent{
		Name:        "search.latest_from",
		Description: "Return the most recent documents from a sender or mail domain, newest first.",
		ParamDoc: `{"sender": "name fragment", "domain": "mail domain", "limit": 1-50,
  "date_from": "ISO date", "date_to": "ISO date"}`,
		Handler: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			sender := strings.TrimSpace(paramString(params, "sender"))
			domain := strings.TrimSpace(paramString(params, "domain"))
			if sender == "" && domain == "" {
				return nil, fmt.Errorf("search.latest_from: sender or domain required")
			}

			docs, err := s.LatestFrom(ctx, store.LatestFromQuery{
				Sender:   sender,
				Domain:   domain,
				DateFrom: paramString(params, "date_from"),
				DateTo:   paramString(params, "date_to"),
				Limit:    clampInt(paramInt(params, "limit", 5), 1, 50),
			})
			if err != nil {
				return nil, fmt.Errorf("search.latest_from: %w", err)
			}

			items := make([]map[string]any, len(docs))
			for i, d := range docs {
				title := d.Title
				if title == "" {
					title = "(no title)"
				}
				items[i] = map[string]any{
					"id":       strconv.FormatInt(d.ID, 10),
					"title":    title,
					"ts":       d.TS,
					"provider": d.Provider,
					"url":      d.SourceURL,
				}
			}

			return map[string]any{
				"items": items,
				"total": len(items),
			}, nil
		},
	}
}

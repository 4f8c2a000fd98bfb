package retrieval

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/osoylu/mailvault/store"
)

type scoreInputs struct {
	bm25      map[int64]float64
	vec       map[int64]float64
	snippets  map[int64]string
	tags      map[int64][]string
	decayDays int
}

type scoredHit struct {
	Hit
	dedupKey string
	ts       time.Time
	hasTS    bool
	textLen  int
}

type senderMeta struct {
	FromName    string `json:"from_name"`
	FromEmail   string `json:"from_email"`
	FromDomain  string `json:"from_domain"`
	DisplayName string `json:"display_name"`
}

// scoreAndFilter computes the fused score for every candidate and drops
// documents failing the structured filters.
func scoreAndFilter(docs []store.Document, p Params, in scoreInputs) []scoredHit {
	now := time.Now().UTC()
	dateFrom := normalizeBound(p.DateFrom, false)
	dateTo := normalizeBound(p.DateTo, true)

	var out []scoredHit
	for _, d := range docs {
		if dateFrom != "" && (d.TS == "" || d.TS < dateFrom) {
			continue
		}
		if dateTo != "" && (d.TS == "" || d.TS > dateTo) {
			continue
		}

		docTags := in.tags[d.ID]
		if len(p.Tags) > 0 && !hasAnyTag(docTags, p.Tags) {
			continue
		}
		if !hasAllTags(docTags, p.IsLabels) {
			continue
		}

		var meta senderMeta
		if d.Metadata != "" {
			_ = json.Unmarshal([]byte(d.Metadata), &meta)
		}
		if len(p.Senders) > 0 && !matchesSender(d, meta, p.Senders) {
			continue
		}
		if len(p.Froms) > 0 && !matchesFrom(meta, p.Froms) {
			continue
		}

		bm25 := sanitizeScore(in.bm25[d.ID])
		vec := sanitizeScore(in.vec[d.ID])
		tagScore := 0.0
		if hasAnyTag(docTags, p.BoostTags) {
			tagScore = 1.0
		}

		var ts time.Time
		hasTS := false
		decay := 0.0
		if d.TS != "" {
			if t, err := time.Parse(store.TimeFormat, d.TS); err == nil {
				ts = t
				hasTS = true
				decay = linearDecay(now.Sub(t), in.decayDays)
			}
		}

		final := sanitizeScore(weightBM25*bm25 + weightVec*vec + weightTag*tagScore + weightDecay*decay)

		out = append(out, scoredHit{
			Hit: Hit{
				ID:        formatID(d.ID),
				Title:     d.Title,
				Preview:   d.Preview,
				TS:        d.TS,
				Provider:  d.Provider,
				SourceURL: d.SourceURL,
				Lang:      d.Lang,
				Tags:      docTags,
				Highlight: in.snippets[d.ID],
				Score:     final,
				BM25:      bm25,
				Vec:       vec,
				TagScore:  tagScore,
				Decay:     decay,
			},
			dedupKey: d.Title + "\x00" + d.Preview,
			ts:       ts,
			hasTS:    hasTS,
			textLen:  len(d.PlainText),
		})
	}
	return out
}

// linearDecay maps document age onto [0, 1]: fresh is 1, anything older
// than the window is 0.
func linearDecay(age time.Duration, decayDays int) float64 {
	if age < 0 {
		age = 0
	}
	window := time.Duration(decayDays) * 24 * time.Hour
	d := 1.0 - float64(age)/float64(window)
	if d < 0 {
		return 0
	}
	return d
}

// sanitizeScore coerces NaN and infinities to zero so the wire format
// always carries finite numbers.
func sanitizeScore(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// normalizeBound widens date-only bounds to cover the full day.
func normalizeBound(b string, upper bool) string {
	b = strings.TrimSpace(b)
	if len(b) == 10 { // YYYY-MM-DD
		if upper {
			return b + "T23:59:59Z"
		}
		return b + "T00:00:00Z"
	}
	return b
}

func hasAllTags(docTags, want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range docTags {
			if strings.EqualFold(t, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasAnyTag(docTags, want []string) bool {
	for _, w := range want {
		for _, t := range docTags {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

func matchesSender(d store.Document, meta senderMeta, senders []string) bool {
	haystack := strings.ToLower(strings.Join([]string{
		meta.FromName, meta.FromEmail, meta.DisplayName, d.Title, d.Preview,
	}, "\x00"))
	for _, s := range senders {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" && strings.Contains(haystack, s) {
			return true
		}
	}
	return false
}

func matchesFrom(meta senderMeta, froms []string) bool {
	email := strings.ToLower(meta.FromEmail)
	domain := strings.ToLower(meta.FromDomain)
	for _, f := range froms {
		f = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(f, "@")))
		if f == "" {
			continue
		}
		if strings.Contains(email, f) || domain == f || strings.HasSuffix(domain, "."+f) {
			return true
		}
	}
	return false
}

// dedupeHits collapses near-identical documents (same title and
// preview), keeping the best-scored, then newest, then shortest row.
func dedupeHits(hits []scoredHit) []scoredHit {
	best := make(map[string]int, len(hits))
	var out []scoredHit
	for _, h := range hits {
		idx, seen := best[h.dedupKey]
		if !seen {
			best[h.dedupKey] = len(out)
			out = append(out, h)
			continue
		}
		if betterDuplicate(h, out[idx]) {
			out[idx] = h
		}
	}
	return out
}

func betterDuplicate(a, b scoredHit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.hasTS != b.hasTS {
		return a.hasTS
	}
	if !a.ts.Equal(b.ts) {
		return a.ts.After(b.ts)
	}
	return a.textLen < b.textLen
}

func sortHits(hits []scoredHit, byTime bool) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if byTime {
			if a.hasTS != b.hasTS {
				return a.hasTS
			}
			if !a.ts.Equal(b.ts) {
				return a.ts.After(b.ts)
			}
			return a.Score > b.Score
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.hasTS != b.hasTS {
			return a.hasTS
		}
		if !a.ts.Equal(b.ts) {
			return a.ts.After(b.ts)
		}
		return a.textLen < b.textLen
	})
}

func paginate(hits []scoredHit, offset, limit int) []scoredHit {
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}

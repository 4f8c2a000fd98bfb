package ask

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// inline filter tokens: from:acme, sender:"Jane Doe", tag:invoice, is:sent
var filterRe = regexp.MustCompile(`(?i)\b(from|sender|tag|is):("[^"]+"|\S+)`)

// inlineFilters are the structured constraints lifted out of a question.
type inlineFilters struct {
	Froms    []string
	Senders  []string
	Tags     []string
	IsLabels []string
}

// extractFilters pulls filter tokens out of the question and returns
// the remaining free text.
func extractFilters(q string) (string, inlineFilters) {
	var f inlineFilters
	rest := filterRe.ReplaceAllStringFunc(q, func(tok string) string {
		m := filterRe.FindStringSubmatch(tok)
		key := strings.ToLower(m[1])
		val := strings.Trim(m[2], `"`)
		if val == "" {
			return ""
		}
		switch key {
		case "from":
			f.Froms = append(f.Froms, val)
		case "sender":
			f.Senders = append(f.Senders, val)
		case "tag":
			f.Tags = append(f.Tags, strings.ToLower(val))
		case "is":
			f.IsLabels = append(f.IsLabels, strings.ToLower(val))
		}
		return ""
	})
	return strings.Join(strings.Fields(rest), " "), f
}

// timeWindow is an absolute [From, To] span resolved from relative
// phrasing.
type timeWindow struct {
	From time.Time
	To   time.Time
}

type windowPattern struct {
	re   *regexp.Regexp
	days int // per counted unit; 0 means a named day handled below
	name string
}

var windowPatterns = []windowPattern{
	// Suffixed forms ("son 3 günde", "son 2 haftada") strip whole so no
	// case ending leaks into the lexical query.
	{regexp.MustCompile(`(?i)\bson\s+(\d+)\s+g[üu]n(?:de|d[üu]r|l[üu]k)?\b`), 1, ""},
	{regexp.MustCompile(`(?i)\bson\s+(\d+)\s+hafta(?:da|d[ıi]r|l[ıi]k)?\b`), 7, ""},
	{regexp.MustCompile(`(?i)\bson\s+(\d+)\s+ay(?:da|d[ıi]r|l[ıi]k)?\b`), 30, ""},
	{regexp.MustCompile(`(?i)\bson\s+(\d+)\s+y[ıi]l(?:da|d[ıi]r|l[ıi]k)?\b`), 365, ""},
	{regexp.MustCompile(`(?i)\bd[üu]n\b`), 0, "yesterday"},
	{regexp.MustCompile(`(?i)\bbug[üu]n\b`), 0, "today"},
	{regexp.MustCompile(`(?i)\blast\s+(\d+)\s+days?\b`), 1, ""},
	{regexp.MustCompile(`(?i)\blast\s+(\d+)\s+weeks?\b`), 7, ""},
	{regexp.MustCompile(`(?i)\blast\s+(\d+)\s+months?\b`), 30, ""},
	{regexp.MustCompile(`(?i)\blast\s+(\d+)\s+years?\b`), 365, ""},
	{regexp.MustCompile(`(?i)\byesterday\b`), 0, "yesterday"},
	{regexp.MustCompile(`(?i)\btoday\b`), 0, "today"},
}

// parseTimeWindow resolves the first relative time phrase in the
// question against now (UTC), strips it, and returns the remainder.
func parseTimeWindow(q string, now time.Time) (string, *timeWindow) {
	for _, p := range windowPatterns {
		loc := p.re.FindStringSubmatchIndex(q)
		if loc == nil {
			continue
		}

		var w timeWindow
		switch p.name {
		case "yesterday":
			day := now.AddDate(0, 0, -1).Truncate(24 * time.Hour)
			w = timeWindow{From: day, To: day.Add(24*time.Hour - time.Second)}
		case "today":
			day := now.Truncate(24 * time.Hour)
			w = timeWindow{From: day, To: now}
		default:
			n := 1
			if len(loc) >= 4 && loc[2] >= 0 {
				if parsed, err := strconv.Atoi(q[loc[2]:loc[3]]); err == nil && parsed > 0 {
					n = parsed
				}
			}
			w = timeWindow{From: now.AddDate(0, 0, -n*p.days), To: now}
		}

		rest := q[:loc[0]] + q[loc[1]:]
		return strings.Join(strings.Fields(rest), " "), &w
	}
	return q, nil
}

var (
	latestTrRe = regexp.MustCompile(`(?i)\ben son\b|\bson (posta|email|e-?posta)\b`)
	latestEnRe = regexp.MustCompile(`(?i)\b(latest|most recent)\b`)
)

// wantsLatest reports whether the question asks for the newest match
// rather than the most relevant one.
func wantsLatest(q string) bool {
	return latestTrRe.MatchString(q) || latestEnRe.MatchString(q)
}

var sentenceEndRe = regexp.MustCompile(`[.!?]\s+`)

// limitSentences truncates text after max sentence boundaries.
func limitSentences(text string, max int) string {
	if max <= 0 {
		return text
	}
	count := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		count++
		if count == max {
			return strings.TrimSpace(text[:loc[0]+1])
		}
	}
	return text
}

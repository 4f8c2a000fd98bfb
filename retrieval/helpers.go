package retrieval

import "strings"

// ftsReplacer strips characters with special meaning to the FTS5 query
// parser so raw user input cannot produce syntax errors.
var ftsReplacer = strings.NewReplacer(
	`"`, " ", "'", " ", "(", " ", ")", " ", "*", " ", ":", " ",
	"^", " ", "-", " ", "+", " ", "~", " ", "{", " ", "}", " ",
	"[", " ", "]", " ", "<", " ", ">", " ", "!", " ", "?", " ",
	",", " ", ";", " ", ".", " ", "/", " ", "\\", " ", "|", " ",
	"&", " ", "=", " ", "%", " ", "#", " ", "@", " ", "$", " ",
)

// SanitizeFTSQuery builds a safe FTS5 MATCH expression: the full phrase
// quoted, OR'd with each significant word so partial matches still rank.
func SanitizeFTSQuery(query string) string {
	cleaned := ftsReplacer.Replace(query)
	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return ""
	}

	parts := []string{`"` + strings.Join(words, " ") + `"`}
	if len(words) > 1 {
		for _, w := range words {
			if len([]rune(w)) >= 3 {
				parts = append(parts, `"`+w+`"`)
			}
		}
	}
	return strings.Join(parts, " OR ")
}

const turkishChars = "ıİğĞşŞöÖçÇüÜ"

// ResolveLang maps a requested language to "tr" or "en". "auto" (or
// anything unrecognized) falls back to a script check: any
// Turkish-specific letter in the query selects Turkish.
func ResolveLang(lang, query string) string {
	switch lang {
	case "tr", "en":
		return lang
	}
	if strings.ContainsAny(query, turkishChars) {
		return "tr"
	}
	return "en"
}

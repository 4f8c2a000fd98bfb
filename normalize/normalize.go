// Package normalize prepares raw email content for indexing: body
// cleaning, date parsing, sender extraction, content hashing and
// language detection.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pemistahl/lingua-go"
)

var signOffRe = regexp.MustCompile(`(?i)^(Best|Kind|Warm)\s+(regards|wishes)`)

// CleanBody strips quoted replies, signature separators and sign-offs
// from an email body. Cleaning is line-based and stops at the first
// marker: everything below a quote or signature boundary is discarded.
func CleanBody(body string) string {
	var cleaned []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, ">") {
			break
		}
		if strings.HasPrefix(line, "On ") && strings.Contains(line, "wrote:") {
			break
		}
		if line == "--" || line == "---" || line == "____" {
			break
		}
		if signOffRe.MatchString(line) {
			break
		}
		cleaned = append(cleaned, line)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// SenderDomain extracts the lowercased domain of an email address.
// Returns "" when the input has no @.
func SenderDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(email[at+1:], "<> "))
}

// ParseDate parses an RFC 2822 date header. When the header is missing
// or malformed it falls back to the current UTC time and reports the
// fallback, so ingest can record it in metadata.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return t.UTC().Truncate(time.Second), false
		}
	}
	return time.Now().UTC().Truncate(time.Second), true
}

// ContentHash computes the dedup hash of a document: sha256 over
// subject, body, account and external ID, each part terminated by a
// 0x1E record separator (including the last) so field boundaries can
// never collide.
func ContentHash(subject, plainText, accountID, externalID string) string {
	h := sha256.New()
	for _, part := range []string{subject, plainText, accountID, externalID} {
		h.Write([]byte(part))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

const langSampleChars = 4000

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectLang returns the ISO 639-1 code of the text's language, or ""
// when detection is not confident. The detector is built once per
// process; building it loads language models and is not cheap.
func DetectLang(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if len(text) > langSampleChars {
		text = text[:langSampleChars]
	}

	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English,
				lingua.Turkish,
				lingua.German,
				lingua.French,
				lingua.Spanish,
			).
			Build()
	})

	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

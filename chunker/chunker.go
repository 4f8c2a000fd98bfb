// Package chunker splits document text into retrieval-sized pieces.
// Windows are measured in characters (runes), not tokens.
package chunker

import "strings"

// Config tunes the generic window splitter.
type Config struct {
	// Target is the window size.
	Target int
	// Overlap is carried between consecutive windows.
	Overlap int
	// MinJoin: pieces shorter than this are merged with a neighbor
	// instead of emitted alone.
	MinJoin int
	// MinKeep: anything still shorter than this after merging is dropped.
	MinKeep int
}

// DefaultConfig returns the production chunking parameters.
func DefaultConfig() Config {
	return Config{Target: 1200, Overlap: 150, MinJoin: 120, MinKeep: 20}
}

// Splitter produces the ordered chunk texts of one document. A document
// is always split by exactly one strategy.
type Splitter interface {
	Split(title, body string) []string
}

// ForKind selects the splitting strategy for a document kind. Emails
// get the subject-first fixed layout; everything else gets the generic
// overlapping window splitter.
func ForKind(kind string, cfg Config) Splitter {
	if kind == "email" {
		return emailSplitter{}
	}
	return windowSplitter{cfg: cfg}
}

type windowSplitter struct {
	cfg Config
}

func (s windowSplitter) Split(title, body string) []string {
	return Split(body, s.cfg)
}

// Split cuts text into overlapping windows of cfg.Target runes. Short
// windows accumulate in a buffer and merge with the next substantial
// piece; a short trailing buffer is emitted on its own. Pieces shorter
// than cfg.MinKeep are dropped.
func Split(text string, cfg Config) []string {
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []string
	var buf string

	i := 0
	for i < n {
		j := i + cfg.Target
		if j > n {
			j = n
		}
		piece := strings.TrimSpace(string(runes[i:j]))
		if piece != "" {
			if len([]rune(piece)) < cfg.MinJoin {
				if buf != "" {
					buf = buf + " " + piece
				} else {
					buf = piece
				}
			} else {
				if buf != "" {
					if len([]rune(buf)) < cfg.MinJoin {
						piece = buf + " " + piece
					} else {
						chunks = append(chunks, buf)
					}
					buf = ""
				}
				chunks = append(chunks, piece)
			}
		}
		if j < n {
			i = j - cfg.Overlap
		} else {
			i = j
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}

	kept := chunks[:0]
	for _, c := range chunks {
		if len([]rune(c)) >= cfg.MinKeep {
			kept = append(kept, c)
		}
	}
	return kept
}

// emailSplitter uses the fixed email layout: the subject leads as its
// own chunk, the opening of the body follows, and the remainder is cut
// into large overlapping windows. The constants are deliberate: subject
// lines cap at 300, the opening carries the email's intent, and the
// 1200/160 windows overlap enough to keep sentences intact.
type emailSplitter struct{}

const (
	emailSubjectMax   = 300
	emailOpeningMax   = 1000
	emailWindowSize   = 1200
	emailWindowStride = 1040
	emailTailMin      = 160
)

func (emailSplitter) Split(title, body string) []string {
	var chunks []string

	title = strings.TrimSpace(title)
	if title != "" {
		chunks = append(chunks, truncateRunes(title, emailSubjectMax))
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return chunks
	}

	runes := []rune(body)
	opening := emailOpeningMax
	if opening > len(runes) {
		opening = len(runes)
	}
	chunks = append(chunks, strings.TrimSpace(string(runes[:opening])))

	remaining := runes[opening:]
	for len(remaining) > emailTailMin {
		end := emailWindowSize
		if end > len(remaining) {
			end = len(remaining)
		}
		piece := strings.TrimSpace(string(remaining[:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		if emailWindowStride >= len(remaining) {
			break
		}
		remaining = remaining[emailWindowStride:]
	}

	return chunks
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Body cleaning
// ---------------------------------------------------------------------------

func TestCleanBodyStripsQuotedReply(t *testing.T) {
	body := "Thanks, that works for me.\n\nOn Mon, Jan 5, 2026, John Doe wrote:\n> original message\n> more quoted text"
	assert.Equal(t, "Thanks, that works for me.", CleanBody(body))
}

func TestCleanBodyStripsQuoteMarkers(t *testing.T) {
	body := "See below.\n> quoted line one\n> quoted line two"
	assert.Equal(t, "See below.", CleanBody(body))
}

func TestCleanBodyStripsSignatureSeparator(t *testing.T) {
	for _, sep := range []string{"--", "---", "____"} {
		body := "Meeting moved to 3pm.\n" + sep + "\nJane Doe\nAcme Corp"
		assert.Equal(t, "Meeting moved to 3pm.", CleanBody(body), "separator %q", sep)
	}
}

func TestCleanBodyStripsSignOff(t *testing.T) {
	body := "The invoice is attached.\nBest regards\nJane"
	assert.Equal(t, "The invoice is attached.", CleanBody(body))

	body = "See you tomorrow.\nKind wishes,\nJohn"
	assert.Equal(t, "See you tomorrow.", CleanBody(body))
}

func TestCleanBodyKeepsPlainText(t *testing.T) {
	body := "First line.\nSecond line.\n\nThird line."
	assert.Equal(t, "First line.\nSecond line.\n\nThird line.", CleanBody(body))
}

func TestCleanBodyEmpty(t *testing.T) {
	assert.Equal(t, "", CleanBody(""))
	assert.Equal(t, "", CleanBody("> everything quoted"))
}

// ---------------------------------------------------------------------------
// Sender domain
// ---------------------------------------------------------------------------

func TestSenderDomain(t *testing.T) {
	assert.Equal(t, "acme.com", SenderDomain("jane@acme.com"))
	assert.Equal(t, "acme.com", SenderDomain("Jane Doe <jane@Acme.com>"))
	assert.Equal(t, "", SenderDomain("not-an-address"))
	assert.Equal(t, "", SenderDomain("trailing@"))
}

// ---------------------------------------------------------------------------
// Date parsing
// ---------------------------------------------------------------------------

func TestParseDateValid(t *testing.T) {
	ts, fallback := ParseDate("Mon, 02 Jan 2006 15:04:05 -0700")
	require.False(t, fallback)
	assert.Equal(t, time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC), ts)
}

func TestParseDateFallback(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	ts, fallback := ParseDate("not a date")
	assert.True(t, fallback)
	assert.False(t, ts.Before(before.Truncate(time.Second)))

	_, fallback = ParseDate("")
	assert.True(t, fallback)
}

// ---------------------------------------------------------------------------
// Content hash
// ---------------------------------------------------------------------------

func TestContentHashFieldBoundaries(t *testing.T) {
	// Shifting characters across field boundaries must change the hash.
	a := ContentHash("ab", "c", "acct", "ext")
	b := ContentHash("a", "bc", "acct", "ext")
	assert.NotEqual(t, a, b)
}

func TestContentHashDeterministic(t *testing.T) {
	a := ContentHash("subject", "body", "acct", "ext")
	b := ContentHash("subject", "body", "acct", "ext")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

// ---------------------------------------------------------------------------
// Language detection
// ---------------------------------------------------------------------------

func TestDetectLang(t *testing.T) {
	assert.Equal(t, "en", DetectLang("The quarterly report is attached, please review it before the meeting on Friday."))
	assert.Equal(t, "tr", DetectLang("Merhaba, geçen haftaki fatura ile ilgili bilgi almak istiyorum. Ödeme yapıldı mı?"))
	assert.Equal(t, "", DetectLang(""))
}

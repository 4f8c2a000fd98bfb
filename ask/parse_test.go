package ask

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Inline filters
// ---------------------------------------------------------------------------

func TestExtractFiltersBasic(t *testing.T) {
	rest, f := extractFilters("show invoices from:acme tag:billing")
	assert.Equal(t, "show invoices", rest)
	assert.Equal(t, []string{"acme"}, f.Froms)
	assert.Equal(t, []string{"billing"}, f.Tags)
}

func TestExtractFiltersQuotedSender(t *testing.T) {
	rest, f := extractFilters(`emails sender:"Jane Doe" about the offsite`)
	assert.Equal(t, "emails about the offsite", rest)
	assert.Equal(t, []string{"Jane Doe"}, f.Senders)
}

func TestExtractFiltersIsLabel(t *testing.T) {
	_, f := extractFilters("is:Sent drafts I wrote")
	assert.Equal(t, []string{"sent"}, f.IsLabels)
}

func TestExtractFiltersNone(t *testing.T) {
	rest, f := extractFilters("what did HMRC say last week")
	assert.Equal(t, "what did HMRC say last week", rest)
	assert.Empty(t, f.Froms)
	assert.Empty(t, f.Senders)
	assert.Empty(t, f.Tags)
	assert.Empty(t, f.IsLabels)
}

// ---------------------------------------------------------------------------
// Relative time windows
// ---------------------------------------------------------------------------

var parseNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestParseTimeWindowTurkishDays(t *testing.T) {
	rest, w := parseTimeWindow("son 7 gün içindeki faturalar", parseNow)
	require.NotNil(t, w)
	assert.Equal(t, parseNow.AddDate(0, 0, -7), w.From)
	assert.Equal(t, parseNow, w.To)
	assert.Equal(t, "içindeki faturalar", rest)
}

func TestParseTimeWindowTurkishSuffixedDays(t *testing.T) {
	// The locative suffix is stripped with the phrase: no "de" remnant
	// may leak into the lexical query.
	rest, w := parseTimeWindow("son 3 günde gelen HMRC postaları", parseNow)
	require.NotNil(t, w)
	assert.Equal(t, parseNow.AddDate(0, 0, -3), w.From)
	assert.Equal(t, "gelen HMRC postaları", rest)
}

func TestParseTimeWindowTurkishSuffixedWeeks(t *testing.T) {
	rest, w := parseTimeWindow("son 2 haftada neler oldu", parseNow)
	require.NotNil(t, w)
	assert.Equal(t, parseNow.AddDate(0, 0, -14), w.From)
	assert.Equal(t, "neler oldu", rest)
}

func TestParseTimeWindowTurkishWeeks(t *testing.T) {
	_, w := parseTimeWindow("son 2 hafta özeti", parseNow)
	require.NotNil(t, w)
	assert.Equal(t, parseNow.AddDate(0, 0, -14), w.From)
}

func TestParseTimeWindowEnglishMonths(t *testing.T) {
	rest, w := parseTimeWindow("receipts from the last 3 months", parseNow)
	require.NotNil(t, w)
	assert.Equal(t, parseNow.AddDate(0, 0, -90), w.From)
	assert.Equal(t, "receipts from the", rest)
}

func TestParseTimeWindowYesterday(t *testing.T) {
	_, w := parseTimeWindow("what came in yesterday", parseNow)
	require.NotNil(t, w)
	day := parseNow.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	assert.Equal(t, day, w.From)
	assert.Equal(t, day.Add(24*time.Hour-time.Second), w.To)
}

func TestParseTimeWindowToday(t *testing.T) {
	_, w := parseTimeWindow("bugün gelen postalar", parseNow)
	require.NotNil(t, w)
	assert.Equal(t, parseNow.Truncate(24*time.Hour), w.From)
	assert.Equal(t, parseNow, w.To)
}

func TestParseTimeWindowNone(t *testing.T) {
	rest, w := parseTimeWindow("invoices from acme", parseNow)
	assert.Nil(t, w)
	assert.Equal(t, "invoices from acme", rest)
}

func TestParseTimeWindowFirstMatchWins(t *testing.T) {
	_, w := parseTimeWindow("son 3 gün ve son 2 hafta", parseNow)
	require.NotNil(t, w)
	assert.Equal(t, parseNow.AddDate(0, 0, -3), w.From)
}

// ---------------------------------------------------------------------------
// Latest cues
// ---------------------------------------------------------------------------

func TestWantsLatest(t *testing.T) {
	assert.True(t, wantsLatest("HMRC'den gelen en son email neydi"))
	assert.True(t, wantsLatest("son posta ne zaman geldi"))
	assert.True(t, wantsLatest("what is the latest invoice"))
	assert.True(t, wantsLatest("the most recent message from Jane"))
	assert.False(t, wantsLatest("all invoices from March"))
}

// ---------------------------------------------------------------------------
// Sentence limiting
// ---------------------------------------------------------------------------

func TestLimitSentences(t *testing.T) {
	text := "One. Two! Three? Four."
	assert.Equal(t, "One. Two!", limitSentences(text, 2))
	assert.Equal(t, text, limitSentences(text, 10))
	assert.Equal(t, text, limitSentences(text, 0))
}

// ---------------------------------------------------------------------------
// Email output parsing
// ---------------------------------------------------------------------------

func TestParseEmailOutput(t *testing.T) {
	out := "SUBJECT: Meeting follow-up\nBODY: Hi Jane,\n\nThanks for today.\nBest"
	subject, body := parseEmailOutput(out)
	assert.Equal(t, "Meeting follow-up", subject)
	assert.Equal(t, "Hi Jane,\n\nThanks for today.\nBest", body)
}

func TestParseEmailOutputBodyOnNextLine(t *testing.T) {
	out := "subject: Hello\nbody:\nFirst line.\nSecond line."
	subject, body := parseEmailOutput(out)
	assert.Equal(t, "Hello", subject)
	assert.Equal(t, "First line.\nSecond line.", body)
}

func TestParseEmailOutputMissingSections(t *testing.T) {
	subject, body := parseEmailOutput("just some prose with no sections")
	assert.Equal(t, "", subject)
	assert.Equal(t, "", body)
}

func TestFallbackEmailBody(t *testing.T) {
	body := fallbackEmailBody("please reschedule", "Jane", "Osman", "en")
	assert.Contains(t, body, "Dear Jane,")
	assert.Contains(t, body, "please reschedule")
	assert.Contains(t, body, "Osman")

	body = fallbackEmailBody("toplantıyı erteleyelim", "", "", "tr")
	assert.Contains(t, body, "Merhaba,")
	assert.Contains(t, body, "Saygılarımla,")
}

func TestEmptyResultMessage(t *testing.T) {
	assert.Equal(t, "Eşleşen doküman bulunamadı.", emptyResultMessage("tr"))
	assert.Equal(t, "No matching documents found.", emptyResultMessage("en"))
}

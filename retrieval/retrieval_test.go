//go:build cgo

package retrieval

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osoylu/mailvault/llm"
	"github.com/osoylu/mailvault/store"
)

const testDim = 8

func newTestRetriever(t *testing.T) (*Retriever, *store.Store, *llm.Embedder) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	provider, err := llm.NewLocal(llm.Config{Dim: testDim})
	require.NoError(t, err)
	embedder := llm.NewEmbedder(provider, llm.EmbedderConfig{Dim: testDim, Batch: 16, RetryMax: 1, BaseSleep: time.Millisecond})

	return New(s, embedder), s, embedder
}

func seedDoc(t *testing.T, s *store.Store, e *llm.Embedder, externalID, title, body, ts string, tags []string) int64 {
	t.Helper()
	ctx := context.Background()

	sourceID, err := s.UpsertSource(ctx, "gmail", "acct")
	require.NoError(t, err)

	chunks := []string{title, body}
	vecs, err := e.Embed(ctx, chunks)
	require.NoError(t, err)

	id, err := s.ApplyIngest(ctx, store.IngestWrite{
		SourceID:    sourceID,
		ExternalID:  externalID,
		SourceType:  "email",
		Title:       title,
		Preview:     body[:min(len(body), 80)],
		PlainText:   body,
		ContentHash: externalID + "-hash",
		Lang:        "en",
		TS:          ts,
		Tags:        tags,
		Chunks:      chunks,
		ChunkVecs:   vecs,
		DocVec:      llm.Mean(vecs),
	})
	require.NoError(t, err)
	return id
}

func TestSearchLexicalRanking(t *testing.T) {
	r, s, e := newTestRetriever(t)
	ctx := context.Background()

	now := time.Now().UTC().Format(store.TimeFormat)
	seedDoc(t, s, e, "m1", "Invoice for March services", "Your invoice total is 120 euros, due next week.", now, []string{"invoice"})
	seedDoc(t, s, e, "m2", "Team offsite agenda", "The agenda covers planning and retrospectives.", now, []string{"work"})

	res, err := r.Search(ctx, Params{Query: "invoice total"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "Invoice for March services", res.Hits[0].Title)
	assert.Equal(t, "gmail", res.Hits[0].Provider)
	assert.Greater(t, res.Hits[0].BM25, 0.0)
	assert.NotEmpty(t, res.Hits[0].Highlight)
}

func TestSearchTagFilter(t *testing.T) {
	r, s, e := newTestRetriever(t)
	ctx := context.Background()

	now := time.Now().UTC().Format(store.TimeFormat)
	seedDoc(t, s, e, "m1", "Flight booking confirmation", "Your flight to Berlin is confirmed.", now, []string{"travel"})
	seedDoc(t, s, e, "m2", "Hotel booking confirmation", "Your hotel in Berlin is confirmed.", now, []string{"lodging"})

	res, err := r.Search(ctx, Params{Query: "booking confirmation", Tags: []string{"travel"}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Flight booking confirmation", res.Hits[0].Title)
}

func TestSearchTagFilterMatchesAny(t *testing.T) {
	r, s, e := newTestRetriever(t)
	ctx := context.Background()

	now := time.Now().UTC().Format(store.TimeFormat)
	seedDoc(t, s, e, "m1", "Invoice for consulting", "The consulting invoice is attached.", now, []string{"invoice"})

	// One matching tag out of several requested is enough.
	res, err := r.Search(ctx, Params{Query: "consulting invoice", Tags: []string{"invoice", "travel"}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Invoice for consulting", res.Hits[0].Title)
}

func TestSearchOrderByTime(t *testing.T) {
	r, s, e := newTestRetriever(t)
	ctx := context.Background()

	seedDoc(t, s, e, "m1", "Status update week 1", "Progress report for the first week.", "2026-01-05T10:00:00Z", nil)
	seedDoc(t, s, e, "m2", "Status update week 2", "Progress report for the second week.", "2026-01-12T10:00:00Z", nil)

	res, err := r.Search(ctx, Params{Query: "status update", OrderByTime: true})
	require.NoError(t, err)
	require.True(t, len(res.Hits) >= 2)
	assert.Equal(t, "Status update week 2", res.Hits[0].Title)
}

func TestSearchDedupCollapsesCopies(t *testing.T) {
	r, s, e := newTestRetriever(t)
	ctx := context.Background()

	now := time.Now().UTC().Format(store.TimeFormat)
	// Same title and preview from two external IDs (forwarded copy).
	seedDoc(t, s, e, "m1", "Weekly digest", "Top stories this week in one place.", now, nil)
	seedDoc(t, s, e, "m2", "Weekly digest", "Top stories this week in one place.", now, nil)

	res, err := r.Search(ctx, Params{Query: "weekly digest"})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)
}

func TestSearchPagination(t *testing.T) {
	r, s, e := newTestRetriever(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedDoc(t, s, e, string(rune('a'+i)),
			"Newsletter issue "+string(rune('A'+i)),
			"Contents of the newsletter issue number "+string(rune('A'+i))+".",
			now.Add(-time.Duration(i)*time.Hour).Format(store.TimeFormat), nil)
	}

	page1, err := r.Search(ctx, Params{Query: "newsletter issue", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1.Hits, 2)
	assert.True(t, page1.HasMore)
	assert.Equal(t, 2, page1.NextOffset)

	page2, err := r.Search(ctx, Params{Query: "newsletter issue", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2.Hits, 2)
	assert.NotEqual(t, page1.Hits[0].ID, page2.Hits[0].ID)
}

func TestSearchEmptyQuery(t *testing.T) {
	r, _, _ := newTestRetriever(t)
	_, err := r.Search(context.Background(), Params{Query: "  "})
	assert.Error(t, err)
}

func TestSearchNoMatches(t *testing.T) {
	r, s, e := newTestRetriever(t)
	ctx := context.Background()

	seedDoc(t, s, e, "m1", "Grocery list", "Milk, eggs, bread.", time.Now().UTC().Format(store.TimeFormat), nil)

	res, err := r.Search(ctx, Params{Query: "xyzzyplugh"})
	require.NoError(t, err)
	// The vector leg may surface weak neighbors, but lexical misses entirely.
	for _, h := range res.Hits {
		assert.Equal(t, 0.0, h.BM25)
	}
}

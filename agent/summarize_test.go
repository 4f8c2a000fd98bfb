//go:build cgo

package agent

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osoylu/mailvault/store"
)

func newAgentStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAgentDoc(t *testing.T, s *store.Store, externalID, title, ts string) int64 {
	t.Helper()
	ctx := context.Background()

	sourceID, err := s.UpsertSource(ctx, "gmail", "acct")
	require.NoError(t, err)

	id, err := s.ApplyIngest(ctx, store.IngestWrite{
		SourceID:    sourceID,
		ExternalID:  externalID,
		SourceType:  "email",
		Title:       title,
		Preview:     title,
		PlainText:   title + " body text.",
		ContentHash: externalID + "-hash",
		TS:          ts,
		Metadata:    `{"from_name":"Acme","from_email":"billing@acme.com","from_domain":"acme.com"}`,
		Chunks:      []string{title},
	})
	require.NoError(t, err)
	return id
}

// ---------------------------------------------------------------------------
// search.summarize
// ---------------------------------------------------------------------------

func TestSummarizeDefaultsTurkishBrief(t *testing.T) {
	s := newAgentStore(t)
	id := seedAgentDoc(t, s, "m1", "Invoice for March", "2026-03-01T10:00:00Z")

	a := SummarizeAgent(s, nil, "m")
	res, err := a.Handler(context.Background(), map[string]any{
		"doc_ids": []any{strconv.FormatInt(id, 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, "tr", res["language"])
	assert.Equal(t, "brief", res["summary_type"])
	assert.Contains(t, res["summary"], "Toplam 1 belge")
}

func TestSummarizeContractParamNames(t *testing.T) {
	s := newAgentStore(t)
	id := seedAgentDoc(t, s, "m1", "Invoice for March", "2026-03-01T10:00:00Z")
	docIDs := []any{strconv.FormatInt(id, 10)}

	a := SummarizeAgent(s, nil, "m")
	res, err := a.Handler(context.Background(), map[string]any{
		"doc_ids": docIDs, "language": "en", "summary_type": "bullet_points",
	})
	require.NoError(t, err)
	assert.Equal(t, "en", res["language"])
	assert.Equal(t, "bullet_points", res["summary_type"])
	assert.Contains(t, res["summary"], "Summary of 1 documents")

	// The router's short spellings stay accepted.
	res, err = a.Handler(context.Background(), map[string]any{
		"doc_ids": docIDs, "lang": "en", "style": "detailed",
	})
	require.NoError(t, err)
	assert.Equal(t, "en", res["language"])
	assert.Equal(t, "detailed", res["summary_type"])
}

// ---------------------------------------------------------------------------
// search.latest_from
// ---------------------------------------------------------------------------

func TestLatestFromItemsCarryProvider(t *testing.T) {
	s := newAgentStore(t)
	seedAgentDoc(t, s, "m1", "Invoice for March", "2026-03-01T10:00:00Z")

	a := LatestFromAgent(s)
	res, err := a.Handler(context.Background(), map[string]any{"sender": "acme"})
	require.NoError(t, err)

	items, ok := res["items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "gmail", items[0]["provider"])
	assert.Equal(t, "Invoice for March", items[0]["title"])
}

// Package retrieval implements hybrid document search: a lexical BM25
// leg and a vector KNN leg run concurrently, and their scores fuse with
// tag and recency signals into one ranking.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/osoylu/mailvault/llm"
	"github.com/osoylu/mailvault/store"
)

// Score weights. BM25 dominates, vector similarity refines, tag and
// recency nudge.
const (
	weightBM25  = 0.55
	weightVec   = 0.35
	weightTag   = 0.07
	weightDecay = 0.03
)

const (
	defaultLimit     = 10
	maxLimit         = 200
	defaultDecayDays = 7
	maxDecayDays     = 30
)

// Params is the full search parameter set.
type Params struct {
	Query string

	// Tags is a hard filter: a document must carry at least one.
	Tags []string
	// BoostTags add the tag score component when any is present.
	BoostTags []string

	// Lang is "tr", "en" or "auto" (script heuristic on the query).
	Lang string

	// DateFrom/DateTo bound the document timestamp, inclusive, in
	// store.TimeFormat (or a date prefix of it).
	DateFrom string
	DateTo   string

	// Senders match sender names (and title/preview, since newsletters
	// often carry the sender in the subject). Froms match the sender
	// address or mail domain. Case-insensitive substring semantics.
	Senders []string
	Froms   []string

	// IsLabels are provider labels ("sent", "inbox", "important")
	// required on the document's tag set.
	IsLabels []string

	Limit  int
	Offset int

	// DecayDays is the recency half-window: a document DecayDays old
	// has decay 0. Zero means the default of 7; clamped to [1, 30].
	DecayDays int

	// OrderByTime ranks by timestamp first, score second. Used for
	// "latest ..." questions.
	OrderByTime bool
}

// Hit is one scored search result.
type Hit struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Preview   string   `json:"preview"`
	TS        string   `json:"ts,omitempty"`
	Provider  string   `json:"provider,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
	Lang      string   `json:"lang,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Highlight string   `json:"highlight,omitempty"`

	Score    float64 `json:"score"`
	BM25     float64 `json:"bm25"`
	Vec      float64 `json:"vec"`
	TagScore float64 `json:"tag_score"`
	Decay    float64 `json:"decay"`
}

// Results is one page of search output.
type Results struct {
	Hits       []Hit  `json:"hits"`
	Total      int    `json:"total"`
	HasMore    bool   `json:"has_more"`
	NextOffset int    `json:"next_offset"`
	Lang       string `json:"lang"`
}

// Retriever executes hybrid searches against the store.
type Retriever struct {
	store    *store.Store
	embedder *llm.Embedder
}

// New builds a Retriever.
func New(s *store.Store, embedder *llm.Embedder) *Retriever {
	return &Retriever{store: s, embedder: embedder}
}

// Search runs both legs, fuses scores, filters, deduplicates and pages.
// A failed query embedding degrades to BM25-only rather than erroring.
func (r *Retriever) Search(ctx context.Context, p Params) (*Results, error) {
	query := strings.TrimSpace(p.Query)
	if query == "" {
		return nil, fmt.Errorf("retrieval: query is empty")
	}

	limit := clampInt(p.Limit, 1, maxLimit, defaultLimit)
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	decayDays := clampInt(p.DecayDays, 1, maxDecayDays, defaultDecayDays)
	lang := ResolveLang(p.Lang, query)

	// Candidate pool: enough headroom over the requested page that
	// filtering and dedup don't starve it.
	pool := (offset + limit) * 4
	if pool < 50 {
		pool = 50
	}
	if pool > 400 {
		pool = 400
	}

	match := SanitizeFTSQuery(query)

	// Run both legs concurrently.
	type lexOut struct {
		hits []store.LexicalHit
		err  error
	}
	type vecOut struct {
		hits []store.VectorHit
	}
	lexCh := make(chan lexOut, 1)
	vecCh := make(chan vecOut, 1)

	go func() {
		if match == "" {
			lexCh <- lexOut{}
			return
		}
		hits, err := r.store.SearchDocumentsFTS(ctx, match, pool)
		lexCh <- lexOut{hits: hits, err: err}
	}()

	go func() {
		queryVec, err := r.embedder.EmbedOne(ctx, query)
		if err != nil {
			// Lexical-only search still answers the question.
			slog.Warn("query embedding failed, falling back to lexical search", "error", err)
			vecCh <- vecOut{}
			return
		}
		hits, err := r.store.SearchDocumentsVec(ctx, queryVec, pool)
		if err != nil {
			slog.Warn("vector search failed", "error", err)
			vecCh <- vecOut{}
			return
		}
		// Chunk-level KNN widens recall: long emails whose overall
		// vector drifted can still surface via one on-topic passage.
		chunkHits, err := r.store.SearchChunksVec(ctx, queryVec, pool)
		if err != nil {
			slog.Warn("chunk vector search failed", "error", err)
			vecCh <- vecOut{hits: hits}
			return
		}
		vecCh <- vecOut{hits: mergeVectorHits(hits, chunkHits)}
	}()

	lex := <-lexCh
	vec := <-vecCh
	if lex.err != nil {
		return nil, fmt.Errorf("lexical search: %w", lex.err)
	}

	// A document is a candidate when it matched lexically or has any
	// vector similarity.
	bm25ByDoc := make(map[int64]float64, len(lex.hits))
	snippetByDoc := make(map[int64]string, len(lex.hits))
	for _, h := range lex.hits {
		bm25ByDoc[h.DocID] = h.Score
		snippetByDoc[h.DocID] = h.Snippet
	}
	vecByDoc := make(map[int64]float64, len(vec.hits))
	for _, h := range vec.hits {
		if h.Score > 0 {
			vecByDoc[h.DocID] = h.Score
		}
	}

	ids := make([]int64, 0, len(bm25ByDoc)+len(vecByDoc))
	for id := range bm25ByDoc {
		ids = append(ids, id)
	}
	for id := range vecByDoc {
		if _, ok := bm25ByDoc[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return &Results{Hits: []Hit{}, Total: 0, HasMore: false, NextOffset: offset, Lang: lang}, nil
	}

	docs, err := r.store.GetDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}
	tagsByDoc, err := r.store.DocumentTags(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading tags: %w", err)
	}

	scored := scoreAndFilter(docs, p, scoreInputs{
		bm25:      bm25ByDoc,
		vec:       vecByDoc,
		snippets:  snippetByDoc,
		tags:      tagsByDoc,
		decayDays: decayDays,
	})

	scored = dedupeHits(scored)
	sortHits(scored, p.OrderByTime)

	total := len(scored)
	page := paginate(scored, offset, limit)

	hits := make([]Hit, len(page))
	for i, sh := range page {
		hits[i] = sh.Hit
	}

	return &Results{
		Hits:       hits,
		Total:      total,
		HasMore:    offset+len(hits) < total,
		NextOffset: offset + len(hits),
		Lang:       lang,
	}, nil
}

// mergeVectorHits keeps the best score per document across the document
// and chunk KNN legs.
func mergeVectorHits(docHits, chunkHits []store.VectorHit) []store.VectorHit {
	best := make(map[int64]float64, len(docHits))
	for _, h := range docHits {
		if h.Score > best[h.DocID] {
			best[h.DocID] = h.Score
		}
	}
	for _, h := range chunkHits {
		if h.Score > best[h.DocID] {
			best[h.DocID] = h.Score
		}
	}
	out := make([]store.VectorHit, 0, len(best))
	for id, score := range best {
		out = append(out, store.VectorHit{DocID: id, Score: score})
	}
	return out
}

func clampInt(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

package store

import (
	"context"
	"strings"
)

// LexicalHit is one document from the full-text leg. Score is the
// normalized BM25 relevance in [0, 1).
type LexicalHit struct {
	DocID   int64   `json:"doc_id"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// VectorHit is one document (or chunk) from the KNN leg. Score is
// cosine similarity floored at zero.
type VectorHit struct {
	DocID   int64   `json:"doc_id"`
	ChunkID int64   `json:"chunk_id,omitempty"`
	Score   float64 `json:"score"`
}

// ChunkHit is a passage selected from the chunk full-text index.
type ChunkHit struct {
	DocID int64   `json:"doc_id"`
	Ord   int     `json:"ord"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SearchDocumentsFTS runs the lexical leg over documents_fts. Column
// weights 4/2/1 favor title over preview over body; the raw BM25 value
// is normalized with s/(s+1) so it composes with the other signals.
// The snippet highlights matches in plain_text with <mark> tags.
func (s *Store) SearchDocumentsFTS(ctx context.Context, match string, limit int) ([]LexicalHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid,
			bm25(documents_fts, 4.0, 2.0, 1.0) AS rank,
			snippet(documents_fts, 2, '<mark>', '</mark>', '…', 20)
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		var rank float64
		if err := rows.Scan(&h.DocID, &rank, &h.Snippet); err != nil {
			return nil, err
		}
		// FTS5 rank is negative (lower = better).
		raw := -rank
		if raw < 0 {
			raw = 0
		}
		h.Score = raw / (raw + 1)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchDocumentsVec performs a KNN search over document vectors.
func (s *Store) SearchDocumentsVec(ctx context.Context, queryVec []float32, k int) ([]VectorHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, distance
		FROM vec_documents
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, serializeFloat32(queryVec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		var distance float64
		if err := rows.Scan(&h.DocID, &distance); err != nil {
			return nil, err
		}
		h.Score = cosineScore(distance)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchChunksVec performs a KNN search over chunk vectors, resolving
// each hit to its parent document.
func (s *Store) SearchChunksVec(ctx context.Context, queryVec []float32, k int) ([]VectorHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.distance, c.document_id
		FROM vec_chunks v
		JOIN document_chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryVec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		var distance float64
		if err := rows.Scan(&h.ChunkID, &distance, &h.DocID); err != nil {
			return nil, err
		}
		h.Score = cosineScore(distance)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// TopChunksFTS returns the best-matching passages from the given
// documents, used to assemble answer context.
func (s *Store) TopChunksFTS(ctx context.Context, match string, docIDs []int64, limit int) ([]ChunkHit, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT c.document_id, c.ord, c.text, f.rank
		FROM chunks_fts f
		JOIN document_chunks c ON c.id = f.rowid
		WHERE chunks_fts MATCH ?
		  AND c.document_id IN (?` + repeatPlaceholders(len(docIDs)-1) + `)
		ORDER BY f.rank
		LIMIT ?`

	args := make([]interface{}, 0, len(docIDs)+2)
	args = append(args, match)
	for _, id := range docIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []ChunkHit
	for rows.Next() {
		var h ChunkHit
		var rank float64
		if err := rows.Scan(&h.DocID, &h.Ord, &h.Text, &rank); err != nil {
			return nil, err
		}
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// LatestFromQuery selects recent documents by sender identity.
type LatestFromQuery struct {
	// Sender matches case-insensitively against the sender name/address
	// fields recorded in metadata, plus title and preview.
	Sender string
	// Domain matches the sender's mail domain or the source URL.
	Domain string
	// DateFrom/DateTo bound ts (inclusive), in TimeFormat. Empty = open.
	DateFrom string
	DateTo   string
	Limit    int
}

// LatestFrom answers "the most recent documents from X": a structured
// recency query with no relevance scoring, newest first with unknown
// timestamps last.
func (s *Store) LatestFrom(ctx context.Context, q LatestFromQuery) ([]Document, error) {
	var conds []string
	var args []interface{}

	if q.Sender != "" {
		pat := "%" + strings.ToLower(q.Sender) + "%"
		conds = append(conds, `(
			LOWER(COALESCE(json_extract(d.metadata, '$.from_name'), '')) LIKE ?
			OR LOWER(COALESCE(json_extract(d.metadata, '$.from_email'), '')) LIKE ?
			OR LOWER(COALESCE(json_extract(d.metadata, '$.display_name'), '')) LIKE ?
			OR LOWER(COALESCE(d.title, '')) LIKE ?
			OR LOWER(COALESCE(d.preview, '')) LIKE ?
		)`)
		args = append(args, pat, pat, pat, pat, pat)
	}
	if q.Domain != "" {
		domain := strings.ToLower(strings.TrimPrefix(q.Domain, "@"))
		conds = append(conds, `(
			LOWER(COALESCE(d.source_url, '')) LIKE ?
			OR LOWER(COALESCE(json_extract(d.metadata, '$.from_email'), '')) LIKE ?
			OR LOWER(COALESCE(json_extract(d.metadata, '$.from_domain'), '')) = ?
		)`)
		args = append(args, "%"+domain+"%", "%@"+domain, domain)
	}
	if q.DateFrom != "" {
		conds = append(conds, "d.ts >= ?")
		args = append(args, q.DateFrom)
	}
	if q.DateTo != "" {
		conds = append(conds, "d.ts <= ?")
		args = append(args, q.DateTo)
	}

	query := "SELECT " + documentColumnsD + documentFrom
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY d.ts IS NULL, d.ts DESC, d.id DESC LIMIT ?"

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func cosineScore(distance float64) float64 {
	score := 1.0 - distance
	if score < 0 {
		return 0
	}
	return score
}

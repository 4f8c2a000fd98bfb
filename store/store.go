package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// TimeFormat is the canonical timestamp layout for all ts/created_at
// columns. RFC 3339 UTC at second precision sorts lexicographically.
const TimeFormat = "2006-01-02T15:04:05Z"

// Source represents a row in the sources table.
type Source struct {
	ID        int64  `json:"id"`
	Provider  string `json:"provider"`
	AccountID string `json:"account_id"`
	CreatedAt string `json:"created_at"`
}

// Document represents a row in the documents table. Provider is joined
// in from the owning source.
type Document struct {
	ID          int64  `json:"id"`
	SourceID    int64  `json:"source_id"`
	Provider    string `json:"provider"`
	ExternalID  string `json:"external_id"`
	SourceType  string `json:"source_type"`
	Title       string `json:"title"`
	Preview     string `json:"preview"`
	PlainText   string `json:"plain_text"`
	ContentHash string `json:"content_hash"`
	Lang        string `json:"lang"`
	TS          string `json:"ts"`
	SourceURL   string `json:"source_url"`
	Metadata    string `json:"metadata,omitempty"`
	DeletedAt   string `json:"deleted_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Chunk represents a row in the document_chunks table.
type Chunk struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Ord        int    `json:"ord"`
	Text       string `json:"text"`
}

// IngestWrite is the full write set of one document ingest. ApplyIngest
// commits all of it in a single transaction.
type IngestWrite struct {
	SourceID    int64
	ExternalID  string
	SourceType  string
	Title       string
	Preview     string
	PlainText   string
	ContentHash string
	Lang        string
	TS          string
	SourceURL   string
	Metadata    string
	Tags        []string
	Chunks      []string
	ChunkVecs   [][]float32
	DocVec      []float32
}

// Store wraps the SQLite database for all mailvault persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including sqlite-vec and FTS5 virtual tables.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Source operations ---

// UpsertSource inserts a source if missing and returns its ID.
func (s *Store) UpsertSource(ctx context.Context, provider, accountID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (provider, account_id) VALUES (?, ?)
		ON CONFLICT(provider, account_id) DO NOTHING
	`, provider, accountID)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		row := s.db.QueryRowContext(ctx,
			"SELECT id FROM sources WHERE provider = ? AND account_id = ?",
			provider, accountID)
		if err := row.Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// --- Document lookups ---

// FindByContentHash returns the ID of a document with the given hash in
// a source, or 0 when none exists. This is the ingest dedup check.
func (s *Store) FindByContentHash(ctx context.Context, sourceID int64, hash string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE source_id = ? AND content_hash = ? LIMIT 1",
		sourceID, hash).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ExistsExternal reports whether a live (not soft-deleted) document with
// the given external ID exists. accountID narrows the probe to one
// source; empty means any account of the provider. The external ID also
// matches the message_id recorded in metadata, since mail providers
// expose both identifiers.
func (s *Store) ExistsExternal(ctx context.Context, provider, accountID, sourceType, externalID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM documents d
		JOIN sources s ON s.id = d.source_id
		WHERE s.provider = ?
		  AND d.source_type = ?
		  AND d.deleted_at IS NULL
		  AND (d.external_id = ? OR json_extract(d.metadata, '$.message_id') = ?)`
	args := []interface{}{provider, sourceType, externalID, externalID}
	if accountID != "" {
		query += " AND s.account_id = ?"
		args = append(args, accountID)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByExternal fetches a live document by provider/account/external ID.
// Returns sql.ErrNoRows when absent or soft-deleted.
func (s *Store) GetByExternal(ctx context.Context, provider, accountID, externalID string) (*Document, error) {
	query := `
		SELECT ` + documentColumnsD + ` FROM documents d
		JOIN sources s ON s.id = d.source_id
		WHERE s.provider = ? AND d.external_id = ? AND d.deleted_at IS NULL`
	args := []interface{}{provider, externalID}
	if accountID != "" {
		query += " AND s.account_id = ?"
		args = append(args, accountID)
	}
	query += " LIMIT 1"

	row := s.db.QueryRowContext(ctx, query, args...)
	d, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// documentColumnsD selects a full Document row; every query using it
// aliases documents as d and joins sources as s for the provider.
const documentColumnsD = `d.id, d.source_id, s.provider, d.external_id, d.source_type,
	COALESCE(d.title, ''), COALESCE(d.preview, ''), d.plain_text, d.content_hash,
	COALESCE(d.lang, ''), COALESCE(d.ts, ''), COALESCE(d.source_url, ''),
	COALESCE(d.metadata, ''), COALESCE(d.deleted_at, ''), d.created_at, d.updated_at`

const documentFrom = " FROM documents d JOIN sources s ON s.id = d.source_id"

func scanDocument(row interface{ Scan(...interface{}) error }) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.SourceID, &d.Provider, &d.ExternalID, &d.SourceType,
		&d.Title, &d.Preview, &d.PlainText, &d.ContentHash,
		&d.Lang, &d.TS, &d.SourceURL,
		&d.Metadata, &d.DeletedAt, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumnsD+documentFrom+" WHERE d.id = ?", id)
	d, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDocuments retrieves documents by ID, newest first. Unknown IDs are
// silently skipped.
func (s *Store) GetDocuments(ctx context.Context, ids []int64) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := "SELECT " + documentColumnsD + documentFrom + " WHERE d.id IN (?" +
		repeatPlaceholders(len(ids)-1) + ") ORDER BY d.ts IS NULL, d.ts DESC, d.id DESC"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

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

// DocumentTags returns the tag names attached to each of the given documents.
func (s *Store) DocumentTags(ctx context.Context, ids []int64) (map[int64][]string, error) {
	if len(ids) == 0 {
		return map[int64][]string{}, nil
	}

	query := `
		SELECT dt.document_id, t.name FROM document_tags dt
		JOIN tags t ON t.id = dt.tag_id
		WHERE dt.document_id IN (?` + repeatPlaceholders(len(ids)-1) + `)
		ORDER BY t.name`
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]string, len(ids))
	for rows.Next() {
		var docID int64
		var name string
		if err := rows.Scan(&docID, &name); err != nil {
			return nil, err
		}
		out[docID] = append(out[docID], name)
	}
	return out, rows.Err()
}

// ChunksByDocument returns all chunks for a document in order.
func (s *Store) ChunksByDocument(ctx context.Context, docID int64) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, ord, text FROM document_chunks
		WHERE document_id = ? ORDER BY ord
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ord, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// --- Ingest write path ---

// ApplyIngest commits one document's full write set atomically: document
// upsert, chunk replacement (relational, FTS via triggers, vectors), the
// document mean vector, and the tag set. Returns the document ID.
func (s *Store) ApplyIngest(ctx context.Context, w IngestWrite) (int64, error) {
	var docID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO documents (source_id, external_id, source_type, title, preview,
				plain_text, content_hash, lang, ts, source_url, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_id, external_id) DO UPDATE SET
				source_type = excluded.source_type,
				title = excluded.title,
				preview = excluded.preview,
				plain_text = excluded.plain_text,
				content_hash = excluded.content_hash,
				lang = excluded.lang,
				ts = excluded.ts,
				source_url = excluded.source_url,
				metadata = excluded.metadata,
				deleted_at = NULL,
				updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		`, w.SourceID, w.ExternalID, w.SourceType, nullIfEmpty(w.Title), nullIfEmpty(w.Preview),
			w.PlainText, w.ContentHash, nullIfEmpty(w.Lang), nullIfEmpty(w.TS),
			nullIfEmpty(w.SourceURL), nullIfEmpty(w.Metadata))
		if err != nil {
			return fmt.Errorf("upserting document: %w", err)
		}

		docID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		// If UPSERT did an UPDATE, LastInsertId may not reflect the existing row.
		if docID == 0 {
			row := tx.QueryRowContext(ctx,
				"SELECT id FROM documents WHERE source_id = ? AND external_id = ?",
				w.SourceID, w.ExternalID)
			if err := row.Scan(&docID); err != nil {
				return err
			}
		}

		// Replace chunks wholesale. A changed hash invalidates every
		// chunk; no incremental diffing.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE chunk_id IN (
				SELECT id FROM document_chunks WHERE document_id = ?
			)`, docID); err != nil {
			return fmt.Errorf("clearing chunk vectors: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM document_chunks WHERE document_id = ?", docID); err != nil {
			return fmt.Errorf("clearing chunks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO document_chunks (document_id, ord, text) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		vecStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer vecStmt.Close()

		for i, text := range w.Chunks {
			res, err := stmt.ExecContext(ctx, docID, i, text)
			if err != nil {
				return fmt.Errorf("inserting chunk %d: %w", i, err)
			}
			chunkID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			if i < len(w.ChunkVecs) && w.ChunkVecs[i] != nil {
				if _, err := vecStmt.ExecContext(ctx, chunkID, serializeFloat32(w.ChunkVecs[i])); err != nil {
					return fmt.Errorf("inserting chunk vector %d: %w", i, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM vec_documents WHERE document_id = ?", docID); err != nil {
			return fmt.Errorf("clearing document vector: %w", err)
		}
		if w.DocVec != nil {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO vec_documents (document_id, embedding) VALUES (?, ?)",
				docID, serializeFloat32(w.DocVec)); err != nil {
				return fmt.Errorf("inserting document vector: %w", err)
			}
		}

		// Replace the tag set.
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM document_tags WHERE document_id = ?", docID); err != nil {
			return fmt.Errorf("clearing tags: %w", err)
		}
		for _, name := range w.Tags {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name); err != nil {
				return fmt.Errorf("upserting tag %q: %w", name, err)
			}
			var tagID int64
			if err := tx.QueryRowContext(ctx,
				"SELECT id FROM tags WHERE name = ?", name).Scan(&tagID); err != nil {
				return fmt.Errorf("resolving tag %q: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO document_tags (document_id, tag_id) VALUES (?, ?)",
				docID, tagID); err != nil {
				return fmt.Errorf("attaching tag %q: %w", name, err)
			}
		}

		return nil
	})
	return docID, err
}

// SoftDeleteDocument marks a document deleted without removing its rows.
// Existence probes skip soft-deleted documents; search does not.
func (s *Store) SoftDeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET deleted_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now'),
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ? AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func repeatPlaceholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

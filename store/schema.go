package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimensions.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Ingestion sources, one row per (provider, account)
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY,
    provider TEXT NOT NULL,
    account_id TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now')),
    UNIQUE(provider, account_id)
);

-- Documents with hash-based duplicate detection
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    external_id TEXT NOT NULL,
    source_type TEXT NOT NULL DEFAULT 'email',
    title TEXT,
    preview TEXT,
    plain_text TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    lang TEXT,
    ts TEXT,
    source_url TEXT,
    metadata JSON,
    deleted_at TEXT,
    created_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now')),
    updated_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now')),
    UNIQUE(source_id, external_id)
);

-- Ordered text chunks per document
CREATE TABLE IF NOT EXISTS document_chunks (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    ord INTEGER NOT NULL,
    text TEXT NOT NULL
);

-- Normalized tag vocabulary (case-insensitive unique)
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL COLLATE NOCASE UNIQUE
);

CREATE TABLE IF NOT EXISTS document_tags (
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (document_id, tag_id)
);

-- Document-level vectors via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(
    document_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

-- Chunk-level vectors via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

-- Full-text search over documents. Column order matters: bm25() weights
-- are positional (title, preview, plain_text).
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    title,
    preview,
    plain_text,
    content='documents',
    content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, title, preview, plain_text)
    VALUES (new.id, new.title, new.preview, new.plain_text);
END;
CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, preview, plain_text)
    VALUES ('delete', old.id, old.title, old.preview, old.plain_text);
END;
CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, preview, plain_text)
    VALUES ('delete', old.id, old.title, old.preview, old.plain_text);
    INSERT INTO documents_fts(rowid, title, preview, plain_text)
    VALUES (new.id, new.title, new.preview, new.plain_text);
END;

-- Full-text search over chunks (passage selection for answer prompts)
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    text,
    content='document_chunks',
    content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON document_chunks BEGIN
    INSERT INTO chunks_fts(rowid, text) VALUES (new.id, new.text);
END;
CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON document_chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.id, old.text);
END;
CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON document_chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.id, old.text);
    INSERT INTO chunks_fts(rowid, text) VALUES (new.id, new.text);
END;

-- Indexes
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(source_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_ts ON documents(ts);
CREATE INDEX IF NOT EXISTS idx_documents_external ON documents(external_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_document_tags_tag ON document_tags(tag_id);
`, embeddingDim, embeddingDim)
}

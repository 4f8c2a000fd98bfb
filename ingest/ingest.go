// Package ingest turns raw email payloads into indexed documents:
// normalization, dedup, chunking, embedding, tagging and the single
// atomic write.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/osoylu/mailvault/chunker"
	"github.com/osoylu/mailvault/extract"
	"github.com/osoylu/mailvault/llm"
	"github.com/osoylu/mailvault/normalize"
	"github.com/osoylu/mailvault/store"
	"github.com/osoylu/mailvault/tags"
)

// ErrEmptyPlainText rejects items whose cleaned body (including any
// attachment text) is empty.
var ErrEmptyPlainText = errors.New("ingest: plain_text is empty")

const previewChars = 300

// Item is one normalized ingest payload. The HTTP layer collapses its
// accepted request shapes into this struct.
type Item struct {
	Provider   string
	AccountID  string
	ExternalID string
	SourceType string // defaults to "email"

	Subject   string
	Body      string
	Snippet   string
	RawDate   string // RFC 2822 date header
	FromName  string
	FromEmail string
	SourceURL string

	Labels      []string // provider labels, folded into tags
	Tags        []string // client-supplied tags
	Attachments []Attachment
}

// Attachment is a decoded email attachment.
type Attachment struct {
	Filename string
	Content  []byte
}

// Result reports the outcome of one ingest.
type Result struct {
	DocumentID string   `json:"document_id"`
	Dedup      bool     `json:"dedup"`
	NChunks    int      `json:"n_chunks"`
	Tags       []string `json:"tags"`
	Lang       string   `json:"lang"`
}

// Ingestor runs the ingestion pipeline.
type Ingestor struct {
	store    *store.Store
	embedder *llm.Embedder
	tagger   *tags.Extractor
	chunkCfg chunker.Config
}

// New builds an Ingestor.
func New(s *store.Store, embedder *llm.Embedder, tagger *tags.Extractor, chunkCfg chunker.Config) *Ingestor {
	return &Ingestor{store: s, embedder: embedder, tagger: tagger, chunkCfg: chunkCfg}
}

// Ingest processes one item end to end. Expensive work (chunking,
// embedding, tagging) happens before the write transaction opens, so
// the store mutates atomically or not at all. A content-hash match
// short-circuits before any of that work.
func (ing *Ingestor) Ingest(ctx context.Context, item Item) (*Result, error) {
	if item.Provider == "" {
		item.Provider = "gmail"
	}
	if item.SourceType == "" {
		item.SourceType = "email"
	}
	if item.ExternalID == "" {
		return nil, fmt.Errorf("ingest: external_id is required")
	}

	plain := normalize.CleanBody(item.Body)
	plain = ing.appendAttachments(plain, item.Attachments)
	if strings.TrimSpace(plain) == "" {
		return nil, ErrEmptyPlainText
	}

	hash := normalize.ContentHash(item.Subject, plain, item.AccountID, item.ExternalID)

	sourceID, err := ing.store.UpsertSource(ctx, item.Provider, item.AccountID)
	if err != nil {
		return nil, fmt.Errorf("upserting source: %w", err)
	}

	// Dedup before any model call: an unchanged document costs one read.
	if existingID, err := ing.store.FindByContentHash(ctx, sourceID, hash); err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	} else if existingID != 0 {
		slog.Debug("ingest dedup hit", "document_id", existingID, "external_id", item.ExternalID)
		return &Result{DocumentID: strconv.FormatInt(existingID, 10), Dedup: true, NChunks: 0}, nil
	}

	ts, tsFallback := normalize.ParseDate(item.RawDate)
	lang := normalize.DetectLang(item.Subject + "\n" + plain)

	// Provider labels and client tags merge with model tags under one
	// normalization pass; the five-tag cap applies to the union.
	tagList := append(append([]string{}, item.Tags...), item.Labels...)
	tagList = append(tagList, ing.tagger.Extract(ctx, item.Subject, plain)...)
	tagList = tags.Normalize(tagList)

	chunks := chunker.ForKind(item.SourceType, ing.chunkCfg).Split(item.Subject, plain)

	var chunkVecs [][]float32
	var docVec []float32
	if len(chunks) > 0 {
		chunkVecs, err = ing.embedder.Embed(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("embedding chunks: %w", err)
		}
		docVec = llm.Mean(chunkVecs)
	} else {
		// Nothing chunkable; seed the document vector from whatever
		// text best represents it.
		docVec, err = ing.embedder.EmbedOne(ctx, seedText(item.Subject, item.Snippet, plain))
		if err != nil {
			return nil, fmt.Errorf("embedding seed: %w", err)
		}
	}

	preview := strings.TrimSpace(item.Snippet)
	if preview == "" {
		preview = truncateRunes(plain, previewChars)
	}

	metadata, err := buildMetadata(item, tsFallback)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	docID, err := ing.store.ApplyIngest(ctx, store.IngestWrite{
		SourceID:    sourceID,
		ExternalID:  item.ExternalID,
		SourceType:  item.SourceType,
		Title:       item.Subject,
		Preview:     preview,
		PlainText:   plain,
		ContentHash: hash,
		Lang:        lang,
		TS:          ts.Format(store.TimeFormat),
		SourceURL:   item.SourceURL,
		Metadata:    metadata,
		Tags:        tagList,
		Chunks:      chunks,
		ChunkVecs:   chunkVecs,
		DocVec:      docVec,
	})
	if err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}

	slog.Info("document ingested",
		"document_id", docID,
		"external_id", item.ExternalID,
		"n_chunks", len(chunks),
		"lang", lang,
	)

	return &Result{
		DocumentID: strconv.FormatInt(docID, 10),
		NChunks:    len(chunks),
		Tags:       tagList,
		Lang:       lang,
	}, nil
}

// appendAttachments extracts attachment text and appends it to the
// body. Unsupported or broken attachments are skipped.
func (ing *Ingestor) appendAttachments(plain string, atts []Attachment) string {
	for _, a := range atts {
		text, err := extract.Text(a.Filename, a.Content)
		if err != nil {
			if !errors.Is(err, extract.ErrUnsupported) {
				slog.Warn("attachment extraction failed", "filename", a.Filename, "error", err)
			}
			continue
		}
		plain = strings.TrimSpace(plain + "\n\n[Attachment: " + a.Filename + "]\n" + text)
	}
	return plain
}

func seedText(subject, snippet, plain string) string {
	if s := strings.TrimSpace(subject); s != "" {
		return s
	}
	if s := strings.TrimSpace(snippet); s != "" {
		return s
	}
	return truncateRunes(plain, previewChars)
}

func buildMetadata(item Item, tsFallback bool) (string, error) {
	meta := map[string]interface{}{
		"message_id": item.ExternalID,
	}
	if item.FromName != "" {
		meta["from_name"] = item.FromName
		meta["display_name"] = item.FromName
	}
	if item.FromEmail != "" {
		meta["from_email"] = strings.ToLower(item.FromEmail)
		if d := normalize.SenderDomain(item.FromEmail); d != "" {
			meta["from_domain"] = d
		}
	}
	if len(item.Labels) > 0 {
		meta["labels"] = item.Labels
	}
	if tsFallback {
		meta["ts_fallback"] = true
	}
	if len(item.Attachments) > 0 {
		names := make([]string, len(item.Attachments))
		for i, a := range item.Attachments {
			names[i] = a.Filename
		}
		meta["attachments"] = names
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}

package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/osoylu/mailvault"
	"github.com/osoylu/mailvault/ask"
	"github.com/osoylu/mailvault/ingest"
	"github.com/osoylu/mailvault/retrieval"
)

type handler struct {
	engine *mailvault.Engine
}

func newHandler(e *mailvault.Engine) *handler {
	return &handler{engine: e}
}

// ingestItem is the wire shape of one email payload.
type ingestItem struct {
	Provider   string `json:"provider,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
	ExternalID string `json:"external_id"`
	SourceType string `json:"source_type,omitempty"`

	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
	Date      string `json:"date,omitempty"`
	FromName  string `json:"from_name,omitempty"`
	FromEmail string `json:"from_email,omitempty"`
	SourceURL string `json:"source_url,omitempty"`

	Labels      []string         `json:"labels,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Attachments []ingestAttached `json:"attachments,omitempty"`
}

type ingestAttached struct {
	Filename string `json:"filename"`
	// Content is base64-encoded bytes.
	Content string `json:"content"`
}

func (it ingestItem) toItem() (ingest.Item, error) {
	item := ingest.Item{
		Provider:   it.Provider,
		AccountID:  it.AccountID,
		ExternalID: it.ExternalID,
		SourceType: it.SourceType,
		Subject:    it.Subject,
		Body:       it.Body,
		Snippet:    it.Snippet,
		RawDate:    it.Date,
		FromName:   it.FromName,
		FromEmail:  it.FromEmail,
		SourceURL:  it.SourceURL,
		Labels:     it.Labels,
		Tags:       it.Tags,
	}
	for _, a := range it.Attachments {
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return ingest.Item{}, errors.New("attachment " + a.Filename + ": content is not base64")
		}
		item.Attachments = append(item.Attachments, ingest.Attachment{
			Filename: a.Filename,
			Content:  content,
		})
	}
	return item, nil
}

// POST /ingest/gmail
// Accepts a single item, {"items": [...]}, or a bare JSON array.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, 100<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body failed")
		return
	}

	items, err := decodeIngestItems(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "no items to ingest")
		return
	}

	results := make([]map[string]any, 0, len(items))
	for _, it := range items {
		item, err := it.toItem()
		if err != nil {
			results = append(results, map[string]any{
				"external_id": it.ExternalID,
				"error":       err.Error(),
			})
			continue
		}
		res, err := h.engine.Ingest(ctx, item)
		if err != nil {
			slog.Error("ingest error", "external_id", it.ExternalID, "error", err)
			results = append(results, map[string]any{
				"external_id": it.ExternalID,
				"error":       publicError(err),
			})
			continue
		}
		results = append(results, map[string]any{
			"external_id": it.ExternalID,
			"document_id": res.DocumentID,
			"dedup":       res.Dedup,
			"n_chunks":    res.NChunks,
			"tags":        res.Tags,
			"lang":        res.Lang,
		})
	}

	if len(results) == 1 {
		status := http.StatusOK
		if msg, failed := results[0]["error"].(string); failed {
			status = statusFor(msg)
		}
		writeJSON(w, status, results[0])
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// decodeIngestItems accepts the three payload shapes Gmail sync clients
// actually send.
func decodeIngestItems(body []byte) ([]ingestItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty request body")
	}

	if trimmed[0] == '[' {
		var items []ingestItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, errors.New("invalid JSON array")
		}
		return items, nil
	}

	var envelope struct {
		Items []ingestItem `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Items) > 0 {
		return envelope.Items, nil
	}

	var single ingestItem
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, errors.New("invalid JSON: expected an item, an array, or {\"items\": [...]}")
	}
	return []ingestItem{single}, nil
}

// HEAD|GET /ingest/gmail/exists?provider=&account_id=&external_id=&source_type=
func (h *handler) handleExists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	externalID := q.Get("external_id")
	if externalID == "" {
		writeError(w, http.StatusBadRequest, "external_id is required")
		return
	}
	provider := q.Get("provider")
	if provider == "" {
		provider = "gmail"
	}
	sourceType := q.Get("source_type")
	if sourceType == "" {
		sourceType = "email"
	}

	exists, err := h.engine.ExistsExternal(r.Context(), provider, q.Get("account_id"), sourceType, externalID)
	if err != nil {
		slog.Error("exists lookup error", "external_id", externalID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if r.Method == http.MethodHead {
		if exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// POST /search
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Query       string   `json:"query"`
		Tags        []string `json:"tags,omitempty"`
		BoostTags   []string `json:"boost_tags,omitempty"`
		Lang        string   `json:"lang,omitempty"`
		DateFrom    string   `json:"date_from,omitempty"`
		DateTo      string   `json:"date_to,omitempty"`
		Senders     []string `json:"senders,omitempty"`
		Froms       []string `json:"froms,omitempty"`
		IsLabels    []string `json:"is,omitempty"`
		Limit       int      `json:"limit,omitempty"`
		Offset      int      `json:"offset,omitempty"`
		DecayDays   int      `json:"decay_days,omitempty"`
		OrderByTime bool     `json:"order_by_time,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	res, err := h.engine.Search(ctx, retrieval.Params{
		Query:       req.Query,
		Tags:        req.Tags,
		BoostTags:   req.BoostTags,
		Lang:        req.Lang,
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		Senders:     req.Senders,
		Froms:       req.Froms,
		IsLabels:    req.IsLabels,
		Limit:       req.Limit,
		Offset:      req.Offset,
		DecayDays:   req.DecayDays,
		OrderByTime: req.OrderByTime,
	})
	if err != nil {
		slog.Error("search error", "query", req.Query, "error", err)
		writeError(w, statusFor(publicError(err)), publicError(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /ask
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req ask.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	res, err := h.engine.Ask(ctx, req)
	if err != nil {
		slog.Error("ask error", "question", req.Question, "error", err)
		writeError(w, statusFor(publicError(err)), publicError(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /agent/act
// Routing misses and handler failures report inside a 200 response; only
// transport-level problems surface as HTTP errors.
func (h *handler) handleAct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Query  string         `json:"query"`
		Params map[string]any `json:"params,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	res, err := h.engine.Act(ctx, req.Query, req.Params)
	if err != nil {
		slog.Error("act error", "query", req.Query, "error", err)
		writeError(w, http.StatusBadRequest, publicError(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /agents
func (h *handler) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents := h.engine.Agents()
	out := make([]map[string]string, len(agents))
	for i, a := range agents {
		out[i] = map[string]string{
			"name":        a.Name,
			"description": a.Description,
			"params":      a.ParamDoc,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

// GET /items/external?provider=&account_id=&external_id=
func (h *handler) handleLookupExternal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	externalID := q.Get("external_id")
	if externalID == "" {
		writeError(w, http.StatusBadRequest, "external_id is required")
		return
	}
	provider := q.Get("provider")
	if provider == "" {
		provider = "gmail"
	}

	doc, err := h.engine.LookupExternal(r.Context(), provider, q.Get("account_id"), externalID)
	if errors.Is(err, mailvault.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		slog.Error("external lookup error", "external_id", externalID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DELETE /items/{id}
func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.engine.Delete(r.Context(), id)
	switch {
	case errors.Is(err, mailvault.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid document id")
	case errors.Is(err, mailvault.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case err != nil:
		slog.Error("delete error", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// publicError maps engine failures onto stable client-facing messages.
func publicError(err error) string {
	switch {
	case errors.Is(err, mailvault.ErrEmptyPlainText):
		return "plain_text is empty"
	case errors.Is(err, mailvault.ErrInvalidInput):
		return "invalid input"
	case errors.Is(err, mailvault.ErrProviderAuth):
		return "upstream provider rejected credentials"
	case errors.Is(err, mailvault.ErrEmbeddingFailed):
		return "embedding backend unavailable"
	}
	return "request failed"
}

func statusFor(publicMsg string) int {
	switch publicMsg {
	case "plain_text is empty", "invalid input":
		return http.StatusBadRequest
	case "upstream provider rejected credentials", "embedding backend unavailable":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

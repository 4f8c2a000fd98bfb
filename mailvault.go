// Package mailvault is a personal email knowledge vault: it ingests
// mail into a searchable store (full-text, vectors, tags) and answers
// questions over it through hybrid retrieval, a grounded ask flow and
// routed agents.
package mailvault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/osoylu/mailvault/agent"
	"github.com/osoylu/mailvault/ask"
	"github.com/osoylu/mailvault/chunker"
	"github.com/osoylu/mailvault/ingest"
	"github.com/osoylu/mailvault/llm"
	"github.com/osoylu/mailvault/retrieval"
	"github.com/osoylu/mailvault/store"
	"github.com/osoylu/mailvault/tags"
)

// Engine wires every subsystem behind one facade.
type Engine struct {
	cfg Config

	store     *store.Store
	embedder  *llm.Embedder
	ingestor  *ingest.Ingestor
	retriever *retrieval.Retriever
	asker     *ask.Engine
	registry  *agent.Registry
	executor  *agent.Executor
}

type engineOptions struct {
	embedProvider llm.Provider
	chatProvider  llm.Provider
}

// Option customizes engine construction.
type Option func(*engineOptions)

// WithEmbedProvider overrides the embedding provider (tests, custom
// backends).
func WithEmbedProvider(p llm.Provider) Option {
	return func(o *engineOptions) { o.embedProvider = p }
}

// WithChatProvider overrides the chat provider.
func WithChatProvider(p llm.Provider) Option {
	return func(o *engineOptions) { o.chatProvider = p }
}

// New builds an Engine from configuration. Agents register here,
// explicitly; nothing registers itself via import side effects.
func New(cfg Config, opts ...Option) (*Engine, error) {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	s, err := store.New(cfg.DBPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	embedProvider := o.embedProvider
	if embedProvider == nil {
		embedProvider, err = llm.NewProvider(llm.Config{
			Provider: cfg.Embedding.Provider,
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
			APIKey:   cfg.Embedding.APIKey,
			Dim:      cfg.EmbeddingDim,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
	}
	embedder := llm.NewEmbedder(embedProvider, llm.EmbedderConfig{
		Dim:       cfg.EmbeddingDim,
		Batch:     cfg.EmbedBatch,
		RetryMax:  cfg.RetryMax,
		BaseSleep: cfg.RetryBaseSleep,
	})

	// Chat is optional: without credentials every chat-backed feature
	// degrades to its deterministic fallback.
	chatProvider := o.chatProvider
	if chatProvider == nil && cfg.Chat.APIKey != "" {
		chatProvider, err = llm.NewProvider(llm.Config{
			Provider: cfg.Chat.Provider,
			Model:    cfg.Chat.Model,
			BaseURL:  cfg.Chat.BaseURL,
			APIKey:   cfg.Chat.APIKey,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("chat provider: %w", err)
		}
	}

	tagger := tags.NewExtractor(
		llm.NewChatClient(chatProvider, cfg.TagModel),
		cfg.TagModel, cfg.TagTextBudget, cfg.EnableTags)

	chunkCfg := chunker.Config{
		Target:  cfg.ChunkTarget,
		Overlap: cfg.ChunkOverlap,
		MinJoin: cfg.ChunkMinJoin,
		MinKeep: cfg.ChunkMinKeep,
	}

	ingestor := ingest.New(s, embedder, tagger, chunkCfg)
	retriever := retrieval.New(s, embedder)
	asker := ask.New(retriever, s,
		llm.NewChatClient(chatProvider, cfg.AskChatModel), cfg.AskChatModel)

	registry := agent.NewRegistry()
	for _, a := range []agent.Agent{
		agent.FindAgent(retriever),
		agent.LatestFromAgent(s),
		agent.SummarizeAgent(s,
			llm.NewChatClient(chatProvider, cfg.SummaryModel), cfg.SummaryModel),
	} {
		if err := registry.Register(a); err != nil {
			s.Close()
			return nil, err
		}
	}
	router := agent.NewRouter(registry,
		llm.NewChatClient(chatProvider, cfg.IntentModel), cfg.IntentModel)

	return &Engine{
		cfg:       cfg,
		store:     s,
		embedder:  embedder,
		ingestor:  ingestor,
		retriever: retriever,
		asker:     asker,
		registry:  registry,
		executor:  agent.NewExecutor(registry, router),
	}, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Warmup primes the embedding provider. Safe to call repeatedly.
func (e *Engine) Warmup(ctx context.Context) error {
	return e.embedder.Warmup(ctx)
}

// Ingest runs the ingestion pipeline for one item.
func (e *Engine) Ingest(ctx context.Context, item ingest.Item) (*ingest.Result, error) {
	res, err := e.ingestor.Ingest(ctx, item)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

// Search runs a hybrid search.
func (e *Engine) Search(ctx context.Context, p retrieval.Params) (*retrieval.Results, error) {
	res, err := e.retriever.Search(ctx, p)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

// Ask answers a natural-language question over the archive.
func (e *Engine) Ask(ctx context.Context, req ask.Request) (*ask.Response, error) {
	res, err := e.asker.Ask(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

// Act routes a query to an agent and executes it.
func (e *Engine) Act(ctx context.Context, query string, params map[string]any) (*agent.ActResult, error) {
	return e.executor.Act(ctx, query, params)
}

// Agents lists the registered agents.
func (e *Engine) Agents() []agent.Agent {
	return e.registry.List()
}

// ExistsExternal probes for a live document by its provider-side ID.
func (e *Engine) ExistsExternal(ctx context.Context, provider, accountID, sourceType, externalID string) (bool, error) {
	return e.store.ExistsExternal(ctx, provider, accountID, sourceType, externalID)
}

// LookupExternal fetches a live document by its provider-side ID.
// Returns ErrDocumentNotFound when absent or soft-deleted.
func (e *Engine) LookupExternal(ctx context.Context, provider, accountID, externalID string) (*store.Document, error) {
	doc, err := e.store.GetByExternal(ctx, provider, accountID, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete soft-deletes a document by ID.
func (e *Engine) Delete(ctx context.Context, id string) error {
	docID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad document id %q", ErrInvalidInput, id)
	}
	err = e.store.SoftDeleteDocument(ctx, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDocumentNotFound
	}
	return err
}

// mapError translates subsystem failures onto the package sentinels the
// HTTP layer keys its status codes on.
func mapError(err error) error {
	switch {
	case errors.Is(err, ingest.ErrEmptyPlainText):
		return fmt.Errorf("%w: %w", ErrEmptyPlainText, err)
	case llm.IsAuth(err):
		return fmt.Errorf("%w: %w", ErrProviderAuth, err)
	case errors.Is(err, llm.ErrDimensionMismatch):
		return fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
	case errors.Is(err, llm.ErrEmbed):
		return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	return err
}

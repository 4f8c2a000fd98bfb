package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	embedTimeout  = 60 * time.Second
	warmupTimeout = 30 * time.Second
)

// EmbedderConfig tunes batching and retry for an Embedder.
type EmbedderConfig struct {
	// Dim is the expected vector dimension. Vectors of any other length
	// fail the call without retry.
	Dim int
	// Batch is the maximum number of texts sent per provider call.
	Batch int
	// RetryMax is the total attempt budget per batch.
	RetryMax int
	// BaseSleep is the first backoff delay; it doubles per attempt.
	BaseSleep time.Duration
}

// Embedder wraps a Provider with batching, retry and a warmup latch.
type Embedder struct {
	provider Provider
	cfg      EmbedderConfig

	warmOnce sync.Once
	warmErr  error
}

// NewEmbedder builds an Embedder over the given provider.
func NewEmbedder(provider Provider, cfg EmbedderConfig) *Embedder {
	if cfg.Batch <= 0 {
		cfg.Batch = 64
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 4
	}
	if cfg.BaseSleep <= 0 {
		cfg.BaseSleep = time.Second
	}
	return &Embedder{provider: provider, cfg: cfg}
}

// Dim returns the configured vector dimension.
func (e *Embedder) Dim() int { return e.cfg.Dim }

// Embed generates one vector per input text, preserving order. Inputs are
// sent in batches; each batch retries on rate limits and transient
// failures with exponential backoff, and fails permanently on anything
// else (bad credentials, dimension drift, malformed requests).
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: empty text at index %d", errEmptyText, i)
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.Batch {
		end := start + e.cfg.Batch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedOne embeds a single text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

var errEmptyText = fmt.Errorf("empty text item")

// IsEmptyText reports whether err came from an empty input item.
func IsEmptyText(err error) bool {
	return err != nil && strings.Contains(err.Error(), errEmptyText.Error())
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vecs [][]float32

	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		defer cancel()

		got, err := e.provider.Embed(callCtx, batch)
		if err != nil {
			if IsRateLimited(err) || IsTransient(err) {
				slog.Warn("embed batch failed, will retry", "size", len(batch), "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		if len(got) != len(batch) {
			return backoff.Permanent(fmt.Errorf("provider returned %d vectors for %d texts", len(got), len(batch)))
		}
		for i, v := range got {
			if e.cfg.Dim > 0 && len(v) != e.cfg.Dim {
				return backoff.Permanent(fmt.Errorf("%w: vector %d has dimension %d, want %d",
					ErrDimensionMismatch, i, len(v), e.cfg.Dim))
			}
		}
		vecs = got
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.BaseSleep
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.cfg.RetryMax-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbed, err)
	}
	return vecs, nil
}

// ErrEmbed marks terminal embedding failures (after the retry budget).
var ErrEmbed = fmt.Errorf("llm: embedding failed")

// ErrDimensionMismatch marks vectors whose length differs from the
// configured dimension. Never retried.
var ErrDimensionMismatch = fmt.Errorf("llm: embedding dimension mismatch")

// Warmup primes the provider once per process. With Ollama this forces
// the model into memory before the first real ingest; with hosted APIs
// it validates credentials early. Concurrent and repeated calls share
// the single outcome.
func (e *Embedder) Warmup(ctx context.Context) error {
	e.warmOnce.Do(func() {
		warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
		defer cancel()

		start := time.Now()
		_, err := e.provider.Embed(warmCtx, []string{"warmup"})
		if err != nil {
			e.warmErr = fmt.Errorf("embedding warmup: %w", err)
			slog.Warn("embedding warmup failed", "error", err)
			return
		}
		slog.Info("embedding provider warmed up", "took", time.Since(start))
	})
	return e.warmErr
}

// Mean averages vectors element-wise. All inputs must share one length;
// empty input yields nil.
func Mean(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	sum := make([]float64, dim)
	for _, v := range vecs {
		for i := 0; i < dim && i < len(v); i++ {
			sum[i] += float64(v[i])
		}
	}
	mean := make([]float32, dim)
	for i, s := range sum {
		mean[i] = float32(s / float64(len(vecs)))
	}
	return mean
}

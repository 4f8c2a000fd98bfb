package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider fails a fixed number of times before succeeding, and
// records batch sizes.
type scriptedProvider struct {
	failures int
	failWith error
	dim      int
	calls    int
	batches  [][]string
}

func (p *scriptedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return nil, errors.New("not a chat provider")
}

func (p *scriptedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls++
	p.batches = append(p.batches, texts)
	if p.failures > 0 {
		p.failures--
		return nil, p.failWith
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dim)
		out[i][0] = 1
	}
	return out, nil
}

func testEmbedder(p Provider) *Embedder {
	return NewEmbedder(p, EmbedderConfig{
		Dim:       4,
		Batch:     2,
		RetryMax:  3,
		BaseSleep: time.Millisecond,
	})
}

// ---------------------------------------------------------------------------
// Batching and ordering
// ---------------------------------------------------------------------------

func TestEmbedBatching(t *testing.T) {
	p := &scriptedProvider{dim: 4}
	e := testEmbedder(p)

	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	// Batch size 2 over 5 texts means 3 calls.
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, []string{"a", "b"}, p.batches[0])
	assert.Equal(t, []string{"e"}, p.batches[2])
}

func TestEmbedEmptyInput(t *testing.T) {
	e := testEmbedder(&scriptedProvider{dim: 4})
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	e := testEmbedder(&scriptedProvider{dim: 4})
	_, err := e.Embed(context.Background(), []string{"ok", "   "})
	require.Error(t, err)
	assert.True(t, IsEmptyText(err))
}

// ---------------------------------------------------------------------------
// Retry classification
// ---------------------------------------------------------------------------

func TestEmbedRetriesTransient(t *testing.T) {
	p := &scriptedProvider{dim: 4, failures: 2, failWith: errors.New("request timeout")}
	e := testEmbedder(p)

	vecs, err := e.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, 3, p.calls)
}

func TestEmbedExhaustsRetryBudget(t *testing.T) {
	p := &scriptedProvider{dim: 4, failures: 10, failWith: errors.New("503 service unavailable")}
	e := testEmbedder(p)

	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbed)
	// RetryMax bounds total attempts.
	assert.Equal(t, 3, p.calls)
}

func TestEmbedPermanentFailureNoRetry(t *testing.T) {
	p := &scriptedProvider{dim: 4, failures: 10, failWith: errors.New("invalid request")}
	e := testEmbedder(p)

	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbed)
	assert.Equal(t, 1, p.calls)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	p := &scriptedProvider{dim: 3}
	e := testEmbedder(p) // expects dim 4

	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, ErrEmbed)
	assert.Equal(t, 1, p.calls)
}

// ---------------------------------------------------------------------------
// Warmup
// ---------------------------------------------------------------------------

func TestWarmupOnce(t *testing.T) {
	p := &scriptedProvider{dim: 4}
	e := testEmbedder(p)

	require.NoError(t, e.Warmup(context.Background()))
	require.NoError(t, e.Warmup(context.Background()))
	assert.Equal(t, 1, p.calls)
}

func TestWarmupFailureSticks(t *testing.T) {
	p := &scriptedProvider{dim: 4, failures: 10, failWith: errors.New("connection refused")}
	e := testEmbedder(p)

	err1 := e.Warmup(context.Background())
	err2 := e.Warmup(context.Background())
	assert.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.Equal(t, 1, p.calls)
}

// ---------------------------------------------------------------------------
// Mean
// ---------------------------------------------------------------------------

func TestMean(t *testing.T) {
	got := Mean([][]float32{{1, 2}, {3, 4}})
	assert.Equal(t, []float32{2, 3}, got)
}

func TestMeanEmpty(t *testing.T) {
	assert.Nil(t, Mean(nil))
}

// ---------------------------------------------------------------------------
// Local provider
// ---------------------------------------------------------------------------

func TestLocalProviderDeterministic(t *testing.T) {
	p, err := NewLocal(Config{Dim: 8})
	require.NoError(t, err)

	a, err := p.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := p.Embed(context.Background(), []string{"different"})
	require.NoError(t, err)
	assert.NotEqual(t, a[0], c[0])
}

func TestLocalProviderRequiresDim(t *testing.T) {
	_, err := NewLocal(Config{})
	assert.Error(t, err)
}

package llm

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/crypto/blake2b"
)

// localProvider fabricates deterministic unit vectors instead of calling
// an embedding API. Intended for offline development and tests: the same
// text always maps to the same vector, and distinct texts land far apart,
// so ranking code behaves sensibly without network access.
type localProvider struct {
	dim int
}

// NewLocal creates the offline embedding provider.
func NewLocal(cfg Config) (Provider, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("local provider requires a positive dimension, got %d", cfg.Dim)
	}
	return &localProvider{dim: cfg.Dim}, nil
}

func (p *localProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return nil, fmt.Errorf("local provider does not support chat")
}

func (p *localProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = pseudoVector(text, p.dim)
	}
	return out, nil
}

// pseudoVector hashes the text into an RNG seed and draws a normalized
// gaussian vector from it.
func pseudoVector(text string, dim int) []float32 {
	sum := blake2b.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	v := make([]float32, dim)
	var norm float64
	for i := range v {
		x := rng.NormFloat64()
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

package app

import (
	"context"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/embedding"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/resilience"
)

// resilientEmbedder guards every call into the underlying embedding engine
// with a CircuitBreaker, per §2.1's "a CircuitBreaker guarding the embedding
// engine and any sandbox subprocess invocation" — an engine that starts
// timing out (Ollama down, GenAI rate-limited) stops being hammered on
// every Store/Search call once it has failed FailureThreshold times in a
// row, instead of each caller independently eating the timeout.
type resilientEmbedder struct {
	inner embedding.EmbeddingEngine
	cb    *resilience.CircuitBreaker
}

func newResilientEmbedder(inner embedding.EmbeddingEngine) *resilientEmbedder {
	return &resilientEmbedder{inner: inner, cb: resilience.NewCircuitBreaker(5, 0)}
}

func (r *resilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.cb.Call(func() error {
		var innerErr error
		out, innerErr = r.inner.Embed(ctx, text)
		return innerErr
	})
	if err == resilience.ErrOpen {
		logging.EmbeddingDebug("embedding circuit breaker open, skipping call")
	}
	return out, err
}

func (r *resilientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.cb.Call(func() error {
		var innerErr error
		out, innerErr = r.inner.EmbedBatch(ctx, texts)
		return innerErr
	})
	if err == resilience.ErrOpen {
		logging.EmbeddingDebug("embedding circuit breaker open, skipping batch call")
	}
	return out, err
}

func (r *resilientEmbedder) Dimensions() int { return r.inner.Dimensions() }
func (r *resilientEmbedder) Name() string    { return r.inner.Name() }

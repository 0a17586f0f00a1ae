package internal

import (
	"context"
	"fmt"
)

// Retriever answers similarity queries: embed the question with the same
// model the index was built with, then ask the index for the nearest
// segments. Score thresholding is deliberately left to callers.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	ready    func() bool
}

func NewRetriever(embedder Embedder, index VectorIndex, ready func() bool) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		ready:    ready,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]ScoredSegment, error) {
	if r.ready != nil && !r.ready() {
		return nil, ErrIndexNotReady
	}

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := r.index.Query(ctx, NewEmbedding(vec, r.embedder.Model()), topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return hits, nil
}

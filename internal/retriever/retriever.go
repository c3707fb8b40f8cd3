// Package retriever finds the stored chunks most similar to a question.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
	"github.com/LetsFonseca/CelestiAI/internal/retry"
)

// TopK is the number of chunks handed to the prompt.
const TopK = 3

// Retriever embeds a query and searches the vector store with it. It must
// use the same embedding model that ingested the collection.
type Retriever struct {
	embedder domain.Embedder
	store    domain.VectorStore
	topK     int
	policy   retry.Policy
}

// Option customizes a Retriever.
type Option func(*Retriever)

// WithTopK overrides TopK; values below one are ignored.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithRetry sets the policy for embedding and search calls.
func WithRetry(p retry.Policy) Option {
	return func(r *Retriever) { r.policy = p }
}

func New(embedder domain.Embedder, store domain.VectorStore, opts ...Option) *Retriever {
	r := &Retriever{embedder: embedder, store: store, topK: TopK, policy: retry.DefaultPolicy()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// K reports how many chunks Retrieve returns at most.
func (r *Retriever) K() int { return r.topK }

// Retrieve returns at most K results ordered by non-increasing score. An
// empty or missing collection gives an empty result and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.SearchResult, error) {
	var vector []float32
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		vecs, err := r.embedder.Embed(ctx, []string{query})
		if err != nil {
			return err
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			return retry.Permanent(errors.New("embedder returned no vector"))
		}
		vector = vecs[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var results []domain.SearchResult
	err = retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var err error
		results, err = r.store.Search(ctx, vector, r.topK)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > r.topK {
		results = results[:r.topK]
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return results, nil
}

// Texts returns the chunk texts in result order.
func Texts(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.Text
	}
	return out
}

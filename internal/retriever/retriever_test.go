package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
	"github.com/LetsFonseca/CelestiAI/internal/embedding/hashing"
	"github.com/LetsFonseca/CelestiAI/internal/retry"
	"github.com/LetsFonseca/CelestiAI/internal/seed"
	"github.com/LetsFonseca/CelestiAI/internal/vectorstore"
	"github.com/LetsFonseca/CelestiAI/internal/vectorstore/memory"
)

var fast = retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func seeded(t *testing.T, texts []string) (*hashing.Embedder, *memory.Storage) {
	t.Helper()
	ctx := context.Background()
	emb := hashing.NewEmbedder(0)
	store := memory.NewStorage()
	vecs, err := emb.Embed(ctx, texts)
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx, emb.Dimension()))
	chunks := make([]domain.Chunk, len(texts))
	for i, txt := range texts {
		chunks[i] = domain.Chunk{ID: vectorstore.PointID("test", i, txt), Source: "test", Index: i, Text: txt, Vector: vecs[i]}
	}
	require.NoError(t, store.Upsert(ctx, chunks))
	return emb, store
}

func TestRetrieve_ReturnsAtMostKOrdered(t *testing.T) {
	emb, store := seeded(t, seed.Docs())
	r := New(emb, store, WithRetry(fast))

	res, err := r.Retrieve(context.Background(), "Aries Mars initiative")
	require.NoError(t, err)

	require.Len(t, res, TopK)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
	assert.True(t, strings.HasPrefix(res[0].Chunk.Text, "Aries is a fire sign ruled by Mars"), res[0].Chunk.Text)
}

func TestRetrieve_FactWithinTopK(t *testing.T) {
	emb, store := seeded(t, seed.Docs())

	res, err := New(emb, store, WithRetry(fast)).Retrieve(context.Background(), "What element is Aries?")
	require.NoError(t, err)
	require.Len(t, res, TopK)

	found := false
	for _, r := range res {
		if strings.HasPrefix(r.Chunk.Text, "Aries is a fire sign ruled by Mars") {
			found = true
		}
	}
	assert.True(t, found, "Aries fact missing from %v", Texts(res))
}

func TestRetrieve_FewerChunksThanK(t *testing.T) {
	emb, store := seeded(t, []string{"Aries is a fire sign.", "Leo is ruled by the Sun."})

	res, err := New(emb, store, WithRetry(fast)).Retrieve(context.Background(), "Aries")
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestRetrieve_EmptyCollection(t *testing.T) {
	r := New(hashing.NewEmbedder(0), memory.NewStorage(), WithRetry(fast))

	res, err := r.Retrieve(context.Background(), "Tell me about Aries")
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

type unreachableStore struct {
	memory.Storage
	calls int
}

func (s *unreachableStore) Search(context.Context, []float32, int) ([]domain.SearchResult, error) {
	s.calls++
	return nil, fmt.Errorf("%w: connection refused", vectorstore.ErrUnavailable)
}

func TestRetrieve_UnreachableStore(t *testing.T) {
	store := &unreachableStore{}
	_, err := New(hashing.NewEmbedder(0), store, WithRetry(fast)).Retrieve(context.Background(), "Aries")

	assert.ErrorIs(t, err, vectorstore.ErrUnavailable)
	assert.Equal(t, 2, store.calls)
}

// overfullStore ignores topK and returns unordered results.
type overfullStore struct{ memory.Storage }

func (*overfullStore) Search(context.Context, []float32, int) ([]domain.SearchResult, error) {
	return []domain.SearchResult{
		{Chunk: domain.Chunk{Text: "c"}, Score: 0.2},
		{Chunk: domain.Chunk{Text: "a"}, Score: 0.9},
		{Chunk: domain.Chunk{Text: "d"}, Score: 0.1},
		{Chunk: domain.Chunk{Text: "b"}, Score: 0.5},
	}, nil
}

func TestRetrieve_SortsAndCaps(t *testing.T) {
	res, err := New(hashing.NewEmbedder(0), &overfullStore{}, WithRetry(fast)).Retrieve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, Texts(res))
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }
func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, retry.Permanent(errors.New("401 unauthorized"))
}

func TestRetrieve_EmbedError(t *testing.T) {
	_, err := New(failingEmbedder{}, memory.NewStorage(), WithRetry(fast)).Retrieve(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}

func TestWithTopK(t *testing.T) {
	assert.Equal(t, 5, New(nil, nil, WithTopK(5)).K())
	assert.Equal(t, TopK, New(nil, nil, WithTopK(0)).K())
}

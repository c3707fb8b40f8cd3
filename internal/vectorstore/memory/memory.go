package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
	"github.com/LetsFonseca/CelestiAI/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Nothing survives the process; it backs offline mode and tests.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	chunks    []domain.Chunk
	byID      map[string]int
}

func NewStorage() *Storage { return &Storage{byID: make(map[string]int)} }

func (s *Storage) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = dimension
		return nil
	}
	if s.dimension != dimension {
		return fmt.Errorf("%w: collection has %d, got %d", vectorstore.ErrDimensionMismatch, s.dimension, dimension)
	}
	return nil
}

// Upsert replaces chunks with a known ID and appends the rest.
func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range chunks {
		if len(ch.Vector) != s.dimension {
			return fmt.Errorf("%w: collection has %d, got %d", vectorstore.ErrDimensionMismatch, s.dimension, len(ch.Vector))
		}
	}
	for _, ch := range chunks {
		if i, ok := s.byID[ch.ID]; ok {
			s.chunks[i] = ch
			continue
		}
		s.byID[ch.ID] = len(s.chunks)
		s.chunks = append(s.chunks, ch)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, len(s.chunks))
	for i, ch := range s.chunks {
		results[i] = domain.SearchResult{Chunk: ch, Score: cosine(vector, ch.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

func (s *Storage) Close(context.Context) error { return nil }

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

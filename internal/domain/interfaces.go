package domain

import "context"

// Chunk is a unit of ingested text together with its embedding.
type Chunk struct {
	ID     string
	Source string
	Index  int
	Text   string
	Vector []float32
}

// SearchResult represents a stored chunk matched by a query. Score is a
// similarity: higher means closer.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Role tags who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind distinguishes conversation turns from messages that are
// only displayed.
type MessageKind string

const (
	KindGreeting MessageKind = "greeting"
	KindTurn     MessageKind = "turn"
	KindContext  MessageKind = "context"
)

// Message is one transcript entry.
type Message struct {
	Role    Role
	Content string
	Kind    MessageKind
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits long text into overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// VectorStore persists vectors and supports similarity search against a
// single named collection.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	Count(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}

// LLM generates a completion for a fully assembled prompt.
type LLM interface {
	Configured() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

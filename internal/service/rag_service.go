package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
	"github.com/LetsFonseca/CelestiAI/internal/metrics"
	"github.com/LetsFonseca/CelestiAI/internal/prompt"
	"github.com/LetsFonseca/CelestiAI/internal/retriever"
	"github.com/LetsFonseca/CelestiAI/internal/retry"
	"github.com/LetsFonseca/CelestiAI/internal/session"
	"github.com/LetsFonseca/CelestiAI/internal/source"
	"github.com/LetsFonseca/CelestiAI/internal/summarizer"
	"github.com/LetsFonseca/CelestiAI/internal/vectorstore"
)

// ErrEmptyInput is returned when an ingestion produces no chunks.
var ErrEmptyInput = errors.New("no chunks produced")

// DefaultMissingKeyMessage is shown instead of an answer when the LLM has
// no API key.
const DefaultMissingKeyMessage = "⚠️ GROQ_API_KEY is not configured. Set it in your environment or secrets file to chat."

const DefaultBatchSize = 32

// Options tunes the service. Zero values take defaults.
type Options struct {
	BatchSize         int
	SummarySentences  int
	MissingKeyMessage string
	Retry             retry.Policy
}

// Deps are the collaborators of a RAGService. Metrics and Logger may be nil.
type Deps struct {
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Store      domain.VectorStore
	Retriever  *retriever.Retriever
	Assembler  *prompt.Assembler
	LLM        domain.LLM
	Summarizer *summarizer.Frequency
	Metrics    *metrics.Metrics
	Logger     *zap.SugaredLogger
}

// RAGService runs ingestion and the question answering pipeline.
type RAGService struct {
	deps Deps
	opts Options
}

// IngestReport describes a finished ingestion.
type IngestReport struct {
	Source  string
	Chunks  int
	Summary string
}

// Reply is the outcome of one question.
type Reply struct {
	Answer  string
	Context string
	Results []domain.SearchResult
	Prompt  string
}

func NewRAGService(deps Deps, opts Options) *RAGService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MissingKeyMessage == "" {
		opts.MissingKeyMessage = DefaultMissingKeyMessage
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Summarizer == nil {
		deps.Summarizer = summarizer.NewFrequency()
	}
	if deps.Assembler == nil {
		deps.Assembler = prompt.NewAssembler(prompt.Options{})
	}
	if deps.Retriever == nil && deps.Embedder != nil && deps.Store != nil {
		deps.Retriever = retriever.New(deps.Embedder, deps.Store, retriever.WithRetry(opts.Retry))
	}
	return &RAGService{deps: deps, opts: opts}
}

// Ingest chunks the document, embeds the chunks and upserts them.
func (s *RAGService) Ingest(ctx context.Context, doc source.Document) (*IngestReport, error) {
	pieces := s.deps.Chunker.Split(doc.Text)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%s: %w", doc.Source, ErrEmptyInput)
	}
	s.deps.Logger.Infow("chunked document", "source", doc.Source, "chars", len(doc.Text), "chunks", len(pieces))
	if err := s.upsert(ctx, doc.Source, pieces); err != nil {
		return nil, err
	}
	report := &IngestReport{
		Source:  doc.Source,
		Chunks:  len(pieces),
		Summary: s.deps.Summarizer.Summarize(doc.Text, s.opts.SummarySentences),
	}
	s.deps.Logger.Infow("ingestion finished", "source", doc.Source, "chunks", report.Chunks, "summary", report.Summary)
	return report, nil
}

// IngestTexts stores each non-blank text as its own chunk, without splitting.
func (s *RAGService) IngestTexts(ctx context.Context, texts []string, src string) (*IngestReport, error) {
	pieces := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			pieces = append(pieces, t)
		}
	}
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%s: %w", src, ErrEmptyInput)
	}
	if err := s.upsert(ctx, src, pieces); err != nil {
		return nil, err
	}
	s.deps.Logger.Infow("ingestion finished", "source", src, "chunks", len(pieces))
	return &IngestReport{Source: src, Chunks: len(pieces)}, nil
}

func (s *RAGService) upsert(ctx context.Context, src string, pieces []string) error {
	ensured := false
	for start := 0; start < len(pieces); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(pieces))
		batch := pieces[start:end]

		var vectors [][]float32
		err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
			var err error
			vectors, err = s.deps.Embedder.Embed(ctx, batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(vectors))
		}

		if !ensured {
			dim := len(vectors[0])
			if err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
				return s.deps.Store.EnsureCollection(ctx, dim)
			}); err != nil {
				return fmt.Errorf("ensure collection: %w", err)
			}
			ensured = true
		}

		chunks := make([]domain.Chunk, len(batch))
		for i, text := range batch {
			idx := start + i
			chunks[i] = domain.Chunk{
				ID:     vectorstore.PointID(src, idx, text),
				Source: src,
				Index:  idx,
				Text:   text,
				Vector: vectors[i],
			}
		}
		if err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
			return s.deps.Store.Upsert(ctx, chunks)
		}); err != nil {
			return fmt.Errorf("upsert chunks %d-%d: %w", start, end-1, err)
		}
		s.deps.Metrics.AddChunks(len(chunks))
		s.deps.Logger.Debugw("upserted batch", "source", src, "from", start, "to", end-1)
	}
	return nil
}

// Respond answers question given the prior turns. Without an LLM key it
// returns the configured notice and touches no external service.
func (s *RAGService) Respond(ctx context.Context, history []domain.Message, question string) (Reply, error) {
	if !s.deps.LLM.Configured() {
		s.deps.Metrics.ObserveQuestion(metrics.OutcomeMissingAPIKey)
		s.deps.Logger.Warnw("llm api key missing, skipping question")
		return Reply{Answer: s.opts.MissingKeyMessage}, nil
	}

	started := time.Now()
	results, err := s.deps.Retriever.Retrieve(ctx, question)
	s.deps.Metrics.ObserveRetrieval(time.Since(started))
	if err != nil {
		s.deps.Metrics.ObserveQuestion(metrics.OutcomeError)
		return Reply{}, fmt.Errorf("retrieve context: %w", err)
	}
	texts := retriever.Texts(results)
	text := s.deps.Assembler.Assemble(prompt.Input{Context: texts, History: history, Question: question})
	s.deps.Logger.Debugw("assembled prompt", "chunks", len(results), "prompt_chars", len(text))

	var answer string
	started = time.Now()
	err = retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
		var err error
		answer, err = s.deps.LLM.Generate(ctx, text)
		return err
	})
	s.deps.Metrics.ObserveGeneration(time.Since(started))
	if err != nil {
		s.deps.Metrics.ObserveQuestion(metrics.OutcomeError)
		return Reply{}, fmt.Errorf("generate answer: %w", err)
	}
	s.deps.Metrics.ObserveQuestion(metrics.OutcomeAnswered)
	return Reply{
		Answer:  answer,
		Context: strings.Join(texts, "\n\n"),
		Results: results,
		Prompt:  text,
	}, nil
}

// Ask runs one full turn on sess. On failure the session returns to idle
// without an answer and the error is returned.
func (s *RAGService) Ask(ctx context.Context, sess *session.Session, question string) (Reply, error) {
	q, err := sess.Begin(question)
	if err != nil {
		return Reply{}, err
	}
	reply, err := s.Respond(ctx, sess.History(), q)
	if err != nil {
		sess.Fail(err)
		s.deps.Logger.Warnw("question failed", "error", err.Error())
		return Reply{}, err
	}
	sess.Complete(reply.Answer, reply.Context)
	return reply, nil
}

// Count reports how many chunks the collection holds.
func (s *RAGService) Count(ctx context.Context) (int64, error) {
	return s.deps.Store.Count(ctx)
}

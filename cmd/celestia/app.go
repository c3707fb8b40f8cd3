package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LetsFonseca/CelestiAI/internal/chunker"
	"github.com/LetsFonseca/CelestiAI/internal/config"
	"github.com/LetsFonseca/CelestiAI/internal/domain"
	"github.com/LetsFonseca/CelestiAI/internal/embedding/cache"
	"github.com/LetsFonseca/CelestiAI/internal/embedding/hashing"
	"github.com/LetsFonseca/CelestiAI/internal/embedding/openai"
	"github.com/LetsFonseca/CelestiAI/internal/llm"
	"github.com/LetsFonseca/CelestiAI/internal/logging"
	"github.com/LetsFonseca/CelestiAI/internal/metrics"
	"github.com/LetsFonseca/CelestiAI/internal/prompt"
	"github.com/LetsFonseca/CelestiAI/internal/retriever"
	"github.com/LetsFonseca/CelestiAI/internal/service"
	"github.com/LetsFonseca/CelestiAI/internal/summarizer"
	"github.com/LetsFonseca/CelestiAI/internal/vectorstore/memory"
	"github.com/LetsFonseca/CelestiAI/internal/vectorstore/milvus"
	"github.com/LetsFonseca/CelestiAI/internal/vectorstore/qdrant"
)

// app holds the assembled components of one command run.
type app struct {
	cfg      *config.AppConfig
	creds    config.Credentials
	log      *zap.SugaredLogger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    domain.VectorStore
	llm      *llm.Client
	svc      *service.RAGService
	closers  []func(context.Context) error
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

func newLogger(cfg *config.AppConfig, output string) (*zap.SugaredLogger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	})
}

// newRedisClient is replaced in tests.
var newRedisClient = goredis.NewClient

// newApp resolves credentials, validates the vector store settings and
// assembles the pipeline. The store is validated before anything connects.
// Anything opened before a failure is closed again.
func newApp(ctx context.Context, cfg *config.AppConfig, log *zap.SugaredLogger) (_ *app, err error) {
	resolver, err := config.NewResolver(cfg.Secrets.File)
	if err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}
	creds := config.ResolveCredentials(cfg, resolver)
	if err := config.ValidateStore(cfg, creds); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, creds: creds, log: log, registry: prometheus.NewRegistry()}
	a.metrics = metrics.New(a.registry)
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()

	emb, err := a.buildEmbedder()
	if err != nil {
		return nil, err
	}
	ch, err := buildChunker(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Summarizer.Type != "frequency" {
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}
	if a.store, err = a.buildStore(ctx); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	a.llm = llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      creds.LLMAPIKey.Value,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err := config.ValidateLLM(cfg, creds); err != nil {
		log.Warnw("chat answers are disabled", "error", err)
	}

	policy := cfg.Retry.Policy()
	policy.Notify = func(err error, wait time.Duration) {
		log.Warnw("retrying", "error", err, "wait", wait)
	}
	a.svc = service.NewRAGService(service.Deps{
		Chunker:   ch,
		Embedder:  emb,
		Store:     a.store,
		Retriever: retriever.New(emb, a.store, retriever.WithTopK(cfg.Retriever.TopK), retriever.WithRetry(policy)),
		Assembler: prompt.NewAssembler(prompt.Options{
			Template:        cfg.Prompt.Template,
			IncludeHistory:  cfg.Prompt.IncludeHistory,
			MaxContextChars: cfg.Prompt.MaxContextChars,
			MaxHistoryChars: cfg.Prompt.MaxHistoryChars,
		}),
		LLM:        a.llm,
		Summarizer: summarizer.NewFrequency(),
		Metrics:    a.metrics,
		Logger:     log,
	}, service.Options{
		BatchSize:         cfg.Embedder.BatchSize,
		SummarySentences:  cfg.Summarizer.MaxSentences,
		MissingKeyMessage: cfg.LLM.MissingKeyMessage,
		Retry:             policy,
	})
	log.Infow("pipeline ready",
		"embedder", emb.Name(),
		"store", cfg.VectorStore.Type,
		"collection", cfg.Collection(),
		"llm", a.llm.Model(),
		"llm_key", creds.LLMAPIKey.Source.String(),
	)
	return a, nil
}

func (a *app) buildEmbedder() (domain.Embedder, error) {
	cfg := a.cfg.Embedder
	var emb domain.Embedder
	switch cfg.Type {
	case "openai":
		emb = openai.NewClient(openai.Config{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  a.creds.EmbeddingKey.Value,
			Model:   cfg.OpenAI.Model,
			Timeout: time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
	case "hashing":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		emb = hashing.NewEmbedder(dim)
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	if !cfg.Cache.Enabled {
		return emb, nil
	}
	client := newRedisClient(&goredis.Options{
		Addr:     cfg.Cache.Addr,
		Password: a.creds.CachePassword.Value,
		DB:       cfg.Cache.DB,
	})
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return cache.New(emb, cache.NewRedisStore(client), cache.Config{
		TTL:       time.Duration(cfg.Cache.TTLHours) * time.Hour,
		KeyPrefix: cfg.Cache.KeyPrefix,
	}, a.metrics, a.log), nil
}

func buildChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "recursive":
		return chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap), nil
	}
	return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
}

func (a *app) buildStore(ctx context.Context) (domain.VectorStore, error) {
	cfg := a.cfg.VectorStore
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        a.creds.QdrantURL.Value,
			APIKey:     a.creds.QdrantAPIKey.Value,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	case "milvus":
		return milvus.NewStorage(ctx, milvus.Config{
			Address:    a.creds.MilvusAddress.Value,
			Username:   cfg.Milvus.Username,
			Password:   a.creds.MilvusPassword.Value,
			Database:   cfg.Milvus.Database,
			Collection: cfg.Milvus.Collection,
			Timeout:    time.Duration(cfg.Milvus.TimeoutSecs) * time.Second,
		})
	}
	return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
}

// Close releases connections in reverse order of creation.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warnw("close failed", "error", err)
		}
	}
	a.closers = nil
}

func printReport(w io.Writer, r *service.IngestReport, collection string) {
	fmt.Fprintf(w, "Ingested %d chunk(s) from %s into %q.\n", r.Chunks, r.Source, collection)
	if r.Summary != "" {
		fmt.Fprintf(w, "Summary: %s\n", r.Summary)
	}
}

// Package metrics collects pipeline metrics with Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "celestia"

// Outcome labels for answered questions.
const (
	OutcomeAnswered      = "answered"
	OutcomeError         = "error"
	OutcomeMissingAPIKey = "missing_api_key"
)

// Metrics holds the collectors used by the RAG pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Questions         *prometheus.CounterVec
	RetrievalSeconds  prometheus.Histogram
	GenerationSeconds prometheus.Histogram
	ChunksIngested    prometheus.Counter
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions handled, by outcome.",
		}, []string{"outcome"}),
		RetrievalSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Time spent embedding the question and searching the collection.",
			Buckets:   prometheus.DefBuckets,
		}),
		GenerationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting for the language model.",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		}),
		ChunksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_ingested_total",
			Help:      "Chunks upserted into the collection.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_hits_total",
			Help:      "Embeddings served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_misses_total",
			Help:      "Embeddings computed because the cache had no entry.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Questions, m.RetrievalSeconds, m.GenerationSeconds,
			m.ChunksIngested, m.CacheHits, m.CacheMisses)
	}
	return m
}

// ObserveQuestion counts one handled question.
func (m *Metrics) ObserveQuestion(outcome string) {
	if m == nil {
		return
	}
	m.Questions.WithLabelValues(outcome).Inc()
}

// ObserveRetrieval records the duration of one retrieval.
func (m *Metrics) ObserveRetrieval(d time.Duration) {
	if m == nil {
		return
	}
	m.RetrievalSeconds.Observe(d.Seconds())
}

// ObserveGeneration records the duration of one LLM call.
func (m *Metrics) ObserveGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationSeconds.Observe(d.Seconds())
}

// AddChunks counts upserted chunks.
func (m *Metrics) AddChunks(n int) {
	if m == nil {
		return
	}
	m.ChunksIngested.Add(float64(n))
}

// AddCacheLookups counts embedding cache hits and misses.
func (m *Metrics) AddCacheLookups(hits, misses int) {
	if m == nil {
		return
	}
	m.CacheHits.Add(float64(hits))
	m.CacheMisses.Add(float64(misses))
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *zap.SugaredLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infow("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

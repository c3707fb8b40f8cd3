// Package cache wraps an Embedder with a key-value cache so re-running an
// ingestion does not pay for chunks that were already embedded.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
	"github.com/LetsFonseca/CelestiAI/internal/metrics"
)

// Store is the storage behind the cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore implements Store on top of a Redis client.
type RedisStore struct {
	client *goredis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Config configures the cache wrapper.
type Config struct {
	TTL       time.Duration
	KeyPrefix string
}

// Embedder serves embeddings from Store when possible and delegates the
// rest to the wrapped embedder. Cache failures are logged and never fail
// the call.
type Embedder struct {
	inner   domain.Embedder
	store   Store
	cfg     Config
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

// New creates a caching embedder.
func New(inner domain.Embedder, store Store, cfg Config, m *metrics.Metrics, log *zap.SugaredLogger) *Embedder {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "emb:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Embedder{inner: inner, store: store, cfg: cfg, metrics: m, log: log}
}

// Name reports the wrapped embedder's name; the cache is transparent.
func (e *Embedder) Name() string { return e.inner.Name() }

// key includes the model name so switching models never serves stale vectors.
func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.inner.Name() + "\x00" + text))
	return e.cfg.KeyPrefix + hex.EncodeToString(sum[:])
}

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, t := range texts {
		data, ok, err := e.store.Get(ctx, e.key(t))
		if err != nil {
			e.log.Warnw("embedding cache get failed", "error", err.Error())
		}
		if ok {
			var vec []float32
			if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
				out[i] = vec
				continue
			}
			e.log.Warnw("discarding corrupt cached embedding", "key", e.key(t))
		}
		missing = append(missing, i)
	}
	e.metrics.AddCacheLookups(len(texts)-len(missing), len(missing))
	if len(missing) == 0 {
		return out, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	vecs, err := e.inner.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}
	for j, i := range missing {
		out[i] = vecs[j]
		data, err := json.Marshal(vecs[j])
		if err != nil {
			continue
		}
		if err := e.store.Set(ctx, e.key(texts[i]), data, e.cfg.TTL); err != nil {
			e.log.Warnw("embedding cache set failed", "error", err.Error())
		}
	}
	e.log.Debugw("embedded with cache", "hits", len(texts)-len(missing), "misses", len(missing))
	return out, nil
}

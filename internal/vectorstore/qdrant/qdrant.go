package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
	"github.com/LetsFonseca/CelestiAI/internal/retry"
	"github.com/LetsFonseca/CelestiAI/internal/vectorstore"
)

// Payload keys. page_content and metadata match collections written by
// LangChain so existing data stays searchable.
const (
	keyContent  = "page_content"
	keyMetadata = "metadata"
	keyLegacy   = "text"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = vectorstore.DefaultCollection
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// statusError carries a non-2xx reply.
type statusError struct {
	method string
	path   string
	code   int
	body   string
}

func (e *statusError) Error() string {
	msg := fmt.Sprintf("qdrant %s %s failed: %d", e.method, e.path, e.code)
	if e.body != "" {
		msg += ": " + e.body
	}
	return msg
}

func (s *Storage) collectionPath() string {
	return "/collections/" + url.PathEscape(s.collection)
}

// EnsureCollection creates the collection when it does not exist yet and
// checks the vector size when it does.
func (s *Storage) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors json.RawMessage `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionPath(), nil, &info)
	if err == nil {
		if size := vectorSize(info.Result.Config.Params.Vectors); size > 0 && size != dimension {
			return retry.Permanent(fmt.Errorf("%w: collection %q has %d, got %d",
				vectorstore.ErrDimensionMismatch, s.collection, size, dimension))
		}
		return nil
	}
	if !isNotFound(err) {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionPath(), body, nil)
}

// vectorSize reads the size of an unnamed vector config. Named vectors are
// not used by this application and report zero.
func vectorSize(raw json.RawMessage) int {
	var v struct {
		Size int `json:"size"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0
	}
	return v.Size
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		points[i] = map[string]any{
			"id":     ch.ID,
			"vector": ch.Vector,
			"payload": map[string]any{
				keyContent: ch.Text,
				keyMetadata: map[string]any{
					"source": ch.Source,
					"index":  ch.Index,
				},
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionPath()+"/points?wait=true", body, nil)
}

// Search returns the nearest chunks. A missing collection yields no results.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath()+"/points/search", req, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := chunkFromPayload(r.Payload)
		chunk.ID = fmt.Sprint(r.ID)
		results = append(results, domain.SearchResult{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

func chunkFromPayload(p map[string]any) domain.Chunk {
	var ch domain.Chunk
	if v, ok := p[keyContent].(string); ok {
		ch.Text = v
	} else if v, ok := p[keyLegacy].(string); ok {
		ch.Text = v
	}
	if md, ok := p[keyMetadata].(map[string]any); ok {
		if v, ok := md["source"].(string); ok {
			ch.Source = v
		}
		if v, ok := md["index"].(float64); ok {
			ch.Index = int(v)
		}
	}
	return ch
}

// Count reports the number of points, zero for a missing collection.
func (s *Storage) Count(ctx context.Context) (int64, error) {
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionPath()+"/points/count", map[string]any{"exact": true}, &resp)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) Close(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// do sends a JSON request. Transport failures and 5xx replies wrap
// vectorstore.ErrUnavailable; other non-2xx replies are permanent.
func (s *Storage) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, rd)
	if err != nil {
		return retry.Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", vectorstore.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &statusError{method: method, path: path, code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", vectorstore.ErrUnavailable, se)
		}
		return retry.Permanent(se)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", vectorstore.ErrUnavailable, path, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

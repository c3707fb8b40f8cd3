package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LetsFonseca/CelestiAI/internal/retry"
)

func newServer(t *testing.T, key string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/openai/v1/", APIKey: key, Temperature: DefaultTemperature})
}

func TestGenerate(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	c := newServer(t, "gsk-test", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"llama-3.1-8b-instant",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Aries is a fire sign! \n"}}]}`))
	})

	answer, err := c.Generate(context.Background(), "the prompt")
	require.NoError(t, err)

	assert.Equal(t, "Aries is a fire sign!", answer)
	assert.Equal(t, DefaultModel, got.Model)
	assert.InDelta(t, 0.6, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "the prompt", got.Messages[0].Content)
}

func TestGenerate_MissingKeyMakesNoRequest(t *testing.T) {
	called := false
	c := newServer(t, "", func(w http.ResponseWriter, r *http.Request) { called = true })

	assert.False(t, c.Configured())
	_, err := c.Generate(context.Background(), "prompt")

	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.True(t, retry.IsPermanent(err))
	assert.False(t, called)
}

func TestGenerate_Unauthorized(t *testing.T) {
	c := newServer(t, "bad", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`))
	})

	_, err := c.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.Contains(t, err.Error(), "status 401")
}

func TestGenerate_RateLimitedIsRetryable(t *testing.T) {
	c := newServer(t, "k", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	})

	_, err := c.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
}

func TestGenerate_NoChoices(t *testing.T) {
	c := newServer(t, "k", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	})

	_, err := c.Generate(context.Background(), "prompt")
	assert.ErrorContains(t, err, "no choices")
}

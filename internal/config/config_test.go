package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "astrology-zodiac", cfg.Collection())
	assert.Equal(t, "QDRANT_URL", cfg.VectorStore.Qdrant.URLEnv)
	assert.Equal(t, 800, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 3, cfg.Retriever.TopK)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.InDelta(t, 0.6, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, "GROQ_API_KEY", cfg.LLM.APIKeyEnv)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", cfg.Embedder.OpenAI.Model)
	assert.True(t, cfg.Prompt.IncludeHistory)
	assert.False(t, cfg.Chat.ShowContext)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
vector_store:
  type: milvus
llm:
  temperature: 0
prompt:
  max_context_chars: 2000
chat:
  show_context: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "milvus", cfg.VectorStore.Type)
	require.NotNil(t, cfg.VectorStore.Milvus)
	assert.Equal(t, "MILVUS_ADDRESS", cfg.VectorStore.Milvus.AddressEnv)
	assert.Equal(t, "astrology_zodiac", cfg.Collection())
	assert.Zero(t, cfg.LLM.Temperature)
	assert.Equal(t, 2000, cfg.Prompt.MaxContextChars)
	assert.True(t, cfg.Prompt.IncludeHistory)
	assert.True(t, cfg.Chat.ShowContext)
	assert.Equal(t, 800, cfg.Chunker.ChunkSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "llm: [unclosed"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.SetCollection("signs")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "signs", loaded.Collection())
}

func TestRetryPolicy(t *testing.T) {
	p := defaultConfig().Retry.Policy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.EqualValues(t, 200_000_000, p.InitialDelay)
}

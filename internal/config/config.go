package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LetsFonseca/CelestiAI/internal/retry"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// HashingEmbedderConfig configures the offline embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// CacheConfig enables a Redis cache in front of the embedder.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TTLHours  int    `yaml:"ttl_hours"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                 `yaml:"type"`
	BatchSize int                    `yaml:"batch_size"`
	OpenAI    *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Hashing   *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	Cache     CacheConfig            `yaml:"cache"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
	Milvus *MilvusConfig `yaml:"milvus,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	URLEnv      string `yaml:"url_env"`
	APIKey      string `yaml:"api_key"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MilvusConfig contains connection details for a Milvus vector store.
type MilvusConfig struct {
	Address     string `yaml:"address"`
	AddressEnv  string `yaml:"address_env"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
	Database    string `yaml:"database"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LLMConfig configures the chat completion client.
type LLMConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MissingKeyMessage string  `yaml:"missing_key_message"`
}

type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// PromptConfig controls prompt rendering. Zero budgets mean unlimited.
type PromptConfig struct {
	Template        string `yaml:"template"`
	IncludeHistory  bool   `yaml:"include_history"`
	MaxContextChars int    `yaml:"max_context_chars"`
	MaxHistoryChars int    `yaml:"max_history_chars"`
}

type ChatConfig struct {
	Greeting    string `yaml:"greeting"`
	ShowContext bool   `yaml:"show_context"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives chat logs since the terminal UI owns stdout.
	File string `yaml:"file"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type SecretsConfig struct {
	File string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	LLM         LLMConfig         `yaml:"llm"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Chat        ChatConfig        `yaml:"chat"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Retry       RetryConfig       `yaml:"retry"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Secrets     SecretsConfig     `yaml:"secrets"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults. Keys absent from the file keep their default values.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/celestia/config.yaml.
// If neither exists, it writes defaults to ~/.config/celestia/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "celestia", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder: EmbedderConfig{
			Type:      "openai",
			BatchSize: 32,
			OpenAI:    &OpenAIEmbedderConfig{},
		},
		Chunker: ChunkerConfig{Type: "recursive", ChunkSize: 800, ChunkOverlap: 200},
		VectorStore: VectorStoreConfig{
			Type:   "qdrant",
			Qdrant: &QdrantConfig{},
		},
		LLM:        LLMConfig{Temperature: 0.6},
		Retriever:  RetrieverConfig{TopK: 3},
		Prompt:     PromptConfig{IncludeHistory: true},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
		Logging:    LoggingConfig{Level: "info", Format: "console", File: "celestia.log"},
		Secrets:    SecretsConfig{File: "secrets.toml"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "http://localhost:8080/v1/"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "EMBEDDINGS_API_KEY"
		}
		if o.Model == "" {
			o.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "hashing" && cfg.Embedder.Hashing == nil {
		cfg.Embedder.Hashing = &HashingEmbedderConfig{}
	}
	if c := &cfg.Embedder.Cache; c.Enabled {
		if c.Addr == "" {
			c.Addr = "localhost:6379"
		}
		if c.KeyPrefix == "" {
			c.KeyPrefix = "celestia:emb:"
		}
		if c.TTLHours == 0 {
			c.TTLHours = 24 * 7
		}
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 800
	}

	switch cfg.VectorStore.Type {
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		if q.URLEnv == "" {
			q.URLEnv = "QDRANT_URL"
		}
		if q.APIKeyEnv == "" {
			q.APIKeyEnv = "QDRANT_API_KEY"
		}
		if q.Collection == "" {
			q.Collection = "astrology-zodiac"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	case "milvus":
		if cfg.VectorStore.Milvus == nil {
			cfg.VectorStore.Milvus = &MilvusConfig{}
		}
		m := cfg.VectorStore.Milvus
		if m.AddressEnv == "" {
			m.AddressEnv = "MILVUS_ADDRESS"
		}
		if m.PasswordEnv == "" {
			m.PasswordEnv = "MILVUS_PASSWORD"
		}
		if m.Username == "" {
			m.Username = "root"
		}
		if m.Collection == "" {
			m.Collection = "astrology_zodiac"
		}
		if m.TimeoutSecs == 0 {
			m.TimeoutSecs = 10
		}
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1/"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama-3.1-8b-instant"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}

	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 3
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialDelayMs == 0 {
		cfg.Retry.InitialDelayMs = 200
	}
	if cfg.Retry.MaxDelayMs == 0 {
		cfg.Retry.MaxDelayMs = 5000
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Collection returns the collection name of the selected store.
func (c *AppConfig) Collection() string {
	switch c.VectorStore.Type {
	case "qdrant":
		return c.VectorStore.Qdrant.Collection
	case "milvus":
		return c.VectorStore.Milvus.Collection
	}
	return "astrology-zodiac"
}

// SetCollection overrides the collection name of the selected store.
func (c *AppConfig) SetCollection(name string) {
	switch c.VectorStore.Type {
	case "qdrant":
		c.VectorStore.Qdrant.Collection = name
	case "milvus":
		c.VectorStore.Milvus.Collection = name
	}
}

// Policy converts the retry settings.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: time.Duration(c.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(c.MaxDelayMs) * time.Millisecond,
		Multiplier:   c.Multiplier,
	}
}

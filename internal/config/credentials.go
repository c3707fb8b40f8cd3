package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrMissing is wrapped by every ConfigError.
var ErrMissing = errors.New("missing configuration")

// ConfigError names a required setting that could not be resolved.
type ConfigError struct {
	Setting string
	Env     string
}

func (e *ConfigError) Error() string {
	if e.Env == "" {
		return fmt.Sprintf("%s is not configured", e.Setting)
	}
	return fmt.Sprintf("%s is not configured (set %s in the environment, .env or secrets file)", e.Setting, e.Env)
}

func (e *ConfigError) Unwrap() error { return ErrMissing }

// Source tells where a resolved value came from.
type Source int

const (
	SourceUnset Source = iota
	SourceEnv
	SourceSecrets
	SourceFile
)

func (s Source) String() string {
	switch s {
	case SourceEnv:
		return "env"
	case SourceSecrets:
		return "secrets"
	case SourceFile:
		return "config"
	}
	return "unset"
}

// Value is a resolved setting.
type Value struct {
	Value  string
	Source Source
}

func (v Value) Set() bool { return v.Source != SourceUnset }

// Resolver looks settings up in the process environment, then in a TOML
// secrets file keyed by the same variable names, then in the YAML value.
type Resolver struct {
	lookupEnv func(string) (string, bool)
	secrets   map[string]string
}

// NewResolver reads the secrets file at path. A missing file is not an error.
func NewResolver(path string) (*Resolver, error) {
	r := &Resolver{lookupEnv: os.LookupEnv, secrets: map[string]string{}}
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, err
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse secrets %s: %w", path, err)
	}
	flatten("", raw, r.secrets)
	return r, nil
}

// flatten turns nested tables into dotted keys.
func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Resolve returns the first non-blank value among env[name], secrets[name]
// and fileValue.
func (r *Resolver) Resolve(name, fileValue string) Value {
	if name != "" {
		if v, ok := r.lookupEnv(name); ok && strings.TrimSpace(v) != "" {
			return Value{Value: strings.TrimSpace(v), Source: SourceEnv}
		}
		if v := strings.TrimSpace(r.secrets[name]); v != "" {
			return Value{Value: v, Source: SourceSecrets}
		}
	}
	if v := strings.TrimSpace(fileValue); v != "" {
		return Value{Value: v, Source: SourceFile}
	}
	return Value{}
}

// Credentials are the resolved connection secrets.
type Credentials struct {
	QdrantURL      Value
	QdrantAPIKey   Value
	MilvusAddress  Value
	MilvusPassword Value
	LLMAPIKey      Value
	EmbeddingKey   Value
	CachePassword  Value
}

// ResolveCredentials resolves every secret the selected components need.
func ResolveCredentials(cfg *AppConfig, r *Resolver) Credentials {
	var c Credentials
	if q := cfg.VectorStore.Qdrant; q != nil {
		c.QdrantURL = r.Resolve(q.URLEnv, q.URL)
		c.QdrantAPIKey = r.Resolve(q.APIKeyEnv, q.APIKey)
	}
	if m := cfg.VectorStore.Milvus; m != nil {
		c.MilvusAddress = r.Resolve(m.AddressEnv, m.Address)
		c.MilvusPassword = r.Resolve(m.PasswordEnv, m.Password)
	}
	if o := cfg.Embedder.OpenAI; o != nil {
		c.EmbeddingKey = r.Resolve(o.APIKeyEnv, o.APIKey)
	}
	c.LLMAPIKey = r.Resolve(cfg.LLM.APIKeyEnv, cfg.LLM.APIKey)
	c.CachePassword = r.Resolve("REDIS_PASSWORD", cfg.Embedder.Cache.Password)
	return c
}

// ValidateStore checks that the selected vector store can be reached with
// the resolved address and credential, before any work starts.
func ValidateStore(cfg *AppConfig, c Credentials) error {
	switch cfg.VectorStore.Type {
	case "memory":
		return nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if !c.QdrantURL.Set() {
			return &ConfigError{Setting: "qdrant url", Env: q.URLEnv}
		}
		if !c.QdrantAPIKey.Set() {
			return &ConfigError{Setting: "qdrant api key", Env: q.APIKeyEnv}
		}
		return nil
	case "milvus":
		m := cfg.VectorStore.Milvus
		if !c.MilvusAddress.Set() {
			return &ConfigError{Setting: "milvus address", Env: m.AddressEnv}
		}
		if !c.MilvusPassword.Set() {
			return &ConfigError{Setting: "milvus password", Env: m.PasswordEnv}
		}
		return nil
	}
	return fmt.Errorf("unknown vector store: %q", cfg.VectorStore.Type)
}

// ValidateLLM reports a missing LLM key. Chat still starts without one and
// answers with the missing key notice.
func ValidateLLM(cfg *AppConfig, c Credentials) error {
	if !c.LLMAPIKey.Set() {
		return &ConfigError{Setting: "llm api key", Env: cfg.LLM.APIKeyEnv}
	}
	return nil
}

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, env map[string]string, secrets string) *Resolver {
	t.Helper()
	path := ""
	if secrets != "" {
		path = writeFile(t, "secrets.toml", secrets)
	}
	r, err := NewResolver(path)
	require.NoError(t, err)
	r.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	return r
}

func TestResolve_Precedence(t *testing.T) {
	r := newTestResolver(t,
		map[string]string{"GROQ_API_KEY": "from-env", "BLANK": "  "},
		"GROQ_API_KEY = \"from-secrets\"\nQDRANT_URL = \"https://q.example\"\nBLANK = \"secret-blank\"\n")

	assert.Equal(t, Value{Value: "from-env", Source: SourceEnv}, r.Resolve("GROQ_API_KEY", "from-file"))
	assert.Equal(t, Value{Value: "https://q.example", Source: SourceSecrets}, r.Resolve("QDRANT_URL", "from-file"))
	assert.Equal(t, Value{Value: "from-file", Source: SourceFile}, r.Resolve("QDRANT_API_KEY", "from-file"))
	assert.Equal(t, Value{}, r.Resolve("QDRANT_API_KEY", ""))
	assert.Equal(t, SourceSecrets, r.Resolve("BLANK", "").Source)
	assert.Equal(t, "unset", Value{}.Source.String())
}

func TestResolver_NestedSecretsAndMissingFile(t *testing.T) {
	r := newTestResolver(t, nil, "[qdrant]\nport = 6333\nhost = \"localhost\"\n")
	assert.Equal(t, "6333", r.Resolve("qdrant.port", "").Value)
	assert.Equal(t, "localhost", r.Resolve("qdrant.host", "").Value)

	_, err := NewResolver(filepath.Join(t.TempDir(), "absent.toml"))
	assert.NoError(t, err)

	_, err = NewResolver(writeFile(t, "bad.toml", "= nope"))
	assert.Error(t, err)
}

func TestValidateStore(t *testing.T) {
	cfg := defaultConfig()
	r := newTestResolver(t, map[string]string{"QDRANT_URL": "https://q.example"}, "")

	err := ValidateStore(cfg, ResolveCredentials(cfg, r))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrMissing)
	assert.Equal(t, "QDRANT_API_KEY", ce.Env)

	r = newTestResolver(t, map[string]string{"QDRANT_URL": "https://q.example"}, "QDRANT_API_KEY = \"k\"")
	assert.NoError(t, ValidateStore(cfg, ResolveCredentials(cfg, r)))

	cfg.VectorStore.Type = "memory"
	assert.NoError(t, ValidateStore(cfg, Credentials{}))

	cfg.VectorStore.Type = "sqlite"
	assert.Error(t, ValidateStore(cfg, Credentials{}))
}

func TestValidateStore_Milvus(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", "vector_store:\n  type: milvus\n  milvus:\n    address: localhost:19530\n"))
	require.NoError(t, err)
	r := newTestResolver(t, nil, "")

	err = ValidateStore(cfg, ResolveCredentials(cfg, r))
	assert.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "MILVUS_PASSWORD")
}

func TestValidateLLM(t *testing.T) {
	cfg := defaultConfig()
	err := ValidateLLM(cfg, ResolveCredentials(cfg, newTestResolver(t, nil, "")))
	assert.ErrorIs(t, err, ErrMissing)

	creds := ResolveCredentials(cfg, newTestResolver(t, map[string]string{"GROQ_API_KEY": "gsk"}, ""))
	assert.NoError(t, ValidateLLM(cfg, creds))
	assert.Equal(t, SourceEnv, creds.LLMAPIKey.Source)
}

package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: http://localhost:1234
  model: qwen2.5-7b-instruct
  embeddings_model: text-embedding-nomic-embed-text-v1.5
  timeout: 30s
pipeline:
  chunk_size: 800
  chunk_overlap: 100
index:
  backend: qdrant
  host: qdrant.local
  port: 6334
  vector_size: 768
storage:
  path: /tmp/docs.db
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-7b-instruct", config.LLM.Model)
	assert.Equal(t, 30*time.Second, config.LLM.Timeout.Duration)
	assert.Equal(t, 800, config.Pipeline.ChunkSize)
	assert.Equal(t, 100, config.Pipeline.ChunkOverlap)
	assert.Equal(t, "qdrant", config.Index.Backend)
	assert.Equal(t, 768, config.Index.VectorSize)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: http://localhost:1234
  model: m
  embeddings_model: e
index:
  vector_size: 1536
storage:
  path: /tmp/docs.db
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, config.Pipeline.ChunkSize)
	assert.Equal(t, 200, config.Pipeline.ChunkOverlap)
	assert.Equal(t, 5, config.Pipeline.TopK)
	assert.Equal(t, 6000, config.Pipeline.MaxContextLength)
	assert.Equal(t, "memory", config.Index.Backend)
	assert.Equal(t, 3, config.LLM.RetryAttempts)
	assert.Equal(t, 60*time.Second, config.LLM.Timeout.Duration)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-secret")
	path := writeConfig(t, `
llm:
  base_url: http://localhost:1234
  api_key: ${TEST_API_KEY}
  model: m
  embeddings_model: e
index:
  vector_size: 1536
storage:
  path: /tmp/docs.db
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", config.LLM.APIKey)
}

func TestLoadConfigOverlapMustBeSmaller(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: http://localhost:1234
  model: m
  embeddings_model: e
pipeline:
  chunk_size: 100
  chunk_overlap: 100
index:
  vector_size: 1536
storage:
  path: /tmp/docs.db
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: http://localhost:1234
  model: m
  embeddings_model: e
  timeout: soon
index:
  vector_size: 1536
storage:
  path: /tmp/docs.db
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}

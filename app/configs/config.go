// Package configs loads the application configuration from a YAML file,
// expanding ${ENV} references and validating the result.
package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration lets YAML fields carry values like "60s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

type LLMConfig struct {
	BaseURL         string   `yaml:"base_url" validate:"required,url"`
	APIKey          string   `yaml:"api_key"`
	Model           string   `yaml:"model" validate:"required"`
	EmbeddingsModel string   `yaml:"embeddings_model" validate:"required"`
	BatchSize       int      `yaml:"batch_size" validate:"gte=0"`
	Timeout         Duration `yaml:"timeout"`
	RetryAttempts   int      `yaml:"retry_attempts" validate:"gte=0"`
	RetryBaseDelay  Duration `yaml:"retry_base_delay"`
	RetryMaxDelay   Duration `yaml:"retry_max_delay"`
}

type PipelineConfig struct {
	ChunkSize        int `yaml:"chunk_size" validate:"required,gt=0"`
	ChunkOverlap     int `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	TopK             int `yaml:"top_k" validate:"gt=0"`
	MaxContextLength int `yaml:"max_context_length" validate:"gt=0"`
}

type IndexConfig struct {
	Backend    string `yaml:"backend" validate:"required,oneof=memory qdrant"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port" validate:"gte=0,lte=65535"`
	VectorSize int    `yaml:"vector_size" validate:"required,gt=0"`
}

type StorageConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm" validate:"required"`
	Pipeline PipelineConfig `yaml:"pipeline" validate:"required"`
	Index    IndexConfig    `yaml:"index" validate:"required"`
	Storage  StorageConfig  `yaml:"storage" validate:"required"`
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{
			BatchSize:      50,
			Timeout:        Duration{60 * time.Second},
			RetryAttempts:  3,
			RetryBaseDelay: Duration{100 * time.Millisecond},
			RetryMaxDelay:  Duration{2 * time.Second},
		},
		Pipeline: PipelineConfig{
			ChunkSize:        1000,
			ChunkOverlap:     200,
			TopK:             5,
			MaxContextLength: 6000,
		},
		Index: IndexConfig{
			Backend:    "memory",
			Host:       "localhost",
			Port:       6334,
			VectorSize: 1536,
		},
		Storage: StorageConfig{
			Path: "data/documents.db",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	config := defaults()
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err = validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &config, nil
}

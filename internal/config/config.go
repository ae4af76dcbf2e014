package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	SearchAPIKey   string `envconfig:"SEARCH_API_KEY"`
	SearchEngineID string `envconfig:"SEARCH_ENGINE_ID"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"brainbase-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Retrieval tuning. Thresholds and limits are deployment-specific,
	// so they are configuration rather than constants.
	RetrievalTopK     int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	MinSimilarity     float32 `envconfig:"MIN_SIMILARITY" default:"0.30"`
	MaxContextChars   int     `envconfig:"MAX_CONTEXT_CHARS" default:"6000"`
	HistoryTurns      int     `envconfig:"HISTORY_TURNS" default:"10"`
	WebSearchResults  int     `envconfig:"WEB_SEARCH_RESULTS" default:"5"`
	ChunkTargetChars  int     `envconfig:"CHUNK_TARGET_CHARS" default:"1000"`
	ChunkOverlapChars int     `envconfig:"CHUNK_OVERLAP_CHARS" default:"150"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("BRAINBASE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasWebSearch() bool {
	return c.SearchAPIKey != "" && c.SearchEngineID != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database  DatabaseConfig   `json:"database"`
	AI        AIConfig         `json:"ai"`
	Chunker   ChunkerConfig    `json:"chunker"`
	Loader    LoaderConfig     `json:"loader"`
	LogConfig logger.LogConfig `json:"log_config"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	Model          string      `json:"model"`
	EmbedModel     string      `json:"embed_model"`
	Dimensions     int         `json:"dimensions"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Data           interface{} `json:"data"`
}

type ChunkerConfig struct {
	ChunkSize    int `json:"chunk_size"`
	Overlap      int `json:"overlap"`
	MinChunkSize int `json:"min_chunk_size"`
}

type LoaderConfig struct {
	BatchSize    int             `json:"batch_size"`
	MaxAttempts  int             `json:"max_attempts"`
	RetryDelayMS int             `json:"retry_delay_ms"`
	DeadLetter   FileStoreConfig `json:"dead_letter"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	// Chunker knobs are pre-seeded so that an explicit zero (a legal value
	// for overlap and min_chunk_size) is distinguishable from an absent key.
	cfg := Config{
		Chunker: ChunkerConfig{ChunkSize: 300, Overlap: 50, MinChunkSize: 80},
	}
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Data == nil {
		return nil, fmt.Errorf("ai.data is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.Dimensions == 0 {
		cfg.AI.Dimensions = 1536
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Chunker.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunker.chunk_size must be positive")
	}
	if cfg.Chunker.Overlap < 0 {
		return nil, fmt.Errorf("chunker.overlap must be non-negative")
	}
	if cfg.Chunker.MinChunkSize < 0 {
		return nil, fmt.Errorf("chunker.min_chunk_size must be non-negative")
	}
	if cfg.Chunker.Overlap >= cfg.Chunker.ChunkSize {
		return nil, fmt.Errorf("chunker.overlap must be smaller than chunker.chunk_size")
	}
	if cfg.Loader.BatchSize == 0 {
		cfg.Loader.BatchSize = 16
	}
	if cfg.Loader.MaxAttempts == 0 {
		cfg.Loader.MaxAttempts = 3
	}
	if cfg.Loader.RetryDelayMS == 0 {
		cfg.Loader.RetryDelayMS = 2000
	}
	if cfg.Loader.DeadLetter.Type == "" {
		cfg.Loader.DeadLetter.Type = "local"
		cfg.Loader.DeadLetter.Data = map[string]interface{}{"dir": "data/dead_letters"}
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	return &cfg, nil
}

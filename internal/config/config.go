package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port                     int                  `json:"port"`
	LogConfig                logger.LogConfig     `json:"log_config"`
	CORSAllowlist            []string             `json:"cors_allowlist"`
	Database                 DatabaseConfig       `json:"database"`
	VectorStore              VectorStoreConfig    `json:"vector_store"`
	KnowledgeStore           KnowledgeStoreConfig `json:"knowledge_store"`
	AI                       AIConfig             `json:"ai"`
	Ingest                   IngestConfig         `json:"ingest"`
	ArchiveStore             ArchiveStoreConfig   `json:"archive_store"`
	Schedule                 ScheduleConfig       `json:"schedule"`
	GenerateRateLimitSeconds int                  `json:"generate_rate_limit_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type VectorStoreConfig struct {
	Type string `json:"type"` // pgvector or local
	Dir  string `json:"dir"`  // local backend only
}

type KnowledgeStoreConfig struct {
	Type string `json:"type"` // pg or local
	// Dir is the primary directory for the local backend.
	Dir string `json:"dir"`
	// FallbackDir is always used as the local fallback source, also in pg mode.
	FallbackDir string `json:"fallback_dir"`
}

type ProviderConfig struct {
	Provider string          `json:"provider"`
	Data     json.RawMessage `json:"data"`
	Model    string          `json:"model"`
}

type AIConfig struct {
	Generators     []ProviderConfig `json:"generators"`
	Embedder       ProviderConfig   `json:"embedder"`
	TimeoutSeconds int              `json:"timeout_seconds"`
	EmbedCache     bool             `json:"embed_cache"`
}

type IngestConfig struct {
	ChunkSize   int `json:"chunk_size"`
	ChunkStride int `json:"chunk_stride"`
	MinDocChars int `json:"min_doc_chars"`
	BatchSize   int `json:"batch_size"`
}

type ArchiveStoreConfig struct {
	Type string   `json:"type"` // local or s3, empty disables archiving
	Dir  string   `json:"dir"`
	S3   S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

type ScheduleConfig struct {
	EmbedCachePruneSpec string `json:"embed_cache_prune_spec"`
	EmbedCacheKeepDays  int    `json:"embed_cache_keep_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "local"
	}
	switch cfg.VectorStore.Type {
	case "local":
		if cfg.VectorStore.Dir == "" {
			return nil, fmt.Errorf("vector_store.dir is required for local store")
		}
	case "pgvector":
		if !cfg.Database.configured() {
			return nil, fmt.Errorf("database config is required for pgvector store")
		}
	default:
		return nil, fmt.Errorf("vector_store.type must be local or pgvector")
	}
	if cfg.KnowledgeStore.Type == "" {
		cfg.KnowledgeStore.Type = "local"
	}
	switch cfg.KnowledgeStore.Type {
	case "local":
		if cfg.KnowledgeStore.Dir == "" {
			return nil, fmt.Errorf("knowledge_store.dir is required for local store")
		}
	case "pg":
		if !cfg.Database.configured() {
			return nil, fmt.Errorf("database config is required for pg knowledge store")
		}
	default:
		return nil, fmt.Errorf("knowledge_store.type must be local or pg")
	}
	if len(cfg.AI.Generators) == 0 {
		return nil, fmt.Errorf("ai.generators is required")
	}
	for i, gen := range cfg.AI.Generators {
		if gen.Provider == "" || gen.Model == "" {
			return nil, fmt.Errorf("ai.generators[%d] provider/model are required", i)
		}
	}
	if cfg.AI.Embedder.Provider == "" || cfg.AI.Embedder.Model == "" {
		return nil, fmt.Errorf("ai.embedder provider/model are required")
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	if cfg.AI.EmbedCache && !cfg.Database.configured() {
		return nil, fmt.Errorf("database config is required for ai.embed_cache")
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1500
	}
	if cfg.Ingest.ChunkStride == 0 {
		cfg.Ingest.ChunkStride = 1300
	}
	if cfg.Ingest.MinDocChars == 0 {
		cfg.Ingest.MinDocChars = 100
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 50
	}
	switch cfg.ArchiveStore.Type {
	case "":
		// archiving disabled
	case "local":
		if cfg.ArchiveStore.Dir == "" {
			return nil, fmt.Errorf("archive_store.dir is required for local store")
		}
	case "s3":
		s3 := cfg.ArchiveStore.S3
		if s3.Endpoint == "" || s3.Bucket == "" || s3.SecretID == "" || s3.SecretKey == "" {
			return nil, fmt.Errorf("archive_store.s3 endpoint/bucket/secret_id/secret_key are required")
		}
		if s3.Region == "" {
			cfg.ArchiveStore.S3.Region = "ap"
		}
	default:
		return nil, fmt.Errorf("archive_store.type must be local or s3")
	}
	if cfg.Schedule.EmbedCacheKeepDays == 0 {
		cfg.Schedule.EmbedCacheKeepDays = 30
	}
	return &cfg, nil
}

func (d DatabaseConfig) configured() bool {
	return d.DSN != "" || d.Host != ""
}

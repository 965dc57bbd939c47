// Package config defines the configuration structures of the NeuroRisk
// service. Parsing lives in loader.go, defaults in defaults.go.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AdminToken guards POST /api/v1/knowledge/reload. Empty leaves it open.
	AdminToken      string        `mapstructure:"admin_token"`

	// RateLimitRPS and RateLimitBurst bound /api/v1 requests per client IP.
	// A zero rate disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// KnowledgeConfig selects where behavior profiles and the region catalog are
// loaded from.
type KnowledgeConfig struct {
	Source        string        `mapstructure:"source"` // "file" | "minio"
	Dir           string        `mapstructure:"dir"`
	ProfilesFile  string        `mapstructure:"profiles_file"`
	CatalogFile   string        `mapstructure:"catalog_file"`
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// MinIOConfig holds the object-storage location of the knowledge documents.
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	Prefix          string        `mapstructure:"prefix"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig enables cross-replica reload coordination.
type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Mode          string        `mapstructure:"mode"` // "standalone" | "sentinel" | "cluster"
	Addr          string        `mapstructure:"addr"`
	MasterName    string        `mapstructure:"master_name"`
	SentinelAddrs []string      `mapstructure:"sentinel_addrs"`
	ClusterAddrs  []string      `mapstructure:"cluster_addrs"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	PoolSize      int           `mapstructure:"pool_size"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	TLSEnabled    bool          `mapstructure:"tls_enabled"`
	TLSCAFile     string        `mapstructure:"tls_ca_file"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	NodeID        string        `mapstructure:"node_id"`
}

// KafkaConfig holds event publishing and measurement intake parameters.
type KafkaConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Brokers           []string `mapstructure:"brokers"`
	AssessmentTopic   string   `mapstructure:"assessment_topic"`
	MeasurementTopic  string   `mapstructure:"measurement_topic"`
	DeadLetterTopic   string   `mapstructure:"dead_letter_topic"`
	GroupID           string   `mapstructure:"group_id"`
	AutoOffsetReset   string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	Acks              string   `mapstructure:"acks"`              // "none" | "one" | "all"
	Compression       string   `mapstructure:"compression"`
	MaxRetries        int      `mapstructure:"max_retries"`
	AutoCreateTopics  bool     `mapstructure:"auto_create_topics"`
	NumPartitions     int      `mapstructure:"num_partitions"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
	SASLMechanism     string   `mapstructure:"sasl_mechanism"`
	SASLUsername      string   `mapstructure:"sasl_username"`
	SASLPassword      string   `mapstructure:"sasl_password"`
	TLSCertPath       string   `mapstructure:"tls_cert_path"`

	// BreakerThreshold consecutive publish failures open the publisher
	// circuit for BreakerTimeout. Zero disables the breaker.
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Namespace            string `mapstructure:"namespace"`
	Path                 string `mapstructure:"path"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics"`
}

// AssessmentConfig tunes the assessment service.
type AssessmentConfig struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	MaxBatchSize     int           `mapstructure:"max_batch_size"`
	HistoryLimit     int           `mapstructure:"history_limit"`
	PublishTimeout   time.Duration `mapstructure:"publish_timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Assessment AssessmentConfig `mapstructure:"assessment"`
	Log        LogConfig        `mapstructure:"log"`
}

// Validate performs semantic validation of a fully populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.MaxBodySize < 0 {
		return fmt.Errorf("config: server.max_body_size must be >= 0, got %d", c.Server.MaxBodySize)
	}

	switch c.Knowledge.Source {
	case SourceFile:
		if c.Knowledge.Dir == "" {
			return fmt.Errorf("config: knowledge.dir is required for the file source")
		}
	case SourceMinIO:
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required for the minio source")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required for the minio source")
		}
		if c.Knowledge.Watch {
			return fmt.Errorf("config: knowledge.watch is only supported for the file source")
		}
	default:
		return fmt.Errorf("config: knowledge.source %q is invalid; expected file|minio", c.Knowledge.Source)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
		switch c.Kafka.AutoOffsetReset {
		case "earliest", "latest":
		default:
			return fmt.Errorf("config: kafka.auto_offset_reset %q is invalid; expected earliest|latest", c.Kafka.AutoOffsetReset)
		}
		if c.Kafka.MaxRetries < 0 {
			return fmt.Errorf("config: kafka.max_retries must be >= 0, got %d", c.Kafka.MaxRetries)
		}
	}

	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("config: server.rate_limit_rps must be >= 0, got %g", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("config: server.rate_limit_burst must be >= 1 when rate limiting is on, got %d", c.Server.RateLimitBurst)
	}

	if c.Redis.Enabled {
		switch c.Redis.Mode {
		case "standalone":
			if c.Redis.Addr == "" {
				return fmt.Errorf("config: redis.addr is required in standalone mode")
			}
		case "sentinel":
			if c.Redis.MasterName == "" || len(c.Redis.SentinelAddrs) == 0 {
				return fmt.Errorf("config: redis.master_name and redis.sentinel_addrs are required in sentinel mode")
			}
		case "cluster":
			if len(c.Redis.ClusterAddrs) == 0 {
				return fmt.Errorf("config: redis.cluster_addrs is required in cluster mode")
			}
		default:
			return fmt.Errorf("config: redis.mode %q is invalid; expected standalone|sentinel|cluster", c.Redis.Mode)
		}
		if c.Redis.LockTTL <= 0 {
			return fmt.Errorf("config: redis.lock_ttl must be > 0, got %s", c.Redis.LockTTL)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	if c.Assessment.BatchConcurrency < 1 {
		return fmt.Errorf("config: assessment.batch_concurrency must be >= 1, got %d", c.Assessment.BatchConcurrency)
	}
	if c.Assessment.MaxBatchSize < 1 {
		return fmt.Errorf("config: assessment.max_batch_size must be >= 1, got %d", c.Assessment.MaxBatchSize)
	}
	if c.Assessment.HistoryLimit < 0 {
		return fmt.Errorf("config: assessment.history_limit must be >= 0, got %d", c.Assessment.HistoryLimit)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}
	return nil
}

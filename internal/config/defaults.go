package config

import (
	"math"
	"time"
)

// Knowledge source kinds.
const (
	SourceFile  = "file"
	SourceMinIO = "minio"
)

const (
	DefaultServerPort      = 8080
	DefaultServerMode      = "release"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultMaxBodySize     = 4 << 20
	DefaultShutdownTimeout = 10 * time.Second

	DefaultKnowledgeDir  = "./configs/knowledge"
	DefaultProfilesFile  = "behavior_profiles.json"
	DefaultCatalogFile   = "brain_regions.json"
	DefaultWatchDebounce = 250 * time.Millisecond

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "neurorisk-knowledge"
	DefaultMinIORegion   = "us-east-1"

	DefaultKafkaBroker      = "localhost:9092"
	DefaultKafkaGroupID     = "neurorisk-intake"
	DefaultAssessmentTopic  = "neurorisk.assessments"
	DefaultMeasurementTopic = "neurorisk.measurements"
	DefaultDeadLetterTopic  = "neurorisk.dead_letter"
	DefaultKafkaPartitions  = 6
	DefaultKafkaReplication = 1
	DefaultKafkaMaxRetries  = 3
	DefaultKafkaOffsetReset = "earliest"
	DefaultKafkaAcks        = "one"

	DefaultKafkaBreakerTimeout = 30 * time.Second

	DefaultRedisMode      = "standalone"
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "neurorisk"
	DefaultRedisLockTTL   = 30 * time.Second

	DefaultMetricsNamespace = "neurorisk"
	DefaultMetricsPath      = "/metrics"

	DefaultBatchConcurrency = 8
	DefaultMaxBatchSize     = 1000
	DefaultHistoryLimit     = 10000
	DefaultPublishTimeout   = 5 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// NewDefaultConfig returns a Config with every default applied. Booleans that
// default to true are only set here, since ApplyDefaults cannot tell an
// explicit false from an unset field.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg. Fields already set are
// left unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(math.Ceil(2 * cfg.Server.RateLimitRPS))
	}

	if cfg.Knowledge.Source == "" {
		cfg.Knowledge.Source = SourceFile
	}
	if cfg.Knowledge.Dir == "" {
		cfg.Knowledge.Dir = DefaultKnowledgeDir
	}
	if cfg.Knowledge.ProfilesFile == "" {
		cfg.Knowledge.ProfilesFile = DefaultProfilesFile
	}
	if cfg.Knowledge.CatalogFile == "" {
		cfg.Knowledge.CatalogFile = DefaultCatalogFile
	}
	if cfg.Knowledge.WatchDebounce == 0 {
		cfg.Knowledge.WatchDebounce = DefaultWatchDebounce
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.Region == "" {
		cfg.MinIO.Region = DefaultMinIORegion
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AssessmentTopic == "" {
		cfg.Kafka.AssessmentTopic = DefaultAssessmentTopic
	}
	if cfg.Kafka.MeasurementTopic == "" {
		cfg.Kafka.MeasurementTopic = DefaultMeasurementTopic
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultDeadLetterTopic
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = DefaultKafkaOffsetReset
	}
	if cfg.Kafka.Acks == "" {
		cfg.Kafka.Acks = DefaultKafkaAcks
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.NumPartitions == 0 {
		cfg.Kafka.NumPartitions = DefaultKafkaPartitions
	}
	if cfg.Kafka.BreakerTimeout == 0 {
		cfg.Kafka.BreakerTimeout = DefaultKafkaBreakerTimeout
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = DefaultKafkaReplication
	}

	if cfg.Redis.Mode == "" {
		cfg.Redis.Mode = DefaultRedisMode
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = DefaultRedisLockTTL
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Assessment.BatchConcurrency == 0 {
		cfg.Assessment.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.Assessment.MaxBatchSize == 0 {
		cfg.Assessment.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Assessment.HistoryLimit == 0 {
		cfg.Assessment.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Assessment.PublishTimeout == 0 {
		cfg.Assessment.PublishTimeout = DefaultPublishTimeout
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stderr"}
	}
}

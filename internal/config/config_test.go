package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/config"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := config.NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.SourceFile, cfg.Knowledge.Source)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"stderr"}, cfg.Log.OutputPaths)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Port = 9090
	cfg.Assessment.BatchConcurrency = 2
	cfg.Kafka.Brokers = []string{"kafka-1:9092"}
	config.ApplyDefaults(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Assessment.BatchConcurrency)
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, config.DefaultMaxBatchSize, cfg.Assessment.MaxBatchSize)

	assert.NotPanics(t, func() { config.ApplyDefaults(nil) })
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		msg    string
	}{
		{"port out of range", func(c *config.Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad mode", func(c *config.Config) { c.Server.Mode = "fast" }, "server.mode"},
		{"negative body size", func(c *config.Config) { c.Server.MaxBodySize = -1 }, "server.max_body_size"},
		{"unknown source", func(c *config.Config) { c.Knowledge.Source = "ftp" }, "knowledge.source"},
		{"file source without dir", func(c *config.Config) { c.Knowledge.Dir = "" }, "knowledge.dir"},
		{"minio without bucket", func(c *config.Config) {
			c.Knowledge.Source = config.SourceMinIO
			c.MinIO.Bucket = ""
		}, "minio.bucket"},
		{"minio without endpoint", func(c *config.Config) {
			c.Knowledge.Source = config.SourceMinIO
			c.MinIO.Endpoint = ""
		}, "minio.endpoint"},
		{"watch on minio", func(c *config.Config) {
			c.Knowledge.Source = config.SourceMinIO
			c.Knowledge.Watch = true
		}, "knowledge.watch"},
		{"kafka without brokers", func(c *config.Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}, "kafka.brokers"},
		{"kafka without group", func(c *config.Config) {
			c.Kafka.Enabled = true
			c.Kafka.GroupID = ""
		}, "kafka.group_id"},
		{"kafka bad offset reset", func(c *config.Config) {
			c.Kafka.Enabled = true
			c.Kafka.AutoOffsetReset = "newest"
		}, "kafka.auto_offset_reset"},
		{"negative rate limit", func(c *config.Config) { c.Server.RateLimitRPS = -1 }, "server.rate_limit_rps"},
		{"rate limit without burst", func(c *config.Config) {
			c.Server.RateLimitRPS = 10
			c.Server.RateLimitBurst = 0
		}, "server.rate_limit_burst"},
		{"redis bad mode", func(c *config.Config) {
			c.Redis.Enabled = true
			c.Redis.Mode = "ring"
		}, "redis.mode"},
		{"redis without addr", func(c *config.Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"sentinel without master", func(c *config.Config) {
			c.Redis.Enabled = true
			c.Redis.Mode = "sentinel"
			c.Redis.SentinelAddrs = []string{"s1:26379"}
		}, "redis.master_name"},
		{"cluster without addrs", func(c *config.Config) {
			c.Redis.Enabled = true
			c.Redis.Mode = "cluster"
		}, "redis.cluster_addrs"},
		{"redis zero lock ttl", func(c *config.Config) {
			c.Redis.Enabled = true
			c.Redis.LockTTL = 0
		}, "redis.lock_ttl"},
		{"metrics without namespace", func(c *config.Config) { c.Metrics.Namespace = "" }, "metrics.namespace"},
		{"zero concurrency", func(c *config.Config) { c.Assessment.BatchConcurrency = 0 }, "batch_concurrency"},
		{"zero batch size", func(c *config.Config) { c.Assessment.MaxBatchSize = 0 }, "max_batch_size"},
		{"negative history", func(c *config.Config) { c.Assessment.HistoryLimit = -1 }, "history_limit"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestConfig_Validate_DisabledKafkaIgnoresBrokers(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Kafka.Brokers = nil
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults_Redis(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, config.DefaultRedisMode, cfg.Redis.Mode)
	assert.Equal(t, config.DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, config.DefaultRedisKeyPrefix, cfg.Redis.KeyPrefix)
	assert.Equal(t, config.DefaultRedisLockTTL, cfg.Redis.LockTTL)

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := config.Load("../../configs/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "standalone", cfg.Redis.Mode)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, uint32(5), cfg.Kafka.BreakerThreshold)
	assert.Equal(t, 20.0, cfg.Server.RateLimitRPS)
	assert.NoError(t, cfg.Validate())
}

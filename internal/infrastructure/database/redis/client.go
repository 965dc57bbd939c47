// Package redis connects to Redis for cross-replica coordination: a lock
// that serializes knowledge reloads and a pub/sub channel that announces
// them.
package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

var (
	ErrClientClosed     = errors.New(errors.ErrCodeServiceUnavailable, "redis client is closed")
	ErrConnectionFailed = errors.New(errors.ErrCodeServiceUnavailable, "redis connection failed")
)

// DefaultKeyPrefix namespaces every key and channel.
const DefaultKeyPrefix = "neurorisk"

// Config selects a standalone, sentinel or cluster deployment.
type Config struct {
	Mode          string // standalone | sentinel | cluster
	Addr          string
	MasterName    string
	SentinelAddrs []string
	ClusterAddrs  []string
	Username      string
	Password      string
	DB            int
	PoolSize      int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	TLSEnabled    bool
	TLSCAFile     string
	TLSInsecure   bool
	KeyPrefix     string
}

// Client wraps a go-redis universal client with key namespacing.
type Client struct {
	rdb    redis.UniversalClient
	prefix string
	logger logging.Logger
	closed atomic.Bool
}

// NewClient connects and pings. An unreachable server fails construction.
func NewClient(ctx context.Context, cfg Config, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	applyDefaults(&cfg)

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	var rdb redis.UniversalClient
	switch cfg.Mode {
	case "cluster":
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.ClusterAddrs,
			Username:     cfg.Username,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			TLSConfig:    tlsConfig,
		})
	case "sentinel":
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.SentinelAddrs,
			Username:      cfg.Username,
			Password:      cfg.Password,
			DB:            cfg.DB,
			PoolSize:      cfg.PoolSize,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
			TLSConfig:     tlsConfig,
		})
	case "standalone":
		rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			TLSConfig:    tlsConfig,
		})
	default:
		return nil, errors.InvalidConfiguration(fmt.Sprintf("redis: unknown mode %q", cfg.Mode))
	}

	c := &Client{rdb: rdb, prefix: cfg.KeyPrefix, logger: logger}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, ErrConnectionFailed.Message)
	}

	logger.Info("redis client connected",
		logging.String("mode", cfg.Mode),
		logging.String("addr", cfg.Addr),
		logging.String("prefix", cfg.KeyPrefix))
	return c, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = "standalone"
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	if !cfg.TLSEnabled {
		return nil, nil
	}
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.TLSInsecure}
	if cfg.TLSCAFile != "" {
		caCert, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("redis: read ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("redis: no certificates in %s", cfg.TLSCAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// Key joins parts under the client's prefix with ":".
func (c *Client) Key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}

func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.rdb.Ping(ctx).Err()
}

// Close is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	err := c.rdb.Close()
	if err != nil {
		c.logger.Error("redis client close failed", logging.Err(err))
	} else {
		c.logger.Info("redis client closed")
	}
	return err
}

// Universal exposes the underlying go-redis client.
func (c *Client) Universal() redis.UniversalClient { return c.rdb }

// Set stores value under the prefixed key.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.rdb.Set(ctx, c.Key(key), value, ttl).Err()
}

// Get returns the value under the prefixed key and false when absent.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if c.closed.Load() {
		return "", false, ErrClientClosed
	}
	v, err := c.rdb.Get(ctx, c.Key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

package knowledgesync

import (
	"context"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
)

// ReloadChannel is the pub/sub channel, under the Redis key prefix.
const ReloadChannel = "knowledge:reload"

// LockName is the Redis lock taken around a triggered reload.
const LockName = "knowledge-reload"

// RedisBus carries notices over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	logger logging.Logger
	// ready is closed once Listen's subscription is confirmed. Tests wait on it.
	ready chan struct{}
}

func NewRedisBus(client *redis.Client, logger logging.Logger) *RedisBus {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RedisBus{client: client, logger: logger, ready: make(chan struct{})}
}

func (b *RedisBus) Announce(ctx context.Context, n Notice) error {
	payload, err := EncodeNotice(n)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, ReloadChannel, payload)
}

// Listen skips payloads that do not decode.
func (b *RedisBus) Listen(ctx context.Context, fn func(context.Context, Notice)) error {
	return b.client.Subscribe(ctx, ReloadChannel, b.ready, func(ctx context.Context, payload []byte) {
		n, err := DecodeNotice(payload)
		if err != nil {
			b.logger.Warn("undecodable reload notice", logging.Err(err))
			return
		}
		fn(ctx, n)
	})
}

// Ready is closed when the subscription started by Listen is active.
func (b *RedisBus) Ready() <-chan struct{} { return b.ready }

package redis

import (
	"context"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// Publish sends payload on the prefixed channel.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.rdb.Publish(ctx, c.Key(channel), payload).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "redis: publish")
	}
	return nil
}

// Subscribe delivers every message on the prefixed channel to fn until ctx
// is done or the subscription fails. ready, if non-nil, is closed once the
// server has confirmed the subscription.
func (c *Client) Subscribe(ctx context.Context, channel string, ready chan<- struct{}, fn func(context.Context, []byte)) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	name := c.Key(channel)
	sub := c.rdb.Subscribe(ctx, name)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "redis: subscribe")
	}
	if ready != nil {
		close(ready)
	}
	c.logger.Info("redis subscription active", logging.String("channel", name))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New(errors.ErrCodeServiceUnavailable, "redis: subscription closed")
			}
			fn(ctx, []byte(msg.Payload))
		}
	}
}

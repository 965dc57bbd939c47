package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/testutil"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewClient_Standalone(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := testutil.NewMockLogger()

	c, err := NewClient(context.Background(), Config{Addr: mr.Addr(), KeyPrefix: "nr-test"}, logger)
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "nr-test:knowledge:version", c.Key("knowledge", "version"))
	assert.True(t, logger.HasMessage("info", "redis client connected"))
}

func TestNewClient_DefaultPrefix(t *testing.T) {
	c, _ := newTestClient(t)
	assert.Equal(t, DefaultKeyPrefix+":lock:x", c.Key("lock", "x"))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c, err := NewClient(context.Background(), Config{Addr: addr, DialTimeout: 200 * time.Millisecond}, nil)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestNewClient_UnknownMode(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Mode: "ring", Addr: "localhost:6379"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfiguration))
}

func TestNewClient_MissingCAFile(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Addr: "localhost:6379", TLSEnabled: true, TLSCAFile: "/nonexistent/ca.pem"}, nil)
	assert.Error(t, err)
}

func TestClient_SetGet(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "knowledge:version")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "knowledge:version", "v1", time.Minute))
	v, ok, err := c.Get(ctx, "knowledge:version")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	raw, err := mr.Get(DefaultKeyPrefix + ":knowledge:version")
	require.NoError(t, err)
	assert.Equal(t, "v1", raw)
	assert.Equal(t, time.Minute, mr.TTL(DefaultKeyPrefix+":knowledge:version"))
}

func TestClient_Closed(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	ctx := context.Background()
	assert.ErrorIs(t, c.Ping(ctx), ErrClientClosed)
	assert.ErrorIs(t, c.Set(ctx, "k", "v", 0), ErrClientClosed)
	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, c.Publish(ctx, "ch", []byte("x")), ErrClientClosed)
}

func TestClient_PublishSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []string
	)
	got := make(chan struct{}, 2)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, "knowledge:reload", ready, func(_ context.Context, payload []byte) {
			mu.Lock()
			received = append(received, string(payload))
			mu.Unlock()
			got <- struct{}{}
		})
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not confirmed")
	}

	require.NoError(t, c.Publish(ctx, "knowledge:reload", []byte("one")))
	require.NoError(t, c.Publish(ctx, "other", []byte("ignored")))
	require.NoError(t, c.Publish(ctx, "knowledge:reload", []byte("two")))

	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatal("message not delivered")
		}
	}
	mu.Lock()
	assert.Equal(t, []string{"one", "two"}, received)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

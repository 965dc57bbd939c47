package knowledgesync

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/testutil"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type mockLocker struct {
	mock.Mock
	ttl time.Duration
}

func (m *mockLocker) TTL() time.Duration { return m.ttl }

func (m *mockLocker) Extend(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) extendCalls() int {
	n := 0
	for _, call := range m.Calls {
		if call.Method == "Extend" {
			n++
		}
	}
	return n
}

func (m *mockLocker) TryLock(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) Unlock(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// memBus delivers notices to every listener in-process.
type memBus struct {
	mu        sync.Mutex
	listeners []func(context.Context, Notice)
	announced []Notice
	failWith  error
}

func (b *memBus) Announce(ctx context.Context, n Notice) error {
	b.mu.Lock()
	if b.failWith != nil {
		b.mu.Unlock()
		return b.failWith
	}
	b.announced = append(b.announced, n)
	ls := append([]func(context.Context, Notice){}, b.listeners...)
	b.mu.Unlock()
	for _, fn := range ls {
		fn(ctx, n)
	}
	return nil
}

func (b *memBus) Listen(ctx context.Context, fn func(context.Context, Notice)) error {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (b *memBus) listenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

type staticKnowledge struct {
	version string
	err     error
}

func (k staticKnowledge) Info() (assessment.KnowledgeInfo, error) {
	return assessment.KnowledgeInfo{Version: k.version, Profiles: 3, Regions: 4}, k.err
}

type countingReload struct {
	calls atomic.Int32
	err   error
}

func (r *countingReload) Reload(context.Context) error {
	r.calls.Add(1)
	return r.err
}

type syncMetrics struct {
	mu     sync.Mutex
	events map[string]int
}

func (m *syncMetrics) RecordSyncEvent(kind, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events == nil {
		m.events = map[string]int{}
	}
	m.events[kind+"/"+status]++
}

func (m *syncMetrics) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[key]
}

// ---------------------------------------------------------------------------
// Trigger
// ---------------------------------------------------------------------------

func TestTrigger_LocalOnly(t *testing.T) {
	reload := &countingReload{}
	metrics := &syncMetrics{}
	c := NewCoordinator(reload.Reload, staticKnowledge{version: "v2"}, WithMetrics(metrics))

	info, err := c.Trigger(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, "v2", info.Version)
	assert.EqualValues(t, 1, reload.calls.Load())
	assert.Equal(t, 1, metrics.get("trigger/success"))
	assert.NotEmpty(t, c.NodeID())
}

func TestTrigger_AnnouncesAfterReload(t *testing.T) {
	bus := &memBus{}
	c := NewCoordinator((&countingReload{}).Reload, staticKnowledge{version: "v7"},
		WithBus(bus), WithNodeID("node-a"))

	_, err := c.Trigger(context.Background(), "objects updated")
	require.NoError(t, err)
	require.Len(t, bus.announced, 1)
	n := bus.announced[0]
	assert.Equal(t, "node-a", n.Origin)
	assert.Equal(t, "v7", n.Version)
	assert.Equal(t, "objects updated", n.Reason)
	assert.False(t, n.At.IsZero())
}

func TestTrigger_ReloadFailureIsNotAnnounced(t *testing.T) {
	bus := &memBus{}
	reload := &countingReload{err: errors.SourceLoad(stderrors.New("boom"), "read profiles")}
	metrics := &syncMetrics{}
	c := NewCoordinator(reload.Reload, staticKnowledge{version: "v1"}, WithBus(bus), WithMetrics(metrics))

	_, err := c.Trigger(context.Background(), "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceLoad))
	assert.Empty(t, bus.announced)
	assert.Equal(t, 1, metrics.get("trigger/failure"))
}

func TestTrigger_AnnounceFailureKeepsLocalReload(t *testing.T) {
	logger := testutil.NewMockLogger()
	bus := &memBus{failWith: stderrors.New("redis down")}
	metrics := &syncMetrics{}
	c := NewCoordinator((&countingReload{}).Reload, staticKnowledge{version: "v3"},
		WithBus(bus), WithLogger(logger), WithMetrics(metrics))

	info, err := c.Trigger(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "v3", info.Version)
	assert.True(t, logger.HasMessage("warn", "reload announcement failed"))
	assert.Equal(t, 1, metrics.get("announce/failure"))
}

func TestTrigger_Lock(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		lock := &mockLocker{}
		lock.On("TryLock", mock.Anything).Return(false, nil)
		reload := &countingReload{}
		c := NewCoordinator(reload.Reload, staticKnowledge{}, WithLocker(lock))

		_, err := c.Trigger(context.Background(), "")
		assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
		assert.Zero(t, reload.calls.Load())
		lock.AssertNotCalled(t, "Unlock", mock.Anything)
	})

	t.Run("acquired and released", func(t *testing.T) {
		lock := &mockLocker{}
		lock.On("TryLock", mock.Anything).Return(true, nil)
		lock.On("Unlock", mock.Anything).Return(nil)
		reload := &countingReload{}
		c := NewCoordinator(reload.Reload, staticKnowledge{version: "v1"}, WithLocker(lock))

		_, err := c.Trigger(context.Background(), "")
		require.NoError(t, err)
		assert.EqualValues(t, 1, reload.calls.Load())
		lock.AssertExpectations(t)
	})

	t.Run("released after failed reload", func(t *testing.T) {
		lock := &mockLocker{}
		lock.On("TryLock", mock.Anything).Return(true, nil)
		lock.On("Unlock", mock.Anything).Return(nil)
		reload := &countingReload{err: errors.InvalidConfiguration("bad")}
		c := NewCoordinator(reload.Reload, staticKnowledge{}, WithLocker(lock))

		_, err := c.Trigger(context.Background(), "")
		assert.Error(t, err)
		lock.AssertCalled(t, "Unlock", mock.Anything)
	})

	t.Run("extended during a slow reload", func(t *testing.T) {
		lock := &mockLocker{ttl: 30 * time.Millisecond}
		lock.On("TryLock", mock.Anything).Return(true, nil)
		lock.On("Extend", mock.Anything).Return(true, nil)
		lock.On("Unlock", mock.Anything).Return(nil)
		slow := func(context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		}
		c := NewCoordinator(slow, staticKnowledge{version: "v1"}, WithLocker(lock))

		_, err := c.Trigger(context.Background(), "")
		require.NoError(t, err)
		extended := lock.extendCalls()
		assert.GreaterOrEqual(t, extended, 2)
		lock.AssertCalled(t, "Unlock", mock.Anything)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, extended, lock.extendCalls(), "no extension after the reload returned")
	})

	t.Run("lost during a slow reload", func(t *testing.T) {
		lock := &mockLocker{ttl: 15 * time.Millisecond}
		lock.On("TryLock", mock.Anything).Return(true, nil)
		lock.On("Extend", mock.Anything).Return(false, nil)
		lock.On("Unlock", mock.Anything).Return(nil)
		logger := testutil.NewMockLogger()
		slow := func(context.Context) error {
			time.Sleep(60 * time.Millisecond)
			return nil
		}
		c := NewCoordinator(slow, staticKnowledge{version: "v1"}, WithLocker(lock), WithLogger(logger))

		_, err := c.Trigger(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, 1, lock.extendCalls(), "extension stops once the lock is gone")
		assert.True(t, logger.HasMessage("warn", "reload lock lost before the reload finished"))
	})

	t.Run("lock error", func(t *testing.T) {
		lock := &mockLocker{}
		lock.On("TryLock", mock.Anything).Return(false, errors.New(errors.ErrCodeServiceUnavailable, "redis down"))
		c := NewCoordinator((&countingReload{}).Reload, staticKnowledge{}, WithLocker(lock))

		_, err := c.Trigger(context.Background(), "")
		assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
	})
}

// ---------------------------------------------------------------------------
// Run / peer notices
// ---------------------------------------------------------------------------

func TestRun_PeersReloadOnNotice(t *testing.T) {
	bus := &memBus{}
	reloadA, reloadB := &countingReload{}, &countingReload{}
	metrics := &syncMetrics{}
	logger := testutil.NewMockLogger()
	a := NewCoordinator(reloadA.Reload, staticKnowledge{version: "v1"}, WithBus(bus), WithNodeID("a"))
	b := NewCoordinator(reloadB.Reload, staticKnowledge{version: "v1"}, WithBus(bus), WithNodeID("b"),
		WithMetrics(metrics), WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 2)
	go func() { done <- a.Run(ctx) }()
	go func() { done <- b.Run(ctx) }()
	require.Eventually(t, func() bool { return bus.listenerCount() == 2 }, time.Second, 5*time.Millisecond)

	_, err := a.Trigger(ctx, "manual")
	require.NoError(t, err)

	// a reloads once for the trigger and ignores its own notice.
	assert.EqualValues(t, 1, reloadA.calls.Load())
	assert.EqualValues(t, 1, reloadB.calls.Load())
	assert.Equal(t, 1, metrics.get("notice/success"))
	assert.True(t, logger.HasMessage("info", "knowledge reloaded on peer notice"))

	cancel()
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-done)
	}
}

func TestRun_PeerReloadFailureIsLogged(t *testing.T) {
	logger := testutil.NewMockLogger()
	c := NewCoordinator((&countingReload{err: stderrors.New("unreadable")}).Reload, staticKnowledge{},
		WithNodeID("b"), WithLogger(logger))

	c.handle(context.Background(), Notice{Origin: "a", Version: "v9"})
	assert.True(t, logger.HasMessage("warn", "reload on peer notice failed"))
}

func TestRun_WithoutBusWaitsForCancel(t *testing.T) {
	c := NewCoordinator((&countingReload{}).Reload, staticKnowledge{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

// ---------------------------------------------------------------------------
// Wire form
// ---------------------------------------------------------------------------

func TestNoticeCodec(t *testing.T) {
	in := Notice{Origin: "a", Version: "v1", Reason: "r", At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	b, err := EncodeNotice(in)
	require.NoError(t, err)
	out, err := DecodeNotice(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeNotice([]byte("not json"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
	_, err = DecodeNotice([]byte(`{"version":"v1"}`))
	assert.True(t, errors.IsValidation(err))
}

// ---------------------------------------------------------------------------
// Redis-backed coordination
// ---------------------------------------------------------------------------

func TestRedisCoordination(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newNode := func(id string) (*Coordinator, *RedisBus, *countingReload) {
		client, err := redis.NewClient(ctx, redis.Config{Addr: mr.Addr()}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		bus := NewRedisBus(client, nil)
		reload := &countingReload{}
		c := NewCoordinator(reload.Reload, staticKnowledge{version: "v-" + id},
			WithBus(bus), WithLocker(redis.NewMutex(client, LockName)), WithNodeID(id))
		return c, bus, reload
	}

	a, busA, reloadA := newNode("a")
	b, busB, reloadB := newNode("b")
	go func() { _ = a.Run(ctx) }()
	go func() { _ = b.Run(ctx) }()
	for _, bus := range []*RedisBus{busA, busB} {
		select {
		case <-bus.Ready():
		case <-time.After(2 * time.Second):
			t.Fatal("subscription not ready")
		}
	}

	info, err := a.Trigger(ctx, "integration")
	require.NoError(t, err)
	assert.Equal(t, "v-a", info.Version)

	require.Eventually(t, func() bool { return reloadB.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, reloadA.calls.Load())
	assert.False(t, mr.Exists(redis.DefaultKeyPrefix+":lock:"+LockName), "lock must be released after the reload")
}

package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/testutil"
)

// mockKafkaReader hands out queued messages and then blocks until ctx ends.
type mockKafkaReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newMockReader(msgs ...kafka.Message) *mockKafkaReader {
	r := &mockKafkaReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *mockKafkaReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *mockKafkaReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "neurorisk-test",
		Topics:  []string{TopicMeasurements},
		Retry: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			MaxRetryBackoff: 2 * time.Millisecond,
			DeadLetterTopic: TopicDeadLetter,
		},
	}
}

func runConsumer(t *testing.T, c *Consumer) {
	t.Helper()
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
}

func TestConsumer_ProcessesAndCommits(t *testing.T) {
	reader := newMockReader(
		kafka.Message{Topic: TopicMeasurements, Offset: 1, Value: []byte("a"),
			Headers: []kafka.Header{{Key: "event_type", Value: []byte("measurement")}}},
		kafka.Message{Topic: TopicMeasurements, Offset: 2, Value: []byte("b")},
	)
	c := newConsumer(reader, nil, testConsumerConfig(), nil)

	var mu sync.Mutex
	var seen []string
	c.Subscribe(TopicMeasurements, func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(msg.Value)+":"+msg.Headers["event_type"])
		return nil
	})
	runConsumer(t, c)

	assert.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"a:measurement", "b:"}, seen)
	mu.Unlock()
	assert.Equal(t, []int64{1, 2}, reader.commits())
	assert.Equal(t, int64(2), c.GetMetrics().MessagesProcessed)
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	reader := newMockReader(kafka.Message{Topic: TopicMeasurements, Offset: 7, Key: []byte("k"), Value: []byte("bad")})
	dlWriter := &mockKafkaWriter{}
	c := newConsumer(reader, newTestProducer(dlWriter), testConsumerConfig(), testutil.NewMockLogger())

	var calls atomic.Int32
	c.Subscribe(TopicMeasurements, func(context.Context, *Message) error {
		calls.Add(1)
		return stderrors.New("downstream unavailable")
	})
	runConsumer(t, c)

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load(), "first attempt plus two retries")

	dl := dlWriter.messages()
	require.Len(t, dl, 1)
	assert.Equal(t, TopicDeadLetter, dl[0].Topic)
	assert.Equal(t, "bad", string(dl[0].Value))
	headers := map[string]string{}
	for _, h := range dl[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, TopicMeasurements, headers["original_topic"])
	assert.Equal(t, "downstream unavailable", headers["error_message"])

	m := c.GetMetrics()
	assert.Equal(t, int64(2), m.MessagesRetried)
	assert.Equal(t, int64(1), m.MessagesDeadLettered)
	assert.Equal(t, int64(1), m.MessagesFailed)
}

func TestConsumer_PermanentErrorSkipsRetries(t *testing.T) {
	reader := newMockReader(kafka.Message{Topic: TopicMeasurements, Offset: 3, Value: []byte("{")})
	c := newConsumer(reader, nil, testConsumerConfig(), nil)

	var calls atomic.Int32
	c.Subscribe(TopicMeasurements, func(context.Context, *Message) error {
		calls.Add(1)
		return Permanent(stderrors.New("malformed"))
	})
	runConsumer(t, c)

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, c.GetMetrics().MessagesRetried)
}

func TestConsumer_UnknownTopicIsCommitted(t *testing.T) {
	reader := newMockReader(kafka.Message{Topic: "other", Offset: 9, Value: []byte("x")})
	logger := testutil.NewMockLogger()
	c := newConsumer(reader, nil, testConsumerConfig(), logger)
	runConsumer(t, c)

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, logger.HasMessage("warn", "no handler for topic"))
}

func TestConsumer_StartTwiceAndClose(t *testing.T) {
	reader := newMockReader()
	c := newConsumer(reader, nil, testConsumerConfig(), nil)

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	reader.mu.Lock()
	assert.True(t, reader.closed)
	reader.mu.Unlock()
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := stderrors.New("x")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}

func TestValidateConsumerConfig(t *testing.T) {
	valid := testConsumerConfig()
	assert.NoError(t, ValidateConsumerConfig(valid))

	noGroup := valid
	noGroup.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(noGroup))

	noTopics := valid
	noTopics.Topics = nil
	assert.Error(t, ValidateConsumerConfig(noTopics))

	badOffset := valid
	badOffset.AutoOffsetReset = "middle"
	assert.Error(t, ValidateConsumerConfig(badOffset))

	assert.Error(t, ValidateConsumerConfig(ConsumerConfig{}))
}

func TestConsumer_CloseWithoutStart(t *testing.T) {
	reader := newMockReader()
	c := newConsumer(reader, nil, testConsumerConfig(), nil)

	require.NoError(t, c.Close())
	reader.mu.Lock()
	assert.True(t, reader.closed)
	reader.mu.Unlock()
}

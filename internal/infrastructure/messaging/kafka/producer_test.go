package kafka

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeErr  error
	closed    int
	closeFunc func() error
}

func (m *mockKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func (m *mockKafkaWriter) messages() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.written...)
}

func newTestProducer(w WriterInterface) *Producer {
	return newProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}}, nil)
}

func TestProducer_Publish(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &Message{
		Topic:   TopicAssessments,
		Key:     []byte("reaction_time"),
		Value:   []byte(`{"a":1}`),
		Headers: map[string]string{"event_type": "assessment.completed"},
	})
	require.NoError(t, err)

	msgs := w.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, TopicAssessments, msgs[0].Topic)
	assert.Equal(t, "reaction_time", string(msgs[0].Key))
	assert.False(t, msgs[0].Time.IsZero())
	require.Len(t, msgs[0].Headers, 1)
	assert.Equal(t, "event_type", msgs[0].Headers[0].Key)

	m := p.GetMetrics()
	assert.Equal(t, int64(1), m.MessagesSent)
	assert.Equal(t, int64(7), m.BytesSent)
	assert.False(t, m.LastSentAt.IsZero())
}

func TestProducer_PublishValidation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	cases := map[string]*Message{
		"missing topic": {Value: []byte("x")},
		"empty value":   {Topic: "t"},
		"too large":     {Topic: "t", Value: []byte(strings.Repeat("x", 1024*1024+1))},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			err := p.Publish(context.Background(), msg)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation), "%v", err)
		})
	}
}

func TestProducer_WriteFailure(t *testing.T) {
	w := &mockKafkaWriter{writeErr: stderrors.New("leader not available")}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("x")})
	assert.True(t, errors.IsCode(err, errors.ErrCodePublishFailed))
	assert.Equal(t, int64(1), p.GetMetrics().MessagesFailed)
	assert.True(t, p.GetMetrics().LastSentAt.IsZero())
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	err := p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("x")})
	assert.ErrorIs(t, err, ErrProducerClosed)
	assert.True(t, errors.IsCode(err, errors.ErrCodePublisherClosed))
}

func TestValidateProducerConfig(t *testing.T) {
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{
		Brokers:  []string{"b"},
		Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"},
	}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{
		Brokers:  []string{"b"},
		Security: SecurityConfig{TLSEnabled: true},
	}))
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{
		Brokers:  []string{"b"},
		Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"},
	}))
}

func TestSecurityConfig_SASLMechanisms(t *testing.T) {
	for _, name := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
		mech, err := SecurityConfig{SASLEnabled: true, SASLMechanism: name, SASLUsername: "u", SASLPassword: "p"}.saslMechanism()
		require.NoError(t, err, name)
		assert.Equal(t, name, mech.Name())
	}

	mech, err := SecurityConfig{}.saslMechanism()
	assert.NoError(t, err)
	assert.Nil(t, mech)
}

func TestNewProducer_BadCertificatePath(t *testing.T) {
	_, err := NewProducer(ProducerConfig{
		Brokers:  []string{"localhost:9092"},
		Security: SecurityConfig{TLSEnabled: true, TLSCertPath: "/nonexistent/ca.pem"},
	}, nil)
	assert.Error(t, err)
}

package kafka

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// DefaultSourceService is written to the envelope source field.
const DefaultSourceService = "neurorisk-intelligence"

// MessagePublisher is satisfied by *Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// EventPublisher wraps payloads in an EventEnvelope and writes them to a
// single topic, keyed so that events for one key stay ordered.
type EventPublisher struct {
	producer MessagePublisher
	topic    string
	source   string
	logger   logging.Logger
	breaker  *gobreaker.CircuitBreaker
}

// PublisherOption configures an EventPublisher.
type PublisherOption func(*EventPublisher)

// WithCircuitBreaker stops calling the producer for openTimeout once
// threshold consecutive publishes have failed. Publishes rejected while the
// circuit is open fail with ErrCodePublishFailed immediately. A zero
// threshold disables the breaker.
func WithCircuitBreaker(threshold uint32, openTimeout time.Duration) PublisherOption {
	return func(p *EventPublisher) {
		if threshold == 0 {
			return
		}
		p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "kafka-publisher",
			Timeout: openTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				p.logger.Warn("publisher circuit state changed",
					logging.String("topic", p.topic),
					logging.String("from", from.String()),
					logging.String("to", to.String()))
			},
		})
	}
}

func NewEventPublisher(producer MessagePublisher, topic, source string, logger logging.Logger, opts ...PublisherOption) *EventPublisher {
	if topic == "" {
		topic = TopicAssessments
	}
	if source == "" {
		source = DefaultSourceService
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &EventPublisher{producer: producer, topic: topic, source: source, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BreakerState reports the circuit state, or "disabled".
func (p *EventPublisher) BreakerState() string {
	if p.breaker == nil {
		return "disabled"
	}
	return p.breaker.State().String()
}

func (p *EventPublisher) Topic() string { return p.topic }

// Publish sends payload as an event of eventType.
func (p *EventPublisher) Publish(ctx context.Context, key, eventType string, payload interface{}) error {
	env, err := NewEventEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(p.topic, []byte(key))
	if err != nil {
		return err
	}
	if err := p.send(ctx, msg); err != nil {
		if errors.IsCode(err, errors.ErrCodePublishFailed) || errors.IsCode(err, errors.ErrCodePublisherClosed) {
			return err
		}
		return errors.Wrap(err, errors.ErrCodePublishFailed, "publish event")
	}
	p.logger.Debug("event published",
		logging.String("topic", p.topic),
		logging.String("event_type", eventType),
		logging.String("event_id", env.EventID))
	return nil
}

func (p *EventPublisher) send(ctx context.Context, msg *Message) error {
	if p.breaker == nil {
		return p.producer.Publish(ctx, msg)
	}
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.producer.Publish(ctx, msg)
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(err, errors.ErrCodePublishFailed, "publisher circuit open")
	}
	return err
}

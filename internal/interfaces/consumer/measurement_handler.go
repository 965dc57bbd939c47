// Package consumer turns measurements arriving on the message bus into
// assessments.
package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// EventTypeMeasurementRecorded is the envelope type producers use for
// measurements.
const EventTypeMeasurementRecorded = "measurement.recorded"

// Ingest outcomes, used as the status label of the intake metric.
const (
	StatusAssessed = "assessed"
	StatusInvalid  = "invalid"
	StatusRejected = "rejected"
	StatusRetry    = "retry"
)

// Assessor scores one measurement.
type Assessor interface {
	Assess(ctx context.Context, m impact.Measurement) (*assessment.Assessment, error)
}

// IngestMetrics counts intake outcomes.
type IngestMetrics interface {
	RecordMeasurementIngested(status string)
}

type noopIngestMetrics struct{}

func (noopIngestMetrics) RecordMeasurementIngested(string) {}

type measurementRecord struct {
	BehaviorID string     `json:"behavior_id" validate:"required"`
	Value      *float64   `json:"value" validate:"required"`
	Unit       string     `json:"unit" validate:"required"`
	Timestamp  *time.Time `json:"timestamp"`
}

// MeasurementHandler consumes measurement messages. A message is either an
// event envelope of type measurement.recorded or a bare measurement object.
type MeasurementHandler struct {
	topic    string
	svc      Assessor
	metrics  IngestMetrics
	validate *validator.Validate
	logger   logging.Logger
}

func NewMeasurementHandler(topic string, svc Assessor, metrics IngestMetrics, logger logging.Logger) *MeasurementHandler {
	if topic == "" {
		topic = kafka.TopicMeasurements
	}
	if metrics == nil {
		metrics = noopIngestMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MeasurementHandler{
		topic:    topic,
		svc:      svc,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger.Named("intake"),
	}
}

// Topic is the topic the handler subscribes to.
func (h *MeasurementHandler) Topic() string { return h.topic }

// Handle decodes and assesses one message. Undecodable messages and
// measurements the knowledge base rejects are returned as permanent so the
// consumer dead-letters them without retrying. A missing knowledge snapshot
// is transient.
func (h *MeasurementHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	m, err := h.decode(msg)
	if err != nil {
		h.metrics.RecordMeasurementIngested(StatusInvalid)
		h.logger.Warn("undecodable measurement message",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Err(err))
		return kafka.Permanent(err)
	}

	a, err := h.svc.Assess(ctx, m)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeServiceUnavailable) || ctx.Err() != nil {
			h.metrics.RecordMeasurementIngested(StatusRetry)
			return err
		}
		h.metrics.RecordMeasurementIngested(StatusRejected)
		return kafka.Permanent(err)
	}

	h.metrics.RecordMeasurementIngested(StatusAssessed)
	h.logger.Debug("measurement assessed",
		logging.String("assessment_id", a.ID),
		logging.String("behavior", m.BehaviorID),
		logging.Int64("offset", msg.Offset))
	return nil
}

func (h *MeasurementHandler) decode(msg *kafka.Message) (impact.Measurement, error) {
	var rec measurementRecord
	if msg.Headers["event_type"] != "" {
		env, err := kafka.MessageToEventEnvelope(msg)
		if err != nil {
			return impact.Measurement{}, err
		}
		if env.EventType != EventTypeMeasurementRecorded {
			return impact.Measurement{}, errors.New(errors.ErrCodeValidation,
				fmt.Sprintf("unexpected event type %q", env.EventType))
		}
		if err := env.DecodePayload(&rec); err != nil {
			return impact.Measurement{}, err
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(msg.Value))
		if err := dec.Decode(&rec); err != nil {
			return impact.Measurement{}, errors.Wrap(err, errors.ErrCodeSerialization, "decode measurement")
		}
	}

	if err := h.validate.Struct(rec); err != nil {
		return impact.Measurement{}, errors.Wrap(err, errors.ErrCodeInvalidMeasurement, "invalid measurement record")
	}
	m := impact.Measurement{
		BehaviorID: strings.TrimSpace(rec.BehaviorID),
		Value:      *rec.Value,
		Unit:       impact.Unit(strings.ToLower(strings.TrimSpace(rec.Unit))),
	}
	if rec.Timestamp != nil {
		m.Timestamp = *rec.Timestamp
	}
	return m, nil
}

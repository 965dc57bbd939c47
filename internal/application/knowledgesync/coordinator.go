// Package knowledgesync keeps replicas on the same knowledge generation. A
// reload triggered on one replica takes a cluster-wide lock, reloads
// locally and announces itself; peers reload when they hear it.
package knowledgesync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// Notice announces a completed reload.
type Notice struct {
	Origin  string    `json:"origin"`
	Version string    `json:"version"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Bus carries notices between replicas.
type Bus interface {
	Announce(ctx context.Context, n Notice) error
	// Listen blocks until ctx is done, passing every notice to fn.
	Listen(ctx context.Context, fn func(context.Context, Notice)) error
}

// Locker guards a reload across replicas. The lock expires after TTL unless
// Extend is called; Extend reports false once the lock has been lost.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Extend(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	TTL() time.Duration
}

// Knowledge is the local service being kept in sync.
type Knowledge interface {
	Info() (assessment.KnowledgeInfo, error)
}

// ReloadFunc reloads the local knowledge base from its source.
type ReloadFunc func(ctx context.Context) error

// Metrics counts reload triggers and peer notices.
type Metrics interface {
	RecordSyncEvent(kind, status string)
}

// Coordinator runs reloads for one replica. Without a Bus it only reloads
// locally; without a Locker concurrent triggers on different replicas are
// not excluded.
type Coordinator struct {
	nodeID    string
	reload    ReloadFunc
	knowledge Knowledge
	bus       Bus
	lock      Locker
	metrics   Metrics
	logger    logging.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithBus(b Bus) Option { return func(c *Coordinator) { c.bus = b } }

func WithLocker(l Locker) Option { return func(c *Coordinator) { c.lock = l } }

// WithNodeID fixes the replica id. It defaults to a random UUID.
func WithNodeID(id string) Option { return func(c *Coordinator) { c.nodeID = id } }

func WithMetrics(m Metrics) Option { return func(c *Coordinator) { c.metrics = m } }

func WithLogger(l logging.Logger) Option { return func(c *Coordinator) { c.logger = l } }

func NewCoordinator(reload ReloadFunc, k Knowledge, opts ...Option) *Coordinator {
	c := &Coordinator{reload: reload, knowledge: k}
	for _, opt := range opts {
		opt(c)
	}
	if c.nodeID == "" {
		c.nodeID = uuid.NewString()
	}
	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}
	c.logger = c.logger.With(logging.String("node_id", c.nodeID))
	return c
}

// NodeID identifies this replica in notices.
func (c *Coordinator) NodeID() string { return c.nodeID }

// Trigger reloads this replica and, once that succeeds, tells the others.
// A reload already running elsewhere yields ErrCodeConflict. A failed
// announcement is logged; the local reload still counts.
func (c *Coordinator) Trigger(ctx context.Context, reason string) (assessment.KnowledgeInfo, error) {
	if c.lock != nil {
		ok, err := c.lock.TryLock(ctx)
		if err != nil {
			c.record("trigger", "error")
			return assessment.KnowledgeInfo{}, err
		}
		if !ok {
			c.record("trigger", "conflict")
			return assessment.KnowledgeInfo{}, errors.New(errors.ErrCodeConflict, "a knowledge reload is already in progress")
		}
		defer func() {
			if err := c.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				c.logger.Warn("reload lock release failed", logging.Err(err))
			}
		}()
		stop := c.keepLock(ctx)
		defer stop()
	}

	if err := c.reload(ctx); err != nil {
		c.record("trigger", "failure")
		return assessment.KnowledgeInfo{}, err
	}
	info, err := c.knowledge.Info()
	if err != nil {
		c.record("trigger", "failure")
		return assessment.KnowledgeInfo{}, err
	}
	c.record("trigger", "success")
	c.logger.Info("knowledge reload triggered",
		logging.String("version", info.Version),
		logging.String("reason", reason))

	if c.bus != nil {
		n := Notice{Origin: c.nodeID, Version: info.Version, Reason: reason, At: time.Now().UTC()}
		if err := c.bus.Announce(ctx, n); err != nil {
			c.record("announce", "failure")
			c.logger.Warn("reload announcement failed", logging.Err(err))
		} else {
			c.record("announce", "success")
		}
	}
	return info, nil
}

// keepLock extends the held lock every third of its TTL until the returned
// stop func is called. stop waits for the last extension to finish.
func (c *Coordinator) keepLock(ctx context.Context) (stop func()) {
	every := c.lock.TTL() / 3
	if every <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			ok, err := c.lock.Extend(ctx)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("reload lock extension failed", logging.Err(err))
			case !ok:
				c.logger.Warn("reload lock lost before the reload finished")
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// Run follows peer notices until ctx is done. Without a Bus it just waits.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.bus == nil {
		<-ctx.Done()
		return nil
	}
	err := c.bus.Listen(ctx, c.handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Coordinator) handle(ctx context.Context, n Notice) {
	if n.Origin == c.nodeID {
		return
	}
	if err := c.reload(ctx); err != nil {
		c.record("notice", "failure")
		c.logger.Warn("reload on peer notice failed",
			logging.String("origin", n.Origin),
			logging.String("peer_version", n.Version),
			logging.Err(err))
		return
	}
	c.record("notice", "success")
	c.logger.Info("knowledge reloaded on peer notice",
		logging.String("origin", n.Origin),
		logging.String("reason", n.Reason))
}

func (c *Coordinator) record(kind, status string) {
	if c.metrics != nil {
		c.metrics.RecordSyncEvent(kind, status)
	}
}

// EncodeNotice and DecodeNotice define the wire form used by bus
// implementations.
func EncodeNotice(n Notice) ([]byte, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode reload notice")
	}
	return b, nil
}

func DecodeNotice(b []byte) (Notice, error) {
	var n Notice
	if err := json.Unmarshal(b, &n); err != nil {
		return Notice{}, errors.Wrap(err, errors.ErrCodeSerialization, "decode reload notice")
	}
	if n.Origin == "" {
		return Notice{}, errors.New(errors.ErrCodeValidation, fmt.Sprintf("reload notice without origin: %s", b))
	}
	return n, nil
}

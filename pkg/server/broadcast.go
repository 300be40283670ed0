package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pinboard-go/pinboard/pkg/protocol"
)

// Coordinator fans domain events out to the correct audience and protects the
// system from message storms during continuous drag operations.
//
// Single-recipient messages and discrete structural events are never
// throttled. High-frequency message classes are coalesced: within the
// configured window only the latest state is kept, and it is flushed once the
// window reopens. Intermediate states may be dropped; the final state always
// converges. Delivery is fire-and-forget.
type Coordinator struct {
	registry *SessionRegistry
	interval time.Duration

	mu      sync.Mutex
	classes map[string]*classState
	stopped bool

	metrics *Metrics
	logger  *slog.Logger
}

// classState tracks the coalescing window for one message class.
type classState struct {
	pending *protocol.Message
	timer   *time.Timer
}

// NewCoordinator creates a coordinator broadcasting to the given registry.
func NewCoordinator(registry *SessionRegistry, interval time.Duration, metrics *Metrics, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		registry: registry,
		interval: interval,
		classes:  make(map[string]*classState),
		metrics:  metrics,
		logger:   logger.With("component", "broadcast"),
	}
}

// SendTo delivers a message to a single session. Never throttled.
func (c *Coordinator) SendTo(s *Session, msg *protocol.Message) {
	data, err := msg.Marshal()
	if err != nil {
		c.logger.Error("encode failed", "event", msg.Event, "error", err)
		return
	}
	c.deliver(s, msg.Event, data)
}

// Broadcast delivers a message to every registered session immediately.
// Used for discrete structural events, which must preserve causal ordering
// ahead of any coalesced update that follows them.
func (c *Coordinator) Broadcast(msg *protocol.Message) {
	data, err := msg.Marshal()
	if err != nil {
		c.logger.Error("encode failed", "event", msg.Event, "error", err)
		return
	}
	if c.metrics != nil {
		c.metrics.broadcastsSent.WithLabelValues(msg.Event).Inc()
	}
	c.registry.ForEach(func(s *Session) bool {
		c.deliver(s, msg.Event, data)
		return true
	})
}

// BroadcastCoalesced delivers a message to every session, coalescing all
// messages of the same class inside the window: the class flushes at most
// once per interval, and only the newest state is kept until then. A burst
// inside one window produces exactly one broadcast, carrying the last values.
func (c *Coordinator) BroadcastCoalesced(class string, msg *protocol.Message) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	st, ok := c.classes[class]
	if !ok {
		st = &classState{}
		c.classes[class] = st
	}

	superseded := st.pending != nil
	st.pending = msg
	if st.timer == nil {
		st.timer = time.AfterFunc(c.interval, func() { c.flush(class) })
	}
	c.mu.Unlock()

	if superseded && c.metrics != nil {
		c.metrics.coalescedTotal.Inc()
	}
}

// flush sends the pending message for a class once its window elapses.
func (c *Coordinator) flush(class string) {
	c.mu.Lock()
	st, ok := c.classes[class]
	if !ok || c.stopped {
		c.mu.Unlock()
		return
	}
	msg := st.pending
	st.pending = nil
	st.timer = nil
	c.mu.Unlock()

	if msg != nil {
		c.Broadcast(msg)
	}
}

// deliver writes raw bytes to one session. A failed or closed recipient is
// torn down; there is no acknowledgment or retry.
func (c *Coordinator) deliver(s *Session, event string, data []byte) {
	if err := s.sendRaw(data); err != nil {
		if err == ErrSessionClosed || err == ErrNoConnection {
			return
		}
		if c.metrics != nil {
			c.metrics.sendErrors.Inc()
		}
		c.logger.Debug("send failed, closing session",
			"session_id", s.ID, "event", event, "error", err)
		go s.Close()
	}
}

// Stop cancels all pending flush timers. Further coalesced broadcasts are
// dropped.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for _, st := range c.classes {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		st.pending = nil
	}
}

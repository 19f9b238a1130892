// Package submux routes inbound messages to per-subscription
// channels by SID. Recently removed SIDs are remembered for a short
// drain window so in-flight frames arriving after UNSUB are dropped
// silently instead of being reported as unknown.
package submux

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DrainWindow is how long an unregistered SID keeps absorbing
// in-flight deliveries.
const DrainWindow = 500 * time.Millisecond

// Delivery is the outcome of routing one message.
type Delivery int

const (
	// Delivered means the message was handed to a live subscription.
	Delivered Delivery = iota
	// Dropped means the SID was known (draining, or the mux is
	// closed) and the message was discarded silently.
	Dropped
	// Unknown means the SID has never been seen or its drain window
	// expired; callers may log it.
	Unknown
)

type entry[T any] struct {
	subject string
	queue   string

	ch       chan<- T
	messages uint64
	maxMsgs  uint64 // 0 = unlimited
}

// Sub is a snapshot of one registered subscription.
type Sub struct {
	SID     string
	Subject string
	Queue   string
}

// Mux owns the SID table. All methods are safe for concurrent use.
type Mux[T any] struct {
	mu       sync.Mutex
	nextSID  uint64
	subs     map[string]*entry[T]
	order    []string // registration order, for resubscribe
	draining map[string]struct{}
	closed   bool

	logger *zap.Logger

	// afterFunc is swappable for tests.
	afterFunc func(time.Duration, func()) *time.Timer
}

// New returns an empty Mux.
func New[T any](logger *zap.Logger) *Mux[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mux[T]{
		subs:      make(map[string]*entry[T]),
		draining:  make(map[string]struct{}),
		logger:    logger,
		afterFunc: time.AfterFunc,
	}
}

// NextSID allocates the next subscription identifier, a decimal
// string starting at "1".
func (m *Mux[T]) NextSID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSID++
	return strconv.FormatUint(m.nextSID, 10)
}

// Register stores a subscription under sid. A sid lingering in the
// draining set is revived.
func (m *Mux[T]) Register(sid, subj, queue string, ch chan<- T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.draining, sid)
	m.subs[sid] = &entry[T]{subject: subj, queue: queue, ch: ch}
	m.order = append(m.order, sid)
}

// Unregister closes the subscription channel, removes the sid, and
// keeps it in the draining set for DrainWindow.
func (m *Mux[T]) Unregister(sid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregisterLocked(sid)
}

func (m *Mux[T]) unregisterLocked(sid string) {
	e, ok := m.subs[sid]
	if !ok {
		return
	}
	close(e.ch)
	delete(m.subs, sid)
	m.removeFromOrder(sid)
	m.draining[sid] = struct{}{}
	m.afterFunc(DrainWindow, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.draining, sid)
	})
}

func (m *Mux[T]) removeFromOrder(sid string) {
	for i, s := range m.order {
		if s == sid {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// SetAutoUnsubscribe arranges for the subscription to finish after
// max deliveries, counting ones already made.
func (m *Mux[T]) SetAutoUnsubscribe(sid string, max uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.subs[sid]
	if !ok {
		return
	}
	e.maxMsgs = max
	if e.messages >= max {
		m.unregisterLocked(sid)
	}
}

// Deliver routes one message to sid. The channel send is
// non-blocking: a subscriber that stopped reading loses messages
// rather than wedging the read loop.
func (m *Mux[T]) Deliver(sid string, msg T) Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Dropped
	}
	if _, draining := m.draining[sid]; draining {
		return Dropped
	}
	e, ok := m.subs[sid]
	if !ok {
		return Unknown
	}

	e.messages++
	select {
	case e.ch <- msg:
	default:
		m.logger.Warn("subscription channel full, dropping message",
			zap.String("sid", sid), zap.String("subject", e.subject))
	}
	if e.maxMsgs > 0 && e.messages >= e.maxMsgs {
		m.unregisterLocked(sid)
	}
	return Delivered
}

// FinishAll closes every subscription, moves all sids to the draining
// set, and marks the mux closed. Further deliveries are dropped.
func (m *Mux[T]) FinishAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for sid, e := range m.subs {
		close(e.ch)
		m.draining[sid] = struct{}{}
		delete(m.subs, sid)
	}
	m.order = nil
	m.closed = true
}

// Snapshot returns the live subscriptions in registration order, for
// resubscription after reconnect.
func (m *Mux[T]) Snapshot() []Sub {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sub, 0, len(m.order))
	for _, sid := range m.order {
		if e, ok := m.subs[sid]; ok {
			out = append(out, Sub{SID: sid, Subject: e.subject, Queue: e.queue})
		}
	}
	return out
}

// Remaining reports how many deliveries are left before an
// auto-unsubscribe limit fires, and whether a limit is set.
func (m *Mux[T]) Remaining(sid string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.subs[sid]
	if !ok || e.maxMsgs == 0 {
		return 0, false
	}
	return e.maxMsgs - e.messages, true
}

// Package messaging implements the keyed publish/subscribe primitive every
// engine service communicates through. One subscriber list exists per topic
// key, plus a wildcard topic and per-student scoped topics.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOPICS
// ══════════════════════════════════════════════════════════════════════════════

// Topic is a subscriber list key. Regular topics are event types; student
// topics scope delivery to events concerning one student; TopicAll receives
// everything.
type Topic string

// TopicAll is the wildcard topic.
const TopicAll Topic = "*"

// TopicFor returns the topic for an event type.
func TopicFor(eventType shared.EventType) Topic {
	return Topic(eventType)
}

// StudentTopic returns the scoped topic for one student. Events
// implementing shared.StudentScoped are additionally delivered here.
func StudentTopic(studentID string) Topic {
	return Topic("student:" + studentID)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// Handler processes one published event.
type Handler func(event shared.Event) error

// UnsubscribeFunc cancels a subscription. It is idempotent, and after it
// returns the handler receives no further deliveries - including deliveries
// from a publish that is already in flight.
type UnsubscribeFunc func()

// subscription is one registered handler. The active flag is checked
// immediately before every invocation so that cancellation mid-dispatch is
// honored even though Publish iterates over a snapshot.
type subscription struct {
	handler Handler
	active  atomic.Bool
}

// ErrBusClosed is returned when operations are attempted on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// Bus is a synchronous in-process event bus. Dispatch order is registration
// order within a topic; for one publish the topic subscribers run first,
// then the student-scoped subscribers, then the wildcard subscribers.
//
// Publish snapshots the subscriber lists before iterating: a subscriber
// added during a callback does not receive the current event, and one
// removed during a callback receives nothing further.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Topic][]*subscription
	closed  bool
	logger  *slog.Logger
	metrics *Metrics
}

// Config contains configuration for the Bus.
type Config struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// EnableMetrics enables publish/handler counters.
	EnableMetrics bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{EnableMetrics: true}
}

// NewBus creates a new event bus.
func NewBus(config Config) *Bus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	bus := &Bus{
		subs:   make(map[Topic][]*subscription),
		logger: config.Logger,
	}
	if config.EnableMetrics {
		bus.metrics = NewMetrics()
	}
	return bus
}

// Subscribe registers a handler for a topic and returns its unsubscribe
// closure.
func (b *Bus) Subscribe(topic Topic, handler Handler) (UnsubscribeFunc, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &subscription{handler: handler}
	sub.active.Store(true)
	b.subs[topic] = append(b.subs[topic], sub)
	b.logger.Debug("subscribed handler", "topic", topic)

	return b.unsubscribeFunc(topic, sub), nil
}

// SubscribeAll registers a handler on the wildcard topic.
func (b *Bus) SubscribeAll(handler Handler) (UnsubscribeFunc, error) {
	return b.Subscribe(TopicAll, handler)
}

// SubscribeToEvent registers a handler for one event type.
func (b *Bus) SubscribeToEvent(eventType shared.EventType, handler Handler) (UnsubscribeFunc, error) {
	return b.Subscribe(TopicFor(eventType), handler)
}

// SubscribeToStudent registers a handler that receives every event scoped
// to the given student, regardless of event type.
func (b *Bus) SubscribeToStudent(studentID string, handler Handler) (UnsubscribeFunc, error) {
	return b.Subscribe(StudentTopic(studentID), handler)
}

// unsubscribeFunc builds the idempotent cancellation closure for sub.
func (b *Bus) unsubscribeFunc(topic Topic, sub *subscription) UnsubscribeFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Flipping the flag first guarantees no further deliveries even
			// if a dispatch snapshot already holds the subscription.
			sub.active.Store(false)

			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[topic]
			for i, s := range list {
				if s == sub {
					b.subs[topic] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

// Publish delivers the event to every subscriber registered at the time of
// the call, synchronously and in registration order. Handler errors are
// logged and counted; they do not stop the dispatch and do not propagate to
// the publisher.
func (b *Bus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}

	// Snapshot the subscriber lists; the live lists may change while the
	// handlers run.
	snapshot := make([]*subscription, 0, 8)
	snapshot = append(snapshot, b.subs[TopicFor(event.EventType())]...)
	if scoped, ok := event.(shared.StudentScoped); ok && scoped.StudentID() != "" {
		snapshot = append(snapshot, b.subs[StudentTopic(scoped.StudentID())]...)
	}
	snapshot = append(snapshot, b.subs[TopicAll]...)
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}

	if len(snapshot) == 0 {
		b.logger.Debug("no subscribers for event", "event_type", event.EventType())
		return nil
	}

	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}

		start := time.Now()
		err := sub.handler(event)
		if b.metrics != nil {
			b.metrics.RecordHandler(event.EventType(), time.Since(start), err == nil)
		}
		if err != nil {
			b.logger.Error("subscriber error",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
		}
	}

	return nil
}

// Close shuts the bus down; further Subscribe/Publish calls fail with
// ErrBusClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.subs = make(map[Topic][]*subscription)
	b.logger.Info("event bus closed")
	return nil
}

// SubscriberCount returns the current number of subscribers on a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Metrics returns the bus counters (nil when disabled).
func (b *Bus) Metrics() *Metrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks event bus counters.
type Metrics struct {
	mu sync.RWMutex

	PublishedTotal   map[shared.EventType]int64
	HandlerRuns      int64
	HandlerSuccesses int64
	HandlerFailures  int64
	HandlerDuration  time.Duration
}

// NewMetrics creates a new counter set.
func NewMetrics() *Metrics {
	return &Metrics{
		PublishedTotal: make(map[shared.EventType]int64),
	}
}

// RecordPublish records one publish.
func (m *Metrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedTotal[eventType]++
}

// RecordHandler records one handler execution.
func (m *Metrics) RecordHandler(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HandlerRuns++
	m.HandlerDuration += duration
	if success {
		m.HandlerSuccesses++
	} else {
		m.HandlerFailures++
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var published int64
	for _, v := range m.PublishedTotal {
		published += v
	}

	avg := time.Duration(0)
	if m.HandlerRuns > 0 {
		avg = m.HandlerDuration / time.Duration(m.HandlerRuns)
	}

	return MetricsSnapshot{
		TotalPublished:         published,
		TotalHandlerRuns:       m.HandlerRuns,
		HandlerFailures:        m.HandlerFailures,
		AverageHandlerDuration: avg,
	}
}

// MetricsSnapshot is a point-in-time snapshot of bus counters.
type MetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerRuns       int64
	HandlerFailures        int64
	AverageHandlerDuration time.Duration
}

// String renders the snapshot for log lines.
func (s MetricsSnapshot) String() string {
	return fmt.Sprintf("published=%d handlers=%d failures=%d avg=%s",
		s.TotalPublished, s.TotalHandlerRuns, s.HandlerFailures, s.AverageHandlerDuration)
}

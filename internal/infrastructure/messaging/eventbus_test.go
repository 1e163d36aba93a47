package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

func newTestEvent(studentID string) shared.Event {
	return shared.NewActivityProgressUpdatedEvent("assign-1", "act-1", studentID, 40, "in_progress")
}

func TestBus_PublishDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		_, err := bus.SubscribeToEvent(shared.EventActivityProgressUpdated, func(shared.Event) error {
			order = append(order, i)
			return nil
		})
		assert.NoError(t, err)
	}

	err := bus.Publish(newTestEvent("student-1"))
	assert.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_SubscriberAddedDuringDispatchNotInvoked(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	lateCalls := 0
	_, err := bus.SubscribeToEvent(shared.EventActivityProgressUpdated, func(shared.Event) error {
		// Registering mid-dispatch must not receive the in-flight event.
		_, subErr := bus.SubscribeToEvent(shared.EventActivityProgressUpdated, func(shared.Event) error {
			lateCalls++
			return nil
		})
		assert.NoError(t, subErr)
		return nil
	})
	assert.NoError(t, err)

	assert.NoError(t, bus.Publish(newTestEvent("student-1")))
	assert.Equal(t, 0, lateCalls)

	// Next publish reaches the late subscriber.
	assert.NoError(t, bus.Publish(newTestEvent("student-1")))
	assert.Equal(t, 1, lateCalls)
}

func TestBus_SelfUnsubscribeDuringDispatch(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	firstCalls := 0
	secondCalls := 0

	var unsubSecond UnsubscribeFunc

	_, err := bus.SubscribeToEvent(shared.EventActivityProgressUpdated, func(shared.Event) error {
		firstCalls++
		// Cancelling the later subscription here must suppress its delivery
		// even though the dispatch snapshot was already taken.
		unsubSecond()
		return nil
	})
	assert.NoError(t, err)

	unsubSecond, err = bus.SubscribeToEvent(shared.EventActivityProgressUpdated, func(shared.Event) error {
		secondCalls++
		return nil
	})
	assert.NoError(t, err)

	assert.NoError(t, bus.Publish(newTestEvent("student-1")))
	assert.Equal(t, 1, firstCalls)
	assert.Equal(t, 0, secondCalls)

	assert.NoError(t, bus.Publish(newTestEvent("student-1")))
	assert.Equal(t, 2, firstCalls)
	assert.Equal(t, 0, secondCalls)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	calls := 0
	unsubA, err := bus.SubscribeToEvent(shared.EventActivityAssigned, func(shared.Event) error {
		calls++
		return nil
	})
	assert.NoError(t, err)

	callsB := 0
	_, err = bus.SubscribeToEvent(shared.EventActivityAssigned, func(shared.Event) error {
		callsB++
		return nil
	})
	assert.NoError(t, err)

	unsubA()
	unsubA()
	unsubA()

	assert.Equal(t, 1, bus.SubscriberCount(TopicFor(shared.EventActivityAssigned)))

	event := shared.NewActivityAssignedEvent("assign-1", "act-1", "Math Quiz", "student-1", "teacher-1")
	assert.NoError(t, bus.Publish(event))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, callsB)
}

func TestBus_StudentScopedDelivery(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	var seen []string
	_, err := bus.SubscribeToStudent("student-1", func(event shared.Event) error {
		seen = append(seen, string(event.EventType()))
		return nil
	})
	assert.NoError(t, err)

	assert.NoError(t, bus.Publish(newTestEvent("student-1")))
	assert.NoError(t, bus.Publish(newTestEvent("student-2")))

	assert.Equal(t, []string{string(shared.EventActivityProgressUpdated)}, seen)
}

func TestBus_WildcardReceivesEverything(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	all := 0
	_, err := bus.SubscribeAll(func(shared.Event) error {
		all++
		return nil
	})
	assert.NoError(t, err)

	assert.NoError(t, bus.Publish(newTestEvent("student-1")))
	event := shared.NewActivityAssignedEvent("assign-1", "act-1", "Math Quiz", "student-1", "teacher-1")
	assert.NoError(t, bus.Publish(event))

	assert.Equal(t, 2, all)
}

func TestBus_HandlerErrorDoesNotStopDispatch(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	secondRan := false
	_, err := bus.SubscribeToEvent(shared.EventActivityProgressUpdated, func(shared.Event) error {
		return errors.New("boom")
	})
	assert.NoError(t, err)
	_, err = bus.SubscribeToEvent(shared.EventActivityProgressUpdated, func(shared.Event) error {
		secondRan = true
		return nil
	})
	assert.NoError(t, err)

	assert.NoError(t, bus.Publish(newTestEvent("student-1")))
	assert.True(t, secondRan)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.HandlerFailures)
	assert.Equal(t, int64(2), snap.TotalHandlerRuns)
}

func TestBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := NewBus(DefaultConfig())

	assert.NoError(t, bus.Close())
	assert.NoError(t, bus.Close())

	_, err := bus.SubscribeAll(func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrBusClosed)

	err = bus.Publish(newTestEvent("student-1"))
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestDispatcher_RoutesAndCollectsFailures(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	d := NewDispatcher(DefaultDispatcherConfig(bus))
	d.Use(RecoveryMiddleware(d.logger))

	handled := 0
	assert.NoError(t, d.Register(shared.EventActivityProgressUpdated, "progress-counter", func(shared.Event) error {
		handled++
		return nil
	}))
	assert.NoError(t, d.Register(shared.EventActivityProgressUpdated, "panicking", func(shared.Event) error {
		panic("unexpected")
	}))

	assert.NoError(t, d.Start())

	// Handler errors are swallowed by the bus; the DLQ records them.
	assert.NoError(t, bus.Publish(newTestEvent("student-1")))

	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, d.DeadLetterQueue().Size())
	entry := d.DeadLetterQueue().Entries()[0]
	assert.Equal(t, "panicking", entry.HandlerName)
	assert.WithinDuration(t, time.Now(), entry.FailedAt, time.Minute)

	assert.NoError(t, d.Stop())
}

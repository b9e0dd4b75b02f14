package jitter

import (
	"testing"

	"github.com/fxredeemer/jitterphysics-sub000/actor"
)

func createTestBody() *actor.RigidBody {
	return actor.NewRigidBody(actor.NewSphere(1), actor.BodyTypeDynamic, actor.DefaultMaterial())
}

type eventCapture struct {
	events []Event
}

func (ec *eventCapture) capture(event Event) {
	ec.events = append(ec.events, event)
}

func (ec *eventCapture) reset() {
	ec.events = ec.events[:0]
}

func (ec *eventCapture) count() int {
	return len(ec.events)
}

func (ec *eventCapture) countType(eventType EventType) int {
	n := 0
	for _, e := range ec.events {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

func (ec *eventCapture) hasEventType(eventType EventType) bool {
	return ec.countType(eventType) > 0
}

// =============================================================================
// Subscribe and Listeners Tests
// =============================================================================

func TestEvents_Subscribe(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}

	events.Subscribe(COLLISION_BEGIN, capture.capture)

	if len(events.listeners[COLLISION_BEGIN]) != 1 {
		t.Errorf("Expected 1 listener for COLLISION_BEGIN, got %d", len(events.listeners[COLLISION_BEGIN]))
	}
}

func TestEvents_MultipleListeners(t *testing.T) {
	events := NewEvents()
	capture1 := &eventCapture{}
	capture2 := &eventCapture{}

	events.Subscribe(BODY_ADDED, capture1.capture)
	events.Subscribe(BODY_ADDED, capture2.capture)

	events.emit(BodyAddedEvent{Body: createTestBody()})
	events.flush()

	if capture1.count() != 1 || capture2.count() != 1 {
		t.Errorf("Expected both listeners called once, got %d and %d", capture1.count(), capture2.count())
	}
}

func TestEvents_DifferentEventTypes(t *testing.T) {
	events := NewEvents()
	begin := &eventCapture{}
	end := &eventCapture{}

	events.Subscribe(COLLISION_BEGIN, begin.capture)
	events.Subscribe(COLLISION_END, end.capture)

	bodyA, bodyB := createTestBody(), createTestBody()
	events.emit(CollisionBeginEvent{BodyA: bodyA, BodyB: bodyB})
	events.flush()

	if !begin.hasEventType(COLLISION_BEGIN) {
		t.Error("Expected COLLISION_BEGIN listener to be called")
	}
	if end.count() != 0 {
		t.Errorf("Expected COLLISION_END listener not to be called, got %d events", end.count())
	}
}

func TestEvents_Flush_ClearsBuffer(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(PRE_STEP, capture.capture)

	events.emit(PreStepEvent{TimeStep: 0.01})
	events.flush()
	events.flush()

	if capture.count() != 1 {
		t.Errorf("Expected 1 event after two flushes, got %d", capture.count())
	}
	if len(events.buffer) != 0 {
		t.Errorf("Expected empty buffer, got %d", len(events.buffer))
	}
}

func TestEvents_NoListeners(t *testing.T) {
	events := NewEvents()

	events.emit(BodyRemovedEvent{Body: createTestBody()})

	if len(events.buffer) != 0 {
		t.Errorf("Expected unobserved events to be dropped, got %d buffered", len(events.buffer))
	}
	events.flush()
}

func TestEvents_EmitDuringFlush(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	body := createTestBody()

	events.Subscribe(BODY_ADDED, func(event Event) {
		events.emit(BodyRemovedEvent{Body: event.(BodyAddedEvent).Body})
	})
	events.Subscribe(BODY_REMOVED, capture.capture)

	events.emit(BodyAddedEvent{Body: body})
	events.flush()

	if capture.count() != 1 {
		t.Fatalf("Expected the chained event in the same flush, got %d", capture.count())
	}
	if capture.events[0].(BodyRemovedEvent).Body != body {
		t.Error("Chained event carries the wrong body")
	}
}

func TestEvents_TypesAreDistinct(t *testing.T) {
	body := createTestBody()
	events := []Event{
		PreStepEvent{}, PostStepEvent{},
		BodyAddedEvent{Body: body}, BodyRemovedEvent{Body: body},
		ConstraintAddedEvent{}, ConstraintRemovedEvent{},
		CollisionBeginEvent{}, CollisionEndEvent{},
		ContactCreatedEvent{},
		BodyActivatedEvent{Body: body}, BodyDeactivatedEvent{Body: body},
	}

	seen := make(map[EventType]bool)
	for _, e := range events {
		if seen[e.Type()] {
			t.Errorf("Event type %d used twice", e.Type())
		}
		seen[e.Type()] = true
	}
	if len(seen) != int(BODY_DEACTIVATED)+1 {
		t.Errorf("Expected %d event types, got %d", int(BODY_DEACTIVATED)+1, len(seen))
	}
}

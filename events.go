package jitter

import (
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/constraint"
)

const (
	PRE_STEP EventType = iota
	POST_STEP
	BODY_ADDED
	BODY_REMOVED
	CONSTRAINT_ADDED
	CONSTRAINT_REMOVED
	COLLISION_BEGIN
	COLLISION_END
	CONTACT_CREATED
	BODY_ACTIVATED
	BODY_DEACTIVATED
)

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Step events
type PreStepEvent struct {
	TimeStep float64
}

func (e PreStepEvent) Type() EventType { return PRE_STEP }

type PostStepEvent struct {
	TimeStep float64
}

func (e PostStepEvent) Type() EventType { return POST_STEP }

// Body events
type BodyAddedEvent struct {
	Body *actor.RigidBody
}

func (e BodyAddedEvent) Type() EventType { return BODY_ADDED }

type BodyRemovedEvent struct {
	Body *actor.RigidBody
}

func (e BodyRemovedEvent) Type() EventType { return BODY_REMOVED }

// Constraint events
type ConstraintAddedEvent struct {
	Constraint constraint.Constraint
}

func (e ConstraintAddedEvent) Type() EventType { return CONSTRAINT_ADDED }

type ConstraintRemovedEvent struct {
	Constraint constraint.Constraint
}

func (e ConstraintRemovedEvent) Type() EventType { return CONSTRAINT_REMOVED }

// Collision events, raised when an arbiter is created or destroyed
type CollisionBeginEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionBeginEvent) Type() EventType { return COLLISION_BEGIN }

type CollisionEndEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionEndEvent) Type() EventType { return COLLISION_END }

// ContactCreatedEvent carries a contact newly added to a manifold. The
// contact is only valid during the listener call.
type ContactCreatedEvent struct {
	Contact *constraint.Contact
}

func (e ContactCreatedEvent) Type() EventType { return CONTACT_CREATED }

// Sleep/Wake events
type BodyActivatedEvent struct {
	Body *actor.RigidBody
}

func (e BodyActivatedEvent) Type() EventType { return BODY_ACTIVATED }

type BodyDeactivatedEvent struct {
	Body *actor.RigidBody
}

func (e BodyDeactivatedEvent) Type() EventType { return BODY_DEACTIVATED }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event
}

func NewEvents() Events {
	return Events{
		listeners: make(map[EventType][]EventListener),
		buffer:    make([]Event, 0, 256),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// emit buffers an event. The narrow phase calls it under the world lock.
func (e *Events) emit(event Event) {
	if len(e.listeners[event.Type()]) == 0 {
		return
	}
	e.buffer = append(e.buffer, event)
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	for i := 0; i < len(e.buffer); i++ {
		for _, listener := range e.listeners[e.buffer[i].Type()] {
			listener(e.buffer[i])
		}
	}
	clear(e.buffer)
	e.buffer = e.buffer[:0]
}

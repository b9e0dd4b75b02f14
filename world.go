// Package jitter is a 3D rigid and soft body physics engine. A World steps
// bodies, constraints and soft bodies through a fixed sequence of phases:
// contact refresh, collision detection, deactivation, force integration,
// per-island sequential impulse solving and position integration.
package jitter

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/collision"
	"github.com/fxredeemer/jitterphysics-sub000/constraint"
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/fxredeemer/jitterphysics-sub000/island"
	"github.com/fxredeemer/jitterphysics-sub000/softbody"
	"github.com/fxredeemer/jitterphysics-sub000/worker"
	"github.com/go-gl/mathgl/mgl64"
)

type World struct {
	config WorldConfig
	logger *slog.Logger

	system   collision.System
	islands  *island.Manager
	arbiters *constraint.ArbiterMap
	threads  *worker.ThreadManager

	// Insertion ordered; the sets flag mass points of soft bodies
	bodies      []*actor.RigidBody
	bodySet     map[*actor.RigidBody]bool
	constraints []constraint.Constraint
	softBodies  []*softbody.SoftBody

	contactPool *ResourcePool[*constraint.Contact]
	arbiterPool *ResourcePool[*constraint.Arbiter]

	// Guards the arbiter map and the queues during the narrow phase
	mu              sync.Mutex
	addedArbiters   []*constraint.Arbiter
	removedArbiters []*constraint.Arbiter
	activeIslands   []*island.CollisionIsland

	timestep          float64
	linearDampFactor  float64
	angularDampFactor float64

	Events Events
}

// NewWorld builds an empty world detecting collisions with system. A nil
// system defaults to a persistent sweep and prune.
func NewWorld(system collision.System, opts ...Option) *World {
	if system == nil {
		system = collision.NewPersistentSAP()
	}

	w := &World{
		config:      DefaultWorldConfig(),
		logger:      slog.New(slog.DiscardHandler),
		system:      system,
		islands:     island.NewManager(),
		arbiters:    constraint.NewArbiterMap(),
		bodySet:     make(map[*actor.RigidBody]bool),
		contactPool: NewResourcePool(constraint.NewContact),
		arbiterPool: NewResourcePool(constraint.NewArbiter),
		Events:      NewEvents(),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.threads = worker.NewThreadManager(w.config.Workers)
	w.system.SetThreadManager(w.threads)
	w.system.SetCollisionHandler(w.collisionDetected)
	w.logger.Debug("world created", "threads", w.threads.ThreadCount())
	return w
}

// Close stops the worker goroutines. The world must not be stepped after.
func (w *World) Close() {
	w.threads.Close()
}

func (w *World) Config() WorldConfig {
	return w.config
}

func (w *World) CollisionSystem() collision.System {
	return w.system
}

func (w *World) SetGravity(gravity mgl64.Vec3) {
	w.config.Gravity = gravity
}

// SetDampingFactors sets the fraction of velocity kept after one second.
// Both values are clamped to [0, 1].
func (w *World) SetDampingFactors(linear, angular float64) {
	w.config.LinearDamping = geometry.Clamp(linear, 0, 1)
	w.config.AngularDamping = geometry.Clamp(angular, 0, 1)
}

// SetInactivityThreshold sets the squared speeds under which a body counts
// as resting, and how long an island must rest before it falls asleep.
func (w *World) SetInactivityThreshold(linear, angular, time float64) {
	w.config.InactiveLinearThreshold = max(linear, 0)
	w.config.InactiveAngularThreshold = max(angular, 0)
	w.config.DeactivationTime = max(time, 0)
}

// SetIterations sets the solver iterations of large and small islands.
func (w *World) SetIterations(iterations, smallIterations int) {
	w.config.ContactIterations = max(iterations, 1)
	w.config.SmallIterations = max(smallIterations, 1)
}

func (w *World) SetAllowDeactivation(allow bool) {
	w.config.AllowDeactivation = allow
}

// ========== VIEWS ==========

func (w *World) Bodies() []*actor.RigidBody {
	return slices.Clone(w.bodies)
}

func (w *World) Constraints() []constraint.Constraint {
	return slices.Clone(w.constraints)
}

func (w *World) SoftBodies() []*softbody.SoftBody {
	return slices.Clone(w.softBodies)
}

func (w *World) Islands() []*island.CollisionIsland {
	return slices.Clone(w.islands.Islands())
}

func (w *World) Arbiters() []*constraint.Arbiter {
	return slices.Clone(w.arbiters.Arbiters())
}

func (w *World) Contains(body *actor.RigidBody) bool {
	_, ok := w.bodySet[body]
	return ok
}

// Raycast returns the closest body hit by the ray within the collision
// system. The hit point is origin + direction*Fraction.
func (w *World) Raycast(origin, direction mgl64.Vec3, filter collision.RaycastFilter) (collision.RaycastHit, bool) {
	return w.system.Raycast(origin, direction, filter)
}

// ========== BODIES ==========

// AddBody registers a body with the collision system and gives a dynamic
// body its own island.
func (w *World) AddBody(body *actor.RigidBody) error {
	if body == nil {
		return fmt.Errorf("add body: %w", ErrNilArgument)
	}
	if w.Contains(body) {
		return fmt.Errorf("add body %v: %w", body, ErrBodyExists)
	}
	if err := w.system.AddEntity(collision.RigidEntity{Body: body}); err != nil {
		return fmt.Errorf("add body %v: %w", body, err)
	}

	w.addBody(body, false)
	w.Events.flush()
	w.logger.Debug("body added", "body", body, "type", body.BodyType())
	return nil
}

func (w *World) addBody(body *actor.RigidBody, massPoint bool) {
	w.bodies = append(w.bodies, body)
	w.bodySet[body] = massPoint
	w.islands.AddBody(body)
	w.Events.emit(BodyAddedEvent{Body: body})
}

// RemoveBody destroys the arbiters and constraints of the body and takes it
// out of the world. Mass points go with their soft body only.
func (w *World) RemoveBody(body *actor.RigidBody) error {
	massPoint, ok := w.bodySet[body]
	if !ok {
		return fmt.Errorf("remove body %v: %w", body, ErrBodyNotFound)
	}
	if massPoint {
		return fmt.Errorf("remove body %v: %w", body, ErrMassPoint)
	}

	w.removeBody(body)
	w.system.RemoveEntity(collision.RigidEntity{Body: body})
	w.Events.flush()
	w.logger.Debug("body removed", "body", body)
	return nil
}

func (w *World) removeBody(body *actor.RigidBody) {
	arbiters := make([]*constraint.Arbiter, 0, len(body.Arbiters))
	for _, e := range body.Arbiters {
		arbiters = append(arbiters, e.(*constraint.Arbiter))
	}
	for _, e := range body.Constraints {
		c := e.(constraint.Constraint)
		w.constraints = slices.DeleteFunc(w.constraints, func(other constraint.Constraint) bool { return other == c })
		w.Events.emit(ConstraintRemovedEvent{Constraint: c})
	}

	w.islands.RemoveBody(body)
	for _, a := range arbiters {
		w.arbiters.Remove(a)
		w.Events.emit(CollisionEndEvent{BodyA: a.Body1(), BodyB: a.Body2()})
		w.releaseArbiter(a)
	}

	w.bodies = slices.DeleteFunc(w.bodies, func(other *actor.RigidBody) bool { return other == body })
	delete(w.bodySet, body)
	w.Events.emit(BodyRemovedEvent{Body: body})
}

// SetBodyType switches a body between static and dynamic. Its arbiters are
// destroyed and rebuilt by the next detection.
func (w *World) SetBodyType(body *actor.RigidBody, bodyType actor.BodyType) error {
	if !w.Contains(body) {
		return fmt.Errorf("set body type %v: %w", body, ErrBodyNotFound)
	}
	if body.BodyType() == bodyType {
		return nil
	}

	body.SetBodyType(bodyType)
	var arbiters []*constraint.Arbiter
	if body.IsStatic() {
		arbiters = w.islands.MakeBodyStatic(body)
	} else {
		arbiters = w.islands.MakeBodyDynamic(body)
	}
	for _, a := range arbiters {
		w.arbiters.Remove(a)
		w.Events.emit(CollisionEndEvent{BodyA: a.Body1(), BodyB: a.Body2()})
		w.releaseArbiter(a)
	}
	w.Events.flush()
	return nil
}

// ========== CONSTRAINTS ==========

// AddConstraint joins the islands of the constrained bodies. Joints call it
// through constraint.Host.
func (w *World) AddConstraint(c constraint.Constraint) error {
	if c == nil || c.Body1() == nil {
		return fmt.Errorf("add constraint: %w", ErrNilArgument)
	}
	if slices.Contains(w.constraints, c) {
		return fmt.Errorf("add constraint: %w", ErrConstraintExists)
	}
	for _, body := range []*actor.RigidBody{c.Body1(), c.Body2()} {
		if body != nil && !w.Contains(body) {
			return fmt.Errorf("add constraint: %v: %w", body, ErrBodyNotFound)
		}
	}

	w.addConstraint(c)
	w.Events.flush()
	w.logger.Debug("constraint added", "body1", c.Body1(), "body2", c.Body2())
	return nil
}

func (w *World) addConstraint(c constraint.Constraint) {
	w.constraints = append(w.constraints, c)
	w.islands.ConstraintCreated(c)
	w.Events.emit(ConstraintAddedEvent{Constraint: c})
}

func (w *World) RemoveConstraint(c constraint.Constraint) error {
	if !slices.Contains(w.constraints, c) {
		return fmt.Errorf("remove constraint: %w", ErrConstraintNotFound)
	}

	w.removeConstraint(c)
	w.Events.flush()
	w.logger.Debug("constraint removed", "body1", c.Body1(), "body2", c.Body2())
	return nil
}

func (w *World) removeConstraint(c constraint.Constraint) {
	w.constraints = slices.DeleteFunc(w.constraints, func(other constraint.Constraint) bool { return other == c })
	w.islands.ConstraintRemoved(c)
	w.Events.emit(ConstraintRemovedEvent{Constraint: c})
}

var _ constraint.Host = (*World)(nil)

// ========== SOFT BODIES ==========

// AddSoftBody registers the soft body as one collision entity. Its mass
// points join the world as bodies without collision entities of their own,
// its springs as constraints.
func (w *World) AddSoftBody(sb *softbody.SoftBody) error {
	if sb == nil {
		return fmt.Errorf("add soft body: %w", ErrNilArgument)
	}
	if slices.Contains(w.softBodies, sb) {
		return fmt.Errorf("add soft body: %w", ErrSoftBodyExists)
	}
	if err := w.system.AddEntity(collision.SoftEntity{Body: sb}); err != nil {
		return fmt.Errorf("add soft body: %w", err)
	}

	w.softBodies = append(w.softBodies, sb)
	for _, p := range sb.Points() {
		w.addBody(p, true)
	}
	for _, s := range sb.Springs() {
		w.addConstraint(s)
	}
	w.Events.flush()
	w.logger.Debug("soft body added", "points", len(sb.Points()), "springs", len(sb.Springs()))
	return nil
}

func (w *World) RemoveSoftBody(sb *softbody.SoftBody) error {
	if !slices.Contains(w.softBodies, sb) {
		return fmt.Errorf("remove soft body: %w", ErrSoftBodyNotFound)
	}

	for _, s := range sb.Springs() {
		if slices.Contains(w.constraints, constraint.Constraint(s)) {
			w.removeConstraint(s)
		}
	}
	for _, p := range sb.Points() {
		w.removeBody(p)
	}
	w.system.RemoveEntity(collision.SoftEntity{Body: sb})
	w.softBodies = slices.DeleteFunc(w.softBodies, func(other *softbody.SoftBody) bool { return other == sb })
	w.Events.flush()
	w.logger.Debug("soft body removed", "points", len(sb.Points()))
	return nil
}

// Clear removes everything from the world and empties the pools.
func (w *World) Clear() {
	for _, body := range w.bodies {
		if !w.bodySet[body] {
			w.system.RemoveEntity(collision.RigidEntity{Body: body})
		}
		body.Arbiters = nil
		body.Constraints = nil
		body.Island = actor.NoIsland
		w.Events.emit(BodyRemovedEvent{Body: body})
	}
	for _, sb := range w.softBodies {
		w.system.RemoveEntity(collision.SoftEntity{Body: sb})
	}
	for _, a := range w.arbiters.Arbiters() {
		a.Release()
	}

	w.bodies = w.bodies[:0]
	clear(w.bodySet)
	w.constraints = w.constraints[:0]
	w.softBodies = w.softBodies[:0]
	w.arbiters.Clear()
	w.islands.RemoveAll()
	w.addedArbiters = w.addedArbiters[:0]
	w.removedArbiters = w.removedArbiters[:0]
	w.contactPool.Clear()
	w.arbiterPool.Clear()

	w.Events.flush()
	w.logger.Debug("world cleared")
}

// ========== STEP ==========

// Step advances the world by dt seconds. A zero timestep does nothing.
// multithreaded spreads the narrow phase, the island solve and the
// integration over the thread manager.
func (w *World) Step(dt float64, multithreaded bool) error {
	if dt < 0 {
		return fmt.Errorf("step %v: %w", dt, ErrInvalidTimestep)
	}
	if dt == 0 {
		return nil
	}

	w.timestep = dt
	w.linearDampFactor = math.Pow(w.config.LinearDamping, dt)
	w.angularDampFactor = math.Pow(w.config.AngularDamping, dt)

	// Phase 1: pre step
	w.Events.emit(PreStepEvent{TimeStep: dt})
	w.Events.flush()
	for _, body := range w.bodies {
		if body.PreStep != nil {
			body.PreStep(body, dt)
		}
	}

	// Phase 2 & 3: refresh the manifolds, destroy the empty arbiters
	w.updateArbiters()
	w.Events.flush()

	// Phase 4: soft bodies
	for _, sb := range w.softBodies {
		sb.Update(dt)
		sb.DoSelfCollision(w.collisionDetected)
	}

	// Phase 5: broad and narrow phase
	w.system.Detect(multithreaded)

	// Phase 6: connect the new arbiters
	w.applyAddedArbiters()
	w.Events.flush()

	// Phase 7: sleep
	w.checkDeactivation()
	w.Events.flush()

	// Phase 8: forces
	for _, body := range w.bodies {
		body.IntegrateForces(dt, w.config.Gravity)
	}

	// Phase 9: solver
	w.solveIslands(multithreaded)

	// Phase 10: positions
	w.integrate(multithreaded)

	// Phase 11: post step
	for _, body := range w.bodies {
		if body.PostStep != nil {
			body.PostStep(body, dt)
		}
	}
	w.Events.emit(PostStepEvent{TimeStep: dt})
	w.Events.flush()

	return nil
}

// collisionDetected receives every contact of the narrow phase, possibly
// from several goroutines at once.
func (w *World) collisionDetected(body1, body2 *actor.RigidBody, point1, point2, normal mgl64.Vec3, penetration float64) {
	if body1.IsStatic() && body2.IsStatic() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	arbiter, ok := w.arbiters.Lookup(body1, body2)
	if !ok {
		arbiter = w.arbiterPool.GetNew()
		arbiter.Reset(body1, body2, w.contactPool)
		w.arbiters.Add(arbiter)
		w.addedArbiters = append(w.addedArbiters, arbiter)
	}

	var contact *constraint.Contact
	if arbiter.Body1() == body1 {
		contact = arbiter.AddContact(point1, point2, normal, penetration, w.config.Contact)
	} else {
		contact = arbiter.AddContact(point2, point1, normal.Mul(-1), penetration, w.config.Contact)
	}
	if contact != nil {
		w.Events.emit(ContactCreatedEvent{Contact: contact})
	}
}

func (w *World) updateArbiters() {
	for _, a := range w.arbiters.Arbiters() {
		if a.Update(w.config.Contact) {
			w.removedArbiters = append(w.removedArbiters, a)
		}
	}
	for _, a := range w.removedArbiters {
		w.arbiters.Remove(a)
		w.Events.emit(CollisionEndEvent{BodyA: a.Body1(), BodyB: a.Body2()})
	}

	for _, a := range w.removedArbiters {
		w.islands.ArbiterRemoved(a)
		w.releaseArbiter(a)
	}
	clear(w.removedArbiters)
	w.removedArbiters = w.removedArbiters[:0]
}

func compareArbiters(a, b *constraint.Arbiter) int {
	return cmp.Or(
		cmp.Compare(a.Body1().ID(), b.Body1().ID()),
		cmp.Compare(a.Body2().ID(), b.Body2().ID()),
	)
}

// applyAddedArbiters connects the arbiters created by the narrow phase.
// They are re-added in body order so that the solver order does not depend
// on which goroutine found them first.
func (w *World) applyAddedArbiters() {
	slices.SortFunc(w.addedArbiters, compareArbiters)
	for _, a := range w.addedArbiters {
		w.arbiters.Remove(a)
	}
	for _, a := range w.addedArbiters {
		w.arbiters.Add(a)
		w.islands.ArbiterCreated(a)
		w.Events.emit(CollisionBeginEvent{BodyA: a.Body1(), BodyB: a.Body2()})
	}
	clear(w.addedArbiters)
	w.addedArbiters = w.addedArbiters[:0]
}

func (w *World) releaseArbiter(a *constraint.Arbiter) {
	a.Release()
	a.Reset(nil, nil, nil)
	w.arbiterPool.GiveBack(a)
}

// checkDeactivation puts an island to sleep once every body in it has rested
// for DeactivationTime. Any restless body keeps the whole island awake.
func (w *World) checkDeactivation() {
	for _, isl := range w.islands.Islands() {
		deactivate := w.config.AllowDeactivation
		for _, body := range isl.Bodies() {
			body.UpdateInactiveTime(w.timestep, w.config.InactiveLinearThreshold, w.config.InactiveAngularThreshold)
			if body.InactiveTime() < w.config.DeactivationTime {
				deactivate = false
			}
		}

		for _, body := range isl.Bodies() {
			if body.IsActive() != deactivate {
				continue
			}
			body.SetActive(!deactivate)
			if deactivate {
				w.Events.emit(BodyDeactivatedEvent{Body: body})
			} else {
				w.Events.emit(BodyActivatedEvent{Body: body})
			}
		}
	}
}

func (w *World) solveIslands(multithreaded bool) {
	w.activeIslands = w.activeIslands[:0]
	for _, isl := range w.islands.Islands() {
		if isl.IsActive() {
			w.activeIslands = append(w.activeIslands, isl)
		}
	}

	if multithreaded {
		worker.ForEach(w.threads, w.activeIslands, w.solveIsland)
		return
	}
	for _, isl := range w.activeIslands {
		w.solveIsland(isl)
	}
}

// solveIsland runs the sequential impulse solver on one island: a prepare
// pass, then the iterations, contacts before constraints.
func (w *World) solveIsland(isl *island.CollisionIsland) {
	iterations := w.config.SmallIterations
	if len(isl.Bodies())+len(isl.Constraints()) > SMALL_ISLAND_SIZE {
		iterations = w.config.ContactIterations
	}

	for i := -1; i < iterations; i++ {
		for _, a := range isl.Arbiters() {
			for _, c := range a.Contacts() {
				if i == -1 {
					c.PrepareForIteration(w.timestep)
				} else {
					c.Iterate()
				}
			}
		}

		for _, c := range isl.Constraints() {
			if asleep(c.Body1()) && asleep(c.Body2()) {
				continue
			}
			if i == -1 {
				c.PrepareForIteration(w.timestep)
			} else {
				c.Iterate()
			}
		}
	}
}

func asleep(body *actor.RigidBody) bool {
	return body == nil || !body.IsActive()
}

func (w *World) integrate(multithreaded bool) {
	integrate := func(body *actor.RigidBody) {
		body.IntegratePositions(w.timestep, w.linearDampFactor, w.angularDampFactor)
	}

	if multithreaded {
		worker.ForEach(w.threads, w.bodies, integrate)
		return
	}
	for _, body := range w.bodies {
		integrate(body)
	}
}

// DebugDraw draws every body, soft body, constraint and contact.
func (w *World) DebugDraw(drawer actor.DebugDrawer) {
	for _, body := range w.bodies {
		if !w.bodySet[body] {
			body.DebugDraw(drawer)
		}
	}
	for _, sb := range w.softBodies {
		sb.DebugDraw(drawer)
	}
	for _, c := range w.constraints {
		c.DebugDraw(drawer)
	}
	for _, a := range w.arbiters.Arbiters() {
		a.DebugDraw(drawer)
	}
}

package actor

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic
)

// IslandID is a handle on a collision island owned by the island manager.
type IslandID int

// NoIsland marks a body that belongs to no island.
const NoIsland IslandID = -1

// Edge is anything connecting bodies in the island graph: arbiters and
// constraints. Body2 is nil for constraints acting on a single body.
type Edge interface {
	Body1() *RigidBody
	Body2() *RigidBody
}

var bodyIDs atomic.Uint64

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	id uint64

	// Spatial properties
	position       mgl64.Vec3
	orientation    mgl64.Mat3
	invOrientation mgl64.Mat3

	linearVelocity  mgl64.Vec3 // m/s
	angularVelocity mgl64.Vec3 // rad/s

	force  mgl64.Vec3
	torque mgl64.Vec3

	inverseMass     float64
	inertia         mgl64.Mat3
	invInertia      mgl64.Mat3
	invInertiaWorld mgl64.Mat3

	// Physical properties
	Material Material
	bodyType BodyType

	isActive     bool
	isParticle   bool
	inactiveTime float64

	AffectedByGravity         bool
	AllowDeactivation         bool
	EnableSpeculativeContacts bool
	EnableDebugDraw           bool

	boundingBox    geometry.AABB
	sweptDirection mgl64.Vec3

	// Collision shape, possibly shared with other bodies
	shape                  Shape
	shapeVersion           uint64
	useShapeMassProperties bool

	// Back-references maintained by the island manager
	Arbiters    []Edge
	Constraints []Edge
	Island      IslandID

	// Hooks run at the first and last phase of every step
	PreStep  func(body *RigidBody, dt float64)
	PostStep func(body *RigidBody, dt float64)

	Tag any
}

// NewRigidBody creates a new rigid body with the given properties
// The material density scales the mass and inertia derived from the shape.
func NewRigidBody(shape Shape, bodyType BodyType, material Material) *RigidBody {
	if material.Density <= 0 {
		material.Density = 1
	}

	rb := &RigidBody{
		id:                     bodyIDs.Add(1),
		orientation:            mgl64.Ident3(),
		invOrientation:         mgl64.Ident3(),
		Material:               material,
		bodyType:               bodyType,
		isActive:               true,
		AffectedByGravity:      true,
		AllowDeactivation:      true,
		shape:                  shape,
		useShapeMassProperties: true,
		Island:                 NoIsland,
	}

	rb.SetMassPropertiesFromShape()
	rb.Update()
	return rb
}

// NewParticle creates a body without rotational state, as used for the mass
// points of soft bodies.
func NewParticle(shape Shape, material Material) *RigidBody {
	rb := NewRigidBody(shape, BodyTypeDynamic, material)
	rb.isParticle = true
	rb.Update()
	return rb
}

func (rb *RigidBody) ID() uint64 {
	return rb.id
}

func (rb *RigidBody) String() string {
	return fmt.Sprintf("body#%d", rb.id)
}

func (rb *RigidBody) Shape() Shape {
	return rb.shape
}

// SetShape swaps the collision shape. Mass properties follow the new shape
// unless they were overridden.
func (rb *RigidBody) SetShape(shape Shape) {
	rb.shape = shape
	rb.shapeVersion = shape.Version() - 1
	rb.Update()
}

func (rb *RigidBody) Position() mgl64.Vec3 {
	return rb.position
}

func (rb *RigidBody) SetPosition(position mgl64.Vec3) {
	rb.position = position
	rb.Update()
}

func (rb *RigidBody) Orientation() mgl64.Mat3 {
	return rb.orientation
}

func (rb *RigidBody) InverseOrientation() mgl64.Mat3 {
	return rb.invOrientation
}

func (rb *RigidBody) SetOrientation(orientation mgl64.Mat3) {
	rb.orientation = orientation
	rb.Update()
}

// Transform returns the pose of the body.
func (rb *RigidBody) Transform() Transform {
	return Transform{Position: rb.position, Orientation: rb.orientation}
}

func (rb *RigidBody) LinearVelocity() mgl64.Vec3 {
	return rb.linearVelocity
}

func (rb *RigidBody) SetLinearVelocity(velocity mgl64.Vec3) error {
	if rb.IsStatic() {
		return ErrStaticBody
	}
	rb.linearVelocity = velocity
	return nil
}

func (rb *RigidBody) AngularVelocity() mgl64.Vec3 {
	return rb.angularVelocity
}

func (rb *RigidBody) SetAngularVelocity(velocity mgl64.Vec3) error {
	if rb.IsStatic() {
		return ErrStaticBody
	}
	rb.angularVelocity = velocity
	return nil
}

func (rb *RigidBody) BodyType() BodyType {
	return rb.bodyType
}

func (rb *RigidBody) IsStatic() bool {
	return rb.bodyType == BodyTypeStatic
}

// SetBodyType switches between static and dynamic. Live bodies must go through
// the world so that islands follow.
func (rb *RigidBody) SetBodyType(bodyType BodyType) {
	if bodyType == BodyTypeStatic {
		rb.linearVelocity = mgl64.Vec3{}
		rb.angularVelocity = mgl64.Vec3{}
	}
	rb.bodyType = bodyType
	rb.Update()
}

func (rb *RigidBody) IsParticle() bool {
	return rb.isParticle
}

func (rb *RigidBody) IsActive() bool {
	return rb.isActive
}

// SetActive wakes the body up or puts it to sleep. Sleeping zeroes the
// velocities.
func (rb *RigidBody) SetActive(active bool) {
	switch {
	case !rb.isActive && active:
		rb.inactiveTime = 0
	case rb.isActive && !active:
		rb.inactiveTime = math.Inf(1)
		rb.linearVelocity = mgl64.Vec3{}
		rb.angularVelocity = mgl64.Vec3{}
	}
	rb.isActive = active
}

func (rb *RigidBody) InactiveTime() float64 {
	return rb.inactiveTime
}

// UpdateInactiveTime accumulates sleeping time while the body is slower than
// both squared-speed thresholds and resets it otherwise.
func (rb *RigidBody) UpdateInactiveTime(dt, linearThreshold, angularThreshold float64) {
	if rb.AllowDeactivation &&
		rb.linearVelocity.LenSqr() < linearThreshold &&
		rb.angularVelocity.LenSqr() < angularThreshold {
		rb.inactiveTime += dt
	} else {
		rb.inactiveTime = 0
	}
}

func (rb *RigidBody) BoundingBox() geometry.AABB {
	return rb.boundingBox
}

func (rb *RigidBody) SweptDirection() mgl64.Vec3 {
	return rb.sweptDirection
}

func (rb *RigidBody) Mass() float64 {
	if rb.inverseMass == 0 {
		return math.Inf(1)
	}
	return 1.0 / rb.inverseMass
}

// InverseMass is zero for static bodies.
func (rb *RigidBody) InverseMass() float64 {
	if rb.IsStatic() {
		return 0
	}
	return rb.inverseMass
}

func (rb *RigidBody) Inertia() mgl64.Mat3 {
	return rb.inertia
}

func (rb *RigidBody) InverseInertia() mgl64.Mat3 {
	return rb.invInertia
}

// InverseInertiaWorld is zero for static bodies and particles.
func (rb *RigidBody) InverseInertiaWorld() mgl64.Mat3 {
	return rb.invInertiaWorld
}

// SetMassProperties overrides the shape-derived mass and inertia. With
// setAsInverse, inertia and mass are taken as their inverses.
func (rb *RigidBody) SetMassProperties(inertia mgl64.Mat3, mass float64, setAsInverse bool) error {
	if mass <= 0 {
		return fmt.Errorf("set mass %v on %v: %w", mass, rb, ErrNonPositiveMass)
	}

	if setAsInverse {
		rb.invInertia = inertia
		rb.inertia = inertia.Inv()
		rb.inverseMass = mass
	} else {
		rb.inertia = inertia
		rb.invInertia = inertia.Inv()
		rb.inverseMass = 1.0 / mass
	}

	rb.useShapeMassProperties = false
	rb.Update()
	return nil
}

// SetMassPropertiesFromShape restores the shape-derived mass and inertia.
func (rb *RigidBody) SetMassPropertiesFromShape() {
	density := rb.Material.Density
	if density <= 0 {
		density = 1
	}

	rb.inertia = rb.shape.Inertia().Mul(density)
	rb.invInertia = rb.inertia.Inv()
	if mass := rb.shape.Mass() * density; mass > 0 {
		rb.inverseMass = 1.0 / mass
	} else {
		rb.inverseMass = 0
	}
	rb.shapeVersion = rb.shape.Version()
	rb.useShapeMassProperties = true
}

// AddForce accumulates a force applied at the center of mass.
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}
	rb.force = rb.force.Add(force)
}

// AddForceAt accumulates a force applied at a world position.
func (rb *RigidBody) AddForceAt(force, position mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}
	rb.force = rb.force.Add(force)
	rb.torque = rb.torque.Add(position.Sub(rb.position).Cross(force))
}

func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}
	rb.torque = rb.torque.Add(torque)
}

func (rb *RigidBody) Force() mgl64.Vec3 {
	return rb.force
}

func (rb *RigidBody) Torque() mgl64.Vec3 {
	return rb.torque
}

func (rb *RigidBody) ClearForces() {
	rb.force = mgl64.Vec3{0, 0, 0}
	rb.torque = mgl64.Vec3{0, 0, 0}
}

// ApplyImpulse changes the linear velocity by impulse/mass.
func (rb *RigidBody) ApplyImpulse(impulse mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}
	rb.linearVelocity = rb.linearVelocity.Add(impulse.Mul(rb.inverseMass))
}

// ApplyImpulseAt applies an impulse at an offset from the center of mass.
func (rb *RigidBody) ApplyImpulseAt(impulse, relativePosition mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}
	rb.linearVelocity = rb.linearVelocity.Add(impulse.Mul(rb.inverseMass))
	rb.angularVelocity = rb.angularVelocity.Add(rb.invInertiaWorld.Mul3x1(relativePosition.Cross(impulse)))
}

// ApplyVelocityChange adds to both velocities without any mass scaling. The
// constraint solver uses it once it has computed the change itself.
func (rb *RigidBody) ApplyVelocityChange(linear, angular mgl64.Vec3) {
	rb.linearVelocity = rb.linearVelocity.Add(linear)
	if !rb.isParticle {
		rb.angularVelocity = rb.angularVelocity.Add(angular)
	}
}

// PointVelocity returns the world velocity of a point at relativePosition.
func (rb *RigidBody) PointVelocity(relativePosition mgl64.Vec3) mgl64.Vec3 {
	return rb.linearVelocity.Add(rb.angularVelocity.Cross(relativePosition))
}

// Update refreshes everything derived from the pose and the shape: inverse
// orientation, world bounding box and world inverse inertia.
func (rb *RigidBody) Update() {
	if rb.useShapeMassProperties && rb.shape.Version() != rb.shapeVersion {
		rb.SetMassPropertiesFromShape()
	}

	rb.invOrientation = rb.orientation.Transpose()

	box := rb.shape.BoundingBox(rb.orientation)
	box = geometry.AABB{Min: box.Min.Add(rb.position), Max: box.Max.Add(rb.position)}
	if rb.EnableSpeculativeContacts {
		box = box.Sweep(rb.sweptDirection)
	}
	rb.boundingBox = box

	if rb.IsStatic() || rb.isParticle {
		rb.invInertiaWorld = mgl64.Mat3{}
		return
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	rb.invInertiaWorld = rb.orientation.Mul3(rb.invInertia).Mul3(rb.invOrientation)
}

// IntegrateForces turns the accumulated force, torque and gravity into
// velocity, then clears the accumulators.
func (rb *RigidBody) IntegrateForces(dt float64, gravity mgl64.Vec3) {
	if rb.IsStatic() || !rb.isActive {
		rb.ClearForces()
		return
	}

	// ========== LINEAR ==========
	dv := rb.force.Mul(rb.inverseMass)
	if rb.AffectedByGravity {
		dv = dv.Add(gravity)
	}
	rb.linearVelocity = rb.linearVelocity.Add(dv.Mul(dt))

	// ========== ANGULAR ==========
	if !rb.isParticle {
		rb.angularVelocity = rb.angularVelocity.Add(rb.invInertiaWorld.Mul3x1(rb.torque).Mul(dt))
	}

	rb.ClearForces()
}

// IntegratePositions advances the pose with semi-implicit Euler. The
// orientation follows the exponential map of the angular velocity. The
// damping factors are the fraction of velocity kept over this step.
func (rb *RigidBody) IntegratePositions(dt, linearDamping, angularDamping float64) {
	if rb.IsStatic() || !rb.isActive {
		return
	}

	rb.position = rb.position.Add(rb.linearVelocity.Mul(dt))

	// Without spin the orientation is left as is, free of round-off
	if !rb.isParticle && rb.angularVelocity != (mgl64.Vec3{}) {
		angle := rb.angularVelocity.Len()

		var axis mgl64.Vec3
		if angle < 0.001 {
			// Taylor expansion of sin(angle*dt/2)/angle
			axis = rb.angularVelocity.Mul(0.5*dt - dt*dt*dt*0.020833333333*angle*angle)
		} else {
			axis = rb.angularVelocity.Mul(math.Sin(0.5*angle*dt) / angle)
		}

		dorn := mgl64.Quat{W: math.Cos(angle * dt * 0.5), V: axis}
		orn := geometry.QuaternionFromMatrix(rb.orientation)
		orn = dorn.Mul(orn).Normalize()
		rb.orientation = geometry.MatrixFromQuaternion(orn)
	}

	// ========== DAMPING ==========
	rb.linearVelocity = rb.linearVelocity.Mul(linearDamping * math.Exp(-rb.Material.LinearDamping*dt))
	rb.angularVelocity = rb.angularVelocity.Mul(angularDamping * math.Exp(-rb.Material.AngularDamping*dt))

	if rb.EnableSpeculativeContacts {
		rb.sweptDirection = rb.linearVelocity.Mul(dt)
	}

	rb.Update()
}

// DebugDraw draws the tessellated hull of a convex shape in world space.
func (rb *RigidBody) DebugDraw(drawer DebugDrawer) {
	if _, ok := rb.shape.(Multishape); ok {
		box := rb.boundingBox
		drawer.DrawLine(box.Min, box.Max)
		return
	}

	hull := MakeHull(rb.shape, 3)
	t := rb.Transform()
	for i := 0; i+2 < len(hull); i += 3 {
		drawer.DrawTriangle(t.Apply(hull[i]), t.Apply(hull[i+1]), t.Apply(hull[i+2]))
	}
}

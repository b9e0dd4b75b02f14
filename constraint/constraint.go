package constraint

import (
	"math"

	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Constraint is solved with sequential impulses: PrepareForIteration once per
// step, then Iterate as many times as the island asks for.
type Constraint interface {
	actor.Edge

	PrepareForIteration(dt float64)
	Iterate()
	DebugDraw(drawer actor.DebugDrawer)
}

// Host is where joints register their constraints, usually the world.
type Host interface {
	AddConstraint(c Constraint) error
	RemoveConstraint(c Constraint) error
}

// MixingType selects how the materials of two bodies combine on contact.
type MixingType int

const (
	// MixDefault takes the larger restitution and averages the frictions
	MixDefault MixingType = iota
	MixTakeMaximum
	MixTakeMinimum
	MixAverage
	// MixGeometricMean as in Box2D
	MixGeometricMean
)

func mix(mode MixingType, a, b float64) float64 {
	switch mode {
	case MixTakeMaximum:
		return math.Max(a, b)
	case MixTakeMinimum:
		return math.Min(a, b)
	case MixGeometricMean:
		return math.Sqrt(a * b)
	default:
		return (a + b) / 2.0
	}
}

func ComputeRestitution(mode MixingType, matA, matB actor.Material) float64 {
	if mode == MixDefault {
		// If one bounces, it bounces
		return math.Max(matA.Restitution, matB.Restitution)
	}
	return mix(mode, matA.Restitution, matB.Restitution)
}

func ComputeStaticFriction(mode MixingType, matA, matB actor.Material) float64 {
	return mix(mode, matA.StaticFriction, matB.StaticFriction)
}

func ComputeDynamicFriction(mode MixingType, matA, matB actor.Material) float64 {
	return mix(mode, matA.KineticFriction, matB.KineticFriction)
}

// base holds the bodies and the softness parameters shared by every
// primitive constraint.
type base struct {
	body1 *actor.RigidBody
	body2 *actor.RigidBody

	// Softness lets the constraint give way a little, 0 is rigid
	Softness float64
	// BiasFactor is the fraction of the position error corrected per step
	BiasFactor float64
}

func (b *base) Body1() *actor.RigidBody {
	return b.body1
}

func (b *base) Body2() *actor.RigidBody {
	return b.body2
}

// jacobian of a one-dimensional constraint: linear and angular rows for
// each body.
type jacobian [4]mgl64.Vec3

func (j *jacobian) effectiveMass(b1, b2 *actor.RigidBody) float64 {
	k := 0.0
	if b1 != nil && !b1.IsStatic() {
		k += b1.InverseMass() + b1.InverseInertiaWorld().Mul3x1(j[1]).Dot(j[1])
	}
	if b2 != nil && !b2.IsStatic() {
		k += b2.InverseMass() + b2.InverseInertiaWorld().Mul3x1(j[3]).Dot(j[3])
	}
	return k
}

// velocity is J·v, the rate of change of the constraint.
func (j *jacobian) velocity(b1, b2 *actor.RigidBody) float64 {
	v := 0.0
	if b1 != nil {
		v += b1.LinearVelocity().Dot(j[0]) + b1.AngularVelocity().Dot(j[1])
	}
	if b2 != nil {
		v += b2.LinearVelocity().Dot(j[2]) + b2.AngularVelocity().Dot(j[3])
	}
	return v
}

func (j *jacobian) apply(b1, b2 *actor.RigidBody, lambda float64) {
	if b1 != nil && !b1.IsStatic() {
		b1.ApplyVelocityChange(j[0].Mul(lambda*b1.InverseMass()), b1.InverseInertiaWorld().Mul3x1(j[1].Mul(lambda)))
	}
	if b2 != nil && !b2.IsStatic() {
		b2.ApplyVelocityChange(j[2].Mul(lambda*b2.InverseMass()), b2.InverseInertiaWorld().Mul3x1(j[3].Mul(lambda)))
	}
}

// anchor returns the world offset and world position of a body-local point.
// A nil body stands for the world itself.
func anchor(body *actor.RigidBody, local mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	if body == nil {
		return mgl64.Vec3{}, local
	}
	r := body.Orientation().Mul3x1(local)
	return r, body.Position().Add(r)
}

// localAnchor converts a world point to the body frame.
func localAnchor(body *actor.RigidBody, world mgl64.Vec3) mgl64.Vec3 {
	if body == nil {
		return world
	}
	return body.InverseOrientation().Mul3x1(world.Sub(body.Position()))
}

func orientation(body *actor.RigidBody) mgl64.Mat3 {
	if body == nil {
		return mgl64.Ident3()
	}
	return body.Orientation()
}

func inverseInertiaWorld(body *actor.RigidBody) mgl64.Mat3 {
	if body == nil || body.IsStatic() {
		return mgl64.Mat3{}
	}
	return body.InverseInertiaWorld()
}

func inverse(k float64) float64 {
	if k == 0 {
		return 0
	}
	return 1.0 / k
}

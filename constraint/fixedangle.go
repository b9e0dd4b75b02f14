package constraint

import (
	"math"

	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// FixedAngle locks the relative orientation of two bodies. With body2 nil
// the orientation of body1 is locked in the world.
type FixedAngle struct {
	base

	initialOrientation1 mgl64.Mat3
	initialOrientation2 mgl64.Mat3

	effectiveMass      mgl64.Mat3
	accumulatedImpulse mgl64.Vec3
	bias               mgl64.Vec3
	softnessOverDt     float64
}

func NewFixedAngle(body1, body2 *actor.RigidBody) *FixedAngle {
	return &FixedAngle{
		base:                base{body1: body1, body2: body2, Softness: 0, BiasFactor: 0.05},
		initialOrientation1: orientation(body1),
		initialOrientation2: orientation(body2),
	}
}

// axisAngle returns the rotation vector (axis times angle) of a rotation
// matrix.
func axisAngle(q mgl64.Mat3) mgl64.Vec3 {
	axis := mgl64.Vec3{
		q.At(2, 1) - q.At(1, 2),
		q.At(0, 2) - q.At(2, 0),
		q.At(1, 0) - q.At(0, 1),
	}
	r := axis.Len()
	if r < 1e-12 {
		return mgl64.Vec3{}
	}
	trace := q.At(0, 0) + q.At(1, 1) + q.At(2, 2)
	angle := math.Atan2(r, trace-1)
	return axis.Mul(angle / r)
}

// Error is the rotation of body2 relative to body1 since the constraint was
// created, as axis times angle.
func (c *FixedAngle) Error() mgl64.Vec3 {
	delta1 := orientation(c.body1).Mul3(c.initialOrientation1.Transpose())
	delta2 := orientation(c.body2).Mul3(c.initialOrientation2.Transpose())
	return axisAngle(delta2.Mul3(delta1.Transpose()))
}

func (c *FixedAngle) PrepareForIteration(dt float64) {
	c.softnessOverDt = c.Softness / dt

	k := inverseInertiaWorld(c.body1).Add(inverseInertiaWorld(c.body2)).Add(mgl64.Diag3(mgl64.Vec3{c.softnessOverDt, c.softnessOverDt, c.softnessOverDt}))
	if k.Det() == 0 {
		c.effectiveMass = mgl64.Mat3{}
	} else {
		c.effectiveMass = k.Inv()
	}

	c.bias = c.Error().Mul(c.BiasFactor / dt)

	c.apply(c.accumulatedImpulse)
}

func (c *FixedAngle) angularVelocity(body *actor.RigidBody) mgl64.Vec3 {
	if body == nil {
		return mgl64.Vec3{}
	}
	return body.AngularVelocity()
}

func (c *FixedAngle) apply(impulse mgl64.Vec3) {
	if c.body1 != nil && !c.body1.IsStatic() {
		c.body1.ApplyVelocityChange(mgl64.Vec3{}, c.body1.InverseInertiaWorld().Mul3x1(impulse).Mul(-1))
	}
	if c.body2 != nil && !c.body2.IsStatic() {
		c.body2.ApplyVelocityChange(mgl64.Vec3{}, c.body2.InverseInertiaWorld().Mul3x1(impulse))
	}
}

func (c *FixedAngle) Iterate() {
	jv := c.angularVelocity(c.body2).Sub(c.angularVelocity(c.body1))
	softness := c.accumulatedImpulse.Mul(c.softnessOverDt)

	lambda := c.effectiveMass.Mul3x1(jv.Add(c.bias).Add(softness)).Mul(-1)
	c.accumulatedImpulse = c.accumulatedImpulse.Add(lambda)

	c.apply(lambda)
}

func (c *FixedAngle) DebugDraw(drawer actor.DebugDrawer) {}

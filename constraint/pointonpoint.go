package constraint

import (
	"math"

	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// PointOnPoint glues a point of body1 to a point of body2, a ball and
// socket joint.
type PointOnPoint struct {
	base

	localAnchor1 mgl64.Vec3
	localAnchor2 mgl64.Vec3
	r1, r2       mgl64.Vec3
	p1, p2       mgl64.Vec3

	jacobian           jacobian
	effectiveMass      float64
	accumulatedImpulse float64
	bias               float64
	softnessOverDt     float64
}

// NewPointOnPoint anchors both bodies at the same world point.
func NewPointOnPoint(body1, body2 *actor.RigidBody, anchor mgl64.Vec3) *PointOnPoint {
	return &PointOnPoint{
		base:         base{body1: body1, body2: body2, Softness: 0.01, BiasFactor: 0.05},
		localAnchor1: localAnchor(body1, anchor),
		localAnchor2: localAnchor(body2, anchor),
	}
}

// Anchors returns both anchor points in world space.
func (c *PointOnPoint) Anchors() (mgl64.Vec3, mgl64.Vec3) {
	_, p1 := anchor(c.body1, c.localAnchor1)
	_, p2 := anchor(c.body2, c.localAnchor2)
	return p1, p2
}

func (c *PointOnPoint) PrepareForIteration(dt float64) {
	c.r1, c.p1 = anchor(c.body1, c.localAnchor1)
	c.r2, c.p2 = anchor(c.body2, c.localAnchor2)

	dp := c.p2.Sub(c.p1)
	deltaLength := dp.Len()
	n := geometry.SafeNormalize(dp, mgl64.Vec3{})

	c.jacobian = jacobian{n.Mul(-1), c.r1.Cross(n).Mul(-1), n, c.r2.Cross(n)}

	c.softnessOverDt = c.Softness / dt
	c.effectiveMass = inverse(c.jacobian.effectiveMass(c.body1, c.body2) + c.softnessOverDt)

	c.bias = deltaLength * c.BiasFactor / dt

	c.jacobian.apply(c.body1, c.body2, c.accumulatedImpulse)
}

func (c *PointOnPoint) Iterate() {
	jv := c.jacobian.velocity(c.body1, c.body2)
	softnessScalar := c.accumulatedImpulse * c.softnessOverDt

	lambda := -c.effectiveMass * (jv + c.bias + softnessScalar)
	c.accumulatedImpulse += lambda

	c.jacobian.apply(c.body1, c.body2, lambda)
}

func (c *PointOnPoint) DebugDraw(drawer actor.DebugDrawer) {
	p1, p2 := c.Anchors()
	drawer.DrawLine(p1, p2)
	drawer.DrawPoint(p1)
	drawer.DrawPoint(p2)
}

// DistanceBehavior selects which side of the distance PointPointDistance
// enforces.
type DistanceBehavior int

const (
	LimitDistance DistanceBehavior = iota
	LimitMaximumDistance
	LimitMinimumDistance
)

// PointPointDistance keeps two body points at a distance, like a rod, or
// within a bound, like a rope.
type PointPointDistance struct {
	base

	Distance float64
	Behavior DistanceBehavior

	localAnchor1 mgl64.Vec3
	localAnchor2 mgl64.Vec3
	r1, r2       mgl64.Vec3

	jacobian           jacobian
	effectiveMass      float64
	accumulatedImpulse float64
	bias               float64
	softnessOverDt     float64
	skip               bool
}

// NewPointPointDistance connects anchor1 on body1 to anchor2 on body2 and
// keeps their current separation.
func NewPointPointDistance(body1, body2 *actor.RigidBody, anchor1, anchor2 mgl64.Vec3) *PointPointDistance {
	return &PointPointDistance{
		base:         base{body1: body1, body2: body2, Softness: 0.01, BiasFactor: 0.1},
		Distance:     anchor2.Sub(anchor1).Len(),
		localAnchor1: localAnchor(body1, anchor1),
		localAnchor2: localAnchor(body2, anchor2),
	}
}

func (c *PointPointDistance) Anchors() (mgl64.Vec3, mgl64.Vec3) {
	_, p1 := anchor(c.body1, c.localAnchor1)
	_, p2 := anchor(c.body2, c.localAnchor2)
	return p1, p2
}

func (c *PointPointDistance) PrepareForIteration(dt float64) {
	var p1, p2 mgl64.Vec3
	c.r1, p1 = anchor(c.body1, c.localAnchor1)
	c.r2, p2 = anchor(c.body2, c.localAnchor2)

	dp := p2.Sub(p1)
	deltaLength := dp.Len() - c.Distance

	switch {
	case c.Behavior == LimitMaximumDistance && deltaLength <= 0:
		c.skip = true
	case c.Behavior == LimitMinimumDistance && deltaLength >= 0:
		c.skip = true
	default:
		c.skip = false
	}
	if c.skip {
		c.accumulatedImpulse = 0
		return
	}

	n := geometry.SafeNormalize(dp, mgl64.Vec3{})
	c.jacobian = jacobian{n.Mul(-1), c.r1.Cross(n).Mul(-1), n, c.r2.Cross(n)}

	c.softnessOverDt = c.Softness / dt
	c.effectiveMass = inverse(c.jacobian.effectiveMass(c.body1, c.body2) + c.softnessOverDt)

	c.bias = deltaLength * c.BiasFactor / dt

	c.jacobian.apply(c.body1, c.body2, c.accumulatedImpulse)
}

func (c *PointPointDistance) Iterate() {
	if c.skip {
		return
	}

	jv := c.jacobian.velocity(c.body1, c.body2)
	softnessScalar := c.accumulatedImpulse * c.softnessOverDt

	lambda := -c.effectiveMass * (jv + c.bias + softnessScalar)

	previous := c.accumulatedImpulse
	switch c.Behavior {
	case LimitMinimumDistance:
		c.accumulatedImpulse = math.Max(previous+lambda, 0)
	case LimitMaximumDistance:
		c.accumulatedImpulse = math.Min(previous+lambda, 0)
	default:
		c.accumulatedImpulse = previous + lambda
	}
	lambda = c.accumulatedImpulse - previous

	c.jacobian.apply(c.body1, c.body2, lambda)
}

func (c *PointPointDistance) DebugDraw(drawer actor.DebugDrawer) {
	p1, p2 := c.Anchors()
	drawer.DrawLine(p1, p2)
}

package constraint

import (
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// PointOnLine keeps a point of body2 on a line attached to body1.
type PointOnLine struct {
	base

	localAnchor1 mgl64.Vec3
	localAnchor2 mgl64.Vec3
	// Line direction in the frame of body1
	lineNormal mgl64.Vec3

	jacobian           jacobian
	effectiveMass      float64
	accumulatedImpulse float64
	bias               float64
	softnessOverDt     float64
}

// NewPointOnLine builds the line from lineStart, a point of body1, through
// point, a point of body2.
func NewPointOnLine(body1, body2 *actor.RigidBody, lineStart, point mgl64.Vec3) *PointOnLine {
	axis := geometry.SafeNormalize(point.Sub(lineStart), mgl64.Vec3{1, 0, 0})
	return newPointOnLine(body1, body2, lineStart, point, axis)
}

func newPointOnLine(body1, body2 *actor.RigidBody, lineStart, point, axis mgl64.Vec3) *PointOnLine {
	c := &PointOnLine{
		base:         base{body1: body1, body2: body2, Softness: 0, BiasFactor: 0.5},
		localAnchor1: localAnchor(body1, lineStart),
		localAnchor2: localAnchor(body2, point),
	}
	c.lineNormal = orientation(body1).Transpose().Mul3x1(axis.Normalize())
	return c
}

// Line returns the anchor of the line and its direction in world space.
func (c *PointOnLine) Line() (mgl64.Vec3, mgl64.Vec3) {
	_, p1 := anchor(c.body1, c.localAnchor1)
	return p1, orientation(c.body1).Mul3x1(c.lineNormal)
}

func (c *PointOnLine) PrepareForIteration(dt float64) {
	r1, p1 := anchor(c.body1, c.localAnchor1)
	r2, p2 := anchor(c.body2, c.localAnchor2)

	l := orientation(c.body1).Mul3x1(c.lineNormal)
	d := p2.Sub(p1)

	// Offset of the point from the line
	e := d.Sub(l.Mul(d.Dot(l)))
	t := geometry.SafeNormalize(e, mgl64.Vec3{})

	c.jacobian = jacobian{t.Mul(-1), r1.Add(d).Cross(t).Mul(-1), t, r2.Cross(t)}

	c.softnessOverDt = c.Softness / dt
	c.effectiveMass = inverse(c.jacobian.effectiveMass(c.body1, c.body2) + c.softnessOverDt)

	c.bias = e.Len() * c.BiasFactor / dt

	c.jacobian.apply(c.body1, c.body2, c.accumulatedImpulse)
}

func (c *PointOnLine) Iterate() {
	jv := c.jacobian.velocity(c.body1, c.body2)
	softnessScalar := c.accumulatedImpulse * c.softnessOverDt

	lambda := -c.effectiveMass * (jv + c.bias + softnessScalar)
	c.accumulatedImpulse += lambda

	c.jacobian.apply(c.body1, c.body2, lambda)
}

func (c *PointOnLine) DebugDraw(drawer actor.DebugDrawer) {
	start, axis := c.Line()
	_, p2 := anchor(c.body2, c.localAnchor2)
	drawer.DrawLine(start.Sub(axis.Mul(100)), start.Add(axis.Mul(100)))
	drawer.DrawPoint(p2)
}

// Body1 and Body2 report the world line as the missing second body.
func (c *PointOnLine) Body1() *actor.RigidBody {
	if c.body1 == nil {
		return c.body2
	}
	return c.body1
}

func (c *PointOnLine) Body2() *actor.RigidBody {
	if c.body1 == nil {
		return nil
	}
	return c.body2
}

package constraint

import (
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Constraints between a body and the world. Body2 of each is nil.

// NewFixedPoint pins the point of body at anchor to that place in the world.
func NewFixedPoint(body *actor.RigidBody, anchor mgl64.Vec3) *PointOnPoint {
	c := NewPointOnPoint(body, nil, anchor)
	c.BiasFactor = 0.1
	return c
}

// NewFixedOrientation keeps body at its current orientation.
func NewFixedOrientation(body *actor.RigidBody) *FixedAngle {
	return NewFixedAngle(body, nil)
}

// NewPointOnWorldLine keeps the point of body at anchor on the world line
// through anchor along axis.
func NewPointOnWorldLine(body *actor.RigidBody, anchor, axis mgl64.Vec3) *PointOnLine {
	return newPointOnLine(nil, body, anchor, anchor, axis)
}

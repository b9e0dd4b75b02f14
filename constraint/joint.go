package constraint

import (
	"errors"
	"math"

	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// Joint groups the constraints building a mechanical connection so that
// they are added to and removed from a host together.
type Joint struct {
	host        Host
	body1       *actor.RigidBody
	body2       *actor.RigidBody
	constraints []Constraint
	active      bool
}

func (j *Joint) Body1() *actor.RigidBody {
	return j.body1
}

func (j *Joint) Body2() *actor.RigidBody {
	return j.body2
}

func (j *Joint) Constraints() []Constraint {
	return j.constraints
}

func (j *Joint) IsActive() bool {
	return j.active
}

// Activate adds every constraint of the joint to its host.
func (j *Joint) Activate() error {
	if j.active {
		return nil
	}
	for i, c := range j.constraints {
		if err := j.host.AddConstraint(c); err != nil {
			for _, added := range j.constraints[:i] {
				_ = j.host.RemoveConstraint(added)
			}
			return err
		}
	}
	j.active = true
	return nil
}

// Deactivate removes the constraints of the joint from its host.
func (j *Joint) Deactivate() error {
	if !j.active {
		return nil
	}
	var errs []error
	for _, c := range j.constraints {
		errs = append(errs, j.host.RemoveConstraint(c))
	}
	j.active = false
	return errors.Join(errs...)
}

// HingeJoint lets two bodies rotate about a shared axis.
type HingeJoint struct {
	Joint
	points [2]*PointOnPoint
}

// NewHingeJoint places two point constraints half a unit on either side of
// position along hingeAxis.
func NewHingeJoint(host Host, body1, body2 *actor.RigidBody, position, hingeAxis mgl64.Vec3) *HingeJoint {
	half := hingeAxis.Normalize().Mul(0.5)

	h := &HingeJoint{}
	h.points[0] = NewPointOnPoint(body1, body2, position.Add(half))
	h.points[1] = NewPointOnPoint(body1, body2, position.Sub(half))
	h.Joint = Joint{host: host, body1: body1, body2: body2, constraints: []Constraint{h.points[0], h.points[1]}}
	return h
}

func (h *HingeJoint) PointConstraints() [2]*PointOnPoint {
	return h.points
}

// LimitedHingeJoint is a hinge whose swing is bounded by a distance
// constraint between two far points on the plane of rotation.
type LimitedHingeJoint struct {
	HingeJoint
	limit *PointPointDistance
}

// NewLimitedHingeJoint bounds the rotation to forwardAngle and backwardAngle
// degrees from the current pose.
func NewLimitedHingeJoint(host Host, body1, body2 *actor.RigidBody, position, hingeAxis mgl64.Vec3, forwardAngle, backwardAngle float64) *LimitedHingeJoint {
	h := &LimitedHingeJoint{HingeJoint: *NewHingeJoint(host, body1, body2, position, hingeAxis)}

	axis := hingeAxis.Normalize()
	perp := geometry.Perpendicular(axis)

	const length = 30.0
	relAnchor0 := perp.Mul(length)

	toMiddle := mgl64.DegToRad(0.5 * (forwardAngle - backwardAngle))
	relAnchor1 := mgl64.QuatRotate(-toMiddle, axis).Rotate(relAnchor0)

	halfAngle := mgl64.DegToRad(0.5 * (forwardAngle + backwardAngle))
	allowed := length * 2 * math.Sin(halfAngle*0.5)

	hinge := body1.Position()
	h.limit = NewPointPointDistance(body1, body2, hinge.Add(relAnchor0), hinge.Add(relAnchor1))
	h.limit.Distance = allowed
	h.limit.Behavior = LimitMaximumDistance

	h.constraints = append(h.constraints, h.limit)
	return h
}

func (h *LimitedHingeJoint) DistanceConstraint() *PointPointDistance {
	return h.limit
}

// PrismaticJoint lets body2 slide along the line joining the bodies, with
// no relative rotation.
type PrismaticJoint struct {
	Joint
	angle *FixedAngle
	line  *PointOnLine

	minDistance *PointPointDistance
	maxDistance *PointPointDistance
}

func NewPrismaticJoint(host Host, body1, body2 *actor.RigidBody) *PrismaticJoint {
	p := &PrismaticJoint{
		angle: NewFixedAngle(body1, body2),
		line:  NewPointOnLine(body1, body2, body1.Position(), body2.Position()),
	}
	p.Joint = Joint{host: host, body1: body1, body2: body2, constraints: []Constraint{p.angle, p.line}}
	return p
}

// NewLimitedPrismaticJoint also keeps the distance between the two body
// centers within [minDistance, maxDistance]. A negative bound is ignored.
func NewLimitedPrismaticJoint(host Host, body1, body2 *actor.RigidBody, minDistance, maxDistance float64) *PrismaticJoint {
	p := NewPrismaticJoint(host, body1, body2)

	if minDistance >= 0 {
		p.minDistance = NewPointPointDistance(body1, body2, body1.Position(), body2.Position())
		p.minDistance.Behavior = LimitMinimumDistance
		p.minDistance.Distance = minDistance
		p.constraints = append(p.constraints, p.minDistance)
	}
	if maxDistance >= 0 {
		p.maxDistance = NewPointPointDistance(body1, body2, body1.Position(), body2.Position())
		p.maxDistance.Behavior = LimitMaximumDistance
		p.maxDistance.Distance = maxDistance
		p.constraints = append(p.constraints, p.maxDistance)
	}
	return p
}

func (p *PrismaticJoint) FixedAngleConstraint() *FixedAngle {
	return p.angle
}

func (p *PrismaticJoint) PointOnLineConstraint() *PointOnLine {
	return p.line
}

func (p *PrismaticJoint) MinimumDistanceConstraint() *PointPointDistance {
	return p.minDistance
}

func (p *PrismaticJoint) MaximumDistanceConstraint() *PointPointDistance {
	return p.maxDistance
}

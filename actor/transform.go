package actor

import (
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// Transform represents a position and an orientation in 3D space
type Transform struct {
	Position    mgl64.Vec3
	Orientation mgl64.Mat3
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:    mgl64.Vec3{0, 0, 0},
		Orientation: mgl64.Ident3(),
	}
}

// Apply maps a local point to the parent space.
func (t Transform) Apply(point mgl64.Vec3) mgl64.Vec3 {
	return t.Orientation.Mul3x1(point).Add(t.Position)
}

// ApplyInverse maps a parent-space point to local space.
func (t Transform) ApplyInverse(point mgl64.Vec3) mgl64.Vec3 {
	return geometry.TransposedMul(t.Orientation, point.Sub(t.Position))
}

// Support returns the furthest point of s along a parent-space direction,
// expressed in parent space.
func (t Transform) Support(s SupportMappable, direction mgl64.Vec3) mgl64.Vec3 {
	// 1. Transformer la direction en espace local (rotation inverse)
	localDirection := geometry.TransposedMul(t.Orientation, direction)

	// 2. Trouver le support en espace local
	localSupport := s.SupportMapping(localDirection)

	// 3. Transformer le point support en espace parent (rotation + translation)
	return t.Apply(localSupport)
}

// Center returns the support center of s in parent space.
func (t Transform) Center(s SupportMappable) mgl64.Vec3 {
	return t.Apply(s.SupportCenter())
}

// Combine returns the transform of a child placed at child in t's space.
func (t Transform) Combine(child Transform) Transform {
	return Transform{
		Position:    t.Apply(child.Position),
		Orientation: t.Orientation.Mul3(child.Orientation),
	}
}

package actor

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrStaticBody is returned when setting the velocity of a static body.
	ErrStaticBody = errors.New("actor: static bodies cannot have a velocity")
	// ErrNonPositiveMass is returned by SetMassProperties for mass <= 0.
	ErrNonPositiveMass = errors.New("actor: mass must be positive")
)

type Material struct {
	// Density scales the volume-based mass and inertia of the shape
	Density     float64
	Restitution float64 // 0= no rebound, 1= perfect restitution

	StaticFriction  float64
	KineticFriction float64
	LinearDamping   float64 // per second, 0 disables; typical 0.01
	AngularDamping  float64 // per second, 0 disables; typical 0.05
}

// DefaultMaterial returns the material bodies get when none is given.
func DefaultMaterial() Material {
	return Material{
		Density:         1.0,
		Restitution:     0.0,
		StaticFriction:  0.6,
		KineticFriction: 0.3,
	}
}

// DebugDrawer is supplied by the host application to visualise the engine.
type DebugDrawer interface {
	DrawLine(start, end mgl64.Vec3)
	DrawPoint(point mgl64.Vec3)
	DrawTriangle(a, b, c mgl64.Vec3)
}

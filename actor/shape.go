package actor

import (
	"sync"

	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// SupportMappable is the only capability the narrow phase needs from a convex
// shape.
type SupportMappable interface {
	// SupportMapping returns the point of the shape, in local space, that
	// is furthest along direction
	SupportMapping(direction mgl64.Vec3) mgl64.Vec3
	// SupportCenter returns a point strictly inside the shape
	SupportCenter() mgl64.Vec3
}

// Shape is the interface that all collision shapes must implement.
// Mass and inertia are those of a body of density 1 and are expressed about
// the center of mass.
type Shape interface {
	SupportMappable

	// BoundingBox returns the box of the shape rotated by orientation,
	// centered at the body origin
	BoundingBox(orientation mgl64.Mat3) geometry.AABB
	LocalBoundingBox() geometry.AABB
	Mass() float64
	Inertia() mgl64.Mat3
	GeomCen() mgl64.Vec3

	// Version changes every time UpdateShape recomputes the cached properties
	Version() uint64
	UpdateShape()
}

// Multishape is a shape made of many convex sub-shapes. Prepare narrows the
// candidates to a query region; SetCurrentShape then selects which candidate
// answers SupportMapping and SupportCenter.
type Multishape interface {
	Shape

	Prepare(box geometry.AABB) int
	PrepareRay(origin, direction mgl64.Vec3) int
	SetCurrentShape(index int)

	// RequestWorkingClone checks out a private copy for a concurrent query.
	// The release func must be called exactly once, usually deferred.
	RequestWorkingClone() (Multishape, func())
	IsClone() bool
}

// BaseShape caches the mass properties and local bounding box shared by every
// shape.
type BaseShape struct {
	mass        float64
	inertia     mgl64.Mat3
	boundingBox geometry.AABB
	geomCen     mgl64.Vec3
	version     uint64
}

func (s *BaseShape) Mass() float64 {
	return s.mass
}

func (s *BaseShape) Inertia() mgl64.Mat3 {
	return s.inertia
}

func (s *BaseShape) GeomCen() mgl64.Vec3 {
	return s.geomCen
}

func (s *BaseShape) LocalBoundingBox() geometry.AABB {
	return s.boundingBox
}

func (s *BaseShape) Version() uint64 {
	return s.version
}

// Refresh stores freshly computed properties and bumps the version.
func (s *BaseShape) Refresh(mass float64, geomCen mgl64.Vec3, inertia mgl64.Mat3, box geometry.AABB) {
	s.mass = mass
	s.geomCen = geomCen
	s.inertia = inertia
	s.boundingBox = box
	s.version++
}

// SupportBoundingBox computes the box of s under orientation by querying the
// support mapping along the six signed world axes.
func SupportBoundingBox(s SupportMappable, orientation mgl64.Mat3) geometry.AABB {
	var box geometry.AABB

	for axis := 0; axis < 3; axis++ {
		var dir mgl64.Vec3
		dir[axis] = 1

		local := geometry.TransposedMul(orientation, dir)
		box.Max[axis] = orientation.Mul3x1(s.SupportMapping(local))[axis]

		local = local.Mul(-1)
		box.Min[axis] = orientation.Mul3x1(s.SupportMapping(local))[axis]
	}

	return box
}

// refreshFromHull computes the properties of a shape without a closed form.
func refreshFromHull(base *BaseShape, s SupportMappable) {
	mass, com, inertia := CalculateMassInertia(s)
	base.Refresh(mass, com, inertia, SupportBoundingBox(s, mgl64.Ident3()))
}

// cloneArena hands out working clones of a multishape. Clones are created
// lazily and kept for reuse.
type cloneArena struct {
	mu    sync.Mutex
	free  []Multishape
	spawn func() Multishape
}

func (a *cloneArena) acquire() Multishape {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.free); n > 0 {
		clone := a.free[n-1]
		a.free = a.free[:n-1]
		return clone
	}
	return a.spawn()
}

func (a *cloneArena) release(clone Multishape) {
	a.mu.Lock()
	a.free = append(a.free, clone)
	a.mu.Unlock()
}

// reset drops pooled clones, they are stale after the geometry changed.
func (a *cloneArena) reset() {
	a.mu.Lock()
	a.free = a.free[:0]
	a.mu.Unlock()
}

// checkout returns a clone and its release func. Calling release twice is a
// bug and panics.
func (a *cloneArena) checkout(owner Multishape) (Multishape, func()) {
	if owner.IsClone() {
		panic("actor: a working clone cannot hand out clones")
	}

	clone := a.acquire()
	released := false
	return clone, func() {
		if released {
			panic("actor: working clone released twice")
		}
		released = true
		a.release(clone)
	}
}

func signum(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func diagonal(x, y, z float64) mgl64.Mat3 {
	return mgl64.Diag3(mgl64.Vec3{x, y, z})
}

package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ContainmentType describes how two volumes relate to each other.
type ContainmentType int

const (
	Disjoint ContainmentType = iota
	Contains
	Intersects
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// EmptyAABB returns an inverted box, ready to be grown by AddPoint or Merge.
func EmptyAABB() AABB {
	return AABB{
		Min: mgl64.Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		Max: mgl64.Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
	}
}

// LargeAABB spans the whole representable space.
func LargeAABB() AABB {
	return AABB{
		Min: mgl64.Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
		Max: mgl64.Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
	}
}

// NewAABB builds a box from two arbitrary corners.
func NewAABB(a, b mgl64.Vec3) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])},
		Max: mgl64.Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])},
	}
}

func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

func (a AABB) Extents() mgl64.Vec3 {
	return a.Max.Sub(a.Min)
}

// SurfaceArea is the insertion cost metric of the dynamic tree.
func (a AABB) SurfaceArea() float64 {
	d := a.Max.Sub(a.Min)
	return 2.0 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

// Valid reports whether Min <= Max on every axis.
func (a AABB) Valid() bool {
	return a.Min[0] <= a.Max[0] && a.Min[1] <= a.Max[1] && a.Min[2] <= a.Max[2]
}

// AddPoint grows the box so it contains p.
func (a *AABB) AddPoint(p mgl64.Vec3) {
	for i := 0; i < 3; i++ {
		a.Min[i] = math.Min(a.Min[i], p[i])
		a.Max[i] = math.Max(a.Max[i], p[i])
	}
}

// Merge returns the smallest box containing both a and other.
func (a AABB) Merge(other AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(a.Min[0], other.Min[0]), math.Min(a.Min[1], other.Min[1]), math.Min(a.Min[2], other.Min[2])},
		Max: mgl64.Vec3{math.Max(a.Max[0], other.Max[0]), math.Max(a.Max[1], other.Max[1]), math.Max(a.Max[2], other.Max[2])},
	}
}

// Inflate grows the box by margin on every side.
func (a AABB) Inflate(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

// Sweep extends the box along a displacement, keeping the original volume.
func (a AABB) Sweep(displacement mgl64.Vec3) AABB {
	out := a
	for i := 0; i < 3; i++ {
		if displacement[i] < 0 {
			out.Min[i] += displacement[i]
		} else {
			out.Max[i] += displacement[i]
		}
	}
	return out
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) ContainmentType {
	if point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z() {
		return Contains
	}
	return Disjoint
}

// Contains classifies other against a.
func (a AABB) Contains(other AABB) ContainmentType {
	if a.Max.X() < other.Min.X() || a.Min.X() > other.Max.X() ||
		a.Max.Y() < other.Min.Y() || a.Min.Y() > other.Max.Y() ||
		a.Max.Z() < other.Min.Z() || a.Min.Z() > other.Max.Z() {
		return Disjoint
	}
	if a.Min.X() <= other.Min.X() && other.Max.X() <= a.Max.X() &&
		a.Min.Y() <= other.Min.Y() && other.Max.Y() <= a.Max.Y() &&
		a.Min.Z() <= other.Min.Z() && other.Max.Z() <= a.Max.Z() {
		return Contains
	}
	return Intersects
}

// Overlaps checks if two AABBs overlap
func (a AABB) Overlaps(other AABB) bool {
	// AABBs overlap if they overlap on all three axes
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// SegmentIntersect tests the segment origin -> origin+direction against the box.
func (a AABB) SegmentIntersect(origin, direction mgl64.Vec3) bool {
	enter, exit, ok := a.slabs(origin, direction)
	if !ok {
		return false
	}
	return enter <= 1.0 && exit >= 0.0
}

// RayIntersect tests the half-line origin + t*direction, t >= 0, against the box.
func (a AABB) RayIntersect(origin, direction mgl64.Vec3) bool {
	_, exit, ok := a.slabs(origin, direction)
	return ok && exit >= 0.0
}

// RayIntersectDistance returns the entry parameter of the ray, clamped at zero.
func (a AABB) RayIntersectDistance(origin, direction mgl64.Vec3) (float64, bool) {
	enter, exit, ok := a.slabs(origin, direction)
	if !ok || exit < 0.0 {
		return 0, false
	}
	return math.Max(enter, 0), true
}

// slabs narrows the [enter, exit] interval one axis at a time. An axis with a
// degenerate direction is a pass-through test of the origin coordinate.
func (a AABB) slabs(origin, direction mgl64.Vec3) (float64, float64, bool) {
	const epsilon = 1e-12

	enter := -math.MaxFloat64
	exit := math.MaxFloat64

	for i := 0; i < 3; i++ {
		if math.Abs(direction[i]) < epsilon {
			if origin[i] < a.Min[i] || origin[i] > a.Max[i] {
				return 0, 0, false
			}
			continue
		}

		inv := 1.0 / direction[i]
		t0 := (a.Min[i] - origin[i]) * inv
		t1 := (a.Max[i] - origin[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}

		enter = math.Max(enter, t0)
		exit = math.Min(exit, t1)
		if enter > exit {
			return 0, 0, false
		}
	}

	return enter, exit, true
}

// Transform returns the box enclosing a rotated and translated.
func (a AABB) Transform(position mgl64.Vec3, orientation mgl64.Mat3) AABB {
	center := orientation.Mul3x1(a.Center()).Add(position)
	half := Absolute(orientation).Mul3x1(a.Extents().Mul(0.5))
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

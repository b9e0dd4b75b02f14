package actor

import (
	"math"

	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// ConvexHull is the convex hull of a point cloud. The points are shifted so
// the center of mass of the hull sits at the origin.
type ConvexHull struct {
	BaseShape
	vertices []mgl64.Vec3
	shifted  mgl64.Vec3
}

func NewConvexHull(points []mgl64.Vec3) *ConvexHull {
	h := &ConvexHull{vertices: append([]mgl64.Vec3(nil), points...)}
	h.UpdateShape()
	return h
}

// Shift is the translation applied to the input points.
func (h *ConvexHull) Shift() mgl64.Vec3 {
	return h.shifted
}

func (h *ConvexHull) SetVertices(points []mgl64.Vec3) {
	h.vertices = append(h.vertices[:0], points...)
	h.UpdateShape()
}

func (h *ConvexHull) UpdateShape() {
	h.shifted = mgl64.Vec3{}
	mass, com, inertia := CalculateMassInertia(h)
	h.shifted = com.Mul(-1)

	h.Refresh(mass, mgl64.Vec3{}, inertia, SupportBoundingBox(h, mgl64.Ident3()))
}

func (h *ConvexHull) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	best := -math.MaxFloat64
	index := 0
	for i, v := range h.vertices {
		if d := v.Dot(direction); d > best {
			best = d
			index = i
		}
	}
	if len(h.vertices) == 0 {
		return h.shifted
	}
	return h.vertices[index].Add(h.shifted)
}

func (h *ConvexHull) SupportCenter() mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (h *ConvexHull) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	return SupportBoundingBox(h, orientation)
}

// MinkowskiSum sums the support mappings of its parts. A sphere added to a
// box gives a rounded box, a sphere added to a segment gives a capsule.
type MinkowskiSum struct {
	BaseShape
	shapes  []Shape
	shifted mgl64.Vec3
}

func NewMinkowskiSum(shapes ...Shape) *MinkowskiSum {
	m := &MinkowskiSum{shapes: append([]Shape(nil), shapes...)}
	m.UpdateShape()
	return m
}

func (m *MinkowskiSum) Shapes() []Shape {
	return m.shapes
}

func (m *MinkowskiSum) AddShape(s Shape) {
	m.shapes = append(m.shapes, s)
	m.UpdateShape()
}

// RemoveShape removes the last added part. A sum keeps at least one part.
func (m *MinkowskiSum) RemoveShape() bool {
	if len(m.shapes) <= 1 {
		return false
	}
	m.shapes = m.shapes[:len(m.shapes)-1]
	m.UpdateShape()
	return true
}

func (m *MinkowskiSum) UpdateShape() {
	m.shifted = mgl64.Vec3{}
	mass, com, inertia := CalculateMassInertia(m)
	m.shifted = com.Mul(-1)

	m.Refresh(mass, mgl64.Vec3{}, inertia, SupportBoundingBox(m, mgl64.Ident3()))
}

func (m *MinkowskiSum) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	res := m.shifted
	for _, s := range m.shapes {
		res = res.Add(s.SupportMapping(direction))
	}
	return res
}

func (m *MinkowskiSum) SupportCenter() mgl64.Vec3 {
	res := m.shifted
	for _, s := range m.shapes {
		res = res.Add(s.SupportCenter())
	}
	return res
}

func (m *MinkowskiSum) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	return SupportBoundingBox(m, orientation)
}

// TransformedShape places a shape at an offset pose. It is the building block
// of compound shapes.
type TransformedShape struct {
	Shape     Shape
	Transform Transform
}

func (t TransformedShape) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	return t.Transform.Support(t.Shape, direction)
}

func (t TransformedShape) SupportCenter() mgl64.Vec3 {
	return t.Transform.Apply(t.Shape.SupportCenter())
}

// BoundingBox returns the box of the placed shape once the parent is rotated
// by orientation.
func (t TransformedShape) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	box := t.Shape.BoundingBox(orientation.Mul3(t.Transform.Orientation))
	offset := orientation.Mul3x1(t.Transform.Position)
	return geometry.AABB{Min: box.Min.Add(offset), Max: box.Max.Add(offset)}
}

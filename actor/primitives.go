package actor

import (
	"math"

	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// Box represents an oriented box collision shape
// The box is defined by its full size along each axis.
type Box struct {
	BaseShape
	size     mgl64.Vec3
	halfSize mgl64.Vec3
}

func NewBox(size mgl64.Vec3) *Box {
	b := &Box{}
	b.SetSize(size)
	return b
}

func (b *Box) Size() mgl64.Vec3 {
	return b.size
}

func (b *Box) SetSize(size mgl64.Vec3) {
	b.size = size
	b.halfSize = size.Mul(0.5)
	b.UpdateShape()
}

func (b *Box) UpdateShape() {
	// Box formula: I = (m/12) * (dimension1² + dimension2²)
	x, y, z := b.size.Elem()
	mass := x * y * z
	factor := mass / 12.0
	inertia := diagonal(factor*(y*y+z*z), factor*(x*x+z*z), factor*(x*x+y*y))

	b.Refresh(mass, mgl64.Vec3{}, inertia, geometry.AABB{Min: b.halfSize.Mul(-1), Max: b.halfSize})
}

func (b *Box) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{
		signum(direction.X()) * b.halfSize.X(),
		signum(direction.Y()) * b.halfSize.Y(),
		signum(direction.Z()) * b.halfSize.Z(),
	}
}

func (b *Box) SupportCenter() mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (b *Box) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	half := geometry.Absolute(orientation).Mul3x1(b.halfSize)
	return geometry.AABB{Min: half.Mul(-1), Max: half}
}

// Sphere represents a sphere collision shape centered at the origin
type Sphere struct {
	BaseShape
	radius float64
}

func NewSphere(radius float64) *Sphere {
	s := &Sphere{}
	s.SetRadius(radius)
	return s
}

func (s *Sphere) Radius() float64 {
	return s.radius
}

func (s *Sphere) SetRadius(radius float64) {
	s.radius = radius
	s.UpdateShape()
}

func (s *Sphere) UpdateShape() {
	r := s.radius
	mass := 4.0 / 3.0 * math.Pi * r * r * r
	i := 2.0 / 5.0 * mass * r * r

	s.Refresh(mass, mgl64.Vec3{}, diagonal(i, i, i), s.BoundingBox(mgl64.Ident3()))
}

func (s *Sphere) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	return geometry.SafeNormalize(direction, mgl64.Vec3{1, 0, 0}).Mul(s.radius)
}

func (s *Sphere) SupportCenter() mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (s *Sphere) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	r := mgl64.Vec3{s.radius, s.radius, s.radius}
	return geometry.AABB{Min: r.Mul(-1), Max: r}
}

// Capsule is a cylinder capped by two hemispheres, aligned with the Y axis.
// Length is the distance between the hemisphere centers.
type Capsule struct {
	BaseShape
	length float64
	radius float64
}

func NewCapsule(length, radius float64) *Capsule {
	c := &Capsule{length: length, radius: radius}
	c.UpdateShape()
	return c
}

func (c *Capsule) Length() float64 { return c.length }
func (c *Capsule) Radius() float64 { return c.radius }

func (c *Capsule) SetLength(length float64) {
	c.length = length
	c.UpdateShape()
}

func (c *Capsule) SetRadius(radius float64) {
	c.radius = radius
	c.UpdateShape()
}

func (c *Capsule) UpdateShape() {
	r, l := c.radius, c.length
	cylinderMass := math.Pi * r * r * l
	capsMass := 4.0 / 3.0 * math.Pi * r * r * r

	iy := cylinderMass*r*r/2 + capsMass*2*r*r/5
	ix := cylinderMass*(r*r/4+l*l/12) + capsMass*(2*r*r/5+l*l/4+3*l*r/8)

	c.Refresh(cylinderMass+capsMass, mgl64.Vec3{}, diagonal(ix, iy, ix), SupportBoundingBox(c, mgl64.Ident3()))
}

func (c *Capsule) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	res := geometry.SafeNormalize(direction, mgl64.Vec3{0, 1, 0}).Mul(c.radius)
	res[1] += signum(direction.Y()) * c.length * 0.5
	return res
}

func (c *Capsule) SupportCenter() mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (c *Capsule) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	return SupportBoundingBox(c, orientation)
}

// Cylinder is aligned with the Y axis and centered at the origin.
type Cylinder struct {
	BaseShape
	height float64
	radius float64
}

func NewCylinder(height, radius float64) *Cylinder {
	c := &Cylinder{height: height, radius: radius}
	c.UpdateShape()
	return c
}

func (c *Cylinder) Height() float64 { return c.height }
func (c *Cylinder) Radius() float64 { return c.radius }

func (c *Cylinder) SetHeight(height float64) {
	c.height = height
	c.UpdateShape()
}

func (c *Cylinder) SetRadius(radius float64) {
	c.radius = radius
	c.UpdateShape()
}

func (c *Cylinder) UpdateShape() {
	r, h := c.radius, c.height
	mass := math.Pi * r * r * h
	iy := mass * r * r / 2
	ix := mass * (3*r*r + h*h) / 12

	c.Refresh(mass, mgl64.Vec3{}, diagonal(ix, iy, ix), SupportBoundingBox(c, mgl64.Ident3()))
}

func (c *Cylinder) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	sigma := math.Sqrt(direction.X()*direction.X() + direction.Z()*direction.Z())
	y := signum(direction.Y()) * c.height * 0.5

	if sigma > 0 {
		return mgl64.Vec3{direction.X() / sigma * c.radius, y, direction.Z() / sigma * c.radius}
	}
	return mgl64.Vec3{0, y, 0}
}

func (c *Cylinder) SupportCenter() mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (c *Cylinder) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	return SupportBoundingBox(c, orientation)
}

// Cone points along +Y. The origin is its center of mass, a quarter of the
// height above the base.
type Cone struct {
	BaseShape
	height float64
	radius float64
	sina   float64
}

func NewCone(height, radius float64) *Cone {
	c := &Cone{height: height, radius: radius}
	c.UpdateShape()
	return c
}

func (c *Cone) Height() float64 { return c.height }
func (c *Cone) Radius() float64 { return c.radius }

func (c *Cone) SetHeight(height float64) {
	c.height = height
	c.UpdateShape()
}

func (c *Cone) SetRadius(radius float64) {
	c.radius = radius
	c.UpdateShape()
}

func (c *Cone) UpdateShape() {
	r, h := c.radius, c.height
	c.sina = r / math.Sqrt(r*r+h*h)

	mass := math.Pi * r * r * h / 3
	iy := 3.0 / 10.0 * mass * r * r
	ix := mass * (3.0*r*r/20.0 + 3.0*h*h/80.0)

	c.Refresh(mass, mgl64.Vec3{}, diagonal(ix, iy, ix), SupportBoundingBox(c, mgl64.Ident3()))
}

func (c *Cone) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	if direction.Y() > direction.Len()*c.sina {
		return mgl64.Vec3{0, 0.75 * c.height, 0}
	}

	sigma := math.Sqrt(direction.X()*direction.X() + direction.Z()*direction.Z())
	if sigma > 0 {
		return mgl64.Vec3{direction.X() / sigma * c.radius, -0.25 * c.height, direction.Z() / sigma * c.radius}
	}
	return mgl64.Vec3{0, -0.25 * c.height, 0}
}

func (c *Cone) SupportCenter() mgl64.Vec3 {
	return mgl64.Vec3{}
}

func (c *Cone) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	return SupportBoundingBox(c, orientation)
}

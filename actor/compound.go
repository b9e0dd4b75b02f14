package actor

import (
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// Compound groups convex shapes placed at fixed poses. The parts are shifted
// so that the combined center of mass sits at the origin.
type Compound struct {
	BaseShape
	shapes  []TransformedShape
	shifted mgl64.Vec3

	current    int
	candidates []int

	isClone bool
	arena   *cloneArena
}

func NewCompound(shapes []TransformedShape) *Compound {
	c := &Compound{shapes: append([]TransformedShape(nil), shapes...)}
	c.arena = &cloneArena{spawn: c.spawnClone}
	c.UpdateShape()
	return c
}

func (c *Compound) spawnClone() Multishape {
	return &Compound{
		BaseShape: c.BaseShape,
		shapes:    c.shapes,
		shifted:   c.shifted,
		isClone:   true,
	}
}

// Shapes returns the shifted parts.
func (c *Compound) Shapes() []TransformedShape {
	return c.shapes
}

// Shift is the translation applied to every part.
func (c *Compound) Shift() mgl64.Vec3 {
	return c.shifted
}

func (c *Compound) UpdateShape() {
	if c.isClone {
		panic("actor: cannot update a working clone")
	}

	// Un-shift before recombining so repeated updates do not drift
	for i := range c.shapes {
		c.shapes[i].Transform.Position = c.shapes[i].Transform.Position.Sub(c.shifted)
	}

	var mass float64
	var com mgl64.Vec3
	for _, s := range c.shapes {
		m := s.Shape.Mass()
		mass += m
		com = com.Add(s.Transform.Position.Mul(m))
	}
	if mass > 0 {
		com = com.Mul(1.0 / mass)
	}

	c.shifted = com.Mul(-1)
	for i := range c.shapes {
		c.shapes[i].Transform.Position = c.shapes[i].Transform.Position.Add(c.shifted)
	}

	// Parallel axis theorem on every rotated part
	var inertia mgl64.Mat3
	box := geometry.EmptyAABB()
	for _, s := range c.shapes {
		R := s.Transform.Orientation
		local := R.Mul3(s.Shape.Inertia()).Mul3(R.Transpose())

		p := s.Transform.Position
		m := s.Shape.Mass()
		offset := mgl64.Ident3().Mul(p.Dot(p)).Sub(p.OuterProd3(p)).Mul(m)

		inertia = inertia.Add(local).Add(offset)
		box = box.Merge(s.BoundingBox(mgl64.Ident3()))
	}

	c.Refresh(mass, mgl64.Vec3{}, inertia, box)
	if c.arena != nil {
		c.arena.reset()
	}
}

func (c *Compound) Prepare(box geometry.AABB) int {
	c.candidates = c.candidates[:0]
	for i, s := range c.shapes {
		if s.BoundingBox(mgl64.Ident3()).Overlaps(box) {
			c.candidates = append(c.candidates, i)
		}
	}
	return len(c.candidates)
}

func (c *Compound) PrepareRay(origin, direction mgl64.Vec3) int {
	c.candidates = c.candidates[:0]
	for i, s := range c.shapes {
		if s.BoundingBox(mgl64.Ident3()).SegmentIntersect(origin, direction) {
			c.candidates = append(c.candidates, i)
		}
	}
	return len(c.candidates)
}

func (c *Compound) SetCurrentShape(index int) {
	c.current = c.candidates[index]
}

func (c *Compound) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	return c.shapes[c.current].SupportMapping(direction)
}

func (c *Compound) SupportCenter() mgl64.Vec3 {
	return c.shapes[c.current].SupportCenter()
}

// BoundingBox returns the box of the whole compound under orientation.
func (c *Compound) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	box := geometry.EmptyAABB()
	for _, s := range c.shapes {
		box = box.Merge(s.BoundingBox(orientation))
	}
	return box
}

func (c *Compound) RequestWorkingClone() (Multishape, func()) {
	return c.arena.checkout(c)
}

func (c *Compound) IsClone() bool {
	return c.isClone
}

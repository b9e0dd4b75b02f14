package actor

import (
	"math"

	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/fxredeemer/jitterphysics-sub000/spatial"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// DefaultSphericalExpansion is the margin swept around mesh and terrain
// triangles. It gives flat triangles a volume the narrow phase can work with.
const DefaultSphericalExpansion = 0.05

// triangle is the sub-shape currently selected on a mesh or a terrain.
type triangle struct {
	vertices [3]mgl64.Vec3
	normal   mgl64.Vec3
}

func (t *triangle) set(a, b, c mgl64.Vec3, flip bool) {
	t.vertices = [3]mgl64.Vec3{a, b, c}
	if flip {
		t.vertices[1], t.vertices[2] = t.vertices[2], t.vertices[1]
	}
	t.normal = geometry.SafeNormalize(t.vertices[1].Sub(t.vertices[0]).Cross(t.vertices[2].Sub(t.vertices[0])), mgl64.Vec3{0, 1, 0})
}

func (t *triangle) support(direction mgl64.Vec3, expansion float64) mgl64.Vec3 {
	best := 0
	bestDot := t.vertices[0].Dot(direction)
	for i := 1; i < 3; i++ {
		if d := t.vertices[i].Dot(direction); d > bestDot {
			best, bestDot = i, d
		}
	}
	expanded := geometry.SafeNormalize(direction, mgl64.Vec3{}).Mul(expansion)
	return t.vertices[best].Add(expanded)
}

func (t *triangle) center() mgl64.Vec3 {
	return t.vertices[0].Add(t.vertices[1]).Add(t.vertices[2]).Mul(1.0 / 3.0)
}

// TriangleMesh is a static mesh indexed by an octree. Meshes are meant for
// static bodies: their mass properties are placeholders.
type TriangleMesh struct {
	BaseShape
	octree *spatial.Octree

	SphericalExpansion float64
	FlipNormals        bool

	current    triangle
	candidates []int

	isClone bool
	arena   *cloneArena
}

func NewTriangleMesh(octree *spatial.Octree) *TriangleMesh {
	m := &TriangleMesh{
		octree:             octree,
		SphericalExpansion: DefaultSphericalExpansion,
	}
	m.arena = &cloneArena{spawn: m.spawnClone}
	m.UpdateShape()
	return m
}

// NewTriangleMeshR3 builds the octree from an r3 vertex soup, as produced by
// mesh tooling built on golang/geo.
func NewTriangleMeshR3(vertices []r3.Vector, indices []spatial.TriangleVertexIndices) *TriangleMesh {
	positions := make([]mgl64.Vec3, len(vertices))
	for i, v := range vertices {
		positions[i] = geometry.FromR3(v)
	}
	return NewTriangleMesh(spatial.NewOctree(positions, indices))
}

func (m *TriangleMesh) spawnClone() Multishape {
	return &TriangleMesh{
		BaseShape:          m.BaseShape,
		octree:             m.octree,
		SphericalExpansion: m.SphericalExpansion,
		FlipNormals:        m.FlipNormals,
		isClone:            true,
	}
}

func (m *TriangleMesh) Octree() *spatial.Octree {
	return m.octree
}

func (m *TriangleMesh) UpdateShape() {
	box := m.octree.RootNodeBox().Inflate(m.SphericalExpansion)
	m.Refresh(1, mgl64.Vec3{}, mgl64.Ident3(), box)
	if m.arena != nil {
		m.arena.reset()
	}
}

func (m *TriangleMesh) Prepare(box geometry.AABB) int {
	m.candidates = m.octree.GetTrianglesIntersectingAABB(box.Inflate(m.SphericalExpansion), m.candidates[:0])
	return len(m.candidates)
}

func (m *TriangleMesh) PrepareRay(origin, direction mgl64.Vec3) int {
	m.candidates = m.octree.GetTrianglesIntersectingRay(origin, direction, m.candidates[:0])
	return len(m.candidates)
}

func (m *TriangleMesh) SetCurrentShape(index int) {
	a, b, c := m.octree.Triangle(m.candidates[index])
	m.current.set(a, b, c, m.FlipNormals)
}

// CurrentNormal returns the face normal of the selected triangle.
func (m *TriangleMesh) CurrentNormal() mgl64.Vec3 {
	return m.current.normal
}

// CurrentTriangle returns the corners of the selected triangle.
func (m *TriangleMesh) CurrentTriangle() [3]mgl64.Vec3 {
	return m.current.vertices
}

func (m *TriangleMesh) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	return m.current.support(direction, m.SphericalExpansion)
}

func (m *TriangleMesh) SupportCenter() mgl64.Vec3 {
	return m.current.center()
}

func (m *TriangleMesh) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	box := m.LocalBoundingBox()
	return box.Transform(mgl64.Vec3{}, orientation)
}

func (m *TriangleMesh) RequestWorkingClone() (Multishape, func()) {
	return m.arena.checkout(m)
}

func (m *TriangleMesh) IsClone() bool {
	return m.isClone
}

// Terrain is a heightfield over a regular grid on the XZ plane. Height
// heights[x][z] sits at (x*ScaleX, h, z*ScaleZ).
type Terrain struct {
	BaseShape
	heights [][]float64
	scaleX  float64
	scaleZ  float64

	minX, maxX, minZ, maxZ int
	SphericalExpansion     float64

	current    triangle
	candidates []int

	isClone bool
	arena   *cloneArena
}

func NewTerrain(heights [][]float64, scaleX, scaleZ float64) *Terrain {
	t := &Terrain{
		heights:            heights,
		scaleX:             scaleX,
		scaleZ:             scaleZ,
		SphericalExpansion: DefaultSphericalExpansion,
	}
	t.arena = &cloneArena{spawn: t.spawnClone}
	t.UpdateShape()
	return t
}

func (t *Terrain) spawnClone() Multishape {
	return &Terrain{
		BaseShape:          t.BaseShape,
		heights:            t.heights,
		scaleX:             t.scaleX,
		scaleZ:             t.scaleZ,
		SphericalExpansion: t.SphericalExpansion,
		isClone:            true,
	}
}

func (t *Terrain) Heights() [][]float64 {
	return t.heights
}

func (t *Terrain) UpdateShape() {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range t.heights {
		for _, h := range row {
			lo = min(lo, h)
			hi = max(hi, h)
		}
	}
	if lo > hi {
		lo, hi = 0, 0
	}

	sizeX, sizeZ := t.cells()
	box := geometry.AABB{
		Min: mgl64.Vec3{0, lo, 0},
		Max: mgl64.Vec3{float64(sizeX) * t.scaleX, hi, float64(sizeZ) * t.scaleZ},
	}

	t.Refresh(1, mgl64.Vec3{}, mgl64.Ident3(), box.Inflate(t.SphericalExpansion))
	if t.arena != nil {
		t.arena.reset()
	}
}

// cells returns the number of grid cells along X and Z.
func (t *Terrain) cells() (int, int) {
	if len(t.heights) == 0 {
		return 0, 0
	}
	return len(t.heights) - 1, len(t.heights[0]) - 1
}

func (t *Terrain) Prepare(box geometry.AABB) int {
	t.candidates = t.candidates[:0]
	sizeX, sizeZ := t.cells()
	if sizeX <= 0 || sizeZ <= 0 {
		return 0
	}

	box = box.Inflate(t.SphericalExpansion)
	t.minX = geometry.Clamp(int(box.Min.X()/t.scaleX), 0, sizeX-1)
	t.maxX = geometry.Clamp(int(box.Max.X()/t.scaleX)+1, 0, sizeX-1)
	t.minZ = geometry.Clamp(int(box.Min.Z()/t.scaleZ), 0, sizeZ-1)
	t.maxZ = geometry.Clamp(int(box.Max.Z()/t.scaleZ)+1, 0, sizeZ-1)

	if box.Max.X() < 0 || box.Max.Z() < 0 ||
		box.Min.X() > float64(sizeX)*t.scaleX || box.Min.Z() > float64(sizeZ)*t.scaleZ {
		return 0
	}

	for x := t.minX; x <= t.maxX; x++ {
		for z := t.minZ; z <= t.maxZ; z++ {
			cell := x*sizeZ + z
			t.candidates = append(t.candidates, 2*cell, 2*cell+1)
		}
	}
	return len(t.candidates)
}

func (t *Terrain) PrepareRay(origin, direction mgl64.Vec3) int {
	box := geometry.NewAABB(origin, origin.Add(direction))
	return t.Prepare(box)
}

func (t *Terrain) SetCurrentShape(index int) {
	_, sizeZ := t.cells()
	tri := t.candidates[index]
	cell := tri / 2
	x, z := cell/sizeZ, cell%sizeZ

	p := func(i, j int) mgl64.Vec3 {
		return mgl64.Vec3{float64(i) * t.scaleX, t.heights[i][j], float64(j) * t.scaleZ}
	}

	if tri%2 == 0 {
		t.current.set(p(x, z), p(x, z+1), p(x+1, z), false)
	} else {
		t.current.set(p(x+1, z), p(x, z+1), p(x+1, z+1), false)
	}
}

// CurrentNormal returns the upward face normal of the selected triangle.
func (t *Terrain) CurrentNormal() mgl64.Vec3 {
	return t.current.normal
}

func (t *Terrain) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	return t.current.support(direction, t.SphericalExpansion)
}

func (t *Terrain) SupportCenter() mgl64.Vec3 {
	return t.current.center()
}

func (t *Terrain) BoundingBox(orientation mgl64.Mat3) geometry.AABB {
	return t.LocalBoundingBox().Transform(mgl64.Vec3{}, orientation)
}

func (t *Terrain) RequestWorkingClone() (Multishape, func()) {
	return t.arena.checkout(t)
}

func (t *Terrain) IsClone() bool {
	return t.isClone
}

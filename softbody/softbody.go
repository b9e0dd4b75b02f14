// Package softbody implements mass-spring soft bodies: particles joined by
// springs, with an optional internal pressure and self collision through a
// dynamic tree over the surface triangles.
package softbody

import (
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/constraint"
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/fxredeemer/jitterphysics-sub000/mpr"
	"github.com/fxredeemer/jitterphysics-sub000/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	defaultPointMass         = 0.1
	defaultVertexExpansion   = 0.1
	defaultTriangleExpansion = 0.1
	defaultSpringSoftness    = 0.01
	defaultSpringBias        = 0.1
)

type SpringType int

const (
	EdgeSpring SpringType = iota
	ShearSpring
	BendSpring
)

func (t SpringType) String() string {
	switch t {
	case ShearSpring:
		return "shear"
	case BendSpring:
		return "bend"
	default:
		return "edge"
	}
}

// Spring keeps two mass points at their rest distance.
type Spring struct {
	*constraint.PointPointDistance
	Type SpringType
}

func newSpring(body1, body2 *actor.RigidBody, springType SpringType) *Spring {
	c := constraint.NewPointPointDistance(body1, body2, body1.Position(), body2.Position())
	c.Softness = defaultSpringSoftness
	c.BiasFactor = defaultSpringBias
	return &Spring{PointPointDistance: c, Type: springType}
}

// CollisionHandler receives the contacts found by soft body queries, the
// same way the collision system reports them.
type CollisionHandler func(body1, body2 *actor.RigidBody, point1, point2, normal mgl64.Vec3, penetration float64)

// SoftBody is a set of particles, the springs holding them together and the
// surface triangles used for pressure and collision.
type SoftBody struct {
	points    []*actor.RigidBody
	springs   []*Spring
	triangles []*Triangle
	tree      *spatial.DynamicTree[*Triangle]

	sphere   *actor.Sphere
	material actor.Material

	// Pressure pushes the surface outwards, 0 disables it
	Pressure      float64
	SelfCollision bool

	triangleExpansion float64
	volume            float64
	mass              float64
	boundingBox       geometry.AABB
	active            bool

	Tag any
}

// New builds a soft body from a closed or open triangle mesh. Every
// triangle edge becomes an edge spring.
func New(indices []spatial.TriangleVertexIndices, vertices []mgl64.Vec3) *SoftBody {
	sb := newSoftBody()
	sb.addPointsAndSprings(indices, vertices)
	sb.refresh()
	return sb
}

// NewCloth builds a flat sizeX by sizeY grid in the XZ plane, spaced by scale.
// Besides the edge springs it gets shear springs across every cell and bend
// springs skipping one point.
func NewCloth(sizeX, sizeY int, scale float64) *SoftBody {
	sb := newSoftBody()

	vertices := make([]mgl64.Vec3, 0, sizeX*sizeY)
	for i := range sizeY {
		for e := range sizeX {
			vertices = append(vertices, mgl64.Vec3{float64(i), 0, float64(e)}.Mul(scale))
		}
	}

	var indices []spatial.TriangleVertexIndices
	for i := 0; i < sizeX-1; i++ {
		for e := 0; e < sizeY-1; e++ {
			indices = append(indices,
				spatial.TriangleVertexIndices{I0: e*sizeX + i, I1: e*sizeX + i + 1, I2: (e+1)*sizeX + i + 1},
				spatial.TriangleVertexIndices{I0: e*sizeX + i, I1: (e+1)*sizeX + i + 1, I2: (e+1)*sizeX + i},
			)
		}
	}

	sb.addPointsAndSprings(indices, vertices)

	for i := 0; i < sizeX-1; i++ {
		for e := 0; e < sizeY-1; e++ {
			sb.springs = append(sb.springs, newSpring(sb.points[e*sizeX+i+1], sb.points[(e+1)*sizeX+i], ShearSpring))
		}
	}

	// Diagonals of the grid are shear springs, whatever created them
	for _, s := range sb.springs {
		delta := s.Body1().Position().Sub(s.Body2().Position())
		if delta.Z() != 0 && delta.X() != 0 {
			s.Type = ShearSpring
		} else {
			s.Type = EdgeSpring
		}
	}

	for i := 0; i < sizeX-2; i++ {
		for e := 0; e < sizeY-2; e++ {
			sb.springs = append(sb.springs,
				newSpring(sb.points[e*sizeX+i], sb.points[e*sizeX+i+2], BendSpring),
				newSpring(sb.points[e*sizeX+i], sb.points[(e+2)*sizeX+i], BendSpring),
			)
		}
	}

	sb.refresh()
	return sb
}

func newSoftBody() *SoftBody {
	return &SoftBody{
		tree:              spatial.NewDynamicTree[*Triangle](1),
		sphere:            actor.NewSphere(defaultVertexExpansion),
		material:          actor.DefaultMaterial(),
		triangleExpansion: defaultTriangleExpansion,
		active:            true,
	}
}

func (sb *SoftBody) addPointsAndSprings(indices []spatial.TriangleVertexIndices, vertices []mgl64.Vec3) {
	for _, v := range vertices {
		point := actor.NewParticle(sb.sphere, sb.material)
		point.SetPosition(v)
		_ = point.SetMassProperties(mgl64.Ident3(), defaultPointMass, false)
		point.Tag = sb
		sb.points = append(sb.points, point)
	}

	for _, index := range indices {
		t := &Triangle{owner: sb, indices: index}
		t.updateBoundingBox()
		t.treeID = sb.tree.AddProxy(t.boundingBox, t)
		sb.triangles = append(sb.triangles, t)
	}

	for _, edge := range edges(indices) {
		sb.springs = append(sb.springs, newSpring(sb.points[edge[0]], sb.points[edge[1]], EdgeSpring))
	}
}

// edges lists the unique triangle edges in order of first appearance.
func edges(indices []spatial.TriangleVertexIndices) [][2]int {
	seen := make(map[[2]int]struct{})
	var out [][2]int
	add := func(a, b int) {
		if a > b {
			a, b = b, a
		}
		key := [2]int{a, b}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	for _, t := range indices {
		add(t.I0, t.I1)
		add(t.I0, t.I2)
		add(t.I1, t.I2)
	}
	return out
}

// Points returns the mass points. They are regular particle bodies and are
// simulated by the world like any other body.
func (sb *SoftBody) Points() []*actor.RigidBody {
	return sb.points
}

func (sb *SoftBody) Springs() []*Spring {
	return sb.springs
}

func (sb *SoftBody) Triangles() []*Triangle {
	return sb.triangles
}

// Tree is the dynamic tree over the surface triangles.
func (sb *SoftBody) Tree() *spatial.DynamicTree[*Triangle] {
	return sb.tree
}

func (sb *SoftBody) BoundingBox() geometry.AABB {
	return sb.boundingBox
}

// Volume is the enclosed volume computed by the last Update.
func (sb *SoftBody) Volume() float64 {
	return sb.volume
}

func (sb *SoftBody) Mass() float64 {
	return sb.mass
}

// SetMass spreads a total mass evenly over the points.
func (sb *SoftBody) SetMass(mass float64) error {
	share := mass / float64(len(sb.points))
	for _, p := range sb.points {
		if err := p.SetMassProperties(mgl64.Ident3(), share, false); err != nil {
			return err
		}
	}
	sb.mass = mass
	return nil
}

func (sb *SoftBody) Material() actor.Material {
	return sb.material
}

func (sb *SoftBody) SetMaterial(material actor.Material) {
	sb.material = material
	for _, p := range sb.points {
		p.Material = material
	}
}

func (sb *SoftBody) TriangleExpansion() float64 {
	return sb.triangleExpansion
}

func (sb *SoftBody) SetTriangleExpansion(expansion float64) {
	sb.triangleExpansion = expansion
}

// VertexExpansion is the radius of the sphere every point carries.
func (sb *SoftBody) VertexExpansion() float64 {
	return sb.sphere.Radius()
}

func (sb *SoftBody) SetVertexExpansion(radius float64) {
	sb.sphere.SetRadius(radius)
	for _, p := range sb.points {
		p.Update()
	}
}

// IsActive reports whether any point is awake, as of the last Update.
func (sb *SoftBody) IsActive() bool {
	return sb.active
}

func (sb *SoftBody) SetActive(active bool) {
	for _, p := range sb.points {
		p.SetActive(active)
	}
	sb.active = active
}

// SetSpringValues changes every spring of one type.
func (sb *SoftBody) SetSpringValues(springType SpringType, bias, softness float64) {
	for _, s := range sb.springs {
		if s.Type == springType {
			s.BiasFactor = bias
			s.Softness = softness
		}
	}
}

// Translate moves every point by offset.
func (sb *SoftBody) Translate(offset mgl64.Vec3) {
	for _, p := range sb.points {
		p.SetPosition(p.Position().Add(offset))
	}
	sb.Update(0)
}

// Rotate turns every point about center.
func (sb *SoftBody) Rotate(orientation mgl64.Mat3, center mgl64.Vec3) {
	for _, p := range sb.points {
		p.SetPosition(orientation.Mul3x1(p.Position().Sub(center)).Add(center))
	}
	sb.Update(0)
}

// Center is the mean position of the points.
func (sb *SoftBody) Center() mgl64.Vec3 {
	var center mgl64.Vec3
	for _, p := range sb.points {
		center = center.Add(p.Position())
	}
	return center.Mul(1.0 / float64(len(sb.points)))
}

// Update refits the triangles, moves their proxies, recomputes the volume
// and applies the pressure forces. Nothing happens while every point sleeps.
func (sb *SoftBody) Update(dt float64) {
	sb.active = false
	for _, p := range sb.points {
		if p.IsActive() && !p.IsStatic() {
			sb.active = true
			break
		}
	}
	if !sb.active {
		return
	}

	sb.refresh()

	for _, t := range sb.triangles {
		t.updateBoundingBox()

		a, b, c := t.Vertices()
		linVel := a.LinearVelocity().Add(b.LinearVelocity()).Add(c.LinearVelocity()).Mul(1.0 / 3.0)
		sb.tree.MoveProxy(t.treeID, t.boundingBox, linVel.Mul(dt))
	}

	sb.addPressureForces()
}

// refresh recomputes the mass, bounding box and volume from the points.
func (sb *SoftBody) refresh() {
	box := geometry.EmptyAABB()
	sb.mass = 0
	for _, p := range sb.points {
		sb.mass += p.Mass()
		box.AddPoint(p.Position())
	}
	sb.boundingBox = box.Inflate(sb.triangleExpansion)

	volume := 0.0
	for _, t := range sb.triangles {
		v1, v2, v3 := t.positions()
		volume -= ((v2.Y()-v1.Y())*(v3.Z()-v1.Z()) - (v2.Z()-v1.Z())*(v3.Y()-v1.Y())) * (v1.X() + v2.X() + v3.X())
	}
	sb.volume = volume / 6.0
}

func (sb *SoftBody) addPressureForces() {
	if sb.Pressure == 0 || sb.volume == 0 {
		return
	}

	invVolume := 1.0 / sb.volume
	for _, t := range sb.triangles {
		v1, v2, v3 := t.positions()
		force := v3.Sub(v1).Cross(v2.Sub(v1)).Mul(invVolume * sb.Pressure)

		a, b, c := t.Vertices()
		a.AddForce(force)
		b.AddForce(force)
		c.AddForce(force)
	}
}

// NearestVertex returns the index of the vertex of t closest to point.
func (sb *SoftBody) NearestVertex(t *Triangle, point mgl64.Vec3) int {
	best := t.indices.I0
	bestDistance := sb.points[best].Position().Sub(point).LenSqr()
	for _, i := range []int{t.indices.I1, t.indices.I2} {
		if d := sb.points[i].Position().Sub(point).LenSqr(); d < bestDistance {
			best, bestDistance = i, d
		}
	}
	return best
}

// QueryTriangles appends to dst the triangles whose fat boxes overlap box.
// Queries only read the tree and may run concurrently.
func (sb *SoftBody) QueryTriangles(box geometry.AABB, dst []*Triangle) []*Triangle {
	sb.tree.Query(box, func(id int) bool {
		dst = append(dst, sb.tree.GetUserData(id))
		return true
	})
	return dst
}

// DoSelfCollision tests every point against the triangles it does not
// belong to and reports the hits against the nearest triangle vertex.
func (sb *SoftBody) DoSelfCollision(collide CollisionHandler) {
	if !sb.SelfCollision {
		return
	}

	world := actor.NewTransform()
	var candidates []*Triangle
	for _, p := range sb.points {
		candidates = sb.QueryTriangles(p.BoundingBox(), candidates[:0])
		for _, t := range candidates {
			if t.Contains(p) {
				continue
			}

			point, normal, penetration, ok := mpr.Detect(p.Shape(), p.Transform(), t, world)
			if !ok {
				continue
			}
			nearest := sb.NearestVertex(t, point)
			collide(p, sb.points[nearest], point, point, normal, penetration)
		}
	}
}

// DebugDraw draws the surface triangles.
func (sb *SoftBody) DebugDraw(drawer actor.DebugDrawer) {
	for _, t := range sb.triangles {
		a, b, c := t.positions()
		drawer.DrawTriangle(a, b, c)
	}
}

// Triangle is one face of a soft body. It is a convex shape in world
// space, inflated by the triangle expansion of its owner.
type Triangle struct {
	owner       *SoftBody
	indices     spatial.TriangleVertexIndices
	boundingBox geometry.AABB
	treeID      int
}

func (t *Triangle) Owner() *SoftBody {
	return t.owner
}

func (t *Triangle) Indices() spatial.TriangleVertexIndices {
	return t.indices
}

func (t *Triangle) BoundingBox() geometry.AABB {
	return t.boundingBox
}

func (t *Triangle) Vertices() (*actor.RigidBody, *actor.RigidBody, *actor.RigidBody) {
	p := t.owner.points
	return p[t.indices.I0], p[t.indices.I1], p[t.indices.I2]
}

// Contains reports whether point is one of the vertices.
func (t *Triangle) Contains(point *actor.RigidBody) bool {
	a, b, c := t.Vertices()
	return point == a || point == b || point == c
}

func (t *Triangle) positions() (mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) {
	a, b, c := t.Vertices()
	return a.Position(), b.Position(), c.Position()
}

// Area is twice the area of the triangle, the length of the edge cross product.
func (t *Triangle) Area() float64 {
	a, b, c := t.positions()
	return b.Sub(a).Cross(c.Sub(a)).Len()
}

func (t *Triangle) SupportMapping(direction mgl64.Vec3) mgl64.Vec3 {
	a, b, c := t.positions()

	result, best := a, a.Dot(direction)
	if d := b.Dot(direction); d > best {
		result, best = b, d
	}
	if d := c.Dot(direction); d > best {
		result = c
	}

	expansion := geometry.SafeNormalize(direction, mgl64.Vec3{}).Mul(t.owner.triangleExpansion)
	return result.Add(expansion)
}

func (t *Triangle) SupportCenter() mgl64.Vec3 {
	a, b, c := t.positions()
	return a.Add(b).Add(c).Mul(1.0 / 3.0)
}

func (t *Triangle) updateBoundingBox() {
	a, b, c := t.positions()
	box := geometry.EmptyAABB()
	box.AddPoint(a)
	box.AddPoint(b)
	box.AddPoint(c)
	t.boundingBox = box.Inflate(t.owner.triangleExpansion)
}

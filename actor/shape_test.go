package actor

import (
	"math"
	"sync"
	"testing"

	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/fxredeemer/jitterphysics-sub000/spatial"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Helper functions
func vec3Equal(a, b mgl64.Vec3, tolerance float64) bool {
	return math.Abs(a.X()-b.X()) < tolerance &&
		math.Abs(a.Y()-b.Y()) < tolerance &&
		math.Abs(a.Z()-b.Z()) < tolerance
}

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func relEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(math.Abs(a), math.Abs(b))
}

// Helper function to compare 3x3 matrices
func mat3Equal(a, b mgl64.Mat3, tolerance float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a.At(i, j)-b.At(i, j)) >= tolerance {
				return false
			}
		}
	}
	return true
}

// ========== MASS & INERTIA ==========
func TestBoxMassInertia(t *testing.T) {
	tests := []struct {
		name string
		size mgl64.Vec3
	}{
		{"unit cube", mgl64.Vec3{1, 1, 1}},
		{"rectangular box 2x3x4", mgl64.Vec3{2, 3, 4}},
		{"thin box", mgl64.Vec3{0.2, 10, 0.2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := NewBox(tt.size)
			sx, sy, sz := tt.size.Elem()

			mass := sx * sy * sz
			if !relEqual(box.Mass(), mass, 1e-4) {
				t.Errorf("Mass() = %v, want %v", box.Mass(), mass)
			}
			if want := mass * (sy*sy + sz*sz) / 12; !relEqual(box.Inertia().At(0, 0), want, 1e-4) {
				t.Errorf("Inertia M11 = %v, want %v", box.Inertia().At(0, 0), want)
			}
			if want := mass * (sx*sx + sz*sz) / 12; !relEqual(box.Inertia().At(1, 1), want, 1e-4) {
				t.Errorf("Inertia M22 = %v, want %v", box.Inertia().At(1, 1), want)
			}
			if !floatEqual(box.Inertia().At(0, 1), 0, 1e-12) {
				t.Errorf("Inertia is not diagonal: %v", box.Inertia())
			}

			lb := box.LocalBoundingBox()
			if !lb.Valid() || !vec3Equal(lb.Max, tt.size.Mul(0.5), 1e-12) {
				t.Errorf("LocalBoundingBox() = %v", lb)
			}
		})
	}
}

func TestHullIntegrationMatchesClosedForms(t *testing.T) {
	tests := []struct {
		name       string
		shape      Shape
		massTol    float64
		inertiaTol float64
	}{
		{"box", NewBox(mgl64.Vec3{2, 1, 3}), 1e-6, 1e-6},
		{"sphere", NewSphere(1.5), 0.03, 0.05},
		{"capsule", NewCapsule(2, 0.5), 0.03, 0.05},
		{"cylinder", NewCylinder(2, 0.7), 0.03, 0.05},
		{"cone", NewCone(2, 1), 0.03, 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mass, com, inertia := CalculateMassInertia(tt.shape)

			if !relEqual(mass, tt.shape.Mass(), tt.massTol) {
				t.Errorf("integrated mass = %v, closed form = %v", mass, tt.shape.Mass())
			}
			if !vec3Equal(com, mgl64.Vec3{}, 0.02) {
				t.Errorf("integrated center of mass = %v, want origin", com)
			}
			for i := 0; i < 3; i++ {
				if !relEqual(inertia.At(i, i), tt.shape.Inertia().At(i, i), tt.inertiaTol) {
					t.Errorf("inertia[%d][%d] = %v, closed form = %v", i, i, inertia.At(i, i), tt.shape.Inertia().At(i, i))
				}
			}
		})
	}
}

func TestConvexHullShiftsToCenterOfMass(t *testing.T) {
	var points []mgl64.Vec3
	for _, x := range []float64{0, 2} {
		for _, y := range []float64{0, 2} {
			for _, z := range []float64{0, 2} {
				points = append(points, mgl64.Vec3{x + 5, y, z})
			}
		}
	}

	hull := NewConvexHull(points)

	if !vec3Equal(hull.Shift(), mgl64.Vec3{-6, -1, -1}, 1e-6) {
		t.Errorf("Shift() = %v, want (-6, -1, -1)", hull.Shift())
	}
	if !relEqual(hull.Mass(), 8, 1e-6) {
		t.Errorf("Mass() = %v, want 8", hull.Mass())
	}
	if !mat3Equal(hull.Inertia(), NewBox(mgl64.Vec3{2, 2, 2}).Inertia(), 1e-6) {
		t.Errorf("Inertia() = %v", hull.Inertia())
	}
	if got := hull.SupportMapping(mgl64.Vec3{1, 1, 1}); !vec3Equal(got, mgl64.Vec3{1, 1, 1}, 1e-9) {
		t.Errorf("SupportMapping() = %v", got)
	}
}

func TestMinkowskiSumRoundedBox(t *testing.T) {
	sum := NewMinkowskiSum(NewBox(mgl64.Vec3{2, 2, 2}), NewSphere(0.5))

	if got := sum.SupportMapping(mgl64.Vec3{1, 0, 0}); !floatEqual(got.X(), 1.5, 1e-6) {
		t.Errorf("support along +X = %v, want x = 1.5", got)
	}
	box := sum.LocalBoundingBox()
	if !vec3Equal(box.Max, mgl64.Vec3{1.5, 1.5, 1.5}, 1e-6) {
		t.Errorf("LocalBoundingBox() = %v", box)
	}
	if sum.Mass() <= 8 || sum.Mass() >= 27 {
		t.Errorf("Mass() = %v, want between the box and its bounding cube", sum.Mass())
	}

	v := sum.Version()
	sum.AddShape(NewSphere(0.1))
	if sum.Version() == v {
		t.Error("AddShape() did not bump the version")
	}
}

func TestSupportMappingIsExtreme(t *testing.T) {
	shapes := map[string]Shape{
		"box":      NewBox(mgl64.Vec3{1, 2, 3}),
		"sphere":   NewSphere(1),
		"capsule":  NewCapsule(2, 0.5),
		"cylinder": NewCylinder(2, 1),
		"cone":     NewCone(3, 1),
	}
	directions := []mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {1, 1, 1}, {-0.3, 0.2, -0.9}}

	for name, s := range shapes {
		t.Run(name, func(t *testing.T) {
			hull := MakeHull(s, 3)
			for _, d := range directions {
				support := s.SupportMapping(d)
				for _, p := range hull {
					if p.Dot(d) > support.Dot(d)+1e-9 {
						t.Fatalf("hull point %v beyond support %v along %v", p, support, d)
					}
				}
			}
		})
	}
}

func TestBoundingBoxRotated(t *testing.T) {
	box := NewBox(mgl64.Vec3{4, 2, 2})
	rot := mgl64.Rotate3DY(math.Pi / 2)

	closed := box.BoundingBox(rot)
	bySupport := SupportBoundingBox(box, rot)

	if !vec3Equal(closed.Min, bySupport.Min, 1e-9) || !vec3Equal(closed.Max, bySupport.Max, 1e-9) {
		t.Errorf("closed form %v != support %v", closed, bySupport)
	}
	if !vec3Equal(closed.Max, mgl64.Vec3{1, 1, 2}, 1e-9) {
		t.Errorf("BoundingBox() = %v", closed)
	}
}

// ========== MULTISHAPES ==========
func TestCompoundParallelAxis(t *testing.T) {
	left := TransformedShape{Shape: NewSphere(1), Transform: Transform{Position: mgl64.Vec3{-2, 0, 0}, Orientation: mgl64.Ident3()}}
	right := TransformedShape{Shape: NewSphere(1), Transform: Transform{Position: mgl64.Vec3{2, 0, 0}, Orientation: mgl64.Ident3()}}
	c := NewCompound([]TransformedShape{left, right})

	m := NewSphere(1).Mass()
	if !relEqual(c.Mass(), 2*m, 1e-9) {
		t.Errorf("Mass() = %v, want %v", c.Mass(), 2*m)
	}

	iSphere := 2.0 / 5.0 * m
	if want := 2 * (iSphere + m*4); !relEqual(c.Inertia().At(1, 1), want, 1e-9) {
		t.Errorf("Iyy = %v, want %v", c.Inertia().At(1, 1), want)
	}
	if !relEqual(c.Inertia().At(0, 0), 2*iSphere, 1e-9) {
		t.Errorf("Ixx = %v, want %v", c.Inertia().At(0, 0), 2*iSphere)
	}

	if n := c.Prepare(geometry.AABB{Min: mgl64.Vec3{1, -1, -1}, Max: mgl64.Vec3{3, 1, 1}}); n != 1 {
		t.Fatalf("Prepare() = %d, want 1", n)
	}
	c.SetCurrentShape(0)
	if got := c.SupportMapping(mgl64.Vec3{1, 0, 0}); !vec3Equal(got, mgl64.Vec3{3, 0, 0}, 1e-9) {
		t.Errorf("SupportMapping() = %v", got)
	}
}

func TestCompoundShiftsOffCenterParts(t *testing.T) {
	part := TransformedShape{Shape: NewBox(mgl64.Vec3{1, 1, 1}), Transform: Transform{Position: mgl64.Vec3{0, 3, 0}, Orientation: mgl64.Ident3()}}
	c := NewCompound([]TransformedShape{part})

	if !vec3Equal(c.Shift(), mgl64.Vec3{0, -3, 0}, 1e-12) {
		t.Errorf("Shift() = %v", c.Shift())
	}

	c.UpdateShape()
	if !vec3Equal(c.Shapes()[0].Transform.Position, mgl64.Vec3{}, 1e-12) {
		t.Errorf("repeated UpdateShape drifted the part to %v", c.Shapes()[0].Transform.Position)
	}
}

func TestWorkingCloneGuard(t *testing.T) {
	positions := []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {0, 0, 10}, {10, 0, 10}}
	mesh := NewTriangleMesh(spatial.NewOctree(positions, []spatial.TriangleVertexIndices{{0, 2, 1}, {1, 2, 3}}))

	clone, release := mesh.RequestWorkingClone()
	if !clone.IsClone() || mesh.IsClone() {
		t.Fatal("clone flags are wrong")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("a clone handed out a clone")
			}
		}()
		clone.RequestWorkingClone()
	}()

	release()
	func() {
		defer func() {
			if recover() == nil {
				t.Error("double release did not panic")
			}
		}()
		release()
	}()

	again, releaseAgain := mesh.RequestWorkingClone()
	defer releaseAgain()
	if again != clone {
		t.Error("released clone was not reused")
	}
}

func TestWorkingClonesConcurrentQueries(t *testing.T) {
	heights := make([][]float64, 16)
	for x := range heights {
		heights[x] = make([]float64, 16)
		for z := range heights[x] {
			heights[x][z] = float64(x+z) * 0.1
		}
	}
	terrain := NewTerrain(heights, 1, 1)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			clone, release := terrain.RequestWorkingClone()
			defer release()

			x := float64(g) + 0.5
			box := geometry.AABB{Min: mgl64.Vec3{x, -1, 2}, Max: mgl64.Vec3{x + 0.2, 5, 2.2}}
			for i := 0; i < 100; i++ {
				n := clone.Prepare(box)
				for k := 0; k < n; k++ {
					clone.SetCurrentShape(k)
					p := clone.SupportMapping(mgl64.Vec3{0, 1, 0})
					if p.X() < x-2 || p.X() > x+3 {
						t.Errorf("clone %d answered with a foreign triangle %v", g, p)
						return
					}
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestTerrainTriangles(t *testing.T) {
	heights := [][]float64{
		{0, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	}
	terrain := NewTerrain(heights, 2, 2)

	box := terrain.LocalBoundingBox()
	if !floatEqual(box.Max.Y(), 1+DefaultSphericalExpansion, 1e-12) || !floatEqual(box.Max.X(), 4+DefaultSphericalExpansion, 1e-12) {
		t.Errorf("LocalBoundingBox() = %v", box)
	}

	n := terrain.Prepare(geometry.AABB{Min: mgl64.Vec3{0.1, -1, 0.1}, Max: mgl64.Vec3{0.2, 1, 0.2}})
	if n == 0 {
		t.Fatal("Prepare() found no triangle under the query")
	}
	for i := 0; i < n; i++ {
		terrain.SetCurrentShape(i)
		if terrain.CurrentNormal().Y() <= 0 {
			t.Errorf("triangle %d normal %v does not point up", i, terrain.CurrentNormal())
		}
	}

	if terrain.Prepare(geometry.AABB{Min: mgl64.Vec3{10, -1, 10}, Max: mgl64.Vec3{11, 1, 11}}) != 0 {
		t.Error("Prepare() outside the grid returned candidates")
	}
}

func TestTriangleMeshFromR3(t *testing.T) {
	vertices := []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 1}}
	mesh := NewTriangleMeshR3(vertices, []spatial.TriangleVertexIndices{{0, 2, 1}})

	if mesh.Octree().NumTriangles() != 1 {
		t.Fatalf("NumTriangles() = %d", mesh.Octree().NumTriangles())
	}
	if n := mesh.Prepare(geometry.AABB{Min: mgl64.Vec3{0.1, -0.1, 0.1}, Max: mgl64.Vec3{0.2, 0.1, 0.2}}); n != 1 {
		t.Fatalf("Prepare() = %d, want 1", n)
	}
	mesh.SetCurrentShape(0)
	if mesh.CurrentNormal().Y() <= 0 {
		t.Errorf("CurrentNormal() = %v, want +Y", mesh.CurrentNormal())
	}
	if got := mesh.SupportMapping(mgl64.Vec3{0, 1, 0}); !floatEqual(got.Y(), DefaultSphericalExpansion, 1e-12) {
		t.Errorf("SupportMapping(+Y) = %v", got)
	}
}

package gjk

import (
	"math"
	"testing"

	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Test helper functions

func at(position mgl64.Vec3) actor.Transform {
	return actor.Transform{Position: position, Orientation: mgl64.Ident3()}
}

func vecNear(a, b mgl64.Vec3, tolerance float64) bool {
	return a.Sub(b).Len() < tolerance
}

// MinkowskiSupport tests

func TestMinkowskiSupport(t *testing.T) {
	t.Run("two separated spheres along x-axis", func(t *testing.T) {
		a, b := actor.NewSphere(1), actor.NewSphere(1)

		support := MinkowskiSupport(a, at(mgl64.Vec3{0, 0, 0}), b, at(mgl64.Vec3{3, 0, 0}), mgl64.Vec3{1, 0, 0})

		// max(A.x) - min(B.x) = 1 - 2 = -1
		if math.Abs(support.X()-(-1)) > 1e-12 {
			t.Errorf("Expected support.X = -1, got %v", support.X())
		}
	})

	t.Run("overlapping spheres", func(t *testing.T) {
		a, b := actor.NewSphere(1), actor.NewSphere(1)

		support := MinkowskiSupport(a, at(mgl64.Vec3{0, 0, 0}), b, at(mgl64.Vec3{1.5, 0, 0}), mgl64.Vec3{1, 0, 0})

		if math.Abs(support.X()-0.5) > 1e-12 {
			t.Errorf("Expected support.X = 0.5, got %v", support.X())
		}
	})
}

// ClosestPoints tests

func TestClosestPoints(t *testing.T) {
	tests := []struct {
		name       string
		a, b       actor.SupportMappable
		posA, posB mgl64.Vec3
		wantP1     mgl64.Vec3
		wantP2     mgl64.Vec3
		wantNormal mgl64.Vec3
	}{
		{
			name: "spheres along x",
			a:    actor.NewSphere(1), b: actor.NewSphere(1),
			posA: mgl64.Vec3{0, 0, 0}, posB: mgl64.Vec3{5, 0, 0},
			wantP1: mgl64.Vec3{1, 0, 0}, wantP2: mgl64.Vec3{4, 0, 0},
			wantNormal: mgl64.Vec3{-1, 0, 0},
		},
		{
			name: "sphere above box",
			a:    actor.NewSphere(0.5), b: actor.NewBox(mgl64.Vec3{4, 2, 4}),
			posA: mgl64.Vec3{0.3, 3, -0.2}, posB: mgl64.Vec3{0, 0, 0},
			wantP1: mgl64.Vec3{0.3, 2.5, -0.2}, wantP2: mgl64.Vec3{0.3, 1, -0.2},
			wantNormal: mgl64.Vec3{0, 1, 0},
		},
		{
			name: "boxes side by side",
			a:    actor.NewBox(mgl64.Vec3{2, 2, 2}), b: actor.NewBox(mgl64.Vec3{2, 2, 2}),
			posA: mgl64.Vec3{0, 0, 0}, posB: mgl64.Vec3{0, 0, 3},
			wantNormal: mgl64.Vec3{0, 0, -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p1, p2, normal, ok := ClosestPoints(tt.a, at(tt.posA), tt.b, at(tt.posB))
			if !ok {
				t.Fatal("ClosestPoints() reported a degenerate simplex")
			}

			if tt.wantP1 != (mgl64.Vec3{}) && !vecNear(p1, tt.wantP1, 1e-2) {
				t.Errorf("p1 = %v, want %v", p1, tt.wantP1)
			}
			if tt.wantP2 != (mgl64.Vec3{}) && !vecNear(p2, tt.wantP2, 1e-2) {
				t.Errorf("p2 = %v, want %v", p2, tt.wantP2)
			}
			if !vecNear(normal, tt.wantNormal, 1e-2) {
				t.Errorf("normal = %v, want %v", normal, tt.wantNormal)
			}

			gap := p1.Sub(p2).Len()
			want := tt.posB.Sub(tt.posA).Len()
			if gap <= 0 || gap > want {
				t.Errorf("gap = %v is not a separation", gap)
			}
		})
	}
}

func TestClosestPointsOverlapping(t *testing.T) {
	_, _, normal, _ := ClosestPoints(actor.NewSphere(1), at(mgl64.Vec3{}), actor.NewSphere(1), at(mgl64.Vec3{0.5, 0.2, 0}))

	if normal.Len() > 1+1e-9 {
		t.Errorf("normal %v is not normalized", normal)
	}
}

// Raycast tests

func TestRaycast(t *testing.T) {
	tests := []struct {
		name         string
		shape        actor.SupportMappable
		pose         actor.Transform
		origin       mgl64.Vec3
		direction    mgl64.Vec3
		wantHit      bool
		wantFraction float64
		wantNormal   mgl64.Vec3
	}{
		{
			name:  "down onto a box",
			shape: actor.NewBox(mgl64.Vec3{2, 2, 2}), pose: at(mgl64.Vec3{}),
			origin: mgl64.Vec3{0, 10, 0}, direction: mgl64.Vec3{0, -1, 0},
			wantHit: true, wantFraction: 9, wantNormal: mgl64.Vec3{0, 1, 0},
		},
		{
			name:  "scaled direction onto a sphere",
			shape: actor.NewSphere(1), pose: at(mgl64.Vec3{5, 0, 0}),
			origin: mgl64.Vec3{0, 0, 0}, direction: mgl64.Vec3{2, 0, 0},
			wantHit: true, wantFraction: 2, wantNormal: mgl64.Vec3{-1, 0, 0},
		},
		{
			name:  "pointing away",
			shape: actor.NewSphere(1), pose: at(mgl64.Vec3{5, 0, 0}),
			origin: mgl64.Vec3{0, 0, 0}, direction: mgl64.Vec3{-1, 0, 0},
			wantHit: false,
		},
		{
			name:  "passing beside",
			shape: actor.NewSphere(1), pose: at(mgl64.Vec3{5, 0, 0}),
			origin: mgl64.Vec3{0, 3, 0}, direction: mgl64.Vec3{1, 0, 0},
			wantHit: false,
		},
		{
			name:   "rotated box",
			shape:  actor.NewBox(mgl64.Vec3{2, 2, 2}),
			pose:   actor.Transform{Position: mgl64.Vec3{0, 0, 0}, Orientation: mgl64.Rotate3DZ(math.Pi / 4)},
			origin: mgl64.Vec3{10, 0, 0}, direction: mgl64.Vec3{-1, 0, 0},
			wantHit: true, wantFraction: 10 - math.Sqrt2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fraction, normal, hit := Raycast(tt.shape, tt.pose, tt.origin, tt.direction)

			if hit != tt.wantHit {
				t.Fatalf("hit = %v, want %v", hit, tt.wantHit)
			}
			if !hit {
				return
			}
			if math.Abs(fraction-tt.wantFraction) > 1e-2 {
				t.Errorf("fraction = %v, want %v", fraction, tt.wantFraction)
			}
			if tt.wantNormal != (mgl64.Vec3{}) && !vecNear(normal, tt.wantNormal, 0.05) {
				t.Errorf("normal = %v, want %v", normal, tt.wantNormal)
			}
		})
	}
}

func TestPointcast(t *testing.T) {
	box := actor.NewBox(mgl64.Vec3{2, 2, 2})
	pose := at(mgl64.Vec3{1, 0, 0})

	tests := []struct {
		point mgl64.Vec3
		want  bool
	}{
		{mgl64.Vec3{1, 0, 0}, true},
		{mgl64.Vec3{1.5, 0.5, -0.5}, true},
		{mgl64.Vec3{3, 0, 0}, false},
		{mgl64.Vec3{1, 2, 0}, false},
	}

	for _, tt := range tests {
		if got := Pointcast(box, pose, tt.point); got != tt.want {
			t.Errorf("Pointcast(%v) = %v, want %v", tt.point, got, tt.want)
		}
	}
}

// Simplex solver tests

func TestClosestPtPointTriangle(t *testing.T) {
	a := mgl64.Vec3{-1, 1, -1}
	b := mgl64.Vec3{1, 1, -1}
	c := mgl64.Vec3{0, 1, 1}

	var r subSimplex
	closestPtPointTriangle(mgl64.Vec3{}, a, b, c, &r)

	if !vecNear(r.closest, mgl64.Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("closest = %v, want (0, 1, 0)", r.closest)
	}
	if !r.used[vertexA] || !r.used[vertexB] || !r.used[vertexC] {
		t.Errorf("face region should use every vertex, got %v", r.used)
	}
	sum := r.bary[0] + r.bary[1] + r.bary[2]
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("barycentric weights sum to %v", sum)
	}

	closestPtPointTriangle(mgl64.Vec3{-5, 1, -5}, a, b, c, &r)
	if r.closest != a || r.used[vertexB] || r.used[vertexC] {
		t.Errorf("vertex region: closest = %v used = %v", r.closest, r.used)
	}
}

func TestClosestPtPointTetrahedron(t *testing.T) {
	a := mgl64.Vec3{-1, -1, -1}
	b := mgl64.Vec3{1, -1, -1}
	c := mgl64.Vec3{0, 1, -1}
	d := mgl64.Vec3{0, 0, 1}

	var r subSimplex
	if closestPtPointTetrahedron(mgl64.Vec3{0, -0.2, -0.5}, a, b, c, d, &r) {
		t.Error("point inside reported as separated")
	}

	r = subSimplex{}
	if !closestPtPointTetrahedron(mgl64.Vec3{0, -0.2, -3}, a, b, c, d, &r) {
		t.Fatal("point outside reported as inside")
	}
	if math.Abs(r.closest.Z()-(-1)) > 1e-12 || r.used[vertexD] {
		t.Errorf("closest = %v used = %v, want the base face", r.closest, r.used)
	}

	r = subSimplex{}
	flat := mgl64.Vec3{0.5, 0, -1}
	closestPtPointTetrahedron(mgl64.Vec3{}, a, b, c, flat, &r)
	if !r.degenerate {
		t.Error("flat tetrahedron not reported as degenerate")
	}
}

func BenchmarkClosestPoints(b *testing.B) {
	box := actor.NewBox(mgl64.Vec3{1, 1, 1})
	sphere := actor.NewSphere(0.5)
	ta, tb := at(mgl64.Vec3{}), at(mgl64.Vec3{1.5, 0.7, 0.2})

	for b.Loop() {
		ClosestPoints(box, ta, sphere, tb)
	}
}

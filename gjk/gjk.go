// Package gjk implements the Gilbert-Johnson-Keerthi (GJK) distance algorithm.
//
// GJK walks a simplex over the Minkowski difference of two convex shapes
// toward the origin. The closest point of the final simplex gives the
// separation of the shapes and, through the barycentric weights of its
// vertices, a witness point on each shape. The same machinery casts rays
// against a single shape.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Van den Bergen: "Ray Casting against General Convex Objects with Application
//     to Continuous Collision Detection" (2004)
//   - Ericson: "Real-Time Collision Detection" (2005), chapter 5
package gjk

import (
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// ClosestPointsIterations caps the refinement of ClosestPoints
	ClosestPointsIterations = 15
	// RaycastIterations caps the refinement of Raycast and Pointcast
	RaycastIterations = 34

	closestPointsEpsilon = 1e-5
	raycastEpsilon       = 1e-6
)

// MinkowskiSupport computes a support point in the Minkowski difference (A - B)
// of two posed shapes.
func MinkowskiSupport(a actor.SupportMappable, ta actor.Transform, b actor.SupportMappable, tb actor.Transform, direction mgl64.Vec3) mgl64.Vec3 {
	return ta.Support(a, direction).Sub(tb.Support(b, direction.Mul(-1)))
}

func acquire() *Simplex {
	s := SimplexPool.Get().(*Simplex)
	s.Reset()
	return s
}

// ClosestPoints finds the closest points of two posed convex shapes. The
// normal points from the second shape toward the first and is zero when the
// shapes overlap. ok is false when the simplex degenerated.
func ClosestPoints(a actor.SupportMappable, ta actor.Transform, b actor.SupportMappable, tb actor.Transform) (p1, p2, normal mgl64.Vec3, ok bool) {
	simplex := acquire()
	defer SimplexPool.Put(simplex)

	r := ta.Position.Sub(tb.Position)
	supportA := ta.Support(a, r.Mul(-1))
	supportB := tb.Support(b, r)
	v := supportA.Sub(supportB)

	ok = true
	distSq := v.LenSqr()
	for i := 0; distSq > closestPointsEpsilon && i < ClosestPointsIterations; i++ {
		supportA = ta.Support(a, v.Mul(-1))
		supportB = tb.Support(b, v)
		w := supportA.Sub(supportB)

		if !simplex.InSimplex(w) {
			simplex.AddVertex(w, supportA, supportB)
		}

		if v, ok = simplex.Closest(); ok {
			distSq = v.LenSqr()
			normal = v
		} else {
			distSq = 0
		}
	}

	if simplex.NumVertices() == 0 {
		// The first support points already coincide
		return supportA, supportB, mgl64.Vec3{}, true
	}

	p1, p2 = simplex.ComputePoints()
	if normal.LenSqr() > geometry.Epsilon*geometry.Epsilon {
		normal = normal.Normalize()
	}
	return p1, p2, normal, ok
}

// Raycast casts a ray against a posed convex shape. fraction is the hit
// distance in units of len(direction); normal is the surface normal at the
// hit, pointing toward the ray origin.
func Raycast(s actor.SupportMappable, t actor.Transform, origin, direction mgl64.Vec3) (fraction float64, normal mgl64.Vec3, hit bool) {
	simplex := acquire()
	defer SimplexPool.Put(simplex)

	lambda := 0.0
	x := origin

	v := x.Sub(t.Support(s, direction))
	distSq := v.LenSqr()

	for i := 0; distSq > raycastEpsilon && i < RaycastIterations; i++ {
		p := t.Support(s, v)
		w := x.Sub(p)

		vDotW := v.Dot(w)
		if vDotW > 0 {
			vDotR := v.Dot(direction)
			if vDotR >= -geometry.Epsilon {
				return 0, mgl64.Vec3{}, false
			}

			lambda -= vDotW / vDotR
			x = origin.Add(direction.Mul(lambda))
			w = x.Sub(p)
			normal = v
		}

		if !simplex.InSimplex(w) {
			simplex.AddVertex(w, x, p)
		}

		var valid bool
		if v, valid = simplex.Closest(); valid {
			distSq = v.LenSqr()
		} else {
			distSq = 0
		}
	}

	if simplex.NumVertices() == 0 {
		return 0, mgl64.Vec3{}, true
	}

	_, onShape := simplex.ComputePoints()
	fraction = onShape.Sub(origin).Len() / direction.Len()

	if normal.LenSqr() > geometry.Epsilon*geometry.Epsilon {
		normal = normal.Normalize()
	}
	return fraction, normal, true
}

// Pointcast reports whether point lies inside the posed convex shape.
func Pointcast(s actor.SupportMappable, t actor.Transform, point mgl64.Vec3) bool {
	simplex := acquire()
	defer SimplexPool.Put(simplex)

	v := point.Sub(t.Center(s))
	if v.LenSqr() < geometry.Epsilon {
		return true
	}

	distSq := v.LenSqr()
	for i := 0; distSq > raycastEpsilon && i < RaycastIterations; i++ {
		p := t.Support(s, v)
		w := point.Sub(p)

		if v.Dot(w) > 0 {
			return false
		}

		if !simplex.InSimplex(w) {
			simplex.AddVertex(w, point, p)
		}

		var valid bool
		if v, valid = simplex.Closest(); valid {
			distSq = v.LenSqr()
		} else {
			distSq = 0
		}
	}

	return true
}

// Package mpr implements Minkowski Portal Refinement (XenoCollide) for
// penetration detection between convex shapes.
//
// MPR searches the Minkowski difference of two shapes for a portal: a
// triangle of support points crossed by the ray from an interior point to
// the origin. The portal is then pushed outward along its own normal until
// it lies on the boundary. If the origin sits behind the final portal the
// shapes overlap, and the portal normal is the contact normal.
//
// References:
//   - Snethen: "XenoCollide: Complex Collision Made Simple", Game Programming Gems 7 (2008)
package mpr

import (
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxIterations caps both the portal search and its refinement
	MaxIterations = 34

	// CollideEpsilon stops refinement once the portal moves less than this
	CollideEpsilon = 1e-4
)

func nearlyZero(v mgl64.Vec3) bool {
	return v.LenSqr() < 1e-12
}

// Detect tests two posed convex shapes for penetration. On overlap it
// returns a point halfway between the shapes, the unit contact normal
// pointing from a toward b, and the penetration depth along that normal.
func Detect(a actor.SupportMappable, ta actor.Transform, b actor.SupportMappable, tb actor.Transform) (point, normal mgl64.Vec3, penetration float64, ok bool) {
	// The portal walks the difference a - b: its outward normal then
	// points from a toward b.
	supportA := func(dir mgl64.Vec3) mgl64.Vec3 { return ta.Support(a, dir) }
	supportB := func(dir mgl64.Vec3) mgl64.Vec3 { return tb.Support(b, dir) }

	v01 := ta.Center(a)
	v02 := tb.Center(b)

	// Interior point of the Minkowski difference
	v0 := v01.Sub(v02)
	if nearlyZero(v0) {
		v0 = mgl64.Vec3{0.00001, 0, 0}
	}

	// v1 = support in direction of origin
	n := v0.Mul(-1)
	v11, v12 := supportA(n), supportB(v0)
	v1 := v11.Sub(v12)
	if v1.Dot(n) <= 0 {
		return point, normal, 0, false
	}

	// v2 = support perpendicular to v1 and v0
	n = v1.Cross(v0)
	if nearlyZero(n) {
		// Origin on the segment v0-v1
		n = v1.Sub(v0).Normalize()
		point = v11.Add(v12).Mul(0.5)
		return point, n, v11.Sub(v12).Dot(n), true
	}

	v21, v22 := supportA(n), supportB(n.Mul(-1))
	v2 := v21.Sub(v22)
	if v2.Dot(n) <= 0 {
		return point, normal, 0, false
	}

	// Orient the plane (v0, v1, v2) so the origin is on its positive side
	n = v1.Sub(v0).Cross(v2.Sub(v0))
	if n.Dot(v0) > 0 {
		v1, v2 = v2, v1
		v11, v21 = v21, v11
		v12, v22 = v22, v12
		n = n.Mul(-1)
	}

	var v3, v31, v32 mgl64.Vec3
	hit := false

	// ========== PHASE 1: FIND A PORTAL ==========
	for phase1 := 0; ; phase1++ {
		if phase1 > MaxIterations {
			return point, normal, 0, false
		}

		v31, v32 = supportA(n), supportB(n.Mul(-1))
		v3 = v31.Sub(v32)
		if v3.Dot(n) <= 0 {
			return point, normal, 0, false
		}

		// Origin outside (v1, v0, v3): drop v2
		if v1.Cross(v3).Dot(v0) < 0 {
			v2, v21, v22 = v3, v31, v32
			n = v1.Sub(v0).Cross(v3.Sub(v0))
			continue
		}

		// Origin outside (v3, v0, v2): drop v1
		if v3.Cross(v2).Dot(v0) < 0 {
			v1, v11, v12 = v3, v31, v32
			n = v3.Sub(v0).Cross(v2.Sub(v0))
			continue
		}

		break
	}

	// ========== PHASE 2: REFINE THE PORTAL ==========
	for phase2 := 1; ; phase2++ {
		n = v2.Sub(v1).Cross(v3.Sub(v1))
		if nearlyZero(n) {
			// Flat portal, no usable normal
			return point, normal, 0, false
		}
		n = n.Normalize()

		// Origin behind the portal
		if n.Dot(v1) >= 0 {
			hit = true
		}

		v41, v42 := supportA(n), supportB(n.Mul(-1))
		v4 := v41.Sub(v42)

		delta := v4.Sub(v3).Dot(n)
		penetration = v4.Dot(n)

		if delta <= CollideEpsilon || penetration <= 0 || phase2 > MaxIterations {
			if !hit {
				return point, normal, 0, false
			}

			point = witness(v0, v1, v2, v3, n, [4]mgl64.Vec3{v01, v11, v21, v31}, [4]mgl64.Vec3{v02, v12, v22, v32})
			return point, n, penetration, true
		}

		// Split the portal with the plane through v4, v0 and the origin
		split := v4.Cross(v0)
		if split.Dot(v1) >= 0 {
			if split.Dot(v2) >= 0 {
				v1, v11, v12 = v4, v41, v42
			} else {
				v3, v31, v32 = v4, v41, v42
			}
		} else {
			if split.Dot(v3) >= 0 {
				v2, v21, v22 = v4, v41, v42
			} else {
				v1, v11, v12 = v4, v41, v42
			}
		}
	}
}

// witness rebuilds the contact point from the barycentric coordinates of the
// origin in the tetrahedron (v0, v1, v2, v3), averaging the points on both
// shapes.
func witness(v0, v1, v2, v3, n mgl64.Vec3, onA, onB [4]mgl64.Vec3) mgl64.Vec3 {
	b0 := v1.Cross(v2).Dot(v3)
	b1 := v3.Cross(v2).Dot(v0)
	b2 := v0.Cross(v1).Dot(v3)
	b3 := v2.Cross(v1).Dot(v0)

	sum := b0 + b1 + b2 + b3
	if sum <= 0 {
		// Origin on the portal, project onto it instead
		b0 = 0
		b1 = v2.Cross(v3).Dot(n)
		b2 = v3.Cross(v1).Dot(n)
		b3 = v1.Cross(v2).Dot(n)
		sum = b1 + b2 + b3
	}

	weights := [4]float64{b0, b1, b2, b3}
	var point mgl64.Vec3
	for i := range weights {
		point = point.Add(onA[i].Add(onB[i]).Mul(weights[i]))
	}
	return point.Mul(0.5 / sum)
}

// SupportPoints projects the midpoint of a contact onto the deepest point of
// each shape along the normal, giving the contact point on a and on b.
func SupportPoints(a actor.SupportMappable, ta actor.Transform, b actor.SupportMappable, tb actor.Transform, point, normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	sA := ta.Support(a, normal).Sub(point)
	sB := tb.Support(b, normal.Mul(-1)).Sub(point)

	return point.Add(normal.Mul(sA.Dot(normal))), point.Add(normal.Mul(sB.Dot(normal)))
}

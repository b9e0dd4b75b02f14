package actor

import (
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultHullGenerations is the subdivision depth used for mass properties.
const DefaultHullGenerations = 4

type clipTriangle struct {
	n1, n2, n3 mgl64.Vec3
	generation int
}

// MakeHull tessellates the surface of s into triangles by recursively
// subdividing the faces of an octahedron and projecting every direction
// through the support mapping. The result holds three vertices per triangle,
// wound counter-clockwise when seen from outside.
func MakeHull(s SupportMappable, generationThreshold int) []mgl64.Vec3 {
	const distanceThreshold = 0.0

	if generationThreshold <= 0 {
		generationThreshold = DefaultHullGenerations
	}

	active := make([]clipTriangle, 0, 64)
	for _, sx := range []float64{1, -1} {
		for _, sy := range []float64{1, -1} {
			for _, sz := range []float64{1, -1} {
				tri := clipTriangle{
					n1: mgl64.Vec3{sx, 0, 0},
					n2: mgl64.Vec3{0, sy, 0},
					n3: mgl64.Vec3{0, 0, sz},
				}
				if sx*sy*sz < 0 {
					tri.n2, tri.n3 = tri.n3, tri.n2
				}
				active = append(active, tri)
			}
		}
	}

	triangles := make([]mgl64.Vec3, 0, 3*8<<(2*generationThreshold))
	for len(active) > 0 {
		tri := active[len(active)-1]
		active = active[:len(active)-1]

		p1 := s.SupportMapping(tri.n1)
		p2 := s.SupportMapping(tri.n2)
		p3 := s.SupportMapping(tri.n3)

		d1 := p2.Sub(p1).LenSqr()
		d2 := p3.Sub(p2).LenSqr()
		d3 := p1.Sub(p3).LenSqr()

		if max(d1, d2, d3) > distanceThreshold && tri.generation < generationThreshold {
			m12 := tri.n1.Add(tri.n2).Normalize()
			m23 := tri.n2.Add(tri.n3).Normalize()
			m31 := tri.n3.Add(tri.n1).Normalize()
			g := tri.generation + 1

			active = append(active,
				clipTriangle{n1: tri.n1, n2: m12, n3: m31, generation: g},
				clipTriangle{n1: m12, n2: tri.n2, n3: m23, generation: g},
				clipTriangle{n1: m31, n2: m23, n3: tri.n3, generation: g},
				clipTriangle{n1: m12, n2: m23, n3: m31, generation: g},
			)
			continue
		}

		if p2.Sub(p1).Cross(p3.Sub(p1)).LenSqr() > 1e-20 {
			triangles = append(triangles, p1, p2, p3)
		}
	}

	return triangles
}

// CalculateMassInertia integrates the tessellated hull of s, treating each
// triangle and the origin as a tetrahedron. It returns the volume, the center
// of mass and the inertia tensor about that center, for density 1.
func CalculateMassInertia(s SupportMappable) (float64, mgl64.Vec3, mgl64.Mat3) {
	return integrateTriangles(MakeHull(s, DefaultHullGenerations))
}

func integrateTriangles(triangles []mgl64.Vec3) (float64, mgl64.Vec3, mgl64.Mat3) {
	// Covariance of the canonical tetrahedron (0,0,0) (1,0,0) (0,1,0) (0,0,1)
	const a, b = 1.0 / 60.0, 1.0 / 120.0
	canonical := mgl64.Mat3{
		a, b, b,
		b, a, b,
		b, b, a,
	}

	var mass float64
	var com mgl64.Vec3
	var covariance mgl64.Mat3

	for i := 0; i+2 < len(triangles); i += 3 {
		A := mgl64.Mat3FromCols(triangles[i], triangles[i+1], triangles[i+2])
		det := A.Det()

		tetraVolume := det / 6.0
		tetraCOM := triangles[i].Add(triangles[i+1]).Add(triangles[i+2]).Mul(0.25)

		covariance = covariance.Add(A.Mul3(canonical).Mul3(A.Transpose()).Mul(det))
		com = com.Add(tetraCOM.Mul(tetraVolume))
		mass += tetraVolume
	}

	if mass <= 0 {
		return 0, mgl64.Vec3{}, mgl64.Mat3{}
	}
	com = com.Mul(1.0 / mass)

	// Move the covariance to the center of mass, then convert to inertia
	covariance = covariance.Sub(com.OuterProd3(com).Mul(mass))
	inertia := mgl64.Ident3().Mul(covariance.Trace()).Sub(covariance)

	return mass, com, inertia
}

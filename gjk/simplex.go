package gjk

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	vertexA = iota
	vertexB
	vertexC
	vertexD
)

// subSimplex is the feature of the simplex closest to the query point, with
// the barycentric weights of the vertices that span it.
type subSimplex struct {
	closest    mgl64.Vec3
	used       [4]bool
	bary       [4]float64
	degenerate bool
}

func (r *subSimplex) reset() {
	*r = subSimplex{}
}

func (r *subSimplex) setBary(a, b, c, d float64) {
	r.bary = [4]float64{a, b, c, d}
}

func (r *subSimplex) valid() bool {
	return r.bary[0] >= 0 && r.bary[1] >= 0 && r.bary[2] >= 0 && r.bary[3] >= 0
}

// Simplex is a Voronoi-region simplex solver holding up to four vertices of
// the Minkowski difference together with the support points on each shape
// that produced them.
type Simplex struct {
	count int
	w     [4]mgl64.Vec3 // Minkowski difference vertices
	p     [4]mgl64.Vec3 // support points on the first shape
	q     [4]mgl64.Vec3 // support points on the second shape

	lastW       mgl64.Vec3
	needsUpdate bool

	cachedP1    mgl64.Vec3
	cachedP2    mgl64.Vec3
	cachedV     mgl64.Vec3
	cachedValid bool
	cachedBC    subSimplex
}

var SimplexPool = sync.Pool{
	New: func() interface{} {
		return &Simplex{}
	},
}

func (s *Simplex) Reset() {
	s.count = 0
	s.needsUpdate = true
	s.cachedValid = false
	s.lastW = mgl64.Vec3{1e30, 1e30, 1e30}
	s.cachedBC.reset()
}

func (s *Simplex) NumVertices() int {
	return s.count
}

func (s *Simplex) FullSimplex() bool {
	return s.count == 4
}

// AddVertex appends w = p - q to the simplex.
func (s *Simplex) AddVertex(w, p, q mgl64.Vec3) {
	s.lastW = w
	s.needsUpdate = true

	s.w[s.count] = w
	s.p[s.count] = p
	s.q[s.count] = q
	s.count++
}

// InSimplex reports whether w is already one of the vertices.
func (s *Simplex) InSimplex(w mgl64.Vec3) bool {
	for i := 0; i < s.count; i++ {
		if s.w[i].Sub(w).LenSqr() < 1e-20 {
			return true
		}
	}
	return w == s.lastW
}

// Closest returns the point of the simplex closest to the origin and reduces
// the simplex to the feature containing it. It reports false when the
// simplex degenerated.
func (s *Simplex) Closest() (mgl64.Vec3, bool) {
	ok := s.update()
	return s.cachedV, ok
}

// ComputePoints returns the witness points on each shape.
func (s *Simplex) ComputePoints() (mgl64.Vec3, mgl64.Vec3) {
	s.update()
	return s.cachedP1, s.cachedP2
}

// MaxVertex returns the largest squared length among the vertices.
func (s *Simplex) MaxVertex() float64 {
	var m float64
	for i := 0; i < s.count; i++ {
		m = max(m, s.w[i].LenSqr())
	}
	return m
}

func (s *Simplex) removeVertex(index int) {
	s.count--
	s.w[index] = s.w[s.count]
	s.p[index] = s.p[s.count]
	s.q[index] = s.q[s.count]
}

func (s *Simplex) reduceVertices(used [4]bool) {
	if s.count >= 4 && !used[vertexD] {
		s.removeVertex(3)
	}
	if s.count >= 3 && !used[vertexC] {
		s.removeVertex(2)
	}
	if s.count >= 2 && !used[vertexB] {
		s.removeVertex(1)
	}
	if s.count >= 1 && !used[vertexA] {
		s.removeVertex(0)
	}
}

func (s *Simplex) weighted(points *[4]mgl64.Vec3, n int) mgl64.Vec3 {
	var out mgl64.Vec3
	for i := 0; i < n; i++ {
		out = out.Add(points[i].Mul(s.cachedBC.bary[i]))
	}
	return out
}

func (s *Simplex) update() bool {
	if !s.needsUpdate {
		return s.cachedValid
	}

	s.cachedBC.reset()
	s.needsUpdate = false

	switch s.count {
	case 0:
		s.cachedValid = false

	case 1:
		s.cachedP1 = s.p[0]
		s.cachedP2 = s.q[0]
		s.cachedV = s.cachedP1.Sub(s.cachedP2)
		s.cachedBC.setBary(1, 0, 0, 0)
		s.cachedValid = s.cachedBC.valid()

	case 2:
		from, to := s.w[0], s.w[1]
		diff := from.Mul(-1)
		v := to.Sub(from)

		t := v.Dot(diff)
		if t > 0 {
			dotVV := v.Dot(v)
			if t < dotVV {
				t /= dotVV
				s.cachedBC.used[vertexA] = true
				s.cachedBC.used[vertexB] = true
			} else {
				t = 1
				s.cachedBC.used[vertexB] = true
			}
		} else {
			t = 0
			s.cachedBC.used[vertexA] = true
		}

		s.cachedBC.setBary(1-t, t, 0, 0)
		s.cachedBC.closest = from.Add(v.Mul(t))

		s.cachedP1 = s.p[0].Add(s.p[1].Sub(s.p[0]).Mul(t))
		s.cachedP2 = s.q[0].Add(s.q[1].Sub(s.q[0]).Mul(t))
		s.cachedV = s.cachedP1.Sub(s.cachedP2)

		s.reduceVertices(s.cachedBC.used)
		s.cachedValid = s.cachedBC.valid()

	case 3:
		closestPtPointTriangle(mgl64.Vec3{}, s.w[0], s.w[1], s.w[2], &s.cachedBC)

		s.cachedP1 = s.weighted(&s.p, 3)
		s.cachedP2 = s.weighted(&s.q, 3)
		s.cachedV = s.cachedP1.Sub(s.cachedP2)

		s.reduceVertices(s.cachedBC.used)
		s.cachedValid = s.cachedBC.valid()

	case 4:
		separated := closestPtPointTetrahedron(mgl64.Vec3{}, s.w[0], s.w[1], s.w[2], s.w[3], &s.cachedBC)
		if !separated {
			// Origin inside the tetrahedron, or a flat tetrahedron
			if s.cachedBC.degenerate {
				s.cachedValid = false
			} else {
				s.cachedValid = true
				s.cachedV = mgl64.Vec3{}
			}
			return s.cachedValid
		}

		s.cachedP1 = s.weighted(&s.p, 4)
		s.cachedP2 = s.weighted(&s.q, 4)
		s.cachedV = s.cachedP1.Sub(s.cachedP2)

		s.reduceVertices(s.cachedBC.used)
		s.cachedValid = s.cachedBC.valid()
	}

	return s.cachedValid
}

// closestPtPointTriangle finds the point of triangle abc closest to p by
// walking its Voronoi regions.
func closestPtPointTriangle(p, a, b, c mgl64.Vec3, result *subSimplex) {
	result.used = [4]bool{}

	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		result.closest = a
		result.used[vertexA] = true
		result.setBary(1, 0, 0, 0)
		return
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		result.closest = b
		result.used[vertexB] = true
		result.setBary(0, 1, 0, 0)
		return
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		result.closest = a.Add(ab.Mul(v))
		result.used[vertexA] = true
		result.used[vertexB] = true
		result.setBary(1-v, v, 0, 0)
		return
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		result.closest = c
		result.used[vertexC] = true
		result.setBary(0, 0, 1, 0)
		return
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		result.closest = a.Add(ac.Mul(w))
		result.used[vertexA] = true
		result.used[vertexC] = true
		result.setBary(1-w, 0, w, 0)
		return
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		result.closest = b.Add(c.Sub(b).Mul(w))
		result.used[vertexB] = true
		result.used[vertexC] = true
		result.setBary(0, 1-w, w, 0)
		return
	}

	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	result.closest = a.Add(ab.Mul(v)).Add(ac.Mul(w))
	result.used[vertexA] = true
	result.used[vertexB] = true
	result.used[vertexC] = true
	result.setBary(1-v-w, v, w, 0)
}

// pointOutsideOfPlane returns 1 if p and d lie on opposite sides of plane
// abc, 0 if they are on the same side and -1 for a flat tetrahedron.
func pointOutsideOfPlane(p, a, b, c, d mgl64.Vec3) int {
	normal := b.Sub(a).Cross(c.Sub(a))

	signP := p.Sub(a).Dot(normal)
	signD := d.Sub(a).Dot(normal)

	if signD*signD < 1e-8*1e-8 {
		return -1
	}
	if signP*signD < 0 {
		return 1
	}
	return 0
}

// closestPtPointTetrahedron finds the point of tetrahedron abcd closest to
// p. It returns false when p is inside, or when the tetrahedron is flat, in
// which case result.degenerate is set.
func closestPtPointTetrahedron(p, a, b, c, d mgl64.Vec3, result *subSimplex) bool {
	var temp subSimplex

	result.closest = p
	result.used = [4]bool{true, true, true, true}

	outsideABC := pointOutsideOfPlane(p, a, b, c, d)
	outsideACD := pointOutsideOfPlane(p, a, c, d, b)
	outsideADB := pointOutsideOfPlane(p, a, d, b, c)
	outsideBDC := pointOutsideOfPlane(p, b, d, c, a)

	if outsideABC < 0 || outsideACD < 0 || outsideADB < 0 || outsideBDC < 0 {
		result.degenerate = true
		return false
	}
	if outsideABC == 0 && outsideACD == 0 && outsideADB == 0 && outsideBDC == 0 {
		return false
	}

	best := -1.0
	consider := func(q mgl64.Vec3) bool {
		sq := q.Sub(p).LenSqr()
		if best < 0 || sq < best {
			best = sq
			result.closest = q
			return true
		}
		return false
	}

	if outsideABC != 0 {
		closestPtPointTriangle(p, a, b, c, &temp)
		if consider(temp.closest) {
			result.used = [4]bool{temp.used[vertexA], temp.used[vertexB], temp.used[vertexC], false}
			result.setBary(temp.bary[0], temp.bary[1], temp.bary[2], 0)
		}
	}

	if outsideACD != 0 {
		closestPtPointTriangle(p, a, c, d, &temp)
		if consider(temp.closest) {
			result.used = [4]bool{temp.used[vertexA], false, temp.used[vertexB], temp.used[vertexC]}
			result.setBary(temp.bary[0], 0, temp.bary[1], temp.bary[2])
		}
	}

	if outsideADB != 0 {
		closestPtPointTriangle(p, a, d, b, &temp)
		if consider(temp.closest) {
			result.used = [4]bool{temp.used[vertexA], temp.used[vertexC], false, temp.used[vertexB]}
			result.setBary(temp.bary[0], temp.bary[2], 0, temp.bary[1])
		}
	}

	if outsideBDC != 0 {
		closestPtPointTriangle(p, b, d, c, &temp)
		if consider(temp.closest) {
			result.used = [4]bool{false, temp.used[vertexA], temp.used[vertexC], temp.used[vertexB]}
			result.setBary(0, temp.bary[0], temp.bary[2], temp.bary[1])
		}
	}

	return true
}

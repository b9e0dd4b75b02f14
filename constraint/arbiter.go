package constraint

import (
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxContacts is the size of a contact manifold.
const MaxContacts = 4

// Arbiter keeps the contact manifold between two bodies across steps.
type Arbiter struct {
	body1 *actor.RigidBody
	body2 *actor.RigidBody

	contacts []*Contact
	pool     ContactPool

	index int
}

// NewArbiter is the constructor pools use.
func NewArbiter() *Arbiter {
	return &Arbiter{contacts: make([]*Contact, 0, MaxContacts), index: -1}
}

// Reset binds a pooled arbiter to a new pair of bodies.
func (a *Arbiter) Reset(body1, body2 *actor.RigidBody, pool ContactPool) {
	a.body1 = body1
	a.body2 = body2
	a.pool = pool
	a.contacts = a.contacts[:0]
	a.index = -1
}

func (a *Arbiter) Body1() *actor.RigidBody {
	return a.body1
}

func (a *Arbiter) Body2() *actor.RigidBody {
	return a.body2
}

// Contacts returns the live manifold. The slice is owned by the arbiter.
func (a *Arbiter) Contacts() []*Contact {
	return a.contacts
}

// AddContact merges a new contact point into the manifold. A point close to
// a cached one refreshes it in place; a full manifold evicts the point that
// least contributes to the contact area, never the deepest. The contact is
// returned only when it was newly created.
func (a *Arbiter) AddContact(point1, point2, normal mgl64.Vec3, penetration float64, settings ContactSettings) *Contact {
	relPos1 := point1.Sub(a.body1.Position())

	if len(a.contacts) == MaxContacts {
		index := a.SortCachedPoints(relPos1, penetration)
		a.contacts[index].Initialize(a.body1, a.body2, point1, point2, normal, penetration, false, settings)
		return nil
	}

	if index := a.cacheEntry(relPos1, settings.BreakThreshold); index >= 0 {
		a.contacts[index].Initialize(a.body1, a.body2, point1, point2, normal, penetration, false, settings)
		return nil
	}

	c := a.newContact()
	c.Initialize(a.body1, a.body2, point1, point2, normal, penetration, true, settings)
	a.contacts = append(a.contacts, c)
	return c
}

func (a *Arbiter) newContact() *Contact {
	if a.pool == nil {
		return NewContact()
	}
	return a.pool.GetNew()
}

// cacheEntry returns the nearest cached point within threshold, or -1.
func (a *Arbiter) cacheEntry(relPos1 mgl64.Vec3, threshold float64) int {
	shortest := threshold * threshold
	nearest := -1
	for i, c := range a.contacts {
		if d := c.relativePos1.Sub(relPos1).LenSqr(); d < shortest {
			shortest = d
			nearest = i
		}
	}
	return nearest
}

// SortCachedPoints picks the slot a new point replaces in a full manifold.
// Each candidate scores the area of the quadrilateral left after swapping it
// out; the point strictly deeper than everything else, new point included,
// is never a candidate. Ties go to the lowest index.
func (a *Arbiter) SortCachedPoints(relPos1 mgl64.Vec3, penetration float64) int {
	deepest := -1
	maxPenetration := penetration
	for i, c := range a.contacts {
		if c.penetration > maxPenetration {
			deepest = i
			maxPenetration = c.penetration
		}
	}

	r := func(i int) mgl64.Vec3 { return a.contacts[i].relativePos1 }

	var area [MaxContacts]float64
	if deepest != 0 {
		area[0] = relPos1.Sub(r(1)).Cross(r(3).Sub(r(2))).LenSqr()
	}
	if deepest != 1 {
		area[1] = relPos1.Sub(r(0)).Cross(r(3).Sub(r(2))).LenSqr()
	}
	if deepest != 2 {
		area[2] = relPos1.Sub(r(0)).Cross(r(3).Sub(r(1))).LenSqr()
	}
	if deepest != 3 {
		area[3] = relPos1.Sub(r(0)).Cross(r(2).Sub(r(1))).LenSqr()
	}

	best := -1
	for i := range area {
		if i == deepest {
			continue
		}
		if best < 0 || area[i] > area[best] {
			best = i
		}
	}
	return best
}

// Update moves the cached points with their bodies and drops those that
// separated or slid apart. It reports whether the arbiter has expired: an
// arbiter entering the step without contacts is destroyed by its owner.
func (a *Arbiter) Update(settings ContactSettings) (expired bool) {
	if len(a.contacts) == 0 {
		return true
	}

	threshold := settings.BreakThreshold
	for i := len(a.contacts) - 1; i >= 0; i-- {
		c := a.contacts[i]
		c.UpdatePosition()

		if c.penetration < -threshold {
			a.removeContact(i)
			continue
		}

		diff := c.p1.Sub(c.p2)
		tangential := diff.Sub(c.normal.Mul(diff.Dot(c.normal)))
		if tangential.LenSqr() > threshold*threshold*100 {
			a.removeContact(i)
		}
	}
	return false
}

func (a *Arbiter) removeContact(i int) {
	c := a.contacts[i]
	a.contacts = append(a.contacts[:i], a.contacts[i+1:]...)
	if a.pool != nil {
		a.pool.GiveBack(c)
	}
}

// Release returns every contact to the pool.
func (a *Arbiter) Release() {
	for len(a.contacts) > 0 {
		a.removeContact(len(a.contacts) - 1)
	}
}

func (a *Arbiter) DebugDraw(drawer actor.DebugDrawer) {
	for _, c := range a.contacts {
		c.DebugDraw(drawer)
	}
}

// ========== ARBITER MAP ==========

// ArbiterKey identifies a body pair regardless of order.
type ArbiterKey struct {
	lo, hi uint64
}

func NewArbiterKey(body1, body2 *actor.RigidBody) ArbiterKey {
	a, b := body1.ID(), body2.ID()
	if a > b {
		a, b = b, a
	}
	return ArbiterKey{lo: a, hi: b}
}

// ArbiterMap indexes arbiters by body pair and keeps a stable iteration
// order so that stepping stays deterministic.
type ArbiterMap struct {
	lookup   map[ArbiterKey]*Arbiter
	arbiters []*Arbiter
}

func NewArbiterMap() *ArbiterMap {
	return &ArbiterMap{lookup: make(map[ArbiterKey]*Arbiter)}
}

func (m *ArbiterMap) Lookup(body1, body2 *actor.RigidBody) (*Arbiter, bool) {
	a, ok := m.lookup[NewArbiterKey(body1, body2)]
	return a, ok
}

func (m *ArbiterMap) Contains(body1, body2 *actor.RigidBody) bool {
	_, ok := m.lookup[NewArbiterKey(body1, body2)]
	return ok
}

// Add registers an arbiter under its body pair, replacing nothing: adding a
// pair twice is a no-op.
func (m *ArbiterMap) Add(a *Arbiter) {
	key := NewArbiterKey(a.body1, a.body2)
	if _, ok := m.lookup[key]; ok {
		return
	}
	m.lookup[key] = a
	a.index = len(m.arbiters)
	m.arbiters = append(m.arbiters, a)
}

func (m *ArbiterMap) Remove(a *Arbiter) {
	key := NewArbiterKey(a.body1, a.body2)
	if m.lookup[key] != a {
		return
	}
	delete(m.lookup, key)

	last := len(m.arbiters) - 1
	moved := m.arbiters[last]
	m.arbiters[a.index] = moved
	moved.index = a.index
	m.arbiters[last] = nil
	m.arbiters = m.arbiters[:last]
	a.index = -1
}

func (m *ArbiterMap) Len() int {
	return len(m.arbiters)
}

// Arbiters returns the arbiters in map order. The slice is owned by the map.
func (m *ArbiterMap) Arbiters() []*Arbiter {
	return m.arbiters
}

func (m *ArbiterMap) Clear() {
	clear(m.lookup)
	clear(m.arbiters)
	m.arbiters = m.arbiters[:0]
}

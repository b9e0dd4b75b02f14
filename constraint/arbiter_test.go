package constraint

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-gl/mathgl/mgl64"
)

// slicePool is a minimal ContactPool recording what it gets back.
type slicePool struct {
	free     []*Contact
	created  int
	returned int
}

func (p *slicePool) GetNew() *Contact {
	if n := len(p.free); n > 0 {
		c := p.free[n-1]
		p.free = p.free[:n-1]
		return c
	}
	p.created++
	return NewContact()
}

func (p *slicePool) GiveBack(c *Contact) {
	p.returned++
	p.free = append(p.free, c)
}

func manifold(a *Arbiter) []mgl64.Vec3 {
	points := make([]mgl64.Vec3, 0, len(a.Contacts()))
	for _, c := range a.Contacts() {
		points = append(points, c.Position1())
	}
	return points
}

func newTestArbiter(pool ContactPool) *Arbiter {
	ground := createStaticBody(mgl64.Vec3{0, -1, 0})
	box := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{})
	a := NewArbiter()
	a.Reset(ground, box, pool)
	return a
}

func TestArbiter_AddContact(t *testing.T) {
	pool := &slicePool{}
	a := newTestArbiter(pool)
	settings := DefaultContactSettings()
	up := mgl64.Vec3{0, 1, 0}

	if c := a.AddContact(mgl64.Vec3{1, 0, 1}, mgl64.Vec3{1, 0, 1}, up, 0.02, settings); c == nil {
		t.Fatal("first point should create a contact")
	}

	// Within the break threshold: refreshed in place
	if c := a.AddContact(mgl64.Vec3{1.005, 0, 1}, mgl64.Vec3{1.005, 0, 1}, up, 0.03, settings); c != nil {
		t.Fatalf("nearby point created a new contact, manifold %s", spew.Sdump(manifold(a)))
	}
	if len(a.Contacts()) != 1 {
		t.Fatalf("manifold size = %d, want 1", len(a.Contacts()))
	}
	if got := a.Contacts()[0].Penetration(); !floatNear(got, 0.03, 1e-12) {
		t.Errorf("refreshed penetration = %v, want 0.03", got)
	}

	a.AddContact(mgl64.Vec3{-1, 0, 1}, mgl64.Vec3{-1, 0, 1}, up, 0.02, settings)
	a.AddContact(mgl64.Vec3{-1, 0, -1}, mgl64.Vec3{-1, 0, -1}, up, 0.02, settings)
	a.AddContact(mgl64.Vec3{1, 0, -1}, mgl64.Vec3{1, 0, -1}, up, 0.02, settings)
	if pool.created != 4 {
		t.Errorf("pool created %d contacts, want 4", pool.created)
	}

	// Full manifold: never grows past four
	if c := a.AddContact(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 0}, up, 0.01, settings); c != nil {
		t.Error("full manifold returned a new contact")
	}
	if len(a.Contacts()) != MaxContacts {
		t.Errorf("manifold size = %d, want %d: %s", len(a.Contacts()), MaxContacts, spew.Sdump(manifold(a)))
	}
}

func TestArbiter_KeepsDeepestPoint(t *testing.T) {
	a := newTestArbiter(nil)
	settings := DefaultContactSettings()
	up := mgl64.Vec3{0, 1, 0}

	corners := []mgl64.Vec3{{1, 0, 1}, {-1, 0, 1}, {-1, 0, -1}, {1, 0, -1}}
	for i, p := range corners {
		pen := 0.02
		if i == 2 {
			pen = 0.2
		}
		a.AddContact(p, p, up, pen, settings)
	}

	// Points far out on every side, each shallower than the deepest corner
	for _, p := range []mgl64.Vec3{{3, 0, 0}, {0, 0, 3}, {-3, 0, 0}, {0, 0, -3}, {2, 0, 2}} {
		a.AddContact(p, p, up, 0.05, settings)

		found := false
		for _, c := range a.Contacts() {
			if c.Penetration() == 0.2 {
				found = true
			}
		}
		if !found {
			t.Fatalf("deepest point evicted after adding %v: %s", p, spew.Sdump(manifold(a)))
		}
	}
}

func TestArbiter_SortCachedPoints(t *testing.T) {
	settings := DefaultContactSettings()
	up := mgl64.Vec3{0, 1, 0}

	t.Run("collinear ties go to the lowest free index", func(t *testing.T) {
		a := newTestArbiter(nil)
		for i, x := range []float64{0, 1, 2, 3} {
			pen := 0.02
			if i == 0 {
				pen = 0.5
			}
			p := mgl64.Vec3{x, 0, 0}
			a.AddContact(p, p, up, pen, settings)
		}

		rel := mgl64.Vec3{4, 0, 0}.Sub(a.Body1().Position())
		if got := a.SortCachedPoints(rel, 0.01); got != 1 {
			t.Errorf("SortCachedPoints() = %d, want 1", got)
		}
	})

	t.Run("a deeper new point may evict anything", func(t *testing.T) {
		a := newTestArbiter(nil)
		for _, p := range []mgl64.Vec3{{1, 0, 1}, {-1, 0, 1}, {-1, 0, -1}, {1, 0, -1}} {
			a.AddContact(p, p, up, 0.02, settings)
		}

		// Areas: 0.04, 0.04, 0.16, 0.04
		rel := mgl64.Vec3{1.1, 0, 1.1}.Sub(a.Body1().Position())
		if got := a.SortCachedPoints(rel, 1); got != 2 {
			t.Errorf("SortCachedPoints() = %d, want 2", got)
		}
	})
}

func TestArbiter_Update(t *testing.T) {
	pool := &slicePool{}
	a := newTestArbiter(pool)
	settings := DefaultContactSettings()
	up := mgl64.Vec3{0, 1, 0}

	a.AddContact(mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{0.5, 0, 0}, up, 0, settings)
	a.AddContact(mgl64.Vec3{-0.5, 0, 0}, mgl64.Vec3{-0.5, 0, 0}, up, 0, settings)

	if expired := a.Update(settings); expired {
		t.Fatal("arbiter with contacts expired")
	}
	if len(a.Contacts()) != 2 {
		t.Fatalf("resting contacts dropped: %s", spew.Sdump(manifold(a)))
	}

	// Sliding sideways breaks the contacts
	a.Body2().SetPosition(a.Body2().Position().Add(mgl64.Vec3{0.5, 0, 0}))
	a.Update(settings)
	if len(a.Contacts()) != 0 {
		t.Fatalf("slid contacts kept: %s", spew.Sdump(manifold(a)))
	}
	if pool.returned != 2 {
		t.Errorf("pool got back %d contacts, want 2", pool.returned)
	}

	if expired := a.Update(settings); !expired {
		t.Error("empty arbiter did not expire")
	}
}

func TestArbiter_UpdateDropsSeparated(t *testing.T) {
	a := newTestArbiter(nil)
	settings := DefaultContactSettings()

	a.AddContact(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}, 0, settings)
	a.Body2().SetPosition(a.Body2().Position().Add(mgl64.Vec3{0, 0.5, 0}))
	a.Update(settings)

	if len(a.Contacts()) != 0 {
		t.Errorf("separated contact kept: %s", spew.Sdump(manifold(a)))
	}
}

func TestArbiterMap(t *testing.T) {
	bodies := []struct{ x float64 }{{0}, {3}, {6}, {9}}
	var arbiters []*Arbiter
	for i := 1; i < len(bodies); i++ {
		a := NewArbiter()
		a.Reset(createDynamicBody(mgl64.Vec3{bodies[i-1].x, 0, 0}, mgl64.Vec3{}), createDynamicBody(mgl64.Vec3{bodies[i].x, 0, 0}, mgl64.Vec3{}), nil)
		arbiters = append(arbiters, a)
	}

	m := NewArbiterMap()
	for _, a := range arbiters {
		m.Add(a)
	}
	m.Add(arbiters[0])

	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	for i, a := range m.Arbiters() {
		if a != arbiters[i] {
			t.Errorf("Arbiters()[%d] out of insertion order", i)
		}
	}

	// Lookup ignores the order of the pair
	if got, ok := m.Lookup(arbiters[1].Body2(), arbiters[1].Body1()); !ok || got != arbiters[1] {
		t.Error("Lookup() with swapped bodies missed")
	}

	m.Remove(arbiters[0])
	if m.Contains(arbiters[0].Body1(), arbiters[0].Body2()) {
		t.Error("removed arbiter still present")
	}
	if m.Len() != 2 || m.Arbiters()[0] != arbiters[2] || m.Arbiters()[1] != arbiters[1] {
		t.Errorf("unexpected order after removal: %s", spew.Sdump(m.Arbiters()))
	}

	m.Clear()
	if m.Len() != 0 || m.Contains(arbiters[1].Body1(), arbiters[1].Body2()) {
		t.Error("Clear() left arbiters behind")
	}
}

func TestNewArbiterKey(t *testing.T) {
	a := createDynamicBody(mgl64.Vec3{}, mgl64.Vec3{})
	b := createDynamicBody(mgl64.Vec3{}, mgl64.Vec3{})

	if NewArbiterKey(a, b) != NewArbiterKey(b, a) {
		t.Error("arbiter key depends on body order")
	}
	if NewArbiterKey(a, a) == NewArbiterKey(a, b) {
		t.Error("different pairs share a key")
	}
}

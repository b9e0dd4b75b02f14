package island

import (
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/constraint"
)

const (
	unmarked uint8 = iota
	markLeft
	markRight
)

// search is one side of the bidirectional split search.
type search struct {
	queue   []*actor.RigidBody
	head    int
	visited []*actor.RigidBody
	mark    uint8
}

func (s *search) start(body *actor.RigidBody) {
	s.queue = append(s.queue[:0], body)
	s.head = 0
	s.visited = append(s.visited[:0], body)
}

func (s *search) exhausted() bool {
	return s.head == len(s.queue)
}

// Manager owns the islands of a world. Islands live in an arena addressed
// by actor.IslandID; released slots are reused.
type Manager struct {
	arena []*CollisionIsland
	free  []actor.IslandID
	live  orderedSet[*CollisionIsland]

	marker      map[*actor.RigidBody]uint8
	left, right search
}

func NewManager() *Manager {
	return &Manager{
		marker: make(map[*actor.RigidBody]uint8),
		left:   search{mark: markLeft},
		right:  search{mark: markRight},
	}
}

// Islands returns the live islands. The slice is owned by the manager and
// changes as islands merge and split.
func (m *Manager) Islands() []*CollisionIsland {
	return m.live.items
}

func (m *Manager) Len() int {
	return m.live.Len()
}

// Island resolves a handle to a live island.
func (m *Manager) Island(id actor.IslandID) (*CollisionIsland, bool) {
	if id < 0 || int(id) >= len(m.arena) {
		return nil, false
	}
	island := m.arena[id]
	if !m.live.Contains(island) {
		return nil, false
	}
	return island, true
}

// IslandOf returns the island of a body, nil for static or unattached ones.
func (m *Manager) IslandOf(body *actor.RigidBody) *CollisionIsland {
	if body == nil {
		return nil
	}
	island, _ := m.Island(body.Island)
	return island
}

func (m *Manager) newIsland() *CollisionIsland {
	var island *CollisionIsland
	if n := len(m.free); n > 0 {
		island = m.arena[m.free[n-1]]
		m.free = m.free[:n-1]
	} else {
		island = &CollisionIsland{id: actor.IslandID(len(m.arena)), manager: m}
		m.arena = append(m.arena, island)
	}
	m.live.Add(island)
	return island
}

func (m *Manager) giveBack(island *CollisionIsland) {
	island.clearLists()
	if m.live.Remove(island) {
		m.free = append(m.free, island.id)
	}
}

// AddBody gives a dynamic body its own island. Static bodies are ignored.
func (m *Manager) AddBody(body *actor.RigidBody) {
	if body.IsStatic() || m.IslandOf(body) != nil {
		return
	}
	island := m.newIsland()
	island.bodies.Add(body)
	body.Island = island.id
}

// RemoveBody tears down every connection of the body, then releases its
// island.
func (m *Manager) RemoveBody(body *actor.RigidBody) {
	for n := len(body.Arbiters); n > 0; n = len(body.Arbiters) {
		m.ArbiterRemoved(body.Arbiters[n-1].(*constraint.Arbiter))
	}
	for n := len(body.Constraints); n > 0; n = len(body.Constraints) {
		m.ConstraintRemoved(body.Constraints[n-1].(constraint.Constraint))
	}

	m.detachBody(body)
}

func (m *Manager) detachBody(body *actor.RigidBody) {
	if island := m.IslandOf(body); island != nil {
		island.bodies.Remove(body)
		if island.bodies.Len() == 0 {
			m.giveBack(island)
		}
	}
	body.Island = actor.NoIsland
}

// MakeBodyStatic moves a body that just became static out of the dynamic
// graph. Its constraints are reattached to the islands of the other bodies.
// Its arbiters are detached and returned for the caller to destroy.
func (m *Manager) MakeBodyStatic(body *actor.RigidBody) []*constraint.Arbiter {
	arbiters, constraints := m.detachEdges(body)
	m.detachBody(body)
	m.reattach(constraints)
	return arbiters
}

// MakeBodyDynamic is the reverse of MakeBodyStatic for a body that just
// became dynamic.
func (m *Manager) MakeBodyDynamic(body *actor.RigidBody) []*constraint.Arbiter {
	arbiters, constraints := m.detachEdges(body)
	m.AddBody(body)
	m.reattach(constraints)
	return arbiters
}

func (m *Manager) detachEdges(body *actor.RigidBody) ([]*constraint.Arbiter, []constraint.Constraint) {
	arbiters := make([]*constraint.Arbiter, 0, len(body.Arbiters))
	for _, e := range body.Arbiters {
		arbiters = append(arbiters, e.(*constraint.Arbiter))
	}
	constraints := make([]constraint.Constraint, 0, len(body.Constraints))
	for _, e := range body.Constraints {
		constraints = append(constraints, e.(constraint.Constraint))
	}

	for _, a := range arbiters {
		m.ArbiterRemoved(a)
	}
	for _, c := range constraints {
		m.ConstraintRemoved(c)
	}
	return arbiters, constraints
}

func (m *Manager) reattach(constraints []constraint.Constraint) {
	for _, c := range constraints {
		m.ConstraintCreated(c)
	}
}

// RemoveAll releases every island.
func (m *Manager) RemoveAll() {
	for _, island := range m.arena {
		for _, b := range island.bodies.items {
			b.Island = actor.NoIsland
		}
		island.clearLists()
	}
	m.live.Clear()
	m.free = m.free[:0]
	for i := len(m.arena) - 1; i >= 0; i-- {
		m.free = append(m.free, actor.IslandID(i))
	}
}

// ========== EDGES ==========

func (m *Manager) ArbiterCreated(a *constraint.Arbiter) {
	m.AddConnection(a.Body1(), a.Body2())

	addEdge(&a.Body1().Arbiters, a)
	addEdge(&a.Body2().Arbiters, a)

	if island := m.edgeIsland(a); island != nil {
		island.arbiters.Add(a)
	}
}

func (m *Manager) ArbiterRemoved(a *constraint.Arbiter) {
	removeEdge(&a.Body1().Arbiters, a)
	removeEdge(&a.Body2().Arbiters, a)

	if island := m.edgeIsland(a); island != nil {
		island.arbiters.Remove(a)
	}

	m.RemoveConnection(a.Body1(), a.Body2())
}

// ConstraintCreated joins the islands of the constraint's bodies. A
// constraint between static bodies only keeps its back-references.
func (m *Manager) ConstraintCreated(c constraint.Constraint) {
	if !isStatic(c.Body1()) || !isStatic(c.Body2()) {
		m.AddConnection(c.Body1(), c.Body2())
	}

	addEdge(&c.Body1().Constraints, c)
	if c.Body2() != nil {
		addEdge(&c.Body2().Constraints, c)
	}

	if island := m.edgeIsland(c); island != nil {
		island.constraints.Add(c)
	}
}

func (m *Manager) ConstraintRemoved(c constraint.Constraint) {
	removeEdge(&c.Body1().Constraints, c)
	if c.Body2() != nil {
		removeEdge(&c.Body2().Constraints, c)
	}

	if island := m.edgeIsland(c); island != nil {
		island.constraints.Remove(c)
	}

	m.RemoveConnection(c.Body1(), c.Body2())
}

func (m *Manager) edgeIsland(e actor.Edge) *CollisionIsland {
	if island := m.IslandOf(e.Body1()); island != nil {
		return island
	}
	return m.IslandOf(e.Body2())
}

func isStatic(body *actor.RigidBody) bool {
	return body == nil || body.IsStatic()
}

func addEdge(edges *[]actor.Edge, e actor.Edge) {
	*edges = append(*edges, e)
}

func removeEdge(edges *[]actor.Edge, e actor.Edge) {
	for i, existing := range *edges {
		if existing == e {
			*edges = append((*edges)[:i], (*edges)[i+1:]...)
			return
		}
	}
}

// AddConnection records that two bodies are joined. A static end leaves the
// dynamic one in its own island; two dynamic ends merge their islands.
func (m *Manager) AddConnection(body1, body2 *actor.RigidBody) {
	static1, static2 := isStatic(body1), isStatic(body2)

	switch {
	case static1 && static2:
		panic("island: connection between two static bodies")
	case static1:
		m.AddBody(body2)
	case static2:
		m.AddBody(body1)
	default:
		m.mergeIslands(body1, body2)
	}
}

// RemoveConnection is called once the edge between the bodies is gone. If
// it was the last path between them the island splits in two.
func (m *Manager) RemoveConnection(body1, body2 *actor.RigidBody) {
	island1, island2 := m.IslandOf(body1), m.IslandOf(body2)
	if island1 == nil || island2 == nil || body1 == body2 {
		return
	}
	if island1 != island2 {
		panic("island: removing a connection between bodies of different islands")
	}
	m.splitIslands(body1, body2)
}

func (m *Manager) mergeIslands(body0, body1 *actor.RigidBody) {
	island0, island1 := m.IslandOf(body0), m.IslandOf(body1)

	switch {
	case island0 == nil && island1 == nil:
		island := m.newIsland()
		island.bodies.Add(body0)
		island.bodies.Add(body1)
		body0.Island = island.id
		body1.Island = island.id
	case island0 == nil:
		island1.bodies.Add(body0)
		body0.Island = island1.id
	case island1 == nil:
		island0.bodies.Add(body1)
		body1.Island = island0.id
	case island0 != island1:
		// Smaller into larger
		small, large := island0, island1
		if island0.bodies.Len() > island1.bodies.Len() {
			small, large = island1, island0
		}

		for _, b := range small.bodies.items {
			b.Island = large.id
			large.bodies.Add(b)
		}
		for _, a := range small.arbiters.items {
			large.arbiters.Add(a)
		}
		for _, c := range small.constraints.items {
			large.constraints.Add(c)
		}
		m.giveBack(small)
	}
}

// forEachNeighbor visits the dynamic bodies joined to body by an edge.
func forEachNeighbor(body *actor.RigidBody, fn func(*actor.RigidBody) bool) {
	visit := func(edges []actor.Edge) bool {
		for _, e := range edges {
			other := e.Body1()
			if other == body {
				other = e.Body2()
			}
			if other == nil || other == body || other.Island == actor.NoIsland {
				continue
			}
			if !fn(other) {
				return false
			}
		}
		return true
	}
	if visit(body.Arbiters) {
		visit(body.Constraints)
	}
}

// expand pops one body off the search and marks its unvisited neighbors. It
// reports whether the other search has already reached one of them.
func (m *Manager) expand(s *search, other uint8) bool {
	current := s.queue[s.head]
	s.head++

	met := false
	forEachNeighbor(current, func(n *actor.RigidBody) bool {
		switch m.marker[n] {
		case unmarked:
			m.marker[n] = s.mark
			s.queue = append(s.queue, n)
			s.visited = append(s.visited, n)
		case other:
			met = true
			return false
		}
		return true
	})
	return met
}

// splitIslands searches from both ends of a removed connection at the same
// pace. Meeting means the island is still connected; otherwise the side
// that ran out of bodies first is a complete component and moves to a new
// island.
func (m *Manager) splitIslands(body0, body1 *actor.RigidBody) {
	m.left.start(body0)
	m.right.start(body1)
	m.marker[body0] = markLeft
	m.marker[body1] = markRight

	defer func() {
		clear(m.marker)
	}()

	for !m.left.exhausted() && !m.right.exhausted() {
		if m.expand(&m.left, markRight) {
			return
		}
		if m.expand(&m.right, markLeft) {
			return
		}
	}

	from := m.IslandOf(body0)
	switch {
	case m.left.exhausted():
		m.peel(m.left.visited, from)
	case m.right.exhausted():
		m.peel(m.right.visited, from)
	}
}

func (m *Manager) peel(bodies []*actor.RigidBody, from *CollisionIsland) {
	island := m.newIsland()
	for _, b := range bodies {
		from.bodies.Remove(b)
		island.bodies.Add(b)
		b.Island = island.id

		for _, e := range b.Arbiters {
			a := e.(*constraint.Arbiter)
			from.arbiters.Remove(a)
			island.arbiters.Add(a)
		}
		for _, e := range b.Constraints {
			c := e.(constraint.Constraint)
			from.constraints.Remove(c)
			island.constraints.Add(c)
		}
	}
}

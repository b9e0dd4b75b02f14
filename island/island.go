// Package island partitions bodies into independently solvable groups.
//
// Two dynamic bodies joined by an arbiter or a constraint share an island.
// Static bodies never belong to one: they may be the end of an edge but do
// not carry connectivity through them. Islands are maintained incrementally,
// merged when a connection appears and split when the last path between two
// halves disappears.
package island

import (
	"github.com/fxredeemer/jitterphysics-sub000/actor"
	"github.com/fxredeemer/jitterphysics-sub000/constraint"
)

// orderedSet keeps insertion order stable enough for deterministic stepping.
// Removal swaps the last element into the hole.
type orderedSet[T comparable] struct {
	items []T
	index map[T]int
}

func (s *orderedSet[T]) Add(item T) bool {
	if s.index == nil {
		s.index = make(map[T]int)
	}
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = len(s.items)
	s.items = append(s.items, item)
	return true
}

func (s *orderedSet[T]) Remove(item T) bool {
	i, ok := s.index[item]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	moved := s.items[last]
	s.items[i] = moved
	s.index[moved] = i

	var zero T
	s.items[last] = zero
	s.items = s.items[:last]
	delete(s.index, item)
	return true
}

func (s *orderedSet[T]) Contains(item T) bool {
	_, ok := s.index[item]
	return ok
}

func (s *orderedSet[T]) Len() int {
	return len(s.items)
}

func (s *orderedSet[T]) Clear() {
	clear(s.items)
	s.items = s.items[:0]
	clear(s.index)
}

// CollisionIsland is a connected group of dynamic bodies with the arbiters
// and constraints joining them. It references its members, it does not own
// them.
type CollisionIsland struct {
	id      actor.IslandID
	manager *Manager

	bodies      orderedSet[*actor.RigidBody]
	arbiters    orderedSet[*constraint.Arbiter]
	constraints orderedSet[constraint.Constraint]
}

func (i *CollisionIsland) ID() actor.IslandID {
	return i.id
}

// Manager returns the manager that owns the island.
func (i *CollisionIsland) Manager() *Manager {
	return i.manager
}

// Bodies returns the members of the island. The slice is owned by the island.
func (i *CollisionIsland) Bodies() []*actor.RigidBody {
	return i.bodies.items
}

func (i *CollisionIsland) Arbiters() []*constraint.Arbiter {
	return i.arbiters.items
}

func (i *CollisionIsland) Constraints() []constraint.Constraint {
	return i.constraints.items
}

// IsActive reports whether the island is awake. All members share one state.
func (i *CollisionIsland) IsActive() bool {
	return i.bodies.Len() > 0 && i.bodies.items[0].IsActive()
}

// SetStatus wakes up or puts to sleep every body of the island.
func (i *CollisionIsland) SetStatus(active bool) {
	for _, b := range i.bodies.items {
		b.SetActive(active)
	}
}

func (i *CollisionIsland) clearLists() {
	i.bodies.Clear()
	i.arbiters.Clear()
	i.constraints.Clear()
}

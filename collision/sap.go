package collision

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// SAP sorts the entities along X every step and sweeps them with an active
// list; only entities whose X intervals overlap are tested on Y and Z.
type SAP struct {
	Detector

	entities []Entity
	active   []Entity
	pairs    []pair
}

func NewSAP() *SAP {
	return &SAP{Detector: newDetector()}
}

func (s *SAP) AddEntity(entity Entity) error {
	if slices.Contains(s.entities, entity) {
		return ErrEntityExists
	}
	s.entities = append(s.entities, entity)
	return nil
}

func (s *SAP) RemoveEntity(entity Entity) bool {
	i := slices.Index(s.entities, entity)
	if i < 0 {
		return false
	}
	s.entities = slices.Delete(s.entities, i, i+1)
	return true
}

func (s *SAP) Entities() []Entity {
	return s.entities
}

func minX(e Entity) float64 {
	return e.BoundingBox().Min.X()
}

func (s *SAP) Detect(multithreaded bool) {
	insertionSort(s.entities, minX, nil)

	clear(s.active)
	s.active = s.active[:0]
	s.pairs = s.pairs[:0]

	for _, entity := range s.entities {
		box := entity.BoundingBox()

		// Drop the entities ending before this one starts, keeping the order
		n := 0
		for _, other := range s.active {
			otherBox := other.BoundingBox()
			if otherBox.Max.X() < box.Min.X() {
				continue
			}
			s.active[n] = other
			n++

			overlapsYZ := box.Max.Y() >= otherBox.Min.Y() && box.Min.Y() <= otherBox.Max.Y() &&
				box.Max.Z() >= otherBox.Min.Z() && box.Min.Z() <= otherBox.Max.Z()
			if overlapsYZ && s.passedBroadphase(other, entity) {
				s.pairs = append(s.pairs, pair{entity1: other, entity2: entity})
			}
		}
		s.active = append(s.active[:n], entity)
	}

	s.dispatch(s.pairs, multithreaded)
}

func (s *SAP) Raycast(origin, direction mgl64.Vec3, filter RaycastFilter) (RaycastHit, bool) {
	return s.raycast(s.entities, origin, direction, filter)
}

var _ System = (*SAP)(nil)

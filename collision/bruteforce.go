package collision

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// BruteForce tests every pair of entities. Fine for a few dozen bodies.
type BruteForce struct {
	Detector

	entities []Entity
	pairs    []pair
}

func NewBruteForce() *BruteForce {
	return &BruteForce{Detector: newDetector()}
}

func (bf *BruteForce) AddEntity(entity Entity) error {
	if slices.Contains(bf.entities, entity) {
		return ErrEntityExists
	}
	bf.entities = append(bf.entities, entity)
	return nil
}

func (bf *BruteForce) RemoveEntity(entity Entity) bool {
	i := slices.Index(bf.entities, entity)
	if i < 0 {
		return false
	}
	bf.entities = slices.Delete(bf.entities, i, i+1)
	return true
}

func (bf *BruteForce) Entities() []Entity {
	return bf.entities
}

func (bf *BruteForce) Detect(multithreaded bool) {
	bf.pairs = bf.pairs[:0]
	for i, entity1 := range bf.entities {
		box1 := entity1.BoundingBox()
		for _, entity2 := range bf.entities[i+1:] {
			if box1.Overlaps(entity2.BoundingBox()) && bf.passedBroadphase(entity1, entity2) {
				bf.pairs = append(bf.pairs, pair{entity1: entity1, entity2: entity2})
			}
		}
	}
	bf.dispatch(bf.pairs, multithreaded)
}

func (bf *BruteForce) Raycast(origin, direction mgl64.Vec3, filter RaycastFilter) (RaycastHit, bool) {
	return bf.raycast(bf.entities, origin, direction, filter)
}

var _ System = (*BruteForce)(nil)

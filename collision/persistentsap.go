package collision

import (
	"cmp"
	"slices"

	"github.com/fxredeemer/jitterphysics-sub000/worker"
	"github.com/go-gl/mathgl/mgl64"
)

// AddedObjectsBruteForceIsUsed is the number of entities added between two
// detections above which the axes are rebuilt from scratch instead of being
// updated incrementally.
const AddedObjectsBruteForceIsUsed = 250

type sweepPoint struct {
	entity Entity
	begin  bool
	axis   int
}

func (p sweepPoint) value() float64 {
	box := p.entity.BoundingBox()
	if p.begin {
		return box.Min[p.axis]
	}
	return box.Max[p.axis]
}

// overlapEvent records a change of the overlap set found while sorting.
type overlapEvent struct {
	pair        pair
	overlapping bool
}

// PersistentSAP keeps the begin and end points of every box sorted on all
// three axes between steps. Each swap in the insertion sort starts or ends an
// overlap, so the set of fully overlapping pairs is maintained incrementally.
type PersistentSAP struct {
	Detector

	entities   []Entity
	axes       [3][]sweepPoint
	events     [3][]overlapEvent
	overlaps   pairSet
	active     []Entity
	pairs      []pair
	addCounter int
}

func NewPersistentSAP() *PersistentSAP {
	return &PersistentSAP{
		Detector: newDetector(),
		overlaps: newPairSet(),
	}
}

func (p *PersistentSAP) AddEntity(entity Entity) error {
	if slices.Contains(p.entities, entity) {
		return ErrEntityExists
	}
	p.entities = append(p.entities, entity)
	for axis := range p.axes {
		p.axes[axis] = append(p.axes[axis],
			sweepPoint{entity: entity, begin: true, axis: axis},
			sweepPoint{entity: entity, begin: false, axis: axis},
		)
	}
	p.addCounter++
	return nil
}

func (p *PersistentSAP) RemoveEntity(entity Entity) bool {
	i := slices.Index(p.entities, entity)
	if i < 0 {
		return false
	}
	p.entities = slices.Delete(p.entities, i, i+1)
	for axis := range p.axes {
		p.axes[axis] = slices.DeleteFunc(p.axes[axis], func(sp sweepPoint) bool {
			return sp.entity == entity
		})
	}
	p.overlaps.removeEntity(entity)
	return true
}

func (p *PersistentSAP) Entities() []Entity {
	return p.entities
}

// Overlaps returns the number of pairs whose boxes currently overlap.
func (p *PersistentSAP) Overlaps() int {
	return p.overlaps.len()
}

func (p *PersistentSAP) Detect(multithreaded bool) {
	if p.addCounter > AddedObjectsBruteForceIsUsed {
		p.overlaps.clear()
		for axis := range p.axes {
			p.dirtySortAxis(axis)
		}
	} else {
		axes := []int{0, 1, 2}
		if multithreaded && p.threads != nil {
			worker.ForEach(p.threads, axes, p.sortAxis)
		} else {
			for _, axis := range axes {
				p.sortAxis(axis)
			}
		}

		// Replay in axis order so the set ends up the same either way
		for axis := range p.events {
			for _, event := range p.events[axis] {
				if event.overlapping {
					p.overlaps.add(event.pair)
				} else {
					p.overlaps.remove(event.pair)
				}
			}
		}
	}
	p.addCounter = 0

	p.pairs = p.pairs[:0]
	for _, o := range p.overlaps.pairs {
		if p.passedBroadphase(o.entity1, o.entity2) {
			p.pairs = append(p.pairs, o)
		}
	}
	p.dispatch(p.pairs, multithreaded)
}

// sortAxis restores the order of one axis. A begin point passing an end
// point may start an overlap; an end point passing a begin point ends one.
func (p *PersistentSAP) sortAxis(axis int) {
	events := p.events[axis][:0]
	insertionSort(p.axes[axis], sweepPoint.value, func(moving, passed sweepPoint) {
		switch {
		case moving.begin && !passed.begin:
			if passed.entity.BoundingBox().Overlaps(moving.entity.BoundingBox()) {
				events = append(events, overlapEvent{pair: pair{entity1: passed.entity, entity2: moving.entity}, overlapping: true})
			}
		case !moving.begin && passed.begin:
			events = append(events, overlapEvent{pair: pair{entity1: passed.entity, entity2: moving.entity}})
		}
	})
	p.events[axis] = events
}

// dirtySortAxis sorts one axis from scratch and sweeps it for overlaps.
func (p *PersistentSAP) dirtySortAxis(axis int) {
	points := p.axes[axis]
	slices.SortStableFunc(points, func(a, b sweepPoint) int {
		return cmp.Compare(a.value(), b.value())
	})
	clear(p.events[axis])
	p.events[axis] = p.events[axis][:0]

	clear(p.active)
	p.active = p.active[:0]
	for _, sp := range points {
		if !sp.begin {
			if i := slices.Index(p.active, sp.entity); i >= 0 {
				p.active = slices.Delete(p.active, i, i+1)
			}
			continue
		}

		box := sp.entity.BoundingBox()
		for _, other := range p.active {
			if other.BoundingBox().Overlaps(box) {
				p.overlaps.add(pair{entity1: other, entity2: sp.entity})
			}
		}
		p.active = append(p.active, sp.entity)
	}
}

func (p *PersistentSAP) Raycast(origin, direction mgl64.Vec3, filter RaycastFilter) (RaycastHit, bool) {
	return p.raycast(p.entities, origin, direction, filter)
}

var _ System = (*PersistentSAP)(nil)

package collision

import (
	"math"
	"slices"

	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/fxredeemer/jitterphysics-sub000/worker"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxSpannedCells is the number of cells above which an entity is kept out
// of the grid and tested against every other entity instead.
const MaxSpannedCells = 64

// CellKey - Coordinates of a cell in 3D space
type CellKey struct {
	X, Y, Z int
}

// cell - Indices of the entities overlapping a cell
type cell struct {
	entities []int
}

// gridChunk is the share of entities one task looks for pairs from.
type gridChunk struct {
	start, end int
	// Last entity that reached each other entity, to skip duplicates
	seen  []int
	pairs []pair
}

// SpatialGrid hashes the boxes into a uniform grid rebuilt every step. Only
// entities sharing a cell are compared.
type SpatialGrid struct {
	Detector

	cellSize float64
	cells    []cell
	cellMask int

	entities []Entity
	large    []bool
	chunks   []*gridChunk
	pairs    []pair
}

// NewSpatialGrid - Creates an empty grid. numCells is rounded up to a
// power of two.
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	numCells = nextPowerOfTwo(numCells)

	cells := make([]cell, numCells)
	for i := range cells {
		cells[i].entities = make([]int, 0, 8)
	}

	return &SpatialGrid{
		Detector: newDetector(),
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

// nextPowerOfTwo - Rounds up to the next power of two
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

func (sg *SpatialGrid) AddEntity(entity Entity) error {
	if slices.Contains(sg.entities, entity) {
		return ErrEntityExists
	}
	sg.entities = append(sg.entities, entity)
	return nil
}

func (sg *SpatialGrid) RemoveEntity(entity Entity) bool {
	i := slices.Index(sg.entities, entity)
	if i < 0 {
		return false
	}
	sg.entities = slices.Delete(sg.entities, i, i+1)
	return true
}

func (sg *SpatialGrid) Entities() []Entity {
	return sg.entities
}

func (sg *SpatialGrid) clear() {
	for i := range sg.cells {
		sg.cells[i].entities = sg.cells[i].entities[:0]
	}
}

// insert - Adds an entity to every cell it overlaps
func (sg *SpatialGrid) insert(index int, box geometry.AABB) {
	minCell, maxCell := sg.worldToCell(box.Min), sg.worldToCell(box.Max)
	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				c := &sg.cells[sg.hashCell(CellKey{x, y, z})]
				// Hash collisions may bring the same cell twice
				if n := len(c.entities); n == 0 || c.entities[n-1] != index {
					c.entities = append(c.entities, index)
				}
			}
		}
	}
}

func (sg *SpatialGrid) spannedCells(box geometry.AABB) int {
	minCell, maxCell := sg.worldToCell(box.Min), sg.worldToCell(box.Max)
	return (maxCell.X - minCell.X + 1) * (maxCell.Y - minCell.Y + 1) * (maxCell.Z - minCell.Z + 1)
}

func (sg *SpatialGrid) Detect(multithreaded bool) {
	sg.clear()
	sg.large = slices.Grow(sg.large[:0], len(sg.entities))[:len(sg.entities)]
	for i, entity := range sg.entities {
		box := entity.BoundingBox()
		sg.large[i] = sg.spannedCells(box) > MaxSpannedCells
		if !sg.large[i] {
			sg.insert(i, box)
		}
	}

	// ========== CHUNKS ==========
	tasks := 1
	if multithreaded && sg.threads != nil {
		tasks = sg.threads.ThreadCount()
	}
	chunkSize := max((len(sg.entities)+tasks-1)/tasks, 1)
	sg.chunks = sg.chunks[:0]
	for start := 0; start < len(sg.entities); start += chunkSize {
		n := len(sg.chunks)
		if n < cap(sg.chunks) {
			sg.chunks = sg.chunks[:n+1]
		} else {
			sg.chunks = append(sg.chunks, &gridChunk{})
		}
		c := sg.chunks[n]
		c.start, c.end = start, min(start+chunkSize, len(sg.entities))
	}

	if multithreaded && sg.threads != nil {
		worker.ForEach(sg.threads, sg.chunks, sg.findPairs)
	} else {
		for _, c := range sg.chunks {
			sg.findPairs(c)
		}
	}

	// Chunk order keeps the pairs in the same order either way
	sg.pairs = sg.pairs[:0]
	for _, c := range sg.chunks {
		sg.pairs = append(sg.pairs, c.pairs...)
	}
	sg.dispatch(sg.pairs, multithreaded)
}

func (sg *SpatialGrid) findPairs(c *gridChunk) {
	c.pairs = c.pairs[:0]
	if len(c.seen) < len(sg.entities) {
		c.seen = make([]int, len(sg.entities))
	}
	for i := range c.seen {
		c.seen[i] = -1
	}

	candidate := func(i, j int, box geometry.AABB) {
		other := sg.entities[j]
		if box.Overlaps(other.BoundingBox()) && sg.passedBroadphase(sg.entities[i], other) {
			c.pairs = append(c.pairs, pair{entity1: sg.entities[i], entity2: other})
		}
	}

	for i := c.start; i < c.end; i++ {
		box := sg.entities[i].BoundingBox()

		if sg.large[i] {
			for j := i + 1; j < len(sg.entities); j++ {
				candidate(i, j, box)
			}
			continue
		}

		// Walk the overlapped cells
		minCell, maxCell := sg.worldToCell(box.Min), sg.worldToCell(box.Max)
		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					for _, j := range sg.cells[sg.hashCell(CellKey{x, y, z})].entities {
						// Skip duplicates, (A,B) and (B,A) alike
						if j <= i || c.seen[j] == i {
							continue
						}
						c.seen[j] = i
						candidate(i, j, box)
					}
				}
			}
		}

		for j := i + 1; j < len(sg.entities); j++ {
			if sg.large[j] {
				candidate(i, j, box)
			}
		}
	}
}

// worldToCell - Converts a world position to cell coordinates
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell - Hashes a cell to an index of the array
func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}

func (sg *SpatialGrid) Raycast(origin, direction mgl64.Vec3, filter RaycastFilter) (RaycastHit, bool) {
	return sg.raycast(sg.entities, origin, direction, filter)
}

var _ System = (*SpatialGrid)(nil)

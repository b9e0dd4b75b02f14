package spatial

import (
	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// TriangleVertexIndices indexes the three corners of a triangle into a vertex list.
type TriangleVertexIndices struct {
	I0, I1, I2 int
}

// MaxOctreeDepth bounds the subdivision of the octree.
const MaxOctreeDepth = 16

type octreeNode struct {
	box       geometry.AABB
	children  [8]int
	triangles []int
}

func (n *octreeNode) hasChildren() bool {
	for _, c := range n.children {
		if c != NullNode {
			return true
		}
	}
	return false
}

// Octree is a static spatial index over a triangle soup. Each triangle is
// stored in the smallest node that fully contains its bounding box.
type Octree struct {
	positions []mgl64.Vec3
	tris      []TriangleVertexIndices
	triBoxes  []geometry.AABB
	nodes     []octreeNode
	rootBox   geometry.AABB
}

// NewOctree copies the vertex soup and builds the tree.
func NewOctree(positions []mgl64.Vec3, tris []TriangleVertexIndices) *Octree {
	o := &Octree{
		positions: append([]mgl64.Vec3(nil), positions...),
		tris:      append([]TriangleVertexIndices(nil), tris...),
	}
	o.BuildOctree()
	return o
}

// SetTriangles replaces the geometry. BuildOctree must be called afterwards.
func (o *Octree) SetTriangles(positions []mgl64.Vec3, tris []TriangleVertexIndices) {
	o.positions = append(o.positions[:0], positions...)
	o.tris = append(o.tris[:0], tris...)
}

// BuildOctree rebuilds the node hierarchy from the current triangles.
func (o *Octree) BuildOctree() {
	o.triBoxes = o.triBoxes[:0]
	o.rootBox = geometry.EmptyAABB()

	for _, tri := range o.tris {
		box := geometry.EmptyAABB()
		box.AddPoint(o.positions[tri.I0])
		box.AddPoint(o.positions[tri.I1])
		box.AddPoint(o.positions[tri.I2])
		o.triBoxes = append(o.triBoxes, box)
		o.rootBox = o.rootBox.Merge(box)
	}

	o.nodes = o.nodes[:0]
	if len(o.tris) == 0 {
		o.rootBox = geometry.AABB{}
		return
	}

	o.nodes = append(o.nodes, newOctreeNode(o.rootBox))
	for i := range o.tris {
		o.insert(i)
	}
}

func newOctreeNode(box geometry.AABB) octreeNode {
	n := octreeNode{box: box}
	for i := range n.children {
		n.children[i] = NullNode
	}
	return n
}

func childBox(box geometry.AABB, octant int) geometry.AABB {
	center := box.Center()
	child := box
	for axis := 0; axis < 3; axis++ {
		if octant&(1<<axis) != 0 {
			child.Min[axis] = center[axis]
		} else {
			child.Max[axis] = center[axis]
		}
	}
	return child
}

func (o *Octree) insert(tri int) {
	triBox := o.triBoxes[tri]
	nodeIndex := 0

	for depth := 0; depth < MaxOctreeDepth; depth++ {
		target := NullNode
		for octant := 0; octant < 8; octant++ {
			box := childBox(o.nodes[nodeIndex].box, octant)
			if box.Contains(triBox) == geometry.Contains {
				target = octant
				break
			}
		}
		if target == NullNode {
			break
		}

		child := o.nodes[nodeIndex].children[target]
		if child == NullNode {
			child = len(o.nodes)
			o.nodes = append(o.nodes, newOctreeNode(childBox(o.nodes[nodeIndex].box, target)))
			o.nodes[nodeIndex].children[target] = child
		}
		nodeIndex = child
	}

	o.nodes[nodeIndex].triangles = append(o.nodes[nodeIndex].triangles, tri)
}

// GetTrianglesIntersectingAABB appends to dst the indices of every triangle
// whose bounding box overlaps box.
func (o *Octree) GetTrianglesIntersectingAABB(box geometry.AABB, dst []int) []int {
	return o.collect(dst, func(b geometry.AABB) bool {
		return b.Overlaps(box)
	})
}

// GetTrianglesIntersectingRay appends to dst the indices of every triangle
// whose bounding box is hit by the ray origin + t*direction, t >= 0.
func (o *Octree) GetTrianglesIntersectingRay(origin, direction mgl64.Vec3, dst []int) []int {
	return o.collect(dst, func(b geometry.AABB) bool {
		return b.RayIntersect(origin, direction)
	})
}

func (o *Octree) collect(dst []int, test func(geometry.AABB) bool) []int {
	if len(o.nodes) == 0 {
		return dst
	}

	var buf [64]int
	stack := append(buf[:0], 0)
	for len(stack) > 0 {
		n := &o.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if !test(n.box) {
			continue
		}
		for _, tri := range n.triangles {
			if test(o.triBoxes[tri]) {
				dst = append(dst, tri)
			}
		}
		if n.hasChildren() {
			for _, c := range n.children {
				if c != NullNode {
					stack = append(stack, c)
				}
			}
		}
	}
	return dst
}

func (o *Octree) GetVertex(index int) mgl64.Vec3 {
	return o.positions[index]
}

func (o *Octree) GetTriangleVertexIndex(index int) TriangleVertexIndices {
	return o.tris[index]
}

// Triangle returns the three corners of triangle index.
func (o *Octree) Triangle(index int) (mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) {
	t := o.tris[index]
	return o.positions[t.I0], o.positions[t.I1], o.positions[t.I2]
}

func (o *Octree) NumTriangles() int {
	return len(o.tris)
}

func (o *Octree) RootNodeBox() geometry.AABB {
	return o.rootBox
}

func (o *Octree) NodeCount() int {
	return len(o.nodes)
}

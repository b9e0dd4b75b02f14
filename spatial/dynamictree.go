package spatial

import (
	"fmt"
	"math/rand/v2"

	"github.com/fxredeemer/jitterphysics-sub000/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

const NullNode = -1

const (
	// DefaultExtension is the fixed part of the margin added around every proxy.
	DefaultExtension = 0.1
	// DefaultRandomExtension is the upper bound of the random part of the margin.
	// Random margins keep neighbouring proxies from crossing their fat boxes in lockstep.
	DefaultRandomExtension = 0.1
	// AABBMultiplier scales the displacement used to predict where a proxy moves.
	AABBMultiplier = 2.0
)

type treeNode[T any] struct {
	AABB     geometry.AABB
	UserData T

	// Parent doubles as the next pointer while the node sits in the free list
	Parent int
	Child1 int
	Child2 int

	// leaf = 0, free node = -1
	Height int

	minorRandomExtension float64
}

func (n *treeNode[T]) IsLeaf() bool {
	return n.Child1 == NullNode
}

// DynamicTree is a bounding volume hierarchy over fattened AABBs. Leaves are
// proxies carrying a user value; internal nodes hold the union of their
// children. A proxy is reinserted only when its tight box escapes the fat box.
type DynamicTree[T any] struct {
	root     int
	nodes    []treeNode[T]
	count    int
	freeList int

	insertionCount int

	Extension       float64
	RandomExtension float64

	rng *rand.Rand
}

// NewDynamicTree creates an empty tree. The seed makes the random margins
// reproducible.
func NewDynamicTree[T any](seed uint64) *DynamicTree[T] {
	tree := &DynamicTree[T]{
		root:            NullNode,
		Extension:       DefaultExtension,
		RandomExtension: DefaultRandomExtension,
		rng:             rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	tree.grow(16)
	return tree
}

func (tree *DynamicTree[T]) grow(capacity int) {
	start := len(tree.nodes)
	for i := start; i < capacity; i++ {
		tree.nodes = append(tree.nodes, treeNode[T]{Parent: i + 1, Child1: NullNode, Child2: NullNode, Height: -1})
	}
	tree.nodes[capacity-1].Parent = NullNode
	tree.freeList = start
}

func (tree *DynamicTree[T]) allocateNode() int {
	if tree.freeList == NullNode {
		tree.grow(len(tree.nodes) * 2)
	}

	nodeID := tree.freeList
	tree.freeList = tree.nodes[nodeID].Parent

	var zero T
	tree.nodes[nodeID] = treeNode[T]{
		Parent:   NullNode,
		Child1:   NullNode,
		Child2:   NullNode,
		Height:   0,
		UserData: zero,
	}
	tree.count++
	return nodeID
}

func (tree *DynamicTree[T]) freeNode(nodeID int) {
	var zero T
	tree.nodes[nodeID].UserData = zero
	tree.nodes[nodeID].Parent = tree.freeList
	tree.nodes[nodeID].Height = -1
	tree.freeList = nodeID
	tree.count--
}

// Root returns the root node id, or NullNode when the tree is empty.
func (tree *DynamicTree[T]) Root() int {
	return tree.root
}

// AddProxy creates a leaf for a tight box and returns its id.
func (tree *DynamicTree[T]) AddProxy(aabb geometry.AABB, userData T) int {
	proxyID := tree.allocateNode()
	node := &tree.nodes[proxyID]

	node.minorRandomExtension = tree.rng.Float64() * tree.RandomExtension
	node.AABB = aabb.Inflate(tree.Extension + node.minorRandomExtension)
	node.UserData = userData
	node.Height = 0

	tree.insertLeaf(proxyID)
	return proxyID
}

// RemoveProxy destroys a leaf.
func (tree *DynamicTree[T]) RemoveProxy(proxyID int) {
	tree.mustBeLeaf(proxyID)
	tree.removeLeaf(proxyID)
	tree.freeNode(proxyID)
}

// MoveProxy updates a proxy with its new tight box and the displacement since
// the last move. It returns true when the leaf had to be reinserted.
func (tree *DynamicTree[T]) MoveProxy(proxyID int, aabb geometry.AABB, displacement mgl64.Vec3) bool {
	tree.mustBeLeaf(proxyID)

	node := &tree.nodes[proxyID]
	if node.AABB.Contains(aabb) == geometry.Contains {
		return false
	}

	tree.removeLeaf(proxyID)

	// Extend AABB and predict the displacement
	b := aabb.Inflate(tree.Extension + node.minorRandomExtension)
	b = b.Sweep(displacement.Mul(AABBMultiplier))
	tree.nodes[proxyID].AABB = b

	tree.insertLeaf(proxyID)
	return true
}

func (tree *DynamicTree[T]) GetUserData(proxyID int) T {
	return tree.nodes[proxyID].UserData
}

func (tree *DynamicTree[T]) GetFatAABB(proxyID int) geometry.AABB {
	return tree.nodes[proxyID].AABB
}

// ProxyCount returns the number of live nodes, leaves and internal nodes included.
func (tree *DynamicTree[T]) ProxyCount() int {
	return tree.count
}

// Query calls fn for every leaf whose fat box overlaps aabb. Returning false
// from fn stops the traversal.
func (tree *DynamicTree[T]) Query(aabb geometry.AABB, fn func(proxyID int) bool) {
	var buf [64]int
	stack := append(buf[:0], tree.root)

	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodeID == NullNode {
			continue
		}

		node := &tree.nodes[nodeID]
		if !node.AABB.Overlaps(aabb) {
			continue
		}

		if node.IsLeaf() {
			if !fn(nodeID) {
				break
			}
			continue
		}
		stack = append(stack, node.Child1, node.Child2)
	}
}

// QueryRay calls fn for every leaf whose fat box is hit by the ray
// origin + t*direction, t >= 0.
func (tree *DynamicTree[T]) QueryRay(origin, direction mgl64.Vec3, fn func(proxyID int) bool) {
	var buf [64]int
	stack := append(buf[:0], tree.root)

	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodeID == NullNode {
			continue
		}

		node := &tree.nodes[nodeID]
		if !node.AABB.RayIntersect(origin, direction) {
			continue
		}

		if node.IsLeaf() {
			if !fn(nodeID) {
				break
			}
			continue
		}
		stack = append(stack, node.Child1, node.Child2)
	}
}

// QueryTree walks two trees simultaneously and reports every overlapping
// leaf pair. When other is the receiver itself, each unordered pair of
// distinct leaves is reported once.
func (tree *DynamicTree[T]) QueryTree(other *DynamicTree[T], fn func(proxyA, proxyB int)) {
	if tree.root == NullNode || other.root == NullNode {
		return
	}
	self := tree == other

	stackA := []int{tree.root}
	stackB := []int{other.root}

	for len(stackA) > 0 {
		a := stackA[len(stackA)-1]
		b := stackB[len(stackB)-1]
		stackA = stackA[:len(stackA)-1]
		stackB = stackB[:len(stackB)-1]

		nodeA := &tree.nodes[a]
		nodeB := &other.nodes[b]

		if self && a == b {
			if nodeA.IsLeaf() {
				continue
			}
			// A subtree against itself: both children with themselves and each other
			stackA = append(stackA, nodeA.Child1, nodeA.Child2, nodeA.Child1)
			stackB = append(stackB, nodeA.Child1, nodeA.Child2, nodeA.Child2)
			continue
		}

		if !nodeA.AABB.Overlaps(nodeB.AABB) {
			continue
		}

		switch {
		case nodeA.IsLeaf() && nodeB.IsLeaf():
			fn(a, b)
		case nodeB.IsLeaf() || (!nodeA.IsLeaf() && nodeA.AABB.SurfaceArea() >= nodeB.AABB.SurfaceArea()):
			stackA = append(stackA, nodeA.Child1, nodeA.Child2)
			stackB = append(stackB, b, b)
		default:
			stackA = append(stackA, a, a)
			stackB = append(stackB, nodeB.Child1, nodeB.Child2)
		}
	}
}

func (tree *DynamicTree[T]) insertLeaf(leaf int) {
	tree.insertionCount++

	if tree.root == NullNode {
		tree.root = leaf
		tree.nodes[tree.root].Parent = NullNode
		return
	}

	// Find the best sibling for this node
	leafAABB := tree.nodes[leaf].AABB
	index := tree.root
	for !tree.nodes[index].IsLeaf() {
		child1 := tree.nodes[index].Child1
		child2 := tree.nodes[index].Child2

		area := tree.nodes[index].AABB.SurfaceArea()
		combinedArea := tree.nodes[index].AABB.Merge(leafAABB).SurfaceArea()

		// Cost of creating a new parent for this node and the new leaf
		cost := 2.0 * combinedArea

		// Minimum cost of pushing the leaf further down the tree
		inheritanceCost := 2.0 * (combinedArea - area)

		cost1 := tree.descendCost(child1, leafAABB) + inheritanceCost
		cost2 := tree.descendCost(child2, leafAABB) + inheritanceCost

		if cost < cost1 && cost < cost2 {
			break
		}

		if cost1 < cost2 {
			index = child1
		} else {
			index = child2
		}
	}

	sibling := index

	// Create a new parent
	oldParent := tree.nodes[sibling].Parent
	newParent := tree.allocateNode()
	tree.nodes[newParent].Parent = oldParent
	tree.nodes[newParent].AABB = leafAABB.Merge(tree.nodes[sibling].AABB)
	tree.nodes[newParent].Height = tree.nodes[sibling].Height + 1

	if oldParent != NullNode {
		// The sibling was not the root
		if tree.nodes[oldParent].Child1 == sibling {
			tree.nodes[oldParent].Child1 = newParent
		} else {
			tree.nodes[oldParent].Child2 = newParent
		}
	} else {
		tree.root = newParent
	}
	tree.nodes[newParent].Child1 = sibling
	tree.nodes[newParent].Child2 = leaf
	tree.nodes[sibling].Parent = newParent
	tree.nodes[leaf].Parent = newParent

	// Walk back up the tree fixing heights and AABBs
	tree.refit(tree.nodes[leaf].Parent)
}

func (tree *DynamicTree[T]) descendCost(child int, leafAABB geometry.AABB) float64 {
	merged := leafAABB.Merge(tree.nodes[child].AABB)
	if tree.nodes[child].IsLeaf() {
		return merged.SurfaceArea()
	}
	return merged.SurfaceArea() - tree.nodes[child].AABB.SurfaceArea()
}

func (tree *DynamicTree[T]) removeLeaf(leaf int) {
	if leaf == tree.root {
		tree.root = NullNode
		return
	}

	parent := tree.nodes[leaf].Parent
	grandParent := tree.nodes[parent].Parent
	sibling := tree.nodes[parent].Child1
	if sibling == leaf {
		sibling = tree.nodes[parent].Child2
	}

	if grandParent == NullNode {
		tree.root = sibling
		tree.nodes[sibling].Parent = NullNode
		tree.freeNode(parent)
		return
	}

	// Destroy parent and connect sibling to grandParent
	if tree.nodes[grandParent].Child1 == parent {
		tree.nodes[grandParent].Child1 = sibling
	} else {
		tree.nodes[grandParent].Child2 = sibling
	}
	tree.nodes[sibling].Parent = grandParent
	tree.freeNode(parent)

	tree.refit(grandParent)
}

// refit walks from index to the root, balancing and recomputing boxes.
func (tree *DynamicTree[T]) refit(index int) {
	for index != NullNode {
		index = tree.balance(index)

		child1 := tree.nodes[index].Child1
		child2 := tree.nodes[index].Child2

		tree.nodes[index].Height = 1 + max(tree.nodes[child1].Height, tree.nodes[child2].Height)
		tree.nodes[index].AABB = tree.nodes[child1].AABB.Merge(tree.nodes[child2].AABB)

		index = tree.nodes[index].Parent
	}
}

// balance performs a left or right rotation if node iA is imbalanced.
// Returns the new root index of the subtree.
func (tree *DynamicTree[T]) balance(iA int) int {
	A := &tree.nodes[iA]
	if A.IsLeaf() || A.Height < 2 {
		return iA
	}

	iB := A.Child1
	iC := A.Child2
	B := &tree.nodes[iB]
	C := &tree.nodes[iC]

	balance := C.Height - B.Height

	// Rotate C up
	if balance > 1 {
		iF := C.Child1
		iG := C.Child2
		F := &tree.nodes[iF]
		G := &tree.nodes[iG]

		// Swap A and C
		C.Child1 = iA
		C.Parent = A.Parent
		A.Parent = iC

		// A's old parent should point to C
		if C.Parent != NullNode {
			if tree.nodes[C.Parent].Child1 == iA {
				tree.nodes[C.Parent].Child1 = iC
			} else {
				tree.nodes[C.Parent].Child2 = iC
			}
		} else {
			tree.root = iC
		}

		// Rotate
		if F.Height > G.Height {
			C.Child2 = iF
			A.Child2 = iG
			G.Parent = iA
			A.AABB = B.AABB.Merge(G.AABB)
			C.AABB = A.AABB.Merge(F.AABB)

			A.Height = 1 + max(B.Height, G.Height)
			C.Height = 1 + max(A.Height, F.Height)
		} else {
			C.Child2 = iG
			A.Child2 = iF
			F.Parent = iA
			A.AABB = B.AABB.Merge(F.AABB)
			C.AABB = A.AABB.Merge(G.AABB)

			A.Height = 1 + max(B.Height, F.Height)
			C.Height = 1 + max(A.Height, G.Height)
		}

		return iC
	}

	// Rotate B up
	if balance < -1 {
		iD := B.Child1
		iE := B.Child2
		D := &tree.nodes[iD]
		E := &tree.nodes[iE]

		// Swap A and B
		B.Child1 = iA
		B.Parent = A.Parent
		A.Parent = iB

		// A's old parent should point to B
		if B.Parent != NullNode {
			if tree.nodes[B.Parent].Child1 == iA {
				tree.nodes[B.Parent].Child1 = iB
			} else {
				tree.nodes[B.Parent].Child2 = iB
			}
		} else {
			tree.root = iB
		}

		// Rotate
		if D.Height > E.Height {
			B.Child2 = iD
			A.Child1 = iE
			E.Parent = iA
			A.AABB = C.AABB.Merge(E.AABB)
			B.AABB = A.AABB.Merge(D.AABB)

			A.Height = 1 + max(C.Height, E.Height)
			B.Height = 1 + max(A.Height, D.Height)
		} else {
			B.Child2 = iE
			A.Child1 = iD
			D.Parent = iA
			A.AABB = C.AABB.Merge(D.AABB)
			B.AABB = A.AABB.Merge(E.AABB)

			A.Height = 1 + max(C.Height, D.Height)
			B.Height = 1 + max(A.Height, E.Height)
		}

		return iB
	}

	return iA
}

// Height returns the height of the tree, zero for an empty tree.
func (tree *DynamicTree[T]) Height() int {
	if tree.root == NullNode {
		return 0
	}
	return tree.nodes[tree.root].Height
}

// Validate checks parent links, heights and box containment of the whole
// tree. It returns the first violation found.
func (tree *DynamicTree[T]) Validate() error {
	if tree.root == NullNode {
		return nil
	}
	if tree.nodes[tree.root].Parent != NullNode {
		return fmt.Errorf("root %d has parent %d", tree.root, tree.nodes[tree.root].Parent)
	}
	return tree.validate(tree.root)
}

func (tree *DynamicTree[T]) validate(index int) error {
	node := &tree.nodes[index]
	if node.IsLeaf() {
		if node.Height != 0 {
			return fmt.Errorf("leaf %d has height %d", index, node.Height)
		}
		return nil
	}

	c1, c2 := node.Child1, node.Child2
	if tree.nodes[c1].Parent != index || tree.nodes[c2].Parent != index {
		return fmt.Errorf("children of %d do not point back to it", index)
	}
	if want := 1 + max(tree.nodes[c1].Height, tree.nodes[c2].Height); node.Height != want {
		return fmt.Errorf("node %d has height %d, want %d", index, node.Height, want)
	}
	if node.AABB.Contains(tree.nodes[c1].AABB) != geometry.Contains ||
		node.AABB.Contains(tree.nodes[c2].AABB) != geometry.Contains {
		return fmt.Errorf("node %d does not enclose its children", index)
	}
	if err := tree.validate(c1); err != nil {
		return err
	}
	return tree.validate(c2)
}

func (tree *DynamicTree[T]) mustBeLeaf(proxyID int) {
	if proxyID < 0 || proxyID >= len(tree.nodes) || !tree.nodes[proxyID].IsLeaf() || tree.nodes[proxyID].Height < 0 {
		panic(fmt.Sprintf("spatial: proxy %d is not a live leaf", proxyID))
	}
}

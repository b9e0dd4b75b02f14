package collision

import "golang.org/x/exp/constraints"

// insertionSort sorts items by key, keeping equal keys in order. Nearly
// sorted input, the usual case from one step to the next, takes linear time.
// onSwap is called every time moving passes over passed on its way down.
func insertionSort[T any, K constraints.Ordered](items []T, key func(T) K, onSwap func(moving, passed T)) {
	for j := 1; j < len(items); j++ {
		moving := items[j]
		k := key(moving)

		i := j - 1
		for ; i >= 0 && key(items[i]) > k; i-- {
			if onSwap != nil {
				onSwap(moving, items[i])
			}
			items[i+1] = items[i]
		}
		items[i+1] = moving
	}
}

// pairSet is a set of unordered pairs iterated in insertion order.
type pairSet struct {
	index map[pair]int
	pairs []pair
}

func newPairSet() pairSet {
	return pairSet{index: make(map[pair]int)}
}

func (s *pairSet) find(p pair) (pair, int, bool) {
	if i, ok := s.index[p]; ok {
		return p, i, true
	}
	if i, ok := s.index[p.swapped()]; ok {
		return p.swapped(), i, true
	}
	return p, -1, false
}

func (s *pairSet) contains(p pair) bool {
	_, _, ok := s.find(p)
	return ok
}

func (s *pairSet) add(p pair) bool {
	if s.contains(p) {
		return false
	}
	s.index[p] = len(s.pairs)
	s.pairs = append(s.pairs, p)
	return true
}

func (s *pairSet) remove(p pair) bool {
	key, i, ok := s.find(p)
	if !ok {
		return false
	}
	delete(s.index, key)

	last := len(s.pairs) - 1
	if i != last {
		moved := s.pairs[last]
		s.pairs[i] = moved
		s.index[moved] = i
	}
	s.pairs[last] = pair{}
	s.pairs = s.pairs[:last]
	return true
}

// removeEntity drops every pair e takes part in.
func (s *pairSet) removeEntity(e Entity) {
	for i := len(s.pairs) - 1; i >= 0; i-- {
		if i < len(s.pairs) && s.pairs[i].has(e) {
			s.remove(s.pairs[i])
		}
	}
}

func (s *pairSet) len() int {
	return len(s.pairs)
}

func (s *pairSet) clear() {
	clear(s.index)
	clear(s.pairs)
	s.pairs = s.pairs[:0]
}

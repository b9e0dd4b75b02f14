package jitter

import "sync"

// ResourcePool recycles objects between steps. It is safe for concurrent use
// so that narrow phase tasks can draw contacts from it.
type ResourcePool[T any] struct {
	mu    sync.Mutex
	stack []T
	new   func() T
}

func NewResourcePool[T any](newFn func() T) *ResourcePool[T] {
	return &ResourcePool[T]{new: newFn}
}

// GetNew pops a recycled object, or builds one when the pool is empty.
func (p *ResourcePool[T]) GetNew() T {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.stack); n > 0 {
		item := p.stack[n-1]
		var zero T
		p.stack[n-1] = zero
		p.stack = p.stack[:n-1]
		return item
	}
	return p.new()
}

func (p *ResourcePool[T]) GiveBack(item T) {
	p.mu.Lock()
	p.stack = append(p.stack, item)
	p.mu.Unlock()
}

// Count returns the number of objects waiting to be reused.
func (p *ResourcePool[T]) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stack)
}

func (p *ResourcePool[T]) Clear() {
	p.mu.Lock()
	clear(p.stack)
	p.stack = p.stack[:0]
	p.mu.Unlock()
}

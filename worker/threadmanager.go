// Package worker runs batches of tasks on a fixed set of goroutines. A batch
// is a barrier: Execute returns once every task of the batch has run.
package worker

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ThreadsPerProcessor is the number of threads per logical CPU used when no
// explicit count is given.
const ThreadsPerProcessor = 1

type task struct {
	fn    func(param any)
	param any
}

// ThreadManager is a fork-join pool. Tasks are queued with AddTask and run by
// Execute; the calling goroutine takes part in the work. Workers sleep on a
// gate channel that is closed once per batch.
type ThreadManager struct {
	threads int
	tasks   []task
	cursor  atomic.Int64

	mu      sync.Mutex
	gate    chan struct{}
	closing bool
	pending sync.WaitGroup
}

// NewThreadManager starts threads-1 workers. threads <= 0 picks one thread per
// logical CPU.
func NewThreadManager(threads int) *ThreadManager {
	if threads <= 0 {
		threads = runtime.NumCPU() * ThreadsPerProcessor
	}

	tm := &ThreadManager{
		threads: threads,
		gate:    make(chan struct{}),
	}
	for range threads - 1 {
		go tm.worker(tm.gate)
	}
	return tm
}

// ThreadCount includes the goroutine calling Execute.
func (tm *ThreadManager) ThreadCount() int {
	return tm.threads
}

// AddTask queues fn(param) for the next Execute. It must not be called while
// a batch runs.
func (tm *ThreadManager) AddTask(fn func(param any), param any) {
	tm.tasks = append(tm.tasks, task{fn: fn, param: param})
}

// Execute runs the queued tasks and blocks until all of them are done.
func (tm *ThreadManager) Execute() {
	if len(tm.tasks) == 0 {
		return
	}
	tm.cursor.Store(0)

	if tm.threads > 1 {
		tm.release()
	}
	tm.pump()
	tm.pending.Wait()

	clear(tm.tasks)
	tm.tasks = tm.tasks[:0]
}

// Close stops the workers. The manager must not be used afterwards.
func (tm *ThreadManager) Close() {
	tm.mu.Lock()
	if tm.closing {
		tm.mu.Unlock()
		return
	}
	tm.closing = true
	tm.mu.Unlock()

	if tm.threads > 1 {
		tm.release()
	}
	tm.pending.Wait()
}

// release opens the gate of the current generation and installs the next one.
func (tm *ThreadManager) release() {
	tm.mu.Lock()
	gate := tm.gate
	tm.gate = make(chan struct{})
	tm.pending.Add(tm.threads - 1)
	tm.mu.Unlock()

	close(gate)
}

func (tm *ThreadManager) worker(gate chan struct{}) {
	for {
		<-gate

		tm.mu.Lock()
		gate = tm.gate
		closing := tm.closing
		tm.mu.Unlock()

		if closing {
			tm.pending.Done()
			return
		}

		tm.pump()
		tm.pending.Done()
	}
}

// pump claims tasks until the batch is exhausted.
func (tm *ThreadManager) pump() {
	for {
		i := int(tm.cursor.Add(1) - 1)
		if i >= len(tm.tasks) {
			return
		}
		t := tm.tasks[i]
		t.fn(t.param)
	}
}

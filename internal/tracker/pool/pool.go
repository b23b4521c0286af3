// Package pool implements the TaskPool contract of spec §4.1: a bag of
// task ids with per-id state {pending, allocated, done} that hands out
// pending work in ascending id order and allows speculative duplicates.
//
// The engine is generalized over the item payload (a bare reduce id or a
// map split carrying input offsets) the way the teacher's
// TaskPriorityQueue generalizes over *core.Task while keeping its own
// bookkeeping (sequence numbers, heap index) private. Grounded on
// resource_manager.cc's IdManager: a dense array plus a FIFO of pending
// ids, guarded by a single mutex.
package pool

import (
	"sync"

	"github.com/orbitmr/shuttle/internal/tracker/core"
)

// Pool is a thread-safe TaskPool over items of type T.
type Pool[T core.Item[T]] struct {
	mu sync.Mutex

	items           []T
	pendingQueue    []int
	pendingCount    int
	allocatedCount  int
	doneCount       int
	allowDuplicates bool
}

// New builds a pool from an already-materialized id space. Every item's
// IdItem.No must equal its index; New does not renumber them.
func New[T core.Item[T]](items []T, allowDuplicates bool) *Pool[T] {
	p := &Pool[T]{
		items:           items,
		allowDuplicates: allowDuplicates,
	}
	p.pendingQueue = make([]int, 0, len(items))
	for i := range items {
		p.pendingQueue = append(p.pendingQueue, i)
	}
	p.pendingCount = len(items)
	return p
}

// Next returns a pending item and marks it Allocated, incrementing its
// attempt and allocated count. Selection is ascending by no because the
// pending FIFO is seeded in id order and returned ids are re-inserted at
// their sorted position, so the lowest pending id is always at the head.
func (p *Pool[T]) Next() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.pendingQueue) > 0 {
		no := p.pendingQueue[0]
		if p.items[no].Base().Status == core.ResPending {
			break
		}
		p.pendingQueue = p.pendingQueue[1:]
	}
	if len(p.pendingQueue) == 0 {
		var zero T
		return zero, false
	}
	no := p.pendingQueue[0]
	p.pendingQueue = p.pendingQueue[1:]

	base := p.items[no].Base()
	base.Attempt++
	base.Status = core.ResAllocated
	base.AllocatedCount++
	p.items[no] = p.items[no].WithBase(base)

	p.pendingCount--
	p.allocatedCount++
	return p.items[no], true
}

// Take re-emits a speculative duplicate of no, provided the pool allows
// duplicates and the id is not already Done. Increments attempt.
func (p *Pool[T]) Take(no int) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	if !p.allowDuplicates || no < 0 || no >= len(p.items) {
		return zero, false
	}
	base := p.items[no].Base()
	if base.Status == core.ResDone {
		return zero, false
	}
	if base.Status == core.ResPending {
		p.pendingCount--
		p.allocatedCount++
		base.Status = core.ResAllocated
	}
	base.Attempt++
	base.AllocatedCount++
	p.items[no] = p.items[no].WithBase(base)
	return p.items[no], true
}

// Finish marks no Done iff it was not already Done, returning whether this
// call caused the transition. Idempotent: a second Finish of the same no
// returns false without changing state.
func (p *Pool[T]) Finish(no int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if no < 0 || no >= len(p.items) {
		return false
	}
	base := p.items[no].Base()
	if base.Status == core.ResDone {
		return false
	}
	wasAllocated := base.Status == core.ResAllocated
	base.Status = core.ResDone
	base.AllocatedCount = 0
	p.items[no] = p.items[no].WithBase(base)

	if wasAllocated {
		p.allocatedCount--
	} else {
		p.pendingCount--
		p.removeFromPendingQueue(no)
	}
	p.doneCount++
	return true
}

// ReturnBack decrements allocatedCount; if it reaches zero and the item is
// not Done, the item transitions back to Pending and is requeued.
func (p *Pool[T]) ReturnBack(no int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if no < 0 || no >= len(p.items) {
		return
	}
	base := p.items[no].Base()
	if base.Status != core.ResAllocated {
		return
	}
	base.AllocatedCount--
	if base.AllocatedCount <= 0 {
		base.AllocatedCount = 0
		base.Status = core.ResPending
		p.allocatedCount--
		p.pendingCount++
		i := 0
		for i < len(p.pendingQueue) && p.pendingQueue[i] < no {
			i++
		}
		p.pendingQueue = append(p.pendingQueue, 0)
		copy(p.pendingQueue[i+1:], p.pendingQueue[i:])
		p.pendingQueue[i] = no
	}
	p.items[no] = p.items[no].WithBase(base)
}

func (p *Pool[T]) removeFromPendingQueue(no int) {
	for i, v := range p.pendingQueue {
		if v == no {
			p.pendingQueue = append(p.pendingQueue[:i], p.pendingQueue[i+1:]...)
			return
		}
	}
}

// IsAllocated reports whether no is currently handed out.
func (p *Pool[T]) IsAllocated(no int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if no < 0 || no >= len(p.items) {
		return false
	}
	return p.items[no].Base().Status == core.ResAllocated
}

// IsDone reports whether no has completed.
func (p *Pool[T]) IsDone(no int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if no < 0 || no >= len(p.items) {
		return false
	}
	return p.items[no].Base().Status == core.ResDone
}

// Get returns a copy of item no.
func (p *Pool[T]) Get(no int) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	if no < 0 || no >= len(p.items) {
		return zero, false
	}
	return p.items[no], true
}

func (p *Pool[T]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingCount
}

func (p *Pool[T]) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocatedCount
}

func (p *Pool[T]) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneCount
}

func (p *Pool[T]) SumOfItems() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Dump snapshots the id-space for checkpointing.
func (p *Pool[T]) Dump() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

// Load replaces the id-space wholesale from a checkpoint, rebuilding
// counters and the pending FIFO from each item's status.
func (p *Pool[T]) Load(data []T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = make([]T, len(data))
	copy(p.items, data)

	p.pendingQueue = p.pendingQueue[:0]
	p.pendingCount, p.allocatedCount, p.doneCount = 0, 0, 0
	for i, it := range p.items {
		switch it.Base().Status {
		case core.ResPending:
			p.pendingCount++
			p.pendingQueue = append(p.pendingQueue, i)
		case core.ResAllocated:
			p.allocatedCount++
		case core.ResDone:
			p.doneCount++
		}
	}
}

package pool

import "github.com/orbitmr/shuttle/internal/tracker/core"

// MapPool is the map-phase TaskPool: items are ResourceItems carrying
// input split metadata.
type MapPool = Pool[core.ResourceItem]

// ReducePool is the reduce-phase TaskPool: items are bare reduce ids.
type ReducePool = Pool[core.IdItem]

// NewMapPool builds the map pool from a partitioned id space.
func NewMapPool(items []core.ResourceItem, allowDuplicates bool) *MapPool {
	return New(items, allowDuplicates)
}

// NewReducePool builds a reduce pool of n ids, 0..n-1.
func NewReducePool(n int, allowDuplicates bool) *ReducePool {
	items := make([]core.IdItem, n)
	for i := range items {
		items[i] = core.IdItem{No: i, Status: core.ResPending}
	}
	return New(items, allowDuplicates)
}

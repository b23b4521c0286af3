package core

// Item is anything a TaskPool can hand out: a bare reduce IdItem or a map
// ResourceItem carrying split metadata. Both wrap an IdItem and can be
// rebuilt from an updated one, which lets the pool engine mutate status
// bookkeeping without knowing about domain-specific payload fields.
type Item[T any] interface {
	Base() IdItem
	WithBase(IdItem) T
}

func (it IdItem) Base() IdItem            { return it }
func (it IdItem) WithBase(b IdItem) IdItem { return b }

func (it ResourceItem) Base() IdItem { return it.IdItem }
func (it ResourceItem) WithBase(b IdItem) ResourceItem {
	it.IdItem = b
	return it
}

package framing

import (
	"cmp"
	"sort"
)

// sortedIndex binary-searches items, assumed kept sorted ascending by
// keyOf, for the element whose key equals target. found reports whether
// it exists; when it doesn't, i is the index a new element with that key
// should be inserted at to keep items sorted. Both the SPDY/2 and SPDY/3
// header blocks and SETTINGS entry lists are small, rarely-mutated,
// key-ordered lists (the header block must serialize in sorted order
// regardless), so all four share this lookup instead of each re-deriving
// it.
func sortedIndex[T any, K cmp.Ordered](items []T, target K, keyOf func(T) K) (i int, found bool) {
	i = sort.Search(len(items), func(i int) bool { return keyOf(items[i]) >= target })
	found = i < len(items) && keyOf(items[i]) == target
	return
}

// sortedInsert inserts v at index i, shifting the tail rightward. Callers
// get i from sortedIndex, so it is always a valid insertion point.
func sortedInsert[T any](items *[]T, i int, v T) {
	if i < 0 || i > len(*items) {
		panic("framing: insert index out of range")
	}
	var zero T
	*items = append(*items, zero)
	copy((*items)[i+1:], (*items)[i:])
	(*items)[i] = v
}

// sortedDelete removes the element at index i, shifting the tail leftward.
func sortedDelete[T any](items *[]T, i int) {
	if i < 0 || i >= len(*items) {
		panic("framing: delete index out of range")
	}
	copy((*items)[i:], (*items)[i+1:])
	*items = (*items)[:len(*items)-1]
}

// Package feed owns the feed list: the deduplicated, append-only sequence
// of items the rendering layer shows, plus its pagination cursor.
package feed

import "github.com/abelbrown/cineswipe/internal/media"

// List is an append-only item sequence with a seen-id set. The first item
// with a given id wins its position; later duplicates are dropped. Not
// goroutine-safe; the Reconciler serialises access.
type List struct {
	items []media.Item
	seen  map[int]struct{}
}

// NewList returns an empty List.
func NewList() *List {
	return &List{seen: make(map[int]struct{})}
}

// Add appends every item whose id has not been seen and reports how many
// were added.
func (l *List) Add(items ...media.Item) int {
	n := 0
	for _, it := range items {
		if _, dup := l.seen[it.ID]; dup {
			continue
		}
		l.seen[it.ID] = struct{}{}
		l.items = append(l.items, it)
		n++
	}
	return n
}

// Contains reports whether id has been added since the last Reset.
func (l *List) Contains(id int) bool {
	_, ok := l.seen[id]
	return ok
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// Items returns a read-only view of the items. Later appends never show
// through it.
func (l *List) Items() []media.Item {
	n := len(l.items)
	return l.items[:n:n]
}

// Reset empties the list and the seen set.
func (l *List) Reset() {
	l.items = nil
	l.seen = make(map[int]struct{})
}

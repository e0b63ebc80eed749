package state

// Stack is a LIFO with a fixed capacity. Pushing onto a full stack evicts the
// oldest entry.
type Stack[T any] struct {
	items    []T
	capacity int
}

// NewStack returns an empty stack holding at most capacity entries.
func NewStack[T any](capacity int) *Stack[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Stack[T]{capacity: capacity}
}

// Push returns the evicted entry, if any.
func (s *Stack[T]) Push(item T) (evicted T, ok bool) {
	if len(s.items) >= s.capacity {
		evicted, ok = s.items[0], true
		s.items = append(s.items[:0], s.items[1:]...)
	}
	s.items = append(s.items, item)
	return evicted, ok
}

// Pop removes and returns the newest entry.
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	last := len(s.items) - 1
	item := s.items[last]
	s.items[last] = zero
	s.items = s.items[:last]
	return item, true
}

// Peek returns the newest entry without removing it.
func (s *Stack[T]) Peek() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// Len returns the number of entries.
func (s *Stack[T]) Len() int      { return len(s.items) }
// Capacity returns the maximum number of entries.
func (s *Stack[T]) Capacity() int { return s.capacity }
// Empty reports whether the stack holds nothing.
func (s *Stack[T]) Empty() bool   { return len(s.items) == 0 }

// Clear drops every entry.
func (s *Stack[T]) Clear() {
	clear(s.items)
	s.items = s.items[:0]
}

// Remove drops every entry for which match reports true, keeping the order of
// the rest. It returns how many were dropped.
func (s *Stack[T]) Remove(match func(T) bool) int {
	kept := s.items[:0]
	for _, item := range s.items {
		if !match(item) {
			kept = append(kept, item)
		}
	}
	removed := len(s.items) - len(kept)
	clear(s.items[len(kept):])
	s.items = kept
	return removed
}

// Items returns the entries oldest first.
func (s *Stack[T]) Items() []T {
	return append([]T(nil), s.items...)
}

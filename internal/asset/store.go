package asset

// Store holds decoded assets of one kind. Tick goroutine only, no locks.
type Store[T any] struct {
	items map[Handle]*T
	next  Handle
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{items: make(map[Handle]*T, 32)}
}

// Add stores a and returns its handle. Handles are never reused.
func (s *Store[T]) Add(a *T) Handle {
	s.next++
	s.items[s.next] = a
	return s.next
}

func (s *Store[T]) Get(h Handle) (*T, bool) {
	a, ok := s.items[h]
	return a, ok
}

func (s *Store[T]) Remove(h Handle) bool {
	if _, ok := s.items[h]; !ok {
		return false
	}
	delete(s.items, h)
	return true
}

func (s *Store[T]) Len() int { return len(s.items) }

package domain

import "sync"

// Store is a minimal observable state cell: the signed-in user, the global
// auth error, and the sync progress are all published through one of these.
// Subscribers are invoked synchronously on every Set, in subscription order.
type Store[T any] struct {
	mu    sync.Mutex
	value T
	subs  []func(T)
}

// NewStore creates a store holding the given initial value.
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{value: initial}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value and notifies every subscriber.
func (s *Store[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	subs := make([]func(T), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Subscribe registers a callback for future updates and immediately invokes
// it with the current value, mirroring store semantics where a new
// subscriber sees the present state first.
func (s *Store[T]) Subscribe(fn func(T)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	current := s.value
	s.mu.Unlock()

	fn(current)
}

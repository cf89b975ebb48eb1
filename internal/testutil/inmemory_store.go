package testutil

import (
	"context"
	"sync"

	ierr "github.com/omnibill/omnibill/internal/errors"
)

// InMemoryStore provides a generic thread-safe in-memory store for testing
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore[T any]() *InMemoryStore[T] {
	return &InMemoryStore[T]{
		items: make(map[string]T),
	}
}

// Create stores an item with the given key
func (s *InMemoryStore[T]) Create(ctx context.Context, key string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; exists {
		return ierr.NewError("item already exists").
			WithHintf("item with key %s already exists", key).
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[key] = item
	return nil
}

// Get retrieves an item by key
func (s *InMemoryStore[T]) Get(ctx context.Context, key string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[key]
	if !exists {
		var zero T
		return zero, ierr.NewError("item not found").
			WithHintf("item with key %s was not found", key).
			Mark(ierr.ErrNotFound)
	}
	return item, nil
}

// Update modifies an existing item
func (s *InMemoryStore[T]) Update(ctx context.Context, key string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists {
		return ierr.NewError("item not found").
			WithHintf("item with key %s was not found", key).
			Mark(ierr.ErrNotFound)
	}

	s.items[key] = item
	return nil
}

// Delete removes an item by key
func (s *InMemoryStore[T]) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists {
		return ierr.NewError("item not found").
			WithHintf("item with key %s was not found", key).
			Mark(ierr.ErrNotFound)
	}

	delete(s.items, key)
	return nil
}

// List returns all items matching the filter
func (s *InMemoryStore[T]) List(ctx context.Context, filter func(T) bool) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]T, 0, len(s.items))
	for _, item := range s.items {
		if filter == nil || filter(item) {
			result = append(result, item)
		}
	}
	return result, nil
}

// Count returns the number of items matching the filter
func (s *InMemoryStore[T]) Count(ctx context.Context, filter func(T) bool) (int, error) {
	items, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}

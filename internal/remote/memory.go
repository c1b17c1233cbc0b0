package remote

import (
	"context"
	"slices"
	"sort"
	"sync"
)

type memoryWatcher struct {
	id int
	fn func([]byte, bool)
}

// MemoryStore is an in-process Store. Subscribers are called synchronously
// on the writer's goroutine, after the store's lock is released.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string][]byte
	watchers map[string][]memoryWatcher
	nextID   int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     map[string][]byte{},
		watchers: map[string][]memoryWatcher{},
	}
}

// Get returns a copy of the record for code.
func (s *MemoryStore) Get(_ context.Context, code string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[code]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(doc), nil
}

// Set stores doc under code, replacing any existing record.
func (s *MemoryStore) Set(_ context.Context, code string, doc []byte) error {
	s.mu.Lock()
	s.docs[code] = slices.Clone(doc)
	s.mu.Unlock()
	s.broadcast(code)
	return nil
}

// Update applies path assignments to an existing record.
func (s *MemoryStore) Update(_ context.Context, code string, paths map[string]any) error {
	s.mu.Lock()
	doc, ok := s.docs[code]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	updated, err := ApplyPaths(doc, paths)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.docs[code] = updated
	s.mu.Unlock()
	s.broadcast(code)
	return nil
}

// Delete removes the record for code. Deleting a missing record is not an
// error.
func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	_, existed := s.docs[code]
	delete(s.docs, code)
	s.mu.Unlock()
	if existed {
		s.broadcast(code)
	}
	return nil
}

// List returns every room code in lexical order.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]string, 0, len(s.docs))
	for code := range s.docs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// Subscribe registers fn for code and immediately delivers the current
// record.
func (s *MemoryStore) Subscribe(_ context.Context, code string, fn func([]byte, bool)) (func(), error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[code] = append(s.watchers[code], memoryWatcher{id: id, fn: fn})
	doc, ok := s.docs[code]
	doc = slices.Clone(doc)
	s.mu.Unlock()

	fn(doc, ok)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.watchers[code] = slices.DeleteFunc(s.watchers[code], func(w memoryWatcher) bool { return w.id == id })
		if len(s.watchers[code]) == 0 {
			delete(s.watchers, code)
		}
	}, nil
}

func (s *MemoryStore) broadcast(code string) {
	s.mu.Lock()
	doc, ok := s.docs[code]
	doc = slices.Clone(doc)
	watchers := slices.Clone(s.watchers[code])
	s.mu.Unlock()
	for _, w := range watchers {
		w.fn(slices.Clone(doc), ok)
	}
}

var _ Store = (*MemoryStore)(nil)

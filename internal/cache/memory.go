package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. It keeps at most maxNamespaces
// namespaces and drops the least recently used one when the limit is exceeded.
type MemoryStore struct {
	maxNamespaces int
	mu            sync.Mutex
	namespaces    map[string]*namespace
	head          *namespace // most recently used
	tail          *namespace // least recently used
}

type namespace struct {
	name    string
	entries map[string]Entry
	prev    *namespace
	next    *namespace
}

// NewMemoryStore creates an LRU-bounded in-memory store.
func NewMemoryStore(maxNamespaces int) *MemoryStore {
	if maxNamespaces < 1 {
		maxNamespaces = 1
	}
	return &MemoryStore{
		maxNamespaces: maxNamespaces,
		namespaces:    make(map[string]*namespace),
	}
}

func (s *MemoryStore) Namespaces(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Get(_ context.Context, ns, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.namespaces[ns]
	if !ok {
		return Entry{}, false, nil
	}
	e, ok := n.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	s.moveToFront(n)
	return e, true, nil
}

func (s *MemoryStore) Put(_ context.Context, ns, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := make([]byte, len(e.Body))
	copy(body, e.Body)
	e.Body = body

	if n, ok := s.namespaces[ns]; ok {
		n.entries[key] = e
		s.moveToFront(n)
		return nil
	}

	n := &namespace{name: ns, entries: map[string]Entry{key: e}}
	s.namespaces[ns] = n
	s.addToFront(n)

	if len(s.namespaces) > s.maxNamespaces {
		s.evictTail()
	}
	return nil
}

func (s *MemoryStore) DeleteNamespace(_ context.Context, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.namespaces[ns]; ok {
		delete(s.namespaces, ns)
		s.remove(n)
	}
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for name, n := range s.namespaces {
		if strings.HasPrefix(name, prefix) {
			delete(s.namespaces, name)
			s.remove(n)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of namespaces held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.namespaces)
}

func (s *MemoryStore) moveToFront(n *namespace) {
	if n == s.head {
		return
	}
	s.remove(n)
	s.addToFront(n)
}

func (s *MemoryStore) addToFront(n *namespace) {
	n.next = s.head
	n.prev = nil
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *MemoryStore) remove(n *namespace) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		s.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (s *MemoryStore) evictTail() {
	if s.tail == nil {
		return
	}
	delete(s.namespaces, s.tail.name)
	s.remove(s.tail)
}

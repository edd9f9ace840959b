package markstore

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the mark store
type MemoryStore struct {
	clock   Clock
	entries map[Key][]Entry
	log     []Entry // every live entry, insertion order
	seq     uint64
	mu      sync.RWMutex
}

// Option configures a MemoryStore
type Option func(*MemoryStore)

// WithClock replaces the monotonic clock, mostly for tests
func WithClock(c Clock) Option {
	return func(s *MemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		clock:   MonotonicClock,
		entries: make(map[Key][]Entry),
		log:     make([]Entry, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultStore = NewMemoryStore()

// Default returns the process-wide shared store.
// Profilers that are not given a store all read and write this one.
func Default() *MemoryStore {
	return defaultStore
}

// Record appends a new entry under key stamped with the current clock
func (s *MemoryStore) Record(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	e := Entry{
		Key:       key,
		Kind:      KindMark,
		Seq:       s.seq,
		StartTime: s.clock(),
	}
	s.entries[key] = append(s.entries[key], e)
	s.log = append(s.log, e)
}

// Query returns a copy of the entries recorded under key
func (s *MemoryStore) Query(key Key) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.entries[key]
	if len(list) == 0 {
		return nil
	}
	out := make([]Entry, len(list))
	copy(out, list)
	return out
}

// QueryAll returns a copy of every entry of kind, oldest first
func (s *MemoryStore) QueryAll(kind Kind) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.log))
	for _, e := range s.log {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Now returns the current clock reading
func (s *MemoryStore) Now() time.Duration {
	return s.clock()
}

// Erase drops every entry under key. Unknown keys are ignored.
func (s *MemoryStore) Erase(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)

	kept := s.log[:0]
	for _, e := range s.log {
		if e.Key != key {
			kept = append(kept, e)
		}
	}
	// zero the dropped tail of the backing array
	for i := len(kept); i < len(s.log); i++ {
		s.log[i] = Entry{}
	}
	s.log = kept
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log)
}

// Reset drops every entry in every namespace
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[Key][]Entry)
	s.log = make([]Entry, 0)
}

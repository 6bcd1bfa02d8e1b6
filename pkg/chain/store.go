package chain

import (
	"sort"
	"sync"

	"github.com/waftester/desyncsim/pkg/framing"
)

// Key identifies one hop's view of one stream.
type Key struct {
	Stream string
	Hop    string
}

// Store holds pending remainders. It is safe for concurrent use; two
// streams never share an entry.
type Store struct {
	mu sync.Mutex
	m  map[Key]*framing.Remainder
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{m: make(map[Key]*framing.Remainder)}
}

// Get returns the remainder for (stream, hop), or nil.
func (s *Store) Get(stream, hop string) *framing.Remainder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[Key{stream, hop}]
}

// Put stores r for (stream, hop). A nil r clears the entry.
func (s *Store) Put(stream, hop string, r *framing.Remainder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r == nil {
		delete(s.m, Key{stream, hop})
		return
	}
	s.m[Key{stream, hop}] = r
}

// Delete clears one entry.
func (s *Store) Delete(stream, hop string) {
	s.Put(stream, hop, nil)
}

// Drop removes every entry of stream and returns them keyed by hop.
func (s *Store) Drop(stream string) map[string]*framing.Remainder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*framing.Remainder)
	for k, r := range s.m {
		if k.Stream == stream {
			out[k.Hop] = r
			delete(s.m, k)
		}
	}
	return out
}

// Streams lists the streams with at least one pending remainder, sorted.
func (s *Store) Streams() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for k := range s.m {
		if !seen[k.Stream] {
			seen[k.Stream] = true
			out = append(out, k.Stream)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of stored remainders.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

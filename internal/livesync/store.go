package livesync

import "sync"

// Store is the local projection: one cached result set per query key. The owning subscription is the
// only writer of a key; everyone else reads copies.
type Store struct {
	mu          sync.RWMutex
	sets        map[string][]Document
	provisional map[string][]Document
	orders      map[string]LessFunc
	onPending   func(key string)
}

func NewStore() *Store {
	return &Store{
		sets:        make(map[string][]Document),
		provisional: make(map[string][]Document),
		orders:      make(map[string]LessFunc),
	}
}

// SetOrder registers the read-time sort for key.
func (s *Store) SetOrder(key string, less LessFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[key] = less
}

// Apply replaces the cached set for key with snapshot and returns the set it replaced. Provisional
// entries for the key are discarded: the latest snapshot is trusted wholesale.
func (s *Store) Apply(key string, snapshot []Document) []Document {
	next := make([]Document, len(snapshot))
	copy(next, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.sets[key]
	s.sets[key] = next
	delete(s.provisional, key)
	return previous
}

// View returns the applied set plus provisional entries, sorted by the registered order.
func (s *Store) View(key string) []Document {
	s.mu.RLock()
	set := s.sets[key]
	pending := s.provisional[key]
	less := s.orders[key]
	out := make([]Document, 0, len(set)+len(pending))
	out = append(out, set...)
	out = append(out, pending...)
	s.mu.RUnlock()

	if less != nil {
		SortDocuments(out, less)
	}
	return out
}

// Has reports whether key has received at least one snapshot.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[key]
	return ok
}

// OnProvisional registers fn to run, outside the store lock, whenever a provisional entry is inserted or
// removed. Snapshots do not trigger it; their owner already knows.
func (s *Store) OnProvisional(fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPending = fn
}

func (s *Store) InsertProvisional(key string, doc Document) {
	doc.Provisional = true
	s.mu.Lock()
	s.provisional[key] = append(s.provisional[key], doc)
	hook := s.onPending
	s.mu.Unlock()
	if hook != nil {
		hook(key)
	}
}

// RemoveProvisional drops a provisional entry and reports whether it was still present.
func (s *Store) RemoveProvisional(key, id string) bool {
	s.mu.Lock()
	pending := s.provisional[key]
	removed := false
	for i, d := range pending {
		if d.ID == id {
			s.provisional[key] = append(pending[:i:i], pending[i+1:]...)
			if len(s.provisional[key]) == 0 {
				delete(s.provisional, key)
			}
			removed = true
			break
		}
	}
	hook := s.onPending
	s.mu.Unlock()
	if removed && hook != nil {
		hook(key)
	}
	return removed
}

// Drop forgets everything about key.
func (s *Store) Drop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, key)
	delete(s.provisional, key)
	delete(s.orders, key)
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.sets))
	for k := range s.sets {
		keys = append(keys, k)
	}
	return keys
}


// Package memdb is an in-process document store used for local development and tests. It follows the
// listener contract of the hosted store: every change delivers the full result set of each affected query.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"shopdesk/internal/livesync"
)

type record struct {
	data     map[string]interface{}
	revision uint64
}

type listener struct {
	id        int
	query     livesync.Query
	onChange  func([]livesync.Document)
	onError   func(error)
	signature string
	delivered bool
}

type Store struct {
	clock livesync.Clock

	mu          sync.Mutex
	collections map[string]map[string]*record
	listeners   map[int]*listener
	nextID      int
	revision    uint64
	queue       []delivery
	draining    bool

	// RequireIndex, when set, refuses queries it returns true for with livesync.ErrIndexRequired.
	RequireIndex func(q livesync.Query) bool
	// FailWrite, when set, is consulted before every write; a non-nil result aborts the write.
	FailWrite func(op, collection, id string) error
}

func New(clock livesync.Clock) *Store {
	if clock == nil {
		clock = livesync.SystemClock()
	}
	return &Store{
		clock:       clock,
		collections: make(map[string]map[string]*record),
		listeners:   make(map[int]*listener),
	}
}

func (s *Store) Subscribe(_ context.Context, q livesync.Query, onChange func([]livesync.Document), onError func(error)) (livesync.CancelFunc, error) {
	s.mu.Lock()
	if s.RequireIndex != nil && s.RequireIndex(q) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", q.Key(), livesync.ErrIndexRequired)
	}
	s.nextID++
	l := &listener{id: s.nextID, query: q, onChange: onChange, onError: onError}
	s.listeners[l.id] = l
	docs, sig := s.evaluate(q)
	l.signature = sig
	l.delivered = true
	s.queue = append(s.queue, delivery{listener: l.id, fn: onChange, docs: docs})
	s.mu.Unlock()

	s.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, l.id)
			s.mu.Unlock()
		})
	}, nil
}

// Listeners is the number of live listeners.
func (s *Store) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Fail delivers err to every listener on collection and removes them, as a revoked read would.
func (s *Store) Fail(collection string, err error) {
	s.mu.Lock()
	var targets []*listener
	for id, l := range s.listeners {
		if l.query.Collection == collection {
			targets = append(targets, l)
			delete(s.listeners, id)
		}
	}
	s.mu.Unlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	for _, l := range targets {
		if l.onError != nil {
			l.onError(err)
		}
	}
}

func (s *Store) Get(_ context.Context, collection, id string) (livesync.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.collections[collection][id]
	if !ok {
		return livesync.Document{}, fmt.Errorf("%s/%s: %w", collection, id, livesync.ErrNotFound)
	}
	return toDocument(id, rec), nil
}

// All returns every document of collection ordered by id.
func (s *Store) All(collection string) []livesync.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scan(collection)
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := uuid.New().String()
	if err := s.write("add", collection, id, func(existing *record) (*record, error) {
		return &record{data: s.resolve(nil, fields)}, nil
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(_ context.Context, collection, id string, fields map[string]interface{}) error {
	return s.write("set", collection, id, func(existing *record) (*record, error) {
		return &record{data: s.resolve(nil, fields)}, nil
	})
}

func (s *Store) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	return s.write("update", collection, id, func(existing *record) (*record, error) {
		if existing == nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, livesync.ErrNotFound)
		}
		return &record{data: s.resolve(existing.data, fields)}, nil
	})
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	return s.write("delete", collection, id, func(existing *record) (*record, error) {
		return nil, nil
	})
}

func (s *Store) write(op, collection, id string, apply func(existing *record) (*record, error)) error {
	s.mu.Lock()
	if s.FailWrite != nil {
		if err := s.FailWrite(op, collection, id); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	col := s.collections[collection]
	if col == nil {
		col = make(map[string]*record)
		s.collections[collection] = col
	}
	next, err := apply(col[id])
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if next == nil {
		if _, ok := col[id]; !ok {
			s.mu.Unlock()
			return nil
		}
		delete(col, id)
	} else {
		s.revision++
		next.revision = s.revision
		col[id] = next
	}
	s.queue = append(s.queue, s.changed(collection)...)
	s.mu.Unlock()

	s.drain()
	return nil
}

// drain delivers queued snapshots in order. Only one goroutine drains at a time; writes issued from inside
// a callback are queued and delivered after it returns.
func (s *Store) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		if _, live := s.listeners[next.listener]; !live {
			continue
		}
		s.mu.Unlock()
		next.fn(next.docs)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

type delivery struct {
	listener int
	fn       func([]livesync.Document)
	docs     []livesync.Document
}

// changed recomputes the listeners of collection and returns deliveries for those whose result moved.
func (s *Store) changed(collection string) []delivery {
	ids := make([]int, 0, len(s.listeners))
	for id, l := range s.listeners {
		if l.query.Collection == collection {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	var out []delivery
	for _, id := range ids {
		l := s.listeners[id]
		docs, sig := s.evaluate(l.query)
		if l.delivered && sig == l.signature {
			continue
		}
		l.signature = sig
		l.delivered = true
		out = append(out, delivery{listener: id, fn: l.onChange, docs: docs})
	}
	return out
}

func (s *Store) evaluate(q livesync.Query) ([]livesync.Document, string) {
	docs := q.Evaluate(s.scan(q.Collection))
	var sig strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&sig, "%s@%d;", d.ID, s.collections[q.Collection][d.ID].revision)
	}
	return docs, sig.String()
}

func (s *Store) scan(collection string) []livesync.Document {
	col := s.collections[collection]
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([]livesync.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, toDocument(id, col[id]))
	}
	return docs
}

// resolve merges fields over base, replacing write sentinels with concrete values.
func (s *Store) resolve(base, fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(fields))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range fields {
		switch val := v.(type) {
		case livesync.UnionValue:
			out[k] = union(out[k], val.Elems)
		default:
			if v == livesync.ServerTimestamp {
				out[k] = s.clock.Now()
				continue
			}
			out[k] = v
		}
	}
	return out
}

func union(current interface{}, elems []interface{}) []interface{} {
	var out []interface{}
	switch c := current.(type) {
	case []interface{}:
		out = append(out, c...)
	case []string:
		for _, v := range c {
			out = append(out, v)
		}
	}
	for _, e := range elems {
		found := false
		for _, have := range out {
			if have == e {
				found = true
				break
			}
		}
		if !found {
			out = append(out, e)
		}
	}
	return out
}

func toDocument(id string, rec *record) livesync.Document {
	data := make(map[string]interface{}, len(rec.data))
	for k, v := range rec.data {
		data[k] = v
	}
	return livesync.Document{ID: id, Data: data}
}

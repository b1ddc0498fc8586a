// Package store holds the in-memory message records. It is the sole source of
// truth for message state; nothing is persisted across restarts.
package store

import (
	"sync"

	"github.com/geekinsanemx/sms-gateway/internal/model"
)

// Store is a mutex-guarded map from message id to record. Every read accessor
// returns a deep copy; the only way to mutate a record is through Update or a
// Scan pass, both of which run under the store lock.
type Store struct {
	mu      sync.Mutex
	records map[string]*model.Message
}

func New() *Store {
	return &Store{records: make(map[string]*model.Message)}
}

func (s *Store) Create(m model.Message) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := m.Clone()
	s.records[m.ID] = &rec
	return rec.Clone()
}

func (s *Store) Get(id string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return model.Message{}, false
	}
	return rec.Clone(), true
}

// Update applies mutate to the record under the store lock. A missing id is a
// no-op reported by the bool.
func (s *Store) Update(id string, mutate func(*model.Message)) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return model.Message{}, false
	}
	mutate(rec)
	return rec.Clone(), true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Scan grants fn exclusive access to the live record map for the duration of
// the call. Sweepers and the correlator use it so a scan-and-update pass is
// atomic with respect to every other writer. fn must not retain references
// past its return.
func (s *Store) Scan(fn func(records map[string]*model.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.records)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

package param

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultCapacity = 64

var (
	ErrStoreFull   = errors.New("parameter store is full")
	ErrDuplicateID = errors.New("parameter id already declared")
	ErrUnknownKind = errors.New("unknown parameter kind")
)

// Store is a bounded table of declared parameters keyed by id.
// Entries are only created by [Store.Declare] and are never removed,
// updates to undeclared ids are discarded.
type Store struct {
	mu       sync.RWMutex
	capacity int
	params   []*Parameter
	byID     map[uint16]*Parameter
	now      func() time.Time
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		params:   make([]*Parameter, 0, capacity),
		byID:     make(map[uint16]*Parameter, capacity),
		now:      time.Now,
	}
}

func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Declare a new parameter
func (s *Store) Declare(def Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[def.ID]; ok {
		return fmt.Errorf("%w : %d", ErrDuplicateID, def.ID)
	}
	if len(s.params) >= s.capacity {
		return fmt.Errorf("%w : cannot declare %d|%s", ErrStoreFull, def.ID, def.Name)
	}
	p := newParameter(def)
	s.params = append(s.params, p)
	s.byID[def.ID] = p
	return nil
}

// Load a batch of definitions, stopping at the first rejected one.
// Returns the number of declared parameters.
func (s *Store) Load(defs []Definition) (int, error) {
	for i, def := range defs {
		err := s.Declare(def)
		if err != nil {
			return i, err
		}
	}
	log.Infof("[PARAM] loaded %d parameters", len(defs))
	return len(defs), nil
}

// Get returns a copy of the parameter
func (s *Store) Get(id uint16) (Parameter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return Parameter{}, false
	}
	return *p, true
}

func (s *Store) Has(id uint16) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// Update stores a value if the id is declared, converting it to
// the declared kind. Returns false when the id is unknown.
func (s *Store) Update(id uint16, value Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return false
	}
	p.Value = Convert(p.Kind, value)
	p.Dirty = false
	p.LastUpdate = s.now()
	return true
}

// UpdateInt is [Store.Update] for raw integer readings
func (s *Store) UpdateInt(id uint16, v int64) bool {
	return s.Update(id, Int32(v))
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.params)
}

func (s *Store) Cap() int {
	return s.capacity
}

// All returns copies of every parameter in declaration order
func (s *Store) All() []Parameter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]Parameter, len(s.params))
	for i, p := range s.params {
		all[i] = *p
	}
	return all
}

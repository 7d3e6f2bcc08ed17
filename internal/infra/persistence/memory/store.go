// Package memory provides the in-memory transactional registry store. It is
// the reference implementation of domain.PersistentStore; the durable drivers
// wrap it and snapshot its state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"linkreview/pkg/domain"
)

// Store keeps registry state in memory with copy-on-write transactions: a
// transaction works on a deep clone of the state and the clone replaces the
// live state only when the callback succeeds.
type Store struct {
	mu    sync.RWMutex
	state *state
	nowFn func() time.Time
}

type state struct {
	persons          map[string]domain.Person
	potentialMatches map[string]domain.PotentialMatchRecord
}

func newState() *state {
	return &state{
		persons:          make(map[string]domain.Person),
		potentialMatches: make(map[string]domain.PotentialMatchRecord),
	}
}

func (s *state) clone() *state {
	cp := &state{
		persons:          make(map[string]domain.Person, len(s.persons)),
		potentialMatches: make(map[string]domain.PotentialMatchRecord, len(s.potentialMatches)),
	}
	for id, p := range s.persons {
		cp.persons[id] = domain.ClonePerson(p)
	}
	for id, m := range s.potentialMatches {
		cp.potentialMatches[id] = domain.ClonePotentialMatchRecord(m)
	}
	return cp
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		state: newState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store's time source, primarily for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}

type transaction struct {
	state *state
	now   time.Time
}

func (t *transaction) CreatePerson(p domain.Person) (domain.Person, error) {
	if p.ID == "" {
		return domain.Person{}, domain.ErrMissingID{Entity: "person"}
	}
	if _, exists := t.state.persons[p.ID]; exists {
		return domain.Person{}, domain.ErrDuplicateID{Entity: "person", ID: p.ID}
	}
	cp := domain.ClonePerson(p)
	if cp.Created.IsZero() {
		cp.Created = t.now
	}
	t.state.persons[cp.ID] = cp
	return domain.ClonePerson(cp), nil
}

func (t *transaction) UpdatePerson(id string, mutator func(*domain.Person) error) (domain.Person, error) {
	existing, ok := t.state.persons[id]
	if !ok {
		return domain.Person{}, domain.ErrNotFound{Entity: "person", ID: id}
	}
	cp := domain.ClonePerson(existing)
	if err := mutator(&cp); err != nil {
		return domain.Person{}, err
	}
	cp.ID = id
	t.state.persons[id] = cp
	return domain.ClonePerson(cp), nil
}

func (t *transaction) DeletePerson(id string) error {
	if _, ok := t.state.persons[id]; !ok {
		return domain.ErrNotFound{Entity: "person", ID: id}
	}
	delete(t.state.persons, id)
	return nil
}

func (t *transaction) CreatePotentialMatch(m domain.PotentialMatchRecord) (domain.PotentialMatchRecord, error) {
	if m.ID == "" {
		return domain.PotentialMatchRecord{}, domain.ErrMissingID{Entity: "potential match"}
	}
	if _, exists := t.state.potentialMatches[m.ID]; exists {
		return domain.PotentialMatchRecord{}, domain.ErrDuplicateID{Entity: "potential match", ID: m.ID}
	}
	cp := domain.ClonePotentialMatchRecord(m)
	if cp.Created.IsZero() {
		cp.Created = t.now
	}
	t.state.potentialMatches[cp.ID] = cp
	return domain.ClonePotentialMatchRecord(cp), nil
}

func (t *transaction) UpdatePotentialMatch(id string, mutator func(*domain.PotentialMatchRecord) error) (domain.PotentialMatchRecord, error) {
	existing, ok := t.state.potentialMatches[id]
	if !ok {
		return domain.PotentialMatchRecord{}, domain.ErrNotFound{Entity: "potential match", ID: id}
	}
	cp := domain.ClonePotentialMatchRecord(existing)
	if err := mutator(&cp); err != nil {
		return domain.PotentialMatchRecord{}, err
	}
	cp.ID = id
	t.state.potentialMatches[id] = cp
	return domain.ClonePotentialMatchRecord(cp), nil
}

func (t *transaction) DeletePotentialMatch(id string) error {
	if _, ok := t.state.potentialMatches[id]; !ok {
		return domain.ErrNotFound{Entity: "potential match", ID: id}
	}
	delete(t.state.potentialMatches, id)
	return nil
}

func (t *transaction) FindPerson(id string) (domain.Person, bool) {
	p, ok := t.state.persons[id]
	if !ok {
		return domain.Person{}, false
	}
	return domain.ClonePerson(p), true
}

func (t *transaction) FindPotentialMatch(id string) (domain.PotentialMatchRecord, bool) {
	m, ok := t.state.potentialMatches[id]
	if !ok {
		return domain.PotentialMatchRecord{}, false
	}
	return domain.ClonePotentialMatchRecord(m), true
}

type view struct {
	state *state
}

func (v view) ListPersons() []domain.Person {
	out := make([]domain.Person, 0, len(v.state.persons))
	for _, p := range v.state.persons {
		out = append(out, domain.ClonePerson(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v view) ListPotentialMatches() []domain.PotentialMatchRecord {
	out := make([]domain.PotentialMatchRecord, 0, len(v.state.potentialMatches))
	for _, m := range v.state.potentialMatches {
		out = append(out, domain.ClonePotentialMatchRecord(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v view) FindPerson(id string) (domain.Person, bool) {
	p, ok := v.state.persons[id]
	if !ok {
		return domain.Person{}, false
	}
	return domain.ClonePerson(p), true
}

func (v view) FindPotentialMatch(id string) (domain.PotentialMatchRecord, bool) {
	m, ok := v.state.potentialMatches[id]
	if !ok {
		return domain.PotentialMatchRecord{}, false
	}
	return domain.ClonePotentialMatchRecord(m), true
}

// RunInTransaction executes fn against a cloned state and swaps the clone in
// when fn returns nil. Any error leaves the live state untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.state.clone()
	tx := &transaction{state: working, now: s.nowFn()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = working
	return nil
}

// View executes fn against the current state under a read lock.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(view{state: s.state})
}

// GetPerson returns the person with the given id.
func (s *Store) GetPerson(id string) (domain.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: s.state}.FindPerson(id)
}

// ListPersons returns all persons sorted by id.
func (s *Store) ListPersons() []domain.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: s.state}.ListPersons()
}

// GetPotentialMatch returns the potential-match row with the given id.
func (s *Store) GetPotentialMatch(id string) (domain.PotentialMatchRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: s.state}.FindPotentialMatch(id)
}

// ListPotentialMatches returns all potential-match rows sorted by id.
func (s *Store) ListPotentialMatches() []domain.PotentialMatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: s.state}.ListPotentialMatches()
}

// Snapshot is the serializable form of the full store state, bucketed per
// entity kind for the durable drivers.
type Snapshot struct {
	Persons          []domain.Person               `json:"persons"`
	PotentialMatches []domain.PotentialMatchRecord `json:"potential_matches"`
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := view{state: s.state}
	return Snapshot{
		Persons:          v.ListPersons(),
		PotentialMatches: v.ListPotentialMatches(),
	}
}

// ImportState replaces the store state from a snapshot.
func (s *Store) ImportState(snap Snapshot) {
	next := newState()
	for _, p := range snap.Persons {
		next.persons[p.ID] = domain.ClonePerson(p)
	}
	for _, m := range snap.PotentialMatches {
		next.potentialMatches[m.ID] = domain.ClonePotentialMatchRecord(m)
	}
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

var _ domain.PersistentStore = (*Store)(nil)

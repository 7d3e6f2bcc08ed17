package domain

import "context"

// Transaction exposes the registry mutations a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	CreatePerson(Person) (Person, error)
	UpdatePerson(id string, mutator func(*Person) error) (Person, error)
	DeletePerson(id string) error
	CreatePotentialMatch(PotentialMatchRecord) (PotentialMatchRecord, error)
	UpdatePotentialMatch(id string, mutator func(*PotentialMatchRecord) error) (PotentialMatchRecord, error)
	DeletePotentialMatch(id string) error
	FindPerson(id string) (Person, bool)
	FindPotentialMatch(id string) (PotentialMatchRecord, bool)
}

// TransactionView provides read-only access to a snapshot of registry state.
type TransactionView interface {
	ListPersons() []Person
	ListPotentialMatches() []PotentialMatchRecord
	FindPerson(id string) (Person, bool)
	FindPotentialMatch(id string) (PotentialMatchRecord, bool)
}

// PersistentStore is a minimal abstraction over durable registry backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
	GetPerson(id string) (Person, bool)
	ListPersons() []Person
	GetPotentialMatch(id string) (PotentialMatchRecord, bool)
	ListPotentialMatches() []PotentialMatchRecord
}

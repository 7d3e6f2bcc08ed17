// Package registry provides the person-registry API surface: the client
// interface the review session consumes, an HTTP implementation of it, and
// the server-side store and handlers backing that API.
package registry

import (
	"context"
	"fmt"

	"linkreview/pkg/domain"
)

// Client is the read/write API of the backing person registry as consumed by
// the review session.
type Client interface {
	FetchDataSources(ctx context.Context) ([]domain.DataSource, error)
	FetchPersons(ctx context.Context, terms domain.SearchTerms) ([]domain.PersonSummary, error)
	FetchPotentialMatches(ctx context.Context, terms domain.SearchTerms) ([]domain.PotentialMatchSummary, error)
	FetchPerson(ctx context.Context, id string) (domain.Person, error)
	FetchPotentialMatch(ctx context.Context, id string) (domain.PotentialMatch, error)
	MatchPersonRecords(ctx context.Context, matchID string, version int64, updates []domain.PersonUpdate) error
}

// NotFoundError reports a fetch for an entity the registry does not hold.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ConflictError reports an optimistic-concurrency failure on the write path.
type ConflictError struct {
	Kind     string
	ID       string
	Expected int64
	Actual   int64
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %q version conflict: expected %d, registry has %d", e.Kind, e.ID, e.Expected, e.Actual)
}

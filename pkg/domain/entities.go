// Package domain defines the core entities, derived-metadata helpers, and
// wire payloads shared by the review session and the person registry.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DataSource identifies an upstream system contributing person records.
// Fetched once per session and used only for filter suggestions.
type DataSource struct {
	Name string `json:"name"`
}

// PersonRecord is the atomic unit of identity data from one upstream source.
// ID is globally unique and stable across edits; PersonID always names a
// person present in the same working copy and changes only via move or merge.
type PersonRecord struct {
	ID                   string `json:"id"`
	PersonID             string `json:"person_id"`
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	BirthDate            string `json:"birth_date"`
	SocialSecurityNumber string `json:"social_security_number"`
	Sex                  string `json:"sex"`
	Race                 string `json:"race"`
	Address              string `json:"address"`
	City                 string `json:"city"`
	State                string `json:"state"`
	DataSource           string `json:"data_source"`
	SourcePersonID       string `json:"source_person_id"`

	// HighestMatchProbability is derived from a potential match's results when
	// a working copy is (re)built. Never persisted, never touched by edits.
	// Nil means no result references this record.
	HighestMatchProbability *float64 `json:"highest_match_probability,omitempty"`
}

// Person is a cluster of records believed to represent one individual.
// Records is the single source of truth for membership. Version is the
// optimistic-concurrency token and is nil for placeholder persons created
// locally during review.
type Person struct {
	ID      string         `json:"id"`
	Version *int64         `json:"version,omitempty"`
	Created time.Time      `json:"created"`
	Records []PersonRecord `json:"records"`
}

// PlaceholderPrefix marks person ids allocated locally during review.
const PlaceholderPrefix = "new-person-"

// IsPlaceholder reports whether the person exists only in a working copy and
// has not been persisted to the registry.
func (p Person) IsPlaceholder() bool {
	return strings.HasPrefix(p.ID, PlaceholderPrefix)
}

// PlaceholderID builds the synthetic id for the nth locally created person.
func PlaceholderID(n int) string {
	return fmt.Sprintf("%s%d", PlaceholderPrefix, n)
}

// PlaceholderSuffix extracts the numeric suffix of a placeholder id.
func PlaceholderSuffix(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, PlaceholderPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// RecordIDs returns the ids of the person's records in membership order.
func (p Person) RecordIDs() []string {
	ids := make([]string, 0, len(p.Records))
	for _, rec := range p.Records {
		ids = append(ids, rec.ID)
	}
	return ids
}

// MatchResult is one pairwise comparison produced by the external matching
// algorithm. Results are append-only evidence; after local edits the record
// references may dangle, which is tolerated.
type MatchResult struct {
	PersonRecordLID  string  `json:"person_record_l_id"`
	PersonRecordRID  string  `json:"person_record_r_id"`
	MatchProbability float64 `json:"match_probability"`
}

// PotentialMatch is a proposed grouping of two or more persons pending
// review, together with the pairwise evidence behind the proposal. This is
// the fetch-time (wire) shape; the working copy re-indexes persons by id.
type PotentialMatch struct {
	ID      string        `json:"id"`
	Version int64         `json:"version"`
	Created time.Time     `json:"created"`
	Persons []Person      `json:"persons"`
	Results []MatchResult `json:"results"`
}

// PotentialMatchRecord is the registry-side storage row for a potential
// match: person membership by id, with the evidence attached. The full
// PotentialMatch wire shape is composed by joining the referenced persons.
type PotentialMatchRecord struct {
	ID        string        `json:"id"`
	Version   int64         `json:"version"`
	Created   time.Time     `json:"created"`
	PersonIDs []string      `json:"person_ids"`
	Results   []MatchResult `json:"results"`
}

// PersonSummary is the list-view projection of a person.
type PersonSummary struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DataSources []string  `json:"data_sources"`
	RecordCount int       `json:"record_count"`
	Created     time.Time `json:"created"`
}

// PotentialMatchSummary is the list-view projection of a potential match.
type PotentialMatchSummary struct {
	ID                  string    `json:"id"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	DataSources         []string  `json:"data_sources"`
	PersonCount         int       `json:"person_count"`
	RecordCount         int       `json:"record_count"`
	MaxMatchProbability float64   `json:"max_match_probability"`
	Created             time.Time `json:"created"`
}

// ClonePersonRecord returns a value copy of a record.
func ClonePersonRecord(r PersonRecord) PersonRecord {
	cp := r
	if r.HighestMatchProbability != nil {
		v := *r.HighestMatchProbability
		cp.HighestMatchProbability = &v
	}
	return cp
}

// ClonePerson returns a deep copy of a person and its records.
func ClonePerson(p Person) Person {
	cp := p
	if p.Version != nil {
		v := *p.Version
		cp.Version = &v
	}
	if p.Records != nil {
		cp.Records = make([]PersonRecord, len(p.Records))
		for i, rec := range p.Records {
			cp.Records[i] = ClonePersonRecord(rec)
		}
	}
	return cp
}

// ClonePotentialMatch returns a deep copy of a potential match.
func ClonePotentialMatch(m PotentialMatch) PotentialMatch {
	cp := m
	if m.Persons != nil {
		cp.Persons = make([]Person, len(m.Persons))
		for i, p := range m.Persons {
			cp.Persons[i] = ClonePerson(p)
		}
	}
	cp.Results = append([]MatchResult(nil), m.Results...)
	return cp
}

// ClonePotentialMatchRecord returns a deep copy of a storage row.
func ClonePotentialMatchRecord(m PotentialMatchRecord) PotentialMatchRecord {
	cp := m
	cp.PersonIDs = append([]string(nil), m.PersonIDs...)
	cp.Results = append([]MatchResult(nil), m.Results...)
	return cp
}

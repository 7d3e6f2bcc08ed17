package domain

import "net/url"

// PersonUpdate is one entry of a match commit: the final record membership of
// a person after review. ID and Version are set only for persons that already
// exist in the registry; a placeholder being promoted carries neither, which
// the registry reads as "create".
type PersonUpdate struct {
	ID                 *string  `json:"id,omitempty"`
	Version            *int64   `json:"version,omitempty"`
	NewPersonRecordIDs []string `json:"new_person_record_ids"`
}

// MatchUpdate is the body of the registry's sole write operation. Version is
// the expected potential-match version for optimistic concurrency.
type MatchUpdate struct {
	Version       int64          `json:"version"`
	PersonUpdates []PersonUpdate `json:"person_updates"`
}

// Recognized search-term keys. Free text, combined as AND filters by the
// registry.
const (
	TermDataSource     = "data_source"
	TermFirstName      = "first_name"
	TermLastName       = "last_name"
	TermBirthDate      = "birth_date"
	TermPersonID       = "person_id"
	TermSourcePersonID = "source_person_id"
)

// SearchTerms is the key-value filter map sent to the summary-fetch API.
type SearchTerms map[string]string

// TermKeys lists the search-term keys the registry recognizes.
func TermKeys() []string {
	return []string{
		TermDataSource,
		TermFirstName,
		TermLastName,
		TermBirthDate,
		TermPersonID,
		TermSourcePersonID,
	}
}

// Clone returns a copy of the term map.
func (t SearchTerms) Clone() SearchTerms {
	if t == nil {
		return nil
	}
	cp := make(SearchTerms, len(t))
	for k, v := range t {
		cp[k] = v
	}
	return cp
}

// Values encodes the non-empty terms as URL query parameters.
func (t SearchTerms) Values() url.Values {
	vals := url.Values{}
	for k, v := range t {
		if v != "" {
			vals.Set(k, v)
		}
	}
	return vals
}

// Pagination describes the page window of a summary listing.
type Pagination struct {
	Page         int  `json:"page"`
	PageSize     int  `json:"page_size"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
	NextPage     *int `json:"next_page"`
	PreviousPage *int `json:"previous_page"`
}

package domain

// WorkingMatch is the editable working copy of a potential match. Persons are
// re-indexed by id for O(1) membership edits; Results stay untouched local
// evidence. All structural edits act on working copies only; the fetched
// PotentialMatch baseline is the sole reference for dirty detection and reset.
type WorkingMatch struct {
	ID      string            `json:"id"`
	Version int64             `json:"version"`
	Persons map[string]Person `json:"persons"`
	Results []MatchResult     `json:"results"`
}

// NewWorkingMatch derives a working copy from a fetched potential match:
// persons are indexed by id and every record is annotated with its highest
// match probability recomputed from the results evidence.
func NewWorkingMatch(baseline PotentialMatch) WorkingMatch {
	probs := HighestMatchProbabilities(baseline.Results)
	persons := make(map[string]Person, len(baseline.Persons))
	for _, p := range baseline.Persons {
		cp := ClonePerson(p)
		for i := range cp.Records {
			if prob, ok := probs[cp.Records[i].ID]; ok {
				v := prob
				cp.Records[i].HighestMatchProbability = &v
			} else {
				cp.Records[i].HighestMatchProbability = nil
			}
		}
		persons[cp.ID] = cp
	}
	return WorkingMatch{
		ID:      baseline.ID,
		Version: baseline.Version,
		Persons: persons,
		Results: append([]MatchResult(nil), baseline.Results...),
	}
}

// CloneWorkingMatch returns a deep copy of a working match.
func CloneWorkingMatch(m WorkingMatch) WorkingMatch {
	cp := m
	cp.Persons = make(map[string]Person, len(m.Persons))
	for id, p := range m.Persons {
		cp.Persons[id] = ClonePerson(p)
	}
	cp.Results = append([]MatchResult(nil), m.Results...)
	return cp
}

// RecordCount returns the total number of records across all persons.
func (m WorkingMatch) RecordCount() int {
	n := 0
	for _, p := range m.Persons {
		n += len(p.Records)
	}
	return n
}

// FindRecord locates a record by id across all persons of the working copy.
func (m WorkingMatch) FindRecord(recordID string) (PersonRecord, bool) {
	for _, p := range m.Persons {
		for _, rec := range p.Records {
			if rec.ID == recordID {
				return ClonePersonRecord(rec), true
			}
		}
	}
	return PersonRecord{}, false
}
